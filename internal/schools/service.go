package schools

import (
	"context"
	"errors"

	"github.com/scholaris-sis/scholaris-sis/internal/authz"
)

// ErrSchoolForbidden is returned when the caller asks for a school it
// cannot access.
var ErrSchoolForbidden = errors.New("schools: school forbidden")

// RepositoryPort defines data access methods for schools.
type RepositoryPort interface {
	List(ctx context.Context) ([]School, error)
	Get(ctx context.Context, id int64) (School, error)
}

// Service handles school lookups.
type Service struct {
	repo RepositoryPort
}

// NewService builds Service instance.
func NewService(repo RepositoryPort) *Service {
	return &Service{repo: repo}
}

// ListSchools returns the schools the actor may see. Superusers see
// every active school; tenant users see only their own.
func (s *Service) ListSchools(ctx context.Context, actor authz.ClaimSet) ([]School, error) {
	if actor.IsSuperAdmin {
		return s.repo.List(ctx)
	}
	if actor.SchoolID == nil {
		return []School{}, nil
	}
	school, err := s.repo.Get(ctx, *actor.SchoolID)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return []School{}, nil
		}
		return nil, err
	}
	return []School{school}, nil
}

// GetSchool returns one school, enforcing tenant scope.
func (s *Service) GetSchool(ctx context.Context, actor authz.ClaimSet, id int64) (School, error) {
	if !actor.CanAccessSchool(id) {
		return School{}, ErrSchoolForbidden
	}
	return s.repo.Get(ctx, id)
}
