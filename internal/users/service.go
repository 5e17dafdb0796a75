package users

import (
	"context"
	"errors"

	"github.com/scholaris-sis/scholaris-sis/internal/authz"
	"github.com/scholaris-sis/scholaris-sis/internal/shared"
)

// ErrSchoolForbidden is returned when the caller asks for a school it
// cannot access.
var ErrSchoolForbidden = errors.New("users: school forbidden")

// RepositoryPort defines data access methods for users.
type RepositoryPort interface {
	ListBySchool(ctx context.Context, schoolID int64, p shared.Pagination) ([]UserWithRoles, int, error)
	Search(ctx context.Context, schoolID int64, query string, p shared.Pagination) ([]UserWithRoles, int, error)
}

// Service handles user business logic.
type Service struct {
	repo RepositoryPort
}

// NewService builds Service instance.
func NewService(repo RepositoryPort) *Service {
	return &Service{repo: repo}
}

// ListUsers returns one page of the school's users with their roles.
// Callers bound to another school are rejected.
func (s *Service) ListUsers(ctx context.Context, actor authz.ClaimSet, schoolID int64, query string, p shared.Pagination) ([]UserWithRoles, int, error) {
	if !actor.CanAccessSchool(schoolID) {
		return nil, 0, ErrSchoolForbidden
	}
	if query != "" {
		return s.repo.Search(ctx, schoolID, query, p)
	}
	return s.repo.ListBySchool(ctx, schoolID, p)
}
