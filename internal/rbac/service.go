package rbac

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"log/slog"

	"golang.org/x/sync/singleflight"

	"github.com/scholaris-sis/scholaris-sis/internal/authz"
	"github.com/scholaris-sis/scholaris-sis/internal/catalog"
	"github.com/scholaris-sis/scholaris-sis/internal/shared"
)

// AuditRecorder persists audit trail entries for role mutations.
type AuditRecorder interface {
	Record(ctx context.Context, log shared.AuditLog) error
}

// Service orchestrates role management and permission aggregation.
type Service struct {
	repo   RepositoryPort
	audit  AuditRecorder
	logger *slog.Logger
	group  singleflight.Group
}

// NewService constructs a Service backed by the provided repository.
// audit may be nil, in which case mutations are not recorded.
func NewService(repo RepositoryPort, audit AuditRecorder, logger *slog.Logger) *Service {
	return &Service{repo: repo, audit: audit, logger: logger}
}

// recordAudit writes a best-effort audit entry. Failures are logged,
// never propagated: the mutation itself already succeeded.
func (s *Service) recordAudit(ctx context.Context, actor authz.ClaimSet, action, entity string, entityID int64, meta map[string]any) {
	if s.audit == nil {
		return
	}
	err := s.audit.Record(ctx, shared.AuditLog{
		ActorID:  actor.UserID,
		Action:   action,
		Entity:   entity,
		EntityID: strconv.FormatInt(entityID, 10),
		Meta:     meta,
	})
	if err != nil && s.logger != nil {
		s.logger.Warn("audit record failed", slog.String("action", action), slog.Any("error", err))
	}
}

// ResolvePermissions returns the deduplicated, sorted permission keys
// granted by the given roles. Join rows whose key is blank or missing
// from the catalog are excluded: that is data drift, logged and never
// surfaced to the caller as an error.
func (s *Service) ResolvePermissions(ctx context.Context, roleIDs []int64) ([]string, error) {
	if len(roleIDs) == 0 {
		return []string{}, nil
	}
	raw, err := s.repo.RolePermissionKeys(ctx, roleIDs)
	if err != nil {
		return nil, fmt.Errorf("rbac: resolve permissions: %w", err)
	}
	keys := make([]string, 0, len(raw))
	for _, key := range raw {
		key = strings.TrimSpace(key)
		if key == "" {
			continue
		}
		if !catalog.Exists(key) {
			if s.logger != nil {
				s.logger.Warn("permission key outside catalog, excluding", slog.String("key", key))
			}
			continue
		}
		keys = append(keys, key)
	}
	return authz.NormalizeKeys(keys), nil
}

// ResolveUserPermissions resolves the user's assigned roles and
// delegates to ResolvePermissions. A user without role assignments
// holds no permissions. Concurrent resolutions for the same user
// collapse into one lookup.
func (s *Service) ResolveUserPermissions(ctx context.Context, userID int64) ([]string, error) {
	result, err, _ := s.group.Do(strconv.FormatInt(userID, 10), func() (any, error) {
		roleIDs, err := s.repo.UserRoleIDs(ctx, userID)
		if err != nil {
			return nil, fmt.Errorf("rbac: user roles: %w", err)
		}
		return s.ResolvePermissions(ctx, roleIDs)
	})
	if err != nil {
		return nil, err
	}
	return result.([]string), nil
}

// GetRole fetches a role, enforcing the school boundary on reads of
// non-system roles.
func (s *Service) GetRole(ctx context.Context, actor authz.ClaimSet, id int64) (Role, error) {
	role, err := s.repo.GetRole(ctx, id)
	if err != nil {
		return Role{}, err
	}
	if !role.IsSystem() && !actor.CanAccessSchool(*role.SchoolID) {
		return Role{}, ErrTenantMismatch
	}
	return role, nil
}

// ListAvailableRoles returns the roles assignable within a school:
// system roles plus the school's own.
func (s *Service) ListAvailableRoles(ctx context.Context, actor authz.ClaimSet, schoolID int64) ([]Role, error) {
	if !actor.CanAccessSchool(schoolID) {
		return nil, ErrTenantMismatch
	}
	return s.repo.ListRolesForSchool(ctx, schoolID)
}

// ListAllRoles returns every role across schools; superuser only.
func (s *Service) ListAllRoles(ctx context.Context, actor authz.ClaimSet) ([]Role, error) {
	if !actor.IsSuperAdmin {
		return nil, ErrTenantMismatch
	}
	return s.repo.ListRoles(ctx)
}

// CreateRole inserts a new role. A nil schoolID creates a system role,
// which only the superuser may do.
func (s *Service) CreateRole(ctx context.Context, actor authz.ClaimSet, name, description string, schoolID *int64) (Role, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return Role{}, errors.New("rbac: role name required")
	}
	if schoolID == nil {
		if !actor.IsSuperAdmin {
			return Role{}, ErrTenantMismatch
		}
	} else if !actor.CanAccessSchool(*schoolID) {
		return Role{}, ErrTenantMismatch
	}
	role, err := s.repo.CreateRole(ctx, name, strings.TrimSpace(description), schoolID)
	if err != nil {
		return Role{}, err
	}
	s.recordAudit(ctx, actor, "role.create", "role", role.ID, map[string]any{"name": role.Name})
	return role, nil
}

// UpdateRole updates name and description of an existing role.
func (s *Service) UpdateRole(ctx context.Context, actor authz.ClaimSet, id int64, name, description string) (Role, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return Role{}, errors.New("rbac: role name required")
	}
	if _, err := s.GetRole(ctx, actor, id); err != nil {
		return Role{}, err
	}
	role, err := s.repo.UpdateRole(ctx, id, name, strings.TrimSpace(description))
	if err != nil {
		return Role{}, err
	}
	s.recordAudit(ctx, actor, "role.update", "role", role.ID, map[string]any{"name": role.Name})
	return role, nil
}

// DeleteRole removes a role together with its assignment rows.
func (s *Service) DeleteRole(ctx context.Context, actor authz.ClaimSet, id int64) error {
	if _, err := s.GetRole(ctx, actor, id); err != nil {
		return err
	}
	if err := s.repo.DeleteRole(ctx, id); err != nil {
		return err
	}
	s.recordAudit(ctx, actor, "role.delete", "role", id, nil)
	return nil
}

// RolePermissions returns a role's permission keys in sorted order.
func (s *Service) RolePermissions(ctx context.Context, actor authz.ClaimSet, roleID int64) ([]string, error) {
	if _, err := s.GetRole(ctx, actor, roleID); err != nil {
		return nil, err
	}
	keys, err := s.repo.ListRoleKeys(ctx, roleID)
	if err != nil {
		return nil, err
	}
	return authz.NormalizeKeys(keys), nil
}

// SetRolePermissions replaces a role's permission set by reconciling
// the join rows: attach keys not yet present, detach keys no longer
// wanted. Keys outside the catalog are rejected up front.
func (s *Service) SetRolePermissions(ctx context.Context, actor authz.ClaimSet, roleID int64, keys []string) error {
	if _, err := s.GetRole(ctx, actor, roleID); err != nil {
		return err
	}
	wanted := authz.NormalizeKeys(keys)
	for _, key := range wanted {
		if !catalog.Exists(key) {
			return fmt.Errorf("%w: %q", ErrUnknownPermission, key)
		}
	}
	current, err := s.repo.ListRoleKeys(ctx, roleID)
	if err != nil {
		return err
	}
	existing := make(map[string]struct{}, len(current))
	for _, key := range current {
		existing[key] = struct{}{}
	}
	keep := make(map[string]struct{}, len(wanted))
	for _, key := range wanted {
		keep[key] = struct{}{}
		if _, ok := existing[key]; !ok {
			if err := s.repo.AttachPermission(ctx, roleID, key); err != nil {
				return err
			}
		}
	}
	for key := range existing {
		if _, ok := keep[key]; !ok {
			if err := s.repo.DetachPermission(ctx, roleID, key); err != nil {
				return err
			}
		}
	}
	s.recordAudit(ctx, actor, "role.permissions.set", "role", roleID, map[string]any{"keys": wanted})
	return nil
}

// AssignRole assigns a role to the given user after validating the
// school boundary.
func (s *Service) AssignRole(ctx context.Context, actor authz.ClaimSet, userID, roleID int64) error {
	if _, err := s.authorizeAssignment(ctx, actor, userID, roleID); err != nil {
		return err
	}
	if err := s.repo.AssignUserRole(ctx, userID, roleID); err != nil {
		return err
	}
	s.recordAudit(ctx, actor, "user.role.assign", "user", userID, map[string]any{"role_id": roleID})
	return nil
}

// AssignRoles assigns several roles to the user. All roles are
// validated before any row is written, so a mismatch rejects the whole
// call.
func (s *Service) AssignRoles(ctx context.Context, actor authz.ClaimSet, userID int64, roleIDs []int64) error {
	if err := s.authorizeAssignments(ctx, actor, userID, roleIDs); err != nil {
		return err
	}
	for _, roleID := range roleIDs {
		if err := s.repo.AssignUserRole(ctx, userID, roleID); err != nil {
			return err
		}
	}
	s.recordAudit(ctx, actor, "user.roles.assign", "user", userID, map[string]any{"role_ids": roleIDs})
	return nil
}

// RemoveRole removes one role from the user.
func (s *Service) RemoveRole(ctx context.Context, actor authz.ClaimSet, userID, roleID int64) error {
	if _, err := s.authorizeAssignment(ctx, actor, userID, roleID); err != nil {
		return err
	}
	if err := s.repo.RemoveUserRole(ctx, userID, roleID); err != nil {
		return err
	}
	s.recordAudit(ctx, actor, "user.role.remove", "user", userID, map[string]any{"role_id": roleID})
	return nil
}

// ReplaceRoles atomically swaps the user's role set: either every old
// row is removed and every new one inserted, or nothing changes. An
// empty roleIDs clears all assignments.
func (s *Service) ReplaceRoles(ctx context.Context, actor authz.ClaimSet, userID int64, roleIDs []int64) error {
	if err := s.authorizeAssignments(ctx, actor, userID, roleIDs); err != nil {
		return err
	}
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		if err := tx.DeleteUserRoles(ctx, userID); err != nil {
			return err
		}
		for _, roleID := range roleIDs {
			if err := tx.AssignUserRole(ctx, userID, roleID); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return err
	}
	s.recordAudit(ctx, actor, "user.roles.replace", "user", userID, map[string]any{"role_ids": roleIDs})
	return nil
}

// RemoveAllRoles clears every role assignment of the user.
func (s *Service) RemoveAllRoles(ctx context.Context, actor authz.ClaimSet, userID int64) error {
	return s.ReplaceRoles(ctx, actor, userID, nil)
}

// UserRoleIDs returns the ids of the user's assigned roles, boundary
// checked against the acting principal.
func (s *Service) UserRoleIDs(ctx context.Context, actor authz.ClaimSet, userID int64) ([]int64, error) {
	target, err := s.repo.GetTargetUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	if err := s.checkActorReachesUser(actor, target); err != nil {
		return nil, err
	}
	return s.repo.UserRoleIDs(ctx, userID)
}

// authorizeAssignment resolves the target user's and role's schools
// and rejects cross-school assignments. The superuser may assign a
// foreign non-system role deliberately (initial provisioning); that is
// the one designed exception to strict isolation.
func (s *Service) authorizeAssignment(ctx context.Context, actor authz.ClaimSet, userID, roleID int64) (Role, error) {
	target, err := s.repo.GetTargetUser(ctx, userID)
	if err != nil {
		return Role{}, err
	}
	if err := s.checkActorReachesUser(actor, target); err != nil {
		return Role{}, err
	}
	role, err := s.repo.GetRole(ctx, roleID)
	if err != nil {
		return Role{}, err
	}
	if err := checkRoleFitsUser(actor, role, target); err != nil {
		return Role{}, err
	}
	return role, nil
}

func (s *Service) authorizeAssignments(ctx context.Context, actor authz.ClaimSet, userID int64, roleIDs []int64) error {
	target, err := s.repo.GetTargetUser(ctx, userID)
	if err != nil {
		return err
	}
	if err := s.checkActorReachesUser(actor, target); err != nil {
		return err
	}
	for _, roleID := range roleIDs {
		role, err := s.repo.GetRole(ctx, roleID)
		if err != nil {
			return err
		}
		if err := checkRoleFitsUser(actor, role, target); err != nil {
			return err
		}
	}
	return nil
}

func (s *Service) checkActorReachesUser(actor authz.ClaimSet, target TargetUser) error {
	if actor.IsSuperAdmin {
		return nil
	}
	if target.SchoolID == nil || !actor.CanAccessSchool(*target.SchoolID) {
		return fmt.Errorf("%w: user %d is outside the acting school", ErrTenantMismatch, target.ID)
	}
	return nil
}

func checkRoleFitsUser(actor authz.ClaimSet, role Role, target TargetUser) error {
	if role.IsSystem() || actor.IsSuperAdmin {
		return nil
	}
	if target.SchoolID == nil || *role.SchoolID != *target.SchoolID {
		return fmt.Errorf("%w: role %d does not belong to the user's school", ErrTenantMismatch, role.ID)
	}
	return nil
}
