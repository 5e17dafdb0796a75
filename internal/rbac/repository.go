package rbac

import (
	"context"
)

// RepositoryPort defines data access methods for roles and
// assignments.
type RepositoryPort interface {
	GetRole(ctx context.Context, id int64) (Role, error)
	ListRoles(ctx context.Context) ([]Role, error)
	ListRolesForSchool(ctx context.Context, schoolID int64) ([]Role, error)
	CreateRole(ctx context.Context, name, description string, schoolID *int64) (Role, error)
	UpdateRole(ctx context.Context, id int64, name, description string) (Role, error)
	DeleteRole(ctx context.Context, id int64) error

	RolePermissionKeys(ctx context.Context, roleIDs []int64) ([]string, error)
	ListRoleKeys(ctx context.Context, roleID int64) ([]string, error)
	AttachPermission(ctx context.Context, roleID int64, key string) error
	DetachPermission(ctx context.Context, roleID int64, key string) error

	GetTargetUser(ctx context.Context, userID int64) (TargetUser, error)
	UserRoleIDs(ctx context.Context, userID int64) ([]int64, error)
	AssignUserRole(ctx context.Context, userID, roleID int64) error
	RemoveUserRole(ctx context.Context, userID, roleID int64) error

	// WithTx runs fn inside one transaction; used where delete and
	// insert must not be separately observable.
	WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error
}

// TxRepository is the transactional subset used by ReplaceRoles.
type TxRepository interface {
	DeleteUserRoles(ctx context.Context, userID int64) error
	AssignUserRole(ctx context.Context, userID, roleID int64) error
}
