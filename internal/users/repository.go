package users

import (
	"context"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/scholaris-sis/scholaris-sis/internal/rbac"
	"github.com/scholaris-sis/scholaris-sis/internal/shared"
)

// Repository provides PostgreSQL backed persistence.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

const userColumns = `id, email, name, school_id, is_super_admin, is_active, created_at, updated_at`

// ListBySchool returns one page of the school's users with their
// roles, plus the total count.
func (r *Repository) ListBySchool(ctx context.Context, schoolID int64, p shared.Pagination) ([]UserWithRoles, int, error) {
	var total int
	if err := r.pool.QueryRow(ctx, `SELECT COUNT(*) FROM users WHERE school_id = $1`, schoolID).Scan(&total); err != nil {
		return nil, 0, err
	}
	rows, err := r.pool.Query(ctx,
		`SELECT `+userColumns+` FROM users WHERE school_id = $1 ORDER BY name, id LIMIT $2 OFFSET $3`,
		schoolID, p.Limit(), p.Offset())
	if err != nil {
		return nil, 0, err
	}
	users, err := collectUsers(rows)
	if err != nil {
		return nil, 0, err
	}
	withRoles, err := r.attachRoles(ctx, users)
	if err != nil {
		return nil, 0, err
	}
	return withRoles, total, nil
}

// Search returns users of the school whose name or email matches the
// query, with their roles.
func (r *Repository) Search(ctx context.Context, schoolID int64, query string, p shared.Pagination) ([]UserWithRoles, int, error) {
	pattern := "%" + query + "%"
	var total int
	if err := r.pool.QueryRow(ctx,
		`SELECT COUNT(*) FROM users WHERE school_id = $1 AND (name ILIKE $2 OR email ILIKE $2)`,
		schoolID, pattern).Scan(&total); err != nil {
		return nil, 0, err
	}
	rows, err := r.pool.Query(ctx,
		`SELECT `+userColumns+` FROM users WHERE school_id = $1 AND (name ILIKE $2 OR email ILIKE $2) ORDER BY name, id LIMIT $3 OFFSET $4`,
		schoolID, pattern, p.Limit(), p.Offset())
	if err != nil {
		return nil, 0, err
	}
	users, err := collectUsers(rows)
	if err != nil {
		return nil, 0, err
	}
	withRoles, err := r.attachRoles(ctx, users)
	if err != nil {
		return nil, 0, err
	}
	return withRoles, total, nil
}

func collectUsers(rows pgx.Rows) ([]User, error) {
	defer rows.Close()
	var users []User
	for rows.Next() {
		var user User
		if err := rows.Scan(&user.ID, &user.Email, &user.Name, &user.SchoolID, &user.IsSuperAdmin, &user.IsActive, &user.CreatedAt, &user.UpdatedAt); err != nil {
			return nil, err
		}
		users = append(users, user)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return users, nil
}

// attachRoles loads the roles of all given users in one query.
func (r *Repository) attachRoles(ctx context.Context, users []User) ([]UserWithRoles, error) {
	out := make([]UserWithRoles, len(users))
	if len(users) == 0 {
		return out, nil
	}
	ids := make([]int64, len(users))
	for i, user := range users {
		out[i] = UserWithRoles{User: user}
		ids[i] = user.ID
	}
	rows, err := r.pool.Query(ctx,
		`SELECT ur.user_id, r.id, r.name, r.description, r.school_id, r.created_at, r.updated_at
		 FROM user_roles ur
		 JOIN roles r ON r.id = ur.role_id
		 WHERE ur.user_id = ANY($1)
		 ORDER BY r.name, r.id`, ids)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	byUser := make(map[int64][]rbac.Role, len(users))
	for rows.Next() {
		var userID int64
		var role rbac.Role
		if err := rows.Scan(&userID, &role.ID, &role.Name, &role.Description, &role.SchoolID, &role.CreatedAt, &role.UpdatedAt); err != nil {
			return nil, err
		}
		byUser[userID] = append(byUser[userID], role)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	for i := range out {
		out[i].Roles = byUser[out[i].User.ID]
	}
	return out, nil
}
