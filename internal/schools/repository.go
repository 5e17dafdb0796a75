package schools

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Repository provides PostgreSQL backed persistence.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

const schoolColumns = `id, name, code, timezone, is_active, created_at, updated_at`

// List returns all active schools ordered by name.
func (r *Repository) List(ctx context.Context) ([]School, error) {
	rows, err := r.pool.Query(ctx, `SELECT `+schoolColumns+` FROM schools WHERE is_active ORDER BY name, id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var schools []School
	for rows.Next() {
		school, err := scanSchool(rows)
		if err != nil {
			return nil, err
		}
		schools = append(schools, school)
	}
	return schools, rows.Err()
}

// Get returns one school by id.
func (r *Repository) Get(ctx context.Context, id int64) (School, error) {
	row := r.pool.QueryRow(ctx, `SELECT `+schoolColumns+` FROM schools WHERE id = $1`, id)
	school, err := scanSchool(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return School{}, ErrNotFound
	}
	return school, err
}

func scanSchool(row pgx.Row) (School, error) {
	var school School
	err := row.Scan(&school.ID, &school.Name, &school.Code, &school.Timezone, &school.IsActive, &school.CreatedAt, &school.UpdatedAt)
	return school, err
}
