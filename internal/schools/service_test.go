package schools

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/scholaris-sis/scholaris-sis/internal/authz"
)

type memoryRepo struct {
	schools map[int64]School
}

func (m *memoryRepo) List(context.Context) ([]School, error) {
	var out []School
	for _, s := range m.schools {
		out = append(out, s)
	}
	return out, nil
}

func (m *memoryRepo) Get(_ context.Context, id int64) (School, error) {
	school, ok := m.schools[id]
	if !ok {
		return School{}, ErrNotFound
	}
	return school, nil
}

func schoolPtr(id int64) *int64 { return &id }

func seedRepo() *memoryRepo {
	return &memoryRepo{schools: map[int64]School{
		1: {ID: 1, Name: "Northside High", Code: "NSH", IsActive: true},
		2: {ID: 2, Name: "Riverdale Academy", Code: "RVA", IsActive: true},
	}}
}

func TestListSchoolsTenantSeesOwnOnly(t *testing.T) {
	svc := NewService(seedRepo())
	actor := authz.NewClaimSet(10, schoolPtr(1), false, nil)

	schools, err := svc.ListSchools(context.Background(), actor)
	require.NoError(t, err)
	require.Len(t, schools, 1)
	require.Equal(t, int64(1), schools[0].ID)
}

func TestListSchoolsSuperuserSeesAll(t *testing.T) {
	svc := NewService(seedRepo())
	actor := authz.NewClaimSet(99, nil, true, nil)

	schools, err := svc.ListSchools(context.Background(), actor)
	require.NoError(t, err)
	require.Len(t, schools, 2)
}

func TestGetSchoolForbiddenAcrossTenants(t *testing.T) {
	svc := NewService(seedRepo())
	actor := authz.NewClaimSet(10, schoolPtr(1), false, nil)

	_, err := svc.GetSchool(context.Background(), actor, 2)
	require.ErrorIs(t, err, ErrSchoolForbidden)
}

func TestGetSchoolNotFound(t *testing.T) {
	svc := NewService(seedRepo())
	actor := authz.NewClaimSet(99, nil, true, nil)

	_, err := svc.GetSchool(context.Background(), actor, 42)
	require.ErrorIs(t, err, ErrNotFound)
}
