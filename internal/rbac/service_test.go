package rbac

import (
	"context"
	"errors"
	"sort"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/scholaris-sis/scholaris-sis/internal/authz"
	"github.com/scholaris-sis/scholaris-sis/internal/catalog"
	"github.com/scholaris-sis/scholaris-sis/internal/shared"
	_ "github.com/scholaris-sis/scholaris-sis/testing"
)

type memoryRepo struct {
	roles     map[int64]Role
	roleKeys  map[int64][]string
	users     map[int64]TargetUser
	userRoles map[int64][]int64
	nextID    int64

	failAssignRole int64 // role id whose tx insert fails, for atomicity tests
}

func newMemoryRepo() *memoryRepo {
	return &memoryRepo{
		roles:     make(map[int64]Role),
		roleKeys:  make(map[int64][]string),
		users:     make(map[int64]TargetUser),
		userRoles: make(map[int64][]int64),
	}
}

func (r *memoryRepo) addRole(name string, schoolID *int64, keys ...string) Role {
	r.nextID++
	role := Role{ID: r.nextID, Name: name, SchoolID: schoolID}
	r.roles[role.ID] = role
	r.roleKeys[role.ID] = append([]string(nil), keys...)
	return role
}

func (r *memoryRepo) addUser(schoolID *int64, super bool) TargetUser {
	r.nextID++
	user := TargetUser{ID: r.nextID, SchoolID: schoolID, IsSuperAdmin: super}
	r.users[user.ID] = user
	return user
}

func (r *memoryRepo) GetRole(ctx context.Context, id int64) (Role, error) {
	role, ok := r.roles[id]
	if !ok {
		return Role{}, ErrNotFound
	}
	return role, nil
}

func (r *memoryRepo) ListRoles(ctx context.Context) ([]Role, error) {
	var roles []Role
	for _, role := range r.roles {
		roles = append(roles, role)
	}
	sort.Slice(roles, func(i, j int) bool { return roles[i].ID < roles[j].ID })
	return roles, nil
}

func (r *memoryRepo) ListRolesForSchool(ctx context.Context, schoolID int64) ([]Role, error) {
	var roles []Role
	for _, role := range r.roles {
		if role.SchoolID == nil || *role.SchoolID == schoolID {
			roles = append(roles, role)
		}
	}
	sort.Slice(roles, func(i, j int) bool { return roles[i].ID < roles[j].ID })
	return roles, nil
}

func (r *memoryRepo) CreateRole(ctx context.Context, name, description string, schoolID *int64) (Role, error) {
	r.nextID++
	role := Role{ID: r.nextID, Name: name, Description: description, SchoolID: schoolID}
	r.roles[role.ID] = role
	return role, nil
}

func (r *memoryRepo) UpdateRole(ctx context.Context, id int64, name, description string) (Role, error) {
	role, ok := r.roles[id]
	if !ok {
		return Role{}, ErrNotFound
	}
	role.Name = name
	role.Description = description
	r.roles[id] = role
	return role, nil
}

func (r *memoryRepo) DeleteRole(ctx context.Context, id int64) error {
	if _, ok := r.roles[id]; !ok {
		return ErrNotFound
	}
	delete(r.roles, id)
	delete(r.roleKeys, id)
	for userID, ids := range r.userRoles {
		kept := ids[:0]
		for _, roleID := range ids {
			if roleID != id {
				kept = append(kept, roleID)
			}
		}
		r.userRoles[userID] = kept
	}
	return nil
}

func (r *memoryRepo) RolePermissionKeys(ctx context.Context, roleIDs []int64) ([]string, error) {
	var keys []string
	for _, id := range roleIDs {
		keys = append(keys, r.roleKeys[id]...)
	}
	return keys, nil
}

func (r *memoryRepo) ListRoleKeys(ctx context.Context, roleID int64) ([]string, error) {
	return append([]string(nil), r.roleKeys[roleID]...), nil
}

func (r *memoryRepo) AttachPermission(ctx context.Context, roleID int64, key string) error {
	for _, existing := range r.roleKeys[roleID] {
		if existing == key {
			return nil
		}
	}
	r.roleKeys[roleID] = append(r.roleKeys[roleID], key)
	return nil
}

func (r *memoryRepo) DetachPermission(ctx context.Context, roleID int64, key string) error {
	kept := r.roleKeys[roleID][:0]
	for _, existing := range r.roleKeys[roleID] {
		if existing != key {
			kept = append(kept, existing)
		}
	}
	r.roleKeys[roleID] = kept
	return nil
}

func (r *memoryRepo) GetTargetUser(ctx context.Context, userID int64) (TargetUser, error) {
	user, ok := r.users[userID]
	if !ok {
		return TargetUser{}, ErrNotFound
	}
	return user, nil
}

func (r *memoryRepo) UserRoleIDs(ctx context.Context, userID int64) ([]int64, error) {
	return append([]int64(nil), r.userRoles[userID]...), nil
}

func (r *memoryRepo) AssignUserRole(ctx context.Context, userID, roleID int64) error {
	for _, existing := range r.userRoles[userID] {
		if existing == roleID {
			return nil
		}
	}
	r.userRoles[userID] = append(r.userRoles[userID], roleID)
	return nil
}

func (r *memoryRepo) RemoveUserRole(ctx context.Context, userID, roleID int64) error {
	kept := r.userRoles[userID][:0]
	for _, existing := range r.userRoles[userID] {
		if existing != roleID {
			kept = append(kept, existing)
		}
	}
	r.userRoles[userID] = kept
	return nil
}

type memoryTx struct {
	repo *memoryRepo
}

func (t *memoryTx) DeleteUserRoles(ctx context.Context, userID int64) error {
	delete(t.repo.userRoles, userID)
	return nil
}

func (t *memoryTx) AssignUserRole(ctx context.Context, userID, roleID int64) error {
	if t.repo.failAssignRole != 0 && roleID == t.repo.failAssignRole {
		return errors.New("insert failed")
	}
	return t.repo.AssignUserRole(ctx, userID, roleID)
}

// WithTx snapshots the assignment table and restores it when fn fails,
// mirroring transactional rollback.
func (r *memoryRepo) WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error {
	snapshot := make(map[int64][]int64, len(r.userRoles))
	for userID, ids := range r.userRoles {
		snapshot[userID] = append([]int64(nil), ids...)
	}
	if err := fn(ctx, &memoryTx{repo: r}); err != nil {
		r.userRoles = snapshot
		return err
	}
	return nil
}

func schoolClaims(userID, schoolID int64, perms ...string) authz.ClaimSet {
	return authz.NewClaimSet(userID, &schoolID, false, perms)
}

func superClaims() authz.ClaimSet {
	return authz.NewClaimSet(1, nil, true, nil)
}

func TestResolvePermissionsDedupesAndSorts(t *testing.T) {
	repo := newMemoryRepo()
	teacher := repo.addRole("Teacher", nil, catalog.PermStudentRead, catalog.PermGradeWrite)
	librarian := repo.addRole("Librarian", nil, catalog.PermBookRead, catalog.PermStudentRead)
	svc := NewService(repo, nil, nil)

	forward, err := svc.ResolvePermissions(context.Background(), []int64{teacher.ID, librarian.ID})
	require.NoError(t, err)
	require.Equal(t, []string{"Book.Read", "Grade.Write", "Student.Read"}, forward)

	backward, err := svc.ResolvePermissions(context.Background(), []int64{librarian.ID, teacher.ID})
	require.NoError(t, err)
	require.Equal(t, forward, backward)
}

func TestResolvePermissionsEmptyInput(t *testing.T) {
	svc := NewService(newMemoryRepo(), nil, nil)
	keys, err := svc.ResolvePermissions(context.Background(), nil)
	require.NoError(t, err)
	require.Empty(t, keys)
}

func TestResolvePermissionsExcludesDriftedKeys(t *testing.T) {
	repo := newMemoryRepo()
	role := repo.addRole("Drifted", nil, catalog.PermStudentRead, "Removed.Permission", "", "  ")
	svc := NewService(repo, nil, nil)

	keys, err := svc.ResolvePermissions(context.Background(), []int64{role.ID})
	require.NoError(t, err)
	require.Equal(t, []string{"Student.Read"}, keys)
}

func TestResolveUserPermissionsScenario(t *testing.T) {
	repo := newMemoryRepo()
	schoolT1 := int64(1)
	teacher := repo.addRole("Teacher", &schoolT1, catalog.PermStudentRead, catalog.PermGradeWrite)
	librarian := repo.addRole("Librarian", &schoolT1, catalog.PermBookRead)
	user := repo.addUser(&schoolT1, false)
	repo.userRoles[user.ID] = []int64{teacher.ID, librarian.ID}
	svc := NewService(repo, nil, nil)

	keys, err := svc.ResolveUserPermissions(context.Background(), user.ID)
	require.NoError(t, err)
	require.Equal(t, []string{"Book.Read", "Grade.Write", "Student.Read"}, keys)
}

func TestResolveUserPermissionsNoAssignments(t *testing.T) {
	repo := newMemoryRepo()
	user := repo.addUser(nil, false)
	svc := NewService(repo, nil, nil)

	keys, err := svc.ResolveUserPermissions(context.Background(), user.ID)
	require.NoError(t, err)
	require.Empty(t, keys)
}

func TestAssignRoleRejectsCrossSchool(t *testing.T) {
	repo := newMemoryRepo()
	schoolT1, schoolT2 := int64(1), int64(2)
	foreign := repo.addRole("T2 Registrar", &schoolT2)
	user := repo.addUser(&schoolT1, false)
	svc := NewService(repo, nil, nil)

	admin := schoolClaims(100, schoolT1, catalog.PermUserManage)
	err := svc.AssignRole(context.Background(), admin, user.ID, foreign.ID)
	require.ErrorIs(t, err, ErrTenantMismatch)
	require.Empty(t, repo.userRoles[user.ID], "no assignment row may be created")
}

func TestAssignRoleAllowsSystemRole(t *testing.T) {
	repo := newMemoryRepo()
	schoolT1 := int64(1)
	system := repo.addRole("Auditor", nil)
	user := repo.addUser(&schoolT1, false)
	svc := NewService(repo, nil, nil)

	admin := schoolClaims(100, schoolT1)
	require.NoError(t, svc.AssignRole(context.Background(), admin, user.ID, system.ID))
	require.Equal(t, []int64{system.ID}, repo.userRoles[user.ID])
}

func TestAssignRoleSuperuserCrossesSchools(t *testing.T) {
	repo := newMemoryRepo()
	schoolT1, schoolT2 := int64(1), int64(2)
	foreign := repo.addRole("T2 Registrar", &schoolT2)
	user := repo.addUser(&schoolT1, false)
	svc := NewService(repo, nil, nil)

	require.NoError(t, svc.AssignRole(context.Background(), superClaims(), user.ID, foreign.ID))
	require.Equal(t, []int64{foreign.ID}, repo.userRoles[user.ID])
}

func TestAssignRoleActorOutsideUsersSchool(t *testing.T) {
	repo := newMemoryRepo()
	schoolT1, schoolT2 := int64(1), int64(2)
	role := repo.addRole("Teacher", &schoolT2)
	user := repo.addUser(&schoolT2, false)
	svc := NewService(repo, nil, nil)

	foreignAdmin := schoolClaims(100, schoolT1)
	err := svc.AssignRole(context.Background(), foreignAdmin, user.ID, role.ID)
	require.ErrorIs(t, err, ErrTenantMismatch)
}

func TestAssignRolesValidatesBeforeWriting(t *testing.T) {
	repo := newMemoryRepo()
	schoolT1, schoolT2 := int64(1), int64(2)
	local := repo.addRole("Teacher", &schoolT1)
	foreign := repo.addRole("T2 Registrar", &schoolT2)
	user := repo.addUser(&schoolT1, false)
	svc := NewService(repo, nil, nil)

	admin := schoolClaims(100, schoolT1)
	err := svc.AssignRoles(context.Background(), admin, user.ID, []int64{local.ID, foreign.ID})
	require.ErrorIs(t, err, ErrTenantMismatch)
	require.Empty(t, repo.userRoles[user.ID])
}

func TestReplaceRolesClearsAll(t *testing.T) {
	repo := newMemoryRepo()
	schoolT1 := int64(1)
	teacher := repo.addRole("Teacher", &schoolT1)
	librarian := repo.addRole("Librarian", &schoolT1)
	user := repo.addUser(&schoolT1, false)
	repo.userRoles[user.ID] = []int64{teacher.ID, librarian.ID}
	svc := NewService(repo, nil, nil)

	admin := schoolClaims(100, schoolT1)
	require.NoError(t, svc.ReplaceRoles(context.Background(), admin, user.ID, nil))
	require.Empty(t, repo.userRoles[user.ID])
}

func TestReplaceRolesIsAtomic(t *testing.T) {
	repo := newMemoryRepo()
	schoolT1 := int64(1)
	teacher := repo.addRole("Teacher", &schoolT1)
	librarian := repo.addRole("Librarian", &schoolT1)
	broken := repo.addRole("Broken", &schoolT1)
	user := repo.addUser(&schoolT1, false)
	repo.userRoles[user.ID] = []int64{teacher.ID}
	repo.failAssignRole = broken.ID
	svc := NewService(repo, nil, nil)

	admin := schoolClaims(100, schoolT1)
	err := svc.ReplaceRoles(context.Background(), admin, user.ID, []int64{librarian.ID, broken.ID})
	require.Error(t, err)
	require.Equal(t, []int64{teacher.ID}, repo.userRoles[user.ID], "failed replace must leave the old set intact")
}

func TestRemoveRole(t *testing.T) {
	repo := newMemoryRepo()
	schoolT1 := int64(1)
	teacher := repo.addRole("Teacher", &schoolT1)
	librarian := repo.addRole("Librarian", &schoolT1)
	user := repo.addUser(&schoolT1, false)
	repo.userRoles[user.ID] = []int64{teacher.ID, librarian.ID}
	svc := NewService(repo, nil, nil)

	admin := schoolClaims(100, schoolT1)
	require.NoError(t, svc.RemoveRole(context.Background(), admin, user.ID, teacher.ID))
	require.Equal(t, []int64{librarian.ID}, repo.userRoles[user.ID])
}

func TestSetRolePermissionsReconciles(t *testing.T) {
	repo := newMemoryRepo()
	schoolT1 := int64(1)
	role := repo.addRole("Teacher", &schoolT1, catalog.PermStudentRead, catalog.PermGradeRead)
	svc := NewService(repo, nil, nil)

	admin := schoolClaims(100, schoolT1)
	err := svc.SetRolePermissions(context.Background(), admin, role.ID, []string{catalog.PermStudentRead, catalog.PermGradeWrite})
	require.NoError(t, err)

	keys, err := svc.RolePermissions(context.Background(), admin, role.ID)
	require.NoError(t, err)
	require.Equal(t, []string{"Grade.Write", "Student.Read"}, keys)
}

func TestSetRolePermissionsRejectsUnknownKey(t *testing.T) {
	repo := newMemoryRepo()
	schoolT1 := int64(1)
	role := repo.addRole("Teacher", &schoolT1)
	svc := NewService(repo, nil, nil)

	admin := schoolClaims(100, schoolT1)
	err := svc.SetRolePermissions(context.Background(), admin, role.ID, []string{"Nope.Nothing"})
	require.ErrorIs(t, err, ErrUnknownPermission)
}

func TestCreateSystemRoleRequiresSuperuser(t *testing.T) {
	repo := newMemoryRepo()
	svc := NewService(repo, nil, nil)

	_, err := svc.CreateRole(context.Background(), schoolClaims(100, 1), "Auditor", "", nil)
	require.ErrorIs(t, err, ErrTenantMismatch)

	role, err := svc.CreateRole(context.Background(), superClaims(), "Auditor", "", nil)
	require.NoError(t, err)
	require.True(t, role.IsSystem())
}

func TestDeleteRoleCascadesAssignments(t *testing.T) {
	repo := newMemoryRepo()
	schoolT1 := int64(1)
	role := repo.addRole("Teacher", &schoolT1)
	user := repo.addUser(&schoolT1, false)
	repo.userRoles[user.ID] = []int64{role.ID}
	svc := NewService(repo, nil, nil)

	admin := schoolClaims(100, schoolT1)
	require.NoError(t, svc.DeleteRole(context.Background(), admin, role.ID))
	require.Empty(t, repo.userRoles[user.ID])

	_, err := svc.GetRole(context.Background(), admin, role.ID)
	require.ErrorIs(t, err, ErrNotFound)
}

func TestListAvailableRolesBoundary(t *testing.T) {
	repo := newMemoryRepo()
	schoolT1, schoolT2 := int64(1), int64(2)
	repo.addRole("Auditor", nil)
	repo.addRole("T1 Teacher", &schoolT1)
	repo.addRole("T2 Teacher", &schoolT2)
	svc := NewService(repo, nil, nil)

	admin := schoolClaims(100, schoolT1)
	roles, err := svc.ListAvailableRoles(context.Background(), admin, schoolT1)
	require.NoError(t, err)
	names := make([]string, len(roles))
	for i, role := range roles {
		names[i] = role.Name
	}
	require.Equal(t, []string{"Auditor", "T1 Teacher"}, names)

	_, err = svc.ListAvailableRoles(context.Background(), admin, schoolT2)
	require.ErrorIs(t, err, ErrTenantMismatch)

	cross, err := svc.ListAvailableRoles(context.Background(), superClaims(), schoolT2)
	require.NoError(t, err)
	require.Len(t, cross, 2)
}

type captureAudit struct {
	entries []shared.AuditLog
}

func (c *captureAudit) Record(_ context.Context, log shared.AuditLog) error {
	c.entries = append(c.entries, log)
	return nil
}

func TestRoleMutationsWriteAuditTrail(t *testing.T) {
	repo := newMemoryRepo()
	schoolT1 := int64(1)
	role := repo.addRole("Teacher", &schoolT1)
	user := repo.addUser(&schoolT1, false)
	audit := &captureAudit{}
	svc := NewService(repo, audit, nil)

	admin := schoolClaims(100, schoolT1)
	require.NoError(t, svc.AssignRole(context.Background(), admin, user.ID, role.ID))
	require.NoError(t, svc.RemoveRole(context.Background(), admin, user.ID, role.ID))

	require.Len(t, audit.entries, 2)
	require.Equal(t, "user.role.assign", audit.entries[0].Action)
	require.Equal(t, int64(100), audit.entries[0].ActorID)
	require.Equal(t, "user.role.remove", audit.entries[1].Action)
}

func TestRejectedAssignmentLeavesNoAuditTrail(t *testing.T) {
	repo := newMemoryRepo()
	schoolT1, schoolT2 := int64(1), int64(2)
	role := repo.addRole("T2 Teacher", &schoolT2)
	user := repo.addUser(&schoolT1, false)
	audit := &captureAudit{}
	svc := NewService(repo, audit, nil)

	err := svc.AssignRole(context.Background(), schoolClaims(100, schoolT1), user.ID, role.ID)
	require.ErrorIs(t, err, ErrTenantMismatch)
	require.Empty(t, audit.entries)
}
