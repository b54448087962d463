package roles

import (
	"context"
	"testing"

	"github.com/dustlibrary/dust/pkg/errcodes"
	"github.com/dustlibrary/dust/pkg/models"
	"github.com/dustlibrary/dust/pkg/testutils"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestServiceList(t *testing.T) {
	t.Parallel()

	db := testutils.NewDB(t)
	svc := NewService(db)

	roles, err := svc.List(context.Background())
	require.NoError(t, err)
	require.Len(t, roles, 2)
	assert.Equal(t, models.RoleAdministrator, roles[0].Name)
	assert.Equal(t, models.RoleMember, roles[1].Name)
	assert.NotEmpty(t, roles[0].Permissions)
}

func TestServiceListPermissions(t *testing.T) {
	t.Parallel()

	db := testutils.NewDB(t)
	svc := NewService(db)

	permissions, err := svc.ListPermissions(context.Background())
	require.NoError(t, err)
	require.Len(t, permissions, 9)

	names := make([]string, 0, len(permissions))
	for _, p := range permissions {
		names = append(names, p.Name)
	}
	assert.Contains(t, names, models.PermissionBooksRead)
	assert.Contains(t, names, models.PermissionAdminFull)
}

func TestServiceCreateUpdateDelete(t *testing.T) {
	t.Parallel()

	db := testutils.NewDB(t)
	svc := NewService(db)
	ctx := context.Background()

	role, err := svc.Create(ctx, CreateRoleOptions{
		Name:            "curator",
		Description:     "Curates the catalog",
		PermissionNames: []string{models.PermissionBooksRead, models.PermissionBooksWrite},
	})
	require.NoError(t, err)
	assert.Len(t, role.Permissions, 2)
	assert.True(t, role.HasPermission(models.PermissionBooksWrite))

	_, err = svc.Create(ctx, CreateRoleOptions{Name: "CURATOR"})
	appErr := &errcodes.Error{}
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, 409, appErr.HTTPCode)

	_, err = svc.Create(ctx, CreateRoleOptions{
		Name:            "bogus",
		PermissionNames: []string{"no.such.permission"},
	})
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, 400, appErr.HTTPCode)

	grants := []string{models.PermissionBooksRead}
	role, err = svc.Update(ctx, role.ID, UpdateRoleOptions{PermissionNames: &grants})
	require.NoError(t, err)
	assert.Len(t, role.Permissions, 1)
	assert.False(t, role.HasPermission(models.PermissionBooksWrite))

	// Assigned users lose the role when it goes away.
	user := testutils.CreateUser(t, db, "curator-user", "curator")
	require.NoError(t, svc.Delete(ctx, role.ID))

	reloaded := testutils.LoadUser(t, db, user.ID)
	assert.Empty(t, reloaded.Roles)

	_, err = svc.Retrieve(ctx, role.ID)
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, 404, appErr.HTTPCode)
}

func TestServicePredefinedRolesProtected(t *testing.T) {
	t.Parallel()

	db := testutils.NewDB(t)
	svc := NewService(db)
	ctx := context.Background()

	roles, err := svc.List(ctx)
	require.NoError(t, err)
	admin := roles[0]
	require.Equal(t, models.RoleAdministrator, admin.Name)

	err = svc.Delete(ctx, admin.ID)
	appErr := &errcodes.Error{}
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, 409, appErr.HTTPCode)

	grants := []string{models.PermissionBooksRead}
	_, err = svc.Update(ctx, admin.ID, UpdateRoleOptions{PermissionNames: &grants})
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, 409, appErr.HTTPCode)

	// Descriptions stay editable.
	desc := "Runs the place"
	updated, err := svc.Update(ctx, admin.ID, UpdateRoleOptions{Description: &desc})
	require.NoError(t, err)
	assert.Equal(t, desc, updated.Description)
}
