package auth

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/dustlibrary/dust/pkg/errcodes"
	"github.com/dustlibrary/dust/pkg/models"
	"github.com/dustlibrary/dust/pkg/testutils"
	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newEchoContext(t *testing.T, authorization string) echo.Context {
	t.Helper()

	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, "/books", nil)
	if authorization != "" {
		req.Header.Set(echo.HeaderAuthorization, authorization)
	}
	rec := httptest.NewRecorder()
	return e.NewContext(req, rec)
}

func TestMiddlewareAuthenticate(t *testing.T) {
	t.Parallel()

	db := testutils.NewDB(t)
	svc := NewService(db, testSecret)
	mw := NewMiddleware(svc)

	user := testutils.CreateUser(t, db, "alice", models.RoleMember)
	token, err := svc.GenerateToken(user)
	require.NoError(t, err)

	next := func(c echo.Context) error { return c.NoContent(http.StatusOK) }

	t.Run("valid token attaches user", func(t *testing.T) {
		c := newEchoContext(t, "Bearer "+token)
		err := mw.Authenticate(next)(c)
		require.NoError(t, err)

		got := UserFromContext(c)
		require.NotNil(t, got)
		assert.Equal(t, user.ID, got.ID)
		userID, ok := c.Get(ContextKeyUserID).(int)
		assert.True(t, ok)
		assert.Equal(t, user.ID, userID)
	})

	t.Run("missing header", func(t *testing.T) {
		c := newEchoContext(t, "")
		err := mw.Authenticate(next)(c)
		appErr := &errcodes.Error{}
		require.ErrorAs(t, err, &appErr)
		assert.Equal(t, http.StatusUnauthorized, appErr.HTTPCode)
	})

	t.Run("non-bearer scheme", func(t *testing.T) {
		c := newEchoContext(t, "Basic dXNlcjpwYXNz")
		err := mw.Authenticate(next)(c)
		appErr := &errcodes.Error{}
		require.ErrorAs(t, err, &appErr)
		assert.Equal(t, http.StatusUnauthorized, appErr.HTTPCode)
	})

	t.Run("garbage token", func(t *testing.T) {
		c := newEchoContext(t, "Bearer garbage")
		err := mw.Authenticate(next)(c)
		appErr := &errcodes.Error{}
		require.ErrorAs(t, err, &appErr)
		assert.Equal(t, http.StatusUnauthorized, appErr.HTTPCode)
	})
}

func TestMiddlewareAuthenticate_DeactivatedUser(t *testing.T) {
	t.Parallel()

	db := testutils.NewDB(t)
	svc := NewService(db, testSecret)
	mw := NewMiddleware(svc)

	user := testutils.CreateUser(t, db, "alice", models.RoleMember)
	token, err := svc.GenerateToken(user)
	require.NoError(t, err)

	_, err = db.NewUpdate().
		Model((*models.User)(nil)).
		Set("is_active = ?", false).
		Where("id = ?", user.ID).
		Exec(context.Background())
	require.NoError(t, err)

	c := newEchoContext(t, "Bearer "+token)
	err = mw.Authenticate(func(c echo.Context) error { return nil })(c)
	appErr := &errcodes.Error{}
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, http.StatusUnauthorized, appErr.HTTPCode)
}

func TestMiddlewareRequirePermission(t *testing.T) {
	t.Parallel()

	db := testutils.NewDB(t)
	svc := NewService(db, testSecret)
	mw := NewMiddleware(svc)

	member := testutils.CreateUser(t, db, "member", models.RoleMember)
	admin := testutils.CreateUser(t, db, "admin", models.RoleAdministrator)

	next := func(c echo.Context) error { return c.NoContent(http.StatusOK) }

	t.Run("allowed", func(t *testing.T) {
		c := newEchoContext(t, "")
		c.Set(ContextKeyUser, member)
		err := mw.RequirePermission(models.PermissionBooksRead)(next)(c)
		assert.NoError(t, err)
	})

	t.Run("denied", func(t *testing.T) {
		c := newEchoContext(t, "")
		c.Set(ContextKeyUser, member)
		err := mw.RequirePermission(models.PermissionAdminFull)(next)(c)
		appErr := &errcodes.Error{}
		require.ErrorAs(t, err, &appErr)
		assert.Equal(t, http.StatusForbidden, appErr.HTTPCode)
	})

	t.Run("no user in context", func(t *testing.T) {
		c := newEchoContext(t, "")
		err := mw.RequirePermission(models.PermissionBooksRead)(next)(c)
		appErr := &errcodes.Error{}
		require.ErrorAs(t, err, &appErr)
		assert.Equal(t, http.StatusUnauthorized, appErr.HTTPCode)
	})

	t.Run("any permission", func(t *testing.T) {
		c := newEchoContext(t, "")
		c.Set(ContextKeyUser, admin)
		err := mw.RequireAnyPermission(models.PermissionBooksManage, models.PermissionAdminFull)(next)(c)
		assert.NoError(t, err)

		c = newEchoContext(t, "")
		c.Set(ContextKeyUser, member)
		err = mw.RequireAnyPermission(models.PermissionBooksManage, models.PermissionAdminFull)(next)(c)
		appErr := &errcodes.Error{}
		require.ErrorAs(t, err, &appErr)
		assert.Equal(t, http.StatusForbidden, appErr.HTTPCode)
	})
}
