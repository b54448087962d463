package invitations

import (
	"context"
	"testing"
	"time"

	"github.com/dustlibrary/dust/pkg/auth"
	"github.com/dustlibrary/dust/pkg/errcodes"
	"github.com/dustlibrary/dust/pkg/models"
	"github.com/dustlibrary/dust/pkg/testutils"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testSecret = "0123456789abcdef0123456789abcdef"

func TestServiceCreate(t *testing.T) {
	t.Parallel()

	db := testutils.NewDB(t)
	svc := NewService(db, []byte(testSecret), 0)
	ctx := context.Background()

	invitation, token, err := svc.Create(ctx, "b@example.com")
	require.NoError(t, err)
	assert.NotEmpty(t, token)
	assert.Equal(t, "b@example.com", invitation.Email)
	assert.Equal(t, auth.HashInvitationToken([]byte(testSecret), token), invitation.TokenHash)
	assert.WithinDuration(t, time.Now().Add(DefaultExpiry), invitation.ExpiresAt, time.Minute)

	// One pending invitation per email.
	_, _, err = svc.Create(ctx, "b@example.com")
	appErr := &errcodes.Error{}
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, 409, appErr.HTTPCode)
}

func TestServiceCreate_TokenRegisters(t *testing.T) {
	t.Parallel()

	db := testutils.NewDB(t)
	svc := NewService(db, []byte(testSecret), 0)
	authService := auth.NewService(db, testSecret)
	ctx := context.Background()

	testutils.CreateUser(t, db, "admin", models.RoleAdministrator)
	_, err := authService.UpdateAuthFlow(ctx, models.AuthFlowInvitation)
	require.NoError(t, err)

	_, token, err := svc.Create(ctx, "b@example.com")
	require.NoError(t, err)

	user, err := authService.Register(ctx, auth.RegisterOptions{
		Username:        "b",
		Email:           "b@example.com",
		Password:        "pw123456",
		InvitationToken: token,
	})
	require.NoError(t, err)
	assert.Equal(t, "b", user.Username)

	// A consumed token can't register again.
	_, err = authService.Register(ctx, auth.RegisterOptions{
		Username:        "c",
		Email:           "c@example.com",
		Password:        "pw123456",
		InvitationToken: token,
	})
	appErr := &errcodes.Error{}
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, 401, appErr.HTTPCode)
}

func TestServiceListAndRevoke(t *testing.T) {
	t.Parallel()

	db := testutils.NewDB(t)
	svc := NewService(db, []byte(testSecret), time.Hour)
	ctx := context.Background()

	first, _, err := svc.Create(ctx, "first@example.com")
	require.NoError(t, err)
	_, _, err = svc.Create(ctx, "second@example.com")
	require.NoError(t, err)

	invitations, err := svc.List(ctx)
	require.NoError(t, err)
	assert.Len(t, invitations, 2)

	require.NoError(t, svc.Revoke(ctx, first.ID))

	invitations, err = svc.List(ctx)
	require.NoError(t, err)
	assert.Len(t, invitations, 1)

	appErr := &errcodes.Error{}
	err = svc.Revoke(ctx, first.ID)
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, 404, appErr.HTTPCode)
}

func TestServiceRevoke_ConsumedProtected(t *testing.T) {
	t.Parallel()

	db := testutils.NewDB(t)
	svc := NewService(db, []byte(testSecret), time.Hour)
	ctx := context.Background()

	invitation, _, err := svc.Create(ctx, "b@example.com")
	require.NoError(t, err)

	now := time.Now()
	_, err = db.NewUpdate().
		Model((*models.Invitation)(nil)).
		Set("consumed_at = ?", now).
		Where("id = ?", invitation.ID).
		Exec(ctx)
	require.NoError(t, err)

	err = svc.Revoke(ctx, invitation.ID)
	appErr := &errcodes.Error{}
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, 409, appErr.HTTPCode)
}
