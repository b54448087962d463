package invitations

import (
	"context"
	"database/sql"
	"time"

	"github.com/dustlibrary/dust/pkg/auth"
	"github.com/dustlibrary/dust/pkg/errcodes"
	"github.com/dustlibrary/dust/pkg/models"
	"github.com/pkg/errors"
	"github.com/uptrace/bun"
)

// DefaultExpiry is how long a fresh invitation stays valid.
const DefaultExpiry = 7 * 24 * time.Hour

type Service struct {
	db        *bun.DB
	jwtSecret []byte
	expiry    time.Duration
}

func NewService(db *bun.DB, jwtSecret []byte, expiry time.Duration) *Service {
	if expiry <= 0 {
		expiry = DefaultExpiry
	}
	return &Service{db: db, jwtSecret: jwtSecret, expiry: expiry}
}

// Create issues an invitation for the email and returns the plaintext token.
// Only the keyed hash is stored; the plaintext can't be recovered later.
func (svc *Service) Create(ctx context.Context, email string) (*models.Invitation, string, error) {
	pending, err := svc.db.
		NewSelect().
		Model((*models.Invitation)(nil)).
		Where("i.email = ? COLLATE NOCASE", email).
		Where("i.consumed_at IS NULL").
		Where("i.expires_at > ?", time.Now()).
		Exists(ctx)
	if err != nil {
		return nil, "", errors.WithStack(err)
	}
	if pending {
		return nil, "", errcodes.Conflict("An unconsumed invitation for that email already exists.")
	}

	token, err := auth.GenerateInvitationToken()
	if err != nil {
		return nil, "", err
	}

	invitation := &models.Invitation{
		CreatedAt: time.Now(),
		Email:     email,
		TokenHash: auth.HashInvitationToken(svc.jwtSecret, token),
		ExpiresAt: time.Now().Add(svc.expiry),
	}
	_, err = svc.db.
		NewInsert().
		Model(invitation).
		Returning("id").
		Exec(ctx)
	if err != nil {
		return nil, "", errors.WithStack(err)
	}

	return invitation, token, nil
}

// List returns all invitations, newest first.
func (svc *Service) List(ctx context.Context) ([]*models.Invitation, error) {
	invitations := []*models.Invitation{}
	err := svc.db.
		NewSelect().
		Model(&invitations).
		Order("i.created_at DESC").
		Scan(ctx)
	if err != nil {
		return nil, errors.WithStack(err)
	}

	return invitations, nil
}

// Revoke deletes an unconsumed invitation so its token can no longer be used.
func (svc *Service) Revoke(ctx context.Context, id int) error {
	invitation := &models.Invitation{}
	err := svc.db.
		NewSelect().
		Model(invitation).
		Where("i.id = ?", id).
		Scan(ctx)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return errcodes.NotFound("Invitation")
		}
		return errors.WithStack(err)
	}
	if invitation.ConsumedAt != nil {
		return errcodes.Conflict("A consumed invitation can't be revoked.")
	}

	_, err = svc.db.
		NewDelete().
		Model((*models.Invitation)(nil)).
		Where("i.id = ?", id).
		Exec(ctx)
	return errors.WithStack(err)
}
