package models

import (
	"time"

	"github.com/uptrace/bun"
)

// Invitation is a single-use registration credential. Only the keyed hash of
// the token is stored; the plaintext is returned once at creation.
type Invitation struct {
	bun.BaseModel `bun:"table:invitations,alias:i"`

	ID         int        `bun:",pk,nullzero" json:"id"`
	CreatedAt  time.Time  `json:"created_at"`
	Email      string     `bun:",nullzero" json:"email"`
	TokenHash  string     `bun:",nullzero" json:"-"`
	ExpiresAt  time.Time  `json:"expires_at"`
	ConsumedAt *time.Time `json:"consumed_at,omitempty"`
}
