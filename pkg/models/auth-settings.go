package models

import (
	"time"

	"github.com/uptrace/bun"
)

// Auth flows.
const (
	AuthFlowSignup     = "signup"
	AuthFlowInvitation = "invitation"
)

// AuthSettings is a singleton row controlling how registration works.
type AuthSettings struct {
	bun.BaseModel `bun:"table:auth_settings,alias:as"`

	ID        int       `bun:",pk,nullzero" json:"id"`
	UpdatedAt time.Time `json:"updated_at"`
	AuthFlow  string    `bun:",nullzero" json:"auth_flow"`
}
