package models

import (
	"strings"
	"time"

	"github.com/uptrace/bun"
)

type Author struct {
	bun.BaseModel `bun:"table:authors,alias:a"`

	ID             int       `bun:",pk,nullzero" json:"id"`
	CreatedAt      time.Time `json:"created_at"`
	UpdatedAt      time.Time `json:"updated_at"`
	Name           string    `bun:",nullzero" json:"name"`
	NormalizedName string    `bun:",nullzero" json:"-"`
	Biography      *string   `json:"biography,omitempty"`
	BirthDate      *string   `json:"birth_date,omitempty"`
	DeathDate      *string   `json:"death_date,omitempty"`
	Website        *string   `json:"website,omitempty"`

	BookCount int `bun:",scanonly" json:"book_count"`

	Books []*Book `bun:"rel:has-many,join:id=author_id" json:"books,omitempty"`
}

// NormalizeAuthorName folds an author name into the form used for the unique
// index, so "F. Scott Fitzgerald" and "f.  scott fitzgerald" dedupe.
func NormalizeAuthorName(name string) string {
	return strings.ToLower(strings.Join(strings.Fields(name), " "))
}
