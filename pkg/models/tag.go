package models

import (
	"time"

	"github.com/uptrace/bun"
)

// Tag categories.
const (
	TagCategoryGenre         = "genre"
	TagCategoryFormat        = "format"
	TagCategoryContentRating = "content-rating"
)

// UserTagPreference states.
const (
	TagPreferenceAllow = "allow"
	TagPreferenceDeny  = "deny"
)

type Tag struct {
	bun.BaseModel `bun:"table:tags,alias:t"`

	ID        int       `bun:",pk,nullzero" json:"id"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
	Name      string    `bun:",nullzero" json:"name"`
	Category  string    `bun:",nullzero" json:"category"`
	// RequiresPermission names a Permission a user must hold for books
	// carrying this tag to be visible to them.
	RequiresPermission *string `json:"requires_permission,omitempty"`
	// IsSeeded tags ship with the catalog and can't be deleted.
	IsSeeded bool `json:"is_seeded"`

	BookCount int `bun:",scanonly" json:"book_count"`
}

type BookTag struct {
	bun.BaseModel `bun:"table:book_tags,alias:bt"`

	ID          int       `bun:",pk,nullzero" json:"id"`
	BookID      int       `bun:",nullzero" json:"book_id"`
	TagID       int       `bun:",nullzero" json:"tag_id"`
	AppliedBy   *int      `json:"applied_by,omitempty"`
	AutoApplied bool      `json:"auto_applied"`
	AppliedAt   time.Time `json:"applied_at"`

	Book *Book `bun:"rel:belongs-to,join:book_id=id" json:"-"`
	Tag  *Tag  `bun:"rel:belongs-to,join:tag_id=id" json:"tag,omitempty"`
}

type UserTagPreference struct {
	bun.BaseModel `bun:"table:user_tag_preferences,alias:utp"`

	ID        int       `bun:",pk,nullzero" json:"id"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
	UserID    int       `bun:",nullzero" json:"user_id"`
	TagID     int       `bun:",nullzero" json:"tag_id"`
	State     string    `bun:",nullzero" json:"state"`

	Tag *Tag `bun:"rel:belongs-to,join:tag_id=id" json:"tag,omitempty"`
}
