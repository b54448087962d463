package models

import (
	"time"

	"github.com/uptrace/bun"
)

type ReadingProgress struct {
	bun.BaseModel `bun:"table:reading_progress,alias:rp"`

	ID                 int       `bun:",pk,nullzero" json:"id"`
	CreatedAt          time.Time `json:"created_at"`
	UpdatedAt          time.Time `json:"updated_at"`
	UserID             int       `bun:",nullzero" json:"user_id"`
	BookID             int       `bun:",nullzero" json:"book_id"`
	CurrentPage        int       `json:"current_page"`
	TotalPages         *int      `json:"total_pages,omitempty"`
	PercentageComplete float64   `json:"percentage_complete"`
	LastReadAt         time.Time `json:"last_read_at"`

	Book *Book `bun:"rel:belongs-to,join:book_id=id" json:"book,omitempty"`
}

// Recompute derives percentage_complete from current_page / total_pages when
// total_pages is known, clamped to [0, 100].
func (p *ReadingProgress) Recompute() {
	if p.TotalPages != nil && *p.TotalPages > 0 {
		p.PercentageComplete = float64(p.CurrentPage) / float64(*p.TotalPages) * 100
	}
	if p.PercentageComplete < 0 {
		p.PercentageComplete = 0
	}
	if p.PercentageComplete > 100 {
		p.PercentageComplete = 100
	}
}
