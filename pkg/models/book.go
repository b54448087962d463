package models

import (
	"time"

	"github.com/uptrace/bun"
)

// Book lifecycle states. Archiving is reversible; deletion is terminal.
const (
	BookStatusActive   = "active"
	BookStatusArchived = "archived"
	BookStatusDeleted  = "deleted"
)

// ArchiveReasonFileMissing is set by reconciliation when a book's file has
// disappeared from disk.
const ArchiveReasonFileMissing = "file missing"

type Book struct {
	bun.BaseModel `bun:"table:books,alias:b"`

	ID              int        `bun:",pk,nullzero" json:"id"`
	CreatedAt       time.Time  `json:"created_at"`
	UpdatedAt       time.Time  `json:"updated_at"`
	Name            string     `bun:",nullzero" json:"name"`
	AuthorID        int        `bun:",nullzero" json:"author_id"`
	FilePath        string     `bun:",nullzero" json:"file_path"`
	FileFormat      string     `bun:",nullzero" json:"file_format"`
	FileSizeBytes   int64      `json:"file_size_bytes"`
	ISBN            *string    `json:"isbn,omitempty"`
	Description     *string    `json:"description,omitempty"`
	PageCount       *int       `json:"page_count,omitempty"`
	Publisher       *string    `json:"publisher,omitempty"`
	PublicationDate *string    `json:"publication_date,omitempty"`
	CoverImagePath  *string    `json:"cover_image_path"`
	Status          string     `bun:",nullzero" json:"status"`
	ArchivedAt      *time.Time `json:"archived_at,omitempty"`
	ArchiveReason   *string    `json:"archive_reason,omitempty"`

	// Relations
	Author *Author `bun:"rel:belongs-to,join:author_id=id" json:"author,omitempty"`
	Tags   []*Tag  `bun:"m2m:book_tags,join:Book=Tag" json:"tags,omitempty"`
}

// MimeType maps the book's file format to a Content-Type for streaming.
func (b *Book) MimeType() string {
	switch b.FileFormat {
	case "epub":
		return "application/epub+zip"
	case "pdf":
		return "application/pdf"
	case "mobi":
		return "application/x-mobipocket-ebook"
	case "azw", "azw3":
		return "application/vnd.amazon.ebook"
	case "cbz":
		return "application/vnd.comicbook+zip"
	case "cbr":
		return "application/vnd.comicbook-rar"
	case "djvu":
		return "image/vnd.djvu"
	default:
		return "application/octet-stream"
	}
}
