package books

import (
	"context"
	"database/sql"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/dustlibrary/dust/pkg/covers"
	"github.com/dustlibrary/dust/pkg/errcodes"
	"github.com/dustlibrary/dust/pkg/metadata"
	"github.com/dustlibrary/dust/pkg/models"
	"github.com/pkg/errors"
	"github.com/robinjoseph08/golib/logger"
	"github.com/uptrace/bun"
)

// Filter narrows a user-visible book listing by tag and genre names. Exclude
// filters subtract after the visibility rules have been applied; genre filters
// only match tags in the genre category.
type Filter struct {
	IncludeTags   []string
	ExcludeTags   []string
	IncludeGenres []string
	ExcludeGenres []string
}

type ListBooksOptions struct {
	Limit  *int
	Offset *int
	Filter Filter
	// TagName restricts the listing to books carrying the named tag.
	TagName *string
	// AuthorID restricts the listing to one author.
	AuthorID *int
	// Status bypasses the visibility rules entirely. Handlers must gate it
	// behind an administrative permission.
	Status *string
}

type Service struct {
	db     *bun.DB
	roots  []string
	lookup metadata.Lookup
}

// NewService creates a book service. roots are the configured library
// directories; lookup enriches refreshed metadata and may be a NullLookup.
func NewService(db *bun.DB, roots []string, lookup metadata.Lookup) *Service {
	if lookup == nil {
		lookup = metadata.NullLookup{}
	}
	return &Service{db: db, roots: roots, lookup: lookup}
}

// ApplyVisibility restricts q to books the user is allowed to see: active
// status, no tag gated behind a permission the user lacks, and no tag the user
// has denied. Include/exclude filters are applied on top.
func ApplyVisibility(q *bun.SelectQuery, user *models.User, f Filter) *bun.SelectQuery {
	q = q.Where("b.status = ?", models.BookStatusActive)

	perms := user.PermissionNames()
	if len(perms) == 0 {
		q = q.Where(`NOT EXISTS (
			SELECT 1 FROM book_tags bt
			JOIN tags t ON t.id = bt.tag_id
			WHERE bt.book_id = b.id AND t.requires_permission IS NOT NULL
		)`)
	} else {
		q = q.Where(`NOT EXISTS (
			SELECT 1 FROM book_tags bt
			JOIN tags t ON t.id = bt.tag_id
			WHERE bt.book_id = b.id
			AND t.requires_permission IS NOT NULL
			AND t.requires_permission NOT IN (?)
		)`, bun.In(perms))
	}

	q = q.Where(`NOT EXISTS (
		SELECT 1 FROM book_tags bt
		JOIN user_tag_preferences utp ON utp.tag_id = bt.tag_id
		WHERE bt.book_id = b.id AND utp.user_id = ? AND utp.state = ?
	)`, user.ID, models.TagPreferenceDeny)

	if len(f.IncludeTags) > 0 {
		q = q.Where(`EXISTS (
			SELECT 1 FROM book_tags bt
			JOIN tags t ON t.id = bt.tag_id
			WHERE bt.book_id = b.id AND t.name COLLATE NOCASE IN (?)
		)`, bun.In(f.IncludeTags))
	}
	if len(f.ExcludeTags) > 0 {
		q = q.Where(`NOT EXISTS (
			SELECT 1 FROM book_tags bt
			JOIN tags t ON t.id = bt.tag_id
			WHERE bt.book_id = b.id AND t.name COLLATE NOCASE IN (?)
		)`, bun.In(f.ExcludeTags))
	}
	if len(f.IncludeGenres) > 0 {
		q = q.Where(`EXISTS (
			SELECT 1 FROM book_tags bt
			JOIN tags t ON t.id = bt.tag_id
			WHERE bt.book_id = b.id AND t.category = ? AND t.name COLLATE NOCASE IN (?)
		)`, models.TagCategoryGenre, bun.In(f.IncludeGenres))
	}
	if len(f.ExcludeGenres) > 0 {
		q = q.Where(`NOT EXISTS (
			SELECT 1 FROM book_tags bt
			JOIN tags t ON t.id = bt.tag_id
			WHERE bt.book_id = b.id AND t.category = ? AND t.name COLLATE NOCASE IN (?)
		)`, models.TagCategoryGenre, bun.In(f.ExcludeGenres))
	}

	return q
}

// List returns books visible to the user, plus the filtered total. When
// opts.Status is set the visibility rules are bypassed.
func (svc *Service) List(ctx context.Context, user *models.User, opts ListBooksOptions) ([]*models.Book, int, error) {
	books := []*models.Book{}

	q := svc.db.
		NewSelect().
		Model(&books).
		Relation("Author").
		Relation("Tags").
		Order("b.name ASC")

	if opts.Status != nil {
		q = q.Where("b.status = ?", *opts.Status)
	} else {
		q = ApplyVisibility(q, user, opts.Filter)
	}

	if opts.TagName != nil {
		q = q.Where(`EXISTS (
			SELECT 1 FROM book_tags bt
			JOIN tags t ON t.id = bt.tag_id
			WHERE bt.book_id = b.id AND t.name = ? COLLATE NOCASE
		)`, *opts.TagName)
	}
	if opts.AuthorID != nil {
		q = q.Where("b.author_id = ?", *opts.AuthorID)
	}
	if opts.Limit != nil {
		q = q.Limit(*opts.Limit)
	}
	if opts.Offset != nil {
		q = q.Offset(*opts.Offset)
	}

	total, err := q.ScanAndCount(ctx)
	if err != nil {
		return nil, 0, errors.WithStack(err)
	}

	return books, total, nil
}

// Retrieve returns a single book subject to the user's visibility. Hidden
// books are indistinguishable from missing ones.
func (svc *Service) Retrieve(ctx context.Context, user *models.User, id int) (*models.Book, error) {
	book := &models.Book{}

	q := svc.db.
		NewSelect().
		Model(book).
		Relation("Author").
		Relation("Tags").
		Where("b.id = ?", id)
	q = ApplyVisibility(q, user, Filter{})

	err := q.Scan(ctx)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return svc.retrieveArchived(ctx, user, id)
		}
		return nil, errors.WithStack(err)
	}

	return book, nil
}

// retrieveArchived lets managers inspect archived rows that the visibility
// filter excludes. Everyone else gets the same 404 as a missing book.
func (svc *Service) retrieveArchived(ctx context.Context, user *models.User, id int) (*models.Book, error) {
	if !user.HasPermission(models.PermissionAdminFull) && !user.HasPermission(models.PermissionBooksManage) {
		return nil, errcodes.NotFound("Book")
	}

	book := &models.Book{}
	err := svc.db.
		NewSelect().
		Model(book).
		Relation("Author").
		Relation("Tags").
		Where("b.id = ?", id).
		Where("b.status = ?", models.BookStatusArchived).
		Scan(ctx)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, errcodes.NotFound("Book")
		}
		return nil, errors.WithStack(err)
	}

	return book, nil
}

// retrieveAny fetches a book regardless of visibility, excluding deleted rows.
func (svc *Service) retrieveAny(ctx context.Context, id int) (*models.Book, error) {
	book := &models.Book{}

	err := svc.db.
		NewSelect().
		Model(book).
		Relation("Author").
		Relation("Tags").
		Where("b.id = ?", id).
		Where("b.status != ?", models.BookStatusDeleted).
		Scan(ctx)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, errcodes.NotFound("Book")
		}
		return nil, errors.WithStack(err)
	}

	return book, nil
}

// AddTag applies a tag to a book on behalf of a user.
func (svc *Service) AddTag(ctx context.Context, user *models.User, bookID int, tagName string) (*models.Book, error) {
	book, err := svc.Retrieve(ctx, user, bookID)
	if err != nil {
		return nil, err
	}

	tag := &models.Tag{}
	err = svc.db.NewSelect().Model(tag).Where("name = ? COLLATE NOCASE", tagName).Scan(ctx)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, errcodes.NotFound("Tag")
		}
		return nil, errors.WithStack(err)
	}

	exists, err := svc.db.
		NewSelect().
		Model((*models.BookTag)(nil)).
		Where("book_id = ?", book.ID).
		Where("tag_id = ?", tag.ID).
		Exists(ctx)
	if err != nil {
		return nil, errors.WithStack(err)
	}
	if exists {
		return nil, errcodes.Conflict("The book already has that tag")
	}

	bookTag := &models.BookTag{
		BookID:    book.ID,
		TagID:     tag.ID,
		AppliedBy: &user.ID,
		AppliedAt: time.Now(),
	}
	if _, err := svc.db.NewInsert().Model(bookTag).Exec(ctx); err != nil {
		return nil, errors.WithStack(err)
	}

	return svc.Retrieve(ctx, user, bookID)
}

// RemoveTag removes a tag from a book. The tag itself is untouched.
func (svc *Service) RemoveTag(ctx context.Context, user *models.User, bookID int, tagName string) error {
	book, err := svc.Retrieve(ctx, user, bookID)
	if err != nil {
		return err
	}

	res, err := svc.db.
		NewDelete().
		Model((*models.BookTag)(nil)).
		Where("book_id = ?", book.ID).
		Where("tag_id IN (SELECT id FROM tags WHERE name = ? COLLATE NOCASE)", tagName).
		Exec(ctx)
	if err != nil {
		return errors.WithStack(err)
	}
	if affected, _ := res.RowsAffected(); affected == 0 {
		return errcodes.NotFound("Tag")
	}

	return nil
}

// Archive moves a book out of the visible library without touching its row's
// metadata. Reversible via Unarchive.
func (svc *Service) Archive(ctx context.Context, id int, reason string) (*models.Book, error) {
	book, err := svc.retrieveAny(ctx, id)
	if err != nil {
		return nil, err
	}
	if book.Status == models.BookStatusArchived {
		return nil, errcodes.Conflict("The book is already archived")
	}

	now := time.Now()
	book.Status = models.BookStatusArchived
	book.ArchivedAt = &now
	book.ArchiveReason = &reason
	book.UpdatedAt = now

	_, err = svc.db.
		NewUpdate().
		Model(book).
		Column("status", "archived_at", "archive_reason", "updated_at").
		WherePK().
		Exec(ctx)
	if err != nil {
		return nil, errors.WithStack(err)
	}

	return book, nil
}

// Unarchive restores an archived book to the visible library.
func (svc *Service) Unarchive(ctx context.Context, id int) (*models.Book, error) {
	book, err := svc.retrieveAny(ctx, id)
	if err != nil {
		return nil, err
	}
	if book.Status != models.BookStatusArchived {
		return nil, errcodes.Conflict("The book is not archived")
	}

	book.Status = models.BookStatusActive
	book.ArchivedAt = nil
	book.ArchiveReason = nil
	book.UpdatedAt = time.Now()

	_, err = svc.db.
		NewUpdate().
		Model(book).
		Column("status", "archived_at", "archive_reason", "updated_at").
		WherePK().
		Exec(ctx)
	if err != nil {
		return nil, errors.WithStack(err)
	}

	return book, nil
}

// RefreshMetadata re-derives a book's metadata from its file path, replacing
// externally edited values, and re-runs enrichment when an ISBN is found.
func (svc *Service) RefreshMetadata(ctx context.Context, id int) (*models.Book, error) {
	book, err := svc.retrieveAny(ctx, id)
	if err != nil {
		return nil, err
	}

	root, ok := svc.rootFor(book.FilePath)
	if !ok {
		return nil, errcodes.NotFound("Book")
	}

	derived := metadata.Derive(root, book.FilePath)

	author := &models.Author{}
	err = svc.db.
		NewSelect().
		Model(author).
		Where("normalized_name = ?", models.NormalizeAuthorName(derived.AuthorName)).
		Scan(ctx)
	if err != nil {
		if !errors.Is(err, sql.ErrNoRows) {
			return nil, errors.WithStack(err)
		}
		author = &models.Author{
			Name:           derived.AuthorName,
			NormalizedName: models.NormalizeAuthorName(derived.AuthorName),
		}
		if _, err := svc.db.NewInsert().Model(author).Exec(ctx); err != nil {
			return nil, errors.WithStack(err)
		}
	}

	book.Name = derived.Title
	book.AuthorID = author.ID
	book.FileFormat = derived.FileFormat
	book.ISBN = derived.ISBN
	if cover := covers.Resolve(book.FilePath); cover != "" {
		book.CoverImagePath = &cover
	}
	if info, err := os.Stat(book.FilePath); err == nil {
		book.FileSizeBytes = info.Size()
	}

	if book.ISBN != nil {
		volume, err := svc.lookup.ByISBN(ctx, *book.ISBN)
		if err != nil {
			log := logger.FromContext(ctx)
			log.Warn("metadata enrichment failed", logger.Data{"book_id": book.ID, "error": err.Error()})
		} else if volume != nil {
			book.Description = volume.Description
			book.PageCount = volume.PageCount
			book.Publisher = volume.Publisher
			book.PublicationDate = volume.PublicationDate
		}
	}

	book.UpdatedAt = time.Now()
	_, err = svc.db.
		NewUpdate().
		Model(book).
		Column(
			"name", "author_id", "file_format", "isbn", "cover_image_path",
			"file_size_bytes", "description", "page_count", "publisher",
			"publication_date", "updated_at",
		).
		WherePK().
		Exec(ctx)
	if err != nil {
		return nil, errors.WithStack(err)
	}

	return svc.retrieveAny(ctx, id)
}

// rootFor returns the configured library root containing path, after
// canonicalizing it. Paths outside every root get (_, false).
func (svc *Service) rootFor(path string) (string, bool) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return "", false
	}
	for _, root := range svc.roots {
		if abs == root || strings.HasPrefix(abs, root+string(filepath.Separator)) {
			return root, true
		}
	}
	return "", false
}
