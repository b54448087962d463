package scanner

import (
	"context"
	"database/sql"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/dustlibrary/dust/pkg/covers"
	"github.com/dustlibrary/dust/pkg/metadata"
	"github.com/dustlibrary/dust/pkg/models"
	"github.com/gabriel-vasile/mimetype"
	"github.com/pkg/errors"
	"github.com/robinjoseph08/golib/logger"
	"github.com/uptrace/bun"
)

// GenreRule auto-applies a genre tag when any of its substrings appears in a
// candidate's path, compared case-insensitively.
type GenreRule struct {
	TagName    string
	Substrings []string
}

// DefaultGenreRules covers the seeded genre tags with conservative matches.
var DefaultGenreRules = []GenreRule{
	{TagName: "Science Fiction", Substrings: []string{"science fiction", "sci-fi"}},
	{TagName: "Fantasy", Substrings: []string{"fantasy"}},
	{TagName: "Mystery", Substrings: []string{"mystery"}},
	{TagName: "Romance", Substrings: []string{"romance"}},
	{TagName: "Horror", Substrings: []string{"horror"}},
	{TagName: "Biography", Substrings: []string{"biography", "memoir"}},
	{TagName: "Non-Fiction", Substrings: []string{"non-fiction", "nonfiction"}},
}

type Service struct {
	db        *bun.DB
	roots     []string
	lookup    metadata.Lookup
	rules     []GenreRule
	retention time.Duration

	// now is swappable for retention tests.
	now func() time.Time
}

func NewService(db *bun.DB, roots []string, lookup metadata.Lookup, retention time.Duration) *Service {
	if lookup == nil {
		lookup = metadata.NullLookup{}
	}
	return &Service{
		db:        db,
		roots:     roots,
		lookup:    lookup,
		rules:     DefaultGenreRules,
		retention: retention,
		now:       time.Now,
	}
}

// Scan walks every configured root and inserts books for supported files that
// aren't indexed yet. Existing rows are authoritative and never clobbered;
// only empty file sizes and missing covers are backfilled. Per-file errors
// are logged and skipped so one bad file never aborts a scan.
func (svc *Service) Scan(ctx context.Context) (int, error) {
	log := logger.FromContext(ctx)
	added := 0

	for _, root := range svc.roots {
		if err := ctx.Err(); err != nil {
			return added, errors.WithStack(err)
		}

		err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
			if err != nil {
				log.Err(err).Warn("scan walk error", logger.Data{"path": path})
				if d != nil && d.IsDir() {
					return fs.SkipDir
				}
				return nil
			}
			if err := ctx.Err(); err != nil {
				return err
			}
			if d.IsDir() {
				return nil
			}
			ext := strings.TrimPrefix(strings.ToLower(filepath.Ext(path)), ".")
			if !metadata.SupportedFormat(ext) {
				return nil
			}

			ok, err := svc.indexFile(ctx, root, path)
			if err != nil {
				log.Err(err).Warn("index file error", logger.Data{"path": path})
				return nil
			}
			if ok {
				added++
			}
			return nil
		})
		if err != nil {
			if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
				return added, errors.WithStack(err)
			}
			log.Err(err).Warn("scan root error", logger.Data{"root": root})
		}
	}

	log.Info("scan finished", logger.Data{"added": added})
	return added, nil
}

// formatMIMEs lists the content types a sniff may report for each supported
// extension. cbz/cbr payloads usually sniff as their plain zip/rar containers,
// and the Kindle formats share the MOBI container.
var formatMIMEs = map[string][]string{
	"epub": {"application/epub+zip", "application/zip"},
	"pdf":  {"application/pdf"},
	"mobi": {"application/x-mobipocket-ebook"},
	"azw":  {"application/vnd.amazon.ebook", "application/x-mobipocket-ebook"},
	"azw3": {"application/vnd.amazon.ebook", "application/x-mobipocket-ebook"},
	"cbz":  {"application/vnd.comicbook+zip", "application/zip"},
	"cbr":  {"application/vnd.comicbook-rar", "application/x-rar-compressed"},
	"djvu": {"image/vnd.djvu"},
}

// contradictsFormat reports whether the sniffed content type rules out the
// format the extension claims. Inconclusive sniffs (plain text, unrecognized
// binary) don't count against the file.
func contradictsFormat(format string, mtype *mimetype.MIME) bool {
	expected, ok := formatMIMEs[format]
	if !ok {
		return false
	}
	for _, want := range expected {
		if mtype.Is(want) {
			return false
		}
	}
	return !mtype.Is("application/octet-stream") && !mtype.Is("text/plain")
}

// indexFile inserts a single book. It reports true when a new row was added.
func (svc *Service) indexFile(ctx context.Context, root, path string) (bool, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return false, errors.WithStack(err)
	}
	if resolved, err := filepath.EvalSymlinks(abs); err == nil {
		abs = resolved
	}

	existing := &models.Book{}
	err = svc.db.
		NewSelect().
		Model(existing).
		Where("b.file_path = ?", abs).
		Where("b.status != ?", models.BookStatusDeleted).
		Scan(ctx)
	if err == nil {
		return false, svc.backfill(ctx, existing)
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return false, errors.WithStack(err)
	}

	derived := metadata.Derive(root, abs)

	info, err := os.Stat(abs)
	if err != nil {
		return false, errors.WithStack(err)
	}

	mtype, err := mimetype.DetectFile(abs)
	if err != nil {
		// Unreadable content; the walk continues with the next file.
		return false, errors.WithStack(err)
	}
	if contradictsFormat(derived.FileFormat, mtype) {
		logger.FromContext(ctx).Warn("content type contradicts extension, skipping", logger.Data{
			"path":     abs,
			"detected": mtype.String(),
		})
		return false, nil
	}

	var coverPath *string
	if cover := covers.Resolve(abs); cover != "" {
		coverPath = &cover
	}

	book := &models.Book{}
	err = svc.db.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		author, err := svc.findOrCreateAuthor(ctx, tx, derived.AuthorName)
		if err != nil {
			return err
		}

		now := svc.now()
		book = &models.Book{
			CreatedAt:      now,
			UpdatedAt:      now,
			Name:           derived.Title,
			AuthorID:       author.ID,
			FilePath:       abs,
			FileFormat:     derived.FileFormat,
			FileSizeBytes:  info.Size(),
			ISBN:           derived.ISBN,
			CoverImagePath: coverPath,
			Status:         models.BookStatusActive,
		}
		_, err = tx.
			NewInsert().
			Model(book).
			Returning("id").
			Exec(ctx)
		if err != nil {
			return errors.WithStack(err)
		}

		return svc.autoTag(ctx, tx, book)
	})
	if err != nil {
		return false, err
	}

	svc.enrich(ctx, book)
	return true, nil
}

// backfill fills in file size and cover on an existing row when they are
// empty. Everything else on the row may have been edited and stays put.
func (svc *Service) backfill(ctx context.Context, book *models.Book) error {
	columns := []string{}
	if book.FileSizeBytes == 0 {
		info, err := os.Stat(book.FilePath)
		if err == nil {
			book.FileSizeBytes = info.Size()
			columns = append(columns, "file_size_bytes")
		}
	}
	if book.CoverImagePath == nil {
		if cover := covers.Resolve(book.FilePath); cover != "" {
			book.CoverImagePath = &cover
			columns = append(columns, "cover_image_path")
		}
	}
	if len(columns) == 0 {
		return nil
	}

	book.UpdatedAt = svc.now()
	columns = append(columns, "updated_at")
	_, err := svc.db.
		NewUpdate().
		Model(book).
		Column(columns...).
		WherePK().
		Exec(ctx)
	return errors.WithStack(err)
}

func (svc *Service) findOrCreateAuthor(ctx context.Context, tx bun.Tx, name string) (*models.Author, error) {
	normalized := models.NormalizeAuthorName(name)

	author := &models.Author{}
	err := tx.
		NewSelect().
		Model(author).
		Where("a.normalized_name = ?", normalized).
		Scan(ctx)
	if err == nil {
		return author, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return nil, errors.WithStack(err)
	}

	now := svc.now()
	author = &models.Author{
		CreatedAt:      now,
		UpdatedAt:      now,
		Name:           name,
		NormalizedName: normalized,
	}
	_, err = tx.
		NewInsert().
		Model(author).
		Returning("id").
		Exec(ctx)
	if err != nil {
		return nil, errors.WithStack(err)
	}

	return author, nil
}

// autoTag applies the format tag and any genre rules that match the path.
func (svc *Service) autoTag(ctx context.Context, tx bun.Tx, book *models.Book) error {
	names := []string{strings.ToUpper(book.FileFormat)}
	lowered := strings.ToLower(book.FilePath)
	for _, rule := range svc.rules {
		for _, sub := range rule.Substrings {
			if strings.Contains(lowered, sub) {
				names = append(names, rule.TagName)
				break
			}
		}
	}

	for _, name := range names {
		tag := &models.Tag{}
		err := tx.
			NewSelect().
			Model(tag).
			Where("t.name = ? COLLATE NOCASE", name).
			Scan(ctx)
		if err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				continue
			}
			return errors.WithStack(err)
		}

		_, err = tx.
			NewInsert().
			Model(&models.BookTag{
				BookID:      book.ID,
				TagID:       tag.ID,
				AutoApplied: true,
				AppliedAt:   svc.now(),
			}).
			Exec(ctx)
		if err != nil {
			return errors.WithStack(err)
		}
	}

	return nil
}

// enrich fills descriptive fields from the external lookup. Failures are
// logged and the book keeps its derived metadata.
func (svc *Service) enrich(ctx context.Context, book *models.Book) {
	if book.ISBN == nil {
		return
	}

	volume, err := svc.lookup.ByISBN(ctx, *book.ISBN)
	if err != nil {
		logger.FromContext(ctx).Err(err).Warn("metadata enrichment failed", logger.Data{
			"book_id": book.ID,
			"isbn":    *book.ISBN,
		})
		return
	}
	if volume == nil {
		return
	}

	book.Description = volume.Description
	book.PageCount = volume.PageCount
	book.Publisher = volume.Publisher
	book.PublicationDate = volume.PublicationDate
	book.UpdatedAt = svc.now()

	_, err = svc.db.
		NewUpdate().
		Model(book).
		Column("description", "page_count", "publisher", "publication_date", "updated_at").
		WherePK().
		Exec(ctx)
	if err != nil {
		logger.FromContext(ctx).Err(err).Warn("metadata enrichment update failed", logger.Data{
			"book_id": book.ID,
		})
	}
}
