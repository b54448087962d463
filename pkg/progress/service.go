package progress

import (
	"context"
	"database/sql"
	"time"

	"github.com/dustlibrary/dust/pkg/books"
	"github.com/dustlibrary/dust/pkg/errcodes"
	"github.com/dustlibrary/dust/pkg/models"
	"github.com/pkg/errors"
	"github.com/uptrace/bun"
)

type UpdateProgressOptions struct {
	CurrentPage int
	TotalPages  *int
}

// Stats summarizes a user's reading history.
type Stats struct {
	BooksStarted   int `json:"books_started"`
	BooksCompleted int `json:"books_completed"`
	PagesRead      int `json:"pages_read"`
	StreakDays     int `json:"streak_days"`
}

type Service struct {
	db          *bun.DB
	bookService *books.Service

	// now is swappable for streak tests.
	now func() time.Time
}

func NewService(db *bun.DB, bookService *books.Service) *Service {
	return &Service{db: db, bookService: bookService, now: time.Now}
}

// Get returns the user's progress for a visible book.
func (svc *Service) Get(ctx context.Context, user *models.User, bookID int) (*models.ReadingProgress, error) {
	if _, err := svc.bookService.Retrieve(ctx, user, bookID); err != nil {
		return nil, err
	}

	p := &models.ReadingProgress{}
	err := svc.db.
		NewSelect().
		Model(p).
		Where("rp.user_id = ?", user.ID).
		Where("rp.book_id = ?", bookID).
		Scan(ctx)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, errcodes.NotFound("Reading progress")
		}
		return nil, errors.WithStack(err)
	}

	return p, nil
}

// Update upserts the user's progress for a visible book. The percentage is
// recomputed from the new page counts and last_read_at is set to server time.
func (svc *Service) Update(ctx context.Context, user *models.User, bookID int, opts UpdateProgressOptions) (*models.ReadingProgress, error) {
	if _, err := svc.bookService.Retrieve(ctx, user, bookID); err != nil {
		return nil, err
	}

	now := svc.now()
	p := &models.ReadingProgress{
		CreatedAt:   now,
		UpdatedAt:   now,
		UserID:      user.ID,
		BookID:      bookID,
		CurrentPage: opts.CurrentPage,
		TotalPages:  opts.TotalPages,
		LastReadAt:  now,
	}
	if p.TotalPages == nil {
		existing := &models.ReadingProgress{}
		err := svc.db.
			NewSelect().
			Model(existing).
			Where("rp.user_id = ?", user.ID).
			Where("rp.book_id = ?", bookID).
			Scan(ctx)
		if err == nil {
			p.TotalPages = existing.TotalPages
		} else if !errors.Is(err, sql.ErrNoRows) {
			return nil, errors.WithStack(err)
		}
	}
	p.Recompute()

	if err := svc.upsert(ctx, p); err != nil {
		return nil, err
	}

	return p, nil
}

// Start records that the user opened a book. Existing progress is untouched.
func (svc *Service) Start(ctx context.Context, user *models.User, bookID int) (*models.ReadingProgress, error) {
	book, err := svc.bookService.Retrieve(ctx, user, bookID)
	if err != nil {
		return nil, err
	}

	existing := &models.ReadingProgress{}
	err = svc.db.
		NewSelect().
		Model(existing).
		Where("rp.user_id = ?", user.ID).
		Where("rp.book_id = ?", bookID).
		Scan(ctx)
	if err == nil {
		return existing, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return nil, errors.WithStack(err)
	}

	now := svc.now()
	p := &models.ReadingProgress{
		CreatedAt:  now,
		UpdatedAt:  now,
		UserID:     user.ID,
		BookID:     bookID,
		TotalPages: book.PageCount,
		LastReadAt: now,
	}
	if err := svc.upsert(ctx, p); err != nil {
		return nil, err
	}

	return p, nil
}

// Complete marks a book finished. When the total page count is known the
// current page snaps to it; the percentage always becomes 100.
func (svc *Service) Complete(ctx context.Context, user *models.User, bookID int) (*models.ReadingProgress, error) {
	book, err := svc.bookService.Retrieve(ctx, user, bookID)
	if err != nil {
		return nil, err
	}

	now := svc.now()
	p := &models.ReadingProgress{
		CreatedAt:  now,
		UpdatedAt:  now,
		UserID:     user.ID,
		BookID:     bookID,
		LastReadAt: now,
	}

	existing := &models.ReadingProgress{}
	err = svc.db.
		NewSelect().
		Model(existing).
		Where("rp.user_id = ?", user.ID).
		Where("rp.book_id = ?", bookID).
		Scan(ctx)
	if err == nil {
		p.CurrentPage = existing.CurrentPage
		p.TotalPages = existing.TotalPages
	} else if !errors.Is(err, sql.ErrNoRows) {
		return nil, errors.WithStack(err)
	}

	if p.TotalPages == nil {
		p.TotalPages = book.PageCount
	}
	if p.TotalPages != nil && *p.TotalPages > 0 {
		p.CurrentPage = *p.TotalPages
	}
	p.PercentageComplete = 100

	if err := svc.upsert(ctx, p); err != nil {
		return nil, err
	}

	return p, nil
}

// Reset removes the user's progress for a book.
func (svc *Service) Reset(ctx context.Context, user *models.User, bookID int) error {
	if _, err := svc.bookService.Retrieve(ctx, user, bookID); err != nil {
		return err
	}

	res, err := svc.db.
		NewDelete().
		Model((*models.ReadingProgress)(nil)).
		Where("rp.user_id = ?", user.ID).
		Where("rp.book_id = ?", bookID).
		Exec(ctx)
	if err != nil {
		return errors.WithStack(err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return errors.WithStack(err)
	}
	if n == 0 {
		return errcodes.NotFound("Reading progress")
	}

	return nil
}

// upsert writes a complete progress row in one statement so concurrent
// updates never leave a row with mismatched page and percentage values.
func (svc *Service) upsert(ctx context.Context, p *models.ReadingProgress) error {
	_, err := svc.db.
		NewInsert().
		Model(p).
		On("CONFLICT (user_id, book_id) DO UPDATE").
		Set("current_page = EXCLUDED.current_page").
		Set("total_pages = EXCLUDED.total_pages").
		Set("percentage_complete = EXCLUDED.percentage_complete").
		Set("last_read_at = EXCLUDED.last_read_at").
		Set("updated_at = EXCLUDED.updated_at").
		Returning("id").
		Exec(ctx)
	return errors.WithStack(err)
}

// List returns all of the user's progress rows for books still visible to
// them, most recently read first.
func (svc *Service) List(ctx context.Context, user *models.User) ([]*models.ReadingProgress, error) {
	return svc.list(ctx, user, func(q *bun.SelectQuery) *bun.SelectQuery {
		return q
	})
}

// Recent returns the user's most recently read books, capped at limit.
func (svc *Service) Recent(ctx context.Context, user *models.User, limit int) ([]*models.ReadingProgress, error) {
	return svc.list(ctx, user, func(q *bun.SelectQuery) *bun.SelectQuery {
		return q.Limit(limit)
	})
}

// CurrentlyReading returns books the user has started but not finished.
func (svc *Service) CurrentlyReading(ctx context.Context, user *models.User) ([]*models.ReadingProgress, error) {
	return svc.list(ctx, user, func(q *bun.SelectQuery) *bun.SelectQuery {
		return q.
			Where("rp.current_page > 0").
			Where("rp.percentage_complete < 100")
	})
}

// Completed returns books the user has finished.
func (svc *Service) Completed(ctx context.Context, user *models.User) ([]*models.ReadingProgress, error) {
	return svc.list(ctx, user, func(q *bun.SelectQuery) *bun.SelectQuery {
		return q.Where("rp.percentage_complete >= 100")
	})
}

func (svc *Service) list(ctx context.Context, user *models.User, apply func(*bun.SelectQuery) *bun.SelectQuery) ([]*models.ReadingProgress, error) {
	visible := svc.db.
		NewSelect().
		Model((*models.Book)(nil)).
		Column("b.id")
	visible = books.ApplyVisibility(visible, user, books.Filter{})

	rows := []*models.ReadingProgress{}
	q := svc.db.
		NewSelect().
		Model(&rows).
		Relation("Book").
		Relation("Book.Author").
		Where("rp.user_id = ?", user.ID).
		Where("rp.book_id IN (?)", visible).
		Order("rp.last_read_at DESC")

	err := apply(q).Scan(ctx)
	if err != nil {
		return nil, errors.WithStack(err)
	}

	return rows, nil
}

// ComputeStats aggregates the user's reading history. The streak counts
// consecutive calendar days with a progress update, in server time, ending
// today; a day without reading breaks it.
func (svc *Service) ComputeStats(ctx context.Context, user *models.User) (*Stats, error) {
	rows := []*models.ReadingProgress{}
	err := svc.db.
		NewSelect().
		Model(&rows).
		Where("rp.user_id = ?", user.ID).
		Scan(ctx)
	if err != nil {
		return nil, errors.WithStack(err)
	}

	stats := &Stats{BooksStarted: len(rows)}
	days := map[string]bool{}
	for _, p := range rows {
		stats.PagesRead += p.CurrentPage
		if p.PercentageComplete >= 100 {
			stats.BooksCompleted++
		}
		days[p.LastReadAt.Local().Format("2006-01-02")] = true
	}

	day := svc.now().Local()
	for days[day.Format("2006-01-02")] {
		stats.StreakDays++
		day = day.AddDate(0, 0, -1)
	}

	return stats, nil
}
