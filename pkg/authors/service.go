package authors

import (
	"context"
	"database/sql"

	"github.com/dustlibrary/dust/pkg/books"
	"github.com/dustlibrary/dust/pkg/errcodes"
	"github.com/dustlibrary/dust/pkg/models"
	"github.com/pkg/errors"
	"github.com/uptrace/bun"
)

type ListAuthorsOptions struct {
	Limit  *int
	Offset *int
}

type Service struct {
	db          *bun.DB
	bookService *books.Service
}

func NewService(db *bun.DB, bookService *books.Service) *Service {
	return &Service{db: db, bookService: bookService}
}

// List returns authors that have at least one book visible to the user, with
// book_count reflecting only the visible set.
func (svc *Service) List(ctx context.Context, user *models.User, opts ListAuthorsOptions) ([]*models.Author, int, error) {
	visible := svc.db.
		NewSelect().
		Model((*models.Book)(nil)).
		ColumnExpr("b.author_id AS author_id").
		ColumnExpr("count(*) AS n").
		GroupExpr("b.author_id")
	visible = books.ApplyVisibility(visible, user, books.Filter{})

	authors := []*models.Author{}
	q := svc.db.
		NewSelect().
		Model(&authors).
		ColumnExpr("a.*").
		ColumnExpr("vb.n AS book_count").
		Join("JOIN (?) AS vb ON vb.author_id = a.id", visible).
		Order("a.name ASC")

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

	return authors, total, nil
}

// Retrieve returns an author with only the books the user can see attached.
func (svc *Service) Retrieve(ctx context.Context, user *models.User, id int) (*models.Author, error) {
	author := &models.Author{}
	err := svc.db.
		NewSelect().
		Model(author).
		Where("a.id = ?", id).
		Scan(ctx)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, errcodes.NotFound("Author")
		}
		return nil, errors.WithStack(err)
	}

	visible, total, err := svc.bookService.List(ctx, user, books.ListBooksOptions{AuthorID: &id})
	if err != nil {
		return nil, err
	}
	author.Books = visible
	author.BookCount = total

	return author, nil
}
