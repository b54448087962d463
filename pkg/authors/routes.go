package authors

import (
	"github.com/dustlibrary/dust/pkg/books"
	"github.com/labstack/echo/v4"
	"github.com/uptrace/bun"
)

// RegisterRoutesWithGroup registers author routes on a pre-configured group
// that already requires authentication and authors.read.
func RegisterRoutesWithGroup(g *echo.Group, db *bun.DB, bookService *books.Service) *Service {
	authorService := NewService(db, bookService)

	h := &handler{authorService: authorService}

	g.GET("", h.list)
	g.GET("/:id", h.retrieve)

	return authorService
}
