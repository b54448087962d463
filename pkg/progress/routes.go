package progress

import (
	"github.com/dustlibrary/dust/pkg/auth"
	"github.com/dustlibrary/dust/pkg/books"
	"github.com/dustlibrary/dust/pkg/models"
	"github.com/labstack/echo/v4"
	"github.com/uptrace/bun"
)

// RegisterRoutesWithGroups registers per-book progress routes on the books
// group and aggregate routes on the reading group. Both groups already
// require authentication; writes additionally need progress.write.
func RegisterRoutesWithGroups(booksGroup, readingGroup *echo.Group, db *bun.DB, bookService *books.Service, authMiddleware *auth.Middleware) *Service {
	progressService := NewService(db, bookService)

	h := &handler{progressService: progressService}

	write := authMiddleware.RequirePermission(models.PermissionProgressWrite)

	booksGroup.GET("/:id/progress", h.get)
	booksGroup.PUT("/:id/progress", h.update, write)
	booksGroup.DELETE("/:id/progress", h.reset, write)
	booksGroup.POST("/:id/progress/start", h.start, write)
	booksGroup.POST("/:id/progress/complete", h.complete, write)

	readingGroup.GET("/progress", h.list)
	readingGroup.GET("/recent", h.recent)
	readingGroup.GET("/currently-reading", h.currentlyReading)
	readingGroup.GET("/completed", h.completed)
	readingGroup.GET("/stats", h.stats)

	return progressService
}
