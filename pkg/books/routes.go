package books

import (
	"github.com/dustlibrary/dust/pkg/auth"
	"github.com/dustlibrary/dust/pkg/metadata"
	"github.com/dustlibrary/dust/pkg/models"
	"github.com/labstack/echo/v4"
	"github.com/uptrace/bun"
)

// RegisterRoutesWithGroup registers book routes on a pre-configured group that
// already requires authentication and books.read.
func RegisterRoutesWithGroup(g *echo.Group, db *bun.DB, roots []string, lookup metadata.Lookup, authMiddleware *auth.Middleware, reconciler Reconciler) *Service {
	bookService := NewService(db, roots, lookup)

	h := &handler{
		bookService: bookService,
		reconciler:  reconciler,
	}

	g.GET("", h.list)
	g.GET("/:id", h.retrieve)
	g.GET("/:id/stream", h.stream)
	g.GET("/by-tag/:tagName", h.byTag)
	g.POST("/:id/tags", h.addTag, authMiddleware.RequirePermission(models.PermissionBooksWrite))
	g.DELETE("/:id/tags/:tagName", h.removeTag, authMiddleware.RequirePermission(models.PermissionBooksWrite))
	g.POST("/:id/archive", h.archive, authMiddleware.RequirePermission(models.PermissionBooksWrite))
	g.DELETE("/:id/archive", h.unarchive, authMiddleware.RequirePermission(models.PermissionBooksWrite))
	g.POST("/archive/validate", h.validateArchives, authMiddleware.RequirePermission(models.PermissionBooksManage))
	g.POST("/:id/refresh-metadata", h.refreshMetadata, authMiddleware.RequireAnyPermission(models.PermissionBooksManage, models.PermissionAdminFull))

	return bookService
}
