package tags

import (
	"github.com/dustlibrary/dust/pkg/auth"
	"github.com/dustlibrary/dust/pkg/models"
	"github.com/labstack/echo/v4"
	"github.com/uptrace/bun"
)

// RegisterRoutesWithGroup registers tag routes on a pre-configured group that
// already requires authentication and tags.read. Catalog changes need
// admin.full; preferences need tags.write.
func RegisterRoutesWithGroup(g *echo.Group, db *bun.DB, authMiddleware *auth.Middleware) *Service {
	tagService := NewService(db)

	h := &handler{tagService: tagService}

	g.GET("", h.list)
	g.GET("/categories", h.listCategories)
	g.GET("/categories/:category", h.listByCategory)

	g.POST("", h.create, authMiddleware.RequirePermission(models.PermissionAdminFull))
	g.DELETE("/:id", h.delete, authMiddleware.RequirePermission(models.PermissionAdminFull))

	g.GET("/preferences", h.listPreferences, authMiddleware.RequirePermission(models.PermissionTagsWrite))
	g.PUT("/:id/preference", h.setPreference, authMiddleware.RequirePermission(models.PermissionTagsWrite))
	g.DELETE("/:id/preference", h.clearPreference, authMiddleware.RequirePermission(models.PermissionTagsWrite))

	return tagService
}
