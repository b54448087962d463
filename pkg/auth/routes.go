package auth

import (
	"github.com/dustlibrary/dust/pkg/models"
	"github.com/labstack/echo/v4"
	"github.com/uptrace/bun"
)

// RegisterRoutes registers auth routes and returns the auth service plus the
// middleware other route groups hang off of.
func RegisterRoutes(e *echo.Echo, db *bun.DB, jwtSecret string) (*Service, *Middleware) {
	authService := NewService(db, jwtSecret)
	authMiddleware := NewMiddleware(authService)

	h := &handler{
		authService: authService,
	}

	authGroup := e.Group("/auth")
	authGroup.POST("/register", h.register)
	authGroup.POST("/login", h.login)
	authGroup.GET("/settings", h.settings)

	e.GET("/profile", h.profile, authMiddleware.Authenticate)

	adminGroup := e.Group("/admin/auth-settings")
	adminGroup.Use(authMiddleware.Authenticate)
	adminGroup.Use(authMiddleware.RequirePermission(models.PermissionAdminFull))
	adminGroup.GET("", h.adminSettings)
	adminGroup.PUT("", h.adminUpdateSettings)

	return authService, authMiddleware
}
