package users

import (
	"github.com/labstack/echo/v4"
	"github.com/uptrace/bun"
)

// RegisterRoutesWithGroup registers admin user management routes on a
// pre-configured group that already requires admin.full.
func RegisterRoutesWithGroup(g *echo.Group, db *bun.DB) *Service {
	userService := NewService(db)

	h := &handler{userService: userService}

	g.GET("", h.list)
	g.GET("/:id", h.retrieve)
	g.PUT("/:id", h.update)
	g.DELETE("/:id", h.deactivate)
	g.POST("/:id/reactivate", h.reactivate)

	return userService
}
