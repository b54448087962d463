package roles

import (
	"github.com/labstack/echo/v4"
	"github.com/uptrace/bun"
)

// RegisterRoutesWithGroup registers the role and permission catalog routes on
// a pre-configured admin group.
func RegisterRoutesWithGroup(g *echo.Group, db *bun.DB) *Service {
	roleService := NewService(db)

	h := &handler{roleService: roleService}

	g.GET("/roles", h.list)
	g.POST("/roles", h.create)
	g.GET("/roles/:id", h.retrieve)
	g.PUT("/roles/:id", h.update)
	g.DELETE("/roles/:id", h.delete)

	g.GET("/permissions", h.listPermissions)

	return roleService
}
