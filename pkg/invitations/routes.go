package invitations

import (
	"time"

	"github.com/labstack/echo/v4"
	"github.com/uptrace/bun"
)

// RegisterRoutesWithGroup registers invitation routes on a pre-configured
// admin group.
func RegisterRoutesWithGroup(g *echo.Group, db *bun.DB, jwtSecret []byte, expiry time.Duration) *Service {
	invitationService := NewService(db, jwtSecret, expiry)

	h := &handler{invitationService: invitationService}

	g.GET("", h.list)
	g.POST("", h.create)
	g.DELETE("/:id", h.revoke)

	return invitationService
}
