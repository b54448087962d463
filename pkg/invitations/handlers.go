package invitations

import (
	"net/http"
	"strconv"
	"time"

	"github.com/dustlibrary/dust/pkg/errcodes"
	"github.com/dustlibrary/dust/pkg/models"
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"
)

type handler struct {
	invitationService *Service
}

func (h *handler) create(c echo.Context) error {
	ctx := c.Request().Context()

	payload := CreateInvitationPayload{}
	if err := c.Bind(&payload); err != nil {
		return errors.WithStack(err)
	}

	invitation, token, err := h.invitationService.Create(ctx, payload.Email)
	if err != nil {
		return errors.WithStack(err)
	}

	return errors.WithStack(c.JSON(http.StatusCreated, CreateInvitationResponse{
		ID:        invitation.ID,
		Email:     invitation.Email,
		Token:     token,
		ExpiresAt: invitation.ExpiresAt.Format(time.RFC3339),
	}))
}

func (h *handler) list(c echo.Context) error {
	ctx := c.Request().Context()

	invitations, err := h.invitationService.List(ctx)
	if err != nil {
		return errors.WithStack(err)
	}

	resp := struct {
		Invitations []*models.Invitation `json:"invitations"`
	}{invitations}

	return errors.WithStack(c.JSON(http.StatusOK, resp))
}

func (h *handler) revoke(c echo.Context) error {
	ctx := c.Request().Context()
	id, err := strconv.Atoi(c.Param("id"))
	if err != nil {
		return errcodes.NotFound("Invitation")
	}

	if err := h.invitationService.Revoke(ctx, id); err != nil {
		return errors.WithStack(err)
	}

	return errors.WithStack(c.NoContent(http.StatusNoContent))
}
