package roles

import (
	"net/http"
	"strconv"

	"github.com/dustlibrary/dust/pkg/errcodes"
	"github.com/dustlibrary/dust/pkg/models"
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"
)

type handler struct {
	roleService *Service
}

func roleID(c echo.Context) (int, error) {
	id, err := strconv.Atoi(c.Param("id"))
	if err != nil {
		return 0, errcodes.NotFound("Role")
	}
	return id, nil
}

func (h *handler) list(c echo.Context) error {
	ctx := c.Request().Context()

	roles, err := h.roleService.List(ctx)
	if err != nil {
		return errors.WithStack(err)
	}

	resp := struct {
		Roles []*models.Role `json:"roles"`
	}{roles}

	return errors.WithStack(c.JSON(http.StatusOK, resp))
}

func (h *handler) retrieve(c echo.Context) error {
	ctx := c.Request().Context()
	id, err := roleID(c)
	if err != nil {
		return err
	}

	role, err := h.roleService.Retrieve(ctx, id)
	if err != nil {
		return errors.WithStack(err)
	}

	return errors.WithStack(c.JSON(http.StatusOK, role))
}

func (h *handler) create(c echo.Context) error {
	ctx := c.Request().Context()

	payload := CreateRolePayload{}
	if err := c.Bind(&payload); err != nil {
		return errors.WithStack(err)
	}

	role, err := h.roleService.Create(ctx, CreateRoleOptions{
		Name:            payload.Name,
		Description:     payload.Description,
		PermissionNames: payload.Permissions,
	})
	if err != nil {
		return errors.WithStack(err)
	}

	return errors.WithStack(c.JSON(http.StatusCreated, role))
}

func (h *handler) update(c echo.Context) error {
	ctx := c.Request().Context()
	id, err := roleID(c)
	if err != nil {
		return err
	}

	payload := UpdateRolePayload{}
	if err := c.Bind(&payload); err != nil {
		return errors.WithStack(err)
	}

	role, err := h.roleService.Update(ctx, id, UpdateRoleOptions{
		Description:     payload.Description,
		PermissionNames: payload.Permissions,
	})
	if err != nil {
		return errors.WithStack(err)
	}

	return errors.WithStack(c.JSON(http.StatusOK, role))
}

func (h *handler) delete(c echo.Context) error {
	ctx := c.Request().Context()
	id, err := roleID(c)
	if err != nil {
		return err
	}

	if err := h.roleService.Delete(ctx, id); err != nil {
		return errors.WithStack(err)
	}

	return errors.WithStack(c.NoContent(http.StatusNoContent))
}

func (h *handler) listPermissions(c echo.Context) error {
	ctx := c.Request().Context()

	permissions, err := h.roleService.ListPermissions(ctx)
	if err != nil {
		return errors.WithStack(err)
	}

	resp := struct {
		Permissions []*models.Permission `json:"permissions"`
	}{permissions}

	return errors.WithStack(c.JSON(http.StatusOK, resp))
}
