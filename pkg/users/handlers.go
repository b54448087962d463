package users

import (
	"net/http"
	"strconv"

	"github.com/dustlibrary/dust/pkg/auth"
	"github.com/dustlibrary/dust/pkg/errcodes"
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"
)

type handler struct {
	userService *Service
}

func userID(c echo.Context) (int, error) {
	id, err := strconv.Atoi(c.Param("id"))
	if err != nil {
		return 0, errcodes.NotFound("User")
	}
	return id, nil
}

func (h *handler) list(c echo.Context) error {
	ctx := c.Request().Context()

	params := ListUsersQuery{}
	if err := c.Bind(&params); err != nil {
		return errors.WithStack(err)
	}

	users, total, err := h.userService.List(ctx, ListUsersOptions{
		Limit:  &params.Limit,
		Offset: &params.Offset,
	})
	if err != nil {
		return errors.WithStack(err)
	}

	resp := struct {
		Users []auth.UserResponse `json:"users"`
		Total int                 `json:"total"`
	}{make([]auth.UserResponse, 0, len(users)), total}
	for _, user := range users {
		resp.Users = append(resp.Users, auth.BuildUserResponse(user))
	}

	return errors.WithStack(c.JSON(http.StatusOK, resp))
}

func (h *handler) retrieve(c echo.Context) error {
	ctx := c.Request().Context()
	id, err := userID(c)
	if err != nil {
		return err
	}

	user, err := h.userService.Retrieve(ctx, id)
	if err != nil {
		return errors.WithStack(err)
	}

	return errors.WithStack(c.JSON(http.StatusOK, auth.BuildUserResponse(user)))
}

func (h *handler) update(c echo.Context) error {
	ctx := c.Request().Context()
	id, err := userID(c)
	if err != nil {
		return err
	}

	payload := UpdateUserPayload{}
	if err := c.Bind(&payload); err != nil {
		return errors.WithStack(err)
	}

	user, err := h.userService.Update(ctx, id, UpdateUserOptions{
		Email:       payload.Email,
		DisplayName: payload.DisplayName,
		RoleNames:   payload.Roles,
	})
	if err != nil {
		return errors.WithStack(err)
	}

	return errors.WithStack(c.JSON(http.StatusOK, auth.BuildUserResponse(user)))
}

func (h *handler) deactivate(c echo.Context) error {
	ctx := c.Request().Context()
	id, err := userID(c)
	if err != nil {
		return err
	}

	user, err := h.userService.Deactivate(ctx, id)
	if err != nil {
		return errors.WithStack(err)
	}

	return errors.WithStack(c.JSON(http.StatusOK, auth.BuildUserResponse(user)))
}

func (h *handler) reactivate(c echo.Context) error {
	ctx := c.Request().Context()
	id, err := userID(c)
	if err != nil {
		return err
	}

	user, err := h.userService.Reactivate(ctx, id)
	if err != nil {
		return errors.WithStack(err)
	}

	return errors.WithStack(c.JSON(http.StatusOK, auth.BuildUserResponse(user)))
}
