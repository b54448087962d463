package auth

import (
	"net/http"

	"github.com/dustlibrary/dust/pkg/models"
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"
)

type handler struct {
	authService *Service
}

// BuildUserResponse builds a UserResponse from a user model.
func BuildUserResponse(user *models.User) UserResponse {
	roles := make([]string, 0, len(user.Roles))
	for _, r := range user.Roles {
		roles = append(roles, r.Name)
	}

	return UserResponse{
		ID:          user.ID,
		Username:    user.Username,
		Email:       user.Email,
		DisplayName: user.DisplayName,
		Roles:       roles,
		Permissions: user.PermissionNames(),
	}
}

// register handles new user registration.
func (h *handler) register(c echo.Context) error {
	ctx := c.Request().Context()

	params := RegisterPayload{}
	if err := c.Bind(&params); err != nil {
		return errors.WithStack(err)
	}

	user, err := h.authService.Register(ctx, RegisterOptions{
		Username:        params.Username,
		Email:           params.Email,
		Password:        params.Password,
		DisplayName:     params.DisplayName,
		InvitationToken: params.InvitationToken,
	})
	if err != nil {
		return err
	}

	token, err := h.authService.GenerateToken(user)
	if err != nil {
		return errors.WithStack(err)
	}

	return c.JSON(http.StatusCreated, SessionResponse{
		Token: token,
		User:  BuildUserResponse(user),
	})
}

// login handles user login.
func (h *handler) login(c echo.Context) error {
	ctx := c.Request().Context()

	params := LoginPayload{}
	if err := c.Bind(&params); err != nil {
		return errors.WithStack(err)
	}

	login := params.Username
	if login == "" {
		login = params.Email
	}

	user, err := h.authService.Authenticate(ctx, login, params.Password)
	if err != nil {
		return err
	}

	token, err := h.authService.GenerateToken(user)
	if err != nil {
		return errors.WithStack(err)
	}

	return c.JSON(http.StatusOK, SessionResponse{
		Token: token,
		User:  BuildUserResponse(user),
	})
}

// settings returns the public view of the auth settings so clients know
// whether open signup is available.
func (h *handler) settings(c echo.Context) error {
	ctx := c.Request().Context()

	settings, err := h.authService.AuthSettings(ctx)
	if err != nil {
		return err
	}

	return c.JSON(http.StatusOK, AuthSettingsResponse{AuthFlow: settings.AuthFlow})
}

// profile returns the current authenticated user's info.
func (h *handler) profile(c echo.Context) error {
	user := UserFromContext(c)
	return c.JSON(http.StatusOK, BuildUserResponse(user))
}

// adminSettings returns the auth settings for admins.
func (h *handler) adminSettings(c echo.Context) error {
	return h.settings(c)
}

// adminUpdateSettings switches the registration flow at runtime.
func (h *handler) adminUpdateSettings(c echo.Context) error {
	ctx := c.Request().Context()

	params := UpdateAuthSettingsPayload{}
	if err := c.Bind(&params); err != nil {
		return errors.WithStack(err)
	}

	settings, err := h.authService.UpdateAuthFlow(ctx, params.AuthFlow)
	if err != nil {
		return err
	}

	return c.JSON(http.StatusOK, AuthSettingsResponse{AuthFlow: settings.AuthFlow})
}
