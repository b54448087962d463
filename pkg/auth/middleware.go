package auth

import (
	"strings"

	"github.com/dustlibrary/dust/pkg/errcodes"
	"github.com/dustlibrary/dust/pkg/models"
	"github.com/labstack/echo/v4"
)

const (
	// ContextKeyUser is the Echo context key holding the authenticated user.
	ContextKeyUser = "user"
	// ContextKeyUserID is the Echo context key holding the authenticated user's ID.
	ContextKeyUserID = "user_id"
)

// Middleware provides authentication middleware.
type Middleware struct {
	authService *Service
}

// NewMiddleware creates a new auth middleware.
func NewMiddleware(authService *Service) *Middleware {
	return &Middleware{
		authService: authService,
	}
}

// Authenticate extracts and validates the bearer token from the Authorization
// header. If valid, it verifies the user is still active and attaches the user
// to the context. If not authenticated, it returns 401.
func (m *Middleware) Authenticate(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		ctx := c.Request().Context()

		token := bearerToken(c)
		if token == "" {
			return errcodes.Unauthorized("Authentication required")
		}

		claims, err := m.authService.ValidateToken(token)
		if err != nil {
			return errcodes.Unauthorized("Invalid or expired token")
		}

		// Tokens outlive deactivations, so recheck the user on every request.
		user, err := m.authService.UserByID(ctx, claims.UserID)
		if err != nil {
			return errcodes.Unauthorized("User not found or inactive")
		}

		c.Set(ContextKeyUserID, user.ID)
		c.Set(ContextKeyUser, user)

		return next(c)
	}
}

// RequirePermission returns middleware that checks if the user has the named
// permission. Must be used after Authenticate middleware.
func (m *Middleware) RequirePermission(permission string) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			user, ok := c.Get(ContextKeyUser).(*models.User)
			if !ok {
				return errcodes.Unauthorized("Authentication required")
			}

			if !user.HasPermission(permission) {
				return errcodes.Forbidden("You don't have the " + permission + " permission")
			}

			return next(c)
		}
	}
}

// RequireAnyPermission is like RequirePermission but passes when the user
// holds at least one of the named permissions.
func (m *Middleware) RequireAnyPermission(permissions ...string) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			user, ok := c.Get(ContextKeyUser).(*models.User)
			if !ok {
				return errcodes.Unauthorized("Authentication required")
			}

			for _, permission := range permissions {
				if user.HasPermission(permission) {
					return next(c)
				}
			}

			return errcodes.Forbidden("You don't have permission to do that")
		}
	}
}

func bearerToken(c echo.Context) string {
	header := c.Request().Header.Get(echo.HeaderAuthorization)
	if header == "" {
		return ""
	}
	const prefix = "Bearer "
	if !strings.HasPrefix(header, prefix) {
		return ""
	}
	return strings.TrimSpace(header[len(prefix):])
}

// UserFromContext retrieves the authenticated user from the Echo context.
func UserFromContext(c echo.Context) *models.User {
	user, _ := c.Get(ContextKeyUser).(*models.User)
	return user
}
