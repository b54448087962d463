package server

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/dustlibrary/dust/pkg/auth"
	"github.com/dustlibrary/dust/pkg/authors"
	"github.com/dustlibrary/dust/pkg/binder"
	"github.com/dustlibrary/dust/pkg/books"
	"github.com/dustlibrary/dust/pkg/config"
	"github.com/dustlibrary/dust/pkg/errcodes"
	"github.com/dustlibrary/dust/pkg/invitations"
	"github.com/dustlibrary/dust/pkg/metadata"
	"github.com/dustlibrary/dust/pkg/models"
	"github.com/dustlibrary/dust/pkg/progress"
	"github.com/dustlibrary/dust/pkg/roles"
	"github.com/dustlibrary/dust/pkg/tags"
	"github.com/dustlibrary/dust/pkg/users"
	"github.com/dustlibrary/dust/pkg/webclient"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/pkg/errors"
	"github.com/robinjoseph08/golib/echo/v4/health"
	"github.com/robinjoseph08/golib/echo/v4/middleware/logger"
	"github.com/robinjoseph08/golib/echo/v4/middleware/recovery"
	"github.com/uptrace/bun"
	"golang.org/x/time/rate"
)

// Library is the scanning surface the admin routes can trigger on demand.
type Library interface {
	books.Reconciler
	Scan(ctx context.Context) (added int, err error)
}

func New(cfg *config.Config, db *bun.DB, library Library) (*http.Server, error) {
	e := echo.New()

	b, err := binder.New()
	if err != nil {
		return nil, errors.WithStack(err)
	}
	e.Binder = b

	// CORS sits outermost so preflights are answered before anything else
	// runs; recovery sits innermost so panics surface through the logger.
	e.Use(middleware.CORS())
	e.Use(logger.Middleware())
	if cfg.RateLimitPerSecond > 0 {
		e.Use(middleware.RateLimiter(middleware.NewRateLimiterMemoryStore(rate.Limit(cfg.RateLimitPerSecond))))
	}
	e.Use(recovery.Middleware())

	health.RegisterRoutes(e)

	var lookup metadata.Lookup = metadata.NullLookup{}
	if cfg.EnrichmentEnabled() {
		lookup = metadata.NewGoogleBooks(cfg.GoogleBooksAPIKey, cfg.ExternalMetadataUserAgent)
	}

	authService, authMiddleware := auth.RegisterRoutes(e, db, cfg.JWTSecret)

	registerUserRoutes(e, db, cfg, lookup, authMiddleware, library)
	registerAdminRoutes(e, db, authService, authMiddleware, library)

	if err := webclient.Healthy(cfg.WebClientDir); err != nil {
		return nil, err
	}
	if err := webclient.RegisterRoutes(e, cfg.WebClientDir); err != nil {
		return nil, err
	}

	echo.NotFoundHandler = notFoundHandler
	e.HTTPErrorHandler = errcodes.NewHandler(cfg.Development).Handle

	srv := &http.Server{
		Addr:              fmt.Sprintf("%s:%d", cfg.ServerHost, cfg.ServerPort),
		Handler:           e,
		ReadHeaderTimeout: 3 * time.Second,
	}

	return srv, nil
}

// registerUserRoutes wires the authenticated, user-level API.
func registerUserRoutes(e *echo.Echo, db *bun.DB, cfg *config.Config, lookup metadata.Lookup, authMiddleware *auth.Middleware, reconciler books.Reconciler) {
	// Static /books/authors segments win over /books/:id, so both groups can
	// share the prefix.
	authorsGroup := e.Group("/books/authors")
	authorsGroup.Use(authMiddleware.Authenticate)
	authorsGroup.Use(authMiddleware.RequirePermission(models.PermissionAuthorsRead))

	booksGroup := e.Group("/books")
	booksGroup.Use(authMiddleware.Authenticate)
	booksGroup.Use(authMiddleware.RequirePermission(models.PermissionBooksRead))
	bookService := books.RegisterRoutesWithGroup(booksGroup, db, cfg.LibraryDirectories, lookup, authMiddleware, reconciler)

	authors.RegisterRoutesWithGroup(authorsGroup, db, bookService)

	tagsGroup := e.Group("/tags")
	tagsGroup.Use(authMiddleware.Authenticate)
	tagsGroup.Use(authMiddleware.RequirePermission(models.PermissionTagsRead))
	tags.RegisterRoutesWithGroup(tagsGroup, db, authMiddleware)

	readingGroup := e.Group("/reading")
	readingGroup.Use(authMiddleware.Authenticate)
	readingGroup.Use(authMiddleware.RequirePermission(models.PermissionBooksRead))
	progress.RegisterRoutesWithGroups(booksGroup, readingGroup, db, bookService, authMiddleware)
}

// registerAdminRoutes wires everything under /admin. The auth-settings routes
// are registered by the auth package itself.
func registerAdminRoutes(e *echo.Echo, db *bun.DB, authService *auth.Service, authMiddleware *auth.Middleware, library Library) {
	adminGroup := e.Group("/admin")
	adminGroup.Use(authMiddleware.Authenticate)
	adminGroup.Use(authMiddleware.RequirePermission(models.PermissionAdminFull))

	users.RegisterRoutesWithGroup(adminGroup.Group("/users"), db)
	roles.RegisterRoutesWithGroup(adminGroup, db)
	invitations.RegisterRoutesWithGroup(adminGroup.Group("/invitations"), db, authService.JWTSecret(), invitations.DefaultExpiry)

	adminGroup.POST("/scan", func(c echo.Context) error {
		added, err := library.Scan(c.Request().Context())
		if err != nil {
			return errors.WithStack(err)
		}

		resp := struct {
			Added int `json:"added"`
		}{added}

		return errors.WithStack(c.JSON(http.StatusOK, resp))
	})
}

func notFoundHandler(c echo.Context) error {
	c.SetPath("/:path")
	return errcodes.NotFound("Page")
}
