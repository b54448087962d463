// Package webclient serves the bundled single-page web client.
package webclient

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/dustlibrary/dust/pkg/errcodes"
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"
)

type handler struct {
	root string
}

// RegisterRoutes mounts the static client at the server root. Paths without
// a file extension fall back to index.html so client-side routing works.
// Nothing is registered when dir is empty.
func RegisterRoutes(e *echo.Echo, dir string) error {
	if dir == "" {
		return nil
	}

	root, err := filepath.Abs(dir)
	if err != nil {
		return errors.WithStack(err)
	}

	h := &handler{root: root}
	e.GET("/*", h.serve)

	return nil
}

func (h *handler) serve(c echo.Context) error {
	name := strings.TrimPrefix(c.Request().URL.Path, "/")

	path := filepath.Join(h.root, filepath.FromSlash(name))
	// Join cleans the path, but resolve it anyway so a crafted request can
	// never escape the asset root.
	abs, err := filepath.Abs(path)
	if err != nil || (abs != h.root && !strings.HasPrefix(abs, h.root+string(filepath.Separator))) {
		return errcodes.NotFound("File")
	}

	if filepath.Ext(abs) == "" {
		return h.serveIndex(c)
	}

	info, err := os.Stat(abs)
	if err != nil || info.IsDir() {
		return errcodes.NotFound("File")
	}

	return errors.WithStack(c.File(abs))
}

func (h *handler) serveIndex(c echo.Context) error {
	index := filepath.Join(h.root, "index.html")
	if _, err := os.Stat(index); err != nil {
		return errcodes.NotFound("File")
	}

	return errors.WithStack(c.File(index))
}

// Healthy reports whether the asset directory is usable. Used at startup to
// fail fast on a misconfigured WEB_CLIENT_DIR.
func Healthy(dir string) error {
	if dir == "" {
		return nil
	}
	info, err := os.Stat(dir)
	if err != nil {
		return errors.WithStack(err)
	}
	if !info.IsDir() {
		return errors.Errorf("web client dir is not a directory: %s", dir)
	}
	if _, err := os.Stat(filepath.Join(dir, "index.html")); err != nil {
		return errors.Wrap(err, "web client dir has no index.html")
	}
	return nil
}
