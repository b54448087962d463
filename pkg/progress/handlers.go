package progress

import (
	"net/http"
	"strconv"

	"github.com/dustlibrary/dust/pkg/auth"
	"github.com/dustlibrary/dust/pkg/errcodes"
	"github.com/dustlibrary/dust/pkg/models"
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"
)

type handler struct {
	progressService *Service
}

func bookID(c echo.Context) (int, error) {
	id, err := strconv.Atoi(c.Param("id"))
	if err != nil {
		return 0, errcodes.NotFound("Book")
	}
	return id, nil
}

func (h *handler) get(c echo.Context) error {
	ctx := c.Request().Context()
	id, err := bookID(c)
	if err != nil {
		return err
	}

	p, err := h.progressService.Get(ctx, auth.UserFromContext(c), id)
	if err != nil {
		return errors.WithStack(err)
	}

	return errors.WithStack(c.JSON(http.StatusOK, p))
}

func (h *handler) update(c echo.Context) error {
	ctx := c.Request().Context()
	id, err := bookID(c)
	if err != nil {
		return err
	}

	payload := UpdateProgressPayload{}
	if err := c.Bind(&payload); err != nil {
		return errors.WithStack(err)
	}

	p, err := h.progressService.Update(ctx, auth.UserFromContext(c), id, UpdateProgressOptions{
		CurrentPage: payload.CurrentPage,
		TotalPages:  payload.TotalPages,
	})
	if err != nil {
		return errors.WithStack(err)
	}

	return errors.WithStack(c.JSON(http.StatusOK, p))
}

func (h *handler) start(c echo.Context) error {
	ctx := c.Request().Context()
	id, err := bookID(c)
	if err != nil {
		return err
	}

	p, err := h.progressService.Start(ctx, auth.UserFromContext(c), id)
	if err != nil {
		return errors.WithStack(err)
	}

	return errors.WithStack(c.JSON(http.StatusOK, p))
}

func (h *handler) complete(c echo.Context) error {
	ctx := c.Request().Context()
	id, err := bookID(c)
	if err != nil {
		return err
	}

	p, err := h.progressService.Complete(ctx, auth.UserFromContext(c), id)
	if err != nil {
		return errors.WithStack(err)
	}

	return errors.WithStack(c.JSON(http.StatusOK, p))
}

func (h *handler) reset(c echo.Context) error {
	ctx := c.Request().Context()
	id, err := bookID(c)
	if err != nil {
		return err
	}

	if err := h.progressService.Reset(ctx, auth.UserFromContext(c), id); err != nil {
		return errors.WithStack(err)
	}

	return errors.WithStack(c.NoContent(http.StatusNoContent))
}

func progressResponse(rows []*models.ReadingProgress) interface{} {
	return struct {
		Progress []*models.ReadingProgress `json:"progress"`
	}{rows}
}

func (h *handler) list(c echo.Context) error {
	ctx := c.Request().Context()

	rows, err := h.progressService.List(ctx, auth.UserFromContext(c))
	if err != nil {
		return errors.WithStack(err)
	}

	return errors.WithStack(c.JSON(http.StatusOK, progressResponse(rows)))
}

func (h *handler) recent(c echo.Context) error {
	ctx := c.Request().Context()

	params := RecentQuery{}
	if err := c.Bind(&params); err != nil {
		return errors.WithStack(err)
	}

	rows, err := h.progressService.Recent(ctx, auth.UserFromContext(c), params.Limit)
	if err != nil {
		return errors.WithStack(err)
	}

	return errors.WithStack(c.JSON(http.StatusOK, progressResponse(rows)))
}

func (h *handler) currentlyReading(c echo.Context) error {
	ctx := c.Request().Context()

	rows, err := h.progressService.CurrentlyReading(ctx, auth.UserFromContext(c))
	if err != nil {
		return errors.WithStack(err)
	}

	return errors.WithStack(c.JSON(http.StatusOK, progressResponse(rows)))
}

func (h *handler) completed(c echo.Context) error {
	ctx := c.Request().Context()

	rows, err := h.progressService.Completed(ctx, auth.UserFromContext(c))
	if err != nil {
		return errors.WithStack(err)
	}

	return errors.WithStack(c.JSON(http.StatusOK, progressResponse(rows)))
}

func (h *handler) stats(c echo.Context) error {
	ctx := c.Request().Context()

	stats, err := h.progressService.ComputeStats(ctx, auth.UserFromContext(c))
	if err != nil {
		return errors.WithStack(err)
	}

	return errors.WithStack(c.JSON(http.StatusOK, stats))
}
