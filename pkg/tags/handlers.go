package tags

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
	tagService *Service
}

func (h *handler) list(c echo.Context) error {
	ctx := c.Request().Context()

	params := ListTagsQuery{}
	if err := c.Bind(&params); err != nil {
		return errors.WithStack(err)
	}

	tags, total, err := h.tagService.List(ctx, ListTagsOptions{
		Category: params.Category,
		Limit:    &params.Limit,
		Offset:   &params.Offset,
	})
	if err != nil {
		return errors.WithStack(err)
	}

	resp := struct {
		Tags  []*models.Tag `json:"tags"`
		Total int           `json:"total"`
	}{tags, total}

	return errors.WithStack(c.JSON(http.StatusOK, resp))
}

func (h *handler) listCategories(c echo.Context) error {
	ctx := c.Request().Context()

	categories, err := h.tagService.Categories(ctx)
	if err != nil {
		return errors.WithStack(err)
	}

	resp := struct {
		Categories []string `json:"categories"`
	}{categories}

	return errors.WithStack(c.JSON(http.StatusOK, resp))
}

func (h *handler) listByCategory(c echo.Context) error {
	ctx := c.Request().Context()
	category := c.Param("category")

	tags, total, err := h.tagService.List(ctx, ListTagsOptions{Category: &category})
	if err != nil {
		return errors.WithStack(err)
	}

	resp := struct {
		Tags  []*models.Tag `json:"tags"`
		Total int           `json:"total"`
	}{tags, total}

	return errors.WithStack(c.JSON(http.StatusOK, resp))
}

func (h *handler) create(c echo.Context) error {
	ctx := c.Request().Context()

	payload := CreateTagPayload{}
	if err := c.Bind(&payload); err != nil {
		return errors.WithStack(err)
	}

	tag, err := h.tagService.Create(ctx, CreateTagOptions{
		Name:               payload.Name,
		Category:           payload.Category,
		RequiresPermission: payload.RequiresPermission,
	})
	if err != nil {
		return errors.WithStack(err)
	}

	return errors.WithStack(c.JSON(http.StatusCreated, tag))
}

func (h *handler) delete(c echo.Context) error {
	ctx := c.Request().Context()
	id, err := strconv.Atoi(c.Param("id"))
	if err != nil {
		return errcodes.NotFound("Tag")
	}

	if err := h.tagService.Delete(ctx, id); err != nil {
		return errors.WithStack(err)
	}

	return errors.WithStack(c.NoContent(http.StatusNoContent))
}

func (h *handler) listPreferences(c echo.Context) error {
	ctx := c.Request().Context()

	prefs, err := h.tagService.ListPreferences(ctx, auth.UserFromContext(c))
	if err != nil {
		return errors.WithStack(err)
	}

	resp := struct {
		Preferences []*models.UserTagPreference `json:"preferences"`
	}{prefs}

	return errors.WithStack(c.JSON(http.StatusOK, resp))
}

func (h *handler) setPreference(c echo.Context) error {
	ctx := c.Request().Context()
	id, err := strconv.Atoi(c.Param("id"))
	if err != nil {
		return errcodes.NotFound("Tag")
	}

	payload := SetPreferencePayload{}
	if err := c.Bind(&payload); err != nil {
		return errors.WithStack(err)
	}

	pref, err := h.tagService.SetPreference(ctx, auth.UserFromContext(c), id, payload.State)
	if err != nil {
		return errors.WithStack(err)
	}

	return errors.WithStack(c.JSON(http.StatusOK, pref))
}

func (h *handler) clearPreference(c echo.Context) error {
	ctx := c.Request().Context()
	id, err := strconv.Atoi(c.Param("id"))
	if err != nil {
		return errcodes.NotFound("Tag")
	}

	if err := h.tagService.ClearPreference(ctx, auth.UserFromContext(c), id); err != nil {
		return errors.WithStack(err)
	}

	return errors.WithStack(c.NoContent(http.StatusNoContent))
}
