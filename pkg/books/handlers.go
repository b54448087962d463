package books

import (
	"context"
	"fmt"
	"net/http"
	"strconv"

	"github.com/dustlibrary/dust/pkg/auth"
	"github.com/dustlibrary/dust/pkg/errcodes"
	"github.com/dustlibrary/dust/pkg/models"
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"
)

// Reconciler revalidates archive state against the filesystem. The worker's
// scanner satisfies this.
type Reconciler interface {
	ReconcileArchives(ctx context.Context) (archived, restored, deleted int, err error)
}

type handler struct {
	bookService *Service
	reconciler  Reconciler
}

func (h *handler) list(c echo.Context) error {
	ctx := c.Request().Context()
	user := auth.UserFromContext(c)

	params := ListBooksQuery{}
	if err := c.Bind(&params); err != nil {
		return errors.WithStack(err)
	}

	opts := ListBooksOptions{
		Limit:  &params.Limit,
		Offset: &params.Offset,
		Filter: params.Filter(),
	}

	// Listing by status sidesteps visibility, so it's reserved for admins.
	if params.Status != nil {
		if !user.HasPermission(models.PermissionAdminFull) && !user.HasPermission(models.PermissionBooksManage) {
			return errcodes.Forbidden("You don't have permission to list books by status")
		}
		opts.Status = params.Status
	}

	books, total, err := h.bookService.List(ctx, user, opts)
	if err != nil {
		return errors.WithStack(err)
	}

	resp := struct {
		Books []*models.Book `json:"books"`
		Total int            `json:"total"`
	}{books, total}

	return errors.WithStack(c.JSON(http.StatusOK, resp))
}

func (h *handler) retrieve(c echo.Context) error {
	ctx := c.Request().Context()
	id, err := strconv.Atoi(c.Param("id"))
	if err != nil {
		return errcodes.NotFound("Book")
	}

	book, err := h.bookService.Retrieve(ctx, auth.UserFromContext(c), id)
	if err != nil {
		return errors.WithStack(err)
	}

	return errors.WithStack(c.JSON(http.StatusOK, book))
}

func (h *handler) byTag(c echo.Context) error {
	ctx := c.Request().Context()
	user := auth.UserFromContext(c)
	tagName := c.Param("tagName")

	params := ListBooksQuery{}
	if err := c.Bind(&params); err != nil {
		return errors.WithStack(err)
	}

	books, total, err := h.bookService.List(ctx, user, ListBooksOptions{
		Limit:   &params.Limit,
		Offset:  &params.Offset,
		Filter:  params.Filter(),
		TagName: &tagName,
	})
	if err != nil {
		return errors.WithStack(err)
	}

	resp := struct {
		Books []*models.Book `json:"books"`
		Total int            `json:"total"`
	}{books, total}

	return errors.WithStack(c.JSON(http.StatusOK, resp))
}

func (h *handler) stream(c echo.Context) error {
	ctx := c.Request().Context()
	id, err := strconv.Atoi(c.Param("id"))
	if err != nil {
		return errcodes.NotFound("Book")
	}

	book, file, size, err := h.bookService.OpenStream(ctx, auth.UserFromContext(c), id)
	if err != nil {
		return errors.WithStack(err)
	}
	defer file.Close()

	res := c.Response()
	res.Header().Set("Accept-Ranges", "bytes")
	res.Header().Set(echo.HeaderContentType, book.MimeType())

	rangeHeader := c.Request().Header.Get("Range")
	if rangeHeader == "" {
		res.Header().Set(echo.HeaderContentLength, strconv.FormatInt(size, 10))
		res.WriteHeader(http.StatusOK)
		return copyChunks(ctx, res, file, size)
	}

	start, end, err := parseRange(rangeHeader, size)
	if err != nil {
		res.Header().Set("Content-Range", fmt.Sprintf("bytes */%d", size))
		return err
	}

	if _, err := file.Seek(start, 0); err != nil {
		return errors.WithStack(err)
	}

	length := end - start + 1
	res.Header().Set("Content-Range", fmt.Sprintf("bytes %d-%d/%d", start, end, size))
	res.Header().Set(echo.HeaderContentLength, strconv.FormatInt(length, 10))
	res.WriteHeader(http.StatusPartialContent)
	return copyChunks(ctx, res, file, length)
}

func (h *handler) addTag(c echo.Context) error {
	ctx := c.Request().Context()
	id, err := strconv.Atoi(c.Param("id"))
	if err != nil {
		return errcodes.NotFound("Book")
	}

	params := AddTagPayload{}
	if err := c.Bind(&params); err != nil {
		return errors.WithStack(err)
	}

	book, err := h.bookService.AddTag(ctx, auth.UserFromContext(c), id, params.Name)
	if err != nil {
		return errors.WithStack(err)
	}

	return errors.WithStack(c.JSON(http.StatusCreated, book))
}

func (h *handler) removeTag(c echo.Context) error {
	ctx := c.Request().Context()
	id, err := strconv.Atoi(c.Param("id"))
	if err != nil {
		return errcodes.NotFound("Book")
	}

	err = h.bookService.RemoveTag(ctx, auth.UserFromContext(c), id, c.Param("tagName"))
	if err != nil {
		return errors.WithStack(err)
	}

	return errors.WithStack(c.NoContent(http.StatusNoContent))
}

func (h *handler) archive(c echo.Context) error {
	ctx := c.Request().Context()
	id, err := strconv.Atoi(c.Param("id"))
	if err != nil {
		return errcodes.NotFound("Book")
	}

	params := ArchivePayload{}
	if err := c.Bind(&params); err != nil {
		return errors.WithStack(err)
	}

	book, err := h.bookService.Archive(ctx, id, params.Reason)
	if err != nil {
		return errors.WithStack(err)
	}

	return errors.WithStack(c.JSON(http.StatusOK, book))
}

func (h *handler) unarchive(c echo.Context) error {
	ctx := c.Request().Context()
	id, err := strconv.Atoi(c.Param("id"))
	if err != nil {
		return errcodes.NotFound("Book")
	}

	book, err := h.bookService.Unarchive(ctx, id)
	if err != nil {
		return errors.WithStack(err)
	}

	return errors.WithStack(c.JSON(http.StatusOK, book))
}

func (h *handler) validateArchives(c echo.Context) error {
	ctx := c.Request().Context()

	archived, restored, deleted, err := h.reconciler.ReconcileArchives(ctx)
	if err != nil {
		return errors.WithStack(err)
	}

	resp := struct {
		Archived int `json:"archived"`
		Restored int `json:"restored"`
		Deleted  int `json:"deleted"`
	}{archived, restored, deleted}

	return errors.WithStack(c.JSON(http.StatusOK, resp))
}

func (h *handler) refreshMetadata(c echo.Context) error {
	ctx := c.Request().Context()
	id, err := strconv.Atoi(c.Param("id"))
	if err != nil {
		return errcodes.NotFound("Book")
	}

	book, err := h.bookService.RefreshMetadata(ctx, id)
	if err != nil {
		return errors.WithStack(err)
	}

	return errors.WithStack(c.JSON(http.StatusOK, book))
}
