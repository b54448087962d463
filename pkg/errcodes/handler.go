package errcodes

import (
	"fmt"
	"net/http"

	"github.com/google/uuid"
	"github.com/iancoleman/strcase"
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"
	"github.com/robinjoseph08/golib/echo/v4/middleware/logger"
	"github.com/robinjoseph08/golib/errutils"
	rootlogger "github.com/robinjoseph08/golib/logger"
)

type Handler struct {
	// development includes stack traces in 500 bodies. Never enable in
	// production.
	development bool
}

func NewHandler(development bool) *Handler {
	return &Handler{development: development}
}

// Handle is an Echo error handler that uses HTTP errors accordingly, and any
// generic error will be interpreted as an internal server error.
func (h *Handler) Handle(err error, c echo.Context) {
	if errutils.IsIgnorableErr(err) {
		logger.FromEchoContext(c).Err(err).Warn("broken pipe")
		return
	}

	httpCode, payload := h.generatePayload(c, err)

	if err := c.JSON(httpCode, payload); err != nil {
		logger.FromEchoContext(c).Err(errors.WithStack(err)).Error("error handler json error")
	}
}

func (h *Handler) generatePayload(c echo.Context, err error) (int, map[string]interface{}) {
	code := ""
	msg := ""
	httpCode := http.StatusInternalServerError

	// Echo errors
	var he *echo.HTTPError
	if ok := errors.As(err, &he); ok {
		httpCode = he.Code
		if s, sok := he.Message.(string); sok {
			msg = s
		} else {
			msg = fmt.Sprintf("%v", he.Message)
		}
		code = strcase.ToSnake(msg)
	}

	// Custom errors
	var e *Error
	if ok := errors.As(err, &e); ok {
		httpCode = e.HTTPCode
		code = e.Code
		msg = e.Message
	}

	payload := map[string]interface{}{}

	// Internal server errors that aren't Echo errors or custom errors. The
	// response carries only a correlation ID; the details go to the log.
	if httpCode == http.StatusInternalServerError {
		errorID := uuid.NewString()
		logger.FromEchoContext(c).Err(err).Error("server error", rootlogger.Data{"error_id": errorID})

		code = "internal_server_error"
		msg = "Internal Server Error"
		payload["error_id"] = errorID
		if h.development {
			payload["stack"] = fmt.Sprintf("%+v", err)
		}
	}

	payload["error"] = map[string]interface{}{
		"code":        code,
		"message":     msg,
		"status_code": httpCode,
	}

	return httpCode, payload
}
