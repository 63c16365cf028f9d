package handler

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/concert-seat-booking/internal/logger"
	"github.com/iliyamo/concert-seat-booking/internal/model"
	"github.com/iliyamo/concert-seat-booking/internal/service"
)

func ok(c echo.Context, status int, data any) error {
	return c.JSON(status, model.OK(data))
}

func fail(c echo.Context, status int, code, msg string, details map[string]any) error {
	return c.JSON(status, model.Fail(model.ErrorBody{Code: code, Message: msg, Details: details}))
}

// writeError renders err as an envelope.  A *service.Error keeps its status
// and code; anything else is a 500 under fallbackCode.
func writeError(c echo.Context, err error, fallbackCode string) error {
	var se *service.Error
	if errors.As(err, &se) {
		return fail(c, se.Status, se.Code, se.Message, se.Details)
	}
	return fail(c, http.StatusInternalServerError, fallbackCode, "internal server error", nil)
}

// bindAndValidate decodes the body into req and runs the validator.  On
// failure it writes a 400 under code and returns false.
func bindAndValidate(c echo.Context, req any, code string) (bool, error) {
	if err := c.Bind(req); err != nil {
		return false, fail(c, http.StatusBadRequest, code, "invalid request body", nil)
	}
	if err := c.Validate(req); err != nil {
		return false, fail(c, http.StatusBadRequest, code, "request validation failed", validationDetails(err))
	}
	return true, nil
}

// ErrorHandler renders errors that escape handlers (unknown routes, wrong
// methods, panics recovered by echo) in the same envelope.
func ErrorHandler(log *logger.Logger) echo.HTTPErrorHandler {
	if log == nil {
		log = logger.Nop()
	}
	return func(err error, c echo.Context) {
		if c.Response().Committed {
			return
		}
		status := http.StatusInternalServerError
		code := "INTERNAL_ERROR"
		msg := "internal server error"

		var he *echo.HTTPError
		if errors.As(err, &he) {
			status = he.Code
			switch status {
			case http.StatusNotFound:
				code, msg = "NOT_FOUND", "resource not found"
			case http.StatusMethodNotAllowed:
				code, msg = "METHOD_NOT_ALLOWED", "method not allowed"
			default:
				if status < http.StatusInternalServerError {
					code, msg = "BAD_REQUEST", http.StatusText(status)
				}
			}
		}
		if status >= http.StatusInternalServerError {
			log.Error("unhandled error", "path", c.Request().URL.Path, "error", err)
		}

		var werr error
		if c.Request().Method == http.MethodHead {
			werr = c.NoContent(status)
		} else {
			werr = fail(c, status, code, msg, nil)
		}
		if werr != nil {
			log.Warn("error response not written", "error", werr)
		}
	}
}
