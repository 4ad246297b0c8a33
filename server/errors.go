package server

import (
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/hrygo/feedbacksense/ai/observability/logging"
	"github.com/hrygo/feedbacksense/server/service/analyzer"
)

const internalErrorMessage = "internal server error"

type errorResponse struct {
	Status string `json:"status"`
	Error  string `json:"error"`
}

// NewHTTPErrorHandler writes errors as {"status":"error","error":...}.
// Details of unexpected errors are logged, never returned.
func NewHTTPErrorHandler(logger *slog.Logger) echo.HTTPErrorHandler {
	return func(err error, c echo.Context) {
		if c.Response().Committed {
			return
		}

		code := http.StatusInternalServerError
		message := internalErrorMessage

		var httpErr *echo.HTTPError
		switch {
		case analyzer.IsValidationError(err):
			code, message = http.StatusBadRequest, err.Error()
		case errors.As(err, &httpErr):
			code, message = httpErr.Code, fmt.Sprint(httpErr.Message)
		}

		if code >= http.StatusInternalServerError {
			logging.FromContext(c.Request().Context()).Error("request failed",
				"path", c.Path(),
				"error", err)
		}

		if c.Request().Method == http.MethodHead {
			err = c.NoContent(code)
		} else {
			err = c.JSON(code, errorResponse{Status: "error", Error: message})
		}
		if err != nil {
			logger.Error("failed to write error response", "error", err)
		}
	}
}
