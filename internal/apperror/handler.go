package apperror

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/suteetoe/shopdash/pkg/logger"
	"go.uber.org/zap"
)

// HTTPErrorHandler renders errors as {"error": message}
func HTTPErrorHandler() echo.HTTPErrorHandler {
	return func(err error, c echo.Context) {
		if c.Response().Committed {
			return
		}
		log := logger.FromEcho(c)

		code := http.StatusInternalServerError
		message := "internal server error"

		var appErr *Error
		var httpErr *echo.HTTPError
		switch {
		case errors.As(err, &appErr):
			code = appErr.Kind.Status()
			message = appErr.Message
			if code >= http.StatusInternalServerError {
				log.Error("Request failed",
					zap.String("kind", appErr.Kind.String()),
					zap.Error(err))
			}
		case errors.As(err, &httpErr):
			code = httpErr.Code
			message = fmt.Sprint(httpErr.Message)
			if m, ok := httpErr.Message.(string); ok {
				message = m
			}
		default:
			log.Error("Unhandled error", zap.Error(err))
		}

		if c.Request().Method == http.MethodHead {
			err = c.NoContent(code)
		} else {
			err = c.JSON(code, echo.Map{"error": message})
		}
		if err != nil {
			log.Error("Failed to write error response", zap.Error(err))
		}
	}
}
