package httpapi

import (
	"errors"
	"net/http"

	"storefront-be/internal/apperror"
	"storefront-be/internal/logger"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"
)

// Response is the envelope of every JSON answer.
type Response struct {
	Success bool       `json:"success"`
	Code    int        `json:"code"`
	Message string     `json:"message"`
	Data    any        `json:"data,omitempty"`
	Error   *ErrorInfo `json:"error,omitempty"`
}

type ErrorInfo struct {
	Code      string `json:"code"`
	Details   string `json:"details,omitempty"`
	Available *int   `json:"available,omitempty"`
	Retryable bool   `json:"retryable,omitempty"`
}

func Success(c echo.Context, status int, data any, message string) error {
	if message == "" {
		message = "Success"
	}
	return c.JSON(status, Response{
		Success: true,
		Code:    status,
		Message: message,
		Data:    data,
	})
}

func Error(c echo.Context, status int, code, message, details string) error {
	if message == "" {
		message = http.StatusText(status)
	}
	return c.JSON(status, Response{
		Success: false,
		Code:    status,
		Message: message,
		Error: &ErrorInfo{
			Code:    code,
			Details: details,
		},
	})
}

// HandleAppError renders err with the status of its code. Errors outside the
// taxonomy are logged and reported generically.
func HandleAppError(c echo.Context, err error) error {
	var appErr *apperror.Error
	if !errors.As(err, &appErr) {
		appErr = apperror.From(err)
	}

	status := appErr.HTTPStatus()
	if status >= http.StatusInternalServerError {
		logger.FromCtx(c.Request().Context()).Error("request failed",
			zap.String("layer", "http"),
			zap.String("path", c.Path()),
			zap.String("code", string(appErr.Code)),
			zap.Error(err),
		)
	}

	return c.JSON(status, Response{
		Success: false,
		Code:    status,
		Message: appErr.Message,
		Error: &ErrorInfo{
			Code:      string(appErr.Code),
			Details:   appErr.Details,
			Available: appErr.Available,
			Retryable: appErr.Retryable(),
		},
	})
}

// errorHandler covers errors returned by echo itself, such as unknown routes.
func errorHandler(err error, c echo.Context) {
	if c.Response().Committed {
		return
	}

	var httpErr *echo.HTTPError
	if errors.As(err, &httpErr) {
		msg, _ := httpErr.Message.(string)
		_ = Error(c, httpErr.Code, "HTTP_ERROR", msg, "")
		return
	}

	_ = HandleAppError(c, err)
}
