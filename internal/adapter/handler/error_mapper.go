package handler

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/nw-com/nw-patrol/internal/domain"
)

const internalErrorMessage = "internal error"

// ErrorResponse is the JSON body of every failed request.
type ErrorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// StatusForKind maps an error kind to its HTTP status.
func StatusForKind(kind domain.ErrorKind) int {
	switch kind {
	case domain.KindUnauthenticated:
		return http.StatusUnauthorized
	case domain.KindPermissionDenied:
		return http.StatusForbidden
	case domain.KindInvalidArgument:
		return http.StatusBadRequest
	case domain.KindAlreadyExists:
		return http.StatusConflict
	case domain.KindNotFound:
		return http.StatusNotFound
	default:
		return http.StatusInternalServerError
	}
}

// TranslateError writes err as a status and {code,message} body.
// Causes are logged, never returned; internal failures get a generic message.
func TranslateError(c echo.Context, logger *slog.Logger, err error) error {
	kind := domain.KindOf(err)
	message := internalErrorMessage

	var de *domain.Error
	if errors.As(err, &de) && kind != domain.KindInternal {
		message = de.Message
	}

	ctx := c.Request().Context()
	if kind == domain.KindInternal {
		logger.ErrorContext(ctx, "request failed",
			"method", c.Request().Method,
			"path", c.Path(),
			"code", kind.Code(),
			"error", err)
	} else {
		logger.InfoContext(ctx, "request rejected",
			"method", c.Request().Method,
			"path", c.Path(),
			"code", kind.Code(),
			"error", err)
	}

	return c.JSON(StatusForKind(kind), ErrorResponse{
		Code:    kind.Code(),
		Message: message,
	})
}

// NewHTTPErrorHandler renders errors raised by echo and its middleware
// (unknown routes, body limit, rate limit) in the same shape as domain errors.
func NewHTTPErrorHandler(logger *slog.Logger) echo.HTTPErrorHandler {
	return func(err error, c echo.Context) {
		if c.Response().Committed {
			return
		}

		var he *echo.HTTPError
		if !errors.As(err, &he) {
			_ = TranslateError(c, logger, err)
			return
		}

		message := http.StatusText(he.Code)
		if m, ok := he.Message.(string); ok && m != "" {
			message = m
		}
		if he.Code >= http.StatusInternalServerError {
			logger.ErrorContext(c.Request().Context(), "http error", "status", he.Code, "error", err)
			message = internalErrorMessage
		}

		_ = c.JSON(he.Code, ErrorResponse{
			Code:    codeForStatus(he.Code),
			Message: message,
		})
	}
}

func codeForStatus(status int) string {
	switch status {
	case http.StatusUnauthorized:
		return domain.KindUnauthenticated.Code()
	case http.StatusForbidden:
		return domain.KindPermissionDenied.Code()
	case http.StatusBadRequest, http.StatusRequestEntityTooLarge, http.StatusUnsupportedMediaType:
		return domain.KindInvalidArgument.Code()
	case http.StatusConflict:
		return domain.KindAlreadyExists.Code()
	case http.StatusNotFound, http.StatusMethodNotAllowed:
		return domain.KindNotFound.Code()
	case http.StatusTooManyRequests:
		return "rate-limited"
	default:
		return domain.KindInternal.Code()
	}
}
