package handler

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/nw-com/nw-patrol/internal/domain"
)

// UserLifecycle is the set of admin operations exposed over HTTP.
type UserLifecycle interface {
	Authorize(ctx context.Context, credential string) error
	CreateUser(ctx context.Context, credential string, in domain.CreateUserInput) (*domain.CreateUserResult, error)
	UpdateUser(ctx context.Context, credential string, in domain.UpdateUserInput) (*domain.Result, error)
	DeleteUser(ctx context.Context, credential string, in domain.DeleteUserInput) (*domain.Result, error)
}

// UserHandler handles the /v1/admin/users endpoints.
type UserHandler struct {
	uc         UserLifecycle
	credential CredentialExtractor
	logger     *slog.Logger
}

// NewUserHandler creates a new user handler.
func NewUserHandler(uc UserLifecycle, credential CredentialExtractor, logger *slog.Logger) *UserHandler {
	return &UserHandler{
		uc:         uc,
		credential: credential,
		logger:     logger.With("component", "user_handler"),
	}
}

// Register mounts the user routes on g.
func (h *UserHandler) Register(g *echo.Group) {
	g.POST("/users", h.Create)
	g.PUT("/users/:id", h.Update)
	g.DELETE("/users/:id", h.Delete)
}

// Create handles POST /users.
func (h *UserHandler) Create(c echo.Context) error {
	var in domain.CreateUserInput
	if err := c.Bind(&in); err != nil {
		return h.rejectBody(c, err)
	}

	result, err := h.uc.CreateUser(c.Request().Context(), h.credential(c), in)
	if err != nil {
		return TranslateError(c, h.logger, err)
	}
	return c.JSON(http.StatusOK, result)
}

// Update handles PUT /users/:id. The path id wins over any id in the body.
func (h *UserHandler) Update(c echo.Context) error {
	var in domain.UpdateUserInput
	if err := c.Bind(&in); err != nil {
		return h.rejectBody(c, err)
	}
	in.ID = c.Param("id")

	result, err := h.uc.UpdateUser(c.Request().Context(), h.credential(c), in)
	if err != nil {
		return TranslateError(c, h.logger, err)
	}
	return c.JSON(http.StatusOK, result)
}

// Delete handles DELETE /users/:id.
func (h *UserHandler) Delete(c echo.Context) error {
	in := domain.DeleteUserInput{ID: c.Param("id")}

	result, err := h.uc.DeleteUser(c.Request().Context(), h.credential(c), in)
	if err != nil {
		return TranslateError(c, h.logger, err)
	}
	return c.JSON(http.StatusOK, result)
}

// rejectBody answers an undecodable body. Authorization still comes first, so
// a caller without admin rights learns nothing about request parsing.
func (h *UserHandler) rejectBody(c echo.Context, err error) error {
	if authErr := h.uc.Authorize(c.Request().Context(), h.credential(c)); authErr != nil {
		return TranslateError(c, h.logger, authErr)
	}
	return TranslateError(c, h.logger, domain.WrapError(domain.KindInvalidArgument, "malformed request body", err))
}
