package dispatch

import (
	"strconv"

	"github.com/labstack/echo/v4"

	"floor-service/internal/logger"
	"floor-service/internal/models"
	"floor-service/internal/web"
)

// Handler exposes kitchen dispatch over HTTP
type Handler struct {
	router *Router
	logger *logger.Logger
}

// NewHandler creates the dispatch handler
func NewHandler(router *Router, log *logger.Logger) *Handler {
	return &Handler{
		router: router,
		logger: log,
	}
}

// Dispatch handles POST /orders/:id/dispatch
func (h *Handler) Dispatch(c echo.Context) error {
	requestID := web.RequestID(c)

	sessionID, err := strconv.Atoi(c.Param("id"))
	if err != nil {
		return web.Fail(c, models.ValidationError{Field: "id", Message: "invalid session id"})
	}

	var req models.DispatchRequest
	if err := c.Bind(&req); err != nil {
		return web.Fail(c, models.ValidationError{Field: "body", Message: "invalid JSON payload"})
	}

	resp, err := h.router.Dispatch(c.Request().Context(), sessionID, &req, requestID)
	if err != nil {
		return web.Fail(c, err)
	}

	return web.OK(c, resp)
}
