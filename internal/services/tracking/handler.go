package tracking

import (
	"strconv"

	"github.com/labstack/echo/v4"

	"floor-service/internal/logger"
	"floor-service/internal/models"
	"floor-service/internal/web"
)

// Handler exposes the read-side queries over HTTP
type Handler struct {
	service *Service
	logger  *logger.Logger
}

// NewHandler creates the tracking handler
func NewHandler(service *Service, log *logger.Logger) *Handler {
	return &Handler{
		service: service,
		logger:  log,
	}
}

// ActiveSessions handles GET /orders/active
func (h *Handler) ActiveSessions(c echo.Context) error {
	requestID := web.RequestID(c)

	sessions, err := h.service.ActiveSessions(c.Request().Context(), requestID)
	if err != nil {
		return web.Fail(c, err)
	}

	return web.OK(c, sessions)
}

// SessionDetail handles GET /orders/:id
func (h *Handler) SessionDetail(c echo.Context) error {
	requestID := web.RequestID(c)

	sessionID, err := strconv.Atoi(c.Param("id"))
	if err != nil {
		return web.Fail(c, models.ValidationError{Field: "id", Message: "invalid session id"})
	}

	detail, err := h.service.SessionDetail(c.Request().Context(), sessionID, requestID)
	if err != nil {
		return web.Fail(c, err)
	}

	return web.OK(c, detail)
}

// OpenSessionForTable handles GET /tables/:id/session
func (h *Handler) OpenSessionForTable(c echo.Context) error {
	requestID := web.RequestID(c)

	tableID, err := strconv.Atoi(c.Param("id"))
	if err != nil {
		return web.Fail(c, models.ValidationError{Field: "id", Message: "invalid table id"})
	}

	resp, err := h.service.OpenSessionForTable(c.Request().Context(), tableID, requestID)
	if err != nil {
		return web.Fail(c, err)
	}

	return web.OK(c, resp)
}
