package tables

import (
	"strconv"

	"github.com/labstack/echo/v4"

	"floor-service/internal/logger"
	"floor-service/internal/models"
	"floor-service/internal/web"
)

// Handler exposes the table registry over HTTP
type Handler struct {
	registry *Registry
	logger   *logger.Logger
}

// NewHandler creates the tables handler
func NewHandler(registry *Registry, log *logger.Logger) *Handler {
	return &Handler{
		registry: registry,
		logger:   log,
	}
}

// ChangeState handles PUT /tables/:id/state
func (h *Handler) ChangeState(c echo.Context) error {
	requestID := web.RequestID(c)

	tableID, err := strconv.Atoi(c.Param("id"))
	if err != nil {
		return web.Fail(c, models.ValidationError{Field: "id", Message: "invalid table id"})
	}

	var req models.TableStateRequest
	if err := c.Bind(&req); err != nil {
		return web.Fail(c, models.ValidationError{Field: "body", Message: "invalid JSON payload"})
	}

	table, err := h.registry.Transition(c.Request().Context(), tableID, &req, requestID)
	if err != nil {
		return web.Fail(c, err)
	}

	return web.OK(c, table)
}

// Assign handles POST /tables/:id/assign
func (h *Handler) Assign(c echo.Context) error {
	requestID := web.RequestID(c)

	tableID, err := strconv.Atoi(c.Param("id"))
	if err != nil {
		return web.Fail(c, models.ValidationError{Field: "id", Message: "invalid table id"})
	}

	var req models.AssignRequest
	if err := c.Bind(&req); err != nil {
		return web.Fail(c, models.ValidationError{Field: "body", Message: "invalid JSON payload"})
	}

	table, err := h.registry.Assign(c.Request().Context(), tableID, &req, requestID)
	if err != nil {
		return web.Fail(c, err)
	}

	return web.OK(c, table)
}

// Release handles PUT /tables/:id/release
func (h *Handler) Release(c echo.Context) error {
	requestID := web.RequestID(c)

	tableID, err := strconv.Atoi(c.Param("id"))
	if err != nil {
		return web.Fail(c, models.ValidationError{Field: "id", Message: "invalid table id"})
	}

	var req models.ReleaseRequest
	if err := c.Bind(&req); err != nil {
		return web.Fail(c, models.ValidationError{Field: "body", Message: "invalid JSON payload"})
	}
	if err := req.Validate(); err != nil {
		return web.Fail(c, err)
	}

	table, err := h.registry.Release(c.Request().Context(), tableID, req.WaitstaffID, requestID)
	if err != nil {
		return web.Fail(c, err)
	}

	return web.OK(c, table)
}

// Floor handles GET /floor
func (h *Handler) Floor(c echo.Context) error {
	zones, err := h.registry.FloorSnapshot(c.Request().Context())
	if err != nil {
		return web.Fail(c, err)
	}

	return web.OK(c, zones)
}
