package session

import (
	"strconv"

	"github.com/labstack/echo/v4"

	"floor-service/internal/logger"
	"floor-service/internal/models"
	"floor-service/internal/services/tables"
	"floor-service/internal/web"
)

// Handler exposes the order session operations over HTTP
type Handler struct {
	service  *Service
	registry *tables.Registry
	logger   *logger.Logger
}

// NewHandler creates the session handler
func NewHandler(service *Service, registry *tables.Registry, log *logger.Logger) *Handler {
	return &Handler{
		service:  service,
		registry: registry,
		logger:   log,
	}
}

// CreateOrder handles POST /orders: opens or reuses the table's session,
// adds the items and drives the table's transition to occupied.
func (h *Handler) CreateOrder(c echo.Context) error {
	requestID := web.RequestID(c)

	var req models.CreateOrderRequest
	if err := c.Bind(&req); err != nil {
		return web.Fail(c, models.ValidationError{Field: "body", Message: "invalid JSON payload"})
	}

	resp, err := h.service.PlaceOrder(c.Request().Context(), &req, requestID)
	if err != nil {
		h.logger.Error("order_failed", "Failed to place order", requestID, err, map[string]interface{}{
			"table_id": req.TableID,
		})
		return web.Fail(c, err)
	}

	// The registry reacts to the same request; the committed order is
	// not rolled back if the transition fails.
	if err := h.registry.MarkOccupied(c.Request().Context(), req.TableID, req.WaitstaffID, requestID); err != nil {
		h.logger.Error("table_transition_failed", "Order placed but table transition failed", requestID, err, map[string]interface{}{
			"table_id":   req.TableID,
			"session_id": resp.SessionID,
		})
	}

	return web.OK(c, resp)
}

// AddItems handles POST /orders/:id/items: appends items to the open
// session without re-sending the table context.
func (h *Handler) AddItems(c echo.Context) error {
	requestID := web.RequestID(c)

	sessionID, err := strconv.Atoi(c.Param("id"))
	if err != nil {
		return web.Fail(c, models.ValidationError{Field: "id", Message: "invalid session id"})
	}

	var req models.AddItemsRequest
	if err := c.Bind(&req); err != nil {
		return web.Fail(c, models.ValidationError{Field: "body", Message: "invalid JSON payload"})
	}
	if err := req.Validate(); err != nil {
		return web.Fail(c, err)
	}

	total, err := h.service.AddItems(c.Request().Context(), sessionID, req.Items, req.WarehouseID, req.ActorID, requestID)
	if err != nil {
		return web.Fail(c, err)
	}

	return web.OK(c, map[string]interface{}{
		"session_id": sessionID,
		"total":      total,
	})
}

// CancelOrder handles POST /orders/:id/cancel
func (h *Handler) CancelOrder(c echo.Context) error {
	requestID := web.RequestID(c)

	sessionID, err := strconv.Atoi(c.Param("id"))
	if err != nil {
		return web.Fail(c, models.ValidationError{Field: "id", Message: "invalid session id"})
	}

	var req models.CancelOrderRequest
	if err := c.Bind(&req); err != nil {
		return web.Fail(c, models.ValidationError{Field: "body", Message: "invalid JSON payload"})
	}

	tableID, err := h.service.Cancel(c.Request().Context(), sessionID, &req, requestID)
	if err != nil {
		return web.Fail(c, err)
	}

	if err := h.registry.MarkFree(c.Request().Context(), tableID, requestID); err != nil {
		h.logger.Error("table_transition_failed", "Session cancelled but table transition failed", requestID, err, map[string]interface{}{
			"table_id": tableID,
		})
	}

	return web.OK(c, map[string]interface{}{
		"session_id": sessionID,
		"status":     string(models.SessionCancelled),
	})
}

// RemoveLine handles DELETE /orders/lines/:lineId
func (h *Handler) RemoveLine(c echo.Context) error {
	requestID := web.RequestID(c)

	lineID, err := strconv.Atoi(c.Param("lineId"))
	if err != nil {
		return web.Fail(c, models.ValidationError{Field: "lineId", Message: "invalid line id"})
	}

	var req models.RemoveLineRequest
	if err := c.Bind(&req); err != nil {
		return web.Fail(c, models.ValidationError{Field: "body", Message: "invalid JSON payload"})
	}

	total, err := h.service.RemoveLine(c.Request().Context(), lineID, &req, requestID)
	if err != nil {
		return web.Fail(c, err)
	}

	return web.OK(c, map[string]interface{}{
		"line_id": lineID,
		"total":   total,
	})
}
