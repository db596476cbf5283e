package web

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"

	"floor-service/internal/models"
)

// Envelope is the JSON response shape shared by every endpoint
type Envelope struct {
	Success bool        `json:"success"`
	Data    interface{} `json:"data,omitempty"`
	Error   string      `json:"error,omitempty"`
	Message string      `json:"message,omitempty"`
}

// OK writes a success envelope
func OK(c echo.Context, data interface{}) error {
	return c.JSON(http.StatusOK, Envelope{Success: true, Data: data})
}

// Fail maps a domain error onto the envelope and HTTP status. Storage
// and other unclassified errors surface as a generic 500 with no
// internal detail.
func Fail(c echo.Context, err error) error {
	var verr models.ValidationError
	if errors.As(err, &verr) {
		return c.JSON(http.StatusBadRequest, Envelope{Success: false, Error: verr.Error()})
	}

	var nf models.NotFoundError
	if errors.As(err, &nf) {
		return c.JSON(http.StatusNotFound, Envelope{Success: false, Error: nf.Error()})
	}

	var conflict models.ConflictError
	if errors.As(err, &conflict) {
		return c.JSON(http.StatusConflict, Envelope{
			Success: false,
			Error:   conflict.Error(),
			Message: "concurrent update, retry the request",
		})
	}

	var unauthorized models.UnauthorizedError
	if errors.As(err, &unauthorized) {
		return c.JSON(http.StatusUnauthorized, Envelope{Success: false, Error: unauthorized.Error()})
	}

	return c.JSON(http.StatusInternalServerError, Envelope{Success: false, Error: "internal server error"})
}
