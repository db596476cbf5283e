package staff

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"floor-service/internal/models"
)

// Waitstaff is the identity resolved from a staff code
type Waitstaff struct {
	ID     int    `json:"id"`
	Name   string `json:"name"`
	Active bool   `json:"active"`
}

// Directory resolves a waitstaff code against the active-staff roster
type Directory interface {
	Resolve(ctx context.Context, waitstaffID int) (*Waitstaff, error)
}

// HTTPDirectory calls the staff directory service
type HTTPDirectory struct {
	baseURL string
	client  *http.Client
}

// NewHTTPDirectory creates the default directory client
func NewHTTPDirectory(baseURL string) *HTTPDirectory {
	return &HTTPDirectory{
		baseURL: baseURL,
		client:  &http.Client{Timeout: 5 * time.Second},
	}
}

// Resolve looks up the waitstaff; any failure to resolve an active
// identity is an UnauthorizedError.
func (d *HTTPDirectory) Resolve(ctx context.Context, waitstaffID int) (*Waitstaff, error) {
	url := fmt.Sprintf("%s/staff/%d", d.baseURL, waitstaffID)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}

	resp, err := d.client.Do(req)
	if err != nil {
		return nil, models.UnauthorizedError{ActorID: waitstaffID}
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, models.UnauthorizedError{ActorID: waitstaffID}
	}

	var ws Waitstaff
	if err := json.NewDecoder(resp.Body).Decode(&ws); err != nil {
		return nil, models.UnauthorizedError{ActorID: waitstaffID}
	}
	if !ws.Active {
		return nil, models.UnauthorizedError{ActorID: waitstaffID}
	}

	return &ws, nil
}
