package models

import "fmt"

// OrderItemRequest is one item of a create-order request
type OrderItemRequest struct {
	ProductID    int     `json:"product_id"`
	Quantity     int     `json:"quantity"`
	Observations *string `json:"observations,omitempty"`
}

// CreateOrderRequest opens or extends the order session for a table
type CreateOrderRequest struct {
	TableID        int                `json:"table_id"`
	PartySize      int                `json:"party_size"`
	WaitstaffID    int                `json:"waitstaff_id"`
	CashRegisterID int                `json:"cash_register_id"`
	CustomerID     *int               `json:"customer_id,omitempty"`
	WarehouseID    *int               `json:"warehouse_id,omitempty"`
	Items          []OrderItemRequest `json:"items"`
	Observations   *string            `json:"observations,omitempty"`
}

// Validate checks the request before any storage mutation is attempted
func (r *CreateOrderRequest) Validate() error {
	if r.TableID <= 0 {
		return ValidationError{Field: "table_id", Message: "table id is required"}
	}
	if r.PartySize <= 0 {
		return ValidationError{Field: "party_size", Message: "party size must be greater than 0"}
	}
	if r.WaitstaffID <= 0 {
		return ValidationError{Field: "waitstaff_id", Message: "waitstaff id is required"}
	}
	if r.CashRegisterID <= 0 {
		return ValidationError{Field: "cash_register_id", Message: "cash register id is required"}
	}
	if len(r.Items) == 0 {
		return ValidationError{Field: "items", Message: "items cannot be empty"}
	}
	if len(r.Items) > 50 {
		return ValidationError{Field: "items", Message: "a maximum of 50 items is allowed"}
	}
	for i, item := range r.Items {
		if err := validateItem(item, i); err != nil {
			return err
		}
	}
	return nil
}

func validateItem(item OrderItemRequest, index int) error {
	if item.ProductID <= 0 {
		return ValidationError{
			Field:   fmt.Sprintf("items[%d].product_id", index),
			Message: "product id is required",
		}
	}
	if item.Quantity <= 0 {
		return ValidationError{
			Field:   fmt.Sprintf("items[%d].quantity", index),
			Message: "item quantity must be greater than 0",
		}
	}
	if item.Quantity > 99 {
		return ValidationError{
			Field:   fmt.Sprintf("items[%d].quantity", index),
			Message: "item quantity must be less than or equal to 99",
		}
	}
	return nil
}

// AddItemsRequest appends items to a session that is already open
type AddItemsRequest struct {
	ActorID     int                `json:"actor_id"`
	WarehouseID *int               `json:"warehouse_id,omitempty"`
	Items       []OrderItemRequest `json:"items"`
}

func (r *AddItemsRequest) Validate() error {
	if r.ActorID <= 0 {
		return ValidationError{Field: "actor_id", Message: "actor id is required"}
	}
	if len(r.Items) == 0 {
		return ValidationError{Field: "items", Message: "items cannot be empty"}
	}
	for i, item := range r.Items {
		if err := validateItem(item, i); err != nil {
			return err
		}
	}
	return nil
}

// CreateOrderResponse is returned after opening/extending a session
type CreateOrderResponse struct {
	SessionID int     `json:"session_id"`
	Created   bool    `json:"created"`
	Total     float64 `json:"total"`
}

// DispatchRequest marks all pending lines of a session as sent
type DispatchRequest struct {
	CashRegisterID int `json:"cash_register_id"`
}

func (r *DispatchRequest) Validate() error {
	if r.CashRegisterID <= 0 {
		return ValidationError{Field: "cash_register_id", Message: "cash register id is required"}
	}
	return nil
}

// DispatchResponse reports how many lines were sent; zero means the
// call was an idempotent no-op
type DispatchResponse struct {
	SessionID int `json:"session_id"`
	Pending   int `json:"pending"`
}

// CancelOrderRequest cancels a session, appending the reason to its
// observations
type CancelOrderRequest struct {
	ActorID     int    `json:"actor_id"`
	Reason      string `json:"reason"`
	WarehouseID *int   `json:"warehouse_id,omitempty"`
}

func (r *CancelOrderRequest) Validate() error {
	if r.ActorID <= 0 {
		return ValidationError{Field: "actor_id", Message: "actor id is required"}
	}
	if r.Reason == "" {
		return ValidationError{Field: "reason", Message: "cancellation reason is required"}
	}
	return nil
}

// RemoveLineRequest deletes one line item
type RemoveLineRequest struct {
	ActorID     int  `json:"actor_id"`
	WarehouseID *int `json:"warehouse_id,omitempty"`
}

func (r *RemoveLineRequest) Validate() error {
	if r.ActorID <= 0 {
		return ValidationError{Field: "actor_id", Message: "actor id is required"}
	}
	return nil
}

// TableStateRequest transitions a table's floor state
type TableStateRequest struct {
	NewState         string  `json:"new_state"`
	WaitstaffID      *int    `json:"waitstaff_id,omitempty"`
	Observations     *string `json:"observations,omitempty"`
	EstimatedMinutes *int    `json:"estimated_minutes,omitempty"`
}

func (r *TableStateRequest) Validate() error {
	if r.NewState == "" {
		return ValidationError{Field: "new_state", Message: "new state is required"}
	}
	if _, err := ParseTableState(r.NewState); err != nil {
		return err
	}
	if r.EstimatedMinutes != nil && *r.EstimatedMinutes <= 0 {
		return ValidationError{Field: "estimated_minutes", Message: "estimated minutes must be greater than 0"}
	}
	return nil
}

// AssignRequest records a waitstaff assignment on a table
type AssignRequest struct {
	WaitstaffID    int     `json:"waitstaff_id"`
	AssignmentKind *string `json:"assignment_kind,omitempty"`
}

func (r *AssignRequest) Validate() error {
	if r.WaitstaffID <= 0 {
		return ValidationError{Field: "waitstaff_id", Message: "waitstaff id is required"}
	}
	return nil
}

// ReleaseRequest frees a table
type ReleaseRequest struct {
	WaitstaffID int `json:"waitstaff_id"`
}

func (r *ReleaseRequest) Validate() error {
	if r.WaitstaffID <= 0 {
		return ValidationError{Field: "waitstaff_id", Message: "waitstaff id is required"}
	}
	return nil
}
