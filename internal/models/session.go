package models

import (
	"strings"
	"time"
)

// SessionStatus represents the lifecycle status of an order session
type SessionStatus string

const (
	SessionOpen      SessionStatus = "open"
	SessionClosed    SessionStatus = "closed"
	SessionCancelled SessionStatus = "cancelled"
)

// Session is the open tab against a table, from first item added
// until payment or cancellation
type Session struct {
	ID           int           `json:"id" db:"id"`
	TableID      int           `json:"table_id" db:"table_id"`
	PartySize    int           `json:"party_size" db:"party_size"`
	WaitstaffID  int           `json:"waitstaff_id" db:"waitstaff_id"`
	CustomerID   *int          `json:"customer_id,omitempty" db:"customer_id"`
	Status       SessionStatus `json:"status" db:"status"`
	Total        float64       `json:"total" db:"total"`
	Observations string        `json:"observations,omitempty" db:"observations"`
	OpenedAt     time.Time     `json:"opened_at" db:"opened_at"`
	ClosedAt     *time.Time    `json:"closed_at,omitempty" db:"closed_at"`
}

// LineItem is one product entry within a session. Unit price, display
// name and category are captured when the line is created and never
// re-resolved against the catalog.
type LineItem struct {
	ID            int        `json:"id" db:"id"`
	SessionID     int        `json:"session_id" db:"session_id"`
	ProductID     int        `json:"product_id" db:"product_id"`
	ProductName   string     `json:"product_name" db:"product_name"`
	Category      string     `json:"category" db:"category"`
	Quantity      int        `json:"quantity" db:"quantity"`
	UnitPrice     float64    `json:"unit_price" db:"unit_price"`
	Observations  string     `json:"observations,omitempty" db:"observations"`
	DispatchedQty int        `json:"dispatched_qty" db:"dispatched_qty"`
	DispatchedAt  *time.Time `json:"dispatched_at,omitempty" db:"dispatched_at"`
	CreatedAt     time.Time  `json:"created_at" db:"created_at"`
}

// Pending reports whether the line still has quantity not yet sent
// to preparation
func (l *LineItem) Pending() bool {
	return l.DispatchedQty < l.Quantity
}

// CanMergeWith reports whether an incoming add request may increment
// this line instead of creating a new one: same product, nothing
// dispatched yet, and byte-equal observations after normalization.
func (l *LineItem) CanMergeWith(productID int, observations string) bool {
	return l.ProductID == productID &&
		l.DispatchedQty == 0 &&
		l.Observations == NormalizeObservations(observations)
}

// NormalizeObservations collapses absent, empty and whitespace-only
// observations to the empty string
func NormalizeObservations(s string) string {
	return strings.TrimSpace(s)
}

// NormalizeObservationsPtr normalizes an optional request field
func NormalizeObservationsPtr(s *string) string {
	if s == nil {
		return ""
	}
	return NormalizeObservations(*s)
}

// SessionDetail is the read-side assembly of a session with its lines
type SessionDetail struct {
	Session
	TableNumber int        `json:"table_number"`
	Lines       []LineItem `json:"lines"`
}

// DispatchEvent records a kitchen dispatch referencing the session and
// the active cash-register context
type DispatchEvent struct {
	ID             int       `json:"id" db:"id"`
	SessionID      int       `json:"session_id" db:"session_id"`
	CashRegisterID int       `json:"cash_register_id" db:"cash_register_id"`
	LineCount      int       `json:"line_count" db:"line_count"`
	DispatchedAt   time.Time `json:"dispatched_at" db:"dispatched_at"`
}
