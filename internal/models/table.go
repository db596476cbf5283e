package models

import (
	"fmt"
	"time"
)

// TableState represents the floor state of a physical table
type TableState string

const (
	StateFree        TableState = "free"
	StateOccupied    TableState = "occupied"
	StateReserved    TableState = "reserved"
	StateDirty       TableState = "dirty"
	StateMaintenance TableState = "maintenance"
	StateBlocked     TableState = "blocked"
)

// ParseTableState validates a state name coming off the wire
func ParseTableState(s string) (TableState, error) {
	switch TableState(s) {
	case StateFree, StateOccupied, StateReserved, StateDirty, StateMaintenance, StateBlocked:
		return TableState(s), nil
	}
	return "", ValidationError{Field: "new_state", Message: fmt.Sprintf("unknown table state %q", s)}
}

// Table represents a physical seating unit with its live floor state
type Table struct {
	ID             int        `json:"id" db:"id"`
	Number         int        `json:"number" db:"number"`
	Zone           string     `json:"zone" db:"zone"`
	Capacity       int        `json:"capacity" db:"capacity"`
	DisplayName    string     `json:"display_name" db:"display_name"`
	State          TableState `json:"state" db:"state"`
	WaitstaffID    *int       `json:"waitstaff_id,omitempty" db:"waitstaff_id"`
	AssignmentKind *string    `json:"assignment_kind,omitempty" db:"assignment_kind"`
	Observations   string     `json:"observations,omitempty" db:"observations"`
	OccupiedSince  *time.Time `json:"occupied_since,omitempty" db:"occupied_since"`
	ReservedUntil  *time.Time `json:"reserved_until,omitempty" db:"reserved_until"`
	Active         bool       `json:"active" db:"active"`
	CreatedAt      time.Time  `json:"created_at,omitempty" db:"created_at"`
	UpdatedAt      time.Time  `json:"updated_at,omitempty" db:"updated_at"`
}

// Elapsed returns how long the table has been occupied, zero when it is not
func (t *Table) Elapsed(now time.Time) time.Duration {
	if t.State != StateOccupied || t.OccupiedSince == nil {
		return 0
	}
	return now.Sub(*t.OccupiedSince)
}

// FormatElapsed renders an occupancy duration for the floor snapshot
func FormatElapsed(d time.Duration) string {
	if d <= 0 {
		return ""
	}
	h := int(d.Hours())
	m := int(d.Minutes()) % 60
	if h > 0 {
		return fmt.Sprintf("%dh %02dm", h, m)
	}
	return fmt.Sprintf("%dm", m)
}

// OccupancyRecord is the append-only history entry written when a
// table leaves the occupied state
type OccupancyRecord struct {
	ID        int       `json:"id" db:"id"`
	TableID   int       `json:"table_id" db:"table_id"`
	StartedAt time.Time `json:"started_at" db:"started_at"`
	EndedAt   time.Time `json:"ended_at" db:"ended_at"`
	Duration  int64     `json:"duration_seconds" db:"duration_seconds"`
}

// FloorTable is one table in the floor snapshot
type FloorTable struct {
	Number      int        `json:"number"`
	DisplayName string     `json:"display_name"`
	State       TableState `json:"state"`
	WaitstaffID *int       `json:"waitstaff_id,omitempty"`
	Occupancy   string     `json:"occupancy,omitempty"`
}

// FloorZone groups the snapshot per zone
type FloorZone struct {
	Zone   string       `json:"zone"`
	Tables []FloorTable `json:"tables"`
}
