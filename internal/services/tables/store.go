package tables

import (
	"context"
	"time"

	"floor-service/internal/models"
)

// Store gives the registry transactional access to table rows and the
// occupancy log
type Store interface {
	InTx(ctx context.Context, fn func(tx Tx) error) error

	// ListTables returns all active tables, for snapshots and cache
	// resynchronization.
	ListTables(ctx context.Context) ([]models.Table, error)

	// ExpiredReservations returns ids of tables whose reservation window
	// has elapsed.
	ExpiredReservations(ctx context.Context) ([]int, error)
}

// Tx is the per-transaction surface
type Tx interface {
	// GetTable locks and returns the row; nil when absent.
	GetTable(ctx context.Context, tableID int) (*models.Table, error)

	SetState(ctx context.Context, tableID int, state models.TableState, occupiedSince, reservedUntil *time.Time) error
	AppendObservations(ctx context.Context, tableID int, note string) error
	SetAssignment(ctx context.Context, tableID int, waitstaffID *int, kind *string) error
	InsertOccupancy(ctx context.Context, rec *models.OccupancyRecord) error
}
