package tables

import (
	"context"
	"fmt"
	"time"

	"floor-service/internal/logger"
	"floor-service/internal/models"
	"floor-service/internal/staff"
)

// Registry is the authoritative state machine for the floor's tables:
// state transitions, waitstaff assignment, occupancy tracking and the
// reservation expiry sweep.
type Registry struct {
	store  Store
	staff  staff.Directory
	cache  *Cache
	logger *logger.Logger
	now    func() time.Time
}

// NewRegistry creates the table registry with an empty floor cache
func NewRegistry(store Store, staffDir staff.Directory, log *logger.Logger) *Registry {
	return &Registry{
		store:  store,
		staff:  staffDir,
		cache:  NewCache(),
		logger: log,
		now:    time.Now,
	}
}

// Transition moves a table to a new state, applying the mandatory side
// effects: occupancy clock start/stop, occupancy record on leaving
// occupied, reservation window on entering reserved.
func (r *Registry) Transition(ctx context.Context, tableID int, req *models.TableStateRequest, requestID string) (*models.Table, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}
	newState, err := models.ParseTableState(req.NewState)
	if err != nil {
		return nil, err
	}

	if req.WaitstaffID != nil {
		if _, err := r.staff.Resolve(ctx, *req.WaitstaffID); err != nil {
			return nil, err
		}
	}

	return r.transition(ctx, tableID, newState, req.WaitstaffID, req.Observations, req.EstimatedMinutes, requestID)
}

func (r *Registry) transition(ctx context.Context, tableID int, newState models.TableState, waitstaffID *int, observations *string, estimatedMinutes *int, requestID string) (*models.Table, error) {
	var result models.Table

	err := r.store.InTx(ctx, func(tx Tx) error {
		table, err := tx.GetTable(ctx, tableID)
		if err != nil {
			return err
		}
		if table == nil || !table.Active {
			return models.NotFoundError{Entity: "table", Key: tableID}
		}

		now := r.now()
		occupiedSince := table.OccupiedSince
		var reservedUntil *time.Time

		// Leaving occupied closes the occupancy clock and writes the
		// history entry
		if table.State == models.StateOccupied && newState != models.StateOccupied && table.OccupiedSince != nil {
			rec := &models.OccupancyRecord{
				TableID:   tableID,
				StartedAt: *table.OccupiedSince,
				EndedAt:   now,
				Duration:  int64(now.Sub(*table.OccupiedSince).Seconds()),
			}
			if err := tx.InsertOccupancy(ctx, rec); err != nil {
				return err
			}
			occupiedSince = nil
		}

		if newState == models.StateOccupied && table.State != models.StateOccupied {
			ts := now
			occupiedSince = &ts
		}

		if newState == models.StateReserved && estimatedMinutes != nil {
			until := now.Add(time.Duration(*estimatedMinutes) * time.Minute)
			reservedUntil = &until
		}

		if err := tx.SetState(ctx, tableID, newState, occupiedSince, reservedUntil); err != nil {
			return err
		}

		if note := models.NormalizeObservationsPtr(observations); note != "" {
			if err := tx.AppendObservations(ctx, tableID, note); err != nil {
				return err
			}
		}

		result = *table
		result.State = newState
		result.OccupiedSince = occupiedSince
		result.ReservedUntil = reservedUntil
		result.UpdatedAt = now

		if waitstaffID != nil && newState == models.StateOccupied {
			if err := tx.SetAssignment(ctx, tableID, waitstaffID, nil); err != nil {
				return err
			}
			result.WaitstaffID = waitstaffID
			result.AssignmentKind = nil
		}

		return nil
	})
	if err != nil {
		return nil, err
	}

	r.cache.Update(result)

	r.logger.Info("table_state_changed", fmt.Sprintf("Table %d is now %s", tableID, newState), requestID, map[string]interface{}{
		"table_id":  tableID,
		"new_state": string(newState),
	})

	return &result, nil
}

// Assign records or overwrites the table's waitstaff assignment without
// changing its state
func (r *Registry) Assign(ctx context.Context, tableID int, req *models.AssignRequest, requestID string) (*models.Table, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}
	if _, err := r.staff.Resolve(ctx, req.WaitstaffID); err != nil {
		return nil, err
	}

	var result models.Table
	err := r.store.InTx(ctx, func(tx Tx) error {
		table, err := tx.GetTable(ctx, tableID)
		if err != nil {
			return err
		}
		if table == nil || !table.Active {
			return models.NotFoundError{Entity: "table", Key: tableID}
		}

		if err := tx.SetAssignment(ctx, tableID, &req.WaitstaffID, req.AssignmentKind); err != nil {
			return err
		}

		result = *table
		result.WaitstaffID = &req.WaitstaffID
		result.AssignmentKind = req.AssignmentKind
		result.UpdatedAt = r.now()
		return nil
	})
	if err != nil {
		return nil, err
	}

	r.cache.Update(result)

	r.logger.Info("table_assigned", fmt.Sprintf("Table %d assigned to waitstaff %d", tableID, req.WaitstaffID), requestID, map[string]interface{}{
		"table_id":     tableID,
		"waitstaff_id": req.WaitstaffID,
	})

	return &result, nil
}

// Release frees a table; the occupancy side effects of leaving occupied
// apply. The actor must resolve against the staff directory.
func (r *Registry) Release(ctx context.Context, tableID, waitstaffID int, requestID string) (*models.Table, error) {
	if _, err := r.staff.Resolve(ctx, waitstaffID); err != nil {
		return nil, err
	}
	return r.transition(ctx, tableID, models.StateFree, nil, nil, nil, requestID)
}

// MarkOccupied is the transition the registry applies when an order is
// placed against the table. Entering occupied needs no staff-directory
// resolution; the assignment is recorded from the order's waitstaff.
func (r *Registry) MarkOccupied(ctx context.Context, tableID, waitstaffID int, requestID string) error {
	_, err := r.transition(ctx, tableID, models.StateOccupied, &waitstaffID, nil, nil, requestID)
	return err
}

// MarkFree returns a table to free after its session is cancelled or
// closed
func (r *Registry) MarkFree(ctx context.Context, tableID int, requestID string) error {
	_, err := r.transition(ctx, tableID, models.StateFree, nil, nil, nil, requestID)
	return err
}

// FloorSnapshot returns the per-zone live floor view
func (r *Registry) FloorSnapshot(ctx context.Context) ([]models.FloorZone, error) {
	return r.cache.Snapshot(r.now()), nil
}

// WarmCache loads the full floor state from storage
func (r *Registry) WarmCache(ctx context.Context) error {
	tables, err := r.store.ListTables(ctx)
	if err != nil {
		return err
	}
	r.cache.ReplaceAll(tables)
	return nil
}

// ExpireDueReservations frees tables whose reservation window has
// elapsed. The state is re-checked inside the transaction: a table that
// is no longer reserved is left alone.
func (r *Registry) ExpireDueReservations(ctx context.Context) error {
	ids, err := r.store.ExpiredReservations(ctx)
	if err != nil {
		return err
	}

	for _, tableID := range ids {
		var result models.Table
		applied := false

		err := r.store.InTx(ctx, func(tx Tx) error {
			table, err := tx.GetTable(ctx, tableID)
			if err != nil {
				return err
			}
			// No-op if the state changed since the reservation was scheduled
			if table == nil || table.State != models.StateReserved {
				return nil
			}
			if table.ReservedUntil == nil || table.ReservedUntil.After(r.now()) {
				return nil
			}

			if err := tx.SetState(ctx, tableID, models.StateFree, nil, nil); err != nil {
				return err
			}

			result = *table
			result.State = models.StateFree
			result.ReservedUntil = nil
			result.UpdatedAt = r.now()
			applied = true
			return nil
		})
		if err != nil {
			r.logger.Error("reservation_expiry_failed", "Failed to expire reservation", "", err, map[string]interface{}{
				"table_id": tableID,
			})
			continue
		}

		if applied {
			r.cache.Update(result)
			r.logger.Info("reservation_expired", fmt.Sprintf("Table %d reservation expired", tableID), "", map[string]interface{}{
				"table_id": tableID,
			})
		}
	}

	return nil
}

// RunReservationSweeper periodically expires due reservations until the
// context is cancelled
func (r *Registry) RunReservationSweeper(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := r.ExpireDueReservations(ctx); err != nil {
				r.logger.Error("reservation_sweep_failed", "Reservation sweep failed", "", err, nil)
			}
		}
	}
}

// RunCacheResync periodically reloads the floor cache from storage as a
// consistency backstop
func (r *Registry) RunCacheResync(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := r.WarmCache(ctx); err != nil {
				r.logger.Error("cache_resync_failed", "Floor cache resync failed", "", err, nil)
			}
		}
	}
}
