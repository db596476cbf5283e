package tables

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"

	"floor-service/internal/database"
	"floor-service/internal/models"
)

// PostgresStore implements Store on the shared connection pool
type PostgresStore struct {
	db *database.DB
}

// NewPostgresStore creates the production store
func NewPostgresStore(db *database.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

func (s *PostgresStore) InTx(ctx context.Context, fn func(tx Tx) error) error {
	return s.db.InTx(ctx, func(pgtx pgx.Tx) error {
		return fn(&pgTx{tx: pgtx})
	})
}

func (s *PostgresStore) ListTables(ctx context.Context) ([]models.Table, error) {
	rows, err := s.db.Query(ctx, database.ListTablesSQL)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var tables []models.Table
	for rows.Next() {
		var t models.Table
		err := rows.Scan(
			&t.ID, &t.Number, &t.Zone, &t.Capacity, &t.DisplayName,
			&t.State, &t.WaitstaffID, &t.AssignmentKind, &t.Observations,
			&t.OccupiedSince, &t.ReservedUntil, &t.Active,
			&t.CreatedAt, &t.UpdatedAt,
		)
		if err != nil {
			return nil, err
		}
		tables = append(tables, t)
	}
	return tables, rows.Err()
}

func (s *PostgresStore) ExpiredReservations(ctx context.Context) ([]int, error) {
	rows, err := s.db.Query(ctx, database.ListExpiredReservationsSQL)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var ids []int
	for rows.Next() {
		var id int
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

type pgTx struct {
	tx pgx.Tx
}

func (t *pgTx) GetTable(ctx context.Context, tableID int) (*models.Table, error) {
	var table models.Table
	err := t.tx.QueryRow(ctx, database.GetTableForUpdateSQL, tableID).Scan(
		&table.ID, &table.Number, &table.Zone, &table.Capacity, &table.DisplayName,
		&table.State, &table.WaitstaffID, &table.AssignmentKind, &table.Observations,
		&table.OccupiedSince, &table.ReservedUntil, &table.Active,
		&table.CreatedAt, &table.UpdatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &table, nil
}

func (t *pgTx) SetState(ctx context.Context, tableID int, state models.TableState, occupiedSince, reservedUntil *time.Time) error {
	_, err := t.tx.Exec(ctx, database.UpdateTableStateSQL, state, occupiedSince, reservedUntil, tableID)
	return err
}

func (t *pgTx) AppendObservations(ctx context.Context, tableID int, note string) error {
	_, err := t.tx.Exec(ctx, database.AppendTableObservationsSQL, note, tableID)
	return err
}

func (t *pgTx) SetAssignment(ctx context.Context, tableID int, waitstaffID *int, kind *string) error {
	_, err := t.tx.Exec(ctx, database.UpdateTableAssignmentSQL, waitstaffID, kind, tableID)
	return err
}

func (t *pgTx) InsertOccupancy(ctx context.Context, rec *models.OccupancyRecord) error {
	_, err := t.tx.Exec(ctx, database.InsertOccupancySQL, rec.TableID, rec.StartedAt, rec.EndedAt, rec.Duration)
	return err
}
