package dispatch

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

type pgTx struct {
	tx pgx.Tx
}

func (t *pgTx) GetSession(ctx context.Context, sessionID int) (*models.Session, error) {
	var sess models.Session
	err := t.tx.QueryRow(ctx, database.GetSessionForUpdateSQL, sessionID).Scan(
		&sess.ID, &sess.TableID, &sess.PartySize, &sess.WaitstaffID, &sess.CustomerID,
		&sess.Status, &sess.Total, &sess.Observations, &sess.OpenedAt, &sess.ClosedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &sess, nil
}

func (t *pgTx) PendingLines(ctx context.Context, sessionID int) ([]models.LineItem, error) {
	rows, err := t.tx.Query(ctx, database.ListPendingLinesForUpdateSQL, sessionID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var lines []models.LineItem
	for rows.Next() {
		var line models.LineItem
		err := rows.Scan(
			&line.ID, &line.SessionID, &line.ProductID, &line.ProductName, &line.Category,
			&line.Quantity, &line.UnitPrice, &line.Observations,
			&line.DispatchedQty, &line.DispatchedAt, &line.CreatedAt,
		)
		if err != nil {
			return nil, err
		}
		lines = append(lines, line)
	}
	return lines, rows.Err()
}

func (t *pgTx) MarkDispatched(ctx context.Context, lineID int, at time.Time) error {
	_, err := t.tx.Exec(ctx, database.MarkLineDispatchedSQL, at, lineID)
	return err
}

func (t *pgTx) InsertEvent(ctx context.Context, ev *models.DispatchEvent) (int, error) {
	var id int
	err := t.tx.QueryRow(ctx, database.InsertDispatchEventSQL,
		ev.SessionID, ev.CashRegisterID, ev.LineCount, ev.DispatchedAt,
	).Scan(&id)
	if err != nil {
		return 0, err
	}
	ev.ID = id
	return id, nil
}
