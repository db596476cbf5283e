package session

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

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

func (t *pgTx) LockTable(ctx context.Context, tableID int) error {
	_, err := t.tx.Exec(ctx, database.AdvisoryLockTableSQL, tableID)
	return err
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

func (t *pgTx) OpenSessionForTable(ctx context.Context, tableID int) (*models.Session, error) {
	return scanSession(t.tx.QueryRow(ctx, database.GetOpenSessionForUpdateSQL, tableID))
}

func (t *pgTx) InsertSession(ctx context.Context, s *models.Session) (int, error) {
	var id int
	err := t.tx.QueryRow(ctx, database.InsertSessionSQL,
		s.TableID, s.PartySize, s.WaitstaffID, s.CustomerID, s.Observations,
	).Scan(&id, &s.OpenedAt)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return 0, models.ConflictError{
				Resource: "session",
				Message:  "table already has an open session",
			}
		}
		return 0, err
	}
	return id, nil
}

func (t *pgTx) AttachSession(ctx context.Context, sessionID, partySize int, customerID *int) error {
	_, err := t.tx.Exec(ctx, database.AttachSessionSQL, partySize, customerID, sessionID)
	return err
}

func (t *pgTx) GetSession(ctx context.Context, sessionID int) (*models.Session, error) {
	return scanSession(t.tx.QueryRow(ctx, database.GetSessionForUpdateSQL, sessionID))
}

func (t *pgTx) MergeCandidates(ctx context.Context, sessionID, productID int) ([]models.LineItem, error) {
	rows, err := t.tx.Query(ctx, database.FindMergeCandidatesSQL, sessionID, productID)
	if err != nil {
		return nil, err
	}
	return scanLines(rows)
}

func (t *pgTx) InsertLine(ctx context.Context, l *models.LineItem) (int, error) {
	var id int
	err := t.tx.QueryRow(ctx, database.InsertLineSQL,
		l.SessionID, l.ProductID, l.ProductName, l.Category, l.Quantity, l.UnitPrice, l.Observations,
	).Scan(&id)
	if err != nil {
		return 0, err
	}
	return id, nil
}

func (t *pgTx) BumpLineQuantity(ctx context.Context, lineID, delta int) error {
	_, err := t.tx.Exec(ctx, database.BumpLineQuantitySQL, delta, lineID)
	return err
}

func (t *pgTx) GetLine(ctx context.Context, lineID int) (*models.LineItem, error) {
	var line models.LineItem
	err := t.tx.QueryRow(ctx, database.GetLineForUpdateSQL, lineID).Scan(
		&line.ID, &line.SessionID, &line.ProductID, &line.ProductName, &line.Category,
		&line.Quantity, &line.UnitPrice, &line.Observations,
		&line.DispatchedQty, &line.DispatchedAt, &line.CreatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &line, nil
}

func (t *pgTx) DeleteLine(ctx context.Context, lineID int) error {
	_, err := t.tx.Exec(ctx, database.DeleteLineSQL, lineID)
	return err
}

func (t *pgTx) SessionLines(ctx context.Context, sessionID int) ([]models.LineItem, error) {
	rows, err := t.tx.Query(ctx, database.ListSessionLinesSQL, sessionID)
	if err != nil {
		return nil, err
	}
	return scanLines(rows)
}

func (t *pgTx) SumLines(ctx context.Context, sessionID int) (float64, error) {
	var total float64
	err := t.tx.QueryRow(ctx, database.SumSessionLinesSQL, sessionID).Scan(&total)
	return total, err
}

func (t *pgTx) SetTotal(ctx context.Context, sessionID int, total float64) error {
	_, err := t.tx.Exec(ctx, database.SetSessionTotalSQL, total, sessionID)
	return err
}

func (t *pgTx) CancelSession(ctx context.Context, sessionID int, reason string) error {
	_, err := t.tx.Exec(ctx, database.CancelSessionSQL, reason, sessionID)
	return err
}

func scanSession(row pgx.Row) (*models.Session, error) {
	var sess models.Session
	err := row.Scan(
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

func scanLines(rows pgx.Rows) ([]models.LineItem, error) {
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
