package session

import (
	"context"

	"floor-service/internal/models"
)

// Store gives the session manager transactional access to sessions,
// lines and tables. Every mutating operation runs inside one InTx call;
// any error returned from fn rolls the whole transaction back.
type Store interface {
	InTx(ctx context.Context, fn func(tx Tx) error) error
}

// Tx is the set of reads and writes available inside one transaction.
type Tx interface {
	// LockTable serializes concurrent create-or-attach calls for the
	// same table for the duration of the transaction.
	LockTable(ctx context.Context, tableID int) error

	GetTable(ctx context.Context, tableID int) (*models.Table, error)

	// OpenSessionForTable returns nil when the table has no open session.
	OpenSessionForTable(ctx context.Context, tableID int) (*models.Session, error)

	// InsertSession returns a ConflictError when another transaction
	// opened a session for the same table first.
	InsertSession(ctx context.Context, s *models.Session) (int, error)

	AttachSession(ctx context.Context, sessionID, partySize int, customerID *int) error

	GetSession(ctx context.Context, sessionID int) (*models.Session, error)

	// MergeCandidates returns the session's undispatched lines for a
	// product, locked for update.
	MergeCandidates(ctx context.Context, sessionID, productID int) ([]models.LineItem, error)

	InsertLine(ctx context.Context, l *models.LineItem) (int, error)
	BumpLineQuantity(ctx context.Context, lineID, delta int) error

	GetLine(ctx context.Context, lineID int) (*models.LineItem, error)
	DeleteLine(ctx context.Context, lineID int) error
	SessionLines(ctx context.Context, sessionID int) ([]models.LineItem, error)

	// SumLines recomputes the session total by full summation over the
	// session's current lines, including this transaction's own writes.
	SumLines(ctx context.Context, sessionID int) (float64, error)
	SetTotal(ctx context.Context, sessionID int, total float64) error

	CancelSession(ctx context.Context, sessionID int, reason string) error
}
