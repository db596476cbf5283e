package dispatch

import (
	"context"
	"time"

	"floor-service/internal/logger"
	"floor-service/internal/models"
)

// Store gives the router transactional access to a session's lines
type Store interface {
	InTx(ctx context.Context, fn func(tx Tx) error) error
}

// Tx is the per-transaction surface
type Tx interface {
	GetSession(ctx context.Context, sessionID int) (*models.Session, error)
	PendingLines(ctx context.Context, sessionID int) ([]models.LineItem, error)
	MarkDispatched(ctx context.Context, lineID int, at time.Time) error
	InsertEvent(ctx context.Context, ev *models.DispatchEvent) (int, error)
}

// EventPublisher fans dispatch events out to the kitchen display
type EventPublisher interface {
	PublishDispatchEvent(ctx context.Context, msg interface{}) error
}

// Router marks a session's pending lines as sent to preparation.
// Dispatch is whole-line: a line is either fully sent or not sent.
type Router struct {
	store     Store
	publisher EventPublisher
	logger    *logger.Logger
	now       func() time.Time
}

// NewRouter creates the kitchen dispatch router
func NewRouter(store Store, publisher EventPublisher, log *logger.Logger) *Router {
	return &Router{
		store:     store,
		publisher: publisher,
		logger:    log,
		now:       time.Now,
	}
}

// Dispatch sends every pending line of the session to preparation in
// one transaction. With nothing pending it returns success with a zero
// count, not an error.
func (r *Router) Dispatch(ctx context.Context, sessionID int, req *models.DispatchRequest, requestID string) (*models.DispatchResponse, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}

	resp := &models.DispatchResponse{SessionID: sessionID}
	var event *models.DispatchEvent

	err := r.store.InTx(ctx, func(tx Tx) error {
		sess, err := tx.GetSession(ctx, sessionID)
		if err != nil {
			return err
		}
		if sess == nil {
			return models.NotFoundError{Entity: "session", Key: sessionID}
		}

		pending, err := tx.PendingLines(ctx, sessionID)
		if err != nil {
			return err
		}
		if len(pending) == 0 {
			// Idempotent no-op
			return nil
		}

		at := r.now()
		for _, line := range pending {
			if err := tx.MarkDispatched(ctx, line.ID, at); err != nil {
				return err
			}
		}

		event = &models.DispatchEvent{
			SessionID:      sessionID,
			CashRegisterID: req.CashRegisterID,
			LineCount:      len(pending),
			DispatchedAt:   at,
		}
		if _, err := tx.InsertEvent(ctx, event); err != nil {
			return err
		}

		resp.Pending = len(pending)
		return nil
	})
	if err != nil {
		return nil, err
	}

	if event != nil {
		// Best-effort fanout to the kitchen display after commit
		if err := r.publisher.PublishDispatchEvent(ctx, event); err != nil {
			r.logger.Error("dispatch_publish_failed", "Failed to publish dispatch event", requestID, err, map[string]interface{}{
				"session_id": sessionID,
			})
		}
	}

	r.logger.Info("lines_dispatched", "Kitchen dispatch completed", requestID, map[string]interface{}{
		"session_id": sessionID,
		"line_count": resp.Pending,
	})

	return resp, nil
}
