package stock

import (
	"context"
	"time"

	"floor-service/internal/messaging"
)

// Adjustment identifies one inventory adjustment request
type Adjustment struct {
	WarehouseID int       `json:"warehouse_id"`
	ProductID   int       `json:"product_id"`
	Quantity    int       `json:"quantity"`
	ActorID     int       `json:"actor_id"`
	SessionID   int       `json:"session_id"`
	LineID      int       `json:"line_id"`
	RequestedAt time.Time `json:"requested_at"`
}

// Outcome is the result of a ledger call. The policy is that a failed
// adjustment never blocks the sale: callers log a failed Outcome and
// carry on, they do not roll back.
type Outcome struct {
	OK  bool
	Err error
}

// Failed wraps an error into a failed Outcome
func Failed(err error) Outcome {
	return Outcome{OK: false, Err: err}
}

// Succeeded is the zero-cost success Outcome
func Succeeded() Outcome {
	return Outcome{OK: true}
}

// Ledger is the port to the external inventory adjustment subsystem
type Ledger interface {
	Reduce(ctx context.Context, adj Adjustment) Outcome
	Restore(ctx context.Context, adj Adjustment) Outcome
}

type request struct {
	Operation string `json:"operation"`
	Adjustment
}

// AMQPLedger publishes adjustment requests to the stock topic exchange
type AMQPLedger struct {
	publisher *messaging.Publisher
}

// NewAMQPLedger creates the default ledger adapter
func NewAMQPLedger(publisher *messaging.Publisher) *AMQPLedger {
	return &AMQPLedger{publisher: publisher}
}

func (l *AMQPLedger) Reduce(ctx context.Context, adj Adjustment) Outcome {
	return l.publish(ctx, "stock.reduce", "reduce", adj)
}

func (l *AMQPLedger) Restore(ctx context.Context, adj Adjustment) Outcome {
	return l.publish(ctx, "stock.restore", "restore", adj)
}

func (l *AMQPLedger) publish(ctx context.Context, routingKey, operation string, adj Adjustment) Outcome {
	if adj.RequestedAt.IsZero() {
		adj.RequestedAt = time.Now().UTC()
	}
	msg := request{Operation: operation, Adjustment: adj}
	if err := l.publisher.PublishStockRequest(ctx, routingKey, msg); err != nil {
		return Failed(err)
	}
	return Succeeded()
}
