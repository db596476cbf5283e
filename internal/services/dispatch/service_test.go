package dispatch

import (
	"context"
	"errors"
	"testing"
	"time"

	"floor-service/internal/logger"
	"floor-service/internal/models"
)

type fakeDispatchStore struct {
	sessions map[int]*models.Session
	lines    map[int]*models.LineItem
	events   []models.DispatchEvent
}

func newFakeDispatchStore() *fakeDispatchStore {
	return &fakeDispatchStore{
		sessions: map[int]*models.Session{},
		lines:    map[int]*models.LineItem{},
	}
}

func (f *fakeDispatchStore) addSession(id int) {
	f.sessions[id] = &models.Session{ID: id, TableID: 5, Status: models.SessionOpen}
}

func (f *fakeDispatchStore) addLine(id, sessionID, quantity, dispatched int) {
	f.lines[id] = &models.LineItem{
		ID:            id,
		SessionID:     sessionID,
		ProductID:     id,
		Quantity:      quantity,
		DispatchedQty: dispatched,
	}
}

func (f *fakeDispatchStore) InTx(ctx context.Context, fn func(tx Tx) error) error {
	return fn(&fakeDispatchTx{store: f})
}

type fakeDispatchTx struct {
	store *fakeDispatchStore
}

func (t *fakeDispatchTx) GetSession(ctx context.Context, sessionID int) (*models.Session, error) {
	s, ok := t.store.sessions[sessionID]
	if !ok {
		return nil, nil
	}
	cp := *s
	return &cp, nil
}

func (t *fakeDispatchTx) PendingLines(ctx context.Context, sessionID int) ([]models.LineItem, error) {
	var out []models.LineItem
	for _, l := range t.store.lines {
		if l.SessionID == sessionID && l.Pending() {
			out = append(out, *l)
		}
	}
	return out, nil
}

func (t *fakeDispatchTx) MarkDispatched(ctx context.Context, lineID int, at time.Time) error {
	l := t.store.lines[lineID]
	l.DispatchedQty = l.Quantity
	l.DispatchedAt = &at
	return nil
}

func (t *fakeDispatchTx) InsertEvent(ctx context.Context, ev *models.DispatchEvent) (int, error) {
	id := len(t.store.events) + 1
	cp := *ev
	cp.ID = id
	t.store.events = append(t.store.events, cp)
	return id, nil
}

type fakePublisher struct {
	published []interface{}
	fail      bool
}

func (f *fakePublisher) PublishDispatchEvent(ctx context.Context, msg interface{}) error {
	if f.fail {
		return errors.New("broker unavailable")
	}
	f.published = append(f.published, msg)
	return nil
}

func TestDispatch_SendsAllPendingLines(t *testing.T) {
	store := newFakeDispatchStore()
	store.addSession(1)
	store.addLine(10, 1, 2, 0)
	store.addLine(11, 1, 1, 0)
	pub := &fakePublisher{}
	router := NewRouter(store, pub, logger.New("test"))

	resp, err := router.Dispatch(context.Background(), 1, &models.DispatchRequest{CashRegisterID: 3}, "test")
	if err != nil {
		t.Fatalf("Dispatch returned error: %v", err)
	}

	if resp.Pending != 2 {
		t.Fatalf("pending = %d, want 2", resp.Pending)
	}
	for id, l := range store.lines {
		if l.DispatchedQty != l.Quantity || l.DispatchedAt == nil {
			t.Fatalf("line %d not fully dispatched: %+v", id, l)
		}
	}
	if len(store.events) != 1 {
		t.Fatalf("expected one dispatch event, got %d", len(store.events))
	}
	ev := store.events[0]
	if ev.CashRegisterID != 3 || ev.LineCount != 2 {
		t.Fatalf("unexpected event: %+v", ev)
	}
	if len(pub.published) != 1 {
		t.Fatalf("event must be fanned out once, got %d", len(pub.published))
	}
}

func TestDispatch_SecondCallIsIdempotentNoOp(t *testing.T) {
	store := newFakeDispatchStore()
	store.addSession(1)
	store.addLine(10, 1, 2, 0)
	pub := &fakePublisher{}
	router := NewRouter(store, pub, logger.New("test"))

	if _, err := router.Dispatch(context.Background(), 1, &models.DispatchRequest{CashRegisterID: 3}, "test"); err != nil {
		t.Fatalf("first Dispatch returned error: %v", err)
	}
	first := *store.lines[10].DispatchedAt

	resp, err := router.Dispatch(context.Background(), 1, &models.DispatchRequest{CashRegisterID: 3}, "test")
	if err != nil {
		t.Fatalf("second Dispatch must succeed, got %v", err)
	}
	if resp.Pending != 0 {
		t.Fatalf("second dispatch pending = %d, want 0", resp.Pending)
	}
	if !store.lines[10].DispatchedAt.Equal(first) {
		t.Fatalf("no-op dispatch must not touch dispatched lines")
	}
	if len(store.events) != 1 || len(pub.published) != 1 {
		t.Fatalf("no-op dispatch must not record or publish events")
	}
}

func TestDispatch_OnlyPendingLinesAreSent(t *testing.T) {
	store := newFakeDispatchStore()
	store.addSession(1)
	at := time.Now().Add(-time.Hour)
	store.addLine(10, 1, 2, 2)
	store.lines[10].DispatchedAt = &at
	store.addLine(11, 1, 1, 0)
	router := NewRouter(store, &fakePublisher{}, logger.New("test"))

	resp, err := router.Dispatch(context.Background(), 1, &models.DispatchRequest{CashRegisterID: 3}, "test")
	if err != nil {
		t.Fatalf("Dispatch returned error: %v", err)
	}
	if resp.Pending != 1 {
		t.Fatalf("pending = %d, want 1", resp.Pending)
	}
	if !store.lines[10].DispatchedAt.Equal(at) {
		t.Fatalf("already dispatched line must keep its original timestamp")
	}
}

func TestDispatch_SessionNotFound(t *testing.T) {
	router := NewRouter(newFakeDispatchStore(), &fakePublisher{}, logger.New("test"))

	_, err := router.Dispatch(context.Background(), 9, &models.DispatchRequest{CashRegisterID: 3}, "test")
	var nf models.NotFoundError
	if !errors.As(err, &nf) {
		t.Fatalf("expected NotFoundError, got %v", err)
	}
}

func TestDispatch_PublishFailureDoesNotFailDispatch(t *testing.T) {
	store := newFakeDispatchStore()
	store.addSession(1)
	store.addLine(10, 1, 1, 0)
	router := NewRouter(store, &fakePublisher{fail: true}, logger.New("test"))

	resp, err := router.Dispatch(context.Background(), 1, &models.DispatchRequest{CashRegisterID: 3}, "test")
	if err != nil {
		t.Fatalf("Dispatch must survive a publish failure: %v", err)
	}
	if resp.Pending != 1 {
		t.Fatalf("pending = %d, want 1", resp.Pending)
	}
	if len(store.events) != 1 {
		t.Fatalf("committed event must remain recorded")
	}
}

func TestDispatch_MissingCashRegisterRejected(t *testing.T) {
	router := NewRouter(newFakeDispatchStore(), &fakePublisher{}, logger.New("test"))

	_, err := router.Dispatch(context.Background(), 1, &models.DispatchRequest{}, "test")
	var verr models.ValidationError
	if !errors.As(err, &verr) {
		t.Fatalf("expected ValidationError, got %v", err)
	}
}
