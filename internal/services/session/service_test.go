package session

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"testing"

	"floor-service/internal/catalog"
	"floor-service/internal/logger"
	"floor-service/internal/models"
	"floor-service/internal/stock"
)

// fakeStore keeps everything in maps and commits writes directly; the
// operations under test either succeed wholesale or fail before any
// fake write happens.
type fakeStore struct {
	mu            sync.Mutex
	tables        map[int]*models.Table
	sessions      map[int]*models.Session
	lines         map[int]*models.LineItem
	nextSessionID int
	nextLineID    int
	forceConflict bool
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		tables:        map[int]*models.Table{},
		sessions:      map[int]*models.Session{},
		lines:         map[int]*models.LineItem{},
		nextSessionID: 1,
		nextLineID:    1,
	}
}

func (f *fakeStore) addTable(id int) {
	f.tables[id] = &models.Table{ID: id, Number: id, Zone: "main", State: models.StateFree, Active: true}
}

func (f *fakeStore) sessionLines(sessionID int) []*models.LineItem {
	var out []*models.LineItem
	for _, l := range f.lines {
		if l.SessionID == sessionID {
			out = append(out, l)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// InTx serializes callers the way the per-table advisory lock does.
func (f *fakeStore) InTx(ctx context.Context, fn func(tx Tx) error) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	return fn(&fakeTx{store: f})
}

type fakeTx struct {
	store *fakeStore
}

func (t *fakeTx) LockTable(ctx context.Context, tableID int) error { return nil }

func (t *fakeTx) GetTable(ctx context.Context, tableID int) (*models.Table, error) {
	table, ok := t.store.tables[tableID]
	if !ok {
		return nil, nil
	}
	cp := *table
	return &cp, nil
}

func (t *fakeTx) OpenSessionForTable(ctx context.Context, tableID int) (*models.Session, error) {
	for _, s := range t.store.sessions {
		if s.TableID == tableID && s.Status == models.SessionOpen {
			cp := *s
			return &cp, nil
		}
	}
	return nil, nil
}

func (t *fakeTx) InsertSession(ctx context.Context, s *models.Session) (int, error) {
	if t.store.forceConflict {
		return 0, models.ConflictError{Resource: "session", Message: "table already has an open session"}
	}
	id := t.store.nextSessionID
	t.store.nextSessionID++
	cp := *s
	cp.ID = id
	t.store.sessions[id] = &cp
	return id, nil
}

func (t *fakeTx) AttachSession(ctx context.Context, sessionID, partySize int, customerID *int) error {
	s := t.store.sessions[sessionID]
	if partySize > s.PartySize {
		s.PartySize = partySize
	}
	if s.CustomerID == nil {
		s.CustomerID = customerID
	}
	return nil
}

func (t *fakeTx) GetSession(ctx context.Context, sessionID int) (*models.Session, error) {
	s, ok := t.store.sessions[sessionID]
	if !ok {
		return nil, nil
	}
	cp := *s
	return &cp, nil
}

func (t *fakeTx) MergeCandidates(ctx context.Context, sessionID, productID int) ([]models.LineItem, error) {
	var out []models.LineItem
	for _, l := range t.store.sessionLines(sessionID) {
		if l.ProductID == productID && l.DispatchedQty == 0 {
			out = append(out, *l)
		}
	}
	return out, nil
}

func (t *fakeTx) InsertLine(ctx context.Context, l *models.LineItem) (int, error) {
	id := t.store.nextLineID
	t.store.nextLineID++
	cp := *l
	cp.ID = id
	t.store.lines[id] = &cp
	return id, nil
}

func (t *fakeTx) BumpLineQuantity(ctx context.Context, lineID, delta int) error {
	t.store.lines[lineID].Quantity += delta
	return nil
}

func (t *fakeTx) GetLine(ctx context.Context, lineID int) (*models.LineItem, error) {
	l, ok := t.store.lines[lineID]
	if !ok {
		return nil, nil
	}
	cp := *l
	return &cp, nil
}

func (t *fakeTx) DeleteLine(ctx context.Context, lineID int) error {
	delete(t.store.lines, lineID)
	return nil
}

func (t *fakeTx) SessionLines(ctx context.Context, sessionID int) ([]models.LineItem, error) {
	var out []models.LineItem
	for _, l := range t.store.sessionLines(sessionID) {
		out = append(out, *l)
	}
	return out, nil
}

func (t *fakeTx) SumLines(ctx context.Context, sessionID int) (float64, error) {
	var total float64
	for _, l := range t.store.sessionLines(sessionID) {
		total += float64(l.Quantity) * l.UnitPrice
	}
	return total, nil
}

func (t *fakeTx) SetTotal(ctx context.Context, sessionID int, total float64) error {
	t.store.sessions[sessionID].Total = total
	return nil
}

func (t *fakeTx) CancelSession(ctx context.Context, sessionID int, reason string) error {
	s := t.store.sessions[sessionID]
	s.Status = models.SessionCancelled
	if s.Observations == "" {
		s.Observations = reason
	} else {
		s.Observations += "\n" + reason
	}
	return nil
}

type fakeCatalog struct {
	products map[int]*catalog.Product
}

func (f *fakeCatalog) Resolve(ctx context.Context, productID int) (*catalog.Product, error) {
	p, ok := f.products[productID]
	if !ok {
		return nil, models.NotFoundError{Entity: "product", Key: productID}
	}
	return p, nil
}

type ledgerCall struct {
	op  string
	adj stock.Adjustment
}

type fakeLedger struct {
	calls []ledgerCall
	fail  bool
}

func (f *fakeLedger) Reduce(ctx context.Context, adj stock.Adjustment) stock.Outcome {
	f.calls = append(f.calls, ledgerCall{op: "reduce", adj: adj})
	if f.fail {
		return stock.Failed(errors.New("stock ledger unavailable"))
	}
	return stock.Succeeded()
}

func (f *fakeLedger) Restore(ctx context.Context, adj stock.Adjustment) stock.Outcome {
	f.calls = append(f.calls, ledgerCall{op: "restore", adj: adj})
	if f.fail {
		return stock.Failed(errors.New("stock ledger unavailable"))
	}
	return stock.Succeeded()
}

func newTestService(store *fakeStore, ledger *fakeLedger) *Service {
	cat := &fakeCatalog{products: map[int]*catalog.Product{
		1: {ID: 1, Name: "Lomo Saltado", Category: "mains", Price: 2500},
		2: {ID: 2, Name: "Chicha Morada", Category: "drinks", Price: 1500},
	}}
	return NewService(store, cat, ledger, logger.New("test"), 10)
}

func placeOrder(t *testing.T, svc *Service, tableID int, items ...models.OrderItemRequest) *models.CreateOrderResponse {
	t.Helper()
	warehouse := 1
	resp, err := svc.PlaceOrder(context.Background(), &models.CreateOrderRequest{
		TableID:        tableID,
		PartySize:      2,
		WaitstaffID:    7,
		CashRegisterID: 1,
		WarehouseID:    &warehouse,
		Items:          items,
	}, "test")
	if err != nil {
		t.Fatalf("PlaceOrder returned error: %v", err)
	}
	return resp
}

func TestPlaceOrder_Scenario(t *testing.T) {
	store := newFakeStore()
	store.addTable(5)
	svc := newTestService(store, &fakeLedger{})

	resp := placeOrder(t, svc, 5,
		models.OrderItemRequest{ProductID: 1, Quantity: 2},
		models.OrderItemRequest{ProductID: 2, Quantity: 1},
	)

	if !resp.Created {
		t.Fatalf("expected a new session")
	}
	if resp.Total != 6500 {
		t.Fatalf("total = %v, want 6500", resp.Total)
	}
	if got := store.sessions[resp.SessionID].Total; got != 6500 {
		t.Fatalf("persisted total = %v, want 6500", got)
	}
	if got := store.sessions[resp.SessionID].PartySize; got != 2 {
		t.Fatalf("party size = %d, want 2", got)
	}
}

func TestAddItems_MergeCorrectness(t *testing.T) {
	store := newFakeStore()
	store.addTable(5)
	svc := newTestService(store, &fakeLedger{})

	resp := placeOrder(t, svc, 5, models.OrderItemRequest{ProductID: 1, Quantity: 2})

	warehouse := 1
	if _, err := svc.AddItems(context.Background(), resp.SessionID, []models.OrderItemRequest{{ProductID: 2, Quantity: 1}}, &warehouse, 7, "test"); err != nil {
		t.Fatalf("AddItems returned error: %v", err)
	}
	total, err := svc.AddItems(context.Background(), resp.SessionID, []models.OrderItemRequest{{ProductID: 1, Quantity: 1}}, &warehouse, 7, "test")
	if err != nil {
		t.Fatalf("AddItems returned error: %v", err)
	}

	lines := store.sessionLines(resp.SessionID)
	if len(lines) != 2 {
		t.Fatalf("expected 2 lines after merge, got %d", len(lines))
	}
	if lines[0].ProductID != 1 || lines[0].Quantity != 3 {
		t.Fatalf("expected product 1 quantity 3, got product %d quantity %d", lines[0].ProductID, lines[0].Quantity)
	}
	if total != 9000 {
		t.Fatalf("total = %v, want 9000", total)
	}
}

func TestAddItems_DispatchFreezesMergeTarget(t *testing.T) {
	store := newFakeStore()
	store.addTable(5)
	svc := newTestService(store, &fakeLedger{})

	resp := placeOrder(t, svc, 5, models.OrderItemRequest{ProductID: 1, Quantity: 2})

	// Simulate a whole-line kitchen dispatch
	for _, l := range store.sessionLines(resp.SessionID) {
		l.DispatchedQty = l.Quantity
	}

	warehouse := 1
	if _, err := svc.AddItems(context.Background(), resp.SessionID, []models.OrderItemRequest{{ProductID: 1, Quantity: 1}}, &warehouse, 7, "test"); err != nil {
		t.Fatalf("AddItems returned error: %v", err)
	}

	lines := store.sessionLines(resp.SessionID)
	if len(lines) != 2 {
		t.Fatalf("expected a new line after dispatch, got %d lines", len(lines))
	}
	if lines[1].Quantity != 1 || lines[1].DispatchedQty != 0 {
		t.Fatalf("new line should be quantity 1, undispatched: %+v", lines[1])
	}
}

func TestAddItems_ObservationsBlockMerge(t *testing.T) {
	store := newFakeStore()
	store.addTable(5)
	svc := newTestService(store, &fakeLedger{})

	obs := "sin aji"
	resp := placeOrder(t, svc, 5, models.OrderItemRequest{ProductID: 1, Quantity: 1, Observations: &obs})

	warehouse := 1
	padded := "  sin aji "
	if _, err := svc.AddItems(context.Background(), resp.SessionID, []models.OrderItemRequest{{ProductID: 1, Quantity: 1, Observations: &padded}}, &warehouse, 7, "test"); err != nil {
		t.Fatalf("AddItems returned error: %v", err)
	}
	if got := len(store.sessionLines(resp.SessionID)); got != 1 {
		t.Fatalf("normalized-equal observations must merge, got %d lines", got)
	}

	other := "extra aji"
	if _, err := svc.AddItems(context.Background(), resp.SessionID, []models.OrderItemRequest{{ProductID: 1, Quantity: 1, Observations: &other}}, &warehouse, 7, "test"); err != nil {
		t.Fatalf("AddItems returned error: %v", err)
	}
	if got := len(store.sessionLines(resp.SessionID)); got != 2 {
		t.Fatalf("different observations must not merge, got %d lines", got)
	}
}

func TestPlaceOrder_ReuseExistingSession(t *testing.T) {
	store := newFakeStore()
	store.addTable(5)
	svc := newTestService(store, &fakeLedger{})

	first := placeOrder(t, svc, 5, models.OrderItemRequest{ProductID: 1, Quantity: 1})

	warehouse := 1
	customer := 42
	second, err := svc.PlaceOrder(context.Background(), &models.CreateOrderRequest{
		TableID:        5,
		PartySize:      4,
		WaitstaffID:    7,
		CashRegisterID: 1,
		CustomerID:     &customer,
		WarehouseID:    &warehouse,
		Items:          []models.OrderItemRequest{{ProductID: 2, Quantity: 1}},
	}, "test")
	if err != nil {
		t.Fatalf("PlaceOrder returned error: %v", err)
	}

	if second.Created {
		t.Fatalf("second order must reuse the open session")
	}
	if second.SessionID != first.SessionID {
		t.Fatalf("expected session %d, got %d", first.SessionID, second.SessionID)
	}

	sess := store.sessions[first.SessionID]
	if sess.PartySize != 4 {
		t.Fatalf("party size should grow to 4, got %d", sess.PartySize)
	}
	if sess.CustomerID == nil || *sess.CustomerID != 42 {
		t.Fatalf("customer should be set when previously absent")
	}
}

func TestPlaceOrder_ProductNotFoundAbortsCall(t *testing.T) {
	store := newFakeStore()
	store.addTable(5)
	svc := newTestService(store, &fakeLedger{})

	_, err := svc.PlaceOrder(context.Background(), &models.CreateOrderRequest{
		TableID:        5,
		PartySize:      2,
		WaitstaffID:    7,
		CashRegisterID: 1,
		Items: []models.OrderItemRequest{
			{ProductID: 1, Quantity: 1},
			{ProductID: 99, Quantity: 1},
		},
	}, "test")

	var nf models.NotFoundError
	if !errors.As(err, &nf) {
		t.Fatalf("expected NotFoundError, got %v", err)
	}
	if len(store.sessions) != 0 || len(store.lines) != 0 {
		t.Fatalf("no partial commit allowed: sessions=%d lines=%d", len(store.sessions), len(store.lines))
	}
}

func TestPlaceOrder_TableNotFound(t *testing.T) {
	store := newFakeStore()
	svc := newTestService(store, &fakeLedger{})

	_, err := svc.PlaceOrder(context.Background(), &models.CreateOrderRequest{
		TableID:        9,
		PartySize:      2,
		WaitstaffID:    7,
		CashRegisterID: 1,
		Items:          []models.OrderItemRequest{{ProductID: 1, Quantity: 1}},
	}, "test")

	var nf models.NotFoundError
	if !errors.As(err, &nf) {
		t.Fatalf("expected NotFoundError for unknown table, got %v", err)
	}
}

func TestPlaceOrder_ConflictIsRetryable(t *testing.T) {
	store := newFakeStore()
	store.addTable(5)
	store.forceConflict = true
	svc := newTestService(store, &fakeLedger{})

	_, err := svc.PlaceOrder(context.Background(), &models.CreateOrderRequest{
		TableID:        5,
		PartySize:      2,
		WaitstaffID:    7,
		CashRegisterID: 1,
		Items:          []models.OrderItemRequest{{ProductID: 1, Quantity: 1}},
	}, "test")

	var conflict models.ConflictError
	if !errors.As(err, &conflict) {
		t.Fatalf("expected ConflictError, got %v", err)
	}
}

func TestPlaceOrder_StockFailureDoesNotBlockSale(t *testing.T) {
	store := newFakeStore()
	store.addTable(5)
	ledger := &fakeLedger{fail: true}
	svc := newTestService(store, ledger)

	resp := placeOrder(t, svc, 5, models.OrderItemRequest{ProductID: 1, Quantity: 2})

	if resp.Total != 5000 {
		t.Fatalf("sale must succeed despite stock failure, total = %v", resp.Total)
	}
	if len(ledger.calls) != 1 || ledger.calls[0].op != "reduce" {
		t.Fatalf("expected one reduce call, got %+v", ledger.calls)
	}
	if ledger.calls[0].adj.Quantity != 2 {
		t.Fatalf("reduce quantity = %d, want 2", ledger.calls[0].adj.Quantity)
	}
}

func TestRemoveLine_RecomputesTotal(t *testing.T) {
	store := newFakeStore()
	store.addTable(5)
	ledger := &fakeLedger{}
	svc := newTestService(store, ledger)

	resp := placeOrder(t, svc, 5,
		models.OrderItemRequest{ProductID: 1, Quantity: 2},
		models.OrderItemRequest{ProductID: 2, Quantity: 1},
	)

	lines := store.sessionLines(resp.SessionID)
	warehouse := 1
	total, err := svc.RemoveLine(context.Background(), lines[0].ID, &models.RemoveLineRequest{ActorID: 7, WarehouseID: &warehouse}, "test")
	if err != nil {
		t.Fatalf("RemoveLine returned error: %v", err)
	}

	// Remaining line: 1 x 1500, verified independently of the deleted
	// line's prior contribution
	if total != 1500 {
		t.Fatalf("total after delete = %v, want 1500", total)
	}
	if got := store.sessions[resp.SessionID].Total; got != 1500 {
		t.Fatalf("persisted total = %v, want 1500", got)
	}

	last := ledger.calls[len(ledger.calls)-1]
	if last.op != "restore" || last.adj.Quantity != 2 {
		t.Fatalf("expected restore of quantity 2, got %+v", last)
	}
}

func TestRemoveLine_NotFound(t *testing.T) {
	store := newFakeStore()
	svc := newTestService(store, &fakeLedger{})

	_, err := svc.RemoveLine(context.Background(), 99, &models.RemoveLineRequest{ActorID: 7}, "test")
	var nf models.NotFoundError
	if !errors.As(err, &nf) {
		t.Fatalf("expected NotFoundError, got %v", err)
	}
}

func TestCancel_TerminalAndStockIndependent(t *testing.T) {
	store := newFakeStore()
	store.addTable(5)
	ledger := &fakeLedger{fail: true}
	svc := newTestService(store, ledger)

	resp := placeOrder(t, svc, 5,
		models.OrderItemRequest{ProductID: 1, Quantity: 2},
		models.OrderItemRequest{ProductID: 2, Quantity: 1},
	)

	warehouse := 1
	tableID, err := svc.Cancel(context.Background(), resp.SessionID, &models.CancelOrderRequest{
		ActorID:     7,
		Reason:      "customer left",
		WarehouseID: &warehouse,
	}, "test")
	if err != nil {
		t.Fatalf("Cancel must succeed even when every stock restore fails: %v", err)
	}
	if tableID != 5 {
		t.Fatalf("tableID = %d, want 5", tableID)
	}

	sess := store.sessions[resp.SessionID]
	if sess.Status != models.SessionCancelled {
		t.Fatalf("status = %s, want cancelled", sess.Status)
	}
	if sess.Observations != "customer left" {
		t.Fatalf("reason must be appended to observations, got %q", sess.Observations)
	}

	// Second cancel on the same session is a domain error
	_, err = svc.Cancel(context.Background(), resp.SessionID, &models.CancelOrderRequest{ActorID: 7, Reason: "again"}, "test")
	var conflict models.ConflictError
	if !errors.As(err, &conflict) {
		t.Fatalf("expected ConflictError on double cancel, got %v", err)
	}
}

func TestCancel_AppendsToExistingObservations(t *testing.T) {
	store := newFakeStore()
	store.addTable(5)
	svc := newTestService(store, &fakeLedger{})

	obs := "window seat"
	warehouse := 1
	resp, err := svc.PlaceOrder(context.Background(), &models.CreateOrderRequest{
		TableID:        5,
		PartySize:      2,
		WaitstaffID:    7,
		CashRegisterID: 1,
		WarehouseID:    &warehouse,
		Items:          []models.OrderItemRequest{{ProductID: 1, Quantity: 1}},
		Observations:   &obs,
	}, "test")
	if err != nil {
		t.Fatalf("PlaceOrder returned error: %v", err)
	}

	if _, err := svc.Cancel(context.Background(), resp.SessionID, &models.CancelOrderRequest{ActorID: 7, Reason: "kitchen closed"}, "test"); err != nil {
		t.Fatalf("Cancel returned error: %v", err)
	}

	want := "window seat\nkitchen closed"
	if got := store.sessions[resp.SessionID].Observations; got != want {
		t.Fatalf("observations = %q, want %q", got, want)
	}
}

func TestPlaceOrder_NoWarehouseSkipsStockCalls(t *testing.T) {
	store := newFakeStore()
	store.addTable(5)
	ledger := &fakeLedger{}
	cat := &fakeCatalog{products: map[int]*catalog.Product{1: {ID: 1, Name: "Cafe", Category: "drinks", Price: 900}}}
	svc := NewService(store, cat, ledger, logger.New("test"), 10)

	_, err := svc.PlaceOrder(context.Background(), &models.CreateOrderRequest{
		TableID:        5,
		PartySize:      1,
		WaitstaffID:    7,
		CashRegisterID: 1,
		Items:          []models.OrderItemRequest{{ProductID: 1, Quantity: 1}},
	}, "test")
	if err != nil {
		t.Fatalf("PlaceOrder returned error: %v", err)
	}
	if len(ledger.calls) != 0 {
		t.Fatalf("no warehouse given, expected no ledger calls, got %d", len(ledger.calls))
	}
}

func TestPlaceOrder_ValidationRejectedBeforeStorage(t *testing.T) {
	store := newFakeStore()
	store.addTable(5)
	svc := newTestService(store, &fakeLedger{})

	cases := []models.CreateOrderRequest{
		{TableID: 0, PartySize: 2, WaitstaffID: 7, CashRegisterID: 1, Items: []models.OrderItemRequest{{ProductID: 1, Quantity: 1}}},
		{TableID: 5, PartySize: 2, WaitstaffID: 7, CashRegisterID: 1, Items: []models.OrderItemRequest{{ProductID: 1, Quantity: 0}}},
		{TableID: 5, PartySize: 2, WaitstaffID: 7, CashRegisterID: 1},
	}

	for i, req := range cases {
		_, err := svc.PlaceOrder(context.Background(), &req, "test")
		var verr models.ValidationError
		if !errors.As(err, &verr) {
			t.Fatalf("case %d: expected ValidationError, got %v", i, err)
		}
	}
	if len(store.sessions) != 0 {
		t.Fatalf("validation failures must not touch storage")
	}
}

func TestPlaceOrder_ConcurrentCallsBounded(t *testing.T) {
	store := newFakeStore()
	store.addTable(5)
	svc := newTestService(store, &fakeLedger{})

	done := make(chan error, 8)
	for i := 0; i < 8; i++ {
		go func() {
			warehouse := 1
			_, err := svc.PlaceOrder(context.Background(), &models.CreateOrderRequest{
				TableID:        5,
				PartySize:      2,
				WaitstaffID:    7,
				CashRegisterID: 1,
				WarehouseID:    &warehouse,
				Items:          []models.OrderItemRequest{{ProductID: 1, Quantity: 1}},
			}, "test")
			done <- err
		}()
	}
	for i := 0; i < 8; i++ {
		if err := <-done; err != nil {
			t.Fatalf("concurrent PlaceOrder failed: %v", err)
		}
	}

	open := 0
	for _, s := range store.sessions {
		if s.Status == models.SessionOpen {
			open++
		}
	}
	if open != 1 {
		t.Fatalf("expected exactly one open session for the table, got %d", open)
	}

	var total float64
	for _, l := range store.sessionLines(1) {
		total += float64(l.Quantity) * l.UnitPrice
	}
	if fmt.Sprintf("%.2f", total) != "20000.00" {
		t.Fatalf("no add may be lost: summed total = %v, want 20000", total)
	}
}
