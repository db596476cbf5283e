package session

import (
	"context"
	"fmt"

	"floor-service/internal/catalog"
	"floor-service/internal/logger"
	"floor-service/internal/models"
	"floor-service/internal/stock"
)

// Service owns the lifecycle of the order session opened against a
// table: creation or reuse, line item add/merge/remove, total
// recomputation and cancellation.
type Service struct {
	store   Store
	catalog catalog.Catalog
	ledger  stock.Ledger
	logger  *logger.Logger
	sem     chan struct{}
}

// NewService creates the session manager. maxConcurrent bounds the
// number of in-flight mutating operations.
func NewService(store Store, cat catalog.Catalog, ledger stock.Ledger, log *logger.Logger, maxConcurrent int) *Service {
	if maxConcurrent <= 0 {
		maxConcurrent = 50
	}
	return &Service{
		store:   store,
		catalog: cat,
		ledger:  ledger,
		logger:  log,
		sem:     make(chan struct{}, maxConcurrent),
	}
}

func (s *Service) acquire(ctx context.Context) error {
	select {
	case s.sem <- struct{}{}:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (s *Service) release() {
	<-s.sem
}

// PlaceOrder opens or reuses the table's session and adds the requested
// items, all in one transaction. Returns the session id, whether a new
// session was created, and the recomputed total.
func (s *Service) PlaceOrder(ctx context.Context, req *models.CreateOrderRequest, requestID string) (*models.CreateOrderResponse, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}
	if err := s.acquire(ctx); err != nil {
		return nil, err
	}
	defer s.release()

	// Resolve prices before opening the transaction; a missing product
	// aborts the whole call with no storage mutation.
	products := make(map[int]*catalog.Product, len(req.Items))
	for _, item := range req.Items {
		if _, ok := products[item.ProductID]; ok {
			continue
		}
		product, err := s.catalog.Resolve(ctx, item.ProductID)
		if err != nil {
			return nil, err
		}
		products[item.ProductID] = product
	}

	var resp models.CreateOrderResponse

	err := s.store.InTx(ctx, func(tx Tx) error {
		if err := tx.LockTable(ctx, req.TableID); err != nil {
			return fmt.Errorf("failed to lock table: %w", err)
		}

		table, err := tx.GetTable(ctx, req.TableID)
		if err != nil {
			return err
		}
		if table == nil || !table.Active {
			return models.NotFoundError{Entity: "table", Key: req.TableID}
		}

		sess, err := tx.OpenSessionForTable(ctx, req.TableID)
		if err != nil {
			return err
		}

		if sess != nil {
			// Reuse: party size only ever grows, customer is set once
			if err := tx.AttachSession(ctx, sess.ID, req.PartySize, req.CustomerID); err != nil {
				return err
			}
			resp.SessionID = sess.ID
		} else {
			newSess := &models.Session{
				TableID:      req.TableID,
				PartySize:    req.PartySize,
				WaitstaffID:  req.WaitstaffID,
				CustomerID:   req.CustomerID,
				Status:       models.SessionOpen,
				Observations: models.NormalizeObservationsPtr(req.Observations),
			}
			id, err := tx.InsertSession(ctx, newSess)
			if err != nil {
				return err
			}
			resp.SessionID = id
			resp.Created = true
		}

		total, err := s.addItemsTx(ctx, tx, resp.SessionID, req.Items, products, req.WarehouseID, req.WaitstaffID, requestID)
		if err != nil {
			return err
		}
		resp.Total = total

		return nil
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("order_placed", "Order session updated", requestID, map[string]interface{}{
		"session_id": resp.SessionID,
		"table_id":   req.TableID,
		"created":    resp.Created,
		"total":      resp.Total,
	})

	return &resp, nil
}

// AddItems appends items to an already open session. Same merge and
// total semantics as PlaceOrder, without the table lookup.
func (s *Service) AddItems(ctx context.Context, sessionID int, items []models.OrderItemRequest, warehouseID *int, actorID int, requestID string) (float64, error) {
	if len(items) == 0 {
		return 0, models.ValidationError{Field: "items", Message: "items cannot be empty"}
	}
	if err := s.acquire(ctx); err != nil {
		return 0, err
	}
	defer s.release()

	products := make(map[int]*catalog.Product, len(items))
	for _, item := range items {
		if _, ok := products[item.ProductID]; ok {
			continue
		}
		product, err := s.catalog.Resolve(ctx, item.ProductID)
		if err != nil {
			return 0, err
		}
		products[item.ProductID] = product
	}

	var total float64
	err := s.store.InTx(ctx, func(tx Tx) error {
		sess, err := tx.GetSession(ctx, sessionID)
		if err != nil {
			return err
		}
		if sess == nil || sess.Status != models.SessionOpen {
			return models.NotFoundError{Entity: "session", Key: sessionID}
		}

		total, err = s.addItemsTx(ctx, tx, sessionID, items, products, warehouseID, actorID, requestID)
		return err
	})
	return total, err
}

// addItemsTx merges or inserts each item, issues best-effort stock
// reductions and recomputes the total, inside the caller's transaction.
func (s *Service) addItemsTx(ctx context.Context, tx Tx, sessionID int, items []models.OrderItemRequest, products map[int]*catalog.Product, warehouseID *int, actorID int, requestID string) (float64, error) {
	for _, item := range items {
		product := products[item.ProductID]
		observations := models.NormalizeObservationsPtr(item.Observations)

		candidates, err := tx.MergeCandidates(ctx, sessionID, item.ProductID)
		if err != nil {
			return 0, err
		}

		lineID := 0
		for i := range candidates {
			if candidates[i].CanMergeWith(item.ProductID, observations) {
				lineID = candidates[i].ID
				break
			}
		}

		if lineID != 0 {
			if err := tx.BumpLineQuantity(ctx, lineID, item.Quantity); err != nil {
				return 0, err
			}
		} else {
			line := &models.LineItem{
				SessionID:    sessionID,
				ProductID:    item.ProductID,
				ProductName:  product.Name,
				Category:     product.Category,
				Quantity:     item.Quantity,
				UnitPrice:    product.Price,
				Observations: observations,
			}
			lineID, err = tx.InsertLine(ctx, line)
			if err != nil {
				return 0, err
			}
		}

		s.reduceStock(ctx, warehouseID, item.ProductID, item.Quantity, actorID, sessionID, lineID, requestID)
	}

	total, err := tx.SumLines(ctx, sessionID)
	if err != nil {
		return 0, err
	}
	if err := tx.SetTotal(ctx, sessionID, total); err != nil {
		return 0, err
	}
	return total, nil
}

// RemoveLine deletes one line, restores its stock best-effort and
// recomputes the session total.
func (s *Service) RemoveLine(ctx context.Context, lineID int, req *models.RemoveLineRequest, requestID string) (float64, error) {
	if err := req.Validate(); err != nil {
		return 0, err
	}
	if err := s.acquire(ctx); err != nil {
		return 0, err
	}
	defer s.release()

	var total float64
	err := s.store.InTx(ctx, func(tx Tx) error {
		line, err := tx.GetLine(ctx, lineID)
		if err != nil {
			return err
		}
		if line == nil {
			return models.NotFoundError{Entity: "line", Key: lineID}
		}

		s.restoreStock(ctx, req.WarehouseID, line.ProductID, line.Quantity, req.ActorID, line.SessionID, line.ID, requestID)

		if err := tx.DeleteLine(ctx, lineID); err != nil {
			return err
		}

		total, err = tx.SumLines(ctx, line.SessionID)
		if err != nil {
			return err
		}
		return tx.SetTotal(ctx, line.SessionID, total)
	})
	if err != nil {
		return 0, err
	}

	s.logger.Info("line_removed", "Line item removed", requestID, map[string]interface{}{
		"line_id": lineID,
		"total":   total,
	})

	return total, nil
}

// Cancel marks the session cancelled, appending the reason to its
// observations. Stock restores are issued per line and are soft: the
// cancellation goes through even if every restore fails.
func (s *Service) Cancel(ctx context.Context, sessionID int, req *models.CancelOrderRequest, requestID string) (tableID int, err error) {
	if err := req.Validate(); err != nil {
		return 0, err
	}
	if err := s.acquire(ctx); err != nil {
		return 0, err
	}
	defer s.release()

	err = s.store.InTx(ctx, func(tx Tx) error {
		sess, err := tx.GetSession(ctx, sessionID)
		if err != nil {
			return err
		}
		if sess == nil {
			return models.NotFoundError{Entity: "session", Key: sessionID}
		}
		if sess.Status == models.SessionCancelled {
			return models.ConflictError{Resource: "session", Message: "session is already cancelled"}
		}
		tableID = sess.TableID

		lines, err := tx.SessionLines(ctx, sessionID)
		if err != nil {
			return err
		}
		for _, line := range lines {
			s.restoreStock(ctx, req.WarehouseID, line.ProductID, line.Quantity, req.ActorID, sessionID, line.ID, requestID)
		}

		return tx.CancelSession(ctx, sessionID, req.Reason)
	})
	if err != nil {
		return 0, err
	}

	s.logger.Info("session_cancelled", "Order session cancelled", requestID, map[string]interface{}{
		"session_id": sessionID,
		"actor_id":   req.ActorID,
		"reason":     req.Reason,
	})

	return tableID, nil
}

// reduceStock issues a best-effort stock reduction; a failed outcome is
// logged and never propagated.
func (s *Service) reduceStock(ctx context.Context, warehouseID *int, productID, quantity, actorID, sessionID, lineID int, requestID string) {
	if warehouseID == nil {
		return
	}
	outcome := s.ledger.Reduce(ctx, stock.Adjustment{
		WarehouseID: *warehouseID,
		ProductID:   productID,
		Quantity:    quantity,
		ActorID:     actorID,
		SessionID:   sessionID,
		LineID:      lineID,
	})
	if !outcome.OK {
		s.logger.Error("stock_reduce_failed", "Stock reduce request failed, sale continues", requestID, outcome.Err, map[string]interface{}{
			"session_id": sessionID,
			"line_id":    lineID,
			"product_id": productID,
			"quantity":   quantity,
		})
	}
}

// restoreStock is the restore counterpart of reduceStock
func (s *Service) restoreStock(ctx context.Context, warehouseID *int, productID, quantity, actorID, sessionID, lineID int, requestID string) {
	if warehouseID == nil {
		return
	}
	outcome := s.ledger.Restore(ctx, stock.Adjustment{
		WarehouseID: *warehouseID,
		ProductID:   productID,
		Quantity:    quantity,
		ActorID:     actorID,
		SessionID:   sessionID,
		LineID:      lineID,
	})
	if !outcome.OK {
		s.logger.Error("stock_restore_failed", "Stock restore request failed", requestID, outcome.Err, map[string]interface{}{
			"session_id": sessionID,
			"line_id":    lineID,
			"product_id": productID,
			"quantity":   quantity,
		})
	}
}
