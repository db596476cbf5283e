package tracking

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"floor-service/internal/database"
	"floor-service/internal/logger"
	"floor-service/internal/models"
)

// Service is the read-side facade over sessions and their lines, for
// billing, printing and display collaborators.
type Service struct {
	db     *database.DB
	logger *logger.Logger
}

// NewService creates the query facade
func NewService(db *database.DB, log *logger.Logger) *Service {
	return &Service{
		db:     db,
		logger: log,
	}
}

// OpenSessionResponse reports what is being served at a table right now
type OpenSessionResponse struct {
	TableID   int  `json:"table_id"`
	SessionID *int `json:"session_id"`
}

// OpenSessionForTable resolves the table's open session id, nil when
// the table has none
func (s *Service) OpenSessionForTable(ctx context.Context, tableID int, requestID string) (*OpenSessionResponse, error) {
	resp := &OpenSessionResponse{TableID: tableID}

	var id int
	err := s.db.QueryRow(ctx, database.GetOpenSessionIDSQL, tableID).Scan(&id)
	if errors.Is(err, pgx.ErrNoRows) {
		return resp, nil
	}
	if err != nil {
		s.logger.Error("db_query_failed", "Failed to query open session", requestID, err, map[string]interface{}{
			"table_id": tableID,
		})
		return nil, fmt.Errorf("database error: %w", err)
	}

	resp.SessionID = &id
	return resp, nil
}

// SessionDetail returns the session header with its ordered lines
func (s *Service) SessionDetail(ctx context.Context, sessionID int, requestID string) (*models.SessionDetail, error) {
	var detail models.SessionDetail
	err := s.db.QueryRow(ctx, database.GetSessionHeaderSQL, sessionID).Scan(
		&detail.ID, &detail.TableID, &detail.PartySize, &detail.WaitstaffID, &detail.CustomerID,
		&detail.Status, &detail.Total, &detail.Observations, &detail.OpenedAt, &detail.ClosedAt,
		&detail.TableNumber,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, models.NotFoundError{Entity: "session", Key: sessionID}
	}
	if err != nil {
		s.logger.Error("db_query_failed", "Failed to query session", requestID, err, map[string]interface{}{
			"session_id": sessionID,
		})
		return nil, fmt.Errorf("database error: %w", err)
	}

	rows, err := s.db.Query(ctx, database.ListSessionLinesSQL, sessionID)
	if err != nil {
		s.logger.Error("db_query_failed", "Failed to query session lines", requestID, err, map[string]interface{}{
			"session_id": sessionID,
		})
		return nil, fmt.Errorf("database error: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var line models.LineItem
		err := rows.Scan(
			&line.ID, &line.SessionID, &line.ProductID, &line.ProductName, &line.Category,
			&line.Quantity, &line.UnitPrice, &line.Observations,
			&line.DispatchedQty, &line.DispatchedAt, &line.CreatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("database error: %w", err)
		}
		detail.Lines = append(detail.Lines, line)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("database error: %w", err)
	}

	return &detail, nil
}

// ActiveSessions lists every open session with its table number
func (s *Service) ActiveSessions(ctx context.Context, requestID string) ([]models.SessionDetail, error) {
	rows, err := s.db.Query(ctx, database.ListActiveSessionsSQL)
	if err != nil {
		s.logger.Error("db_query_failed", "Failed to query active sessions", requestID, err, nil)
		return nil, fmt.Errorf("database error: %w", err)
	}
	defer rows.Close()

	var sessions []models.SessionDetail
	for rows.Next() {
		var detail models.SessionDetail
		err := rows.Scan(
			&detail.ID, &detail.TableID, &detail.PartySize, &detail.WaitstaffID, &detail.CustomerID,
			&detail.Status, &detail.Total, &detail.Observations, &detail.OpenedAt, &detail.ClosedAt,
			&detail.TableNumber,
		)
		if err != nil {
			return nil, fmt.Errorf("database error: %w", err)
		}
		sessions = append(sessions, detail)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("database error: %w", err)
	}

	return sessions, nil
}
