package quote

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	json "github.com/goccy/go-json"

	"github.com/fabworks/printquote/internal/pricing"
)

// HistoryStore persists saved quotes. History is append-only and served
// most-recent-first; saved quotes are never edited except for status moves.
type HistoryStore struct {
	db *sql.DB
}

// NewHistoryStore creates a store over the quotes table.
func NewHistoryStore(database *sql.DB) *HistoryStore {
	return &HistoryStore{db: database}
}

// Append writes a quote into the session's history.
func (h *HistoryStore) Append(ctx context.Context, sessionID string, q Quote) error {
	configJSON, err := json.Marshal(q.Configuration)
	if err != nil {
		return fmt.Errorf("encode quote configuration: %w", err)
	}
	calcJSON, err := json.Marshal(q.Calculation)
	if err != nil {
		return fmt.Errorf("encode quote calculation: %w", err)
	}

	_, err = h.db.ExecContext(ctx, `
		INSERT INTO quotes (id, session_id, status, config_json, calculation_json, currency, total, valid_until, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, q.ID, sessionID, string(q.Status), string(configJSON), string(calcJSON),
		q.Calculation.Currency, q.Calculation.Total, q.ValidUntil, q.CreatedAt, q.UpdatedAt)
	if err != nil {
		return fmt.Errorf("insert quote: %w", err)
	}
	return nil
}

// List returns the session's saved quotes, most recent first.
func (h *HistoryStore) List(ctx context.Context, sessionID string) ([]Quote, error) {
	rows, err := h.db.QueryContext(ctx, `
		SELECT id, status, config_json, calculation_json, valid_until, created_at, updated_at
		FROM quotes
		WHERE session_id = ?
		ORDER BY datetime(created_at) DESC, id DESC
	`, sessionID)
	if err != nil {
		return nil, fmt.Errorf("query quote history: %w", err)
	}
	defer rows.Close()

	quotes := make([]Quote, 0)
	for rows.Next() {
		q, err := scanQuote(rows)
		if err != nil {
			return nil, err
		}
		quotes = append(quotes, q)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate quote history: %w", err)
	}
	return quotes, nil
}

// Get returns one saved quote scoped to the session.
func (h *HistoryStore) Get(ctx context.Context, sessionID, id string) (Quote, error) {
	row := h.db.QueryRowContext(ctx, `
		SELECT id, status, config_json, calculation_json, valid_until, created_at, updated_at
		FROM quotes
		WHERE session_id = ? AND id = ?
	`, sessionID, id)

	q, err := scanQuote(row)
	if errors.Is(err, sql.ErrNoRows) {
		return Quote{}, &Error{Kind: KindNotFound, Message: "quote not found"}
	}
	if err != nil {
		return Quote{}, err
	}
	return q, nil
}

// UpdateStatus moves a saved quote to a new status.
func (h *HistoryStore) UpdateStatus(ctx context.Context, id string, status Status) error {
	result, err := h.db.ExecContext(ctx, `
		UPDATE quotes
		SET status = ?, updated_at = CURRENT_TIMESTAMP
		WHERE id = ?
	`, string(status), id)
	if err != nil {
		return fmt.Errorf("update quote status: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("update quote status: %w", err)
	}
	if affected == 0 {
		return &Error{Kind: KindNotFound, Message: "quote not found"}
	}
	return nil
}

// ExpireStale marks calculated and saved quotes whose validity window has
// passed. Ordered quotes are terminal and never expire.
func (h *HistoryStore) ExpireStale(ctx context.Context, now time.Time) (int64, error) {
	result, err := h.db.ExecContext(ctx, `
		UPDATE quotes
		SET status = ?, updated_at = CURRENT_TIMESTAMP
		WHERE status IN (?, ?) AND valid_until < ?
	`, string(StatusExpired), string(StatusCalculated), string(StatusSaved), now)
	if err != nil {
		return 0, fmt.Errorf("expire stale quotes: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("expire stale quotes: %w", err)
	}
	return affected, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanQuote(row rowScanner) (Quote, error) {
	var (
		q          Quote
		status     string
		configJSON string
		calcJSON   string
	)
	if err := row.Scan(&q.ID, &status, &configJSON, &calcJSON, &q.ValidUntil, &q.CreatedAt, &q.UpdatedAt); err != nil {
		return Quote{}, err
	}

	q.Status = Status(status)
	if err := json.Unmarshal([]byte(configJSON), &q.Configuration); err != nil {
		return Quote{}, fmt.Errorf("decode quote configuration: %w", err)
	}
	var calc pricing.Calculation
	if err := json.Unmarshal([]byte(calcJSON), &calc); err != nil {
		return Quote{}, fmt.Errorf("decode quote calculation: %w", err)
	}
	q.Calculation = calc
	return q, nil
}
