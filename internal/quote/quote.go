package quote

import (
	"time"

	"github.com/fabworks/printquote/internal/pricing"
)

// Status is the lifecycle state of a quote session and its current quote.
type Status string

const (
	StatusDraft       Status = "draft"
	StatusCalculating Status = "calculating"
	StatusCalculated  Status = "calculated"
	StatusSaved       Status = "saved"
	StatusOrdered     Status = "ordered"
	StatusError       Status = "error"
	StatusExpired     Status = "expired"
)

// CanTransitionTo reports whether the state machine allows moving from s to
// next. Ordered and Expired are terminal.
func (s Status) CanTransitionTo(next Status) bool {
	switch s {
	case StatusDraft:
		return next == StatusCalculating
	case StatusCalculating:
		return next == StatusCalculated || next == StatusError
	case StatusCalculated:
		return next == StatusSaved || next == StatusOrdered || next == StatusExpired || next == StatusCalculating
	case StatusSaved:
		return next == StatusOrdered || next == StatusExpired
	case StatusError:
		return next == StatusDraft
	default:
		return false
	}
}

// Quote is an immutable, priced snapshot of a configuration at the moment
// of successful calculation. Later configuration edits produce a new Quote;
// only the status field moves after creation.
type Quote struct {
	ID            string              `json:"id"`
	Configuration Configuration       `json:"configuration"`
	Calculation   pricing.Calculation `json:"calculation"`
	Status        Status              `json:"status"`
	ValidUntil    time.Time           `json:"validUntil"`
	CreatedAt     time.Time           `json:"createdAt"`
	UpdatedAt     time.Time           `json:"updatedAt"`
}
