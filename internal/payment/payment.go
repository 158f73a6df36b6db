package payment

import (
	"context"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Gateway is the payment collaborator seam. It consumes the finalized quote
// total and returns an opaque confirmation reference; the quoting core only
// records the resulting Ordered transition.
type Gateway interface {
	Charge(ctx context.Context, quoteID string, total float64, currency string) (string, error)
}

// LogGateway is a development stand-in that confirms every charge and logs
// it. Production deployments wire a real provider behind the same interface.
type LogGateway struct {
	log *zap.Logger
}

// NewLogGateway creates a LogGateway.
func NewLogGateway(log *zap.Logger) *LogGateway {
	return &LogGateway{log: log}
}

// Charge confirms the payment unconditionally.
func (g *LogGateway) Charge(ctx context.Context, quoteID string, total float64, currency string) (string, error) {
	confirmation := "dev-" + uuid.NewString()
	g.log.Info("payment confirmed",
		zap.String("quote_id", quoteID),
		zap.Float64("total", total),
		zap.String("currency", currency),
		zap.String("confirmation", confirmation))
	return confirmation, nil
}
