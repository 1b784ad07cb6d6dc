package intent

import (
	"context"

	"github.com/shopdex-io/shopdex/internal/domain"
)

// HistoryReader reads recent conversation turns for a session.
type HistoryReader interface {
	Recent(sessionID string, n int) []domain.Turn
}

// Classifier asks an external model for a structured tool decision.
type Classifier interface {
	Classify(ctx context.Context, prompt string) ([]byte, error)
}
