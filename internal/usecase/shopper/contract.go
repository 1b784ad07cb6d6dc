package shopper

import (
	"context"

	"github.com/shopdex-io/shopdex/internal/domain"
)

// Resolver turns a query plus history into a tool decision.
type Resolver interface {
	Resolve(ctx context.Context, q domain.Query) domain.Decision
}

// Searcher is the retrieval surface, one method per tool.
type Searcher interface {
	SearchByText(ctx context.Context, text string, limit int) ([]domain.RankedResult, bool, error)
	SearchByImage(ctx context.Context, image []byte, limit int) ([]domain.RankedResult, bool, error)
	SearchHybrid(ctx context.Context, text string, image []byte, limit int) ([]domain.RankedResult, bool, error)
	FilterStructured(ctx context.Context, spec domain.FilterSpec, offset int) ([]domain.RankedResult, error)
	ProductDetail(ctx context.Context, id int64) (domain.RankedResult, error)
	SimilarTo(ctx context.Context, id int64, limit int) ([]domain.RankedResult, bool, error)
}

// PostFilter applies structured constraints over a ranked list.
type PostFilter interface {
	Apply(results []domain.RankedResult, spec domain.FilterSpec) ([]domain.RankedResult, bool)
}

// History is the session-scoped conversation store.
type History interface {
	Append(sessionID string, turn domain.Turn)
	Recent(sessionID string, n int) []domain.Turn
}
