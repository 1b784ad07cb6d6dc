package reindex

import (
	"context"

	"github.com/shopdex-io/shopdex/internal/domain"
)

// Catalog pages through the product store for a full rebuild.
type Catalog interface {
	ListPage(ctx context.Context, afterID int64, limit int) ([]domain.ProductRecord, error)
	Count(ctx context.Context) (int, error)
}

// IndexWriter is the write surface of the vector store. Delete of a
// nonexistent entry must be a no-op, not an error.
type IndexWriter interface {
	Upsert(ctx context.Context, productID int64, vec []float32, text string) error
	Delete(ctx context.Context, productID int64) error
}

// Embedder generates one vector per product's indexable text.
type Embedder interface {
	EmbedText(ctx context.Context, text string) ([]float32, error)
}
