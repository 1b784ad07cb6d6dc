package retrieval

import (
	"context"

	"github.com/shopdex-io/shopdex/internal/domain"
)

// VectorIndex is the similarity-search surface of the vector store.
type VectorIndex interface {
	NearestByVector(ctx context.Context, vec []float32, k int) ([]domain.VectorHit, error)
	KeywordLike(ctx context.Context, term string, k int) ([]domain.VectorHit, error)
	Count(ctx context.Context) (int, error)
}

// ProductFinder is the catalog surface the coordinator needs.
type ProductFinder interface {
	Find(ctx context.Context, spec domain.FilterSpec, offset int) ([]domain.ProductRecord, error)
	GetByID(ctx context.Context, id int64) (domain.ProductRecord, error)
	GetByIDs(ctx context.Context, ids []int64) (map[int64]domain.ProductRecord, error)
	SearchKeyword(ctx context.Context, term string, limit int) ([]domain.ProductRecord, error)
	RecentWithImages(ctx context.Context, limit int) ([]domain.ProductRecord, error)
}

// Embedder turns text or images into query vectors.
type Embedder interface {
	EmbedText(ctx context.Context, text string) ([]float32, error)
	EmbedImage(ctx context.Context, image []byte) ([]float32, error)
}
