// Package retrieval executes tool decisions against the vector index and
// the relational catalog, fusing and deduplicating the result sets into
// one relevance-ordered list. Every semantic path has a non-semantic
// fallback tier so provider or index loss degrades rather than fails.
package retrieval

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/shopdex-io/shopdex/internal/domain"
	"github.com/shopdex-io/shopdex/internal/logger"
	"github.com/shopdex-io/shopdex/internal/metrics"
)

// Coordinator routes each tool to its retrieval strategy.
type Coordinator struct {
	index    VectorIndex
	products ProductFinder
	embedder Embedder

	// providerTimeout is the per-call provider budget; if less than this
	// remains on the request deadline, provider calls are skipped and the
	// keyword tier answers instead.
	providerTimeout time.Duration
	subLimit        int
	defaultLimit    int
}

// New creates a coordinator. subLimit bounds each source in dual-source
// fusion; defaultLimit applies when a tool carries no explicit limit.
func New(index VectorIndex, products ProductFinder, embedder Embedder,
	providerTimeout time.Duration, subLimit, defaultLimit int) *Coordinator {
	if subLimit <= 0 {
		subLimit = 10
	}
	if defaultLimit <= 0 {
		defaultLimit = 20
	}
	return &Coordinator{
		index:           index,
		products:        products,
		embedder:        embedder,
		providerTimeout: providerTimeout,
		subLimit:        subLimit,
		defaultLimit:    defaultLimit,
	}
}

// SearchByText answers a text query. The degraded return is true when the
// answer came from the keyword tier only.
func (c *Coordinator) SearchByText(ctx context.Context, text string, limit int) ([]domain.RankedResult, bool, error) {
	log := logger.FromContext(ctx)
	limit = c.orDefault(limit)

	if c.deadlineImminent(ctx) {
		log.Warn("request deadline imminent, skipping semantic tier")
		return c.keywordTier(ctx, "search_by_text", text, limit)
	}

	if n, err := c.index.Count(ctx); err != nil || n == 0 {
		if err != nil {
			log.Warn("vector index unavailable", zap.Error(err))
		}
		return c.keywordTier(ctx, "search_by_text", text, limit)
	}

	vec, err := c.embedder.EmbedText(ctx, text)
	if err != nil {
		log.Warn("text embedding failed, degrading to keyword tier", zap.Error(err))
		return c.keywordTier(ctx, "search_by_text", text, limit)
	}

	results, err := c.knn(ctx, vec, limit)
	if err != nil {
		log.Warn("knn search failed, degrading to keyword tier", zap.Error(err))
		return c.keywordTier(ctx, "search_by_text", text, limit)
	}

	metrics.SearchRequestsTotal.WithLabelValues("search_by_text", "vector").Inc()
	return results, false, nil
}

// SearchByImage answers an image query. Provider failure degrades to the
// most recent products that carry at least one image.
func (c *Coordinator) SearchByImage(ctx context.Context, image []byte, limit int) ([]domain.RankedResult, bool, error) {
	log := logger.FromContext(ctx)
	limit = c.orDefault(limit)

	if c.deadlineImminent(ctx) {
		log.Warn("request deadline imminent, skipping image embedding")
		return c.recentTier(ctx, limit)
	}

	vec, err := c.embedder.EmbedImage(ctx, image)
	if err != nil {
		log.Warn("image embedding failed, degrading to recent products", zap.Error(err))
		return c.recentTier(ctx, limit)
	}

	results, err := c.knn(ctx, vec, limit)
	if err != nil {
		log.Warn("knn search failed, degrading to recent products", zap.Error(err))
		return c.recentTier(ctx, limit)
	}

	metrics.SearchRequestsTotal.WithLabelValues("search_by_image", "vector").Inc()
	return results, false, nil
}

// SearchHybrid runs text and image retrieval independently with a
// sub-limit each and fuses the sets. An empty fusion retries each source
// once before degrading to a catalog keyword scan.
func (c *Coordinator) SearchHybrid(ctx context.Context, text string, image []byte, limit int) ([]domain.RankedResult, bool, error) {
	limit = c.orDefault(limit)

	textRes, textDeg, _ := c.SearchByText(ctx, text, c.subLimit)
	imgRes, imgDeg, _ := c.SearchByImage(ctx, image, c.subLimit)

	fused := fuse(textRes, imgRes)
	if len(fused) == 0 {
		textRes, textDeg, _ = c.SearchByText(ctx, text, c.subLimit)
		imgRes, imgDeg, _ = c.SearchByImage(ctx, image, c.subLimit)
		fused = fuse(textRes, imgRes)
	}
	if len(fused) == 0 {
		return c.keywordTier(ctx, "hybrid", text, limit)
	}

	return truncate(fused, limit), textDeg && imgDeg, nil
}

// FilterStructured executes the spec directly against the catalog with no
// vector step. Relational results carry the keyword origin and synthetic
// distance so they compose with ranked lists downstream.
func (c *Coordinator) FilterStructured(ctx context.Context, spec domain.FilterSpec, offset int) ([]domain.RankedResult, error) {
	if spec.Limit <= 0 {
		spec.Limit = c.defaultLimit
	}

	recs, err := c.products.Find(ctx, spec, offset)
	if err != nil {
		return nil, fmt.Errorf("structured filter: %w", err)
	}

	metrics.SearchRequestsTotal.WithLabelValues("filter_structured", "catalog").Inc()
	return asRanked(recs, domain.OriginKeyword, domain.KeywordDistance), nil
}

// ProductDetail returns a single product by id.
func (c *Coordinator) ProductDetail(ctx context.Context, id int64) (domain.RankedResult, error) {
	rec, err := c.products.GetByID(ctx, id)
	if err != nil {
		return domain.RankedResult{}, err
	}
	metrics.SearchRequestsTotal.WithLabelValues("product_detail", "catalog").Inc()
	return domain.RankedResult{Record: rec, Distance: 0, Origin: domain.OriginKeyword}, nil
}

// SimilarTo embeds the reference product's indexable text and runs a KNN
// search, excluding the reference itself from the results.
func (c *Coordinator) SimilarTo(ctx context.Context, id int64, limit int) ([]domain.RankedResult, bool, error) {
	log := logger.FromContext(ctx)
	limit = c.orDefault(limit)

	ref, err := c.products.GetByID(ctx, id)
	if err != nil {
		return nil, false, err
	}

	if c.deadlineImminent(ctx) {
		return c.keywordTier(ctx, "similar_to", ref.Title, limit)
	}

	vec, err := c.embedder.EmbedText(ctx, ref.IndexableText())
	if err != nil {
		log.Warn("reference embedding failed, degrading to keyword tier", zap.Error(err))
		return c.keywordTier(ctx, "similar_to", ref.Title, limit)
	}

	// Over-fetch by one: the reference product is its own nearest neighbor.
	hits, err := c.index.NearestByVector(ctx, vec, limit+1)
	if err != nil {
		log.Warn("knn search failed, degrading to keyword tier", zap.Error(err))
		return c.keywordTier(ctx, "similar_to", ref.Title, limit)
	}

	filtered := hits[:0]
	for _, h := range hits {
		if h.ProductID != id {
			filtered = append(filtered, h)
		}
	}

	results, err := c.hydrate(ctx, filtered)
	if err != nil {
		return nil, false, err
	}

	metrics.SearchRequestsTotal.WithLabelValues("similar_to", "vector").Inc()
	return truncate(results, limit), false, nil
}

// knn runs the vector search and resolves hits back to catalog records.
func (c *Coordinator) knn(ctx context.Context, vec []float32, k int) ([]domain.RankedResult, error) {
	hits, err := c.index.NearestByVector(ctx, vec, k)
	if err != nil {
		return nil, err
	}
	return c.hydrate(ctx, hits)
}

// hydrate resolves vector hits to relational records, preserving hit
// order. Ids missing from the catalog (stale index entries) are dropped.
func (c *Coordinator) hydrate(ctx context.Context, hits []domain.VectorHit) ([]domain.RankedResult, error) {
	if len(hits) == 0 {
		return nil, nil
	}

	ids := make([]int64, len(hits))
	for i, h := range hits {
		ids[i] = h.ProductID
	}
	recs, err := c.products.GetByIDs(ctx, ids)
	if err != nil {
		return nil, fmt.Errorf("hydrate hits: %w", err)
	}

	out := make([]domain.RankedResult, 0, len(hits))
	for _, h := range hits {
		rec, ok := recs[h.ProductID]
		if !ok {
			continue
		}
		out = append(out, domain.RankedResult{
			Record:   rec,
			Distance: h.Distance,
			Origin:   domain.OriginVector,
		})
	}
	return out, nil
}

// keywordTier is the non-semantic answer: a catalog substring scan, with
// the index text search as a secondary attempt if the catalog errors.
func (c *Coordinator) keywordTier(ctx context.Context, tool, term string, limit int) ([]domain.RankedResult, bool, error) {
	recs, err := c.products.SearchKeyword(ctx, term, limit)
	if err == nil {
		metrics.SearchRequestsTotal.WithLabelValues(tool, "keyword").Inc()
		return asRanked(recs, domain.OriginKeyword, domain.KeywordDistance), true, nil
	}

	hits, idxErr := c.index.KeywordLike(ctx, term, limit)
	if idxErr != nil {
		return nil, true, fmt.Errorf("keyword tier: %w", err)
	}
	results := make([]domain.RankedResult, 0, len(hits))
	for _, h := range hits {
		rec, recErr := c.products.GetByID(ctx, h.ProductID)
		if recErr != nil {
			continue
		}
		results = append(results, domain.RankedResult{
			Record:   rec,
			Distance: domain.KeywordDistance,
			Origin:   domain.OriginKeyword,
		})
	}

	metrics.SearchRequestsTotal.WithLabelValues(tool, "keyword").Inc()
	return results, true, nil
}

// recentTier is the degraded image-search answer.
func (c *Coordinator) recentTier(ctx context.Context, limit int) ([]domain.RankedResult, bool, error) {
	recs, err := c.products.RecentWithImages(ctx, limit)
	if err != nil {
		return nil, true, fmt.Errorf("recent products: %w", err)
	}
	metrics.SearchRequestsTotal.WithLabelValues("search_by_image", "fallback").Inc()
	return asRanked(recs, domain.OriginFallback, domain.FallbackDistance), true, nil
}

// deadlineImminent reports whether less than one provider call's budget
// remains on the request deadline.
func (c *Coordinator) deadlineImminent(ctx context.Context) bool {
	deadline, ok := ctx.Deadline()
	if !ok {
		return false
	}
	return time.Until(deadline) < c.providerTimeout
}

func (c *Coordinator) orDefault(limit int) int {
	if limit <= 0 {
		return c.defaultLimit
	}
	return limit
}

func asRanked(recs []domain.ProductRecord, origin domain.Origin, distance float64) []domain.RankedResult {
	out := make([]domain.RankedResult, len(recs))
	for i, rec := range recs {
		out[i] = domain.RankedResult{Record: rec, Distance: distance, Origin: origin}
	}
	return out
}
