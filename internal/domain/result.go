package domain

// Origin records which retrieval source produced a ranked result.
type Origin string

const (
	// OriginVector marks a hit from the ANN index.
	OriginVector Origin = "vector"
	// OriginKeyword marks a hit from keyword/substring search.
	OriginKeyword Origin = "keyword"
	// OriginFallback marks a degraded-path hit (e.g. recent products).
	OriginFallback Origin = "fallback"
)

// VectorHit is one index match before catalog hydration. Distance is raw
// cosine distance, domain [0,2], lower is better.
type VectorHit struct {
	ProductID int64
	Distance  float64
}

// RankedResult pairs a product with its relevance distance. Distance is
// cosine-derived, domain [0,2], lower is better. Keyword and fallback
// origins carry synthetic distances so they sort after vector hits.
type RankedResult struct {
	Record   ProductRecord
	Distance float64
	Origin   Origin
}

// Synthetic distances for non-vector origins. Kept inside the [0,2]
// cosine-distance domain so mixed lists still sort meaningfully.
const (
	KeywordDistance  = 1.5
	FallbackDistance = 1.9
)

// SearchOutcome is the surface returned to the web layer.
type SearchOutcome struct {
	ToolUsed Tool
	Results  []RankedResult
	// FiltersPartiallyApplied is set when the product-type filter would
	// have collapsed a non-empty set to zero and was therefore skipped.
	FiltersPartiallyApplied bool
	// SemanticUnavailable is set when the answer came from the keyword or
	// fallback tier only, so the caller can explain degraded ranking.
	SemanticUnavailable bool
	Response            string
	Suggestions         []string
}
