package domain

// Query is the immutable input of one resolution round. At least one of
// Text and Image must be present.
type Query struct {
	Text      string
	Image     []byte
	SessionID string
	Limit     int
}

// HasText reports whether the query carries non-empty text.
func (q Query) HasText() bool { return q.Text != "" }

// HasImage reports whether the query carries an image payload.
func (q Query) HasImage() bool { return len(q.Image) > 0 }

// Validate checks the query invariants.
func (q Query) Validate() error {
	if !q.HasText() && !q.HasImage() {
		return ErrEmptyQuery
	}
	return nil
}

// Tool identifies the retrieval capability chosen for a query.
// Exactly one is selected per query.
type Tool string

const (
	ToolSearchByText     Tool = "search_by_text"
	ToolSearchByImage    Tool = "search_by_image"
	ToolFilterStructured Tool = "filter_structured"
	ToolProductDetail    Tool = "product_detail"
	ToolSimilarTo        Tool = "similar_to"
)

// Valid reports whether t names a known tool.
func (t Tool) Valid() bool {
	switch t {
	case ToolSearchByText, ToolSearchByImage, ToolFilterStructured,
		ToolProductDetail, ToolSimilarTo:
		return true
	}
	return false
}

// TextParams carries the parameters of a text search.
type TextParams struct {
	Query string
	Limit int
}

// ImageParams carries the parameters of an image similarity search.
// Price bounds ride along because the original pipeline applies them as a
// post-filter on image results.
type ImageParams struct {
	Image    []byte
	MinPrice *float64
	MaxPrice *float64
	Limit    int
}

// DetailParams carries a detail lookup.
type DetailParams struct {
	ProductID int64
}

// SimilarParams carries a similar-items lookup.
type SimilarParams struct {
	ProductID int64
	Limit     int
}

// Decision is the tagged-variant outcome of intent resolution: one tool
// plus exactly one populated parameter struct matching it.
type Decision struct {
	Tool    Tool
	Text    *TextParams
	Image   *ImageParams
	Filter  *FilterSpec
	Detail  *DetailParams
	Similar *SimilarParams
}
