// Package intent classifies a query into a tool choice plus structured
// parameters. Tier 1 is a set of deterministic pattern matchers; tier 2
// asks an external classifier with recent conversation context; tier 3 is
// rule-based extraction. Resolution never fails: the worst case degrades
// to a plain text search over the raw query.
package intent

import (
	"context"
	"encoding/json"
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"github.com/shopdex-io/shopdex/internal/domain"
	"github.com/shopdex-io/shopdex/internal/domain/taxonomy"
	"github.com/shopdex-io/shopdex/internal/logger"
	"github.com/shopdex-io/shopdex/internal/metrics"
)

// Resolver resolves queries into tool decisions.
type Resolver struct {
	classifier   Classifier
	history      HistoryReader
	contextTurns int
	defaultLimit int
}

// New creates a resolver. classifier may be nil (rule tier only).
func New(classifier Classifier, history HistoryReader, contextTurns, defaultLimit int) *Resolver {
	if contextTurns <= 0 {
		contextTurns = 3
	}
	if defaultLimit <= 0 {
		defaultLimit = 20
	}
	return &Resolver{
		classifier:   classifier,
		history:      history,
		contextTurns: contextTurns,
		defaultLimit: defaultLimit,
	}
}

// Fast-path patterns. Each matches one narrow, unambiguous phrasing and
// never consults history.
var (
	reSimpleSearch = regexp.MustCompile(`^(?:show me|find|search for|i want|looking for)\s+(\w+?)s?$`)
	rePriceBelow   = regexp.MustCompile(`^(?:show me|find)\s*(?:products|items)?\s*(?:under|below|less than)\s*\$?(\d+(?:\.\d+)?)$`)

	reAbove    = regexp.MustCompile(`(?:above|over|more than)\s*\$?(\d+(?:\.\d+)?)`)
	reBelow    = regexp.MustCompile(`(?:under|below|less than)\s*\$?(\d+(?:\.\d+)?)`)
	reFollowUp = regexp.MustCompile(`^(?:how about|what about|anything|any|maybe)\s*(?:under|below|around|at)?\s*\$?(\d+(?:\.\d+)?)\s*\??$`)
	reBareNum  = regexp.MustCompile(`^\$?(\d+(?:\.\d+)?)\s*\??$`)
)

// Resolve classifies the query. It never returns an error to the caller;
// every failure takes the next tier down.
func (r *Resolver) Resolve(ctx context.Context, q domain.Query) domain.Decision {
	log := logger.FromContext(ctx)
	limit := q.Limit
	if limit <= 0 {
		limit = r.defaultLimit
	}

	if d, ok := r.fastPath(q, limit); ok {
		metrics.IntentResolutionsTotal.WithLabelValues("fast").Inc()
		return d
	}

	history := r.recentHistory(q.SessionID)

	if r.classifier != nil {
		d, err := r.classify(ctx, q, history, limit)
		if err == nil {
			metrics.IntentResolutionsTotal.WithLabelValues("classifier").Inc()
			return r.applyContext(d, q, history)
		}
		log.Debug("classifier tier failed, falling back to rules", zap.Error(err))
	}

	metrics.IntentResolutionsTotal.WithLabelValues("rules").Inc()
	return r.applyContext(r.ruleBased(q, limit), q, history)
}

// fastPath runs the deterministic matchers. Total functions: a miss
// returns (zero, false), never an error.
func (r *Resolver) fastPath(q domain.Query, limit int) (domain.Decision, bool) {
	text := normalize(q.Text)

	// Image with no accompanying text resolves without any model help.
	if q.HasImage() && text == "" {
		return domain.Decision{
			Tool:  domain.ToolSearchByImage,
			Image: &domain.ImageParams{Image: q.Image, Limit: limit},
		}, true
	}
	if q.HasImage() {
		// Image plus text needs the fallback tier to untangle filters.
		return domain.Decision{}, false
	}

	if m := reSimpleSearch.FindStringSubmatch(text); m != nil {
		return domain.Decision{
			Tool: domain.ToolSearchByText,
			Text: &domain.TextParams{Query: m[1], Limit: limit},
		}, true
	}

	if m := rePriceBelow.FindStringSubmatch(text); m != nil {
		if max, err := strconv.ParseFloat(m[1], 64); err == nil {
			return domain.Decision{
				Tool:   domain.ToolFilterStructured,
				Filter: &domain.FilterSpec{MaxPrice: &max, Limit: limit},
			}, true
		}
	}

	return domain.Decision{}, false
}

// classifierOutput is the JSON schema the fallback classifier must emit.
type classifierOutput struct {
	Tool   string `json:"tool"`
	Params struct {
		Query        string   `json:"query"`
		MinPrice     *float64 `json:"min_price"`
		MaxPrice     *float64 `json:"max_price"`
		Vendors      []string `json:"vendors"`
		ProductTypes []string `json:"product_types"`
		ProductID    *int64   `json:"product_id"`
		Limit        int      `json:"limit"`
	} `json:"params"`
	Reasoning string `json:"reasoning"`
}

// classify runs the model tier and validates its output against the
// params schema. Invalid output is an error so the caller can fall back.
func (r *Resolver) classify(
	ctx context.Context, q domain.Query, history []domain.Turn, limit int,
) (domain.Decision, error) {
	raw, err := r.classifier.Classify(ctx, buildPrompt(q, history))
	if err != nil {
		return domain.Decision{}, fmt.Errorf("classify: %w", err)
	}

	var out classifierOutput
	if err := json.Unmarshal(raw, &out); err != nil {
		return domain.Decision{}, fmt.Errorf("%w: %v", domain.ErrInvalidClassifierOutput, err)
	}

	tool := domain.Tool(out.Tool)
	if !tool.Valid() {
		return domain.Decision{}, fmt.Errorf("%w: unknown tool %q", domain.ErrInvalidClassifierOutput, out.Tool)
	}
	if out.Params.Limit > 0 {
		limit = out.Params.Limit
	}

	switch tool {
	case domain.ToolSearchByText:
		query := out.Params.Query
		if query == "" {
			query = q.Text
		}
		return domain.Decision{
			Tool: tool,
			Text: &domain.TextParams{Query: query, Limit: limit},
		}, nil

	case domain.ToolSearchByImage:
		return domain.Decision{
			Tool: tool,
			Image: &domain.ImageParams{
				Image:    q.Image,
				MinPrice: out.Params.MinPrice,
				MaxPrice: out.Params.MaxPrice,
				Limit:    limit,
			},
		}, nil

	case domain.ToolFilterStructured:
		spec := domain.FilterSpec{
			MinPrice:            out.Params.MinPrice,
			MaxPrice:            out.Params.MaxPrice,
			Vendors:             out.Params.Vendors,
			ProductTypeKeywords: canonicalTypes(out.Params.ProductTypes),
			Limit:               limit,
		}
		if err := spec.Validate(); err != nil {
			return domain.Decision{}, fmt.Errorf("%w: %v", domain.ErrInvalidClassifierOutput, err)
		}
		return domain.Decision{Tool: tool, Filter: &spec}, nil

	case domain.ToolProductDetail:
		if out.Params.ProductID == nil {
			return domain.Decision{}, fmt.Errorf("%w: product_detail without product_id", domain.ErrInvalidClassifierOutput)
		}
		return domain.Decision{
			Tool:   tool,
			Detail: &domain.DetailParams{ProductID: *out.Params.ProductID},
		}, nil

	case domain.ToolSimilarTo:
		if out.Params.ProductID == nil {
			return domain.Decision{}, fmt.Errorf("%w: similar_to without product_id", domain.ErrInvalidClassifierOutput)
		}
		return domain.Decision{
			Tool:    tool,
			Similar: &domain.SimilarParams{ProductID: *out.Params.ProductID, Limit: limit},
		}, nil
	}

	return domain.Decision{}, fmt.Errorf("%w: unhandled tool %q", domain.ErrInvalidClassifierOutput, out.Tool)
}

// ruleBased is the last extraction tier: regex price bounds plus synonym
// table type detection over the raw text.
func (r *Resolver) ruleBased(q domain.Query, limit int) domain.Decision {
	text := normalize(q.Text)

	var minPrice, maxPrice *float64
	if m := reAbove.FindStringSubmatch(text); m != nil {
		if v, err := strconv.ParseFloat(m[1], 64); err == nil {
			minPrice = &v
		}
	}
	if m := reBelow.FindStringSubmatch(text); m != nil {
		if v, err := strconv.ParseFloat(m[1], 64); err == nil {
			maxPrice = &v
		}
	}
	// A follow-up like "how about 550?" or a bare number reads as a new
	// price ceiling against the context established earlier.
	if maxPrice == nil && minPrice == nil {
		if m := reFollowUp.FindStringSubmatch(text); m != nil {
			if v, err := strconv.ParseFloat(m[1], 64); err == nil {
				maxPrice = &v
			}
		} else if m := reBareNum.FindStringSubmatch(text); m != nil {
			if v, err := strconv.ParseFloat(m[1], 64); err == nil {
				maxPrice = &v
			}
		}
	}

	types := taxonomy.Detect(text)

	if q.HasImage() {
		return domain.Decision{
			Tool: domain.ToolSearchByImage,
			Image: &domain.ImageParams{
				Image:    q.Image,
				MinPrice: minPrice,
				MaxPrice: maxPrice,
				Limit:    limit,
			},
		}
	}

	if minPrice != nil || maxPrice != nil {
		return domain.Decision{
			Tool: domain.ToolFilterStructured,
			Filter: &domain.FilterSpec{
				MinPrice:            minPrice,
				MaxPrice:            maxPrice,
				ProductTypeKeywords: types,
				Limit:               limit,
			},
		}
	}

	if len(types) > 0 {
		return domain.Decision{
			Tool: domain.ToolSearchByText,
			Text: &domain.TextParams{Query: joinTypes(types), Limit: limit},
		}
	}

	return domain.Decision{
		Tool: domain.ToolSearchByText,
		Text: &domain.TextParams{Query: q.Text, Limit: limit},
	}
}

// applyContext enforces the two history rules that hold regardless of
// which tier produced the decision:
//  1. image-without-payload: a search_by_image decision with no image in
//     the query is reinterpreted as filter_structured using types from
//     history (a prior turn's image cannot be re-executed);
//  2. carry-over: a filter_structured decision with no explicit type and
//     none in the query inherits productTypesShown from the immediately
//     preceding assistant turn.
func (r *Resolver) applyContext(d domain.Decision, q domain.Query, history []domain.Turn) domain.Decision {
	if d.Tool == domain.ToolSearchByImage && !q.HasImage() {
		spec := domain.FilterSpec{Limit: r.defaultLimit}
		if d.Image != nil {
			spec.MinPrice = d.Image.MinPrice
			spec.MaxPrice = d.Image.MaxPrice
			if d.Image.Limit > 0 {
				spec.Limit = d.Image.Limit
			}
		}
		spec.ProductTypeKeywords = typesFromHistory(history)
		d = domain.Decision{Tool: domain.ToolFilterStructured, Filter: &spec}
	}

	if d.Tool == domain.ToolFilterStructured && d.Filter != nil &&
		len(d.Filter.ProductTypeKeywords) == 0 && len(taxonomy.Detect(q.Text)) == 0 {
		if types := typesFromHistory(history); len(types) > 0 {
			d.Filter.ProductTypeKeywords = types
		}
	}

	return d
}

// typesFromHistory finds productTypesShown on the most recent assistant
// turn, falling back to type detection over assistant content.
func typesFromHistory(history []domain.Turn) []string {
	for i := len(history) - 1; i >= 0; i-- {
		t := history[i]
		if t.Role != domain.RoleAssistant {
			continue
		}
		if len(t.Metadata.ProductTypesShown) > 0 {
			return t.Metadata.ProductTypesShown
		}
		if types := taxonomy.Detect(t.Content); len(types) > 0 {
			return types
		}
	}
	return nil
}

func (r *Resolver) recentHistory(sessionID string) []domain.Turn {
	if r.history == nil {
		return nil
	}
	return r.history.Recent(sessionID, r.contextTurns)
}

func canonicalTypes(raw []string) []string {
	var out []string
	for _, t := range raw {
		if c, ok := taxonomy.Canonical(t); ok {
			out = append(out, c)
		} else if t != "" {
			out = append(out, t)
		}
	}
	return out
}

func joinTypes(types []string) string {
	return strings.Join(types, " ")
}

var spaceRe = regexp.MustCompile(`\s+`)

func normalize(s string) string {
	return spaceRe.ReplaceAllString(strings.ToLower(strings.TrimSpace(s)), " ")
}
