// Package shopper orchestrates one conversational query end to end:
// record the user turn, resolve intent, retrieve, post-filter, compose
// the response, and record the assistant turn with the metadata later
// turns depend on for context carry-over.
package shopper

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"github.com/shopdex-io/shopdex/internal/domain"
	"github.com/shopdex-io/shopdex/internal/domain/taxonomy"
	"github.com/shopdex-io/shopdex/internal/logger"
)

// typeDetectionSample bounds how many top titles feed productTypesShown.
const typeDetectionSample = 3

// Service is the query-resolution pipeline.
type Service struct {
	resolver Resolver
	searcher Searcher
	filter   PostFilter
	history  History
}

// New creates a service.
func New(resolver Resolver, searcher Searcher, filter PostFilter, history History) *Service {
	return &Service{
		resolver: resolver,
		searcher: searcher,
		filter:   filter,
		history:  history,
	}
}

// Query runs the full pipeline for one user query.
func (s *Service) Query(ctx context.Context, q domain.Query) (domain.SearchOutcome, error) {
	log := logger.FromContext(ctx)

	if err := q.Validate(); err != nil {
		return domain.SearchOutcome{}, err
	}

	s.history.Append(q.SessionID, domain.Turn{
		Role:     domain.RoleUser,
		Content:  q.Text,
		Metadata: domain.TurnMetadata{HasImage: q.HasImage()},
	})

	decision := s.resolver.Resolve(ctx, q)
	log.Info("intent resolved", zap.String("tool", string(decision.Tool)))

	outcome, err := s.execute(ctx, q, decision)
	if err != nil {
		return domain.SearchOutcome{}, err
	}

	outcome.Response = composeResponse(outcome)
	outcome.Suggestions = composeSuggestions(outcome)

	s.history.Append(q.SessionID, domain.Turn{
		Role:    domain.RoleAssistant,
		Content: outcome.Response,
		Metadata: domain.TurnMetadata{
			ProductTypesShown: detectShownTypes(outcome.Results),
			ProductsShown:     len(outcome.Results),
			ToolUsed:          outcome.ToolUsed,
			FiltersApplied:    filtersAppliedMap(decision),
			HasImage:          q.HasImage(),
		},
	})

	return outcome, nil
}

func (s *Service) execute(ctx context.Context, q domain.Query, d domain.Decision) (domain.SearchOutcome, error) {
	switch d.Tool {
	case domain.ToolSearchByText:
		results, degraded, err := s.searcher.SearchByText(ctx, d.Text.Query, d.Text.Limit)
		if err != nil {
			return domain.SearchOutcome{}, err
		}
		return domain.SearchOutcome{
			ToolUsed:            d.Tool,
			Results:             results,
			SemanticUnavailable: degraded,
		}, nil

	case domain.ToolSearchByImage:
		var (
			results  []domain.RankedResult
			degraded bool
			err      error
		)
		if q.HasText() {
			results, degraded, err = s.searcher.SearchHybrid(ctx, q.Text, d.Image.Image, d.Image.Limit)
		} else {
			results, degraded, err = s.searcher.SearchByImage(ctx, d.Image.Image, d.Image.Limit)
		}
		if err != nil {
			return domain.SearchOutcome{}, err
		}

		// Price bounds riding on an image decision are post-filters.
		spec := domain.FilterSpec{
			MinPrice: d.Image.MinPrice,
			MaxPrice: d.Image.MaxPrice,
			Limit:    d.Image.Limit,
		}
		results, partial := s.filter.Apply(results, spec)
		return domain.SearchOutcome{
			ToolUsed:                d.Tool,
			Results:                 results,
			FiltersPartiallyApplied: partial,
			SemanticUnavailable:     degraded,
		}, nil

	case domain.ToolFilterStructured:
		results, err := s.searcher.FilterStructured(ctx, *d.Filter, 0)
		if err != nil {
			return domain.SearchOutcome{}, err
		}
		// The store applied the relational predicates; the engine applies
		// the type-synonym and option passes over the returned set.
		results, partial := s.filter.Apply(results, *d.Filter)
		return domain.SearchOutcome{
			ToolUsed:                d.Tool,
			Results:                 results,
			FiltersPartiallyApplied: partial,
		}, nil

	case domain.ToolProductDetail:
		result, err := s.searcher.ProductDetail(ctx, d.Detail.ProductID)
		if err != nil {
			return domain.SearchOutcome{}, err
		}
		return domain.SearchOutcome{
			ToolUsed: d.Tool,
			Results:  []domain.RankedResult{result},
		}, nil

	case domain.ToolSimilarTo:
		results, degraded, err := s.searcher.SimilarTo(ctx, d.Similar.ProductID, d.Similar.Limit)
		if err != nil {
			return domain.SearchOutcome{}, err
		}
		return domain.SearchOutcome{
			ToolUsed:            d.Tool,
			Results:             results,
			SemanticUnavailable: degraded,
		}, nil
	}

	return domain.SearchOutcome{}, fmt.Errorf("unhandled tool %q", d.Tool)
}

func composeResponse(o domain.SearchOutcome) string {
	n := len(o.Results)
	if n == 0 {
		return "I couldn't find any products matching that. Try different keywords or loosen the filters."
	}

	var b strings.Builder
	switch o.ToolUsed {
	case domain.ToolProductDetail:
		b.WriteString("Here are the details for " + o.Results[0].Record.Title + ".")
	case domain.ToolSimilarTo:
		fmt.Fprintf(&b, "Found %d similar products.", n)
	case domain.ToolSearchByImage:
		fmt.Fprintf(&b, "Found %d products matching your image.", n)
	default:
		fmt.Fprintf(&b, "Found %d products for you.", n)
	}

	if o.FiltersPartiallyApplied {
		b.WriteString(" I couldn't match the exact product type you asked for, so I'm showing the closest results instead.")
	}
	if o.SemanticUnavailable {
		b.WriteString(" Semantic ranking is temporarily unavailable, so these are keyword matches.")
	}
	return b.String()
}

func composeSuggestions(o domain.SearchOutcome) []string {
	if len(o.Results) == 0 {
		return []string{"show me shirts", "show me shoes", "find products under $50"}
	}

	var suggestions []string
	if types := detectShownTypes(o.Results); len(types) > 0 {
		suggestions = append(suggestions, "show me more "+types[0])
	}
	if cheapest := cheapestPrice(o.Results); cheapest != nil && *cheapest > 0 {
		suggestions = append(suggestions, "anything under $"+strconv.FormatFloat(*cheapest, 'f', -1, 64)+"?")
	}
	if o.ToolUsed != domain.ToolSimilarTo && len(o.Results) > 0 {
		suggestions = append(suggestions, "show me something similar to "+o.Results[0].Record.Title)
	}
	return suggestions
}

// detectShownTypes derives productTypesShown metadata from the top
// result titles. This feeds the carry-over rule on the next turn.
func detectShownTypes(results []domain.RankedResult) []string {
	sample := results
	if len(sample) > typeDetectionSample {
		sample = sample[:typeDetectionSample]
	}

	var titles strings.Builder
	for _, r := range sample {
		titles.WriteString(r.Record.Title)
		titles.WriteByte(' ')
	}
	return taxonomy.Detect(titles.String())
}

func cheapestPrice(results []domain.RankedResult) *float64 {
	var min *float64
	for _, r := range results {
		p := r.Record.Price
		if p == nil {
			continue
		}
		if min == nil || *p < *min {
			min = p
		}
	}
	return min
}

// filtersAppliedMap renders the decision's constraints for turn metadata.
func filtersAppliedMap(d domain.Decision) map[string]string {
	out := map[string]string{}
	spec := d.Filter
	if d.Tool == domain.ToolSearchByImage && d.Image != nil {
		spec = &domain.FilterSpec{MinPrice: d.Image.MinPrice, MaxPrice: d.Image.MaxPrice}
	}
	if spec == nil {
		return out
	}
	if spec.MinPrice != nil {
		out["min_price"] = strconv.FormatFloat(*spec.MinPrice, 'f', -1, 64)
	}
	if spec.MaxPrice != nil {
		out["max_price"] = strconv.FormatFloat(*spec.MaxPrice, 'f', -1, 64)
	}
	if len(spec.Vendors) > 0 {
		out["vendors"] = strings.Join(spec.Vendors, ",")
	}
	if len(spec.ProductTypeKeywords) > 0 {
		out["product_types"] = strings.Join(spec.ProductTypeKeywords, ",")
	}
	if spec.InStockOnly {
		out["in_stock_only"] = "true"
	}
	return out
}
