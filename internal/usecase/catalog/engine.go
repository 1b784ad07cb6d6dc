// Package catalog post-filters ranked results against a structured spec.
// The engine is a pure, order-preserving filter: it never re-ranks, and
// applying it twice with the same spec yields the same set.
package catalog

import (
	"strings"

	"github.com/shopdex-io/shopdex/internal/domain"
	"github.com/shopdex-io/shopdex/internal/domain/taxonomy"
)

// Engine applies FilterSpec predicates over an already-ranked list.
type Engine struct{}

// New creates an engine.
func New() *Engine { return &Engine{} }

// Apply filters results in three passes: attribute predicates, the
// product-type title filter, then option-value filters. The second return
// is true when the type filter would have collapsed a non-empty set to
// zero and was therefore skipped.
func (e *Engine) Apply(results []domain.RankedResult, spec domain.FilterSpec) ([]domain.RankedResult, bool) {
	filtered := applyAttributes(results, spec)

	filtered, partial := applyTypeKeywords(filtered, spec.ProductTypeKeywords)

	filtered = applyOptions(filtered, spec.Options)

	return filtered, partial
}

// applyAttributes keeps records passing every price, vendor and stock
// predicate. A zero max price is a real bound: only free items pass.
func applyAttributes(results []domain.RankedResult, spec domain.FilterSpec) []domain.RankedResult {
	out := make([]domain.RankedResult, 0, len(results))
	for _, r := range results {
		rec := r.Record
		if spec.MinPrice != nil && (rec.Price == nil || *rec.Price < *spec.MinPrice) {
			continue
		}
		if spec.MaxPrice != nil && (rec.Price == nil || *rec.Price > *spec.MaxPrice) {
			continue
		}
		if len(spec.Vendors) > 0 && !vendorMatches(rec.Vendor, spec.Vendors) {
			continue
		}
		if len(spec.Categories) > 0 && !categoryMatches(rec, spec.Categories) {
			continue
		}
		if spec.InStockOnly && rec.Quantity <= 0 {
			continue
		}
		out = append(out, r)
	}
	return out
}

// applyTypeKeywords keeps records whose title contains any synonym of any
// requested type. When that would empty a non-empty set, the filter is
// skipped and the partial flag raised instead of returning nothing.
func applyTypeKeywords(results []domain.RankedResult, types []string) ([]domain.RankedResult, bool) {
	if len(types) == 0 || len(results) == 0 {
		return results, false
	}

	out := make([]domain.RankedResult, 0, len(results))
	for _, r := range results {
		if taxonomy.MatchesAny(r.Record.Title, types) {
			out = append(out, r)
		}
	}

	if len(out) == 0 {
		return results, true
	}
	return out, false
}

// applyOptions keeps records carrying at least one matching option value
// for each requested (name, value) pair.
func applyOptions(results []domain.RankedResult, options []domain.OptionFilter) []domain.RankedResult {
	if len(options) == 0 {
		return results
	}

	out := make([]domain.RankedResult, 0, len(results))
	for _, r := range results {
		if hasAllOptions(r.Record, options) {
			out = append(out, r)
		}
	}
	return out
}

func hasAllOptions(rec domain.ProductRecord, options []domain.OptionFilter) bool {
	for _, opt := range options {
		if !rec.HasOption(opt.Name, opt.Value) {
			return false
		}
	}
	return true
}

func vendorMatches(vendor string, wanted []string) bool {
	for _, w := range wanted {
		if strings.EqualFold(vendor, w) {
			return true
		}
	}
	return false
}

func categoryMatches(rec domain.ProductRecord, categories []int64) bool {
	for _, c := range categories {
		if rec.CategoryID == c {
			return true
		}
	}
	return false
}
