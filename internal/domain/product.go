package domain

import "strings"

// ProductRecord is the canonical product shape returned to callers.
// The relational store is the sole owner of product identity; vector-index
// hits are always resolved back to a ProductRecord by id before leaving
// the pipeline.
type ProductRecord struct {
	ID          int64
	Title       string
	Description string
	Tags        string
	Price       *float64
	Vendor      string
	ProductType string
	Images      []string
	Options     []OptionFilter
	Quantity    int
	CategoryID  int64
}

// HasOption reports whether the product has at least one option value
// matching the (name, value) pair, case-insensitively.
func (p ProductRecord) HasOption(name, value string) bool {
	for _, o := range p.Options {
		if strings.EqualFold(o.Name, name) && strings.EqualFold(o.Value, value) {
			return true
		}
	}
	return false
}

// HasImage reports whether the product carries at least one image URL.
func (p ProductRecord) HasImage() bool {
	return len(p.Images) > 0
}

// IndexableText composes the text that gets embedded for this product.
func (p ProductRecord) IndexableText() string {
	text := p.Title
	for _, part := range []string{p.Description, p.Tags, p.Vendor, p.ProductType} {
		if part != "" {
			text += " " + part
		}
	}
	return text
}

// OptionFilter requests products having at least one option value matching
// the (name, value) pair, e.g. ("size", "M") or ("color", "blue").
type OptionFilter struct {
	Name  string
	Value string
}

// FilterSpec holds structured retrieval constraints. Every field except
// Limit is optional; absence means "no constraint", never "match nothing".
// Price bounds are pointers so that zero is a valid bound, not "unset".
type FilterSpec struct {
	MinPrice            *float64
	MaxPrice            *float64
	Vendors             []string
	Categories          []int64
	ProductTypeKeywords []string
	Options             []OptionFilter
	InStockOnly         bool
	Limit               int
}

// Validate checks the spec's own invariants. A violation here is a
// programming error, not a user-input problem.
func (f FilterSpec) Validate() error {
	if f.Limit <= 0 {
		return ErrInvalidFilterSpec
	}
	if f.MinPrice != nil && f.MaxPrice != nil && *f.MinPrice > *f.MaxPrice {
		return ErrInvalidFilterSpec
	}
	return nil
}

// IsEmpty reports whether the spec carries no constraints beyond the limit.
func (f FilterSpec) IsEmpty() bool {
	return f.MinPrice == nil && f.MaxPrice == nil &&
		len(f.Vendors) == 0 && len(f.Categories) == 0 &&
		len(f.ProductTypeKeywords) == 0 && len(f.Options) == 0 &&
		!f.InStockOnly
}
