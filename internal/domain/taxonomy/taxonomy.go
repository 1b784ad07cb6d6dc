// Package taxonomy holds the single product-type synonym table shared by
// intent resolution (type detection) and catalog filtering (title match).
package taxonomy

import "strings"

// synonyms maps a canonical product type to the lowercase keywords that
// identify it in titles and queries.
var synonyms = map[string][]string{
	"shirt":  {"shirt", "shirts", "blouse", "top", "tee", "t-shirt", "tshirt"},
	"pants":  {"pant", "pants", "jean", "jeans", "trouser", "trousers", "slack", "slacks", "legging", "leggings"},
	"shoes":  {"shoe", "shoes", "sneaker", "sneakers", "boot", "boots", "sandal", "sandals", "heel", "heels"},
	"dress":  {"dress", "dresses", "gown", "frock"},
	"jacket": {"jacket", "coat", "blazer", "hoodie", "cardigan", "sweater"},
}

// Types returns the canonical product types in no particular order.
func Types() []string {
	out := make([]string, 0, len(synonyms))
	for t := range synonyms {
		out = append(out, t)
	}
	return out
}

// Expand returns the synonym set for a product type. Unknown types expand
// to themselves so a free-form keyword still filters literally.
func Expand(productType string) []string {
	if kws, ok := synonyms[strings.ToLower(productType)]; ok {
		return kws
	}
	return []string{strings.ToLower(productType)}
}

// Canonical maps a free-form type term to its canonical form, if known.
func Canonical(term string) (string, bool) {
	term = strings.ToLower(term)
	if _, ok := synonyms[term]; ok {
		return term, true
	}
	for t, kws := range synonyms {
		for _, kw := range kws {
			if term == kw {
				return t, true
			}
		}
	}
	return "", false
}

// Detect returns the canonical product types whose synonyms occur in text.
// Order is deterministic by first occurrence in the text.
func Detect(text string) []string {
	lower := strings.ToLower(text)

	type hit struct {
		t   string
		pos int
	}
	var hits []hit
	for t, kws := range synonyms {
		best := -1
		for _, kw := range kws {
			if i := strings.Index(lower, kw); i >= 0 && (best < 0 || i < best) {
				best = i
			}
		}
		if best >= 0 {
			hits = append(hits, hit{t: t, pos: best})
		}
	}

	// insertion sort by position; the table has five entries
	for i := 1; i < len(hits); i++ {
		for j := i; j > 0 && hits[j].pos < hits[j-1].pos; j-- {
			hits[j], hits[j-1] = hits[j-1], hits[j]
		}
	}

	out := make([]string, len(hits))
	for i, h := range hits {
		out[i] = h.t
	}
	return out
}

// MatchesAny reports whether the title contains any synonym of any of the
// requested types. OR across types, OR within a type's synonym set.
func MatchesAny(title string, productTypes []string) bool {
	lower := strings.ToLower(title)
	for _, t := range productTypes {
		for _, kw := range Expand(t) {
			if strings.Contains(lower, kw) {
				return true
			}
		}
	}
	return false
}
