package taxonomy

import (
	"testing"
)

func TestExpand_KnownType(t *testing.T) {
	kws := Expand("pants")
	want := map[string]bool{"jean": true, "trouser": true, "legging": true}
	found := 0
	for _, kw := range kws {
		if want[kw] {
			found++
		}
	}
	if found != len(want) {
		t.Errorf("pants synonyms missing entries, got %v", kws)
	}
}

func TestExpand_UnknownTypeFallsBackToLiteral(t *testing.T) {
	kws := Expand("Scarf")
	if len(kws) != 1 || kws[0] != "scarf" {
		t.Errorf("expected literal lowercase fallback, got %v", kws)
	}
}

func TestCanonical(t *testing.T) {
	tests := []struct {
		term string
		want string
		ok   bool
	}{
		{"jeans", "pants", true},
		{"Shirts", "shirt", true},
		{"sneaker", "shoes", true},
		{"hoodie", "jacket", true},
		{"table", "", false},
	}
	for _, tt := range tests {
		got, ok := Canonical(tt.term)
		if got != tt.want || ok != tt.ok {
			t.Errorf("Canonical(%q) = (%q, %v), want (%q, %v)", tt.term, got, ok, tt.want, tt.ok)
		}
	}
}

func TestDetect_OrderByOccurrence(t *testing.T) {
	got := Detect("show me shirts and pants under 100")
	if len(got) != 2 || got[0] != "shirt" || got[1] != "pants" {
		t.Errorf("Detect = %v, want [shirt pants]", got)
	}
}

func TestDetect_NoMatch(t *testing.T) {
	if got := Detect("anything below 500?"); len(got) != 0 {
		t.Errorf("expected no types, got %v", got)
	}
}

func TestMatchesAny_ORAcrossTypes(t *testing.T) {
	if !MatchesAny("Slim Fit Jeans", []string{"shirt", "pants"}) {
		t.Error("jeans title should match pants synonyms")
	}
	if !MatchesAny("Cotton Tee", []string{"shirt", "pants"}) {
		t.Error("tee title should match shirt synonyms")
	}
	if MatchesAny("Leather Belt", []string{"shirt", "pants"}) {
		t.Error("belt title should match neither type")
	}
}
