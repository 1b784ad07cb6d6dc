package catalog

import (
	"reflect"
	"testing"

	"github.com/shopdex-io/shopdex/internal/domain"
)

func ptr(v float64) *float64 { return &v }

func ranked(id int64, title string, price float64, qty int) domain.RankedResult {
	return domain.RankedResult{
		Record: domain.ProductRecord{
			ID: id, Title: title, Price: ptr(price), Quantity: qty,
		},
		Distance: float64(id) / 10,
		Origin:   domain.OriginVector,
	}
}

func ids(results []domain.RankedResult) []int64 {
	out := make([]int64, len(results))
	for i, r := range results {
		out[i] = r.Record.ID
	}
	return out
}

func TestApply_PriceBounds(t *testing.T) {
	e := New()
	in := []domain.RankedResult{
		ranked(1, "Cheap Shirt", 100, 5),
		ranked(2, "Mid Shirt", 500, 5),
		ranked(3, "Pricey Shirt", 900, 5),
	}

	got, partial := e.Apply(in, domain.FilterSpec{MinPrice: ptr(200), MaxPrice: ptr(600), Limit: 10})

	if partial {
		t.Error("unexpected partial flag")
	}
	if !reflect.DeepEqual(ids(got), []int64{2}) {
		t.Errorf("expected only id 2, got %v", ids(got))
	}
}

func TestApply_ZeroMaxPriceIsRealBound(t *testing.T) {
	e := New()
	in := []domain.RankedResult{
		ranked(1, "Free Sample", 0, 5),
		ranked(2, "Paid Shirt", 10, 5),
	}

	got, _ := e.Apply(in, domain.FilterSpec{MaxPrice: ptr(0), Limit: 10})

	if !reflect.DeepEqual(ids(got), []int64{1}) {
		t.Errorf("maxPrice=0 must keep only free items, got %v", ids(got))
	}
}

func TestApply_TypeFilterORAcrossTypes(t *testing.T) {
	e := New()
	in := []domain.RankedResult{
		ranked(1, "Slim Jeans", 50, 5),
		ranked(2, "Linen Blouse", 60, 5),
		ranked(3, "Desk Lamp", 70, 5),
	}

	got, partial := e.Apply(in, domain.FilterSpec{
		ProductTypeKeywords: []string{"shirt", "pants"}, Limit: 10,
	})

	if partial {
		t.Error("unexpected partial flag")
	}
	// "shirts and pants" returns both types, never their intersection.
	if !reflect.DeepEqual(ids(got), []int64{1, 2}) {
		t.Errorf("expected jeans and blouse to pass, got %v", ids(got))
	}
}

func TestApply_TypeFilterCollapseSetsPartialFlag(t *testing.T) {
	e := New()
	in := []domain.RankedResult{
		ranked(1, "Desk Lamp", 50, 5),
		ranked(2, "Wall Clock", 60, 5),
	}

	got, partial := e.Apply(in, domain.FilterSpec{
		ProductTypeKeywords: []string{"dress"}, Limit: 10,
	})

	if !partial {
		t.Fatal("expected partial flag when type filter collapses to zero")
	}
	if !reflect.DeepEqual(ids(got), []int64{1, 2}) {
		t.Errorf("pre-filter set must be returned, got %v", ids(got))
	}
}

func TestApply_PantsBelowPrice(t *testing.T) {
	// "show me pants below 1000" over a mixed set.
	e := New()
	in := []domain.RankedResult{
		ranked(1, "Slim Fit Trousers", 800, 5),
		ranked(2, "Leather Jacket", 700, 5),
		ranked(3, "Wide Leg Jeans", 1200, 5),
		ranked(4, "Yoga Leggings", 300, 5),
	}

	got, partial := e.Apply(in, domain.FilterSpec{
		MaxPrice:            ptr(1000),
		ProductTypeKeywords: []string{"pants"},
		Limit:               10,
	})

	if partial {
		t.Error("unexpected partial flag")
	}
	if !reflect.DeepEqual(ids(got), []int64{1, 4}) {
		t.Errorf("expected trousers and leggings, got %v", ids(got))
	}
}

func TestApply_OrderPreserved(t *testing.T) {
	e := New()
	in := []domain.RankedResult{
		ranked(3, "Red Shirt", 10, 5),
		ranked(1, "Blue Shirt", 20, 5),
		ranked(2, "Green Shirt", 30, 5),
	}

	got, _ := e.Apply(in, domain.FilterSpec{ProductTypeKeywords: []string{"shirt"}, Limit: 10})

	if !reflect.DeepEqual(ids(got), []int64{3, 1, 2}) {
		t.Errorf("ranked order disturbed: %v", ids(got))
	}
}

func TestApply_Idempotent(t *testing.T) {
	e := New()
	in := []domain.RankedResult{
		ranked(1, "Slim Jeans", 500, 5),
		ranked(2, "Desk Lamp", 100, 5),
	}
	spec := domain.FilterSpec{MaxPrice: ptr(600), ProductTypeKeywords: []string{"pants"}, Limit: 10}

	once, _ := e.Apply(in, spec)
	twice, _ := e.Apply(once, spec)

	if !reflect.DeepEqual(ids(once), ids(twice)) {
		t.Errorf("not idempotent: %v then %v", ids(once), ids(twice))
	}
}

func TestApply_OptionFilters(t *testing.T) {
	e := New()
	withOpts := ranked(1, "Cotton Shirt", 50, 5)
	withOpts.Record.Options = []domain.OptionFilter{
		{Name: "size", Value: "M"},
		{Name: "color", Value: "Blue"},
	}
	withoutOpts := ranked(2, "Plain Shirt", 60, 5)

	got, _ := e.Apply([]domain.RankedResult{withOpts, withoutOpts}, domain.FilterSpec{
		Options: []domain.OptionFilter{{Name: "size", Value: "m"}, {Name: "color", Value: "blue"}},
		Limit:   10,
	})

	if !reflect.DeepEqual(ids(got), []int64{1}) {
		t.Errorf("option filter wrong: %v", ids(got))
	}
}

func TestApply_InStockOnly(t *testing.T) {
	e := New()
	in := []domain.RankedResult{
		ranked(1, "Shirt A", 10, 0),
		ranked(2, "Shirt B", 10, 3),
	}

	got, _ := e.Apply(in, domain.FilterSpec{InStockOnly: true, Limit: 10})

	if !reflect.DeepEqual(ids(got), []int64{2}) {
		t.Errorf("out-of-stock item not dropped: %v", ids(got))
	}
}

func TestApply_VendorCaseInsensitive(t *testing.T) {
	e := New()
	a := ranked(1, "Shirt", 10, 5)
	a.Record.Vendor = "Acme"
	b := ranked(2, "Shirt", 10, 5)
	b.Record.Vendor = "Other"

	got, _ := e.Apply([]domain.RankedResult{a, b}, domain.FilterSpec{
		Vendors: []string{"acme"}, Limit: 10,
	})

	if !reflect.DeepEqual(ids(got), []int64{1}) {
		t.Errorf("vendor match wrong: %v", ids(got))
	}
}

func TestApply_NilPriceFailsBounds(t *testing.T) {
	e := New()
	noPrice := domain.RankedResult{Record: domain.ProductRecord{ID: 1, Title: "Mystery Box"}}

	got, _ := e.Apply([]domain.RankedResult{noPrice}, domain.FilterSpec{MaxPrice: ptr(100), Limit: 10})

	if len(got) != 0 {
		t.Errorf("unpriced record must not pass a price bound: %v", ids(got))
	}
}
