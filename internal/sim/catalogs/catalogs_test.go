package catalogs

import (
	"math"
	"testing"
)

func defaultDefs() []StoreDef {
	return []StoreDef{
		{ID: "small", CapitalCost: 10000, OperatingCost: 1000, Attractiveness: 25, AttractivenessConstant: 1},
		{ID: "medium", CapitalCost: 50000, OperatingCost: 2000, Attractiveness: 50, AttractivenessConstant: 1},
		{ID: "large", CapitalCost: 100000, OperatingCost: 3000, Attractiveness: 100, AttractivenessConstant: 1},
	}
}

func TestNewStoreCatalog_PaletteSortedAndDigestStable(t *testing.T) {
	c1, err := NewStoreCatalog(defaultDefs())
	if err != nil {
		t.Fatalf("NewStoreCatalog: %v", err)
	}
	defs := defaultDefs()
	defs[0], defs[2] = defs[2], defs[0]
	c2, err := NewStoreCatalog(defs)
	if err != nil {
		t.Fatalf("NewStoreCatalog: %v", err)
	}
	want := []string{"large", "medium", "small"}
	got := c1.Types()
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("palette: got %v want %v", got, want)
		}
	}
	if c1.Digest() != c2.Digest() {
		t.Fatalf("digest depends on input order")
	}
	if i, ok := c1.Index("small"); !ok || i != 2 {
		t.Fatalf("index(small): got %d,%v", i, ok)
	}
}

func TestNewStoreCatalog_Rejects(t *testing.T) {
	cases := map[string][]StoreDef{
		"empty":         nil,
		"empty id":      {{ID: " ", CapitalCost: 1}},
		"duplicate":     {{ID: "a"}, {ID: "a"}},
		"negative cost": {{ID: "a", CapitalCost: -1}},
		"negative op":   {{ID: "a", OperatingCost: -1}},
		"nan":           {{ID: "a", Attractiveness: math.NaN()}},
	}
	for name, defs := range cases {
		if _, err := NewStoreCatalog(defs); err == nil {
			t.Fatalf("%s: expected error", name)
		}
	}
}

func TestTypesReturnsCopy(t *testing.T) {
	c, _ := NewStoreCatalog(defaultDefs())
	ts := c.Types()
	ts[0] = "mutated"
	if c.Has("mutated") || c.Types()[0] != "large" {
		t.Fatalf("Types must return a copy")
	}
}

func TestLargestAffordable(t *testing.T) {
	c, _ := NewStoreCatalog(defaultDefs())
	cases := []struct {
		funds float64
		want  string
		ok    bool
	}{
		{5000, "", false},
		{10000, "small", true},
		{70000, "medium", true},
		{1e6, "large", true},
	}
	for _, tc := range cases {
		d, ok := c.LargestAffordable(tc.funds)
		if ok != tc.ok || d.ID != tc.want {
			t.Fatalf("funds=%v: got %q,%v want %q,%v", tc.funds, d.ID, ok, tc.want, tc.ok)
		}
	}
}

func TestReach(t *testing.T) {
	d := StoreDef{ID: "s", Attractiveness: 5, AttractivenessConstant: 1}
	if d.Reach() != 5 {
		t.Fatalf("reach: got %v want 5", d.Reach())
	}
	if !math.IsInf(StoreDef{Attractiveness: 5}.Reach(), 1) {
		t.Fatalf("zero constant should never cut off")
	}
}
