// Package catalogs holds the read-only store-type catalog the game is configured with.
package catalogs

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"math"
	"sort"
	"strings"
)

type StoreDef struct {
	ID                     string  `json:"id"`
	CapitalCost            float64 `json:"capital_cost"`
	OperatingCost          float64 `json:"operating_cost"`
	Attractiveness         float64 `json:"attractiveness"`
	AttractivenessConstant float64 `json:"attractiveness_constant"`
}

// Reach is the largest distance at which the store still has positive attractiveness.
// It is +Inf when the constant term never cancels the decay.
func (d StoreDef) Reach() float64 {
	if d.AttractivenessConstant <= 0 {
		return math.Inf(1)
	}
	if d.Attractiveness <= 0 {
		return 0
	}
	return d.Attractiveness / d.AttractivenessConstant
}

// StoreCatalog is immutable once built; it is safe to copy and share.
type StoreCatalog struct {
	palette []string
	index   map[string]uint16
	defs    map[string]StoreDef
	digest  string
}

// NewStoreCatalog validates defs and builds a catalog. Store ids are sorted into the palette.
func NewStoreCatalog(defs []StoreDef) (StoreCatalog, error) {
	var c StoreCatalog
	if len(defs) == 0 {
		return c, fmt.Errorf("store catalog: no store types")
	}
	c.defs = make(map[string]StoreDef, len(defs))
	for _, d := range defs {
		if strings.TrimSpace(d.ID) == "" {
			return StoreCatalog{}, fmt.Errorf("store catalog: empty id")
		}
		if _, dup := c.defs[d.ID]; dup {
			return StoreCatalog{}, fmt.Errorf("store catalog: duplicate id %q", d.ID)
		}
		if err := checkDef(d); err != nil {
			return StoreCatalog{}, fmt.Errorf("store catalog: %s: %w", d.ID, err)
		}
		c.defs[d.ID] = d
	}

	ids := make([]string, 0, len(c.defs))
	for id := range c.defs {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	c.palette = ids
	c.index = make(map[string]uint16, len(ids))
	for i, id := range ids {
		c.index[id] = uint16(i)
	}

	ordered := make([]StoreDef, 0, len(ids))
	for _, id := range ids {
		ordered = append(ordered, c.defs[id])
	}
	b, _ := json.Marshal(ordered)
	c.digest = sha256Hex(b)
	return c, nil
}

func checkDef(d StoreDef) error {
	vals := map[string]float64{
		"capital_cost":            d.CapitalCost,
		"operating_cost":          d.OperatingCost,
		"attractiveness":          d.Attractiveness,
		"attractiveness_constant": d.AttractivenessConstant,
	}
	for name, v := range vals {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return fmt.Errorf("%s must be finite", name)
		}
	}
	if d.CapitalCost < 0 {
		return fmt.Errorf("capital_cost must be >= 0")
	}
	if d.OperatingCost < 0 {
		return fmt.Errorf("operating_cost must be >= 0")
	}
	if d.Attractiveness < 0 {
		return fmt.Errorf("attractiveness must be >= 0")
	}
	return nil
}

func sha256Hex(b []byte) string {
	sum := sha256.Sum256(b)
	return hex.EncodeToString(sum[:])
}

func (c StoreCatalog) Lookup(id string) (StoreDef, bool) {
	d, ok := c.defs[id]
	return d, ok
}

func (c StoreCatalog) Has(id string) bool {
	_, ok := c.defs[id]
	return ok
}

func (c StoreCatalog) Len() int { return len(c.palette) }

// Types returns the sorted store ids.
func (c StoreCatalog) Types() []string {
	out := make([]string, len(c.palette))
	copy(out, c.palette)
	return out
}

// Index returns the palette index of a store type.
func (c StoreCatalog) Index(id string) (uint16, bool) {
	i, ok := c.index[id]
	return i, ok
}

// Defs returns every definition in palette order.
func (c StoreCatalog) Defs() []StoreDef {
	out := make([]StoreDef, 0, len(c.palette))
	for _, id := range c.palette {
		out = append(out, c.defs[id])
	}
	return out
}

func (c StoreCatalog) Digest() string { return c.digest }

// LargestAffordable returns the store type with the highest capital cost that funds can pay for.
// Ties go to the higher attractiveness, then the lower id.
func (c StoreCatalog) LargestAffordable(funds float64) (StoreDef, bool) {
	var best StoreDef
	found := false
	for _, id := range c.palette {
		d := c.defs[id]
		if d.CapitalCost > funds {
			continue
		}
		if !found || d.CapitalCost > best.CapitalCost ||
			(d.CapitalCost == best.CapitalCost && d.Attractiveness > best.Attractiveness) {
			best = d
			found = true
		}
	}
	return best, found
}
