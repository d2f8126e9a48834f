package game

import (
	"sync"

	"sitelocation.ai/internal/sim/allocation"
	"sitelocation.ai/internal/sim/gridmap"
	"sitelocation.ai/internal/sim/model"
)

// Entry is the settled state after one round; entry 0 is the seed state before any round.
// Entries are immutable: accessors hand out copies of anything mutable.
type Entry struct {
	round      int
	m          *gridmap.Map
	stores     model.StoresByPlayer
	placed     map[model.PlayerID][]model.Store
	allocation allocation.Allocation
	funds      map[model.PlayerID]float64
	revenue    map[model.PlayerID]float64
	cost       map[model.PlayerID]float64
	turns      map[model.PlayerID]TurnReport
	digest     string
}

// EntryData is the plain, exported form of an Entry used for persistence.
type EntryData struct {
	Round      int
	Map        *gridmap.Map
	Stores     model.StoresByPlayer
	Placed     map[model.PlayerID][]model.Store
	Allocation allocation.Allocation
	Funds      map[model.PlayerID]float64
	Revenue    map[model.PlayerID]float64
	Cost       map[model.PlayerID]float64
	Turns      map[model.PlayerID]TurnReport
	Digest     string
}

// RestoreEntry builds an entry from recorded data. Everything is deep-copied and the digest is
// recomputed; the recorded digest is kept only for comparison by Verify.
func RestoreEntry(d EntryData) *Entry {
	e := &Entry{
		round:      d.Round,
		m:          d.Map,
		stores:     d.Stores.Clone(),
		placed:     cloneStoreLists(d.Placed),
		allocation: d.Allocation.Clone(),
		funds:      cloneFloats(d.Funds),
		revenue:    cloneFloats(d.Revenue),
		cost:       cloneFloats(d.Cost),
		turns:      cloneTurns(d.Turns),
	}
	if e.m != nil {
		e.m = e.m.Clone()
	}
	e.digest = d.Digest
	if e.digest == "" {
		e.digest = e.computeDigest()
	}
	return e
}

// Export returns a deep copy of the entry's data.
func (e *Entry) Export() EntryData {
	return EntryData{
		Round:      e.round,
		Map:        e.m.Clone(),
		Stores:     e.stores.Clone(),
		Placed:     cloneStoreLists(e.placed),
		Allocation: e.allocation.Clone(),
		Funds:      cloneFloats(e.funds),
		Revenue:    cloneFloats(e.revenue),
		Cost:       cloneFloats(e.cost),
		Turns:      cloneTurns(e.turns),
		Digest:     e.digest,
	}
}

func (e *Entry) Round() int { return e.round }

// Map returns the round's map snapshot. Maps are immutable, so the pointer is safe to share.
func (e *Entry) Map() *gridmap.Map { return e.m }

func (e *Entry) Players() []model.PlayerID { return sortedIDs(e.funds) }

func (e *Entry) Stores() model.StoresByPlayer { return e.stores.Clone() }

func (e *Entry) StoresOf(id model.PlayerID) []model.Store {
	out := make([]model.Store, len(e.stores[id]))
	copy(out, e.stores[id])
	return out
}

// Placed returns the stores a player built this round.
func (e *Entry) Placed(id model.PlayerID) []model.Store {
	out := make([]model.Store, len(e.placed[id]))
	copy(out, e.placed[id])
	return out
}

// Allocation returns a copy of a player's allocation field, or nil for unknown players.
func (e *Entry) Allocation(id model.PlayerID) *gridmap.Field {
	f := e.allocation[id]
	if f == nil {
		return nil
	}
	return f.Clone()
}

func (e *Entry) Funds(id model.PlayerID) float64   { return e.funds[id] }
func (e *Entry) Revenue(id model.PlayerID) float64 { return e.revenue[id] }
func (e *Entry) Cost(id model.PlayerID) float64    { return e.cost[id] }

func (e *Entry) FundsByPlayer() map[model.PlayerID]float64 { return cloneFloats(e.funds) }

func (e *Entry) Turn(id model.PlayerID) (TurnReport, bool) {
	r, ok := e.turns[id]
	return r, ok
}

// Share is the fraction of the map's population allocated to a player this round.
func (e *Entry) Share(id model.PlayerID) float64 {
	return allocation.Share(e.m, e.allocation[id])
}

func (e *Entry) Digest() string { return e.digest }

// History is the append-only round log. Only the owning Game appends to it.
type History struct {
	mu      sync.RWMutex
	entries []*Entry
}

func (h *History) Len() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.entries)
}

func (h *History) Entry(i int) (*Entry, bool) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	if i < 0 || i >= len(h.entries) {
		return nil, false
	}
	return h.entries[i], true
}

// Latest returns the most recent entry; nil only for an empty history.
func (h *History) Latest() *Entry {
	h.mu.RLock()
	defer h.mu.RUnlock()
	if len(h.entries) == 0 {
		return nil
	}
	return h.entries[len(h.entries)-1]
}

// Entries returns the entries in round order. The slice is a copy; entries are shared and immutable.
func (h *History) Entries() []*Entry {
	h.mu.RLock()
	defer h.mu.RUnlock()
	out := make([]*Entry, len(h.entries))
	copy(out, h.entries)
	return out
}

func (h *History) append(e *Entry) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.entries = append(h.entries, e)
}

func cloneFloats(m map[model.PlayerID]float64) map[model.PlayerID]float64 {
	out := make(map[model.PlayerID]float64, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}

func cloneTurns(m map[model.PlayerID]TurnReport) map[model.PlayerID]TurnReport {
	out := make(map[model.PlayerID]TurnReport, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}

func cloneStoreLists(m map[model.PlayerID][]model.Store) map[model.PlayerID][]model.Store {
	out := make(map[model.PlayerID][]model.Store, len(m))
	for k, v := range m {
		cp := make([]model.Store, len(v))
		copy(cp, v)
		out[k] = cp
	}
	return out
}
