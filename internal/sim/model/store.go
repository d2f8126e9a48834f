// Package model holds the plain value types shared by the engine, the allocation policies and the players.
package model

import (
	"fmt"
	"sort"
)

type PlayerID int

// Pos is a grid position, row first.
type Pos struct {
	Row int `json:"row"`
	Col int `json:"col"`
}

func (p Pos) String() string { return fmt.Sprintf("(%d,%d)", p.Row, p.Col) }

// Store is a placed store. Accepted stores are never mutated.
type Store struct {
	Pos  Pos    `json:"pos"`
	Type string `json:"type"`
}

func NewStore(row, col int, storeType string) Store {
	return Store{Pos: Pos{Row: row, Col: col}, Type: storeType}
}

// StoresByPlayer is every player's cumulative store list.
type StoresByPlayer map[PlayerID][]Store

// Players returns the player ids in ascending order.
func (s StoresByPlayer) Players() []PlayerID {
	ids := make([]PlayerID, 0, len(s))
	for id := range s {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}

// Clone returns a deep copy; nil lists become empty lists.
func (s StoresByPlayer) Clone() StoresByPlayer {
	out := make(StoresByPlayer, len(s))
	for id, list := range s {
		cp := make([]Store, len(list))
		copy(cp, list)
		out[id] = cp
	}
	return out
}

// Count returns the total number of stores across players.
func (s StoresByPlayer) Count() int {
	n := 0
	for _, list := range s {
		n += len(list)
	}
	return n
}
