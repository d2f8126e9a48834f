package model

import "testing"

func TestStoresByPlayer_PlayersSortedAndCount(t *testing.T) {
	s := StoresByPlayer{
		2: {NewStore(0, 0, "small")},
		0: {NewStore(1, 1, "small"), NewStore(2, 2, "large")},
		1: nil,
	}
	ids := s.Players()
	if len(ids) != 3 || ids[0] != 0 || ids[1] != 1 || ids[2] != 2 {
		t.Fatalf("players=%v", ids)
	}
	if s.Count() != 3 {
		t.Fatalf("count=%d want 3", s.Count())
	}
}

func TestStoresByPlayer_CloneIsDeep(t *testing.T) {
	s := StoresByPlayer{0: {NewStore(1, 1, "small")}, 1: nil}
	c := s.Clone()
	c[0][0] = NewStore(9, 9, "large")
	c[0] = append(c[0], NewStore(3, 3, "small"))
	if s[0][0] != NewStore(1, 1, "small") || len(s[0]) != 1 {
		t.Fatalf("clone aliased the original: %v", s[0])
	}
	if c[1] == nil {
		t.Fatalf("nil list should clone to an empty list")
	}
}
