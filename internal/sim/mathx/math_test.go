package mathx

import "testing"

func TestHash2_Deterministic(t *testing.T) {
	if Hash2(7, 3, -4) != Hash2(7, 3, -4) {
		t.Fatalf("hash not deterministic")
	}
	if Hash2(7, 3, -4) == Hash2(8, 3, -4) {
		t.Fatalf("seed should change hash")
	}
}

func TestUnit_Range(t *testing.T) {
	for i := 0; i < 1000; i++ {
		u := Unit(Hash2(1, i, i*7))
		if u < 0 || u >= 1 {
			t.Fatalf("unit out of range: %v", u)
		}
	}
	if Unit(^uint64(0)) >= 1 {
		t.Fatalf("max hash must stay below 1")
	}
}

func TestDistances(t *testing.T) {
	if got := Manhattan(2, 2, 5, -1); got != 6 {
		t.Fatalf("manhattan: got %d want 6", got)
	}
	if got := Euclid(0, 0, 3, 4); got != 5 {
		t.Fatalf("euclid: got %v want 5", got)
	}
	if ClampInt(12, 0, 10) != 10 || ClampInt(-1, 0, 10) != 0 || ClampInt(4, 0, 10) != 4 {
		t.Fatalf("clamp mismatch")
	}
}
