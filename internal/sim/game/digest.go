package game

import (
	"crypto/sha256"
	"encoding/binary"
	"encoding/hex"
	"hash"
	"math"
)

// computeDigest hashes the settled round state in a fixed order: header, map, then each player in
// ascending id order (funds, revenue, cost, stores, allocation).
func (e *Entry) computeDigest() string {
	h := sha256.New()
	var tmp [8]byte

	digestWriteU64(h, &tmp, uint64(e.round))
	if e.m != nil {
		rows, cols := e.m.Size()
		digestWriteU64(h, &tmp, uint64(rows))
		digestWriteU64(h, &tmp, uint64(cols))
		digestWriteF64(h, &tmp, e.m.Population())
		for r := 0; r < rows; r++ {
			for c := 0; c < cols; c++ {
				digestWriteF64(h, &tmp, e.m.At(r, c))
			}
		}
	}

	for _, id := range sortedIDs(e.funds) {
		digestWriteU64(h, &tmp, uint64(id))
		digestWriteF64(h, &tmp, e.funds[id])
		digestWriteF64(h, &tmp, e.revenue[id])
		digestWriteF64(h, &tmp, e.cost[id])

		stores := e.stores[id]
		digestWriteU64(h, &tmp, uint64(len(stores)))
		for _, s := range stores {
			digestWriteU64(h, &tmp, uint64(int64(s.Pos.Row)))
			digestWriteU64(h, &tmp, uint64(int64(s.Pos.Col)))
			digestWriteU64(h, &tmp, uint64(len(s.Type)))
			h.Write([]byte(s.Type))
		}

		if f := e.allocation[id]; f != nil {
			digestWriteU64(h, &tmp, 1)
			for r := 0; r < f.Rows(); r++ {
				for c := 0; c < f.Cols(); c++ {
					digestWriteF64(h, &tmp, f.At(r, c))
				}
			}
		} else {
			digestWriteU64(h, &tmp, 0)
		}
	}
	return hex.EncodeToString(h.Sum(nil))
}

func digestWriteU64(h hash.Hash, tmp *[8]byte, v uint64) {
	binary.LittleEndian.PutUint64(tmp[:], v)
	h.Write(tmp[:])
}

func digestWriteF64(h hash.Hash, tmp *[8]byte, v float64) {
	digestWriteU64(h, tmp, math.Float64bits(v))
}
