package testutil

import "math/rand"

// SplitEvery cuts data into chunks of at most n bytes.
func SplitEvery(data []byte, n int) [][]byte {
	if n <= 0 {
		n = 1
	}
	var out [][]byte
	for len(data) > n {
		out = append(out, data[:n:n])
		data = data[n:]
	}
	if len(data) > 0 {
		out = append(out, data)
	}
	return out
}

// SplitAt cuts data at the given ascending offsets. Offsets outside the data
// or not increasing are ignored.
func SplitAt(data []byte, offsets ...int) [][]byte {
	var out [][]byte
	prev := 0
	for _, off := range offsets {
		if off <= prev || off >= len(data) {
			continue
		}
		out = append(out, data[prev:off:off])
		prev = off
	}
	return append(out, data[prev:])
}

// SplitRandom cuts data at pseudo-random offsets derived from seed, so a
// failing case can be replayed.
func SplitRandom(data []byte, seed int64) [][]byte {
	rng := rand.New(rand.NewSource(seed))
	var offsets []int
	for off := 1 + rng.Intn(7); off < len(data); off += 1 + rng.Intn(7) {
		offsets = append(offsets, off)
	}
	return SplitAt(data, offsets...)
}
