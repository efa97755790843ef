// Package lottery implements the uniform random draw used to pick entrants
// from a waitlist.
package lottery

import (
	crand "crypto/rand"
	"encoding/binary"
	"fmt"
	"math/rand/v2"
	"sync"
)

// Source is the randomness a draw consumes. IntN returns a uniform value in [0, n).
type Source interface {
	IntN(n int) int
}

type lockedSource struct {
	mu  sync.Mutex
	rng *rand.Rand
}

func (s *lockedSource) IntN(n int) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.rng.IntN(n)
}

// NewSource returns a goroutine-safe Source seeded from crypto/rand.
func NewSource() (Source, error) {
	var b [16]byte
	if _, err := crand.Read(b[:]); err != nil {
		return nil, fmt.Errorf("read random seed: %w", err)
	}
	return NewSeededSource(binary.LittleEndian.Uint64(b[:8]), binary.LittleEndian.Uint64(b[8:])), nil
}

// NewSeededSource returns a goroutine-safe deterministic Source.
func NewSeededSource(seed1, seed2 uint64) Source {
	return &lockedSource{rng: rand.New(rand.NewPCG(seed1, seed2))}
}

// Draw picks min(n, len(ids)) distinct ids uniformly without replacement and
// returns them together with the ids that were not picked. The input slice is
// not modified. A negative n selects nobody.
func Draw(src Source, ids []string, n int) (selected, rest []string) {
	pool := make([]string, len(ids))
	copy(pool, ids)

	if n < 0 {
		n = 0
	}
	if n > len(pool) {
		n = len(pool)
	}
	// Partial Fisher-Yates: position i receives a uniform pick from pool[i:].
	for i := 0; i < n; i++ {
		j := i + src.IntN(len(pool)-i)
		pool[i], pool[j] = pool[j], pool[i]
	}
	return pool[:n:n], pool[n:]
}

// Shuffle returns a uniformly permuted copy of ids.
func Shuffle(src Source, ids []string) []string {
	shuffled, _ := Draw(src, ids, len(ids))
	return shuffled
}
