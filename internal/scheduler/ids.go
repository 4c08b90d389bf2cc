package scheduler

import (
	"strconv"
	"sync"

	"github.com/google/uuid"
)

// IDGenerator generates drain identifiers for log and trace correlation.
// Implemented by UUIDv7Generator (production) and FixedGenerator (tests).
type IDGenerator interface {
	Generate() string
}

// UUIDv7Generator generates time-sortable UUIDv7 drain ids.
//
// UUIDv7 embeds a timestamp in the most significant bits, so drains sort by
// start time in logs and trace backends.
//
// Thread-safety: UUIDv7Generator is stateless and safe for concurrent use.
type UUIDv7Generator struct{}

// Generate creates a new UUIDv7 and returns it as a hyphenated string.
//
// Panics if UUID generation fails (should never happen in practice).
func (g UUIDv7Generator) Generate() string {
	return uuid.Must(uuid.NewV7()).String()
}

// FixedGenerator returns predetermined drain ids for testing.
//
// Golden traces embed drain ids, so tests need them to be stable.
//
// Thread-safety: FixedGenerator is safe for concurrent use via internal mutex.
type FixedGenerator struct {
	mu    sync.Mutex
	ids   []string
	idx   int
	cycle bool
}

// NewFixedGenerator creates a generator that returns ids in order and panics
// once they are exhausted.
//
// Example:
//
//	gen := NewFixedGenerator("drain-1", "drain-2")
//	gen.Generate() // "drain-1"
//	gen.Generate() // "drain-2"
//	gen.Generate() // panic: all ids exhausted
func NewFixedGenerator(ids ...string) *FixedGenerator {
	return &FixedGenerator{ids: ids}
}

// NewSequenceGenerator creates a generator that yields prefix-1, prefix-2, ...
// without limit.
func NewSequenceGenerator(prefix string) *FixedGenerator {
	return &FixedGenerator{ids: []string{prefix}, cycle: true}
}

// Generate returns the next predetermined id.
func (g *FixedGenerator) Generate() string {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.cycle {
		g.idx++
		return g.ids[0] + "-" + strconv.Itoa(g.idx)
	}
	if g.idx >= len(g.ids) {
		panic("FixedGenerator: all ids exhausted")
	}
	id := g.ids[g.idx]
	g.idx++
	return id
}
