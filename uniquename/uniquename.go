// Package uniquename generates process-wide unique module names.
package uniquename

import (
	"crypto/rand"
	"errors"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"
)

// Prefix starts every generated name.
const Prefix = "_remote_module_"

// Generator hands out strictly increasing ULID-based names. The millisecond
// clock never moves backwards, so values are unique even across clock steps.
type Generator struct {
	mu      sync.Mutex
	entropy *ulid.MonotonicEntropy
	lastMs  uint64
	now     func() time.Time
}

func NewGenerator() *Generator {
	return &Generator{
		entropy: ulid.Monotonic(rand.Reader, 0),
		now:     time.Now,
	}
}

// Next returns a fresh name.
func (g *Generator) Next() string {
	g.mu.Lock()
	defer g.mu.Unlock()

	ms := ulid.Timestamp(g.now())
	if ms < g.lastMs {
		ms = g.lastMs
	}
	for {
		id, err := ulid.New(ms, g.entropy)
		if err == nil {
			g.lastMs = ms
			return Prefix + id.String()
		}
		if !errors.Is(err, ulid.ErrMonotonicOverflow) {
			panic("uniquename: " + err.Error())
		}
		// entropy for this millisecond is exhausted
		ms++
	}
}

var std = NewGenerator()

// Next returns a fresh name from the process-wide generator.
func Next() string {
	return std.Next()
}
