package movecache

import (
	"context"
	"sort"

	"github.com/park285/checkora/internal/board"
	"github.com/park285/checkora/internal/engine"
)

// FetchFunc produces the legal destinations for a square on a miss.
type FetchFunc func(ctx context.Context, sq board.Square) ([]engine.Destination, error)

// Cache memoizes legal destinations per origin square for the current
// position. Any board change must be followed by InvalidateAll; there is no
// per-square invalidation.
type Cache struct {
	entries map[board.Square][]engine.Destination
}

func New() *Cache {
	return &Cache{entries: make(map[board.Square][]engine.Destination)}
}

// Get returns the memoized destinations for sq or calls fetch exactly once and
// stores the result. A failed fetch is returned as is and leaves no entry.
func (c *Cache) Get(ctx context.Context, sq board.Square, fetch FetchFunc) ([]engine.Destination, bool, error) {
	if dests, ok := c.entries[sq]; ok {
		return dests, true, nil
	}
	dests, err := fetch(ctx, sq)
	if err != nil {
		return nil, false, err
	}
	if dests == nil {
		dests = []engine.Destination{}
	}
	c.entries[sq] = dests
	return dests, false, nil
}

func (c *Cache) Peek(sq board.Square) ([]engine.Destination, bool) {
	dests, ok := c.entries[sq]
	return dests, ok
}

// Put stores an entry directly; used when rehydrating a snapshot.
func (c *Cache) Put(sq board.Square, dests []engine.Destination) {
	if dests == nil {
		dests = []engine.Destination{}
	}
	c.entries[sq] = dests
}

func (c *Cache) InvalidateAll() {
	clear(c.entries)
}

func (c *Cache) Len() int { return len(c.entries) }

// Squares returns the cached origins in row-major order.
func (c *Cache) Squares() []board.Square {
	out := make([]board.Square, 0, len(c.entries))
	for sq := range c.entries {
		out = append(out, sq)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Row != out[j].Row {
			return out[i].Row < out[j].Row
		}
		return out[i].Col < out[j].Col
	})
	return out
}
