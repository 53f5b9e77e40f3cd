package options

import (
	"maps"
	"sync"

	"github.com/sendrec/videoconsent/internal/broadcast"
)

// Global is the process-wide option object shared by every widget instance.
// Replacing it broadcasts so live instances re-read their options.
type Global struct {
	mu     sync.RWMutex
	values map[string]any
	bus    *broadcast.Bus
}

func NewGlobal(bus *broadcast.Bus) *Global {
	return &Global{values: map[string]any{}, bus: bus}
}

func (g *Global) Get(name string) (any, bool) {
	g.mu.RLock()
	defer g.mu.RUnlock()
	v, ok := g.values[name]
	return v, ok
}

// Set replaces the whole object. The map is copied.
func (g *Global) Set(values map[string]any) {
	g.mu.Lock()
	g.values = maps.Clone(values)
	if g.values == nil {
		g.values = map[string]any{}
	}
	g.mu.Unlock()

	if g.bus != nil {
		g.bus.Broadcast()
	}
}

func (g *Global) Snapshot() map[string]any {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return maps.Clone(g.values)
}

func (g *Global) Subscribe(fn func()) func() {
	if g.bus == nil {
		return func() {}
	}
	return g.bus.Subscribe(fn)
}
