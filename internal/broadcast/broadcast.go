// Package broadcast is the zero-payload rerender bus shared by widget instances.
package broadcast

import "sync"

type subscription struct {
	fn     func()
	active bool
}

// Bus delivers broadcasts synchronously to every subscriber. A broadcast
// raised while another one is being dispatched is queued and delivered once
// the current one has reached every subscriber, so dispatches never interleave.
type Bus struct {
	mu          sync.Mutex
	subs        []*subscription
	pending     int
	dispatching bool
}

func New() *Bus {
	return &Bus{}
}

// Subscribe registers fn and returns a function that removes it. Calling the
// returned function more than once is a no-op.
func (b *Bus) Subscribe(fn func()) (unsubscribe func()) {
	sub := &subscription{fn: fn, active: true}

	b.mu.Lock()
	b.subs = append(b.subs, sub)
	b.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			b.mu.Lock()
			defer b.mu.Unlock()
			sub.active = false
			for i, s := range b.subs {
				if s == sub {
					b.subs = append(b.subs[:i:i], b.subs[i+1:]...)
					break
				}
			}
		})
	}
}

// Broadcast notifies every subscriber. When called from inside a subscriber,
// or while another goroutine is dispatching, the broadcast is queued and
// Broadcast returns without waiting for it.
func (b *Bus) Broadcast() {
	b.mu.Lock()
	b.pending++
	if b.dispatching {
		b.mu.Unlock()
		return
	}
	b.dispatching = true

	for b.pending > 0 {
		b.pending--
		subs := make([]*subscription, len(b.subs))
		copy(subs, b.subs)
		b.mu.Unlock()

		for _, s := range subs {
			if b.isActive(s) {
				s.fn()
			}
		}

		b.mu.Lock()
	}

	b.dispatching = false
	b.mu.Unlock()
}

func (b *Bus) isActive(s *subscription) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return s.active
}

func (b *Bus) Subscribers() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.subs)
}
