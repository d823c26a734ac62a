// Package conversation holds the per-user conversation pipeline primitives:
// inbound deduplication, per-user serialization, history windowing and
// trimming, response fragmentation and paced delivery.
package conversation

import "sync"

// Guard tracks inbound message ids that are currently being handled so a
// redelivered message is not processed twice concurrently. It is process-local.
type Guard struct {
	mu       sync.Mutex
	inFlight map[string]struct{}
}

func NewGuard() *Guard {
	return &Guard{inFlight: make(map[string]struct{})}
}

// Admit records id as in flight. It returns false if id is already in flight,
// in which case the caller must drop the message.
func (g *Guard) Admit(id string) bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	if _, ok := g.inFlight[id]; ok {
		return false
	}
	g.inFlight[id] = struct{}{}
	return true
}

// Release removes id. Releasing an id that is not in flight is a no-op.
func (g *Guard) Release(id string) {
	g.mu.Lock()
	delete(g.inFlight, id)
	g.mu.Unlock()
}

// InFlight reports how many ids are currently admitted.
func (g *Guard) InFlight() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return len(g.inFlight)
}
