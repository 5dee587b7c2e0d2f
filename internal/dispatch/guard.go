package dispatch

import "sync"

// suspendGuard gates all frequency changes for one core. The suspended flag
// is read and written only while mu is held; the dispatch path holds mu
// across the check and the decision to proceed so no suspend transition can
// slip in between.
type suspendGuard struct {
	mu        sync.Mutex
	suspended bool
}

func (g *suspendGuard) setSuspended(suspended bool) {
	g.mu.Lock()
	g.suspended = suspended
	g.mu.Unlock()
}

func (g *suspendGuard) isSuspended() bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.suspended
}
