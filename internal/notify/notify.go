// Package notify announces frequency transitions to interested listeners,
// e.g. monitoring or a time-keeping source that rescales on clock changes.
package notify

import (
	"sync"

	"github.com/corefreq/cpu-freq-manager/internal/freqtable"
)

// Phase brackets a transition: Pre fires before the hardware switch, Post
// fires only after a successful switch.
type Phase int

const (
	PhasePre Phase = iota
	PhasePost
)

func (p Phase) String() string {
	if p == PhasePre {
		return "pre"
	}
	return "post"
}

// Transition is the ephemeral record handed to listeners. It is not
// persisted anywhere.
type Transition struct {
	Core    uint
	OldFreq freqtable.Frequency
	NewFreq freqtable.Frequency
}

// Listener observes transitions. Listeners run synchronously on the
// transition path and must not block.
type Listener func(t Transition, phase Phase)

// Registry fans transitions out to registered listeners.
type Registry struct {
	mu        sync.RWMutex
	listeners []Listener
}

func NewRegistry() *Registry {
	return &Registry{}
}

// Register adds a listener. Registration order is notification order.
func (r *Registry) Register(l Listener) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.listeners = append(r.listeners, l)
}

// Notify delivers t to every registered listener.
func (r *Registry) Notify(t Transition, phase Phase) {
	r.mu.RLock()
	listeners := r.listeners
	r.mu.RUnlock()

	for _, l := range listeners {
		l(t, phase)
	}
}
