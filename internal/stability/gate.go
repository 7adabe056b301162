// Package stability debounces noisy per-frame reads by requiring the same
// identity several frames in a row before a scan is accepted.
package stability

import (
	"sync"

	"github.com/kozaktomas/attendance-scanner/internal/constants"
)

// Verdict is the outcome of observing one identity.
type Verdict int

const (
	Pending Verdict = iota
	Accepted
)

func (v Verdict) String() string {
	if v == Accepted {
		return "accepted"
	}
	return "pending"
}

// State is a snapshot of the gate. An empty Identity with Count 0 is idle.
type State struct {
	Identity string `json:"identity"`
	Count    int    `json:"count"`
}

// Idle reports whether no identity is being accumulated.
func (s State) Idle() bool {
	return s.Identity == "" && s.Count == 0
}

// Gate accepts an identity once it has been observed threshold times in a row.
// After an acceptance the gate returns to idle, so a card left in front of the
// camera has to accumulate again before it can be accepted a second time.
type Gate struct {
	mu        sync.Mutex
	threshold int
	state     State
}

// New creates a gate. Thresholds below 1 are treated as 1; zero selects the default.
func New(threshold int) *Gate {
	if threshold == 0 {
		threshold = constants.DefaultStabilityThreshold
	}
	if threshold < 1 {
		threshold = 1
	}
	return &Gate{threshold: threshold}
}

// Threshold returns the number of consecutive reads required.
func (g *Gate) Threshold() int {
	return g.threshold
}

// Observe records one read and reports whether it completed an acceptance.
func (g *Gate) Observe(id string) Verdict {
	g.mu.Lock()
	defer g.mu.Unlock()

	if id == g.state.Identity && g.state.Count > 0 {
		g.state.Count++
	} else {
		g.state = State{Identity: id, Count: 1}
	}

	if g.state.Count >= g.threshold {
		g.state = State{}
		return Accepted
	}
	return Pending
}

// State returns the current accumulation state.
func (g *Gate) State() State {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.state
}

// Reset drops any partially accumulated identity.
func (g *Gate) Reset() {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.state = State{}
}
