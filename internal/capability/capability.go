// Package capability provides process-wide lazy feature detection.
//
// A Probe answers "is this optional capability usable" with a cached
// ternary result: the probe function runs at most once for the lifetime
// of the process, concurrent first callers are deduplicated, and the
// outcome is never re-attempted.
package capability

import (
	"sync/atomic"

	"golang.org/x/sync/singleflight"
)

// State is the ternary availability of a capability.
type State int32

const (
	// Unknown means the probe has not run yet.
	Unknown State = iota
	// Unavailable means the probe ran and failed.
	Unavailable
	// Available means the probe ran and succeeded.
	Available
)

// String returns a human-readable representation of the state.
func (s State) String() string {
	switch s {
	case Unavailable:
		return "unavailable"
	case Available:
		return "available"
	default:
		return "unknown"
	}
}

// Probe is a one-shot availability check. The zero value is ready to use.
//
// Probe is safe for concurrent use.
type Probe struct {
	state atomic.Int32
	group singleflight.Group
}

// Ensure runs the probe function if no result is cached yet and returns
// the cached state. Concurrent first callers share a single probe run.
// A failed probe is cached as Unavailable and never retried.
func (p *Probe) Ensure(probe func() error) State {
	if s := State(p.state.Load()); s != Unknown {
		return s
	}

	v, _, _ := p.group.Do("probe", func() (interface{}, error) {
		// Double-check: a previous flight may have finished between the
		// fast-path load and joining this one.
		if s := State(p.state.Load()); s != Unknown {
			return s, nil
		}
		s := Available
		if err := probe(); err != nil {
			s = Unavailable
		}
		p.state.Store(int32(s))
		return s, nil
	})
	return v.(State)
}

// State returns the cached state without running the probe.
func (p *Probe) State() State {
	return State(p.state.Load())
}
