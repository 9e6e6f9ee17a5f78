package secrets

import (
	"errors"
	"sync"
	"sync/atomic"
)

// ProbeState is the cached availability of a preferred native facility
type ProbeState int32

const (
	ProbeUnprobed ProbeState = iota
	ProbeAvailable
	ProbeUnavailable
)

func (s ProbeState) String() string {
	switch s {
	case ProbeAvailable:
		return "available"
	case ProbeUnavailable:
		return "unavailable"
	default:
		return "unprobed"
	}
}

// Prober runs a canary once and caches the outcome for the life of the
// process. Unprobed moves to Available or Unavailable and never back.
type Prober struct {
	name   string
	canary func() error

	once  sync.Once
	state atomic.Int32
	err   error
}

// NewProber creates a prober whose canary is run on first use
func NewProber(name string, canary func() error) *Prober {
	return &Prober{name: name, canary: canary}
}

// Available runs the canary if needed and reports the cached decision.
// Only a platform failure marks the facility unavailable; "no entry" or an
// ambiguous match still proves the facility answers.
func (p *Prober) Available() bool {
	p.once.Do(p.run)
	return p.State() == ProbeAvailable
}

// State reports the current state without probing
func (p *Prober) State() ProbeState {
	return ProbeState(p.state.Load())
}

// Err returns the canary error once probed
func (p *Prober) Err() error {
	if p.State() == ProbeUnprobed {
		return nil
	}
	return p.err
}

func (p *Prober) run() {
	err := p.canary()
	state := ProbeAvailable
	if err != nil && errors.Is(err, ErrPlatformFailure) {
		state = ProbeUnavailable
	}
	p.err = err
	p.state.Store(int32(state))

	if state == ProbeUnavailable {
		log().Info("native facility unavailable, using fallback", "facility", p.name, "error", err)
	} else {
		log().Debug("native facility available", "facility", p.name)
	}
}
