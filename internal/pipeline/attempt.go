package pipeline

import (
	"fmt"
	"sync"
)

// State is a step of the per-file state machine.
type State string

const (
	StateStarted  State = "started"
	StateParsed   State = "parsed"
	StateChunked  State = "chunked"
	StateUpserted State = "upserted"
	StateFailed   State = "failed"
	StateLogged   State = "logged"
)

var transitions = map[State][]State{
	StateStarted:  {StateParsed, StateFailed},
	StateParsed:   {StateChunked, StateFailed},
	StateChunked:  {StateUpserted, StateFailed},
	StateUpserted: {StateLogged},
	StateFailed:   {StateLogged},
}

// Attempt tracks one file through the state machine.
type Attempt struct {
	mu      sync.Mutex
	Path    string
	state   State
	history []State
	observe func(State)
}

func newAttempt(path string, observe func(State)) *Attempt {
	return &Attempt{
		Path:    path,
		state:   StateStarted,
		history: []State{StateStarted},
		observe: observe,
	}
}

// SetState moves to next, rejecting transitions the state machine does not
// allow.
func (a *Attempt) SetState(next State) error {
	a.mu.Lock()
	cur := a.state
	ok := false
	for _, s := range transitions[cur] {
		if s == next {
			ok = true
			break
		}
	}
	if !ok {
		a.mu.Unlock()
		return fmt.Errorf("invalid transition %s -> %s", cur, next)
	}
	a.state = next
	a.history = append(a.history, next)
	observe := a.observe
	a.mu.Unlock()

	if observe != nil {
		observe(next)
	}
	return nil
}

func (a *Attempt) State() State {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.state
}

// History returns the states visited so far, in order.
func (a *Attempt) History() []State {
	a.mu.Lock()
	defer a.mu.Unlock()
	return append([]State(nil), a.history...)
}
