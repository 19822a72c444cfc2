package export

import (
	"fmt"
	"sync"
)

// State is where one export trigger is in its run.
type State int

const (
	StateIdle State = iota
	StateCapturing
	StateNormalizing
	StateRasterizing
	StateSlicing
	StateSaved
	StateFailed
)

var stateNames = [...]string{"idle", "capturing", "normalizing", "rasterizing", "slicing", "saved", "failed"}

func (s State) String() string {
	if int(s) < len(stateNames) {
		return stateNames[s]
	}
	return fmt.Sprintf("state(%d)", int(s))
}

// MarshalText 让状态在 JSON 中以名称出现。
func (s State) MarshalText() ([]byte, error) { return []byte(s.String()), nil }

var transitions = map[State][]State{
	StateIdle:        {StateCapturing},
	StateCapturing:   {StateNormalizing, StateSaved, StateFailed},
	StateNormalizing: {StateRasterizing, StateFailed},
	StateRasterizing: {StateSlicing, StateFailed},
	StateSlicing:     {StateSaved, StateFailed},
	StateSaved:       {StateIdle},
	StateFailed:      {StateIdle},
}

func canMove(from, to State) bool {
	for _, s := range transitions[from] {
		if s == to {
			return true
		}
	}
	return false
}

// Trigger guards one export control: only one run at a time, moving through
// the states in order.
type Trigger struct {
	mu       sync.Mutex
	state    State
	history  []State
	onChange func(from, to State)
}

// NewTrigger returns an idle trigger. onChange may be nil.
func NewTrigger(onChange func(from, to State)) *Trigger {
	return &Trigger{onChange: onChange}
}

// State returns the current state.
func (t *Trigger) State() State {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.state
}

// Busy reports whether a run is in progress.
func (t *Trigger) Busy() bool { return t.State() != StateIdle }

// History returns the states visited by the current or last run.
func (t *Trigger) History() []State {
	t.mu.Lock()
	defer t.mu.Unlock()
	return append([]State(nil), t.history...)
}

// Begin moves idle → capturing, or returns ErrBusy. The check and the move
// happen under one lock so only one concurrent caller wins.
func (t *Trigger) Begin() error {
	t.mu.Lock()
	if t.state != StateIdle {
		t.mu.Unlock()
		return ErrBusy
	}
	t.history = []State{StateIdle}
	from, cb, err := t.moveLocked(StateCapturing)
	t.mu.Unlock()
	if err != nil {
		return err
	}
	if cb != nil {
		cb(from, StateCapturing)
	}
	return nil
}

// Advance moves to next if the transition is allowed.
func (t *Trigger) Advance(next State) error {
	t.mu.Lock()
	from, cb, err := t.moveLocked(next)
	t.mu.Unlock()
	if err != nil {
		return err
	}
	if cb != nil {
		cb(from, next)
	}
	return nil
}

// moveLocked 要求调用方持有 t.mu。
func (t *Trigger) moveLocked(next State) (State, func(from, to State), error) {
	from := t.state
	if !canMove(from, next) {
		return from, nil, fmt.Errorf("export: invalid transition %s → %s", from, next)
	}
	t.state = next
	t.history = append(t.history, next)
	return from, t.onChange, nil
}

// Finish ends the run: saved on success, failed otherwise, then idle.
func (t *Trigger) Finish(err error) {
	end := StateSaved
	if err != nil {
		end = StateFailed
	}
	if t.State() != end {
		if moveErr := t.Advance(end); moveErr != nil {
			// 不合法的收尾（例如在 idle 上调用）直接回到 idle。
			t.mu.Lock()
			t.state = StateIdle
			t.mu.Unlock()
			return
		}
	}
	_ = t.Advance(StateIdle)
}
