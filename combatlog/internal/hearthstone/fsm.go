package hearthstone

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Counters summarize what the FSM did with its input.
type Counters struct {
	Lines         int `json:"lines"`
	Actions       int `json:"actions"`
	TagAttributes int `json:"tag_attributes"`
	UnknownLines  int `json:"unknown_lines"`
	Pushes        int `json:"pushes"`
	Pops          int `json:"pops"`
	BlocksOpened  int `json:"blocks_opened"`
	BlocksClosed  int `json:"blocks_closed"`
	Dropped       int `json:"dropped"`
}

// RawRecord pairs an input line with the state that was on top of the stack
// after it was processed.
type RawRecord struct {
	Time    time.Time
	Line    string
	State   ActionKind
	StateID uuid.UUID
}

// FSM reconstructs GameActions from the DebugPrintPower() stream. It keeps a
// stack of active states rooted at a permanent default state; whenever a
// group of actions is folded back into the root it is applied to the game log.
type FSM struct {
	states   []state
	game     *GameLog
	counters Counters

	captureRaw bool
	raw        []RawRecord
}

// NewFSM returns an FSM writing into game. When captureRaw is set every
// processed line is recorded alongside the state it landed in.
func NewFSM(game *GameLog, captureRaw bool) *FSM {
	root := &defaultState{baseState: newBase(ActionUnknown)}
	return &FSM{
		states:     []state{root},
		game:       game,
		captureRaw: captureRaw,
	}
}

// Depth returns the current stack depth, including the root.
func (f *FSM) Depth() int {
	return len(f.states)
}

// Counters returns a copy of the FSM counters.
func (f *FSM) Counters() Counters {
	return f.counters
}

func (f *FSM) top() state {
	return f.states[len(f.states)-1]
}

// Feed processes one tokenized power line.
func (f *FSM) Feed(tm time.Time, pl PowerLog) {
	f.counters.Lines++

	if a, ok := parseAction(pl.Body); ok {
		f.counters.Actions++
		f.handleAction(tm, a)
	} else if tag, value, ok := parseTagAttribute(pl.Body); ok {
		f.counters.TagAttributes++
		f.top().HandleTagAttribute(tag, value)
	} else {
		f.counters.UnknownLines++
	}

	if f.captureRaw {
		top := f.top()
		f.raw = append(f.raw, RawRecord{Time: tm, Line: pl.Body, State: top.Kind(), StateID: top.ID()})
	}
}

func (f *FSM) handleAction(tm time.Time, a powerAction) {
	if a.kind == ActionBlockEnd {
		if !f.top().CanReceive(ActionBlockEnd) && len(f.states) > 1 {
			// An empty block refuses its own end and is closed by this pop.
			if _, isBlock := f.pop().(*blockState); isBlock {
				return
			}
		}
		if len(f.states) > 1 {
			f.pop()
		}
		return
	}

	if !f.top().CanReceive(a.kind) && len(f.states) > 1 {
		f.pop()
	}
	f.push(newState(tm, a))
}

func (f *FSM) push(s state) {
	parent := f.top()
	parent.OnLeaveToChild()
	s.OnEnterFromParent(parent)
	f.states = append(f.states, s)

	f.counters.Pushes++
	if _, ok := s.(*blockState); ok {
		f.counters.BlocksOpened++
	}
}

func (f *FSM) pop() state {
	child := f.top()
	f.states = f.states[:len(f.states)-1]
	child.OnLeaveToParent()
	f.top().OnEnterFromChild(child)
	if len(f.states) == 1 {
		if actions := child.Actions(); len(actions) > 0 {
			f.game.Advance(actions)
		}
	}

	f.counters.Pops++
	switch s := child.(type) {
	case *blockState:
		f.counters.BlocksClosed++
	case *entityState:
		if !s.valid {
			f.counters.Dropped++
		}
	}
	return child
}

// Finalize drains the stack so every pending action reaches the game log.
func (f *FSM) Finalize() {
	for len(f.states) > 1 {
		f.pop()
	}
}

// RawLogs renders the captured lines as tab separated records.
func (f *FSM) RawLogs() string {
	var b strings.Builder
	for i, r := range f.raw {
		if i > 0 {
			b.WriteByte('\n')
		}
		fmt.Fprintf(&b, "%s\t%s\t%s\t%s", r.Time.Format(time.RFC3339Nano), r.Line, r.State, r.StateID)
	}
	return b.String()
}
