package hearthstone

import (
	"maps"
	"strconv"
	"time"

	"github.com/google/uuid"
)

// state is a node on the FSM stack. Entering a child calls OnLeaveToChild on
// the parent and OnEnterFromParent on the child; leaving a child calls
// OnLeaveToParent on the child and OnEnterFromChild on the parent.
type state interface {
	ID() uuid.UUID
	Kind() ActionKind
	Actions() []GameAction

	OnEnterFromParent(parent state)
	OnEnterFromChild(child state)
	OnLeaveToChild()
	OnLeaveToParent()

	HandleTagAttribute(tag, value string)
	// CanReceive reports whether the next action nests under this state.
	// Returning false ends this state before the action is applied.
	CanReceive(next ActionKind) bool
}

// baseState provides leaf behavior: no actions, no children.
type baseState struct {
	id   uuid.UUID
	kind ActionKind
}

func newBase(kind ActionKind) baseState {
	return baseState{id: uuid.New(), kind: kind}
}

func (s *baseState) ID() uuid.UUID { return s.id }
func (s *baseState) Kind() ActionKind { return s.kind }
func (s *baseState) Actions() []GameAction { return nil }
func (s *baseState) OnEnterFromParent(state) {}
func (s *baseState) OnEnterFromChild(state) {}
func (s *baseState) OnLeaveToChild() {}
func (s *baseState) OnLeaveToParent() {}
func (s *baseState) HandleTagAttribute(_, _ string) {}
func (s *baseState) CanReceive(ActionKind) bool { return false }

// defaultState is the permanent root. The FSM applies every action group
// folded into it to the game log.
type defaultState struct {
	baseState
}

func (s *defaultState) CanReceive(ActionKind) bool { return true }

// blockState collects the actions of its children. It refuses BLOCK_END
// until it has received at least one child, which makes an empty block close
// with a single pop.
type blockState struct {
	baseState
	blockType  string
	attrs      map[string]string
	actions    []GameAction
	hasActions bool
}

func (s *blockState) OnEnterFromParent(state) {
	s.blockType = s.attrs["BlockType"]
}

func (s *blockState) OnEnterFromChild(child state) {
	for _, a := range child.Actions() {
		if a.BlockID == "" {
			a.BlockID = s.id.String()
			a.BlockType = s.blockType
		}
		s.actions = append(s.actions, a)
	}
	s.hasActions = true
}

func (s *blockState) Actions() []GameAction { return s.actions }

func (s *blockState) CanReceive(next ActionKind) bool {
	if next == ActionBlockEnd {
		return s.hasActions
	}
	return true
}

// entityState covers the leaf actions that create or modify one entity.
type entityState struct {
	baseState
	tm         time.Time
	ref        EntityRef
	valid      bool
	tags       map[string]string
	attrs      map[string]string
	acceptTags bool
}

func newEntityState(tm time.Time, a powerAction) *entityState {
	s := &entityState{
		baseState: newBase(a.kind),
		tm:        tm,
		tags:      make(map[string]string),
		attrs:     maps.Clone(a.attrs),
	}

	switch a.kind {
	case ActionCreateGameEntity:
		id, err := strconv.Atoi(s.attrs["EntityID"])
		s.ref, s.valid = EntityRef{Kind: RefNewGameEntity, EntityID: id}, err == nil
		s.acceptTags = true
	case ActionCreatePlayerEntity:
		id, err1 := strconv.Atoi(s.attrs["EntityID"])
		pid, err2 := strconv.Atoi(s.attrs["PlayerID"])
		s.ref = EntityRef{Kind: RefNewPlayer, EntityID: id, PlayerID: pid}
		s.valid = err1 == nil && err2 == nil
		s.acceptTags = true
	case ActionFullEntity:
		id, err := strconv.Atoi(s.attrs["ID"])
		s.ref, s.valid = EntityRef{Kind: RefNew, EntityID: id}, err == nil
		s.acceptTags = true
	case ActionShowEntity:
		name, ok := s.attrs["Entity"]
		s.ref, s.valid = EntityRef{Kind: RefExisting, Name: name}, ok
		s.acceptTags = true
	case ActionTagChange:
		name, ok := s.attrs["Entity"]
		s.ref, s.valid = EntityRef{Kind: RefExisting, Name: name}, ok
		// The tag pair shares the action's line, so it was scanned as attributes.
		tag, hasTag := s.attrs["tag"]
		value, hasValue := s.attrs["value"]
		if hasTag && hasValue {
			s.tags[tag] = value
		}
		delete(s.attrs, "tag")
		delete(s.attrs, "value")
	}
	return s
}

func (s *entityState) HandleTagAttribute(tag, value string) {
	if s.acceptTags {
		s.tags[tag] = value
	}
}

func (s *entityState) Actions() []GameAction {
	if !s.valid {
		return nil
	}
	return []GameAction{{
		Time:   s.tm,
		Type:   s.kind,
		Entity: s.ref,
		Tags:   s.tags,
		Attrs:  s.attrs,
	}}
}

func newState(tm time.Time, a powerAction) state {
	switch a.kind {
	case ActionBlockStart:
		return &blockState{baseState: newBase(a.kind), attrs: a.attrs}
	case ActionCreateGameEntity, ActionCreatePlayerEntity, ActionFullEntity, ActionShowEntity, ActionTagChange:
		return newEntityState(tm, a)
	}
	// CREATE_GAME and the remaining keywords carry no entity changes.
	s := newBase(a.kind)
	return &s
}
