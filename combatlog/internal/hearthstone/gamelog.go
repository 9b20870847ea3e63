package hearthstone

import (
	"log/slog"
	"maps"
	"regexp"
	"strconv"
	"strings"
	"time"
)

// RefKind says how a GameAction identifies its entity.
type RefKind string

const (
	RefGameEntity    RefKind = "game_entity"
	RefNewGameEntity RefKind = "new_game_entity"
	RefPlayer        RefKind = "player"
	RefNewPlayer     RefKind = "new_player"
	RefNew           RefKind = "new"
	RefExisting      RefKind = "existing"
)

// UnknownHumanPlayer is the placeholder name used before the opponent's
// name is revealed.
const UnknownHumanPlayer = "UNKNOWN HUMAN PLAYER"

// EntityRef identifies the entity an action applies to.
type EntityRef struct {
	Kind     RefKind `json:"kind"`
	EntityID int     `json:"entity_id,omitempty"`
	PlayerID int     `json:"player_id,omitempty"`
	Name     string  `json:"name,omitempty"`
}

func (r EntityRef) String() string {
	switch r.Kind {
	case RefGameEntity:
		return "GameEntity"
	case RefPlayer, RefExisting:
		return string(r.Kind) + " " + r.Name
	case RefNewPlayer:
		return "new_player E:" + strconv.Itoa(r.EntityID) + " P:" + strconv.Itoa(r.PlayerID)
	}
	return string(r.Kind) + " " + strconv.Itoa(r.EntityID)
}

// GameAction is one logical change to the game state.
type GameAction struct {
	Time      time.Time         `json:"time"`
	Type      ActionKind        `json:"type"`
	Entity    EntityRef         `json:"entity"`
	BlockID   string            `json:"block_id,omitempty"`
	BlockType string            `json:"block_type,omitempty"`
	Tags      map[string]string `json:"tags"`
	Attrs     map[string]string `json:"attributes"`
}

// Entity is the accumulated tags and attributes of a game entity.
type Entity struct {
	ID    int               `json:"id"`
	Tags  map[string]string `json:"tags"`
	Attrs map[string]string `json:"attributes"`
}

func newEntity(id int) *Entity {
	return &Entity{ID: id, Tags: make(map[string]string), Attrs: make(map[string]string)}
}

// Snapshot is the full entity state at a point in the match.
type Snapshot struct {
	Time           time.Time       `json:"time"`
	Turn           int             `json:"turn"`
	GameEntityID   int             `json:"game_entity_id"`
	PlayerNameToID map[string]int  `json:"player_name_to_id"`
	PlayerEntities map[int]int     `json:"player_entities"`
	Entities       map[int]*Entity `json:"entities"`
}

func newSnapshot() *Snapshot {
	return &Snapshot{
		PlayerNameToID: make(map[string]int),
		PlayerEntities: make(map[int]int),
		Entities:       make(map[int]*Entity),
	}
}

// Clone returns a deep copy.
func (s *Snapshot) Clone() *Snapshot {
	c := &Snapshot{
		Time:           s.Time,
		Turn:           s.Turn,
		GameEntityID:   s.GameEntityID,
		PlayerNameToID: maps.Clone(s.PlayerNameToID),
		PlayerEntities: maps.Clone(s.PlayerEntities),
		Entities:       make(map[int]*Entity, len(s.Entities)),
	}
	for id, e := range s.Entities {
		c.Entities[id] = &Entity{ID: e.ID, Tags: maps.Clone(e.Tags), Attrs: maps.Clone(e.Attrs)}
	}
	return c
}

// GameEntity returns the entity holding game-wide tags.
func (s *Snapshot) GameEntity() (*Entity, bool) {
	e, ok := s.Entities[s.GameEntityID]
	return e, ok
}

// CurrentTurn returns the game entity's TURN tag, or -1 when unknown.
func (s *Snapshot) CurrentTurn() int {
	e, ok := s.GameEntity()
	if !ok {
		return -1
	}
	v, ok := e.Tags["TURN"]
	if !ok {
		return -1
	}
	turn, err := strconv.Atoi(v)
	if err != nil {
		return -1
	}
	return turn
}

func (s *Snapshot) create(id int) *Entity {
	e := newEntity(id)
	s.Entities[id] = e
	return e
}

func (s *Snapshot) player(name string) (*Entity, bool) {
	pid, ok := s.PlayerNameToID[name]
	if !ok {
		pid, ok = s.PlayerNameToID[UnknownHumanPlayer]
	}
	if !ok {
		return nil, false
	}
	eid, ok := s.PlayerEntities[pid]
	if !ok {
		return nil, false
	}
	e, ok := s.Entities[eid]
	return e, ok
}

var bracketIDRE = regexp.MustCompile(`[\[\s]id=(\d+)`)

// resolve maps the textual entity forms found in the log to an entity:
// "GameEntity", a bare numeric id, an "[... id=N ...]" descriptor, or a
// player name (BattleTag or the unknown-player placeholder).
func (s *Snapshot) resolve(id string) (*Entity, bool) {
	switch {
	case id == "GameEntity":
		return s.GameEntity()
	case isNumeric(id):
		n, err := strconv.Atoi(id)
		if err != nil {
			return nil, false
		}
		e, ok := s.Entities[n]
		return e, ok
	case strings.Contains(id, "[") && strings.Contains(id, "]"):
		m := bracketIDRE.FindStringSubmatch(id)
		if m == nil {
			return nil, false
		}
		n, _ := strconv.Atoi(m[1])
		e, ok := s.Entities[n]
		return e, ok
	}
	if _, known := s.PlayerNameToID[id]; known || id == UnknownHumanPlayer || strings.Contains(id, "#") {
		return s.player(id)
	}
	return nil, false
}

func isNumeric(s string) bool {
	if s == "" {
		return false
	}
	for _, c := range s {
		if c < '0' || c > '9' {
			return false
		}
	}
	return true
}

func (s *Snapshot) apply(a GameAction) bool {
	var e *Entity
	ok := true
	switch a.Entity.Kind {
	case RefGameEntity:
		e, ok = s.GameEntity()
	case RefNewGameEntity:
		s.GameEntityID = a.Entity.EntityID
		e = s.create(a.Entity.EntityID)
	case RefPlayer:
		e, ok = s.player(a.Entity.Name)
	case RefNewPlayer:
		s.PlayerEntities[a.Entity.PlayerID] = a.Entity.EntityID
		e = s.create(a.Entity.EntityID)
	case RefNew:
		e = s.create(a.Entity.EntityID)
	case RefExisting:
		e, ok = s.resolve(a.Entity.Name)
	default:
		ok = false
	}
	if !ok {
		return false
	}

	maps.Copy(e.Tags, a.Tags)
	maps.Copy(e.Attrs, a.Attrs)
	s.Time = a.Time
	return true
}

// GameLog is the ordered action history of a match plus a snapshot taken
// every time the turn changes.
type GameLog struct {
	Current   *Snapshot    `json:"current"`
	Snapshots []*Snapshot  `json:"snapshots"`
	Actions   []GameAction `json:"actions"`

	unresolved int
}

// NewGameLog returns an empty log.
func NewGameLog() *GameLog {
	return &GameLog{Current: newSnapshot()}
}

// Unresolved counts actions whose entity could not be found.
func (g *GameLog) Unresolved() int {
	return g.unresolved
}

// SetPlayers registers player id to name mappings.
func (g *GameLog) SetPlayers(players map[int]string) {
	for id, name := range players {
		g.Current.PlayerNameToID[name] = id
	}
}

// Advance applies a group of actions and snapshots the state if the turn moved.
func (g *GameLog) Advance(actions []GameAction) {
	before := g.Current.CurrentTurn()
	for _, a := range actions {
		if !g.Current.apply(a) {
			g.unresolved++
			slog.Debug("unresolved hearthstone entity",
				slog.String("entity", a.Entity.String()),
				slog.String("action", a.Type.String()))
		}
		g.Actions = append(g.Actions, a)
	}

	after := g.Current.CurrentTurn()
	g.Current.Turn = after
	if before != after {
		g.Snapshots = append(g.Snapshots, g.Current.Clone())
	}
}
