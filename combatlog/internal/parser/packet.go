// Package parser turns raw log lines of a partition into game packets.
package parser

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/telhawk-systems/telhawk-combatlog/combatlog/internal/ff14"
	"github.com/telhawk-systems/telhawk-combatlog/combatlog/internal/hearthstone"
	"github.com/telhawk-systems/telhawk-combatlog/combatlog/internal/wow"
)

// FlushMarker is a line that asks for the partition to be finalized.
const FlushMarker = "//COMBATLOG_FLUSH"

var (
	ErrUnsupportedPartition = errors.New("unsupported partition")
	ErrUnrecognizedEvent    = errors.New("unrecognized event")
	ErrParserPanic          = errors.New("parser panic")
)

// Game identifies the log format of a partition.
type Game string

const (
	GameWoW         Game = "wow"
	GameFF14        Game = "ff14"
	GameHearthstone Game = "hs"
)

// Games lists every line-based game.
var Games = []Game{GameWoW, GameFF14, GameHearthstone}

// Valid reports whether g is a known game.
func (g Game) Valid() bool {
	switch g {
	case GameWoW, GameFF14, GameHearthstone:
		return true
	}
	return false
}

// NewPartitionID returns "<game>_<uuid>".
func NewPartitionID(game Game) string {
	return string(game) + "_" + uuid.Must(uuid.NewV7()).String()
}

// GameOf extracts the game prefix of a partition id.
func GameOf(partitionID string) (Game, error) {
	prefix, rest, ok := strings.Cut(partitionID, "_")
	if !ok || rest == "" {
		return "", fmt.Errorf("%w: %q", ErrUnsupportedPartition, partitionID)
	}
	g := Game(prefix)
	if !g.Valid() {
		return "", fmt.Errorf("%w: %q", ErrUnsupportedPartition, partitionID)
	}
	return g, nil
}

// Form tells a parsed event apart from a flush request.
type Form int

const (
	FormParsed Form = iota
	FormFlush
)

func (f Form) String() string {
	if f == FormFlush {
		return "flush"
	}
	return "parsed"
}

func (f Form) MarshalText() ([]byte, error) {
	return []byte(f.String()), nil
}

func (f *Form) UnmarshalText(b []byte) error {
	switch string(b) {
	case "parsed":
		*f = FormParsed
	case "flush":
		*f = FormFlush
	default:
		return fmt.Errorf("unknown packet form %q", b)
	}
	return nil
}

// Packet is one parsed line. Exactly one of the game payloads is set for
// parsed packets; flush packets carry none.
type Packet struct {
	PartitionID string    `json:"partition_id"`
	Time        time.Time `json:"time"`
	Form        Form      `json:"form"`
	Game        Game      `json:"game"`

	WoW         *wow.Event              `json:"wow,omitempty"`
	FF14        *ff14.Event             `json:"ff14,omitempty"`
	Hearthstone *hearthstone.RawLogLine `json:"hearthstone,omitempty"`
}

// Flush reports whether the packet is a flush request.
func (p Packet) Flush() bool {
	return p.Form == FormFlush
}

// EventName names the payload for logging and indexing.
func (p Packet) EventName() string {
	switch {
	case p.Flush():
		return "flush"
	case p.WoW != nil:
		return p.WoW.Name
	case p.FF14 != nil:
		return p.FF14.Type.String()
	case p.Hearthstone != nil:
		if pl, err := hearthstone.Tokenize(p.Hearthstone.Text); err == nil {
			return pl.Func
		}
	}
	return ""
}
