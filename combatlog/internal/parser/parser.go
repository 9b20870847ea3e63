package parser

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/telhawk-systems/telhawk-combatlog/combatlog/internal/ff14"
	"github.com/telhawk-systems/telhawk-combatlog/combatlog/internal/hearthstone"
	"github.com/telhawk-systems/telhawk-combatlog/combatlog/internal/wow"
)

// Result is the outcome of one input line. Packet is only meaningful when Err
// is nil.
type Result struct {
	Raw    string
	Packet Packet
	Err    error
}

// Parse parses lines with the current time as the date reference.
func Parse(partitionID string, lines []string) ([]Result, error) {
	return ParseAt(partitionID, time.Now().UTC(), lines)
}

// ParseAt returns one Result per line, in order. ref supplies the date parts
// the log formats omit. A failed line never stops the batch; only an
// unsupported partition id fails the call.
func ParseAt(partitionID string, ref time.Time, lines []string) ([]Result, error) {
	game, err := GameOf(partitionID)
	if err != nil {
		return nil, err
	}

	results := make([]Result, 0, len(lines))
	last := ref
	for _, line := range lines {
		res := Result{Raw: line}
		if strings.TrimSpace(line) == FlushMarker {
			res.Packet = Packet{PartitionID: partitionID, Time: last, Form: FormFlush, Game: game}
		} else {
			res.Packet, res.Err = parseLine(game, line, ref)
			res.Packet.PartitionID = partitionID
			if res.Err == nil {
				last = res.Packet.Time
			}
		}
		results = append(results, res)
	}
	return results, nil
}

// Packets returns the packets of the successful results.
func Packets(results []Result) []Packet {
	out := make([]Packet, 0, len(results))
	for _, r := range results {
		if r.Err == nil {
			out = append(out, r.Packet)
		}
	}
	return out
}

func parseLine(game Game, line string, ref time.Time) (Packet, error) {
	return guarded(func() (Packet, error) { return decode(game, line, ref) })
}

// guarded turns a panic in fn into an ErrParserPanic result.
func guarded(fn func() (Packet, error)) (p Packet, err error) {
	defer func() {
		if r := recover(); r != nil {
			p, err = Packet{}, fmt.Errorf("%w: %v", ErrParserPanic, r)
		}
	}()
	return fn()
}

func decode(game Game, line string, ref time.Time) (Packet, error) {
	p := Packet{Form: FormParsed, Game: game}
	switch game {
	case GameWoW:
		ev, perr := wow.ParseLine(line, ref)
		if perr != nil {
			return Packet{}, classify(perr, wow.ErrUnknownEvent)
		}
		p.Time, p.WoW = ev.Time, &ev
	case GameFF14:
		ev, perr := ff14.ParseLine(line)
		if perr != nil {
			return Packet{}, classify(perr, ff14.ErrUnknownType)
		}
		p.Time, p.FF14 = ev.Time, &ev
	case GameHearthstone:
		raw, perr := hearthstone.ParseRawLine(line, ref)
		if perr != nil {
			return Packet{}, perr
		}
		p.Time, p.Hearthstone = raw.Time, &raw
	default:
		return Packet{}, fmt.Errorf("%w: %s", ErrUnsupportedPartition, game)
	}
	return p, nil
}

func classify(err, unknown error) error {
	if errors.Is(err, unknown) {
		return fmt.Errorf("%w: %w", ErrUnrecognizedEvent, err)
	}
	return err
}
