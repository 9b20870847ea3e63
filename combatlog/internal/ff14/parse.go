package ff14

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"
)

var (
	ErrMalformedLine = errors.New("malformed ff14 log line")
	ErrUnknownType   = errors.New("unknown ff14 log line type")
)

// ParseLine decodes one ACT network log line. Known line types without a
// decoded payload come back as an Event carrying only Type and Time.
func ParseLine(line string) (Event, error) {
	parts := strings.Split(strings.TrimRight(line, "\r\n"), "|")
	if len(parts) < 2 {
		return Event{}, fmt.Errorf("%w: expected TYPE|TIME", ErrMalformedLine)
	}

	code, err := strconv.Atoi(parts[0])
	if err != nil {
		return Event{}, fmt.Errorf("%w: type %q", ErrMalformedLine, parts[0])
	}
	typ := Type(code)
	if !typ.Known() {
		return Event{}, fmt.Errorf("%w: %d", ErrUnknownType, code)
	}

	tm, err := time.Parse(time.RFC3339Nano, parts[1])
	if err != nil {
		return Event{}, fmt.Errorf("%w: time %q", ErrMalformedLine, parts[1])
	}

	ev := Event{Type: typ, Time: tm.UTC()}
	f := &fields{vals: parts[2:]}

	switch typ {
	case TypeChangeZone:
		ev.ChangeZone = &Zone{ID: f.hex(0), Name: f.str(1)}
	case TypeChangePrimaryPlayer:
		ev.ChangePrimaryPlayer = &Actor{ID: f.hex(0), Name: f.str(1)}
	case TypeAddCombatant:
		ev.AddCombatant = &Combatant{
			Actor:     f.actor(0),
			Job:       f.hex(2),
			Level:     f.hex(3),
			OwnerID:   f.optHex(4),
			WorldID:   f.hex(5),
			World:     f.str(6),
			NPCNameID: f.optDec(7),
			NPCBaseID: f.optDec(8),
			Resources: f.resources(9),
		}
	case TypeRemoveCombatant:
		a := f.actor(0)
		ev.RemoveCombatant = &a
	case TypeStartsCasting:
		ev.StartsCasting = &StartsCasting{
			Source:   f.actor(0),
			Spell:    f.actor(2),
			Target:   f.actor(4),
			CastTime: f.float(6),
		}
	case TypeAbility, TypeAOEAbility:
		// 8 flag/value effect pairs follow the target; the first is the
		// primary effect.
		ev.Ability = &Ability{
			Source:          f.actor(0),
			Spell:           f.actor(2),
			Target:          f.actor(4),
			Flags:           f.hex(6),
			Damage:          f.hex(7),
			TargetResources: f.resources(22),
			SourceResources: f.resources(32),
			Sequence:        f.hex(42),
		}
	case TypeCancelAbility:
		ev.CancelAbility = &CancelAbility{Source: f.actor(0), Spell: f.actor(2), Reason: f.str(4)}
	case TypeDoT:
		ev.DoT = &DoT{
			Target:    f.actor(0),
			Which:     f.str(2),
			EffectID:  f.hex(3),
			Damage:    f.hex(4),
			Resources: f.resources(5),
		}
	case TypeDeath:
		ev.Death = &Death{Target: f.actor(0), Source: f.actor(2)}
	case TypeBuff:
		ev.Buff = &Buff{
			Effect:      f.actor(0),
			Duration:    f.float(2),
			Source:      f.actor(3),
			Target:      f.actor(5),
			Count:       f.hex(7),
			TargetMaxHP: f.dec(8),
			SourceMaxHP: f.dec(9),
		}
	case TypeBuffRemove:
		ev.BuffRemove = &Buff{
			Effect:   f.actor(0),
			Duration: f.float(2),
			Source:   f.actor(3),
			Target:   f.actor(5),
			Count:    f.hex(7),
		}
	case TypeLimitBreak:
		ev.LimitBreak = &LimitBreak{Value: f.hex(0), Bars: int32(f.dec(1))}
	case TypeUpdateHP:
		ev.UpdateHP = &UpdateHP{Actor: f.actor(0), Resources: f.resources(2)}
	case TypeMap:
		ev.Map = &Map{RegionID: f.hex(0), RegionName: f.str(1), PlaceName: f.str(2), PlaceNameSub: f.str(3)}
	}

	if f.err != nil {
		return Event{}, fmt.Errorf("%s: %w", typ, f.err)
	}
	return ev, nil
}

// fields reads positional values after TYPE|TIME, remembering the first error.
type fields struct {
	vals []string
	err  error
}

func (f *fields) str(i int) string {
	if i >= len(f.vals) {
		if f.err == nil {
			f.err = fmt.Errorf("%w: missing field %d", ErrMalformedLine, i)
		}
		return ""
	}
	return f.vals[i]
}

func (f *fields) parse(i int, base int) int64 {
	s := f.str(i)
	if f.err != nil {
		return 0
	}
	if s == "" {
		return 0
	}
	v, err := strconv.ParseInt(s, base, 64)
	if err != nil {
		// Ids such as E0000000 overflow a signed 32-bit value but not 64.
		u, uerr := strconv.ParseUint(s, base, 64)
		if uerr != nil {
			f.err = fmt.Errorf("%w: field %d %q", ErrMalformedLine, i, s)
			return 0
		}
		v = int64(u)
	}
	return v
}

func (f *fields) hex(i int) int64 { return f.parse(i, 16) }
func (f *fields) dec(i int) int64 { return f.parse(i, 10) }

func (f *fields) float(i int) float64 {
	s := f.str(i)
	if f.err != nil || s == "" {
		return 0
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		f.err = fmt.Errorf("%w: field %d %q", ErrMalformedLine, i, s)
	}
	return v
}

// optHex and optDec treat empty and zero as absent.
func (f *fields) optHex(i int) *int64 { return optional(f.hex(i)) }
func (f *fields) optDec(i int) *int64 { return optional(f.dec(i)) }

func optional(v int64) *int64 {
	if v == 0 {
		return nil
	}
	return &v
}

func (f *fields) actor(i int) Actor {
	return Actor{ID: f.hex(i), Name: f.str(i + 1)}
}

func (f *fields) resources(i int) Resources {
	return Resources{CurrentHP: f.dec(i), MaxHP: f.dec(i + 1), CurrentMP: f.dec(i + 2), MaxMP: f.dec(i + 3)}
}
