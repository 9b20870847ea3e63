package wow

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"
)

var (
	// ErrMalformedLine is returned for lines that do not follow the
	// "timestamp  EVENT,args" layout or carry too few arguments.
	ErrMalformedLine = errors.New("malformed wow combat log line")
	// ErrUnknownEvent is returned for event names this package does not decode.
	ErrUnknownEvent = errors.New("unknown wow combat log event")
)

const (
	baseParams     = 8
	advancedParams = 17
)

// prefixes in match order; longer prefixes must come before their stems.
var prefixes = []struct {
	name   string
	params int
}{
	{"SPELL_PERIODIC", 3},
	{"SPELL_BUILDING", 3},
	{"SPELL", 3},
	{"RANGE", 3},
	{"SWING", 0},
	{"ENVIRONMENTAL", 1},
}

// ParseLine decodes "M/D[/YYYY] HH:MM:SS.mmm[±TZ]  EVENT,args...". ref
// supplies the year when the line omits it and the zone when the line has no
// offset.
func ParseLine(line string, ref time.Time) (Event, error) {
	stamp, body, ok := strings.Cut(strings.TrimRight(line, "\r\n"), "  ")
	if !ok {
		return Event{}, fmt.Errorf("%w: missing timestamp separator", ErrMalformedLine)
	}

	tm, err := parseTimestamp(stamp, ref)
	if err != nil {
		return Event{}, err
	}

	fields := splitFields(body)
	ev := Event{Time: tm, Name: fields[0]}
	args := fields[1:]

	switch ev.Name {
	case "COMBAT_LOG_VERSION":
		return parseVersion(ev, args)
	case "ENCOUNTER_START", "ENCOUNTER_END":
		return parseEncounter(ev, args)
	}

	prefix, suffix, params, ok := splitName(ev.Name)
	if !ok && ev.Name != "UNIT_DIED" {
		return Event{}, fmt.Errorf("%w: %s", ErrUnknownEvent, ev.Name)
	}
	if len(args) < baseParams+params {
		return Event{}, fmt.Errorf("%w: %s has %d arguments", ErrMalformedLine, ev.Name, len(args))
	}
	ev.Source = parseUnit(args[0:4])
	ev.Dest = parseUnit(args[4:8])
	rest := args[baseParams:]

	if ev.Name == "UNIT_DIED" {
		ev.Kind = KindUnitDied
		ev.UnitDied = &UnitDied{Unconscious: len(rest) > 0 && rest[0] == "1"}
		return ev, nil
	}

	var spell *Spell
	if params == 3 {
		s, err := parseSpell(rest[:3])
		if err != nil {
			return Event{}, fmt.Errorf("%s: %w", ev.Name, err)
		}
		spell = &s
	}
	environmental := ""
	if prefix == "ENVIRONMENTAL" {
		environmental = rest[0]
	}
	rest = rest[params:]

	switch suffix {
	case "DAMAGE":
		return parseDamage(ev, spell, environmental, rest)
	case "HEAL":
		if spell == nil {
			break
		}
		return parseHealing(ev, *spell, rest)
	}

	if spell == nil {
		return Event{}, fmt.Errorf("%w: %s", ErrUnknownEvent, ev.Name)
	}

	switch suffix {
	case "CAST_START":
		ev.Kind = KindSpellCast
		ev.SpellCast = &SpellCast{Spell: *spell, Start: true}
	case "CAST_SUCCESS":
		ev.Kind = KindSpellCast
		ev.SpellCast = &SpellCast{Spell: *spell, Finish: true, Success: true}
		if len(rest) >= advancedParams {
			ev.Advanced = parseAdvanced(rest[:advancedParams])
		}
	case "CAST_FAILED":
		ev.Kind = KindSpellCast
		ev.SpellCast = &SpellCast{Spell: *spell, Finish: true}
		if len(rest) > 0 {
			ev.SpellCast.FailedType = rest[len(rest)-1]
		}
	case "AURA_APPLIED", "AURA_REMOVED":
		if len(rest) < 1 {
			return Event{}, fmt.Errorf("%w: %s missing aura type", ErrMalformedLine, ev.Name)
		}
		ev.Kind = KindSpellAura
		ev.SpellAura = &SpellAura{Spell: *spell, AuraType: AuraType(rest[0]), Applied: suffix == "AURA_APPLIED"}
	case "AURA_BROKEN":
		if len(rest) < 1 {
			return Event{}, fmt.Errorf("%w: %s missing aura type", ErrMalformedLine, ev.Name)
		}
		ev.Kind = KindAuraBreak
		ev.AuraBreak = &AuraBreak{Aura: *spell, AuraType: AuraType(rest[0])}
	case "AURA_BROKEN_SPELL":
		if len(rest) < 4 {
			return Event{}, fmt.Errorf("%w: %s missing breaking spell", ErrMalformedLine, ev.Name)
		}
		breaker, err := parseSpell(rest[:3])
		if err != nil {
			return Event{}, fmt.Errorf("%s: %w", ev.Name, err)
		}
		ev.Kind = KindAuraBreak
		ev.AuraBreak = &AuraBreak{Aura: *spell, Spell: &breaker, AuraType: AuraType(rest[3])}
	case "RESURRECT":
		ev.Kind = KindResurrect
		ev.Resurrect = spell
	case "SUMMON":
		ev.Kind = KindSpellSummon
		ev.SpellSummon = spell
	default:
		return Event{}, fmt.Errorf("%w: %s", ErrUnknownEvent, ev.Name)
	}
	return ev, nil
}

func splitName(name string) (prefix, suffix string, params int, ok bool) {
	for _, p := range prefixes {
		if s, found := strings.CutPrefix(name, p.name+"_"); found {
			return p.name, s, p.params, true
		}
	}
	return "", "", 0, false
}

// Damage suffix: amount, [baseAmount], overkill, school, resisted, blocked,
// absorbed, critical, glancing, crushing[, isOffHand].
func parseDamage(ev Event, spell *Spell, environmental string, rest []string) (Event, error) {
	const minSuffix = 9
	if len(rest) >= advancedParams+minSuffix {
		ev.Advanced = parseAdvanced(rest[:advancedParams])
		rest = rest[advancedParams:]
	}
	if len(rest) < minSuffix {
		return Event{}, fmt.Errorf("%w: %s damage suffix too short", ErrMalformedLine, ev.Name)
	}

	amount, err := parseInt(rest[0])
	if err != nil {
		return Event{}, fmt.Errorf("%s amount: %w", ev.Name, err)
	}
	overkillIdx, critIdx := 1, 6
	if len(rest) >= 11 {
		overkillIdx, critIdx = 2, 7
	}
	overkill, _ := parseInt(rest[overkillIdx])

	ev.Kind = KindDamage
	ev.Damage = &Damage{
		Spell:         spell,
		Environmental: environmental,
		Amount:        amount,
		Overkill:      max(overkill, 0),
		Critical:      rest[critIdx] == "1",
	}
	return ev, nil
}

// Heal suffix: amount, [baseAmount], overhealing, absorbed, critical.
func parseHealing(ev Event, spell Spell, rest []string) (Event, error) {
	const minSuffix = 4
	if len(rest) >= advancedParams+minSuffix {
		ev.Advanced = parseAdvanced(rest[:advancedParams])
		rest = rest[advancedParams:]
	}
	if len(rest) < minSuffix {
		return Event{}, fmt.Errorf("%w: %s heal suffix too short", ErrMalformedLine, ev.Name)
	}

	amount, err := parseInt(rest[0])
	if err != nil {
		return Event{}, fmt.Errorf("%s amount: %w", ev.Name, err)
	}
	overhealIdx := 1
	if len(rest) == 5 {
		overhealIdx = 2
	}
	overheal, err := parseInt(rest[overhealIdx])
	if err != nil {
		return Event{}, fmt.Errorf("%s overheal: %w", ev.Name, err)
	}
	absorbed, _ := parseInt(rest[overhealIdx+1])

	ev.Kind = KindHealing
	ev.Healing = &Healing{
		Spell:    spell,
		Amount:   amount,
		Overheal: overheal,
		Absorbed: absorbed,
		Critical: rest[len(rest)-1] == "1",
	}
	return ev, nil
}

func parseEncounter(ev Event, args []string) (Event, error) {
	if len(args) < 5 {
		return Event{}, fmt.Errorf("%w: %s has %d arguments", ErrMalformedLine, ev.Name, len(args))
	}
	id, err := parseInt(args[0])
	if err != nil {
		return Event{}, fmt.Errorf("%s encounter id: %w", ev.Name, err)
	}
	enc := &Encounter{ID: id, Name: args[1]}
	enc.Difficulty, _ = parseInt(args[2])
	enc.GroupSize, _ = parseInt(args[3])

	if ev.Name == "ENCOUNTER_START" {
		enc.InstanceID, _ = parseInt(args[4])
		ev.Kind = KindEncounterStart
		ev.EncounterStart = enc
	} else {
		enc.Success = args[4] == "1"
		ev.Kind = KindEncounterEnd
		ev.EncounterEnd = enc
	}
	return ev, nil
}

// COMBAT_LOG_VERSION,20,ADVANCED_LOG_ENABLED,1,BUILD_VERSION,9.0.5,PROJECT_ID,1
func parseVersion(ev Event, args []string) (Event, error) {
	if len(args) < 1 {
		return Event{}, fmt.Errorf("%w: empty combat log version", ErrMalformedLine)
	}
	v, err := parseInt(args[0])
	if err != nil {
		return Event{}, fmt.Errorf("combat log version: %w", err)
	}
	ver := &Version{Version: v}
	for i := 1; i+1 < len(args); i += 2 {
		switch args[i] {
		case "ADVANCED_LOG_ENABLED":
			ver.Advanced = args[i+1] == "1"
		case "BUILD_VERSION":
			ver.Build = args[i+1]
		}
	}
	ev.Kind = KindCombatLogVersion
	ev.Version = ver
	return ev, nil
}

func parseUnit(f []string) *Unit {
	if f[0] == NilGUID || f[0] == "" {
		return nil
	}
	u := &Unit{GUID: f[0], Name: f[1]}
	if u.Name == "nil" {
		u.Name = ""
	}
	u.Flags, _ = parseInt(f[2])
	u.RaidFlags, _ = parseInt(f[3])
	return u
}

func parseSpell(f []string) (Spell, error) {
	id, err := parseInt(f[0])
	if err != nil {
		return Spell{}, fmt.Errorf("spell id: %w", err)
	}
	school, _ := parseInt(f[2])
	return Spell{ID: id, Name: f[1], School: school}, nil
}

// infoGUID, ownerGUID, currentHP, maxHP, attackPower, spellPower, armor,
// absorb, powerType, currentPower, maxPower, powerCost, positionX, positionY,
// uiMapID, facing, level
func parseAdvanced(f []string) *Advanced {
	a := &Advanced{UnitGUID: f[0], OwnerGUID: f[1]}
	a.CurrentHP, _ = parseInt(f[2])
	a.MaxHP, _ = parseInt(f[3])
	a.PositionX, _ = strconv.ParseFloat(f[12], 64)
	a.PositionY, _ = strconv.ParseFloat(f[13], 64)
	a.UIMapID, _ = parseInt(f[14])
	a.Facing, _ = strconv.ParseFloat(f[15], 64)
	a.Level, _ = parseInt(f[16])
	return a
}

// parseInt accepts decimal and 0x-prefixed hex (unit flags).
func parseInt(s string) (int64, error) {
	if v, err := strconv.ParseInt(s, 0, 64); err == nil {
		return v, nil
	}
	// Flags such as 0x80000000 overflow a signed parse in some builds.
	u, err := strconv.ParseUint(s, 0, 64)
	if err != nil {
		return 0, fmt.Errorf("%w: %q is not an integer", ErrMalformedLine, s)
	}
	return int64(u), nil
}

// parseTimestamp reads "4/21 19:20:25.123" or "4/21/2024 19:20:25.123-4".
func parseTimestamp(stamp string, ref time.Time) (time.Time, error) {
	date, clock, ok := strings.Cut(strings.TrimSpace(stamp), " ")
	if !ok {
		return time.Time{}, fmt.Errorf("%w: bad timestamp %q", ErrMalformedLine, stamp)
	}

	parts := strings.Split(date, "/")
	if len(parts) < 2 || len(parts) > 3 {
		return time.Time{}, fmt.Errorf("%w: bad date %q", ErrMalformedLine, date)
	}
	month, err1 := strconv.Atoi(parts[0])
	day, err2 := strconv.Atoi(parts[1])
	year := ref.Year()
	var err3 error
	if len(parts) == 3 {
		year, err3 = strconv.Atoi(parts[2])
	}
	if err := errors.Join(err1, err2, err3); err != nil {
		return time.Time{}, fmt.Errorf("%w: bad date %q", ErrMalformedLine, date)
	}

	loc := ref.Location()
	if i := strings.LastIndexAny(clock, "+-"); i > 0 {
		offset, err := strconv.Atoi(clock[i:])
		if err != nil {
			return time.Time{}, fmt.Errorf("%w: bad zone offset %q", ErrMalformedLine, clock[i:])
		}
		loc = time.FixedZone("", offset*3600)
		clock = clock[:i]
	}

	t, err := time.Parse("15:04:05.999", clock)
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: bad time %q", ErrMalformedLine, clock)
	}
	return time.Date(year, time.Month(month), day, t.Hour(), t.Minute(), t.Second(), t.Nanosecond(), loc).UTC(), nil
}

// splitFields splits on commas outside of quotes, brackets and parentheses.
// Surrounding quotes are removed from quoted fields.
func splitFields(s string) []string {
	var (
		fields []string
		b      strings.Builder
		depth  int
		quoted bool
	)
	for i := 0; i < len(s); i++ {
		c := s[i]
		switch {
		case c == '"':
			quoted = !quoted
			continue
		case quoted:
		case c == '[' || c == '(':
			depth++
		case c == ']' || c == ')':
			depth--
		case c == ',' && depth == 0:
			fields = append(fields, b.String())
			b.Reset()
			continue
		}
		b.WriteByte(c)
	}
	return append(fields, b.String())
}
