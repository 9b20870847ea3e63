// Package wow decodes World of Warcraft advanced combat-log lines into typed
// events.
package wow

import (
	"fmt"
	"time"
)

// NilGUID marks an empty source or destination unit.
const NilGUID = "0000000000000000"

// Kind discriminates the payload carried by an Event.
type Kind int

const (
	KindUnknown Kind = iota
	KindDamage
	KindHealing
	KindSpellCast
	KindSpellAura
	KindAuraBreak
	KindUnitDied
	KindResurrect
	KindSpellSummon
	KindEncounterStart
	KindEncounterEnd
	KindCombatLogVersion
)

var kindNames = map[Kind]string{
	KindUnknown:          "unknown",
	KindDamage:           "damage",
	KindHealing:          "healing",
	KindSpellCast:        "spell_cast",
	KindSpellAura:        "spell_aura",
	KindAuraBreak:        "aura_break",
	KindUnitDied:         "unit_died",
	KindResurrect:        "resurrect",
	KindSpellSummon:      "spell_summon",
	KindEncounterStart:   "encounter_start",
	KindEncounterEnd:     "encounter_end",
	KindCombatLogVersion: "combat_log_version",
}

func (k Kind) String() string {
	if s, ok := kindNames[k]; ok {
		return s
	}
	return fmt.Sprintf("kind(%d)", int(k))
}

func (k Kind) MarshalText() ([]byte, error) {
	return []byte(k.String()), nil
}

func (k *Kind) UnmarshalText(b []byte) error {
	for kind, name := range kindNames {
		if name == string(b) {
			*k = kind
			return nil
		}
	}
	return fmt.Errorf("unknown wow event kind %q", b)
}

// AuraType is BUFF or DEBUFF.
type AuraType string

const (
	AuraBuff   AuraType = "BUFF"
	AuraDebuff AuraType = "DEBUFF"
)

// Unit is a source or destination actor.
type Unit struct {
	GUID      string `json:"guid"`
	Name      string `json:"name"`
	Flags     int64  `json:"flags"`
	RaidFlags int64  `json:"raid_flags"`
}

// Spell identifies an ability.
type Spell struct {
	ID     int64  `json:"id"`
	Name   string `json:"name"`
	School int64  `json:"school"`
}

// Advanced holds the unit info block present when advanced combat logging is
// enabled in the client.
type Advanced struct {
	UnitGUID  string  `json:"unit_guid"`
	OwnerGUID string  `json:"owner_guid"`
	CurrentHP int64   `json:"current_hp"`
	MaxHP     int64   `json:"max_hp"`
	PositionX float64 `json:"position_x"`
	PositionY float64 `json:"position_y"`
	UIMapID   int64   `json:"ui_map_id"`
	Facing    float64 `json:"facing"`
	Level     int64   `json:"level"`
}

// HasOwner reports whether the info block names a real owner for a real unit.
func (a *Advanced) HasOwner() bool {
	return a != nil && a.OwnerGUID != NilGUID && a.OwnerGUID != "" && a.UnitGUID != NilGUID && a.UnitGUID != ""
}

// Damage is any *_DAMAGE event. Spell is nil for melee swings.
type Damage struct {
	Spell         *Spell `json:"spell,omitempty"`
	Environmental string `json:"environmental,omitempty"`
	Amount        int64  `json:"amount"`
	Overkill      int64  `json:"overkill"`
	Critical      bool   `json:"critical"`
}

// Healing is any *_HEAL event.
type Healing struct {
	Spell    Spell `json:"spell"`
	Amount   int64 `json:"amount"`
	Overheal int64 `json:"overheal"`
	Absorbed int64 `json:"absorbed"`
	Critical bool  `json:"critical"`
}

// Effective returns the healing that landed, never negative.
func (h *Healing) Effective() int64 {
	return max(h.Amount-h.Overheal, 0)
}

// SpellCast covers SPELL_CAST_START, SPELL_CAST_SUCCESS and SPELL_CAST_FAILED.
type SpellCast struct {
	Spell      Spell  `json:"spell"`
	Start      bool   `json:"start"`
	Finish     bool   `json:"finish"`
	Success    bool   `json:"success"`
	FailedType string `json:"failed_type,omitempty"`
}

// SpellAura covers SPELL_AURA_APPLIED and SPELL_AURA_REMOVED.
type SpellAura struct {
	Spell    Spell    `json:"spell"`
	AuraType AuraType `json:"aura_type"`
	Applied  bool     `json:"applied"`
}

// AuraBreak is SPELL_AURA_BROKEN or SPELL_AURA_BROKEN_SPELL. Spell is the
// breaking ability and is only known for the latter.
type AuraBreak struct {
	Aura     Spell    `json:"aura"`
	Spell    *Spell   `json:"spell,omitempty"`
	AuraType AuraType `json:"aura_type"`
}

// UnitDied is UNIT_DIED; Unconscious marks feign-death style events.
type UnitDied struct {
	Unconscious bool `json:"unconscious"`
}

// Encounter is ENCOUNTER_START or ENCOUNTER_END.
type Encounter struct {
	ID         int64  `json:"id"`
	Name       string `json:"name"`
	Difficulty int64  `json:"difficulty"`
	GroupSize  int64  `json:"group_size"`
	InstanceID int64  `json:"instance_id,omitempty"`
	Success    bool   `json:"success,omitempty"`
}

// Version is the COMBAT_LOG_VERSION header line.
type Version struct {
	Version  int64  `json:"version"`
	Advanced bool   `json:"advanced"`
	Build    string `json:"build"`
}

// Event is one decoded combat-log line. Exactly one payload matching Kind is set.
type Event struct {
	Time     time.Time `json:"time"`
	Name     string    `json:"name"`
	Kind     Kind      `json:"kind"`
	Source   *Unit     `json:"source,omitempty"`
	Dest     *Unit     `json:"dest,omitempty"`
	Advanced *Advanced `json:"advanced,omitempty"`

	Damage         *Damage    `json:"damage,omitempty"`
	Healing        *Healing   `json:"healing,omitempty"`
	SpellCast      *SpellCast `json:"spell_cast,omitempty"`
	SpellAura      *SpellAura `json:"spell_aura,omitempty"`
	AuraBreak      *AuraBreak `json:"aura_break,omitempty"`
	UnitDied       *UnitDied  `json:"unit_died,omitempty"`
	Resurrect      *Spell     `json:"resurrect,omitempty"`
	SpellSummon    *Spell     `json:"spell_summon,omitempty"`
	EncounterStart *Encounter `json:"encounter_start,omitempty"`
	EncounterEnd   *Encounter `json:"encounter_end,omitempty"`
	Version        *Version   `json:"version,omitempty"`
}
