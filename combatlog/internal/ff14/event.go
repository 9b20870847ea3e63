// Package ff14 decodes Final Fantasy XIV network log lines as written by ACT
// ("TYPE|ISO-8601 time|fields...|hash").
package ff14

import (
	"fmt"
	"strconv"
	"time"
)

// Type is the numeric line type.
type Type int

const (
	TypeLogLine             Type = 0
	TypeChangeZone          Type = 1
	TypeChangePrimaryPlayer Type = 2
	TypeAddCombatant        Type = 3
	TypeRemoveCombatant     Type = 4
	TypePartyList           Type = 11
	TypePlayerStats         Type = 12
	TypeStartsCasting       Type = 20
	TypeAbility             Type = 21
	TypeAOEAbility          Type = 22
	TypeCancelAbility       Type = 23
	TypeDoT                 Type = 24
	TypeDeath               Type = 25
	TypeBuff                Type = 26
	TypeTargetIcon          Type = 27
	TypeRaidMarker          Type = 28
	TypeTargetMarker        Type = 29
	TypeBuffRemove          Type = 30
	TypeGauge               Type = 31
	TypeWorld               Type = 32
	TypeActorControl        Type = 33
	TypeNameToggle          Type = 34
	TypeTether              Type = 35
	TypeLimitBreak          Type = 36
	TypeActionSync          Type = 37
	TypeStatusEffects       Type = 38
	TypeUpdateHP            Type = 39
	TypeMap                 Type = 40
	TypeSystemLogMessage    Type = 41
	TypeDebug               Type = 251
	TypePacketDump          Type = 252
	TypeVersion             Type = 253
	TypeError               Type = 254
)

var typeNames = map[Type]string{
	TypeLogLine:             "LogLine",
	TypeChangeZone:          "ChangeZone",
	TypeChangePrimaryPlayer: "ChangePrimaryPlayer",
	TypeAddCombatant:        "AddCombatant",
	TypeRemoveCombatant:     "RemoveCombatant",
	TypePartyList:           "PartyList",
	TypePlayerStats:         "PlayerStats",
	TypeStartsCasting:       "NetworkStartsCasting",
	TypeAbility:             "NetworkAbility",
	TypeAOEAbility:          "NetworkAOEAbility",
	TypeCancelAbility:       "NetworkCancelAbility",
	TypeDoT:                 "NetworkDoT",
	TypeDeath:               "NetworkDeath",
	TypeBuff:                "NetworkBuff",
	TypeTargetIcon:          "NetworkTargetIcon",
	TypeRaidMarker:          "NetworkRaidMarker",
	TypeTargetMarker:        "NetworkTargetMarker",
	TypeBuffRemove:          "NetworkBuffRemove",
	TypeGauge:               "NetworkGauge",
	TypeWorld:               "NetworkWorld",
	TypeActorControl:        "Network6D",
	TypeNameToggle:          "NetworkNameToggle",
	TypeTether:              "NetworkTether",
	TypeLimitBreak:          "LimitBreak",
	TypeActionSync:          "NetworkActionSync",
	TypeStatusEffects:       "NetworkStatusEffects",
	TypeUpdateHP:            "NetworkUpdateHP",
	TypeMap:                 "Map",
	TypeSystemLogMessage:    "SystemLogMessage",
	TypeDebug:               "Debug",
	TypePacketDump:          "PacketDump",
	TypeVersion:             "Version",
	TypeError:               "Error",
}

func (t Type) String() string {
	if s, ok := typeNames[t]; ok {
		return s
	}
	return "Type(" + strconv.Itoa(int(t)) + ")"
}

// Known reports whether t is a line type ACT writes.
func (t Type) Known() bool {
	_, ok := typeNames[t]
	return ok
}

// Actor is an id/name pair; ids are hex in the log.
type Actor struct {
	ID   int64  `json:"id"`
	Name string `json:"name"`
}

// Resources is a current/max HP and MP snapshot.
type Resources struct {
	CurrentHP int64 `json:"current_hp"`
	MaxHP     int64 `json:"max_hp"`
	CurrentMP int64 `json:"current_mp"`
	MaxMP     int64 `json:"max_mp"`
}

type Zone struct {
	ID   int64  `json:"id"`
	Name string `json:"name"`
}

type Combatant struct {
	Actor
	Job       int64  `json:"job"`
	Level     int64  `json:"level"`
	OwnerID   *int64 `json:"owner_id,omitempty"`
	WorldID   int64  `json:"world_id"`
	World     string `json:"world"`
	NPCNameID *int64 `json:"npc_name_id,omitempty"`
	NPCBaseID *int64 `json:"npc_base_id,omitempty"`
	Resources
}

type StartsCasting struct {
	Source   Actor   `json:"source"`
	Spell    Actor   `json:"spell"`
	Target   Actor   `json:"target"`
	CastTime float64 `json:"cast_time"`
}

type Ability struct {
	Source          Actor     `json:"source"`
	Spell           Actor     `json:"spell"`
	Target          Actor     `json:"target"`
	Flags           int64     `json:"flags"`
	Damage          int64     `json:"damage"`
	TargetResources Resources `json:"target_resources"`
	SourceResources Resources `json:"source_resources"`
	Sequence        int64     `json:"sequence"`
}

type CancelAbility struct {
	Source Actor  `json:"source"`
	Spell  Actor  `json:"spell"`
	Reason string `json:"reason"`
}

// DoT is a damage or heal over time tick; Which is "DoT" or "HoT".
type DoT struct {
	Target   Actor  `json:"target"`
	Which    string `json:"which"`
	EffectID int64  `json:"effect_id"`
	Damage   int64  `json:"damage"`
	Resources
}

type Death struct {
	Target Actor `json:"target"`
	Source Actor `json:"source"`
}

// Buff is a status gain (26) or loss (30). Duration and the max HP values are
// only present on gains.
type Buff struct {
	Effect      Actor   `json:"effect"`
	Duration    float64 `json:"duration"`
	Source      Actor   `json:"source"`
	Target      Actor   `json:"target"`
	Count       int64   `json:"count"`
	TargetMaxHP int64   `json:"target_max_hp,omitempty"`
	SourceMaxHP int64   `json:"source_max_hp,omitempty"`
}

type LimitBreak struct {
	Value int64 `json:"value"`
	Bars  int32 `json:"bars"`
}

type UpdateHP struct {
	Actor
	Resources
}

type Map struct {
	RegionID     int64  `json:"region_id"`
	RegionName   string `json:"region_name"`
	PlaceName    string `json:"place_name"`
	PlaceNameSub string `json:"place_name_sub"`
}

// Event is one decoded line. At most one payload is set; line types that carry
// nothing of interest have none.
type Event struct {
	Type Type      `json:"type"`
	Time time.Time `json:"time"`

	ChangeZone          *Zone          `json:"change_zone,omitempty"`
	ChangePrimaryPlayer *Actor         `json:"change_primary_player,omitempty"`
	AddCombatant        *Combatant     `json:"add_combatant,omitempty"`
	RemoveCombatant     *Actor         `json:"remove_combatant,omitempty"`
	StartsCasting       *StartsCasting `json:"starts_casting,omitempty"`
	Ability             *Ability       `json:"ability,omitempty"`
	CancelAbility       *CancelAbility `json:"cancel_ability,omitempty"`
	DoT                 *DoT           `json:"dot,omitempty"`
	Death               *Death         `json:"death,omitempty"`
	Buff                *Buff          `json:"buff,omitempty"`
	BuffRemove          *Buff          `json:"buff_remove,omitempty"`
	LimitBreak          *LimitBreak    `json:"limit_break,omitempty"`
	UpdateHP            *UpdateHP      `json:"update_hp,omitempty"`
	Map                 *Map           `json:"map,omitempty"`
}

func (e Event) String() string {
	return fmt.Sprintf("%s@%s", e.Type, e.Time.Format(time.RFC3339Nano))
}
