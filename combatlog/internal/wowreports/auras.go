package wowreports

import (
	"log/slog"
	"time"

	"github.com/telhawk-systems/telhawk-combatlog/combatlog/internal/codec"
	"github.com/telhawk-systems/telhawk-combatlog/combatlog/internal/report"
	"github.com/telhawk-systems/telhawk-combatlog/combatlog/internal/wow"
)

var auraSchema = codec.MustSchema(`{
	"type": "record",
	"name": "wow_aura_events",
	"fields": [
		{"name": "targetGuid", "type": "string"},
		{"name": "targetName", "type": "string"},
		{"name": "spellId", "type": "long"},
		{"name": "auraType", "type": ` + auraTypeSchema + `},
		{"name": "appliedTm", "type": {"type": "long", "logicalType": "timestamp-millis"}},
		{"name": "removedTm", "type": {"type": "long", "logicalType": "timestamp-millis"}}
	]
}`)

var auraBreakSchema = codec.MustSchema(`{
	"type": "record",
	"name": "wow_aura_break_events",
	"fields": [
		{"name": "sourceGuid", "type": "string"},
		{"name": "sourceName", "type": "string"},
		{"name": "sourceFlags", "type": "long"},
		{"name": "targetGuid", "type": "string"},
		{"name": "targetName", "type": "string"},
		{"name": "targetFlags", "type": "long"},
		{"name": "auraId", "type": "long"},
		{"name": "auraType", "type": ` + auraTypeSchema + `},
		{"name": "spellId", "type": ["null", "long"], "default": null},
		{"name": "tm", "type": {"type": "long", "logicalType": "timestamp-millis"}}
	]
}`)

// AuraRow is one aura application window on a target.
type AuraRow struct {
	TargetGUID string      `avro:"targetGuid"`
	TargetName string      `avro:"targetName"`
	SpellID    int64       `avro:"spellId"`
	AuraType   auraTypeRow `avro:"auraType"`
	AppliedTm  time.Time   `avro:"appliedTm"`
	RemovedTm  time.Time   `avro:"removedTm"`
}

type auraKey struct {
	target  string
	spellID int64
}

type pendingAura struct {
	row   AuraRow
	order int
}

// AuraGenerator pairs SPELL_AURA_APPLIED with SPELL_AURA_REMOVED on the same
// (target, spell). A second APPLIED before the removal closes the earlier
// window at the reapplication. Auras still applied at finalize are closed at
// the last event time.
type AuraGenerator struct {
	file    avroFile
	pending map[auraKey]pendingAura
	seq     int
	last    time.Time
}

func NewAuraGenerator() *AuraGenerator {
	return &AuraGenerator{
		file:    avroFile{key: "auras.avro", canonical: Events, schema: auraSchema},
		pending: make(map[auraKey]pendingAura),
	}
}

func (g *AuraGenerator) InitializeWorkDir(dir string) error {
	return g.file.open(dir)
}

func (g *AuraGenerator) Handle(ev *wow.Event) error {
	g.last = ev.Time
	if ev.Kind != wow.KindSpellAura || ev.Dest == nil {
		return nil
	}

	key := auraKey{target: ev.Dest.GUID, spellID: ev.SpellAura.Spell.ID}
	if ev.SpellAura.Applied {
		if prev, ok := g.pending[key]; ok {
			// Reapplied without a removal: close the earlier window here.
			slog.Debug("wow aura applied twice",
				slog.String("target", ev.Dest.GUID),
				slog.Int64("spell_id", ev.SpellAura.Spell.ID))
			prev.row.RemovedTm = ev.Time
			if err := g.file.write(prev.row); err != nil {
				return err
			}
		}
		g.seq++
		g.pending[key] = pendingAura{
			order: g.seq,
			row: AuraRow{
				TargetGUID: ev.Dest.GUID,
				TargetName: ev.Dest.Name,
				SpellID:    ev.SpellAura.Spell.ID,
				AuraType:   auraTypeRow{Type: string(ev.SpellAura.AuraType)},
				AppliedTm:  ev.Time,
			},
		}
		return nil
	}

	p, ok := g.pending[key]
	if !ok {
		slog.Debug("wow aura removed without apply",
			slog.String("target", ev.Dest.GUID),
			slog.Int64("spell_id", ev.SpellAura.Spell.ID))
		return nil
	}
	delete(g.pending, key)
	p.row.RemovedTm = ev.Time
	return g.file.write(p.row)
}

// Finalize closes every open aura in application order.
func (g *AuraGenerator) Finalize() error {
	open := make([]pendingAura, 0, len(g.pending))
	for _, p := range g.pending {
		open = append(open, p)
	}
	sortByOrder(open, func(p pendingAura) int { return p.order })
	for _, p := range open {
		p.row.RemovedTm = g.last
		if err := g.file.write(p.row); err != nil {
			return err
		}
	}
	clear(g.pending)
	return nil
}

func (g *AuraGenerator) Reports() ([]*report.Report, error) {
	return g.file.reports()
}

// AuraBreakRow is one crowd-control style aura broken early.
type AuraBreakRow struct {
	SourceGUID  string      `avro:"sourceGuid"`
	SourceName  string      `avro:"sourceName"`
	SourceFlags int64       `avro:"sourceFlags"`
	TargetGUID  string      `avro:"targetGuid"`
	TargetName  string      `avro:"targetName"`
	TargetFlags int64       `avro:"targetFlags"`
	AuraID      int64       `avro:"auraId"`
	AuraType    auraTypeRow `avro:"auraType"`
	SpellID     *int64      `avro:"spellId"`
	Tm          time.Time   `avro:"tm"`
}

// AuraBreakGenerator writes every SPELL_AURA_BROKEN[_SPELL] with both units known.
type AuraBreakGenerator struct {
	file avroFile
}

func NewAuraBreakGenerator() *AuraBreakGenerator {
	return &AuraBreakGenerator{
		file: avroFile{key: "aura_breaks.avro", canonical: Events, schema: auraBreakSchema},
	}
}

func (g *AuraBreakGenerator) InitializeWorkDir(dir string) error {
	return g.file.open(dir)
}

func (g *AuraBreakGenerator) Handle(ev *wow.Event) error {
	if ev.Kind != wow.KindAuraBreak || ev.Source == nil || ev.Dest == nil {
		return nil
	}
	row := AuraBreakRow{
		SourceGUID:  ev.Source.GUID,
		SourceName:  ev.Source.Name,
		SourceFlags: ev.Source.Flags,
		TargetGUID:  ev.Dest.GUID,
		TargetName:  ev.Dest.Name,
		TargetFlags: ev.Dest.Flags,
		AuraID:      ev.AuraBreak.Aura.ID,
		AuraType:    auraTypeRow{Type: string(ev.AuraBreak.AuraType)},
		Tm:          ev.Time,
	}
	if ev.AuraBreak.Spell != nil {
		row.SpellID = ptr(ev.AuraBreak.Spell.ID)
	}
	return g.file.write(row)
}

func (g *AuraBreakGenerator) Finalize() error { return nil }

func (g *AuraBreakGenerator) Reports() ([]*report.Report, error) {
	return g.file.reports()
}
