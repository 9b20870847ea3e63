package wowreports

import (
	"time"

	"github.com/telhawk-systems/telhawk-combatlog/combatlog/internal/codec"
	"github.com/telhawk-systems/telhawk-combatlog/combatlog/internal/report"
	"github.com/telhawk-systems/telhawk-combatlog/combatlog/internal/wow"
)

var spellCastSchema = codec.MustSchema(`{
	"type": "record",
	"name": "wow_spell_cast_events",
	"fields": [
		{"name": "sourceGuid", "type": "string"},
		{"name": "sourceName", "type": "string"},
		{"name": "sourceFlags", "type": "long"},
		{"name": "targetGuid", "type": ["null", "string"], "default": null},
		{"name": "targetName", "type": ["null", "string"], "default": null},
		{"name": "targetFlags", "type": ["null", "long"], "default": null},
		{"name": "castStart", "type": ["null", {"type": "long", "logicalType": "timestamp-millis"}], "default": null},
		{"name": "castFinish", "type": {"type": "long", "logicalType": "timestamp-millis"}},
		{"name": "spellId", "type": "long"},
		{"name": "spellSchool", "type": "int"},
		{"name": "success", "type": "boolean"},
		{"name": "instant", "type": "boolean"},
		{"name": "unresolved", "type": "boolean", "default": false}
	]
}`)

// SpellCastRow is one resolved, failed or abandoned cast.
type SpellCastRow struct {
	SourceGUID  string     `avro:"sourceGuid"`
	SourceName  string     `avro:"sourceName"`
	SourceFlags int64      `avro:"sourceFlags"`
	TargetGUID  *string    `avro:"targetGuid"`
	TargetName  *string    `avro:"targetName"`
	TargetFlags *int64     `avro:"targetFlags"`
	CastStart   *time.Time `avro:"castStart"`
	CastFinish  time.Time  `avro:"castFinish"`
	SpellID     int64      `avro:"spellId"`
	SpellSchool int32      `avro:"spellSchool"`
	Success     bool       `avro:"success"`
	Instant     bool       `avro:"instant"`
	Unresolved  bool       `avro:"unresolved"`
}

type castKey struct {
	source  string
	spellID int64
}

type pendingCast struct {
	row   SpellCastRow
	order int
}

// SpellCastGenerator correlates cast starts with their finish on the same
// (caster, spell). A second start before any finish means the first cast
// never resolved; it is written unsuccessful with Unresolved set, which sets
// it apart from an explicit SPELL_CAST_FAILED. A finish with no pending start
// is an instant cast.
type SpellCastGenerator struct {
	file    avroFile
	pending map[castKey]pendingCast
	seq     int
}

func NewSpellCastGenerator() *SpellCastGenerator {
	return &SpellCastGenerator{
		file:    avroFile{key: "spell_casts.avro", canonical: Events, schema: spellCastSchema},
		pending: make(map[castKey]pendingCast),
	}
}

func (g *SpellCastGenerator) InitializeWorkDir(dir string) error {
	return g.file.open(dir)
}

func (g *SpellCastGenerator) Handle(ev *wow.Event) error {
	if ev.Kind != wow.KindSpellCast || ev.Source == nil {
		return nil
	}
	cast := ev.SpellCast
	key := castKey{source: ev.Source.GUID, spellID: cast.Spell.ID}

	switch {
	case cast.Start:
		prev, had := g.pending[key]
		g.seq++
		g.pending[key] = pendingCast{
			order: g.seq,
			row: SpellCastRow{
				SourceGUID:  ev.Source.GUID,
				SourceName:  ev.Source.Name,
				SourceFlags: ev.Source.Flags,
				CastStart:   ptr(ev.Time),
				CastFinish:  ev.Time,
				SpellID:     cast.Spell.ID,
				SpellSchool: int32(cast.Spell.School),
			},
		}
		if had {
			prev.row.Unresolved = true
			return g.file.write(prev.row)
		}
	case cast.Finish:
		p, ok := g.pending[key]
		if ok {
			delete(g.pending, key)
		} else {
			p.row = SpellCastRow{
				SourceGUID:  ev.Source.GUID,
				SourceName:  ev.Source.Name,
				SourceFlags: ev.Source.Flags,
				SpellID:     cast.Spell.ID,
				SpellSchool: int32(cast.Spell.School),
				Instant:     true,
			}
		}
		p.row.CastFinish = ev.Time
		p.row.Success = cast.Success
		if ev.Dest != nil {
			p.row.TargetGUID = ptr(ev.Dest.GUID)
			p.row.TargetName = ptr(ev.Dest.Name)
			p.row.TargetFlags = ptr(ev.Dest.Flags)
		}
		return g.file.write(p.row)
	}
	return nil
}

// Finalize writes every cast still pending as unresolved, in start order.
func (g *SpellCastGenerator) Finalize() error {
	open := make([]pendingCast, 0, len(g.pending))
	for _, p := range g.pending {
		open = append(open, p)
	}
	sortByOrder(open, func(p pendingCast) int { return p.order })
	for _, p := range open {
		p.row.Unresolved = true
		if err := g.file.write(p.row); err != nil {
			return err
		}
	}
	clear(g.pending)
	return nil
}

// Pending returns the number of casts awaiting a finish.
func (g *SpellCastGenerator) Pending() int {
	return len(g.pending)
}

func (g *SpellCastGenerator) Reports() ([]*report.Report, error) {
	return g.file.reports()
}
