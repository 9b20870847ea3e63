package wowreports

import (
	"log/slog"
	"time"

	"github.com/telhawk-systems/telhawk-combatlog/combatlog/internal/codec"
	"github.com/telhawk-systems/telhawk-combatlog/combatlog/internal/report"
	"github.com/telhawk-systems/telhawk-combatlog/combatlog/internal/wow"
)

var encounterSchema = codec.MustSchema(`{
	"type": "record",
	"name": "wow_encounter_events",
	"fields": [
		{"name": "encounterName", "type": "string"},
		{"name": "startTm", "type": {"type": "long", "logicalType": "timestamp-millis"}},
		{"name": "endTm", "type": {"type": "long", "logicalType": "timestamp-millis"}}
	]
}`)

var resurrectionSchema = codec.MustSchema(`{
	"type": "record",
	"name": "wow_resurrection_events",
	"fields": [
		{"name": "guid", "type": "string"},
		{"name": "name", "type": "string"},
		{"name": "flags", "type": "long"},
		{"name": "tm", "type": {"type": "long", "logicalType": "timestamp-millis"}}
	]
}`)

// EncounterRow is one boss encounter.
type EncounterRow struct {
	EncounterName string    `avro:"encounterName"`
	StartTm       time.Time `avro:"startTm"`
	EndTm         time.Time `avro:"endTm"`
}

type pendingEncounter struct {
	row   EncounterRow
	order int
}

// EncounterGenerator pairs ENCOUNTER_START with ENCOUNTER_END by encounter
// id. Encounters still open at finalize end at the last event time.
type EncounterGenerator struct {
	file    avroFile
	pending map[int64]pendingEncounter
	seq     int
	last    time.Time
}

func NewEncounterGenerator() *EncounterGenerator {
	return &EncounterGenerator{
		file:    avroFile{key: "encounters.avro", canonical: Events, schema: encounterSchema},
		pending: make(map[int64]pendingEncounter),
	}
}

func (g *EncounterGenerator) InitializeWorkDir(dir string) error {
	return g.file.open(dir)
}

func (g *EncounterGenerator) Handle(ev *wow.Event) error {
	g.last = ev.Time
	switch ev.Kind {
	case wow.KindEncounterStart:
		g.seq++
		g.pending[ev.EncounterStart.ID] = pendingEncounter{
			order: g.seq,
			row:   EncounterRow{EncounterName: ev.EncounterStart.Name, StartTm: ev.Time},
		}
	case wow.KindEncounterEnd:
		p, ok := g.pending[ev.EncounterEnd.ID]
		if !ok {
			slog.Debug("wow encounter ended without start", slog.Int64("encounter_id", ev.EncounterEnd.ID))
			return nil
		}
		delete(g.pending, ev.EncounterEnd.ID)
		p.row.EncounterName = ev.EncounterEnd.Name
		p.row.EndTm = ev.Time
		return g.file.write(p.row)
	}
	return nil
}

func (g *EncounterGenerator) Finalize() error {
	open := make([]pendingEncounter, 0, len(g.pending))
	for _, p := range g.pending {
		open = append(open, p)
	}
	sortByOrder(open, func(p pendingEncounter) int { return p.order })
	for _, p := range open {
		p.row.EndTm = g.last
		if err := g.file.write(p.row); err != nil {
			return err
		}
	}
	clear(g.pending)
	return nil
}

func (g *EncounterGenerator) Reports() ([]*report.Report, error) {
	return g.file.reports()
}

// ResurrectionRow is one resurrected unit.
type ResurrectionRow struct {
	GUID  string    `avro:"guid"`
	Name  string    `avro:"name"`
	Flags int64     `avro:"flags"`
	Tm    time.Time `avro:"tm"`
}

// ResurrectionGenerator writes every SPELL_RESURRECT target.
type ResurrectionGenerator struct {
	file avroFile
}

func NewResurrectionGenerator() *ResurrectionGenerator {
	return &ResurrectionGenerator{
		file: avroFile{key: "resurrections.avro", canonical: Events, schema: resurrectionSchema},
	}
}

func (g *ResurrectionGenerator) InitializeWorkDir(dir string) error {
	return g.file.open(dir)
}

func (g *ResurrectionGenerator) Handle(ev *wow.Event) error {
	if ev.Kind != wow.KindResurrect || ev.Dest == nil {
		return nil
	}
	return g.file.write(ResurrectionRow{GUID: ev.Dest.GUID, Name: ev.Dest.Name, Flags: ev.Dest.Flags, Tm: ev.Time})
}

func (g *ResurrectionGenerator) Finalize() error { return nil }

func (g *ResurrectionGenerator) Reports() ([]*report.Report, error) {
	return g.file.reports()
}
