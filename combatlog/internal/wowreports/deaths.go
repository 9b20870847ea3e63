package wowreports

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/telhawk-systems/telhawk-combatlog/combatlog/internal/codec"
	"github.com/telhawk-systems/telhawk-combatlog/combatlog/internal/report"
	"github.com/telhawk-systems/telhawk-combatlog/combatlog/internal/wow"
)

// recapWindow bounds how much HP history is kept per unit for a death recap.
const recapWindow = 5 * time.Second

var deathSchema = codec.MustSchema(`{
	"type": "record",
	"name": "wow_death_events",
	"fields": [
		{"name": "eventId", "type": "long"},
		{"name": "guid", "type": "string"},
		{"name": "name", "type": "string"},
		{"name": "flags", "type": "long"},
		{"name": "tm", "type": {"type": "long", "logicalType": "timestamp-millis"}}
	]
}`)

var recapSchema = codec.MustSchema(`{
	"type": "record",
	"name": "wow_death_report_events",
	"fields": [
		{"name": "tm", "type": {"type": "long", "logicalType": "timestamp-millis"}},
		{"name": "diffMs", "type": "long"},
		{"name": "diffHp", "type": "int"},
		{"name": "spellId", "type": ["null", "long"], "default": null},
		{"name": "sourceGuid", "type": ["null", "string"], "default": null},
		{"name": "sourceName", "type": ["null", "string"], "default": null}
	]
}`)

// DeathRow is one unit death.
type DeathRow struct {
	EventID int64     `avro:"eventId"`
	GUID    string    `avro:"guid"`
	Name    string    `avro:"name"`
	Flags   int64     `avro:"flags"`
	Tm      time.Time `avro:"tm"`
}

// RecapRow is one HP change leading up to a death. DiffMs is negative for
// events before the death.
type RecapRow struct {
	Tm         time.Time `avro:"tm"`
	DiffMs     int64     `avro:"diffMs"`
	DiffHP     int32     `avro:"diffHp"`
	SpellID    *int64    `avro:"spellId"`
	SourceGUID *string   `avro:"sourceGuid"`
	SourceName *string   `avro:"sourceName"`
}

// DeathGenerator writes deaths.avro plus one <eventId>.avro recap per death
// holding the victim's HP changes from the preceding few seconds.
type DeathGenerator struct {
	dir     string
	file    avroFile
	counter int64
	history map[string][]RecapRow
	recaps  []*report.Report
}

func NewDeathGenerator() *DeathGenerator {
	return &DeathGenerator{
		file:    avroFile{key: "deaths.avro", canonical: Events, schema: deathSchema},
		history: make(map[string][]RecapRow),
	}
}

func (g *DeathGenerator) InitializeWorkDir(dir string) error {
	g.dir = dir
	return g.file.open(dir)
}

func (g *DeathGenerator) Handle(ev *wow.Event) error {
	if ev.Dest == nil {
		return nil
	}

	switch ev.Kind {
	case wow.KindUnitDied:
		if ev.UnitDied.Unconscious {
			return nil
		}
		if err := g.file.write(DeathRow{
			EventID: g.counter,
			GUID:    ev.Dest.GUID,
			Name:    ev.Dest.Name,
			Flags:   ev.Dest.Flags,
			Tm:      ev.Time,
		}); err != nil {
			return err
		}
		if err := g.writeRecap(g.counter, ev.Dest.GUID, ev.Time); err != nil {
			return err
		}
		g.counter++
	case wow.KindDamage:
		row := recapRow(ev)
		row.DiffHP = int32(-ev.Damage.Amount)
		if ev.Damage.Spell != nil {
			row.SpellID = ptr(ev.Damage.Spell.ID)
		}
		g.record(ev.Dest.GUID, row)
	case wow.KindHealing:
		row := recapRow(ev)
		row.DiffHP = int32(ev.Healing.Effective())
		row.SpellID = ptr(ev.Healing.Spell.ID)
		g.record(ev.Dest.GUID, row)
	}
	return nil
}

func recapRow(ev *wow.Event) RecapRow {
	row := RecapRow{Tm: ev.Time}
	if ev.Source != nil {
		row.SourceGUID = ptr(ev.Source.GUID)
		row.SourceName = ptr(ev.Source.Name)
	}
	return row
}

// record appends to guid's history and trims it to the recap window.
func (g *DeathGenerator) record(guid string, row RecapRow) {
	events := append(g.history[guid], row)
	for len(events) > 0 && events[len(events)-1].Tm.Sub(events[0].Tm) > recapWindow {
		events = events[1:]
	}
	g.history[guid] = events
}

func (g *DeathGenerator) writeRecap(eventID int64, guid string, deathTm time.Time) error {
	w, err := codec.NewAvroWriter(g.dir, recapSchema)
	if err != nil {
		return err
	}
	for _, row := range g.history[guid] {
		row.DiffMs = row.Tm.Sub(deathTm).Milliseconds()
		if err := w.Write(row); err != nil {
			return err
		}
	}
	delete(g.history, guid)

	r, err := report.FromWriter(fmt.Sprintf("%d.avro", eventID), DeathRecap, w)
	if err != nil {
		return err
	}
	g.recaps = append(g.recaps, r)
	return nil
}

// Finalize drops HP history of units that never died.
func (g *DeathGenerator) Finalize() error {
	if len(g.history) > 0 {
		slog.Debug("discarding wow hp history of surviving units", slog.Int("units", len(g.history)))
	}
	clear(g.history)
	return nil
}

func (g *DeathGenerator) Reports() ([]*report.Report, error) {
	out := g.recaps
	g.recaps = nil
	main, err := g.file.reports()
	if err != nil {
		_ = report.CloseAll(out)
		return nil, err
	}
	return append(out, main...), nil
}
