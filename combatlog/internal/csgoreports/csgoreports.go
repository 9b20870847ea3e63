// Package csgoreports derives reports from a decoded CS:GO demo.
package csgoreports

import (
	"github.com/telhawk-systems/telhawk-combatlog/combatlog/internal/codec"
	"github.com/telhawk-systems/telhawk-combatlog/combatlog/internal/demo"
	"github.com/telhawk-systems/telhawk-combatlog/combatlog/internal/report"
)

// Canonical report types.
const (
	GameEvents = 0
	Classes    = 1
)

var gameEventSchema = codec.MustSchema(`{
	"type": "record",
	"name": "csgo_game_event",
	"fields": [
		{"name": "tick", "type": "int"},
		{"name": "eventId", "type": "int"},
		{"name": "name", "type": "string"},
		{"name": "keys", "type": {"type": "map", "values": "string"}}
	]
}`)

// GameEventRow is one resolved game event.
type GameEventRow struct {
	Tick    int32             `avro:"tick"`
	EventID int32             `avro:"eventId"`
	Name    string            `avro:"name"`
	Keys    map[string]string `avro:"keys"`
}

// ClassRow is a server class with its flattened property names.
type ClassRow struct {
	ID     int      `json:"id"`
	Name   string   `json:"name"`
	DTName string   `json:"dt_name"`
	Props  []string `json:"props"`
}

// New returns the generators for a demo.
func New() *report.Composite[*demo.Demo] {
	return report.NewComposite[*demo.Demo](NewGameEventGenerator(), NewClassGenerator())
}

// GameEventGenerator writes every game event of the demo in tick order.
type GameEventGenerator struct {
	w *codec.AvroWriter
}

func NewGameEventGenerator() *GameEventGenerator {
	return &GameEventGenerator{}
}

func (g *GameEventGenerator) InitializeWorkDir(dir string) error {
	w, err := codec.NewAvroWriter(dir, gameEventSchema)
	if err != nil {
		return err
	}
	g.w = w
	return nil
}

func (g *GameEventGenerator) Handle(d *demo.Demo) error {
	if g.w == nil {
		return nil
	}
	for _, ev := range d.GameEvents {
		keys := ev.Keys
		if keys == nil {
			keys = map[string]string{}
		}
		if err := g.w.Write(GameEventRow{Tick: ev.Tick, EventID: ev.ID, Name: ev.Name, Keys: keys}); err != nil {
			return err
		}
	}
	return nil
}

func (g *GameEventGenerator) Finalize() error { return nil }

func (g *GameEventGenerator) Reports() ([]*report.Report, error) {
	if g.w == nil {
		return nil, nil
	}
	r, err := report.FromWriter("game_events.avro", GameEvents, g.w)
	g.w = nil
	if err != nil {
		return nil, err
	}
	return []*report.Report{r}, nil
}

// ClassGenerator writes the server class table. Demos without a data table
// produce an empty file.
type ClassGenerator struct {
	*report.Static[*demo.Demo]
}

func NewClassGenerator() *ClassGenerator {
	return &ClassGenerator{Static: report.NewStaticJSON[*demo.Demo]("classes.json", Classes)}
}

func (g *ClassGenerator) Handle(d *demo.Demo) error {
	if d.DataTable == nil {
		return nil
	}
	for _, c := range d.DataTable.Classes {
		row := ClassRow{ID: c.ID, Name: c.Name, DTName: c.DTName, Props: make([]string, 0, len(c.Props))}
		for _, p := range c.Props {
			row.Props = append(row.Props, p.Name)
		}
		g.Append(row)
	}
	return nil
}
