// Package wowreports turns a World of Warcraft event stream into the match
// report files: characters, events (deaths, auras, casts, encounters) and
// damage/healing stats.
package wowreports

import (
	"cmp"
	"slices"
	"time"

	"github.com/telhawk-systems/telhawk-combatlog/combatlog/internal/codec"
	"github.com/telhawk-systems/telhawk-combatlog/combatlog/internal/report"
	"github.com/telhawk-systems/telhawk-combatlog/combatlog/internal/wow"
)

// Canonical report types stored under canonical=<type> in the partition.
const (
	MatchCharacters  = 0
	MatchCombatants  = 1
	Events           = 2
	StatSummary      = 3
	StatDps          = 4
	StatHps          = 5
	StatDrps         = 6
	CharacterLoadout = 7
	DeathRecap       = 8
)

// New builds every WoW generator. start anchors the stat timelines. The
// character generator runs first so ownership discovered on an event already
// applies to the stats of that same event.
func New(start time.Time) *report.Composite[*wow.Event] {
	characters := NewCharacterGenerator()
	return report.NewComposite[*wow.Event](
		characters,
		NewDeathGenerator(),
		NewAuraGenerator(),
		NewAuraBreakGenerator(),
		NewResurrectionGenerator(),
		NewEncounterGenerator(),
		NewSpellCastGenerator(),
		NewStatGenerator(start, characters),
	)
}

// avroFile is one Avro report file created in the work dir.
type avroFile struct {
	key       string
	canonical int
	schema    codec.Schema
	w         *codec.AvroWriter
}

func (f *avroFile) open(dir string) error {
	w, err := codec.NewAvroWriter(dir, f.schema)
	if err != nil {
		return err
	}
	f.w = w
	return nil
}

func (f *avroFile) write(row any) error {
	if f.w == nil {
		return nil
	}
	return f.w.Write(row)
}

// reports hands out the file once; later calls return nothing.
func (f *avroFile) reports() ([]*report.Report, error) {
	if f.w == nil {
		return nil, nil
	}
	w := f.w
	f.w = nil
	r, err := report.FromWriter(f.key, f.canonical, w)
	if err != nil {
		return nil, err
	}
	return []*report.Report{r}, nil
}

type auraTypeRow struct {
	Type string `avro:"type"`
}

const auraTypeSchema = `{"type": "record", "name": "WowAuraType", "fields": [{"name": "type", "type": "string"}]}`

func ptr[T any](v T) *T {
	return &v
}

func sortByOrder[T any](items []T, order func(T) int) {
	slices.SortFunc(items, func(a, b T) int { return cmp.Compare(order(a), order(b)) })
}
