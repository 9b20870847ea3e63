package wowreports

import (
	"maps"
	"slices"
	"strings"
	"time"

	"github.com/telhawk-systems/telhawk-combatlog/combatlog/internal/agg"
	"github.com/telhawk-systems/telhawk-combatlog/combatlog/internal/codec"
	"github.com/telhawk-systems/telhawk-combatlog/combatlog/internal/report"
	"github.com/telhawk-systems/telhawk-combatlog/combatlog/internal/wow"
)

const timelineBucket = 5 * time.Second

var timelineSchema = codec.MustSchema(`{
	"type": "record",
	"name": "wow_stat_timeline",
	"fields": [
		{"name": "guid", "type": "string"},
		{"name": "tm", "type": "long"},
		{"name": "value", "type": "double"}
	]
}`)

var summarySchema = codec.MustSchema(`{
	"type": "record",
	"name": "wow_stat_summary",
	"fields": [
		{"name": "guid", "type": "string"},
		{"name": "damageDealt", "type": "long"},
		{"name": "damageReceived", "type": "long"},
		{"name": "heals", "type": "long"}
	]
}`)

// TimelineRow is one unit's per-second rate over a bucket. Tm is the bucket
// start in seconds from the match start.
type TimelineRow struct {
	GUID  string  `avro:"guid"`
	Tm    int64   `avro:"tm"`
	Value float64 `avro:"value"`
}

// SummaryRow is one unit's match totals.
type SummaryRow struct {
	GUID           string `avro:"guid"`
	DamageDealt    int64  `avro:"damageDealt"`
	DamageReceived int64  `avro:"damageReceived"`
	Heals          int64  `avro:"heals"`
}

// OwnerLookup resolves a pet or guardian to the unit that owns it.
type OwnerLookup interface {
	Owner(guid string) (string, bool)
}

type timeline struct {
	start   time.Time
	file    avroFile
	windows map[string]*agg.SlidingWindow[float64]
}

func newTimeline(key string, canonical int, start time.Time) *timeline {
	return &timeline{
		start:   start,
		file:    avroFile{key: key, canonical: canonical, schema: timelineSchema},
		windows: make(map[string]*agg.SlidingWindow[float64]),
	}
}

func (t *timeline) add(guid string, tm time.Time, value float64) error {
	w, ok := t.windows[guid]
	if !ok {
		w = agg.NewSlidingWindow[float64](agg.PerUnitTime(time.Second), timelineBucket, t.start)
		t.windows[guid] = w
	}
	if out, ok := w.Handle(agg.Input[float64]{Time: tm, Value: value}); ok {
		return t.write(guid, out)
	}
	return nil
}

func (t *timeline) write(guid string, out agg.Output[float64]) error {
	secs := int64(out.Start.Sub(t.start) / time.Second)
	bucket := int64(timelineBucket / time.Second)
	return t.file.write(TimelineRow{GUID: guid, Tm: secs / bucket * bucket, Value: out.Value})
}

func (t *timeline) flush() error {
	for _, guid := range slices.Sorted(maps.Keys(t.windows)) {
		if out, ok := t.windows[guid].Flush(); ok {
			if err := t.write(guid, out); err != nil {
				return err
			}
		}
	}
	return nil
}

// StatGenerator accumulates damage dealt, damage received and effective
// healing per player. Pets and guardians are folded into their owner; other
// non-player units are ignored.
type StatGenerator struct {
	owners  OwnerLookup
	dps     *timeline
	drps    *timeline
	hps     *timeline
	summary avroFile
	totals  map[string]*SummaryRow
}

// NewStatGenerator anchors every timeline at start. owners may be nil.
func NewStatGenerator(start time.Time, owners OwnerLookup) *StatGenerator {
	return &StatGenerator{
		owners:  owners,
		dps:     newTimeline("dps.avro", StatDps, start),
		drps:    newTimeline("drps.avro", StatDrps, start),
		hps:     newTimeline("hps.avro", StatHps, start),
		summary: avroFile{key: "summary.avro", canonical: StatSummary, schema: summarySchema},
		totals:  make(map[string]*SummaryRow),
	}
}

func (g *StatGenerator) InitializeWorkDir(dir string) error {
	for _, f := range []*avroFile{&g.dps.file, &g.drps.file, &g.hps.file, &g.summary} {
		if err := f.open(dir); err != nil {
			return err
		}
	}
	return nil
}

// player maps guid to the player it counts for.
func (g *StatGenerator) player(guid string) (string, bool) {
	if g.owners != nil {
		if owner, ok := g.owners.Owner(guid); ok {
			return owner, true
		}
	}
	if strings.HasPrefix(guid, "Player-") {
		return guid, true
	}
	return "", false
}

func (g *StatGenerator) total(guid string) *SummaryRow {
	s, ok := g.totals[guid]
	if !ok {
		s = &SummaryRow{GUID: guid}
		g.totals[guid] = s
	}
	return s
}

func (g *StatGenerator) Handle(ev *wow.Event) error {
	switch ev.Kind {
	case wow.KindDamage:
		amount := ev.Damage.Amount
		if ev.Source != nil {
			if p, ok := g.player(ev.Source.GUID); ok {
				g.total(p).DamageDealt += amount
				if err := g.dps.add(p, ev.Time, float64(amount)); err != nil {
					return err
				}
			}
		}
		if ev.Dest != nil {
			if p, ok := g.player(ev.Dest.GUID); ok {
				g.total(p).DamageReceived += amount
				if err := g.drps.add(p, ev.Time, float64(amount)); err != nil {
					return err
				}
			}
		}
	case wow.KindHealing:
		if ev.Source == nil {
			return nil
		}
		if p, ok := g.player(ev.Source.GUID); ok {
			amount := ev.Healing.Effective()
			g.total(p).Heals += amount
			return g.hps.add(p, ev.Time, float64(amount))
		}
	}
	return nil
}

// Finalize flushes every open window and writes the summary rows.
func (g *StatGenerator) Finalize() error {
	for _, t := range []*timeline{g.dps, g.drps, g.hps} {
		if err := t.flush(); err != nil {
			return err
		}
	}
	for _, guid := range slices.Sorted(maps.Keys(g.totals)) {
		if err := g.summary.write(*g.totals[guid]); err != nil {
			return err
		}
	}
	return nil
}

func (g *StatGenerator) Reports() ([]*report.Report, error) {
	var out []*report.Report
	for _, f := range []*avroFile{&g.dps.file, &g.drps.file, &g.hps.file, &g.summary} {
		r, err := f.reports()
		if err != nil {
			_ = report.CloseAll(out)
			return nil, err
		}
		out = append(out, r...)
	}
	return out, nil
}
