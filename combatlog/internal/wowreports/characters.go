package wowreports

import (
	"maps"
	"slices"

	"github.com/telhawk-systems/telhawk-combatlog/combatlog/internal/codec"
	"github.com/telhawk-systems/telhawk-combatlog/combatlog/internal/report"
	"github.com/telhawk-systems/telhawk-combatlog/combatlog/internal/wow"
)

var characterSchema = codec.MustSchema(`{
	"type": "record",
	"name": "wow_character_summary",
	"fields": [
		{"name": "unitGuid", "type": "string"},
		{"name": "unitName", "type": "string"},
		{"name": "flags", "type": {"type": "array", "items": "long"}},
		{"name": "ownerGuid", "type": ["null", "string"], "default": null}
	]
}`)

// CharacterRow is one unit seen in the match.
type CharacterRow struct {
	UnitGUID  string  `avro:"unitGuid"`
	UnitName  string  `avro:"unitName"`
	Flags     []int64 `avro:"flags"`
	OwnerGUID *string `avro:"ownerGuid"`
}

// CharacterGenerator tracks every source and destination unit and which
// player owns pets and guardians.
type CharacterGenerator struct {
	file      avroFile
	chars map[string]*character
	order []string
}

type character struct {
	name  string
	flags map[int64]struct{}
	owner string
}

func NewCharacterGenerator() *CharacterGenerator {
	return &CharacterGenerator{
		file:  avroFile{key: "characters.avro", canonical: MatchCharacters, schema: characterSchema},
		chars: make(map[string]*character),
	}
}

func (g *CharacterGenerator) InitializeWorkDir(dir string) error {
	return g.file.open(dir)
}

func (g *CharacterGenerator) Handle(ev *wow.Event) error {
	g.track(ev.Source)
	g.track(ev.Dest)

	// Summoning is an implicit ownership event.
	if ev.Kind == wow.KindSpellSummon && ev.Source != nil && ev.Dest != nil {
		g.markOwner(ev.Dest.GUID, ev.Source.GUID)
	}
	if ev.Advanced.HasOwner() {
		g.markOwner(ev.Advanced.UnitGUID, ev.Advanced.OwnerGUID)
	}
	return nil
}

func (g *CharacterGenerator) track(u *wow.Unit) {
	if u == nil {
		return
	}
	c, ok := g.chars[u.GUID]
	if !ok {
		c = &character{name: u.Name, flags: make(map[int64]struct{})}
		g.chars[u.GUID] = c
		g.order = append(g.order, u.GUID)
	}
	c.flags[u.Flags] = struct{}{}
}

func (g *CharacterGenerator) markOwner(unit, owner string) {
	if c, ok := g.chars[unit]; ok {
		c.owner = owner
	}
}

// Owner returns the guid of the unit that owns guid, if one is known.
func (g *CharacterGenerator) Owner(guid string) (string, bool) {
	c, ok := g.chars[guid]
	if !ok || c.owner == "" {
		return "", false
	}
	return c.owner, true
}

func (g *CharacterGenerator) Finalize() error {
	for _, guid := range g.order {
		c := g.chars[guid]
		row := CharacterRow{
			UnitGUID: guid,
			UnitName: c.name,
			Flags:    slices.Sorted(maps.Keys(c.flags)),
		}
		if c.owner != "" {
			row.OwnerGUID = &c.owner
		}
		if err := g.file.write(row); err != nil {
			return err
		}
	}
	return nil
}

func (g *CharacterGenerator) Reports() ([]*report.Report, error) {
	return g.file.reports()
}
