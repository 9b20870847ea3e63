package wowreports

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/telhawk-systems/telhawk-combatlog/combatlog/internal/codec"
	"github.com/telhawk-systems/telhawk-combatlog/combatlog/internal/report"
	"github.com/telhawk-systems/telhawk-combatlog/combatlog/internal/wow"
)

var t0 = time.Date(2021, 4, 21, 19, 0, 0, 0, time.UTC)

var (
	mage   = &wow.Unit{GUID: "Player-1-0A", Name: "Mage-Realm", Flags: 0x511}
	priest = &wow.Unit{GUID: "Player-1-0B", Name: "Priest-Realm", Flags: 0x512}
	wolf   = &wow.Unit{GUID: "Pet-0-1-2-3-4-5", Name: "Wolf", Flags: 0x1111}
	boss   = &wow.Unit{GUID: "Creature-0-1-2-3-4-5", Name: "Boss", Flags: 0x10a48}
)

var fireball = wow.Spell{ID: 133, Name: "Fireball", School: 4}

func at(sec float64) time.Time {
	return t0.Add(time.Duration(sec * float64(time.Second)))
}

func castStart(tm time.Time, src *wow.Unit, spell wow.Spell) *wow.Event {
	return &wow.Event{Time: tm, Kind: wow.KindSpellCast, Source: src, SpellCast: &wow.SpellCast{Spell: spell, Start: true}}
}

func castFinish(tm time.Time, src, dst *wow.Unit, spell wow.Spell, success bool) *wow.Event {
	return &wow.Event{Time: tm, Kind: wow.KindSpellCast, Source: src, Dest: dst, SpellCast: &wow.SpellCast{Spell: spell, Finish: true, Success: success}}
}

func damage(tm time.Time, src, dst *wow.Unit, amount int64) *wow.Event {
	return &wow.Event{Time: tm, Kind: wow.KindDamage, Source: src, Dest: dst, Damage: &wow.Damage{Spell: &fireball, Amount: amount}}
}

func heal(tm time.Time, src, dst *wow.Unit, amount, overheal int64) *wow.Event {
	return &wow.Event{Time: tm, Kind: wow.KindHealing, Source: src, Dest: dst, Healing: &wow.Healing{Spell: wow.Spell{ID: 2061}, Amount: amount, Overheal: overheal}}
}

func aura(tm time.Time, dst *wow.Unit, spellID int64, applied bool) *wow.Event {
	return &wow.Event{Time: tm, Kind: wow.KindSpellAura, Source: priest, Dest: dst, SpellAura: &wow.SpellAura{Spell: wow.Spell{ID: spellID}, AuraType: wow.AuraBuff, Applied: applied}}
}

// run drives g over events and returns its reports keyed by name.
func run(t *testing.T, g report.Generator[*wow.Event], events ...*wow.Event) map[string]*report.Report {
	t.Helper()
	require.NoError(t, g.InitializeWorkDir(t.TempDir()))
	for _, ev := range events {
		require.NoError(t, g.Handle(ev))
	}
	require.NoError(t, g.Finalize())

	reports, err := g.Reports()
	require.NoError(t, err)
	t.Cleanup(func() { _ = report.CloseAll(reports) })

	byKey := make(map[string]*report.Report, len(reports))
	for _, r := range reports {
		byKey[r.KeyName] = r
	}
	return byKey
}

func decode[T any](t *testing.T, r *report.Report) []T {
	t.Helper()
	require.NotNil(t, r)
	rows, err := codec.DecodeAvro[T](r.File)
	require.NoError(t, err)
	return rows
}

func TestSpellCastCorrelation(t *testing.T) {
	g := NewSpellCastGenerator()
	reports := run(t, g,
		castStart(at(0), mage, fireball),
		castStart(at(1), mage, fireball),
		castFinish(at(3), mage, boss, fireball, true),
	)
	assert.Zero(t, g.Pending())

	rows := decode[SpellCastRow](t, reports["spell_casts.avro"])
	require.Len(t, rows, 2)

	assert.False(t, rows[0].Success)
	assert.False(t, rows[0].Instant)
	assert.True(t, rows[0].Unresolved, "restarted cast is unresolved")
	require.NotNil(t, rows[0].CastStart)
	assert.True(t, at(0).Equal(*rows[0].CastStart))
	assert.Nil(t, rows[0].TargetGUID)

	assert.True(t, rows[1].Success)
	assert.False(t, rows[1].Instant)
	assert.False(t, rows[1].Unresolved)
	assert.True(t, at(1).Equal(*rows[1].CastStart))
	assert.True(t, at(3).Equal(rows[1].CastFinish))
	require.NotNil(t, rows[1].TargetGUID)
	assert.Equal(t, boss.GUID, *rows[1].TargetGUID)
}

func TestSpellCastInstantAndFinalize(t *testing.T) {
	frostbolt := wow.Spell{ID: 116, Name: "Frostbolt", School: 16}
	g := NewSpellCastGenerator()
	reports := run(t, g,
		castFinish(at(0), mage, boss, fireball, false),
		castStart(at(1), mage, frostbolt),
	)
	assert.Zero(t, g.Pending())

	rows := decode[SpellCastRow](t, reports["spell_casts.avro"])
	require.Len(t, rows, 2)
	assert.True(t, rows[0].Instant)
	assert.Nil(t, rows[0].CastStart)
	assert.False(t, rows[0].Success)
	assert.False(t, rows[0].Unresolved, "an explicit failure is resolved")

	assert.Equal(t, int64(116), rows[1].SpellID)
	assert.False(t, rows[1].Success)
	assert.False(t, rows[1].Instant)
	assert.True(t, rows[1].Unresolved, "pending at finalize")
}

func TestAuraPairing(t *testing.T) {
	reports := run(t, NewAuraGenerator(),
		aura(at(0), mage, 17, true),
		aura(at(1), priest, 17, true),
		aura(at(2), mage, 99, false),
		aura(at(4), mage, 17, false),
		damage(at(9), boss, mage, 1),
	)

	rows := decode[AuraRow](t, reports["auras.avro"])
	require.Len(t, rows, 2)
	assert.Equal(t, mage.GUID, rows[0].TargetGUID)
	assert.True(t, at(4).Equal(rows[0].RemovedTm))
	assert.Equal(t, "BUFF", rows[0].AuraType.Type)

	assert.Equal(t, priest.GUID, rows[1].TargetGUID)
	assert.True(t, at(9).Equal(rows[1].RemovedTm), "open aura closes at last event")
}

func TestAuraReappliedClosesEarlierWindow(t *testing.T) {
	reports := run(t, NewAuraGenerator(),
		aura(at(0), mage, 17, true),
		aura(at(2), mage, 17, true),
		aura(at(5), mage, 17, false),
	)

	rows := decode[AuraRow](t, reports["auras.avro"])
	require.Len(t, rows, 2)
	assert.True(t, at(0).Equal(rows[0].AppliedTm))
	assert.True(t, at(2).Equal(rows[0].RemovedTm))
	assert.True(t, at(2).Equal(rows[1].AppliedTm))
	assert.True(t, at(5).Equal(rows[1].RemovedTm))
}

func TestDeathRecap(t *testing.T) {
	reports := run(t, NewDeathGenerator(),
		damage(at(0), boss, mage, 100),
		damage(at(3), boss, mage, 200),
		heal(at(5.5), priest, mage, 500, 100),
		damage(at(7), boss, mage, 300),
		damage(at(7), boss, priest, 50),
		&wow.Event{Time: at(8), Kind: wow.KindUnitDied, Dest: mage, UnitDied: &wow.UnitDied{}},
		&wow.Event{Time: at(9), Kind: wow.KindUnitDied, Dest: priest, UnitDied: &wow.UnitDied{Unconscious: true}},
	)

	deaths := decode[DeathRow](t, reports["deaths.avro"])
	require.Len(t, deaths, 1)
	assert.Equal(t, DeathRow{EventID: 0, GUID: mage.GUID, Name: mage.Name, Flags: mage.Flags, Tm: deaths[0].Tm}, deaths[0])
	assert.True(t, at(8).Equal(deaths[0].Tm))

	recap := reports["0.avro"]
	require.NotNil(t, recap)
	assert.Equal(t, DeathRecap, recap.CanonicalType)

	rows := decode[RecapRow](t, recap)
	require.Len(t, rows, 3)
	assert.Equal(t, int32(-200), rows[0].DiffHP)
	assert.Equal(t, int64(-5000), rows[0].DiffMs)
	assert.Equal(t, int32(400), rows[1].DiffHP)
	assert.Equal(t, int32(-300), rows[2].DiffHP)
	assert.Equal(t, int64(-1000), rows[2].DiffMs)
	require.NotNil(t, rows[2].SourceGUID)
	assert.Equal(t, boss.GUID, *rows[2].SourceGUID)
}

func TestEncountersAndResurrections(t *testing.T) {
	start := func(tm time.Time, id int64) *wow.Event {
		return &wow.Event{Time: tm, Kind: wow.KindEncounterStart, EncounterStart: &wow.Encounter{ID: id, Name: "Shriekwing"}}
	}
	end := func(tm time.Time, id int64) *wow.Event {
		return &wow.Event{Time: tm, Kind: wow.KindEncounterEnd, EncounterEnd: &wow.Encounter{ID: id, Name: "Shriekwing"}}
	}

	reports := run(t, NewEncounterGenerator(), start(at(0), 1), end(at(60), 1), start(at(70), 2), damage(at(80), boss, mage, 1))
	rows := decode[EncounterRow](t, reports["encounters.avro"])
	require.Len(t, rows, 2)
	assert.True(t, at(60).Equal(rows[0].EndTm))
	assert.True(t, at(80).Equal(rows[1].EndTm))

	res := run(t, NewResurrectionGenerator(),
		&wow.Event{Time: at(1), Kind: wow.KindResurrect, Source: priest, Dest: mage, Resurrect: &wow.Spell{ID: 2006}})
	resRows := decode[ResurrectionRow](t, res["resurrections.avro"])
	require.Len(t, resRows, 1)
	assert.Equal(t, mage.GUID, resRows[0].GUID)
}

func TestStatsFoldPetsIntoOwner(t *testing.T) {
	g := New(t0)
	reports := run(t, g,
		&wow.Event{Time: at(0), Kind: wow.KindSpellSummon, Source: mage, Dest: wolf, SpellSummon: &wow.Spell{ID: 883}},
		damage(at(1), mage, boss, 1000),
		damage(at(2), wolf, boss, 500),
		damage(at(3), boss, priest, 250),
		heal(at(4), priest, priest, 300, 50),
		damage(at(6), mage, boss, 2000),
	)

	summary := decode[SummaryRow](t, reports["summary.avro"])
	require.Len(t, summary, 2)
	assert.Equal(t, SummaryRow{GUID: mage.GUID, DamageDealt: 3500}, summary[0])
	assert.Equal(t, SummaryRow{GUID: priest.GUID, DamageReceived: 250, Heals: 250}, summary[1])

	dps := decode[TimelineRow](t, reports["dps.avro"])
	require.Len(t, dps, 2)
	assert.Equal(t, TimelineRow{GUID: mage.GUID, Tm: 0, Value: 300}, dps[0])
	assert.Equal(t, TimelineRow{GUID: mage.GUID, Tm: 5, Value: 400}, dps[1])

	hps := decode[TimelineRow](t, reports["hps.avro"])
	require.Len(t, hps, 1)
	assert.Equal(t, 50.0, hps[0].Value)

	chars := decode[CharacterRow](t, reports["characters.avro"])
	var pet *CharacterRow
	for i := range chars {
		if chars[i].UnitGUID == wolf.GUID {
			pet = &chars[i]
		}
	}
	require.NotNil(t, pet)
	require.NotNil(t, pet.OwnerGUID)
	assert.Equal(t, mage.GUID, *pet.OwnerGUID)
}

func TestNewProducesEveryReport(t *testing.T) {
	reports := run(t, New(t0), damage(at(1), mage, boss, 10))

	for _, key := range []string{
		"characters.avro", "deaths.avro", "auras.avro", "aura_breaks.avro", "resurrections.avro",
		"encounters.avro", "spell_casts.avro", "dps.avro", "drps.avro", "hps.avro", "summary.avro",
	} {
		assert.Contains(t, reports, key)
	}
	assert.Equal(t, StatDps, reports["dps.avro"].CanonicalType)
	assert.Equal(t, Events, reports["auras.avro"].CanonicalType)
}
