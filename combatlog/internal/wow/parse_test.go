package wow

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var ref = time.Date(2021, 1, 1, 0, 0, 0, 0, time.UTC)

const (
	tank = `Player-1-0A,"Tank-Realm",0x511,0x0`
	boss = `Creature-0-1-2-3-4-5,"Boss, the Big",0x10a48,0x0`
	none = `0000000000000000,nil,0x80000000,0x80000000`
	adv  = `Player-1-0A,0000000000000000,95000,100000,0,0,0,0,0,100,100,0,-100.5,200.25,1234,1.5,60`
)

func line(body string) string {
	return "4/21 19:20:25.123  " + body
}

func TestParseLine(t *testing.T) {
	tm := time.Date(2021, 4, 21, 19, 20, 25, 123_000_000, time.UTC)

	t.Run("spell damage with advanced params", func(t *testing.T) {
		ev, err := ParseLine(line(`SPELL_DAMAGE,`+tank+`,`+boss+`,133,"Fireball",0x4,`+adv+`,1500,1400,-1,4,0,0,0,1,nil,nil,nil`), ref)
		require.NoError(t, err)
		assert.Equal(t, tm, ev.Time)
		assert.Equal(t, KindDamage, ev.Kind)
		require.NotNil(t, ev.Dest)
		assert.Equal(t, "Boss, the Big", ev.Dest.Name)
		assert.Equal(t, int64(0x511), ev.Source.Flags)
		require.NotNil(t, ev.Damage.Spell)
		assert.Equal(t, Spell{ID: 133, Name: "Fireball", School: 4}, *ev.Damage.Spell)
		assert.Equal(t, int64(1500), ev.Damage.Amount)
		assert.Equal(t, int64(0), ev.Damage.Overkill)
		assert.True(t, ev.Damage.Critical)
		require.NotNil(t, ev.Advanced)
		assert.Equal(t, int64(95000), ev.Advanced.CurrentHP)
		assert.Equal(t, -100.5, ev.Advanced.PositionX)
		assert.Equal(t, int64(60), ev.Advanced.Level)
		assert.False(t, ev.Advanced.HasOwner())
	})

	t.Run("swing damage", func(t *testing.T) {
		ev, err := ParseLine(line(`SWING_DAMAGE,`+boss+`,`+tank+`,250,-1,1,0,0,0,nil,nil,nil,nil`), ref)
		require.NoError(t, err)
		assert.Equal(t, KindDamage, ev.Kind)
		assert.Nil(t, ev.Damage.Spell)
		assert.Nil(t, ev.Advanced)
		assert.Equal(t, int64(250), ev.Damage.Amount)
		assert.False(t, ev.Damage.Critical)
	})

	t.Run("heal with base amount", func(t *testing.T) {
		ev, err := ParseLine(line(`SPELL_HEAL,`+tank+`,`+tank+`,2061,"Flash Heal",0x2,`+adv+`,1000,1000,300,0,1`), ref)
		require.NoError(t, err)
		assert.Equal(t, KindHealing, ev.Kind)
		assert.Equal(t, int64(300), ev.Healing.Overheal)
		assert.Equal(t, int64(700), ev.Healing.Effective())
		assert.True(t, ev.Healing.Critical)
	})

	t.Run("heal without base amount", func(t *testing.T) {
		ev, err := ParseLine(line(`SPELL_PERIODIC_HEAL,`+tank+`,`+tank+`,774,"Rejuvenation",0x8,1000,1200,0,nil`), ref)
		require.NoError(t, err)
		assert.Equal(t, int64(1200), ev.Healing.Overheal)
		assert.Equal(t, int64(0), ev.Healing.Effective())
	})

	t.Run("cast start and success", func(t *testing.T) {
		ev, err := ParseLine(line(`SPELL_CAST_START,`+tank+`,`+none+`,133,"Fireball",0x4`), ref)
		require.NoError(t, err)
		assert.Equal(t, KindSpellCast, ev.Kind)
		assert.True(t, ev.SpellCast.Start)
		assert.Nil(t, ev.Dest)

		ev, err = ParseLine(line(`SPELL_CAST_SUCCESS,`+tank+`,`+boss+`,133,"Fireball",0x4,`+adv), ref)
		require.NoError(t, err)
		assert.True(t, ev.SpellCast.Finish)
		assert.True(t, ev.SpellCast.Success)
		assert.NotNil(t, ev.Advanced)
	})

	t.Run("cast failed", func(t *testing.T) {
		ev, err := ParseLine(line(`SPELL_CAST_FAILED,`+tank+`,`+none+`,133,"Fireball",0x4,"Interrupted"`), ref)
		require.NoError(t, err)
		assert.False(t, ev.SpellCast.Success)
		assert.Equal(t, "Interrupted", ev.SpellCast.FailedType)
	})

	t.Run("aura applied", func(t *testing.T) {
		ev, err := ParseLine(line(`SPELL_AURA_APPLIED,`+tank+`,`+tank+`,17,"Power Word: Shield",0x2,BUFF,5000`), ref)
		require.NoError(t, err)
		assert.Equal(t, KindSpellAura, ev.Kind)
		assert.True(t, ev.SpellAura.Applied)
		assert.Equal(t, AuraBuff, ev.SpellAura.AuraType)
	})

	t.Run("aura broken by spell", func(t *testing.T) {
		ev, err := ParseLine(line(`SPELL_AURA_BROKEN_SPELL,`+tank+`,`+boss+`,118,"Polymorph",0x40,12345,"Flame Shock",0x4,DEBUFF`), ref)
		require.NoError(t, err)
		assert.Equal(t, KindAuraBreak, ev.Kind)
		assert.Equal(t, int64(118), ev.AuraBreak.Aura.ID)
		require.NotNil(t, ev.AuraBreak.Spell)
		assert.Equal(t, int64(12345), ev.AuraBreak.Spell.ID)
		assert.Equal(t, AuraDebuff, ev.AuraBreak.AuraType)
	})

	t.Run("unit died", func(t *testing.T) {
		ev, err := ParseLine(line(`UNIT_DIED,`+none+`,`+tank+`,0`), ref)
		require.NoError(t, err)
		assert.Equal(t, KindUnitDied, ev.Kind)
		assert.Nil(t, ev.Source)
		assert.Equal(t, "Player-1-0A", ev.Dest.GUID)
		assert.False(t, ev.UnitDied.Unconscious)
	})

	t.Run("summon and resurrect", func(t *testing.T) {
		ev, err := ParseLine(line(`SPELL_SUMMON,`+tank+`,Pet-0-1-2-3-4-5,"Wolf",0x1111,0x0,883,"Call Pet 1",0x1`), ref)
		require.NoError(t, err)
		assert.Equal(t, KindSpellSummon, ev.Kind)
		assert.Equal(t, int64(883), ev.SpellSummon.ID)

		ev, err = ParseLine(line(`SPELL_RESURRECT,`+tank+`,`+tank+`,2006,"Resurrection",0x2`), ref)
		require.NoError(t, err)
		assert.Equal(t, KindResurrect, ev.Kind)
	})

	t.Run("encounters", func(t *testing.T) {
		ev, err := ParseLine(line(`ENCOUNTER_START,2398,"Shriekwing",16,20,2296`), ref)
		require.NoError(t, err)
		assert.Equal(t, KindEncounterStart, ev.Kind)
		assert.Equal(t, Encounter{ID: 2398, Name: "Shriekwing", Difficulty: 16, GroupSize: 20, InstanceID: 2296}, *ev.EncounterStart)

		ev, err = ParseLine(line(`ENCOUNTER_END,2398,"Shriekwing",16,20,1,300000`), ref)
		require.NoError(t, err)
		assert.Equal(t, KindEncounterEnd, ev.Kind)
		assert.True(t, ev.EncounterEnd.Success)
	})

	t.Run("version header", func(t *testing.T) {
		ev, err := ParseLine(line(`COMBAT_LOG_VERSION,20,ADVANCED_LOG_ENABLED,1,BUILD_VERSION,9.0.5,PROJECT_ID,1`), ref)
		require.NoError(t, err)
		assert.Equal(t, &Version{Version: 20, Advanced: true, Build: "9.0.5"}, ev.Version)
	})
}

func TestParseLineErrors(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		wantErr error
	}{
		{"no separator", "4/21 19:20:25.123 SPELL_DAMAGE", ErrMalformedLine},
		{"bad date", "April 19:20:25.123  UNIT_DIED", ErrMalformedLine},
		{"unknown event", line(`ZONE_CHANGE,2296,"Castle Nathria",16`), ErrUnknownEvent},
		{"unknown suffix", line(`SPELL_ENERGIZE,` + tank + `,` + tank + `,1,"x",0x1,10,0,0,100`), ErrUnknownEvent},
		{"too few base params", line(`SPELL_DAMAGE,Player-1-0A,"Tank"`), ErrMalformedLine},
		{"short damage suffix", line(`SWING_DAMAGE,` + boss + `,` + tank + `,250`), ErrMalformedLine},
		{"bad spell id", line(`SPELL_CAST_START,` + tank + `,` + none + `,abc,"x",0x1`), ErrMalformedLine},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseLine(tt.input, ref)
			assert.ErrorIs(t, err, tt.wantErr)
		})
	}
}

func TestParseTimestamp(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  time.Time
	}{
		{"no year", "4/21 19:20:25.123", time.Date(2021, 4, 21, 19, 20, 25, 123_000_000, time.UTC)},
		{"year and offset", "4/21/2024 19:20:25.5-4", time.Date(2024, 4, 21, 23, 20, 25, 500_000_000, time.UTC)},
		{"positive offset", "12/1/2023 01:00:00.000+2", time.Date(2023, 11, 30, 23, 0, 0, 0, time.UTC)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := parseTimestamp(tt.input, ref)
			require.NoError(t, err)
			assert.True(t, tt.want.Equal(got), "got %s", got)
		})
	}
}

func TestSplitFields(t *testing.T) {
	got := splitFields(`COMBATANT_INFO,Player-1,1,[(1,2),(3,4)],"a, b",(5,6)`)
	assert.Equal(t, []string{"COMBATANT_INFO", "Player-1", "1", "[(1,2),(3,4)]", "a, b", "(5,6)"}, got)
}

func TestKindText(t *testing.T) {
	b, err := KindAuraBreak.MarshalText()
	require.NoError(t, err)
	assert.Equal(t, "aura_break", string(b))

	var k Kind
	require.NoError(t, k.UnmarshalText(b))
	assert.Equal(t, KindAuraBreak, k)
	assert.Error(t, k.UnmarshalText([]byte("nope")))
}
