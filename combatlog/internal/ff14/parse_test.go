package ff14

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const ts = "2021-04-21T19:20:25.1230000-04:00"

func line(typ string, fields ...string) string {
	return typ + "|" + ts + "|" + strings.Join(append(fields, "0123456789abcdef"), "|")
}

func TestParseLine(t *testing.T) {
	want := time.Date(2021, 4, 21, 23, 20, 25, 123_000_000, time.UTC)

	t.Run("change zone", func(t *testing.T) {
		ev, err := ParseLine(line("01", "3D6", "The Tempest"))
		require.NoError(t, err)
		assert.Equal(t, TypeChangeZone, ev.Type)
		assert.Equal(t, want, ev.Time)
		assert.Equal(t, &Zone{ID: 0x3d6, Name: "The Tempest"}, ev.ChangeZone)
	})

	t.Run("add combatant", func(t *testing.T) {
		ev, err := ParseLine(line("03", "10FF0001", "Tank Name", "13", "50", "0", "49", "Gilgamesh", "", "", "90000", "100000", "10000", "10000"))
		require.NoError(t, err)
		c := ev.AddCombatant
		require.NotNil(t, c)
		assert.Equal(t, int64(0x10ff0001), c.ID)
		assert.Equal(t, int64(0x13), c.Job)
		assert.Equal(t, int64(0x50), c.Level)
		assert.Nil(t, c.OwnerID)
		assert.Equal(t, "Gilgamesh", c.World)
		assert.Equal(t, int64(90000), c.CurrentHP)
	})

	t.Run("ability", func(t *testing.T) {
		fields := []string{"10FF0001", "Tank Name", "1F", "Heavy Swing", "40000001", "Striking Dummy"}
		fields = append(fields, "710003", "2A30000")
		for range 7 {
			fields = append(fields, "0", "0")
		}
		fields = append(fields, "44000", "44000", "0", "10000", "", "", "0", "0", "0", "0")
		fields = append(fields, "90000", "100000", "10000", "10000", "", "", "0", "0", "0", "0", "0000A1B2")

		ev, err := ParseLine(line("21", fields...))
		require.NoError(t, err)
		a := ev.Ability
		require.NotNil(t, a)
		assert.Equal(t, "Heavy Swing", a.Spell.Name)
		assert.Equal(t, int64(0x2a30000), a.Damage)
		assert.Equal(t, int64(44000), a.TargetResources.CurrentHP)
		assert.Equal(t, int64(100000), a.SourceResources.MaxHP)
		assert.Equal(t, int64(0xa1b2), a.Sequence)
	})

	t.Run("death", func(t *testing.T) {
		ev, err := ParseLine(line("25", "10FF0001", "Tank Name", "40000001", "Ifrit"))
		require.NoError(t, err)
		assert.Equal(t, &Death{Target: Actor{ID: 0x10ff0001, Name: "Tank Name"}, Source: Actor{ID: 0x40000001, Name: "Ifrit"}}, ev.Death)
	})

	t.Run("buff gain and loss", func(t *testing.T) {
		ev, err := ParseLine(line("26", "31", "Fight or Flight", "25.00", "10FF0001", "Tank Name", "10FF0001", "Tank Name", "00", "100000", "100000"))
		require.NoError(t, err)
		assert.Equal(t, 25.0, ev.Buff.Duration)
		assert.Equal(t, int64(100000), ev.Buff.TargetMaxHP)

		ev, err = ParseLine(line("30", "31", "Fight or Flight", "0.00", "10FF0001", "Tank Name", "10FF0001", "Tank Name", "00"))
		require.NoError(t, err)
		require.NotNil(t, ev.BuffRemove)
		assert.Equal(t, int64(0x31), ev.BuffRemove.Effect.ID)
	})

	t.Run("limit break", func(t *testing.T) {
		ev, err := ParseLine(line("36", "2710", "3"))
		require.NoError(t, err)
		assert.Equal(t, &LimitBreak{Value: 10000, Bars: 3}, ev.LimitBreak)
	})

	t.Run("payload-less known type", func(t *testing.T) {
		ev, err := ParseLine(line("27", "10FF0001", "Tank Name", "0000", "0000", "0017"))
		require.NoError(t, err)
		assert.Equal(t, TypeTargetIcon, ev.Type)
		assert.Nil(t, ev.Death)
	})
}

func TestParseLineErrors(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		wantErr error
	}{
		{"no separator", "garbage", ErrMalformedLine},
		{"non numeric type", line("XX"), ErrMalformedLine},
		{"unknown type", line("99", "x"), ErrUnknownType},
		{"bad time", "25|yesterday|10FF0001|a|1|b", ErrMalformedLine},
		{"missing fields", "25|" + ts + "|10FF0001", ErrMalformedLine},
		{"bad hex", line("36", "zz", "1"), ErrMalformedLine},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseLine(tt.input)
			assert.ErrorIs(t, err, tt.wantErr)
		})
	}
}

func TestTypeString(t *testing.T) {
	assert.Equal(t, "NetworkDeath", TypeDeath.String())
	assert.Equal(t, "Type(99)", Type(99).String())
	assert.True(t, TypeError.Known())
	assert.False(t, Type(5).Known())
}
