package ff14reports

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/telhawk-systems/telhawk-combatlog/combatlog/internal/codec"
	"github.com/telhawk-systems/telhawk-combatlog/combatlog/internal/ff14"
	"github.com/telhawk-systems/telhawk-combatlog/combatlog/internal/report"
)

var t0 = time.Date(2021, 4, 21, 23, 0, 0, 0, time.UTC)

func lb(sec int, value int64) *ff14.Event {
	return &ff14.Event{Type: ff14.TypeLimitBreak, Time: t0.Add(time.Duration(sec) * time.Second), LimitBreak: &ff14.LimitBreak{Value: value, Bars: 3}}
}

func TestReports(t *testing.T) {
	g := New(t0)
	require.NoError(t, g.InitializeWorkDir(t.TempDir()))

	events := []*ff14.Event{
		lb(1, 1000),
		{Type: ff14.TypeDeath, Time: t0.Add(2 * time.Second), Death: &ff14.Death{
			Target: ff14.Actor{ID: 0x10ff0001, Name: "Tank Name"},
			Source: ff14.Actor{ID: 0x40000001, Name: "Ifrit"},
		}},
		lb(3, 3000),
		{Type: ff14.TypeTargetIcon, Time: t0.Add(4 * time.Second)},
		lb(7, 5000),
	}
	for _, ev := range events {
		require.NoError(t, g.Handle(ev))
	}
	require.NoError(t, g.Finalize())

	reports, err := g.Reports()
	require.NoError(t, err)
	defer report.CloseAll(reports)
	require.Len(t, reports, 2)

	assert.Equal(t, "deaths.avro", reports[0].KeyName)
	assert.Equal(t, Deaths, reports[0].CanonicalType)
	deaths, err := codec.DecodeAvro[DeathRow](reports[0].File)
	require.NoError(t, err)
	require.Len(t, deaths, 1)
	assert.Equal(t, "Ifrit", deaths[0].SourceName)
	assert.Equal(t, int64(0x10ff0001), deaths[0].TargetID)

	assert.Equal(t, "limit_break.avro", reports[1].KeyName)
	rows, err := codec.DecodeAvro[LimitBreakRow](reports[1].File)
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, int64(2000), rows[0].Value)
	assert.True(t, t0.Equal(rows[0].Start))
	assert.Equal(t, int64(5000), rows[1].Value)
	assert.True(t, t0.Add(5*time.Second).Equal(rows[1].Start))
}
