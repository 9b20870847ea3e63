package pipeline

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/telhawk-systems/telhawk-combatlog/combatlog/internal/codec"
	"github.com/telhawk-systems/telhawk-combatlog/combatlog/internal/ff14reports"
	"github.com/telhawk-systems/telhawk-combatlog/combatlog/internal/parser"
	"github.com/telhawk-systems/telhawk-combatlog/combatlog/internal/report"
)

var ref = time.Date(2021, 4, 21, 0, 0, 0, 0, time.UTC)

func parse(t *testing.T, partitionID string, lines ...string) []parser.Packet {
	t.Helper()
	results, err := parser.ParseAt(partitionID, ref, lines)
	require.NoError(t, err)
	for _, r := range results {
		require.NoError(t, r.Err, r.Raw)
	}
	return parser.Packets(results)
}

func byKey(t *testing.T, out *Output) map[string]*report.Report {
	t.Helper()
	reports, err := out.Reports()
	require.NoError(t, err)
	t.Cleanup(func() { report.CloseAll(reports) })

	m := make(map[string]*report.Report, len(reports))
	for _, r := range reports {
		m[r.KeyName] = r
	}
	return m
}

func TestGenerateFF14(t *testing.T) {
	packets := parse(t, "ff14_1",
		`25|2021-04-21T19:20:26.0000000+00:00|10FF0001|Tank Name|40000001|Ifrit||hash`,
		parser.FlushMarker,
	)

	out, err := Generate(context.Background(), "ff14_1", packets, t.TempDir())
	require.NoError(t, err)
	defer out.Cleanup()
	assert.Equal(t, parser.GameFF14, out.Game)
	assert.Equal(t, 1, out.Events)

	reports := byKey(t, out)
	require.Contains(t, reports, "deaths.avro")
	require.Contains(t, reports, "limit_break.avro")

	deaths, err := codec.DecodeAvro[ff14reports.DeathRow](reports["deaths.avro"].File)
	require.NoError(t, err)
	require.Len(t, deaths, 1)
	assert.Equal(t, "Tank Name", deaths[0].TargetName)
}

func TestGenerateWoW(t *testing.T) {
	packets := parse(t, "wow_1",
		`4/21 19:20:25.123  UNIT_DIED,0000000000000000,nil,0x80000000,0x80000000,Player-1-0A,"Tank-Realm",0x511,0x0,0`,
	)

	out, err := Generate(context.Background(), "wow_1", packets, t.TempDir())
	require.NoError(t, err)
	defer out.Cleanup()

	reports := byKey(t, out)
	assert.Contains(t, reports, "deaths.avro")
	assert.Contains(t, reports, "characters.avro")
}

func TestGenerateHearthstone(t *testing.T) {
	packets := parse(t, "hs_1",
		`D 19:20:27.4963420 GameState.DebugPrintPower() - CREATE_GAME`,
		`D 19:20:27.4963421 GameState.DebugPrintPower() -     GameEntity EntityID=1`,
	)

	out, err := Generate(context.Background(), "hs_1", packets, t.TempDir())
	require.NoError(t, err)
	defer out.Cleanup()

	reports := byKey(t, out)
	assert.Contains(t, reports, "actions.json")
	assert.Contains(t, reports, "snapshots.json")
}

func TestGenerateErrors(t *testing.T) {
	t.Run("unsupported partition", func(t *testing.T) {
		_, err := Generate(context.Background(), "csgo_1", nil, t.TempDir())
		assert.ErrorIs(t, err, parser.ErrUnsupportedPartition)
	})

	t.Run("cancelled", func(t *testing.T) {
		packets := parse(t, "ff14_1", `25|2021-04-21T19:20:26.0000000+00:00|10FF0001|Tank Name|40000001|Ifrit||hash`)
		ctx, cancel := context.WithCancel(context.Background())
		cancel()

		dir := t.TempDir()
		_, err := Generate(ctx, "ff14_1", packets, dir)
		assert.ErrorIs(t, err, context.Canceled)

		entries, err := os.ReadDir(dir)
		require.NoError(t, err)
		assert.Empty(t, entries, "work dir removed")
	})
}
