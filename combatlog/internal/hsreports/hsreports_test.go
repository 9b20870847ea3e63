package hsreports

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/telhawk-systems/telhawk-combatlog/combatlog/internal/codec"
	"github.com/telhawk-systems/telhawk-combatlog/combatlog/internal/hearthstone"
	"github.com/telhawk-systems/telhawk-combatlog/combatlog/internal/report"
)

var t0 = time.Date(2021, 3, 14, 20, 0, 0, 0, time.UTC)

func power(body string) hearthstone.RawLogLine {
	return hearthstone.RawLogLine{Time: t0, Text: "GameState.DebugPrintPower() - " + body}
}

func TestReports(t *testing.T) {
	g := New()
	require.NoError(t, g.InitializeWorkDir(t.TempDir()))

	lines := []hearthstone.RawLogLine{
		power("CREATE_GAME"),
		power("    GameEntity EntityID=1"),
		power("        tag=TURN value=1"),
		power("    Player EntityID=2 PlayerID=1 GameAccountId=[hi=1 lo=2]"),
		{Time: t0, Text: "GameState.DebugPrintGame() - PlayerID=1, PlayerName=Alice#1234"},
		power("TAG_CHANGE Entity=GameEntity tag=TURN value=2"),
		power("TAG_CHANGE Entity=Alice#1234 tag=RESOURCES value=1"),
	}
	for _, l := range lines {
		require.NoError(t, g.Handle(l))
	}
	require.NoError(t, g.Finalize())
	require.NoError(t, g.Finalize(), "second finalize is a no-op")

	reports, err := g.Reports()
	require.NoError(t, err)
	defer report.CloseAll(reports)
	require.Len(t, reports, 2)

	assert.Equal(t, "actions.json", reports[0].KeyName)
	assert.Equal(t, Actions, reports[0].CanonicalType)
	actions, err := codec.DecodeJSON[hearthstone.GameAction](reports[0].File)
	require.NoError(t, err)
	require.Len(t, actions, 4)
	assert.Equal(t, hearthstone.ActionCreateGameEntity, actions[0].Type)
	assert.Equal(t, map[string]string{"TURN": "2"}, actions[2].Tags)

	assert.Equal(t, "snapshots.json", reports[1].KeyName)
	snapshots, err := codec.DecodeJSON[hearthstone.Snapshot](reports[1].File)
	require.NoError(t, err)
	require.Len(t, snapshots, 2)
	assert.Equal(t, 1, snapshots[0].Turn)
	assert.Equal(t, 2, snapshots[1].Turn)

	again, err := g.Reports()
	require.NoError(t, err)
	assert.Empty(t, again)
}

func TestReportsWithoutWorkDir(t *testing.T) {
	g := New()
	require.NoError(t, g.Handle(power("CREATE_GAME")))
	require.NoError(t, g.Finalize())

	reports, err := g.Reports()
	require.NoError(t, err)
	assert.Empty(t, reports)
	assert.Len(t, g.Parser().Game.Actions, 0)
}
