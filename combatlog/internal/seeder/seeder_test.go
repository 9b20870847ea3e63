package seeder

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/telhawk-systems/telhawk-combatlog/combatlog/internal/parser"
	"github.com/telhawk-systems/telhawk-combatlog/combatlog/internal/worker"
)

var start = time.Date(2021, 4, 21, 19, 0, 0, 0, time.UTC)

func TestGeneratedLinesParse(t *testing.T) {
	for _, game := range parser.Games {
		t.Run(string(game), func(t *testing.T) {
			lines, err := NewGenerator(42, start, 4).Lines(game, 200)
			require.NoError(t, err)
			require.Greater(t, len(lines), 200)

			results, err := parser.ParseAt(string(game)+"_seed", start, lines)
			require.NoError(t, err)
			for _, r := range results {
				require.NoError(t, r.Err, r.Raw)
			}

			packets := parser.Packets(results)
			for i := 1; i < len(packets); i++ {
				assert.False(t, packets[i].Time.Before(packets[i-1].Time), "line %d goes back in time", i)
			}
		})
	}
}

func TestGeneratorDeterministic(t *testing.T) {
	a, err := NewGenerator(7, start, 3).Lines(parser.GameFF14, 50)
	require.NoError(t, err)
	b, err := NewGenerator(7, start, 3).Lines(parser.GameFF14, 50)
	require.NoError(t, err)
	assert.Equal(t, a, b)

	_, err = NewGenerator(7, start, 3).Lines("csgo", 1)
	assert.ErrorIs(t, err, parser.ErrUnsupportedPartition)
}

func TestBatches(t *testing.T) {
	lines := make([]string, 250)
	for i := range lines {
		lines[i] = "line"
	}

	msgs, err := Batches("wow_1", "owner", lines, 100)
	require.NoError(t, err)
	require.Len(t, msgs, 3)
	assert.False(t, msgs[0].Final)
	assert.True(t, msgs[2].Final)
	assert.NotEqual(t, msgs[0].BatchID, msgs[1].BatchID)

	last, err := worker.DecodeLines(msgs[2].Data)
	require.NoError(t, err)
	assert.Len(t, last, 50)

	empty, err := Batches("wow_1", "", nil, 100)
	require.NoError(t, err)
	require.Len(t, empty, 1)
	assert.True(t, empty[0].Final)
}

type recorder struct {
	mu       sync.Mutex
	subjects []string
}

func (r *recorder) Publish(ctx context.Context, subject string, data []byte) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.subjects = append(r.subjects, subject)
	return nil
}

func (r *recorder) Close() error { return nil }

func TestRunnerRun(t *testing.T) {
	rec := &recorder{}
	cfg := &Config{Game: "hs", Matches: 2, Events: 30, Players: 2, BatchSize: 25, Seed: 1}

	sum, err := NewRunner(cfg, rec).Run(context.Background())
	require.NoError(t, err)
	assert.Len(t, sum.Partitions, 2)
	assert.Equal(t, len(rec.subjects), sum.Batches)
	assert.Equal(t, "combatlog.batches.hs", rec.subjects[0])
	assert.Equal(t, 2*(7+2*30), sum.Lines)
}

func TestLoadConfig(t *testing.T) {
	path := filepath.Join(t.TempDir(), "seeder.yaml")
	require.NoError(t, os.WriteFile(path, []byte("game: ff14\nevents: 10\n"), 0o600))

	cfg, err := LoadConfig(path)
	require.NoError(t, err)
	assert.Equal(t, "ff14", cfg.Game)
	assert.Equal(t, 10, cfg.Events)
	assert.Equal(t, 100, cfg.BatchSize)

	require.NoError(t, os.WriteFile(path, []byte("game: chess\n"), 0o600))
	_, err = LoadConfig(path)
	assert.Error(t, err)
}
