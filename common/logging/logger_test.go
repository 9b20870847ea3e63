package logging

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// decode returns the records written by a JSON logger, one per line.
func decode(t *testing.T, buf *bytes.Buffer) []map[string]any {
	t.Helper()
	var records []map[string]any
	for _, line := range strings.Split(strings.TrimSpace(buf.String()), "\n") {
		if line == "" {
			continue
		}
		var rec map[string]any
		require.NoError(t, json.Unmarshal([]byte(line), &rec), line)
		records = append(records, rec)
	}
	return records
}

func TestNewWriterFormats(t *testing.T) {
	tests := []struct {
		format string
		want   string
	}{
		{"json", `"partition_id":"wow_a"`},
		{"", `"partition_id":"wow_a"`},
		{"text", "partition_id=wow_a"},
	}

	for _, tt := range tests {
		t.Run("format="+tt.format, func(t *testing.T) {
			var buf bytes.Buffer
			NewWriter(&buf, slog.LevelInfo, tt.format).Info("drained", Partition("wow_a"))
			assert.Contains(t, buf.String(), tt.want)
		})
	}
}

func TestNewWriterLevelFilter(t *testing.T) {
	var buf bytes.Buffer
	logger := NewWriter(&buf, slog.LevelWarn, "json")

	logger.Info("dropped")
	logger.Warn("kept", Report("deaths.avro"))

	records := decode(t, &buf)
	require.Len(t, records, 1)
	assert.Equal(t, "kept", records[0]["msg"])
	assert.Equal(t, "deaths.avro", records[0][FieldReport])
	assert.Contains(t, records[0], slog.SourceKey, "source is attached at warn level")
}

func TestNewWriterDebugLevel(t *testing.T) {
	var buf bytes.Buffer
	NewWriter(&buf, slog.LevelDebug, "json").Debug("frame", Attempt(2))

	records := decode(t, &buf)
	require.Len(t, records, 1)
	assert.EqualValues(t, 2, records[0][FieldAttempt])
}

func TestContextIDs(t *testing.T) {
	ctx := context.Background()
	assert.Empty(t, PartitionFrom(ctx))
	assert.Empty(t, BatchFrom(ctx))

	ctx = WithBatch(WithPartition(ctx, "hs_1"), "hs_1-000003")
	assert.Equal(t, "hs_1", PartitionFrom(ctx))
	assert.Equal(t, "hs_1-000003", BatchFrom(ctx))

	// A nested partition replaces the outer one for the inner scope.
	inner := WithPartition(ctx, "hs_2")
	assert.Equal(t, "hs_2", PartitionFrom(inner))
	assert.Equal(t, "hs_1-000003", BatchFrom(inner))
}

func TestWithContextFields(t *testing.T) {
	tests := []struct {
		name      string
		ctx       context.Context
		partition any
		batch     any
	}{
		{
			name:      "partition and batch",
			ctx:       WithBatch(WithPartition(context.Background(), "ff14_x"), "ff14_x-000001"),
			partition: "ff14_x",
			batch:     "ff14_x-000001",
		},
		{
			name:      "partition only",
			ctx:       WithPartition(context.Background(), "ff14_x"),
			partition: "ff14_x",
		},
		{
			name:  "batch only",
			ctx:   WithBatch(context.Background(), "b-7"),
			batch: "b-7",
		},
		{
			name: "bare context",
			ctx:  context.Background(),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var buf bytes.Buffer
			logger := NewWriter(&buf, slog.LevelInfo, "json")

			logger.WithContext(tt.ctx).Info("batch buffered")

			records := decode(t, &buf)
			require.Len(t, records, 1)
			assert.Equal(t, tt.partition, records[0][FieldPartition])
			assert.Equal(t, tt.batch, records[0][FieldBatch])
		})
	}
}

func TestLevelContext(t *testing.T) {
	ctx := WithBatch(WithPartition(context.Background(), "hs_level"), "hs_level-000002")

	tests := []struct {
		level string
		log   func(l *Logger, msg string)
	}{
		{"DEBUG", func(l *Logger, msg string) { l.DebugContext(ctx, msg) }},
		{"INFO", func(l *Logger, msg string) { l.InfoContext(ctx, msg, Game("hs")) }},
		{"WARN", func(l *Logger, msg string) { l.WarnContext(ctx, msg) }},
		{"ERROR", func(l *Logger, msg string) { l.ErrorContext(ctx, msg, Error(errors.New("upload failed"))) }},
	}

	for _, tt := range tests {
		t.Run(tt.level, func(t *testing.T) {
			var buf bytes.Buffer
			tt.log(NewWriter(&buf, slog.LevelDebug, "json"), "partition step")

			records := decode(t, &buf)
			require.Len(t, records, 1)
			assert.Equal(t, tt.level, records[0]["level"])
			assert.Equal(t, "hs_level", records[0][FieldPartition])
			assert.Equal(t, "hs_level-000002", records[0][FieldBatch])
		})
	}
}

func TestWithServiceKeepsContextFields(t *testing.T) {
	var buf bytes.Buffer
	logger := NewWriter(&buf, slog.LevelInfo, "json").With(Service("combatlog"))

	logger.InfoContext(WithPartition(context.Background(), "wow_s"), "finalized", Duration(0))

	records := decode(t, &buf)
	require.Len(t, records, 1)
	assert.Equal(t, "combatlog", records[0][FieldService])
	assert.Equal(t, "wow_s", records[0][FieldPartition])
}

func TestParseLevel(t *testing.T) {
	tests := map[string]slog.Level{
		"debug": slog.LevelDebug,
		"info":  slog.LevelInfo,
		"warn":  slog.LevelWarn,
		"error": slog.LevelError,
		"":      slog.LevelInfo,
		"WARN":  slog.LevelInfo,
	}
	for in, want := range tests {
		assert.Equal(t, want, ParseLevel(in), "ParseLevel(%q)", in)
	}
}

func TestSetDefault(t *testing.T) {
	original := slog.Default()
	t.Cleanup(func() { slog.SetDefault(original) })

	var buf bytes.Buffer
	SetDefault(NewWriter(&buf, slog.LevelInfo, "json"))
	Default().Info("via default", Key("k"))

	records := decode(t, &buf)
	require.Len(t, records, 1)
	assert.Equal(t, "k", records[0][FieldKey])
}
