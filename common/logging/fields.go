package logging

import (
	"log/slog"
	"time"
)

// Common field names for consistent logging across services.
const (
	FieldService   = "service"
	FieldPartition = "partition_id"
	FieldBatch     = "batch_id"
	FieldGame      = "game"
	FieldReport    = "report"
	FieldKey       = "key"
	FieldAttempt   = "attempt"
	FieldDuration  = "duration_ms"
	FieldLine      = "line"
	FieldError     = "error"
)

// Service returns a slog attribute for the service name.
func Service(name string) slog.Attr {
	return slog.String(FieldService, name)
}

// Partition returns a slog attribute for a combat log partition id.
func Partition(id string) slog.Attr {
	return slog.String(FieldPartition, id)
}

// Game returns a slog attribute for the game of a partition.
func Game(game string) slog.Attr {
	return slog.String(FieldGame, game)
}

// Report returns a slog attribute for a report file name.
func Report(name string) slog.Attr {
	return slog.String(FieldReport, name)
}

// Key returns a slog attribute for an object store key.
func Key(key string) slog.Attr {
	return slog.String(FieldKey, key)
}

// Attempt returns a slog attribute for a retry attempt number.
func Attempt(n int) slog.Attr {
	return slog.Int(FieldAttempt, n)
}

// Duration returns a slog attribute for duration in milliseconds.
func Duration(d time.Duration) slog.Attr {
	return slog.Int64(FieldDuration, d.Milliseconds())
}

// Line returns a slog attribute for a raw log line, truncated to keep log
// records small.
func Line(line string) slog.Attr {
	const maxLine = 256
	if len(line) > maxLine {
		line = line[:maxLine] + "..."
	}
	return slog.String(FieldLine, line)
}

// Error returns a slog attribute for an error.
func Error(err error) slog.Attr {
	return slog.String(FieldError, err.Error())
}
