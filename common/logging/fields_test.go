package logging

import (
	"errors"
	"log/slog"
	"strings"
	"testing"
	"time"
)

func TestStringFields(t *testing.T) {
	tests := []struct {
		name string
		attr slog.Attr
		key  string
		want string
	}{
		{"service", Service("combatlog"), FieldService, "combatlog"},
		{"partition", Partition("wow_123"), FieldPartition, "wow_123"},
		{"game", Game("ff14"), FieldGame, "ff14"},
		{"report", Report("deaths.avro"), FieldReport, "deaths.avro"},
		{"key", Key("form=Report/partition=wow_1/canonical=2/deaths.avro"), FieldKey, "form=Report/partition=wow_1/canonical=2/deaths.avro"},
		{"error", Error(errors.New("boom")), FieldError, "boom"},
		{"line", Line("4/21 19:20:25.123  UNIT_DIED"), FieldLine, "4/21 19:20:25.123  UNIT_DIED"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.attr.Key != tt.key {
				t.Errorf("expected key %q, got %q", tt.key, tt.attr.Key)
			}
			if tt.attr.Value.String() != tt.want {
				t.Errorf("expected value %q, got %q", tt.want, tt.attr.Value.String())
			}
		})
	}
}

func TestAttempt(t *testing.T) {
	attr := Attempt(3)
	if attr.Key != FieldAttempt {
		t.Errorf("expected key %q, got %q", FieldAttempt, attr.Key)
	}
	if attr.Value.Int64() != 3 {
		t.Errorf("expected value 3, got %d", attr.Value.Int64())
	}
}

func TestDuration(t *testing.T) {
	attr := Duration(1500 * time.Millisecond)
	if attr.Key != FieldDuration {
		t.Errorf("expected key %q, got %q", FieldDuration, attr.Key)
	}
	if attr.Value.Int64() != 1500 {
		t.Errorf("expected value 1500, got %d", attr.Value.Int64())
	}
}

func TestLineTruncates(t *testing.T) {
	attr := Line(strings.Repeat("x", 1000))
	if got := len(attr.Value.String()); got != 259 {
		t.Errorf("expected truncated length 259, got %d", got)
	}
}
