// Package hearthstone reconstructs match history from the Hearthstone
// Power.log. Lines are tokenized into (function, body) pairs, the
// GameState.DebugPrintPower() stream is driven through a stack-based state
// machine that folds nested blocks into GameActions, and the resulting
// actions are replayed into entity snapshots taken at every turn change.
package hearthstone

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

var (
	// ErrNoDelimiter is returned when a power line has no function/body separator.
	ErrNoDelimiter = errors.New("hearthstone: line has no '-' delimiter")
	// ErrMalformedLine is returned when a Power.log line has no level and timestamp prefix.
	ErrMalformedLine = errors.New("hearthstone: malformed log line")
)

// RawLogLine is a single timestamped Power.log line with the level and
// timestamp prefix removed.
type RawLogLine struct {
	Time time.Time `json:"time"`
	Text string    `json:"text"`
}

const powerTimeLayout = "15:04:05.9999999"

// ParseRawLine parses a Power.log line of the form
// "D 21:39:43.4963420 GameState.DebugPrintPower() - ...". The clock time is
// anchored to the calendar day of ref.
func ParseRawLine(line string, ref time.Time) (RawLogLine, error) {
	line = strings.TrimRight(line, "\r\n")
	if len(line) < 3 || line[1] != ' ' {
		return RawLogLine{}, fmt.Errorf("%w: %q", ErrMalformedLine, line)
	}

	clock, text, ok := strings.Cut(line[2:], " ")
	if !ok {
		return RawLogLine{}, fmt.Errorf("%w: %q", ErrMalformedLine, line)
	}
	tod, err := time.Parse(powerTimeLayout, clock)
	if err != nil {
		return RawLogLine{}, fmt.Errorf("%w: bad timestamp %q", ErrMalformedLine, clock)
	}

	ref = ref.UTC()
	ts := time.Date(ref.Year(), ref.Month(), ref.Day(),
		tod.Hour(), tod.Minute(), tod.Second(), tod.Nanosecond(), time.UTC)
	return RawLogLine{Time: ts, Text: text}, nil
}

// PowerLog is a tokenized power line.
type PowerLog struct {
	Func   string
	Body   string
	Indent int
}

// Tokenize splits a line on its first '-' into a trimmed function name and
// body. Indent counts the whitespace that led the body.
func Tokenize(text string) (PowerLog, error) {
	fn, body, ok := strings.Cut(text, "-")
	if !ok {
		return PowerLog{}, ErrNoDelimiter
	}

	indent := 0
	for _, c := range body {
		if c != ' ' && c != '\t' {
			break
		}
		indent++
	}
	return PowerLog{
		Func:   strings.TrimSpace(fn),
		Body:   strings.TrimSpace(body),
		Indent: indent,
	}, nil
}
