// Package demo reads CS:GO (Source engine) demo recordings: the file header,
// the command stream, the send-table schema and the game event stream.
package demo

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
)

const (
	// Filestamp identifies a Source engine demo.
	Filestamp = "HL2DEMO"
	// Protocol is the only demo protocol version this package understands.
	Protocol = 4
	// HeaderSize is the fixed size of the on-disk header.
	HeaderSize = 1072

	maxOSPath = 260
)

var (
	// ErrBadSignature is returned when the file does not start with the demo filestamp.
	ErrBadSignature = errors.New("demo: invalid filestamp")
	// ErrBadProtocol is returned for an unsupported demo protocol.
	ErrBadProtocol = errors.New("demo: unsupported demo protocol")
)

// Header is the fixed preamble of a demo file.
type Header struct {
	Filestamp       string  `json:"filestamp"`
	DemoProtocol    int32   `json:"demo_protocol"`
	NetworkProtocol int32   `json:"network_protocol"`
	ServerName      string  `json:"server_name"`
	ClientName      string  `json:"client_name"`
	MapName         string  `json:"map_name"`
	GameDirectory   string  `json:"game_directory"`
	PlaybackTime    float32 `json:"playback_time"`
	PlaybackTicks   int32   `json:"playback_ticks"`
	PlaybackFrames  int32   `json:"playback_frames"`
	SignonLength    int32   `json:"signon_length"`
}

type rawHeader struct {
	Filestamp       [8]byte
	DemoProtocol    int32
	NetworkProtocol int32
	ServerName      [maxOSPath]byte
	ClientName      [maxOSPath]byte
	MapName         [maxOSPath]byte
	GameDirectory   [maxOSPath]byte
	PlaybackTime    float32
	PlaybackTicks   int32
	PlaybackFrames  int32
	SignonLength    int32
}

// ReadHeader decodes and validates the header at the start of r.
func ReadHeader(r io.Reader) (*Header, error) {
	var raw rawHeader
	if err := binary.Read(r, binary.LittleEndian, &raw); err != nil {
		return nil, fmt.Errorf("failed to read demo header: %w", err)
	}

	h := &Header{
		Filestamp:       cString(raw.Filestamp[:]),
		DemoProtocol:    raw.DemoProtocol,
		NetworkProtocol: raw.NetworkProtocol,
		ServerName:      cString(raw.ServerName[:]),
		ClientName:      cString(raw.ClientName[:]),
		MapName:         cString(raw.MapName[:]),
		GameDirectory:   cString(raw.GameDirectory[:]),
		PlaybackTime:    raw.PlaybackTime,
		PlaybackTicks:   raw.PlaybackTicks,
		PlaybackFrames:  raw.PlaybackFrames,
		SignonLength:    raw.SignonLength,
	}

	if h.Filestamp != Filestamp {
		return nil, fmt.Errorf("%w: %q", ErrBadSignature, h.Filestamp)
	}
	if h.DemoProtocol != Protocol {
		return nil, fmt.Errorf("%w: %d", ErrBadProtocol, h.DemoProtocol)
	}
	return h, nil
}

// MarshalBinary encodes the header in its on-disk layout.
func (h *Header) MarshalBinary() ([]byte, error) {
	raw := rawHeader{
		DemoProtocol:    h.DemoProtocol,
		NetworkProtocol: h.NetworkProtocol,
		PlaybackTime:    h.PlaybackTime,
		PlaybackTicks:   h.PlaybackTicks,
		PlaybackFrames:  h.PlaybackFrames,
		SignonLength:    h.SignonLength,
	}
	copy(raw.Filestamp[:], h.Filestamp)
	copy(raw.ServerName[:], h.ServerName)
	copy(raw.ClientName[:], h.ClientName)
	copy(raw.MapName[:], h.MapName)
	copy(raw.GameDirectory[:], h.GameDirectory)

	var buf bytes.Buffer
	buf.Grow(HeaderSize)
	if err := binary.Write(&buf, binary.LittleEndian, &raw); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func cString(b []byte) string {
	if i := bytes.IndexByte(b, 0); i >= 0 {
		b = b[:i]
	}
	return string(b)
}
