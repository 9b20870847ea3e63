package demo

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"

	"github.com/telhawk-systems/telhawk-combatlog/combatlog/internal/bitreader"
)

// Command identifies a top-level demo record.
type Command uint8

const (
	CmdSignOn Command = iota + 1
	CmdPacket
	CmdSyncTick
	CmdConsoleCmd
	CmdUserCmd
	CmdDataTables
	CmdStop
	CmdCustomData
	CmdStringTables
)

func (c Command) String() string {
	switch c {
	case CmdSignOn:
		return "signon"
	case CmdPacket:
		return "packet"
	case CmdSyncTick:
		return "synctick"
	case CmdConsoleCmd:
		return "consolecmd"
	case CmdUserCmd:
		return "usercmd"
	case CmdDataTables:
		return "datatables"
	case CmdStop:
		return "stop"
	case CmdCustomData:
		return "customdata"
	case CmdStringTables:
		return "stringtables"
	}
	return "cmd(" + strconv.Itoa(int(c)) + ")"
}

// Net message ids embedded in packets.
const (
	NetNOP             = 0
	SvcServerInfo      = 8
	SvcSendTable       = 9
	SvcClassInfo       = 10
	SvcCreateStringTbl = 12
	SvcUpdateStringTbl = 13
	SvcGameEvent       = 25
	SvcPacketEntities  = 26
	SvcGameEventList   = 30
)

const (
	// CommandHeaderSize is the size of cmd + tick + player slot.
	CommandHeaderSize = 6
	// CmdInfoSize is the split-screen view/origin block preceding packet payloads.
	CmdInfoSize = 152
	// MaxPacketPayload bounds a packet payload; the engine reserves four bytes
	// of its 256 KiB network buffer.
	MaxPacketPayload = 262144 - 4
	// MaxRecordPayload bounds data-table, string-table and console records.
	MaxRecordPayload = 2 * 1024 * 1024
)

var (
	// ErrPayloadSize is returned when a length prefix exceeds its bound.
	ErrPayloadSize = errors.New("demo: payload exceeds maximum size")
	// ErrTruncated is returned alongside the partially read Demo when the
	// command stream ends inside a command.
	ErrTruncated = errors.New("demo: truncated command stream")
)

// CommandHeader prefixes every record in the command stream.
type CommandHeader struct {
	Cmd    Command
	Tick   int32
	Player uint8
}

// Message is a net message framed inside a packet.
type Message struct {
	Tick int32
	Cmd  uint32
	Data []byte
}

// Stats counts what the reader saw.
type Stats struct {
	Commands    int            `json:"commands"`
	Packets     int            `json:"packets"`
	Messages    int            `json:"messages"`
	ByCommand   map[string]int `json:"by_command"`
	LastTick    int32          `json:"last_tick"`
	UnknownCmds int            `json:"unknown_commands"`
}

// Demo is a fully read recording.
type Demo struct {
	Header      *Header                   `json:"header"`
	DataTable   *DataTable                `json:"data_table,omitempty"`
	Descriptors map[int32]EventDescriptor `json:"-"`
	GameEvents  []GameEvent               `json:"game_events"`
	Stats       Stats                     `json:"stats"`
}

// ParseFile reads the demo at path.
func ParseFile(path string) (*Demo, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read demo file: %w", err)
	}
	return ParseBytes(data)
}

// Parse reads an entire demo from r.
func Parse(r io.Reader) (*Demo, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("failed to read demo: %w", err)
	}
	return ParseBytes(data)
}

// ParseBytes reads a demo held in memory. When the recording stops mid-command
// the commands read so far are returned with an error wrapping ErrTruncated;
// any other error returns a nil Demo.
func ParseBytes(data []byte) (*Demo, error) {
	header, err := ReadHeader(bytes.NewReader(data))
	if err != nil {
		return nil, err
	}

	d := &Demo{
		Header:      header,
		Descriptors: make(map[int32]EventDescriptor),
		Stats:       Stats{ByCommand: make(map[string]int)},
	}

	r := bitreader.New(data[HeaderSize:])
	for r.RemainingBits() > 0 {
		ch, err := readCommandHeader(r)
		if errors.Is(err, ErrTruncated) {
			return d, err
		}
		if err != nil {
			return nil, err
		}
		d.Stats.Commands++
		d.Stats.ByCommand[ch.Cmd.String()]++
		d.Stats.LastTick = ch.Tick

		done, err := d.handleCommand(r, ch)
		if err != nil {
			err = fmt.Errorf("tick %d %s: %w", ch.Tick, ch.Cmd, err)
			if errors.Is(err, ErrTruncated) {
				return d, err
			}
			return nil, err
		}
		if done {
			break
		}
	}
	return d, nil
}

func readCommandHeader(r *bitreader.Reader) (CommandHeader, error) {
	cmd, err := r.ReadByte()
	if err != nil {
		return CommandHeader{}, fmt.Errorf("failed to read command: %w", truncated(err))
	}
	tick, err := r.ReadInt32LE()
	if err != nil {
		return CommandHeader{}, fmt.Errorf("failed to read command tick: %w", truncated(err))
	}
	slot, err := r.ReadByte()
	if err != nil {
		return CommandHeader{}, fmt.Errorf("failed to read player slot: %w", truncated(err))
	}
	return CommandHeader{Cmd: Command(cmd), Tick: tick, Player: slot}, nil
}

func (d *Demo) handleCommand(r *bitreader.Reader, ch CommandHeader) (bool, error) {
	switch ch.Cmd {
	case CmdSignOn, CmdPacket:
		d.Stats.Packets++
		payload, err := readPacket(r)
		if err != nil {
			return false, err
		}
		return false, d.handlePacket(ch.Tick, payload)
	case CmdSyncTick:
		return false, nil
	case CmdConsoleCmd, CmdStringTables:
		_, err := readRecord(r, MaxRecordPayload)
		return false, err
	case CmdUserCmd, CmdCustomData:
		if _, err := r.ReadInt32LE(); err != nil {
			return false, truncated(err)
		}
		_, err := readRecord(r, MaxRecordPayload)
		return false, err
	case CmdDataTables:
		payload, err := readRecord(r, MaxRecordPayload)
		if err != nil {
			return false, err
		}
		dt, err := ParseDataTable(payload)
		if err != nil {
			return false, err
		}
		d.DataTable = dt
		return false, nil
	case CmdStop:
		return true, nil
	}
	// An unknown command leaves the stream position undefined; stop here.
	d.Stats.UnknownCmds++
	return true, nil
}

func readRecord(r *bitreader.Reader, limit int) ([]byte, error) {
	n, err := r.ReadInt32LE()
	if err != nil {
		return nil, fmt.Errorf("failed to read record length: %w", truncated(err))
	}
	if n < 0 || int(n) > limit {
		return nil, fmt.Errorf("%w: %d", ErrPayloadSize, n)
	}
	b, err := r.ReadBytes(int(n))
	if err != nil {
		return nil, fmt.Errorf("failed to read record: %w", truncated(err))
	}
	return b, nil
}

// truncated marks a read past the end of the command stream. Reads inside a
// complete payload use their own reader and are not truncation.
func truncated(err error) error {
	if errors.Is(err, bitreader.ErrOutOfRange) {
		return fmt.Errorf("%w: %w", ErrTruncated, err)
	}
	return err
}

func readPacket(r *bitreader.Reader) ([]byte, error) {
	if err := r.SkipBytes(CmdInfoSize); err != nil {
		return nil, fmt.Errorf("failed to skip command info: %w", truncated(err))
	}
	// sequence in / sequence out
	if err := r.SkipBytes(8); err != nil {
		return nil, fmt.Errorf("failed to skip sequence numbers: %w", truncated(err))
	}
	return readRecord(r, MaxPacketPayload)
}

// SplitMessages frames the net messages inside a packet payload.
func SplitMessages(tick int32, payload []byte) ([]Message, error) {
	r := bitreader.New(payload)
	var out []Message
	for r.RemainingBits() > 0 {
		cmd, err := r.ReadVarUint32()
		if err != nil {
			return nil, fmt.Errorf("failed to read message id: %w", err)
		}
		size, err := r.ReadVarUint32()
		if err != nil {
			return nil, fmt.Errorf("failed to read message size: %w", err)
		}
		if int(size) > MaxPacketPayload {
			return nil, fmt.Errorf("%w: message %d size %d", ErrPayloadSize, cmd, size)
		}
		data, err := r.ReadBytes(int(size))
		if err != nil {
			return nil, fmt.Errorf("failed to read message %d: %w", cmd, err)
		}
		out = append(out, Message{Tick: tick, Cmd: cmd, Data: data})
	}
	return out, nil
}

func (d *Demo) handlePacket(tick int32, payload []byte) error {
	msgs, err := SplitMessages(tick, payload)
	if err != nil {
		return err
	}
	d.Stats.Messages += len(msgs)

	for _, m := range msgs {
		switch m.Cmd {
		case SvcGameEventList:
			list, err := DecodeGameEventList(m.Data)
			if err != nil {
				return err
			}
			for _, desc := range list.Descriptors {
				d.Descriptors[desc.ID] = desc
			}
		case SvcGameEvent:
			msg, err := DecodeGameEvent(m.Data)
			if err != nil {
				return err
			}
			d.GameEvents = append(d.GameEvents, d.resolveEvent(tick, msg))
		}
	}
	return nil
}
