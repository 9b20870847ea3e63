package demo

import (
	"github.com/telhawk-systems/telhawk-combatlog/combatlog/internal/bitreader"
)

// Builder writes a demo recording. It is the inverse of ParseBytes and is
// used for fixtures and synthetic recordings.
type Builder struct {
	w bitreader.Writer
}

// NewBuilder starts a recording with the given header. Filestamp and
// protocol default to the supported values when unset.
func NewBuilder(h Header) (*Builder, error) {
	if h.Filestamp == "" {
		h.Filestamp = Filestamp
	}
	if h.DemoProtocol == 0 {
		h.DemoProtocol = Protocol
	}
	raw, err := h.MarshalBinary()
	if err != nil {
		return nil, err
	}
	b := &Builder{}
	b.w.WriteBytes(raw)
	return b, nil
}

func (b *Builder) command(cmd Command, tick int32) {
	_ = b.w.WriteByte(byte(cmd))
	b.w.WriteInt32LE(tick)
	_ = b.w.WriteByte(0)
}

// Packet writes a packet record carrying msgs.
func (b *Builder) Packet(tick int32, msgs ...Message) {
	var payload []byte
	for _, m := range msgs {
		payload = bitreader.AppendVarUint32(payload, m.Cmd)
		payload = bitreader.AppendVarUint32(payload, uint32(len(m.Data)))
		payload = append(payload, m.Data...)
	}
	b.command(CmdPacket, tick)
	b.w.WriteBytes(make([]byte, CmdInfoSize+8))
	b.w.WriteInt32LE(int32(len(payload)))
	b.w.WriteBytes(payload)
}

// DataTables writes a data-table record.
func (b *Builder) DataTables(tick int32, tables []SendTableMsg, classes []ServerClass) {
	payload := EncodeDataTable(tables, classes)
	b.command(CmdDataTables, tick)
	b.w.WriteInt32LE(int32(len(payload)))
	b.w.WriteBytes(payload)
}

// ConsoleCmd writes a console command record.
func (b *Builder) ConsoleCmd(tick int32, cmd string) {
	b.command(CmdConsoleCmd, tick)
	b.w.WriteInt32LE(int32(len(cmd) + 1))
	b.w.WriteString(cmd)
}

// SyncTick writes a sync-tick record.
func (b *Builder) SyncTick(tick int32) {
	b.command(CmdSyncTick, tick)
}

// Stop terminates the command stream.
func (b *Builder) Stop(tick int32) {
	b.command(CmdStop, tick)
}

// Bytes returns the encoded recording.
func (b *Builder) Bytes() []byte {
	return b.w.Bytes()
}

// EncodeDataTable encodes send tables and server classes in the DataTables
// payload layout. An is_end table is appended automatically.
func EncodeDataTable(tables []SendTableMsg, classes []ServerClass) []byte {
	var w bitreader.Writer
	for i := range tables {
		writeSendTable(&w, &tables[i])
	}
	writeSendTable(&w, &SendTableMsg{IsEnd: true})

	w.WriteBits(uint64(len(classes)), 16)
	for _, c := range classes {
		w.WriteBits(uint64(c.ID), 16)
		w.WriteString(c.Name)
		w.WriteString(c.DTName)
	}
	return w.Bytes()
}

func writeSendTable(w *bitreader.Writer, msg *SendTableMsg) {
	body := AppendSendTable(nil, msg)
	w.WriteVarUint32(SvcSendTable)
	w.WriteVarUint32(uint32(len(body)))
	w.WriteBytes(body)
}
