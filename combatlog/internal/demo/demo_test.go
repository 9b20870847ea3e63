package demo

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testTables() []SendTableMsg {
	return []SendTableMsg{
		{
			NetTableName: "DT_Player",
			Props: []SendProp{
				{Type: PropInt, VarName: "m_iHealth", Priority: 128},
				{Type: PropDataTable, VarName: "baseclass", DTName: "DT_Base", Priority: 128},
				{Type: PropDataTable, VarName: "m_Local", DTName: "DT_Local", Flags: SPropCollapsible, Priority: 128},
				{Type: PropInt, VarName: "m_hidden", DTName: "DT_Base", Flags: SPropExclude, Priority: 128},
				{Type: PropInt, VarName: "000", Flags: SPropInsideArray, Priority: 128},
				{Type: PropArray, VarName: "m_iAmmo", NumElements: 32, Priority: 128},
			},
		},
		{
			NetTableName: "DT_Base",
			Props: []SendProp{
				{Type: PropFloat, VarName: "m_flSimulationTime", Priority: 128},
				{Type: PropInt, VarName: "m_hidden", Priority: 128},
				{Type: PropVector, VarName: "m_vecOrigin", Priority: 10},
			},
		},
		{
			NetTableName: "DT_Local",
			Props: []SendProp{
				{Type: PropFloat, VarName: "m_flFallVelocity", Priority: 128},
			},
		},
	}
}

func testClasses() []ServerClass {
	return []ServerClass{
		{ID: 0, Name: "CCSPlayer", DTName: "DT_Player"},
		{ID: 1, Name: "CBaseEntity", DTName: "DT_Base"},
	}
}

func TestParseDataTable(t *testing.T) {
	dt, err := ParseDataTable(EncodeDataTable(testTables(), testClasses()))
	require.NoError(t, err)

	assert.Len(t, dt.Tables, 3)
	assert.Equal(t, 2, dt.ClassBits)

	player, ok := dt.Class(0)
	require.True(t, ok)
	assert.Equal(t, "CCSPlayer", player.Name)

	var names []string
	for _, p := range player.Props {
		names = append(names, p.Name)
	}
	assert.Equal(t, []string{
		"baseclass.m_vecOrigin",
		"baseclass.m_flSimulationTime",
		"m_iHealth",
		"m_flFallVelocity",
		"m_iAmmo",
	}, names)

	ammo := player.Props[4]
	require.NotNil(t, ammo.ArrayElement)
	assert.Equal(t, "000", ammo.ArrayElement.VarName)

	for i := 1; i < len(player.Props); i++ {
		assert.LessOrEqual(t, player.Props[i-1].Prop.Priority, player.Props[i].Prop.Priority)
	}

	base, ok := dt.Class(1)
	require.True(t, ok)
	assert.Len(t, base.Props, 3, "exclusions only apply within the excluding class")

	_, ok = dt.Class(7)
	assert.False(t, ok)
}

func TestFlattenChangesOftenPriority(t *testing.T) {
	tables := []SendTableMsg{{
		NetTableName: "DT_Weapon",
		Props: []SendProp{
			{Type: PropInt, VarName: "m_iClip1", Priority: 128},
			{Type: PropInt, VarName: "m_nTickBase", Priority: 100},
			{Type: PropFloat, VarName: "m_flNextPrimaryAttack", Flags: SPropChangesOften, Priority: 128},
			{Type: PropInt, VarName: "m_iState", Flags: SPropChangesOften, Priority: 32},
			{Type: PropInt, VarName: "m_fEffects", Priority: 64},
		},
	}}
	dt, err := ParseDataTable(EncodeDataTable(tables, []ServerClass{{ID: 0, Name: "CWeapon", DTName: "DT_Weapon"}}))
	require.NoError(t, err)

	class, ok := dt.Class(0)
	require.True(t, ok)

	var names []string
	for _, p := range class.Props {
		names = append(names, p.Name)
	}
	assert.Equal(t, []string{
		"m_iState",
		"m_flNextPrimaryAttack",
		"m_fEffects",
		"m_nTickBase",
		"m_iClip1",
	}, names, "changes-often props sort in the 64 bucket ahead of ties")

	for i := 1; i < len(class.Props); i++ {
		assert.LessOrEqual(t, class.Props[i-1].Prop.effectivePriority(), class.Props[i].Prop.effectivePriority())
	}
}

func TestParseDataTableClassOutOfRange(t *testing.T) {
	classes := []ServerClass{{ID: 5, Name: "CBad", DTName: "DT_Base"}}
	_, err := ParseDataTable(EncodeDataTable(testTables(), classes))
	assert.ErrorIs(t, err, ErrClassIndex)
}

func TestParseDataTableDuplicateNameKeepsFirst(t *testing.T) {
	tables := append(testTables(), SendTableMsg{
		NetTableName: "DT_Local",
		Props:        []SendProp{{Type: PropInt, VarName: "m_other"}},
	})
	dt, err := ParseDataTable(EncodeDataTable(tables, nil))
	require.NoError(t, err)
	assert.Equal(t, "m_flFallVelocity", dt.Tables["DT_Local"].Props[0].VarName)
}

func buildDemo(t *testing.T) []byte {
	t.Helper()

	b, err := NewBuilder(Header{MapName: "de_dust2", ServerName: "local", PlaybackTicks: 640})
	require.NoError(t, err)

	b.DataTables(0, testTables(), testClasses())
	b.ConsoleCmd(1, "say hi")
	b.SyncTick(1)

	list := AppendGameEventList(nil, &GameEventListMsg{Descriptors: []EventDescriptor{{
		ID:   24,
		Name: "player_death",
		Keys: []EventKeyDescriptor{
			{Type: KeyShort, Name: "userid"},
			{Type: KeyBool, Name: "headshot"},
			{Type: KeyString, Name: "weapon"},
		},
	}}})
	ev := AppendGameEvent(nil, &GameEventMsg{EventID: 24, Keys: []EventKey{
		{Type: KeyShort, ValShort: 3},
		{Type: KeyBool, ValBool: true},
		{Type: KeyString, ValString: "ak47"},
	}})

	b.Packet(2, Message{Cmd: SvcGameEventList, Data: list})
	b.Packet(64, Message{Cmd: NetNOP}, Message{Cmd: SvcGameEvent, Data: ev})
	b.Stop(640)
	return b.Bytes()
}

func TestParseBytes(t *testing.T) {
	d, err := ParseBytes(buildDemo(t))
	require.NoError(t, err)

	assert.Equal(t, "de_dust2", d.Header.MapName)
	assert.Equal(t, int32(640), d.Header.PlaybackTicks)
	require.NotNil(t, d.DataTable)
	assert.Len(t, d.DataTable.Classes, 2)

	require.Len(t, d.GameEvents, 1)
	ev := d.GameEvents[0]
	assert.Equal(t, int32(64), ev.Tick)
	assert.Equal(t, "player_death", ev.Name)
	assert.Equal(t, map[string]string{"userid": "3", "headshot": "true", "weapon": "ak47"}, ev.Keys)

	assert.Equal(t, 2, d.Stats.Packets)
	assert.Equal(t, 3, d.Stats.Messages)
	assert.Equal(t, int32(640), d.Stats.LastTick)
	assert.Equal(t, 1, d.Stats.ByCommand["stop"])
}

func TestParseErrors(t *testing.T) {
	valid := buildDemo(t)

	tests := []struct {
		name    string
		mutate  func([]byte) []byte
		wantErr error
	}{
		{
			name: "bad filestamp",
			mutate: func(b []byte) []byte {
				copy(b, "HL3DEMO")
				return b
			},
			wantErr: ErrBadSignature,
		},
		{
			name: "bad protocol",
			mutate: func(b []byte) []byte {
				b[8] = 3
				return b
			},
			wantErr: ErrBadProtocol,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			data := tt.mutate(bytes.Clone(valid))
			_, err := ParseBytes(data)
			assert.ErrorIs(t, err, tt.wantErr)
		})
	}

	t.Run("truncated stream keeps earlier commands", func(t *testing.T) {
		d, err := ParseBytes(valid[:len(valid)-20])
		assert.ErrorIs(t, err, ErrTruncated)
		require.NotNil(t, d)
		assert.NotNil(t, d.DataTable)
		assert.Contains(t, d.Descriptors, int32(24))
	})

	t.Run("short header", func(t *testing.T) {
		_, err := Parse(bytes.NewReader(valid[:100]))
		assert.Error(t, err)
	})
}

func TestParseTruncatedTrailingCommand(t *testing.T) {
	full := buildDemo(t)
	// Drop the stop command and append a packet cut off inside its command info.
	b, err := NewBuilder(Header{})
	require.NoError(t, err)
	b.command(CmdPacket, 700)
	b.w.WriteBytes(make([]byte, 10))
	tail := b.Bytes()[HeaderSize:]
	data := append(bytes.Clone(full[:len(full)-CommandHeaderSize]), tail...)

	d, err := ParseBytes(data)
	require.ErrorIs(t, err, ErrTruncated)
	require.NotNil(t, d)
	require.Len(t, d.GameEvents, 1)
	assert.Equal(t, "player_death", d.GameEvents[0].Name)
	assert.Equal(t, int32(700), d.Stats.LastTick)
	assert.Zero(t, d.Stats.ByCommand["stop"])
}

func TestPacketPayloadLimit(t *testing.T) {
	b, err := NewBuilder(Header{})
	require.NoError(t, err)
	b.command(CmdPacket, 1)
	b.w.WriteBytes(make([]byte, CmdInfoSize+8))
	b.w.WriteInt32LE(MaxPacketPayload + 1)

	_, err = ParseBytes(b.Bytes())
	assert.ErrorIs(t, err, ErrPayloadSize)
}

func TestSplitMessages(t *testing.T) {
	payload := []byte{0x19, 0x02, 0xaa, 0xbb, 0x00, 0x00}
	msgs, err := SplitMessages(9, payload)
	require.NoError(t, err)
	require.Len(t, msgs, 2)
	assert.Equal(t, uint32(SvcGameEvent), msgs[0].Cmd)
	assert.Equal(t, []byte{0xaa, 0xbb}, msgs[0].Data)
	assert.Equal(t, uint32(NetNOP), msgs[1].Cmd)
	assert.Empty(t, msgs[1].Data)

	_, err = SplitMessages(9, []byte{0x19, 0x05, 0xaa})
	assert.Error(t, err)
}
