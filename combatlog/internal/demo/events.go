package demo

import (
	"strconv"
	"unicode/utf16"
)

// Game event key types.
const (
	KeyLocal   int32 = 0
	KeyString  int32 = 1
	KeyFloat   int32 = 2
	KeyLong    int32 = 3
	KeyShort   int32 = 4
	KeyByte    int32 = 5
	KeyBool    int32 = 6
	KeyUint64  int32 = 7
	KeyWString int32 = 8
)

// EventKeyDescriptor names one key of a game event.
type EventKeyDescriptor struct {
	Type int32  `json:"type"`
	Name string `json:"name"`
}

// EventDescriptor describes the layout of a game event id.
type EventDescriptor struct {
	ID   int32                `json:"id"`
	Name string               `json:"name"`
	Keys []EventKeyDescriptor `json:"keys"`
}

// GameEvent is a game event with its keys resolved against the descriptor list.
type GameEvent struct {
	Tick int32             `json:"tick"`
	ID   int32             `json:"id"`
	Name string            `json:"name"`
	Keys map[string]string `json:"keys"`
}

func (d *Demo) resolveEvent(tick int32, msg *GameEventMsg) GameEvent {
	ev := GameEvent{
		Tick: tick,
		ID:   msg.EventID,
		Name: msg.EventName,
		Keys: make(map[string]string, len(msg.Keys)),
	}

	desc, ok := d.Descriptors[msg.EventID]
	if ok && ev.Name == "" {
		ev.Name = desc.Name
	}
	for i, k := range msg.Keys {
		name := "key_" + strconv.Itoa(i)
		if ok && i < len(desc.Keys) {
			name = desc.Keys[i].Name
		}
		ev.Keys[name] = k.String()
	}
	return ev
}

// String formats the key's value according to its type.
func (k EventKey) String() string {
	switch k.Type {
	case KeyString:
		return k.ValString
	case KeyFloat:
		return strconv.FormatFloat(float64(k.ValFloat), 'f', -1, 32)
	case KeyLong:
		return strconv.FormatInt(int64(k.ValLong), 10)
	case KeyShort:
		return strconv.FormatInt(int64(k.ValShort), 10)
	case KeyByte:
		return strconv.FormatInt(int64(k.ValByte), 10)
	case KeyBool:
		return strconv.FormatBool(k.ValBool)
	case KeyUint64:
		return strconv.FormatUint(k.ValUint64, 10)
	case KeyWString:
		u := make([]uint16, 0, len(k.ValWide)/2)
		for i := 0; i+1 < len(k.ValWide); i += 2 {
			u = append(u, uint16(k.ValWide[i])|uint16(k.ValWide[i+1])<<8)
		}
		return string(utf16.Decode(u))
	}
	return ""
}
