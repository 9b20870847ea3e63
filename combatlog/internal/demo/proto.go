package demo

import (
	"fmt"
	"math"

	"google.golang.org/protobuf/encoding/protowire"
)

// The net messages embedded in demo packets are protobuf encoded. Only the
// handful of messages needed for the schema and game events are decoded, so
// they are read field by field with protowire instead of generated types.

// SendTableMsg is CSVCMsg_SendTable.
type SendTableMsg struct {
	IsEnd        bool
	NetTableName string
	NeedsDecoder bool
	Props        []SendProp
}

// GameEventListMsg is CSVCMsg_GameEventList.
type GameEventListMsg struct {
	Descriptors []EventDescriptor
}

// GameEventMsg is CSVCMsg_GameEvent.
type GameEventMsg struct {
	EventName string
	EventID   int32
	Keys      []EventKey
}

// EventKey is a single typed value of a game event.
type EventKey struct {
	Type      int32
	ValString string
	ValFloat  float32
	ValLong   int32
	ValShort  int32
	ValByte   int32
	ValBool   bool
	ValUint64 uint64
	ValWide   []byte
}

type fieldFunc func(num protowire.Number, typ protowire.Type, b []byte) (int, error)

func walkFields(b []byte, fn fieldFunc) error {
	for len(b) > 0 {
		num, typ, n := protowire.ConsumeTag(b)
		if n < 0 {
			return fmt.Errorf("invalid protobuf tag: %w", protowire.ParseError(n))
		}
		b = b[n:]

		used, err := fn(num, typ, b)
		if err != nil {
			return err
		}
		if used == 0 {
			used = protowire.ConsumeFieldValue(num, typ, b)
		}
		if used < 0 {
			return fmt.Errorf("invalid protobuf field %d: %w", num, protowire.ParseError(used))
		}
		b = b[used:]
	}
	return nil
}

func consumeVarint(b []byte) (uint64, int, error) {
	v, n := protowire.ConsumeVarint(b)
	if n < 0 {
		return 0, n, protowire.ParseError(n)
	}
	return v, n, nil
}

func consumeBytes(b []byte) ([]byte, int, error) {
	v, n := protowire.ConsumeBytes(b)
	if n < 0 {
		return nil, n, protowire.ParseError(n)
	}
	return v, n, nil
}

func consumeFloat(b []byte) (float32, int, error) {
	v, n := protowire.ConsumeFixed32(b)
	if n < 0 {
		return 0, n, protowire.ParseError(n)
	}
	return math.Float32frombits(v), n, nil
}

// DecodeSendTable decodes a CSVCMsg_SendTable payload.
func DecodeSendTable(b []byte) (*SendTableMsg, error) {
	msg := &SendTableMsg{}
	err := walkFields(b, func(num protowire.Number, typ protowire.Type, b []byte) (int, error) {
		switch {
		case num == 1 && typ == protowire.VarintType:
			v, n, err := consumeVarint(b)
			msg.IsEnd = v != 0
			return n, err
		case num == 2 && typ == protowire.BytesType:
			v, n, err := consumeBytes(b)
			msg.NetTableName = string(v)
			return n, err
		case num == 3 && typ == protowire.VarintType:
			v, n, err := consumeVarint(b)
			msg.NeedsDecoder = v != 0
			return n, err
		case num == 4 && typ == protowire.BytesType:
			v, n, err := consumeBytes(b)
			if err != nil {
				return n, err
			}
			prop, err := decodeSendProp(v)
			if err != nil {
				return n, err
			}
			msg.Props = append(msg.Props, prop)
			return n, nil
		}
		return 0, nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to decode send table: %w", err)
	}
	return msg, nil
}

func decodeSendProp(b []byte) (SendProp, error) {
	var p SendProp
	err := walkFields(b, func(num protowire.Number, typ protowire.Type, b []byte) (int, error) {
		switch typ {
		case protowire.VarintType:
			v, n, err := consumeVarint(b)
			switch num {
			case 1:
				p.Type = PropType(int32(v))
			case 3:
				p.Flags = int32(v)
			case 4:
				p.Priority = int32(v)
			case 6:
				p.NumElements = int32(v)
			case 9:
				p.NumBits = int32(v)
			}
			return n, err
		case protowire.BytesType:
			v, n, err := consumeBytes(b)
			switch num {
			case 2:
				p.VarName = string(v)
			case 5:
				p.DTName = string(v)
			}
			return n, err
		case protowire.Fixed32Type:
			v, n, err := consumeFloat(b)
			switch num {
			case 7:
				p.LowValue = v
			case 8:
				p.HighValue = v
			}
			return n, err
		}
		return 0, nil
	})
	return p, err
}

// DecodeGameEventList decodes a CSVCMsg_GameEventList payload.
func DecodeGameEventList(b []byte) (*GameEventListMsg, error) {
	msg := &GameEventListMsg{}
	err := walkFields(b, func(num protowire.Number, typ protowire.Type, b []byte) (int, error) {
		if num != 1 || typ != protowire.BytesType {
			return 0, nil
		}
		v, n, err := consumeBytes(b)
		if err != nil {
			return n, err
		}
		d, err := decodeDescriptor(v)
		if err != nil {
			return n, err
		}
		msg.Descriptors = append(msg.Descriptors, d)
		return n, nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to decode game event list: %w", err)
	}
	return msg, nil
}

func decodeDescriptor(b []byte) (EventDescriptor, error) {
	var d EventDescriptor
	err := walkFields(b, func(num protowire.Number, typ protowire.Type, b []byte) (int, error) {
		switch {
		case num == 1 && typ == protowire.VarintType:
			v, n, err := consumeVarint(b)
			d.ID = int32(v)
			return n, err
		case num == 2 && typ == protowire.BytesType:
			v, n, err := consumeBytes(b)
			d.Name = string(v)
			return n, err
		case num == 3 && typ == protowire.BytesType:
			v, n, err := consumeBytes(b)
			if err != nil {
				return n, err
			}
			var k EventKeyDescriptor
			err = walkFields(v, func(num protowire.Number, typ protowire.Type, b []byte) (int, error) {
				switch {
				case num == 1 && typ == protowire.VarintType:
					v, n, err := consumeVarint(b)
					k.Type = int32(v)
					return n, err
				case num == 2 && typ == protowire.BytesType:
					v, n, err := consumeBytes(b)
					k.Name = string(v)
					return n, err
				}
				return 0, nil
			})
			d.Keys = append(d.Keys, k)
			return n, err
		}
		return 0, nil
	})
	return d, err
}

// DecodeGameEvent decodes a CSVCMsg_GameEvent payload.
func DecodeGameEvent(b []byte) (*GameEventMsg, error) {
	msg := &GameEventMsg{}
	err := walkFields(b, func(num protowire.Number, typ protowire.Type, b []byte) (int, error) {
		switch {
		case num == 1 && typ == protowire.BytesType:
			v, n, err := consumeBytes(b)
			msg.EventName = string(v)
			return n, err
		case num == 2 && typ == protowire.VarintType:
			v, n, err := consumeVarint(b)
			msg.EventID = int32(v)
			return n, err
		case num == 3 && typ == protowire.BytesType:
			v, n, err := consumeBytes(b)
			if err != nil {
				return n, err
			}
			k, err := decodeEventKey(v)
			msg.Keys = append(msg.Keys, k)
			return n, err
		}
		return 0, nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to decode game event: %w", err)
	}
	return msg, nil
}

func decodeEventKey(b []byte) (EventKey, error) {
	var k EventKey
	err := walkFields(b, func(num protowire.Number, typ protowire.Type, b []byte) (int, error) {
		switch typ {
		case protowire.VarintType:
			v, n, err := consumeVarint(b)
			switch num {
			case 1:
				k.Type = int32(v)
			case 4:
				k.ValLong = int32(v)
			case 5:
				k.ValShort = int32(v)
			case 6:
				k.ValByte = int32(v)
			case 7:
				k.ValBool = v != 0
			case 8:
				k.ValUint64 = v
			}
			return n, err
		case protowire.BytesType:
			v, n, err := consumeBytes(b)
			switch num {
			case 2:
				k.ValString = string(v)
			case 9:
				k.ValWide = append([]byte(nil), v...)
			}
			return n, err
		case protowire.Fixed32Type:
			if num == 3 {
				v, n, err := consumeFloat(b)
				k.ValFloat = v
				return n, err
			}
		}
		return 0, nil
	})
	return k, err
}

// AppendSendTable encodes msg as CSVCMsg_SendTable.
func AppendSendTable(b []byte, msg *SendTableMsg) []byte {
	b = appendBool(b, 1, msg.IsEnd)
	b = appendString(b, 2, msg.NetTableName)
	b = appendBool(b, 3, msg.NeedsDecoder)
	for _, p := range msg.Props {
		var pb []byte
		pb = appendInt(pb, 1, int32(p.Type))
		pb = appendString(pb, 2, p.VarName)
		pb = appendInt(pb, 3, p.Flags)
		pb = appendInt(pb, 4, p.Priority)
		pb = appendString(pb, 5, p.DTName)
		pb = appendInt(pb, 6, p.NumElements)
		pb = appendFloat(pb, 7, p.LowValue)
		pb = appendFloat(pb, 8, p.HighValue)
		pb = appendInt(pb, 9, p.NumBits)
		b = protowire.AppendTag(b, 4, protowire.BytesType)
		b = protowire.AppendBytes(b, pb)
	}
	return b
}

// AppendGameEventList encodes msg as CSVCMsg_GameEventList.
func AppendGameEventList(b []byte, msg *GameEventListMsg) []byte {
	for _, d := range msg.Descriptors {
		var db []byte
		db = appendInt(db, 1, d.ID)
		db = appendString(db, 2, d.Name)
		for _, k := range d.Keys {
			var kb []byte
			kb = appendInt(kb, 1, k.Type)
			kb = appendString(kb, 2, k.Name)
			db = protowire.AppendTag(db, 3, protowire.BytesType)
			db = protowire.AppendBytes(db, kb)
		}
		b = protowire.AppendTag(b, 1, protowire.BytesType)
		b = protowire.AppendBytes(b, db)
	}
	return b
}

// AppendGameEvent encodes msg as CSVCMsg_GameEvent.
func AppendGameEvent(b []byte, msg *GameEventMsg) []byte {
	b = appendString(b, 1, msg.EventName)
	b = appendInt(b, 2, msg.EventID)
	for _, k := range msg.Keys {
		var kb []byte
		kb = appendInt(kb, 1, k.Type)
		switch k.Type {
		case KeyString:
			kb = appendString(kb, 2, k.ValString)
		case KeyFloat:
			kb = appendFloat(kb, 3, k.ValFloat)
		case KeyLong:
			kb = appendInt(kb, 4, k.ValLong)
		case KeyShort:
			kb = appendInt(kb, 5, k.ValShort)
		case KeyByte:
			kb = appendInt(kb, 6, k.ValByte)
		case KeyBool:
			kb = appendBool(kb, 7, k.ValBool)
		case KeyUint64:
			kb = protowire.AppendTag(kb, 8, protowire.VarintType)
			kb = protowire.AppendVarint(kb, k.ValUint64)
		case KeyWString:
			kb = protowire.AppendTag(kb, 9, protowire.BytesType)
			kb = protowire.AppendBytes(kb, k.ValWide)
		}
		b = protowire.AppendTag(b, 3, protowire.BytesType)
		b = protowire.AppendBytes(b, kb)
	}
	return b
}

func appendInt(b []byte, num protowire.Number, v int32) []byte {
	if v == 0 {
		return b
	}
	b = protowire.AppendTag(b, num, protowire.VarintType)
	return protowire.AppendVarint(b, uint64(int64(v)))
}

func appendBool(b []byte, num protowire.Number, v bool) []byte {
	if !v {
		return b
	}
	b = protowire.AppendTag(b, num, protowire.VarintType)
	return protowire.AppendVarint(b, 1)
}

func appendString(b []byte, num protowire.Number, s string) []byte {
	if s == "" {
		return b
	}
	b = protowire.AppendTag(b, num, protowire.BytesType)
	return protowire.AppendString(b, s)
}

func appendFloat(b []byte, num protowire.Number, f float32) []byte {
	if f == 0 {
		return b
	}
	b = protowire.AppendTag(b, num, protowire.Fixed32Type)
	return protowire.AppendFixed32(b, math.Float32bits(f))
}
