package store

import (
	"github.com/tinylib/msgp/msgp"

	"sairedis/sai"
)

// <- take |front|-----------------|back|  <- push
type QueueMeta struct {
	Front int64 `msg:"f"`
	Back  int64 `msg:"b"`
}

// ObjectRecord is a persisted object: encoded key, origin tag and encoded
// attributes.
type ObjectRecord struct {
	Key    string           `msg:"k"`
	Origin int              `msg:"o"`
	Fields []sai.FieldValue `msg:"f"`
}

// MarshalMsg implements msgp.Marshaler
func (z QueueMeta) MarshalMsg(b []byte) (o []byte, err error) {
	o = msgp.Require(b, z.Msgsize())
	// map header, size 2
	// string "f"
	o = append(o, 0x82, 0xa1, 0x66)
	o = msgp.AppendInt64(o, z.Front)
	// string "b"
	o = append(o, 0xa1, 0x62)
	o = msgp.AppendInt64(o, z.Back)
	return
}

// UnmarshalMsg implements msgp.Unmarshaler
func (z *QueueMeta) UnmarshalMsg(bts []byte) (o []byte, err error) {
	var field []byte
	_ = field
	var zb0001 uint32
	zb0001, bts, err = msgp.ReadMapHeaderBytes(bts)
	if err != nil {
		err = msgp.WrapError(err)
		return
	}
	for zb0001 > 0 {
		zb0001--
		field, bts, err = msgp.ReadMapKeyZC(bts)
		if err != nil {
			err = msgp.WrapError(err)
			return
		}
		switch msgp.UnsafeString(field) {
		case "f":
			z.Front, bts, err = msgp.ReadInt64Bytes(bts)
			if err != nil {
				err = msgp.WrapError(err, "Front")
				return
			}
		case "b":
			z.Back, bts, err = msgp.ReadInt64Bytes(bts)
			if err != nil {
				err = msgp.WrapError(err, "Back")
				return
			}
		default:
			bts, err = msgp.Skip(bts)
			if err != nil {
				err = msgp.WrapError(err)
				return
			}
		}
	}
	o = bts
	return
}

// Msgsize returns an upper bound estimate of the number of bytes occupied by the serialized message
func (z QueueMeta) Msgsize() (s int) {
	s = 1 + 2 + msgp.Int64Size + 2 + msgp.Int64Size
	return
}

// MarshalMsg implements msgp.Marshaler
func (z *ObjectRecord) MarshalMsg(b []byte) (o []byte, err error) {
	o = msgp.Require(b, z.Msgsize())
	// map header, size 3
	// string "k"
	o = append(o, 0x83, 0xa1, 0x6b)
	o = msgp.AppendString(o, z.Key)
	// string "o"
	o = append(o, 0xa1, 0x6f)
	o = msgp.AppendInt(o, z.Origin)
	// string "f"
	o = append(o, 0xa1, 0x66)
	o = msgp.AppendArrayHeader(o, uint32(len(z.Fields)))
	for za0001 := range z.Fields {
		o = msgp.AppendArrayHeader(o, 2)
		o = msgp.AppendString(o, z.Fields[za0001].Field)
		o = msgp.AppendString(o, z.Fields[za0001].Value)
	}
	return
}

// UnmarshalMsg implements msgp.Unmarshaler
func (z *ObjectRecord) UnmarshalMsg(bts []byte) (o []byte, err error) {
	var field []byte
	_ = field
	var zb0001 uint32
	zb0001, bts, err = msgp.ReadMapHeaderBytes(bts)
	if err != nil {
		err = msgp.WrapError(err)
		return
	}
	for zb0001 > 0 {
		zb0001--
		field, bts, err = msgp.ReadMapKeyZC(bts)
		if err != nil {
			err = msgp.WrapError(err)
			return
		}
		switch msgp.UnsafeString(field) {
		case "k":
			z.Key, bts, err = msgp.ReadStringBytes(bts)
			if err != nil {
				err = msgp.WrapError(err, "Key")
				return
			}
		case "o":
			z.Origin, bts, err = msgp.ReadIntBytes(bts)
			if err != nil {
				err = msgp.WrapError(err, "Origin")
				return
			}
		case "f":
			var zb0002 uint32
			zb0002, bts, err = msgp.ReadArrayHeaderBytes(bts)
			if err != nil {
				err = msgp.WrapError(err, "Fields")
				return
			}
			if cap(z.Fields) >= int(zb0002) {
				z.Fields = (z.Fields)[:zb0002]
			} else {
				z.Fields = make([]sai.FieldValue, zb0002)
			}
			for za0001 := range z.Fields {
				var zb0003 uint32
				zb0003, bts, err = msgp.ReadArrayHeaderBytes(bts)
				if err != nil {
					err = msgp.WrapError(err, "Fields", za0001)
					return
				}
				if zb0003 != 2 {
					err = msgp.ArrayError{Wanted: 2, Got: zb0003}
					return
				}
				z.Fields[za0001].Field, bts, err = msgp.ReadStringBytes(bts)
				if err != nil {
					err = msgp.WrapError(err, "Fields", za0001, "Field")
					return
				}
				z.Fields[za0001].Value, bts, err = msgp.ReadStringBytes(bts)
				if err != nil {
					err = msgp.WrapError(err, "Fields", za0001, "Value")
					return
				}
			}
		default:
			bts, err = msgp.Skip(bts)
			if err != nil {
				err = msgp.WrapError(err)
				return
			}
		}
	}
	o = bts
	return
}

// Msgsize returns an upper bound estimate of the number of bytes occupied by the serialized message
func (z *ObjectRecord) Msgsize() (s int) {
	s = 1 + 2 + msgp.StringPrefixSize + len(z.Key) + 2 + msgp.IntSize + 2 + msgp.ArrayHeaderSize
	for za0001 := range z.Fields {
		s += msgp.ArrayHeaderSize + msgp.StringPrefixSize + len(z.Fields[za0001].Field) + msgp.StringPrefixSize + len(z.Fields[za0001].Value)
	}
	return
}
