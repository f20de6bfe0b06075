package sai

import (
	"fmt"

	"github.com/tinylib/msgp/msgp"
)

// Record operations.
const (
	OpCreate   = "create"
	OpRemove   = "remove"
	OpSet      = "set"
	OpGet      = "get"
	OpNotify   = "notify"
	OpResponse = "getresponse"
)

// View transition requests carried in the key of an OpNotify record.
const (
	ViewInit  = "INIT_VIEW"
	ViewApply = "APPLY_VIEW"
)

// Record is the unit exchanged on every channel. Requests carry the
// encoded object key; responses carry the status name in Key. For
// notifications Op is the notification name and Key the payload.
type Record struct {
	ID     string       `msg:"i"`
	Op     string       `msg:"o"`
	Key    string       `msg:"k"`
	Fields []FieldValue `msg:"f"`
}

// MarshalMsg implements msgp.Marshaler
func (r *Record) MarshalMsg(b []byte) (o []byte, err error) {
	o = msgp.Require(b, r.Msgsize())
	o = msgp.AppendArrayHeader(o, 4)
	o = msgp.AppendString(o, r.ID)
	o = msgp.AppendString(o, r.Op)
	o = msgp.AppendString(o, r.Key)
	o = msgp.AppendArrayHeader(o, uint32(len(r.Fields)))
	for _, f := range r.Fields {
		o = msgp.AppendArrayHeader(o, 2)
		o = msgp.AppendString(o, f.Field)
		o = msgp.AppendString(o, f.Value)
	}
	return
}

// UnmarshalMsg implements msgp.Unmarshaler
func (r *Record) UnmarshalMsg(bts []byte) (o []byte, err error) {
	var sz uint32
	sz, bts, err = msgp.ReadArrayHeaderBytes(bts)
	if err != nil {
		return
	}
	if sz != 4 {
		err = msgp.ArrayError{Wanted: 4, Got: sz}
		return
	}
	r.ID, bts, err = msgp.ReadStringBytes(bts)
	if err != nil {
		err = msgp.WrapError(err, "ID")
		return
	}
	r.Op, bts, err = msgp.ReadStringBytes(bts)
	if err != nil {
		err = msgp.WrapError(err, "Op")
		return
	}
	r.Key, bts, err = msgp.ReadStringBytes(bts)
	if err != nil {
		err = msgp.WrapError(err, "Key")
		return
	}
	sz, bts, err = msgp.ReadArrayHeaderBytes(bts)
	if err != nil {
		err = msgp.WrapError(err, "Fields")
		return
	}
	r.Fields = nil
	if sz > 0 {
		r.Fields = make([]FieldValue, sz)
	}
	for i := range r.Fields {
		var n uint32
		n, bts, err = msgp.ReadArrayHeaderBytes(bts)
		if err != nil {
			err = msgp.WrapError(err, "Fields", i)
			return
		}
		if n != 2 {
			err = msgp.WrapError(msgp.ArrayError{Wanted: 2, Got: n}, "Fields", i)
			return
		}
		r.Fields[i].Field, bts, err = msgp.ReadStringBytes(bts)
		if err != nil {
			err = msgp.WrapError(err, "Fields", i, "Field")
			return
		}
		r.Fields[i].Value, bts, err = msgp.ReadStringBytes(bts)
		if err != nil {
			err = msgp.WrapError(err, "Fields", i, "Value")
			return
		}
	}
	o = bts
	return
}

// Msgsize returns an upper bound estimate of the number of bytes occupied by the serialized message
func (r *Record) Msgsize() (s int) {
	s = 2*msgp.ArrayHeaderSize + 3*msgp.StringPrefixSize + len(r.ID) + len(r.Op) + len(r.Key)
	for _, f := range r.Fields {
		s += msgp.ArrayHeaderSize + 2*msgp.StringPrefixSize + len(f.Field) + len(f.Value)
	}
	return
}

// ApplyError reports the first operation that failed while applying a view.
// Operations before it stay applied.
type ApplyError struct {
	Op     string
	Key    string
	Status Status
}

func (e *ApplyError) Error() string {
	return fmt.Sprintf("apply view: %s %s: %s", e.Op, e.Key, e.Status)
}

func (e *ApplyError) Unwrap() error {
	return e.Status
}
