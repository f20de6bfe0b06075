package sai

import (
	"fmt"
	"net/netip"
	"slices"
)

// ValueType is the declared shape of an attribute value.
type ValueType int

const (
	ValueBool ValueType = iota
	ValueChardata
	ValueU8
	ValueS8
	ValueU16
	ValueS16
	ValueU32
	ValueS32
	ValueU64
	ValueS64
	ValueMAC
	ValueIPv4
	ValueIPv6
	ValueIPAddress
	ValueIPPrefix
	ValueObjectID
	ValueObjectList
	ValueU8List
	ValueS8List
	ValueU16List
	ValueU32List
	ValueS32List
	ValueVLANList
	ValueU32Range
	ValueS32Range

	ValueACLFieldBool
	ValueACLFieldU8
	ValueACLFieldU16
	ValueACLFieldU32
	ValueACLFieldS32
	ValueACLFieldMAC
	ValueACLFieldIPv4
	ValueACLFieldIPv6
	ValueACLFieldObjectID
	ValueACLFieldObjectList
	ValueACLFieldU8List

	ValueACLActionU8
	ValueACLActionU16
	ValueACLActionU32
	ValueACLActionS32
	ValueACLActionMAC
	ValueACLActionIPv4
	ValueACLActionIPv6
	ValueACLActionObjectID
	ValueACLActionObjectList
)

var aclInner = map[ValueType]ValueType{
	ValueACLFieldBool:        ValueBool,
	ValueACLFieldU8:          ValueU8,
	ValueACLFieldU16:         ValueU16,
	ValueACLFieldU32:         ValueU32,
	ValueACLFieldS32:         ValueS32,
	ValueACLFieldMAC:         ValueMAC,
	ValueACLFieldIPv4:        ValueIPv4,
	ValueACLFieldIPv6:        ValueIPv6,
	ValueACLFieldObjectID:    ValueObjectID,
	ValueACLFieldObjectList:  ValueObjectList,
	ValueACLFieldU8List:      ValueU8List,
	ValueACLActionU8:         ValueU8,
	ValueACLActionU16:        ValueU16,
	ValueACLActionU32:        ValueU32,
	ValueACLActionS32:        ValueS32,
	ValueACLActionMAC:        ValueMAC,
	ValueACLActionIPv4:       ValueIPv4,
	ValueACLActionIPv6:       ValueIPv6,
	ValueACLActionObjectID:   ValueObjectID,
	ValueACLActionObjectList: ValueObjectList,
}

// IsACLField reports whether t is one of the ACL field-data shapes.
func (t ValueType) IsACLField() bool {
	return t >= ValueACLFieldBool && t <= ValueACLFieldU8List
}

// IsACLAction reports whether t is one of the ACL action-data shapes.
func (t ValueType) IsACLAction() bool {
	return t >= ValueACLActionU8 && t <= ValueACLActionObjectList
}

// Inner returns the payload shape of an ACL field/action type, or t itself.
func (t ValueType) Inner() ValueType {
	if in, ok := aclInner[t]; ok {
		return in
	}
	return t
}

// IsList reports whether values of shape t (or its ACL payload) are
// length-prefixed lists.
func (t ValueType) IsList() bool {
	switch t.Inner() {
	case ValueObjectList, ValueU8List, ValueS8List, ValueU16List, ValueU32List, ValueS32List, ValueVLANList:
		return true
	}
	return false
}

// CarriesObjectID reports whether shape t can embed handles.
func (t ValueType) CarriesObjectID() bool {
	in := t.Inner()
	return in == ValueObjectID || in == ValueObjectList
}

// MAC is a 48-bit hardware address.
type MAC [6]byte

func (m MAC) String() string {
	return fmt.Sprintf("%02X:%02X:%02X:%02X:%02X:%02X", m[0], m[1], m[2], m[3], m[4], m[5])
}

// ParseMAC parses "AA:BB:CC:DD:EE:FF" (case-insensitive).
func ParseMAC(s string) (MAC, error) {
	var m MAC
	if len(s) != 17 {
		return m, fmt.Errorf("bad mac %q: %w", s, StatusInvalidParameter)
	}
	for i := 0; i < 6; i++ {
		if i > 0 && s[i*3-1] != ':' {
			return m, fmt.Errorf("bad mac %q: %w", s, StatusInvalidParameter)
		}
		var b byte
		for _, c := range []byte(s[i*3 : i*3+2]) {
			b <<= 4
			switch {
			case c >= '0' && c <= '9':
				b |= c - '0'
			case c >= 'a' && c <= 'f':
				b |= c - 'a' + 10
			case c >= 'A' && c <= 'F':
				b |= c - 'A' + 10
			default:
				return m, fmt.Errorf("bad mac %q: %w", s, StatusInvalidParameter)
			}
		}
		m[i] = b
	}
	return m, nil
}

// List is a counted list. Count is the buffer size on a GET request and the
// element count everywhere else; Items may be shorter than Count when only
// the size is known.
type List[T any] struct {
	Count uint32
	Items []T
}

// ListOf builds a list whose count matches its items.
func ListOf[T any](items ...T) List[T] {
	return List[T]{Count: uint32(len(items)), Items: items}
}

// Range is an inclusive numeric range.
type Range struct {
	Min int64
	Max int64
}

// ACLField is field data of an ACL entry: match data plus mask.
type ACLField struct {
	Enable bool
	Data   Value
	Mask   Value
}

// ACLAction is action data of an ACL entry.
type ACLAction struct {
	Enable    bool
	Parameter Value
}

// Value holds an attribute value. Which member is meaningful is decided by
// the attribute's declared ValueType, not by the value itself.
type Value struct {
	Bool     bool
	Chardata string
	Uint     uint64 // u8, u16, u32, u64 and enums
	Int      int64  // s8, s16, s32, s64
	MAC      MAC
	IP       netip.Addr
	Prefix   netip.Prefix
	OID      ObjectID
	Objects  List[ObjectID]
	Uints    List[uint64] // u8, u16, u32 and VLAN lists
	Ints     List[int64]  // s8 and s32 lists
	Range    Range
	Field    *ACLField
	Action   *ACLAction
}

// Attribute is a single attribute id with its value.
type Attribute struct {
	ID    AttrID
	Value Value
}

// FieldValue is an encoded attribute: canonical attribute name and text value.
type FieldValue struct {
	Field string
	Value string
}

// Clone returns a deep copy of v.
func (v Value) Clone() Value {
	c := v
	c.Objects.Items = slices.Clone(v.Objects.Items)
	c.Uints.Items = slices.Clone(v.Uints.Items)
	c.Ints.Items = slices.Clone(v.Ints.Items)
	if v.Field != nil {
		f := *v.Field
		f.Data = f.Data.Clone()
		f.Mask = f.Mask.Clone()
		c.Field = &f
	}
	if v.Action != nil {
		a := *v.Action
		a.Parameter = a.Parameter.Clone()
		c.Action = &a
	}
	return c
}

// ListCount returns the count of the list member selected by vt, and false
// when vt is not a list shape.
func (v Value) ListCount(vt ValueType) (count uint32, items int, ok bool) {
	switch vt {
	case ValueObjectList:
		return v.Objects.Count, len(v.Objects.Items), true
	case ValueU8List, ValueU16List, ValueU32List, ValueVLANList:
		return v.Uints.Count, len(v.Uints.Items), true
	case ValueS8List, ValueS32List:
		return v.Ints.Count, len(v.Ints.Items), true
	}
	return 0, 0, false
}

// SetListCount sets the count of the list member selected by vt and drops
// its items. It is used to report the required buffer size.
func (v *Value) SetListCount(vt ValueType, n uint32) {
	switch vt {
	case ValueObjectList:
		v.Objects = List[ObjectID]{Count: n}
	case ValueU8List, ValueU16List, ValueU32List, ValueVLANList:
		v.Uints = List[uint64]{Count: n}
	case ValueS8List, ValueS32List:
		v.Ints = List[int64]{Count: n}
	}
}

// CloneAttributes deep-copies an attribute list.
func CloneAttributes(attrs []Attribute) []Attribute {
	if attrs == nil {
		return nil
	}
	res := make([]Attribute, len(attrs))
	for i, a := range attrs {
		res[i] = Attribute{ID: a.ID, Value: a.Value.Clone()}
	}
	return res
}

// FindAttribute returns the attribute with the given id.
func FindAttribute(attrs []Attribute, id AttrID) (Attribute, bool) {
	for _, a := range attrs {
		if a.ID == id {
			return a, true
		}
	}
	return Attribute{}, false
}
