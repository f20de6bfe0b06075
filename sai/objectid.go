package sai

import (
	"fmt"
	"strconv"
	"strings"
)

// ObjectID is a 64-bit handle: the object type lives in the top 16 bits,
// a per-type counter in the low 48.
type ObjectID uint64

const NullObjectID ObjectID = 0

const (
	objectTypeShift = 48
	counterMask     = 1<<objectTypeShift - 1
)

// MakeObjectID composes a handle from a type tag and a counter value.
func MakeObjectID(t ObjectType, counter uint64) ObjectID {
	return ObjectID(uint64(t)<<objectTypeShift | counter&counterMask)
}

// Type returns the object type encoded in the handle.
func (id ObjectID) Type() ObjectType {
	return ObjectType(uint64(id) >> objectTypeShift)
}

// Counter returns the per-type counter part of the handle.
func (id ObjectID) Counter() uint64 {
	return uint64(id) & counterMask
}

func (id ObjectID) String() string {
	return "oid:0x" + strconv.FormatUint(uint64(id), 16)
}

// ParseObjectID parses the "oid:0x..." form produced by ObjectID.String.
func ParseObjectID(s string) (ObjectID, error) {
	if !strings.HasPrefix(s, "oid:0x") {
		return NullObjectID, fmt.Errorf("bad object id %q: %w", s, StatusInvalidParameter)
	}
	v, err := strconv.ParseUint(s[len("oid:0x"):], 16, 64)
	if err != nil {
		return NullObjectID, fmt.Errorf("bad object id %q: %w", s, StatusInvalidParameter)
	}
	return ObjectID(v), nil
}
