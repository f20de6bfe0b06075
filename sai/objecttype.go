package sai

import "fmt"

// ObjectType identifies an object family.
type ObjectType uint32

const (
	ObjectTypeNull ObjectType = iota
	ObjectTypePort
	ObjectTypeLAG
	ObjectTypeVirtualRouter
	ObjectTypeNextHop
	ObjectTypeNextHopGroup
	ObjectTypeRouterInterface
	ObjectTypeACLTable
	ObjectTypeACLEntry
	ObjectTypeACLRange
	ObjectTypeHostif
	ObjectTypeHostifPacket
	ObjectTypeMirrorSession
	ObjectTypePolicer
	ObjectTypeQueue
	ObjectTypeSTP
	ObjectTypeSwitch
	ObjectTypeVLAN
	ObjectTypeVLANMember
	ObjectTypeFDBEntry
	ObjectTypeNeighborEntry
	ObjectTypeRouteEntry
	objectTypeMax
)

var objectTypeNames = [...]string{
	ObjectTypeNull:            "SAI_OBJECT_TYPE_NULL",
	ObjectTypePort:            "SAI_OBJECT_TYPE_PORT",
	ObjectTypeLAG:             "SAI_OBJECT_TYPE_LAG",
	ObjectTypeVirtualRouter:   "SAI_OBJECT_TYPE_VIRTUAL_ROUTER",
	ObjectTypeNextHop:         "SAI_OBJECT_TYPE_NEXT_HOP",
	ObjectTypeNextHopGroup:    "SAI_OBJECT_TYPE_NEXT_HOP_GROUP",
	ObjectTypeRouterInterface: "SAI_OBJECT_TYPE_ROUTER_INTERFACE",
	ObjectTypeACLTable:        "SAI_OBJECT_TYPE_ACL_TABLE",
	ObjectTypeACLEntry:        "SAI_OBJECT_TYPE_ACL_ENTRY",
	ObjectTypeACLRange:        "SAI_OBJECT_TYPE_ACL_RANGE",
	ObjectTypeHostif:          "SAI_OBJECT_TYPE_HOSTIF",
	ObjectTypeHostifPacket:    "SAI_OBJECT_TYPE_HOSTIF_PACKET",
	ObjectTypeMirrorSession:   "SAI_OBJECT_TYPE_MIRROR_SESSION",
	ObjectTypePolicer:         "SAI_OBJECT_TYPE_POLICER",
	ObjectTypeQueue:           "SAI_OBJECT_TYPE_QUEUE",
	ObjectTypeSTP:             "SAI_OBJECT_TYPE_STP",
	ObjectTypeSwitch:          "SAI_OBJECT_TYPE_SWITCH",
	ObjectTypeVLAN:            "SAI_OBJECT_TYPE_VLAN",
	ObjectTypeVLANMember:      "SAI_OBJECT_TYPE_VLAN_MEMBER",
	ObjectTypeFDBEntry:        "SAI_OBJECT_TYPE_FDB_ENTRY",
	ObjectTypeNeighborEntry:   "SAI_OBJECT_TYPE_NEIGHBOR_ENTRY",
	ObjectTypeRouteEntry:      "SAI_OBJECT_TYPE_ROUTE_ENTRY",
}

func (t ObjectType) String() string {
	if t < objectTypeMax {
		return objectTypeNames[t]
	}
	return fmt.Sprintf("SAI_OBJECT_TYPE_%d", uint32(t))
}

// Valid reports whether t names a real object family.
func (t ObjectType) Valid() bool {
	return t > ObjectTypeNull && t < objectTypeMax
}

// IsEntry reports whether objects of type t are addressed by a structured
// key instead of an allocated handle.
func (t ObjectType) IsEntry() bool {
	switch t {
	case ObjectTypeFDBEntry, ObjectTypeNeighborEntry, ObjectTypeRouteEntry:
		return true
	}
	return false
}

// ParseObjectType is the inverse of ObjectType.String.
func ParseObjectType(s string) (ObjectType, error) {
	for i, name := range objectTypeNames {
		if name == s {
			return ObjectType(i), nil
		}
	}
	return ObjectTypeNull, fmt.Errorf("unknown object type %q: %w", s, StatusInvalidParameter)
}

// ObjectTypes returns every valid object type in ascending order.
func ObjectTypes() []ObjectType {
	res := make([]ObjectType, 0, objectTypeMax-1)
	for t := ObjectTypeNull + 1; t < objectTypeMax; t++ {
		res = append(res, t)
	}
	return res
}
