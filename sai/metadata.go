package sai

import "sort"

// AttrFlags describe how an attribute may be used.
type AttrFlags uint8

const (
	// AttrReadOnly attributes are produced by the switch and can only be read.
	AttrReadOnly AttrFlags = 1 << iota
	// AttrCreateOnly attributes are fixed at create time.
	AttrCreateOnly
	// AttrControl attributes are handled by the daemon and never reach the hardware.
	AttrControl
)

// AttrMetadata is the declared shape of one attribute.
type AttrMetadata struct {
	ObjectType ObjectType
	ID         AttrID
	Name       string
	ValueType  ValueType
	Flags      AttrFlags
	// ObjectTypes lists the types a handle-carrying attribute may reference.
	ObjectTypes []ObjectType
}

func (m *AttrMetadata) ReadOnly() bool   { return m.Flags&AttrReadOnly != 0 }
func (m *AttrMetadata) CreateOnly() bool { return m.Flags&AttrCreateOnly != 0 }
func (m *AttrMetadata) Control() bool    { return m.Flags&AttrControl != 0 }

// Metadata answers what shape an attribute has. Callers never hard-code
// shapes themselves.
type Metadata interface {
	Attr(t ObjectType, id AttrID) (*AttrMetadata, bool)
	AttrByName(t ObjectType, name string) (*AttrMetadata, bool)
	Attrs(t ObjectType) []*AttrMetadata
}

type table struct {
	byID   map[ObjectType]map[AttrID]*AttrMetadata
	byName map[ObjectType]map[string]*AttrMetadata
}

// NewMetadata builds a Metadata from a list of attribute declarations.
func NewMetadata(attrs []AttrMetadata) Metadata {
	t := &table{
		byID:   map[ObjectType]map[AttrID]*AttrMetadata{},
		byName: map[ObjectType]map[string]*AttrMetadata{},
	}
	for i := range attrs {
		m := &attrs[i]
		if t.byID[m.ObjectType] == nil {
			t.byID[m.ObjectType] = map[AttrID]*AttrMetadata{}
			t.byName[m.ObjectType] = map[string]*AttrMetadata{}
		}
		t.byID[m.ObjectType][m.ID] = m
		t.byName[m.ObjectType][m.Name] = m
	}
	return t
}

func (t *table) Attr(ot ObjectType, id AttrID) (*AttrMetadata, bool) {
	m, ok := t.byID[ot][id]
	return m, ok
}

func (t *table) AttrByName(ot ObjectType, name string) (*AttrMetadata, bool) {
	m, ok := t.byName[ot][name]
	return m, ok
}

func (t *table) Attrs(ot ObjectType) []*AttrMetadata {
	res := make([]*AttrMetadata, 0, len(t.byID[ot]))
	for _, m := range t.byID[ot] {
		res = append(res, m)
	}
	sort.Slice(res, func(i, j int) bool { return res[i].ID < res[j].ID })
	return res
}

var defaultMetadata = NewMetadata(defaultAttrs())

// DefaultMetadata returns the built-in attribute table.
func DefaultMetadata() Metadata {
	return defaultMetadata
}

func refs(t ...ObjectType) []ObjectType { return t }

func defaultAttrs() []AttrMetadata {
	sw, port, lag := ObjectTypeSwitch, ObjectTypePort, ObjectTypeLAG
	vr, rif, nh, nhg := ObjectTypeVirtualRouter, ObjectTypeRouterInterface, ObjectTypeNextHop, ObjectTypeNextHopGroup
	vlan, vlanm, stp := ObjectTypeVLAN, ObjectTypeVLANMember, ObjectTypeSTP
	aclt, acle, aclr := ObjectTypeACLTable, ObjectTypeACLEntry, ObjectTypeACLRange
	hif, hpkt, mir := ObjectTypeHostif, ObjectTypeHostifPacket, ObjectTypeMirrorSession
	pol, q := ObjectTypePolicer, ObjectTypeQueue
	fdb, nbr, route := ObjectTypeFDBEntry, ObjectTypeNeighborEntry, ObjectTypeRouteEntry
	ro, co := AttrReadOnly, AttrCreateOnly

	return []AttrMetadata{
		{sw, SwitchAttrPortNumber, "SAI_SWITCH_ATTR_PORT_NUMBER", ValueU32, ro, nil},
		{sw, SwitchAttrPortList, "SAI_SWITCH_ATTR_PORT_LIST", ValueObjectList, ro, refs(port)},
		{sw, SwitchAttrCPUPort, "SAI_SWITCH_ATTR_CPU_PORT", ValueObjectID, ro, refs(port)},
		{sw, SwitchAttrDefaultVirtualRouterID, "SAI_SWITCH_ATTR_DEFAULT_VIRTUAL_ROUTER_ID", ValueObjectID, ro, refs(vr)},
		{sw, SwitchAttrOperStatus, "SAI_SWITCH_ATTR_OPER_STATUS", ValueS32, ro, nil},
		{sw, SwitchAttrSrcMACAddress, "SAI_SWITCH_ATTR_SRC_MAC_ADDRESS", ValueMAC, 0, nil},
		{sw, SwitchAttrFDBAgingTime, "SAI_SWITCH_ATTR_FDB_AGING_TIME", ValueU32, 0, nil},
		{sw, SwitchAttrInitSwitch, "SAI_SWITCH_ATTR_INIT_SWITCH", ValueBool, co, nil},
		{sw, SwitchAttrHardwareInfo, "SAI_SWITCH_ATTR_SWITCH_HARDWARE_INFO", ValueS8List, co, nil},
		{sw, SwitchAttrDefaultSTPInstID, "SAI_SWITCH_ATTR_DEFAULT_STP_INST_ID", ValueObjectID, ro, refs(stp)},
		{sw, RedisSwitchAttrNotifySyncd, "SAI_REDIS_SWITCH_ATTR_NOTIFY_SYNCD", ValueS32, AttrControl, nil},
		{sw, RedisSwitchAttrRecord, "SAI_REDIS_SWITCH_ATTR_RECORD", ValueBool, AttrControl, nil},

		{port, PortAttrType, "SAI_PORT_ATTR_TYPE", ValueS32, ro, nil},
		{port, PortAttrOperStatus, "SAI_PORT_ATTR_OPER_STATUS", ValueS32, ro, nil},
		{port, PortAttrHWLaneList, "SAI_PORT_ATTR_HW_LANE_LIST", ValueU32List, ro, nil},
		{port, PortAttrSpeed, "SAI_PORT_ATTR_SPEED", ValueU32, 0, nil},
		{port, PortAttrAdminState, "SAI_PORT_ATTR_ADMIN_STATE", ValueBool, 0, nil},
		{port, PortAttrMTU, "SAI_PORT_ATTR_MTU", ValueU32, 0, nil},
		{port, PortAttrPortVLANID, "SAI_PORT_ATTR_PORT_VLAN_ID", ValueU16, 0, nil},
		{port, PortAttrIngressACL, "SAI_PORT_ATTR_INGRESS_ACL", ValueObjectID, 0, refs(aclt)},
		{port, PortAttrPolicerID, "SAI_PORT_ATTR_POLICER_ID", ValueObjectID, 0, refs(pol)},

		{lag, LAGAttrPortList, "SAI_LAG_ATTR_PORT_LIST", ValueObjectList, ro, refs(port)},
		{lag, LAGAttrIngressACL, "SAI_LAG_ATTR_INGRESS_ACL", ValueObjectID, 0, refs(aclt)},

		{vr, VirtualRouterAttrAdminV4State, "SAI_VIRTUAL_ROUTER_ATTR_ADMIN_V4_STATE", ValueBool, 0, nil},
		{vr, VirtualRouterAttrAdminV6State, "SAI_VIRTUAL_ROUTER_ATTR_ADMIN_V6_STATE", ValueBool, 0, nil},
		{vr, VirtualRouterAttrSrcMACAddress, "SAI_VIRTUAL_ROUTER_ATTR_SRC_MAC_ADDRESS", ValueMAC, 0, nil},

		{rif, RouterInterfaceAttrVirtualRouterID, "SAI_ROUTER_INTERFACE_ATTR_VIRTUAL_ROUTER_ID", ValueObjectID, co, refs(vr)},
		{rif, RouterInterfaceAttrType, "SAI_ROUTER_INTERFACE_ATTR_TYPE", ValueS32, co, nil},
		{rif, RouterInterfaceAttrPortID, "SAI_ROUTER_INTERFACE_ATTR_PORT_ID", ValueObjectID, co, refs(port, lag)},
		{rif, RouterInterfaceAttrVLANID, "SAI_ROUTER_INTERFACE_ATTR_VLAN_ID", ValueObjectID, co, refs(vlan)},
		{rif, RouterInterfaceAttrSrcMACAddress, "SAI_ROUTER_INTERFACE_ATTR_SRC_MAC_ADDRESS", ValueMAC, 0, nil},
		{rif, RouterInterfaceAttrMTU, "SAI_ROUTER_INTERFACE_ATTR_MTU", ValueU32, 0, nil},

		{nh, NextHopAttrType, "SAI_NEXT_HOP_ATTR_TYPE", ValueS32, co, nil},
		{nh, NextHopAttrIP, "SAI_NEXT_HOP_ATTR_IP", ValueIPAddress, co, nil},
		{nh, NextHopAttrRouterInterfaceID, "SAI_NEXT_HOP_ATTR_ROUTER_INTERFACE_ID", ValueObjectID, co, refs(rif)},

		{nhg, NextHopGroupAttrType, "SAI_NEXT_HOP_GROUP_ATTR_TYPE", ValueS32, co, nil},
		{nhg, NextHopGroupAttrNextHopList, "SAI_NEXT_HOP_GROUP_ATTR_NEXT_HOP_LIST", ValueObjectList, 0, refs(nh)},

		{vlan, VLANAttrVLANID, "SAI_VLAN_ATTR_VLAN_ID", ValueU16, co, nil},
		{vlan, VLANAttrMemberList, "SAI_VLAN_ATTR_MEMBER_LIST", ValueObjectList, ro, refs(vlanm)},
		{vlan, VLANAttrMaxLearnedAddresses, "SAI_VLAN_ATTR_MAX_LEARNED_ADDRESSES", ValueU32, 0, nil},
		{vlan, VLANAttrSTPInstance, "SAI_VLAN_ATTR_STP_INSTANCE", ValueObjectID, 0, refs(stp)},

		{vlanm, VLANMemberAttrVLANID, "SAI_VLAN_MEMBER_ATTR_VLAN_ID", ValueObjectID, co, refs(vlan)},
		{vlanm, VLANMemberAttrPortID, "SAI_VLAN_MEMBER_ATTR_PORT_ID", ValueObjectID, co, refs(port, lag)},
		{vlanm, VLANMemberAttrTaggingMode, "SAI_VLAN_MEMBER_ATTR_VLAN_TAGGING_MODE", ValueS32, 0, nil},

		{stp, STPAttrVLANList, "SAI_STP_ATTR_VLAN_LIST", ValueVLANList, ro, nil},

		{aclt, ACLTableAttrStage, "SAI_ACL_TABLE_ATTR_STAGE", ValueS32, co, nil},
		{aclt, ACLTableAttrPriority, "SAI_ACL_TABLE_ATTR_PRIORITY", ValueU32, co, nil},
		{aclt, ACLTableAttrFieldSrcIP, "SAI_ACL_TABLE_ATTR_FIELD_SRC_IP", ValueBool, co, nil},
		{aclt, ACLTableAttrFieldDstIP, "SAI_ACL_TABLE_ATTR_FIELD_DST_IP", ValueBool, co, nil},
		{aclt, ACLTableAttrFieldInPorts, "SAI_ACL_TABLE_ATTR_FIELD_IN_PORTS", ValueBool, co, nil},
		{aclt, ACLTableAttrFieldRange, "SAI_ACL_TABLE_ATTR_FIELD_RANGE", ValueS32List, co, nil},

		{acle, ACLEntryAttrTableID, "SAI_ACL_ENTRY_ATTR_TABLE_ID", ValueObjectID, co, refs(aclt)},
		{acle, ACLEntryAttrPriority, "SAI_ACL_ENTRY_ATTR_PRIORITY", ValueU32, 0, nil},
		{acle, ACLEntryAttrAdminState, "SAI_ACL_ENTRY_ATTR_ADMIN_STATE", ValueBool, 0, nil},
		{acle, ACLEntryAttrFieldSrcIP, "SAI_ACL_ENTRY_ATTR_FIELD_SRC_IP", ValueACLFieldIPv4, 0, nil},
		{acle, ACLEntryAttrFieldDstIPv6, "SAI_ACL_ENTRY_ATTR_FIELD_DST_IPV6", ValueACLFieldIPv6, 0, nil},
		{acle, ACLEntryAttrFieldSrcMAC, "SAI_ACL_ENTRY_ATTR_FIELD_SRC_MAC", ValueACLFieldMAC, 0, nil},
		{acle, ACLEntryAttrFieldInPorts, "SAI_ACL_ENTRY_ATTR_FIELD_IN_PORTS", ValueACLFieldObjectList, 0, refs(port, lag)},
		{acle, ACLEntryAttrFieldInPort, "SAI_ACL_ENTRY_ATTR_FIELD_IN_PORT", ValueACLFieldObjectID, 0, refs(port, lag)},
		{acle, ACLEntryAttrFieldDSCP, "SAI_ACL_ENTRY_ATTR_FIELD_DSCP", ValueACLFieldU8, 0, nil},
		{acle, ACLEntryAttrFieldL4SrcPort, "SAI_ACL_ENTRY_ATTR_FIELD_L4_SRC_PORT", ValueACLFieldU16, 0, nil},
		{acle, ACLEntryAttrFieldUserMeta, "SAI_ACL_ENTRY_ATTR_FIELD_ACL_USER_META", ValueACLFieldU32, 0, nil},
		{acle, ACLEntryAttrFieldRange, "SAI_ACL_ENTRY_ATTR_FIELD_ACL_RANGE_TYPE", ValueACLFieldObjectList, 0, refs(aclr)},
		{acle, ACLEntryAttrFieldUDF, "SAI_ACL_ENTRY_ATTR_USER_DEFINED_FIELD_GROUP_MIN", ValueACLFieldU8List, 0, nil},
		{acle, ACLEntryAttrFieldTCPFlags, "SAI_ACL_ENTRY_ATTR_FIELD_TCP_FLAGS", ValueACLFieldU8, 0, nil},
		{acle, ACLEntryAttrFieldTTL, "SAI_ACL_ENTRY_ATTR_FIELD_TTL", ValueACLFieldBool, 0, nil},
		{acle, ACLEntryAttrActionRedirect, "SAI_ACL_ENTRY_ATTR_ACTION_REDIRECT", ValueACLActionObjectID, 0, refs(port, lag, nh, nhg)},
		{acle, ACLEntryAttrActionPacketAction, "SAI_ACL_ENTRY_ATTR_ACTION_PACKET_ACTION", ValueACLActionS32, 0, nil},
		{acle, ACLEntryAttrActionMirrorIngress, "SAI_ACL_ENTRY_ATTR_ACTION_MIRROR_INGRESS", ValueACLActionObjectList, 0, refs(mir)},
		{acle, ACLEntryAttrActionSetPolicer, "SAI_ACL_ENTRY_ATTR_ACTION_SET_POLICER", ValueACLActionObjectID, 0, refs(pol)},
		{acle, ACLEntryAttrActionSetSrcMAC, "SAI_ACL_ENTRY_ATTR_ACTION_SET_SRC_MAC", ValueACLActionMAC, 0, nil},
		{acle, ACLEntryAttrActionSetDstIP, "SAI_ACL_ENTRY_ATTR_ACTION_SET_DST_IP", ValueACLActionIPv4, 0, nil},
		{acle, ACLEntryAttrActionSetDstIPv6, "SAI_ACL_ENTRY_ATTR_ACTION_SET_DST_IPV6", ValueACLActionIPv6, 0, nil},
		{acle, ACLEntryAttrActionSetTC, "SAI_ACL_ENTRY_ATTR_ACTION_SET_TC", ValueACLActionU8, 0, nil},
		{acle, ACLEntryAttrActionSetVLANID, "SAI_ACL_ENTRY_ATTR_ACTION_SET_OUTER_VLAN_ID", ValueACLActionU16, 0, nil},
		{acle, ACLEntryAttrActionSetUserMeta, "SAI_ACL_ENTRY_ATTR_ACTION_SET_ACL_META_DATA", ValueACLActionU32, 0, nil},

		{aclr, ACLRangeAttrType, "SAI_ACL_RANGE_ATTR_TYPE", ValueS32, co, nil},
		{aclr, ACLRangeAttrLimit, "SAI_ACL_RANGE_ATTR_LIMIT", ValueU32Range, co, nil},

		{hif, HostifAttrType, "SAI_HOSTIF_ATTR_TYPE", ValueS32, co, nil},
		{hif, HostifAttrObjID, "SAI_HOSTIF_ATTR_OBJ_ID", ValueObjectID, co, refs(port, lag, vlan)},
		{hif, HostifAttrName, "SAI_HOSTIF_ATTR_NAME", ValueChardata, co, nil},
		{hif, HostifAttrOperStatus, "SAI_HOSTIF_ATTR_OPER_STATUS", ValueBool, 0, nil},

		{hpkt, HostifPacketAttrTrapID, "SAI_HOSTIF_PACKET_ATTR_HOSTIF_TRAP_ID", ValueS32, 0, nil},
		{hpkt, HostifPacketAttrIngressPort, "SAI_HOSTIF_PACKET_ATTR_INGRESS_PORT", ValueObjectID, 0, refs(port)},
		{hpkt, HostifPacketAttrIngressLAG, "SAI_HOSTIF_PACKET_ATTR_INGRESS_LAG", ValueObjectID, 0, refs(lag)},

		{mir, MirrorSessionAttrType, "SAI_MIRROR_SESSION_ATTR_TYPE", ValueS32, co, nil},
		{mir, MirrorSessionAttrMonitorPort, "SAI_MIRROR_SESSION_ATTR_MONITOR_PORT", ValueObjectID, 0, refs(port, lag)},
		{mir, MirrorSessionAttrTC, "SAI_MIRROR_SESSION_ATTR_TC", ValueU8, 0, nil},

		{pol, PolicerAttrMeterType, "SAI_POLICER_ATTR_METER_TYPE", ValueS32, co, nil},
		{pol, PolicerAttrMode, "SAI_POLICER_ATTR_MODE", ValueS32, co, nil},
		{pol, PolicerAttrCIR, "SAI_POLICER_ATTR_CIR", ValueU64, 0, nil},
		{pol, PolicerAttrRange, "SAI_POLICER_ATTR_COLOR_RANGE", ValueS32Range, 0, nil},

		{q, QueueAttrType, "SAI_QUEUE_ATTR_TYPE", ValueS32, co, nil},
		{q, QueueAttrIndex, "SAI_QUEUE_ATTR_INDEX", ValueU8, co, nil},
		{q, QueueAttrPort, "SAI_QUEUE_ATTR_PORT", ValueObjectID, co, refs(port)},

		{fdb, FDBEntryAttrType, "SAI_FDB_ENTRY_ATTR_TYPE", ValueS32, 0, nil},
		{fdb, FDBEntryAttrPortID, "SAI_FDB_ENTRY_ATTR_PORT_ID", ValueObjectID, 0, refs(port, lag)},
		{fdb, FDBEntryAttrPacketAction, "SAI_FDB_ENTRY_ATTR_PACKET_ACTION", ValueS32, 0, nil},

		{nbr, NeighborEntryAttrDstMACAddress, "SAI_NEIGHBOR_ENTRY_ATTR_DST_MAC_ADDRESS", ValueMAC, 0, nil},
		{nbr, NeighborEntryAttrPacketAction, "SAI_NEIGHBOR_ENTRY_ATTR_PACKET_ACTION", ValueS32, 0, nil},
		{nbr, NeighborEntryAttrNoHostRoute, "SAI_NEIGHBOR_ENTRY_ATTR_NO_HOST_ROUTE", ValueBool, 0, nil},

		{route, RouteEntryAttrPacketAction, "SAI_ROUTE_ENTRY_ATTR_PACKET_ACTION", ValueS32, 0, nil},
		{route, RouteEntryAttrTrapPriority, "SAI_ROUTE_ENTRY_ATTR_TRAP_PRIORITY", ValueU8, 0, nil},
		{route, RouteEntryAttrNextHopID, "SAI_ROUTE_ENTRY_ATTR_NEXT_HOP_ID", ValueObjectID, 0, refs(nh, nhg, rif, port)},
	}
}
