package sai

// AttrID identifies an attribute within one object type.
type AttrID uint32

// Custom attribute range used for control attributes that never reach the
// hardware.
const AttrCustomRangeStart AttrID = 0x10000000

// Switch attributes.
const (
	SwitchAttrPortNumber AttrID = iota
	SwitchAttrPortList
	SwitchAttrCPUPort
	SwitchAttrDefaultVirtualRouterID
	SwitchAttrOperStatus
	SwitchAttrSrcMACAddress
	SwitchAttrFDBAgingTime
	SwitchAttrInitSwitch
	SwitchAttrHardwareInfo
	SwitchAttrDefaultSTPInstID
)

// Reserved control attributes on the switch object.
const (
	// RedisSwitchAttrNotifySyncd requests a view transition.
	RedisSwitchAttrNotifySyncd = AttrCustomRangeStart + iota
	// RedisSwitchAttrRecord toggles capture of the call log.
	RedisSwitchAttrRecord
)

// Values of RedisSwitchAttrNotifySyncd.
const (
	NotifySyncdInitView  = 0
	NotifySyncdApplyView = 1
)

// Switch operational states.
const (
	SwitchOperStatusUnknown = iota
	SwitchOperStatusUp
	SwitchOperStatusDown
	SwitchOperStatusFailed
)

// Port attributes.
const (
	PortAttrType AttrID = iota
	PortAttrOperStatus
	PortAttrHWLaneList
	PortAttrSpeed
	PortAttrAdminState
	PortAttrMTU
	PortAttrPortVLANID
	PortAttrIngressACL
	PortAttrPolicerID
)

// Port operational states.
const (
	PortOperStatusUnknown = iota
	PortOperStatusUp
	PortOperStatusDown
)

// LAG attributes.
const (
	LAGAttrPortList AttrID = iota
	LAGAttrIngressACL
)

// Virtual router attributes.
const (
	VirtualRouterAttrAdminV4State AttrID = iota
	VirtualRouterAttrAdminV6State
	VirtualRouterAttrSrcMACAddress
)

// Router interface attributes.
const (
	RouterInterfaceAttrVirtualRouterID AttrID = iota
	RouterInterfaceAttrType
	RouterInterfaceAttrPortID
	RouterInterfaceAttrVLANID
	RouterInterfaceAttrSrcMACAddress
	RouterInterfaceAttrMTU
)

// Next hop attributes.
const (
	NextHopAttrType AttrID = iota
	NextHopAttrIP
	NextHopAttrRouterInterfaceID
)

// Next hop group attributes.
const (
	NextHopGroupAttrType AttrID = iota
	NextHopGroupAttrNextHopList
)

// VLAN attributes.
const (
	VLANAttrVLANID AttrID = iota
	VLANAttrMemberList
	VLANAttrMaxLearnedAddresses
	VLANAttrSTPInstance
)

// VLAN member attributes.
const (
	VLANMemberAttrVLANID AttrID = iota
	VLANMemberAttrPortID
	VLANMemberAttrTaggingMode
)

// STP attributes.
const (
	STPAttrVLANList AttrID = iota
)

// ACL table attributes.
const (
	ACLTableAttrStage AttrID = iota
	ACLTableAttrPriority
	ACLTableAttrFieldSrcIP
	ACLTableAttrFieldDstIP
	ACLTableAttrFieldInPorts
	ACLTableAttrFieldRange
)

// ACL entry attributes.
const (
	ACLEntryAttrTableID AttrID = iota
	ACLEntryAttrPriority
	ACLEntryAttrAdminState
	ACLEntryAttrFieldSrcIP
	ACLEntryAttrFieldDstIPv6
	ACLEntryAttrFieldSrcMAC
	ACLEntryAttrFieldInPorts
	ACLEntryAttrFieldInPort
	ACLEntryAttrFieldDSCP
	ACLEntryAttrFieldL4SrcPort
	ACLEntryAttrFieldUserMeta
	ACLEntryAttrFieldRange
	ACLEntryAttrFieldUDF
	ACLEntryAttrFieldTCPFlags
	ACLEntryAttrActionRedirect
	ACLEntryAttrActionPacketAction
	ACLEntryAttrActionMirrorIngress
	ACLEntryAttrActionSetPolicer
	ACLEntryAttrActionSetSrcMAC
	ACLEntryAttrActionSetDstIP
	ACLEntryAttrActionSetDstIPv6
	ACLEntryAttrActionSetTC
	ACLEntryAttrActionSetVLANID
	ACLEntryAttrActionSetUserMeta
	ACLEntryAttrFieldTTL
)

// ACL range attributes.
const (
	ACLRangeAttrType AttrID = iota
	ACLRangeAttrLimit
)

// Hostif attributes.
const (
	HostifAttrType AttrID = iota
	HostifAttrObjID
	HostifAttrName
	HostifAttrOperStatus
)

// Hostif packet attributes; only carried by packet notifications.
const (
	HostifPacketAttrTrapID AttrID = iota
	HostifPacketAttrIngressPort
	HostifPacketAttrIngressLAG
)

// Mirror session attributes.
const (
	MirrorSessionAttrType AttrID = iota
	MirrorSessionAttrMonitorPort
	MirrorSessionAttrTC
)

// Policer attributes.
const (
	PolicerAttrMeterType AttrID = iota
	PolicerAttrMode
	PolicerAttrCIR
	PolicerAttrRange
)

// Queue attributes.
const (
	QueueAttrType AttrID = iota
	QueueAttrIndex
	QueueAttrPort
)

// FDB entry attributes.
const (
	FDBEntryAttrType AttrID = iota
	FDBEntryAttrPortID
	FDBEntryAttrPacketAction
)

// FDB entry types.
const (
	FDBEntryTypeDynamic = iota
	FDBEntryTypeStatic
)

// Neighbor entry attributes.
const (
	NeighborEntryAttrDstMACAddress AttrID = iota
	NeighborEntryAttrPacketAction
	NeighborEntryAttrNoHostRoute
)

// Route entry attributes.
const (
	RouteEntryAttrPacketAction AttrID = iota
	RouteEntryAttrTrapPriority
	RouteEntryAttrNextHopID
)

// Packet actions.
const (
	PacketActionDrop = iota
	PacketActionForward
	PacketActionCopy
	PacketActionTrap
)

// Port types.
const (
	PortTypeLogical = iota
	PortTypeCPU
)
