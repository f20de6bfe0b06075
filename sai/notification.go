package sai

// Notification names as carried on the notification channel.
const (
	NotificationSwitchStateChange     = "switch_state_change"
	NotificationFDBEvent              = "fdb_event"
	NotificationPortStateChange       = "port_state_change"
	NotificationSwitchShutdownRequest = "switch_shutdown_request"
	NotificationPacketEvent           = "packet_event"
)

// Notification is an asynchronous event raised by the switch.
type Notification interface {
	NotificationName() string
}

type SwitchStateChange struct {
	SwitchID ObjectID
	Status   int
}

func (SwitchStateChange) NotificationName() string { return NotificationSwitchStateChange }

type FDBEventType int

const (
	FDBEventLearned FDBEventType = iota
	FDBEventAged
	FDBEventMove
	FDBEventFlushed
)

var fdbEventNames = [...]string{
	FDBEventLearned: "SAI_FDB_EVENT_LEARNED",
	FDBEventAged:    "SAI_FDB_EVENT_AGED",
	FDBEventMove:    "SAI_FDB_EVENT_MOVE",
	FDBEventFlushed: "SAI_FDB_EVENT_FLUSHED",
}

func (t FDBEventType) String() string {
	if t >= 0 && int(t) < len(fdbEventNames) {
		return fdbEventNames[t]
	}
	return "SAI_FDB_EVENT_UNKNOWN"
}

// ParseFDBEventType is the inverse of FDBEventType.String.
func ParseFDBEventType(s string) (FDBEventType, bool) {
	for i, n := range fdbEventNames {
		if n == s {
			return FDBEventType(i), true
		}
	}
	return 0, false
}

// FDBEvent is one learn/age record. Attrs use FDB entry attribute ids.
type FDBEvent struct {
	Type  FDBEventType
	Entry FDBEntry
	Attrs []Attribute
}

// FDBEvents is a batch of FDB events delivered together.
type FDBEvents []FDBEvent

func (FDBEvents) NotificationName() string { return NotificationFDBEvent }

type PortOperStatus struct {
	PortID ObjectID
	Status int
}

// PortStateChange is a batch of port operational state updates.
type PortStateChange []PortOperStatus

func (PortStateChange) NotificationName() string { return NotificationPortStateChange }

type SwitchShutdownRequest struct {
	SwitchID ObjectID
}

func (SwitchShutdownRequest) NotificationName() string { return NotificationSwitchShutdownRequest }

// PacketEvent is a packet trapped to the CPU. Attrs use hostif packet
// attribute ids.
type PacketEvent struct {
	SwitchID ObjectID
	Data     []byte
	Attrs    []Attribute
}

func (PacketEvent) NotificationName() string { return NotificationPacketEvent }
