package vs

import (
	"fmt"
	"sort"

	"sairedis/sai"
)

const (
	defaultPortSpeed = 100000
	defaultPortMTU   = 9100
	lanesPerPort     = 4
)

// createDefaults creates the objects a switch exposes right after init:
// front panel ports, the CPU port, the default virtual router and the
// default STP instance. Called with the lock held.
func (s *Switch) createDefaults() error {
	ports := make([]sai.ObjectID, 0, s.portCount)
	for i := 0; i < s.portCount; i++ {
		lanes := make([]uint64, lanesPerPort)
		for l := range lanes {
			lanes[l] = uint64(i*lanesPerPort + l)
		}
		id, err := s.createDefault(sai.ObjectTypePort, []sai.Attribute{
			{ID: sai.PortAttrType, Value: sai.Value{Int: sai.PortTypeLogical}},
			{ID: sai.PortAttrHWLaneList, Value: sai.Value{Uints: sai.ListOf(lanes...)}},
			{ID: sai.PortAttrSpeed, Value: sai.Value{Uint: defaultPortSpeed}},
			{ID: sai.PortAttrAdminState, Value: sai.Value{Bool: false}},
			{ID: sai.PortAttrOperStatus, Value: sai.Value{Int: sai.PortOperStatusDown}},
			{ID: sai.PortAttrMTU, Value: sai.Value{Uint: defaultPortMTU}},
		})
		if err != nil {
			return err
		}
		ports = append(ports, id)
	}
	cpu, err := s.createDefault(sai.ObjectTypePort, []sai.Attribute{
		{ID: sai.PortAttrType, Value: sai.Value{Int: sai.PortTypeCPU}},
		{ID: sai.PortAttrOperStatus, Value: sai.Value{Int: sai.PortOperStatusUp}},
	})
	if err != nil {
		return err
	}
	vr, err := s.createDefault(sai.ObjectTypeVirtualRouter, []sai.Attribute{
		{ID: sai.VirtualRouterAttrAdminV4State, Value: sai.Value{Bool: true}},
		{ID: sai.VirtualRouterAttrAdminV6State, Value: sai.Value{Bool: true}},
	})
	if err != nil {
		return err
	}
	stp, err := s.createDefault(sai.ObjectTypeSTP, []sai.Attribute{
		{ID: sai.STPAttrVLANList, Value: sai.Value{Uints: sai.ListOf[uint64]()}},
	})
	if err != nil {
		return err
	}

	key := sai.KeyOf(s.switchID)
	attrs := s.objects[key]
	for _, a := range []sai.Attribute{
		{ID: sai.SwitchAttrPortNumber, Value: sai.Value{Uint: uint64(len(ports))}},
		{ID: sai.SwitchAttrPortList, Value: sai.Value{Objects: sai.ListOf(ports...)}},
		{ID: sai.SwitchAttrCPUPort, Value: sai.Value{OID: cpu}},
		{ID: sai.SwitchAttrDefaultVirtualRouterID, Value: sai.Value{OID: vr}},
		{ID: sai.SwitchAttrDefaultSTPInstID, Value: sai.Value{OID: stp}},
		{ID: sai.SwitchAttrOperStatus, Value: sai.Value{Int: sai.SwitchOperStatusUp}},
	} {
		attrs = put(attrs, a)
	}
	s.objects[key] = attrs
	return nil
}

func (s *Switch) createDefault(t sai.ObjectType, attrs []sai.Attribute) (sai.ObjectID, error) {
	id, err := s.nextID(t)
	if err != nil {
		return sai.NullObjectID, err
	}
	key := sai.KeyOf(id)
	s.objects[key] = attrs
	return id, s.persist(key)
}

// LearnFDB simulates the data plane learning mac on port and raises an
// fdb_event.
func (s *Switch) LearnFDB(entry sai.FDBEntry, port sai.ObjectID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.objects[sai.KeyOf(port)]; !ok || port.Type() != sai.ObjectTypePort {
		return fmt.Errorf("learn on %s: %w", port, sai.StatusInvalidObjectID)
	}
	key := sai.FDBKey(entry)
	attrs := []sai.Attribute{
		{ID: sai.FDBEntryAttrType, Value: sai.Value{Int: sai.FDBEntryTypeDynamic}},
		{ID: sai.FDBEntryAttrPortID, Value: sai.Value{OID: port}},
		{ID: sai.FDBEntryAttrPacketAction, Value: sai.Value{Int: sai.PacketActionForward}},
	}
	ev := sai.FDBEventLearned
	if _, ok := s.objects[key]; ok {
		ev = sai.FDBEventMove
	}
	s.objects[key] = attrs
	if err := s.persist(key); err != nil {
		return err
	}
	s.emit(sai.FDBEvents{{Type: ev, Entry: entry, Attrs: sai.CloneAttributes(attrs)}})
	return nil
}

// AgeFDB removes a learned entry and raises an fdb_event.
func (s *Switch) AgeFDB(entry sai.FDBEntry) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := sai.FDBKey(entry)
	attrs, err := s.lookup(key)
	if err != nil {
		return fmt.Errorf("age: %w", err)
	}
	delete(s.objects, key)
	if err := s.unpersist(key); err != nil {
		return err
	}
	s.emit(sai.FDBEvents{{Type: sai.FDBEventAged, Entry: entry, Attrs: attrs}})
	return nil
}

// InjectPacket traps a packet received on port to the CPU.
func (s *Switch) InjectPacket(port sai.ObjectID, data []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.objects[sai.KeyOf(port)]; !ok {
		return fmt.Errorf("packet on %s: %w", port, sai.StatusInvalidObjectID)
	}
	s.emit(sai.PacketEvent{
		SwitchID: s.switchID,
		Data:     append([]byte(nil), data...),
		Attrs:    []sai.Attribute{{ID: sai.HostifPacketAttrIngressPort, Value: sai.Value{OID: port}}},
	})
	return nil
}

// RequestShutdown raises switch_shutdown_request.
func (s *Switch) RequestShutdown() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.emit(sai.SwitchShutdownRequest{SwitchID: s.switchID})
}

func sortIDs(ids []sai.ObjectID) {
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
}
