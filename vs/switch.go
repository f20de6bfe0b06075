// Package vs is a virtual switch: an in-memory backend that behaves like a
// switch SDK. It issues real handles, keeps every object's attributes,
// creates the default objects a real switch exposes and raises
// notifications for port and FDB events.
package vs

import (
	"fmt"
	"sync"

	log "github.com/sirupsen/logrus"

	"sairedis/codec"
	"sairedis/sai"
	"sairedis/store"
	"sairedis/vid"
)

// Real handles carry this bit in their counter so they never look like
// virtual handles in logs.
const realIDBase = 1 << 40

const (
	DefaultPortCount          = 32
	DefaultNotificationBuffer = 1024
)

type Options struct {
	Metadata sai.Metadata
	// KV persists objects and counters so Load can restore them. Nil keeps
	// state in memory only.
	KV                 store.KV
	PortCount          int
	NotificationBuffer int
}

type Switch struct {
	mu        sync.Mutex
	md        sai.Metadata
	codec     *codec.Codec
	kv        store.KV
	portCount int

	switchID sai.ObjectID
	objects  map[sai.ObjectKey][]sai.Attribute
	counters map[sai.ObjectType]uint64
	ntf      chan sai.Notification
}

func New(opts Options) *Switch {
	if opts.Metadata == nil {
		opts.Metadata = sai.DefaultMetadata()
	}
	if opts.PortCount <= 0 {
		opts.PortCount = DefaultPortCount
	}
	if opts.NotificationBuffer <= 0 {
		opts.NotificationBuffer = DefaultNotificationBuffer
	}
	return &Switch{
		md:        opts.Metadata,
		codec:     codec.New(opts.Metadata),
		kv:        opts.KV,
		portCount: opts.PortCount,
		objects:   map[sai.ObjectKey][]sai.Attribute{},
		counters:  map[sai.ObjectType]uint64{},
		ntf:       make(chan sai.Notification, opts.NotificationBuffer),
	}
}

// Notifications delivers events raised by the switch. Events are dropped
// when nobody drains the channel.
func (s *Switch) Notifications() <-chan sai.Notification {
	return s.ntf
}

func (s *Switch) emit(n sai.Notification) {
	select {
	case s.ntf <- n:
	default:
		log.Warnf("vs: notification buffer full, dropping %s", n.NotificationName())
	}
}

// SwitchID returns the handle of the switch, or the null handle before the
// switch is created.
func (s *Switch) SwitchID() sai.ObjectID {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.switchID
}

func (s *Switch) nextID(t sai.ObjectType) (sai.ObjectID, error) {
	if s.kv != nil {
		n, err := s.kv.Increment(store.CompID1(store.BackendCntPrefix, t.String()))
		if err != nil {
			return sai.NullObjectID, err
		}
		return sai.MakeObjectID(t, realIDBase|uint64(n)), nil
	}
	s.counters[t]++
	return sai.MakeObjectID(t, realIDBase|s.counters[t]), nil
}

// Create creates a handle keyed object and returns its real handle.
func (s *Switch) Create(t sai.ObjectType, attrs []sai.Attribute) (sai.ObjectID, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !t.Valid() || t.IsEntry() {
		return sai.NullObjectID, fmt.Errorf("create %s: %w", t, sai.StatusInvalidObjectType)
	}
	if t == sai.ObjectTypeSwitch {
		if s.switchID != sai.NullObjectID {
			return sai.NullObjectID, fmt.Errorf("create switch: %w", sai.StatusItemAlreadyExists)
		}
	} else if s.switchID == sai.NullObjectID {
		return sai.NullObjectID, fmt.Errorf("create %s: no switch: %w", t, sai.StatusUninitialized)
	}
	if err := s.validate(sai.ObjectKey{Type: t}, attrs, true); err != nil {
		return sai.NullObjectID, fmt.Errorf("create %s: %w", t, err)
	}
	id, err := s.nextID(t)
	if err != nil {
		return sai.NullObjectID, err
	}
	key := sai.KeyOf(id)
	s.objects[key] = sai.CloneAttributes(attrs)
	if t == sai.ObjectTypeSwitch {
		s.switchID = id
		if err := s.createDefaults(); err != nil {
			return sai.NullObjectID, err
		}
	}
	if err := s.persist(key); err != nil {
		return sai.NullObjectID, err
	}
	log.Debugf("vs: created %s", id)
	return id, nil
}

// CreateEntry creates an entry addressed by a structured key.
func (s *Switch) CreateEntry(key sai.ObjectKey, attrs []sai.Attribute) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !key.Type.IsEntry() {
		return fmt.Errorf("create entry %s: %w", key.Type, sai.StatusInvalidObjectType)
	}
	if s.switchID == sai.NullObjectID {
		return fmt.Errorf("create %s: no switch: %w", key.Type, sai.StatusUninitialized)
	}
	if _, ok := s.objects[key]; ok {
		return fmt.Errorf("create %s: %w", codec.EncodeKey(key), sai.StatusItemAlreadyExists)
	}
	if err := s.validate(key, attrs, true); err != nil {
		return fmt.Errorf("create %s: %w", codec.EncodeKey(key), err)
	}
	s.objects[key] = sai.CloneAttributes(attrs)
	return s.persist(key)
}

// validate checks attribute metadata and that every referenced handle
// exists.
func (s *Switch) validate(key sai.ObjectKey, attrs []sai.Attribute, create bool) error {
	for _, a := range attrs {
		m, ok := s.md.Attr(key.Type, a.ID)
		if !ok || m.Control() {
			return fmt.Errorf("attr 0x%x: %w", uint32(a.ID), sai.StatusInvalidParameter)
		}
		if m.ReadOnly() || (!create && m.CreateOnly()) {
			return fmt.Errorf("%s is not writable: %w", m.Name, sai.StatusInvalidParameter)
		}
	}
	refs, err := vid.Refs(s.md, key, attrs)
	if err != nil {
		return err
	}
	for _, id := range refs {
		if _, ok := s.objects[sai.KeyOf(id)]; !ok {
			return fmt.Errorf("%s does not exist: %w", id, sai.StatusInvalidObjectID)
		}
	}
	return nil
}

func (s *Switch) lookup(key sai.ObjectKey) ([]sai.Attribute, error) {
	attrs, ok := s.objects[key]
	if !ok {
		return nil, fmt.Errorf("%s: %w", codec.EncodeKey(key), sai.StatusItemNotFound)
	}
	return attrs, nil
}

// usedBy returns an object referencing id. References from the switch
// object itself do not count.
func (s *Switch) usedBy(id sai.ObjectID) (sai.ObjectKey, bool) {
	for k, attrs := range s.objects {
		if k.Type == sai.ObjectTypeSwitch {
			continue
		}
		refs, err := vid.Refs(s.md, k, attrs)
		if err != nil {
			continue
		}
		for _, r := range refs {
			if r == id {
				return k, true
			}
		}
	}
	return sai.ObjectKey{}, false
}

// Remove removes an object. Removing the switch removes everything.
func (s *Switch) Remove(key sai.ObjectKey) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, err := s.lookup(key); err != nil {
		return fmt.Errorf("remove: %w", err)
	}
	if key.Type == sai.ObjectTypeSwitch {
		return s.reset()
	}
	if !key.Type.IsEntry() {
		if by, ok := s.usedBy(key.OID); ok {
			return fmt.Errorf("remove %s: used by %s: %w", key.OID, codec.EncodeKey(by), sai.StatusObjectInUse)
		}
	}
	delete(s.objects, key)
	if key.Type == sai.ObjectTypePort {
		s.dropPort(key.OID)
	}
	return s.unpersist(key)
}

// Set writes one attribute.
func (s *Switch) Set(key sai.ObjectKey, attr sai.Attribute) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	attrs, err := s.lookup(key)
	if err != nil {
		return fmt.Errorf("set: %w", err)
	}
	if err := s.validate(key, []sai.Attribute{attr}, false); err != nil {
		return fmt.Errorf("set %s: %w", codec.EncodeKey(key), err)
	}
	s.objects[key] = put(attrs, sai.Attribute{ID: attr.ID, Value: attr.Value.Clone()})
	if key.Type == sai.ObjectTypePort && attr.ID == sai.PortAttrAdminState {
		s.setOperStatus(key.OID, attr.Value.Bool)
	}
	return s.persist(key)
}

// Get answers a GET. On StatusBufferOverflow the returned list carries the
// required sizes.
func (s *Switch) Get(key sai.ObjectKey, req []sai.Attribute) ([]sai.Attribute, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	attrs, err := s.lookup(key)
	if err != nil {
		return nil, fmt.Errorf("get: %w", err)
	}
	if key.Type == sai.ObjectTypeVLAN {
		attrs = put(sai.CloneAttributes(attrs), s.vlanMembers(key.OID))
	}
	res := sai.CloneAttributes(req)
	err = sai.Fill(s.md, key.Type, res, attrs)
	if err != nil && !errStatus(err, sai.StatusBufferOverflow) {
		return nil, err
	}
	return res, err
}

func errStatus(err error, st sai.Status) bool {
	return sai.StatusOf(err) == st
}

// put replaces the attribute with the same id or appends a.
func put(attrs []sai.Attribute, a sai.Attribute) []sai.Attribute {
	for i := range attrs {
		if attrs[i].ID == a.ID {
			attrs[i] = a
			return attrs
		}
	}
	return append(attrs, a)
}

func (s *Switch) vlanMembers(vlan sai.ObjectID) sai.Attribute {
	var members []sai.ObjectID
	for k, attrs := range s.objects {
		if k.Type != sai.ObjectTypeVLANMember {
			continue
		}
		if a, ok := sai.FindAttribute(attrs, sai.VLANMemberAttrVLANID); ok && a.Value.OID == vlan {
			members = append(members, k.OID)
		}
	}
	sortIDs(members)
	return sai.Attribute{ID: sai.VLANAttrMemberList, Value: sai.Value{Objects: sai.ListOf(members...)}}
}

func (s *Switch) setOperStatus(port sai.ObjectID, up bool) {
	status := sai.PortOperStatusDown
	if up {
		status = sai.PortOperStatusUp
	}
	key := sai.KeyOf(port)
	prev, _ := sai.FindAttribute(s.objects[key], sai.PortAttrOperStatus)
	if prev.Value.Int == int64(status) {
		return
	}
	s.objects[key] = put(s.objects[key], sai.Attribute{ID: sai.PortAttrOperStatus, Value: sai.Value{Int: int64(status)}})
	s.emit(sai.PortStateChange{{PortID: port, Status: status}})
}

func (s *Switch) dropPort(port sai.ObjectID) {
	key := sai.KeyOf(s.switchID)
	a, ok := sai.FindAttribute(s.objects[key], sai.SwitchAttrPortList)
	if !ok {
		return
	}
	var ports []sai.ObjectID
	for _, p := range a.Value.Objects.Items {
		if p != port {
			ports = append(ports, p)
		}
	}
	attrs := put(s.objects[key], sai.Attribute{ID: sai.SwitchAttrPortList, Value: sai.Value{Objects: sai.ListOf(ports...)}})
	s.objects[key] = put(attrs, sai.Attribute{ID: sai.SwitchAttrPortNumber, Value: sai.Value{Uint: uint64(len(ports))}})
	if err := s.persist(key); err != nil {
		log.Errorf("vs: persist switch: %v", err)
	}
}

// Len returns the number of objects of type t.
func (s *Switch) Len(t sai.ObjectType) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for k := range s.objects {
		if k.Type == t {
			n++
		}
	}
	return n
}
