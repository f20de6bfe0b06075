package vs

import (
	"net/netip"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"sairedis/sai"
	"sairedis/store"
)

func newSwitch(t *testing.T, kv store.KV) (*Switch, sai.ObjectID) {
	s := New(Options{KV: kv, PortCount: 4})
	id, err := s.Create(sai.ObjectTypeSwitch, []sai.Attribute{
		{ID: sai.SwitchAttrInitSwitch, Value: sai.Value{Bool: true}},
	})
	require.NoError(t, err)
	return s, id
}

func getOID(t *testing.T, s *Switch, key sai.ObjectKey, id sai.AttrID) sai.ObjectID {
	res, err := s.Get(key, []sai.Attribute{{ID: id}})
	require.NoError(t, err)
	return res[0].Value.OID
}

func TestSwitchDefaults(t *testing.T) {
	s, sw := newSwitch(t, nil)
	assert.Equal(t, sai.ObjectTypeSwitch, sw.Type())
	assert.Equal(t, 5, s.Len(sai.ObjectTypePort))
	assert.Equal(t, 1, s.Len(sai.ObjectTypeVirtualRouter))
	assert.Equal(t, 1, s.Len(sai.ObjectTypeSTP))

	_, err := s.Create(sai.ObjectTypeSwitch, nil)
	assert.ErrorIs(t, err, sai.StatusItemAlreadyExists)

	vr := getOID(t, s, sai.KeyOf(sw), sai.SwitchAttrDefaultVirtualRouterID)
	assert.Equal(t, sai.ObjectTypeVirtualRouter, vr.Type())
}

func TestCreateRequiresSwitch(t *testing.T) {
	s := New(Options{})
	_, err := s.Create(sai.ObjectTypeVLAN, nil)
	assert.ErrorIs(t, err, sai.StatusUninitialized)
}

func TestGetBufferOverflow(t *testing.T) {
	s, sw := newSwitch(t, nil)
	req := []sai.Attribute{{ID: sai.SwitchAttrPortList, Value: sai.Value{Objects: sai.List[sai.ObjectID]{Count: 1}}}}
	res, err := s.Get(sai.KeyOf(sw), req)
	assert.ErrorIs(t, err, sai.StatusBufferOverflow)
	assert.Equal(t, uint32(4), res[0].Value.Objects.Count)
	assert.Empty(t, res[0].Value.Objects.Items)

	req[0].Value.Objects.Count = res[0].Value.Objects.Count
	res, err = s.Get(sai.KeyOf(sw), req)
	require.NoError(t, err)
	assert.Len(t, res[0].Value.Objects.Items, 4)

	_, err = s.Get(sai.KeyOf(sw), []sai.Attribute{{ID: sai.SwitchAttrFDBAgingTime}})
	assert.ErrorIs(t, err, sai.StatusItemNotFound)
}

func TestReferencesAndRemove(t *testing.T) {
	s, sw := newSwitch(t, nil)
	res, err := s.Get(sai.KeyOf(sw), []sai.Attribute{{ID: sai.SwitchAttrPortList, Value: sai.Value{Objects: sai.List[sai.ObjectID]{Count: 8}}}})
	require.NoError(t, err)
	port := res[0].Value.Objects.Items[0]

	vlan, err := s.Create(sai.ObjectTypeVLAN, []sai.Attribute{{ID: sai.VLANAttrVLANID, Value: sai.Value{Uint: 10}}})
	require.NoError(t, err)

	_, err = s.Create(sai.ObjectTypeVLANMember, []sai.Attribute{
		{ID: sai.VLANMemberAttrVLANID, Value: sai.Value{OID: sai.MakeObjectID(sai.ObjectTypeVLAN, 99)}},
	})
	assert.ErrorIs(t, err, sai.StatusInvalidObjectID)

	member, err := s.Create(sai.ObjectTypeVLANMember, []sai.Attribute{
		{ID: sai.VLANMemberAttrVLANID, Value: sai.Value{OID: vlan}},
		{ID: sai.VLANMemberAttrPortID, Value: sai.Value{OID: port}},
	})
	require.NoError(t, err)

	got, err := s.Get(sai.KeyOf(vlan), []sai.Attribute{{ID: sai.VLANAttrMemberList, Value: sai.Value{Objects: sai.List[sai.ObjectID]{Count: 4}}}})
	require.NoError(t, err)
	assert.Equal(t, []sai.ObjectID{member}, got[0].Value.Objects.Items)

	assert.ErrorIs(t, s.Remove(sai.KeyOf(vlan)), sai.StatusObjectInUse)
	require.NoError(t, s.Remove(sai.KeyOf(member)))
	require.NoError(t, s.Remove(sai.KeyOf(vlan)))
	assert.ErrorIs(t, s.Remove(sai.KeyOf(vlan)), sai.StatusItemNotFound)
}

func TestSetChecksFlags(t *testing.T) {
	s, _ := newSwitch(t, nil)
	vlan, err := s.Create(sai.ObjectTypeVLAN, []sai.Attribute{{ID: sai.VLANAttrVLANID, Value: sai.Value{Uint: 10}}})
	require.NoError(t, err)
	key := sai.KeyOf(vlan)

	assert.ErrorIs(t, s.Set(key, sai.Attribute{ID: sai.VLANAttrVLANID, Value: sai.Value{Uint: 11}}), sai.StatusInvalidParameter)
	assert.ErrorIs(t, s.Set(key, sai.Attribute{ID: sai.VLANAttrMemberList}), sai.StatusInvalidParameter)
	require.NoError(t, s.Set(key, sai.Attribute{ID: sai.VLANAttrMaxLearnedAddresses, Value: sai.Value{Uint: 100}}))

	res, err := s.Get(key, []sai.Attribute{{ID: sai.VLANAttrMaxLearnedAddresses}})
	require.NoError(t, err)
	assert.Equal(t, uint64(100), res[0].Value.Uint)
}

func TestAdminStateRaisesPortEvent(t *testing.T) {
	s, sw := newSwitch(t, nil)
	res, err := s.Get(sai.KeyOf(sw), []sai.Attribute{{ID: sai.SwitchAttrPortList, Value: sai.Value{Objects: sai.List[sai.ObjectID]{Count: 8}}}})
	require.NoError(t, err)
	port := res[0].Value.Objects.Items[1]

	require.NoError(t, s.Set(sai.KeyOf(port), sai.Attribute{ID: sai.PortAttrAdminState, Value: sai.Value{Bool: true}}))
	n := <-s.Notifications()
	assert.Equal(t, sai.PortStateChange{{PortID: port, Status: sai.PortOperStatusUp}}, n)

	// same state again raises nothing
	require.NoError(t, s.Set(sai.KeyOf(port), sai.Attribute{ID: sai.PortAttrAdminState, Value: sai.Value{Bool: true}}))
	assert.Empty(t, s.Notifications())
}

func TestFDBLearnAndAge(t *testing.T) {
	s, sw := newSwitch(t, nil)
	port := getOID(t, s, sai.KeyOf(sw), sai.SwitchAttrCPUPort)
	vlan, err := s.Create(sai.ObjectTypeVLAN, []sai.Attribute{{ID: sai.VLANAttrVLANID, Value: sai.Value{Uint: 10}}})
	require.NoError(t, err)
	entry := sai.FDBEntry{MAC: sai.MAC{0, 1, 2, 3, 4, 5}, BridgeVLAN: vlan}

	require.NoError(t, s.LearnFDB(entry, port))
	n := (<-s.Notifications()).(sai.FDBEvents)
	require.Len(t, n, 1)
	assert.Equal(t, sai.FDBEventLearned, n[0].Type)
	assert.Equal(t, 1, s.Len(sai.ObjectTypeFDBEntry))

	require.NoError(t, s.AgeFDB(entry))
	n = (<-s.Notifications()).(sai.FDBEvents)
	assert.Equal(t, sai.FDBEventAged, n[0].Type)
	assert.Equal(t, 0, s.Len(sai.ObjectTypeFDBEntry))
	assert.ErrorIs(t, s.AgeFDB(entry), sai.StatusItemNotFound)
}

func TestEntries(t *testing.T) {
	s, sw := newSwitch(t, nil)
	vr := getOID(t, s, sai.KeyOf(sw), sai.SwitchAttrDefaultVirtualRouterID)
	key := sai.RouteKey(sai.RouteEntry{VR: vr, Prefix: netip.MustParsePrefix("10.0.0.0/24")})
	attrs := []sai.Attribute{{ID: sai.RouteEntryAttrPacketAction, Value: sai.Value{Int: sai.PacketActionDrop}}}

	require.NoError(t, s.CreateEntry(key, attrs))
	assert.ErrorIs(t, s.CreateEntry(key, attrs), sai.StatusItemAlreadyExists)

	bad := sai.RouteKey(sai.RouteEntry{VR: sai.MakeObjectID(sai.ObjectTypeVirtualRouter, 7), Prefix: netip.MustParsePrefix("10.0.0.0/24")})
	assert.ErrorIs(t, s.CreateEntry(bad, attrs), sai.StatusInvalidObjectID)

	assert.ErrorIs(t, s.Remove(sai.KeyOf(vr)), sai.StatusObjectInUse)
	require.NoError(t, s.Remove(key))
}

func TestLoadRestoresState(t *testing.T) {
	kv := store.NewMemory()
	s, sw := newSwitch(t, kv)
	vlan, err := s.Create(sai.ObjectTypeVLAN, []sai.Attribute{{ID: sai.VLANAttrVLANID, Value: sai.Value{Uint: 10}}})
	require.NoError(t, err)

	r := New(Options{KV: kv, PortCount: 4})
	require.NoError(t, r.Load())
	assert.Equal(t, sw, r.SwitchID())
	assert.Equal(t, 5, r.Len(sai.ObjectTypePort))

	res, err := r.Get(sai.KeyOf(vlan), []sai.Attribute{{ID: sai.VLANAttrVLANID}})
	require.NoError(t, err)
	assert.Equal(t, uint64(10), res[0].Value.Uint)

	next, err := r.Create(sai.ObjectTypeVLAN, nil)
	require.NoError(t, err)
	assert.Greater(t, next.Counter(), vlan.Counter())

	require.NoError(t, r.Reset())
	assert.Equal(t, sai.NullObjectID, r.SwitchID())
	empty := New(Options{KV: kv})
	require.NoError(t, empty.Load())
	assert.Equal(t, 0, empty.Len(sai.ObjectTypePort))
}

func TestRemoveSwitchClearsObjects(t *testing.T) {
	s, sw := newSwitch(t, nil)
	require.NoError(t, s.Remove(sai.KeyOf(sw)))
	assert.Equal(t, 0, s.Len(sai.ObjectTypePort))
	assert.Equal(t, sai.NullObjectID, s.SwitchID())
}
