package vid

import (
	"net/netip"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"sairedis/sai"
	"sairedis/store"
)

func newTestVirtualizer() (*Virtualizer, store.KV) {
	kv := store.NewMemory()
	return New(kv, sai.DefaultMetadata()), kv
}

func rid(t sai.ObjectType, n uint64) sai.ObjectID {
	return sai.MakeObjectID(t, 1<<40|n)
}

func TestAllocateIsUniqueAndPersisted(t *testing.T) {
	v, kv := newTestVirtualizer()
	seen := map[sai.ObjectID]bool{}
	for i := 0; i < 50; i++ {
		id, err := v.Allocate(sai.ObjectTypePort)
		require.NoError(t, err)
		assert.Equal(t, sai.ObjectTypePort, id.Type())
		assert.False(t, seen[id], "duplicate %s", id)
		seen[id] = true
	}

	// a new virtualizer over the same store continues the counter
	again := New(kv, sai.DefaultMetadata())
	id, err := again.Allocate(sai.ObjectTypePort)
	require.NoError(t, err)
	assert.False(t, seen[id])

	_, err = v.Allocate(sai.ObjectTypeRouteEntry)
	assert.ErrorIs(t, err, sai.StatusInvalidObjectType)
}

func TestBindIsBijective(t *testing.T) {
	v, _ := newTestVirtualizer()
	v1, err := v.Allocate(sai.ObjectTypeVLAN)
	require.NoError(t, err)
	r1 := rid(sai.ObjectTypeVLAN, 1)

	require.NoError(t, v.Bind(v1, r1))
	got, err := v.Real(v1)
	require.NoError(t, err)
	assert.Equal(t, r1, got)
	back, err := v.Virtual(got)
	require.NoError(t, err)
	assert.Equal(t, v1, back)

	assert.ErrorIs(t, v.Bind(v1, rid(sai.ObjectTypeVLAN, 2)), sai.StatusItemAlreadyExists)
	v2, _ := v.Allocate(sai.ObjectTypeVLAN)
	assert.ErrorIs(t, v.Bind(v2, r1), sai.StatusItemAlreadyExists)

	pairs, err := v.Pairs()
	require.NoError(t, err)
	assert.Equal(t, map[sai.ObjectID]sai.ObjectID{v1: r1}, pairs)

	require.NoError(t, v.Unbind(v1))
	_, err = v.Real(v1)
	assert.ErrorIs(t, err, sai.StatusItemNotFound)
	_, err = v.Virtual(r1)
	assert.ErrorIs(t, err, sai.StatusItemNotFound)
	assert.ErrorIs(t, v.Unbind(v1), sai.StatusItemNotFound)
}

func TestTranslateIsAllOrNothing(t *testing.T) {
	v, _ := newTestVirtualizer()
	p1, _ := v.Allocate(sai.ObjectTypePort)
	p2, _ := v.Allocate(sai.ObjectTypePort)
	require.NoError(t, v.Bind(p1, rid(sai.ObjectTypePort, 1)))

	attrs := []sai.Attribute{
		{ID: sai.ACLEntryAttrPriority, Value: sai.Value{Uint: 10}},
		{ID: sai.ACLEntryAttrFieldInPorts, Value: sai.Value{Field: &sai.ACLField{
			Enable: true,
			Data:   sai.Value{Objects: sai.ListOf(p1, p2)},
		}}},
	}
	_, err := v.Translate(sai.ObjectTypeACLEntry, attrs, ToReal)
	assert.ErrorIs(t, err, sai.StatusItemNotFound)
	assert.Equal(t, []sai.ObjectID{p1, p2}, attrs[1].Value.Field.Data.Objects.Items)

	require.NoError(t, v.Bind(p2, rid(sai.ObjectTypePort, 2)))
	out, err := v.Translate(sai.ObjectTypeACLEntry, attrs, ToReal)
	require.NoError(t, err)
	assert.Equal(t, []sai.ObjectID{rid(sai.ObjectTypePort, 1), rid(sai.ObjectTypePort, 2)}, out[1].Value.Field.Data.Objects.Items)
	assert.Equal(t, []sai.ObjectID{p1, p2}, attrs[1].Value.Field.Data.Objects.Items)

	back, err := v.Translate(sai.ObjectTypeACLEntry, out, ToVirtual)
	require.NoError(t, err)
	assert.Equal(t, attrs, back)
}

func TestNullHandlesAndDisabledFieldsAreSkipped(t *testing.T) {
	v, _ := newTestVirtualizer()
	attrs := []sai.Attribute{
		{ID: sai.PortAttrIngressACL, Value: sai.Value{OID: sai.NullObjectID}},
	}
	out, err := v.Translate(sai.ObjectTypePort, attrs, ToReal)
	require.NoError(t, err)
	assert.Equal(t, attrs, out)

	acl := []sai.Attribute{{ID: sai.ACLEntryAttrActionRedirect, Value: sai.Value{Action: &sai.ACLAction{
		Parameter: sai.Value{OID: sai.MakeObjectID(sai.ObjectTypePort, 99)},
	}}}}
	_, err = v.Translate(sai.ObjectTypeACLEntry, acl, ToReal)
	assert.NoError(t, err)
}

func TestAdoptUnknownRealHandles(t *testing.T) {
	v, _ := newTestVirtualizer()
	ports := sai.ListOf(rid(sai.ObjectTypePort, 1), rid(sai.ObjectTypePort, 2))
	out, err := v.TranslateAdopting(sai.ObjectTypeSwitch, []sai.Attribute{
		{ID: sai.SwitchAttrPortList, Value: sai.Value{Objects: ports}},
	})
	require.NoError(t, err)
	vids := out[0].Value.Objects.Items
	require.Len(t, vids, 2)
	assert.NotEqual(t, vids[0], vids[1])

	// the second time the same virtual handles come back
	again, err := v.TranslateAdopting(sai.ObjectTypeSwitch, []sai.Attribute{
		{ID: sai.SwitchAttrPortList, Value: sai.Value{Objects: ports}},
	})
	require.NoError(t, err)
	assert.Equal(t, vids, again[0].Value.Objects.Items)
}

func TestKeysAndRefs(t *testing.T) {
	v, _ := newTestVirtualizer()
	vr, _ := v.Allocate(sai.ObjectTypeVirtualRouter)
	nh, _ := v.Allocate(sai.ObjectTypeNextHop)
	require.NoError(t, v.Bind(vr, rid(sai.ObjectTypeVirtualRouter, 1)))

	k := sai.RouteKey(sai.RouteEntry{VR: vr, Prefix: netip.MustParsePrefix("10.0.0.0/8")})
	rk, err := v.TranslateKey(k, ToReal)
	require.NoError(t, err)
	assert.Equal(t, rid(sai.ObjectTypeVirtualRouter, 1), rk.Route.VR)
	assert.Equal(t, k.Route.Prefix, rk.Route.Prefix)

	refs, err := Refs(sai.DefaultMetadata(), k, []sai.Attribute{
		{ID: sai.RouteEntryAttrNextHopID, Value: sai.Value{OID: nh}},
		{ID: sai.RouteEntryAttrPacketAction, Value: sai.Value{Int: sai.PacketActionForward}},
	})
	require.NoError(t, err)
	assert.Equal(t, []sai.ObjectID{vr, nh}, refs)
}

func TestRemovedHandleNoLongerResolves(t *testing.T) {
	v, _ := newTestVirtualizer()
	v1, _ := v.Allocate(sai.ObjectTypeLAG)
	require.NoError(t, v.Bind(v1, rid(sai.ObjectTypeLAG, 1)))

	_, err := v.Real(v1)
	require.NoError(t, err)

	require.NoError(t, v.Unbind(v1))
	_, err = v.Real(v1)
	assert.ErrorIs(t, err, sai.StatusItemNotFound)
}

func TestResetKeepsCounters(t *testing.T) {
	v, _ := newTestVirtualizer()
	v1, _ := v.Allocate(sai.ObjectTypeQueue)
	require.NoError(t, v.Bind(v1, rid(sai.ObjectTypeQueue, 1)))
	require.NoError(t, v.Reset())

	pairs, err := v.Pairs()
	require.NoError(t, err)
	assert.Empty(t, pairs)
	v2, _ := v.Allocate(sai.ObjectTypeQueue)
	assert.Greater(t, v2.Counter(), v1.Counter())
}

func TestRewriteNotification(t *testing.T) {
	v, _ := newTestVirtualizer()
	mac, _ := sai.ParseMAC("02:00:00:00:00:09")
	n := sai.FDBEvents{{
		Type:  sai.FDBEventLearned,
		Entry: sai.FDBEntry{MAC: mac, BridgeVLAN: rid(sai.ObjectTypeVLAN, 5)},
		Attrs: []sai.Attribute{{ID: sai.FDBEntryAttrPortID, Value: sai.Value{OID: rid(sai.ObjectTypePort, 3)}}},
	}}
	out, err := v.TranslateNotification(n)
	require.NoError(t, err)
	ev := out.(sai.FDBEvents)[0]
	vlan, err := v.Virtual(rid(sai.ObjectTypeVLAN, 5))
	require.NoError(t, err)
	assert.Equal(t, vlan, ev.Entry.BridgeVLAN)
	port, err := v.Virtual(rid(sai.ObjectTypePort, 3))
	require.NoError(t, err)
	assert.Equal(t, port, ev.Attrs[0].Value.OID)
}
