package syncd

import (
	"net/netip"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"sairedis/codec"
	"sairedis/sai"
)

type config struct {
	vlan, member sai.ObjectID
	route        sai.ObjectKey
}

// build creates a vlan with one member and a route, the way a client
// configures the switch after INIT_VIEW or at first boot.
func (h *harness) build(sw sai.ObjectID, vlanID, maxLearned uint64) config {
	port := h.ports(sw)[0]
	_, res := h.get(sai.KeyOf(sw), sai.Attribute{ID: sai.SwitchAttrDefaultVirtualRouterID})
	vr := res[0].Value.OID

	var c config
	c.vlan = h.create(sai.ObjectTypeVLAN,
		sai.Attribute{ID: sai.VLANAttrVLANID, Value: u(vlanID)},
		sai.Attribute{ID: sai.VLANAttrMaxLearnedAddresses, Value: u(maxLearned)})
	c.member = h.create(sai.ObjectTypeVLANMember,
		sai.Attribute{ID: sai.VLANMemberAttrVLANID, Value: oid(c.vlan)},
		sai.Attribute{ID: sai.VLANMemberAttrPortID, Value: oid(port)})
	c.route = sai.RouteKey(sai.RouteEntry{VR: vr, Prefix: netip.MustParsePrefix("10.1.0.0/16")})
	st, _ := h.do(sai.OpCreate, c.route, false, sai.Attribute{ID: sai.RouteEntryAttrPacketAction, Value: sai.Value{Int: sai.PacketActionForward}})
	require.Equal(h.t, sai.StatusSuccess, st)
	return c
}

func (h *harness) apply() {
	st, fields := h.view(sai.ViewApply)
	require.Equal(h.t, sai.StatusSuccess, st, "%v", fields)
}

func TestApplyWithoutInitFails(t *testing.T) {
	h := newHarness(t, nil, false)
	h.create(sai.ObjectTypeSwitch)
	st, _ := h.view(sai.ViewApply)
	assert.Equal(t, sai.StatusFailure, st)
}

func TestApplyIdenticalViewIsNoop(t *testing.T) {
	h := newHarness(t, nil, false)
	sw := h.create(sai.ObjectTypeSwitch)
	h.build(sw, 10, 1)

	st, _ := h.view(sai.ViewInit)
	require.Equal(t, sai.StatusSuccess, st)
	assert.True(t, h.s.InTempView())
	c := h.build(sw, 10, 1)
	h.b.reset()
	h.apply()

	assert.Empty(t, h.b.reset())
	assert.False(t, h.s.InTempView())
	_, err := h.s.Virtualizer().Real(c.member)
	assert.NoError(t, err, "temp handles resolve after apply")
}

func TestApplySingleAttributeChangeIsOneSet(t *testing.T) {
	h := newHarness(t, nil, false)
	sw := h.create(sai.ObjectTypeSwitch)
	old := h.build(sw, 10, 1)
	rid, err := h.s.Virtualizer().Real(old.vlan)
	require.NoError(t, err)

	h.view(sai.ViewInit)
	c := h.build(sw, 10, 2)
	h.b.reset()
	h.apply()

	assert.Equal(t, []string{"set SAI_VLAN_ATTR_MAX_LEARNED_ADDRESSES"}, h.b.reset())

	got, err := h.s.Virtualizer().Real(c.vlan)
	require.NoError(t, err)
	assert.Equal(t, rid, got, "the live vlan took the new handle")
	_, err = h.s.Virtualizer().Real(old.vlan)
	assert.ErrorIs(t, err, sai.StatusItemNotFound)

	st, res := h.get(sai.KeyOf(c.vlan), sai.Attribute{ID: sai.VLANAttrMaxLearnedAddresses})
	require.Equal(t, sai.StatusSuccess, st)
	assert.Equal(t, uint64(2), res[0].Value.Uint)
	assert.Len(t, h.s.Live(), 11)
}

func TestApplyOrdersCreatesAndRemoves(t *testing.T) {
	h := newHarness(t, nil, false)
	sw := h.create(sai.ObjectTypeSwitch)
	old := h.build(sw, 10, 1)

	h.view(sai.ViewInit)
	c := h.build(sw, 20, 1)
	h.b.reset()
	h.apply()

	assert.Equal(t, []string{
		"create SAI_OBJECT_TYPE_VLAN",
		"create SAI_OBJECT_TYPE_VLAN_MEMBER",
		"remove SAI_OBJECT_TYPE_VLAN_MEMBER",
		"remove SAI_OBJECT_TYPE_VLAN",
	}, h.b.reset())
	assert.Equal(t, 1, h.b.Len(sai.ObjectTypeVLAN))

	_, err := h.s.Virtualizer().Real(old.vlan)
	assert.ErrorIs(t, err, sai.StatusItemNotFound)
	st, res := h.get(sai.KeyOf(c.vlan), sai.Attribute{ID: sai.VLANAttrVLANID})
	require.Equal(t, sai.StatusSuccess, st)
	assert.Equal(t, uint64(20), res[0].Value.Uint)
}

func TestApplyRemovesWhatTheViewDropped(t *testing.T) {
	h := newHarness(t, nil, false)
	sw := h.create(sai.ObjectTypeSwitch)
	old := h.build(sw, 10, 1)

	h.view(sai.ViewInit)
	h.b.reset()
	h.apply()

	assert.Equal(t, []string{
		"remove SAI_OBJECT_TYPE_VLAN_MEMBER",
		"remove SAI_OBJECT_TYPE_VLAN",
		"remove SAI_OBJECT_TYPE_ROUTE_ENTRY",
	}, h.b.reset())
	_, ok := h.s.live.Get(old.route)
	assert.False(t, ok)
	assert.Len(t, h.s.Live(), 8, "switch and defaults stay")
}

func TestApplyStopsAtFirstFailure(t *testing.T) {
	h := newHarness(t, nil, false)
	sw := h.create(sai.ObjectTypeSwitch)

	h.view(sai.ViewInit)
	c := h.build(sw, 30, 1)
	h.b.failOn = "create SAI_OBJECT_TYPE_VLAN_MEMBER"
	st, fields := h.view(sai.ViewApply)

	assert.Equal(t, sai.StatusInsufficientResources, st)
	assert.Equal(t, []sai.FieldValue{
		{Field: codec.ApplyOpField, Value: sai.OpCreate},
		{Field: codec.ApplyKeyField, Value: codec.EncodeKey(sai.KeyOf(c.member))},
	}, fields)
	assert.False(t, h.s.InTempView())

	// the vlan made it, nothing is rolled back
	assert.Equal(t, 1, h.b.Len(sai.ObjectTypeVLAN))
	_, err := h.s.Virtualizer().Real(c.vlan)
	assert.NoError(t, err)
	_, err = h.s.Virtualizer().Real(c.member)
	assert.ErrorIs(t, err, sai.StatusItemNotFound)
}

func TestTempViewCalls(t *testing.T) {
	h := newHarness(t, nil, false)
	sw := h.create(sai.ObjectTypeSwitch)
	port := h.ports(sw)[0]

	h.view(sai.ViewInit)
	assert.Equal(t, sw, h.create(sai.ObjectTypeSwitch), "switch create returns the live switch")

	vlan := h.create(sai.ObjectTypeVLAN, sai.Attribute{ID: sai.VLANAttrVLANID, Value: u(40)})
	assert.Empty(t, h.b.reset()[1:], "nothing reaches the switch before apply")

	st, res := h.get(sai.KeyOf(vlan), sai.Attribute{ID: sai.VLANAttrVLANID})
	require.Equal(t, sai.StatusSuccess, st)
	assert.Equal(t, uint64(40), res[0].Value.Uint)

	st, res = h.get(sai.KeyOf(port), sai.Attribute{ID: sai.PortAttrSpeed})
	require.Equal(t, sai.StatusSuccess, st)
	assert.Equal(t, uint64(100000), res[0].Value.Uint)

	st, _ = h.do(sai.OpSet, sai.KeyOf(vlan), false, sai.Attribute{ID: sai.VLANAttrVLANID, Value: u(41)})
	assert.Equal(t, sai.StatusInvalidParameter, st)
	st, _ = h.do(sai.OpRemove, sai.KeyOf(port), false)
	assert.Equal(t, sai.StatusNotSupported, st)
	st, _ = h.do(sai.OpRemove, sai.KeyOf(vlan), false)
	assert.Equal(t, sai.StatusSuccess, st)
	st, _ = h.get(sai.KeyOf(vlan), sai.Attribute{ID: sai.VLANAttrVLANID})
	assert.Equal(t, sai.StatusItemNotFound, st)
}

func TestSecondInitDiscardsTempView(t *testing.T) {
	h := newHarness(t, nil, false)
	sw := h.create(sai.ObjectTypeSwitch)

	h.view(sai.ViewInit)
	h.build(sw, 50, 1)
	h.view(sai.ViewInit)
	h.b.reset()
	h.apply()
	assert.Empty(t, h.b.reset())
	assert.Equal(t, 0, h.b.Len(sai.ObjectTypeVLAN))
}

func TestNotifySyncdAsSwitchSet(t *testing.T) {
	h := newHarness(t, nil, false)
	sw := h.create(sai.ObjectTypeSwitch)
	st, _ := h.do(sai.OpSet, sai.KeyOf(sw), false, sai.Attribute{ID: sai.RedisSwitchAttrNotifySyncd, Value: sai.Value{Int: sai.NotifySyncdInitView}})
	require.Equal(t, sai.StatusSuccess, st)
	assert.True(t, h.s.InTempView())
	st, _ = h.do(sai.OpSet, sai.KeyOf(sw), false, sai.Attribute{ID: sai.RedisSwitchAttrNotifySyncd, Value: sai.Value{Int: sai.NotifySyncdApplyView}})
	require.Equal(t, sai.StatusSuccess, st)
	assert.False(t, h.s.InTempView())
}
