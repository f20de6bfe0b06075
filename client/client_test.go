package client

import (
	"context"
	"net/netip"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"sairedis/codec"
	"sairedis/sai"
	"sairedis/store"
	"sairedis/syncd"
	"sairedis/transport"
	"sairedis/vs"
)

type chanQueue chan []byte

func (q chanQueue) Push(ctx context.Context, msg []byte) error {
	select {
	case q <- msg:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (q chanQueue) Pop(ctx context.Context) ([]byte, error) {
	select {
	case msg := <-q:
		return msg, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// chanTopic is a single subscriber notification channel.
type chanTopic chan []byte

func (t chanTopic) Publish(ctx context.Context, msg []byte) error {
	return chanQueue(t).Push(ctx, msg)
}

func (t chanTopic) Next(ctx context.Context) ([]byte, error) {
	return chanQueue(t).Pop(ctx)
}

type line struct {
	op     byte
	key    string
	fields []sai.FieldValue
}

type memRecorder struct {
	mu    sync.Mutex
	lines []line
}

func (r *memRecorder) Record(op byte, key string, fields []sai.FieldValue) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.lines = append(r.lines, line{op, key, fields})
}

func (r *memRecorder) ops() string {
	r.mu.Lock()
	defer r.mu.Unlock()
	var s []byte
	for _, l := range r.lines {
		s = append(s, l.op)
	}
	return string(s)
}

type env struct {
	t      *testing.T
	ctx    context.Context
	c      *Client
	d      *syncd.Syncd
	sw     *vs.Switch
	ntf    chanTopic
	fatals []error
}

func newEnv(t *testing.T, rec Recorder) *env {
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	kv := store.NewMemory()
	sw := vs.New(vs.Options{KV: kv, PortCount: 4})
	ntf := make(chanTopic, 16)
	d, err := syncd.New(syncd.Options{KV: kv, Backend: sw, Notifications: ntf})
	require.NoError(t, err)
	commands, responses := make(chanQueue, 1), make(chanQueue, 1)
	go d.Run(ctx, commands, responses)             //nolint:errcheck
	go d.RunNotifications(ctx, sw.Notifications()) //nolint:errcheck

	e := &env{t: t, ctx: ctx, d: d, sw: sw, ntf: ntf}
	e.c = New(Options{Commands: commands, Responses: responses, Recorder: rec, OnFatal: func(err error) { e.fatals = append(e.fatals, err) }})
	require.NoError(t, e.c.Initialize(ctx))
	return e
}

// rid resolves a client handle down to the switch handle.
func (e *env) rid(id sai.ObjectID) sai.ObjectID {
	dvid, err := e.c.Virtualizer().Real(id)
	require.NoError(e.t, err)
	rid, err := e.d.Virtualizer().Real(dvid)
	require.NoError(e.t, err)
	return rid
}

func (e *env) ports(sw sai.ObjectID) []sai.ObjectID {
	res, err := e.c.Get(e.ctx, sai.KeyOf(sw), []sai.Attribute{{ID: sai.SwitchAttrPortList, Value: sai.Value{Objects: sai.List[sai.ObjectID]{Count: 16}}}})
	require.NoError(e.t, err)
	return res[0].Value.Objects.Items
}

func u(v uint64) sai.Value         { return sai.Value{Uint: v} }
func oid(v sai.ObjectID) sai.Value { return sai.Value{OID: v} }

func TestCallsBeforeInitialize(t *testing.T) {
	c := New(Options{Commands: make(chanQueue, 1), Responses: make(chanQueue, 1)})
	_, err := c.Create(context.Background(), sai.ObjectTypeSwitch, nil)
	assert.ErrorIs(t, err, sai.StatusUninitialized)
	assert.ErrorIs(t, c.NotifySyncd(context.Background(), sai.ViewInit), sai.StatusUninitialized)
}

func TestObjectLifecycle(t *testing.T) {
	e := newEnv(t, nil)
	sw, err := e.c.Create(e.ctx, sai.ObjectTypeSwitch, []sai.Attribute{{ID: sai.SwitchAttrInitSwitch, Value: sai.Value{Bool: true}}})
	require.NoError(t, err)
	assert.Equal(t, sai.ObjectTypeSwitch, sw.Type())

	ports := e.ports(sw)
	require.Len(t, ports, 4)
	for _, p := range ports {
		assert.Equal(t, sai.ObjectTypePort, e.rid(p).Type())
	}

	vlan, err := e.c.Create(e.ctx, sai.ObjectTypeVLAN, []sai.Attribute{{ID: sai.VLANAttrVLANID, Value: u(10)}})
	require.NoError(t, err)
	member, err := e.c.Create(e.ctx, sai.ObjectTypeVLANMember, []sai.Attribute{
		{ID: sai.VLANMemberAttrVLANID, Value: oid(vlan)},
		{ID: sai.VLANMemberAttrPortID, Value: oid(ports[1])},
	})
	require.NoError(t, err)

	res, err := e.c.Get(e.ctx, sai.KeyOf(member), []sai.Attribute{{ID: sai.VLANMemberAttrVLANID}, {ID: sai.VLANMemberAttrPortID}})
	require.NoError(t, err)
	assert.Equal(t, vlan, res[0].Value.OID)
	assert.Equal(t, ports[1], res[1].Value.OID)

	require.NoError(t, e.c.Set(e.ctx, sai.KeyOf(vlan), sai.Attribute{ID: sai.VLANAttrMaxLearnedAddresses, Value: u(9)}))
	res, err = e.c.Get(e.ctx, sai.KeyOf(vlan), []sai.Attribute{{ID: sai.VLANAttrMaxLearnedAddresses}})
	require.NoError(t, err)
	assert.Equal(t, uint64(9), res[0].Value.Uint)

	assert.ErrorIs(t, e.c.Remove(e.ctx, sai.KeyOf(vlan)), sai.StatusObjectInUse)
	require.NoError(t, e.c.Remove(e.ctx, sai.KeyOf(member)))
	require.NoError(t, e.c.Remove(e.ctx, sai.KeyOf(vlan)))
	_, err = e.c.Virtualizer().Real(vlan)
	assert.ErrorIs(t, err, sai.StatusItemNotFound)

	res, err = e.c.Get(e.ctx, sai.KeyOf(sw), []sai.Attribute{{ID: sai.SwitchAttrDefaultVirtualRouterID}})
	require.NoError(t, err)
	route := sai.RouteKey(sai.RouteEntry{VR: res[0].Value.OID, Prefix: netip.MustParsePrefix("10.0.0.0/8")})
	require.NoError(t, e.c.CreateEntry(e.ctx, route, []sai.Attribute{{ID: sai.RouteEntryAttrPacketAction, Value: sai.Value{Int: sai.PacketActionDrop}}}))
	assert.ErrorIs(t, e.c.CreateEntry(e.ctx, route, nil), sai.StatusItemAlreadyExists)
	require.NoError(t, e.c.Remove(e.ctx, route))
	assert.Empty(t, e.fatals)
}

func TestGetBufferOverflow(t *testing.T) {
	e := newEnv(t, nil)
	sw, err := e.c.Create(e.ctx, sai.ObjectTypeSwitch, nil)
	require.NoError(t, err)

	res, err := e.c.Get(e.ctx, sai.KeyOf(sw), []sai.Attribute{{ID: sai.SwitchAttrPortList, Value: sai.Value{Objects: sai.List[sai.ObjectID]{Count: 2}}}})
	require.ErrorIs(t, err, sai.StatusBufferOverflow)
	require.Len(t, res, 1)
	assert.Equal(t, uint32(4), res[0].Value.Objects.Count)

	res, err = e.c.Get(e.ctx, sai.KeyOf(sw), []sai.Attribute{{ID: sai.SwitchAttrPortList, Value: sai.Value{Objects: sai.List[sai.ObjectID]{Count: 4}}}})
	require.NoError(t, err)
	assert.Len(t, res[0].Value.Objects.Items, 4)
}

func TestUnresolvedHandleIsFatal(t *testing.T) {
	e := newEnv(t, nil)
	_, err := e.c.Create(e.ctx, sai.ObjectTypeSwitch, nil)
	require.NoError(t, err)

	_, err = e.c.Create(e.ctx, sai.ObjectTypeVLANMember, []sai.Attribute{
		{ID: sai.VLANMemberAttrVLANID, Value: oid(sai.MakeObjectID(sai.ObjectTypeVLAN, 999))},
	})
	assert.ErrorIs(t, err, sai.ErrProtocolViolation)
	require.Len(t, e.fatals, 1)
}

func TestResponseMismatchIsFatal(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	commands, responses := make(chanQueue, 1), make(chanQueue, 1)
	go func() {
		if _, err := commands.Pop(ctx); err != nil {
			return
		}
		rec := sai.Record{ID: "someone-else:1", Op: sai.OpResponse, Key: codec.EncodeStatus(sai.StatusSuccess)}
		d, _ := rec.MarshalMsg(nil)
		responses.Push(ctx, d) //nolint:errcheck
	}()

	var fatal error
	c := New(Options{Commands: commands, Responses: responses, OnFatal: func(err error) { fatal = err }})
	require.NoError(t, c.Initialize(ctx))
	_, err := c.Create(ctx, sai.ObjectTypeSwitch, nil)
	assert.ErrorIs(t, err, sai.ErrProtocolViolation)
	assert.ErrorIs(t, fatal, sai.ErrProtocolViolation)
}

type failingPinger struct{ chanQueue }

func (failingPinger) Ping(context.Context) error { return sai.StatusFailure }

func TestInitializeUnreachableDaemon(t *testing.T) {
	var fatal error
	c := New(Options{Commands: failingPinger{make(chanQueue)}, Responses: make(chanQueue), OnFatal: func(err error) { fatal = err }})
	assert.Error(t, c.Initialize(context.Background()))
	assert.Error(t, fatal)
}

func TestInitializeDaemonDown(t *testing.T) {
	h := transport.NewHTTP("http://127.0.0.1:1")
	var fatal error
	c := New(Options{
		Commands:  h.Queue(store.CommandQueue),
		Responses: h.Queue(store.ResponseQueue),
		OnFatal:   func(err error) { fatal = err },
	})
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	assert.Error(t, c.Initialize(ctx))
	assert.Error(t, fatal)
	_, err := c.Create(ctx, sai.ObjectTypeSwitch, nil)
	assert.ErrorIs(t, err, sai.StatusUninitialized)
}

func TestViewTransition(t *testing.T) {
	e := newEnv(t, nil)
	sw, err := e.c.Create(e.ctx, sai.ObjectTypeSwitch, nil)
	require.NoError(t, err)
	old, err := e.c.Create(e.ctx, sai.ObjectTypeVLAN, []sai.Attribute{{ID: sai.VLANAttrVLANID, Value: u(10)}})
	require.NoError(t, err)
	rold := e.rid(old)

	require.NoError(t, e.c.Set(e.ctx, sai.KeyOf(sw), sai.Attribute{ID: sai.RedisSwitchAttrNotifySyncd, Value: sai.Value{Int: sai.NotifySyncdInitView}}))
	again, err := e.c.Create(e.ctx, sai.ObjectTypeSwitch, nil)
	require.NoError(t, err)
	assert.Equal(t, sw, again)

	vlan, err := e.c.Create(e.ctx, sai.ObjectTypeVLAN, []sai.Attribute{{ID: sai.VLANAttrVLANID, Value: u(10)}, {ID: sai.VLANAttrMaxLearnedAddresses, Value: u(3)}})
	require.NoError(t, err)
	require.NoError(t, e.c.NotifySyncd(e.ctx, sai.ViewApply))

	// the recreated vlan reuses the switch object
	assert.Equal(t, rold, e.rid(vlan))
	res, err := e.c.Get(e.ctx, sai.KeyOf(vlan), []sai.Attribute{{ID: sai.VLANAttrMaxLearnedAddresses}})
	require.NoError(t, err)
	assert.Equal(t, uint64(3), res[0].Value.Uint)

	err = e.c.NotifySyncd(e.ctx, sai.ViewApply)
	assert.ErrorIs(t, err, sai.StatusFailure)
	assert.Empty(t, e.fatals)
}

func TestRecorderCapturesCalls(t *testing.T) {
	rec := &memRecorder{}
	e := newEnv(t, rec)
	sw, err := e.c.Create(e.ctx, sai.ObjectTypeSwitch, nil)
	require.NoError(t, err)
	e.ports(sw)
	require.NoError(t, e.c.Set(e.ctx, sai.KeyOf(sw), sai.Attribute{ID: sai.RedisSwitchAttrRecord, Value: sai.Value{Bool: false}}))
	_, err = e.c.Create(e.ctx, sai.ObjectTypeVLAN, []sai.Attribute{{ID: sai.VLANAttrVLANID, Value: u(10)}})
	require.NoError(t, err)
	e.c.SetRecording(true)
	require.NoError(t, e.c.NotifySyncd(e.ctx, sai.ViewInit))

	assert.Equal(t, "cgGaA", rec.ops())
	assert.Equal(t, codec.EncodeKey(sai.KeyOf(sw)), rec.lines[0].key)
	assert.Equal(t, "SAI_STATUS_SUCCESS", rec.lines[2].key)
	assert.Equal(t, sai.ViewInit, rec.lines[3].key)
}

func TestBridgeDeliversTranslatedNotifications(t *testing.T) {
	e := newEnv(t, nil)
	sw, err := e.c.Create(e.ctx, sai.ObjectTypeSwitch, nil)
	require.NoError(t, err)
	port := e.ports(sw)[0]
	vlan, err := e.c.Create(e.ctx, sai.ObjectTypeVLAN, []sai.Attribute{{ID: sai.VLANAttrVLANID, Value: u(10)}})
	require.NoError(t, err)

	// an unknown notification ahead of the real ones is dropped
	junk, _ := (&sai.Record{Op: "bogus_event", Key: "[]"}).MarshalMsg(nil)
	e.ntf <- junk

	events := make(chan sai.FDBEvents, 4)
	states := make(chan sai.PortStateChange, 4)
	go e.c.Bridge(e.ntf, Handlers{
		FDBEvent:        func(ev sai.FDBEvents) { events <- ev },
		PortStateChange: func(ps sai.PortStateChange) { states <- ps },
	}).Run(e.ctx) //nolint:errcheck

	mac := sai.MAC{2, 0, 0, 0, 0, 7}
	require.NoError(t, e.sw.LearnFDB(sai.FDBEntry{MAC: mac, BridgeVLAN: e.rid(vlan)}, e.rid(port)))

	select {
	case ev := <-events:
		require.Len(t, ev, 1)
		assert.Equal(t, sai.FDBEventLearned, ev[0].Type)
		assert.Equal(t, vlan, ev[0].Entry.BridgeVLAN)
		pa, ok := sai.FindAttribute(ev[0].Attrs, sai.FDBEntryAttrPortID)
		require.True(t, ok)
		assert.Equal(t, port, pa.Value.OID)
	case <-time.After(5 * time.Second):
		t.Fatal("no fdb event")
	}
	learned := e.c.LearnedFDB()
	assert.Contains(t, learned, sai.FDBEntry{MAC: mac, BridgeVLAN: vlan})

	require.NoError(t, e.c.Set(e.ctx, sai.KeyOf(port), sai.Attribute{ID: sai.PortAttrAdminState, Value: sai.Value{Bool: true}}))
	select {
	case ps := <-states:
		require.Len(t, ps, 1)
		assert.Equal(t, port, ps[0].PortID)
		assert.Equal(t, sai.PortOperStatusUp, ps[0].Status)
	case <-time.After(5 * time.Second):
		t.Fatal("no port state change")
	}
}
