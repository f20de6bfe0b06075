// Package client is the caller side of the switch protocol. Every call is
// encoded, pushed on the command channel and answered on the response
// channel; exactly one call is in flight per Client.
//
// The client keeps its own handles. Create binds each one to the handle
// the daemon returned, and every later call translates through that map,
// including handles nested in attribute values.
package client

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"

	"sairedis/codec"
	"sairedis/sai"
	"sairedis/store"
	"sairedis/transport"
	"sairedis/vid"
)

// Capture opcodes passed to a Recorder.
const (
	RecCreate       = 'c'
	RecRemove       = 'r'
	RecSet          = 's'
	RecGet          = 'g'
	RecGetResponse  = 'G'
	RecNotification = 'n'
	RecNotify       = 'a'
	RecNotifyResult = 'A'
)

// Recorder captures calls in client space.
type Recorder interface {
	Record(op byte, key string, fields []sai.FieldValue)
}

type Options struct {
	Commands  transport.Producer
	Responses transport.Consumer
	Metadata  sai.Metadata
	// Store keeps the client handle tables. Defaults to memory.
	Store    store.KV
	Recorder Recorder
	// OnFatal is called when client and daemon can no longer agree on
	// state. Defaults to log.Fatal.
	OnFatal func(error)
}

type Client struct {
	mu        sync.Mutex
	commands  transport.Producer
	responses transport.Consumer
	codec     *codec.Codec
	md        sai.Metadata
	vids      *vid.Virtualizer
	rec       Recorder
	onFatal   func(error)

	id          string
	seq         uint64
	initialized bool
	recording   bool
	learned     map[sai.FDBEntry][]sai.Attribute
}

func New(opts Options) *Client {
	if opts.Metadata == nil {
		opts.Metadata = sai.DefaultMetadata()
	}
	if opts.Store == nil {
		opts.Store = store.NewMemory()
	}
	if opts.OnFatal == nil {
		opts.OnFatal = func(err error) { log.Fatal(err) }
	}
	return &Client{
		commands:  opts.Commands,
		responses: opts.Responses,
		codec:     codec.New(opts.Metadata),
		md:        opts.Metadata,
		vids:      vid.New(opts.Store, opts.Metadata),
		rec:       opts.Recorder,
		onFatal:   opts.OnFatal,
		recording: opts.Recorder != nil,
		learned:   map[sai.FDBEntry][]sai.Attribute{},
	}
}

// Initialize checks that the daemon is reachable. An unreachable daemon is
// fatal.
func (c *Client) Initialize(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if p, ok := c.commands.(transport.Pinger); ok {
		if err := p.Ping(ctx); err != nil {
			err = fmt.Errorf("daemon unreachable: %w", err)
			c.onFatal(err)
			return err
		}
	}
	c.id = uuid.NewString()
	c.seq = 0
	c.initialized = true
	log.Infof("client %s initialized", c.id)
	return nil
}

func (c *Client) Uninitialize() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.initialized = false
}

// Virtualizer exposes the client handle map.
func (c *Client) Virtualizer() *vid.Virtualizer {
	return c.vids
}

// SetRecording turns capture on or off. It has no effect without a
// Recorder.
func (c *Client) SetRecording(on bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.setRecording(on)
}

func (c *Client) setRecording(on bool) {
	c.recording = on && c.rec != nil
	log.Infof("recording %v", c.recording)
}

func (c *Client) record(op byte, key string, fields []sai.FieldValue) {
	if c.recording {
		c.rec.Record(op, key, fields)
	}
}

func (c *Client) ready() error {
	if !c.initialized {
		return sai.StatusUninitialized
	}
	return nil
}

// fatal reports a protocol violation and returns it.
func (c *Client) fatal(err error) error {
	err = fmt.Errorf("%w: %v", sai.ErrProtocolViolation, err)
	c.onFatal(err)
	return err
}

// call pushes one command and waits for its response.
func (c *Client) call(ctx context.Context, op, key string, fields []sai.FieldValue) (sai.Status, []sai.FieldValue, error) {
	if err := ctx.Err(); err != nil {
		return sai.StatusFailure, nil, err
	}
	c.seq++
	id := fmt.Sprintf("%s:%d", c.id, c.seq)
	req := sai.Record{ID: id, Op: op, Key: key, Fields: fields}
	d, err := req.MarshalMsg(nil)
	if err != nil {
		return sai.StatusFailure, nil, err
	}
	if err := c.commands.Push(ctx, d); err != nil {
		return sai.StatusFailure, nil, c.fatal(fmt.Errorf("push %s %s: %w", op, key, err))
	}
	msg, err := c.responses.Pop(ctx)
	if err != nil {
		return sai.StatusFailure, nil, c.fatal(fmt.Errorf("await %s: %w", id, err))
	}
	var resp sai.Record
	if _, err := resp.UnmarshalMsg(msg); err != nil {
		return sai.StatusFailure, nil, c.fatal(fmt.Errorf("decode response to %s: %w", id, err))
	}
	if resp.ID != id || resp.Op != sai.OpResponse {
		return sai.StatusFailure, nil, c.fatal(fmt.Errorf("expected response to %s, got %s %q", id, resp.Op, resp.ID))
	}
	st, err := codec.DecodeStatus(resp.Key)
	if err != nil {
		return sai.StatusFailure, nil, c.fatal(fmt.Errorf("response to %s: %w", id, err))
	}
	return st, resp.Fields, nil
}

// toDaemon translates a key and attributes to daemon handles. A handle
// the client never bound means caller and client disagree, which is fatal.
func (c *Client) toDaemon(key sai.ObjectKey, attrs []sai.Attribute) (sai.ObjectKey, []sai.Attribute, error) {
	dkey, err := c.vids.TranslateKey(key, vid.ToReal)
	if err != nil {
		return key, nil, c.fatal(err)
	}
	dattrs, err := c.vids.Translate(key.Type, attrs, vid.ToReal)
	if err != nil {
		if errors.Is(err, codec.ErrUnknownAttribute) {
			return key, nil, fmt.Errorf("%v: %w", err, sai.StatusInvalidParameter)
		}
		return key, nil, c.fatal(err)
	}
	return dkey, dattrs, nil
}

func (c *Client) encode(t sai.ObjectType, attrs []sai.Attribute, countOnly bool) ([]sai.FieldValue, error) {
	fields, err := c.codec.EncodeAttributes(t, attrs, countOnly)
	if err != nil {
		return nil, fmt.Errorf("%v: %w", err, sai.StatusInvalidParameter)
	}
	return fields, nil
}

// Create creates a handle keyed object and returns its handle.
func (c *Client) Create(ctx context.Context, t sai.ObjectType, attrs []sai.Attribute) (sai.ObjectID, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.ready(); err != nil {
		return sai.NullObjectID, err
	}
	if !t.Valid() || t.IsEntry() {
		return sai.NullObjectID, fmt.Errorf("create %s: %w", t, sai.StatusInvalidObjectType)
	}
	recFields, err := c.encode(t, attrs, false)
	if err != nil {
		return sai.NullObjectID, err
	}
	_, dattrs, err := c.toDaemon(sai.ObjectKey{Type: t}, attrs)
	if err != nil {
		return sai.NullObjectID, err
	}
	fields, err := c.encode(t, dattrs, false)
	if err != nil {
		return sai.NullObjectID, err
	}
	v, err := c.vids.Allocate(t)
	if err != nil {
		return sai.NullObjectID, err
	}
	key := codec.EncodeKey(sai.KeyOf(v))
	c.record(RecCreate, key, recFields)
	st, resp, err := c.call(ctx, sai.OpCreate, key, fields)
	if err != nil {
		return sai.NullObjectID, err
	}
	if st != sai.StatusSuccess {
		return sai.NullObjectID, st
	}
	var dvid sai.ObjectID
	for _, f := range resp {
		if f.Field == codec.ObjectIDField {
			dvid, err = sai.ParseObjectID(f.Value)
		}
	}
	if dvid == sai.NullObjectID || err != nil || dvid.Type() != t {
		return sai.NullObjectID, c.fatal(fmt.Errorf("create %s: bad handle in response %v", t, resp))
	}
	if prev, err := c.vids.Virtual(dvid); err == nil {
		// the daemon handed out an existing object (switch create in a temp view)
		return prev, nil
	}
	if err := c.vids.Bind(v, dvid); err != nil {
		return sai.NullObjectID, c.fatal(err)
	}
	return v, nil
}

// CreateEntry creates an FDB, neighbor or route entry.
func (c *Client) CreateEntry(ctx context.Context, key sai.ObjectKey, attrs []sai.Attribute) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.ready(); err != nil {
		return err
	}
	if !key.Type.IsEntry() {
		return fmt.Errorf("create entry %s: %w", key.Type, sai.StatusInvalidObjectType)
	}
	recFields, err := c.encode(key.Type, attrs, false)
	if err != nil {
		return err
	}
	dkey, dattrs, err := c.toDaemon(key, attrs)
	if err != nil {
		return err
	}
	fields, err := c.encode(key.Type, dattrs, false)
	if err != nil {
		return err
	}
	c.record(RecCreate, codec.EncodeKey(key), recFields)
	st, _, err := c.call(ctx, sai.OpCreate, codec.EncodeKey(dkey), fields)
	if err != nil {
		return err
	}
	return st.Err()
}

// Remove removes an object. A removed handle no longer resolves.
func (c *Client) Remove(ctx context.Context, key sai.ObjectKey) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.ready(); err != nil {
		return err
	}
	dkey, _, err := c.toDaemon(key, nil)
	if err != nil {
		return err
	}
	c.record(RecRemove, codec.EncodeKey(key), nil)
	st, _, err := c.call(ctx, sai.OpRemove, codec.EncodeKey(dkey), nil)
	if err != nil {
		return err
	}
	if st != sai.StatusSuccess {
		return st
	}
	if key.Type == sai.ObjectTypeFDBEntry {
		delete(c.learned, key.FDB)
	}
	if !key.Type.IsEntry() {
		return c.vids.Unbind(key.OID)
	}
	return nil
}

// Set writes one attribute. The reserved switch attributes are handled
// here: RedisSwitchAttrNotifySyncd runs NotifySyncd and
// RedisSwitchAttrRecord toggles capture.
func (c *Client) Set(ctx context.Context, key sai.ObjectKey, attr sai.Attribute) error {
	if key.Type == sai.ObjectTypeSwitch {
		switch attr.ID {
		case sai.RedisSwitchAttrNotifySyncd:
			switch attr.Value.Int {
			case sai.NotifySyncdInitView:
				return c.NotifySyncd(ctx, sai.ViewInit)
			case sai.NotifySyncdApplyView:
				return c.NotifySyncd(ctx, sai.ViewApply)
			}
			return fmt.Errorf("notify syncd %d: %w", attr.Value.Int, sai.StatusInvalidParameter)
		case sai.RedisSwitchAttrRecord:
			c.SetRecording(attr.Value.Bool)
			return nil
		}
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.ready(); err != nil {
		return err
	}
	recFields, err := c.encode(key.Type, []sai.Attribute{attr}, false)
	if err != nil {
		return err
	}
	dkey, dattrs, err := c.toDaemon(key, []sai.Attribute{attr})
	if err != nil {
		return err
	}
	fields, err := c.encode(key.Type, dattrs, false)
	if err != nil {
		return err
	}
	c.record(RecSet, codec.EncodeKey(key), recFields)
	st, _, err := c.call(ctx, sai.OpSet, codec.EncodeKey(dkey), fields)
	if err != nil {
		return err
	}
	return st.Err()
}

// Get reads attributes. List values in attrs are buffers: their Count is
// the buffer size. When a buffer is too small Get returns the attributes
// together with sai.StatusBufferOverflow, and the list carries the count
// needed; retry with a larger buffer.
func (c *Client) Get(ctx context.Context, key sai.ObjectKey, attrs []sai.Attribute) ([]sai.Attribute, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.ready(); err != nil {
		return nil, err
	}
	recFields, err := c.encode(key.Type, attrs, true)
	if err != nil {
		return nil, err
	}
	dkey, dattrs, err := c.toDaemon(key, attrs)
	if err != nil {
		return nil, err
	}
	fields, err := c.encode(key.Type, dattrs, true)
	if err != nil {
		return nil, err
	}
	c.record(RecGet, codec.EncodeKey(key), recFields)
	st, resp, err := c.call(ctx, sai.OpGet, codec.EncodeKey(dkey), fields)
	if err != nil {
		return nil, err
	}
	if st != sai.StatusSuccess && st != sai.StatusBufferOverflow {
		c.record(RecGetResponse, st.String(), nil)
		return nil, st
	}
	res, err := c.codec.DecodeAttributes(key.Type, resp)
	if err != nil {
		return nil, c.fatal(err)
	}
	res, err = c.vids.TranslateAdopting(key.Type, res)
	if err != nil {
		return nil, c.fatal(err)
	}
	if c.recording {
		out, _ := c.codec.EncodeAttributes(key.Type, res, false)
		c.record(RecGetResponse, st.String(), out)
	}
	return res, st.Err()
}

// NotifySyncd asks the daemon to enter (sai.ViewInit) or apply
// (sai.ViewApply) a view transition. A failed apply returns an
// *sai.ApplyError naming the first failing operation.
func (c *Client) NotifySyncd(ctx context.Context, op string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.ready(); err != nil {
		return err
	}
	if op != sai.ViewInit && op != sai.ViewApply {
		return fmt.Errorf("notify syncd %q: %w", op, sai.StatusInvalidParameter)
	}
	c.record(RecNotify, op, nil)
	st, resp, err := c.call(ctx, sai.OpNotify, op, nil)
	if err != nil {
		return err
	}
	c.record(RecNotifyResult, st.String(), nil)
	if st == sai.StatusSuccess {
		return nil
	}
	ae := &sai.ApplyError{Status: st}
	for _, f := range resp {
		switch f.Field {
		case codec.ApplyOpField:
			ae.Op = f.Value
		case codec.ApplyKeyField:
			ae.Key = f.Value
			if k, err := codec.DecodeKey(f.Value); err == nil {
				if ck, err := c.vids.TranslateKey(k, vid.ToVirtual); err == nil {
					ae.Key = codec.EncodeKey(ck)
				}
			}
		}
	}
	if ae.Op == "" {
		return st
	}
	return ae
}

// LearnedFDB returns the FDB entries learned from notifications.
func (c *Client) LearnedFDB() map[sai.FDBEntry][]sai.Attribute {
	c.mu.Lock()
	defer c.mu.Unlock()
	res := make(map[sai.FDBEntry][]sai.Attribute, len(c.learned))
	for e, attrs := range c.learned {
		res[e] = sai.CloneAttributes(attrs)
	}
	return res
}
