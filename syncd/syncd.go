// Package syncd is the daemon core. It executes the calls clients push on
// the command channel against a Backend, keeps the live object graph in
// virtual space, and implements the two phase view transition: INIT_VIEW
// collects a new configuration in a temp view and APPLY_VIEW applies only
// its difference from the live view.
package syncd

import (
	"context"
	"errors"
	"fmt"
	"sync"

	log "github.com/sirupsen/logrus"

	"sairedis/codec"
	"sairedis/sai"
	"sairedis/store"
	"sairedis/transport"
	"sairedis/vid"
)

type Options struct {
	Metadata sai.Metadata
	// KV holds the identity tables and the persisted live view.
	KV      store.KV
	Backend Backend
	// Notifications receives switch events translated to virtual space.
	Notifications transport.Publisher
	// WarmStart restores the live view and identity tables instead of
	// starting from an empty switch.
	WarmStart bool
	// Recorder captures processed commands in daemon space. Capture can be
	// toggled with RedisSwitchAttrRecord.
	Recorder Recorder
}

// Recorder captures one line of the call log.
type Recorder interface {
	Record(op byte, key string, fields []sai.FieldValue)
}

type loader interface {
	Load() error
}

type resetter interface {
	Reset() error
}

type Syncd struct {
	mu       sync.Mutex
	md       sai.Metadata
	codec    *codec.Codec
	kv       store.KV
	vids     *vid.Virtualizer
	backend  Backend
	families map[sai.ObjectType]family
	pub      transport.Publisher
	rec      Recorder
	// recording is on while rec is set and capture was not turned off
	recording bool

	live *View
	// temp is non-nil between INIT_VIEW and APPLY_VIEW.
	temp *View
}

func New(opts Options) (*Syncd, error) {
	if opts.Metadata == nil {
		opts.Metadata = sai.DefaultMetadata()
	}
	if opts.KV == nil {
		opts.KV = store.NewMemory()
	}
	if opts.Backend == nil {
		return nil, errors.New("syncd: no backend")
	}
	s := &Syncd{
		md:        opts.Metadata,
		codec:     codec.New(opts.Metadata),
		kv:        opts.KV,
		vids:      vid.New(opts.KV, opts.Metadata),
		backend:   opts.Backend,
		families:  newFamilies(),
		pub:       opts.Notifications,
		rec:       opts.Recorder,
		recording: opts.Recorder != nil,
		live:      newView(),
	}
	if opts.WarmStart {
		if l, ok := opts.Backend.(loader); ok {
			if err := l.Load(); err != nil {
				return nil, fmt.Errorf("warm start: %w", err)
			}
		}
		live, err := s.loadLive()
		if err != nil {
			return nil, fmt.Errorf("warm start: %w", err)
		}
		s.live = live
		log.Infof("warm start: restored %d objects", live.Len())
		return s, nil
	}
	if r, ok := opts.Backend.(resetter); ok {
		if err := r.Reset(); err != nil {
			return nil, fmt.Errorf("cold start: %w", err)
		}
	}
	if err := s.kv.DeletePrefix([]byte{store.ViewPrefix}); err != nil {
		return nil, fmt.Errorf("cold start: %w", err)
	}
	if err := s.vids.Reset(); err != nil {
		return nil, fmt.Errorf("cold start: %w", err)
	}
	log.Info("cold start")
	return s, nil
}

// Virtualizer returns the daemon side identity map.
func (s *Syncd) Virtualizer() *vid.Virtualizer {
	return s.vids
}

// Live returns a copy of the live view ordered by encoded key.
func (s *Syncd) Live() []Object {
	s.mu.Lock()
	defer s.mu.Unlock()
	var res []Object
	for _, o := range s.live.Objects() {
		res = append(res, *o.clone())
	}
	return res
}

// InTempView reports whether a view transition is in progress.
func (s *Syncd) InTempView() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.temp != nil
}

// Run executes commands until ctx is done, pushing one response per
// command in command order.
func (s *Syncd) Run(ctx context.Context, commands transport.Consumer, responses transport.Producer) error {
	for {
		msg, err := commands.Pop(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return fmt.Errorf("pop command: %w", err)
		}
		var rec sai.Record
		var resp sai.Record
		if _, err := rec.UnmarshalMsg(msg); err != nil {
			log.Errorf("undecodable command: %v", err)
			resp = sai.Record{Op: sai.OpResponse, Key: codec.EncodeStatus(sai.StatusFailure)}
		} else {
			resp = s.Process(rec)
		}
		d, err := resp.MarshalMsg(nil)
		if err != nil {
			return err
		}
		if err := responses.Push(ctx, d); err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return fmt.Errorf("push response: %w", err)
		}
	}
}

// Process executes one command and returns its response.
func (s *Syncd) Process(rec sai.Record) sai.Record {
	s.mu.Lock()
	defer s.mu.Unlock()
	fields, err := s.process(rec)
	st := sai.StatusOf(err)
	var ae *sai.ApplyError
	if errors.As(err, &ae) {
		fields = []sai.FieldValue{{Field: codec.ApplyOpField, Value: ae.Op}, {Field: codec.ApplyKeyField, Value: ae.Key}}
	}
	switch st {
	case sai.StatusSuccess, sai.StatusBufferOverflow:
		log.Debugf("%s %s: %s", rec.Op, rec.Key, st)
	default:
		log.Warnf("%s %s: %v", rec.Op, rec.Key, err)
	}
	resp := sai.Record{ID: rec.ID, Op: sai.OpResponse, Key: codec.EncodeStatus(st), Fields: fields}
	s.capture(rec, resp)
	return resp
}

// capture writes a processed command and, for gets and view transitions,
// its result. Creates are keyed by the handle the daemon assigned.
func (s *Syncd) capture(rec, resp sai.Record) {
	if !s.recording {
		return
	}
	switch rec.Op {
	case sai.OpCreate:
		key := rec.Key
		for _, f := range resp.Fields {
			if f.Field != codec.ObjectIDField {
				continue
			}
			if id, err := sai.ParseObjectID(f.Value); err == nil {
				key = codec.EncodeKey(sai.KeyOf(id))
			}
		}
		s.rec.Record('c', key, rec.Fields)
	case sai.OpRemove:
		s.rec.Record('r', rec.Key, nil)
	case sai.OpSet:
		s.rec.Record('s', rec.Key, rec.Fields)
	case sai.OpGet:
		s.rec.Record('g', rec.Key, rec.Fields)
		s.rec.Record('G', resp.Key, resp.Fields)
	case sai.OpNotify:
		s.rec.Record('a', rec.Key, nil)
		s.rec.Record('A', resp.Key, nil)
	}
}

func (s *Syncd) process(rec sai.Record) ([]sai.FieldValue, error) {
	if rec.Op == sai.OpNotify {
		return nil, s.notifySyncd(rec.Key)
	}
	key, err := codec.DecodeKey(rec.Key)
	if err != nil {
		return nil, err
	}
	if _, ok := s.families[key.Type]; !ok {
		return nil, fmt.Errorf("%s: %w", rec.Key, sai.StatusInvalidObjectType)
	}
	attrs, err := s.codec.DecodeAttributes(key.Type, rec.Fields)
	if err != nil {
		return nil, fmt.Errorf("%v: %w", err, sai.StatusInvalidParameter)
	}
	switch rec.Op {
	case sai.OpCreate:
		if s.temp != nil {
			return s.createTemp(key, attrs)
		}
		return s.createLive(key, attrs)
	case sai.OpRemove:
		if s.temp != nil {
			return nil, s.removeTemp(key)
		}
		return nil, s.removeLive(key)
	case sai.OpSet:
		if len(attrs) != 1 {
			return nil, fmt.Errorf("set takes one attribute, got %d: %w", len(attrs), sai.StatusInvalidParameter)
		}
		if handled, err := s.control(key, attrs[0]); handled {
			return nil, err
		}
		if s.temp != nil {
			return nil, s.setTemp(key, attrs[0])
		}
		return nil, s.setLive(key, attrs[0])
	case sai.OpGet:
		var res []sai.Attribute
		if s.temp != nil {
			res, err = s.getTemp(key, attrs)
		} else {
			res, err = s.families[key.Type].get(s, key, attrs)
		}
		if err != nil && sai.StatusOf(err) != sai.StatusBufferOverflow {
			return nil, err
		}
		fields, eerr := s.codec.EncodeAttributes(key.Type, res, false)
		if eerr != nil {
			return nil, eerr
		}
		return fields, err
	}
	return nil, fmt.Errorf("op %q: %w", rec.Op, sai.StatusNotImplemented)
}

// control handles the reserved switch attributes when they arrive as a
// plain set.
func (s *Syncd) control(key sai.ObjectKey, a sai.Attribute) (bool, error) {
	if key.Type != sai.ObjectTypeSwitch {
		return false, nil
	}
	switch a.ID {
	case sai.RedisSwitchAttrNotifySyncd:
		switch a.Value.Int {
		case sai.NotifySyncdInitView:
			return true, s.notifySyncd(sai.ViewInit)
		case sai.NotifySyncdApplyView:
			return true, s.notifySyncd(sai.ViewApply)
		}
		return true, fmt.Errorf("notify syncd %d: %w", a.Value.Int, sai.StatusInvalidParameter)
	case sai.RedisSwitchAttrRecord:
		s.recording = a.Value.Bool && s.rec != nil
		log.Infof("recording %v", s.recording)
		return true, nil
	}
	return false, nil
}

func (s *Syncd) notifySyncd(op string) error {
	switch op {
	case sai.ViewInit:
		s.initView()
		return nil
	case sai.ViewApply:
		return s.applyView()
	}
	return fmt.Errorf("notify %q: %w", op, sai.StatusNotImplemented)
}

func (s *Syncd) liveSwitch() (*Object, bool) {
	for _, o := range s.live.objects {
		if o.Key.Type == sai.ObjectTypeSwitch {
			return o, true
		}
	}
	return nil, false
}

func createResponse(key sai.ObjectKey) []sai.FieldValue {
	if key.Type.IsEntry() {
		return nil
	}
	return []sai.FieldValue{{Field: codec.ObjectIDField, Value: key.OID.String()}}
}

func (s *Syncd) createLive(key sai.ObjectKey, attrs []sai.Attribute) ([]sai.FieldValue, error) {
	if !key.Type.Valid() {
		return nil, fmt.Errorf("create %s: %w", key.Type, sai.StatusInvalidObjectType)
	}
	if key.Type == sai.ObjectTypeSwitch {
		if _, ok := s.liveSwitch(); ok {
			return nil, fmt.Errorf("create switch: %w", sai.StatusItemAlreadyExists)
		}
	}
	if key.Type.IsEntry() {
		if _, ok := s.live.Get(key); ok {
			return nil, fmt.Errorf("create %s: %w", codec.EncodeKey(key), sai.StatusItemAlreadyExists)
		}
	} else {
		v, err := s.vids.Allocate(key.Type)
		if err != nil {
			return nil, err
		}
		key = sai.KeyOf(v)
	}
	if err := s.families[key.Type].create(s, key, attrs); err != nil {
		return nil, err
	}
	o := &Object{Key: key, Attrs: sai.CloneAttributes(attrs), Origin: OriginClient}
	s.live.Put(o)
	s.saveObject(o)
	return createResponse(key), nil
}

// removable checks that o can be removed from view v.
func (s *Syncd) removable(v *View, o *Object) error {
	if o.Origin == OriginDefault {
		return fmt.Errorf("remove default %s: %w", codec.EncodeKey(o.Key), sai.StatusNotSupported)
	}
	if o.Key.Type.IsEntry() {
		return nil
	}
	if o.Key.Type == sai.ObjectTypeSwitch {
		for _, other := range v.objects {
			if other.Origin == OriginClient && other.Key != o.Key {
				return fmt.Errorf("remove switch: %s exists: %w", codec.EncodeKey(other.Key), sai.StatusObjectInUse)
			}
		}
		return nil
	}
	if by, ok := v.usedBy(s.md, o.Key.OID); ok {
		return fmt.Errorf("remove %s: used by %s: %w", o.Key.OID, codec.EncodeKey(by), sai.StatusObjectInUse)
	}
	return nil
}

func (s *Syncd) removeLive(key sai.ObjectKey) error {
	o, ok := s.live.Get(key)
	if !ok {
		return fmt.Errorf("remove %s: %w", codec.EncodeKey(key), sai.StatusItemNotFound)
	}
	if err := s.removable(s.live, o); err != nil {
		return err
	}
	if err := s.families[key.Type].remove(s, key); err != nil {
		return err
	}
	s.live.Delete(key)
	s.dropObject(key)
	return nil
}

func (s *Syncd) setLive(key sai.ObjectKey, a sai.Attribute) error {
	o, ok := s.live.Get(key)
	if !ok {
		return fmt.Errorf("set %s: %w", codec.EncodeKey(key), sai.StatusItemNotFound)
	}
	if err := s.families[key.Type].set(s, key, a); err != nil {
		return err
	}
	o.Attrs = putAttr(o.Attrs, sai.Attribute{ID: a.ID, Value: a.Value.Clone()})
	s.saveObject(o)
	return nil
}

// putAttr replaces the attribute with the same id or appends a.
func putAttr(attrs []sai.Attribute, a sai.Attribute) []sai.Attribute {
	for i := range attrs {
		if attrs[i].ID == a.ID {
			attrs[i] = a
			return attrs
		}
	}
	return append(attrs, a)
}
