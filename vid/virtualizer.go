// Package vid keeps the mapping between virtual handles handed to callers
// and real handles owned by the backend.
//
// Three tables live in a store.KV: a counter per object type, VID->RID and
// RID->VID. Every caller resolves a virtual handle before touching the
// backend, so a missing mapping is a desynchronization, not a normal miss.
package vid

import (
	"errors"
	"fmt"
	"sync"

	log "github.com/sirupsen/logrus"

	"sairedis/sai"
	"sairedis/store"
)

type Direction int

const (
	// ToReal maps virtual handles to real ones.
	ToReal Direction = iota
	// ToVirtual maps real handles to virtual ones.
	ToVirtual
)

func (d Direction) String() string {
	if d == ToReal {
		return "vid->rid"
	}
	return "rid->vid"
}

type Virtualizer struct {
	mu sync.Mutex
	kv store.KV
	md sai.Metadata
}

func New(kv store.KV, md sai.Metadata) *Virtualizer {
	return &Virtualizer{kv: kv, md: md}
}

func counterKey(t sai.ObjectType) []byte {
	return store.CompID1(store.VIDCounterPrefix, t.String())
}

// Allocate returns a fresh virtual handle of type t. Counters are never
// reset, so handles are not reused while the store is intact.
func (v *Virtualizer) Allocate(t sai.ObjectType) (sai.ObjectID, error) {
	if !t.Valid() || t.IsEntry() {
		return sai.NullObjectID, fmt.Errorf("allocate %s: %w", t, sai.StatusInvalidObjectType)
	}
	n, err := v.kv.Increment(counterKey(t))
	if err != nil {
		return sai.NullObjectID, fmt.Errorf("allocate %s: %w", t, err)
	}
	return sai.MakeObjectID(t, uint64(n)), nil
}

// Bind records vid<->rid in both tables.
func (v *Virtualizer) Bind(vid, rid sai.ObjectID) error {
	v.mu.Lock()
	defer v.mu.Unlock()
	if _, err := v.lookup(store.VIDToRIDPrefix, vid); err == nil {
		return fmt.Errorf("bind %s: %w", vid, sai.StatusItemAlreadyExists)
	}
	if _, err := v.lookup(store.RIDToVIDPrefix, rid); err == nil {
		return fmt.Errorf("bind %s: real %s is bound: %w", vid, rid, sai.StatusItemAlreadyExists)
	}
	return v.kv.Batch([]byte("vid"), func(w store.Writer) error {
		if err := w.Set(store.Uint64Key(store.VIDToRIDPrefix, uint64(vid)), store.Int64ToByte(int64(rid))); err != nil {
			return err
		}
		return w.Set(store.Uint64Key(store.RIDToVIDPrefix, uint64(rid)), store.Int64ToByte(int64(vid)))
	})
}

// Unbind removes both directions of the pair holding vid.
func (v *Virtualizer) Unbind(vid sai.ObjectID) error {
	v.mu.Lock()
	defer v.mu.Unlock()
	rid, err := v.lookup(store.VIDToRIDPrefix, vid)
	if err != nil {
		log.Warnf("unbind %s: not bound", vid)
		return fmt.Errorf("unbind %s: %w", vid, sai.StatusItemNotFound)
	}
	return v.kv.Batch([]byte("vid"), func(w store.Writer) error {
		if err := w.Delete(store.Uint64Key(store.VIDToRIDPrefix, uint64(vid))); err != nil {
			return err
		}
		return w.Delete(store.Uint64Key(store.RIDToVIDPrefix, uint64(rid)))
	})
}

func (v *Virtualizer) lookup(prefix int, id sai.ObjectID) (sai.ObjectID, error) {
	d, err := v.kv.Get(store.Uint64Key(prefix, uint64(id)))
	if errors.Is(err, store.ErrNotFound) {
		return sai.NullObjectID, sai.StatusItemNotFound
	}
	if err != nil {
		return sai.NullObjectID, err
	}
	return sai.ObjectID(store.ByteToInt64(d)), nil
}

// Real resolves a virtual handle. The null handle maps to itself.
func (v *Virtualizer) Real(vid sai.ObjectID) (sai.ObjectID, error) {
	if vid == sai.NullObjectID {
		return vid, nil
	}
	rid, err := v.lookup(store.VIDToRIDPrefix, vid)
	if err != nil {
		return rid, fmt.Errorf("resolve %s: %w", vid, err)
	}
	return rid, nil
}

// Virtual resolves a real handle. The null handle maps to itself.
func (v *Virtualizer) Virtual(rid sai.ObjectID) (sai.ObjectID, error) {
	if rid == sai.NullObjectID {
		return rid, nil
	}
	vid, err := v.lookup(store.RIDToVIDPrefix, rid)
	if err != nil {
		return vid, fmt.Errorf("resolve real %s: %w", rid, err)
	}
	return vid, nil
}

// VirtualOrAdopt resolves rid, allocating and binding a virtual handle for
// real handles seen for the first time (objects the backend created on its
// own, like ports).
func (v *Virtualizer) VirtualOrAdopt(rid sai.ObjectID) (sai.ObjectID, error) {
	vid, err := v.Virtual(rid)
	if err == nil || !errors.Is(err, sai.StatusItemNotFound) {
		return vid, err
	}
	vid, err = v.Allocate(rid.Type())
	if err != nil {
		return sai.NullObjectID, err
	}
	if err := v.Bind(vid, rid); err != nil {
		if errors.Is(err, sai.StatusItemAlreadyExists) { // adopted concurrently
			return v.Virtual(rid)
		}
		return sai.NullObjectID, err
	}
	log.Debugf("adopted %s as %s", rid, vid)
	return vid, nil
}

func (v *Virtualizer) mapFunc(dir Direction) MapFunc {
	if dir == ToReal {
		return v.Real
	}
	return v.Virtual
}

// Translate returns a copy of attrs with embedded handles mapped in
// direction dir. It is all-or-nothing: if any handle fails to resolve
// the error is returned and no translated value escapes.
func (v *Virtualizer) Translate(t sai.ObjectType, attrs []sai.Attribute, dir Direction) ([]sai.Attribute, error) {
	return Rewrite(v.md, t, attrs, v.mapFunc(dir))
}

// TranslateAdopting maps real handles to virtual ones, adopting unknown
// real handles.
func (v *Virtualizer) TranslateAdopting(t sai.ObjectType, attrs []sai.Attribute) ([]sai.Attribute, error) {
	return Rewrite(v.md, t, attrs, v.VirtualOrAdopt)
}

// TranslateKey maps the handle carried by k.
func (v *Virtualizer) TranslateKey(k sai.ObjectKey, dir Direction) (sai.ObjectKey, error) {
	return RewriteKey(k, v.mapFunc(dir))
}

// TranslateNotification maps real handles in n to virtual ones, adopting
// unknown real handles.
func (v *Virtualizer) TranslateNotification(n sai.Notification) (sai.Notification, error) {
	return RewriteNotification(v.md, n, v.VirtualOrAdopt)
}

// Pairs returns every bound vid->rid pair.
func (v *Virtualizer) Pairs() (map[sai.ObjectID]sai.ObjectID, error) {
	res := map[sai.ObjectID]sai.ObjectID{}
	err := v.kv.Scan([]byte{store.VIDToRIDPrefix}, func(k, d []byte) error {
		res[sai.ObjectID(store.KeyUint64(k))] = sai.ObjectID(store.ByteToInt64(d))
		return nil
	})
	return res, err
}

// Reset drops every binding but keeps the counters, so handles issued
// before a cold start are never reissued.
func (v *Virtualizer) Reset() error {
	v.mu.Lock()
	defer v.mu.Unlock()
	if err := v.kv.DeletePrefix([]byte{store.VIDToRIDPrefix}); err != nil {
		return err
	}
	return v.kv.DeletePrefix([]byte{store.RIDToVIDPrefix})
}
