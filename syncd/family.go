package syncd

import (
	"errors"
	"fmt"

	log "github.com/sirupsen/logrus"

	"sairedis/sai"
	"sairedis/vid"
)

// Backend executes calls on the switch. Handles passed in and returned are
// real handles.
type Backend interface {
	Create(t sai.ObjectType, attrs []sai.Attribute) (sai.ObjectID, error)
	CreateEntry(key sai.ObjectKey, attrs []sai.Attribute) error
	Remove(key sai.ObjectKey) error
	Set(key sai.ObjectKey, attr sai.Attribute) error
	Get(key sai.ObjectKey, attrs []sai.Attribute) ([]sai.Attribute, error)
}

// family runs calls for one object family on the backend. Keys and
// attributes are in virtual space; the family resolves them.
type family interface {
	create(s *Syncd, key sai.ObjectKey, attrs []sai.Attribute) error
	remove(s *Syncd, key sai.ObjectKey) error
	set(s *Syncd, key sai.ObjectKey, attr sai.Attribute) error
	get(s *Syncd, key sai.ObjectKey, attrs []sai.Attribute) ([]sai.Attribute, error)
}

func newFamilies() map[sai.ObjectType]family {
	res := map[sai.ObjectType]family{}
	for _, t := range sai.ObjectTypes() {
		switch {
		case t == sai.ObjectTypeSwitch:
			res[t] = switchFamily{}
		case t.IsEntry():
			res[t] = entryFamily{}
		default:
			res[t] = genericFamily{}
		}
	}
	return res
}

// desync marks a virtual handle the daemon cannot resolve. The caller
// referenced something it never created.
func desync(err error) error {
	if errors.Is(err, sai.StatusItemNotFound) {
		log.Errorf("identity map out of sync: %v", err)
		return fmt.Errorf("%v: %w", err, sai.StatusInvalidObjectID)
	}
	return err
}

func (s *Syncd) toReal(key sai.ObjectKey, attrs []sai.Attribute) (sai.ObjectKey, []sai.Attribute, error) {
	rkey, err := s.vids.TranslateKey(key, vid.ToReal)
	if err != nil {
		return key, nil, desync(err)
	}
	rattrs, err := s.vids.Translate(key.Type, attrs, vid.ToReal)
	if err != nil {
		return key, nil, desync(err)
	}
	return rkey, rattrs, nil
}

// genericFamily covers objects addressed by an allocated handle.
type genericFamily struct{}

// create creates the object and binds key.OID to the new real handle.
func (genericFamily) create(s *Syncd, key sai.ObjectKey, attrs []sai.Attribute) error {
	_, rattrs, err := s.toReal(sai.ObjectKey{Type: key.Type}, attrs)
	if err != nil {
		return err
	}
	rid, err := s.backend.Create(key.Type, rattrs)
	if err != nil {
		return err
	}
	return s.vids.Bind(key.OID, rid)
}

func (genericFamily) remove(s *Syncd, key sai.ObjectKey) error {
	rkey, _, err := s.toReal(key, nil)
	if err != nil {
		return err
	}
	if err := s.backend.Remove(rkey); err != nil {
		return err
	}
	return s.vids.Unbind(key.OID)
}

func (genericFamily) set(s *Syncd, key sai.ObjectKey, attr sai.Attribute) error {
	rkey, rattrs, err := s.toReal(key, []sai.Attribute{attr})
	if err != nil {
		return err
	}
	return s.backend.Set(rkey, rattrs[0])
}

func (genericFamily) get(s *Syncd, key sai.ObjectKey, attrs []sai.Attribute) ([]sai.Attribute, error) {
	rkey, rattrs, err := s.toReal(key, attrs)
	if err != nil {
		return nil, err
	}
	res, err := s.backend.Get(rkey, rattrs)
	if err != nil && sai.StatusOf(err) != sai.StatusBufferOverflow {
		return nil, err
	}
	vattrs, terr := s.vids.TranslateAdopting(key.Type, res)
	if terr != nil {
		return nil, terr
	}
	return vattrs, err
}

// switchFamily adds discovery of the default objects to create.
type switchFamily struct {
	genericFamily
}

func (f switchFamily) create(s *Syncd, key sai.ObjectKey, attrs []sai.Attribute) error {
	if err := f.genericFamily.create(s, key, attrs); err != nil {
		return err
	}
	return s.discoverDefaults(key.OID)
}

func (f switchFamily) remove(s *Syncd, key sai.ObjectKey) error {
	if err := f.genericFamily.remove(s, key); err != nil {
		return err
	}
	for _, o := range s.live.Objects() {
		if o.Origin == OriginClient {
			continue
		}
		if !o.Key.Type.IsEntry() {
			if err := s.vids.Unbind(o.Key.OID); err != nil {
				log.Warnf("remove switch: %v", err)
			}
		}
		s.live.Delete(o.Key)
		s.dropObject(o.Key)
	}
	return nil
}

// entryFamily covers FDB, neighbor and route entries.
type entryFamily struct{}

func (entryFamily) create(s *Syncd, key sai.ObjectKey, attrs []sai.Attribute) error {
	rkey, rattrs, err := s.toReal(key, attrs)
	if err != nil {
		return err
	}
	return s.backend.CreateEntry(rkey, rattrs)
}

func (entryFamily) remove(s *Syncd, key sai.ObjectKey) error {
	rkey, _, err := s.toReal(key, nil)
	if err != nil {
		return err
	}
	return s.backend.Remove(rkey)
}

func (entryFamily) set(s *Syncd, key sai.ObjectKey, attr sai.Attribute) error {
	return genericFamily{}.set(s, key, attr)
}

func (entryFamily) get(s *Syncd, key sai.ObjectKey, attrs []sai.Attribute) ([]sai.Attribute, error) {
	return genericFamily{}.get(s, key, attrs)
}

// hwGet reads attributes from the backend, growing list buffers that were
// too small.
func (s *Syncd) hwGet(rkey sai.ObjectKey, req []sai.Attribute) ([]sai.Attribute, error) {
	res, err := s.backend.Get(rkey, req)
	if sai.StatusOf(err) != sai.StatusBufferOverflow {
		return res, err
	}
	return s.backend.Get(rkey, res)
}

// snapshot reads every readable attribute of a real object and returns
// them in virtual space, adopting handles seen for the first time.
func (s *Syncd) snapshot(rkey sai.ObjectKey) ([]sai.Attribute, error) {
	var attrs []sai.Attribute
	for _, m := range s.md.Attrs(rkey.Type) {
		if m.Control() {
			continue
		}
		res, err := s.hwGet(rkey, []sai.Attribute{{ID: m.ID}})
		if errors.Is(err, sai.StatusItemNotFound) {
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("read %s: %w", m.Name, err)
		}
		attrs = append(attrs, res[0])
	}
	return s.vids.TranslateAdopting(rkey.Type, attrs)
}

var defaultObjectAttrs = []sai.AttrID{
	sai.SwitchAttrCPUPort,
	sai.SwitchAttrDefaultVirtualRouterID,
	sai.SwitchAttrDefaultSTPInstID,
}

// discoverDefaults adopts the objects the switch created on its own and
// adds them to the live view.
func (s *Syncd) discoverDefaults(switchVID sai.ObjectID) error {
	rid, err := s.vids.Real(switchVID)
	if err != nil {
		return err
	}
	rkey := sai.KeyOf(rid)
	req := []sai.Attribute{{ID: sai.SwitchAttrPortList}}
	for _, id := range defaultObjectAttrs {
		req = append(req, sai.Attribute{ID: id})
	}
	res, err := s.hwGet(rkey, req)
	if err != nil {
		return fmt.Errorf("discover defaults: %w", err)
	}
	rids := append([]sai.ObjectID(nil), res[0].Value.Objects.Items...)
	for _, a := range res[1:] {
		rids = append(rids, a.Value.OID)
	}
	for _, r := range rids {
		if r == sai.NullObjectID {
			continue
		}
		v, err := s.vids.VirtualOrAdopt(r)
		if err != nil {
			return err
		}
		attrs, err := s.snapshot(sai.KeyOf(r))
		if err != nil {
			return err
		}
		o := &Object{Key: sai.KeyOf(v), Attrs: attrs, Origin: OriginDefault}
		s.live.Put(o)
		s.saveObject(o)
	}
	log.Infof("discovered %d default objects", len(rids))
	return nil
}
