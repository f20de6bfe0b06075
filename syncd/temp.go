package syncd

import (
	"fmt"

	log "github.com/sirupsen/logrus"

	"sairedis/codec"
	"sairedis/sai"
)

// initView starts collecting a new configuration. The temp view starts
// with the objects the client cannot create: the switch and its defaults.
func (s *Syncd) initView() {
	if s.temp != nil {
		log.Warn("INIT_VIEW while a view is pending, discarding it")
	}
	s.temp = newView()
	for _, o := range s.live.objects {
		if o.Origin == OriginDefault || o.Key.Type == sai.ObjectTypeSwitch {
			s.temp.Put(o.clone())
		}
	}
	log.Infof("INIT_VIEW: temp view starts with %d objects", s.temp.Len())
}

func (s *Syncd) createTemp(key sai.ObjectKey, attrs []sai.Attribute) ([]sai.FieldValue, error) {
	if !key.Type.Valid() {
		return nil, fmt.Errorf("create %s: %w", key.Type, sai.StatusInvalidObjectType)
	}
	if key.Type == sai.ObjectTypeSwitch {
		sw, ok := s.liveSwitch()
		if !ok {
			// nothing to diff against: the switch is created right away
			res, err := s.createLive(key, attrs)
			if err != nil {
				return nil, err
			}
			s.initView()
			return res, nil
		}
		return createResponse(sw.Key), nil
	}
	for _, a := range attrs {
		if m, ok := s.md.Attr(key.Type, a.ID); ok && m.ReadOnly() {
			return nil, fmt.Errorf("%s is read only: %w", m.Name, sai.StatusInvalidParameter)
		}
	}
	if key.Type.IsEntry() {
		if _, ok := s.temp.Get(key); ok {
			return nil, fmt.Errorf("create %s: %w", codec.EncodeKey(key), sai.StatusItemAlreadyExists)
		}
	} else {
		v, err := s.vids.Allocate(key.Type)
		if err != nil {
			return nil, err
		}
		key = sai.KeyOf(v)
	}
	missing, err := s.temp.missingRef(s.md, key, attrs)
	if err != nil {
		return nil, err
	}
	if missing != sai.NullObjectID {
		return nil, fmt.Errorf("create %s: %s does not exist: %w", codec.EncodeKey(key), missing, sai.StatusInvalidObjectID)
	}
	s.temp.Put(&Object{Key: key, Attrs: sai.CloneAttributes(attrs), Origin: OriginClient})
	return createResponse(key), nil
}

func (s *Syncd) removeTemp(key sai.ObjectKey) error {
	o, ok := s.temp.Get(key)
	if !ok {
		return fmt.Errorf("remove %s: %w", codec.EncodeKey(key), sai.StatusItemNotFound)
	}
	if key.Type == sai.ObjectTypeSwitch {
		return fmt.Errorf("remove switch in temp view: %w", sai.StatusNotSupported)
	}
	if err := s.removable(s.temp, o); err != nil {
		return err
	}
	s.temp.Delete(key)
	return nil
}

func (s *Syncd) setTemp(key sai.ObjectKey, a sai.Attribute) error {
	o, ok := s.temp.Get(key)
	if !ok {
		return fmt.Errorf("set %s: %w", codec.EncodeKey(key), sai.StatusItemNotFound)
	}
	m, _ := s.md.Attr(key.Type, a.ID)
	if m.ReadOnly() || m.CreateOnly() {
		return fmt.Errorf("%s is not settable: %w", m.Name, sai.StatusInvalidParameter)
	}
	missing, err := s.temp.missingRef(s.md, sai.ObjectKey{Type: key.Type}, []sai.Attribute{a})
	if err != nil {
		return err
	}
	if missing != sai.NullObjectID {
		return fmt.Errorf("set %s: %s does not exist: %w", codec.EncodeKey(key), missing, sai.StatusInvalidObjectID)
	}
	o.Attrs = putAttr(o.Attrs, sai.Attribute{ID: a.ID, Value: a.Value.Clone()})
	return nil
}

// getTemp reads from the switch when the object exists there and answers
// from the temp view otherwise.
func (s *Syncd) getTemp(key sai.ObjectKey, attrs []sai.Attribute) ([]sai.Attribute, error) {
	onSwitch := false
	if key.Type.IsEntry() {
		_, onSwitch = s.live.Get(key)
	} else if _, err := s.vids.Real(key.OID); err == nil {
		onSwitch = true
	}
	if onSwitch {
		return s.families[key.Type].get(s, key, attrs)
	}
	o, ok := s.temp.Get(key)
	if !ok {
		return nil, fmt.Errorf("get %s: %w", codec.EncodeKey(key), sai.StatusItemNotFound)
	}
	res := sai.CloneAttributes(attrs)
	return res, sai.Fill(s.md, key.Type, res, o.Attrs)
}
