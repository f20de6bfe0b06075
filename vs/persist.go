package vs

import (
	"fmt"

	log "github.com/sirupsen/logrus"
	"github.com/tinylib/msgp/msgp"

	"sairedis/codec"
	"sairedis/sai"
	"sairedis/store"
)

func objectKey(k sai.ObjectKey) []byte {
	return store.CompID1(store.BackendPrefix, codec.EncodeKey(k))
}

// persist writes the current attributes of k. Called with the lock held.
func (s *Switch) persist(k sai.ObjectKey) error {
	if s.kv == nil {
		return nil
	}
	fields, err := s.codec.EncodeAttributes(k.Type, s.objects[k], false)
	if err != nil {
		return err
	}
	rec := store.ObjectRecord{Key: codec.EncodeKey(k), Fields: fields}
	d, err := rec.MarshalMsg(nil)
	if err != nil {
		return err
	}
	return s.kv.Set(objectKey(k), d)
}

func (s *Switch) unpersist(k sai.ObjectKey) error {
	if s.kv == nil {
		return nil
	}
	return s.kv.Delete(objectKey(k))
}

// Load restores objects saved by a previous run. Counters live in the
// store and continue where they stopped.
func (s *Switch) Load() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.kv == nil {
		return nil
	}
	objects := map[sai.ObjectKey][]sai.Attribute{}
	switchID := sai.NullObjectID
	err := s.kv.Scan([]byte{store.BackendPrefix}, func(_, d []byte) error {
		var rec store.ObjectRecord
		if _, err := rec.UnmarshalMsg(d); err != nil {
			return fmt.Errorf("decode object: %w", msgp.Cause(err))
		}
		k, err := codec.DecodeKey(rec.Key)
		if err != nil {
			return err
		}
		attrs, err := s.codec.DecodeAttributes(k.Type, rec.Fields)
		if err != nil {
			return fmt.Errorf("decode %s: %w", rec.Key, err)
		}
		objects[k] = attrs
		if k.Type == sai.ObjectTypeSwitch {
			switchID = k.OID
		}
		return nil
	})
	if err != nil {
		return err
	}
	s.objects = objects
	s.switchID = switchID
	log.Infof("vs: restored %d objects", len(objects))
	return nil
}

// Reset drops every object and counter, like a hardware reset.
func (s *Switch) Reset() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.counters = map[sai.ObjectType]uint64{}
	if s.kv != nil {
		if err := s.kv.DeletePrefix([]byte{store.BackendCntPrefix}); err != nil {
			return err
		}
	}
	return s.reset()
}

// reset drops every object but keeps counters, so handles of a removed
// switch are not reissued. Called with the lock held.
func (s *Switch) reset() error {
	s.objects = map[sai.ObjectKey][]sai.Attribute{}
	s.switchID = sai.NullObjectID
	if s.kv == nil {
		return nil
	}
	return s.kv.DeletePrefix([]byte{store.BackendPrefix})
}
