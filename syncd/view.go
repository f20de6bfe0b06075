package syncd

import (
	"fmt"
	"sort"

	log "github.com/sirupsen/logrus"

	"sairedis/codec"
	"sairedis/sai"
	"sairedis/store"
	"sairedis/vid"
)

// Origin tells who created an object in a view.
type Origin int

const (
	// OriginClient objects were created by a client call.
	OriginClient Origin = iota
	// OriginDefault objects were created by the switch itself.
	OriginDefault
	// OriginLearned objects were learned by the data plane.
	OriginLearned
)

func (o Origin) String() string {
	switch o {
	case OriginClient:
		return "client"
	case OriginDefault:
		return "default"
	case OriginLearned:
		return "learned"
	}
	return fmt.Sprintf("origin(%d)", int(o))
}

// Object is one node of the object graph. Handles are virtual.
type Object struct {
	Key    sai.ObjectKey
	Attrs  []sai.Attribute
	Origin Origin
}

func (o *Object) clone() *Object {
	return &Object{Key: o.Key, Attrs: sai.CloneAttributes(o.Attrs), Origin: o.Origin}
}

// View is a snapshot of the object graph: the live view mirrors the
// switch, a temp view collects the configuration being built.
type View struct {
	objects map[sai.ObjectKey]*Object
}

func newView() *View {
	return &View{objects: map[sai.ObjectKey]*Object{}}
}

func (v *View) Get(k sai.ObjectKey) (*Object, bool) {
	o, ok := v.objects[k]
	return o, ok
}

func (v *View) Put(o *Object) {
	v.objects[o.Key] = o
}

func (v *View) Delete(k sai.ObjectKey) {
	delete(v.objects, k)
}

func (v *View) Len() int {
	return len(v.objects)
}

// Objects returns every object ordered by encoded key.
func (v *View) Objects() []*Object {
	res := make([]*Object, 0, len(v.objects))
	for _, o := range v.objects {
		res = append(res, o)
	}
	sort.Slice(res, func(i, j int) bool {
		return codec.EncodeKey(res[i].Key) < codec.EncodeKey(res[j].Key)
	})
	return res
}

// usedBy returns an object of v that references id. References held by
// the switch object do not count.
func (v *View) usedBy(md sai.Metadata, id sai.ObjectID) (sai.ObjectKey, bool) {
	for _, o := range v.Objects() {
		if o.Key.Type == sai.ObjectTypeSwitch {
			continue
		}
		refs, err := vid.Refs(md, o.Key, o.Attrs)
		if err != nil {
			continue
		}
		for _, r := range refs {
			if r == id {
				return o.Key, true
			}
		}
	}
	return sai.ObjectKey{}, false
}

// missingRef returns the first handle referenced by key and attrs that is
// not an object of v.
func (v *View) missingRef(md sai.Metadata, key sai.ObjectKey, attrs []sai.Attribute) (sai.ObjectID, error) {
	refs, err := vid.Refs(md, key, attrs)
	if err != nil {
		return sai.NullObjectID, err
	}
	for _, r := range refs {
		if _, ok := v.objects[sai.KeyOf(r)]; !ok {
			return r, nil
		}
	}
	return sai.NullObjectID, nil
}

// order returns the objects of v so that every object comes after the
// objects it references. Ties are broken by encoded key.
func (v *View) order(md sai.Metadata) []*Object {
	objs := v.Objects()
	idx := make(map[sai.ObjectKey]int, len(objs))
	for i, o := range objs {
		idx[o.Key] = i
	}
	users := make([][]int, len(objs))
	indeg := make([]int, len(objs))
	for i, o := range objs {
		refs, err := vid.Refs(md, o.Key, o.Attrs)
		if err != nil {
			log.Warnf("order %s: %v", codec.EncodeKey(o.Key), err)
			continue
		}
		seen := map[int]bool{}
		for _, r := range refs {
			j, ok := idx[sai.KeyOf(r)]
			if !ok || j == i || seen[j] {
				continue
			}
			seen[j] = true
			indeg[i]++
			users[j] = append(users[j], i)
		}
	}
	var ready []int
	for i := range objs {
		if indeg[i] == 0 {
			ready = append(ready, i)
		}
	}
	res := make([]*Object, 0, len(objs))
	done := make([]bool, len(objs))
	for len(ready) > 0 {
		sort.Ints(ready)
		i := ready[0]
		ready = ready[1:]
		res = append(res, objs[i])
		done[i] = true
		for _, u := range users[i] {
			indeg[u]--
			if indeg[u] == 0 {
				ready = append(ready, u)
			}
		}
	}
	if len(res) < len(objs) {
		log.Warnf("reference cycle among %d objects", len(objs)-len(res))
		for i, o := range objs {
			if !done[i] {
				res = append(res, o)
			}
		}
	}
	return res
}

func viewKey(k sai.ObjectKey) []byte {
	return store.CompID1(store.ViewPrefix, codec.EncodeKey(k))
}

// saveObject persists one live object. Persistence failures are logged:
// the switch already changed and the call cannot be undone.
func (s *Syncd) saveObject(o *Object) {
	fields, err := s.codec.EncodeAttributes(o.Key.Type, o.Attrs, false)
	if err == nil {
		rec := store.ObjectRecord{Key: codec.EncodeKey(o.Key), Origin: int(o.Origin), Fields: fields}
		var d []byte
		d, err = rec.MarshalMsg(nil)
		if err == nil {
			err = s.kv.Set(viewKey(o.Key), d)
		}
	}
	if err != nil {
		log.Errorf("persist %s: %v", codec.EncodeKey(o.Key), err)
	}
}

func (s *Syncd) dropObject(k sai.ObjectKey) {
	if err := s.kv.Delete(viewKey(k)); err != nil {
		log.Errorf("persist remove %s: %v", codec.EncodeKey(k), err)
	}
}

// saveLive replaces the persisted live view.
func (s *Syncd) saveLive() {
	if err := s.kv.DeletePrefix([]byte{store.ViewPrefix}); err != nil {
		log.Errorf("persist live view: %v", err)
		return
	}
	for _, o := range s.live.Objects() {
		s.saveObject(o)
	}
}

func (s *Syncd) loadLive() (*View, error) {
	v := newView()
	err := s.kv.Scan([]byte{store.ViewPrefix}, func(_, d []byte) error {
		var rec store.ObjectRecord
		if _, err := rec.UnmarshalMsg(d); err != nil {
			return err
		}
		k, err := codec.DecodeKey(rec.Key)
		if err != nil {
			return err
		}
		attrs, err := s.codec.DecodeAttributes(k.Type, rec.Fields)
		if err != nil {
			return fmt.Errorf("%s: %w", rec.Key, err)
		}
		v.Put(&Object{Key: k, Attrs: attrs, Origin: Origin(rec.Origin)})
		return nil
	})
	return v, err
}
