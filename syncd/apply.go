package syncd

import (
	log "github.com/sirupsen/logrus"

	"sairedis/codec"
	"sairedis/sai"
	"sairedis/vid"
)

// applyView makes the switch match the temp view with the fewest calls:
//
//  1. every temp object is matched to a live object it can become;
//  2. matched live objects take the handles the client knows from the
//     temp view;
//  3. temp-only objects are created, changed attributes are set, and
//     client objects missing from the temp view are removed.
//
// The first failing call stops the apply and is returned as an
// *sai.ApplyError. Calls made before it stay applied.
func (s *Syncd) applyView() error {
	if s.temp == nil {
		log.Error("APPLY_VIEW without INIT_VIEW")
		return sai.StatusFailure
	}
	temp := s.temp
	s.temp = nil
	defer s.saveLive()

	match := s.match(temp)
	if err := s.rename(match); err != nil {
		return err
	}
	creates, sets, removes := 0, 0, 0
	order := temp.order(s.md)
	for _, o := range order {
		if _, ok := s.live.Get(o.Key); ok {
			continue
		}
		if err := s.families[o.Key.Type].create(s, o.Key, o.Attrs); err != nil {
			return applyError(sai.OpCreate, o.Key, err)
		}
		s.live.Put(o.clone())
		creates++
	}
	for _, o := range order {
		lo, ok := s.live.Get(o.Key)
		if !ok {
			continue
		}
		for _, a := range o.Attrs {
			m, ok := s.md.Attr(o.Key.Type, a.ID)
			if !ok || m.ReadOnly() || m.Control() {
				continue
			}
			if cur, ok := sai.FindAttribute(lo.Attrs, a.ID); ok && sameValue(m, cur.Value, a.Value) {
				continue
			}
			if m.CreateOnly() {
				log.Warnf("APPLY_VIEW: %s %s differs but is create only, keeping", codec.EncodeKey(o.Key), m.Name)
				continue
			}
			if err := s.families[o.Key.Type].set(s, o.Key, a); err != nil {
				return applyError(sai.OpSet, o.Key, err)
			}
			lo.Attrs = putAttr(lo.Attrs, sai.Attribute{ID: a.ID, Value: a.Value.Clone()})
			sets++
		}
		for _, a := range lo.Attrs {
			if _, ok := sai.FindAttribute(o.Attrs, a.ID); !ok && lo.Origin == OriginClient {
				log.Debugf("APPLY_VIEW: %s attr 0x%x only set on switch, not reverted", codec.EncodeKey(o.Key), uint32(a.ID))
			}
		}
	}
	live := s.live.order(s.md)
	for i := len(live) - 1; i >= 0; i-- {
		o := live[i]
		if o.Origin != OriginClient {
			continue
		}
		if _, ok := temp.Get(o.Key); ok {
			continue
		}
		if err := s.families[o.Key.Type].remove(s, o.Key); err != nil {
			return applyError(sai.OpRemove, o.Key, err)
		}
		s.live.Delete(o.Key)
		removes++
	}
	log.Infof("APPLY_VIEW: %d matched, %d created, %d set, %d removed", len(match), creates, sets, removes)
	return nil
}

func applyError(op string, key sai.ObjectKey, err error) error {
	log.Errorf("APPLY_VIEW: %s %s failed: %v", op, codec.EncodeKey(key), err)
	return &sai.ApplyError{Op: op, Key: codec.EncodeKey(key), Status: sai.StatusOf(err)}
}

func sameValue(m *sai.AttrMetadata, a, b sai.Value) bool {
	return codec.EncodeValue(m.ValueType, a, false) == codec.EncodeValue(m.ValueType, b, false)
}

// match pairs temp handle objects with live objects. Objects are visited
// in dependency order so references are compared through the pairs
// already made. The result maps temp handles to live handles.
func (s *Syncd) match(temp *View) map[sai.ObjectID]sai.ObjectID {
	match := map[sai.ObjectID]sai.ObjectID{}
	taken := map[sai.ObjectID]bool{}
	through := func(id sai.ObjectID) (sai.ObjectID, error) {
		if l, ok := match[id]; ok {
			return l, nil
		}
		return id, nil
	}
	for _, o := range temp.order(s.md) {
		if o.Key.Type.IsEntry() {
			continue
		}
		if _, ok := s.live.Get(o.Key); ok {
			match[o.Key.OID] = o.Key.OID
			taken[o.Key.OID] = true
			continue
		}
		attrs, err := vid.Rewrite(s.md, o.Key.Type, o.Attrs, through)
		if err != nil {
			log.Warnf("match %s: %v", codec.EncodeKey(o.Key), err)
			continue
		}
		best, bestScore := sai.NullObjectID, -1
		for _, lo := range s.live.Objects() {
			if lo.Key.Type != o.Key.Type || lo.Origin != OriginClient || taken[lo.Key.OID] {
				continue
			}
			if _, inTemp := temp.Get(lo.Key); inTemp {
				continue
			}
			score, ok := s.score(o.Key.Type, attrs, lo.Attrs)
			if ok && (score > bestScore || score == bestScore && lo.Key.OID < best) {
				best, bestScore = lo.Key.OID, score
			}
		}
		if best != sai.NullObjectID {
			match[o.Key.OID] = best
			taken[best] = true
			log.Debugf("matched %s to live %s", o.Key.OID, best)
		}
	}
	return match
}

// score counts the attributes a temp object shares with a live one. A live
// object is a candidate only if its create only attributes are equal and
// every attribute it has is also set in the temp object.
func (s *Syncd) score(t sai.ObjectType, temp, live []sai.Attribute) (int, bool) {
	n := 0
	for _, la := range live {
		m, ok := s.md.Attr(t, la.ID)
		if !ok || m.ReadOnly() {
			continue
		}
		ta, ok := sai.FindAttribute(temp, la.ID)
		if !ok {
			return 0, false
		}
		if sameValue(m, ta.Value, la.Value) {
			n++
		} else if m.CreateOnly() {
			return 0, false
		}
	}
	for _, ta := range temp {
		m, ok := s.md.Attr(t, ta.ID)
		if !ok || !m.CreateOnly() {
			continue
		}
		if _, ok := sai.FindAttribute(live, ta.ID); !ok {
			return 0, false
		}
	}
	return n, true
}

// rename moves matched live objects to the temp handles. Identity
// bindings follow, so the switch objects keep their real handles.
func (s *Syncd) rename(match map[sai.ObjectID]sai.ObjectID) error {
	ren := map[sai.ObjectID]sai.ObjectID{}
	for t, l := range match {
		if t != l {
			ren[l] = t
		}
	}
	if len(ren) == 0 {
		return nil
	}
	rids := map[sai.ObjectID]sai.ObjectID{}
	for l := range ren {
		rid, err := s.vids.Real(l)
		if err != nil {
			return desync(err)
		}
		rids[l] = rid
		if err := s.vids.Unbind(l); err != nil {
			return err
		}
	}
	for l, t := range ren {
		if err := s.vids.Bind(t, rids[l]); err != nil {
			return err
		}
	}
	fn := func(id sai.ObjectID) (sai.ObjectID, error) {
		if t, ok := ren[id]; ok {
			return t, nil
		}
		return id, nil
	}
	live := newView()
	for _, o := range s.live.objects {
		key, err := vid.RewriteKey(o.Key, fn)
		if err != nil {
			return err
		}
		attrs, err := vid.Rewrite(s.md, o.Key.Type, o.Attrs, fn)
		if err != nil {
			return err
		}
		live.Put(&Object{Key: key, Attrs: attrs, Origin: o.Origin})
	}
	s.live = live
	log.Infof("APPLY_VIEW: %d live objects take temp handles", len(ren))
	return nil
}
