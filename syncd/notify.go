package syncd

import (
	"context"

	log "github.com/sirupsen/logrus"

	"sairedis/codec"
	"sairedis/sai"
)

// RunNotifications forwards switch events until ctx is done or ch is
// closed. Handles are translated to virtual space and FDB events are
// merged into the live view under the same lock as commands.
func (s *Syncd) RunNotifications(ctx context.Context, ch <-chan sai.Notification) error {
	for {
		select {
		case <-ctx.Done():
			return nil
		case n, ok := <-ch:
			if !ok {
				return nil
			}
			if err := s.forward(ctx, n); err != nil {
				if ctx.Err() != nil {
					return nil
				}
				log.Errorf("notification %s: %v", n.NotificationName(), err)
			}
		}
	}
}

func (s *Syncd) forward(ctx context.Context, n sai.Notification) error {
	rec, err := s.translate(n)
	if err != nil {
		return err
	}
	if s.pub == nil {
		return nil
	}
	d, err := rec.MarshalMsg(nil)
	if err != nil {
		return err
	}
	return s.pub.Publish(ctx, d)
}

func (s *Syncd) translate(n sai.Notification) (sai.Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	vn, err := s.vids.TranslateNotification(n)
	if err != nil {
		return sai.Record{}, err
	}
	if ev, ok := vn.(sai.FDBEvents); ok {
		s.mergeFDB(ev)
	}
	name, payload, err := s.codec.EncodeNotification(vn)
	if err != nil {
		return sai.Record{}, err
	}
	if s.recording {
		s.rec.Record('n', name, []sai.FieldValue{{Field: "payload", Value: payload}})
	}
	return sai.Record{Op: name, Key: payload}, nil
}

// mergeFDB applies learn and age events to the live view. Entries the
// client created are left alone.
func (s *Syncd) mergeFDB(events sai.FDBEvents) {
	for _, e := range events {
		key := sai.FDBKey(e.Entry)
		cur, exists := s.live.Get(key)
		if exists && cur.Origin != OriginLearned {
			continue
		}
		switch e.Type {
		case sai.FDBEventLearned, sai.FDBEventMove:
			o := &Object{Key: key, Attrs: sai.CloneAttributes(e.Attrs), Origin: OriginLearned}
			s.live.Put(o)
			s.saveObject(o)
		case sai.FDBEventAged, sai.FDBEventFlushed:
			if exists {
				s.live.Delete(key)
				s.dropObject(key)
			}
		}
		log.Debugf("fdb %s %s", e.Type, codec.EncodeKey(key))
	}
}
