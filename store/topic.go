package store

import (
	"context"

	"github.com/cockroachdb/pebble"
	log "github.com/sirupsen/logrus"
)

// Message is one published notification with its sequence number.
type Message struct {
	Seq  int64
	Data []byte
}

// Topic is a bounded notification log. Publishers append, subscribers read
// from any retained position; the oldest entries are dropped once more
// than retain messages are kept.
type Topic struct {
	s      *Store
	name   string
	retain int64
}

func (p *Store) Topic(name string, retain int64) *Topic {
	if retain <= 0 {
		retain = 1
	}
	return &Topic{s: p, name: name, retain: retain}
}

func (t *Topic) metaKey() []byte {
	return CompID1(TopicMetaPrefix, t.name)
}

func (t *Topic) ntfKey() string {
	return "t/" + t.name
}

func (t *Topic) Publish(ctx context.Context, msg []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	mk := t.metaKey()
	back := int64(0)
	err := t.s.Update(mk, func() error {
		m, err := readMeta(t.s.db, mk)
		if err != nil {
			return err
		}
		b := t.s.db.NewBatch()
		defer b.Close()
		m.Back++
		back = m.Back
		err = b.Set(compIDSeq(TopicMsgPrefix, t.name, m.Back), msg, pebble.NoSync)
		if err != nil {
			return err
		}
		for m.Back-m.Front+1 > t.retain {
			err = b.Delete(compIDSeq(TopicMsgPrefix, t.name, m.Front), pebble.NoSync)
			if err != nil {
				return err
			}
			m.Front++
		}
		d, err := m.MarshalMsg(nil)
		if err != nil {
			return err
		}
		err = b.Set(mk, d, pebble.NoSync)
		if err != nil {
			return err
		}
		return b.Commit(pebble.NoSync)
	})
	if err != nil {
		return err
	}
	t.s.ntf.NotifyVersion(t.ntfKey(), back)
	return nil
}

// Latest returns the sequence number the next published message will get.
func (t *Topic) Latest() (int64, error) {
	m, err := readMeta(t.s.db, t.metaKey())
	if err != nil {
		return 0, err
	}
	return m.Back + 1, nil
}

// Read returns up to max retained messages starting at from, the position
// to continue from and the back position observed.
func (t *Topic) Read(from int64, max int) ([]Message, int64, int64, error) {
	m, err := readMeta(t.s.db, t.metaKey())
	if err != nil {
		return nil, from, 0, err
	}
	if from <= 0 {
		return nil, m.Back + 1, m.Back, nil
	}
	if from < m.Front {
		log.Warnf("topic %s: subscriber lagged, %d messages dropped", t.name, m.Front-from)
		from = m.Front
	}
	var res []Message
	for seq := from; seq <= m.Back && len(res) < max; seq++ {
		d, closer, err := t.s.db.Get(compIDSeq(TopicMsgPrefix, t.name, seq))
		if err == pebble.ErrNotFound { // trimmed concurrently
			continue
		}
		if err != nil {
			return nil, from, m.Back, err
		}
		res = append(res, Message{Seq: seq, Data: append([]byte{}, d...)})
		closer.Close()
	}
	next := from
	if len(res) > 0 {
		next = res[len(res)-1].Seq + 1
	}
	return res, next, m.Back, nil
}

// Wait is Read that blocks until at least one message is available.
func (t *Topic) Wait(ctx context.Context, from int64, max int) ([]Message, int64, error) {
	for {
		t.s.ntf.Attach(t.ntfKey())
		msgs, next, back, err := t.Read(from, max)
		if err != nil || len(msgs) > 0 {
			t.s.ntf.Detach(t.ntfKey())
			return msgs, next, err
		}
		from = next
		if _, err := t.s.ntf.Listen(ctx, t.ntfKey(), back); err != nil {
			return nil, from, err
		}
	}
}

// Subscribe starts reading at from; from <= 0 means only messages
// published from now on.
func (t *Topic) Subscribe(from int64) *Subscription {
	if from <= 0 {
		if latest, err := t.Latest(); err == nil {
			from = latest
		}
	}
	return &Subscription{t: t, from: from}
}

type Subscription struct {
	t    *Topic
	from int64
	buf  []Message
}

// Next returns the next message, blocking until one is published.
func (s *Subscription) Next(ctx context.Context) ([]byte, error) {
	for len(s.buf) == 0 {
		msgs, next, err := s.t.Wait(ctx, s.from, 64)
		s.from = next
		if err != nil {
			return nil, err
		}
		s.buf = msgs
	}
	m := s.buf[0]
	s.buf = s.buf[1:]
	return m.Data, nil
}
