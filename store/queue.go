package store

import (
	"context"

	"github.com/cockroachdb/pebble"
)

// Queue is a durable FIFO queue. All messages are processed sequentially;
// a message popped once is never delivered again.
type Queue struct {
	s    *Store
	name string
}

func (p *Store) Queue(name string) *Queue {
	return &Queue{s: p, name: name}
}

func (q *Queue) Name() string {
	return q.name
}

func (q *Queue) metaKey() []byte {
	return CompID1(QueueMetaPrefix, q.name)
}

func (q *Queue) ntfKey() string {
	return "q/" + q.name
}

func readMeta(g Getter, key []byte) (QueueMeta, error) {
	d, closer, err := g.Get(key)
	if err == pebble.ErrNotFound {
		return QueueMeta{Front: 1, Back: 0}, nil
	}
	if err != nil {
		return QueueMeta{}, err
	}
	defer closer.Close()
	var m QueueMeta
	_, err = m.UnmarshalMsg(d)
	return m, err
}

// Push appends msg to the back of the queue and wakes up blocked readers.
func (q *Queue) Push(ctx context.Context, msg []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	mk := q.metaKey()
	back := int64(0)
	err := q.s.Update(mk, func() error {
		m, err := readMeta(q.s.db, mk)
		if err != nil {
			return err
		}
		m.Back++
		back = m.Back
		b := q.s.db.NewBatch()
		defer b.Close()
		err = b.Set(compIDSeq(QueueMsgPrefix, q.name, m.Back), msg, pebble.NoSync)
		if err != nil {
			return err
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
	q.s.ntf.NotifyVersion(q.ntfKey(), back)
	return nil
}

// Pop removes and returns the front message, blocking until one is
// available or ctx is done.
func (q *Queue) Pop(ctx context.Context) ([]byte, error) {
	for {
		q.s.ntf.Attach(q.ntfKey())
		msg, back, err := q.tryPop()
		if err != nil || msg != nil {
			q.s.ntf.Detach(q.ntfKey())
			return msg, err
		}
		if _, err := q.s.ntf.Listen(ctx, q.ntfKey(), back); err != nil {
			return nil, err
		}
	}
}

// tryPop returns nil when the queue is empty, together with the back
// position it observed.
func (q *Queue) tryPop() ([]byte, int64, error) {
	mk := q.metaKey()
	m, err := readMeta(q.s.db, mk)
	if err != nil {
		return nil, 0, err
	}
	if m.Front > m.Back {
		return nil, m.Back, nil
	}

	var msg []byte
	err = q.s.Update(mk, func() error {
		m, err = readMeta(q.s.db, mk)
		if err != nil {
			return err
		}
		if m.Front > m.Back { // someone else took it
			return nil
		}
		k := compIDSeq(QueueMsgPrefix, q.name, m.Front)
		d, closer, err := q.s.db.Get(k)
		if err != nil {
			return err
		}
		msg = append([]byte{}, d...)
		closer.Close()

		m.Front++
		b := q.s.db.NewBatch()
		defer b.Close()
		err = b.Delete(k, pebble.NoSync)
		if err != nil {
			return err
		}
		d, err = m.MarshalMsg(nil)
		if err != nil {
			return err
		}
		err = b.Set(mk, d, pebble.NoSync)
		if err != nil {
			return err
		}
		return b.Commit(pebble.NoSync)
	})
	return msg, m.Back, err
}

// TryPop is Pop that returns nil instead of waiting on an empty queue.
func (q *Queue) TryPop() ([]byte, error) {
	msg, _, err := q.tryPop()
	return msg, err
}

// Len returns the number of queued messages.
func (q *Queue) Len() (int64, error) {
	m, err := readMeta(q.s.db, q.metaKey())
	if err != nil {
		return 0, err
	}
	return m.Back - m.Front + 1, nil
}
