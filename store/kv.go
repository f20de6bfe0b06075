package store

import (
	"bytes"
	"sort"
	"sync"

	"github.com/cockroachdb/pebble"
)

// KV is the key-value surface used for identity tables, views and backend
// state.
type KV interface {
	// Get returns ErrNotFound for a missing key.
	Get(key []byte) ([]byte, error)
	Set(key, value []byte) error
	Delete(key []byte) error
	DeletePrefix(prefix []byte) error
	// Increment adds one to a counter stored at key and returns the new
	// value. Missing counters start at zero.
	Increment(key []byte) (int64, error)
	// Scan calls fn for every key with the prefix in key order.
	Scan(prefix []byte, fn func(key, value []byte) error) error
	// Batch applies all writes made by fn atomically.
	Batch(key []byte, fn func(w Writer) error) error
}

type Writer interface {
	Set(key, value []byte) error
	Delete(key []byte) error
}

var _ KV = (*Store)(nil)
var _ KV = (*Memory)(nil)

func (p *Store) Get(key []byte) ([]byte, error) {
	d, closer, err := p.db.Get(key)
	if err == pebble.ErrNotFound {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	defer closer.Close()
	return append([]byte(nil), d...), nil
}

func (p *Store) Set(key, value []byte) error {
	return p.Update(key, func() error {
		return p.db.Set(key, value, pebble.NoSync)
	})
}

func (p *Store) Delete(key []byte) error {
	return p.Update(key, func() error {
		return p.db.Delete(key, pebble.NoSync)
	})
}

func (p *Store) DeletePrefix(prefix []byte) error {
	return p.Update(prefix, func() error {
		end := prefixEnd(prefix)
		if end == nil {
			end = []byte{0xff, 0xff, 0xff, 0xff, 0xff, 0xff, 0xff, 0xff}
		}
		return p.db.DeleteRange(prefix, end, pebble.NoSync)
	})
}

func (p *Store) Increment(key []byte) (int64, error) {
	newSeq := int64(0)
	err := p.Update(key, func() error {
		seq, err := GetInt64(key, p.db)
		if err != nil {
			return err
		}
		if seq == nil {
			v := int64(0)
			seq = &v
		}
		*seq++
		newSeq = *seq
		return SetInt64(key, *seq, p.db)
	})
	return newSeq, err
}

func (p *Store) Scan(prefix []byte, fn func(key, value []byte) error) error {
	iter, err := p.db.NewIter(&pebble.IterOptions{
		LowerBound: prefix,
		UpperBound: prefixEnd(prefix),
	})
	if err != nil {
		return err
	}
	defer iter.Close()
	for iter.First(); iter.Valid(); iter.Next() {
		err := fn(iter.Key(), iter.Value())
		if err != nil {
			return err
		}
	}
	return iter.Error()
}

type batchWriter struct {
	b *pebble.Batch
}

func (w batchWriter) Set(key, value []byte) error {
	return w.b.Set(key, value, pebble.NoSync)
}

func (w batchWriter) Delete(key []byte) error {
	return w.b.Delete(key, pebble.NoSync)
}

// Batch serializes on key like every other update.
func (p *Store) Batch(key []byte, fn func(w Writer) error) error {
	return p.Update(key, func() error {
		b := p.db.NewBatch()
		defer b.Close()
		err := fn(batchWriter{b: b})
		if err != nil {
			return err
		}
		return b.Commit(pebble.NoSync)
	})
}

// Memory is an in-process KV for clients and tests.
type Memory struct {
	mu sync.Mutex
	m  map[string][]byte
}

func NewMemory() *Memory {
	return &Memory{m: map[string][]byte{}}
}

func (m *Memory) Get(key []byte) ([]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	v, ok := m.m[string(key)]
	if !ok {
		return nil, ErrNotFound
	}
	return append([]byte(nil), v...), nil
}

func (m *Memory) Set(key, value []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.m[string(key)] = append([]byte(nil), value...)
	return nil
}

func (m *Memory) Delete(key []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.m, string(key))
	return nil
}

func (m *Memory) DeletePrefix(prefix []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for k := range m.m {
		if bytes.HasPrefix([]byte(k), prefix) {
			delete(m.m, k)
		}
	}
	return nil
}

func (m *Memory) Increment(key []byte) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	v := int64(0)
	if d, ok := m.m[string(key)]; ok {
		v = ByteToInt64(d)
	}
	v++
	m.m[string(key)] = Int64ToByte(v)
	return v, nil
}

func (m *Memory) Scan(prefix []byte, fn func(key, value []byte) error) error {
	m.mu.Lock()
	keys := make([]string, 0)
	for k := range m.m {
		if bytes.HasPrefix([]byte(k), prefix) {
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)
	vals := make([][]byte, len(keys))
	for i, k := range keys {
		vals[i] = m.m[k]
	}
	m.mu.Unlock()

	for i, k := range keys {
		if err := fn([]byte(k), vals[i]); err != nil {
			return err
		}
	}
	return nil
}

type memWrite struct {
	key, value []byte
	del        bool
}

type memBatch struct {
	ops []memWrite
}

func (b *memBatch) Set(key, value []byte) error {
	b.ops = append(b.ops, memWrite{key: key, value: append([]byte(nil), value...)})
	return nil
}

func (b *memBatch) Delete(key []byte) error {
	b.ops = append(b.ops, memWrite{key: key, del: true})
	return nil
}

func (m *Memory) Batch(_ []byte, fn func(w Writer) error) error {
	var b memBatch
	if err := fn(&b); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, op := range b.ops {
		if op.del {
			delete(m.m, string(op.key))
			continue
		}
		m.m[string(op.key)] = op.value
	}
	return nil
}
