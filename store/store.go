// Package store keeps the daemon's durable state in pebble: the identity
// tables, the persisted views, the command and response queues and the
// notification log.
//
// Writes go through Update, which serializes updates of one key and blocks
// until a group commit made them durable. Many updates share a single WAL
// sync:
//
//	update A  |U________^|
//	update B     |U_____^|
//	update C       |U___^|
//	flush loop          ^ one sync for A, B and C
package store

import (
	"context"
	"hash/fnv"
	"sync"
	"time"

	"github.com/cockroachdb/pebble"
	log "github.com/sirupsen/logrus"
)

const (
	lockShards = 100
	// idleFlush is how long the flush loop sleeps when nothing is pending.
	idleFlush = 5 * time.Millisecond
)

// commitGroup is the set of updates waiting for the same WAL sync.
type commitGroup struct {
	done chan struct{}
	err  error
	size int
}

func newCommitGroup() *commitGroup {
	return &commitGroup{done: make(chan struct{})}
}

type Store struct {
	db    *pebble.DB
	locks [lockShards]keyLocks
	ntf   *notifier

	mu      sync.Mutex
	group   *commitGroup
	stopped bool
	// inflight counts updates between admission and commit
	inflight int
}

// Open opens (or creates) a pebble database at path.
func Open(path string, opts *pebble.Options) (*Store, error) {
	db, err := pebble.Open(path, opts)
	if err != nil {
		return nil, err
	}
	return New(db), nil
}

func New(db *pebble.DB) *Store {
	s := &Store{
		db:    db,
		ntf:   newNotifier(),
		group: newCommitGroup(),
	}
	for i := range s.locks {
		s.locks[i].held = map[uint64]*keyLock{}
	}
	return s
}

// Close closes the database. FlushLoop must have returned.
func (p *Store) Close() error {
	return p.db.Close()
}

// commit syncs the WAL for the current group and releases its waiters. It
// returns how many updates were still in flight when the group was cut.
func (p *Store) commit() int {
	p.mu.Lock()
	g := p.group
	inflight := p.inflight
	p.group = newCommitGroup()
	p.mu.Unlock()

	if g.size > 0 {
		// a synced marker record makes every earlier write durable, since
		// the WAL is written in order
		if err := p.db.LogData([]byte("f"), pebble.Sync); err != nil {
			log.Errorf("store: wal sync: %v", err)
			g.err = err
		}
	}
	close(g.done)
	return inflight
}

// FlushLoop makes pending updates durable until ctx is done. Update blocks
// until the loop commits it, so the loop must run while the store is used.
// On cancel new updates fail with ErrStopped and the loop drains the ones
// already admitted.
func (p *Store) FlushLoop(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			p.mu.Lock()
			p.stopped = true
			p.mu.Unlock()
			for p.commit() > 0 {
			}
			return nil
		default:
		}
		if p.commit() == 0 {
			select {
			case <-ctx.Done():
			case <-time.After(idleFlush):
			}
		}
	}
}

// UpdateFunc writes the data that belongs to the key it was called for.
type UpdateFunc func() error

// Update runs f while no other update of key is running and returns after
// the write is durable.
func (p *Store) Update(key []byte, f UpdateFunc) error {
	p.mu.Lock()
	if p.stopped {
		p.mu.Unlock()
		return ErrStopped
	}
	p.inflight++
	p.mu.Unlock()

	err := p.locked(key, f)

	p.mu.Lock()
	g := p.group
	if err == nil {
		g.size++
	}
	p.inflight--
	p.mu.Unlock()
	if err != nil {
		return err
	}
	<-g.done
	return g.err
}

// locked runs f holding the lock of key. Unrelated keys may share a shard
// and then wait for each other, which is harmless.
func (p *Store) locked(key []byte, f UpdateFunc) error {
	h := fnv.New64a()
	h.Write(key)
	id := h.Sum64()
	shard := &p.locks[id%lockShards]
	shard.lock(id)
	defer shard.unlock(id)
	return f()
}

// keyLocks hands out one mutex per key hash, created on demand and freed
// when the last holder or waiter leaves.
type keyLocks struct {
	mu   sync.Mutex
	held map[uint64]*keyLock
}

type keyLock struct {
	sync.Mutex
	refs int
}

func (k *keyLocks) lock(id uint64) {
	k.mu.Lock()
	l, ok := k.held[id]
	if !ok {
		l = &keyLock{}
		k.held[id] = l
	}
	l.refs++
	k.mu.Unlock()
	l.Lock()
}

func (k *keyLocks) unlock(id uint64) {
	k.mu.Lock()
	l := k.held[id]
	l.refs--
	if l.refs == 0 {
		delete(k.held, id)
	}
	k.mu.Unlock()
	l.Unlock()
}
