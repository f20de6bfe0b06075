package store

import (
	"context"
	"sync"
)

func newNotifier() *notifier {
	l := sync.Mutex{}
	return &notifier{c: sync.NewCond(&l), l: &l, s: make(map[string]*NotifierRecord)}
}

type NotifierRecord struct {
	Version   int64
	Listeners int
}

// notifier wakes up readers blocked on a queue or topic when its version
// moves.
type notifier struct {
	c *sync.Cond
	l sync.Locker
	s map[string]*NotifierRecord
}

func (km *notifier) NotifyVersion(key string, ver int64) {
	km.l.Lock()
	defer km.l.Unlock()
	v, ok := km.s[key]
	if !ok { // no listeners - no need to notify
		return
	}
	v.Version = ver
	km.c.Broadcast()
}

// make sure that NotifierRecord won't be cleared between time we check version in db
// and the time we start listening for changes
func (km *notifier) Attach(key string) {
	km.l.Lock()
	defer km.l.Unlock()

	v, ok := km.s[key]
	if !ok {
		v = &NotifierRecord{}
		km.s[key] = v
	}
	v.Listeners++
}

// Detach undoes Attach when the caller found data and will not Listen.
func (km *notifier) Detach(key string) {
	km.l.Lock()
	defer km.l.Unlock()
	km.detach(key)
}

func (km *notifier) detach(key string) {
	v, ok := km.s[key]
	if !ok {
		return
	}
	v.Listeners--
	if v.Listeners <= 0 {
		delete(km.s, key) // no one listening - free up RAM
	}
}

// Listen blocks until the version of key differs from ver or ctx is done.
// It consumes the preceding Attach.
func (km *notifier) Listen(ctx context.Context, key string, ver int64) (int64, error) {
	stop := context.AfterFunc(ctx, func() {
		km.l.Lock()
		km.c.Broadcast()
		km.l.Unlock()
	})
	defer stop()

	km.l.Lock()
	defer km.l.Unlock()
	for {
		v, ok := km.s[key]
		if ok && v.Version != 0 && v.Version != ver { // changed!
			km.detach(key)
			return v.Version, nil
		}
		if err := ctx.Err(); err != nil {
			km.detach(key)
			return -1, err
		}
		km.c.Wait()
	}
}
