package store

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/cockroachdb/pebble"
	"github.com/cockroachdb/pebble/vfs"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// openTestStore opens a store on fs and runs its flush loop. The returned
// func stops the loop and closes the db.
func openTestStore(t *testing.T, fs vfs.FS) (*Store, func()) {
	t.Helper()
	s, err := Open("test.db", &pebble.Options{FS: fs})
	require.NoError(t, err)
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		_ = s.FlushLoop(ctx)
	}()
	closed := false
	stop := func() {
		if closed {
			return
		}
		closed = true
		cancel()
		<-done
		require.NoError(t, s.Close())
	}
	t.Cleanup(stop)
	return s, stop
}

func testKV(t *testing.T, kv KV) {
	_, err := kv.Get([]byte("missing"))
	assert.ErrorIs(t, err, ErrNotFound)

	require.NoError(t, kv.Set(CompID1(ViewPrefix, "a"), []byte("1")))
	require.NoError(t, kv.Set(CompID1(ViewPrefix, "b"), []byte("2")))
	require.NoError(t, kv.Set(CompID1(BackendPrefix, "c"), []byte("3")))

	v, err := kv.Get(CompID1(ViewPrefix, "a"))
	require.NoError(t, err)
	assert.Equal(t, []byte("1"), v)

	var seen []string
	err = kv.Scan([]byte{ViewPrefix}, func(k, v []byte) error {
		seen = append(seen, FromCompID1(k)+"="+string(v))
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"a=1", "b=2"}, seen)

	for i := 1; i <= 3; i++ {
		n, err := kv.Increment(CompID1(VIDCounterPrefix, "port"))
		require.NoError(t, err)
		assert.Equal(t, int64(i), n)
	}

	err = kv.Batch([]byte("b"), func(w Writer) error {
		if err := w.Set(CompID1(ViewPrefix, "d"), []byte("4")); err != nil {
			return err
		}
		return w.Delete(CompID1(ViewPrefix, "a"))
	})
	require.NoError(t, err)
	_, err = kv.Get(CompID1(ViewPrefix, "a"))
	assert.ErrorIs(t, err, ErrNotFound)

	boom := errors.New("boom")
	err = kv.Batch([]byte("b"), func(w Writer) error {
		_ = w.Set(CompID1(ViewPrefix, "e"), []byte("5"))
		return boom
	})
	assert.ErrorIs(t, err, boom)
	_, err = kv.Get(CompID1(ViewPrefix, "e"))
	assert.ErrorIs(t, err, ErrNotFound)

	require.NoError(t, kv.DeletePrefix([]byte{ViewPrefix}))
	n := 0
	require.NoError(t, kv.Scan([]byte{ViewPrefix}, func(k, v []byte) error { n++; return nil }))
	assert.Zero(t, n)
	v, err = kv.Get(CompID1(BackendPrefix, "c"))
	require.NoError(t, err)
	assert.Equal(t, []byte("3"), v)

	require.NoError(t, kv.Delete(CompID1(BackendPrefix, "c")))
	_, err = kv.Get(CompID1(BackendPrefix, "c"))
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestPebbleKV(t *testing.T) {
	s, _ := openTestStore(t, vfs.NewMem())
	testKV(t, s)
}

func TestMemoryKV(t *testing.T) {
	testKV(t, NewMemory())
}

func TestQueueOrder(t *testing.T) {
	s, _ := openTestStore(t, vfs.NewMem())
	q := s.Queue(CommandQueue)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		require.NoError(t, q.Push(ctx, []byte(fmt.Sprint(i))))
	}
	n, err := q.Len()
	require.NoError(t, err)
	assert.Equal(t, int64(3), n)

	for i := 0; i < 3; i++ {
		msg, err := q.Pop(ctx)
		require.NoError(t, err)
		assert.Equal(t, fmt.Sprint(i), string(msg))
	}
	n, err = q.Len()
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestQueuePopBlocks(t *testing.T) {
	s, _ := openTestStore(t, vfs.NewMem())
	q := s.Queue(ResponseQueue)

	got := make(chan string, 1)
	go func() {
		msg, err := q.Pop(context.Background())
		if err == nil {
			got <- string(msg)
		}
	}()
	select {
	case <-got:
		t.Fatal("pop returned on an empty queue")
	case <-time.After(50 * time.Millisecond):
	}
	require.NoError(t, q.Push(context.Background(), []byte("late")))
	select {
	case msg := <-got:
		assert.Equal(t, "late", msg)
	case <-time.After(5 * time.Second):
		t.Fatal("pop did not wake up")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	_, err := q.Pop(ctx)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestQueueSurvivesRestart(t *testing.T) {
	fs := vfs.NewMem()
	s, stop := openTestStore(t, fs)
	require.NoError(t, s.Queue(CommandQueue).Push(context.Background(), []byte("kept")))
	stop()

	s, _ = openTestStore(t, fs)
	msg, err := s.Queue(CommandQueue).Pop(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "kept", string(msg))
}

func TestTopicRetention(t *testing.T) {
	s, _ := openTestStore(t, vfs.NewMem())
	tp := s.Topic(NotificationTopic, 2)
	ctx := context.Background()

	require.NoError(t, tp.Publish(ctx, []byte("old")))
	sub := tp.Subscribe(0)
	for _, m := range []string{"a", "b", "c"} {
		require.NoError(t, tp.Publish(ctx, []byte(m)))
	}

	msgs, next, _, err := tp.Read(1, 10)
	require.NoError(t, err)
	require.Len(t, msgs, 2)
	assert.Equal(t, "b", string(msgs[0].Data))
	assert.Equal(t, "c", string(msgs[1].Data))
	assert.Equal(t, int64(5), next)

	// the subscriber started after "old"; "a" was trimmed before it read
	msg, err := sub.Next(ctx)
	require.NoError(t, err)
	assert.Equal(t, "b", string(msg))
	msg, err = sub.Next(ctx)
	require.NoError(t, err)
	assert.Equal(t, "c", string(msg))

	go func() {
		time.Sleep(20 * time.Millisecond)
		_ = tp.Publish(context.Background(), []byte("d"))
	}()
	wctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	msg, err = sub.Next(wctx)
	require.NoError(t, err)
	assert.Equal(t, "d", string(msg))
}

func TestConcurrentIncrementsAreSerialized(t *testing.T) {
	s, _ := openTestStore(t, vfs.NewMem())
	key := CompID1(VIDCounterPrefix, "vlan")
	const n = 50
	got := make(chan int64, n)
	for i := 0; i < n; i++ {
		go func() {
			v, err := s.Increment(key)
			assert.NoError(t, err)
			got <- v
		}()
	}
	seen := map[int64]bool{}
	for i := 0; i < n; i++ {
		seen[<-got] = true
	}
	assert.Len(t, seen, n)
	for i := int64(1); i <= n; i++ {
		assert.True(t, seen[i], "missing %d", i)
	}
}

func TestUpdateAfterStop(t *testing.T) {
	s, err := Open("test.db", &pebble.Options{FS: vfs.NewMem()})
	require.NoError(t, err)
	defer s.Close()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	require.NoError(t, s.FlushLoop(ctx))
	err = s.Set([]byte("k"), []byte("v"))
	assert.ErrorIs(t, err, ErrStopped)
}
