package transport

import (
	"context"
	"net"
	"strconv"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/valyala/fasthttp"
	"github.com/valyala/fasthttp/fasthttputil"
)

// fakeDaemon serves one queue and one topic from memory.
type fakeDaemon struct {
	mu    sync.Mutex
	queue [][]byte
	topic [][]byte
	pops  int
}

func (d *fakeDaemon) handle(ctx *fasthttp.RequestCtx) {
	d.mu.Lock()
	defer d.mu.Unlock()
	path := string(ctx.Path())
	switch {
	case path == "/ping":
		ctx.SetStatusCode(fasthttp.StatusOK)
	case path == "/q/cmd" && ctx.IsPost():
		d.queue = append(d.queue, append([]byte(nil), ctx.PostBody()...))
	case path == "/q/cmd" && string(ctx.Method()) == fasthttp.MethodDelete:
		d.pops++
		if len(d.queue) == 0 {
			ctx.SetStatusCode(fasthttp.StatusNoContent)
			return
		}
		ctx.SetBody(d.queue[0])
		d.queue = d.queue[1:]
	case path == "/ntf/events" && ctx.IsPost():
		d.topic = append(d.topic, append([]byte(nil), ctx.PostBody()...))
	case path == "/ntf/events":
		from, _ := strconv.Atoi(string(ctx.QueryArgs().Peek("from")))
		if from <= 0 {
			from = len(d.topic) + 1
		}
		if from > len(d.topic) {
			ctx.Response.Header.Set(HeaderNext, strconv.Itoa(from))
			ctx.SetStatusCode(fasthttp.StatusNoContent)
			return
		}
		ctx.Response.Header.Set(HeaderSeq, strconv.Itoa(from))
		ctx.SetBody(d.topic[from-1])
	default:
		ctx.SetStatusCode(fasthttp.StatusNotFound)
	}
}

func startFake(t *testing.T) (*fakeDaemon, *HTTP) {
	d := &fakeDaemon{}
	ln := fasthttputil.NewInmemoryListener()
	srv := &fasthttp.Server{Handler: d.handle}
	go srv.Serve(ln) //nolint:errcheck
	t.Cleanup(func() { ln.Close() })
	h := NewHTTP("http://sairedis", WithWait(10*time.Millisecond), WithDial(func(string) (net.Conn, error) {
		return ln.Dial()
	}))
	return d, h
}

func TestHTTPQueueOrder(t *testing.T) {
	_, h := startFake(t)
	ctx := context.Background()
	q := h.Queue("cmd")
	require.NoError(t, h.Ping(ctx))
	for i := 0; i < 5; i++ {
		require.NoError(t, q.Push(ctx, []byte{byte(i)}))
	}
	for i := 0; i < 5; i++ {
		msg, err := q.Pop(ctx)
		require.NoError(t, err)
		assert.Equal(t, []byte{byte(i)}, msg)
	}
}

func TestHTTPPopPollsUntilMessage(t *testing.T) {
	d, h := startFake(t)
	ctx := context.Background()
	q := h.Queue("cmd")
	go func() {
		time.Sleep(50 * time.Millisecond)
		assert.NoError(t, q.Push(ctx, []byte("late")))
	}()
	msg, err := q.Pop(ctx)
	require.NoError(t, err)
	assert.Equal(t, "late", string(msg))
	d.mu.Lock()
	assert.Greater(t, d.pops, 1)
	d.mu.Unlock()
}

func TestHTTPPopCancelled(t *testing.T) {
	_, h := startFake(t)
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Millisecond)
	defer cancel()
	_, err := h.Queue("cmd").Pop(ctx)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestHTTPSubscription(t *testing.T) {
	_, h := startFake(t)
	ctx := context.Background()
	pub := h.Topic("events")
	require.NoError(t, pub.Publish(ctx, []byte("old")))

	sub := h.Subscribe("events", 0)
	got := make(chan string, 2)
	go func() {
		for i := 0; i < 2; i++ {
			msg, err := sub.Next(ctx)
			if err != nil {
				return
			}
			got <- string(msg)
		}
	}()
	time.Sleep(30 * time.Millisecond)
	require.NoError(t, pub.Publish(ctx, []byte("a")))
	require.NoError(t, pub.Publish(ctx, []byte("b")))
	assert.Equal(t, "a", <-got)
	assert.Equal(t, "b", <-got)
}

func TestHTTPErrorStatus(t *testing.T) {
	_, h := startFake(t)
	err := h.Queue("missing").Push(context.Background(), []byte("x"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "404")
}
