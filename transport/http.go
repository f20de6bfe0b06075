package transport

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/valyala/fasthttp"
)

// Headers used by the notification endpoint.
const (
	HeaderSeq  = "X-Seq"
	HeaderNext = "X-Next"
)

// HTTP talks to the daemon's queue API:
//
//	POST   /q/:name              push body
//	DELETE /q/:name?wait=ms      pop, 204 when nothing arrived in time
//	POST   /ntf/:name            publish body
//	GET    /ntf/:name?from=&wait read one notification at or after from
//	GET    /ping
type HTTP struct {
	c    *fasthttp.Client
	base string
	wait time.Duration
}

type Option func(*HTTP)

// WithDial replaces the dialer, e.g. with an in-memory listener.
func WithDial(dial fasthttp.DialFunc) Option {
	return func(h *HTTP) {
		h.c.Dial = dial
	}
}

// WithWait sets how long one long-poll request may block on the server.
func WithWait(d time.Duration) Option {
	return func(h *HTTP) {
		h.wait = d
	}
}

func NewHTTP(base string, opts ...Option) *HTTP {
	h := &HTTP{
		c: &fasthttp.Client{
			NoDefaultUserAgentHeader:      true,
			DisableHeaderNamesNormalizing: true,
			ReadBufferSize:                10000,
			WriteBufferSize:               10000,
		},
		base: base,
		wait: time.Second,
	}
	for _, o := range opts {
		o(h)
	}
	return h
}

func (h *HTTP) do(method, path string, body []byte, timeout time.Duration) (int, []byte, *fasthttp.ResponseHeader, error) {
	req := fasthttp.AcquireRequest()
	resp := fasthttp.AcquireResponse()
	defer fasthttp.ReleaseRequest(req)
	defer fasthttp.ReleaseResponse(resp)

	req.SetRequestURI(h.base + path)
	req.Header.SetMethod(method)
	if body != nil {
		req.SetBody(body)
	}
	err := h.c.DoTimeout(req, resp, timeout)
	if err != nil {
		return 0, nil, nil, fmt.Errorf("%s %s: %w", method, path, err)
	}
	code := resp.StatusCode()
	data := append([]byte(nil), resp.Body()...)
	if code >= 300 {
		return code, nil, nil, fmt.Errorf("%s %s: %d %s", method, path, code, data)
	}
	var hdr fasthttp.ResponseHeader
	resp.Header.CopyTo(&hdr)
	return code, data, &hdr, nil
}

func (h *HTTP) timeout() time.Duration {
	return h.wait + 5*time.Second
}

func (h *HTTP) Ping(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	_, _, _, err := h.do(fasthttp.MethodGet, "/ping", nil, 5*time.Second)
	return err
}

func (h *HTTP) Queue(name string) *HTTPQueue {
	return &HTTPQueue{h: h, name: name}
}

func (h *HTTP) Topic(name string) *HTTPTopic {
	return &HTTPTopic{h: h, name: name}
}

// Subscribe reads name starting at from; from <= 0 starts at the next
// published message.
func (h *HTTP) Subscribe(name string, from int64) *HTTPSubscription {
	return &HTTPSubscription{h: h, name: name, from: from}
}

type HTTPQueue struct {
	h    *HTTP
	name string
}

// Ping checks that the daemon behind the queue is reachable.
func (q *HTTPQueue) Ping(ctx context.Context) error {
	return q.h.Ping(ctx)
}

func (q *HTTPQueue) Push(ctx context.Context, msg []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	_, _, _, err := q.h.do(fasthttp.MethodPost, "/q/"+q.name, msg, q.h.timeout())
	return err
}

func (q *HTTPQueue) Pop(ctx context.Context) ([]byte, error) {
	path := "/q/" + q.name + "?wait=" + strconv.FormatInt(q.h.wait.Milliseconds(), 10)
	for {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		code, body, _, err := q.h.do(fasthttp.MethodDelete, path, nil, q.h.timeout())
		if err != nil {
			return nil, err
		}
		if code == fasthttp.StatusOK {
			return body, nil
		}
	}
}

type HTTPTopic struct {
	h    *HTTP
	name string
}

func (t *HTTPTopic) Publish(ctx context.Context, msg []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	_, _, _, err := t.h.do(fasthttp.MethodPost, "/ntf/"+t.name, msg, t.h.timeout())
	return err
}

type HTTPSubscription struct {
	h    *HTTP
	name string
	from int64
}

func (s *HTTPSubscription) Next(ctx context.Context) ([]byte, error) {
	for {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		path := "/ntf/" + s.name + "?from=" + strconv.FormatInt(s.from, 10) +
			"&wait=" + strconv.FormatInt(s.h.wait.Milliseconds(), 10)
		code, body, hdr, err := s.h.do(fasthttp.MethodGet, path, nil, s.h.timeout())
		if err != nil {
			return nil, err
		}
		if code == fasthttp.StatusOK {
			seq, err := strconv.ParseInt(string(hdr.Peek(HeaderSeq)), 10, 64)
			if err != nil {
				return nil, fmt.Errorf("GET %s: bad %s header: %w", path, HeaderSeq, err)
			}
			s.from = seq + 1
			return body, nil
		}
		if next, err := strconv.ParseInt(string(hdr.Peek(HeaderNext)), 10, 64); err == nil {
			s.from = next
		}
	}
}
