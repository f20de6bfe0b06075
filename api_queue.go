package main

import (
	"context"
	"errors"

	"github.com/valyala/fasthttp"
)

func PingHandler(ctx *fasthttp.RequestCtx) {
	_, _ = ctx.WriteString("pong")
}

// Append a message to a queue
func PushHandler(ctx *fasthttp.RequestCtx) {
	name, err := getName(ctx)
	if err != nil {
		ctx.Error(err.Error(), 400)
		return
	}
	err = db.Queue(name).Push(ctx, append([]byte(nil), ctx.PostBody()...))
	if err != nil {
		ctx.Error("err pushing: "+err.Error(), 500)
		return
	}
}

// Take the front message of a queue, waiting up to ?wait= ms for one to
// arrive. An empty queue answers 204.
func PopHandler(ctx *fasthttp.RequestCtx) {
	name, err := getName(ctx)
	if err != nil {
		ctx.Error(err.Error(), 400)
		return
	}
	wait, err := getWait(ctx)
	if err != nil {
		ctx.Error(err.Error(), 400)
		return
	}
	q := db.Queue(name)
	var msg []byte
	if wait == 0 {
		msg, err = q.TryPop()
	} else {
		wctx, cancel := context.WithTimeout(ctx, wait)
		msg, err = q.Pop(wctx)
		cancel()
		if errors.Is(err, context.DeadlineExceeded) {
			err = nil
		}
	}
	if err != nil {
		ctx.Error("err popping: "+err.Error(), 500)
		return
	}
	if msg == nil {
		ctx.SetStatusCode(fasthttp.StatusNoContent)
		return
	}
	ctx.SetBody(msg)
}
