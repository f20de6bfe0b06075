package main

import (
	"context"
	"errors"
	"strconv"

	"github.com/valyala/fasthttp"

	"sairedis/store"
	"sairedis/transport"
)

// Publish a notification
func PublishHandler(ctx *fasthttp.RequestCtx) {
	name, err := getName(ctx)
	if err != nil {
		ctx.Error(err.Error(), 400)
		return
	}
	err = db.Topic(name, ntfRetain).Publish(ctx, append([]byte(nil), ctx.PostBody()...))
	if err != nil {
		ctx.Error("err publishing: "+err.Error(), 500)
		return
	}
}

// Read the notification at ?from= or the first one after it, waiting up to
// ?wait= ms. A missing from starts at the next notification published.
// Answers 200 with the sequence in X-Seq, or 204 with the position to
// continue from in X-Next.
func ReadNotificationHandler(ctx *fasthttp.RequestCtx) {
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
	from, _ := strconv.ParseInt(string(ctx.QueryArgs().Peek("from")), 10, 64)
	t := db.Topic(name, ntfRetain)
	if from <= 0 {
		if from, err = t.Latest(); err != nil {
			ctx.Error("err reading: "+err.Error(), 500)
			return
		}
	}
	var msgs []store.Message
	next := from
	if wait == 0 {
		msgs, next, _, err = t.Read(from, 1)
	} else {
		wctx, cancel := context.WithTimeout(ctx, wait)
		msgs, next, err = t.Wait(wctx, from, 1)
		cancel()
		if errors.Is(err, context.DeadlineExceeded) {
			err = nil
		}
	}
	if err != nil {
		ctx.Error("err reading: "+err.Error(), 500)
		return
	}
	if len(msgs) == 0 {
		ctx.Response.Header.Set(transport.HeaderNext, strconv.FormatInt(next, 10))
		ctx.SetStatusCode(fasthttp.StatusNoContent)
		return
	}
	ctx.Response.Header.Set(transport.HeaderSeq, strconv.FormatInt(msgs[0].Seq, 10))
	ctx.SetBody(msgs[0].Data)
}
