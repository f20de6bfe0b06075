package main

import (
	"fmt"
	"strconv"
	"time"

	"github.com/valyala/fasthttp"
)

// longest wait a client may ask for
const maxWait = 30 * time.Second

func getName(ctx *fasthttp.RequestCtx) (string, error) {
	name := ctx.UserValue("name").(string)
	if len(name) > 255 || len(name) == 0 {
		return "", fmt.Errorf("name is not in range 0~255")
	}
	for _, v := range name {
		if v == 0 {
			return "", fmt.Errorf("0 is not allowed as a character in name")
		}
	}
	return name, nil
}

// getWait reads the wait query argument in milliseconds.
func getWait(ctx *fasthttp.RequestCtx) (time.Duration, error) {
	v := ctx.QueryArgs().Peek("wait")
	if len(v) == 0 {
		return 0, nil
	}
	ms, err := strconv.ParseInt(string(v), 10, 64)
	if err != nil || ms < 0 {
		return 0, fmt.Errorf("bad wait %q", v)
	}
	d := time.Duration(ms) * time.Millisecond
	if d > maxWait {
		d = maxWait
	}
	return d, nil
}
