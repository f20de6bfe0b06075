package client

import (
	"context"
	"errors"

	log "github.com/sirupsen/logrus"

	"sairedis/codec"
	"sairedis/sai"
	"sairedis/transport"
)

// Handlers are the caller's notification callbacks. A nil handler drops
// the notification.
type Handlers struct {
	SwitchStateChange     func(sai.SwitchStateChange)
	FDBEvent              func(sai.FDBEvents)
	PortStateChange       func(sai.PortStateChange)
	SwitchShutdownRequest func(sai.SwitchShutdownRequest)
	PacketEvent           func(sai.PacketEvent)
}

// Bridge delivers daemon notifications to Handlers with handles
// translated to client space.
type Bridge struct {
	c   *Client
	sub transport.Subscriber
	h   Handlers
}

func (c *Client) Bridge(sub transport.Subscriber, h Handlers) *Bridge {
	return &Bridge{c: c, sub: sub, h: h}
}

// Run delivers notifications in order until ctx is done.
func (b *Bridge) Run(ctx context.Context) error {
	for {
		msg, err := b.sub.Next(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return err
		}
		var rec sai.Record
		if _, err := rec.UnmarshalMsg(msg); err != nil {
			log.Errorf("bad notification record: %v", err)
			continue
		}
		b.handle(rec)
	}
}

func (b *Bridge) handle(rec sai.Record) {
	n, err := b.c.codec.DecodeNotification(rec.Op, rec.Key)
	if errors.Is(err, codec.ErrUnknownNotification) {
		log.Warnf("dropping unknown notification %q", rec.Op)
		return
	}
	if err != nil {
		log.Errorf("notification %s: %v", rec.Op, err)
		return
	}
	n, err = b.c.accept(n, rec)
	if err != nil {
		log.Errorf("notification %s: %v", rec.Op, err)
		return
	}
	switch n := n.(type) {
	case sai.SwitchStateChange:
		if b.h.SwitchStateChange != nil {
			b.h.SwitchStateChange(n)
		}
	case sai.FDBEvents:
		if b.h.FDBEvent != nil {
			b.h.FDBEvent(n)
		}
	case sai.PortStateChange:
		if b.h.PortStateChange != nil {
			b.h.PortStateChange(n)
		}
	case sai.SwitchShutdownRequest:
		if b.h.SwitchShutdownRequest != nil {
			b.h.SwitchShutdownRequest(n)
		}
	case sai.PacketEvent:
		if b.h.PacketEvent != nil {
			b.h.PacketEvent(n)
		}
	}
}

// accept translates n to client space under the call lock, so handles
// first seen in a notification get the same client handle a concurrent
// Get would have assigned.
func (c *Client) accept(n sai.Notification, rec sai.Record) (sai.Notification, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	cn, err := c.vids.TranslateNotification(n)
	if err != nil {
		return nil, err
	}
	if ev, ok := cn.(sai.FDBEvents); ok {
		for _, e := range ev {
			switch e.Type {
			case sai.FDBEventLearned, sai.FDBEventMove:
				c.learned[e.Entry] = sai.CloneAttributes(e.Attrs)
			case sai.FDBEventAged, sai.FDBEventFlushed:
				delete(c.learned, e.Entry)
			}
		}
	}
	if c.recording {
		_, payload, err := c.codec.EncodeNotification(cn)
		if err == nil {
			c.record(RecNotification, rec.Op, []sai.FieldValue{{Field: "payload", Value: payload}})
		}
	}
	return cn, nil
}
