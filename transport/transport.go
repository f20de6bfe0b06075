// Package transport defines the ordered channels the client and the daemon
// talk over, and an HTTP implementation for clients outside the daemon
// process.
package transport

import (
	"context"

	"sairedis/store"
)

// Producer is the sending end of an ordered channel.
type Producer interface {
	Push(ctx context.Context, msg []byte) error
}

// Consumer is the receiving end of an ordered channel. Pop blocks until a
// message arrives or ctx is done.
type Consumer interface {
	Pop(ctx context.Context) ([]byte, error)
}

type Publisher interface {
	Publish(ctx context.Context, msg []byte) error
}

// Subscriber delivers published messages in publish order.
type Subscriber interface {
	Next(ctx context.Context) ([]byte, error)
}

// Pinger is implemented by transports that can check reachability.
type Pinger interface {
	Ping(ctx context.Context) error
}

var (
	_ Producer   = (*store.Queue)(nil)
	_ Consumer   = (*store.Queue)(nil)
	_ Publisher  = (*store.Topic)(nil)
	_ Subscriber = (*store.Subscription)(nil)

	_ Producer   = (*HTTPQueue)(nil)
	_ Consumer   = (*HTTPQueue)(nil)
	_ Publisher  = (*HTTPTopic)(nil)
	_ Subscriber = (*HTTPSubscription)(nil)
	_ Pinger     = (*HTTP)(nil)
	_ Pinger     = (*HTTPQueue)(nil)
)
