package store

import "errors"

// Key prefixes of the tables kept in pebble.
const (
	VIDCounterPrefix = 1
	VIDToRIDPrefix   = 2
	RIDToVIDPrefix   = 3
	QueueMetaPrefix  = 4
	QueueMsgPrefix   = 5
	TopicMetaPrefix  = 6
	TopicMsgPrefix   = 7
	ViewPrefix       = 8
	BackendPrefix    = 9
	BackendCntPrefix = 10
)

// Well-known channel names.
const (
	CommandQueue      = "ASIC_STATE"
	ResponseQueue     = "GETRESPONSE"
	NotificationTopic = "NOTIFICATIONS"
)

var (
	ErrNotFound = errors.New("not_found")
	ErrStopped  = errors.New("db stopped")
)
