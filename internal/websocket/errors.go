package websocket

import "errors"

var (
	ErrClientQueueFull         = errors.New("client message queue is full")
	ErrClientClosed            = errors.New("client connection closed")
	ErrInvalidMessage          = errors.New("invalid message format")
	ErrDuplicateSubscription   = errors.New("subscription id already in use")
	ErrUnknownSubscription     = errors.New("unknown subscription id")
	ErrUnknownSubscriptionKind = errors.New("unknown subscription kind")
)
