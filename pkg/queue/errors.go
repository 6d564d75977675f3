package queue

import "errors"

var (
	// ErrClosed indicates the queue connection has shut down.
	ErrClosed = errors.New("queue closed")
	// ErrMalformedMessage indicates a payload that does not decode to a Message.
	ErrMalformedMessage = errors.New("malformed queue message")
)
