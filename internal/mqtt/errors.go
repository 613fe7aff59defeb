package mqtt

import "errors"

var (
	ErrNotConnected = errors.New("mqtt: not connected")
	ErrOutboxFull   = errors.New("mqtt: outbox full")
)
