package exception

import "errors"

var (
	ErrCrossAlreadySent    = errors.New("cross: already sent")
	ErrCrossNotSent        = errors.New("cross: not sent yet")
	ErrCrossNotCrossed     = errors.New("cross: offer price not below bid price")
	ErrCrossSymbolMismatch = errors.New("cross: bid and offer symbols differ")
	ErrStrategyQueueFull   = errors.New("strategy: event queue full")
	ErrStrategyQueueClosed = errors.New("strategy: event queue closed")
)
