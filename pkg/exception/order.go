package exception

import "errors"

var (
	ErrOrderNotFound         = errors.New("order: not found")
	ErrOrderNotLive          = errors.New("order: not live")
	ErrOrderNoOpReplace      = errors.New("order: cancel/replace changes nothing")
	ErrOrderUnknownRequest   = errors.New("order: unknown request id")
	ErrOrderNilSender        = errors.New("order: nil sender")
	ErrOrderUnknownVenue     = errors.New("order: unknown venue")
	ErrOrderDuplicateRequest = errors.New("order: duplicate request id")
)

var (
	ErrExecUnsupportedTransType = errors.New("exec report: unsupported transaction type")
	ErrExecUnsupportedExecType  = errors.New("exec report: unsupported exec type")
	ErrExecUnknownOrder         = errors.New("exec report: unknown order id")
	ErrExecRenameDeadOrder      = errors.New("exec report: rename of dead order")
	ErrCancelRejectUnknownOrder = errors.New("cancel reject: unknown original order id")
)
