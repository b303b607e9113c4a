package enum

// ExecTransType FIX tag 20. New carries fresh state, Status repeats it,
// Cancel and Correct undo or modify a prior report.
type ExecTransType uint8

const (
	_exec_trans_type_beg ExecTransType = iota
	ExecTransTypeNew
	ExecTransTypeCancel
	ExecTransTypeCorrect
	ExecTransTypeStatus
	_exec_trans_type_end
)

func (t ExecTransType) IsAvailable() bool {
	return t > _exec_trans_type_beg && t < _exec_trans_type_end
}

func (t ExecTransType) String() string {
	switch t {
	case ExecTransTypeNew:
		return "NEW"
	case ExecTransTypeCancel:
		return "CANCEL"
	case ExecTransTypeCorrect:
		return "CORRECT"
	case ExecTransTypeStatus:
		return "STATUS"
	default:
		return "UNKNOWN"
	}
}

// OrderStatus FIX tag 39.
type OrderStatus uint8

const (
	_order_status_beg OrderStatus = iota
	OrderStatusNew
	OrderStatusPartialFill
	OrderStatusFill
	OrderStatusDoneForDay
	OrderStatusCancelled
	OrderStatusReplace
	OrderStatusPendingCancel
	OrderStatusStopped
	OrderStatusRejected
	OrderStatusSuspended
	OrderStatusPendingNew
	OrderStatusCalculated
	OrderStatusExpired
	OrderStatusRestated
	OrderStatusPendingReplace
	_order_status_end
)

func (s OrderStatus) IsAvailable() bool {
	return s > _order_status_beg && s < _order_status_end
}

// IsTerminal reports whether no further state change can follow.
func (s OrderStatus) IsTerminal() bool {
	switch s {
	case OrderStatusFill, OrderStatusCancelled, OrderStatusRejected, OrderStatusExpired:
		return true
	default:
		return false
	}
}

func (s OrderStatus) String() string {
	switch s {
	case OrderStatusNew:
		return "NEW"
	case OrderStatusPartialFill:
		return "PARTIAL_FILL"
	case OrderStatusFill:
		return "FILL"
	case OrderStatusDoneForDay:
		return "DONE_FOR_DAY"
	case OrderStatusCancelled:
		return "CANCELLED"
	case OrderStatusReplace:
		return "REPLACE"
	case OrderStatusPendingCancel:
		return "PENDING_CANCEL"
	case OrderStatusStopped:
		return "STOPPED"
	case OrderStatusRejected:
		return "REJECTED"
	case OrderStatusSuspended:
		return "SUSPENDED"
	case OrderStatusPendingNew:
		return "PENDING_NEW"
	case OrderStatusCalculated:
		return "CALCULATED"
	case OrderStatusExpired:
		return "EXPIRED"
	case OrderStatusRestated:
		return "RESTATED"
	case OrderStatusPendingReplace:
		return "PENDING_REPLACE"
	default:
		return "UNKNOWN"
	}
}

// ExecType FIX tag 150. Often, but not always, the same value space as
// OrderStatus.
type ExecType uint8

const (
	_exec_type_beg ExecType = iota
	ExecTypeNew
	ExecTypePartialFill
	ExecTypeFill
	ExecTypeDoneForDay
	ExecTypeCancelled
	ExecTypeReplace
	ExecTypePendingCancel
	ExecTypeStopped
	ExecTypeRejected
	ExecTypeSuspended
	ExecTypePendingNew
	ExecTypeCalculated
	ExecTypeExpired
	ExecTypeRestated
	_exec_type_end
)

func (t ExecType) IsAvailable() bool {
	return t > _exec_type_beg && t < _exec_type_end
}

func (t ExecType) String() string {
	switch t {
	case ExecTypeNew:
		return "NEW"
	case ExecTypePartialFill:
		return "PARTIAL_FILL"
	case ExecTypeFill:
		return "FILL"
	case ExecTypeDoneForDay:
		return "DONE_FOR_DAY"
	case ExecTypeCancelled:
		return "CANCELLED"
	case ExecTypeReplace:
		return "REPLACE"
	case ExecTypePendingCancel:
		return "PENDING_CANCEL"
	case ExecTypeStopped:
		return "STOPPED"
	case ExecTypeRejected:
		return "REJECTED"
	case ExecTypeSuspended:
		return "SUSPENDED"
	case ExecTypePendingNew:
		return "PENDING_NEW"
	case ExecTypeCalculated:
		return "CALCULATED"
	case ExecTypeExpired:
		return "EXPIRED"
	case ExecTypeRestated:
		return "RESTATED"
	default:
		return "UNKNOWN"
	}
}
