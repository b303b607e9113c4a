package enum

// OrderType limit, market
type OrderType uint8

const (
	_order_type_beg OrderType = iota
	OrderTypeLimit
	OrderTypeMarket
	_order_type_end
)

func (t OrderType) IsAvailable() bool {
	return t > _order_type_beg && t < _order_type_end
}

func (t OrderType) String() string {
	switch t {
	case OrderTypeLimit:
		return "LIMIT"
	case OrderTypeMarket:
		return "MARKET"
	default:
		return "UNKNOWN"
	}
}

// TimeInForce GTC, GFD, IOC, FOK
type TimeInForce uint8

const (
	_time_in_force_beg TimeInForce = iota
	TimeInForceGTC
	TimeInForceGFD
	TimeInForceIOC
	TimeInForceFOK
	_time_in_force_end
)

func (t TimeInForce) IsAvailable() bool {
	return t > _time_in_force_beg && t < _time_in_force_end
}

func (t TimeInForce) String() string {
	switch t {
	case TimeInForceGTC:
		return "GTC"
	case TimeInForceGFD:
		return "GFD"
	case TimeInForceIOC:
		return "IOC"
	case TimeInForceFOK:
		return "FOK"
	default:
		return "UNKNOWN"
	}
}

// RequestKind tags an outbound order message.
type RequestKind uint8

const (
	_request_kind_beg RequestKind = iota
	RequestKindNew
	RequestKindCancel
	RequestKindReplace
	_request_kind_end
)

func (k RequestKind) IsAvailable() bool {
	return k > _request_kind_beg && k < _request_kind_end
}

func (k RequestKind) String() string {
	switch k {
	case RequestKindNew:
		return "NEW"
	case RequestKindCancel:
		return "CANCEL"
	case RequestKindReplace:
		return "REPLACE"
	default:
		return "UNKNOWN"
	}
}
