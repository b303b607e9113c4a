package schema

import (
	"github.com/google/uuid"

	"github.com/capitalk/strategy/internal/schema/enum"
)

// QuoteTick is one venue's best bid/offer snapshot for a symbol.
type QuoteTick struct {
	Symbol   string
	VenueID  VenueID
	BidPrice float64
	BidSize  float64
	AskPrice float64
	AskSize  float64
}

// OrderRequest is the outbound order message handed to the venue
// transport. Cancel and replace also carry the original order id.
type OrderRequest struct {
	Kind        enum.RequestKind
	RequestID   OrderID
	OrigOrderID OrderID
	StrategyID  uuid.UUID
	VenueID     VenueID
	Symbol      string
	Side        enum.Side
	Price       float64
	Qty         float64
	OrderType   enum.OrderType
	TimeInForce enum.TimeInForce
}

// ExecutionReport is the inbound reconciliation message from an ECN.
type ExecutionReport struct {
	ClOrderID     OrderID
	OrigClOrderID OrderID
	VenueID       VenueID
	Symbol        string
	Side          enum.Side
	ExecTransType enum.ExecTransType
	ExecType      enum.ExecType
	OrderStatus   enum.OrderStatus
	Price         float64
	OrderQty      float64
	CumQty        float64
	LeavesQty     float64
	AvgPrice      float64
	LastPrice     float64
	LastShares    float64
}

// CancelReject reports a refused cancel or cancel/replace request.
// ClOrderID is the request id, OrigClOrderID the order it targeted.
type CancelReject struct {
	ClOrderID     OrderID
	OrigClOrderID OrderID
	VenueID       VenueID
	Reason        string
}
