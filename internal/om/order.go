package om

import (
	"time"

	"github.com/capitalk/strategy/internal/schema"
	"github.com/capitalk/strategy/internal/schema/enum"
)

// Order is the business object for one logical order across its whole
// request chain. The pointer is the stable handle; CurrentID is the
// mutable external identifier the venue currently knows the order by,
// and the store keeps a secondary index from every id in the chain back
// to this object.
type Order struct {
	CurrentID   schema.OrderID
	VenueID     schema.VenueID
	Symbol      string
	Side        enum.Side
	Price       float64
	Qty         float64
	OrderType   enum.OrderType
	TimeInForce enum.TimeInForce

	CumQty     float64
	LeavesQty  float64
	AvgPrice   float64
	LastPrice  float64
	LastShares float64

	Status enum.OrderStatus

	CreatedAt time.Time
	UpdatedAt time.Time
}

// applyReportFields copies execution report values onto the order and
// bumps UpdatedAt when anything changed.
func (o *Order) applyReportFields(er schema.ExecutionReport, now time.Time) {
	changed := false
	if er.Price > 0 && o.Price != er.Price {
		o.Price = er.Price
		changed = true
	}
	if er.OrderQty > 0 && o.Qty != er.OrderQty {
		o.Qty = er.OrderQty
		changed = true
	}
	if o.CumQty != er.CumQty {
		o.CumQty = er.CumQty
		changed = true
	}
	if o.LeavesQty != er.LeavesQty {
		o.LeavesQty = er.LeavesQty
		changed = true
	}
	if er.AvgPrice > 0 && o.AvgPrice != er.AvgPrice {
		o.AvgPrice = er.AvgPrice
		changed = true
	}
	if o.LastPrice != er.LastPrice {
		o.LastPrice = er.LastPrice
		changed = true
	}
	if o.LastShares != er.LastShares {
		o.LastShares = er.LastShares
		changed = true
	}
	o.Status = er.OrderStatus
	if changed {
		o.UpdatedAt = now
	}
}

// FullyFilled reports whether the cumulative fill reached the order qty.
func (o *Order) FullyFilled() bool {
	return o.Qty > 0 && o.CumQty >= o.Qty
}
