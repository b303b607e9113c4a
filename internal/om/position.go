package om

import "github.com/capitalk/strategy/internal/schema/enum"

// Position is the per-symbol aggregate of confirmed fills. It is only
// updated when an execution report confirms shares, never on submission.
type Position struct {
	Symbol   string
	LongQty  float64
	LongVal  float64
	ShortQty float64
	ShortVal float64
}

// LongAvgPrice returns average long fill price, 0 with no long fills.
func (p *Position) LongAvgPrice() float64 {
	if p.LongQty == 0 {
		return 0
	}
	return p.LongVal / p.LongQty
}

// ShortAvgPrice returns average short fill price, 0 with no short fills.
func (p *Position) ShortAvgPrice() float64 {
	if p.ShortQty == 0 {
		return 0
	}
	return p.ShortVal / p.ShortQty
}

// NetQty returns long minus short quantity.
func (p *Position) NetQty() float64 {
	return p.LongQty - p.ShortQty
}

// applyFill accrues lastShares at lastPrice on the side's book.
func (p *Position) applyFill(side enum.Side, lastShares, lastPrice float64) {
	switch side {
	case enum.SideBid:
		p.LongQty += lastShares
		p.LongVal += lastShares * lastPrice
	case enum.SideOffer:
		p.ShortQty += lastShares
		p.ShortVal += lastShares * lastPrice
	}
}
