package uncross

import (
	"fmt"
	"time"

	"github.com/capitalk/strategy/internal/md"
	"github.com/capitalk/strategy/internal/schema"
)

// Cross is one detected arbitrage opportunity: a bid on one venue
// priced above an offer on another. It is created by the Detector and
// mutated by the Lifecycle until both legs reach a terminal state and
// the position is rectified.
type Cross struct {
	Bid       md.Entry
	Offer     md.Entry
	CreatedAt time.Time

	Sent         bool
	SentAt       time.Time
	BidOrderID   schema.OrderID
	OfferOrderID schema.OrderID

	// Rescue fields are set only while unwinding an asymmetric fill.
	RescueOrderID   schema.OrderID
	RescueStartedAt time.Time

	sentBidCancel   bool
	sentOfferCancel bool
}

// Qty is the tradable amount, bounded by the thinner side.
func (c *Cross) Qty() float64 {
	if c.Bid.Size < c.Offer.Size {
		return c.Bid.Size
	}
	return c.Offer.Size
}

func (c *Cross) setRescue(id schema.OrderID, now time.Time) {
	c.RescueOrderID = id
	c.RescueStartedAt = now
}

func (c *Cross) String() string {
	return fmt.Sprintf("Cross(%s: bid %f x %f @ venue %d, offer %f x %f @ venue %d)",
		c.Bid.Symbol, c.Bid.Price, c.Bid.Size, c.Bid.VenueID,
		c.Offer.Price, c.Offer.Size, c.Offer.VenueID)
}
