package uncross

import (
	"time"

	"github.com/yanun0323/errors"
	"github.com/yanun0323/logs"

	"github.com/capitalk/strategy/internal/md"
	"github.com/capitalk/strategy/internal/om"
	"github.com/capitalk/strategy/internal/schema"
	"github.com/capitalk/strategy/internal/schema/enum"
	"github.com/capitalk/strategy/pkg/exception"
)

// rescueTimeout bounds how long a rescue order may rest unresolved
// before the lifecycle starts shouting for an operator.
const rescueTimeout = 10 * time.Second

// CompletionFunc observes a completed cross, for journaling.
type CompletionFunc func(c *Cross, filledQty, bidAvgPrice, offerAvgPrice, profit float64)

// Lifecycle drives the active cross from detection through paired
// orders to resolution, unwinding asymmetric fills with rescue orders.
// At most one cross is in flight at a time.
type Lifecycle struct {
	store       *om.Store
	book        *md.Book
	maxOrderQty float64

	cross      *Cross
	onComplete CompletionFunc
	now        func() time.Time
}

func NewLifecycle(store *om.Store, book *md.Book, maxOrderQty float64) *Lifecycle {
	return &Lifecycle{
		store:       store,
		book:        book,
		maxOrderQty: maxOrderQty,
		now:         time.Now,
	}
}

// SetOnComplete registers a completion observer. Pass nil to disable.
func (l *Lifecycle) SetOnComplete(fn CompletionFunc) {
	l.onComplete = fn
}

// SetClock overrides the time source, for tests.
func (l *Lifecycle) SetClock(now func() time.Time) {
	l.now = now
}

// Active reports whether a cross is in flight.
func (l *Lifecycle) Active() bool {
	return l.cross != nil
}

// Cross returns the cross in flight, nil when idle.
func (l *Lifecycle) Cross() *Cross {
	return l.cross
}

// Adopt takes ownership of a freshly detected cross.
func (l *Lifecycle) Adopt(c *Cross) error {
	if l.cross != nil {
		return exception.Fatal(errors.Wrap(exception.ErrCrossAlreadySent, "a cross is already in flight"))
	}
	l.cross = c
	logs.Infof("adopted %s", c)
	return nil
}

// Send dispatches both legs: a sell into the venue holding the bid and
// a buy against the venue holding the offer, each for the thinner
// side's quantity. The smaller, presumably more transient side goes
// out first. Sending twice, an uncrossed pair, or mismatched symbols
// are programming errors and fail fatally.
func (l *Lifecycle) Send() error {
	c := l.cross
	if c.Sent {
		return exception.Fatal(exception.ErrCrossAlreadySent)
	}
	if c.Offer.Price >= c.Bid.Price {
		return exception.Fatal(errors.Wrapf(exception.ErrCrossNotCrossed,
			"offer %f >= bid %f", c.Offer.Price, c.Bid.Price))
	}
	if c.Bid.Symbol != c.Offer.Symbol {
		return exception.Fatal(errors.Wrapf(exception.ErrCrossSymbolMismatch,
			"%s vs %s", c.Bid.Symbol, c.Offer.Symbol))
	}

	symbol := c.Bid.Symbol
	qty := c.Qty()
	if l.maxOrderQty > 0 && qty > l.maxOrderQty {
		logs.Warnf("clamping cross qty %f to max order qty %f", qty, l.maxOrderQty)
		qty = l.maxOrderQty
	}

	var err error
	if c.Bid.Size < c.Offer.Size {
		if err = l.sendOfferLeg(symbol, qty); err == nil {
			err = l.sendBidLeg(symbol, qty)
		}
	} else {
		if err = l.sendBidLeg(symbol, qty); err == nil {
			err = l.sendOfferLeg(symbol, qty)
		}
	}
	if err != nil {
		// One leg may already be on the wire; an inconsistent
		// half-sent cross is not something to trade through.
		return exception.Fatal(errors.Wrap(err, "send cross legs"))
	}

	c.SentAt = l.now()
	c.Sent = true
	logs.Infof("sent orders for %s", c)
	return nil
}

// sendBidLeg buys from the venue quoting the offer, at the offer price.
func (l *Lifecycle) sendBidLeg(symbol string, qty float64) error {
	id, err := l.store.SubmitNew(l.cross.Offer.VenueID, symbol, enum.SideBid,
		l.cross.Offer.Price, qty, enum.OrderTypeLimit, enum.TimeInForceGTC)
	if err != nil {
		return err
	}
	l.cross.BidOrderID = id
	logs.Infof("sending BID (%s): venue=%d %s %f x %f", id, l.cross.Offer.VenueID, symbol, l.cross.Offer.Price, qty)
	return nil
}

// sendOfferLeg sells into the venue quoting the bid, at the bid price.
func (l *Lifecycle) sendOfferLeg(symbol string, qty float64) error {
	id, err := l.store.SubmitNew(l.cross.Bid.VenueID, symbol, enum.SideOffer,
		l.cross.Bid.Price, qty, enum.OrderTypeLimit, enum.TimeInForceGTC)
	if err != nil {
		return err
	}
	l.cross.OfferOrderID = id
	logs.Infof("sending OFFER (%s): venue=%d %s %f x %f", id, l.cross.Bid.VenueID, symbol, l.cross.Bid.Price, qty)
	return nil
}

// SendWhenReady sends the legs once the configured delay from detection
// has elapsed, otherwise leaves the cross waiting for the next tick.
func (l *Lifecycle) SendWhenReady(delay time.Duration) error {
	c := l.cross
	if c == nil || c.Sent {
		return nil
	}
	if l.now().Before(c.CreatedAt.Add(delay)) {
		logs.Infof("waiting to send orders for %s", c)
		return nil
	}
	return l.Send()
}

// ManageActiveCross runs one polling pass over the cross in flight:
// watches an outstanding rescue order, expires the cross after
// maxLifetime, and reacts to leg deaths.
func (l *Lifecycle) ManageActiveCross(maxLifetime time.Duration) error {
	c := l.cross
	if c == nil {
		logs.Warnf("manage_active_cross called with no cross in flight")
		return nil
	}
	if !c.Sent {
		return nil
	}

	if !c.RescueOrderID.IsZero() {
		return l.manageRescue()
	}

	if !l.now().Before(c.SentAt.Add(maxLifetime)) {
		logs.Infof("cross expired after %s", maxLifetime)
		return l.KillCross()
	}

	bid, err := l.store.Get(c.BidOrderID)
	if err != nil {
		return exception.Fatal(errors.Wrap(err, "bid leg vanished"))
	}
	offer, err := l.store.Get(c.OfferOrderID)
	if err != nil {
		return exception.Fatal(errors.Wrap(err, "offer leg vanished"))
	}
	bidAlive := l.store.IsAlive(bid.CurrentID)
	offerAlive := l.store.IsAlive(offer.CurrentID)
	// a leg whose ack has not arrived yet is in flight, not dead
	bidDead := !bidAlive && !l.store.IsPending(c.BidOrderID)
	offerDead := !offerAlive && !l.store.IsPending(c.OfferOrderID)

	switch {
	case bidDead && offerDead:
		logs.Infof("both orders dead")
		return l.bothDead(bid, offer)
	case bidAlive && offerDead && offer.CumQty < offer.Qty:
		logs.Infof("bid alive, offer dead with %f/%f filled", offer.CumQty, offer.Qty)
		return l.KillCross()
	case offerAlive && bidDead && bid.CumQty < bid.Qty:
		logs.Infof("offer alive, bid dead with %f/%f filled", bid.CumQty, bid.Qty)
		return l.KillCross()
	default:
		return nil
	}
}

// manageRescue checks on the outstanding rescue order. A full fill
// resolves the cross. A rescue that died without filling is cleared so
// the next pass re-evaluates the legs. A rescue resting past the
// timeout is a stuck state needing an operator; keep waiting loudly.
func (l *Lifecycle) manageRescue() error {
	c := l.cross
	order, err := l.store.Get(c.RescueOrderID)
	if err != nil {
		return exception.Fatal(errors.Wrap(err, "rescue order vanished"))
	}
	logs.Infof("there is a rescue order: %s %f/%f on venue %d",
		order.CurrentID, order.CumQty, order.Qty, order.VenueID)

	if order.FullyFilled() {
		logs.Infof("rescue succeeded: %s", c.RescueOrderID)
		l.cross = nil
		return nil
	}

	pending := l.store.IsPending(c.RescueOrderID)
	alive := l.store.IsAlive(c.RescueOrderID)
	expired := !l.now().Before(c.RescueStartedAt.Add(rescueTimeout))

	if !pending && !alive && !expired {
		logs.Warnf("rescue order %s died unfilled, re-evaluating legs", c.RescueOrderID)
		c.RescueOrderID = schema.ZeroOrderID
		return nil
	}
	if expired {
		logs.Errorf("rescue expired after %s - maybe cancel/replace failed? order=%s %f/%f",
			rescueTimeout, c.RescueOrderID, order.CumQty, order.Qty)
	}
	return nil
}

// KillCross unwinds the cross. Equal fills on both legs just need
// idempotent cancels; unequal fills need the larger leg cancelled and
// the shortfall rescued at a price likely to transact.
func (l *Lifecycle) KillCross() error {
	c := l.cross
	if !c.Sent {
		return exception.Fatal(exception.ErrCrossNotSent)
	}
	bid, err := l.store.Get(c.BidOrderID)
	if err != nil {
		return exception.Fatal(errors.Wrap(err, "bid leg vanished"))
	}
	offer, err := l.store.Get(c.OfferOrderID)
	if err != nil {
		return exception.Fatal(errors.Wrap(err, "offer leg vanished"))
	}
	logs.Infof("kill_cross evaluating: bid %f/%f, offer %f/%f",
		bid.CumQty, bid.Qty, offer.CumQty, offer.Qty)

	switch {
	case bid.CumQty == offer.CumQty:
		if !c.sentBidCancel {
			if _, err := l.store.CancelIfAlive(bid.CurrentID); err != nil {
				return errors.Wrap(err, "cancel bid leg")
			}
			c.sentBidCancel = true
		} else {
			logs.Infof("not sending bid cancel again")
		}
		if !c.sentOfferCancel {
			if _, err := l.store.CancelIfAlive(offer.CurrentID); err != nil {
				return errors.Wrap(err, "cancel offer leg")
			}
			c.sentOfferCancel = true
		} else {
			logs.Infof("not sending offer cancel again")
		}
		bidDead := !l.store.IsAlive(bid.CurrentID) && !l.store.IsPending(c.BidOrderID)
		offerDead := !l.store.IsAlive(offer.CurrentID) && !l.store.IsPending(c.OfferOrderID)
		if bidDead && offerDead {
			logs.Warnf("both orders dead")
			return l.bothDead(bid, offer)
		}
		return nil
	case bid.CumQty > offer.CumQty:
		logs.Infof("closing unbalanced cross with bid filled %f, offer filled %f", bid.CumQty, offer.CumQty)
		return l.closeUnbalanced(bid, offer)
	default:
		logs.Infof("closing unbalanced cross with bid filled %f, offer filled %f", bid.CumQty, offer.CumQty)
		return l.closeUnbalanced(offer, bid)
	}
}

// bothDead handles two terminal legs: unequal fills escalate to the
// unwind path, equal nonzero fills complete the cross with realized
// profit, equal zero fills resolve with no position impact.
func (l *Lifecycle) bothDead(bid, offer *om.Order) error {
	logs.Infof("both_dead(bid=%f/%f, offer=%f/%f)", bid.CumQty, bid.Qty, offer.CumQty, offer.Qty)
	switch {
	case bid.CumQty > offer.CumQty:
		return l.closeUnbalanced(bid, offer)
	case bid.CumQty < offer.CumQty:
		return l.closeUnbalanced(offer, bid)
	case bid.CumQty == 0:
		logs.Infof("cross died without any fills")
		l.cross = nil
		return nil
	default:
		expected := bid.CumQty * (offer.Price - bid.Price)
		profit := bid.CumQty * (offer.AvgPrice - bid.AvgPrice)
		logs.Infof("cross completed! profit expected %f, got %f on %s", expected, profit, bid.Symbol)
		if l.onComplete != nil {
			l.onComplete(l.cross, bid.CumQty, bid.AvgPrice, offer.AvgPrice, profit)
		}
		l.cross = nil
		return nil
	}
}

// closeUnbalanced cancels the larger-filled leg and rescues the fill
// shortfall on the smaller one: a cancel-replace at the liquidation
// price while the leg is still alive, or a brand-new order when it
// already died. The resulting id is recorded as the cross's rescue.
func (l *Lifecycle) closeUnbalanced(bigger, smaller *om.Order) error {
	c := l.cross
	logs.Infof("close unbalanced cross: bigger %f/%f on venue %d, smaller %f/%f on venue %d",
		bigger.CumQty, bigger.Qty, bigger.VenueID, smaller.CumQty, smaller.Qty, smaller.VenueID)

	if _, err := l.store.CancelIfAlive(bigger.CurrentID); err != nil {
		return errors.Wrap(err, "cancel bigger leg")
	}

	qtyDiff := bigger.CumQty - smaller.CumQty
	if qtyDiff <= 0 {
		return exception.Fatal(errors.Errorf("close_unbalanced_cross with no fill difference: %f", qtyDiff))
	}

	if l.store.IsAlive(smaller.CurrentID) {
		logs.Infof("order %s is alive - attempting cancel/replace rescue", smaller.CurrentID)
		rescueID, err := l.store.LiquidateOrder(l.book, smaller.CurrentID, qtyDiff)
		if err != nil {
			return errors.Wrap(err, "liquidate smaller leg")
		}
		c.setRescue(rescueID, l.now())
	} else {
		logs.Infof("dead order for %s on venue %d (side %s, filled %f) needs %f",
			smaller.Symbol, smaller.VenueID, smaller.Side, smaller.CumQty, bigger.CumQty)
		price, err := l.book.LiquidationPrice(smaller.Side, smaller.Symbol, smaller.VenueID)
		if err != nil {
			return errors.Wrap(err, "liquidation price for rescue")
		}
		rescueID, err := l.store.SubmitNew(smaller.VenueID, smaller.Symbol, smaller.Side,
			price, qtyDiff, enum.OrderTypeLimit, enum.TimeInForceGTC)
		if err != nil {
			return errors.Wrap(err, "send rescue order")
		}
		logs.Infof("liquidation qty=%f price=%f", qtyDiff, price)
		c.setRescue(rescueID, l.now())
	}

	logs.Infof("rescue order: %s", c.RescueOrderID)
	return nil
}
