package uncross

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/capitalk/strategy/internal/md"
	"github.com/capitalk/strategy/internal/om"
	"github.com/capitalk/strategy/internal/schema"
	"github.com/capitalk/strategy/internal/schema/enum"
	"github.com/capitalk/strategy/internal/venue"
	"github.com/capitalk/strategy/pkg/exception"
)

type captureSender struct {
	requests []schema.OrderRequest
}

func (s *captureSender) SendOrderRequest(req schema.OrderRequest) error {
	s.requests = append(s.requests, req)
	return nil
}

type fixture struct {
	store     *om.Store
	book      *md.Book
	lifecycle *Lifecycle
	sender    *captureSender
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	reg := venue.NewRegistry()
	require.NoError(t, reg.Add(venue.Venue{ID: 1, MIC: "XONE", OrderAddr: "ws://one", MarketDataAddr: "ws://one-md"}))
	require.NoError(t, reg.Add(venue.Venue{ID: 2, MIC: "XTWO", OrderAddr: "ws://two", MarketDataAddr: "ws://two-md"}))
	sender := &captureSender{}
	store := om.NewStore(uuid.New(), reg, sender)
	book := md.NewBook()
	return &fixture{
		store:     store,
		book:      book,
		lifecycle: NewLifecycle(store, book, 0),
		sender:    sender,
	}
}

func (f *fixture) crossedBook(t *testing.T) {
	t.Helper()
	f.book.Update(schema.QuoteTick{Symbol: "EUR/USD", VenueID: 1, BidPrice: 1.2010, BidSize: 1e6, AskPrice: 1.2015, AskSize: 1e6})
	f.book.Update(schema.QuoteTick{Symbol: "EUR/USD", VenueID: 2, BidPrice: 1.2000, BidSize: 2e6, AskPrice: 1.2005, AskSize: 2e6})
}

func (f *fixture) detectedCross(t *testing.T) *Cross {
	t.Helper()
	bid, err := f.book.BestBid("EUR/USD")
	require.NoError(t, err)
	offer, err := f.book.BestOffer("EUR/USD")
	require.NoError(t, err)
	return &Cross{Bid: bid, Offer: offer, CreatedAt: time.Now()}
}

func (f *fixture) ack(t *testing.T, id schema.OrderID) {
	t.Helper()
	require.NoError(t, f.store.ApplyExecutionReport(schema.ExecutionReport{
		ClOrderID:     id,
		OrigClOrderID: id,
		Symbol:        "EUR/USD",
		ExecTransType: enum.ExecTransTypeNew,
		ExecType:      enum.ExecTypeNew,
		OrderStatus:   enum.OrderStatusNew,
	}))
}

func (f *fixture) fill(t *testing.T, id schema.OrderID, qty, cum float64, price float64) {
	t.Helper()
	status := enum.OrderStatusPartialFill
	execType := enum.ExecTypePartialFill
	if cum >= qty {
		status = enum.OrderStatusFill
		execType = enum.ExecTypeFill
	}
	require.NoError(t, f.store.ApplyExecutionReport(schema.ExecutionReport{
		ClOrderID:     id,
		OrigClOrderID: id,
		Symbol:        "EUR/USD",
		ExecTransType: enum.ExecTransTypeNew,
		ExecType:      execType,
		OrderStatus:   status,
		OrderQty:      qty,
		CumQty:        cum,
		LeavesQty:     qty - cum,
		AvgPrice:      price,
		LastPrice:     price,
		LastShares:    cum,
	}))
}

func (f *fixture) die(t *testing.T, id schema.OrderID, qty, cum float64) {
	t.Helper()
	require.NoError(t, f.store.ApplyExecutionReport(schema.ExecutionReport{
		ClOrderID:     id,
		OrigClOrderID: id,
		Symbol:        "EUR/USD",
		ExecTransType: enum.ExecTransTypeNew,
		ExecType:      enum.ExecTypeCancelled,
		OrderStatus:   enum.OrderStatusCancelled,
		OrderQty:      qty,
		CumQty:        cum,
		LeavesQty:     0,
	}))
}

func TestSendDispatchesBothLegs(t *testing.T) {
	f := newFixture(t)
	f.crossedBook(t)
	c := f.detectedCross(t)

	require.NoError(t, f.lifecycle.Adopt(c))
	require.NoError(t, f.lifecycle.Send())

	assert.True(t, c.Sent)
	assert.False(t, c.BidOrderID.IsZero())
	assert.False(t, c.OfferOrderID.IsZero())
	require.Len(t, f.sender.requests, 2)

	// the thinner bid side means the sell goes out first
	first, second := f.sender.requests[0], f.sender.requests[1]
	assert.Equal(t, enum.SideOffer, first.Side)
	assert.Equal(t, schema.VenueID(1), first.VenueID)
	assert.Equal(t, 1.2010, first.Price)
	assert.Equal(t, enum.SideBid, second.Side)
	assert.Equal(t, schema.VenueID(2), second.VenueID)
	assert.Equal(t, 1.2005, second.Price)
	assert.Equal(t, 1e6, first.Qty)
	assert.Equal(t, 1e6, second.Qty)
}

func TestSendTwiceIsFatal(t *testing.T) {
	f := newFixture(t)
	f.crossedBook(t)
	require.NoError(t, f.lifecycle.Adopt(f.detectedCross(t)))
	require.NoError(t, f.lifecycle.Send())

	err := f.lifecycle.Send()
	require.Error(t, err)
	assert.True(t, exception.IsFatal(err))
}

func TestSendValidatesInvariants(t *testing.T) {
	f := newFixture(t)

	uncrossed := &Cross{
		Bid:       md.Entry{Symbol: "EUR/USD", VenueID: 1, Price: 1.2000, Size: 1e6},
		Offer:     md.Entry{Symbol: "EUR/USD", VenueID: 2, Price: 1.2005, Size: 1e6},
		CreatedAt: time.Now(),
	}
	require.NoError(t, f.lifecycle.Adopt(uncrossed))
	err := f.lifecycle.Send()
	require.Error(t, err)
	assert.True(t, exception.IsFatal(err))

	f2 := newFixture(t)
	mismatched := &Cross{
		Bid:       md.Entry{Symbol: "EUR/USD", VenueID: 1, Price: 1.2010, Size: 1e6},
		Offer:     md.Entry{Symbol: "GBP/USD", VenueID: 2, Price: 1.2005, Size: 1e6},
		CreatedAt: time.Now(),
	}
	require.NoError(t, f2.lifecycle.Adopt(mismatched))
	err = f2.lifecycle.Send()
	require.Error(t, err)
	assert.True(t, exception.IsFatal(err))
}

func TestSendClampsQtyToMax(t *testing.T) {
	f := newFixture(t)
	f.crossedBook(t)
	f.lifecycle.maxOrderQty = 5e5

	require.NoError(t, f.lifecycle.Adopt(f.detectedCross(t)))
	require.NoError(t, f.lifecycle.Send())

	require.Len(t, f.sender.requests, 2)
	assert.Equal(t, 5e5, f.sender.requests[0].Qty)
	assert.Equal(t, 5e5, f.sender.requests[1].Qty)
}

func TestSendWhenReadyHonorsDelay(t *testing.T) {
	f := newFixture(t)
	f.crossedBook(t)
	c := f.detectedCross(t)
	require.NoError(t, f.lifecycle.Adopt(c))

	now := c.CreatedAt
	f.lifecycle.SetClock(func() time.Time { return now })

	require.NoError(t, f.lifecycle.SendWhenReady(time.Second))
	assert.False(t, c.Sent)
	assert.Empty(t, f.sender.requests)

	now = c.CreatedAt.Add(time.Second)
	require.NoError(t, f.lifecycle.SendWhenReady(time.Second))
	assert.True(t, c.Sent)
	assert.Len(t, f.sender.requests, 2)
}

func TestAsymmetricFillUnwind(t *testing.T) {
	f := newFixture(t)
	f.crossedBook(t)
	c := f.detectedCross(t)
	require.NoError(t, f.lifecycle.Adopt(c))
	require.NoError(t, f.lifecycle.Send())

	f.ack(t, c.BidOrderID)
	f.ack(t, c.OfferOrderID)

	// buy leg fills completely, sell leg dies at 400k of 1m
	f.fill(t, c.BidOrderID, 1e6, 1e6, 1.2005)
	f.fill(t, c.OfferOrderID, 1e6, 4e5, 1.2010)
	f.die(t, c.OfferOrderID, 1e6, 4e5)

	before := len(f.sender.requests)
	require.NoError(t, f.lifecycle.ManageActiveCross(time.Hour))

	require.False(t, c.RescueOrderID.IsZero())
	require.Len(t, f.sender.requests, before+1)
	rescue := f.sender.requests[before]
	assert.Equal(t, enum.RequestKindNew, rescue.Kind)
	assert.Equal(t, c.RescueOrderID, rescue.RequestID)
	assert.Equal(t, 6e5, rescue.Qty)
	assert.Equal(t, enum.SideOffer, rescue.Side)
	// 3bp through venue 1's bid, the sell leg's venue
	assert.Equal(t, 1.20064, rescue.Price)
	assert.True(t, f.lifecycle.Active())
}

func TestRescueFillResolvesCross(t *testing.T) {
	f := newFixture(t)
	f.crossedBook(t)
	c := f.detectedCross(t)
	require.NoError(t, f.lifecycle.Adopt(c))
	require.NoError(t, f.lifecycle.Send())

	f.ack(t, c.BidOrderID)
	f.ack(t, c.OfferOrderID)
	f.fill(t, c.BidOrderID, 1e6, 1e6, 1.2005)
	f.fill(t, c.OfferOrderID, 1e6, 4e5, 1.2010)
	f.die(t, c.OfferOrderID, 1e6, 4e5)
	require.NoError(t, f.lifecycle.ManageActiveCross(time.Hour))
	require.False(t, c.RescueOrderID.IsZero())

	f.ack(t, c.RescueOrderID)
	f.fill(t, c.RescueOrderID, 6e5, 6e5, 1.20064)

	require.NoError(t, f.lifecycle.ManageActiveCross(time.Hour))
	assert.False(t, f.lifecycle.Active())
}

func TestKillCrossEqualFillsCancelsOnce(t *testing.T) {
	f := newFixture(t)
	f.crossedBook(t)
	c := f.detectedCross(t)
	require.NoError(t, f.lifecycle.Adopt(c))
	require.NoError(t, f.lifecycle.Send())
	f.ack(t, c.BidOrderID)
	f.ack(t, c.OfferOrderID)

	before := len(f.sender.requests)
	require.NoError(t, f.lifecycle.KillCross())
	assert.Len(t, f.sender.requests, before+2)

	// a second kill must not resend the cancels
	require.NoError(t, f.lifecycle.KillCross())
	assert.Len(t, f.sender.requests, before+2)
}

func TestCrossExpiresIntoKill(t *testing.T) {
	f := newFixture(t)
	f.crossedBook(t)
	c := f.detectedCross(t)
	require.NoError(t, f.lifecycle.Adopt(c))
	require.NoError(t, f.lifecycle.Send())
	f.ack(t, c.BidOrderID)
	f.ack(t, c.OfferOrderID)

	before := len(f.sender.requests)
	require.NoError(t, f.lifecycle.ManageActiveCross(0))
	// both unfilled legs got cancels
	assert.Len(t, f.sender.requests, before+2)
}

func TestCompletedCrossReportsProfit(t *testing.T) {
	f := newFixture(t)
	f.crossedBook(t)
	c := f.detectedCross(t)

	var gotQty, gotProfit float64
	completions := 0
	f.lifecycle.SetOnComplete(func(_ *Cross, filledQty, bidAvg, offerAvg, profit float64) {
		completions++
		gotQty = filledQty
		gotProfit = profit
	})

	require.NoError(t, f.lifecycle.Adopt(c))
	require.NoError(t, f.lifecycle.Send())
	f.ack(t, c.BidOrderID)
	f.ack(t, c.OfferOrderID)
	f.fill(t, c.BidOrderID, 1e6, 1e6, 1.2005)
	f.fill(t, c.OfferOrderID, 1e6, 1e6, 1.2010)

	require.NoError(t, f.lifecycle.ManageActiveCross(time.Hour))
	assert.False(t, f.lifecycle.Active())
	assert.Equal(t, 1, completions)
	assert.Equal(t, 1e6, gotQty)
	assert.InDelta(t, 500.0, gotProfit, 1e-6)
}

func TestCrossDiesWithoutFills(t *testing.T) {
	f := newFixture(t)
	f.crossedBook(t)
	c := f.detectedCross(t)
	require.NoError(t, f.lifecycle.Adopt(c))
	require.NoError(t, f.lifecycle.Send())
	f.ack(t, c.BidOrderID)
	f.ack(t, c.OfferOrderID)
	f.die(t, c.BidOrderID, 1e6, 0)
	f.die(t, c.OfferOrderID, 1e6, 0)

	require.NoError(t, f.lifecycle.ManageActiveCross(time.Hour))
	assert.False(t, f.lifecycle.Active())
}
