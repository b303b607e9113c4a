package feed

import (
	"context"
	"strconv"

	"github.com/yanun0323/decimal"
	"github.com/yanun0323/errors"
	"github.com/yanun0323/logs"
	"github.com/yanun0323/pkg/sys"
	"github.com/yanun0323/pkg/ws"

	"github.com/capitalk/strategy/internal/bus"
	"github.com/capitalk/strategy/internal/obs"
	"github.com/capitalk/strategy/internal/schema"
	"github.com/capitalk/strategy/internal/venue"
	"github.com/capitalk/strategy/pkg/exception"
)

// MarketDataFeed subscribes to one venue's best bid/offer stream and
// publishes quote ticks onto the strategy queue.
type MarketDataFeed struct {
	venue   venue.Venue
	wss     *ws.WebSocket
	queue   *bus.Queue
	metrics *obs.Metrics
}

func NewMarketDataFeed(ctx context.Context, v venue.Venue, queue *bus.Queue, metrics *obs.Metrics) *MarketDataFeed {
	return &MarketDataFeed{
		venue:   v,
		wss:     ws.New(ctx, v.MarketDataAddr),
		queue:   queue,
		metrics: metrics,
	}
}

func (f *MarketDataFeed) Start(ctx context.Context) error {
	if err := f.wss.Start(ctx); err != nil {
		return errors.Wrap(err, "start market data wss")
	}
	return nil
}

func (f *MarketDataFeed) Close() {
	f.wss.Close()
}

type bboSubscribeRequest struct {
	Op      string   `json:"op"`
	Symbols []string `json:"symbols"`
	ID      int64    `json:"id"`
}

type bboSubscribeResponse struct {
	ID     int64 `json:"id"`
	Result any   `json:"result"`
}

func subscribeResponseParser(m ws.Message) (bboSubscribeResponse, bool) {
	var resp bboSubscribeResponse
	err := m.Unmarshal(&resp)
	return resp, err == nil
}

// SubscribeBBO subscribes the venue's top-of-book stream for symbols.
func (f *MarketDataFeed) SubscribeBBO(ctx context.Context, symbols []string) error {
	appendIntoRegister := true
	if err := f.wss.SendAndWait(ctx, ws.Sidecar{
		Sender: func(ctx context.Context, ws *ws.WebSocket) error {
			payload := bboSubscribeRequest{
				Op:      "subscribe",
				Symbols: symbols,
				ID:      1,
			}

			if err := ws.WriteJSON(payload); err != nil {
				return errors.Wrap(err, "write subscribe payload").With("payload", payload)
			}

			return nil
		},
		Waiter: func(ctx context.Context, m ws.Message) (bool, error) {
			resp, ok := subscribeResponseParser(m)
			if !ok || resp.ID != 1 {
				return false, nil
			}

			if resp.Result != nil {
				return false, errors.Errorf("subscribe and wait, err: %+v", resp.Result)
			}
			return true, nil
		},
	}, appendIntoRegister); err != nil {
		return errors.Wrap(err, "send and wait")
	}

	return nil
}

type bboUpdate struct {
	Type     string          `json:"type"`
	Symbol   string          `json:"symbol"`
	VenueID  int64           `json:"venueId"`
	BidPrice decimal.Decimal `json:"bidPrice"`
	BidSize  decimal.Decimal `json:"bidSize"`
	AskPrice decimal.Decimal `json:"askPrice"`
	AskSize  decimal.Decimal `json:"askSize"`
}

// Observe pumps top-of-book updates into the strategy queue until the
// context is done or the process is shutting down.
func (f *MarketDataFeed) Observe(ctx context.Context) (unsubscribe func()) {
	ch, cancel := f.wss.Subscribe()

	go func() {
		defer cancel()
		for {
			select {
			case <-sys.Shutdown():
				return
			case <-ctx.Done():
				return
			case m, ok := <-ch:
				if !ok {
					return
				}

				update, ok := ws.ReadMessage[bboUpdate](m)
				if !ok || update.Type != "bbo" {
					continue
				}

				f.publish(update)
			}
		}
	}()

	return cancel
}

func (f *MarketDataFeed) publish(update bboUpdate) {
	tick := schema.QuoteTick{
		Symbol:   update.Symbol,
		VenueID:  schema.VenueID(update.VenueID),
		BidPrice: decimalToFloat(update.BidPrice),
		BidSize:  decimalToFloat(update.BidSize),
		AskPrice: decimalToFloat(update.AskPrice),
		AskSize:  decimalToFloat(update.AskSize),
	}
	switch err := f.queue.TryPublish(bus.Event{Tick: &tick}); err {
	case nil:
	case exception.ErrStrategyQueueFull:
		f.metrics.IncQueueDrop()
		logs.Warnf("dropping tick for %s, strategy queue full", tick.Symbol)
	case exception.ErrStrategyQueueClosed:
		f.metrics.IncQueueClosed()
	}
}

func decimalToFloat(d decimal.Decimal) float64 {
	v, err := strconv.ParseFloat(d.String(), 64)
	if err != nil {
		return 0
	}
	return v
}
