package feed

import (
	"testing"

	"github.com/bytedance/sonic"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/capitalk/strategy/internal/bus"
	"github.com/capitalk/strategy/internal/obs"
	"github.com/capitalk/strategy/internal/schema"
)

const bboFrame = `{
	"type": "bbo",
	"symbol": "EUR/USD",
	"venueId": 2,
	"bidPrice": "1.2001",
	"bidSize": "1000000",
	"askPrice": "1.2004",
	"askSize": "2000000"
}`

func TestPublishBBOUpdate(t *testing.T) {
	var update bboUpdate
	require.NoError(t, sonic.Unmarshal([]byte(bboFrame), &update))
	require.Equal(t, "bbo", update.Type)

	queue := bus.NewQueue(4)
	f := &MarketDataFeed{queue: queue, metrics: obs.NewMetrics()}
	f.publish(update)

	require.Equal(t, 1, queue.Len())
	e := <-queue.Chan()
	require.NotNil(t, e.Tick)
	assert.Equal(t, "EUR/USD", e.Tick.Symbol)
	assert.Equal(t, schema.VenueID(2), e.Tick.VenueID)
	assert.Equal(t, 1.2001, e.Tick.BidPrice)
	assert.Equal(t, 1e6, e.Tick.BidSize)
	assert.Equal(t, 1.2004, e.Tick.AskPrice)
	assert.Equal(t, 2e6, e.Tick.AskSize)
}

func TestPublishDropsWhenQueueFull(t *testing.T) {
	var update bboUpdate
	require.NoError(t, sonic.Unmarshal([]byte(bboFrame), &update))

	queue := bus.NewQueue(1)
	metrics := obs.NewMetrics()
	f := &MarketDataFeed{queue: queue, metrics: metrics}
	f.publish(update)
	f.publish(update)

	assert.Equal(t, 1, queue.Len())
	assert.Equal(t, uint64(1), metrics.Snapshot().QueueDrops)
}

func TestPublishOnClosedQueue(t *testing.T) {
	var update bboUpdate
	require.NoError(t, sonic.Unmarshal([]byte(bboFrame), &update))

	queue := bus.NewQueue(1)
	queue.Close()
	metrics := obs.NewMetrics()
	f := &MarketDataFeed{queue: queue, metrics: metrics}
	f.publish(update)

	assert.Equal(t, uint64(1), metrics.Snapshot().QueueClosed)
}
