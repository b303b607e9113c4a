package uncross

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/capitalk/strategy/internal/md"
	"github.com/capitalk/strategy/internal/schema"
)

func tick(symbol string, venue schema.VenueID, bidPx, bidSz, askPx, askSz float64) schema.QuoteTick {
	return schema.QuoteTick{
		Symbol:   symbol,
		VenueID:  venue,
		BidPrice: bidPx,
		BidSize:  bidSz,
		AskPrice: askPx,
		AskSize:  askSz,
	}
}

func feedBook(d *Detector, b *md.Book, ticks ...schema.QuoteTick) {
	for _, t := range ticks {
		if b.Update(t) {
			d.MarkDirty(t.Symbol)
		}
	}
}

func TestFindBestCrossedPair(t *testing.T) {
	b := md.NewBook()
	d := NewDetector(b)
	feedBook(d, b,
		tick("EUR/USD", 1, 1.2010, 1e6, 1.2015, 1e6),
		tick("EUR/USD", 2, 1.2000, 2e6, 1.2005, 2e6),
	)

	// (1.2010 - 1.2005) * 1_000_000 = 500
	c := d.FindBestCrossedPair(100)
	require.NotNil(t, c)
	assert.Equal(t, schema.VenueID(1), c.Bid.VenueID)
	assert.Equal(t, schema.VenueID(2), c.Offer.VenueID)
	assert.Equal(t, 1.2010, c.Bid.Price)
	assert.Equal(t, 1.2005, c.Offer.Price)
	assert.Equal(t, 1e6, c.Qty())
}

func TestFindBestCrossedPairBelowThreshold(t *testing.T) {
	b := md.NewBook()
	d := NewDetector(b)
	feedBook(d, b,
		tick("EUR/USD", 1, 1.2010, 1e6, 1.2015, 1e6),
		tick("EUR/USD", 2, 1.2000, 2e6, 1.2005, 2e6),
	)

	assert.Nil(t, d.FindBestCrossedPair(1000))
}

func TestFindBestCrossedPairYenNormalization(t *testing.T) {
	b := md.NewBook()
	d := NewDetector(b)
	feedBook(d, b,
		tick("USD/JPY", 1, 80.500, 1e6, 80.700, 1e6),
		tick("USD/JPY", 2, 79.900, 1e6, 80.000, 1e6),
	)

	// (80.500 - 80.000) * 1_000_000 / 80 = 6250
	c := d.FindBestCrossedPair(6250)
	require.NotNil(t, c)
	assert.Equal(t, 80.500, c.Bid.Price)
	assert.Equal(t, 80.000, c.Offer.Price)

	// a hair above the normalized magnitude rejects it
	feedBook(d, b, tick("USD/JPY", 2, 79.900, 2e6, 80.000, 1e6))
	assert.Nil(t, d.FindBestCrossedPair(6251))
}

func TestDirtySetClearedUnconditionally(t *testing.T) {
	b := md.NewBook()
	d := NewDetector(b)
	feedBook(d, b,
		tick("EUR/USD", 1, 1.2010, 1e6, 1.2015, 1e6),
		tick("EUR/USD", 2, 1.2000, 2e6, 1.2005, 2e6),
	)

	// too small to take, but the scan still clears the dirty set
	assert.Nil(t, d.FindBestCrossedPair(1000))
	assert.Equal(t, 0, d.DirtyCount())

	// quotes unchanged, so a lower threshold finds nothing to scan
	assert.Nil(t, d.FindBestCrossedPair(100))
}

func TestNoCrossOnUncrossedBook(t *testing.T) {
	b := md.NewBook()
	d := NewDetector(b)
	feedBook(d, b,
		tick("EUR/USD", 1, 1.2000, 1e6, 1.2005, 1e6),
		tick("EUR/USD", 2, 1.2001, 1e6, 1.2004, 1e6),
	)

	assert.Nil(t, d.FindBestCrossedPair(0))
}

func TestBestOfMultipleCrosses(t *testing.T) {
	b := md.NewBook()
	d := NewDetector(b)
	feedBook(d, b,
		tick("EUR/USD", 1, 1.2010, 1e6, 1.2015, 1e6),
		tick("EUR/USD", 2, 1.2000, 2e6, 1.2005, 2e6),
		tick("EUR/USD", 3, 1.2002, 5e5, 1.2003, 5e5),
	)

	// venue1 bid vs venue3 offer: 0.0007 * 500_000 = 350
	// venue1 bid vs venue2 offer: 0.0005 * 1_000_000 = 500
	c := d.FindBestCrossedPair(0)
	require.NotNil(t, c)
	assert.Equal(t, schema.VenueID(1), c.Bid.VenueID)
	assert.Equal(t, schema.VenueID(2), c.Offer.VenueID)
}
