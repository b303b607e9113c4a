package md

import (
	"math"
	"sort"
	"strings"
	"time"

	"github.com/yanun0323/logs"

	"github.com/capitalk/strategy/internal/schema"
	"github.com/capitalk/strategy/internal/schema/enum"
	"github.com/capitalk/strategy/pkg/exception"
)

// Entry is an immutable best bid or offer snapshot from one venue.
// Updates replace the entry, they never mutate it.
type Entry struct {
	Price     float64
	Size      float64
	VenueID   schema.VenueID
	Symbol    string
	Timestamp time.Time
}

// sameQuote compares the market-relevant fields, ignoring the receive
// timestamp, so a repeated identical tick is not reported as a change.
func (e Entry) sameQuote(o Entry) bool {
	return e.Price == o.Price && e.Size == o.Size && e.VenueID == o.VenueID && e.Symbol == o.Symbol
}

// Book aggregates best bid/offer information from multiple venues.
type Book struct {
	bids   map[string]map[schema.VenueID]Entry
	offers map[string]map[schema.VenueID]Entry
	now    func() time.Time
}

// NewBook creates an empty market data book.
func NewBook() *Book {
	return &Book{
		bids:   make(map[string]map[schema.VenueID]Entry),
		offers: make(map[string]map[schema.VenueID]Entry),
		now:    time.Now,
	}
}

// SetClock overrides the timestamp source, for tests.
func (b *Book) SetClock(now func() time.Time) {
	b.now = now
}

// Update stores the tick's bid and offer entries, replacing any prior
// entries for that (symbol, venue). It returns true iff either side
// differs from what was stored before. A zero venue id is malformed
// upstream data and is remapped to schema.UnknownVenueID. A
// non-positive price means the venue currently quotes nothing on that
// side; the stored entry is dropped rather than kept as a zero level.
func (b *Book) Update(tick schema.QuoteTick) bool {
	venueID := tick.VenueID
	if venueID == 0 {
		logs.Warnf("market data venue id is 0 for %s, remapping to %d", tick.Symbol, schema.UnknownVenueID)
		venueID = schema.UnknownVenueID
	}

	ts := b.now()
	bidChanged := storeSide(b.bids, tick.Symbol, venueID,
		Entry{Price: tick.BidPrice, Size: tick.BidSize, VenueID: venueID, Symbol: tick.Symbol, Timestamp: ts})
	offerChanged := storeSide(b.offers, tick.Symbol, venueID,
		Entry{Price: tick.AskPrice, Size: tick.AskSize, VenueID: venueID, Symbol: tick.Symbol, Timestamp: ts})
	return bidChanged || offerChanged
}

func storeSide(side map[string]map[schema.VenueID]Entry, symbol string, venueID schema.VenueID, entry Entry) bool {
	entries, ok := side[symbol]
	if !ok {
		entries = make(map[schema.VenueID]Entry)
		side[symbol] = entries
	}
	old, had := entries[venueID]
	if entry.Price <= 0 {
		delete(entries, venueID)
		return had
	}
	entries[venueID] = entry
	return !had || !old.sameQuote(entry)
}

// Symbols returns every symbol with at least one stored quote.
func (b *Book) Symbols() []string {
	out := make([]string, 0, len(b.bids))
	for sym := range b.bids {
		out = append(out, sym)
	}
	sort.Strings(out)
	return out
}

// BestBid returns the highest bid across venues. Ties break on the
// lowest venue id so the result is deterministic.
func (b *Book) BestBid(symbol string) (Entry, error) {
	return bestEntry(b.bids[symbol], func(candidate, best Entry) bool {
		if candidate.Price != best.Price {
			return candidate.Price > best.Price
		}
		return candidate.VenueID < best.VenueID
	})
}

// BestOffer returns the lowest offer across venues. Ties break on the
// lowest venue id.
func (b *Book) BestOffer(symbol string) (Entry, error) {
	return bestEntry(b.offers[symbol], func(candidate, best Entry) bool {
		if candidate.Price != best.Price {
			return candidate.Price < best.Price
		}
		return candidate.VenueID < best.VenueID
	})
}

// VenueBid returns the stored bid entry for one venue.
func (b *Book) VenueBid(symbol string, venueID schema.VenueID) (Entry, error) {
	return venueEntry(b.bids[symbol], venueID)
}

// VenueOffer returns the stored offer entry for one venue.
func (b *Book) VenueOffer(symbol string, venueID schema.VenueID) (Entry, error) {
	return venueEntry(b.offers[symbol], venueID)
}

// SortedBids returns all venues' bids, best (highest) first.
func (b *Book) SortedBids(symbol string) []Entry {
	return sortedEntries(b.bids[symbol], func(a, c Entry) bool {
		if a.Price != c.Price {
			return a.Price > c.Price
		}
		return a.VenueID < c.VenueID
	})
}

// SortedOffers returns all venues' offers, best (lowest) first.
func (b *Book) SortedOffers(symbol string) []Entry {
	return sortedEntries(b.offers[symbol], func(a, c Entry) bool {
		if a.Price != c.Price {
			return a.Price < c.Price
		}
		return a.VenueID < c.VenueID
	})
}

// LiquidationPrice computes a deliberately unfavorable price for
// unwinding a position on the given side: 3 basis points through the
// best opposite quote, so the order is near certain to transact.
// JPY-quoted symbols round to 3 decimal places, everything else to 5.
// Passing venueID 0 uses the aggregated best quote.
func (b *Book) LiquidationPrice(side enum.Side, symbol string, venueID schema.VenueID) (float64, error) {
	var (
		ref Entry
		err error
	)
	switch side {
	case enum.SideBid:
		// Buying back a short: cross the best offer.
		if venueID != 0 {
			ref, err = b.VenueOffer(symbol, venueID)
		} else {
			ref, err = b.BestOffer(symbol)
		}
		if err != nil {
			return 0, err
		}
		return roundPlaces(ref.Price*1.0003, pricePlaces(symbol)), nil
	case enum.SideOffer:
		// Selling out a long: hit the best bid.
		if venueID != 0 {
			ref, err = b.VenueBid(symbol, venueID)
		} else {
			ref, err = b.BestBid(symbol)
		}
		if err != nil {
			return 0, err
		}
		return roundPlaces(ref.Price*0.9997, pricePlaces(symbol)), nil
	default:
		return 0, exception.ErrMarketDataInvalidSide
	}
}

func pricePlaces(symbol string) int {
	if strings.Contains(symbol, "JPY") {
		return 3
	}
	return 5
}

func roundPlaces(v float64, places int) float64 {
	scale := math.Pow10(places)
	return math.Round(v*scale) / scale
}

func bestEntry(entries map[schema.VenueID]Entry, better func(candidate, best Entry) bool) (Entry, error) {
	if len(entries) == 0 {
		return Entry{}, exception.ErrMarketDataNoQuotes
	}
	var (
		best  Entry
		found bool
	)
	for _, e := range entries {
		if !found || better(e, best) {
			best = e
			found = true
		}
	}
	return best, nil
}

func venueEntry(entries map[schema.VenueID]Entry, venueID schema.VenueID) (Entry, error) {
	if len(entries) == 0 {
		return Entry{}, exception.ErrMarketDataNoQuotes
	}
	e, ok := entries[venueID]
	if !ok {
		return Entry{}, exception.ErrMarketDataNoVenueQuote
	}
	return e, nil
}

func sortedEntries(entries map[schema.VenueID]Entry, less func(a, b Entry) bool) []Entry {
	out := make([]Entry, 0, len(entries))
	for _, e := range entries {
		out = append(out, e)
	}
	sort.Slice(out, func(i, j int) bool { return less(out[i], out[j]) })
	return out
}
