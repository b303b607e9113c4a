package uncross

import (
	"strings"
	"time"

	"github.com/yanun0323/logs"

	"github.com/capitalk/strategy/internal/md"
)

// yenMagnitudeDivisor roughly converts a JPY-quoted cross magnitude
// into USD terms so one threshold works across quote currencies. Fixed
// approximation, not a live rate.
const yenMagnitudeDivisor = 80.0

// Detector scans the book for crossed quotes. It only looks at symbols
// whose quotes changed since the previous scan; the dirty set is
// cleared at the end of every scan whether or not a cross was taken,
// so a symbol whose best cross fell below the threshold is not
// rechecked until its quotes move again.
type Detector struct {
	book  *md.Book
	dirty map[string]struct{}
	now   func() time.Time
}

func NewDetector(book *md.Book) *Detector {
	return &Detector{
		book:  book,
		dirty: make(map[string]struct{}),
		now:   time.Now,
	}
}

// SetClock overrides the time source, for tests.
func (d *Detector) SetClock(now func() time.Time) {
	d.now = now
}

// MarkDirty flags a symbol for the next scan.
func (d *Detector) MarkDirty(symbol string) {
	d.dirty[symbol] = struct{}{}
}

// DirtyCount returns the number of symbols waiting to be scanned.
func (d *Detector) DirtyCount() int {
	return len(d.dirty)
}

// FindBestCrossedPair returns the highest-magnitude crossed pair among
// the dirty symbols, or nil when nothing crosses or the best cross sits
// below minMagnitude. Bids are walked descending and offers ascending;
// once a bid no longer crosses the cheapest remaining offer no later
// offer can cross it either, so only the inner walk short-circuits.
func (d *Detector) FindBestCrossedPair(minMagnitude float64) *Cross {
	if len(d.dirty) == 0 {
		return nil
	}
	defer d.clearDirty()

	var best *Cross
	bestMagnitude := 0.0
	for symbol := range d.dirty {
		yenPair := strings.Contains(symbol, "JPY")
		bids := d.book.SortedBids(symbol)
		offers := d.book.SortedOffers(symbol)
		for _, bid := range bids {
			for _, offer := range offers {
				diff := bid.Price - offer.Price
				if diff <= 0 {
					break
				}
				size := bid.Size
				if offer.Size < size {
					size = offer.Size
				}
				magnitude := diff * size
				if yenPair {
					magnitude /= yenMagnitudeDivisor
				}
				logs.Infof("cross found: %s (venue %d %f for %f)@(venue %d %f for %f) size=%f magnitude=%f",
					symbol, bid.VenueID, bid.Price, bid.Size,
					offer.VenueID, offer.Price, offer.Size, size, magnitude)
				if magnitude > bestMagnitude {
					best = &Cross{Bid: bid, Offer: offer, CreatedAt: d.now()}
					bestMagnitude = magnitude
				}
			}
		}
	}

	if best != nil && bestMagnitude < minMagnitude {
		logs.Warnf("not sending %s - magnitude %f below threshold %f", best, bestMagnitude, minMagnitude)
		best = nil
	}
	return best
}

func (d *Detector) clearDirty() {
	for symbol := range d.dirty {
		delete(d.dirty, symbol)
	}
}
