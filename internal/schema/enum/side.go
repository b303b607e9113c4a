package enum

// Side bid, offer
type Side uint8

const (
	_side_beg Side = iota
	SideBid
	SideOffer
	_side_end
)

func (s Side) IsAvailable() bool {
	return s > _side_beg && s < _side_end
}

// Opposite returns the other side of the book.
func (s Side) Opposite() Side {
	switch s {
	case SideBid:
		return SideOffer
	case SideOffer:
		return SideBid
	default:
		return s
	}
}

func (s Side) String() string {
	switch s {
	case SideBid:
		return "BID"
	case SideOffer:
		return "OFFER"
	default:
		return "UNKNOWN"
	}
}
