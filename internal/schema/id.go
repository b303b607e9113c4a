package schema

import (
	"strconv"

	"github.com/google/uuid"
)

// OrderID identifies one wire-level request. Order ids and request ids
// share the same space: when a cancel or replace is acknowledged the
// request id becomes the order's new current id.
type OrderID uuid.UUID

// ZeroOrderID is the absent id.
var ZeroOrderID OrderID

// NewOrderID allocates a fresh random id.
func NewOrderID() OrderID {
	return OrderID(uuid.New())
}

// ParseOrderID parses the canonical string form of an id.
func ParseOrderID(s string) (OrderID, error) {
	u, err := uuid.Parse(s)
	if err != nil {
		return ZeroOrderID, err
	}
	return OrderID(u), nil
}

func (id OrderID) String() string {
	return uuid.UUID(id).String()
}

// IsZero reports whether the id is unset.
func (id OrderID) IsZero() bool {
	return id == ZeroOrderID
}

// VenueID is the numeric identifier of an ECN.
type VenueID int64

// UnknownVenueID substitutes a malformed zero venue id in market data.
// A known upstream feed bug produces zero venue ids; they must not be
// dropped, and must not collide with real venue-keyed lookups.
const UnknownVenueID VenueID = 890778

func (v VenueID) String() string {
	return strconv.FormatInt(int64(v), 10)
}
