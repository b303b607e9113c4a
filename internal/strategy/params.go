package strategy

import "time"

// Params are the resolved runtime parameters of the uncrosser.
type Params struct {
	// MinCrossMagnitude is the smallest normalized cross worth trading.
	MinCrossMagnitude float64
	// NewOrderDelay holds a detected cross back before sending its
	// legs, for testing and risk controls. Zero sends immediately.
	NewOrderDelay time.Duration
	// MaxOrderLifetime bounds how long the legs may rest before the
	// cross is unwound.
	MaxOrderLifetime time.Duration
	// MaxOrderQty caps the quantity of any single leg.
	MaxOrderQty float64
	// WarmupWindow is the market data synchronization window at
	// startup during which no trading decisions are made.
	WarmupWindow time.Duration
}

// DefaultParams returns the stock parameter set.
func DefaultParams() Params {
	return Params{
		MinCrossMagnitude: 0,
		NewOrderDelay:     0,
		MaxOrderLifetime:  5 * time.Second,
		MaxOrderQty:       1e8,
		WarmupWindow:      time.Second,
	}
}
