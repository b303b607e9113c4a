package exception

import "errors"

var (
	ErrMarketDataNoQuotes     = errors.New("market data: no quotes for symbol")
	ErrMarketDataNoVenueQuote = errors.New("market data: no quote for venue")
	ErrMarketDataInvalidSide  = errors.New("market data: invalid side")
	ErrMarketDataNilConsumer  = errors.New("market data: nil consumer")
)
