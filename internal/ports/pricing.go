package ports

import "context"

// PriceGenerator produces the next simulated price for a trade.
// maxFluctuation is a fraction in [0,1). For a positive current price the
// result must be a finite positive number.
type PriceGenerator interface {
	NextPrice(currentPrice, maxFluctuation float64) float64
}

// MarketQuoter supplies live market prices for symbols.
type MarketQuoter interface {
	// GetTickerPrice retrieves the last traded price for a given symbol.
	GetTickerPrice(ctx context.Context, symbol string) (float64, error)
}
