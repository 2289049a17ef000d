package domain

import "fmt"

// Trade represents a single buy or sell entry in the ledger.
type Trade struct {
	Symbol        string    // Trading symbol (e.g., "ABC")
	Timestamp     float64   // Creation time in seconds, strictly increasing across the ledger
	Price         float64   // Current price, mutated by price updates
	Volume        int64     // Remaining volume for Buy trades, fixed for Sell trades
	OriginalPrice float64   // Price at which the position was opened
	Type          TradeType // BUY or SELL
}

// PerformanceMetric is the ranking value used for best/worst queries.
func (t Trade) PerformanceMetric() float64 {
	return (t.Price - t.OriginalPrice) * float64(t.Volume)
}

// IsActiveBuy reports whether the trade is a Buy with remaining volume.
func (t Trade) IsActiveBuy() bool {
	return t.Type == Buy && t.Volume > 0
}

func (t Trade) String() string {
	return fmt.Sprintf("Trade(Symbol: %s, Type: %s, Price: %.2f, Volume: %d, Orig.Price: %.2f, Time: %.2f)",
		t.Symbol, t.Type, t.Price, t.Volume, t.OriginalPrice, t.Timestamp)
}
