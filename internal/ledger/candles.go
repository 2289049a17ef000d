package ledger

import (
	"sort"

	"tradeledger/internal/domain"
)

const (
	// DefaultCandlePeriod is the bucket width in seconds.
	DefaultCandlePeriod = 10.0
	// DefaultCandleLimit is the number of buckets kept per symbol.
	DefaultCandleLimit = 50
)

// Candles buckets a per-symbol price stream into OHLC summaries.
// Each symbol keeps at most limit buckets; older ones are evicted first.
type Candles struct {
	period  float64
	limit   int
	history map[string][]domain.Candle
}

// NewCandles creates an aggregator. Non-positive arguments fall back to the defaults.
func NewCandles(period float64, limit int) *Candles {
	if period <= 0 {
		period = DefaultCandlePeriod
	}
	if limit <= 0 {
		limit = DefaultCandleLimit
	}
	return &Candles{
		period:  period,
		limit:   limit,
		history: make(map[string][]domain.Candle),
	}
}

// Period returns the bucket width in seconds.
func (c *Candles) Period() float64 {
	return c.period
}

// Record folds one price point into the symbol's latest bucket or opens a new one.
func (c *Candles) Record(symbol string, price, timestamp float64) {
	candles := c.history[symbol]
	if n := len(candles); n > 0 && timestamp < candles[n-1].Start+c.period {
		latest := &candles[n-1]
		latest.High = max(latest.High, price)
		latest.Low = min(latest.Low, price)
		latest.Close = price
		return
	}

	candles = append(candles, domain.Candle{
		Start: timestamp,
		Open:  price,
		High:  price,
		Low:   price,
		Close: price,
	})
	if over := len(candles) - c.limit; over > 0 {
		kept := copy(candles, candles[over:])
		candles = candles[:kept]
	}
	c.history[symbol] = candles
}

// History returns a copy of the symbol's buckets, oldest first.
// Unknown symbols yield an empty slice.
func (c *Candles) History(symbol string) []domain.Candle {
	candles := c.history[symbol]
	out := make([]domain.Candle, len(candles))
	copy(out, candles)
	return out
}

// Latest returns the most recent bucket for symbol.
func (c *Candles) Latest(symbol string) (domain.Candle, bool) {
	candles := c.history[symbol]
	if len(candles) == 0 {
		return domain.Candle{}, false
	}
	return candles[len(candles)-1], true
}

// Symbols lists every symbol with history, sorted.
func (c *Candles) Symbols() []string {
	symbols := make([]string, 0, len(c.history))
	for s := range c.history {
		symbols = append(symbols, s)
	}
	sort.Strings(symbols)
	return symbols
}
