package ledger

import (
	"fmt"
	"iter"
	"math"
	"sort"
	"strings"
	"time"

	"tradeledger/internal/domain"
	"tradeledger/internal/ports"
)

// Config holds construction parameters for a Ledger.
type Config struct {
	InitialCapacity int            // Initial capacity of the trade store
	CandlePeriod    float64        // Candle bucket width in seconds
	CandleLimit     int            // Buckets kept per symbol
	Clock           func() float64 // Wall clock in seconds; defaults to time.Now
}

// Ledger owns every trade and keeps the derived structures in step with it:
// the extremal tracker, the ordered index and the candle aggregator.
//
// Ledger is not safe for concurrent use. After ApplyPriceUpdate the tracker
// and index are stale until RebuildIndexes is called.
type Ledger struct {
	trades  *Sequence[domain.Trade]
	tracker *Tracker
	index   *Index
	candles *Candles

	clock         func() float64
	lastTimestamp float64
	stale         bool
}

// New creates an empty ledger.
func New(cfg Config) *Ledger {
	clock := cfg.Clock
	if clock == nil {
		clock = func() float64 { return float64(time.Now().UnixNano()) / float64(time.Second) }
	}
	l := &Ledger{
		trades:  NewSequence[domain.Trade](cfg.InitialCapacity),
		index:   NewIndex(),
		candles: NewCandles(cfg.CandlePeriod, cfg.CandleLimit),
		clock:   clock,
	}
	l.tracker = NewTracker(l.metric)
	return l
}

// metric is only called with handles the ledger itself pushed, which are always in range.
func (l *Ledger) metric(ref domain.TradeRef) float64 {
	t, _ := l.trades.Get(int(ref))
	return t.PerformanceMetric()
}

// Now returns the next ledger timestamp. Timestamps are strictly increasing
// even if the wall clock stalls or steps back.
func (l *Ledger) Now() float64 {
	ts := l.clock()
	if ts <= l.lastTimestamp {
		ts = math.Nextafter(l.lastTimestamp, math.Inf(1))
	}
	l.lastTimestamp = ts
	return ts
}

// AddTrade opens a Buy trade at price and indexes it.
func (l *Ledger) AddTrade(symbol string, price float64, volume int64) (domain.TradeRef, error) {
	symbol, err := validateSymbol(symbol)
	if err != nil {
		return 0, err
	}
	if err := validatePrice(price); err != nil {
		return 0, err
	}
	if volume < 0 {
		return 0, fmt.Errorf("volume %d must not be negative: %w", volume, ports.ErrInvalidInput)
	}

	ts := l.Now()
	ref := l.append(domain.Trade{
		Symbol:        symbol,
		Timestamp:     ts,
		Price:         price,
		Volume:        volume,
		OriginalPrice: price,
		Type:          domain.Buy,
	})
	l.tracker.Push(ref)
	l.index.Insert(ts, ref)
	l.candles.Record(symbol, price, ts)
	return ref, nil
}

// SellTrade sells volume out of the first open Buy position for symbol.
// The Sell trade is priced at the position's current price and keeps its
// original price, so both trades rank on the same basis. Because the Buy
// trade's volume changes in place, the indexes are rebuilt before returning.
func (l *Ledger) SellTrade(symbol string, volume int64) (domain.TradeRef, error) {
	symbol, err := validateSymbol(symbol)
	if err != nil {
		return 0, err
	}
	if volume <= 0 {
		return 0, fmt.Errorf("sell volume %d must be at least 1: %w", volume, ports.ErrInvalidInput)
	}

	buyRef, buy, ok := l.findActiveBuy(symbol)
	if !ok {
		return 0, fmt.Errorf("sell %s: %w", symbol, ports.ErrNoActiveTrade)
	}
	if volume > buy.Volume {
		return 0, fmt.Errorf("sell %d of %s, %d available: %w", volume, buy.Symbol, buy.Volume, ports.ErrInsufficientVolume)
	}

	buy.Volume -= volume
	if err := l.trades.Set(int(buyRef), buy); err != nil {
		return 0, err
	}
	ts := l.Now()
	ref := l.append(domain.Trade{
		Symbol:        buy.Symbol,
		Timestamp:     ts,
		Price:         buy.Price,
		Volume:        volume,
		OriginalPrice: buy.OriginalPrice,
		Type:          domain.Sell,
	})
	l.candles.Record(buy.Symbol, buy.Price, ts)
	l.stale = true
	if err := l.RebuildIndexes(); err != nil {
		return 0, err
	}
	return ref, nil
}

func (l *Ledger) findActiveBuy(symbol string) (domain.TradeRef, domain.Trade, bool) {
	for i, t := range l.trades.All() {
		if t.IsActiveBuy() && strings.EqualFold(t.Symbol, symbol) {
			return domain.TradeRef(i), t, true
		}
	}
	return 0, domain.Trade{}, false
}

// ApplyPriceUpdate sets a trade's price in place. Best, worst and ordered
// queries keep reflecting the previous rebuild until RebuildIndexes runs.
func (l *Ledger) ApplyPriceUpdate(ref domain.TradeRef, newPrice float64) error {
	t, err := l.trades.Get(int(ref))
	if err != nil {
		return fmt.Errorf("price update for trade %d: %w", ref, err)
	}
	if err := validatePrice(newPrice); err != nil {
		return err
	}
	t.Price = newPrice
	if err := l.trades.Set(int(ref), t); err != nil {
		return err
	}
	l.stale = true
	return nil
}

// RebuildIndexes discards the tracker and the ordered index and re-inserts
// every trade from the store in insertion order.
func (l *Ledger) RebuildIndexes() error {
	l.tracker.Reset()
	l.index = NewIndex()
	for i, t := range l.trades.All() {
		ref := domain.TradeRef(i)
		l.tracker.Push(ref)
		l.index.Insert(t.Timestamp, ref)
	}
	if err := l.index.Validate(); err != nil {
		return fmt.Errorf("rebuild ordered index: %w", err)
	}
	l.stale = false
	return nil
}

// Stale reports whether trades were mutated since the last rebuild.
func (l *Ledger) Stale() bool {
	return l.stale
}

// BestTrade returns the trade with the greatest performance metric as of the last rebuild.
func (l *Ledger) BestTrade() (domain.TradeRef, bool) {
	return l.tracker.Best()
}

// WorstTrade returns the trade with the least performance metric as of the last rebuild.
func (l *Ledger) WorstTrade() (domain.TradeRef, bool) {
	return l.tracker.Worst()
}

// TopTrades returns up to n trades, best first.
func (l *Ledger) TopTrades(n int) []domain.TradeRef {
	return l.tracker.TopN(n)
}

// BottomTrades returns up to n trades, worst first.
func (l *Ledger) BottomTrades(n int) []domain.TradeRef {
	return l.tracker.BottomN(n)
}

// OrderedTrades yields trade handles by ascending timestamp.
func (l *Ledger) OrderedTrades() iter.Seq[domain.TradeRef] {
	return l.index.InOrder()
}

// Trade returns a copy of the trade behind ref.
func (l *Ledger) Trade(ref domain.TradeRef) (domain.Trade, error) {
	t, err := l.trades.Get(int(ref))
	if err != nil {
		return domain.Trade{}, fmt.Errorf("trade %d: %w", ref, err)
	}
	return t, nil
}

// Trades yields every trade in insertion order.
func (l *Ledger) Trades() iter.Seq2[domain.TradeRef, domain.Trade] {
	return func(yield func(domain.TradeRef, domain.Trade) bool) {
		for i, t := range l.trades.All() {
			if !yield(domain.TradeRef(i), t) {
				return
			}
		}
	}
}

// Len returns the number of trades.
func (l *Ledger) Len() int {
	return l.trades.Len()
}

// Symbols lists the distinct trade symbols, sorted.
func (l *Ledger) Symbols() []string {
	seen := make(map[string]struct{})
	symbols := make([]string, 0)
	for _, t := range l.trades.All() {
		if _, ok := seen[t.Symbol]; ok {
			continue
		}
		seen[t.Symbol] = struct{}{}
		symbols = append(symbols, t.Symbol)
	}
	sort.Strings(symbols)
	return symbols
}

// RecordPricePoint feeds a price observation into the candle aggregator.
func (l *Ledger) RecordPricePoint(symbol string, price, timestamp float64) error {
	symbol, err := validateSymbol(symbol)
	if err != nil {
		return err
	}
	if err := validatePrice(price); err != nil {
		return err
	}
	l.candles.Record(symbol, price, timestamp)
	return nil
}

// CandleHistory returns the symbol's candles, oldest first.
func (l *Ledger) CandleHistory(symbol string) []domain.Candle {
	return l.candles.History(symbol)
}

func (l *Ledger) append(t domain.Trade) domain.TradeRef {
	l.trades.Append(t)
	return domain.TradeRef(l.trades.Len() - 1)
}

func validateSymbol(symbol string) (string, error) {
	symbol = strings.TrimSpace(symbol)
	if symbol == "" {
		return "", fmt.Errorf("symbol must not be empty: %w", ports.ErrInvalidInput)
	}
	return symbol, nil
}

func validatePrice(price float64) error {
	if math.IsNaN(price) || math.IsInf(price, 0) || price <= 0 {
		return fmt.Errorf("price %v must be a finite positive number: %w", price, ports.ErrInvalidInput)
	}
	return nil
}
