package app

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"sort"
	"sync"
	"syscall"
	"time"

	"tradeledger/config"
	"tradeledger/internal/analytics"
	"tradeledger/internal/domain"
	"tradeledger/internal/ledger"
	"tradeledger/internal/ports"
)

// TradeView is a read-only snapshot of one trade together with its ranking value.
type TradeView struct {
	Ref    domain.TradeRef
	Trade  domain.Trade
	Metric float64
}

// Summary is the portfolio report plus the current extremes.
type Summary struct {
	*analytics.PortfolioSummary
	Best  *TradeView
	Worst *TradeView
}

// LedgerService is the command interface over a Ledger. It serializes every
// command and every tick, so a mutation and the rebuild that follows it are
// never observed halfway.
type LedgerService struct {
	cfg       *config.Config
	logger    ports.Logger
	generator ports.PriceGenerator
	quoter    ports.MarketQuoter // Optional live price source
	journal   ports.Journal

	// State fields
	mu     sync.Mutex // Protects access to state fields below
	ledger *ledger.Ledger
	wallet float64
}

// NewLedgerService creates a new application service instance.
func NewLedgerService(
	cfg *config.Config,
	logger ports.Logger,
	led *ledger.Ledger,
	generator ports.PriceGenerator,
	quoter ports.MarketQuoter,
	journal ports.Journal,
) (*LedgerService, error) {

	// Validate dependencies; quoter may be nil
	if cfg == nil || logger == nil || led == nil || generator == nil || journal == nil {
		return nil, fmt.Errorf("missing required dependencies for LedgerService")
	}

	// Validate config values needed by service
	if cfg.MaxFluctuation < 0 || cfg.MaxFluctuation >= 1 {
		return nil, fmt.Errorf("configuration MaxFluctuation must be in [0, 1)")
	}
	if cfg.TickInterval <= 0 {
		return nil, fmt.Errorf("configuration TickInterval must be positive")
	}

	return &LedgerService{
		cfg:       cfg,
		logger:    logger,
		generator: generator,
		quoter:    quoter,
		journal:   journal,
		ledger:    led,
		wallet:    cfg.InitialWallet,
	}, nil
}

// Start runs the price tick loop until the context is canceled or the
// process receives SIGINT/SIGTERM.
func (s *LedgerService) Start(ctx context.Context) error {
	s.logger.Info(ctx, "Starting Ledger Service...", map[string]interface{}{
		"tickInterval":   s.cfg.TickInterval.String(),
		"maxFluctuation": s.cfg.MaxFluctuation,
		"priceSource":    s.cfg.PriceSource,
	})

	// Create a context that can be canceled by signals
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	// Handle graceful shutdown
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigCh)
	go func() {
		select {
		case sig := <-sigCh:
			s.logger.Info(ctx, "Received shutdown signal", map[string]interface{}{"signal": sig.String()})
			cancel() // Cancel the main context
		case <-ctx.Done():
		}
	}()

	ticker := time.NewTicker(s.cfg.TickInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			s.logger.Info(ctx, "Main context cancelled, stopping tick loop...")
			s.logger.Info(ctx, "Ledger Service stopped.")
			return nil
		case <-ticker.C:
			if err := s.UpdateAllPrices(ctx); err != nil {
				s.logger.Error(ctx, err, "Price tick failed")
			}
		}
	}
}

// AddTrade opens a Buy trade and debits the wallet.
func (s *LedgerService) AddTrade(ctx context.Context, symbol string, price float64, volume int64) (domain.TradeRef, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	ref, err := s.ledger.AddTrade(symbol, price, volume)
	if err != nil {
		s.logCommandError(ctx, err, "Add trade rejected", map[string]interface{}{"symbol": symbol, "price": price, "volume": volume})
		return 0, err
	}
	t, _ := s.ledger.Trade(ref)
	s.wallet -= t.Price * float64(t.Volume)

	s.logger.Info(ctx, "Trade added", map[string]interface{}{
		"ref": ref, "symbol": t.Symbol, "price": t.Price, "volume": t.Volume, "wallet": s.wallet,
	})
	s.appendEvent(ctx, &ports.JournalEvent{
		Kind: domain.EventBuy, TradeRef: ref, Symbol: t.Symbol, Price: t.Price, Volume: t.Volume, Timestamp: t.Timestamp,
	})
	return ref, nil
}

// SellTrade sells volume from the first open position in symbol and credits the wallet.
func (s *LedgerService) SellTrade(ctx context.Context, symbol string, volume int64) (domain.TradeRef, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	ref, err := s.ledger.SellTrade(symbol, volume)
	if err != nil {
		s.logCommandError(ctx, err, "Sell trade rejected", map[string]interface{}{"symbol": symbol, "volume": volume})
		return 0, err
	}
	t, _ := s.ledger.Trade(ref)
	s.wallet += t.Price * float64(t.Volume)

	s.logger.Info(ctx, "Trade sold", map[string]interface{}{
		"ref": ref, "symbol": t.Symbol, "price": t.Price, "volume": t.Volume, "wallet": s.wallet,
	})
	s.appendEvent(ctx, &ports.JournalEvent{
		Kind: domain.EventSell, TradeRef: ref, Symbol: t.Symbol, Price: t.Price, Volume: t.Volume, Timestamp: t.Timestamp,
	})
	return ref, nil
}

// UpdateAllPrices re-prices every active Buy trade, rebuilds the indexes and
// records the latest price of each touched symbol as a candle point.
func (s *LedgerService) UpdateAllPrices(ctx context.Context) error {
	// Exchange quotes are fetched before taking the lock.
	quotes := s.fetchQuotes(ctx, s.activeSymbols())

	s.mu.Lock()
	defer s.mu.Unlock()

	refs := make([]domain.TradeRef, 0)
	for ref, t := range s.ledger.Trades() {
		if t.IsActiveBuy() {
			refs = append(refs, ref)
		}
	}

	latest := make(map[string]float64)
	for _, ref := range refs {
		t, err := s.ledger.Trade(ref)
		if err != nil {
			return err
		}
		newPrice := s.nextPrice(t.Price, quotes, t.Symbol)
		if err := s.ledger.ApplyPriceUpdate(ref, newPrice); err != nil {
			s.logger.Error(ctx, err, "Failed to apply price update", map[string]interface{}{"ref": ref, "symbol": t.Symbol})
			return err
		}
		latest[t.Symbol] = newPrice
		s.appendEvent(ctx, &ports.JournalEvent{
			Kind: domain.EventPriceUpdate, TradeRef: ref, Symbol: t.Symbol,
			Price: newPrice, OldPrice: t.Price, Volume: t.Volume, Timestamp: t.Timestamp,
		})
	}

	if err := s.ledger.RebuildIndexes(); err != nil {
		s.logger.Error(ctx, err, "Failed to rebuild indexes after price tick")
		return err
	}

	tickTime := s.ledger.Now()
	symbols := make([]string, 0, len(latest))
	for symbol := range latest {
		symbols = append(symbols, symbol)
	}
	sort.Strings(symbols)
	for _, symbol := range symbols {
		if err := s.ledger.RecordPricePoint(symbol, latest[symbol], tickTime); err != nil {
			return err
		}
	}

	s.logger.Debug(ctx, "Price tick applied", map[string]interface{}{"updated": len(refs), "symbols": len(symbols)})
	return nil
}

// UpdateTrade re-prices a single active Buy trade.
func (s *LedgerService) UpdateTrade(ctx context.Context, ref domain.TradeRef) (domain.Trade, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	t, err := s.ledger.Trade(ref)
	if err != nil {
		s.logCommandError(ctx, err, "Update trade rejected", map[string]interface{}{"ref": ref})
		return domain.Trade{}, err
	}
	if !t.IsActiveBuy() {
		err := fmt.Errorf("trade %d is not an open buy: %w", ref, ports.ErrNoActiveTrade)
		s.logCommandError(ctx, err, "Update trade rejected", map[string]interface{}{"ref": ref})
		return domain.Trade{}, err
	}

	newPrice := s.generator.NextPrice(t.Price, s.cfg.MaxFluctuation)
	if err := s.ledger.ApplyPriceUpdate(ref, newPrice); err != nil {
		s.logger.Error(ctx, err, "Failed to apply price update", map[string]interface{}{"ref": ref})
		return domain.Trade{}, err
	}
	if err := s.ledger.RebuildIndexes(); err != nil {
		s.logger.Error(ctx, err, "Failed to rebuild indexes after trade update")
		return domain.Trade{}, err
	}
	if err := s.ledger.RecordPricePoint(t.Symbol, newPrice, s.ledger.Now()); err != nil {
		return domain.Trade{}, err
	}

	s.logger.Info(ctx, "Trade price updated", map[string]interface{}{"ref": ref, "symbol": t.Symbol, "oldPrice": t.Price, "newPrice": newPrice})
	s.appendEvent(ctx, &ports.JournalEvent{
		Kind: domain.EventPriceUpdate, TradeRef: ref, Symbol: t.Symbol,
		Price: newPrice, OldPrice: t.Price, Volume: t.Volume, Timestamp: t.Timestamp,
	})
	updated, _ := s.ledger.Trade(ref)
	return updated, nil
}

// BestTrade returns the best-performing trade as of the last rebuild.
func (s *LedgerService) BestTrade() (TradeView, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	ref, ok := s.ledger.BestTrade()
	if !ok {
		return TradeView{}, false
	}
	return s.view(ref), true
}

// WorstTrade returns the worst-performing trade as of the last rebuild.
func (s *LedgerService) WorstTrade() (TradeView, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	ref, ok := s.ledger.WorstTrade()
	if !ok {
		return TradeView{}, false
	}
	return s.view(ref), true
}

// TopTrades returns up to n trades, best first.
func (s *LedgerService) TopTrades(n int) []TradeView {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.views(s.ledger.TopTrades(n))
}

// BottomTrades returns up to n trades, worst first.
func (s *LedgerService) BottomTrades(n int) []TradeView {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.views(s.ledger.BottomTrades(n))
}

// OrderedTrades returns every trade sorted by timestamp.
func (s *LedgerService) OrderedTrades() []TradeView {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]TradeView, 0, s.ledger.Len())
	for ref := range s.ledger.OrderedTrades() {
		out = append(out, s.view(ref))
	}
	return out
}

// TradeTable returns every trade in insertion order.
func (s *LedgerService) TradeTable() []TradeView {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]TradeView, 0, s.ledger.Len())
	for ref, t := range s.ledger.Trades() {
		out = append(out, TradeView{Ref: ref, Trade: t, Metric: t.PerformanceMetric()})
	}
	return out
}

// Symbols lists the distinct symbols traded so far.
func (s *LedgerService) Symbols() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.ledger.Symbols()
}

// CandleHistory returns the candles recorded for symbol, oldest first.
func (s *LedgerService) CandleHistory(symbol string) []domain.Candle {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.ledger.CandleHistory(symbol)
}

// Wallet returns the current cash balance.
func (s *LedgerService) Wallet() float64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.wallet
}

// Summary reports portfolio figures and the current extremes.
func (s *LedgerService) Summary() *Summary {
	s.mu.Lock()
	defer s.mu.Unlock()

	trades := make([]domain.Trade, 0, s.ledger.Len())
	for _, t := range s.ledger.Trades() {
		trades = append(trades, t)
	}
	summary := &Summary{PortfolioSummary: analytics.Summarize(trades, s.cfg.InitialWallet, s.wallet)}
	if ref, ok := s.ledger.BestTrade(); ok {
		v := s.view(ref)
		summary.Best = &v
	}
	if ref, ok := s.ledger.WorstTrade(); ok {
		v := s.view(ref)
		summary.Worst = &v
	}
	return summary
}

// RecentEvents returns the newest journal events for symbol.
func (s *LedgerService) RecentEvents(ctx context.Context, symbol string, limit int) ([]*ports.JournalEvent, error) {
	events, err := s.journal.FindBySymbol(ctx, symbol, limit)
	if err != nil {
		s.logger.Error(ctx, err, "Failed to read journal", map[string]interface{}{"symbol": symbol})
		return nil, err
	}
	return events, nil
}

// JournalStats counts journal events by kind.
func (s *LedgerService) JournalStats(ctx context.Context) (map[domain.EventKind]int, error) {
	stats := make(map[domain.EventKind]int)
	for _, kind := range []domain.EventKind{domain.EventBuy, domain.EventSell, domain.EventPriceUpdate} {
		n, err := s.journal.CountByKind(ctx, kind)
		if err != nil {
			return nil, fmt.Errorf("failed to count %s events: %w", kind, err)
		}
		stats[kind] = n
	}
	return stats, nil
}

// --- Private helper methods ---

// view builds a TradeView. Callers hold s.mu.
func (s *LedgerService) view(ref domain.TradeRef) TradeView {
	t, _ := s.ledger.Trade(ref)
	return TradeView{Ref: ref, Trade: t, Metric: t.PerformanceMetric()}
}

func (s *LedgerService) views(refs []domain.TradeRef) []TradeView {
	out := make([]TradeView, 0, len(refs))
	for _, ref := range refs {
		out = append(out, s.view(ref))
	}
	return out
}

func (s *LedgerService) activeSymbols() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	seen := make(map[string]struct{})
	symbols := make([]string, 0)
	for _, t := range s.ledger.Trades() {
		if _, ok := seen[t.Symbol]; ok || !t.IsActiveBuy() {
			continue
		}
		seen[t.Symbol] = struct{}{}
		symbols = append(symbols, t.Symbol)
	}
	return symbols
}

// fetchQuotes asks the exchange for each symbol's price. Symbols whose quote
// fails are left out and fall back to the random generator.
func (s *LedgerService) fetchQuotes(ctx context.Context, symbols []string) map[string]float64 {
	quotes := make(map[string]float64)
	if s.quoter == nil || s.cfg.PriceSource != config.PriceSourceBinance {
		return quotes
	}
	for _, symbol := range symbols {
		price, err := s.quoter.GetTickerPrice(ctx, symbol)
		if err != nil {
			s.logger.Warn(ctx, "Exchange quote unavailable, using random price", map[string]interface{}{"symbol": symbol, "error": err.Error()})
			continue
		}
		quotes[symbol] = price
	}
	return quotes
}

// nextPrice keeps exchange quotes within the configured fluctuation band
// around the current price.
func (s *LedgerService) nextPrice(current float64, quotes map[string]float64, symbol string) float64 {
	quote, ok := quotes[symbol]
	if !ok || quote <= 0 {
		return s.generator.NextPrice(current, s.cfg.MaxFluctuation)
	}
	lower := current * (1 - s.cfg.MaxFluctuation)
	upper := current * (1 + s.cfg.MaxFluctuation)
	return min(max(quote, lower), upper)
}

// appendEvent journals an event. Journal failures are logged; the ledger change stands.
func (s *LedgerService) appendEvent(ctx context.Context, event *ports.JournalEvent) {
	if err := s.journal.Append(ctx, event); err != nil {
		s.logger.Error(ctx, err, "Failed to journal event", map[string]interface{}{"kind": event.Kind, "symbol": event.Symbol})
	}
}

// logCommandError logs user-input errors as warnings and everything else as errors.
func (s *LedgerService) logCommandError(ctx context.Context, err error, msg string, fields map[string]interface{}) {
	switch {
	case errors.Is(err, ports.ErrInvalidInput),
		errors.Is(err, ports.ErrNoActiveTrade),
		errors.Is(err, ports.ErrInsufficientVolume):
		fields["error"] = err.Error()
		s.logger.Warn(ctx, msg, fields)
	default:
		s.logger.Error(ctx, err, msg, fields)
	}
}
