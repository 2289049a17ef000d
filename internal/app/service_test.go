package app

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tradeledger/config"
	"tradeledger/internal/domain"
	"tradeledger/internal/ledger"
	"tradeledger/internal/ports"
)

// Mock implementations
type mockLogger struct {
	mu        sync.Mutex
	debugMsgs []string
	infoMsgs  []string
	warnMsgs  []string
	errorMsgs []string
}

func (m *mockLogger) Debug(ctx context.Context, msg string, fields ...map[string]interface{}) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.debugMsgs = append(m.debugMsgs, msg)
}

func (m *mockLogger) Info(ctx context.Context, msg string, fields ...map[string]interface{}) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.infoMsgs = append(m.infoMsgs, msg)
}

func (m *mockLogger) Warn(ctx context.Context, msg string, fields ...map[string]interface{}) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.warnMsgs = append(m.warnMsgs, msg)
}

func (m *mockLogger) Error(ctx context.Context, err error, msg string, fields ...map[string]interface{}) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.errorMsgs = append(m.errorMsgs, msg)
}

// mockGenerator multiplies the current price by a fixed factor.
type mockGenerator struct {
	factor float64
	calls  int
}

func (m *mockGenerator) NextPrice(currentPrice, maxFluctuation float64) float64 {
	m.calls++
	return currentPrice * m.factor
}

type mockQuoter struct {
	prices map[string]float64
	err    error
	calls  int
}

func (m *mockQuoter) GetTickerPrice(ctx context.Context, symbol string) (float64, error) {
	m.calls++
	if m.err != nil {
		return 0, m.err
	}
	price, ok := m.prices[symbol]
	if !ok {
		return 0, ports.ErrNotFound
	}
	return price, nil
}

type mockJournal struct {
	events    []*ports.JournalEvent
	appendErr error
}

func (m *mockJournal) Append(ctx context.Context, event *ports.JournalEvent) error {
	if m.appendErr != nil {
		return m.appendErr
	}
	if event.ID == "" {
		event.ID = "evt"
	}
	m.events = append(m.events, event)
	return nil
}

func (m *mockJournal) FindBySymbol(ctx context.Context, symbol string, limit int) ([]*ports.JournalEvent, error) {
	out := make([]*ports.JournalEvent, 0)
	for i := len(m.events) - 1; i >= 0 && len(out) < limit; i-- {
		if m.events[i].Symbol == symbol {
			out = append(out, m.events[i])
		}
	}
	return out, nil
}

func (m *mockJournal) CountByKind(ctx context.Context, kind domain.EventKind) (int, error) {
	n := 0
	for _, ev := range m.events {
		if ev.Kind == kind {
			n++
		}
	}
	return n, nil
}

func (m *mockJournal) kinds() []domain.EventKind {
	out := make([]domain.EventKind, 0, len(m.events))
	for _, ev := range m.events {
		out = append(out, ev.Kind)
	}
	return out
}

// Helper functions
func testConfig() *config.Config {
	return &config.Config{
		InitialCapacity:    2,
		CandlePeriod:       10,
		CandleHistoryLimit: 50,
		TickInterval:       5 * time.Second,
		MaxFluctuation:     0.05,
		PriceSource:        config.PriceSourceRandom,
		InitialWallet:      10000,
	}
}

type testDeps struct {
	logger    *mockLogger
	generator *mockGenerator
	quoter    *mockQuoter
	journal   *mockJournal
}

func setupTestService(t *testing.T, cfg *config.Config) (*LedgerService, *testDeps) {
	t.Helper()
	deps := &testDeps{
		logger:    &mockLogger{},
		generator: &mockGenerator{factor: 1.04},
		quoter:    &mockQuoter{prices: map[string]float64{}},
		journal:   &mockJournal{},
	}
	now := 1000.0
	led := ledger.New(ledger.Config{
		InitialCapacity: cfg.InitialCapacity,
		CandlePeriod:    cfg.CandlePeriod,
		CandleLimit:     cfg.CandleHistoryLimit,
		Clock: func() float64 {
			now += 1
			return now
		},
	})
	svc, err := NewLedgerService(cfg, deps.logger, led, deps.generator, deps.quoter, deps.journal)
	require.NoError(t, err)
	return svc, deps
}

func TestNewLedgerService(t *testing.T) {
	led := ledger.New(ledger.Config{})
	tests := []struct {
		name    string
		cfg     *config.Config
		journal ports.Journal
		wantErr bool
	}{
		{name: "valid", cfg: testConfig(), journal: &mockJournal{}},
		{name: "nil config", cfg: nil, journal: &mockJournal{}, wantErr: true},
		{name: "nil journal", cfg: testConfig(), journal: nil, wantErr: true},
		{
			name: "fluctuation out of range",
			cfg: func() *config.Config {
				c := testConfig()
				c.MaxFluctuation = 1
				return c
			}(),
			journal: &mockJournal{},
			wantErr: true,
		},
		{
			name: "zero tick interval",
			cfg: func() *config.Config {
				c := testConfig()
				c.TickInterval = 0
				return c
			}(),
			journal: &mockJournal{},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc, err := NewLedgerService(tt.cfg, &mockLogger{}, led, &mockGenerator{factor: 1}, nil, tt.journal)
			if tt.wantErr {
				assert.Error(t, err)
				assert.Nil(t, svc)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, 10000.0, svc.Wallet())
		})
	}
}

func TestLedgerService_AddAndSell(t *testing.T) {
	svc, deps := setupTestService(t, testConfig())
	ctx := context.Background()

	buyRef, err := svc.AddTrade(ctx, "ABC", 100, 10)
	require.NoError(t, err)
	assert.Equal(t, 9000.0, svc.Wallet())

	sellRef, err := svc.SellTrade(ctx, "abc", 4)
	require.NoError(t, err)
	assert.Equal(t, 9400.0, svc.Wallet())

	table := svc.TradeTable()
	require.Len(t, table, 2)
	assert.Equal(t, buyRef, table[0].Ref)
	assert.Equal(t, int64(6), table[0].Trade.Volume)
	assert.Equal(t, sellRef, table[1].Ref)
	assert.Equal(t, domain.Sell, table[1].Trade.Type)
	assert.Equal(t, "ABC", table[1].Trade.Symbol)

	assert.Equal(t, []domain.EventKind{domain.EventBuy, domain.EventSell}, deps.journal.kinds())
	assert.Equal(t, []string{"ABC"}, svc.Symbols())
}

func TestLedgerService_CommandErrors(t *testing.T) {
	tests := []struct {
		name    string
		run     func(s *LedgerService) error
		wantErr error
		wantLog string // "warn" or "error"
	}{
		{
			name:    "empty symbol",
			run:     func(s *LedgerService) error { _, err := s.AddTrade(context.Background(), " ", 1, 1); return err },
			wantErr: ports.ErrInvalidInput,
			wantLog: "warn",
		},
		{
			name:    "non-positive price",
			run:     func(s *LedgerService) error { _, err := s.AddTrade(context.Background(), "ABC", 0, 1); return err },
			wantErr: ports.ErrInvalidInput,
			wantLog: "warn",
		},
		{
			name:    "sell without position",
			run:     func(s *LedgerService) error { _, err := s.SellTrade(context.Background(), "XYZ", 1); return err },
			wantErr: ports.ErrNoActiveTrade,
			wantLog: "warn",
		},
		{
			name:    "sell too much",
			run:     func(s *LedgerService) error { _, err := s.SellTrade(context.Background(), "ABC", 11); return err },
			wantErr: ports.ErrInsufficientVolume,
			wantLog: "warn",
		},
		{
			name:    "update unknown trade",
			run:     func(s *LedgerService) error { _, err := s.UpdateTrade(context.Background(), 99); return err },
			wantErr: ports.ErrIndexOutOfRange,
			wantLog: "error",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc, deps := setupTestService(t, testConfig())
			_, err := svc.AddTrade(context.Background(), "ABC", 100, 10)
			require.NoError(t, err)
			before := svc.TradeTable()
			walletBefore := svc.Wallet()

			err = tt.run(svc)
			assert.ErrorIs(t, err, tt.wantErr)
			assert.Equal(t, before, svc.TradeTable())
			assert.Equal(t, walletBefore, svc.Wallet())
			if tt.wantLog == "warn" {
				assert.NotEmpty(t, deps.logger.warnMsgs)
				assert.Empty(t, deps.logger.errorMsgs)
			} else {
				assert.NotEmpty(t, deps.logger.errorMsgs)
			}
			assert.Len(t, deps.journal.events, 1, "rejected commands are not journaled")
		})
	}
}

func TestLedgerService_UpdateAllPrices(t *testing.T) {
	svc, deps := setupTestService(t, testConfig())
	ctx := context.Background()

	_, err := svc.AddTrade(ctx, "ABC", 100, 10)
	require.NoError(t, err)
	_, err = svc.AddTrade(ctx, "XYZ", 50, 2)
	require.NoError(t, err)
	_, err = svc.AddTrade(ctx, "DEF", 20, 1)
	require.NoError(t, err)
	_, err = svc.SellTrade(ctx, "DEF", 1)
	require.NoError(t, err)

	require.NoError(t, svc.UpdateAllPrices(ctx))

	table := svc.TradeTable()
	assert.InDelta(t, 104.0, table[0].Trade.Price, 1e-9)
	assert.InDelta(t, 52.0, table[1].Trade.Price, 1e-9)
	assert.Equal(t, 20.0, table[2].Trade.Price, "closed buys are not re-priced")
	assert.Equal(t, 20.0, table[3].Trade.Price, "sells are not re-priced")
	assert.Equal(t, 2, deps.generator.calls)

	best, ok := svc.BestTrade()
	require.True(t, ok)
	assert.Equal(t, "ABC", best.Trade.Symbol)
	assert.InDelta(t, 40.0, best.Metric, 1e-9)

	candles := svc.CandleHistory("ABC")
	require.NotEmpty(t, candles)
	assert.InDelta(t, 104.0, candles[len(candles)-1].Close, 1e-9)
	assert.Equal(t, 2, countKind(deps.journal, domain.EventPriceUpdate))
}

func TestLedgerService_UpdateAllPricesUsesClampedQuotes(t *testing.T) {
	cfg := testConfig()
	cfg.PriceSource = config.PriceSourceBinance
	svc, deps := setupTestService(t, cfg)
	ctx := context.Background()

	_, err := svc.AddTrade(ctx, "ABC", 100, 1)
	require.NoError(t, err)
	_, err = svc.AddTrade(ctx, "XYZ", 100, 1)
	require.NoError(t, err)
	_, err = svc.AddTrade(ctx, "QRS", 100, 1)
	require.NoError(t, err)

	deps.quoter.prices = map[string]float64{"ABC": 150, "XYZ": 97} // QRS has no quote
	require.NoError(t, svc.UpdateAllPrices(ctx))

	table := svc.TradeTable()
	assert.InDelta(t, 105.0, table[0].Trade.Price, 1e-9, "quote above band is clamped")
	assert.InDelta(t, 97.0, table[1].Trade.Price, 1e-9, "quote inside band is used")
	assert.InDelta(t, 104.0, table[2].Trade.Price, 1e-9, "missing quote falls back to generator")
	assert.Equal(t, 1, deps.generator.calls)
	assert.Len(t, deps.logger.warnMsgs, 1)
}

func TestLedgerService_QuoterErrorFallsBack(t *testing.T) {
	cfg := testConfig()
	cfg.PriceSource = config.PriceSourceBinance
	svc, deps := setupTestService(t, cfg)
	ctx := context.Background()

	_, err := svc.AddTrade(ctx, "ABC", 100, 1)
	require.NoError(t, err)
	deps.quoter.err = ports.ErrExchangeUnavailable

	require.NoError(t, svc.UpdateAllPrices(ctx))
	assert.InDelta(t, 104.0, svc.TradeTable()[0].Trade.Price, 1e-9)
	assert.Equal(t, 1, deps.quoter.calls)
}

func TestLedgerService_RandomSourceSkipsQuoter(t *testing.T) {
	svc, deps := setupTestService(t, testConfig())
	ctx := context.Background()
	_, err := svc.AddTrade(ctx, "ABC", 100, 1)
	require.NoError(t, err)

	require.NoError(t, svc.UpdateAllPrices(ctx))
	assert.Equal(t, 0, deps.quoter.calls)
}

func TestLedgerService_UpdateTrade(t *testing.T) {
	svc, deps := setupTestService(t, testConfig())
	ctx := context.Background()

	ref, err := svc.AddTrade(ctx, "ABC", 100, 10)
	require.NoError(t, err)
	updated, err := svc.UpdateTrade(ctx, ref)
	require.NoError(t, err)
	assert.InDelta(t, 104.0, updated.Price, 1e-9)
	assert.Equal(t, 100.0, updated.OriginalPrice)

	worst, ok := svc.WorstTrade()
	require.True(t, ok)
	assert.InDelta(t, 40.0, worst.Metric, 1e-9, "indexes are rebuilt after the update")

	sellRef, err := svc.SellTrade(ctx, "ABC", 10)
	require.NoError(t, err)
	_, err = svc.UpdateTrade(ctx, sellRef)
	assert.ErrorIs(t, err, ports.ErrNoActiveTrade)
	_, err = svc.UpdateTrade(ctx, ref)
	assert.ErrorIs(t, err, ports.ErrNoActiveTrade, "fully sold buy is no longer active")

	events, err := svc.RecentEvents(ctx, "ABC", 10)
	require.NoError(t, err)
	require.Len(t, events, 3)
	assert.Equal(t, domain.EventSell, events[0].Kind)
	assert.Equal(t, domain.EventPriceUpdate, events[1].Kind)
	assert.Equal(t, 100.0, events[1].OldPrice)
	assert.Equal(t, 1, countKind(deps.journal, domain.EventPriceUpdate))
}

func TestLedgerService_RankingsAndOrder(t *testing.T) {
	svc, _ := setupTestService(t, testConfig())
	ctx := context.Background()

	for _, tr := range []struct {
		symbol string
		price  float64
		volume int64
	}{{"A", 10, 1}, {"B", 20, 3}, {"C", 30, 2}} {
		_, err := svc.AddTrade(ctx, tr.symbol, tr.price, tr.volume)
		require.NoError(t, err)
	}
	require.NoError(t, svc.UpdateAllPrices(ctx)) // metrics: A 0.4, B 2.4, C 2.4

	top := svc.TopTrades(2)
	require.Len(t, top, 2)
	assert.GreaterOrEqual(t, top[0].Metric, top[1].Metric)
	bottom := svc.BottomTrades(1)
	require.Len(t, bottom, 1)
	assert.Equal(t, "A", bottom[0].Trade.Symbol)

	ordered := svc.OrderedTrades()
	require.Len(t, ordered, 3)
	for i := 1; i < len(ordered); i++ {
		assert.Less(t, ordered[i-1].Trade.Timestamp, ordered[i].Trade.Timestamp)
	}
}

func TestLedgerService_EmptyQueries(t *testing.T) {
	svc, _ := setupTestService(t, testConfig())
	_, ok := svc.BestTrade()
	assert.False(t, ok)
	_, ok = svc.WorstTrade()
	assert.False(t, ok)
	assert.Empty(t, svc.OrderedTrades())
	assert.Empty(t, svc.CandleHistory("ABC"))

	summary := svc.Summary()
	assert.Nil(t, summary.Best)
	assert.Nil(t, summary.Worst)
	assert.Equal(t, 0, summary.TotalTrades)
}

func TestLedgerService_Summary(t *testing.T) {
	svc, _ := setupTestService(t, testConfig())
	ctx := context.Background()

	_, err := svc.AddTrade(ctx, "ABC", 100, 10)
	require.NoError(t, err)
	_, err = svc.AddTrade(ctx, "XYZ", 50, 2)
	require.NoError(t, err)
	require.NoError(t, svc.UpdateAllPrices(ctx))
	_, err = svc.SellTrade(ctx, "XYZ", 2)
	require.NoError(t, err)

	summary := svc.Summary()
	assert.Equal(t, 3, summary.TotalTrades)
	assert.Equal(t, 1, summary.SellTrades)
	assert.Equal(t, int64(10), summary.OpenVolume["ABC"])
	assert.Equal(t, []string{"ABC"}, summary.OpenSymbols())
	require.NotNil(t, summary.Best)
	assert.Equal(t, "ABC", summary.Best.Trade.Symbol)
	require.NotNil(t, summary.Worst)
	assert.InDelta(t, 10000.0-1000-100+104, summary.Wallet, 1e-9)
}

func TestLedgerService_JournalFailureDoesNotFailCommand(t *testing.T) {
	svc, deps := setupTestService(t, testConfig())
	deps.journal.appendErr = errors.New("disk full")

	_, err := svc.AddTrade(context.Background(), "ABC", 100, 1)
	require.NoError(t, err)
	assert.Len(t, svc.TradeTable(), 1)
	assert.Contains(t, deps.logger.errorMsgs, "Failed to journal event")
}

func TestLedgerService_JournalStats(t *testing.T) {
	svc, _ := setupTestService(t, testConfig())
	ctx := context.Background()
	_, err := svc.AddTrade(ctx, "ABC", 100, 2)
	require.NoError(t, err)
	require.NoError(t, svc.UpdateAllPrices(ctx))
	_, err = svc.SellTrade(ctx, "ABC", 1)
	require.NoError(t, err)

	stats, err := svc.JournalStats(ctx)
	require.NoError(t, err)
	assert.Equal(t, map[domain.EventKind]int{
		domain.EventBuy:         1,
		domain.EventSell:        1,
		domain.EventPriceUpdate: 1,
	}, stats)
}

func TestLedgerService_StartStopsOnCancel(t *testing.T) {
	cfg := testConfig()
	cfg.TickInterval = 10 * time.Millisecond
	svc, _ := setupTestService(t, cfg)
	_, err := svc.AddTrade(context.Background(), "ABC", 100, 1)
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()

	done := make(chan error, 1)
	go func() { done <- svc.Start(ctx) }()

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("Start did not return after context cancellation")
	}
	assert.Greater(t, svc.TradeTable()[0].Trade.Price, 100.0, "ticks ran while the loop was active")
}

func countKind(j *mockJournal, kind domain.EventKind) int {
	n, _ := j.CountByKind(context.Background(), kind)
	return n
}
