package analytics

import (
	"sort"

	"tradeledger/internal/domain"
)

// PortfolioSummary holds aggregate figures over every trade in a ledger.
type PortfolioSummary struct {
	// Basic Metrics
	TotalTrades      int
	BuyTrades        int
	SellTrades       int
	ActiveBuys       int
	WinningTrades    int
	LosingTrades     int
	FlatTrades       int
	WinRate          float64 // Winning trades over trades with a non-zero metric
	TotalPerformance float64 // Sum of performance metrics
	AverageWin       float64
	AverageLoss      float64
	ProfitFactor     float64

	// Streaks in insertion order
	MaxConsecutiveWins   int
	MaxConsecutiveLosses int

	// Cash
	InitialWallet float64
	Wallet        float64

	OpenVolume  map[string]int64 // Remaining Buy volume per symbol
	EquityCurve []EquityPoint
}

// EquityPoint is the running total performance after a trade.
type EquityPoint struct {
	Timestamp float64
	Value     float64
}

// Summarize calculates portfolio metrics from trades given in insertion order.
func Summarize(trades []domain.Trade, initialWallet, wallet float64) *PortfolioSummary {
	s := &PortfolioSummary{
		InitialWallet: initialWallet,
		Wallet:        wallet,
		OpenVolume:    make(map[string]int64),
		EquityCurve:   make([]EquityPoint, 0, len(trades)),
	}
	if len(trades) == 0 {
		return s
	}

	var totalWin, totalLoss float64
	var consecutiveWins, consecutiveLosses int

	for _, t := range trades {
		s.TotalTrades++
		switch t.Type {
		case domain.Buy:
			s.BuyTrades++
			if t.IsActiveBuy() {
				s.ActiveBuys++
				s.OpenVolume[t.Symbol] += t.Volume
			}
		case domain.Sell:
			s.SellTrades++
		}

		metric := t.PerformanceMetric()
		switch {
		case metric > 0:
			s.WinningTrades++
			totalWin += metric
			consecutiveWins++
			consecutiveLosses = 0
		case metric < 0:
			s.LosingTrades++
			totalLoss += metric
			consecutiveLosses++
			consecutiveWins = 0
		default:
			// Flat trades break neither streak.
			s.FlatTrades++
		}
		s.MaxConsecutiveWins = max(s.MaxConsecutiveWins, consecutiveWins)
		s.MaxConsecutiveLosses = max(s.MaxConsecutiveLosses, consecutiveLosses)

		s.TotalPerformance += metric
		s.EquityCurve = append(s.EquityCurve, EquityPoint{Timestamp: t.Timestamp, Value: s.TotalPerformance})
	}

	if s.WinningTrades > 0 {
		s.AverageWin = totalWin / float64(s.WinningTrades)
	}
	if s.LosingTrades > 0 {
		s.AverageLoss = totalLoss / float64(s.LosingTrades)
	}
	if decided := s.WinningTrades + s.LosingTrades; decided > 0 {
		s.WinRate = float64(s.WinningTrades) / float64(decided)
	}
	if totalLoss != 0 {
		s.ProfitFactor = totalWin / -totalLoss
	}
	return s
}

// OpenSymbols returns the symbols with remaining Buy volume, sorted.
func (s *PortfolioSummary) OpenSymbols() []string {
	symbols := make([]string, 0, len(s.OpenVolume))
	for symbol, volume := range s.OpenVolume {
		if volume > 0 {
			symbols = append(symbols, symbol)
		}
	}
	sort.Strings(symbols)
	return symbols
}
