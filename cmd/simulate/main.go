package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"math/rand"
	"os"
	"path/filepath"
	"strings"

	"tradeledger/config"
	"tradeledger/internal/adapters/logger"
	"tradeledger/internal/adapters/pricegen"
	"tradeledger/internal/adapters/sqlite"
	"tradeledger/internal/app"
	"tradeledger/internal/ledger"
	"tradeledger/internal/utils"
)

var (
	symbolsFlag = flag.String("symbols", "ABC,XYZ,QRS", "comma-separated symbols to trade")
	trades      = flag.Int("trades", 20, "number of buy trades to open")
	ticks       = flag.Int("ticks", 100, "number of price ticks to run")
	sellEvery   = flag.Int("sell-every", 10, "sell one unit of a random symbol every N ticks (0 disables)")
	step        = flag.Float64("step", 1, "simulated seconds between ticks")
	outDir      = flag.String("out", "", "directory for candle CSV files (empty disables export)")
)

func main() {
	flag.Parse()

	// 1. Load Configuration
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("FATAL: Failed to load configuration: %v", err) // Use standard log before logger is ready
	}
	cfg.PriceSource = config.PriceSourceRandom

	// 2. Initialize Logger
	appLogger := logger.New(cfg.LogLevel)
	ctx := context.Background()

	// 3. Initialize Journal
	journal, err := sqlite.NewJournal(sqlite.Config{DBPath: cfg.JournalPath, Logger: appLogger})
	if err != nil {
		log.Fatalf("FATAL: Failed to initialize event journal: %v", err)
	}
	defer journal.Close()

	// 4. Initialize Ledger on a simulated clock so candles span the run
	simTime := 0.0
	led := ledger.New(ledger.Config{
		InitialCapacity: cfg.InitialCapacity,
		CandlePeriod:    cfg.CandlePeriod,
		CandleLimit:     cfg.CandleHistoryLimit,
		Clock:           func() float64 { return simTime },
	})
	generator := pricegen.NewRandom(cfg.RandomSeed)
	svc, err := app.NewLedgerService(cfg, appLogger, led, generator, nil, journal)
	if err != nil {
		log.Fatalf("FATAL: Failed to initialize ledger service: %v", err)
	}

	symbols := parseSymbols(*symbolsFlag)
	if len(symbols) == 0 {
		log.Fatalf("FATAL: at least one symbol is required")
	}
	rng := rand.New(rand.NewSource(cfg.RandomSeed + 1))

	// 5. Open positions
	for i := 0; i < *trades; i++ {
		symbol := symbols[i%len(symbols)]
		price := generator.NextPrice(100, 0.5)
		volume := int64(1 + rng.Intn(20))
		if _, err := svc.AddTrade(ctx, symbol, price, volume); err != nil {
			appLogger.Error(ctx, err, "Failed to open simulated trade", map[string]interface{}{"symbol": symbol})
		}
		simTime += *step / 10
	}

	// 6. Run ticks
	for tick := 1; tick <= *ticks; tick++ {
		simTime += *step
		if err := svc.UpdateAllPrices(ctx); err != nil {
			log.Fatalf("FATAL: tick %d failed: %v", tick, err)
		}
		if *sellEvery > 0 && tick%*sellEvery == 0 {
			symbol := symbols[rng.Intn(len(symbols))]
			// NoActiveTrade is expected once a symbol is sold out.
			_, _ = svc.SellTrade(ctx, symbol, 1)
		}
	}

	// 7. Report
	printReport(svc)

	if *outDir != "" {
		for _, symbol := range svc.Symbols() {
			filename := filepath.Join(*outDir, fmt.Sprintf("%s_candles.csv", symbol))
			if err := utils.WriteCandlesToCSV(symbol, svc.CandleHistory(symbol), filename); err != nil {
				appLogger.Error(ctx, err, "Error writing CSV", map[string]interface{}{"symbol": symbol})
				os.Exit(1)
			}
			appLogger.Info(ctx, "Saved to", map[string]interface{}{"filename": filename})
		}
	}
}

func parseSymbols(raw string) []string {
	var out []string
	for _, s := range strings.Split(raw, ",") {
		if s = strings.TrimSpace(s); s != "" {
			out = append(out, s)
		}
	}
	return out
}

func printReport(svc *app.LedgerService) {
	summary := svc.Summary()
	fmt.Printf("Trades: %d (buys %d, sells %d)\n", summary.TotalTrades, summary.BuyTrades, summary.SellTrades)
	fmt.Printf("Winning/Losing/Flat: %d/%d/%d\n", summary.WinningTrades, summary.LosingTrades, summary.FlatTrades)
	fmt.Printf("Total performance: %.2f\n", summary.TotalPerformance)
	fmt.Printf("Profit factor: %.2f\n", summary.ProfitFactor)
	fmt.Printf("Wallet: %.2f (started %.2f)\n", summary.Wallet, summary.InitialWallet)
	if summary.Best != nil {
		fmt.Printf("Best:  %s perf=%.2f\n", summary.Best.Trade, summary.Best.Metric)
	}
	if summary.Worst != nil {
		fmt.Printf("Worst: %s perf=%.2f\n", summary.Worst.Trade, summary.Worst.Metric)
	}
	for _, symbol := range svc.Symbols() {
		fmt.Printf("%s: %d candles, open volume %d\n", symbol, len(svc.CandleHistory(symbol)), summary.OpenVolume[symbol])
	}
}
