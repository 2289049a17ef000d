package main

import (
	"context"
	"log" // Use standard log only for initial fatal errors before logger is set up
	"os"

	"tradeledger/config"
	"tradeledger/internal/adapters/binanceclient"
	"tradeledger/internal/adapters/logger"
	"tradeledger/internal/adapters/pricegen"
	"tradeledger/internal/adapters/sqlite"
	"tradeledger/internal/app"
	"tradeledger/internal/domain"
	"tradeledger/internal/ledger"
	"tradeledger/internal/ports"
)

func main() {
	// 1. Load Configuration
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("FATAL: Failed to load configuration: %v", err) // Use standard log before logger is ready
	}

	// 2. Initialize Logger (stderr, so it does not mix with console output)
	appLogger := logger.NewWithWriter(os.Stderr, cfg.LogLevel)
	appLogger.Info(context.Background(), "Logger initialized", map[string]interface{}{"level": cfg.LogLevel.String()})

	// 3. Initialize Journal (Database Adapter)
	journal, err := sqlite.NewJournal(sqlite.Config{
		DBPath: cfg.JournalPath,
		Logger: appLogger,
	})
	if err != nil {
		appLogger.Error(context.Background(), err, "FATAL: Failed to initialize event journal")
		log.Fatalf("FATAL: Failed to initialize event journal: %v", err) // Also log to stderr
	}
	defer func() {
		if err := journal.Close(); err != nil {
			appLogger.Error(context.Background(), err, "Error closing event journal")
		}
	}()

	// 4. Initialize Market Quoter (Binance Adapter), only when live prices are requested
	var quoter ports.MarketQuoter
	if cfg.PriceSource == config.PriceSourceBinance {
		binanceClient, err := binanceclient.New(binanceclient.Config{
			APIKey:            cfg.APIKey,
			SecretKey:         cfg.SecretKey,
			UseTestnet:        cfg.IsTestnet,
			Logger:            appLogger,
			RequestsPerSecond: cfg.RequestsPerSecond,
		})
		if err != nil {
			appLogger.Error(context.Background(), err, "FATAL: Failed to initialize Binance client")
			log.Fatalf("FATAL: Failed to initialize Binance client: %v", err)
		}
		if err := binanceClient.Ping(context.Background()); err != nil {
			appLogger.Warn(context.Background(), "Binance unreachable, ticks will fall back to random prices", map[string]interface{}{"error": err.Error()})
		}
		quoter = binanceClient
		appLogger.Info(context.Background(), "Binance client initialized")
	}

	// 5. Initialize Ledger and Application Service
	led := ledger.New(ledger.Config{
		InitialCapacity: cfg.InitialCapacity,
		CandlePeriod:    cfg.CandlePeriod,
		CandleLimit:     cfg.CandleHistoryLimit,
	})
	ledgerService, err := app.NewLedgerService(cfg, appLogger, led, pricegen.NewRandom(cfg.RandomSeed), quoter, journal)
	if err != nil {
		appLogger.Error(context.Background(), err, "FATAL: Failed to initialize ledger service")
		log.Fatalf("FATAL: Failed to initialize ledger service: %v", err)
	}
	appLogger.Info(context.Background(), "Ledger service initialized")

	// 6. Start the tick loop and the console; leaving the console stops the loop
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	done := make(chan error, 1)
	go func() { done <- ledgerService.Start(ctx) }()

	console := app.NewConsole(ledgerService, os.Stdin, os.Stdout)
	go func() {
		if err := console.Run(ctx); err != nil {
			appLogger.Error(ctx, err, "Console stopped with error")
		}
		cancel()
	}()

	if err := <-done; err != nil {
		appLogger.Error(context.Background(), err, "Ledger service exited with error")
		log.Fatalf("FATAL: Ledger service exited with error: %v", err)
	}

	if stats, err := ledgerService.JournalStats(context.Background()); err == nil {
		appLogger.Info(context.Background(), "Journal totals", map[string]interface{}{
			"buys": stats[domain.EventBuy], "sells": stats[domain.EventSell], "priceUpdates": stats[domain.EventPriceUpdate],
		})
	}
	appLogger.Info(context.Background(), "Application finished gracefully.")
}
