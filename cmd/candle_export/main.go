package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"path/filepath"
	"time"

	"tradeledger/config"
	"tradeledger/internal/adapters/binanceclient"
	"tradeledger/internal/adapters/logger"
	"tradeledger/internal/ledger"
	"tradeledger/internal/utils"
)

var (
	symbol   = flag.String("symbol", "ETHUSDT", "exchange symbol")
	interval = flag.String("interval", "1m", "kline interval")
	days     = flag.Int("days", 1, "days of history to fetch")
	outDir   = flag.String("out", "data", "output directory")
)

func main() {
	flag.Parse()

	// 1. Load Configuration
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("FATAL: Failed to load configuration: %v", err) // Use standard log before logger is ready
	}

	// 2. Initialize Logger
	appLogger := logger.New(cfg.LogLevel)
	appLogger.Info(context.Background(), "Logger initialized", map[string]interface{}{"level": cfg.LogLevel.String()})

	// 3. Initialize Exchange Client (Binance Adapter)
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

	end := time.Now()
	start := end.AddDate(0, 0, -*days)

	fmt.Printf("Fetching klines for %s %s from %s to %s...\n", *symbol, *interval, start, end)
	klines, err := binanceClient.GetKlinesRange(context.Background(), *symbol, *interval, start, end)
	if err != nil {
		appLogger.Error(context.Background(), err, "Error fetching klines")
		log.Fatalf("Error fetching klines: %v", err)
	}
	appLogger.Info(context.Background(), "Fetched klines", map[string]interface{}{"count": len(klines)})

	// 4. Replay closes through the candle aggregator
	candles := ledger.NewCandles(cfg.CandlePeriod, cfg.CandleHistoryLimit)
	for _, k := range klines {
		ts := float64(k.CloseTime.UnixMilli()) / 1000
		candles.Record(*symbol, k.Close, ts)
	}

	stamp := fmt.Sprintf("%s_to_%s", start.Format("20060102"), end.Format("20060102"))
	klineFile := filepath.Join(*outDir, fmt.Sprintf("%s_%s_%s.csv", *symbol, *interval, stamp))
	if err := utils.WriteKlinesToCSV(klines, klineFile); err != nil {
		appLogger.Error(context.Background(), err, "Error writing CSV")
		log.Fatalf("Error writing CSV: %v", err)
	}
	candleFile := filepath.Join(*outDir, fmt.Sprintf("%s_candles_%gs_%s.csv", *symbol, candles.Period(), stamp))
	if err := utils.WriteCandlesToCSV(*symbol, candles.History(*symbol), candleFile); err != nil {
		appLogger.Error(context.Background(), err, "Error writing CSV")
		log.Fatalf("Error writing CSV: %v", err)
	}
	appLogger.Info(context.Background(), "Saved to", map[string]interface{}{"klines": klineFile, "candles": candleFile})
}
