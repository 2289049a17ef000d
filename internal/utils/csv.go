package utils

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"tradeledger/internal/domain"
)

var (
	klineHeader  = []string{"open_time", "close_time", "symbol", "interval", "open", "high", "low", "close", "volume"}
	candleHeader = []string{"symbol", "start", "start_time", "open", "high", "low", "close"}
)

// WriteKlinesToCSV writes exchange klines to filename, creating its directory if needed.
func WriteKlinesToCSV(klines []*domain.Kline, filename string) error {
	return writeFile(filename, func(w io.Writer) error { return WriteKlines(w, klines) })
}

// WriteKlines writes klines as CSV with a header row.
func WriteKlines(w io.Writer, klines []*domain.Kline) error {
	writer := csv.NewWriter(w)

	// Write header
	if err := writer.Write(klineHeader); err != nil {
		return err
	}
	for _, k := range klines {
		if err := writer.Write([]string{
			k.OpenTime.Format(time.RFC3339),
			k.CloseTime.Format(time.RFC3339),
			k.Symbol,
			k.Interval,
			formatFloat(k.Open),
			formatFloat(k.High),
			formatFloat(k.Low),
			formatFloat(k.Close),
			formatFloat(k.Volume),
		}); err != nil {
			return err
		}
	}
	writer.Flush()
	return writer.Error()
}

// WriteCandlesToCSV writes one symbol's candle history to filename.
func WriteCandlesToCSV(symbol string, candles []domain.Candle, filename string) error {
	return writeFile(filename, func(w io.Writer) error { return WriteCandles(w, symbol, candles) })
}

// WriteCandles writes candles as CSV with a header row. Start is kept in
// seconds and also rendered as an RFC3339 UTC time.
func WriteCandles(w io.Writer, symbol string, candles []domain.Candle) error {
	writer := csv.NewWriter(w)
	if err := writer.Write(candleHeader); err != nil {
		return err
	}
	for _, c := range candles {
		sec := int64(c.Start)
		nsec := int64((c.Start - float64(sec)) * 1e9)
		if err := writer.Write([]string{
			symbol,
			formatFloat(c.Start),
			time.Unix(sec, nsec).UTC().Format(time.RFC3339),
			formatFloat(c.Open),
			formatFloat(c.High),
			formatFloat(c.Low),
			formatFloat(c.Close),
		}); err != nil {
			return err
		}
	}
	writer.Flush()
	return writer.Error()
}

func writeFile(filename string, write func(io.Writer) error) error {
	if dir := filepath.Dir(filename); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("failed to create directory '%s': %w", dir, err)
		}
	}
	file, err := os.Create(filename)
	if err != nil {
		return err
	}
	defer file.Close()

	if err := write(file); err != nil {
		return fmt.Errorf("failed to write '%s': %w", filename, err)
	}
	return file.Close()
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}
