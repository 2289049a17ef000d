package app

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"strconv"
	"strings"
	"text/tabwriter"

	"tradeledger/internal/domain"
)

const consoleHelp = `commands:
  buy <symbol> <price> <volume>   open a buy trade
  sell <symbol> <volume>          sell from the first open position
  update <ref>                    re-price one open buy trade
  tick                            re-price every open buy trade
  best | worst                    extreme trade by performance
  top <n> | bottom <n>            ranked trades
  list                            trades in insertion order
  ordered                         trades by timestamp
  symbols                         traded symbols
  candles <symbol>                candle history
  events <symbol> [n]             recent journal events
  summary                         portfolio summary
  help | quit`

// Console reads line commands and runs them against a LedgerService.
type Console struct {
	svc *LedgerService
	in  io.Reader
	out io.Writer
}

// NewConsole creates a console bound to the given streams.
func NewConsole(svc *LedgerService, in io.Reader, out io.Writer) *Console {
	return &Console{svc: svc, in: in, out: out}
}

// Run processes commands until quit, end of input or context cancellation.
// Command errors are printed and do not stop the console.
func (c *Console) Run(ctx context.Context) error {
	scanner := bufio.NewScanner(c.in)
	c.prompt()
	for scanner.Scan() {
		if ctx.Err() != nil {
			return nil
		}
		fields := strings.Fields(scanner.Text())
		if len(fields) == 0 {
			c.prompt()
			continue
		}
		if strings.EqualFold(fields[0], "quit") || strings.EqualFold(fields[0], "exit") {
			return nil
		}
		if err := c.Execute(ctx, fields); err != nil {
			fmt.Fprintf(c.out, "error: %v\n", err)
		}
		c.prompt()
	}
	return scanner.Err()
}

func (c *Console) prompt() {
	fmt.Fprint(c.out, "> ")
}

// Execute runs a single command given as whitespace-split fields.
func (c *Console) Execute(ctx context.Context, fields []string) error {
	cmd, args := strings.ToLower(fields[0]), fields[1:]
	switch cmd {
	case "buy":
		if len(args) != 3 {
			return fmt.Errorf("usage: buy <symbol> <price> <volume>")
		}
		price, err := strconv.ParseFloat(args[1], 64)
		if err != nil {
			return fmt.Errorf("invalid price %q", args[1])
		}
		volume, err := strconv.ParseInt(args[2], 10, 64)
		if err != nil {
			return fmt.Errorf("invalid volume %q", args[2])
		}
		ref, err := c.svc.AddTrade(ctx, args[0], price, volume)
		if err != nil {
			return err
		}
		fmt.Fprintf(c.out, "added trade %d\n", ref)

	case "sell":
		if len(args) != 2 {
			return fmt.Errorf("usage: sell <symbol> <volume>")
		}
		volume, err := strconv.ParseInt(args[1], 10, 64)
		if err != nil {
			return fmt.Errorf("invalid volume %q", args[1])
		}
		ref, err := c.svc.SellTrade(ctx, args[0], volume)
		if err != nil {
			return err
		}
		fmt.Fprintf(c.out, "sell trade %d recorded\n", ref)

	case "update":
		if len(args) != 1 {
			return fmt.Errorf("usage: update <ref>")
		}
		ref, err := strconv.Atoi(args[0])
		if err != nil {
			return fmt.Errorf("invalid trade ref %q", args[0])
		}
		t, err := c.svc.UpdateTrade(ctx, domain.TradeRef(ref))
		if err != nil {
			return err
		}
		fmt.Fprintf(c.out, "trade %d now at %.2f\n", ref, t.Price)

	case "tick":
		if err := c.svc.UpdateAllPrices(ctx); err != nil {
			return err
		}
		fmt.Fprintln(c.out, "prices updated")

	case "best", "worst":
		get := c.svc.BestTrade
		if cmd == "worst" {
			get = c.svc.WorstTrade
		}
		v, ok := get()
		if !ok {
			fmt.Fprintln(c.out, "no trades")
			return nil
		}
		c.printTrades([]TradeView{v})

	case "top", "bottom":
		n := 5
		if len(args) > 0 {
			parsed, err := strconv.Atoi(args[0])
			if err != nil || parsed < 0 {
				return fmt.Errorf("invalid count %q", args[0])
			}
			n = parsed
		}
		if cmd == "top" {
			c.printTrades(c.svc.TopTrades(n))
		} else {
			c.printTrades(c.svc.BottomTrades(n))
		}

	case "list":
		c.printTrades(c.svc.TradeTable())

	case "ordered":
		c.printTrades(c.svc.OrderedTrades())

	case "symbols":
		fmt.Fprintln(c.out, strings.Join(c.svc.Symbols(), " "))

	case "candles":
		if len(args) != 1 {
			return fmt.Errorf("usage: candles <symbol>")
		}
		c.printCandles(c.svc.CandleHistory(strings.TrimSpace(args[0])))

	case "events":
		if len(args) < 1 || len(args) > 2 {
			return fmt.Errorf("usage: events <symbol> [n]")
		}
		limit := 10
		if len(args) == 2 {
			parsed, err := strconv.Atoi(args[1])
			if err != nil || parsed <= 0 {
				return fmt.Errorf("invalid count %q", args[1])
			}
			limit = parsed
		}
		events, err := c.svc.RecentEvents(ctx, args[0], limit)
		if err != nil {
			return err
		}
		for _, ev := range events {
			fmt.Fprintf(c.out, "%s %-12s trade=%d price=%.2f volume=%d\n", ev.ID, ev.Kind, ev.TradeRef, ev.Price, ev.Volume)
		}

	case "summary":
		c.printSummary(c.svc.Summary())

	case "help":
		fmt.Fprintln(c.out, consoleHelp)

	default:
		return fmt.Errorf("unknown command %q, try help", fields[0])
	}
	return nil
}

func (c *Console) printTrades(views []TradeView) {
	w := tabwriter.NewWriter(c.out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "REF\tSYMBOL\tTYPE\tPRICE\tORIG\tVOLUME\tPERF")
	for _, v := range views {
		fmt.Fprintf(w, "%d\t%s\t%s\t%.2f\t%.2f\t%d\t%.2f\n",
			v.Ref, v.Trade.Symbol, v.Trade.Type, v.Trade.Price, v.Trade.OriginalPrice, v.Trade.Volume, v.Metric)
	}
	w.Flush()
}

func (c *Console) printCandles(candles []domain.Candle) {
	w := tabwriter.NewWriter(c.out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "START\tOPEN\tHIGH\tLOW\tCLOSE")
	for _, cd := range candles {
		fmt.Fprintf(w, "%.2f\t%.2f\t%.2f\t%.2f\t%.2f\n", cd.Start, cd.Open, cd.High, cd.Low, cd.Close)
	}
	w.Flush()
}

func (c *Console) printSummary(s *Summary) {
	fmt.Fprintf(c.out, "trades: %d (buys %d, sells %d, open %d)\n", s.TotalTrades, s.BuyTrades, s.SellTrades, s.ActiveBuys)
	fmt.Fprintf(c.out, "winning/losing/flat: %d/%d/%d  win rate: %.1f%%\n", s.WinningTrades, s.LosingTrades, s.FlatTrades, s.WinRate*100)
	fmt.Fprintf(c.out, "total performance: %.2f  wallet: %.2f (started %.2f)\n", s.TotalPerformance, s.Wallet, s.InitialWallet)
	if s.Best != nil {
		fmt.Fprintf(c.out, "best: %s\n", s.Best.Trade)
	}
	if s.Worst != nil {
		fmt.Fprintf(c.out, "worst: %s\n", s.Worst.Trade)
	}
	for _, symbol := range s.OpenSymbols() {
		fmt.Fprintf(c.out, "open %s: %d\n", symbol, s.OpenVolume[symbol])
	}
}
