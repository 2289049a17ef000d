package ports

import (
	"context"

	"tradeledger/internal/domain"
)

// JournalEvent is one append-only record of a ledger mutation.
type JournalEvent struct {
	ID        string           // Unique event identifier
	Kind      domain.EventKind // BUY, SELL or PRICE_UPDATE
	TradeRef  domain.TradeRef  // Handle of the affected trade
	Symbol    string
	Price     float64 // Price after the event
	OldPrice  float64 // Price before the event (price updates only)
	Volume    int64
	Timestamp float64
}

// Journal records ledger events. It is write-mostly; the ledger is never restored from it.
type Journal interface {
	// Append stores an event, assigning an ID if it is empty.
	Append(ctx context.Context, event *JournalEvent) error
	// FindBySymbol retrieves the most recent events for a symbol, newest first, up to a limit.
	FindBySymbol(ctx context.Context, symbol string, limit int) ([]*JournalEvent, error)
	// CountByKind counts recorded events of the given kind.
	CountByKind(ctx context.Context, kind domain.EventKind) (int, error)
}
