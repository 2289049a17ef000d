package domain

// TradeType represents the side of a ledger trade (BUY or SELL).
type TradeType string

const (
	Buy  TradeType = "BUY"
	Sell TradeType = "SELL"
)

// TradeRef is a stable handle to a trade owned by the ledger.
// It is the trade's position in insertion order and never changes.
type TradeRef int

// EventKind classifies journal entries.
type EventKind string

const (
	EventBuy         EventKind = "BUY"
	EventSell        EventKind = "SELL"
	EventPriceUpdate EventKind = "PRICE_UPDATE"
)
