package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"

	"tradeledger/internal/domain"
	"tradeledger/internal/ports"

	_ "github.com/mattn/go-sqlite3" // SQLite driver
)

const memoryPath = ":memory:"

// Journal implements ports.Journal using SQLite. Rows are only ever inserted.
type Journal struct {
	db     *sql.DB
	logger ports.Logger
}

// Config holds configuration for the SQLite journal.
type Config struct {
	DBPath string // ":memory:" (the default) keeps the journal in process memory
	Logger ports.Logger
}

// NewJournal opens the journal database and creates its schema.
func NewJournal(cfg Config) (*Journal, error) {
	if cfg.Logger == nil {
		return nil, fmt.Errorf("logger is required for SQLite journal")
	}
	dbPath := cfg.DBPath
	if dbPath == "" {
		dbPath = memoryPath
	}

	dsn := dbPath
	if dbPath != memoryPath {
		if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
			err = fmt.Errorf("failed to create data directory '%s': %w", filepath.Dir(dbPath), err)
			cfg.Logger.Error(context.Background(), err, "SQLite journal initialization failed")
			return nil, err
		}
		dsn = dbPath + "?_journal_mode=WAL&_busy_timeout=5000"
	}

	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		err = fmt.Errorf("failed to open database at '%s': %w: %w", dbPath, ports.ErrDBConnection, err)
		cfg.Logger.Error(context.Background(), err, "SQLite journal initialization failed")
		return nil, err
	}
	if err := db.Ping(); err != nil {
		db.Close()
		err = fmt.Errorf("failed to ping database at '%s': %w: %w", dbPath, ports.ErrDBConnection, err)
		cfg.Logger.Error(context.Background(), err, "SQLite journal initialization failed")
		return nil, err
	}

	// A single connection keeps an in-memory database alive and shared.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	j := &Journal{db: db, logger: cfg.Logger}
	if err := j.initializeSchema(context.Background()); err != nil {
		db.Close()
		err = fmt.Errorf("failed to initialize journal schema: %w", err)
		cfg.Logger.Error(context.Background(), err, "SQLite journal initialization failed")
		return nil, err
	}
	cfg.Logger.Info(context.Background(), "SQLite journal ready", map[string]interface{}{"path": dbPath})
	return j, nil
}

func (j *Journal) initializeSchema(ctx context.Context) error {
	const schema = `
	CREATE TABLE IF NOT EXISTS ledger_events (
		seq INTEGER PRIMARY KEY AUTOINCREMENT,
		id TEXT NOT NULL UNIQUE,
		kind TEXT NOT NULL,
		trade_ref INTEGER NOT NULL,
		symbol TEXT NOT NULL,
		price REAL NOT NULL,
		old_price REAL DEFAULT NULL,
		volume INTEGER NOT NULL,
		event_time REAL NOT NULL,
		recorded_at TIMESTAMP NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_ledger_events_symbol ON ledger_events (symbol, seq);
	CREATE INDEX IF NOT EXISTS idx_ledger_events_kind ON ledger_events (kind);
	`
	if _, err := j.db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("failed to execute schema initialization: %w", err)
	}
	return nil
}

// Close closes the database connection.
func (j *Journal) Close() error {
	if j.db != nil {
		j.logger.Info(context.Background(), "Closing SQLite journal")
		return j.db.Close()
	}
	return nil
}

// Append stores an event, assigning a UUID when the event has no ID yet.
func (j *Journal) Append(ctx context.Context, event *ports.JournalEvent) error {
	if event.ID == "" {
		event.ID = uuid.NewString()
	}
	const query = `
	INSERT INTO ledger_events (id, kind, trade_ref, symbol, price, old_price, volume, event_time, recorded_at)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`

	var oldPrice sql.NullFloat64
	if event.Kind == domain.EventPriceUpdate {
		oldPrice = sql.NullFloat64{Float64: event.OldPrice, Valid: true}
	}

	_, err := j.db.ExecContext(ctx, query,
		event.ID, string(event.Kind), int64(event.TradeRef), event.Symbol, event.Price, oldPrice,
		event.Volume, event.Timestamp, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("failed to insert %s event for symbol %s: %w: %w", event.Kind, event.Symbol, ports.ErrQueryFailed, err)
	}
	j.logger.Debug(ctx, "Journal event appended", map[string]interface{}{"eventID": event.ID, "kind": event.Kind, "symbol": event.Symbol})
	return nil
}

// FindBySymbol retrieves the most recent events for a symbol, newest first.
func (j *Journal) FindBySymbol(ctx context.Context, symbol string, limit int) ([]*ports.JournalEvent, error) {
	const query = `
	SELECT id, kind, trade_ref, symbol, price, old_price, volume, event_time
	FROM ledger_events
	WHERE symbol = ? ORDER BY seq DESC LIMIT ?`

	rows, err := j.db.QueryContext(ctx, query, symbol, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query events for symbol %s: %w: %w", symbol, ports.ErrQueryFailed, err)
	}
	defer rows.Close()

	events := make([]*ports.JournalEvent, 0)
	for rows.Next() {
		ev, err := scanEvent(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan event during FindBySymbol: %w", err)
		}
		events = append(events, ev)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating event rows: %w", err)
	}
	return events, nil
}

// CountByKind counts recorded events of the given kind.
func (j *Journal) CountByKind(ctx context.Context, kind domain.EventKind) (int, error) {
	const query = `SELECT COUNT(*) FROM ledger_events WHERE kind = ?`
	var count int
	if err := j.db.QueryRowContext(ctx, query, string(kind)).Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count %s events: %w: %w", kind, ports.ErrQueryFailed, err)
	}
	return count, nil
}

// scanner defines an interface compatible with *sql.Row and *sql.Rows.
type scanner interface {
	Scan(dest ...interface{}) error
}

func scanEvent(s scanner) (*ports.JournalEvent, error) {
	ev := &ports.JournalEvent{}
	var kind string
	var ref int64
	var oldPrice sql.NullFloat64
	err := s.Scan(&ev.ID, &kind, &ref, &ev.Symbol, &ev.Price, &oldPrice, &ev.Volume, &ev.Timestamp)
	if err != nil {
		return nil, err
	}
	ev.Kind = domain.EventKind(kind)
	ev.TradeRef = domain.TradeRef(ref)
	if oldPrice.Valid {
		ev.OldPrice = oldPrice.Float64
	}
	return ev, nil
}
