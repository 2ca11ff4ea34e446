// Package journal persists per-symbol trade attempts to SQLite.
package journal

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"mstock-trader/internal/models"
)

// Journal records every attempt the engine makes, skips included, so a
// day's behavior can be reconstructed without the logs.
type Journal struct {
	db *sql.DB
}

// Open opens or creates the journal database.
func Open(dbPath string) (*Journal, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	db.SetMaxOpenConns(4)
	db.SetMaxIdleConns(2)
	db.SetConnMaxLifetime(time.Hour)

	j := &Journal{db: db}
	if err := j.initSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}
	return j, nil
}

func (j *Journal) initSchema() error {
	schema := `
	CREATE TABLE IF NOT EXISTS attempts (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		timestamp DATETIME NOT NULL,
		symbol TEXT NOT NULL,
		exchange TEXT NOT NULL,
		side TEXT NOT NULL,
		qty INTEGER NOT NULL,
		price REAL NOT NULL,
		status TEXT NOT NULL,
		reason TEXT,
		rsi REAL,
		buy_rsi REAL,
		sell_rsi REAL,
		capital_used REAL,
		capital_limit REAL,
		order_id TEXT,
		error TEXT,
		created_at DATETIME DEFAULT CURRENT_TIMESTAMP
	);

	CREATE INDEX IF NOT EXISTS idx_attempts_timestamp ON attempts(timestamp);
	CREATE INDEX IF NOT EXISTS idx_attempts_symbol ON attempts(symbol, exchange);
	`
	_, err := j.db.Exec(schema)
	return err
}

// RecordAttempt inserts one attempt row.
func (j *Journal) RecordAttempt(ctx context.Context, a models.Attempt) error {
	_, err := j.db.ExecContext(ctx, `
		INSERT INTO attempts (
			timestamp, symbol, exchange, side, qty, price, status, reason,
			rsi, buy_rsi, sell_rsi, capital_used, capital_limit, order_id, error
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		a.Timestamp, a.Symbol, string(a.Exchange), string(a.Side), a.Qty,
		a.Price, a.Status, a.Reason, a.RSI, a.BuyRSI, a.SellRSI,
		a.CapitalUsed, a.CapitalLimit, a.OrderID, a.Error,
	)
	if err != nil {
		return fmt.Errorf("inserting attempt: %w", err)
	}
	return nil
}

// ListAttempts returns attempts at or after since, newest first, capped at
// limit rows.
func (j *Journal) ListAttempts(ctx context.Context, since time.Time, limit int) ([]models.Attempt, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := j.db.QueryContext(ctx, `
		SELECT timestamp, symbol, exchange, side, qty, price, status, reason,
			rsi, buy_rsi, sell_rsi, capital_used, capital_limit, order_id, error
		FROM attempts
		WHERE timestamp >= ?
		ORDER BY timestamp DESC
		LIMIT ?`, since, limit)
	if err != nil {
		return nil, fmt.Errorf("querying attempts: %w", err)
	}
	defer rows.Close()

	var attempts []models.Attempt
	for rows.Next() {
		var a models.Attempt
		var exchange, side string
		if err := rows.Scan(
			&a.Timestamp, &a.Symbol, &exchange, &side, &a.Qty, &a.Price,
			&a.Status, &a.Reason, &a.RSI, &a.BuyRSI, &a.SellRSI,
			&a.CapitalUsed, &a.CapitalLimit, &a.OrderID, &a.Error,
		); err != nil {
			return nil, fmt.Errorf("scanning attempt: %w", err)
		}
		a.Exchange = models.Exchange(exchange)
		a.Side = models.Action(side)
		attempts = append(attempts, a)
	}
	return attempts, rows.Err()
}

// Close closes the underlying database.
func (j *Journal) Close() error {
	return j.db.Close()
}
