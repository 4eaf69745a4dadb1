// Package history persists trades and equity snapshots in SQLite. The daily
// risk rules are computed from this store, so writes happen synchronously on
// the trade path.
package history

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "github.com/glebarez/go-sqlite"

	"github.com/fandresen/trAIding/internal/domain"
)

// Store wraps the SQLite trade and capital history.
type Store struct {
	db *sql.DB
}

// NewStore opens (or creates) the history database with WAL mode enabled.
func NewStore(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open sqlite: %w", err)
	}

	pragmas := []string{
		"PRAGMA journal_mode=WAL;",
		"PRAGMA synchronous=NORMAL;",
		"PRAGMA foreign_keys=ON;",
	}
	for _, pragma := range pragmas {
		if _, err := db.Exec(pragma); err != nil {
			return nil, fmt.Errorf("failed to set pragma %s: %w", pragma, err)
		}
	}

	_, err = db.Exec(`
		CREATE TABLE IF NOT EXISTS trades (
			id TEXT PRIMARY KEY,
			symbol TEXT NOT NULL,
			side TEXT NOT NULL,
			entry_price REAL NOT NULL,
			exit_price REAL NOT NULL DEFAULT 0,
			size REAL NOT NULL,
			pnl REAL NOT NULL DEFAULT 0,
			ts INTEGER NOT NULL,
			stop_loss_price REAL NOT NULL DEFAULT 0,
			take_profit_price REAL NOT NULL DEFAULT 0,
			stop_loss_order_id TEXT NOT NULL DEFAULT '',
			take_profit_order_id TEXT NOT NULL DEFAULT '',
			is_trailing_active INTEGER NOT NULL DEFAULT 0
		);
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to create trades table: %w", err)
	}

	_, err = db.Exec(`
		CREATE TABLE IF NOT EXISTS capital (
			id INTEGER PRIMARY KEY,
			equity REAL NOT NULL,
			ts INTEGER NOT NULL
		);
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to create capital table: %w", err)
	}

	return &Store{db: db}, nil
}

// AppendTrade inserts a newly opened trade.
func (s *Store) AppendTrade(trade *domain.Trade) error {
	_, err := s.db.Exec(`
		INSERT INTO trades (id, symbol, side, entry_price, exit_price, size, pnl, ts,
			stop_loss_price, take_profit_price, stop_loss_order_id, take_profit_order_id, is_trailing_active)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		trade.ID, trade.Symbol, string(trade.Side), trade.EntryPrice, trade.ExitPrice,
		trade.Size, trade.Pnl, trade.Timestamp,
		trade.StopLossPrice, trade.TakeProfitPrice, trade.StopLossID, trade.TakeProfitID,
		boolToInt(trade.IsTrailingActive),
	)
	if err != nil {
		return fmt.Errorf("failed to insert trade %s: %w", trade.ID, err)
	}
	return nil
}

// UpdateTrade rewrites the mutable fields of an existing trade.
func (s *Store) UpdateTrade(trade *domain.Trade) error {
	res, err := s.db.Exec(`
		UPDATE trades SET exit_price=?, pnl=?, stop_loss_price=?, take_profit_price=?,
			stop_loss_order_id=?, take_profit_order_id=?, is_trailing_active=?
		WHERE id=?`,
		trade.ExitPrice, trade.Pnl, trade.StopLossPrice, trade.TakeProfitPrice,
		trade.StopLossID, trade.TakeProfitID, boolToInt(trade.IsTrailingActive),
		trade.ID,
	)
	if err != nil {
		return fmt.Errorf("failed to update trade %s: %w", trade.ID, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("trade %s not found", trade.ID)
	}
	return nil
}

// TodaysTrades returns all trades opened since local midnight of now. The
// daily loss limit and trade count reset with the local calendar day.
func (s *Store) TodaysTrades(ctx context.Context, now time.Time) ([]*domain.Trade, error) {
	midnight := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, symbol, side, entry_price, exit_price, size, pnl, ts,
			stop_loss_price, take_profit_price, stop_loss_order_id, take_profit_order_id, is_trailing_active
		FROM trades WHERE ts >= ? ORDER BY ts ASC`,
		midnight.UnixMilli(),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to query trades: %w", err)
	}
	defer rows.Close()

	var trades []*domain.Trade
	for rows.Next() {
		var t domain.Trade
		var side string
		var trailing int
		if err := rows.Scan(&t.ID, &t.Symbol, &side, &t.EntryPrice, &t.ExitPrice,
			&t.Size, &t.Pnl, &t.Timestamp,
			&t.StopLossPrice, &t.TakeProfitPrice, &t.StopLossID, &t.TakeProfitID, &trailing); err != nil {
			return nil, fmt.Errorf("failed to scan trade: %w", err)
		}
		t.Side = domain.Side(side)
		t.IsTrailingActive = trailing != 0
		trades = append(trades, &t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows iteration error: %w", err)
	}
	return trades, nil
}

// AppendCapital records an equity snapshot.
func (s *Store) AppendCapital(ctx context.Context, equity float64, ts int64) error {
	_, err := s.db.ExecContext(ctx, "INSERT INTO capital (equity, ts) VALUES (?, ?)", equity, ts)
	if err != nil {
		return fmt.Errorf("failed to insert capital snapshot: %w", err)
	}
	return nil
}

// LatestCapital returns the most recent equity snapshot, or ok=false when
// none has been recorded yet.
func (s *Store) LatestCapital(ctx context.Context) (equity float64, ts int64, ok bool, err error) {
	err = s.db.QueryRowContext(ctx,
		"SELECT equity, ts FROM capital ORDER BY ts DESC, id DESC LIMIT 1").Scan(&equity, &ts)
	if err == sql.ErrNoRows {
		return 0, 0, false, nil
	}
	if err != nil {
		return 0, 0, false, fmt.Errorf("failed to query capital: %w", err)
	}
	return equity, ts, true, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
