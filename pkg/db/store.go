package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"okx-trader/internal/order"
	"okx-trader/internal/risk"
	"okx-trader/pkg/exchanges/common"
)

// Store implements risk.ThrottleStore and order.Journal.
type Store struct {
	db *sql.DB
}

var (
	_ risk.ThrottleStore = (*Store)(nil)
	_ order.Journal      = (*Store)(nil)
)

// Store returns the typed store over this database.
func (d *Database) Store() *Store {
	return &Store{db: d.DB}
}

// LoadThrottle reads the counter for key. ok is false when none is stored.
func (s *Store) LoadThrottle(ctx context.Context, key string) (risk.ThrottleState, bool, error) {
	var st risk.ThrottleState
	err := s.db.QueryRowContext(ctx,
		`SELECT trades_today, last_trade_date FROM throttle_state WHERE key = ?`, key,
	).Scan(&st.TradesToday, &st.LastTradeDate)
	if errors.Is(err, sql.ErrNoRows) {
		return risk.ThrottleState{}, false, nil
	}
	if err != nil {
		return risk.ThrottleState{}, false, fmt.Errorf("load throttle: %w", err)
	}
	return st, true, nil
}

// SaveThrottle upserts the counter for key.
func (s *Store) SaveThrottle(ctx context.Context, key string, st risk.ThrottleState) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO throttle_state (key, trades_today, last_trade_date, updated_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(key) DO UPDATE SET
			trades_today = excluded.trades_today,
			last_trade_date = excluded.last_trade_date,
			updated_at = excluded.updated_at
	`, key, st.TradesToday, st.LastTradeDate, time.Now().UnixMilli())
	if err != nil {
		return fmt.Errorf("save throttle: %w", err)
	}
	return nil
}

// RecordOrder journals one submitted order keyed by its client id.
func (s *Store) RecordOrder(ctx context.Context, e order.Entry) error {
	in := e.Intent
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO orders (id, exchange_order_id, symbol, side, size, entry_price,
			stop_loss, take_profit, status, created_at, reduce_only, atr, strength, message)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, in.ID, e.Record.OrderID, in.Symbol, string(in.Side), in.Size, in.EntryPrice,
		nullFloat(in.StopLoss), nullFloat(in.TakeProfit), string(e.Record.Status),
		toMillis(e.CreatedAt), in.ReduceOnly, in.ATR, in.Strength, e.Record.Message)
	if err != nil {
		return fmt.Errorf("insert order %s: %w", in.ID, err)
	}
	return nil
}

// RecentOrders returns up to limit journaled orders, newest first.
func (s *Store) RecentOrders(ctx context.Context, limit int) ([]order.Entry, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, exchange_order_id, symbol, side, size, entry_price, stop_loss,
			take_profit, status, created_at, reduce_only, atr, strength, message
		FROM orders
		ORDER BY created_at DESC, rowid DESC
		LIMIT ?
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("query orders: %w", err)
	}
	defer rows.Close()

	var out []order.Entry
	for rows.Next() {
		var (
			e       order.Entry
			side    string
			status  string
			created int64
			sl, tp  sql.NullFloat64
		)
		if err := rows.Scan(&e.Intent.ID, &e.Record.OrderID, &e.Intent.Symbol, &side,
			&e.Intent.Size, &e.Intent.EntryPrice, &sl, &tp, &status, &created,
			&e.Intent.ReduceOnly, &e.Intent.ATR, &e.Intent.Strength, &e.Record.Message); err != nil {
			return nil, fmt.Errorf("scan order: %w", err)
		}
		e.Intent.Side = common.Side(side)
		e.Record.ClientID = e.Intent.ID
		e.Record.Status = common.OrderStatus(status)
		e.CreatedAt = fromMillis(created)
		e.Intent.CreatedAt = e.CreatedAt
		if sl.Valid {
			v := sl.Float64
			e.Intent.StopLoss = &v
		}
		if tp.Valid {
			v := tp.Float64
			e.Intent.TakeProfit = &v
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

func nullFloat(v *float64) sql.NullFloat64 {
	if v == nil {
		return sql.NullFloat64{}
	}
	return sql.NullFloat64{Float64: *v, Valid: true}
}
