package positions

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// SQLiteStore keeps open trades in a SQLite table. The *sql.DB is expected
// to come from database.OpenSQLite.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore creates the schema if needed.
func NewSQLiteStore(ctx context.Context, db *sql.DB) (*SQLiteStore, error) {
	s := &SQLiteStore{db: db}
	if err := s.migrate(ctx); err != nil {
		return nil, fmt.Errorf("migrate open_trades: %w", err)
	}
	return s, nil
}

func (s *SQLiteStore) migrate(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, `
CREATE TABLE IF NOT EXISTS open_trades (
  contract_id TEXT PRIMARY KEY,
  trade_id TEXT NOT NULL,
  proposal_id TEXT NOT NULL,
  transaction_id TEXT NOT NULL,
  symbol TEXT NOT NULL,
  direction TEXT NOT NULL,
  contract_type TEXT NOT NULL,
  stake REAL NOT NULL,
  entry_price REAL NOT NULL,
  payout REAL NOT NULL,
  take_profit REAL,
  stop_loss REAL,
  opened_at_ms INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_open_trades_symbol ON open_trades(symbol);
`)
	return err
}

func (s *SQLiteStore) Save(ctx context.Context, t OpenTrade) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO open_trades(contract_id, trade_id, proposal_id, transaction_id, symbol,
			direction, contract_type, stake, entry_price, payout, take_profit, stop_loss, opened_at_ms)
		VALUES(?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(contract_id) DO UPDATE SET
		take_profit=excluded.take_profit, stop_loss=excluded.stop_loss
	`, t.ContractID, t.ID.String(), t.ProposalID, t.TransactionID, t.Symbol,
		string(t.Direction), t.ContractType, t.Stake, t.EntryPrice, t.Payout,
		nullFloat(t.TakeProfit), nullFloat(t.StopLoss), t.OpenedAt.UnixMilli())
	if err != nil {
		return fmt.Errorf("save trade %s: %w", t.ContractID, err)
	}
	return nil
}

func (s *SQLiteStore) Remove(ctx context.Context, contractID string) (bool, error) {
	res, err := s.db.ExecContext(ctx, `DELETE FROM open_trades WHERE contract_id=?`, contractID)
	if err != nil {
		return false, fmt.Errorf("remove trade %s: %w", contractID, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

func (s *SQLiteStore) List(ctx context.Context) ([]OpenTrade, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT contract_id, trade_id, proposal_id, transaction_id, symbol, direction, contract_type,
			stake, entry_price, payout, take_profit, stop_loss, opened_at_ms
		FROM open_trades ORDER BY opened_at_ms, contract_id`)
	if err != nil {
		return nil, fmt.Errorf("list trades: %w", err)
	}
	defer rows.Close()

	var out []OpenTrade
	for rows.Next() {
		var (
			t                  OpenTrade
			id, dir            string
			takeProfit, stopLs sql.NullFloat64
			openedMs           int64
		)
		if err := rows.Scan(&t.ContractID, &id, &t.ProposalID, &t.TransactionID, &t.Symbol, &dir,
			&t.ContractType, &t.Stake, &t.EntryPrice, &t.Payout, &takeProfit, &stopLs, &openedMs); err != nil {
			return nil, err
		}
		if t.ID, err = uuid.Parse(id); err != nil {
			return nil, fmt.Errorf("trade %s: %w", t.ContractID, err)
		}
		t.Direction = Direction(dir)
		t.TakeProfit = floatPtr(takeProfit)
		t.StopLoss = floatPtr(stopLs)
		t.OpenedAt = time.UnixMilli(openedMs).UTC()
		out = append(out, t)
	}
	return out, rows.Err()
}

func nullFloat(p *float64) sql.NullFloat64 {
	if p == nil {
		return sql.NullFloat64{}
	}
	return sql.NullFloat64{Float64: *p, Valid: true}
}

func floatPtr(n sql.NullFloat64) *float64 {
	if !n.Valid {
		return nil
	}
	v := n.Float64
	return &v
}
