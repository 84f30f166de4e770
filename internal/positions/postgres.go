package positions

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
)

// PostgresStore keeps open trades in PostgreSQL.
type PostgresStore struct {
	db *pgxpool.Pool
}

// NewPostgresStore creates the schema if needed.
func NewPostgresStore(ctx context.Context, db *pgxpool.Pool) (*PostgresStore, error) {
	_, err := db.Exec(ctx, `
CREATE TABLE IF NOT EXISTS open_trades (
  contract_id TEXT PRIMARY KEY,
  trade_id UUID NOT NULL,
  proposal_id TEXT NOT NULL,
  transaction_id TEXT NOT NULL,
  symbol TEXT NOT NULL,
  direction TEXT NOT NULL,
  contract_type TEXT NOT NULL,
  stake DOUBLE PRECISION NOT NULL,
  entry_price DOUBLE PRECISION NOT NULL,
  payout DOUBLE PRECISION NOT NULL,
  take_profit DOUBLE PRECISION,
  stop_loss DOUBLE PRECISION,
  opened_at TIMESTAMPTZ NOT NULL
)`)
	if err != nil {
		return nil, fmt.Errorf("migrate open_trades: %w", err)
	}
	return &PostgresStore{db: db}, nil
}

func (s *PostgresStore) Save(ctx context.Context, t OpenTrade) error {
	_, err := s.db.Exec(ctx, `
		INSERT INTO open_trades (contract_id, trade_id, proposal_id, transaction_id, symbol,
			direction, contract_type, stake, entry_price, payout, take_profit, stop_loss, opened_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
		ON CONFLICT (contract_id) DO UPDATE SET
		take_profit = EXCLUDED.take_profit, stop_loss = EXCLUDED.stop_loss
	`, t.ContractID, t.ID, t.ProposalID, t.TransactionID, t.Symbol, string(t.Direction),
		t.ContractType, t.Stake, t.EntryPrice, t.Payout, t.TakeProfit, t.StopLoss, t.OpenedAt)
	if err != nil {
		return fmt.Errorf("save trade %s: %w", t.ContractID, err)
	}
	return nil
}

func (s *PostgresStore) Remove(ctx context.Context, contractID string) (bool, error) {
	ct, err := s.db.Exec(ctx, `DELETE FROM open_trades WHERE contract_id = $1`, contractID)
	if err != nil {
		return false, fmt.Errorf("remove trade %s: %w", contractID, err)
	}
	return ct.RowsAffected() > 0, nil
}

func (s *PostgresStore) List(ctx context.Context) ([]OpenTrade, error) {
	rows, err := s.db.Query(ctx, `
		SELECT contract_id, trade_id, proposal_id, transaction_id, symbol, direction, contract_type,
			stake, entry_price, payout, take_profit, stop_loss, opened_at
		FROM open_trades ORDER BY opened_at, contract_id`)
	if err != nil {
		return nil, fmt.Errorf("list trades: %w", err)
	}
	defer rows.Close()

	var out []OpenTrade
	for rows.Next() {
		var (
			t        OpenTrade
			dir      string
			openedAt time.Time
		)
		if err := rows.Scan(&t.ContractID, &t.ID, &t.ProposalID, &t.TransactionID, &t.Symbol, &dir,
			&t.ContractType, &t.Stake, &t.EntryPrice, &t.Payout, &t.TakeProfit, &t.StopLoss, &openedAt); err != nil {
			return nil, err
		}
		t.Direction = Direction(dir)
		t.OpenedAt = openedAt.UTC()
		out = append(out, t)
	}
	return out, rows.Err()
}
