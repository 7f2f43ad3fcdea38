package repositories

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"

	"github.com/folio-service/folio_service/internal/domain/entities"
)

// TradeRepository persists normalized trades in PostgreSQL. Upserts are
// idempotent by trade id and order-independent, so the sync worker can replay
// the same batch safely.
type TradeRepository struct {
	db        *sqlx.DB
	logger    *zap.Logger
	batchSize int
	retries   int
}

// NewTradeRepository creates a trade repository. batchSize bounds the rows
// per upsert statement.
func NewTradeRepository(db *sqlx.DB, batchSize int, logger *zap.Logger) *TradeRepository {
	if batchSize < 1 {
		batchSize = 40
	}
	return &TradeRepository{
		db:        db,
		logger:    logger,
		batchSize: batchSize,
		retries:   3,
	}
}

// UpsertBatch writes trades in chunks; each chunk is retried with linear
// backoff. A chunk that exhausts its retries is logged and skipped so one bad
// chunk does not sink the whole sync.
func (r *TradeRepository) UpsertBatch(ctx context.Context, trades []entities.Trade) error {
	if len(trades) == 0 {
		return nil
	}

	var firstErr error
	for start := 0; start < len(trades); start += r.batchSize {
		end := start + r.batchSize
		if end > len(trades) {
			end = len(trades)
		}
		chunk := trades[start:end]

		var err error
		for attempt := 1; attempt <= r.retries; attempt++ {
			if err = r.upsertChunk(ctx, chunk); err == nil {
				break
			}
			r.logger.Warn("trade upsert attempt failed",
				zap.Int("attempt", attempt),
				zap.Int("chunk_size", len(chunk)),
				zap.Error(err))
			if attempt < r.retries {
				select {
				case <-ctx.Done():
					return ctx.Err()
				case <-time.After(time.Duration(attempt) * time.Second):
				}
			}
		}
		if err != nil && firstErr == nil {
			firstErr = fmt.Errorf("failed to upsert chunk after %d attempts: %w", r.retries, err)
		}
	}
	return firstErr
}

func (r *TradeRepository) upsertChunk(ctx context.Context, chunk []entities.Trade) error {
	placeholders := make([]string, 0, len(chunk))
	args := make([]interface{}, 0, len(chunk)*8)
	for i, t := range chunk {
		base := i * 8
		placeholders = append(placeholders, fmt.Sprintf(
			"($%d, $%d, $%d, $%d, $%d, $%d, $%d, $%d)",
			base+1, base+2, base+3, base+4, base+5, base+6, base+7, base+8,
		))
		args = append(args, t.ID, t.Symbol, t.Name, string(t.Side), t.Quantity, t.Price, t.ExecutedAt, t.State)
	}

	query := fmt.Sprintf(`
		INSERT INTO trades (id, ticker, name, side, quantity, price, executed_at, state)
		VALUES %s
		ON CONFLICT (id) DO UPDATE SET
			ticker      = EXCLUDED.ticker,
			name        = EXCLUDED.name,
			side        = EXCLUDED.side,
			quantity    = EXCLUDED.quantity,
			price       = EXCLUDED.price,
			executed_at = EXCLUDED.executed_at,
			state       = EXCLUDED.state,
			updated_at  = now()`,
		strings.Join(placeholders, ", "))

	_, err := r.db.ExecContext(ctx, query, args...)
	return err
}

// ListAll returns all persisted trades, newest first
func (r *TradeRepository) ListAll(ctx context.Context) ([]entities.Trade, error) {
	query := `
		SELECT id, ticker, name, side, quantity, price, executed_at, state
		FROM trades
		ORDER BY executed_at DESC`

	var trades []entities.Trade
	if err := r.db.SelectContext(ctx, &trades, query); err != nil {
		return nil, fmt.Errorf("failed to list trades: %w", err)
	}
	return trades, nil
}
