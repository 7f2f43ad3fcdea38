package repositories

import (
	"context"

	"github.com/shopspring/decimal"

	"github.com/folio-service/folio_service/internal/domain/entities"
)

// BrokerageClient is the upstream trading API surface the core consumes.
// Every call may fail with a transport or auth-class error.
type BrokerageClient interface {
	// ListOrders returns all orders, newest first as the upstream pages them
	ListOrders(ctx context.Context) ([]entities.RawOrder, error)
	// GetHoldings returns current holdings keyed by ticker
	GetHoldings(ctx context.Context) (map[string]entities.RawHolding, error)
	// GetHistoricalPrices returns price samples for one symbol
	GetHistoricalPrices(ctx context.Context, symbol, interval, span, bounds string) ([]entities.RawHistorical, error)
	// GetLatestPrice returns a live best-effort quote
	GetLatestPrice(ctx context.Context, symbol string) (decimal.Decimal, error)
}

// InstrumentResolver resolves an instrument URL into symbol/name. Failures
// are tolerated by callers; a nil instrument means "unknown".
type InstrumentResolver interface {
	Resolve(ctx context.Context, instrumentURL string) (*entities.Instrument, error)
}

// TradeRepository is the narrow persistence sink for normalized trades
type TradeRepository interface {
	// UpsertBatch writes trades idempotently by id, in chunks
	UpsertBatch(ctx context.Context, trades []entities.Trade) error
	// ListAll returns persisted trades newest first
	ListAll(ctx context.Context) ([]entities.Trade, error)
}
