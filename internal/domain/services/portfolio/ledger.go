package portfolio

import (
	"context"
	"sort"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/folio-service/folio_service/internal/domain/entities"
	"github.com/folio-service/folio_service/pkg/retry"
)

var (
	ordersRetry     = retry.Config{MaxAttempts: 3, BaseBackoff: time.Second}
	instrumentRetry = retry.Config{MaxAttempts: 2, BaseBackoff: 500 * time.Millisecond}
)

// buildLedger fetches all orders and normalizes them into the canonical
// newest-first trade log. This ordering is the ledger's public contract;
// downstream consumers re-sort only when they explicitly need another order.
func (s *Service) buildLedger(ctx context.Context) ([]entities.Trade, error) {
	if err := s.session.EnsureLoggedIn(ctx); err != nil {
		return nil, err
	}

	var orders []entities.RawOrder
	err := s.caller.Do(ctx, ordersRetry, func() error {
		var fetchErr error
		orders, fetchErr = s.brokerage.ListOrders(ctx)
		return fetchErr
	})
	if err != nil {
		return nil, err
	}

	var trades []entities.Trade
	for _, order := range orders {
		trades = append(trades, s.normalizeOrder(ctx, order)...)
	}

	// Stable: ties at equal timestamps keep upstream order
	sort.SliceStable(trades, func(i, j int) bool {
		return trades[i].ExecutedAt.After(trades[j].ExecutedAt)
	})
	return trades, nil
}

// normalizeOrder turns one raw order into zero or more trades. An order with
// execution sub-records contributes one trade per execution; otherwise the
// whole order becomes a single trade at its aggregate quantity and average
// price. Candidates with unresolvable timestamps are dropped.
func (s *Service) normalizeOrder(ctx context.Context, order entities.RawOrder) []entities.Trade {
	if order.State != entities.OrderStateFilled {
		return nil
	}

	symbol, name := s.resolveNames(ctx, order)
	if symbol == "" {
		return nil
	}

	side := entities.TradeSide(order.Side)
	if side != entities.TradeSideBuy && side != entities.TradeSideSell {
		return nil
	}

	if len(order.Executions) == 0 {
		trade, ok := makeTrade(order.ID, symbol, name, side, order.State,
			order.Quantity, order.AveragePrice, order.LastTransactionAt)
		if !ok {
			return nil
		}
		return []entities.Trade{trade}
	}

	var trades []entities.Trade
	for _, ex := range order.Executions {
		id := ex.ID
		if id == "" {
			id = order.ID
		}
		price := ex.Price
		if price == "" {
			price = order.AveragePrice
		}
		// Timestamp priority: execution timestamp, execution creation
		// time, then the order's last transaction time.
		ts := firstNonEmpty(ex.Timestamp, ex.CreatedAt, order.LastTransactionAt)
		trade, ok := makeTrade(id, symbol, name, side, order.State, ex.Quantity, price, ts)
		if !ok {
			continue
		}
		trades = append(trades, trade)
	}
	return trades
}

// resolveNames returns the order's symbol and a human-readable instrument
// name. The instrument lookup is best-effort; on failure the name falls back
// to the symbol.
func (s *Service) resolveNames(ctx context.Context, order entities.RawOrder) (string, string) {
	symbol := order.Symbol
	name := ""

	if order.Instrument != "" {
		var inst *entities.Instrument
		err := s.caller.Do(ctx, instrumentRetry, func() error {
			var resolveErr error
			inst, resolveErr = s.resolver.Resolve(ctx, order.Instrument)
			return resolveErr
		})
		if err == nil && inst != nil {
			if inst.Symbol != "" {
				symbol = inst.Symbol
			}
			name = inst.Name
		} else if err != nil {
			s.logger.Debug("instrument lookup failed",
				zap.String("instrument", order.Instrument),
				zap.Error(err))
		}
	}

	if name == "" {
		name = symbol
	}
	return symbol, name
}

// makeTrade assembles one trade, reporting false when the timestamp is
// unresolvable or the numeric fields are malformed.
func makeTrade(id, symbol, name string, side entities.TradeSide, state, quantity, price, timestamp string) (entities.Trade, bool) {
	executedAt, ok := parseTimestampUTC(timestamp)
	if !ok {
		return entities.Trade{}, false
	}

	qty, err := decimal.NewFromString(orZero(quantity))
	if err != nil {
		return entities.Trade{}, false
	}
	px, err := decimal.NewFromString(orZero(price))
	if err != nil {
		return entities.Trade{}, false
	}

	if state == "" {
		state = entities.OrderStateFilled
	}

	return entities.Trade{
		ID:         id,
		Symbol:     symbol,
		Name:       name,
		Side:       side,
		Quantity:   qty.Round(6),
		Price:      px.Round(2),
		ExecutedAt: executedAt,
		State:      state,
	}, true
}

func orZero(value string) string {
	if value == "" {
		return "0"
	}
	return value
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
