package portfolio

import (
	"context"
	"sort"
	"time"

	"github.com/shopspring/decimal"

	"github.com/folio-service/folio_service/internal/domain/entities"
	"github.com/folio-service/folio_service/pkg/retry"
)

var holdingsRetry = retry.Config{MaxAttempts: 3, BaseBackoff: time.Second}

// snapshotPositions fetches current holdings and normalizes them into
// position summaries. Missing or malformed numeric fields default to zero
// rather than failing the whole snapshot.
func (s *Service) snapshotPositions(ctx context.Context) ([]entities.PositionSummary, error) {
	if err := s.session.EnsureLoggedIn(ctx); err != nil {
		return nil, err
	}

	var holdings map[string]entities.RawHolding
	err := s.caller.Do(ctx, holdingsRetry, func() error {
		var fetchErr error
		holdings, fetchErr = s.brokerage.GetHoldings(ctx)
		return fetchErr
	})
	if err != nil {
		return nil, err
	}

	summaries := make([]entities.PositionSummary, 0, len(holdings))
	for ticker, holding := range holdings {
		name := holding.Name
		if name == "" {
			name = ticker
		}
		summaries = append(summaries, entities.PositionSummary{
			Ticker:             ticker,
			Name:               name,
			Quantity:           decimalOrZero(holding.Quantity).Round(4),
			AvgBuyPrice:        decimalOrZero(holding.AverageBuyPrice).Round(4),
			CurrentPrice:       decimalOrZero(holding.Price).Round(4),
			MarketValue:        decimalOrZero(holding.Equity).Round(2),
			UnrealizedGainLoss: decimalOrZero(holding.EquityChange).Round(2),
			PercentChange:      decimalOrZero(holding.PercentChange).Round(2),
		})
	}

	// Map iteration order is random; present tickers deterministically
	sort.Slice(summaries, func(i, j int) bool {
		return summaries[i].Ticker < summaries[j].Ticker
	})
	return summaries, nil
}

func decimalOrZero(value string) decimal.Decimal {
	if value == "" {
		return decimal.Zero
	}
	d, err := decimal.NewFromString(value)
	if err != nil {
		return decimal.Zero
	}
	return d
}
