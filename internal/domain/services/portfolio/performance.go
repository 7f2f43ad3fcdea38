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
	historicalsRetry = retry.Config{MaxAttempts: 2, BaseBackoff: 800 * time.Millisecond}
	quoteRetry       = retry.Config{MaxAttempts: 2, BaseBackoff: 800 * time.Millisecond}
)

// intervalDurations maps an upstream sampling interval to the width of one
// bucket. A sample's begins_at marks the start of its bucket, so the closing
// price belongs to begins_at plus this duration.
var intervalDurations = map[string]time.Duration{
	"5minute":  5 * time.Minute,
	"10minute": 10 * time.Minute,
	"hour":     time.Hour,
	"day":      24 * time.Hour,
	"week":     7 * 24 * time.Hour,
}

// priceSeries is one symbol's sparse price history, sorted for
// most-recent-prior lookups.
type priceSeries struct {
	times  []time.Time
	prices map[time.Time]decimal.Decimal
}

// priceAt returns the latest sample at or before ts, if any. No
// interpolation: the most recent prior observation wins.
func (ps *priceSeries) priceAt(ts time.Time) (decimal.Decimal, bool) {
	idx := sort.Search(len(ps.times), func(i int) bool {
		return ps.times[i].After(ts)
	})
	if idx == 0 {
		return decimal.Zero, false
	}
	return ps.prices[ps.times[idx-1]], true
}

// position is the running holding state for one symbol during replay
type position struct {
	shares    decimal.Decimal
	totalCost decimal.Decimal
}

// replay reconstructs the portfolio-value curve: it merges the chronological
// trade log with per-symbol historical prices into a single timeline and
// simulates cash and holdings at each tick.
func (s *Service) replay(ctx context.Context, query entities.PerformanceQuery) ([]entities.PortfolioValuePoint, error) {
	ledger := s.AllTrades(ctx, false)

	// The ledger is newest-first by contract; replay needs chronological
	// order, so this re-sort is mandatory.
	trades := make([]entities.Trade, len(ledger))
	copy(trades, ledger)
	sort.SliceStable(trades, func(i, j int) bool {
		return trades[i].ExecutedAt.Before(trades[j].ExecutedAt)
	})

	history, timeline := s.collectPriceHistory(ctx, trades, query)

	// No price samples at all: fall back to the trade timestamps so the
	// curve still has ticks to stand on.
	if len(timeline) == 0 {
		seen := make(map[time.Time]struct{}, len(trades))
		for _, t := range trades {
			if _, ok := seen[t.ExecutedAt]; !ok {
				seen[t.ExecutedAt] = struct{}{}
				timeline = append(timeline, t.ExecutedAt)
			}
		}
	}
	sort.Slice(timeline, func(i, j int) bool { return timeline[i].Before(timeline[j]) })
	timeline = downsample(timeline, query.MaxPoints)

	startingCash := s.startingCash(trades, query)

	positions := make(map[string]*position)
	cash := startingCash
	cursor := 0
	points := make([]entities.PortfolioValuePoint, 0, len(timeline))

	for _, tick := range timeline {
		// Apply every not-yet-applied trade executed at or before this
		// tick. The cursor only moves forward; trades are never
		// revisited. Same-timestamp trades apply in trade-log order.
		for cursor < len(trades) && !trades[cursor].ExecutedAt.After(tick) {
			applyTrade(positions, &cash, trades[cursor])
			cursor++
		}

		points = append(points, entities.PortfolioValuePoint{
			Timestamp:   tick.In(s.displayLocation),
			MarketValue: cash.Add(s.markToMarket(ctx, positions, history, tick)).Round(2),
			Baseline:    startingCash.Round(2),
		})
	}
	return points, nil
}

// collectPriceHistory fetches historical samples for every traded symbol and
// accumulates the union of their timestamps. A symbol whose fetch fails
// contributes nothing; valuation falls back to live quotes for it.
func (s *Service) collectPriceHistory(ctx context.Context, trades []entities.Trade, query entities.PerformanceQuery) (map[string]*priceSeries, []time.Time) {
	symbolSet := make(map[string]struct{})
	for _, t := range trades {
		symbolSet[t.Symbol] = struct{}{}
	}
	symbols := make([]string, 0, len(symbolSet))
	for sym := range symbolSet {
		symbols = append(symbols, sym)
	}
	sort.Strings(symbols)

	delta := intervalDurations[query.Interval]

	history := make(map[string]*priceSeries, len(symbols))
	timelineSet := make(map[time.Time]struct{})

	for _, sym := range symbols {
		var samples []entities.RawHistorical
		err := s.caller.Do(ctx, historicalsRetry, func() error {
			var fetchErr error
			samples, fetchErr = s.brokerage.GetHistoricalPrices(ctx, sym, query.Interval, query.Span, query.Bounds)
			return fetchErr
		})
		if err != nil {
			s.logger.Warn("historical price fetch failed",
				zap.String("symbol", sym),
				zap.Error(err))
			samples = nil
		}

		series := &priceSeries{prices: make(map[time.Time]decimal.Decimal)}
		for _, sample := range samples {
			ts, ok := parseTimestampUTC(sample.BeginsAt)
			if !ok || sample.ClosePrice == "" {
				continue
			}
			price, parseErr := decimal.NewFromString(sample.ClosePrice)
			if parseErr != nil {
				continue
			}
			// Attribute the closing price to the bucket's end instant
			ts = ts.Add(delta)
			if _, dup := series.prices[ts]; !dup {
				series.times = append(series.times, ts)
			}
			series.prices[ts] = price
			timelineSet[ts] = struct{}{}
		}
		sort.Slice(series.times, func(i, j int) bool { return series.times[i].Before(series.times[j]) })
		history[sym] = series
	}

	timeline := make([]time.Time, 0, len(timelineSet))
	for ts := range timelineSet {
		timeline = append(timeline, ts)
	}
	return history, timeline
}

// startingCash returns the explicit override or derives net invested capital
// over the entire trade log: the account is assumed to have started at the
// capital implied by its lifetime trading activity.
func (s *Service) startingCash(trades []entities.Trade, query entities.PerformanceQuery) decimal.Decimal {
	if query.StartingCash != nil {
		return *query.StartingCash
	}
	invested := decimal.Zero
	for _, t := range trades {
		switch t.Side {
		case entities.TradeSideBuy:
			invested = invested.Add(t.Amount())
		case entities.TradeSideSell:
			invested = invested.Sub(t.Amount())
		}
	}
	return invested
}

// applyTrade folds one trade into the running cash balance and position map.
// Sells use the average-cost method: shares never go negative and the cost
// basis shrinks at the average cost per share held at the time of sale.
func applyTrade(positions map[string]*position, cash *decimal.Decimal, t entities.Trade) {
	pos, ok := positions[t.Symbol]
	if !ok {
		pos = &position{shares: decimal.Zero, totalCost: decimal.Zero}
		positions[t.Symbol] = pos
	}

	amount := t.Amount()
	switch t.Side {
	case entities.TradeSideBuy:
		*cash = cash.Sub(amount)
		pos.shares = pos.shares.Add(t.Quantity)
		pos.totalCost = pos.totalCost.Add(amount)
	case entities.TradeSideSell:
		*cash = cash.Add(amount)
		if pos.shares.IsPositive() {
			qtyToSell := decimal.Min(t.Quantity, pos.shares)
			avgCost := pos.totalCost.Div(pos.shares)
			pos.shares = pos.shares.Sub(qtyToSell)
			pos.totalCost = pos.totalCost.Sub(qtyToSell.Mul(avgCost))
		}
	}
}

// markToMarket values every open position at the tick: the most recent prior
// price sample wins; a symbol with no prior sample falls back to a live
// quote; if that also fails the symbol is excluded from this tick's
// valuation entirely.
func (s *Service) markToMarket(ctx context.Context, positions map[string]*position, history map[string]*priceSeries, tick time.Time) decimal.Decimal {
	total := decimal.Zero
	for sym, pos := range positions {
		if !pos.shares.IsPositive() {
			continue
		}

		var price decimal.Decimal
		found := false
		if series, ok := history[sym]; ok {
			price, found = series.priceAt(tick)
		}
		if !found {
			var quote decimal.Decimal
			err := s.caller.Do(ctx, quoteRetry, func() error {
				var quoteErr error
				quote, quoteErr = s.brokerage.GetLatestPrice(ctx, sym)
				return quoteErr
			})
			if err != nil {
				continue
			}
			price = quote
		}
		total = total.Add(pos.shares.Mul(price))
	}
	return total
}

// downsample decimates the timeline to roughly maxPoints by keeping every
// stride-th point. This is a decimation, not an average; the curve may alias
// near turning points, which is an accepted tradeoff.
func downsample(timeline []time.Time, maxPoints int) []time.Time {
	if maxPoints <= 0 || len(timeline) <= maxPoints {
		return timeline
	}
	stride := len(timeline) / maxPoints
	if stride < 1 {
		stride = 1
	}
	kept := make([]time.Time, 0, maxPoints+1)
	for i := 0; i < len(timeline); i += stride {
		kept = append(kept, timeline[i])
	}
	return kept
}
