package portfolio

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/folio-service/folio_service/internal/domain/entities"
	"github.com/folio-service/folio_service/internal/domain/repositories"
	"github.com/folio-service/folio_service/internal/infrastructure/cache"
	"github.com/folio-service/folio_service/internal/infrastructure/config"
	"github.com/folio-service/folio_service/pkg/pagination"
	"github.com/folio-service/folio_service/pkg/retry"
)

const (
	tradesCacheKey    = "trades"
	positionsCacheKey = "positions"
)

// SessionManager is the slice of the session service this package needs
type SessionManager interface {
	retry.Reauthenticator
	EnsureLoggedIn(ctx context.Context) error
}

// Service is the trade-cache-and-performance-replay engine. It owns the three
// timed caches and the fetch pipelines behind them; callers get trades,
// positions and performance series that degrade to stale or empty data
// instead of failing when the upstream misbehaves.
type Service struct {
	brokerage repositories.BrokerageClient
	resolver  repositories.InstrumentResolver
	session   SessionManager
	caller    *retry.Caller
	logger    *zap.Logger

	tradesTTL      time.Duration
	positionsTTL   time.Duration
	performanceTTL time.Duration

	tradesCache      *cache.Cache[[]entities.Trade]
	positionsCache   *cache.Cache[[]entities.PositionSummary]
	performanceCache *cache.Cache[[]entities.PortfolioValuePoint]

	displayLocation *time.Location
}

// NewService creates the portfolio service
func NewService(
	brokerage repositories.BrokerageClient,
	resolver repositories.InstrumentResolver,
	session SessionManager,
	cacheCfg config.CacheConfig,
	logger *zap.Logger,
) *Service {
	loc, err := time.LoadLocation("America/New_York")
	if err != nil {
		loc = time.UTC
	}

	return &Service{
		brokerage:        brokerage,
		resolver:         resolver,
		session:          session,
		caller:           retry.NewCaller(session),
		logger:           logger,
		tradesTTL:        cacheCfg.TradesTTLDuration(),
		positionsTTL:     cacheCfg.PositionsTTLDuration(),
		performanceTTL:   cacheCfg.PerformanceTTLDuration(),
		tradesCache:      cache.New[[]entities.Trade]("trades", logger),
		positionsCache:   cache.New[[]entities.PositionSummary]("positions", logger),
		performanceCache: cache.New[[]entities.PortfolioValuePoint]("performance", logger),
		displayLocation:  loc,
	}
}

// GetTrades returns a page of the newest-first trade ledger. since filters to
// trades executed strictly after the given RFC3339 instant and ignores
// paging; an unparseable since yields an empty page.
func (s *Service) GetTrades(ctx context.Context, params pagination.Params, since string, forceRefresh bool) entities.TradePage {
	trades := s.tradesCache.GetOrRefresh(ctx, tradesCacheKey, s.tradesTTL, forceRefresh, s.buildLedger)

	if since != "" {
		sinceAt, ok := parseTimestampUTC(since)
		if !ok {
			return entities.TradePage{Items: []entities.Trade{}, Total: 0}
		}
		var filtered []entities.Trade
		for _, t := range trades {
			if t.ExecutedAt.After(sinceAt) {
				filtered = append(filtered, t)
			}
		}
		if filtered == nil {
			filtered = []entities.Trade{}
		}
		return entities.TradePage{Items: filtered, Total: len(filtered)}
	}

	params.Normalize()
	start, end := params.Bounds(len(trades))
	items := make([]entities.Trade, end-start)
	copy(items, trades[start:end])
	return entities.TradePage{Items: items, Total: len(trades)}
}

// AllTrades returns the full newest-first ledger, refreshed when forced.
// Used by the sync worker.
func (s *Service) AllTrades(ctx context.Context, forceRefresh bool) []entities.Trade {
	return s.tradesCache.GetOrRefresh(ctx, tradesCacheKey, s.tradesTTL, forceRefresh, s.buildLedger)
}

// TryRefreshTrades refreshes the trade ledger unless a refresh is already in
// flight, in which case it reports false and does nothing.
func (s *Service) TryRefreshTrades(ctx context.Context) bool {
	return s.tradesCache.TryRefresh(ctx, tradesCacheKey, s.buildLedger)
}

// GetPositions returns the current position summaries
func (s *Service) GetPositions(ctx context.Context) []entities.PositionSummary {
	positions := s.positionsCache.GetOrRefresh(ctx, positionsCacheKey, s.positionsTTL, false, s.snapshotPositions)
	if positions == nil {
		positions = []entities.PositionSummary{}
	}
	return positions
}

// GetPerformance returns the replayed portfolio-value series for the query.
// Results are cached under the full parameter set since recomputation issues
// one price-history fetch per traded symbol.
func (s *Service) GetPerformance(ctx context.Context, query entities.PerformanceQuery) []entities.PortfolioValuePoint {
	points := s.performanceCache.GetOrRefresh(ctx, query.CacheKey(), s.performanceTTL, false,
		func(ctx context.Context) ([]entities.PortfolioValuePoint, error) {
			return s.replay(ctx, query)
		})
	if points == nil {
		points = []entities.PortfolioValuePoint{}
	}
	return points
}

// parseTimestampUTC parses an upstream timestamp into UTC. RFC3339 first,
// then the bare fallback layout the upstream occasionally emits.
func parseTimestampUTC(value string) (time.Time, bool) {
	if value == "" {
		return time.Time{}, false
	}
	if t, err := time.Parse(time.RFC3339, value); err == nil {
		return t.UTC(), true
	}
	if t, err := time.Parse("2006-01-02T15:04:05Z", value); err == nil {
		return t.UTC(), true
	}
	return time.Time{}, false
}
