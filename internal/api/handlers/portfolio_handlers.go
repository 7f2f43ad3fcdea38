package handlers

import (
	"context"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/folio-service/folio_service/internal/domain/entities"
	"github.com/folio-service/folio_service/internal/domain/repositories"
	"github.com/folio-service/folio_service/pkg/pagination"
)

// PortfolioService is the slice of the portfolio service the handlers use
type PortfolioService interface {
	GetTrades(ctx context.Context, params pagination.Params, since string, forceRefresh bool) entities.TradePage
	GetPositions(ctx context.Context) []entities.PositionSummary
	GetPerformance(ctx context.Context, query entities.PerformanceQuery) []entities.PortfolioValuePoint
}

// SyncTrigger starts a manual trade sync
type SyncTrigger interface {
	InFlight() bool
	RunOnce(ctx context.Context) bool
}

// PortfolioHandlers serves the portfolio API surface
type PortfolioHandlers struct {
	service   PortfolioService
	tradeRepo repositories.TradeRepository // nil when no database is configured
	sync      SyncTrigger
	logger    *zap.Logger
}

// NewPortfolioHandlers creates portfolio handlers. tradeRepo and sync may be
// nil when the database or scheduler are not configured.
func NewPortfolioHandlers(service PortfolioService, tradeRepo repositories.TradeRepository, sync SyncTrigger, logger *zap.Logger) *PortfolioHandlers {
	return &PortfolioHandlers{
		service:   service,
		tradeRepo: tradeRepo,
		sync:      sync,
		logger:    logger,
	}
}

// Positions returns the current position summaries
func (h *PortfolioHandlers) Positions(c *gin.Context) {
	positions := h.service.GetPositions(c.Request.Context())
	c.JSON(http.StatusOK, positions)
}

// Trades returns a page of the trade ledger, newest first. The database copy
// is preferred when one is configured; a forced refresh or a database error
// goes to the live ledger.
func (h *PortfolioHandlers) Trades(c *gin.Context) {
	params := pagination.Params{
		Page:  intQuery(c, "page", 1),
		Limit: intQuery(c, "limit", 10),
	}
	since := c.Query("since")
	forceRefresh := boolQuery(c, "force_refresh")

	if h.tradeRepo != nil && !forceRefresh {
		trades, err := h.tradeRepo.ListAll(c.Request.Context())
		if err == nil {
			c.JSON(http.StatusOK, pageOf(trades, params, since))
			return
		}
		h.logger.Warn("database read failed, falling back to live ledger", zap.Error(err))
	}

	page := h.service.GetTrades(c.Request.Context(), params, since, forceRefresh)
	c.JSON(http.StatusOK, page)
}

// History returns the replayed portfolio-value series
func (h *PortfolioHandlers) History(c *gin.Context) {
	span := c.DefaultQuery("span", "day")
	interval := c.DefaultQuery("interval", "5minute")

	bounds := "regular"
	if span == "day" {
		bounds = "trading"
	}

	query := entities.PerformanceQuery{
		Span:      span,
		Interval:  interval,
		Bounds:    bounds,
		MaxPoints: intQuery(c, "max_points", 0),
	}
	if raw := c.Query("starting_cash"); raw != "" {
		cash, err := decimal.NewFromString(raw)
		if err != nil {
			respondBadRequest(c, "starting_cash must be numeric", nil)
			return
		}
		query.StartingCash = &cash
	}

	points := h.service.GetPerformance(c.Request.Context(), query)
	c.JSON(http.StatusOK, points)
}

// Sync triggers a manual trade sync; an in-flight run is reported, not queued
func (h *PortfolioHandlers) Sync(c *gin.Context) {
	if h.sync == nil {
		respondInternalError(c, "sync is not configured")
		return
	}
	if h.sync.InFlight() {
		c.JSON(http.StatusOK, gin.H{"message": "Sync already in progress"})
		return
	}
	go h.sync.RunOnce(context.Background())
	c.JSON(http.StatusOK, gin.H{"message": "Manual sync started"})
}

// pageOf applies the since filter or page window to a newest-first list
func pageOf(trades []entities.Trade, params pagination.Params, since string) entities.TradePage {
	if since != "" {
		sinceAt, ok := parseSince(since)
		if !ok {
			return entities.TradePage{Items: []entities.Trade{}, Total: 0}
		}
		filtered := []entities.Trade{}
		for _, t := range trades {
			if t.ExecutedAt.After(sinceAt) {
				filtered = append(filtered, t)
			}
		}
		return entities.TradePage{Items: filtered, Total: len(filtered)}
	}

	params.Normalize()
	start, end := params.Bounds(len(trades))
	items := make([]entities.Trade, end-start)
	copy(items, trades[start:end])
	return entities.TradePage{Items: items, Total: len(trades)}
}

func intQuery(c *gin.Context, name string, fallback int) int {
	raw := c.Query(name)
	if raw == "" {
		return fallback
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return fallback
	}
	return v
}

func boolQuery(c *gin.Context, name string) bool {
	v, err := strconv.ParseBool(c.Query(name))
	return err == nil && v
}
