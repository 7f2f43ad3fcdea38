package handlers

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"go.uber.org/zap"

	"github.com/folio-service/folio_service/internal/domain/entities"
	"github.com/folio-service/folio_service/pkg/pagination"
)

type MockPortfolioService struct {
	mock.Mock
}

func (m *MockPortfolioService) GetTrades(ctx context.Context, params pagination.Params, since string, forceRefresh bool) entities.TradePage {
	args := m.Called(ctx, params, since, forceRefresh)
	return args.Get(0).(entities.TradePage)
}

func (m *MockPortfolioService) GetPositions(ctx context.Context) []entities.PositionSummary {
	args := m.Called(ctx)
	return args.Get(0).([]entities.PositionSummary)
}

func (m *MockPortfolioService) GetPerformance(ctx context.Context, query entities.PerformanceQuery) []entities.PortfolioValuePoint {
	args := m.Called(ctx, query)
	return args.Get(0).([]entities.PortfolioValuePoint)
}

type MockSyncTrigger struct {
	mock.Mock
}

func (m *MockSyncTrigger) InFlight() bool {
	args := m.Called()
	return args.Bool(0)
}

func (m *MockSyncTrigger) RunOnce(ctx context.Context) bool {
	args := m.Called(ctx)
	return args.Bool(0)
}

type MockTradeRepo struct {
	mock.Mock
}

func (m *MockTradeRepo) UpsertBatch(ctx context.Context, trades []entities.Trade) error {
	args := m.Called(ctx, trades)
	return args.Error(0)
}

func (m *MockTradeRepo) ListAll(ctx context.Context) ([]entities.Trade, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]entities.Trade), args.Error(1)
}

func testRouter(service *MockPortfolioService, repo *MockTradeRepo, sync *MockSyncTrigger) *gin.Engine {
	gin.SetMode(gin.TestMode)

	var h *PortfolioHandlers
	if repo != nil {
		h = NewPortfolioHandlers(service, repo, sync, zap.NewNop())
	} else {
		h = NewPortfolioHandlers(service, nil, sync, zap.NewNop())
	}

	router := gin.New()
	router.GET("/api/portfolio", h.Positions)
	router.GET("/api/portfolio/trades", h.Trades)
	router.GET("/api/portfolio/history", h.History)
	router.POST("/api/portfolio/sync", h.Sync)
	return router
}

func doRequest(router *gin.Engine, method, path string) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	req := httptest.NewRequest(method, path, nil)
	router.ServeHTTP(w, req)
	return w
}

func TestPositions_ReturnsSummaries(t *testing.T) {
	service := new(MockPortfolioService)
	sync := new(MockSyncTrigger)
	router := testRouter(service, nil, sync)

	service.On("GetPositions", mock.Anything).Return([]entities.PositionSummary{
		{Ticker: "AAPL", Name: "Apple Inc.", Quantity: decimal.NewFromInt(10)},
	})

	w := doRequest(router, http.MethodGet, "/api/portfolio")

	assert.Equal(t, http.StatusOK, w.Code)
	var got []entities.PositionSummary
	assert.NoError(t, json.Unmarshal(w.Body.Bytes(), &got))
	assert.Len(t, got, 1)
	assert.Equal(t, "AAPL", got[0].Ticker)
}

func TestTrades_LiveLedgerWhenNoDatabase(t *testing.T) {
	service := new(MockPortfolioService)
	sync := new(MockSyncTrigger)
	router := testRouter(service, nil, sync)

	service.On("GetTrades", mock.Anything, pagination.Params{Page: 2, Limit: 5}, "", false).
		Return(entities.TradePage{Items: []entities.Trade{}, Total: 0})

	w := doRequest(router, http.MethodGet, "/api/portfolio/trades?page=2&limit=5")

	assert.Equal(t, http.StatusOK, w.Code)
	service.AssertExpectations(t)
}

func TestTrades_PrefersDatabaseCopy(t *testing.T) {
	service := new(MockPortfolioService)
	repo := new(MockTradeRepo)
	sync := new(MockSyncTrigger)
	router := testRouter(service, repo, sync)

	repo.On("ListAll", mock.Anything).Return([]entities.Trade{
		{ID: "t1", Symbol: "AAPL", ExecutedAt: time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC)},
	}, nil)

	w := doRequest(router, http.MethodGet, "/api/portfolio/trades")

	assert.Equal(t, http.StatusOK, w.Code)
	var page entities.TradePage
	assert.NoError(t, json.Unmarshal(w.Body.Bytes(), &page))
	assert.Equal(t, 1, page.Total)
	service.AssertNotCalled(t, "GetTrades", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestTrades_DatabaseErrorFallsBackToLive(t *testing.T) {
	service := new(MockPortfolioService)
	repo := new(MockTradeRepo)
	sync := new(MockSyncTrigger)
	router := testRouter(service, repo, sync)

	repo.On("ListAll", mock.Anything).Return(nil, fmt.Errorf("connection refused"))
	service.On("GetTrades", mock.Anything, mock.Anything, "", false).
		Return(entities.TradePage{Items: []entities.Trade{}, Total: 0})

	w := doRequest(router, http.MethodGet, "/api/portfolio/trades")

	assert.Equal(t, http.StatusOK, w.Code)
	service.AssertExpectations(t)
}

func TestTrades_ForceRefreshBypassesDatabase(t *testing.T) {
	service := new(MockPortfolioService)
	repo := new(MockTradeRepo)
	sync := new(MockSyncTrigger)
	router := testRouter(service, repo, sync)

	service.On("GetTrades", mock.Anything, mock.Anything, "", true).
		Return(entities.TradePage{Items: []entities.Trade{}, Total: 0})

	w := doRequest(router, http.MethodGet, "/api/portfolio/trades?force_refresh=true")

	assert.Equal(t, http.StatusOK, w.Code)
	repo.AssertNotCalled(t, "ListAll", mock.Anything)
	service.AssertExpectations(t)
}

func TestHistory_DefaultsAndBounds(t *testing.T) {
	service := new(MockPortfolioService)
	sync := new(MockSyncTrigger)
	router := testRouter(service, nil, sync)

	service.On("GetPerformance", mock.Anything, entities.PerformanceQuery{
		Span:     "day",
		Interval: "5minute",
		Bounds:   "trading",
	}).Return([]entities.PortfolioValuePoint{})

	w := doRequest(router, http.MethodGet, "/api/portfolio/history")

	assert.Equal(t, http.StatusOK, w.Code)
	service.AssertExpectations(t)
}

func TestHistory_NonDaySpanUsesRegularBounds(t *testing.T) {
	service := new(MockPortfolioService)
	sync := new(MockSyncTrigger)
	router := testRouter(service, nil, sync)

	service.On("GetPerformance", mock.Anything, entities.PerformanceQuery{
		Span:      "year",
		Interval:  "day",
		Bounds:    "regular",
		MaxPoints: 100,
	}).Return([]entities.PortfolioValuePoint{})

	w := doRequest(router, http.MethodGet, "/api/portfolio/history?span=year&interval=day&max_points=100")

	assert.Equal(t, http.StatusOK, w.Code)
	service.AssertExpectations(t)
}

func TestHistory_StartingCashOverride(t *testing.T) {
	service := new(MockPortfolioService)
	sync := new(MockSyncTrigger)
	router := testRouter(service, nil, sync)

	service.On("GetPerformance", mock.Anything, mock.MatchedBy(func(q entities.PerformanceQuery) bool {
		return q.StartingCash != nil && q.StartingCash.Equal(decimal.NewFromInt(5000))
	})).Return([]entities.PortfolioValuePoint{})

	w := doRequest(router, http.MethodGet, "/api/portfolio/history?starting_cash=5000")

	assert.Equal(t, http.StatusOK, w.Code)
	service.AssertExpectations(t)
}

func TestHistory_RejectsMalformedStartingCash(t *testing.T) {
	service := new(MockPortfolioService)
	sync := new(MockSyncTrigger)
	router := testRouter(service, nil, sync)

	w := doRequest(router, http.MethodGet, "/api/portfolio/history?starting_cash=lots")

	assert.Equal(t, http.StatusBadRequest, w.Code)
	var resp entities.ErrorResponse
	assert.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "INVALID_REQUEST", resp.Code)
	service.AssertNotCalled(t, "GetPerformance", mock.Anything, mock.Anything)
}

func TestSync_StartsManualRun(t *testing.T) {
	service := new(MockPortfolioService)
	sync := new(MockSyncTrigger)
	router := testRouter(service, nil, sync)

	ran := make(chan struct{})
	sync.On("InFlight").Return(false)
	sync.On("RunOnce", mock.Anything).Return(true).Run(func(args mock.Arguments) {
		close(ran)
	})

	w := doRequest(router, http.MethodPost, "/api/portfolio/sync")

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "Manual sync started")

	select {
	case <-ran:
	case <-time.After(time.Second):
		t.Fatal("manual sync was never started")
	}
}

func TestSync_ReportsInFlightRun(t *testing.T) {
	service := new(MockPortfolioService)
	sync := new(MockSyncTrigger)
	router := testRouter(service, nil, sync)

	sync.On("InFlight").Return(true)

	w := doRequest(router, http.MethodPost, "/api/portfolio/sync")

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "Sync already in progress")
	sync.AssertNotCalled(t, "RunOnce", mock.Anything)
}
