package tradesync

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"go.uber.org/zap"

	"github.com/folio-service/folio_service/internal/domain/entities"
)

type MockTradeSource struct {
	mock.Mock
}

func (m *MockTradeSource) AllTrades(ctx context.Context, forceRefresh bool) []entities.Trade {
	args := m.Called(ctx, forceRefresh)
	if args.Get(0) == nil {
		return nil
	}
	return args.Get(0).([]entities.Trade)
}

type MockSessionKeeper struct {
	mock.Mock
}

func (m *MockSessionKeeper) KeepAlive(ctx context.Context) error {
	args := m.Called(ctx)
	return args.Error(0)
}

type MockTradeRepository struct {
	mock.Mock
}

func (m *MockTradeRepository) UpsertBatch(ctx context.Context, trades []entities.Trade) error {
	args := m.Called(ctx, trades)
	return args.Error(0)
}

func (m *MockTradeRepository) ListAll(ctx context.Context) ([]entities.Trade, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]entities.Trade), args.Error(1)
}

func sampleTrades(n int) []entities.Trade {
	trades := make([]entities.Trade, n)
	for i := range trades {
		trades[i] = entities.Trade{
			ID:         fmt.Sprintf("t%d", i),
			Symbol:     "AAPL",
			Name:       "Apple Inc.",
			Side:       entities.TradeSideBuy,
			Quantity:   decimal.NewFromInt(1),
			Price:      decimal.NewFromInt(100),
			ExecutedAt: time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC).Add(time.Duration(i) * time.Minute),
			State:      entities.OrderStateFilled,
		}
	}
	return trades
}

func createTestWorker(repo *MockTradeRepository) (*Worker, *MockTradeSource, *MockSessionKeeper) {
	source := new(MockTradeSource)
	session := new(MockSessionKeeper)

	config := DefaultConfig()
	config.RunTimeout = 5 * time.Second

	// A typed nil in the interface would defeat the repo == nil check
	var w *Worker
	if repo != nil {
		w = NewWorker(source, session, repo, config, zap.NewNop())
	} else {
		w = NewWorker(source, session, nil, config, zap.NewNop())
	}
	return w, source, session
}

func TestRunOnce_SyncsTradesToRepository(t *testing.T) {
	repo := new(MockTradeRepository)
	w, source, session := createTestWorker(repo)

	trades := sampleTrades(3)
	session.On("KeepAlive", mock.Anything).Return(nil)
	source.On("AllTrades", mock.Anything, true).Return(trades)
	repo.On("UpsertBatch", mock.Anything, trades).Return(nil)

	ran := w.RunOnce(context.Background())

	assert.True(t, ran)
	source.AssertExpectations(t)
	repo.AssertExpectations(t)
}

func TestRunOnce_NoRepositoryOnlyRefreshesCache(t *testing.T) {
	w, source, session := createTestWorker(nil)

	session.On("KeepAlive", mock.Anything).Return(nil)
	source.On("AllTrades", mock.Anything, true).Return(sampleTrades(2))

	ran := w.RunOnce(context.Background())

	assert.True(t, ran)
	source.AssertExpectations(t)
}

func TestRunOnce_EmptyLedgerSkipsUpsert(t *testing.T) {
	repo := new(MockTradeRepository)
	w, source, session := createTestWorker(repo)

	session.On("KeepAlive", mock.Anything).Return(nil)
	source.On("AllTrades", mock.Anything, true).Return([]entities.Trade{})

	ran := w.RunOnce(context.Background())

	assert.True(t, ran)
	repo.AssertNotCalled(t, "UpsertBatch", mock.Anything, mock.Anything)
}

func TestRunOnce_KeepAliveFailureDoesNotAbortSync(t *testing.T) {
	repo := new(MockTradeRepository)
	w, source, session := createTestWorker(repo)

	trades := sampleTrades(1)
	session.On("KeepAlive", mock.Anything).Return(fmt.Errorf("session refresh failed"))
	source.On("AllTrades", mock.Anything, true).Return(trades)
	repo.On("UpsertBatch", mock.Anything, trades).Return(nil)

	ran := w.RunOnce(context.Background())

	assert.True(t, ran)
	repo.AssertExpectations(t)
}

func TestRunOnce_OverlappingRunIsSkipped(t *testing.T) {
	w, source, session := createTestWorker(nil)

	started := make(chan struct{})
	release := make(chan struct{})

	session.On("KeepAlive", mock.Anything).Return(nil)
	source.On("AllTrades", mock.Anything, true).Return([]entities.Trade{}).Run(func(args mock.Arguments) {
		close(started)
		<-release
	})

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		w.RunOnce(context.Background())
	}()

	<-started
	assert.True(t, w.InFlight())
	skipped := w.RunOnce(context.Background())
	assert.False(t, skipped)

	close(release)
	wg.Wait()
	assert.False(t, w.InFlight())
}

func TestStart_RejectsDoubleStart(t *testing.T) {
	w, source, session := createTestWorker(nil)

	session.On("KeepAlive", mock.Anything).Return(nil)
	source.On("AllTrades", mock.Anything, true).Return([]entities.Trade{})

	assert.NoError(t, w.Start())
	assert.Error(t, w.Start())
	w.Stop()
}

func TestStop_WaitsForInFlightRun(t *testing.T) {
	w, source, session := createTestWorker(nil)

	started := make(chan struct{})
	done := make(chan struct{})
	session.On("KeepAlive", mock.Anything).Return(nil)
	source.On("AllTrades", mock.Anything, true).Return([]entities.Trade{}).Run(func(args mock.Arguments) {
		close(started)
		time.Sleep(50 * time.Millisecond)
		close(done)
	})

	assert.NoError(t, w.Start())

	// The initial run fires immediately; Stop must drain it.
	<-started
	w.Stop()

	select {
	case <-done:
	default:
		t.Fatal("Stop returned before the in-flight run finished")
	}
}
