package portfolio

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"

	"github.com/folio-service/folio_service/internal/domain/entities"
)

func TestGetPositions_NormalizesHoldings(t *testing.T) {
	svc, brokerage, _, session := createTestService(t)

	session.On("EnsureLoggedIn", mock.Anything).Return(nil)
	brokerage.On("GetHoldings", mock.Anything).Return(map[string]entities.RawHolding{
		"AAPL": {
			Name:            "Apple Inc.",
			Quantity:        "10.123456",
			AverageBuyPrice: "148.3333",
			Price:           "150.25",
			Equity:          "1521.04",
			EquityChange:    "19.117",
			PercentChange:   "1.2725",
		},
	}, nil)

	positions := svc.GetPositions(context.Background())

	assert.Len(t, positions, 1)
	p := positions[0]
	assert.Equal(t, "AAPL", p.Ticker)
	assert.Equal(t, "Apple Inc.", p.Name)
	assert.Equal(t, "10.1235", p.Quantity.String())
	assert.Equal(t, "148.3333", p.AvgBuyPrice.String())
	assert.Equal(t, "150.25", p.CurrentPrice.String())
	assert.Equal(t, "1521.04", p.MarketValue.String())
	assert.Equal(t, "19.12", p.UnrealizedGainLoss.String())
	assert.Equal(t, "1.27", p.PercentChange.String())
}

func TestGetPositions_MalformedNumbersDefaultToZero(t *testing.T) {
	svc, brokerage, _, session := createTestService(t)

	session.On("EnsureLoggedIn", mock.Anything).Return(nil)
	brokerage.On("GetHoldings", mock.Anything).Return(map[string]entities.RawHolding{
		"TSLA": {Quantity: "not-a-number", Price: ""},
	}, nil)

	positions := svc.GetPositions(context.Background())

	assert.Len(t, positions, 1)
	assert.True(t, positions[0].Quantity.IsZero())
	assert.True(t, positions[0].CurrentPrice.IsZero())
	// Name falls back to the ticker
	assert.Equal(t, "TSLA", positions[0].Name)
}

func TestGetPositions_SortedByTicker(t *testing.T) {
	svc, brokerage, _, session := createTestService(t)

	session.On("EnsureLoggedIn", mock.Anything).Return(nil)
	brokerage.On("GetHoldings", mock.Anything).Return(map[string]entities.RawHolding{
		"MSFT": {Quantity: "1"},
		"AAPL": {Quantity: "2"},
		"TSLA": {Quantity: "3"},
	}, nil)

	positions := svc.GetPositions(context.Background())

	assert.Equal(t, []string{"AAPL", "MSFT", "TSLA"},
		[]string{positions[0].Ticker, positions[1].Ticker, positions[2].Ticker})
}

func TestGetPositions_UpstreamFailureYieldsEmptySlice(t *testing.T) {
	svc, _, _, session := createTestService(t)

	session.On("EnsureLoggedIn", mock.Anything).Return(fmt.Errorf("brokerage unreachable"))

	positions := svc.GetPositions(context.Background())

	assert.NotNil(t, positions)
	assert.Empty(t, positions)
}
