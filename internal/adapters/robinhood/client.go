package robinhood

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/sony/gobreaker"
	"go.uber.org/zap"

	"github.com/folio-service/folio_service/internal/domain/entities"
	"github.com/folio-service/folio_service/internal/infrastructure/config"
	pkgerrors "github.com/folio-service/folio_service/pkg/errors"
	"github.com/folio-service/folio_service/pkg/metrics"
)

// oauthClientID is the public client id the upstream web app uses for the
// password grant.
const oauthClientID = "c82SH0WZOsabOXGP2sxqcj34FxkvfnWRZBKlBjFS"

// TokenSource supplies the current session token. Implemented by the session
// service; wired after construction because the session service in turn
// authenticates through this client.
type TokenSource interface {
	Token() string
}

// Client is the HTTP adapter for the upstream brokerage API. Every call runs
// inside the shared circuit breaker and carries a fixed per-request timeout.
type Client struct {
	baseURL     string
	username    string
	password    string
	deviceToken string
	tokenTTL    int

	httpClient *http.Client
	breaker    *gobreaker.CircuitBreaker
	tokens     TokenSource
	logger     *zap.Logger

	instrumentMu   sync.Mutex
	instrumentMemo map[string]*entities.Instrument
}

// NewClient creates a brokerage client from config
func NewClient(cfg config.BrokerageConfig, breaker *gobreaker.CircuitBreaker, logger *zap.Logger) *Client {
	deviceToken := cfg.DeviceToken
	if deviceToken == "" {
		deviceToken = uuid.New().String()
	}
	return &Client{
		baseURL:     cfg.BaseURL,
		username:    cfg.Username,
		password:    cfg.Password,
		deviceToken: deviceToken,
		tokenTTL:    cfg.TokenTTL,
		httpClient: &http.Client{
			Timeout: time.Duration(cfg.RequestTimeout) * time.Second,
		},
		breaker:        breaker,
		logger:         logger,
		instrumentMemo: make(map[string]*entities.Instrument),
	}
}

// SetTokenSource wires the session service in after construction
func (c *Client) SetTokenSource(tokens TokenSource) {
	c.tokens = tokens
}

// Login exchanges credentials for a session token
func (c *Client) Login(ctx context.Context) (string, error) {
	payload := map[string]interface{}{
		"grant_type":   "password",
		"scope":        "internal",
		"client_id":    oauthClientID,
		"device_token": c.deviceToken,
		"username":     c.username,
		"password":     c.password,
		"expires_in":   c.tokenTTL,
	}

	var resp struct {
		AccessToken string `json:"access_token"`
	}
	if err := c.do(ctx, "login", http.MethodPost, c.baseURL+"/oauth2/token/", nil, payload, "", &resp); err != nil {
		return "", err
	}
	if resp.AccessToken == "" {
		return "", pkgerrors.NewAuth(nil, "login response carried no access token")
	}
	c.logger.Info("brokerage login succeeded")
	return resp.AccessToken, nil
}

// Validate makes a lightweight authenticated call to check a token
func (c *Client) Validate(ctx context.Context, token string) error {
	var resp json.RawMessage
	return c.do(ctx, "validate", http.MethodGet, c.baseURL+"/accounts/", nil, nil, token, &resp)
}

type ordersPage struct {
	Next    string              `json:"next"`
	Results []entities.RawOrder `json:"results"`
}

// ListOrders returns all orders, following upstream pagination cursors
func (c *Client) ListOrders(ctx context.Context) ([]entities.RawOrder, error) {
	var orders []entities.RawOrder

	next := c.baseURL + "/orders/"
	for next != "" {
		var page ordersPage
		if err := c.do(ctx, "list_orders", http.MethodGet, next, nil, nil, c.token(), &page); err != nil {
			return nil, err
		}
		orders = append(orders, page.Results...)
		next = page.Next
	}
	return orders, nil
}

type positionsPage struct {
	Next    string `json:"next"`
	Results []struct {
		Instrument      string `json:"instrument"`
		Quantity        string `json:"quantity"`
		AverageBuyPrice string `json:"average_buy_price"`
	} `json:"results"`
}

type quoteResponse struct {
	Symbol         string `json:"symbol"`
	LastTradePrice string `json:"last_trade_price"`
	PreviousClose  string `json:"previous_close"`
}

// GetHoldings assembles the holdings map the way the upstream web client
// does: nonzero positions joined with instrument metadata and live quotes.
// Derived money fields (equity, equity change, percent change) are computed
// here so the snapshotter stays pure normalization.
func (c *Client) GetHoldings(ctx context.Context) (map[string]entities.RawHolding, error) {
	holdings := make(map[string]entities.RawHolding)

	next := c.baseURL + "/positions/?nonzero=true"
	for next != "" {
		var page positionsPage
		if err := c.do(ctx, "positions", http.MethodGet, next, nil, nil, c.token(), &page); err != nil {
			return nil, err
		}

		for _, pos := range page.Results {
			inst, err := c.resolveInstrument(ctx, pos.Instrument)
			if err != nil || inst.Symbol == "" {
				continue
			}

			var quote quoteResponse
			quoteURL := fmt.Sprintf("%s/marketdata/quotes/%s/", c.baseURL, url.PathEscape(inst.Symbol))
			if err := c.do(ctx, "quote", http.MethodGet, quoteURL, nil, nil, c.token(), &quote); err != nil {
				continue
			}

			holdings[inst.Symbol] = buildHolding(inst.Name, pos.Quantity, pos.AverageBuyPrice, quote.LastTradePrice)
		}
		next = page.Next
	}
	return holdings, nil
}

// buildHolding computes the derived money fields for one position
func buildHolding(name, quantity, avgBuyPrice, price string) entities.RawHolding {
	qty, _ := decimal.NewFromString(quantity)
	avg, _ := decimal.NewFromString(avgBuyPrice)
	px, _ := decimal.NewFromString(price)

	equity := qty.Mul(px)
	cost := qty.Mul(avg)
	change := equity.Sub(cost)
	percent := decimal.Zero
	if cost.IsPositive() {
		percent = change.Div(cost).Mul(decimal.NewFromInt(100))
	}

	return entities.RawHolding{
		Name:            name,
		Quantity:        quantity,
		AverageBuyPrice: avgBuyPrice,
		Price:           price,
		Equity:          equity.String(),
		EquityChange:    change.String(),
		PercentChange:   percent.String(),
	}
}

type historicalsResponse struct {
	Historicals []entities.RawHistorical `json:"historicals"`
}

// GetHistoricalPrices returns price samples for one symbol
func (c *Client) GetHistoricalPrices(ctx context.Context, symbol, interval, span, bounds string) ([]entities.RawHistorical, error) {
	params := url.Values{}
	params.Set("interval", interval)
	params.Set("span", span)
	params.Set("bounds", bounds)

	var resp historicalsResponse
	histURL := fmt.Sprintf("%s/marketdata/historicals/%s/", c.baseURL, url.PathEscape(symbol))
	if err := c.do(ctx, "historicals", http.MethodGet, histURL, params, nil, c.token(), &resp); err != nil {
		return nil, err
	}
	return resp.Historicals, nil
}

// GetLatestPrice returns the live last-trade quote for one symbol
func (c *Client) GetLatestPrice(ctx context.Context, symbol string) (decimal.Decimal, error) {
	var quote quoteResponse
	quoteURL := fmt.Sprintf("%s/marketdata/quotes/%s/", c.baseURL, url.PathEscape(symbol))
	if err := c.do(ctx, "latest_price", http.MethodGet, quoteURL, nil, nil, c.token(), &quote); err != nil {
		return decimal.Zero, err
	}
	price, err := decimal.NewFromString(quote.LastTradePrice)
	if err != nil {
		return decimal.Zero, pkgerrors.NewData("quote carried no parseable last trade price")
	}
	return price, nil
}

func (c *Client) token() string {
	if c.tokens == nil {
		return ""
	}
	return c.tokens.Token()
}

// do executes one upstream request through the circuit breaker and decodes
// the JSON response into out.
func (c *Client) do(ctx context.Context, operation, method, rawURL string, params url.Values, payload interface{}, token string, out interface{}) error {
	_, err := c.breaker.Execute(func() (interface{}, error) {
		return nil, c.doOnce(ctx, method, rawURL, params, payload, token, out)
	})
	outcome := "ok"
	if err != nil {
		outcome = "error"
	}
	metrics.BrokerageCallsTotal.WithLabelValues(operation, outcome).Inc()
	if err == gobreaker.ErrOpenState || err == gobreaker.ErrTooManyRequests {
		return pkgerrors.NewTransport(err, "brokerage circuit open")
	}
	return err
}

func (c *Client) doOnce(ctx context.Context, method, rawURL string, params url.Values, payload interface{}, token string, out interface{}) error {
	if params != nil {
		rawURL = rawURL + "?" + params.Encode()
	}

	var body io.Reader
	if payload != nil {
		data, err := json.Marshal(payload)
		if err != nil {
			return fmt.Errorf("failed to encode request body: %w", err)
		}
		body = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, rawURL, body)
	if err != nil {
		return fmt.Errorf("failed to build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return pkgerrors.NewTransport(err, "brokerage request failed")
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		return pkgerrors.NewAuth(nil, fmt.Sprintf("brokerage returned %d", resp.StatusCode))
	case resp.StatusCode >= 500:
		return pkgerrors.NewTransport(nil, fmt.Sprintf("brokerage returned %d", resp.StatusCode))
	case resp.StatusCode >= 400:
		return fmt.Errorf("brokerage returned %d for %s", resp.StatusCode, rawURL)
	}

	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return pkgerrors.NewData("failed to decode brokerage response")
	}
	return nil
}
