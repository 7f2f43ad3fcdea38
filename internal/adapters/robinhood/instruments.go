package robinhood

import (
	"context"
	"net/http"

	"github.com/folio-service/folio_service/internal/domain/entities"
)

type instrumentResponse struct {
	Symbol     string `json:"symbol"`
	Name       string `json:"name"`
	SimpleName string `json:"simple_name"`
}

// Resolve looks up an instrument URL and returns its symbol and display
// name. Lookups are best-effort; callers tolerate a nil result. Results are
// memoized for the process lifetime since instrument metadata is static.
func (c *Client) Resolve(ctx context.Context, instrumentURL string) (*entities.Instrument, error) {
	return c.resolveInstrument(ctx, instrumentURL)
}

func (c *Client) resolveInstrument(ctx context.Context, instrumentURL string) (*entities.Instrument, error) {
	if instrumentURL == "" {
		return nil, nil
	}

	c.instrumentMu.Lock()
	if inst, ok := c.instrumentMemo[instrumentURL]; ok {
		c.instrumentMu.Unlock()
		return inst, nil
	}
	c.instrumentMu.Unlock()

	var resp instrumentResponse
	if err := c.do(ctx, "instrument", http.MethodGet, instrumentURL, nil, nil, "", &resp); err != nil {
		return nil, err
	}

	name := resp.Name
	if name == "" {
		name = resp.SimpleName
	}
	inst := &entities.Instrument{
		Symbol: resp.Symbol,
		Name:   name,
	}

	c.instrumentMu.Lock()
	c.instrumentMemo[instrumentURL] = inst
	c.instrumentMu.Unlock()

	return inst, nil
}
