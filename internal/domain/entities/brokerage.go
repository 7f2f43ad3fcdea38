package entities

// Raw upstream records as the brokerage API returns them. Numeric fields stay
// strings here; normalization into decimals happens in the portfolio service
// so a single malformed record can be dropped without failing the batch.

// RawExecution is one execution sub-record of an order
type RawExecution struct {
	ID        string `json:"id"`
	Quantity  string `json:"quantity"`
	Price     string `json:"price"`
	Timestamp string `json:"timestamp"`
	CreatedAt string `json:"created_at"`
}

// RawOrder is an order as listed by the brokerage orders endpoint
type RawOrder struct {
	ID                string         `json:"id"`
	Symbol            string         `json:"symbol"`
	Side              string         `json:"side"`
	State             string         `json:"state"`
	Quantity          string         `json:"quantity"`
	AveragePrice      string         `json:"average_price"`
	LastTransactionAt string         `json:"last_transaction_at"`
	Instrument        string         `json:"instrument"`
	Executions        []RawExecution `json:"executions"`
}

// RawHolding is one entry of the holdings map keyed by ticker
type RawHolding struct {
	Name            string `json:"name"`
	Quantity        string `json:"quantity"`
	AverageBuyPrice string `json:"average_buy_price"`
	Price           string `json:"price"`
	Equity          string `json:"equity"`
	EquityChange    string `json:"equity_change"`
	PercentChange   string `json:"percent_change"`
}

// RawHistorical is one historical price sample. BeginsAt marks the start of
// the sample's bucket.
type RawHistorical struct {
	BeginsAt   string `json:"begins_at"`
	ClosePrice string `json:"close_price"`
}

// Instrument is the result of a best-effort instrument lookup
type Instrument struct {
	Symbol string `json:"symbol"`
	Name   string `json:"name"`
}
