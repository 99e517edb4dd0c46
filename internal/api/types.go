package api

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Balance from GET /trade-api/v2/portfolio/balance. Values are in cents.
type Balance struct {
	Balance int64 `json:"balance"`
	Payout  int64 `json:"payout"`
}

// Dollars returns the balance as a decimal dollar amount.
func (b *Balance) Dollars() decimal.Decimal {
	return decimal.New(b.Balance, -2)
}

// ExchangeStatus from GET /trade-api/v2/exchange/status.
type ExchangeStatus struct {
	ExchangeActive      bool   `json:"exchange_active"`
	TradingActive       bool   `json:"trading_active"`
	EstimatedResumeTime string `json:"exchange_estimated_resume_time,omitempty"`
}

// Market is the normalized market representation used by the filter.
// Immutable once constructed; copies may be cached freely.
type Market struct {
	ID    string // Market identifier (id, market_id, or ticker, whichever the payload carries)
	Title string

	// EndTime is nil when the payload carries no end timestamp or one that
	// does not parse; EndRaw keeps the original string for diagnostics.
	EndTime *time.Time
	EndRaw  string

	// Prices in cents, with sub-penny dollar variants.
	YesBid           int
	YesAsk           int
	LastPrice        int
	YesBidDollars    decimal.Decimal
	YesAskDollars    decimal.Decimal
	LastPriceDollars decimal.Decimal
}

// marketPayload is the wire shape of a market object. Identifier and end
// timestamp field names vary across endpoints and API revisions, so all
// known spellings are captured.
type marketPayload struct {
	ID       string `json:"id"`
	MarketID string `json:"market_id"`
	Ticker   string `json:"ticker"`
	Title    string `json:"title"`

	EndDatetime string `json:"end_datetime"`
	CloseTime   string `json:"close_time"`

	YesBid           int             `json:"yes_bid"`
	YesAsk           int             `json:"yes_ask"`
	LastPrice        int             `json:"last_price"`
	YesBidDollars    decimal.Decimal `json:"yes_bid_dollars"`
	YesAskDollars    decimal.Decimal `json:"yes_ask_dollars"`
	LastPriceDollars decimal.Decimal `json:"last_price_dollars"`
}

// toMarket normalizes a wire payload into a Market. End-timestamp parse
// failures leave EndTime nil rather than failing the decode; the filter
// decides what an absent end time means.
func (p *marketPayload) toMarket() *Market {
	m := &Market{
		Title:            p.Title,
		YesBid:           p.YesBid,
		YesAsk:           p.YesAsk,
		LastPrice:        p.LastPrice,
		YesBidDollars:    p.YesBidDollars,
		YesAskDollars:    p.YesAskDollars,
		LastPriceDollars: p.LastPriceDollars,
	}

	switch {
	case p.ID != "":
		m.ID = p.ID
	case p.MarketID != "":
		m.ID = p.MarketID
	default:
		m.ID = p.Ticker
	}

	m.EndRaw = p.EndDatetime
	if m.EndRaw == "" {
		m.EndRaw = p.CloseTime
	}
	if m.EndRaw != "" {
		if t, err := time.Parse(time.RFC3339, m.EndRaw); err == nil {
			m.EndTime = &t
		}
	}

	return m
}

// normalizeMarket decodes a single-market payload that may arrive either
// as the bare market object or nested under a "market" key.
func normalizeMarket(raw json.RawMessage) (*Market, error) {
	var wrapped struct {
		Market json.RawMessage `json:"market"`
	}
	if err := json.Unmarshal(raw, &wrapped); err == nil && len(wrapped.Market) > 0 {
		raw = wrapped.Market
	}

	var p marketPayload
	if err := json.Unmarshal(raw, &p); err != nil {
		return nil, &DecodeError{Err: err}
	}

	return p.toMarket(), nil
}

// MarketsPage from GET /trade-api/v2/markets.
type MarketsPage struct {
	Markets []Market
	Cursor  string
}

// Trade from GET /trade-api/v2/markets/trades.
type Trade struct {
	TradeID     uuid.UUID `json:"trade_id"`
	Ticker      string    `json:"ticker"`
	YesPrice    int       `json:"yes_price"`
	NoPrice     int       `json:"no_price"`
	Count       int       `json:"count"`
	TakerSide   string    `json:"taker_side"`
	CreatedTime string    `json:"created_time"`
}

// TradesPage from GET /trade-api/v2/markets/trades.
type TradesPage struct {
	Trades []Trade `json:"trades"`
	Cursor string  `json:"cursor"`
}
