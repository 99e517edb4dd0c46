package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"time"
)

const (
	portfolioPath = "/trade-api/v2/portfolio"
	exchangePath  = "/trade-api/v2/exchange"
	marketsPath   = "/trade-api/v2/markets"
)

// GetBalance fetches the account balance.
func (c *Client) GetBalance(ctx context.Context) (*Balance, error) {
	var resp Balance
	if err := c.get(ctx, portfolioPath+"/balance", nil, &resp); err != nil {
		return nil, fmt.Errorf("get balance: %w", err)
	}
	return &resp, nil
}

// GetExchangeStatus fetches the current exchange status.
func (c *Client) GetExchangeStatus(ctx context.Context) (*ExchangeStatus, error) {
	var resp ExchangeStatus
	if err := c.get(ctx, exchangePath+"/status", nil, &resp); err != nil {
		return nil, fmt.Errorf("get exchange status: %w", err)
	}
	return &resp, nil
}

// ListMarketsOptions configures a ListMarkets request. Zero-valued fields
// are omitted from the query; the values themselves are passed through to
// the server untouched.
type ListMarketsOptions struct {
	Limit       int
	Cursor      string
	Status      string
	EventTicker string
	MinEndTime  time.Time
	MaxEndTime  time.Time
}

// ListMarkets fetches a page of markets.
func (c *Client) ListMarkets(ctx context.Context, opts ListMarketsOptions) (*MarketsPage, error) {
	query := url.Values{}
	if opts.Limit > 0 {
		query.Set("limit", strconv.Itoa(opts.Limit))
	}
	if opts.Cursor != "" {
		query.Set("cursor", opts.Cursor)
	}
	if opts.Status != "" {
		query.Set("status", opts.Status)
	}
	if opts.EventTicker != "" {
		query.Set("event_ticker", opts.EventTicker)
	}
	if !opts.MinEndTime.IsZero() {
		query.Set("min_end_datetime", opts.MinEndTime.UTC().Format(time.RFC3339))
	}
	if !opts.MaxEndTime.IsZero() {
		query.Set("max_end_datetime", opts.MaxEndTime.UTC().Format(time.RFC3339))
	}

	var resp struct {
		Markets []marketPayload `json:"markets"`
		Cursor  string          `json:"cursor"`
	}
	if err := c.get(ctx, marketsPath, query, &resp); err != nil {
		return nil, fmt.Errorf("list markets: %w", err)
	}

	page := &MarketsPage{
		Markets: make([]Market, 0, len(resp.Markets)),
		Cursor:  resp.Cursor,
	}
	for i := range resp.Markets {
		page.Markets = append(page.Markets, *resp.Markets[i].toMarket())
	}
	return page, nil
}

// GetTradesOptions configures a GetTrades request. Unset fields are
// omitted from the query.
type GetTradesOptions struct {
	Ticker string
	Limit  int
	Cursor string
	MaxTS  int64 // Unix seconds, inclusive upper bound
	MinTS  int64 // Unix seconds, inclusive lower bound
}

// GetTrades fetches executed trades matching the given filters.
func (c *Client) GetTrades(ctx context.Context, opts GetTradesOptions) (*TradesPage, error) {
	query := url.Values{}
	if opts.Ticker != "" {
		query.Set("ticker", opts.Ticker)
	}
	if opts.Limit > 0 {
		query.Set("limit", strconv.Itoa(opts.Limit))
	}
	if opts.Cursor != "" {
		query.Set("cursor", opts.Cursor)
	}
	if opts.MaxTS > 0 {
		query.Set("max_ts", strconv.FormatInt(opts.MaxTS, 10))
	}
	if opts.MinTS > 0 {
		query.Set("min_ts", strconv.FormatInt(opts.MinTS, 10))
	}

	var resp TradesPage
	if err := c.get(ctx, marketsPath+"/trades", query, &resp); err != nil {
		return nil, fmt.Errorf("get trades: %w", err)
	}
	return &resp, nil
}

// GetMarket fetches a single market by id and normalizes the payload,
// which may arrive bare or wrapped under a "market" key. A 404 from the
// exchange maps to ErrMarketNotFound.
func (c *Client) GetMarket(ctx context.Context, id string) (*Market, error) {
	var raw json.RawMessage
	if err := c.get(ctx, marketsPath+"/"+id, nil, &raw); err != nil {
		var apiErr *APIError
		if errors.As(err, &apiErr) && apiErr.StatusCode == http.StatusNotFound {
			return nil, fmt.Errorf("get market %s: %w", id, ErrMarketNotFound)
		}
		return nil, fmt.Errorf("get market %s: %w", id, err)
	}

	m, err := normalizeMarket(raw)
	if err != nil {
		return nil, fmt.Errorf("get market %s: %w", id, err)
	}
	return m, nil
}
