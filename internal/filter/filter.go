// Package filter consumes ticker frames from a stream session, resolves
// market metadata on first sighting, and accumulates markets whose title
// matches the configured keywords within the configured time window.
package filter

import (
	"context"
	"encoding/json"
	"log/slog"
	"strings"
	"time"

	"github.com/benbjohnson/clock"

	"github.com/dwaltz/kalshi-watch/internal/api"
)

// Directory resolves market metadata by id.
type Directory interface {
	GetMarket(ctx context.Context, id string) (*api.Market, error)
}

// Config holds the predicate settings.
type Config struct {
	Keywords []string      // Case-insensitive title substrings; any match qualifies
	Horizon  time.Duration // Forward window for the end-time check (default 7 days)
}

// Stats counts what the filter has seen. Read them after the receive loop
// has stopped; the filter itself is not synchronized.
type Stats struct {
	Frames       int64 // Total frames handed to the filter
	ParseErrors  int64 // Frames or ticker payloads that failed to decode
	Tickers      int64 // Ticker frames carrying a market id
	Lookups      int64 // Directory lookups issued (first sighting only)
	LookupErrors int64 // Lookups that failed
	Matches      int64 // Markets matching the full predicate
}

// Filter implements stream.Handler. It owns the inspected-id set and the
// found-market store for one session; neither is safe for concurrent
// access from outside the receive loop.
type Filter struct {
	keywords []string
	horizon  time.Duration
	dir      Directory
	clock    clock.Clock
	logger   *slog.Logger

	inspected map[string]struct{}
	found     map[string]api.Market
	stats     Stats
}

// Option configures a Filter.
type Option func(*Filter)

// WithClock substitutes the time source, for tests.
func WithClock(c clock.Clock) Option {
	return func(f *Filter) {
		f.clock = c
	}
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(f *Filter) {
		f.logger = logger
	}
}

// New creates a Filter resolving metadata through dir. Keywords are
// matched case-insensitively; a non-positive horizon falls back to 7 days.
func New(cfg Config, dir Directory, opts ...Option) *Filter {
	f := &Filter{
		horizon:   cfg.Horizon,
		dir:       dir,
		clock:     clock.New(),
		logger:    slog.Default(),
		inspected: make(map[string]struct{}),
		found:     make(map[string]api.Market),
	}
	if f.horizon <= 0 {
		f.horizon = 7 * 24 * time.Hour
	}
	for _, kw := range cfg.Keywords {
		f.keywords = append(f.keywords, strings.ToLower(kw))
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// frame is the envelope of an inbound stream message.
type frame struct {
	Type string          `json:"type"`
	Msg  json.RawMessage `json:"msg"`
}

// tickerEvent is the payload of a "ticker" frame.
type tickerEvent struct {
	MarketID string `json:"market_id"`
}

// HandleMessage dispatches one raw frame. Per-frame problems (bad JSON,
// unexpected shape, failed lookup) are logged and swallowed so one bad
// frame cannot terminate the session; the returned error is always nil.
func (f *Filter) HandleMessage(ctx context.Context, data []byte) error {
	f.stats.Frames++

	var fr frame
	if err := json.Unmarshal(data, &fr); err != nil {
		f.stats.ParseErrors++
		f.logger.Warn("received non-JSON frame", "err", err, "size", len(data))
		return nil
	}

	if fr.Type != "ticker" || !isJSONObject(fr.Msg) {
		f.logger.Debug("ignoring frame", "type", fr.Type)
		return nil
	}

	var ev tickerEvent
	if err := json.Unmarshal(fr.Msg, &ev); err != nil {
		f.stats.ParseErrors++
		f.logger.Warn("unparseable ticker payload", "err", err)
		return nil
	}
	if ev.MarketID == "" {
		return nil
	}
	f.stats.Tickers++

	if _, seen := f.inspected[ev.MarketID]; seen {
		return nil
	}
	f.inspected[ev.MarketID] = struct{}{}

	f.stats.Lookups++
	market, err := f.dir.GetMarket(ctx, ev.MarketID)
	if err != nil {
		f.stats.LookupErrors++
		f.logger.Warn("market lookup failed", "market_id", ev.MarketID, "err", err)
		return nil
	}

	if f.matches(market) {
		f.found[ev.MarketID] = *market
		f.stats.Matches++
		f.logger.Info("found matching market",
			"market_id", ev.MarketID,
			"title", market.Title,
			"end", market.EndRaw,
		)
	}

	return nil
}

// matches applies the title predicate, then the end-time window.
func (f *Filter) matches(m *api.Market) bool {
	title := strings.ToLower(m.Title)
	matched := false
	for _, kw := range f.keywords {
		if strings.Contains(title, kw) {
			matched = true
			break
		}
	}
	if !matched {
		return false
	}
	return f.withinHorizon(m)
}

// withinHorizon checks now <= end <= now+horizon. A missing end timestamp
// passes, and so does one that failed to parse: the filter fails open
// rather than dropping a candidate on a feed-format change.
func (f *Filter) withinHorizon(m *api.Market) bool {
	if m.EndTime == nil {
		if m.EndRaw != "" {
			f.logger.Warn("unparseable end timestamp, allowing match",
				"market_id", m.ID,
				"end", m.EndRaw,
			)
		}
		return true
	}
	now := f.clock.Now()
	end := *m.EndTime
	return !end.Before(now) && !end.After(now.Add(f.horizon))
}

// Found returns a copy of the accumulated matches, keyed by market id.
func (f *Filter) Found() map[string]api.Market {
	out := make(map[string]api.Market, len(f.found))
	for id, m := range f.found {
		out[id] = m
	}
	return out
}

// Stats returns the counters accumulated so far.
func (f *Filter) Stats() Stats {
	return f.stats
}

func isJSONObject(raw json.RawMessage) bool {
	for _, b := range raw {
		switch b {
		case ' ', '\t', '\n', '\r':
			continue
		}
		return b == '{'
	}
	return false
}
