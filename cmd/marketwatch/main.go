// marketwatch streams Kalshi ticker events and collects markets whose
// titles match the configured keywords and whose end times fall within
// the configured horizon.
// Usage: go run ./cmd/marketwatch --config configs/marketwatch.example.yaml
//
// The private key path and key ID come from the config file; values of the
// form ${VAR} are expanded from the environment.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/avast/retry-go"
	"golang.org/x/sync/errgroup"

	"github.com/dwaltz/kalshi-watch/internal/api"
	"github.com/dwaltz/kalshi-watch/internal/auth"
	"github.com/dwaltz/kalshi-watch/internal/config"
	"github.com/dwaltz/kalshi-watch/internal/filter"
	"github.com/dwaltz/kalshi-watch/internal/ratelimit"
	"github.com/dwaltz/kalshi-watch/internal/stream"
	"github.com/dwaltz/kalshi-watch/internal/version"
)

func main() {
	configPath := flag.String("config", "configs/marketwatch.example.yaml", "path to config file")
	verbose := flag.Bool("verbose", false, "enable debug logging")
	showVersion := flag.Bool("version", false, "print version and exit")
	flag.Parse()

	if *showVersion {
		fmt.Println(version.String())
		return
	}

	level := slog.LevelInfo
	if *verbose {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: level}))

	if err := run(*configPath, logger); err != nil {
		logger.Error("marketwatch failed", "error", err)
		os.Exit(1)
	}
}

func run(configPath string, logger *slog.Logger) error {
	cfg, err := config.LoadAndValidate(configPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	endpoints, err := cfg.API.Environment.Endpoints()
	if err != nil {
		return err
	}

	creds, err := auth.LoadCredentials(cfg.API.KeyID, cfg.API.PrivateKeyPath)
	if err != nil {
		return fmt.Errorf("load credentials: %w", err)
	}

	logger.Info("starting marketwatch",
		"version", version.String(),
		"environment", cfg.API.Environment,
		"duration", cfg.Run.Duration,
		"keywords", cfg.Filter.Keywords,
		"horizon", cfg.Filter.Horizon,
	)

	// One limiter for every REST call this process makes.
	limiter := ratelimit.New(ratelimit.DefaultInterval)
	client := api.NewClient(endpoints.RestURL, creds,
		api.WithTimeout(cfg.API.Timeout),
		api.WithLimiter(limiter),
		api.WithLogger(logger),
	)

	ctx, cancel := context.WithTimeout(context.Background(), cfg.Run.Duration)
	defer cancel()
	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// The transport never retries; the bootstrap call is the one place a
	// transient failure should not kill the run, so retry lives here.
	var balance *api.Balance
	err = retry.Do(
		func() error {
			var err error
			balance, err = client.GetBalance(ctx)
			return err
		},
		retry.Attempts(3),
		retry.Context(ctx),
	)
	if err != nil {
		return fmt.Errorf("get balance: %w", err)
	}
	logger.Info("account balance", "dollars", balance.Dollars())

	status, err := client.GetExchangeStatus(ctx)
	if err != nil {
		return fmt.Errorf("get exchange status: %w", err)
	}
	logger.Info("exchange status",
		"exchange_active", status.ExchangeActive,
		"trading_active", status.TradingActive,
	)

	f := filter.New(filter.Config{
		Keywords: cfg.Filter.Keywords,
		Horizon:  cfg.Filter.Horizon,
	}, client, filter.WithLogger(logger))

	session := stream.New(
		stream.DefaultConfig(endpoints.WSURL+auth.WebSocketPath),
		creds, f, logger,
	)

	// One-shot HTTP search before the stream opens; both paths share the
	// client's rate limiter.
	searchUpcoming(ctx, client, cfg, logger)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return runSession(gctx, session, logger)
	})
	if err := g.Wait(); err != nil {
		return err
	}

	found := f.Found()
	stats := f.Stats()
	logger.Info("session summary",
		"frames", stats.Frames,
		"tickers", stats.Tickers,
		"lookups", stats.Lookups,
		"lookup_errors", stats.LookupErrors,
		"parse_errors", stats.ParseErrors,
		"matches", stats.Matches,
	)
	for id, m := range found {
		logger.Info("matched market", "market_id", id, "title", m.Title, "end", m.EndRaw)
	}
	if len(found) == 0 {
		logger.Info("no matching markets seen on the stream")
	}

	return nil
}

// runSession runs the stream and maps expected terminations to nil.
func runSession(ctx context.Context, session *stream.Session, logger *slog.Logger) error {
	err := session.Run(ctx)

	var closeStatus *stream.CloseStatus
	switch {
	case err == nil:
		return nil
	case errors.As(err, &closeStatus):
		return nil // clean remote close, already logged by the session
	case errors.Is(err, context.DeadlineExceeded):
		logger.Info("run duration reached, shutting down stream")
		return nil
	case errors.Is(err, context.Canceled):
		logger.Info("stream cancelled")
		return nil
	default:
		return fmt.Errorf("stream: %w", err)
	}
}

// searchUpcoming lists markets ending within the horizon and logs the ones
// whose titles match the keywords. Failures are logged and swallowed; the
// stream is the primary source.
func searchUpcoming(ctx context.Context, client *api.Client, cfg *config.Config, logger *slog.Logger) {
	now := time.Now().UTC()
	page, err := client.ListMarkets(ctx, api.ListMarketsOptions{
		Limit:      200,
		Status:     "open",
		MinEndTime: now,
		MaxEndTime: now.Add(cfg.Filter.Horizon),
	})
	if err != nil {
		logger.Warn("market list search failed", "err", err)
		return
	}

	logger.Info("one-shot search complete", "markets", len(page.Markets))
	for _, m := range page.Markets {
		if titleMatches(m.Title, cfg.Filter.Keywords) {
			logger.Info("upcoming matching market", "market_id", m.ID, "title", m.Title, "end", m.EndRaw)
		}
	}
}

func titleMatches(title string, keywords []string) bool {
	lower := strings.ToLower(title)
	for _, kw := range keywords {
		if strings.Contains(lower, strings.ToLower(kw)) {
			return true
		}
	}
	return false
}
