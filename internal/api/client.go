package api

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/dwaltz/kalshi-watch/internal/auth"
	"github.com/dwaltz/kalshi-watch/internal/ratelimit"
)

// Client provides access to the Kalshi REST API. All calls issued through
// one Client share its rate limiter, so spacing is a property of the
// client instance, not of each caller.
type Client struct {
	baseURL    string
	signer     *auth.Credentials
	httpClient *http.Client
	limiter    ratelimit.Limiter
	logger     *slog.Logger
}

// ClientOption configures a Client.
type ClientOption func(*Client)

// NewClient creates a new REST API client rooted at baseURL, signing every
// request with the given credentials.
func NewClient(baseURL string, signer *auth.Credentials, opts ...ClientOption) *Client {
	c := &Client{
		baseURL: baseURL,
		signer:  signer,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
		limiter: ratelimit.New(ratelimit.DefaultInterval),
		logger:  slog.Default(),
	}

	for _, opt := range opts {
		opt(c)
	}

	return c
}

// WithTimeout sets the HTTP client timeout.
func WithTimeout(d time.Duration) ClientOption {
	return func(c *Client) {
		c.httpClient.Timeout = d
	}
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) ClientOption {
	return func(c *Client) {
		c.logger = logger
	}
}

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(hc *http.Client) ClientOption {
	return func(c *Client) {
		c.httpClient = hc
	}
}

// WithLimiter sets the rate limiter shared by all calls on this client.
func WithLimiter(l ratelimit.Limiter) ClientOption {
	return func(c *Client) {
		c.limiter = l
	}
}
