package api

import (
	"errors"
	"fmt"
)

// ErrMarketNotFound reports a market lookup for an id the exchange does
// not know.
var ErrMarketNotFound = errors.New("market not found")

// APIError is a non-2xx HTTP response from the exchange. The body is kept
// for diagnostics.
type APIError struct {
	StatusCode int
	Body       []byte
}

func (e *APIError) Error() string {
	return fmt.Sprintf("kalshi api error %d: %s", e.StatusCode, truncate(e.Body, 256))
}

// TransportError is a network-level failure (timeout, connection refused,
// DNS) before any HTTP status was obtained.
type TransportError struct {
	Err error
}

func (e *TransportError) Error() string { return "transport: " + e.Err.Error() }

func (e *TransportError) Unwrap() error { return e.Err }

// DecodeError is malformed JSON on an otherwise successful response.
type DecodeError struct {
	Err error
}

func (e *DecodeError) Error() string { return "decode response: " + e.Err.Error() }

func (e *DecodeError) Unwrap() error { return e.Err }

func truncate(b []byte, n int) string {
	if len(b) <= n {
		return string(b)
	}
	return string(b[:n]) + "..."
}
