// Package api provides the signed, rate-limited REST client for the
// Kalshi trade API v2 and the market-directory operations built on it
// (balance, exchange status, market listing/lookup, trades).
//
// Every request acquires the shared rate limiter, signs the request path
// (query string excluded) with the caller's credentials, and decodes the
// JSON response. Non-2xx responses surface as *APIError, network failures
// as *TransportError, and malformed JSON on a successful response as
// *DecodeError. The transport never retries; retry policy belongs to the
// caller.
package api
