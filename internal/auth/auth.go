// Package auth provides Kalshi API authentication using RSA-PSS signatures.
package auth

import (
	"crypto"
	"crypto/rand"
	"crypto/rsa"
	"crypto/sha256"
	"crypto/x509"
	"encoding/base64"
	"encoding/pem"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// WebSocketPath is the upgrade path used for WebSocket signature generation.
const WebSocketPath = "/trade-api/ws/v2"

// SigningError wraps a failure to produce a request signature.
type SigningError struct {
	Err error
}

func (e *SigningError) Error() string { return "sign request: " + e.Err.Error() }

func (e *SigningError) Unwrap() error { return e.Err }

// Credentials holds the API key ID and private key for signing requests.
// Immutable for the process lifetime.
type Credentials struct {
	KeyID      string
	PrivateKey *rsa.PrivateKey
}

// LoadCredentials loads credentials from a key ID and a private key file path.
func LoadCredentials(keyID, privateKeyPath string) (*Credentials, error) {
	if keyID == "" {
		return nil, fmt.Errorf("API key ID is required")
	}
	if privateKeyPath == "" {
		return nil, fmt.Errorf("private key path is required")
	}

	privateKey, err := LoadPrivateKey(privateKeyPath)
	if err != nil {
		return nil, fmt.Errorf("load private key: %w", err)
	}

	return &Credentials{
		KeyID:      keyID,
		PrivateKey: privateKey,
	}, nil
}

// LoadPrivateKey loads an RSA private key from a PEM file.
// Accepts PKCS#8 and PKCS#1 encodings.
func LoadPrivateKey(path string) (*rsa.PrivateKey, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read key file: %w", err)
	}

	block, _ := pem.Decode(data)
	if block == nil {
		return nil, fmt.Errorf("failed to decode PEM block")
	}

	key, err := x509.ParsePKCS8PrivateKey(block.Bytes)
	if err == nil {
		rsaKey, ok := key.(*rsa.PrivateKey)
		if !ok {
			return nil, fmt.Errorf("key is not an RSA private key")
		}
		return rsaKey, nil
	}

	rsaKey, err := x509.ParsePKCS1PrivateKey(block.Bytes)
	if err != nil {
		return nil, fmt.Errorf("parse private key: %w", err)
	}

	return rsaKey, nil
}

// Sign produces the authentication timestamp and signature for one request.
// The timestamp is current wall-clock time in milliseconds, generated fresh
// on every call; it is the exact value that must travel in the
// KALSHI-ACCESS-TIMESTAMP header alongside the signature.
func (c *Credentials) Sign(method, path string) (timestamp, signature string, err error) {
	timestamp = strconv.FormatInt(time.Now().UnixMilli(), 10)

	signature, err = c.signPSS(canonicalMessage(timestamp, method, path))
	if err != nil {
		return "", "", &SigningError{Err: err}
	}

	return timestamp, signature, nil
}

// RequestHeaders generates the required authentication headers for an API
// request. For WebSocket connections, method is "GET" and path is
// WebSocketPath.
func (c *Credentials) RequestHeaders(method, path string) (map[string]string, error) {
	timestamp, signature, err := c.Sign(method, path)
	if err != nil {
		return nil, err
	}

	return map[string]string{
		"Content-Type":            "application/json",
		"KALSHI-ACCESS-KEY":       c.KeyID,
		"KALSHI-ACCESS-TIMESTAMP": timestamp,
		"KALSHI-ACCESS-SIGNATURE": signature,
	}, nil
}

// canonicalMessage builds the exact string that gets signed:
// timestamp + method + path. The signature covers only the path component,
// so anything after the first '?' is stripped.
func canonicalMessage(timestamp, method, path string) string {
	if i := strings.IndexByte(path, '?'); i >= 0 {
		path = path[:i]
	}
	return timestamp + method + path
}

// signPSS signs the message with RSA-PSS (SHA-256 digest, MGF1(SHA-256),
// salt length equal to the digest length) and returns the standard base64
// encoding of the signature bytes.
func (c *Credentials) signPSS(message string) (string, error) {
	hashed := sha256.Sum256([]byte(message))

	signature, err := rsa.SignPSS(
		rand.Reader,
		c.PrivateKey,
		crypto.SHA256,
		hashed[:],
		&rsa.PSSOptions{SaltLength: rsa.PSSSaltLengthEqualsHash},
	)
	if err != nil {
		return "", fmt.Errorf("sign message: %w", err)
	}

	return base64.StdEncoding.EncodeToString(signature), nil
}
