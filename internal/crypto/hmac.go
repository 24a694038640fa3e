// Package crypto provides request signing and secret management for the
// Binance REST API.
package crypto

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
)

// APIKeyHeader is the header carrying the API key on signed requests.
const APIKeyHeader = "X-MBX-APIKEY"

// Signer produces HMAC-SHA256 signatures over request query strings, as
// required by the Binance SIGNED endpoint contract.
type Signer struct {
	apiKey    string
	apiSecret string
}

// NewSigner creates a Signer from an API key and secret.
func NewSigner(apiKey, apiSecret string) *Signer {
	return &Signer{apiKey: apiKey, apiSecret: apiSecret}
}

// APIKey returns the API key sent in the X-MBX-APIKEY header.
func (s *Signer) APIKey() string { return s.apiKey }

// Sign computes the hex-encoded HMAC-SHA256 of queryString under the API
// secret. The exchange verifies this value against the `signature` query
// parameter.
func (s *Signer) Sign(queryString string) string {
	mac := hmac.New(sha256.New, []byte(s.apiSecret))
	mac.Write([]byte(queryString))
	return hex.EncodeToString(mac.Sum(nil))
}

// String returns a redacted representation suitable for logging.
func (s *Signer) String() string {
	redact := func(v string) string {
		if len(v) <= 4 {
			return "****"
		}
		return v[:4] + "****"
	}
	return fmt.Sprintf("Signer{key=%s, secret=%s}", redact(s.apiKey), redact(s.apiSecret))
}
