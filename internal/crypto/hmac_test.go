package crypto

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSignMatchesKnownVector(t *testing.T) {
	// Reference request signature from the exchange API documentation.
	s := NewSigner(
		"vmPUZE6mv9SD5VNHk4HlWFsOr6aKE2zvsw0MuIgwCIPy6utIco14y7Ju91duEh8A",
		"NhqPtmdSJYdKjVHjA7PZj4Mge3R5YNiP1e3UZjInClVN65XAbvqqM6A7H5fATj0j",
	)
	query := "symbol=LTCBTC&side=BUY&type=LIMIT&timeInForce=GTC&quantity=1&price=0.1&recvWindow=5000&timestamp=1499827319559"

	assert.Equal(t,
		"c8db56825ae71d6d79447849e617115f4a920fa2acdcab2b053c4b2838bd6b71",
		s.Sign(query),
	)
}

func TestSignerStringRedacted(t *testing.T) {
	s := NewSigner("my-api-key", "my-api-secret")
	out := s.String()
	assert.NotContains(t, out, "my-api-secret")
	assert.NotContains(t, out, "my-api-key")
}

func TestAPIKeyHeaderName(t *testing.T) {
	assert.Equal(t, "X-MBX-APIKEY", APIKeyHeader)
}
