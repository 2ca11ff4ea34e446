package security

import (
	"crypto/sha256"
	"encoding/hex"
)

// Checksum computes the session-exchange checksum the broker expects:
// sha256 over api_key + request_token + api_secret, hex encoded.
func Checksum(apiKey, requestToken, apiSecret string) string {
	sum := sha256.Sum256([]byte(apiKey + requestToken + apiSecret))
	return hex.EncodeToString(sum[:])
}

// Mask shortens a secret for log output, keeping just enough of the tail
// to correlate tokens across log lines.
func Mask(secret string) string {
	if secret == "" {
		return ""
	}
	if len(secret) <= 8 {
		return "****"
	}
	return "****" + secret[len(secret)-4:]
}
