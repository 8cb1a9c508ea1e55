package usecase

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"strings"
)

// VerifySignature checks the Linear-Signature header against an
// HMAC-SHA256 of the raw request body keyed by the shared secret.
// Comparison is constant-time. An empty secret fails closed: unsigned
// operation has to be enabled explicitly at the engine level.
func VerifySignature(body []byte, signature, secret string) bool {
	if secret == "" || signature == "" {
		return false
	}

	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(body)
	expected := hex.EncodeToString(mac.Sum(nil))

	return hmac.Equal([]byte(strings.TrimSpace(signature)), []byte(expected))
}
