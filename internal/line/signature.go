package line

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
)

// VerifySignature checks the platform webhook signature: base64 of an
// HMAC-SHA256 digest over the raw body keyed by the channel secret. The
// encoded strings are compared in constant time; decoding the provided
// signature instead would let base64's ignored trailing padding bits
// alias distinct signature strings to the same digest. An empty
// signature never verifies.
func VerifySignature(body []byte, signature string, secret []byte) bool {
	if signature == "" {
		return false
	}
	mac := hmac.New(sha256.New, secret)
	mac.Write(body)
	expected := base64.StdEncoding.EncodeToString(mac.Sum(nil))
	return hmac.Equal([]byte(signature), []byte(expected))
}
