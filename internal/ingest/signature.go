package ingest

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"strings"
)

// Sign returns the base64 HMAC-SHA256 of body under secret, as sent in X-Shopify-Hmac-Sha256
func Sign(body []byte, secret string) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(body)
	return base64.StdEncoding.EncodeToString(mac.Sum(nil))
}

// VerifySignature reports whether header is a valid signature of body under any secret.
// An empty header or an empty secret list never verifies.
func VerifySignature(body []byte, header string, secrets []string) bool {
	header = strings.TrimSpace(header)
	if header == "" {
		return false
	}
	got, err := base64.StdEncoding.DecodeString(header)
	if err != nil {
		return false
	}

	matched := false
	for _, secret := range secrets {
		if secret == "" {
			continue
		}
		mac := hmac.New(sha256.New, []byte(secret))
		mac.Write(body)
		// check every candidate so timing does not reveal which secret matched
		if hmac.Equal(mac.Sum(nil), got) {
			matched = true
		}
	}
	return matched
}
