package utils

import (
	"crypto/sha256"
	"encoding/hex"
	"net/url"
)

// HashKey creates a SHA256 hash of an identifier such as a SKU or a URL.
// This is useful for creating consistent, safe keys for Redis.
func HashKey(id string) string {
	h := sha256.New()
	h.Write([]byte(id))
	return hex.EncodeToString(h.Sum(nil))
}

// Hostname returns the host part of rawURL, or "unknown" when it cannot be
// parsed. Used as a low-cardinality metrics label.
func Hostname(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil || u.Hostname() == "" {
		return "unknown"
	}
	return u.Hostname()
}
