package util

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"strings"
	"time"
)

func NowISO() string {
	return time.Now().Format(time.RFC3339)
}

// NormalizeBool reads spreadsheet style truthy values, Finnish included.
func NormalizeBool(s string) bool {
	s = strings.TrimSpace(strings.ToLower(s))
	switch s {
	case "kyllä", "k", "yes", "true", "1", "y", "x":
		return true
	default:
		return false
	}
}

func HMACSHA256Hex(secret, msg string) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte(msg))
	return hex.EncodeToString(mac.Sum(nil))
}

// ValidHMAC compares a presented signature against the expected one in constant time.
func ValidHMAC(secret, msg, sig string) bool {
	expected := HMACSHA256Hex(secret, msg)
	return hmac.Equal([]byte(expected), []byte(strings.TrimSpace(sig)))
}
