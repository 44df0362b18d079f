package auth

import (
	"crypto/hmac"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"strconv"
)

// signLoginPayload computes signature = HMAC-SHA256(secretKey,
// apiKey || timestamp || sessionID) per spec §4.4, returned as lowercase
// hex.
func signLoginPayload(secretKey, apiKey string, timestamp int64, sessionID string) string {
	mac := hmac.New(sha256.New, []byte(secretKey))
	mac.Write([]byte(apiKey))
	mac.Write([]byte(strconv.FormatInt(timestamp, 10)))
	mac.Write([]byte(sessionID))
	return hex.EncodeToString(mac.Sum(nil))
}

// constantTimeEqual compares two strings without leaking timing
// information about where they first differ (spec §4.4 "Secrets are
// compared only via constant-time operations").
func constantTimeEqual(a, b string) bool {
	if len(a) != len(b) {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(a), []byte(b)) == 1
}
