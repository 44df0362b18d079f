package auth

import (
	"errors"
	"net/http"
	"strings"
)

// commonHeaders are always present on outbound requests regardless of
// credential method (spec §4.4, §6).
func commonHeaders(h http.Header) {
	h.Set("User-Agent", "GoldEarn-HFT/1.0")
	h.Set("Accept", "application/json")
	h.Set("Content-Type", "application/json")
}

// Headers renders the outbound header set for the authenticator's
// current credentials (spec §4.4, §6): API-key method adds X-API-Key
// and X-Session-Token; token methods add Authorization: Bearer.
func (a *Authenticator) Headers() http.Header {
	h := make(http.Header)
	commonHeaders(h)

	switch a.creds.Method {
	case MethodAPIKey:
		h.Set("X-API-Key", a.creds.APIKey)
		h.Set("X-Session-Token", a.creds.SessionToken)
	case MethodSessionToken:
		h.Set("Authorization", "Bearer "+a.creds.SessionToken)
	case MethodOAuth2:
		h.Set("Authorization", "Bearer "+a.creds.OAuthToken)
	}
	return h
}

var errBadAuthHeaderPrefix = errors.New("auth: header must use a single Bearer or ApiKey prefix")

// ParseAuthorizationHeader extracts the token from an inbound
// Authorization header, accepting only a single "Bearer " or
// "ApiKey " prefix and rejecting anything else (spec §4.4 "Security
// rules").
func ParseAuthorizationHeader(value string) (scheme, token string, err error) {
	switch {
	case strings.HasPrefix(value, "Bearer "):
		return "Bearer", strings.TrimPrefix(value, "Bearer "), nil
	case strings.HasPrefix(value, "ApiKey "):
		return "ApiKey", strings.TrimPrefix(value, "ApiKey "), nil
	default:
		return "", "", errBadAuthHeaderPrefix
	}
}
