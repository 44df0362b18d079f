// Package auth implements the session authenticator of spec §4.4:
// exchange login (API-key HMAC or certificate), HMAC session
// establishment, token lifetime tracking, and background refresh.
// Grounded on the teacher's internal/auth/service.go and
// internal/auth/jwt_test.go for service-struct/constructor shape,
// generalized from password+bcrypt login to HMAC-signed API-key login
// per spec §4.4.
package auth

import (
	"encoding/hex"
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/goldearn/hft-core/pkg/errcode"
)

// Method identifies a credential/login method (spec §3).
type Method string

const (
	MethodAPIKey       Method = "API_KEY"
	MethodCertificate  Method = "CERTIFICATE"
	MethodOAuth2       Method = "OAUTH2"
	MethodSessionToken Method = "SESSION_TOKEN"
)

// Credentials is the spec §3 Credentials record. Secrets are never
// logged; callers obtain rendered headers rather than raw fields.
type Credentials struct {
	Method Method

	APIKey    string
	SecretKey string

	CertPath string
	KeyPath  string

	SessionToken string
	OAuthToken   string

	TokenExpiry time.Time
	AutoRefresh bool
}

// ErrNotImplemented marks the OAuth2 path: declared in the Credentials
// enum (spec §3) but never completed, per spec §9 Open Question #3 —
// the source never finished this path either, so we do not invent
// semantics for it.
var ErrNotImplemented = errors.New("auth: OAUTH2 credential method is not implemented")

// newSessionID returns a 128-bit random hex session id (spec §4.4).
// github.com/google/uuid.NewRandom draws its 16 bytes from a CSPRNG
// (crypto/rand) and surfaces a read failure as an error rather than
// silently degrading; we hex-encode the raw bytes ourselves rather
// than uuid's dashed string form to match the wire format spec §4.4
// calls for. If the CSPRNG fails, the caller must refuse to start
// rather than fall back to weak randomness (spec §4.4 "Security
// rules").
func newSessionID() (string, error) {
	id, err := uuid.NewRandom()
	if err != nil {
		return "", errcode.Wrap(errcode.CategoryFatalConfig, "auth: CSPRNG failure generating session id", err)
	}
	return hex.EncodeToString(id[:]), nil
}
