package auth

import (
	"bytes"
	"context"
	"crypto/tls"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"time"

	"github.com/goldearn/hft-core/pkg/errcode"
	"go.uber.org/zap"
)

// CallbackFunc is notified on every authenticate/refresh attempt with
// success and a human-readable message (spec §4.4).
type CallbackFunc func(success bool, message string)

// Authenticator establishes and maintains an authenticated exchange
// session (spec §4.4).
type Authenticator struct {
	creds      Credentials
	loginURL   string
	httpClient *http.Client
	logger     *zap.Logger
	callback   CallbackFunc

	refresher *refresher
}

// New creates an Authenticator posting its login payload to loginURL.
func New(creds Credentials, loginURL string, logger *zap.Logger, callback CallbackFunc) *Authenticator {
	return &Authenticator{
		creds:    creds,
		loginURL: loginURL,
		logger:   logger,
		callback: callback,
		httpClient: &http.Client{
			Timeout: 5 * time.Second,
			Transport: &http.Transport{
				TLSClientConfig: &tls.Config{MinVersion: tls.VersionTLS12},
			},
		},
	}
}

type loginPayload struct {
	APIKey    string `json:"api_key"`
	Timestamp int64  `json:"timestamp"`
	SessionID string `json:"session_id"`
	Signature string `json:"signature"`
}

type loginResponse struct {
	SessionToken string `json:"session_token"`
	AccessToken  string `json:"access_token"`
}

// Authenticate performs login per the credential method and, on
// success, sets creds.SessionToken/TokenExpiry. It fails on missing
// credentials, a file-not-found certificate/key, a non-200 HTTP
// response, an unparseable token, or a TLS/handshake error (spec §4.4,
// §7).
func (a *Authenticator) Authenticate(ctx context.Context) error {
	var err error
	switch a.creds.Method {
	case MethodAPIKey:
		err = a.authenticateAPIKey(ctx)
	case MethodCertificate:
		err = a.authenticateCertificate(ctx)
	case MethodOAuth2:
		err = errcode.Wrap(errcode.CategoryAuth, "auth: oauth2 unsupported", ErrNotImplemented)
	case MethodSessionToken:
		err = a.authenticateSessionToken()
	default:
		err = errcode.Wrap(errcode.CategoryAuth, "auth: unknown credential method", nil)
	}

	if err != nil {
		a.notify(false, err.Error())
		return err
	}
	a.notify(true, "authenticated")
	return nil
}

func (a *Authenticator) notify(success bool, message string) {
	if a.callback != nil {
		a.callback(success, message)
	}
}

func (a *Authenticator) authenticateAPIKey(ctx context.Context) error {
	if a.creds.APIKey == "" || a.creds.SecretKey == "" {
		return errcode.Wrap(errcode.CategoryAuth, "auth: missing api_key/secret_key", nil)
	}

	sessionID, err := newSessionID()
	if err != nil {
		return err
	}
	timestamp := time.Now().Unix()
	signature := signLoginPayload(a.creds.SecretKey, a.creds.APIKey, timestamp, sessionID)

	payload := loginPayload{
		APIKey:    a.creds.APIKey,
		Timestamp: timestamp,
		SessionID: sessionID,
		Signature: signature,
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return errcode.Wrap(errcode.CategoryAuth, "auth: marshal login payload", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, a.loginURL, bytes.NewReader(body))
	if err != nil {
		return errcode.Wrap(errcode.CategoryAuth, "auth: build login request", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", "GoldEarn-HFT/1.0")

	resp, err := a.httpClient.Do(req)
	if err != nil {
		return errcode.Wrap(errcode.CategoryAuth, "auth: login request failed", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return errcode.Wrap(errcode.CategoryAuth, fmt.Sprintf("auth: login returned HTTP %d", resp.StatusCode), nil)
	}

	var lr loginResponse
	if err := json.NewDecoder(resp.Body).Decode(&lr); err != nil {
		return errcode.Wrap(errcode.CategoryAuth, "auth: unparseable login response", err)
	}

	token := lr.SessionToken
	if token == "" {
		token = lr.AccessToken
	}
	if token == "" {
		return errcode.Wrap(errcode.CategoryAuth, "auth: login response missing session_token/access_token", nil)
	}

	a.creds.SessionToken = token
	a.creds.TokenExpiry = time.Now().Add(8 * time.Hour)
	return nil
}

func (a *Authenticator) authenticateCertificate(ctx context.Context) error {
	if a.creds.CertPath == "" || a.creds.KeyPath == "" {
		return errcode.Wrap(errcode.CategoryAuth, "auth: missing certificate/key path", nil)
	}
	if _, err := os.Stat(a.creds.CertPath); err != nil {
		return errcode.Wrap(errcode.CategoryAuth, "auth: certificate file not found", err)
	}
	if _, err := os.Stat(a.creds.KeyPath); err != nil {
		return errcode.Wrap(errcode.CategoryAuth, "auth: key file not found", err)
	}
	if _, err := tls.LoadX509KeyPair(a.creds.CertPath, a.creds.KeyPath); err != nil {
		return errcode.Wrap(errcode.CategoryAuth, "auth: malformed certificate/key pair", err)
	}

	// Certificate login authenticates at the TLS handshake layer
	// (feed.TLSConfig carries the same cert/key); session expiry is
	// long-horizon since there is no token to rotate (spec §4.4).
	a.creds.TokenExpiry = time.Now().Add(24 * time.Hour * 365)
	return nil
}

func (a *Authenticator) authenticateSessionToken() error {
	claims, err := parseSessionClaims(a.creds.SessionToken)
	if err != nil {
		return errcode.Wrap(errcode.CategoryAuth, "auth: unparseable session token", err)
	}
	if claims.expiry.Before(time.Now()) {
		return errcode.Wrap(errcode.CategoryAuth, "auth: session token expired", nil)
	}
	a.creds.TokenExpiry = claims.expiry
	return nil
}

// Credentials returns a copy of the authenticator's current
// credentials, including any token acquired by the last successful
// Authenticate call.
func (a *Authenticator) Credentials() Credentials { return a.creds }
