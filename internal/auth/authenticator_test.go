package auth

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func TestAuthenticateAPIKeySuccess(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var p loginPayload
		if err := json.NewDecoder(r.Body).Decode(&p); err != nil {
			t.Fatalf("decode request: %v", err)
		}
		wantSig := signLoginPayload("secret", p.APIKey, p.Timestamp, p.SessionID)
		if p.Signature != wantSig {
			t.Fatalf("signature mismatch: got %s want %s", p.Signature, wantSig)
		}
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(loginResponse{SessionToken: "tok-123"})
	}))
	defer srv.Close()

	var lastSuccess bool
	var lastMsg string
	a := New(Credentials{Method: MethodAPIKey, APIKey: "key", SecretKey: "secret"}, srv.URL, nil, func(success bool, msg string) {
		lastSuccess, lastMsg = success, msg
	})

	if err := a.Authenticate(context.Background()); err != nil {
		t.Fatalf("authenticate: %v", err)
	}
	if a.Credentials().SessionToken != "tok-123" {
		t.Fatalf("session token = %q, want tok-123", a.Credentials().SessionToken)
	}
	if !lastSuccess {
		t.Fatalf("callback reported failure: %s", lastMsg)
	}
	if a.Credentials().TokenExpiry.Before(time.Now().Add(7*time.Hour)) {
		t.Fatalf("token expiry should be ~8h out")
	}
}

func TestAuthenticateAPIKeyNon200(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer srv.Close()

	a := New(Credentials{Method: MethodAPIKey, APIKey: "key", SecretKey: "secret"}, srv.URL, nil, nil)
	if err := a.Authenticate(context.Background()); err == nil {
		t.Fatalf("expected error on HTTP 401")
	}
}

func TestAuthenticateMissingCredentials(t *testing.T) {
	a := New(Credentials{Method: MethodAPIKey}, "http://example.invalid", nil, nil)
	if err := a.Authenticate(context.Background()); err == nil {
		t.Fatalf("expected error for missing api_key/secret_key")
	}
}

func TestAuthenticateCertificateMissingFiles(t *testing.T) {
	a := New(Credentials{Method: MethodCertificate, CertPath: "/no/such/cert.pem", KeyPath: "/no/such/key.pem"}, "", nil, nil)
	if err := a.Authenticate(context.Background()); err == nil {
		t.Fatalf("expected error for missing certificate files")
	}
}

func TestOAuth2NotImplemented(t *testing.T) {
	a := New(Credentials{Method: MethodOAuth2}, "", nil, nil)
	if err := a.Authenticate(context.Background()); err == nil {
		t.Fatalf("expected oauth2 to fail as not implemented")
	}
}

func TestHeaders(t *testing.T) {
	a := New(Credentials{Method: MethodAPIKey, APIKey: "k", SessionToken: "s"}, "", nil, nil)
	h := a.Headers()
	if h.Get("X-API-Key") != "k" || h.Get("X-Session-Token") != "s" {
		t.Fatalf("unexpected API-key headers: %v", h)
	}
	if h.Get("User-Agent") != "GoldEarn-HFT/1.0" {
		t.Fatalf("missing common User-Agent header")
	}
}

func TestParseAuthorizationHeader(t *testing.T) {
	if scheme, token, err := ParseAuthorizationHeader("Bearer abc"); err != nil || scheme != "Bearer" || token != "abc" {
		t.Fatalf("bearer parse failed: %v %v %v", scheme, token, err)
	}
	if _, _, err := ParseAuthorizationHeader("Basic abc"); err == nil {
		t.Fatalf("expected rejection of unsupported scheme")
	}
}

func TestConstantTimeEqual(t *testing.T) {
	if !constantTimeEqual("abc", "abc") {
		t.Fatalf("equal strings should compare equal")
	}
	if constantTimeEqual("abc", "abd") {
		t.Fatalf("different strings should not compare equal")
	}
	if constantTimeEqual("abc", "abcd") {
		t.Fatalf("different-length strings should not compare equal")
	}
}
