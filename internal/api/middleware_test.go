package api

import (
	"crypto/rand"
	"crypto/rsa"
	"encoding/base64"
	"encoding/json"
	"math/big"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

func generateTestKey(t *testing.T) *rsa.PrivateKey {
	t.Helper()
	key, err := rsa.GenerateKey(rand.Reader, 2048)
	if err != nil {
		t.Fatalf("failed to generate RSA key: %v", err)
	}
	return key
}

func jwksHandler(key *rsa.PrivateKey, kid string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		payload := map[string]interface{}{
			"keys": []map[string]string{
				{
					"kid": kid,
					"kty": "RSA",
					"use": "sig",
					"n":   base64.RawURLEncoding.EncodeToString(key.PublicKey.N.Bytes()),
					"e":   base64.RawURLEncoding.EncodeToString(big.NewInt(int64(key.PublicKey.E)).Bytes()),
				},
			},
		}
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(payload)
	}
}

func signTestToken(t *testing.T, key *rsa.PrivateKey, kid string, claims jwt.MapClaims) string {
	t.Helper()
	token := jwt.NewWithClaims(jwt.SigningMethodRS256, claims)
	token.Header["kid"] = kid
	signed, err := token.SignedString(key)
	if err != nil {
		t.Fatalf("failed to sign token: %v", err)
	}
	return signed
}

func protectedEcho(cfg AuthMiddlewareConfig) http.Handler {
	return AuthMiddleware(cfg)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		identity, ok := GetIdentity(r.Context())
		if !ok {
			http.Error(w, "no identity", http.StatusInternalServerError)
			return
		}
		json.NewEncoder(w).Encode(map[string]string{
			"subject": identity.Subject,
			"name":    identity.Name,
			"email":   identity.Email,
		})
	}))
}

func TestAuthMiddlewareAcceptsValidToken(t *testing.T) {
	key := generateTestKey(t)
	jwks := httptest.NewServer(jwksHandler(key, "kid-1"))
	defer jwks.Close()

	handler := protectedEcho(AuthMiddlewareConfig{
		JWKSURL:        jwks.URL,
		ExpectedIssuer: "https://issuer.example",
	})

	tokenString := signTestToken(t, key, "kid-1", jwt.MapClaims{
		"sub":   "user_123",
		"iss":   "https://issuer.example",
		"name":  "Ada",
		"email": "Ada@Example.com",
		"exp":   time.Now().Add(time.Hour).Unix(),
	})

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Bearer "+tokenString)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}

	var body map[string]string
	if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if body["subject"] != "user_123" {
		t.Fatalf("expected subject user_123, got %q", body["subject"])
	}
	if body["name"] != "Ada" {
		t.Fatalf("expected name Ada, got %q", body["name"])
	}
	if body["email"] != "ada@example.com" {
		t.Fatalf("expected lowercased email, got %q", body["email"])
	}
}

func TestAuthMiddlewareRejectsBadRequests(t *testing.T) {
	key := generateTestKey(t)
	otherKey := generateTestKey(t)
	jwks := httptest.NewServer(jwksHandler(key, "kid-1"))
	defer jwks.Close()

	cfg := AuthMiddlewareConfig{
		JWKSURL:        jwks.URL,
		ExpectedIssuer: "https://issuer.example",
	}
	handler := protectedEcho(cfg)

	validClaims := func() jwt.MapClaims {
		return jwt.MapClaims{
			"sub": "user_123",
			"iss": "https://issuer.example",
			"exp": time.Now().Add(time.Hour).Unix(),
		}
	}

	tests := []struct {
		name       string
		authHeader string
		wantStatus int
	}{
		{
			name:       "missing header",
			authHeader: "",
			wantStatus: http.StatusUnauthorized,
		},
		{
			name:       "malformed header",
			authHeader: "Token abc",
			wantStatus: http.StatusUnauthorized,
		},
		{
			name:       "unknown kid",
			authHeader: "Bearer " + signTestToken(t, otherKey, "kid-unknown", validClaims()),
			wantStatus: http.StatusUnauthorized,
		},
		{
			name: "expired token",
			authHeader: "Bearer " + signTestToken(t, key, "kid-1", jwt.MapClaims{
				"sub": "user_123",
				"iss": "https://issuer.example",
				"exp": time.Now().Add(-time.Hour).Unix(),
			}),
			wantStatus: http.StatusUnauthorized,
		},
		{
			name: "issuer mismatch",
			authHeader: "Bearer " + signTestToken(t, key, "kid-1", jwt.MapClaims{
				"sub": "user_123",
				"iss": "https://evil.example",
				"exp": time.Now().Add(time.Hour).Unix(),
			}),
			wantStatus: http.StatusUnauthorized,
		},
		{
			name: "missing subject",
			authHeader: "Bearer " + signTestToken(t, key, "kid-1", jwt.MapClaims{
				"iss": "https://issuer.example",
				"exp": time.Now().Add(time.Hour).Unix(),
			}),
			wantStatus: http.StatusUnauthorized,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/", nil)
			if tt.authHeader != "" {
				req.Header.Set("Authorization", tt.authHeader)
			}
			rec := httptest.NewRecorder()
			handler.ServeHTTP(rec, req)

			if rec.Code != tt.wantStatus {
				t.Fatalf("expected %d, got %d: %s", tt.wantStatus, rec.Code, rec.Body.String())
			}
		})
	}
}

func TestAuthMiddlewareUnreachableProviderIs503(t *testing.T) {
	key := generateTestKey(t)
	jwks := httptest.NewServer(jwksHandler(key, "kid-1"))
	jwksURL := jwks.URL
	jwks.Close() // provider is now unreachable

	handler := protectedEcho(AuthMiddlewareConfig{JWKSURL: jwksURL})

	tokenString := signTestToken(t, key, "kid-1", jwt.MapClaims{
		"sub": "user_123",
		"exp": time.Now().Add(time.Hour).Unix(),
	})

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Bearer "+tokenString)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected 503 when JWKS is unreachable, got %d", rec.Code)
	}
}

func TestAuthMiddlewareRetriesJWKSFetchOnce(t *testing.T) {
	key := generateTestKey(t)

	// First fetch fails transiently; the retry serves the key set.
	calls := 0
	jwks := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		if calls == 1 {
			http.Error(w, "flaky upstream", http.StatusInternalServerError)
			return
		}
		jwksHandler(key, "kid-1")(w, r)
	}))
	defer jwks.Close()

	handler := protectedEcho(AuthMiddlewareConfig{JWKSURL: jwks.URL})

	tokenString := signTestToken(t, key, "kid-1", jwt.MapClaims{
		"sub": "user_123",
		"exp": time.Now().Add(time.Hour).Unix(),
	})

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Bearer "+tokenString)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200 after the retry fetch, got %d: %s", rec.Code, rec.Body.String())
	}
	if calls != 2 {
		t.Fatalf("expected exactly two JWKS fetches (initial plus retry), got %d", calls)
	}
}

func TestAuthMiddlewareRefetchesOnKeyRotation(t *testing.T) {
	oldKey := generateTestKey(t)
	newKey := generateTestKey(t)

	// Serve the old key first, then rotate to the new one.
	currentKid := "kid-old"
	currentKey := oldKey
	jwks := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		jwksHandler(currentKey, currentKid)(w, r)
	}))
	defer jwks.Close()

	handler := protectedEcho(AuthMiddlewareConfig{JWKSURL: jwks.URL})

	serve := func(tokenString string) int {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.Header.Set("Authorization", "Bearer "+tokenString)
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)
		return rec.Code
	}

	oldToken := signTestToken(t, oldKey, "kid-old", jwt.MapClaims{
		"sub": "user_123",
		"exp": time.Now().Add(time.Hour).Unix(),
	})
	if code := serve(oldToken); code != http.StatusOK {
		t.Fatalf("expected 200 with the original key, got %d", code)
	}

	currentKid = "kid-new"
	currentKey = newKey
	newToken := signTestToken(t, newKey, "kid-new", jwt.MapClaims{
		"sub": "user_456",
		"exp": time.Now().Add(time.Hour).Unix(),
	})
	if code := serve(newToken); code != http.StatusOK {
		t.Fatalf("expected 200 after key rotation refetch, got %d", code)
	}
}
