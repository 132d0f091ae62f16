package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	apiContext "leadrelay/internal/api/context"
	"leadrelay/internal/platform/auth"
	"leadrelay/internal/platform/config"
)

func okHandler(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
}

func TestAuthMiddleware(t *testing.T) {
	tokenSvc := auth.NewTokenService(config.AuthConfig{JWTSecret: "s3cret", Issuer: "leadrelay", TokenTTL: time.Hour})
	raw, hash, err := auth.GenerateAPIKey()
	if err != nil {
		t.Fatalf("GenerateAPIKey failed: %v", err)
	}
	token, err := tokenSvc.GenerateAccessToken("ops", 0)
	if err != nil {
		t.Fatalf("GenerateAccessToken failed: %v", err)
	}

	m := NewAuthMiddleware(tokenSvc, auth.NewAPIKeyVerifier(hash))

	tests := []struct {
		name    string
		headers map[string]string
		want    int
	}{
		{"No credentials", nil, http.StatusUnauthorized},
		{"Valid token", map[string]string{"Authorization": "Bearer " + token}, http.StatusOK},
		{"Malformed header", map[string]string{"Authorization": token}, http.StatusUnauthorized},
		{"Bad token", map[string]string{"Authorization": "Bearer nope"}, http.StatusUnauthorized},
		{"Valid API key", map[string]string{APIKeyHeader: raw}, http.StatusOK},
		{"Bad API key", map[string]string{APIKeyHeader: "lr_live_wrong"}, http.StatusUnauthorized},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/tools", nil)
			for k, v := range tt.headers {
				req.Header.Set(k, v)
			}
			rr := httptest.NewRecorder()
			m.Handle(okHandler)(rr, req)

			if rr.Code != tt.want {
				t.Errorf("handler returned wrong status code: got %v want %v", rr.Code, tt.want)
			}
		})
	}
}

func TestAuthMiddleware_InjectsClaims(t *testing.T) {
	tokenSvc := auth.NewTokenService(config.AuthConfig{JWTSecret: "s3cret", TokenTTL: time.Hour})
	token, _ := tokenSvc.GenerateAccessToken("ops", 0)
	m := NewAuthMiddleware(tokenSvc, nil)

	req := httptest.NewRequest(http.MethodGet, "/tools", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	rr := httptest.NewRecorder()
	m.Handle(func(w http.ResponseWriter, r *http.Request) {
		claims, ok := r.Context().Value(apiContext.Claims).(*auth.Claims)
		if !ok || claims.Operator != "ops" {
			t.Errorf("Expected operator claims, got %+v", claims)
		}
	})(rr, req)
}

func TestAuthMiddleware_DisabledPassesThrough(t *testing.T) {
	m := NewAuthMiddleware(auth.NewTokenService(config.AuthConfig{}), auth.NewAPIKeyVerifier(""))
	rr := httptest.NewRecorder()
	m.Handle(okHandler)(rr, httptest.NewRequest(http.MethodGet, "/tools", nil))

	if rr.Code != http.StatusOK {
		t.Errorf("Expected open access without configured auth, got %d", rr.Code)
	}
}

func TestRateLimiter_Allow(t *testing.T) {
	rl := NewRateLimiter()
	now := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	rl.now = func() time.Time { return now }

	for i := 0; i < 3; i++ {
		if !rl.Allow("1.2.3.4:session", 3) {
			t.Fatalf("Request %d should be allowed", i+1)
		}
	}
	if rl.Allow("1.2.3.4:session", 3) {
		t.Fatal("Fourth request should be limited")
	}
	if !rl.Allow("5.6.7.8:session", 3) {
		t.Fatal("Other clients have their own bucket")
	}

	now = now.Add(20 * time.Second)
	if !rl.Allow("1.2.3.4:session", 3) {
		t.Fatal("Expected one token refilled after 20s")
	}
}

func TestRateLimiter_Cleanup(t *testing.T) {
	rl := NewRateLimiter()
	now := time.Now()
	rl.now = func() time.Time { return now }
	rl.Allow("idle", 1)

	now = now.Add(11 * time.Minute)
	rl.cleanup()
	if _, ok := rl.store.Load("idle"); ok {
		t.Error("Expected idle bucket to be removed")
	}
}

func TestRateLimitMiddleware(t *testing.T) {
	rl := NewRateLimiter()
	h := rl.RateLimit("session", 1)(okHandler)

	req := httptest.NewRequest(http.MethodPost, "/create-session", nil)
	req.RemoteAddr = "10.0.0.1:5555"

	rr := httptest.NewRecorder()
	h(rr, req)
	if rr.Code != http.StatusOK {
		t.Fatalf("Expected first request to pass, got %d", rr.Code)
	}

	rr = httptest.NewRecorder()
	h(rr, req)
	if rr.Code != http.StatusTooManyRequests {
		t.Fatalf("Expected 429, got %d", rr.Code)
	}
	if rr.Header().Get("Retry-After") != "60" {
		t.Error("Expected Retry-After header")
	}
}

func TestRequestLogger(t *testing.T) {
	var seen string
	h := RequestLogger(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen, _ = r.Context().Value(apiContext.RequestID).(string)
		w.WriteHeader(http.StatusTeapot)
	}))

	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/healthz", nil))

	if rr.Code != http.StatusTeapot {
		t.Errorf("Expected status to pass through, got %d", rr.Code)
	}
	if seen == "" || rr.Header().Get(RequestIDHeader) != seen {
		t.Errorf("Expected request id %q in header, got %q", seen, rr.Header().Get(RequestIDHeader))
	}

	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	req.Header.Set(RequestIDHeader, "upstream-id")
	rr = httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	if seen != "upstream-id" {
		t.Errorf("Expected caller request id to be kept, got %q", seen)
	}
}
