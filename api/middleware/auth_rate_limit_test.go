package middleware

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	pkgerrors "github.com/0111v/projeto-faculdade/pkg/errors"
)

func loginRequest(email, remote string) *http.Request {
	req := httptest.NewRequest(http.MethodPost, "/auth/login", strings.NewReader(`{"email":"`+email+`","password":"secret"}`))
	req.RemoteAddr = remote
	return req
}

func TestAuthRateLimitKeepsBodyForHandler(t *testing.T) {
	limiter := &fakeWindowLimiter{counts: map[string]int64{}}
	policy := NewAuthRateLimitPolicy("login", time.Minute, 2, 2)
	handler := AuthRateLimit(policy, limiter, nil)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, err := io.ReadAll(r.Body)
		if err != nil {
			t.Fatalf("read body: %v", err)
		}
		if !strings.Contains(string(body), `"email":"tester@example.com"`) {
			t.Fatalf("body not replayed: %s", body)
		}
		w.WriteHeader(http.StatusOK)
	}))

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, loginRequest("tester@example.com", "1.2.3.4:5678"))

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if len(limiter.counts) != 2 {
		t.Fatalf("expected ip and email counters, got %v", limiter.counts)
	}
	for scope := range limiter.counts {
		if strings.Contains(scope, "tester@example.com") {
			t.Fatalf("raw email leaked into scope %q", scope)
		}
	}
}

func TestAuthRateLimitEmailWindow(t *testing.T) {
	limiter := &fakeWindowLimiter{counts: map[string]int64{}}
	policy := NewAuthRateLimitPolicy("login", time.Minute, 0, 2)
	handler := AuthRateLimit(policy, limiter, nil)(okHandler())

	for i := range 3 {
		// a different IP each time; only the email counter applies
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, loginRequest(" Blocked@Example.com", "10.0.0."+string(rune('1'+i))+":1000"))

		if i < 2 {
			if rec.Code != http.StatusOK {
				t.Fatalf("attempt %d: expected 200, got %d", i, rec.Code)
			}
			continue
		}
		if rec.Code != http.StatusTooManyRequests {
			t.Fatalf("expected 429, got %d", rec.Code)
		}
		if rec.Header().Get("Retry-After") != "60" {
			t.Fatalf("expected Retry-After 60, got %q", rec.Header().Get("Retry-After"))
		}
		var payload struct {
			Error struct {
				Code string `json:"code"`
			} `json:"error"`
		}
		if err := json.Unmarshal(rec.Body.Bytes(), &payload); err != nil {
			t.Fatalf("decode error: %v", err)
		}
		if payload.Error.Code != string(pkgerrors.CodeRateLimit) {
			t.Fatalf("unexpected code %s", payload.Error.Code)
		}
	}
}

func TestAuthRateLimitIPWindow(t *testing.T) {
	limiter := &fakeWindowLimiter{counts: map[string]int64{}}
	policy := NewAuthRateLimitPolicy("register", time.Minute, 1, 0)
	handler := AuthRateLimit(policy, limiter, nil)(okHandler())

	codes := []int{}
	for _, email := range []string{"a@example.com", "b@example.com"} {
		req := loginRequest(email, "5.6.7.8:1234")
		req.Header.Set("X-Forwarded-For", "9.9.9.9, 5.6.7.8")
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)
		codes = append(codes, rec.Code)
	}
	if codes[0] != http.StatusOK || codes[1] != http.StatusTooManyRequests {
		t.Fatalf("unexpected codes %v", codes)
	}
	if limiter.counts["auth:register:ip:9.9.9.9"] != 2 {
		t.Fatalf("expected forwarded ip to be counted, got %v", limiter.counts)
	}
}

func TestAuthRateLimitFailsClosed(t *testing.T) {
	limiter := &fakeWindowLimiter{counts: map[string]int64{}, err: errors.New("redis down")}
	handler := AuthRateLimit(NewAuthRateLimitPolicy("login", time.Minute, 5, 5), limiter, nil)(okHandler())

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, loginRequest("x@example.com", "1.1.1.1:1"))

	if rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected 503, got %d", rec.Code)
	}
}

func TestAuthRateLimitDisabledPolicyPassesThrough(t *testing.T) {
	handler := AuthRateLimit(NewAuthRateLimitPolicy("", 0, 5, 5), nil, nil)(okHandler())
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, loginRequest("x@example.com", "1.1.1.1:1"))
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
}
