package middleware

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/0111v/projeto-faculdade/api/validators"
	pkgerrors "github.com/0111v/projeto-faculdade/pkg/errors"
)

type fakeStore struct {
	data map[string]string
	ttls map[string]time.Duration
}

func newFakeStore() *fakeStore {
	return &fakeStore{data: map[string]string{}, ttls: map[string]time.Duration{}}
}

func (f *fakeStore) Get(_ context.Context, key string) (string, error) {
	if v, ok := f.data[key]; ok {
		return v, nil
	}
	return "", redis.Nil
}

func (f *fakeStore) Set(_ context.Context, key string, value any, ttl time.Duration) error {
	f.data[key] = value.(string)
	f.ttls[key] = ttl
	return nil
}

func (f *fakeStore) SetNX(_ context.Context, key string, value any, ttl time.Duration) (bool, error) {
	if _, ok := f.data[key]; ok {
		return false, nil
	}
	f.data[key] = value.(string)
	f.ttls[key] = ttl
	return true, nil
}

func (f *fakeStore) Del(_ context.Context, keys ...string) error {
	for _, key := range keys {
		delete(f.data, key)
	}
	return nil
}

func (f *fakeStore) IdempotencyKey(scope, id string) string {
	return fmt.Sprintf("fake:%s:%s", scope, id)
}

func checkoutRequest(key, body string) *http.Request {
	req := httptest.NewRequest(http.MethodPost, "/orders", strings.NewReader(body))
	rc := chi.NewRouteContext()
	rc.RoutePatterns = []string{"/orders"}
	req = req.WithContext(context.WithValue(req.Context(), chi.RouteCtxKey, rc))
	if key != "" {
		req.Header.Set(idempotencyHeader, key)
	}
	return req
}

func errorCode(t *testing.T, rec *httptest.ResponseRecorder) string {
	t.Helper()
	var payload struct {
		Error struct {
			Code string `json:"code"`
		} `json:"error"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &payload))
	return payload.Error.Code
}

func TestIdempotentRoutesTTL(t *testing.T) {
	routes := DefaultIdempotentRoutes()
	cases := []struct {
		method, pattern string
		want            time.Duration
		ok              bool
	}{
		{http.MethodPost, "/orders", 7 * 24 * time.Hour, true},
		{http.MethodPost, "/products", 24 * time.Hour, true},
		{http.MethodPost, "/cart", 24 * time.Hour, true},
		{http.MethodGet, "/orders/{id}", 0, false},
		{http.MethodPost, "/auth/login", 0, false},
	}
	for _, tc := range cases {
		ttl, ok := routes.ttlFor(tc.method, tc.pattern)
		assert.Equal(t, tc.ok, ok, "%s %s", tc.method, tc.pattern)
		assert.Equal(t, tc.want, ttl, "%s %s", tc.method, tc.pattern)
	}
}

func TestIdempotencyWithoutHeaderRunsEveryTime(t *testing.T) {
	store := newFakeStore()
	calls := 0
	handler := Idempotency(store, DefaultIdempotentRoutes(), nil)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		w.WriteHeader(http.StatusCreated)
	}))

	for range 2 {
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, checkoutRequest("", `{"customer_name":"Ana"}`))
		assert.Equal(t, http.StatusCreated, rec.Code)
	}
	assert.Equal(t, 2, calls)
	assert.Empty(t, store.data)
}

func TestIdempotencyReplaysRecordedResponse(t *testing.T) {
	store := newFakeStore()
	calls := 0
	handler := Idempotency(store, DefaultIdempotentRoutes(), nil)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		body, _ := io.ReadAll(r.Body)
		assert.JSONEq(t, `{"foo":"bar"}`, string(body))
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusCreated)
		_, _ = w.Write([]byte(`{"ok":true}`))
	}))

	first := httptest.NewRecorder()
	handler.ServeHTTP(first, checkoutRequest("abc", `{"foo":"bar"}`))
	require.Equal(t, http.StatusCreated, first.Code)

	replay := httptest.NewRecorder()
	handler.ServeHTTP(replay, checkoutRequest("abc", `{"foo":"bar"}`))
	assert.Equal(t, http.StatusCreated, replay.Code)
	assert.Equal(t, "application/json", replay.Header().Get("Content-Type"))
	assert.Equal(t, "true", replay.Header().Get("Idempotent-Replayed"))
	assert.Equal(t, `{"ok":true}`, replay.Body.String())
	assert.Equal(t, 1, calls)

	for key, ttl := range store.ttls {
		assert.Equal(t, 7*24*time.Hour, ttl, key)
	}
}

func TestIdempotencyRejectsChangedBody(t *testing.T) {
	store := newFakeStore()
	handler := Idempotency(store, DefaultIdempotentRoutes(), nil)(okHandler())

	handler.ServeHTTP(httptest.NewRecorder(), checkoutRequest("xyz", `{"foo":"bar"}`))

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, checkoutRequest("xyz", `{"foo":"diff"}`))
	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Equal(t, string(pkgerrors.CodeIdempotency), errorCode(t, rec))
}

func TestIdempotencyRejectsOversizedBody(t *testing.T) {
	store := newFakeStore()
	calls := 0
	handler := Idempotency(store, DefaultIdempotentRoutes(), nil)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
	}))

	body := `{"customer_name":"` + strings.Repeat("a", validators.MaxBodyBytes) + `"}`
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, checkoutRequest("big", body))

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, string(pkgerrors.CodeValidation), errorCode(t, rec))
	assert.Zero(t, calls)
	assert.Empty(t, store.data, "an oversized request must not claim the key")
}

func TestIdempotencyConcurrentRetryConflicts(t *testing.T) {
	store := newFakeStore()
	var inner *httptest.ResponseRecorder
	var handler http.Handler
	handler = Idempotency(store, DefaultIdempotentRoutes(), nil)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if inner == nil {
			// the retry arrives while the first request is still running
			inner = httptest.NewRecorder()
			handler.ServeHTTP(inner, checkoutRequest("race", `{}`))
		}
		w.WriteHeader(http.StatusCreated)
	}))

	outer := httptest.NewRecorder()
	handler.ServeHTTP(outer, checkoutRequest("race", `{}`))

	assert.Equal(t, http.StatusCreated, outer.Code)
	require.NotNil(t, inner)
	assert.Equal(t, http.StatusConflict, inner.Code)
	assert.Equal(t, string(pkgerrors.CodeConflict), errorCode(t, inner))
}

func TestIdempotencyReleasesKeyAfterServerError(t *testing.T) {
	store := newFakeStore()
	calls := 0
	handler := Idempotency(store, DefaultIdempotentRoutes(), nil)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		if calls == 1 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		w.WriteHeader(http.StatusCreated)
	}))

	first := httptest.NewRecorder()
	handler.ServeHTTP(first, checkoutRequest("retry-me", `{}`))
	assert.Equal(t, http.StatusServiceUnavailable, first.Code)
	assert.Empty(t, store.data)

	second := httptest.NewRecorder()
	handler.ServeHTTP(second, checkoutRequest("retry-me", `{}`))
	assert.Equal(t, http.StatusCreated, second.Code)
	assert.Equal(t, 2, calls)
}

func TestIdempotencyReleasesKeyOnPanic(t *testing.T) {
	store := newFakeStore()
	handler := Idempotency(store, DefaultIdempotentRoutes(), nil)(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
		panic("boom")
	}))

	assert.Panics(t, func() {
		handler.ServeHTTP(httptest.NewRecorder(), checkoutRequest("panicky", `{}`))
	})
	assert.Empty(t, store.data)
}

func TestIdempotencyScopeIsPerUser(t *testing.T) {
	store := newFakeStore()
	calls := 0
	handler := Idempotency(store, DefaultIdempotentRoutes(), nil)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		w.WriteHeader(http.StatusCreated)
	}))

	for _, user := range []string{"user-a", "user-b"} {
		req := checkoutRequest("same-key", `{}`)
		req = req.WithContext(WithUserID(req.Context(), user))
		handler.ServeHTTP(httptest.NewRecorder(), req)
	}
	assert.Equal(t, 2, calls)
	assert.Len(t, store.data, 2)
}
