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
	"github.com/google/uuid"

	pkgerrors "github.com/angelmondragon/shopledger-backend/pkg/errors"
	pkgredis "github.com/angelmondragon/shopledger-backend/pkg/redis"
)

type fakeStore struct {
	data map[string]string
}

func newFakeStore() *fakeStore {
	return &fakeStore{data: make(map[string]string)}
}

func (f *fakeStore) Get(_ context.Context, key string) (string, error) {
	if v, ok := f.data[key]; ok {
		return v, nil
	}
	return "", pkgredis.ErrNil
}

func (f *fakeStore) SetNX(_ context.Context, key string, value any, _ time.Duration) (bool, error) {
	if _, ok := f.data[key]; ok {
		return false, nil
	}
	str, _ := value.(string)
	f.data[key] = str
	return true, nil
}

func (f *fakeStore) Set(_ context.Context, key string, value any, _ time.Duration) error {
	str, _ := value.(string)
	f.data[key] = str
	return nil
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

const paymentsPattern = "/api/v1/orders/{orderId}/payments"

func requestWithPattern(method, url, pattern string, body io.Reader) *http.Request {
	req := httptest.NewRequest(method, url, body)
	rc := chi.NewRouteContext()
	rc.RoutePatterns = []string{pattern}
	return req.WithContext(context.WithValue(req.Context(), chi.RouteCtxKey, rc))
}

func paymentRequest(key, body string) *http.Request {
	req := requestWithPattern(http.MethodPost, "/api/v1/orders/abc/payments", paymentsPattern, strings.NewReader(body))
	if key != "" {
		req.Header.Set("Idempotency-Key", key)
	}
	return req
}

func TestRouteTTLSelection(t *testing.T) {
	tests := []struct {
		name    string
		method  string
		pattern string
		want    time.Duration
		ok      bool
	}{
		{"record payment", http.MethodPost, paymentsPattern, criticalIdempotencyTTL, true},
		{"record refund", http.MethodPost, "/api/v1/orders/{orderId}/refunds", criticalIdempotencyTTL, true},
		{"write off", http.MethodPost, "/api/v1/debts/{debtId}/write-off", criticalIdempotencyTTL, true},
		{"create order", http.MethodPost, "/api/v1/orders", defaultIdempotencyTTL, true},
		{"order status", http.MethodPost, "/api/v1/orders/{orderId}/status", defaultIdempotencyTTL, true},
		{"start trial", http.MethodPost, "/api/v1/shops/{shopId}/subscription/trial", defaultIdempotencyTTL, true},
		{"list payments", http.MethodGet, paymentsPattern, 0, false},
		{"backfill", http.MethodPost, "/api/v1/shops/{shopId}/debts/backfill", 0, false},
	}

	for _, tt := range tests {
		ttl, ok := routeTTL(tt.method, tt.pattern)
		if ok != tt.ok {
			t.Fatalf("%s: expected ok=%v got %v", tt.name, tt.ok, ok)
		}
		if ok && ttl != tt.want {
			t.Fatalf("%s: expected ttl=%v got %v", tt.name, tt.want, ttl)
		}
	}
}

func TestIdempotencyMiddlewareRequiresHeader(t *testing.T) {
	store := newFakeStore()
	mw := Idempotency(store, nil)
	handlerCalled := false
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		handlerCalled = true
		w.WriteHeader(http.StatusCreated)
	})

	resp := httptest.NewRecorder()
	mw(handler).ServeHTTP(resp, paymentRequest("", `{"amount":"10"}`))

	if resp.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 got %d", resp.Code)
	}
	if handlerCalled {
		t.Fatalf("handler should not run without idempotency key")
	}
}

func TestIdempotencyMiddlewareReplaysStoredResponse(t *testing.T) {
	store := newFakeStore()
	mw := Idempotency(store, nil)
	var calls int
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusCreated)
		_, _ = w.Write([]byte(`{"ok":true}`))
	})

	first := paymentRequest("abc", `{"amount":"10"}`)
	first = first.WithContext(WithRequestID(first.Context(), "req-original"))
	resp := httptest.NewRecorder()
	mw(handler).ServeHTTP(resp, first)
	if resp.Code != http.StatusCreated {
		t.Fatalf("expected first response 201 got %d", resp.Code)
	}
	if resp.Header().Get(replayedHeader) != "" {
		t.Fatal("first response must not be marked as replayed")
	}

	rec := httptest.NewRecorder()
	mw(handler).ServeHTTP(rec, paymentRequest("abc", `{"amount":"10"}`))
	if rec.Code != http.StatusCreated {
		t.Fatalf("expected replay status 201 got %d", rec.Code)
	}
	if rec.Header().Get("Content-Type") != "application/json" {
		t.Fatalf("expected content-type header preserved")
	}
	if rec.Header().Get(replayedHeader) != "true" || rec.Header().Get(originalRequestHeader) != "req-original" {
		t.Fatalf("expected replay headers, got %v", rec.Header())
	}
	if strings.TrimSpace(rec.Body.String()) != `{"ok":true}` {
		t.Fatalf("expected stored body got %s", rec.Body.String())
	}
	if calls != 1 {
		t.Fatalf("handler executed %d times, expected 1", calls)
	}
}

func TestIdempotencyMiddlewareDetectsBodyChange(t *testing.T) {
	store := newFakeStore()
	mw := Idempotency(store, nil)
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})

	mw(handler).ServeHTTP(httptest.NewRecorder(), paymentRequest("xyz", `{"amount":"10"}`))

	resp := httptest.NewRecorder()
	mw(handler).ServeHTTP(resp, paymentRequest("xyz", `{"amount":"20"}`))

	if resp.Code != http.StatusConflict {
		t.Fatalf("expected 409 got %d", resp.Code)
	}
	if code := errorCode(t, resp); code != string(pkgerrors.CodeIdempotency) {
		t.Fatalf("expected error code %s got %s", pkgerrors.CodeIdempotency, code)
	}
}

func TestIdempotencyMiddlewareRejectsInFlightDuplicate(t *testing.T) {
	store := newFakeStore()
	mw := Idempotency(store, nil)
	var inner *httptest.ResponseRecorder
	var calls int
	var handler http.Handler
	handler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		if calls == 1 {
			// a duplicate arrives while the first request is still running
			inner = httptest.NewRecorder()
			mw(handler).ServeHTTP(inner, paymentRequest("dup", `{"amount":"10"}`))
		}
		w.WriteHeader(http.StatusCreated)
	})

	mw(handler).ServeHTTP(httptest.NewRecorder(), paymentRequest("dup", `{"amount":"10"}`))

	if calls != 1 {
		t.Fatalf("handler executed %d times, expected 1", calls)
	}
	if inner.Code != http.StatusConflict || errorCode(t, inner) != string(pkgerrors.CodeConflict) {
		t.Fatalf("expected in-flight conflict, got %d %s", inner.Code, inner.Body.String())
	}
}

func TestIdempotencyMiddlewareReleasesKeyOnServerError(t *testing.T) {
	store := newFakeStore()
	mw := Idempotency(store, nil)
	status := http.StatusServiceUnavailable
	var calls int
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		w.WriteHeader(status)
	})

	mw(handler).ServeHTTP(httptest.NewRecorder(), paymentRequest("retry", `{"amount":"10"}`))
	status = http.StatusCreated
	resp := httptest.NewRecorder()
	mw(handler).ServeHTTP(resp, paymentRequest("retry", `{"amount":"10"}`))

	if calls != 2 || resp.Code != http.StatusCreated {
		t.Fatalf("expected retry to execute, calls=%d code=%d", calls, resp.Code)
	}
}

func TestIdempotencyScopeIncludesActor(t *testing.T) {
	store := newFakeStore()
	mw := Idempotency(store, nil)
	var calls int
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		w.WriteHeader(http.StatusCreated)
	})

	for i := 0; i < 2; i++ {
		req := paymentRequest("same", `{"amount":"10"}`)
		req = req.WithContext(WithActorID(req.Context(), uuid.New()))
		mw(handler).ServeHTTP(httptest.NewRecorder(), req)
	}
	if calls != 2 {
		t.Fatalf("different actors must not share keys, calls=%d", calls)
	}
}

func errorCode(t *testing.T, resp *httptest.ResponseRecorder) string {
	t.Helper()
	var payload struct {
		Error struct {
			Code string `json:"code"`
		} `json:"error"`
	}
	if err := json.Unmarshal(resp.Body.Bytes(), &payload); err != nil {
		t.Fatalf("parse error response: %v", err)
	}
	return payload.Error.Code
}
