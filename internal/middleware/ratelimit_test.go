package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func TestTokenBucket_RefillsEachSecond(t *testing.T) {
	now := time.Unix(1000, 0)
	tb := NewTokenBucket(2)
	tb.now = func() time.Time { return now }
	tb.lastSec = now.Unix()

	if !tb.allow() || !tb.allow() {
		t.Fatal("first two requests should pass")
	}
	if tb.allow() {
		t.Fatal("third request in the same second should be rejected")
	}
	now = now.Add(time.Second)
	if !tb.allow() {
		t.Fatal("bucket should refill on the next second")
	}
}

func TestRateLimit(t *testing.T) {
	ok := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(http.StatusOK) })

	h := RateLimit(1)(ok)
	codes := make([]int, 0, 3)
	for i := 0; i < 3; i++ {
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/shops/nearby", nil))
		codes = append(codes, rec.Code)
	}
	// 同一秒内仅第一个请求通过；跨秒边界时第二个也可能通过
	if codes[0] != http.StatusOK {
		t.Errorf("first code = %d", codes[0])
	}
	limited := 0
	for _, c := range codes {
		if c == http.StatusTooManyRequests {
			limited++
		}
	}
	if limited == 0 {
		t.Errorf("codes = %v, expected at least one 429", codes)
	}
}

func TestRateLimit_Disabled(t *testing.T) {
	ok := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(http.StatusNoContent) })
	h := RateLimit(0)(ok)
	for i := 0; i < 10; i++ {
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
		if rec.Code != http.StatusNoContent {
			t.Fatalf("request %d code = %d", i, rec.Code)
		}
	}
}
