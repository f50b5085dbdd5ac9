package middleware

import (
	"net/http"
	"sync"
	"time"

	"topup-service/internal/api/httpx"
)

type tokenBucket struct {
	mu     sync.Mutex
	tokens int
	last   time.Time
	rate   int
	burst  int
}

func (tb *tokenBucket) allow() bool {
	tb.mu.Lock()
	defer tb.mu.Unlock()

	now := time.Now()
	if elapsed := now.Sub(tb.last).Seconds(); elapsed > 0 {
		if refill := int(elapsed * float64(tb.rate)); refill > 0 {
			tb.tokens += refill
			if tb.tokens > tb.burst {
				tb.tokens = tb.burst
			}
			tb.last = now
		}
	}
	if tb.tokens <= 0 {
		return false
	}
	tb.tokens--
	return true
}

// RateLimit applies a process-wide token bucket. rps <= 0 disables it.
func RateLimit(rps int) func(http.Handler) http.Handler {
	if rps <= 0 {
		return func(next http.Handler) http.Handler { return next }
	}
	tb := &tokenBucket{tokens: rps, last: time.Now(), rate: rps, burst: rps}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !tb.allow() {
				httpx.WriteError(w, http.StatusTooManyRequests, "rate_limited", "too many requests", nil)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
