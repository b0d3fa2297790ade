package ratelimit

import (
	"encoding/json"
	"net"
	"net/http"
	"strconv"
	"time"
)

// ActorFunc resolves the rate-limit key for a request. Unauthenticated
// requests fall back to the client IP.
type ActorFunc func(r *http.Request) string

func IPActor(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return "ip:" + r.RemoteAddr
	}
	return "ip:" + host
}

// Middleware gates every request on the apiCall budget and sets the
// X-RateLimit headers. Operation-specific budgets (upload, delete, ...) are
// checked by the handlers themselves on top of this.
func (l *Limiter) Middleware(actorOf ActorFunc) func(http.Handler) http.Handler {
	if actorOf == nil {
		actorOf = IPActor
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			res := l.Check(actorOf(r), OpAPICall)

			w.Header().Set("X-RateLimit-Limit", strconv.Itoa(l.rules[OpAPICall].Max))
			w.Header().Set("X-RateLimit-Remaining", strconv.Itoa(res.Remaining))
			w.Header().Set("X-RateLimit-Reset", strconv.FormatInt(res.ResetAt.Unix(), 10))

			if !res.Allowed {
				retryAfter := int(time.Until(res.ResetAt).Seconds()) + 1
				w.Header().Set("Retry-After", strconv.Itoa(retryAfter))
				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(http.StatusTooManyRequests)
				json.NewEncoder(w).Encode(map[string]string{
					"error": "rate limit exceeded",
					"kind":  "rate_limited",
				})
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}
