// Package httpx is the transport-agnostic admin HTTP abstraction: a
// unified request/response shape plus adapters so the same handler can be
// served over either net/http or fasthttp, selected by AdminConfig's
// transport field. It exists only for the side-channel admin surface
// (health, metrics, docs) — the core TCP wire protocol never goes through
// net/http.
package httpx

import (
	"context"
	"io"
	"net/http"

	"golang.org/x/time/rate"
)

// Request is the unified request representation handlers see, regardless
// of which adapter produced it.
type Request struct {
	Ctx        context.Context
	Method     string
	Path       string
	Header     http.Header
	Body       io.ReadCloser
	RemoteAddr string
	// Raw holds the underlying transport-specific request object
	// (*http.Request or *fasthttp.RequestCtx) for escape hatches.
	Raw interface{}
}

// ResponseWriter is the subset of http.ResponseWriter semantics required
// from both adapters.
type ResponseWriter interface {
	Header() http.Header
	Write([]byte) (int, error)
	WriteHeader(status int)
}

// HandlerFunc is the application handler signature used across adapters.
type HandlerFunc func(w ResponseWriter, r *Request)

// RateLimited wraps next with a token-bucket limiter shared across all
// requests that reach the returned handler. A request that exceeds the
// limiter's rate gets a 429 and never reaches next; this protects the
// wrapped route from being hammered by a misbehaving monitor, independent
// of the broker's own TCP-side backpressure. The admin surface wraps only
// /healthz with it; /metrics and /docs/ are not rate-limited.
func RateLimited(rps float64, burst int, next HandlerFunc) HandlerFunc {
	if rps <= 0 {
		return next
	}
	limiter := rate.NewLimiter(rate.Limit(rps), burst)
	return func(w ResponseWriter, r *Request) {
		if !limiter.Allow() {
			w.WriteHeader(http.StatusTooManyRequests)
			_, _ = w.Write([]byte("rate limit exceeded\n"))
			return
		}
		next(w, r)
	}
}
