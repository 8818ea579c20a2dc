package chi

import (
	"math"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/marcelsud/plop-reliability/ratelimit"
)

// APIKeyHeader identifies the caller for rate limiting
const APIKeyHeader = "X-API-Key"

// Rate limit outcomes reported to RateLimitRecorder
const (
	OutcomeAllowed  = "allowed"
	OutcomeDenied   = "denied"
	OutcomeDisabled = ratelimit.ReasonDisabled
)

// rateLimit limits requests per API key. Requests without a key and
// decisions from a disabled limiter pass through without headers.
func rateLimit(limiter ratelimit.Limiter, recorder RateLimitRecorder) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			key := r.Header.Get(APIKeyHeader)
			if key == "" {
				next.ServeHTTP(w, r)
				return
			}

			decision := limiter.Limit(r.Context(), key)
			if !decision.Enforced() {
				record(r, recorder, OutcomeDisabled)
				next.ServeHTTP(w, r)
				return
			}

			setRateLimitHeaders(w, decision)
			if !decision.Success {
				record(r, recorder, OutcomeDenied)
				retry := math.Ceil(time.Until(decision.Reset).Seconds())
				if retry < 1 {
					retry = 1
				}
				w.Header().Set("Retry-After", strconv.Itoa(int(retry)))
				writeError(w, http.StatusTooManyRequests, "rate limit exceeded")
				return
			}

			record(r, recorder, OutcomeAllowed)
			next.ServeHTTP(w, r)
		})
	}
}

func record(r *http.Request, recorder RateLimitRecorder, outcome string) {
	if recorder != nil {
		recorder.RecordRateLimit(r.Context(), outcome)
	}
}

func setRateLimitHeaders(w http.ResponseWriter, d ratelimit.Decision) {
	w.Header().Set("X-RateLimit-Limit", strconv.Itoa(d.Limit))
	w.Header().Set("X-RateLimit-Remaining", strconv.Itoa(d.Remaining))
	w.Header().Set("X-RateLimit-Reset", strconv.FormatInt(d.Reset.Unix(), 10))
}

type rateLimitResponse struct {
	Identifier string `json:"identifier"`
	Enforced   bool   `json:"enforced"`
	Limit      int    `json:"limit"`
	Remaining  int    `json:"remaining"`
	Reset      int64  `json:"reset,omitempty"`
}

// getRateLimit handles GET /v1/ratelimit/{identifier}
func getRateLimit(limiter ratelimit.Limiter) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		identifier := chi.URLParam(r, "identifier")
		decision := limiter.GetRemaining(r.Context(), identifier)

		response := rateLimitResponse{
			Identifier: identifier,
			Enforced:   decision.Enforced(),
			Limit:      decision.Limit,
			Remaining:  decision.Remaining,
		}
		if !decision.Reset.IsZero() {
			response.Reset = decision.Reset.Unix()
		}
		writeJSON(w, http.StatusOK, response)
	})
}

// deleteRateLimit handles DELETE /v1/ratelimit/{identifier}
func deleteRateLimit(limiter ratelimit.Limiter) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		limiter.ResetUsedTokens(r.Context(), chi.URLParam(r, "identifier"))
		w.WriteHeader(http.StatusNoContent)
	})
}
