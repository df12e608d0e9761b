package middlewares

import (
	"math"
	"net/http"
	"strconv"

	httperrors "github.com/slopeoasis/usergate/internal/http/errors"
	"github.com/slopeoasis/usergate/internal/observability/logger"
	"github.com/slopeoasis/usergate/internal/rate"
)

// RateKeyFunc deriva la key del limitador para un request.
type RateKeyFunc func(r *http.Request) string

// SubjectRateKey limita por subject autenticado; sin identidad cae a IP.
// Va después de RequireAuth.
func SubjectRateKey(r *http.Request) string {
	if sub := GetUserID(r.Context()); sub != "" {
		return "sub:" + sub + "|" + r.URL.Path
	}
	return "ip:" + clientIP(r) + "|" + r.URL.Path
}

// WithRateLimit responde 429 con Retry-After al exceder el límite. Si el
// backend falla deja pasar el request (fail-open) y loguea.
func WithRateLimit(l rate.Limiter, key RateKeyFunc) Middleware {
	return func(next http.Handler) http.Handler {
		if l == nil {
			return next
		}
		if key == nil {
			key = SubjectRateKey
		}
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			res, err := l.Allow(r.Context(), key(r))
			if err != nil {
				logger.From(r.Context()).Warn("rate limiter unavailable", logger.Err(err))
				next.ServeHTTP(w, r)
				return
			}
			w.Header().Set("X-RateLimit-Remaining", strconv.FormatInt(res.Remaining, 10))
			if !res.Allowed {
				secs := int64(math.Ceil(res.RetryAfter.Seconds()))
				if secs < 1 {
					secs = 1
				}
				w.Header().Set("Retry-After", strconv.FormatInt(secs, 10))
				logger.From(r.Context()).Info("rate limited",
					logger.Int("hits", int(res.CurrentHits)))
				httperrors.WriteError(w, httperrors.ErrTooManyRequests)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
