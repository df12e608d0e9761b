package middlewares

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/slopeoasis/usergate/internal/cache"
	"github.com/slopeoasis/usergate/internal/identity"
	"github.com/slopeoasis/usergate/internal/rate"
)

type brokenLimiter struct{}

func (brokenLimiter) Allow(context.Context, string) (rate.Result, error) {
	return rate.Result{}, errors.New("redis down")
}

func TestWithRateLimit_PerSubject(t *testing.T) {
	l, err := rate.NewFixedWindow(cache.NewMemory(""), "", 1, time.Minute)
	require.NoError(t, err)
	h := WithRateLimit(l, nil)(okHandler())

	call := func(sub string) *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodPost, "/v1/wallet/verify", nil)
		id, err := identity.New(sub, "")
		require.NoError(t, err)
		req = req.WithContext(WithIdentity(req.Context(), id))
		rr := httptest.NewRecorder()
		h.ServeHTTP(rr, req)
		return rr
	}

	require.Equal(t, http.StatusOK, call("alice").Code)

	rr := call("alice")
	require.Equal(t, http.StatusTooManyRequests, rr.Code)
	require.JSONEq(t, `{"error":"too many requests"}`, rr.Body.String())
	require.NotEmpty(t, rr.Header().Get("Retry-After"))
	require.Equal(t, "0", rr.Header().Get("X-RateLimit-Remaining"))

	require.Equal(t, http.StatusOK, call("bob").Code)
}

func TestWithRateLimit_FailOpenAndNil(t *testing.T) {
	rr := httptest.NewRecorder()
	WithRateLimit(brokenLimiter{}, nil)(okHandler()).ServeHTTP(rr, httptest.NewRequest(http.MethodPost, "/x", nil))
	require.Equal(t, http.StatusOK, rr.Code)

	rr = httptest.NewRecorder()
	WithRateLimit(nil, nil)(okHandler()).ServeHTTP(rr, httptest.NewRequest(http.MethodPost, "/x", nil))
	require.Equal(t, http.StatusOK, rr.Code)
}

func TestSubjectRateKey(t *testing.T) {
	req := httptest.NewRequest(http.MethodPost, "/v1/wallet/verify", nil)
	req.RemoteAddr = "10.0.0.1:5555"
	require.Equal(t, "ip:10.0.0.1|/v1/wallet/verify", SubjectRateKey(req))

	id, _ := identity.New("u1", "")
	req = req.WithContext(WithIdentity(req.Context(), id))
	require.Equal(t, "sub:u1|/v1/wallet/verify", SubjectRateKey(req))
}
