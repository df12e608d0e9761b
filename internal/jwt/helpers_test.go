package jwt

import (
	"crypto/rand"
	"crypto/rsa"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	jwtv5 "github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/require"
)

const testIssuer = "https://issuer.test"

func newRSAKey(t *testing.T) *rsa.PrivateKey {
	t.Helper()
	k, err := rsa.GenerateKey(rand.Reader, 2048)
	require.NoError(t, err)
	return k
}

// jwksServer sirve body (o lo que devuelva handler) y cuenta requests.
type jwksServer struct {
	*httptest.Server
	calls atomic.Int32
}

func newJWKSServer(t *testing.T, handler func(w http.ResponseWriter, r *http.Request, n int32)) *jwksServer {
	t.Helper()
	s := &jwksServer{}
	s.Server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		n := s.calls.Add(1)
		handler(w, r, n)
	}))
	t.Cleanup(s.Close)
	return s
}

func serveDoc(doc []byte) func(http.ResponseWriter, *http.Request, int32) {
	return func(w http.ResponseWriter, _ *http.Request, _ int32) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write(doc)
	}
}

func mint(t *testing.T, key *rsa.PrivateKey, kid string, claims jwtv5.MapClaims) string {
	t.Helper()
	tok := jwtv5.NewWithClaims(jwtv5.SigningMethodRS256, claims)
	if kid != "" {
		tok.Header["kid"] = kid
	}
	s, err := tok.SignedString(key)
	require.NoError(t, err)
	return s
}

func newTestResolver(t *testing.T, url string, cache KeyCache) *Resolver {
	t.Helper()
	r, err := NewResolver(ResolverConfig{
		URL:          url,
		FetchTimeout: 2 * time.Second,
		Retries:      1,
		RetryBackoff: time.Millisecond,
	}, cache)
	require.NoError(t, err)
	return r
}
