package jwt

import (
	"context"
	"crypto/rsa"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"strings"
	"testing"
	"time"

	jwtv5 "github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/require"
)

type stubResolver struct {
	keys  map[string]SigningKey
	calls int
}

func (s *stubResolver) Resolve(_ context.Context, kid string) (SigningKey, error) {
	s.calls++
	if k, ok := s.keys[kid]; ok {
		return k, nil
	}
	return SigningKey{}, fmt.Errorf("%w: %q", ErrUnknownKeyID, kid)
}

func signingKeyOf(kid string, pub *rsa.PublicKey) SigningKey {
	return SigningKey{KeyID: kid, Modulus: pub.N, Exponent: pub.E}
}

type verifierFixture struct {
	key      *rsa.PrivateKey
	resolver *stubResolver
	verifier *Verifier
	now      time.Time
}

func newVerifierFixture(t *testing.T, mutate func(*VerifierConfig)) *verifierFixture {
	t.Helper()
	f := &verifierFixture{
		key: newRSAKey(t),
		now: time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC),
	}
	f.resolver = &stubResolver{keys: map[string]SigningKey{"k1": signingKeyOf("k1", &f.key.PublicKey)}}
	cfg := VerifierConfig{
		Issuer: testIssuer,
		Leeway: DefaultLeeway,
		Now:    func() time.Time { return f.now },
	}
	if mutate != nil {
		mutate(&cfg)
	}
	v, err := NewVerifier(cfg, f.resolver)
	require.NoError(t, err)
	f.verifier = v
	return f
}

func (f *verifierFixture) claims(extra jwtv5.MapClaims) jwtv5.MapClaims {
	c := jwtv5.MapClaims{
		"iss":  testIssuer,
		"usid": "user-123",
		"exp":  f.now.Add(time.Hour).Unix(),
	}
	for k, v := range extra {
		if v == nil {
			delete(c, k)
			continue
		}
		c[k] = v
	}
	return c
}

const base64URLAlphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz0123456789-_"

func rawSegment(t *testing.T, v any) string {
	t.Helper()
	b, err := json.Marshal(v)
	require.NoError(t, err)
	return base64.RawURLEncoding.EncodeToString(b)
}

func TestNewVerifier_Configuration(t *testing.T) {
	_, err := NewVerifier(VerifierConfig{}, &stubResolver{})
	require.ErrorIs(t, err, ErrConfiguration)

	_, err = NewVerifier(VerifierConfig{Issuer: testIssuer}, nil)
	require.ErrorIs(t, err, ErrConfiguration)

	_, err = NewVerifier(VerifierConfig{Issuer: testIssuer, Leeway: -time.Second}, &stubResolver{})
	require.ErrorIs(t, err, ErrConfiguration)

	v, err := NewVerifier(VerifierConfig{DevMode: true}, nil)
	require.NoError(t, err)
	require.True(t, v.DevMode())
}

func TestVerify_ValidToken(t *testing.T) {
	f := newVerifierFixture(t, nil)
	tok := mint(t, f.key, "k1", f.claims(jwtv5.MapClaims{"wallet": "0xAbCdEf0000000000000000000000000000000001"}))

	id, err := f.verifier.Verify(context.Background(), tok)
	require.NoError(t, err)
	require.Equal(t, "user-123", id.SubjectID)
	require.Equal(t, "0xAbCdEf0000000000000000000000000000000001", id.Wallet)
	require.False(t, id.WalletVerified)
}

func TestVerify_WalletAbsent(t *testing.T) {
	f := newVerifierFixture(t, nil)

	id, err := f.verifier.Verify(context.Background(), mint(t, f.key, "k1", f.claims(nil)))
	require.NoError(t, err)
	require.Empty(t, id.Wallet)
	require.False(t, id.HasWallet())

	id, err = f.verifier.Verify(context.Background(), mint(t, f.key, "k1", f.claims(jwtv5.MapClaims{"wallet": "  "})))
	require.NoError(t, err)
	require.Empty(t, id.Wallet)
}

func TestVerify_Malformed(t *testing.T) {
	f := newVerifierFixture(t, nil)
	ctx := context.Background()

	header := rawSegment(t, map[string]any{"alg": "RS256", "kid": "k1"})
	payload := rawSegment(t, f.claims(nil))

	for _, tok := range []string{
		"",
		"abc",
		header + "." + payload,
		header + "." + payload + ".sig.extra",
		"!!!." + payload + ".sig",
		header + ".%%%.sig",
		base64.RawURLEncoding.EncodeToString([]byte("not json")) + "." + payload + ".sig",
		rawSegment(t, []string{"array"}) + "." + payload + ".sig",
		header + "." + base64.RawURLEncoding.EncodeToString([]byte("null")) + ".sig",
	} {
		_, err := f.verifier.Verify(ctx, tok)
		require.ErrorIs(t, err, ErrMalformedToken, "token %q", tok)
	}
	require.Zero(t, f.resolver.calls)
}

func TestVerify_MissingKid(t *testing.T) {
	f := newVerifierFixture(t, nil)
	_, err := f.verifier.Verify(context.Background(), mint(t, f.key, "", f.claims(nil)))
	require.ErrorIs(t, err, ErrMalformedToken)
}

func TestVerify_IssuerMismatch(t *testing.T) {
	f := newVerifierFixture(t, nil)
	ctx := context.Background()

	for _, iss := range []any{"https://other.test", strings.ToUpper(testIssuer), 42} {
		_, err := f.verifier.Verify(ctx, mint(t, f.key, "k1", f.claims(jwtv5.MapClaims{"iss": iss})))
		require.ErrorIs(t, err, ErrIssuerMismatch, "iss %v", iss)
	}

	c := f.claims(nil)
	delete(c, "iss")
	_, err := f.verifier.Verify(ctx, mint(t, f.key, "k1", c))
	require.ErrorIs(t, err, ErrIssuerMismatch)

	// issuer se valida antes de resolver la clave
	require.Zero(t, f.resolver.calls)
}

func TestVerifyIssuer_ExplicitIssuer(t *testing.T) {
	f := newVerifierFixture(t, nil)
	tok := mint(t, f.key, "k1", f.claims(jwtv5.MapClaims{"iss": "https://tenant.test"}))

	_, err := f.verifier.VerifyIssuer(context.Background(), tok, "https://tenant.test")
	require.NoError(t, err)

	_, err = f.verifier.Verify(context.Background(), tok)
	require.ErrorIs(t, err, ErrIssuerMismatch)
}

func TestVerify_UnknownKeyPropagates(t *testing.T) {
	f := newVerifierFixture(t, nil)
	_, err := f.verifier.Verify(context.Background(), mint(t, f.key, "rotated", f.claims(nil)))
	require.ErrorIs(t, err, ErrUnknownKeyID)
}

func TestVerify_SignatureFailures(t *testing.T) {
	f := newVerifierFixture(t, nil)
	ctx := context.Background()
	good := mint(t, f.key, "k1", f.claims(nil))
	segs := strings.Split(good, ".")

	t.Run("bit flip", func(t *testing.T) {
		sig, err := base64.RawURLEncoding.DecodeString(segs[2])
		require.NoError(t, err)
		sig[len(sig)/2] ^= 0x01
		tok := segs[0] + "." + segs[1] + "." + base64.RawURLEncoding.EncodeToString(sig)
		_, err = f.verifier.Verify(ctx, tok)
		require.ErrorIs(t, err, ErrSignatureInvalid)
	})

	t.Run("every single-bit change of the signature segment", func(t *testing.T) {
		sigSeg := segs[2]
		for i := 0; i < len(sigSeg); i++ {
			for bit := 0; bit < 7; bit++ {
				c := sigSeg[i] ^ byte(1<<bit)
				tok := segs[0] + "." + segs[1] + "." + sigSeg[:i] + string(c) + sigSeg[i+1:]
				_, err := f.verifier.Verify(ctx, tok)
				if c == '.' {
					require.ErrorIs(t, err, ErrMalformedToken, "char %d %q -> %q", i, sigSeg[i], c)
					continue
				}
				require.ErrorIs(t, err, ErrSignatureInvalid, "char %d %q -> %q", i, sigSeg[i], c)
			}
		}
	})

	t.Run("non-canonical trailing bits", func(t *testing.T) {
		// RS256 de 2048 bits: 256 bytes => el último carácter lleva 4 bits de relleno.
		sigSeg := segs[2]
		last := strings.IndexByte(base64URLAlphabet, sigSeg[len(sigSeg)-1])
		require.GreaterOrEqual(t, last, 0)
		require.Zero(t, last&0x0f, "canonical encoding")
		alt := base64URLAlphabet[last|0x01]
		tok := segs[0] + "." + segs[1] + "." + sigSeg[:len(sigSeg)-1] + string(alt)
		_, err := f.verifier.Verify(ctx, tok)
		require.ErrorIs(t, err, ErrSignatureInvalid)
	})

	t.Run("payload swapped", func(t *testing.T) {
		other := rawSegment(t, f.claims(jwtv5.MapClaims{"usid": "admin"}))
		_, err := f.verifier.Verify(ctx, segs[0]+"."+other+"."+segs[2])
		require.ErrorIs(t, err, ErrSignatureInvalid)
	})

	t.Run("wrong key", func(t *testing.T) {
		other := newRSAKey(t)
		_, err := f.verifier.Verify(ctx, mint(t, other, "k1", f.claims(nil)))
		require.ErrorIs(t, err, ErrSignatureInvalid)
	})

	t.Run("empty signature", func(t *testing.T) {
		_, err := f.verifier.Verify(ctx, segs[0]+"."+segs[1]+".")
		require.ErrorIs(t, err, ErrSignatureInvalid)
	})

	t.Run("bad signature encoding", func(t *testing.T) {
		_, err := f.verifier.Verify(ctx, segs[0]+"."+segs[1]+".***")
		require.ErrorIs(t, err, ErrSignatureInvalid)
	})

	t.Run("hs256", func(t *testing.T) {
		tok := jwtv5.NewWithClaims(jwtv5.SigningMethodHS256, f.claims(nil))
		tok.Header["kid"] = "k1"
		s, err := tok.SignedString([]byte("shared-secret"))
		require.NoError(t, err)
		_, err = f.verifier.Verify(ctx, s)
		require.ErrorIs(t, err, ErrSignatureInvalid)
	})

	t.Run("alg none", func(t *testing.T) {
		h := rawSegment(t, map[string]any{"alg": "none", "kid": "k1"})
		_, err := f.verifier.Verify(ctx, h+"."+segs[1]+"."+segs[2])
		require.ErrorIs(t, err, ErrSignatureInvalid)
	})
}

func TestVerify_PaddedSegments(t *testing.T) {
	f := newVerifierFixture(t, nil)
	hb, _ := json.Marshal(map[string]any{"alg": "RS256", "kid": "k1", "typ": "JWT"})
	pb, _ := json.Marshal(f.claims(nil))
	h := base64.URLEncoding.EncodeToString(hb)
	p := base64.URLEncoding.EncodeToString(pb)
	sig, err := jwtv5.SigningMethodRS256.Sign(h+"."+p, f.key)
	require.NoError(t, err)

	id, err := f.verifier.Verify(context.Background(), h+"."+p+"."+base64.URLEncoding.EncodeToString(sig))
	require.NoError(t, err)
	require.Equal(t, "user-123", id.SubjectID)
}

func TestVerify_MissingSubject(t *testing.T) {
	f := newVerifierFixture(t, nil)
	ctx := context.Background()

	for _, sub := range []any{nil, "", "   ", 12345, map[string]any{"id": "x"}} {
		c := f.claims(nil)
		if sub == nil {
			delete(c, "usid")
		} else {
			c["usid"] = sub
		}
		_, err := f.verifier.Verify(ctx, mint(t, f.key, "k1", c))
		require.ErrorIs(t, err, ErrMissingClaim, "usid %v", sub)
	}
}

func TestVerify_CustomClaimNames(t *testing.T) {
	f := newVerifierFixture(t, func(c *VerifierConfig) {
		c.SubjectClaim = "sub"
		c.WalletClaim = "eth_address"
	})
	tok := mint(t, f.key, "k1", f.claims(jwtv5.MapClaims{"usid": nil, "sub": "s-1", "eth_address": "0x01"}))

	id, err := f.verifier.Verify(context.Background(), tok)
	require.NoError(t, err)
	require.Equal(t, "s-1", id.SubjectID)
	require.Equal(t, "0x01", id.Wallet)
}

func TestVerify_ValidityWindow(t *testing.T) {
	f := newVerifierFixture(t, nil)
	ctx := context.Background()

	_, err := f.verifier.Verify(ctx, mint(t, f.key, "k1", f.claims(jwtv5.MapClaims{"exp": f.now.Add(-time.Hour).Unix()})))
	require.ErrorIs(t, err, ErrTokenExpired)

	_, err = f.verifier.Verify(ctx, mint(t, f.key, "k1", f.claims(jwtv5.MapClaims{"exp": f.now.Add(-10 * time.Second).Unix()})))
	require.NoError(t, err, "within leeway")

	_, err = f.verifier.Verify(ctx, mint(t, f.key, "k1", f.claims(jwtv5.MapClaims{"nbf": f.now.Add(time.Hour).Unix()})))
	require.ErrorIs(t, err, ErrTokenNotYetValid)

	_, err = f.verifier.Verify(ctx, mint(t, f.key, "k1", f.claims(jwtv5.MapClaims{"exp": "tomorrow"})))
	require.ErrorIs(t, err, ErrMalformedToken)

	// sin exp es válido salvo RequireExpiry
	_, err = f.verifier.Verify(ctx, mint(t, f.key, "k1", f.claims(jwtv5.MapClaims{"exp": nil})))
	require.NoError(t, err)

	strict := newVerifierFixture(t, func(c *VerifierConfig) { c.RequireExpiry = true })
	_, err = strict.verifier.Verify(ctx, mint(t, strict.key, "k1", strict.claims(jwtv5.MapClaims{"exp": nil})))
	require.ErrorIs(t, err, ErrTokenExpired)
}

func TestVerify_DevModeBypass(t *testing.T) {
	v, err := NewVerifier(VerifierConfig{DevMode: true}, nil)
	require.NoError(t, err)
	ctx := context.Background()

	h := rawSegment(t, map[string]any{"alg": "none"})
	p := rawSegment(t, map[string]any{"usid": "dev-user", "wallet": "0xdev", "iss": "anything"})

	id, err := v.Verify(ctx, h+"."+p+".not-a-signature")
	require.NoError(t, err)
	require.Equal(t, "dev-user", id.SubjectID)
	require.Equal(t, "0xdev", id.Wallet)

	// expirado: en bypass no se valida
	p = rawSegment(t, map[string]any{"usid": "dev-user", "exp": 1})
	_, err = v.Verify(ctx, h+"."+p+".")
	require.NoError(t, err)

	p = rawSegment(t, map[string]any{"wallet": "0xdev"})
	_, err = v.Verify(ctx, h+"."+p+".x")
	require.ErrorIs(t, err, ErrMissingClaim)

	_, err = v.Verify(ctx, "only.two")
	require.ErrorIs(t, err, ErrMalformedToken)
}

func TestVerify_EndToEndWithResolver(t *testing.T) {
	k := newRSAKey(t)
	srv := newJWKSServer(t, serveDoc(JWKSJSON(map[string]*rsa.PublicKey{"k1": &k.PublicKey})))
	r := newTestResolver(t, srv.URL, nil)
	v, err := NewVerifier(VerifierConfig{Issuer: testIssuer, Leeway: DefaultLeeway}, r)
	require.NoError(t, err)

	claims := jwtv5.MapClaims{"iss": testIssuer, "usid": "u-1", "exp": time.Now().Add(time.Hour).Unix()}
	for i := 0; i < 3; i++ {
		id, err := v.Verify(context.Background(), mint(t, k, "k1", claims))
		require.NoError(t, err)
		require.Equal(t, "u-1", id.SubjectID)
	}
	require.EqualValues(t, 1, srv.calls.Load())
}

func TestKind(t *testing.T) {
	require.Equal(t, "ok", Kind(nil))
	require.Equal(t, "issuer_mismatch", Kind(fmt.Errorf("%w: x", ErrIssuerMismatch)))
	require.Equal(t, "unknown", Kind(fmt.Errorf("other")))
	require.False(t, Retryable(ErrSignatureInvalid))
	require.True(t, Retryable(fmt.Errorf("%w: timeout", ErrKeyFetchFailed)))
}
