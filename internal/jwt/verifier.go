package jwt

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strings"
	"time"

	jwtv5 "github.com/golang-jwt/jwt/v5"

	"github.com/slopeoasis/usergate/internal/identity"
	"github.com/slopeoasis/usergate/internal/metrics"
	"github.com/slopeoasis/usergate/internal/observability/logger"
)

const (
	DefaultSubjectClaim = "usid"
	DefaultWalletClaim  = "wallet"
	DefaultLeeway       = 30 * time.Second

	algRS256 = "RS256"
)

// TokenVerifier es lo que consume el gate HTTP.
type TokenVerifier interface {
	Verify(ctx context.Context, token string) (identity.Identity, error)
}

// VerifierConfig configura la validación de bearer tokens.
type VerifierConfig struct {
	Issuer        string
	SubjectClaim  string // default "usid"
	WalletClaim   string // default "wallet"
	DevMode       bool   // bypass: sin firma ni issuer, sólo decodifica
	Leeway        time.Duration
	RequireExpiry bool
	Now           func() time.Time
}

// TokenHeader son los campos del header que se usan.
type TokenHeader struct {
	KeyID     string
	Algorithm string
}

// TokenClaims son los claims del payload que se usan.
type TokenClaims struct {
	Issuer    string
	SubjectID string
	Wallet    string
	ExpiresAt *time.Time
	NotBefore *time.Time
}

// Verifier valida tokens RS256 contra el key set del proveedor.
type Verifier struct {
	cfg      VerifierConfig
	resolver KeyResolver
}

// NewVerifier exige issuer y resolver salvo en DevMode.
func NewVerifier(cfg VerifierConfig, resolver KeyResolver) (*Verifier, error) {
	if cfg.SubjectClaim == "" {
		cfg.SubjectClaim = DefaultSubjectClaim
	}
	if cfg.WalletClaim == "" {
		cfg.WalletClaim = DefaultWalletClaim
	}
	if cfg.Leeway < 0 {
		return nil, fmt.Errorf("%w: negative leeway", ErrConfiguration)
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	if cfg.DevMode {
		logger.L().Warn("token verification bypass enabled: signatures and issuer are NOT checked",
			logger.Component("jwt"))
	} else {
		if strings.TrimSpace(cfg.Issuer) == "" {
			return nil, fmt.Errorf("%w: issuer is required", ErrConfiguration)
		}
		if resolver == nil {
			return nil, fmt.Errorf("%w: key resolver is required", ErrConfiguration)
		}
	}
	return &Verifier{cfg: cfg, resolver: resolver}, nil
}

// DevMode indica si el bypass está activo.
func (v *Verifier) DevMode() bool { return v.cfg.DevMode }

// Verify valida el token contra el issuer configurado.
func (v *Verifier) Verify(ctx context.Context, token string) (identity.Identity, error) {
	return v.VerifyIssuer(ctx, token, v.cfg.Issuer)
}

// VerifyIssuer valida el token esperando expectedIssuer.
func (v *Verifier) VerifyIssuer(ctx context.Context, token, expectedIssuer string) (identity.Identity, error) {
	id, err := v.verify(ctx, token, expectedIssuer)
	metrics.RecordTokenVerification(Kind(err))
	return id, err
}

func (v *Verifier) verify(ctx context.Context, token, expectedIssuer string) (identity.Identity, error) {
	segs, err := split(token)
	if err != nil {
		return identity.Identity{}, err
	}
	rawHeader, err := decodeObject(segs[0])
	if err != nil {
		return identity.Identity{}, fmt.Errorf("%w: header: %w", ErrMalformedToken, err)
	}
	payload, err := decodeObject(segs[1])
	if err != nil {
		return identity.Identity{}, fmt.Errorf("%w: payload: %w", ErrMalformedToken, err)
	}

	if v.cfg.DevMode {
		claims, err := v.extractClaims(payload)
		if err != nil {
			return identity.Identity{}, err
		}
		return identity.New(claims.SubjectID, claims.Wallet)
	}

	if expectedIssuer == "" {
		return identity.Identity{}, fmt.Errorf("%w: no expected issuer", ErrConfiguration)
	}
	if iss, _ := payload["iss"].(string); iss != expectedIssuer {
		return identity.Identity{}, fmt.Errorf("%w: got %q", ErrIssuerMismatch, iss)
	}

	header := TokenHeader{}
	header.KeyID, _ = rawHeader["kid"].(string)
	header.Algorithm, _ = rawHeader["alg"].(string)
	if header.KeyID == "" {
		return identity.Identity{}, fmt.Errorf("%w: missing kid", ErrMalformedToken)
	}

	key, err := v.resolver.Resolve(ctx, header.KeyID)
	if err != nil {
		return identity.Identity{}, err
	}

	if err := verifySignature(header, segs, key); err != nil {
		return identity.Identity{}, err
	}

	if err := v.checkValidity(payload); err != nil {
		return identity.Identity{}, err
	}

	claims, err := v.extractClaims(payload)
	if err != nil {
		return identity.Identity{}, err
	}
	return identity.New(claims.SubjectID, claims.Wallet)
}

func split(token string) ([]string, error) {
	segs := strings.Split(token, ".")
	if len(segs) != 3 {
		return nil, fmt.Errorf("%w: expected 3 segments, got %d", ErrMalformedToken, len(segs))
	}
	return segs, nil
}

var errNotObject = errors.New("not a json object")

// decodeObject decodifica un segmento base64url a objeto JSON. Los números
// quedan como json.Number.
func decodeObject(seg string) (map[string]any, error) {
	raw, err := decodeSegment(seg)
	if err != nil {
		return nil, err
	}
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	var out map[string]any
	if err := dec.Decode(&out); err != nil {
		return nil, err
	}
	if out == nil {
		return nil, errNotObject
	}
	return out, nil
}

func verifySignature(h TokenHeader, segs []string, key SigningKey) error {
	if h.Algorithm != algRS256 {
		return fmt.Errorf("%w: alg %q", ErrSignatureInvalid, h.Algorithm)
	}
	sig, err := decodeSegment(segs[2])
	if err != nil || len(sig) == 0 {
		return fmt.Errorf("%w: bad signature encoding", ErrSignatureInvalid)
	}
	signingString := segs[0] + "." + segs[1]
	if err := jwtv5.SigningMethodRS256.Verify(signingString, sig, key.PublicKey()); err != nil {
		return fmt.Errorf("%w: %w", ErrSignatureInvalid, err)
	}
	return nil
}

func (v *Verifier) extractClaims(payload map[string]any) (TokenClaims, error) {
	var c TokenClaims
	c.Issuer, _ = payload["iss"].(string)

	sub, _ := payload[v.cfg.SubjectClaim].(string)
	if strings.TrimSpace(sub) == "" {
		return TokenClaims{}, fmt.Errorf("%w: %s", ErrMissingClaim, v.cfg.SubjectClaim)
	}
	c.SubjectID = sub

	if w, ok := payload[v.cfg.WalletClaim].(string); ok && strings.TrimSpace(w) != "" {
		c.Wallet = w
	}

	// En bypass las fechas son informativas; un valor inválido se ignora.
	c.ExpiresAt, _ = numericDate(payload, "exp")
	c.NotBefore, _ = numericDate(payload, "nbf")
	return c, nil
}

func (v *Verifier) checkValidity(payload map[string]any) error {
	var (
		c   TokenClaims
		err error
	)
	if c.ExpiresAt, err = numericDate(payload, "exp"); err != nil {
		return err
	}
	if c.NotBefore, err = numericDate(payload, "nbf"); err != nil {
		return err
	}

	now := v.cfg.Now()
	if c.ExpiresAt == nil {
		if v.cfg.RequireExpiry {
			return fmt.Errorf("%w: missing exp", ErrTokenExpired)
		}
	} else if now.After(c.ExpiresAt.Add(v.cfg.Leeway)) {
		return fmt.Errorf("%w: exp %s", ErrTokenExpired, c.ExpiresAt.UTC().Format(time.RFC3339))
	}
	if c.NotBefore != nil && c.NotBefore.After(now.Add(v.cfg.Leeway)) {
		return fmt.Errorf("%w: nbf %s", ErrTokenNotYetValid, c.NotBefore.UTC().Format(time.RFC3339))
	}
	return nil
}

// numericDate lee un NumericDate (segundos, puede traer fracción). Ausente => nil.
func numericDate(payload map[string]any, name string) (*time.Time, error) {
	raw, ok := payload[name]
	if !ok || raw == nil {
		return nil, nil
	}
	n, ok := raw.(json.Number)
	if !ok {
		return nil, fmt.Errorf("%w: %s is not a number", ErrMalformedToken, name)
	}
	f, err := n.Float64()
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %w", ErrMalformedToken, name, err)
	}
	sec, frac := math.Modf(f)
	t := time.Unix(int64(sec), int64(frac*float64(time.Second)))
	return &t, nil
}
