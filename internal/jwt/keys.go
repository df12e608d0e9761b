package jwt

import (
	"crypto/rsa"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"math/big"
	"strings"
)

// SigningKey es una clave pública RSA del proveedor, identificada por kid.
// Inmutable una vez construida.
type SigningKey struct {
	KeyID    string
	Modulus  *big.Int
	Exponent int
}

// PublicKey arma la *rsa.PublicKey equivalente.
func (k SigningKey) PublicKey() *rsa.PublicKey {
	return &rsa.PublicKey{N: new(big.Int).Set(k.Modulus), E: k.Exponent}
}

// ----- JWKS (documento publicado por el proveedor) -----

type jwk struct {
	Kty string `json:"kty"`
	Kid string `json:"kid"`
	Alg string `json:"alg,omitempty"`
	Use string `json:"use,omitempty"`
	N   string `json:"n,omitempty"` // base64url
	E   string `json:"e,omitempty"` // base64url
}

type jwks struct {
	Keys []jwk `json:"keys"`
}

func parseJWKS(b []byte) (*jwks, error) {
	var doc jwks
	if err := json.Unmarshal(b, &doc); err != nil {
		return nil, fmt.Errorf("decode jwks: %w", err)
	}
	return &doc, nil
}

// signingKey convierte una entrada JWK a SigningKey. Sólo RSA.
func (k jwk) signingKey() (SigningKey, error) {
	if k.Kty != "RSA" {
		return SigningKey{}, fmt.Errorf("%w: kid %q has kty %q", ErrUnsupportedKeyType, k.Kid, k.Kty)
	}
	nb, err := decodeSegment(k.N)
	if err != nil || len(nb) == 0 {
		return SigningKey{}, fmt.Errorf("%w: kid %q: bad modulus", ErrMalformedKey, k.Kid)
	}
	eb, err := decodeSegment(k.E)
	if err != nil || len(eb) == 0 || len(eb) > 4 {
		return SigningKey{}, fmt.Errorf("%w: kid %q: bad exponent", ErrMalformedKey, k.Kid)
	}
	n := new(big.Int).SetBytes(nb)
	e := 0
	for _, b := range eb {
		e = e<<8 | int(b)
	}
	if n.Sign() == 0 || e < 2 {
		return SigningKey{}, fmt.Errorf("%w: kid %q: zero component", ErrMalformedKey, k.Kid)
	}
	return SigningKey{KeyID: k.Kid, Modulus: n, Exponent: e}, nil
}

// JWKSJSON serializa claves públicas RSA como documento JWKS (fixtures de
// tests de este y otros paquetes).
func JWKSJSON(keys map[string]*rsa.PublicKey) []byte {
	doc := jwks{Keys: make([]jwk, 0, len(keys))}
	for kid, pub := range keys {
		doc.Keys = append(doc.Keys, jwk{
			Kty: "RSA",
			Kid: kid,
			Alg: "RS256",
			Use: "sig",
			N:   encodeSegment(pub.N.Bytes()),
			E:   encodeSegment(bigEndian(pub.E)),
		})
	}
	b, _ := json.Marshal(doc)
	return b
}

func encodeSegment(b []byte) string {
	return base64.RawURLEncoding.EncodeToString(b)
}

// decodeSegment decodifica base64url con o sin padding. Strict rechaza bits de
// relleno distintos de cero: cada valor tiene una sola codificación aceptada.
func decodeSegment(s string) ([]byte, error) {
	return base64.RawURLEncoding.Strict().DecodeString(strings.TrimRight(s, "="))
}
