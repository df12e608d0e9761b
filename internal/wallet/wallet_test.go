package wallet

import (
	"crypto/ecdsa"
	"strings"
	"testing"

	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const loginMessage = "Sign in to SlopeOasis\nnonce: 8f2c1a"

// personalSign firma como lo hace una wallet (v = 27/28).
func personalSign(t *testing.T, key *ecdsa.PrivateKey, message string) []byte {
	t.Helper()
	sig, err := crypto.Sign(PrefixedHash(message), key)
	require.NoError(t, err)
	sig[crypto.RecoveryIDOffset] += 27
	return sig
}

func newKey(t *testing.T) (*ecdsa.PrivateKey, string) {
	t.Helper()
	key, err := crypto.GenerateKey()
	require.NoError(t, err)
	return key, crypto.PubkeyToAddress(key.PublicKey).Hex()
}

func TestPrefixedHash_Format(t *testing.T) {
	want := crypto.Keccak256([]byte("\x19Ethereum Signed Message:\n5hello"))
	require.Equal(t, want, PrefixedHash("hello"))

	// la longitud es en bytes, no en runes
	want = crypto.Keccak256([]byte("\x19Ethereum Signed Message:\n2ñ"))
	require.Equal(t, want, PrefixedHash("ñ"))
}

func TestVerify_RoundTrip(t *testing.T) {
	v := NewVerifier()
	key, addr := newKey(t)
	sig := personalSign(t, key, loginMessage)

	assert.True(t, v.Verify(loginMessage, sig, addr))
	assert.True(t, v.Verify(loginMessage, sig, strings.ToLower(addr)), "case-insensitive")
	assert.True(t, v.Verify(loginMessage, sig, "0x"+strings.ToUpper(addr[2:])))

	raw := append([]byte(nil), sig...)
	raw[crypto.RecoveryIDOffset] -= 27
	assert.False(t, v.Verify(loginMessage, raw, addr), "v in {0,1} rejected by default")
	assert.True(t, NewVerifier(WithRawRecoveryID()).Verify(loginMessage, raw, addr), "v in {0,1} with option")
	assert.True(t, NewVerifier(WithRawRecoveryID()).Verify(loginMessage, sig, addr))
}

// Cambiar cualquier byte de la firma, cualquier carácter del mensaje o un
// carácter hex de la dirección invalida la prueba.
func TestVerify_AnySingleChangeRejected(t *testing.T) {
	const message = "login:123"
	v := NewVerifier()
	key, addr := newKey(t)
	sig := personalSign(t, key, message)
	require.True(t, v.Verify(message, sig, addr))

	t.Run("signature bytes", func(t *testing.T) {
		for i := range sig {
			for _, delta := range []byte{0x01, 0x80, 0xff} {
				bad := append([]byte(nil), sig...)
				bad[i] ^= delta
				assert.False(t, v.Verify(message, bad, addr), "byte %d ^ %#x", i, delta)
			}
		}
	})

	t.Run("recovery byte values", func(t *testing.T) {
		orig := sig[crypto.RecoveryIDOffset]
		for b := 0; b < 256; b++ {
			if byte(b) == orig {
				continue
			}
			bad := append([]byte(nil), sig...)
			bad[crypto.RecoveryIDOffset] = byte(b)
			assert.False(t, v.Verify(message, bad, addr), "v %d -> %d", orig, b)
		}
	})

	t.Run("message characters", func(t *testing.T) {
		for i := range message {
			b := []byte(message)
			b[i] ^= 0x01
			assert.False(t, v.Verify(string(b), sig, addr), "message char %d", i)
		}
		assert.False(t, v.Verify(message+" ", sig, addr))
		assert.False(t, v.Verify(message[:len(message)-1], sig, addr))
	})

	t.Run("address characters", func(t *testing.T) {
		for i := 2; i < len(addr); i++ {
			b := []byte(strings.ToLower(addr))
			if b[i] == '0' {
				b[i] = '1'
			} else {
				b[i] = '0'
			}
			assert.False(t, v.Verify(message, sig, string(b)), "address char %d", i)
		}
	})
}

func TestVerify_Rejections(t *testing.T) {
	v := NewVerifier()
	key, addr := newKey(t)
	_, other := newKey(t)
	sig := personalSign(t, key, loginMessage)

	assert.False(t, v.Verify(loginMessage+" ", sig, addr), "different message")
	assert.False(t, v.Verify(loginMessage, sig, other), "different address")
	assert.False(t, v.Verify(loginMessage, sig, addr[2:]), "address without 0x")
	assert.False(t, v.Verify(loginMessage, sig, "0x1234"), "short address")
	assert.False(t, v.Verify(loginMessage, sig[:64], addr), "64 bytes")
	assert.False(t, v.Verify(loginMessage, append(sig, 0), addr), "66 bytes")
	assert.False(t, v.Verify(loginMessage, nil, addr))
	assert.False(t, v.Verify(loginMessage, make([]byte, SignatureLength), addr), "all zero")

	bad := append([]byte(nil), sig...)
	bad[crypto.RecoveryIDOffset] = 29
	assert.False(t, v.Verify(loginMessage, bad, addr), "v out of range")

	flipped := append([]byte(nil), sig...)
	flipped[10] ^= 0xff
	assert.False(t, v.Verify(loginMessage, flipped, addr), "tampered r")
}

func TestVerifyHex(t *testing.T) {
	v := NewVerifier()
	key, addr := newKey(t)
	sig := personalSign(t, key, loginMessage)

	assert.True(t, v.VerifyHex(loginMessage, hexutil.Encode(sig), addr))
	assert.False(t, v.VerifyHex(loginMessage, "not-hex", addr))
	assert.False(t, v.VerifyHex(loginMessage, hexutil.Encode(sig)[2:], addr), "missing 0x")
	assert.False(t, v.VerifyHex(loginMessage, "", addr))
}

func TestParseProof(t *testing.T) {
	key, addr := newKey(t)
	sig := personalSign(t, key, loginMessage)

	p, err := ParseProof(loginMessage, hexutil.Encode(sig), addr)
	require.NoError(t, err)
	require.Equal(t, addr, p.ClaimedAddress)
	require.True(t, NewVerifier().VerifyProof(p))

	_, err = ParseProof(loginMessage, "0xdead", addr)
	require.ErrorIs(t, err, ErrInvalidSignature)

	_, err = ParseProof(loginMessage, "zz", addr)
	require.ErrorIs(t, err, ErrInvalidSignature)

	_, err = ParseProof(loginMessage, hexutil.Encode(sig), "0xnothex000000000000000000000000000000000")
	require.ErrorIs(t, err, ErrInvalidAddress)
}

func TestRecoverAddress(t *testing.T) {
	key, addr := newKey(t)
	got, err := RecoverAddress(loginMessage, personalSign(t, key, loginMessage))
	require.NoError(t, err)
	require.Equal(t, addr, got.Hex())

	_, err = RecoverAddress(loginMessage, []byte{1, 2, 3})
	require.ErrorIs(t, err, ErrInvalidSignature)
}
