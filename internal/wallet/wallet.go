// Package wallet verifica pruebas de posesión de una wallet Ethereum: firmas
// personal_sign (EIP-191) sobre un mensaje arbitrario.
package wallet

import (
	"errors"
	"fmt"
	"strings"

	"github.com/ethereum/go-ethereum/accounts"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/crypto"

	"github.com/slopeoasis/usergate/internal/metrics"
)

// SignatureLength es r(32) || s(32) || v(1).
const SignatureLength = crypto.SignatureLength

var (
	ErrInvalidSignature = errors.New("wallet: invalid signature encoding")
	ErrInvalidAddress   = errors.New("wallet: invalid address")
)

// Proof es una prueba de firma ya validada en formato.
type Proof struct {
	Message        string
	Signature      [SignatureLength]byte
	ClaimedAddress string
}

// ParseProof valida la entrada cruda (hex 0x-prefijado) de una prueba.
func ParseProof(message, sigHex, address string) (Proof, error) {
	sig, err := hexutil.Decode(strings.TrimSpace(sigHex))
	if err != nil {
		return Proof{}, fmt.Errorf("%w: %v", ErrInvalidSignature, err)
	}
	if len(sig) != SignatureLength {
		return Proof{}, fmt.Errorf("%w: want %d bytes, got %d", ErrInvalidSignature, SignatureLength, len(sig))
	}
	address = strings.TrimSpace(address)
	if !validAddress(address) {
		return Proof{}, ErrInvalidAddress
	}
	p := Proof{Message: message, ClaimedAddress: address}
	copy(p.Signature[:], sig)
	return p, nil
}

// Verifier recupera el firmante de un mensaje y lo compara con la dirección
// declarada. Inmutable; seguro para uso concurrente.
type Verifier struct {
	rawRecoveryID bool
}

// Option configura un Verifier.
type Option func(*Verifier)

// WithRawRecoveryID acepta además v en {0,1} (firmas crudas de algunas
// librerías de hardware). Por default sólo v en {27,28}.
func WithRawRecoveryID() Option {
	return func(v *Verifier) { v.rawRecoveryID = true }
}

func NewVerifier(opts ...Option) *Verifier {
	v := &Verifier{}
	for _, o := range opts {
		o(v)
	}
	return v
}

// Verify nunca devuelve error ni hace panic: cualquier falla es false.
func (v *Verifier) Verify(message string, signature []byte, claimedAddress string) (ok bool) {
	defer func() {
		if r := recover(); r != nil {
			ok = false
		}
		metrics.RecordWalletVerification(ok)
	}()

	if len(signature) != SignatureLength || !validAddress(claimedAddress) {
		return false
	}
	signer, err := recoverAddress(message, signature, v.rawRecoveryID)
	if err != nil {
		return false
	}
	return strings.EqualFold(signer.Hex(), claimedAddress)
}

// VerifyHex decodifica una firma 0x-hex y verifica.
func (v *Verifier) VerifyHex(message, sigHex, claimedAddress string) bool {
	sig, err := hexutil.Decode(strings.TrimSpace(sigHex))
	if err != nil {
		metrics.RecordWalletVerification(false)
		return false
	}
	return v.Verify(message, sig, claimedAddress)
}

// VerifyProof verifica una Proof ya parseada.
func (v *Verifier) VerifyProof(p Proof) bool {
	return v.Verify(p.Message, p.Signature[:], p.ClaimedAddress)
}

// PrefixedHash es keccak256("\x19Ethereum Signed Message:\n" + len(message) + message).
func PrefixedHash(message string) []byte {
	return accounts.TextHash([]byte(message))
}

// RecoverAddress devuelve la dirección que firmó message. Exige v en {27,28}
// como personal_sign.
func RecoverAddress(message string, signature []byte) (common.Address, error) {
	return recoverAddress(message, signature, false)
}

func recoverAddress(message string, signature []byte, rawRecoveryID bool) (common.Address, error) {
	if len(signature) != SignatureLength {
		return common.Address{}, ErrInvalidSignature
	}
	sig := make([]byte, SignatureLength)
	copy(sig, signature)
	switch v := sig[crypto.RecoveryIDOffset]; {
	case v == 27 || v == 28:
		sig[crypto.RecoveryIDOffset] -= 27
	case rawRecoveryID && (v == 0 || v == 1):
	default:
		return common.Address{}, fmt.Errorf("%w: recovery id %d", ErrInvalidSignature, signature[crypto.RecoveryIDOffset])
	}
	pub, err := crypto.SigToPub(PrefixedHash(message), sig)
	if err != nil {
		return common.Address{}, fmt.Errorf("%w: %v", ErrInvalidSignature, err)
	}
	return crypto.PubkeyToAddress(*pub), nil
}

// validAddress exige 0x + 40 hex (sin chequear checksum EIP-55).
func validAddress(s string) bool {
	return len(s) == 2+2*common.AddressLength && has0xPrefix(s) && common.IsHexAddress(s)
}

func has0xPrefix(s string) bool {
	return len(s) >= 2 && s[0] == '0' && (s[1] == 'x' || s[1] == 'X')
}
