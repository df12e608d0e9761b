// Package identity modela al usuario autenticado que se entrega a los handlers.
package identity

import (
	"errors"
	"strings"
)

var ErrEmptySubject = errors.New("identity: empty subject id")

// Identity es el resultado de una verificación exitosa. SubjectID nunca es vacío.
// Wallet == "" significa que el token no traía wallet; WalletVerified sólo es
// true si además hubo una prueba de firma para esa dirección.
type Identity struct {
	SubjectID      string `json:"subject_id"`
	Wallet         string `json:"wallet,omitempty"`
	WalletVerified bool   `json:"wallet_verified"`
}

// New construye una Identity. Un wallet en blanco se trata como ausente.
func New(subjectID, wallet string) (Identity, error) {
	if strings.TrimSpace(subjectID) == "" {
		return Identity{}, ErrEmptySubject
	}
	if strings.TrimSpace(wallet) == "" {
		wallet = ""
	}
	return Identity{SubjectID: subjectID, Wallet: wallet}, nil
}

// HasWallet indica si el token declaró una dirección.
func (id Identity) HasWallet() bool { return id.Wallet != "" }

// WithVerifiedWallet devuelve una copia con la dirección probada por firma.
// Si el token ya declaraba otra dirección, queda la probada.
func (id Identity) WithVerifiedWallet(address string) Identity {
	id.Wallet = address
	id.WalletVerified = address != ""
	return id
}
