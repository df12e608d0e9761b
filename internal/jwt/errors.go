package jwt

import (
	"errors"
)

// Errores de verificación. Se devuelven envueltos con fmt.Errorf("%w: ...") para
// conservar detalle interno; usar errors.Is para clasificarlos y Kind para
// obtener una etiqueta estable (logs/métricas). Ninguno debe llegar al cliente.
var (
	ErrMalformedToken     = errors.New("malformed_token")
	ErrIssuerMismatch     = errors.New("issuer_mismatch")
	ErrUnknownKeyID       = errors.New("unknown_key_id")
	ErrUnsupportedKeyType = errors.New("unsupported_key_type")
	ErrMalformedKey       = errors.New("malformed_key")
	ErrKeyFetchFailed     = errors.New("key_fetch_failed")
	ErrSignatureInvalid   = errors.New("signature_invalid")
	ErrMissingClaim       = errors.New("missing_claim")
	ErrTokenExpired       = errors.New("token_expired")
	ErrTokenNotYetValid   = errors.New("token_not_yet_valid")

	// ErrConfiguration es un defecto de despliegue, no una condición por request.
	ErrConfiguration = errors.New("configuration_error")
)

var kinds = []error{
	ErrMalformedToken,
	ErrIssuerMismatch,
	ErrUnknownKeyID,
	ErrUnsupportedKeyType,
	ErrMalformedKey,
	ErrKeyFetchFailed,
	ErrSignatureInvalid,
	ErrMissingClaim,
	ErrTokenExpired,
	ErrTokenNotYetValid,
	ErrConfiguration,
}

// Kind devuelve la etiqueta del error de verificación ("ok" para nil,
// "unknown" si no pertenece a la taxonomía).
func Kind(err error) string {
	if err == nil {
		return "ok"
	}
	for _, k := range kinds {
		if errors.Is(err, k) {
			return k.Error()
		}
	}
	return "unknown"
}

// Retryable indica si reintentar la misma verificación puede cambiar el resultado.
// Sólo las fallas de red contra el key set lo son.
func Retryable(err error) bool {
	return errors.Is(err, ErrKeyFetchFailed)
}
