package middlewares

import (
	"context"

	"github.com/slopeoasis/usergate/internal/identity"
)

type ctxKey string

const (
	// ctxIdentityKey guarda la identity.Identity verificada
	ctxIdentityKey ctxKey = "identity"
	// ctxRequestIDKey guarda el request ID
	ctxRequestIDKey ctxKey = "request_id"
)

// WithIdentity inyecta la identidad verificada en el contexto.
func WithIdentity(ctx context.Context, id identity.Identity) context.Context {
	return context.WithValue(ctx, ctxIdentityKey, id)
}

func setRequestID(ctx context.Context, requestID string) context.Context {
	return context.WithValue(ctx, ctxRequestIDKey, requestID)
}

// GetIdentity obtiene la identidad verificada. ok es false si el gate no corrió.
func GetIdentity(ctx context.Context) (identity.Identity, bool) {
	id, ok := ctx.Value(ctxIdentityKey).(identity.Identity)
	return id, ok
}

// GetUserID devuelve el subject verificado o "".
func GetUserID(ctx context.Context) string {
	id, _ := GetIdentity(ctx)
	return id.SubjectID
}

// GetWallet devuelve la wallet declarada en el token o "".
func GetWallet(ctx context.Context) string {
	id, _ := GetIdentity(ctx)
	return id.Wallet
}

// GetRequestID obtiene el request ID del contexto.
func GetRequestID(ctx context.Context) string {
	if s, ok := ctx.Value(ctxRequestIDKey).(string); ok {
		return s
	}
	return ""
}
