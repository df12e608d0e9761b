package middlewares

import (
	"errors"
	"net/http"
	"strings"

	httperrors "github.com/slopeoasis/usergate/internal/http/errors"
	jwtx "github.com/slopeoasis/usergate/internal/jwt"
	"github.com/slopeoasis/usergate/internal/observability/logger"
)

// RequireAuth valida Authorization: Bearer <JWT> y guarda la identidad en el
// contexto. OPTIONS pasa sin verificar. Toda falla de verificación responde el
// mismo 401; el motivo sólo va a logs y métricas.
func RequireAuth(verifier jwtx.TokenVerifier) Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.Method == http.MethodOptions {
				next.ServeHTTP(w, r)
				return
			}

			ctx := r.Context()
			log := logger.From(ctx).With(logger.Layer("middleware"), logger.Op("RequireAuth"))

			raw, ok := bearerToken(r)
			if !ok {
				w.Header().Set("WWW-Authenticate", `Bearer realm="api"`)
				httperrors.WriteError(w, httperrors.ErrMissingAuthHeader)
				return
			}

			id, err := verifier.Verify(ctx, raw)
			if err != nil {
				if errors.Is(err, jwtx.ErrConfiguration) {
					log.Error("token verifier misconfigured", logger.Kind(jwtx.Kind(err)), logger.Err(err))
					httperrors.WriteError(w, httperrors.ErrInternalServerError.WithCause(err))
					return
				}
				log.Info("token rejected",
					logger.Kind(jwtx.Kind(err)),
					logger.Bool("retryable", jwtx.Retryable(err)),
					logger.Err(err),
				)
				w.Header().Set("WWW-Authenticate", `Bearer realm="api", error="invalid_token"`)
				httperrors.WriteError(w, httperrors.ErrTokenInvalid.WithCause(err))
				return
			}

			ctx = WithIdentity(ctx, id)
			ctx = logger.ToContext(ctx, logger.From(ctx).With(logger.UserID(id.SubjectID)))
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// bearerToken extrae el token de "Bearer <token>" (esquema case-insensitive).
func bearerToken(r *http.Request) (string, bool) {
	ah := strings.TrimSpace(r.Header.Get("Authorization"))
	const prefix = "bearer "
	if len(ah) <= len(prefix) || !strings.EqualFold(ah[:len(prefix)], prefix) {
		return "", false
	}
	raw := strings.TrimSpace(ah[len(prefix):])
	return raw, raw != ""
}
