package http

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	authctl "github.com/slopeoasis/usergate/internal/http/controllers/auth"
	"github.com/slopeoasis/usergate/internal/http/controllers/health"
	walletctl "github.com/slopeoasis/usergate/internal/http/controllers/wallet"
	httperrors "github.com/slopeoasis/usergate/internal/http/errors"
	mw "github.com/slopeoasis/usergate/internal/http/middlewares"
	jwtx "github.com/slopeoasis/usergate/internal/jwt"
	"github.com/slopeoasis/usergate/internal/rate"
)

// Deps son las dependencias del router.
type Deps struct {
	Verifier      jwtx.TokenVerifier
	Wallet        walletctl.ProofVerifier
	Metrics       http.Handler // nil => sin /metrics
	CORSOrigins   []string
	WalletLimiter rate.Limiter // nil => sin límite
}

// NewRouter arma las rutas:
//
//	GET  /health            público
//	GET  /whoami            público
//	GET  /metrics           público
//	GET  /v1/me             RequireAuth
//	POST /v1/wallet/verify  RequireAuth + rate limit por subject
//
// Cadena global: recover -> request id -> logging -> metrics -> CORS.
func NewRouter(d Deps) http.Handler {
	r := chi.NewRouter()
	r.Use(
		mw.WithRecover(),
		mw.WithRequestID(),
		mw.WithLogging(),
		WithMetrics(),
		mw.WithCORS(d.CORSOrigins),
	)
	r.NotFound(func(w http.ResponseWriter, _ *http.Request) {
		httperrors.WriteError(w, httperrors.ErrNotFound)
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, _ *http.Request) {
		httperrors.WriteError(w, httperrors.ErrMethodNotAllowed)
	})

	hc := health.NewController()
	r.Get("/health", hc.Health)
	r.Get("/whoami", hc.WhoAmI)
	if d.Metrics != nil {
		r.Method(http.MethodGet, "/metrics", d.Metrics)
	}

	// Gate inline para que el patrón de ruta ya esté resuelto al medir.
	requireAuth := mw.RequireAuth(d.Verifier)
	wc := walletctl.NewVerifyController(d.Wallet)
	r.With(requireAuth).Get("/v1/me", authctl.Me)
	r.With(requireAuth, mw.WithRateLimit(d.WalletLimiter, mw.SubjectRateKey)).
		Post("/v1/wallet/verify", wc.Verify)

	return r
}
