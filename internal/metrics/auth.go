// Package metrics define las métricas Prometheus de verificación (tokens, key set,
// wallets). Vive aparte de internal/http para que internal/jwt y internal/wallet
// puedan registrar sin depender de la capa HTTP.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	TokenVerifications = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "usergate_token_verifications_total",
		Help: "Verificaciones de bearer token por resultado y tipo de falla",
	}, []string{"result", "kind"})

	JWKSFetches = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "usergate_jwks_fetches_total",
		Help: "Descargas del key set del proveedor por resultado",
	}, []string{"result"})

	JWKSFetchDuration = prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "usergate_jwks_fetch_duration_seconds",
		Help:    "Latencia de la descarga del key set (incluye reintentos)",
		Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2, 5, 10},
	})

	KeyCacheLookups = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "usergate_key_cache_lookups_total",
		Help: "Lookups de clave por kid (hit|miss)",
	}, []string{"result"})

	WalletVerifications = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "usergate_wallet_verifications_total",
		Help: "Verificaciones de firma de wallet (verified|rejected)",
	}, []string{"result"})
)

// Register registra las métricas en reg (o el default si es nil). Duplicados se ignoran.
func Register(reg prometheus.Registerer) error {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	for _, c := range []prometheus.Collector{
		TokenVerifications,
		JWKSFetches,
		JWKSFetchDuration,
		KeyCacheLookups,
		WalletVerifications,
	} {
		if err := reg.Register(c); err != nil {
			if _, ok := err.(prometheus.AlreadyRegisteredError); !ok {
				return err
			}
		}
	}
	return nil
}

// RecordTokenVerification cuenta una verificación; kind es jwt.Kind(err).
func RecordTokenVerification(kind string) {
	result := "rejected"
	if kind == "ok" {
		result = "accepted"
	}
	TokenVerifications.WithLabelValues(result, kind).Inc()
}

// RecordJWKSFetch cuenta una descarga del key set y su duración.
func RecordJWKSFetch(err error, d time.Duration) {
	result := "ok"
	if err != nil {
		result = "error"
	}
	JWKSFetches.WithLabelValues(result).Inc()
	JWKSFetchDuration.Observe(d.Seconds())
}

// RecordKeyCacheLookup cuenta un hit o miss del key cache.
func RecordKeyCacheLookup(hit bool) {
	if hit {
		KeyCacheLookups.WithLabelValues("hit").Inc()
		return
	}
	KeyCacheLookups.WithLabelValues("miss").Inc()
}

// RecordWalletVerification cuenta una verificación de firma de wallet.
func RecordWalletVerification(ok bool) {
	if ok {
		WalletVerifications.WithLabelValues("verified").Inc()
		return
	}
	WalletVerifications.WithLabelValues("rejected").Inc()
}
