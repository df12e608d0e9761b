// Package app arma el contenedor de dependencias a partir de la configuración.
package app

import (
	"fmt"
	"net/http"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/slopeoasis/usergate/internal/cache"
	"github.com/slopeoasis/usergate/internal/config"
	httpserver "github.com/slopeoasis/usergate/internal/http"
	"github.com/slopeoasis/usergate/internal/jwt"
	"github.com/slopeoasis/usergate/internal/observability/logger"
	"github.com/slopeoasis/usergate/internal/rate"
	"github.com/slopeoasis/usergate/internal/wallet"
)

// Container agrupa las dependencias compartidas por serve y los comandos CLI.
type Container struct {
	Config   *config.Config
	Cache    cache.Client // claves JWKS y contadores de rate limit
	Keys     *jwt.KeyStore
	Resolver *jwt.Resolver // nil en dev_mode
	Verifier *jwt.Verifier
	Wallet   *wallet.Verifier
	Limiter  rate.Limiter // nil con rate.disabled
}

// New construye el contenedor. Errores de configuración de auth envuelven
// jwt.ErrConfiguration.
func New(cfg *config.Config) (*Container, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %w", jwt.ErrConfiguration, err)
	}

	c := &Container{Config: cfg, Wallet: wallet.NewVerifier()}

	cc, err := cache.New(cache.Config{
		Driver:   cfg.Cache.Kind,
		Addr:     cfg.Cache.Redis.Addr,
		Password: cfg.Cache.Redis.Password,
		DB:       cfg.Cache.Redis.DB,
		Prefix:   cfg.Cache.Redis.Prefix,
	})
	if err != nil {
		return nil, fmt.Errorf("cache: %w", err)
	}
	c.Cache = cc

	if !cfg.Rate.Disabled {
		l, err := rate.NewFixedWindow(cc, "rl", config.Int(cfg.Rate.WalletVerify.Limit), config.Duration(cfg.Rate.WalletVerify.Window))
		if err != nil {
			c.Close()
			return nil, err
		}
		c.Limiter = l
	}

	var resolver jwt.KeyResolver
	if !cfg.JWT.DevMode {
		c.Keys = jwt.NewKeyStore(cc, config.Duration(cfg.JWKS.KeyTTL))

		r, err := jwt.NewResolver(jwt.ResolverConfig{
			URL:          cfg.JWT.JWKSURL,
			FetchTimeout: config.Duration(cfg.JWKS.FetchTimeout),
			Retries:      config.Int(cfg.JWKS.Retries),
			RetryBackoff: config.Duration(cfg.JWKS.RetryBackoff),
		}, c.Keys)
		if err != nil {
			c.Close()
			return nil, err
		}
		c.Resolver = r
		resolver = r
	}

	v, err := jwt.NewVerifier(jwt.VerifierConfig{
		Issuer:        cfg.JWT.Issuer,
		SubjectClaim:  cfg.JWT.SubjectClaim,
		WalletClaim:   cfg.JWT.WalletClaim,
		DevMode:       cfg.JWT.DevMode,
		Leeway:        config.Duration(cfg.JWT.Leeway),
		RequireExpiry: cfg.JWT.RequireExpiry,
	}, resolver)
	if err != nil {
		c.Close()
		return nil, err
	}
	c.Verifier = v

	logger.L().Info("verifier ready",
		logger.Issuer(cfg.JWT.Issuer),
		logger.URL(cfg.JWT.JWKSURL),
		logger.Bool("dev_mode", cfg.JWT.DevMode),
		logger.String("cache", cfg.Cache.Kind),
	)
	return c, nil
}

// Handler arma el router HTTP con /metrics registrado en reg (nil => global).
func (c *Container) Handler(reg *prometheus.Registry) (http.Handler, error) {
	metricsHandler, err := httpserver.RegisterMetrics(httpserver.MetricsConfig{Registry: reg})
	if err != nil {
		return nil, err
	}
	return httpserver.NewRouter(httpserver.Deps{
		Verifier:      c.Verifier,
		Wallet:        c.Wallet,
		Metrics:       metricsHandler,
		CORSOrigins:   c.Config.Server.CORSAllowedOrigins,
		WalletLimiter: c.Limiter,
	}), nil
}

// Close libera el cache (conexión redis). Idempotente.
func (c *Container) Close() {
	if c.Cache != nil {
		_ = c.Cache.Close()
		c.Cache = nil
	}
}
