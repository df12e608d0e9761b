package jwt

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/cenkalti/backoff/v5"
	"golang.org/x/sync/singleflight"

	"github.com/slopeoasis/usergate/internal/metrics"
	"github.com/slopeoasis/usergate/internal/observability/logger"
)

const (
	DefaultFetchTimeout = 5 * time.Second
	DefaultRetryBackoff = 200 * time.Millisecond
	DefaultKeyTTL       = time.Hour

	maxJWKSBytes = 1 << 20
)

// KeyResolver entrega la clave de firma para un kid.
type KeyResolver interface {
	Resolve(ctx context.Context, kid string) (SigningKey, error)
}

// ResolverConfig configura la descarga del key set.
type ResolverConfig struct {
	URL          string
	HTTPClient   *http.Client
	FetchTimeout time.Duration // por intento
	Retries      int           // reintentos adicionales ante fallas transitorias
	RetryBackoff time.Duration // intervalo inicial del backoff exponencial
}

// Resolver resuelve kid -> SigningKey con cache-aside sobre KeyCache.
// Misses concurrentes del mismo kid comparten una única descarga.
type Resolver struct {
	cfg   ResolverConfig
	http  *http.Client
	cache KeyCache
	sf    singleflight.Group
}

// NewResolver valida la configuración. Con cache nil usa un KeyStore en memoria
// con DefaultKeyTTL.
func NewResolver(cfg ResolverConfig, cache KeyCache) (*Resolver, error) {
	u, err := url.Parse(cfg.URL)
	if cfg.URL == "" || err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return nil, fmt.Errorf("%w: jwks url must be an absolute http(s) url", ErrConfiguration)
	}
	if cfg.Retries < 0 {
		return nil, fmt.Errorf("%w: jwks retries must be >= 0", ErrConfiguration)
	}
	if cfg.FetchTimeout <= 0 {
		cfg.FetchTimeout = DefaultFetchTimeout
	}
	if cfg.RetryBackoff <= 0 {
		cfg.RetryBackoff = DefaultRetryBackoff
	}
	hc := cfg.HTTPClient
	if hc == nil {
		hc = &http.Client{}
	}
	if cache == nil {
		cache = NewKeyStore(nil, DefaultKeyTTL)
	}
	return &Resolver{cfg: cfg, http: hc, cache: cache}, nil
}

// Resolve devuelve la clave cacheada o la busca en el key set.
// Si ctx se cancela mientras espera, devuelve ErrKeyFetchFailed; la descarga
// compartida sigue para los demás que esperan.
func (r *Resolver) Resolve(ctx context.Context, kid string) (SigningKey, error) {
	if key, ok := r.cache.Get(ctx, kid); ok {
		metrics.RecordKeyCacheLookup(true)
		return key, nil
	}
	metrics.RecordKeyCacheLookup(false)

	fetchCtx := context.WithoutCancel(ctx)
	ch := r.sf.DoChan(kid, func() (any, error) {
		return r.fetch(fetchCtx, kid)
	})

	select {
	case <-ctx.Done():
		return SigningKey{}, fmt.Errorf("%w: %w", ErrKeyFetchFailed, ctx.Err())
	case res := <-ch:
		if res.Err != nil {
			return SigningKey{}, res.Err
		}
		return res.Val.(SigningKey), nil
	}
}

// fetch baja el documento, cachea todas las claves RSA válidas y devuelve la pedida.
func (r *Resolver) fetch(ctx context.Context, kid string) (SigningKey, error) {
	log := logger.From(ctx).With(logger.Component("jwks"), logger.URL(r.cfg.URL))

	start := time.Now()
	doc, err := r.download(ctx)
	metrics.RecordJWKSFetch(err, time.Since(start))
	if err != nil {
		log.Warn("jwks fetch failed", logger.KeyID(kid), logger.Err(err))
		return SigningKey{}, fmt.Errorf("%w: %w", ErrKeyFetchFailed, err)
	}

	var (
		found    SigningKey
		matched  bool
		matchErr error
		cached   int
	)
	for _, entry := range doc.Keys {
		key, kerr := entry.signingKey()
		if entry.Kid == kid && !matched && matchErr == nil {
			if kerr != nil {
				matchErr = kerr
			} else {
				found, matched = key, true
			}
		}
		if kerr != nil {
			log.Debug("jwks entry skipped", logger.KeyID(entry.Kid), logger.Err(kerr))
			continue
		}
		r.cache.Put(ctx, key)
		cached++
	}
	log.Debug("jwks refreshed", logger.KeyID(kid), logger.Count(cached))

	switch {
	case matched:
		return found, nil
	case matchErr != nil:
		return SigningKey{}, matchErr
	default:
		return SigningKey{}, fmt.Errorf("%w: %q not in key set (%d keys)", ErrUnknownKeyID, kid, len(doc.Keys))
	}
}

func (r *Resolver) download(ctx context.Context) (*jwks, error) {
	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = r.cfg.RetryBackoff

	attempt := 0
	return backoff.Retry(ctx, func() (*jwks, error) {
		attempt++
		doc, err := r.downloadOnce(ctx)
		if err != nil {
			logger.From(ctx).Debug("jwks attempt failed",
				logger.URL(r.cfg.URL), logger.Attempt(attempt), logger.Err(err))
		}
		return doc, err
	}, backoff.WithBackOff(bo), backoff.WithMaxTries(uint(r.cfg.Retries+1)))
}

var errTransientStatus = errors.New("jwks endpoint transient status")

// downloadOnce hace un intento. 5xx, 429 y errores de transporte son
// reintentables; el resto es permanente.
func (r *Resolver) downloadOnce(ctx context.Context) (*jwks, error) {
	actx, cancel := context.WithTimeout(ctx, r.cfg.FetchTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(actx, http.MethodGet, r.cfg.URL, nil)
	if err != nil {
		return nil, backoff.Permanent(err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := r.http.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode >= 500 || resp.StatusCode == http.StatusTooManyRequests:
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil, fmt.Errorf("%w: %d", errTransientStatus, resp.StatusCode)
	case resp.StatusCode < 200 || resp.StatusCode > 299:
		return nil, backoff.Permanent(fmt.Errorf("jwks endpoint status %d", resp.StatusCode))
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxJWKSBytes))
	if err != nil {
		return nil, err
	}
	doc, err := parseJWKS(body)
	if err != nil {
		return nil, backoff.Permanent(err)
	}
	return doc, nil
}
