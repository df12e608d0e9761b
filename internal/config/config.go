package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config es la configuración del servicio: YAML opcional + variables de entorno.
// Las duraciones van como string ("30s", "1h") igual que en el YAML.
type Config struct {
	App struct {
		// dev | staging | prod
		Env string `yaml:"env"`
	} `yaml:"app"`

	Server struct {
		Addr               string   `yaml:"addr"`
		CORSAllowedOrigins []string `yaml:"cors_allowed_origins"`
		ReadTimeout        string   `yaml:"read_timeout"`
		WriteTimeout       string   `yaml:"write_timeout"`
	} `yaml:"server"`

	JWT struct {
		Issuer  string `yaml:"issuer"`
		JWKSURL string `yaml:"jwks_url"`
		// DevMode desactiva firma e issuer. Prohibido con app.env=prod.
		DevMode       bool   `yaml:"dev_mode"`
		SubjectClaim  string `yaml:"subject_claim"`
		WalletClaim   string `yaml:"wallet_claim"`
		Leeway        string `yaml:"leeway"`
		RequireExpiry bool   `yaml:"require_expiry"`
	} `yaml:"jwt"`

	JWKS struct {
		FetchTimeout string `yaml:"fetch_timeout"`
		// Retries: reintentos extra ante fallas transitorias. Ausente => 1; 0 los desactiva.
		Retries      *int   `yaml:"retries"`
		RetryBackoff string `yaml:"retry_backoff"`
		// KeyTTL: "0" => las claves cacheadas no expiran.
		KeyTTL string `yaml:"key_ttl"`
	} `yaml:"jwks"`

	Cache struct {
		Kind  string `yaml:"kind"` // memory | redis
		Redis struct {
			Addr     string `yaml:"addr"`
			Password string `yaml:"password"`
			DB       int    `yaml:"db"`
			Prefix   string `yaml:"prefix"`
		} `yaml:"redis"`
	} `yaml:"cache"`

	// Rate limita POST /v1/wallet/verify por subject. Comparte el backend de cache.
	Rate struct {
		Disabled     bool `yaml:"disabled"`
		WalletVerify struct {
			Limit  *int   `yaml:"limit"` // ausente => 30
			Window string `yaml:"window"`
		} `yaml:"wallet_verify"`
	} `yaml:"rate"`

	Log struct {
		Level string `yaml:"level"`
	} `yaml:"log"`
}

// Load lee path (si no es vacío), aplica defaults y pisa con el entorno.
// No valida; llamar Validate.
func Load(path string) (*Config, error) {
	var c Config
	if path != "" {
		b, err := os.ReadFile(path)
		if err != nil {
			return nil, err
		}
		if err := yaml.Unmarshal(b, &c); err != nil {
			return nil, fmt.Errorf("config: parse %s: %w", path, err)
		}
	}
	c.applyDefaults()
	c.applyEnvOverrides()
	return &c, nil
}

// Default devuelve la configuración sin YAML ni entorno.
func Default() *Config {
	var c Config
	c.applyDefaults()
	return &c
}

func (c *Config) applyDefaults() {
	if c.App.Env == "" {
		c.App.Env = "dev"
	}
	if c.Server.Addr == "" {
		c.Server.Addr = ":8080"
	}
	if c.Server.ReadTimeout == "" {
		c.Server.ReadTimeout = "10s"
	}
	if c.Server.WriteTimeout == "" {
		c.Server.WriteTimeout = "30s"
	}
	if c.JWT.SubjectClaim == "" {
		c.JWT.SubjectClaim = "usid"
	}
	if c.JWT.WalletClaim == "" {
		c.JWT.WalletClaim = "wallet"
	}
	if c.JWT.Leeway == "" {
		c.JWT.Leeway = "30s"
	}
	if c.JWKS.FetchTimeout == "" {
		c.JWKS.FetchTimeout = "5s"
	}
	if c.JWKS.Retries == nil {
		c.JWKS.Retries = intPtr(1)
	}
	if c.JWKS.RetryBackoff == "" {
		c.JWKS.RetryBackoff = "200ms"
	}
	if c.JWKS.KeyTTL == "" {
		c.JWKS.KeyTTL = "1h"
	}
	if c.Cache.Kind == "" {
		c.Cache.Kind = "memory"
	}
	if c.Cache.Redis.Addr == "" {
		c.Cache.Redis.Addr = "localhost:6379"
	}
	if c.Cache.Redis.Prefix == "" {
		c.Cache.Redis.Prefix = "usergate"
	}
	if c.Rate.WalletVerify.Limit == nil {
		c.Rate.WalletVerify.Limit = intPtr(30)
	}
	if c.Rate.WalletVerify.Window == "" {
		c.Rate.WalletVerify.Window = "1m"
	}
	if c.Log.Level == "" {
		c.Log.Level = "info"
	}
}

func intPtr(v int) *int { return &v }

func getEnvStr(key string) (string, bool) {
	v := os.Getenv(key)
	return v, v != ""
}
func getEnvInt(key string) (int, bool) {
	if s, ok := getEnvStr(key); ok {
		if i, err := strconv.Atoi(strings.TrimSpace(s)); err == nil {
			return i, true
		}
	}
	return 0, false
}
func getEnvBool(key string) (bool, bool) {
	if s, ok := getEnvStr(key); ok {
		if b, err := strconv.ParseBool(strings.TrimSpace(s)); err == nil {
			return b, true
		}
	}
	return false, false
}
func getEnvCSV(key string) ([]string, bool) {
	if s, ok := getEnvStr(key); ok {
		parts := strings.Split(s, ",")
		out := make([]string, 0, len(parts))
		for _, p := range parts {
			p = strings.TrimSpace(p)
			if p != "" {
				out = append(out, p)
			}
		}
		return out, true
	}
	return nil, false
}

// applyEnvOverrides pisa el YAML con variables de entorno. Las duraciones se
// copian tal cual; Validate las parsea.
func (c *Config) applyEnvOverrides() {
	// APP
	if v, ok := getEnvStr("APP_ENV"); ok {
		c.App.Env = strings.ToLower(strings.TrimSpace(v))
	}
	if v, ok := getEnvStr("LOG_LEVEL"); ok {
		c.Log.Level = v
	}

	// SERVER
	if v, ok := getEnvStr("SERVER_ADDR"); ok {
		c.Server.Addr = v
	}
	if v, ok := getEnvCSV("CORS_ALLOWED_ORIGINS"); ok {
		c.Server.CORSAllowedOrigins = v
	}

	// JWT
	if v, ok := getEnvStr("JWT_ISSUER"); ok {
		c.JWT.Issuer = strings.TrimSpace(v)
	}
	if v, ok := getEnvStr("JWT_JWKS_URL"); ok {
		c.JWT.JWKSURL = strings.TrimSpace(v)
	}
	if v, ok := getEnvBool("JWT_DEV_MODE"); ok {
		c.JWT.DevMode = v
	}
	if v, ok := getEnvStr("JWT_SUBJECT_CLAIM"); ok {
		c.JWT.SubjectClaim = v
	}
	if v, ok := getEnvStr("JWT_WALLET_CLAIM"); ok {
		c.JWT.WalletClaim = v
	}
	if v, ok := getEnvStr("JWT_LEEWAY"); ok {
		c.JWT.Leeway = v
	}
	if v, ok := getEnvBool("JWT_REQUIRE_EXPIRY"); ok {
		c.JWT.RequireExpiry = v
	}

	// JWKS
	if v, ok := getEnvStr("JWKS_FETCH_TIMEOUT"); ok {
		c.JWKS.FetchTimeout = v
	}
	if v, ok := getEnvInt("JWKS_RETRIES"); ok {
		c.JWKS.Retries = &v
	}
	if v, ok := getEnvStr("JWKS_RETRY_BACKOFF"); ok {
		c.JWKS.RetryBackoff = v
	}
	if v, ok := getEnvStr("JWKS_KEY_TTL"); ok {
		c.JWKS.KeyTTL = v
	}

	// CACHE
	if v, ok := getEnvStr("CACHE_KIND"); ok {
		c.Cache.Kind = strings.ToLower(strings.TrimSpace(v))
	}
	if v, ok := getEnvStr("REDIS_ADDR"); ok {
		c.Cache.Redis.Addr = v
	}
	if v, ok := getEnvStr("REDIS_PASSWORD"); ok {
		c.Cache.Redis.Password = v
	}
	if v, ok := getEnvInt("REDIS_DB"); ok {
		c.Cache.Redis.DB = v
	}
	if v, ok := getEnvStr("REDIS_PREFIX"); ok {
		c.Cache.Redis.Prefix = v
	}

	// RATE
	if v, ok := getEnvBool("RATE_DISABLED"); ok {
		c.Rate.Disabled = v
	}
	if v, ok := getEnvInt("RATE_WALLET_VERIFY_LIMIT"); ok {
		c.Rate.WalletVerify.Limit = &v
	}
	if v, ok := getEnvStr("RATE_WALLET_VERIFY_WINDOW"); ok {
		c.Rate.WalletVerify.Window = v
	}
}

// Validate revisa formato y combinaciones peligrosas. La completitud de la
// config de auth (issuer, jwks_url) la exigen los constructores de jwt.
func (c *Config) Validate() error {
	var errs []error

	for name, v := range map[string]string{
		"server.read_timeout":       c.Server.ReadTimeout,
		"server.write_timeout":      c.Server.WriteTimeout,
		"jwt.leeway":                c.JWT.Leeway,
		"jwks.fetch_timeout":        c.JWKS.FetchTimeout,
		"jwks.retry_backoff":        c.JWKS.RetryBackoff,
		"jwks.key_ttl":              c.JWKS.KeyTTL,
		"rate.wallet_verify.window": c.Rate.WalletVerify.Window,
	} {
		d, err := time.ParseDuration(strings.TrimSpace(v))
		if err != nil {
			errs = append(errs, fmt.Errorf("%s: invalid duration %q", name, v))
			continue
		}
		if d < 0 {
			errs = append(errs, fmt.Errorf("%s: must not be negative", name))
		}
	}
	if c.JWKS.Retries != nil && *c.JWKS.Retries < 0 {
		errs = append(errs, errors.New("jwks.retries: must be >= 0"))
	}
	if !c.Rate.Disabled {
		if c.Rate.WalletVerify.Limit == nil || *c.Rate.WalletVerify.Limit <= 0 {
			errs = append(errs, errors.New("rate.wallet_verify.limit: must be > 0"))
		}
		if w, err := time.ParseDuration(strings.TrimSpace(c.Rate.WalletVerify.Window)); err == nil && w == 0 {
			errs = append(errs, errors.New("rate.wallet_verify.window: must be > 0"))
		}
	}
	switch c.Cache.Kind {
	case "memory", "redis":
	default:
		errs = append(errs, fmt.Errorf("cache.kind: unknown %q (memory|redis)", c.Cache.Kind))
	}
	if c.JWT.DevMode && c.IsProd() {
		errs = append(errs, errors.New("jwt.dev_mode: not allowed with app.env=prod"))
	}
	return errors.Join(errs...)
}

// IsProd indica app.env=prod.
func (c *Config) IsProd() bool { return strings.EqualFold(c.App.Env, "prod") }

// Int desreferencia un entero opcional ya defaulteado; nil => 0.
func Int(p *int) int {
	if p == nil {
		return 0
	}
	return *p
}

// Duration parsea una duración ya validada; si no parsea devuelve 0.
func Duration(s string) time.Duration {
	d, _ := time.ParseDuration(strings.TrimSpace(s))
	return d
}
