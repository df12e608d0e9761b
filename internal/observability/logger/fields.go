package logger

import (
	"time"

	"go.uber.org/zap"
)

// ---- HTTP ----

func RequestID(v string) zap.Field { return zap.String("request_id", v) }

func Method(v string) zap.Field { return zap.String("method", v) }

func Path(v string) zap.Field { return zap.String("path", v) }

func Status(v int) zap.Field { return zap.Int("status", v) }

func DurationMs(v time.Duration) zap.Field { return zap.Int64("duration_ms", v.Milliseconds()) }

func ClientIP(v string) zap.Field { return zap.String("client_ip", v) }

// ---- Identidad / verificación ----

// UserID es el subject verificado (claim usid).
func UserID(v string) zap.Field { return zap.String("user_id", v) }

// Wallet es una dirección 0x; es pública, se puede loguear.
func Wallet(v string) zap.Field { return zap.String("wallet", v) }

// KeyID es el kid del header del token.
func KeyID(v string) zap.Field { return zap.String("kid", v) }

// Issuer es el iss esperado o recibido.
func Issuer(v string) zap.Field { return zap.String("issuer", v) }

// Kind es la etiqueta estable del error de verificación (ver jwt.Kind).
func Kind(v string) zap.Field { return zap.String("kind", v) }

// URL del endpoint de key set.
func URL(v string) zap.Field { return zap.String("url", v) }

// Attempt numera reintentos (1 = primer intento).
func Attempt(v int) zap.Field { return zap.Int("attempt", v) }

// ---- Sistema ----

func Component(v string) zap.Field { return zap.String("component", v) }

func Op(v string) zap.Field { return zap.String("op", v) }

func Layer(v string) zap.Field { return zap.String("layer", v) }

func Err(err error) zap.Field { return zap.Error(err) }

func Count(v int) zap.Field { return zap.Int("count", v) }

func String(key, v string) zap.Field { return zap.String(key, v) }

func Int(key string, v int) zap.Field { return zap.Int(key, v) }

func Bool(key string, v bool) zap.Field { return zap.Bool(key, v) }

func Any(key string, v any) zap.Field { return zap.Any(key, v) }
