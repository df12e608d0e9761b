// Package logger expone un logger Zap único para todo el servicio, con scoping por contexto.
//
// # Decisiones
//
//   - Singleton: se inicializa una vez con Init() desde cmd/usergate.
//   - Scoping por request: el middleware de logging inyecta un logger con request_id,
//     method y path; el resto del código lo recupera con From(ctx).
//   - Entornos: APP_ENV=prod produce JSON; cualquier otro valor, consola con colores.
//   - Nunca se loguean tokens ni firmas: sólo kid, issuer, kind de error y subject.
//
// # Uso
//
//	logger.Init(logger.Config{Env: cfg.App.Env, Level: cfg.Log.Level})
//	defer logger.Sync()
//
//	log := logger.From(ctx)
//	log.Warn("token rejected", logger.Kind(kind), logger.KeyID(kid))
package logger
