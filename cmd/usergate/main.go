package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/slopeoasis/usergate/internal/app"
	"github.com/slopeoasis/usergate/internal/config"
	httpserver "github.com/slopeoasis/usergate/internal/http"
	"github.com/slopeoasis/usergate/internal/jwt"
	"github.com/slopeoasis/usergate/internal/observability/logger"
)

var version = "dev"

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var (
		cfgPath string
		envFile string
	)

	root := &cobra.Command{
		Use:           "usergate",
		Short:         "Verificación de bearer tokens (JWKS/RS256) y pruebas de wallet",
		SilenceUsage:  true,
		SilenceErrors: false,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			// .env es opcional; el entorno real tiene prioridad.
			if err := godotenv.Load(envFile); err != nil && !os.IsNotExist(err) {
				return fmt.Errorf("load %s: %w", envFile, err)
			}
			return nil
		},
	}
	root.PersistentFlags().StringVar(&cfgPath, "config", os.Getenv("CONFIG_PATH"), "ruta al config.yaml (opcional, env CONFIG_PATH)")
	root.PersistentFlags().StringVar(&envFile, "env-file", ".env", "archivo .env a cargar si existe")

	loadConfig := func() (*config.Config, error) {
		cfg, err := config.Load(cfgPath)
		if err != nil {
			return nil, err
		}
		logger.Init(logger.Config{
			Env:         cfg.App.Env,
			Level:       cfg.Log.Level,
			ServiceName: "usergate",
			Version:     version,
		})
		return cfg, nil
	}

	root.AddCommand(
		newServeCmd(loadConfig),
		newVerifyTokenCmd(loadConfig),
		newVerifyWalletCmd(),
	)
	return root
}

func newServeCmd(loadConfig func() (*config.Config, error)) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Levanta el servidor HTTP",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			defer func() { _ = logger.Sync() }()

			c, err := app.New(cfg)
			if err != nil {
				logger.L().Error("startup failed", logger.Err(err))
				return err
			}
			defer c.Close()

			handler, err := c.Handler(nil)
			if err != nil {
				return err
			}

			srv := httpserver.NewServer(httpserver.ServerConfig{
				Addr:         cfg.Server.Addr,
				ReadTimeout:  config.Duration(cfg.Server.ReadTimeout),
				WriteTimeout: config.Duration(cfg.Server.WriteTimeout),
			}, handler)

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return srv.Run(ctx)
		},
	}
}

func newVerifyTokenCmd(loadConfig func() (*config.Config, error)) *cobra.Command {
	var timeout time.Duration
	cmd := &cobra.Command{
		Use:   "verify-token <token>",
		Short: "Verifica un token con la config actual e imprime la identidad",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			c, err := app.New(cfg)
			if err != nil {
				return err
			}
			defer c.Close()

			ctx, cancel := context.WithTimeout(cmd.Context(), timeout)
			defer cancel()

			id, err := c.Verifier.Verify(ctx, args[0])
			if err != nil {
				return fmt.Errorf("token rejected: %s", jwt.Kind(err))
			}
			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(id)
		},
	}
	cmd.Flags().DurationVar(&timeout, "timeout", 15*time.Second, "timeout total (incluye bajar el key set)")
	return cmd
}
