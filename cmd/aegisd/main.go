package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"aegisd/internal/config"
	"aegisd/internal/events"
	"aegisd/internal/httpapi"
	"aegisd/internal/supervisor"
)

func main() {
	if err := buildRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func buildRootCmd() *cobra.Command {
	var (
		cfgPath  string
		addr     string
		logLevel string
		noBoot   bool
	)

	root := &cobra.Command{
		Use:           "aegisd",
		Short:         "Local resource supervisor for edge AI appliances",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVarP(&cfgPath, "config", "c", envStr("AEGISD_CONFIG", "aegisd.yaml"), "Path to the config file (.yaml, .json or .toml)")
	root.PersistentFlags().StringVar(&logLevel, "log-level", envStr("AEGISD_LOG_LEVEL", "info"), "Log level: debug|info|warn|error")

	serve := &cobra.Command{
		Use:   "serve",
		Short: "Boot the managed services and serve the supervisor API",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(cfgPath, addr, logLevel, noBoot)
		},
	}
	serve.Flags().StringVar(&addr, "addr", envStr("AEGISD_ADDR", ""), "HTTP listen address, e.g. :9200 (overrides config)")
	serve.Flags().BoolVar(&noBoot, "no-boot", false, "Skip the boot sequence; services are probed but not started")

	check := &cobra.Command{
		Use:   "check-config",
		Short: "Load and validate the config file, then exit",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(cfgPath)
			if err != nil {
				return err
			}
			if err := config.Validate(cfg); err != nil {
				return err
			}
			fmt.Printf("ok: %d models, %d services, %d edges\n", len(cfg.Models), len(cfg.Services), len(cfg.Edges))
			return nil
		},
	}

	root.AddCommand(serve, check)
	return root
}

func runServe(cfgPath, addr, logLevel string, noBoot bool) error {
	logger := newLogger(logLevel)

	cfg, err := config.Load(cfgPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	if err := config.Validate(cfg); err != nil {
		return fmt.Errorf("validate config: %w", err)
	}
	if addr != "" {
		cfg.Addr = addr
	}
	if cfg.Addr == "" {
		cfg.Addr = ":9200"
	}

	hub := httpapi.NewHub()
	sup, err := supervisor.New(cfg, supervisor.Options{
		Logger:     logger,
		ExtraSinks: []events.Publisher{hub},
	})
	if err != nil {
		return fmt.Errorf("assemble supervisor: %w", err)
	}
	defer sup.Close()

	baseCtx, cancelBase := context.WithCancel(context.Background())
	defer cancelBase()
	httpapi.SetBaseContext(baseCtx)
	httpapi.SetLogger(logger)
	httpapi.SetCORSOptions(cfg.CORS.Enabled, cfg.CORS.AllowedOrigins, cfg.CORS.AllowedMethods, cfg.CORS.AllowedHeaders)

	srv := &http.Server{
		Addr:              cfg.Addr,
		Handler:           httpapi.NewMux(sup, hub),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info().Str("addr", cfg.Addr).Int("services", len(cfg.Services)).Msg("aegisd listening")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	sup.Start()
	if !noBoot {
		// Boot in the background so /healthz answers while stages run;
		// /readyz flips once the report completes.
		go func() {
			if _, err := sup.Boot(baseCtx); err != nil {
				logger.Error().Err(err).Msg("boot aborted")
			}
		}()
	}

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	select {
	case sig := <-stop:
		logger.Info().Str("signal", sig.String()).Msg("shutting down")
	case err := <-errCh:
		return fmt.Errorf("server error: %w", err)
	}

	// Stop accepting requests, then cancel in-flight work and stop the
	// managed services in reverse dependency order.
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Warn().Err(err).Msg("graceful shutdown")
	}
	cancelBase()
	sup.Shutdown(shutdownCtx)
	return nil
}

func newLogger(level string) zerolog.Logger {
	lvl, err := zerolog.ParseLevel(level)
	if err != nil || lvl == zerolog.NoLevel {
		lvl = zerolog.InfoLevel
	}
	return zerolog.New(os.Stderr).Level(lvl).With().Timestamp().Logger()
}

func envStr(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}
