package cmd

import (
	"context"
	"errors"
	"fmt"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/solatis/cibrule/internal/core/api"
	"github.com/solatis/cibrule/internal/core/auth"
	"github.com/solatis/cibrule/internal/core/config"
	"github.com/solatis/cibrule/internal/core/db"
	"github.com/solatis/cibrule/internal/core/metrics"
	"github.com/solatis/cibrule/internal/core/server"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the gRPC rule service",
	Long: `Start the gRPC rule service. With HMAC secrets configured in the environment,
every call needs an x-api-key issued by 'cibrule apikey create'. With a journal
database configured, every compiled rule is recorded.`,
	Args: cobra.NoArgs,
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)
	serveCmd.Flags().String("host", "0.0.0.0", "gRPC server host")
	serveCmd.Flags().Int("port", 50061, "gRPC server port")
	serveCmd.Flags().String("metrics-addr", ":9464", "Prometheus metrics listen address (empty disables)")
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, logger, err := setup(cmd)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	secrets, err := config.HMACSecrets()
	if err != nil {
		return fmt.Errorf("failed to load HMAC secrets: %w", err)
	}
	if len(secrets) > 0 && cfg.Journal.DBURL == "" {
		return fmt.Errorf("HMAC secrets configured but no --db-url to look up API keys")
	}

	var (
		journal       api.Recorder
		authenticator *auth.Authenticator
	)
	if cfg.Journal.DBURL != "" {
		database, queries, err := openDatabase(ctx, cfg, true)
		if err != nil {
			return err
		}
		defer database.Close()
		journal = db.NewJournal(queries)
		if len(secrets) > 0 {
			authenticator = auth.NewAuthenticator(secrets, queries)
		}
	}

	m := metrics.New()
	service, err := api.NewRuleService(logger, m, journal)
	if err != nil {
		return fmt.Errorf("failed to create service: %w", err)
	}

	grpcServer, err := server.NewGRPCServer(cfg.Service, service, authenticator, logger)
	if err != nil {
		return fmt.Errorf("failed to create server: %w", err)
	}

	errChan := make(chan error, 2)
	if cfg.Service.MetricsAddr != "" {
		go func() {
			if err := m.Serve(ctx, cfg.Service.MetricsAddr, logger); err != nil {
				errChan <- fmt.Errorf("metrics endpoint: %w", err)
			}
		}()
	}

	logger.Info("starting rule service",
		"version", Version,
		"addr", fmt.Sprintf("%s:%d", cfg.Service.Host, cfg.Service.Port),
		"journal", journal != nil,
		"auth", authenticator != nil)
	go func() {
		errChan <- grpcServer.Start(ctx)
	}()

	select {
	case err := <-errChan:
		stop()
		if errors.Is(err, context.Canceled) {
			return nil
		}
		return err
	case <-ctx.Done():
		logger.Info("shutting down gracefully")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		return grpcServer.Shutdown(shutdownCtx)
	}
}
