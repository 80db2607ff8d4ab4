package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/tournevent/integrations/internal/server"
	"github.com/tournevent/integrations/internal/store"
	"github.com/tournevent/integrations/pkg/secret"
	"go.uber.org/zap"
)

var version = "0.0.1"

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(),
		syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:     "integrations",
	Short:   "Tournevent integrations - carriers, tax engines and shipping rules",
	Version: version,
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP server",
	RunE:  runServe,
}

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Create or update the database schema",
	RunE:  runMigrate,
}

var keygenCmd = &cobra.Command{
	Use:   "keygen",
	Short: "Generate a master key, a webhook secret and an API key",
	RunE:  runKeygen,
}

var apiKeyPrefix string

func init() {
	keygenCmd.Flags().StringVar(&apiKeyPrefix, "prefix", "tv", "API key prefix")
	rootCmd.AddCommand(serveCmd, migrateCmd, keygenCmd)
}

func runServe(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	logger, err := initLogger(cfg)
	if err != nil {
		return err
	}
	defer logger.Sync()

	tracer, tracerShutdown, err := initTracer(ctx, cfg)
	if err != nil {
		logger.Warn("Failed to initialize tracer", zap.Error(err))
	} else {
		defer tracerShutdown(context.WithoutCancel(ctx))
	}

	db, err := store.Open(cfg.DatabaseDriver, cfg.DatabaseURL)
	if err != nil {
		return err
	}
	if err := store.Migrate(db); err != nil {
		return err
	}

	cipher, err := secret.NewCipher(cfg.EncryptionKey, logger)
	if err != nil {
		return err
	}

	auditLog, closeSinks := initAudit(db, cfg, logger)
	defer closeSinks()
	defer auditLog.Close()

	idem, closeIdem, err := initIdempotency(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer closeIdem()

	app := initApp(ctx, db, cipher, auditLog, idem, tracer, cfg, logger)

	logger.Info("Starting Tournevent integrations",
		zap.Int("port", cfg.Port),
		zap.String("version", cfg.Version),
		zap.Strings("carriers", app.carriers.Names()),
		zap.Strings("tax_providers", app.taxes.Names()),
	)

	srv := server.New(server.Config{Port: cfg.Port}, app.deps, logger)
	if err := srv.Run(ctx); err != nil {
		return fmt.Errorf("server error: %w", err)
	}
	return nil
}

func runMigrate(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	logger, err := initLogger(cfg)
	if err != nil {
		return err
	}
	defer logger.Sync()

	db, err := store.Open(cfg.DatabaseDriver, cfg.DatabaseURL)
	if err != nil {
		return err
	}
	if err := store.Migrate(db); err != nil {
		return err
	}
	logger.Info("Database schema is up to date", zap.String("driver", cfg.DatabaseDriver))
	return nil
}

func runKeygen(cmd *cobra.Command, args []string) error {
	masterKey, err := secret.GenerateMasterKey()
	if err != nil {
		return err
	}
	webhookSecret, err := secret.GenerateWebhookSecret()
	if err != nil {
		return err
	}
	apiKey, err := secret.GenerateAPIKey(apiKeyPrefix)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "ENCRYPTION_KEY=%s\n", masterKey)
	fmt.Fprintf(out, "WEBHOOK_SECRET=%s\n", webhookSecret)
	fmt.Fprintf(out, "API_KEY=%s\n", apiKey)
	return nil
}
