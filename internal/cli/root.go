// Package cli implements dewbox-admin, the operator tool for the contribution ledger.
package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/dewbox/contribution-service/internal/app"
	"github.com/dewbox/contribution-service/internal/config"
	"github.com/dewbox/contribution-service/internal/store"
	"github.com/dewbox/contribution-service/pkg/rabbitmq"
	"github.com/spf13/cobra"
)

type rootOptions struct {
	envPath string
}

// NewRootCommand wires every dewbox-admin subcommand.
func NewRootCommand(version string) *cobra.Command {
	opts := &rootOptions{}
	root := &cobra.Command{
		Use:           "dewbox-admin",
		Short:         "Operate the DewBox contribution ledger",
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVar(&opts.envPath, "env-path", ".", "directory holding an optional .env file")

	root.AddCommand(newMigrateCommand(opts))
	root.AddCommand(newClassifyCommand(opts))
	root.AddCommand(newApplyInterestCommand(opts))
	root.AddCommand(newSummaryCommand(opts))
	return root
}

func (o *rootOptions) loadConfig() (config.Config, error) {
	cfg, err := config.LoadConfig(o.envPath)
	if err != nil {
		return config.Config{}, fmt.Errorf("failed to load configuration: %w", err)
	}
	return cfg, nil
}

// session is a database-backed service for commands that touch the ledger.
type session struct {
	service *app.Service
	close   func()
}

func (o *rootOptions) openSession(ctx context.Context, logger *slog.Logger) (*session, error) {
	cfg, err := o.loadConfig()
	if err != nil {
		return nil, err
	}
	if cfg.DatabaseURL == "" {
		return nil, fmt.Errorf("DATABASE_URL is required")
	}
	serviceOpts, err := app.OptionsFromConfig(cfg)
	if err != nil {
		return nil, err
	}

	pool, err := store.NewPool(ctx, cfg.DatabaseURL)
	if err != nil {
		return nil, err
	}

	var publisher rabbitmq.Publisher = &rabbitmq.EventProducerFallback{}
	if cfg.RabbitMQURL != "" {
		if producer, err := rabbitmq.NewEventProducer(cfg.RabbitMQURL); err == nil {
			publisher = producer
		} else {
			logger.Warn("failed to connect to RabbitMQ, events will not be published", "error", err)
		}
	}

	repo := store.NewPostgresRepository(pool, cfg.LockTimeout())
	return &session{
		service: app.NewService(repo, nil, publisher, logger, serviceOpts),
		close: func() {
			publisher.Close()
			pool.Close()
		},
	}, nil
}

func commandLogger(cmd *cobra.Command) *slog.Logger {
	return slog.New(slog.NewTextHandler(cmd.ErrOrStderr(), &slog.HandlerOptions{Level: slog.LevelInfo}))
}

func writeJSON(w io.Writer, v interface{}) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// Execute runs the root command and exits non-zero on failure.
func Execute(version string) {
	if err := NewRootCommand(version).Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
