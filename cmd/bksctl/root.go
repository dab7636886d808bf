package main

import (
	"context"
	"log/slog"
	"os"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/spf13/cobra"

	"github.com/prajwal-br31/bks-backend/internal/app"
	"github.com/prajwal-br31/bks-backend/internal/platform/db"
)

type rootOptions struct {
	envFile string
	debug   bool
}

func newRootCmd() *cobra.Command {
	opts := &rootOptions{}
	cmd := &cobra.Command{
		Use:           "bksctl",
		Short:         "Operate the bookkeeping backend",
		SilenceUsage:  true,
		SilenceErrors: false,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			level := slog.LevelInfo
			if opts.debug {
				level = slog.LevelDebug
			}
			slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})))
		},
	}
	cmd.PersistentFlags().StringVar(&opts.envFile, "env", ".env", "env file loaded before the process environment is read")
	cmd.PersistentFlags().BoolVar(&opts.debug, "debug", false, "enable debug logging")

	cmd.AddCommand(newMigrateCmd(opts), newSeedCmd(opts), newIntegrityCmd(opts), newWarmupCmd(opts))
	return cmd
}

func (o *rootOptions) config() (*app.Config, error) {
	return app.LoadConfig(o.envFile)
}

func (o *rootOptions) pool(ctx context.Context) (*app.Config, *pgxpool.Pool, error) {
	cfg, err := o.config()
	if err != nil {
		return nil, nil, err
	}
	pool, err := db.New(ctx, cfg.PGDSN, db.Options{MaxConns: 4})
	if err != nil {
		return nil, nil, err
	}
	return cfg, pool, nil
}
