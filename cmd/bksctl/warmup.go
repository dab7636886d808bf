package main

import (
	"context"
	"fmt"
	"io"

	"github.com/google/uuid"
	"github.com/hibiken/asynq"
	"github.com/spf13/cobra"

	"github.com/prajwal-br31/bks-backend/jobs"
)

type warmupEnqueuer interface {
	EnqueueReportWarmup(ctx context.Context, payload jobs.ReportWarmupPayload) (*asynq.TaskInfo, error)
}

func newWarmupCmd(opts *rootOptions) *cobra.Command {
	var company string
	cmd := &cobra.Command{
		Use:   "warmup",
		Short: "Ask the worker to rebuild the cached dashboard reports",
		Long: `Enqueues a report warmup task. Run it after a bulk import or a seed so
the next dashboard request is served from the cache.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := opts.config()
			if err != nil {
				return err
			}
			client := jobs.NewClient(asynq.RedisClientOpt{Addr: cfg.RedisAddr})
			defer func() { _ = client.Close() }()
			return enqueueWarmup(cmd.Context(), cmd.OutOrStdout(), client, company)
		},
	}
	cmd.Flags().StringVar(&company, "company", "", "warm one company only (UUID); default all companies")
	return cmd
}

func enqueueWarmup(ctx context.Context, out io.Writer, q warmupEnqueuer, company string) error {
	var payload jobs.ReportWarmupPayload
	if company != "" {
		id, err := uuid.Parse(company)
		if err != nil {
			return fmt.Errorf("--company: %w", err)
		}
		payload.CompanyID = &id
	}
	info, err := q.EnqueueReportWarmup(ctx, payload)
	if err != nil {
		return err
	}
	fmt.Fprintf(out, "enqueued %s (%s)\n", info.ID, info.Queue)
	return nil
}
