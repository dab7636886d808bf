package main

import (
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/hibiken/asynq"
	"github.com/spf13/cobra"

	"github.com/prajwal-br31/bks-backend/internal/accounting/reports"
	"github.com/prajwal-br31/bks-backend/jobs"
)

// errIntegrity makes the process exit non-zero when the ledger is corrupt.
var errIntegrity = errors.New("ledger integrity check failed")

func newIntegrityCmd(opts *rootOptions) *cobra.Command {
	var (
		company string
		asOf    string
		enqueue bool
	)
	cmd := &cobra.Command{
		Use:   "integrity",
		Short: "Check that every posted entry balances and the trial balance ties",
		RunE: func(cmd *cobra.Command, args []string) error {
			payload := jobs.GLIntegrityPayload{AsOf: asOf}
			if company != "" {
				id, err := uuid.Parse(company)
				if err != nil {
					return fmt.Errorf("--company: %w", err)
				}
				payload.CompanyID = &id
			}
			day := time.Now().UTC()
			if asOf != "" {
				d, err := time.Parse(time.DateOnly, asOf)
				if err != nil {
					return fmt.Errorf("--as-of: %w", err)
				}
				day = d
			}

			ctx := cmd.Context()
			if enqueue {
				cfg, err := opts.config()
				if err != nil {
					return err
				}
				client := jobs.NewClient(asynq.RedisClientOpt{Addr: cfg.RedisAddr})
				defer func() { _ = client.Close() }()
				info, err := client.EnqueueGLIntegrity(ctx, payload)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "enqueued %s (%s)\n", info.ID, info.Queue)
				return nil
			}

			_, pool, err := opts.pool(ctx)
			if err != nil {
				return err
			}
			defer pool.Close()
			job := jobs.NewGLIntegrityJob(reports.NewService(reports.NewRepository(pool), nil, nil), nil, nil)
			failed, err := job.Run(ctx, payload.CompanyID, day)
			if err != nil {
				return err
			}
			return printIntegrity(cmd, failed)
		},
	}
	cmd.Flags().StringVar(&company, "company", "", "limit the check to one company (UUID)")
	cmd.Flags().StringVar(&asOf, "as-of", "", "check entries dated on or before YYYY-MM-DD (default today)")
	cmd.Flags().BoolVar(&enqueue, "enqueue", false, "enqueue the check on the worker instead of running it here")
	return cmd
}

func printIntegrity(cmd *cobra.Command, failed []reports.IntegrityReport) error {
	out := cmd.OutOrStdout()
	if len(failed) == 0 {
		fmt.Fprintln(out, "ledger OK")
		return nil
	}
	for _, r := range failed {
		fmt.Fprintf(out, "company %s: debit %s credit %s\n", r.CompanyID, r.TotalDebit.StringFixed(2), r.TotalCredit.StringFixed(2))
		for _, e := range r.Unbalanced {
			fmt.Fprintf(out, "  entry #%d %s dated %s: debit %s credit %s\n",
				e.Number, e.EntryID, e.Date.Format(time.DateOnly), e.Debit.StringFixed(2), e.Credit.StringFixed(2))
		}
	}
	return errIntegrity
}
