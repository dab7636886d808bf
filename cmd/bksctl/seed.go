package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"sort"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/prajwal-br31/bks-backend/internal/accounting/accounts"
	"github.com/prajwal-br31/bks-backend/internal/accounting/mappings"
)

type chartSeeder interface {
	Seed(ctx context.Context, companyID uuid.UUID, chart accounts.Chart) (map[string]accounts.Account, error)
}

type roleAssigner interface {
	Assign(ctx context.Context, companyID uuid.UUID, role mappings.Role, accountID uuid.UUID) (mappings.Mapping, error)
}

func newSeedCmd(opts *rootOptions) *cobra.Command {
	var (
		company string
		file    string
	)
	cmd := &cobra.Command{
		Use:     "seed",
		Short:   "Load a chart of accounts and its role mappings for a company",
		Example: `  bksctl seed --company 7b0c… --file configs/chart.sample.yaml`,
		RunE: func(cmd *cobra.Command, args []string) error {
			companyID, err := uuid.Parse(company)
			if err != nil {
				return fmt.Errorf("--company: %w", err)
			}
			f, err := os.Open(file)
			if err != nil {
				return err
			}
			defer f.Close()
			chart, err := accounts.LoadChart(f)
			if err != nil {
				return err
			}

			ctx := cmd.Context()
			_, pool, err := opts.pool(ctx)
			if err != nil {
				return err
			}
			defer pool.Close()

			accountsRepo := accounts.NewRepository(pool)
			accountsSvc := accounts.NewService(accountsRepo, nil)
			mappingsSvc := mappings.NewService(mappings.NewRepository(pool), accountsSvc, nil)
			return applyChart(ctx, cmd.OutOrStdout(), accountsSvc, mappingsSvc, companyID, chart)
		},
	}
	cmd.Flags().StringVar(&company, "company", "", "company id (UUID)")
	cmd.Flags().StringVar(&file, "file", "configs/chart.sample.yaml", "chart YAML file")
	_ = cmd.MarkFlagRequired("company")
	return cmd
}

// applyChart seeds the accounts, then maps roles in a stable order.
func applyChart(ctx context.Context, out io.Writer, seeder chartSeeder, assigner roleAssigner, companyID uuid.UUID, chart accounts.Chart) error {
	byCode, err := seeder.Seed(ctx, companyID, chart)
	if err != nil {
		return err
	}
	fmt.Fprintf(out, "%d accounts in chart\n", len(byCode))

	roles := make([]string, 0, len(chart.Roles))
	for role := range chart.Roles {
		roles = append(roles, role)
	}
	sort.Strings(roles)
	for _, name := range roles {
		role, err := mappings.ParseRole(name)
		if err != nil {
			return err
		}
		code := chart.Roles[name]
		if _, err := assigner.Assign(ctx, companyID, role, byCode[code].ID); err != nil {
			return fmt.Errorf("map %s to %s: %w", role, code, err)
		}
		fmt.Fprintf(out, "%s -> %s\n", role, code)
	}
	return nil
}
