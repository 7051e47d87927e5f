package main

import (
	"context"
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"gemdesk/internal/analytics"
	"gemdesk/internal/config"
	"gemdesk/internal/ingest"
	"gemdesk/internal/logging"
)

func newBrandsCommand(ctx *commandContext) *cobra.Command {
	brandsCmd := &cobra.Command{
		Use:   "brands",
		Short: "Maintain the brand directory",
	}
	brandsCmd.AddCommand(newBrandsSyncCommand(ctx))
	brandsCmd.AddCommand(newBrandsListCommand(ctx))
	return brandsCmd
}

func newBrandsSyncCommand(ctx *commandContext) *cobra.Command {
	var asJSON bool
	cmd := &cobra.Command{
		Use:   "sync",
		Short: "Add brands found on contract items to the directory",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			rt, err := ctx.openRuntime(cmd.Context())
			if err != nil {
				return err
			}
			defer rt.Close()

			result, err := analytics.SyncBrands(cmd.Context(), rt.repo)
			if err != nil {
				return fmt.Errorf("sync brands: %w", err)
			}
			if asJSON {
				return writeJSON(cmd, result)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Brands found: %d, added: %d\n", result.Found, result.Inserted)
			return nil
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "Print the result as JSON")
	return cmd
}

func newBrandsListCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "list [term]",
		Short: "List directory brands, optionally those containing term",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			rt, err := ctx.openRuntime(cmd.Context())
			if err != nil {
				return err
			}
			defer rt.Close()

			var term string
			if len(args) == 1 {
				term = args[0]
			}
			brands, err := rt.repo.ListBrands(cmd.Context(), term)
			if err != nil {
				return fmt.Errorf("list brands: %w", err)
			}
			out := cmd.OutOrStdout()
			if len(brands) == 0 {
				fmt.Fprintln(out, "No brands")
				return nil
			}
			rows := make([][]string, 0, len(brands))
			for _, b := range brands {
				rows = append(rows, []string{b.Name, strconv.Itoa(b.ProductCount)})
			}
			fmt.Fprintln(out, renderTable([]string{"Brand", "Products"}, rows, []columnAlignment{alignLeft, alignRight}))
			return nil
		},
	}
}

// refreshBrands keeps the directory current after a contracts run changed
// the catalog. A failure is logged, not returned: the import itself succeeded.
func (r *runtime) refreshBrands(ctx context.Context, p *ingest.Pipeline, outcome ingest.Outcome) {
	if p.Name() != config.PipelineContracts || (outcome != ingest.OutcomeProcessed && outcome != ingest.OutcomeRetried) {
		return
	}
	if _, err := analytics.SyncBrands(ctx, r.repo); err != nil {
		logging.WarnWithContext(r.logger, "brand sync failed", "brand_sync_failed",
			logging.String(logging.FieldErrorHint, "run gemdesk brands sync"),
			logging.Error(err),
		)
	}
}
