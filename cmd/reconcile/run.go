package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/provansdecor/catalog/internal/app"
	"github.com/provansdecor/catalog/internal/usecase"
)

func runCmd(c *cli) *cobra.Command {
	var (
		flags  catalogFlags
		apply  bool
		remove bool
	)

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Match photos, fill categories and report duplicates",
		Long: `Run one reconciliation. Without --apply nothing is written and the
summary shows what would change. With --apply a timestamped backup is written
before the catalog is updated. --delete additionally removes redundant
duplicates and only takes effect together with --apply.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := flags.apply(cmd, c.cfg); err != nil {
				return err
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			summary, err := c.reconcile(ctx, usecase.RunOptions{Apply: apply, Delete: remove})
			if err != nil {
				return err
			}
			return printSummary(cmd.OutOrStdout(), summary, c.jsonOutput)
		},
	}

	flags.register(cmd)
	cmd.Flags().BoolVar(&apply, "apply", false, "write changes (a backup is taken first)")
	cmd.Flags().BoolVar(&remove, "delete", false, "remove redundant duplicates (requires --apply)")

	return cmd
}

func dedupeCmd(c *cli) *cobra.Command {
	var flags catalogFlags

	cmd := &cobra.Command{
		Use:   "dedupe",
		Short: "List duplicate groups and their suggested canonical member",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := flags.apply(cmd, c.cfg); err != nil {
				return err
			}
			summary, err := c.reconcile(cmd.Context(), usecase.RunOptions{})
			if err != nil {
				return err
			}
			return printGroups(cmd.OutOrStdout(), summary.Groups, c.jsonOutput)
		},
	}

	flags.register(cmd)
	return cmd
}

// reconcile opens the configured catalog and runs the driver once
func (c *cli) reconcile(ctx context.Context, opts usecase.RunOptions) (*usecase.Summary, error) {
	engine, err := app.NewEngine(c.cfg, c.logger)
	if err != nil {
		return nil, err
	}

	catalog, err := app.OpenCatalog(ctx, c.cfg, c.logger)
	if err != nil {
		return nil, err
	}
	defer catalog.Close()

	reconciler, err := app.NewReconciler(c.cfg, engine, catalog, c.logger)
	if err != nil {
		return nil, err
	}
	return reconciler.Run(ctx, opts)
}
