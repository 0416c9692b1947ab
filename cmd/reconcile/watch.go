package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/provansdecor/catalog/internal/infrastructure/photodir"
	"github.com/provansdecor/catalog/internal/usecase"
	"github.com/provansdecor/catalog/internal/watch"
)

func watchCmd(c *cli) *cobra.Command {
	var (
		flags catalogFlags
		apply bool
	)

	cmd := &cobra.Command{
		Use:   "watch",
		Short: "Re-run reconciliation whenever the photo directory changes",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := flags.apply(cmd, c.cfg); err != nil {
				return err
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			opts := usecase.RunOptions{Apply: apply}
			runOnce := func(ctx context.Context) {
				summary, err := c.reconcile(ctx, opts)
				if err != nil {
					c.logger.Error("reconciliation failed", zap.Error(err))
					return
				}
				if err := printSummary(cmd.OutOrStdout(), summary, c.jsonOutput); err != nil {
					c.logger.Warn("print summary", zap.Error(err))
				}
			}

			dir := photodir.New(c.cfg.Catalog.PhotoDir, c.cfg.Matching.Extensions, c.logger)
			w, err := watch.New(dir.Path(), dir.Accepts, c.cfg.Watch.Debounce, runOnce, c.logger)
			if err != nil {
				return err
			}

			runOnce(ctx)
			c.logger.Info("watching for photo changes", zap.String("dir", dir.Path()))
			return w.Run(ctx)
		},
	}

	flags.register(cmd)
	cmd.Flags().BoolVar(&apply, "apply", false, "write changes after every run (a backup is taken first)")
	return cmd
}
