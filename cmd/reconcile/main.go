// Command reconcile matches product photos, fills categories and reports
// duplicates for a catalog export or a live product store.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/provansdecor/catalog/config"
	"github.com/provansdecor/catalog/internal/logging"
)

// cli holds what every subcommand needs once the root flags are parsed
type cli struct {
	configFile string
	jsonOutput bool
	logLevel   string

	cfg    *config.Config
	logger *zap.Logger
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	c := &cli{}

	rootCmd := &cobra.Command{
		Use:           "reconcile",
		Short:         "Reconcile the Provans Decor catalog with its photo directory",
		SilenceUsage:  true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return c.setup()
		},
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			if c.logger != nil {
				_ = c.logger.Sync()
			}
		},
	}

	rootCmd.PersistentFlags().StringVar(&c.configFile, "config", "", "config file (default: ./config.yaml if present)")
	rootCmd.PersistentFlags().BoolVar(&c.jsonOutput, "json", false, "print results as JSON")
	rootCmd.PersistentFlags().StringVar(&c.logLevel, "log-level", "", "override log level")

	rootCmd.AddCommand(runCmd(c))
	rootCmd.AddCommand(dedupeCmd(c))
	rootCmd.AddCommand(classifyCmd(c))
	rootCmd.AddCommand(normalizeCmd(c))
	rootCmd.AddCommand(watchCmd(c))

	return rootCmd
}

func (c *cli) setup() error {
	cfg, err := config.Load(c.configFile)
	if err != nil {
		return err
	}
	if c.logLevel != "" {
		cfg.Log.Level = c.logLevel
	}

	logger, err := logging.New(cfg.Log.Level, cfg.Log.Format)
	if err != nil {
		return err
	}

	c.cfg = cfg
	c.logger = logger
	return nil
}

// catalogFlags are shared by the subcommands that open a catalog
type catalogFlags struct {
	input      string
	photos     string
	store      string
	threshold  float64
	legacyPath bool
}

func (f *catalogFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringVar(&f.input, "input", "", "product export (JSON or CSV)")
	cmd.Flags().StringVar(&f.photos, "photos", "", "photo directory")
	cmd.Flags().StringVar(&f.store, "store", "", "product store driver: file, sqlite, postgres or api")
	cmd.Flags().Float64Var(&f.threshold, "threshold", 0, "fuzzy match threshold in (0, 1]")
	cmd.Flags().BoolVar(&f.legacyPath, "legacy-path", false, "also score the file name of unresolved image references")
}

// apply overrides configuration with the flags that were set
func (f *catalogFlags) apply(cmd *cobra.Command, cfg *config.Config) error {
	if cmd.Flags().Changed("input") {
		cfg.Catalog.Input = f.input
	}
	if cmd.Flags().Changed("photos") {
		cfg.Catalog.PhotoDir = f.photos
	}
	if cmd.Flags().Changed("store") {
		cfg.Store.Driver = f.store
	}
	if cmd.Flags().Changed("threshold") {
		if f.threshold <= 0 || f.threshold > 1 {
			return fmt.Errorf("threshold must be in (0, 1], got %v", f.threshold)
		}
		cfg.Matching.Threshold = f.threshold
	}
	if cmd.Flags().Changed("legacy-path") {
		cfg.Matching.LegacyPath = f.legacyPath
	}
	return nil
}
