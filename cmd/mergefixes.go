package cmd

import (
	"github.com/spf13/cobra"

	"github.com/filmdata/critic-harvester/internal/sink"
)

// newMergeFixesCmd creates the 'merge-fixes' subcommand.
func newMergeFixesCmd() *cobra.Command {
	var (
		rawDir    string
		procDir   string
		fixesPath string
	)
	cmd := &cobra.Command{
		Use:   "merge-fixes",
		Short: "Folds a hand-corrected review CSV into the per-year output files",
		Long: `Reads the fixes CSV, backfills missing metascores, removes
placeholder rows, appends review rows not already present, and writes
the merged per-year files into the processed directory. Years without
fixes are copied through unchanged.`,
		RunE: func(*cobra.Command, []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			logger, err := buildLogger(cfg)
			if err != nil {
				return err
			}
			defer logger.Sync() //nolint:errcheck // best-effort flush

			if rawDir == "" {
				rawDir = cfg.Sink.OutputDir
			}
			return sink.MergeFixes(rawDir, procDir, fixesPath, logger.Named("merge"))
		},
	}
	cmd.Flags().StringVar(&rawDir, "raw-dir", "", "directory with raw movies_<year>.csv files (default: sink.output_dir)")
	cmd.Flags().StringVar(&procDir, "out-dir", "data/processed", "directory for merged files")
	cmd.Flags().StringVar(&fixesPath, "fixes", "", "hand-corrected review CSV")
	_ = cmd.MarkFlagRequired("fixes")
	return cmd
}
