package cmd

import (
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"

	"github.com/solatis/gridxlate/internal/core/db"
	"github.com/solatis/gridxlate/internal/metrics"
	"github.com/solatis/gridxlate/internal/timeseries"
)

var transferCmd = &cobra.Command{
	Use:   "transfer",
	Short: "Re-point time-series associations from one owner to another",
	RunE:  runTransfer,
}

func init() {
	rootCmd.AddCommand(transferCmd)
	transferCmd.Flags().String("from", "", "old owner UUID")
	transferCmd.Flags().String("to", "", "new owner UUID")
	transferCmd.Flags().String("category", "Component", "owner category to transfer")
	transferCmd.Flags().String("strategy", "", "staging strategy (auto, attach, manual; default transfer.strategy)")
	transferCmd.Flags().String("metrics", "", "write prometheus text metrics to this file")
	transferCmd.MarkFlagRequired("from")
	transferCmd.MarkFlagRequired("to")
}

func runTransfer(cmd *cobra.Command, args []string) error {
	cfg, logger, err := setup(cmd)
	if err != nil {
		return err
	}
	defer logger.Sync()

	flags := cmd.Flags()
	from, _ := flags.GetString("from")
	to, _ := flags.GetString("to")
	category, _ := flags.GetString("category")
	strategy := cfg.Transfer.Strategy
	if flags.Changed("strategy") {
		strategy, _ = flags.GetString("strategy")
	}

	database, err := db.Open(cfg.Database.URL)
	if err != nil {
		return err
	}
	defer database.Close()

	statuses, err := db.MigrateStatus(cmd.Context(), database)
	if err != nil {
		return fmt.Errorf("failed to check migrations: %w", err)
	}
	for _, s := range statuses {
		if !s.Applied {
			return fmt.Errorf("migration %s not applied - run 'gridxlate migrate' first", s.ID)
		}
	}

	metricsPath, _ := flags.GetString("metrics")

	reg := prometheus.NewRegistry()
	collector, err := metrics.New(reg)
	if err != nil {
		return fmt.Errorf("failed to register metrics: %w", err)
	}

	store, err := timeseries.NewStore(database,
		timeseries.WithStrategy(strategy),
		timeseries.WithLogger(logger),
		timeseries.WithMetrics(collector))
	if err != nil {
		return err
	}

	out, err := store.Transfer(cmd.Context(), from, to, category)
	if err != nil {
		return err
	}

	fmt.Fprintf(cmd.OutOrStdout(), "transferred=%d deduplicated=%d children_remapped=%d children_deduplicated=%d\n",
		out.Transferred, out.Deduplicated, out.ChildrenRemapped, out.ChildrenDeduplicated)
	if metricsPath != "" {
		return writeMetrics(metricsPath, reg)
	}
	return nil
}
