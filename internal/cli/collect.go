package cli

import (
	"context"
	"fmt"
	"log"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/aleck31/crypto-dashboard/internal/config"
)

// NewCollectCommand builds the one-shot collection command.
func NewCollectCommand() *cobra.Command {
	var sourceID string
	var all bool

	cmd := &cobra.Command{
		Use:   "collect",
		Short: "Run one collection pass and exit",
		Long:  "Collects every due source once (or a single source with --source, or every enabled source with --all) and exits.",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runCollect(sourceID, all)
		},
	}
	cmd.Flags().StringVar(&sourceID, "source", "", "collect only this source (composite id, e.g. project:defillama)")
	cmd.Flags().BoolVar(&all, "all", false, "ignore schedules and collect every enabled source")
	return cmd
}

func runCollect(sourceID string, all bool) error {
	cfg := config.Load()

	st, err := openStore(cfg)
	if err != nil {
		return fmt.Errorf("failed to open store: %w", err)
	}
	q, err := openQueue(cfg)
	if err != nil {
		return fmt.Errorf("failed to open queue: %w", err)
	}
	defer q.Close()

	coordinator := newCoordinator(cfg, st, q)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if sourceID != "" {
		src, err := st.GetSource(ctx, sourceID)
		if err != nil {
			return fmt.Errorf("failed to load source %s: %w", sourceID, err)
		}
		stats, err := coordinator.CollectSource(ctx, src)
		if err != nil {
			return fmt.Errorf("collection of %s failed: %w", sourceID, err)
		}
		log.Printf("Collect: %s fetched=%d saved=%d skipped=%d", sourceID, stats.TotalFetched, stats.SavedCount, stats.SkippedCount)
		return nil
	}

	if all {
		sources, err := st.QueryEnabledSources(ctx)
		if err != nil {
			return fmt.Errorf("failed to list enabled sources: %w", err)
		}
		failed := 0
		for _, src := range sources {
			if _, err := coordinator.CollectSource(ctx, src); err != nil {
				log.Printf("Collect: source %s failed: %v", src.ID, err)
				failed++
			}
		}
		log.Printf("Collect: %d sources collected, %d failed", len(sources)-failed, failed)
		return nil
	}

	summary, err := coordinator.RunDueSources(ctx)
	if err != nil {
		return err
	}
	log.Printf("Collect: %d sources, saved=%d skipped=%d failed=%d", summary.Sources, summary.Saved, summary.Skipped, summary.Failed)
	return nil
}
