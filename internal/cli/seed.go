package cli

import (
	"context"
	"fmt"
	"log"

	"github.com/spf13/cobra"

	"github.com/aleck31/crypto-dashboard/internal/config"
	"github.com/aleck31/crypto-dashboard/internal/scheduler"
)

// NewSeedCommand builds the catalog seeding command.
func NewSeedCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "seed",
		Short: "Seed the default source catalog into an empty store",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSeed()
		},
	}
}

func runSeed() error {
	cfg := config.Load()

	st, err := openStore(cfg)
	if err != nil {
		return fmt.Errorf("failed to open store: %w", err)
	}

	registry := scheduler.NewRegistry(st)
	seeded, err := registry.SeedDefaults(context.Background())
	if err != nil {
		return err
	}
	if seeded == 0 {
		log.Println("Seed: store already has sources, nothing to do")
		return nil
	}
	log.Printf("Seed: %d default sources created", seeded)
	return nil
}
