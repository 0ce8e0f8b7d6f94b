package cli

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/spf13/cobra"

	"github.com/aleck31/crypto-dashboard/internal/config"
	"github.com/aleck31/crypto-dashboard/internal/handlers"
	"github.com/aleck31/crypto-dashboard/internal/scheduler"
)

// NewServeCommand builds the combined service: admin API, cron-driven
// collection and resolution workers in one process.
func NewServeCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the API server, collection scheduler and resolution workers",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe()
		},
	}
}

func runServe() error {
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

	registry := scheduler.NewRegistry(st)
	coordinator := newCoordinator(cfg, st, q)
	worker := newWorker(cfg, st, q)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Seed the default catalog on an empty store so a fresh deployment
	// collects something out of the box.
	if seeded, err := registry.SeedDefaults(ctx); err != nil {
		log.Printf("Serve: catalog seeding failed: %v", err)
	} else if seeded > 0 {
		log.Printf("Serve: seeded %d default sources", seeded)
	}

	// Collection cadence plus retention pruning ride the same cron pass.
	runner := scheduler.NewRunner(func(runCtx context.Context) error {
		if pruned, err := st.PruneExpiredMarketInfo(runCtx); err != nil {
			log.Printf("Serve: market info pruning failed: %v", err)
		} else if pruned > 0 {
			log.Printf("Serve: pruned %d expired market records", pruned)
		}
		_, err := coordinator.RunDueSources(runCtx)
		return err
	})
	if err := runner.Start(cfg.CollectCron); err != nil {
		return err
	}
	defer runner.Stop()

	go func() {
		if err := worker.Run(ctx); err != nil && ctx.Err() == nil {
			log.Printf("Serve: resolution worker exited: %v", err)
		}
	}()

	gin.SetMode(cfg.GinMode)
	router := gin.Default()
	api := handlers.NewAPI(st, newCollectors(), coordinator, q)
	api.RegisterRoutes(router)

	srv := &http.Server{
		Addr:    ":" + cfg.ServerPort,
		Handler: router,
	}
	go func() {
		log.Printf("Serve: listening on %s", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Serve: server failed: %v", err)
		}
	}()

	<-ctx.Done()
	log.Println("Serve: shutdown signal received")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server shutdown failed: %w", err)
	}
	log.Println("Serve: stopped cleanly")
	return nil
}
