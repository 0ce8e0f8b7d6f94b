package cli

import (
	"fmt"
	"log"

	"github.com/aleck31/crypto-dashboard/internal/collector"
	"github.com/aleck31/crypto-dashboard/internal/config"
	"github.com/aleck31/crypto-dashboard/internal/ingest"
	"github.com/aleck31/crypto-dashboard/internal/llm"
	"github.com/aleck31/crypto-dashboard/internal/project"
	"github.com/aleck31/crypto-dashboard/internal/queue"
	"github.com/aleck31/crypto-dashboard/internal/resolution"
	"github.com/aleck31/crypto-dashboard/internal/scheduler"
	"github.com/aleck31/crypto-dashboard/internal/store"
)

// openStore selects the storage backend from configuration.
func openStore(cfg *config.Config) (store.Store, error) {
	switch cfg.StorageBackend {
	case "memory":
		log.Println("Storage: using in-memory store (data is not persisted)")
		return store.NewMemoryStore(), nil
	case "sqlite":
		log.Printf("Storage: using sqlite at %s", cfg.SQLitePath)
		return store.OpenSQLite(cfg.SQLitePath)
	case "postgres":
		log.Printf("Storage: using postgres at %s:%s/%s", cfg.DBHost, cfg.DBPort, cfg.DBName)
		return store.OpenPostgres(cfg.PostgresDSN())
	default:
		return nil, fmt.Errorf("unknown storage backend %q", cfg.StorageBackend)
	}
}

// openQueue selects the queue backend from configuration.
func openQueue(cfg *config.Config) (queue.Queue, error) {
	switch cfg.QueueBackend {
	case "memory":
		log.Println("Queue: using in-memory queue")
		return queue.NewMemoryQueue(1024, cfg.MaxDeliver), nil
	case "nats":
		log.Printf("Queue: using NATS JetStream at %s", cfg.NATSURL)
		return queue.NewNATSQueue(queue.NATSConfig{
			URL:        cfg.NATSURL,
			MaxDeliver: cfg.MaxDeliver,
			AckWait:    cfg.AckWait,
		})
	default:
		return nil, fmt.Errorf("unknown queue backend %q", cfg.QueueBackend)
	}
}

func newCollectors() *collector.Registry {
	return collector.NewRegistry(
		collector.NewRESTCollector(),
		collector.NewFeedCollector(),
	)
}

func newCoordinator(cfg *config.Config, st store.Store, q queue.Queue) *ingest.Coordinator {
	registry := scheduler.NewRegistry(st)
	c := ingest.NewCoordinator(newCollectors(), registry, st, q)
	c.SetMarketTTL(cfg.MarketTTL)
	return c
}

func newWorker(cfg *config.Config, st store.Store, q queue.Queue) *resolution.Worker {
	client := llm.NewAnthropicClient(llm.AnthropicConfig{
		APIKey:  cfg.AnthropicAPIKey,
		BaseURL: cfg.AnthropicBaseURL,
		Model:   cfg.AnthropicModel,
	})
	engine := project.NewEngine(st)
	resolver := resolution.NewResolver(client, st, st, engine)
	return resolution.NewWorker(q, resolver, cfg.WorkerConcurrency)
}
