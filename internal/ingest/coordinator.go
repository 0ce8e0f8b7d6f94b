// Package ingest drives the collection pipeline: scheduler -> collector ->
// dedup -> persist -> enqueue, per source. Sources run sequentially; items
// inside a source run in fixed-size concurrent batches.
package ingest

import (
	"context"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/aleck31/crypto-dashboard/internal/collector"
	"github.com/aleck31/crypto-dashboard/internal/contenthash"
	"github.com/aleck31/crypto-dashboard/internal/models"
	"github.com/aleck31/crypto-dashboard/internal/queue"
	"github.com/aleck31/crypto-dashboard/internal/scheduler"
	"github.com/aleck31/crypto-dashboard/internal/store"
)

const (
	// batchSize bounds intra-source concurrency: items are saved in
	// concurrent batches of this size, batches sequential.
	batchSize = 10
	// interSourceDelay smooths outbound request pressure across a run.
	interSourceDelay = 500 * time.Millisecond
	// defaultMarketTTL is how long market records stay before expiry.
	defaultMarketTTL = 7 * 24 * time.Hour
)

// Coordinator orchestrates one collection pass across the due sources.
type Coordinator struct {
	collectors *collector.Registry
	registry   *scheduler.Registry
	raw        store.RawInfoStore
	q          queue.Queue
	marketTTL  time.Duration
	now        func() time.Time
}

// NewCoordinator wires the collection pipeline together.
func NewCoordinator(collectors *collector.Registry, registry *scheduler.Registry, raw store.RawInfoStore, q queue.Queue) *Coordinator {
	return &Coordinator{
		collectors: collectors,
		registry:   registry,
		raw:        raw,
		q:          q,
		marketTTL:  defaultMarketTTL,
		now:        func() time.Time { return time.Now().UTC() },
	}
}

// SetMarketTTL overrides the retention window stamped on new market records.
func (c *Coordinator) SetMarketTTL(ttl time.Duration) {
	if ttl > 0 {
		c.marketTTL = ttl
	}
}

// RunSummary aggregates one full collection pass.
type RunSummary struct {
	Sources int `json:"sources"`
	Saved   int `json:"saved"`
	Skipped int `json:"skipped"`
	Failed  int `json:"failed_sources"`
}

// RunDueSources collects every due source sequentially and records each
// outcome on the catalog. A failing source never aborts the pass.
func (c *Coordinator) RunDueSources(ctx context.Context) (*RunSummary, error) {
	due, err := c.registry.DueSources(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to compute due set: %w", err)
	}
	log.Printf("Ingest: %d sources due", len(due))

	summary := &RunSummary{Sources: len(due)}
	for i, src := range due {
		if i > 0 {
			select {
			case <-time.After(interSourceDelay):
			case <-ctx.Done():
				return summary, ctx.Err()
			}
		}

		stats, err := c.CollectSource(ctx, src)
		if err != nil {
			log.Printf("Ingest: source %s failed: %v", src.ID, err)
			summary.Failed++
			continue
		}
		summary.Saved += stats.SavedCount
		summary.Skipped += stats.SkippedCount
	}
	log.Printf("Ingest: pass complete: %d sources, %d saved, %d skipped, %d failed",
		summary.Sources, summary.Saved, summary.Skipped, summary.Failed)
	return summary, nil
}

// CollectSource runs one source end to end: collect, dedup, persist,
// enqueue, and record the run outcome. The returned error mirrors what was
// recorded on the source.
func (c *Coordinator) CollectSource(ctx context.Context, src *models.SourceConfig) (*models.CollectStats, error) {
	col, ok := c.collectors.Get(src.CollectorType)
	if !ok {
		outcome := scheduler.RunOutcome{Error: fmt.Sprintf("unknown collector type %q", src.CollectorType)}
		if err := c.registry.RecordRun(ctx, src, outcome); err != nil {
			log.Printf("Ingest: failed to record run for %s: %v", src.ID, err)
		}
		return nil, fmt.Errorf("unknown collector type %q for source %s", src.CollectorType, src.ID)
	}

	result := col.Collect(ctx, src)
	if !result.Success {
		// No partial save on collector failure.
		outcome := scheduler.RunOutcome{Error: result.Error, ItemCount: result.Stats.TotalFetched}
		if err := c.registry.RecordRun(ctx, src, outcome); err != nil {
			log.Printf("Ingest: failed to record run for %s: %v", src.ID, err)
		}
		return nil, fmt.Errorf("collector failed for source %s: %s", src.ID, result.Error)
	}

	saved, skipped := c.persistItems(ctx, src, result.Items)
	result.Stats.SavedCount = saved
	result.Stats.SkippedCount = skipped

	outcome := scheduler.RunOutcome{
		Success:   true,
		ItemCount: result.Stats.TotalFetched,
		Saved:     saved,
	}
	if err := c.registry.RecordRun(ctx, src, outcome); err != nil {
		log.Printf("Ingest: failed to record run for %s: %v", src.ID, err)
	}
	log.Printf("Ingest: source %s: fetched=%d saved=%d skipped=%d",
		src.ID, result.Stats.TotalFetched, saved, skipped)
	return &result.Stats, nil
}

// persistItems saves items in concurrent batches of batchSize and enqueues
// every saved item for resolution. Save order inside a batch is not
// guaranteed; enqueue always follows a successful save.
func (c *Coordinator) persistItems(ctx context.Context, src *models.SourceConfig, items []models.CollectedItem) (saved, skipped int) {
	var mu sync.Mutex

	for start := 0; start < len(items); start += batchSize {
		end := start + batchSize
		if end > len(items) {
			end = len(items)
		}

		var wg sync.WaitGroup
		for _, item := range items[start:end] {
			wg.Add(1)
			go func(item models.CollectedItem) {
				defer wg.Done()
				didSave, err := c.persistItem(ctx, src, item)
				if err != nil {
					log.Printf("Ingest: failed to persist item from %s: %v", src.ID, err)
					return
				}
				mu.Lock()
				if didSave {
					saved++
				} else {
					skipped++
				}
				mu.Unlock()
			}(item)
		}
		wg.Wait()
	}
	return saved, skipped
}

// persistItem applies the idempotent-write rules for one item and enqueues
// it when saved. Returns (false, nil) for a dedup skip.
func (c *Coordinator) persistItem(ctx context.Context, src *models.SourceConfig, item models.CollectedItem) (bool, error) {
	switch src.Type {
	case models.SourceTypeProject:
		return c.persistProjectInfo(ctx, src, item)
	case models.SourceTypeMarket:
		return c.persistMarketInfo(ctx, src, item)
	default:
		return false, fmt.Errorf("unknown source type %q", src.Type)
	}
}

func (c *Coordinator) persistProjectInfo(ctx context.Context, src *models.SourceConfig, item models.CollectedItem) (bool, error) {
	if item.NativeID == "" {
		return false, fmt.Errorf("project item from %s has no native id", src.ID)
	}

	id := models.ProjectInfoKey(src.SourceID, item.NativeID)
	hash := contenthash.Hash(item.Data)

	existing, err := c.raw.GetProjectInfo(ctx, id)
	if err == nil && existing.DataHash == hash {
		// Unchanged upstream: idempotent skip, no new queue message.
		return false, nil
	}
	if err != nil && err != store.ErrNotFound {
		return false, fmt.Errorf("failed to read existing record %s: %w", id, err)
	}

	rec := &models.ProjectInfo{
		ID:              id,
		Source:          src.SourceID,
		SourceID:        item.NativeID,
		RawData:         item.Raw,
		Attributes:      item.Data,
		ProcessedStatus: models.StatusPending,
		DataHash:        hash,
		CollectedAt:     c.now(),
	}
	if err := c.raw.PutProjectInfo(ctx, rec); err != nil {
		return false, fmt.Errorf("failed to save project info %s: %w", id, err)
	}
	if err := c.q.Publish(ctx, models.RecordTypeProjectInfo, id); err != nil {
		return true, fmt.Errorf("saved %s but failed to enqueue: %w", id, err)
	}
	return true, nil
}

func (c *Coordinator) persistMarketInfo(ctx context.Context, src *models.SourceConfig, item models.CollectedItem) (bool, error) {
	title, _ := item.Data["title"].(string)
	link, _ := item.Data["link"].(string)
	if title == "" {
		return false, fmt.Errorf("market item from %s has no title", src.ID)
	}

	hash := contenthash.HashFields(title, link)
	id := models.MarketInfoKey(hash)

	// The id already encodes the content hash, so bare existence is the
	// duplicate signal.
	if _, err := c.raw.GetMarketInfo(ctx, id); err == nil {
		return false, nil
	} else if err != store.ErrNotFound {
		return false, fmt.Errorf("failed to read existing record %s: %w", id, err)
	}

	now := c.now()
	rec := &models.MarketInfo{
		ID:              id,
		Source:          src.SourceID,
		Title:           title,
		Link:            link,
		RawData:         item.Raw,
		Attributes:      item.Data,
		ProcessedStatus: models.StatusPending,
		DataHash:        hash,
		CollectedAt:     now,
		ExpiresAt:       now.Add(c.marketTTL),
	}
	if err := c.raw.PutMarketInfo(ctx, rec); err != nil {
		return false, fmt.Errorf("failed to save market info %s: %w", id, err)
	}
	if err := c.q.Publish(ctx, models.RecordTypeMarketInfo, id); err != nil {
		return true, fmt.Errorf("saved %s but failed to enqueue: %w", id, err)
	}
	return true, nil
}
