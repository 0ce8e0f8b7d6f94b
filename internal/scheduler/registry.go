// Package scheduler owns the source catalog bookkeeping: which sources are
// due, seeding the default catalog, and recording run outcomes.
package scheduler

import (
	"context"
	"fmt"
	"log"
	"sort"
	"time"

	"github.com/aleck31/crypto-dashboard/internal/models"
	"github.com/aleck31/crypto-dashboard/internal/store"
)

// Registry computes the due set over the durable source catalog.
type Registry struct {
	sources store.SourceStore
	// now is swappable for tests.
	now func() time.Time
}

// NewRegistry creates a registry over the given source store.
func NewRegistry(sources store.SourceStore) *Registry {
	return &Registry{sources: sources, now: func() time.Time { return time.Now().UTC() }}
}

// DueSources returns the enabled sources whose interval has elapsed (or
// that have never been collected), ordered ascending by priority.
func (r *Registry) DueSources(ctx context.Context) ([]*models.SourceConfig, error) {
	enabled, err := r.sources.QueryEnabledSources(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to query enabled sources: %w", err)
	}

	now := r.now()
	var due []*models.SourceConfig
	for _, src := range enabled {
		if src.Due(now) {
			due = append(due, src)
		}
	}
	sort.SliceStable(due, func(i, j int) bool { return due[i].Priority < due[j].Priority })
	return due, nil
}

// RunOutcome is what the coordinator reports back after collecting one
// source.
type RunOutcome struct {
	Success   bool
	Error     string
	ItemCount int
	Saved     int
}

// RecordRun updates the source's run bookkeeping. The last-collected
// timestamp and item count are bumped unconditionally so a failing source
// still waits out its interval instead of hot-looping.
func (r *Registry) RecordRun(ctx context.Context, src *models.SourceConfig, outcome RunOutcome) error {
	now := r.now()
	src.LastCollectedAt = &now
	src.Stats.LastItemCount = outcome.ItemCount
	src.UpdatedAt = now

	if outcome.Success {
		src.LastStatus = models.RunStatusSuccess
		src.LastError = ""
		src.Stats.SuccessCount++
		src.Stats.TotalCollected += outcome.Saved
	} else {
		src.LastStatus = models.RunStatusFailed
		src.LastError = outcome.Error
		src.Stats.FailedCount++
	}

	if err := r.sources.PutSource(ctx, src); err != nil {
		return fmt.Errorf("failed to record run for source %s: %w", src.ID, err)
	}
	return nil
}

// SeedDefaults inserts the default source catalog when the catalog is
// empty. The guard is catalog emptiness, not per-entry existence, so the
// seeding step is idempotent as a whole.
func (r *Registry) SeedDefaults(ctx context.Context) (int, error) {
	count, err := r.sources.CountSources(ctx)
	if err != nil {
		return 0, fmt.Errorf("failed to count sources: %w", err)
	}
	if count > 0 {
		log.Printf("Scheduler: source catalog already has %d entries, skipping seed", count)
		return 0, nil
	}

	defaults := DefaultCatalog()
	for _, src := range defaults {
		if err := r.sources.PutSource(ctx, src); err != nil {
			return 0, fmt.Errorf("failed to seed source %s: %w", src.ID, err)
		}
	}
	log.Printf("Scheduler: seeded %d default sources", len(defaults))
	return len(defaults), nil
}
