// Package collector implements the polymorphic collectors that know how to
// fetch and normalize one transport kind each. Implementations are resolved
// through an explicitly constructed Registry; there is no process-wide
// collector state.
package collector

import (
	"context"
	"time"

	"github.com/aleck31/crypto-dashboard/internal/models"
)

// ValidationResult reports whether a collector config is usable.
type ValidationResult struct {
	Valid  bool     `json:"valid"`
	Errors []string `json:"errors,omitempty"`
}

// Collector is the common contract shared by all transport kinds. Collect
// never returns a Go error: transport failures degrade to a CollectorResult
// with Success=false so one broken source cannot abort a run.
type Collector interface {
	// Type returns the collector tag this implementation handles.
	Type() string
	Collect(ctx context.Context, src *models.SourceConfig) *models.CollectorResult
	ValidateConfig(cfg models.CollectorConfig) ValidationResult
}

// Registry maps collector type tags to implementations. It is built once at
// startup and passed in wherever dispatch is needed.
type Registry struct {
	collectors map[string]Collector
}

// NewRegistry constructs a registry from the given implementations.
func NewRegistry(collectors ...Collector) *Registry {
	m := make(map[string]Collector, len(collectors))
	for _, c := range collectors {
		m[c.Type()] = c
	}
	return &Registry{collectors: m}
}

// Get resolves a collector by its type tag.
func (r *Registry) Get(collectorType string) (Collector, bool) {
	c, ok := r.collectors[collectorType]
	return c, ok
}

// Types lists the registered collector tags.
func (r *Registry) Types() []string {
	out := make([]string, 0, len(r.collectors))
	for t := range r.collectors {
		out = append(out, t)
	}
	return out
}

func failedResult(msg string) *models.CollectorResult {
	return &models.CollectorResult{Success: false, Error: msg}
}

// sleepCtx pauses for d unless the context is cancelled first.
func sleepCtx(ctx context.Context, d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return true
	case <-ctx.Done():
		return false
	}
}
