package models

import (
	"fmt"
	"time"

	"github.com/aleck31/crypto-dashboard/internal/mapping"
)

// SourceType identifies which record family a source produces.
type SourceType string

const (
	// SourceTypeProject produces low-frequency project profile records.
	SourceTypeProject SourceType = "project"
	// SourceTypeMarket produces high-frequency market/news records.
	SourceTypeMarket SourceType = "market"
)

// Collector type tags. The registry resolves these to implementations at startup.
const (
	CollectorTypeREST = "rest_api"
	CollectorTypeFeed = "rss_feed"
)

// RunStatus records the outcome of the most recent collection run.
type RunStatus string

const (
	RunStatusSuccess RunStatus = "success"
	RunStatusFailed  RunStatus = "failed"
)

// RESTEndpoint describes one endpoint of a REST collector config.
type RESTEndpoint struct {
	Path    string          `json:"path"`
	Method  string          `json:"method,omitempty"` // defaults to GET
	Mapping mapping.Mapping `json:"mapping,omitempty"`
	// Limit caps the number of items taken from this endpoint's response.
	// Zero means no limit.
	Limit int `json:"limit,omitempty"`
}

// RESTConfig configures the multi-endpoint REST collector.
type RESTConfig struct {
	BaseURL string            `json:"base_url"`
	Headers map[string]string `json:"headers,omitempty"`
	// ItemsPath optionally points at the array of items inside the response
	// body (dotted path). Empty means the body itself is the array or a
	// single object.
	ItemsPath string         `json:"items_path,omitempty"`
	Endpoints []RESTEndpoint `json:"endpoints"`
	// RequestDelayMs is the fixed pause between endpoint requests. Zero
	// falls back to the collector default (1000ms).
	RequestDelayMs int `json:"request_delay_ms,omitempty"`
}

// FeedConfig configures the RSS/Atom feed collector.
type FeedConfig struct {
	FeedURL string `json:"feed_url"`
	// MaxItems caps how many items are taken per poll. Zero falls back to
	// the collector default (20).
	MaxItems int `json:"max_items,omitempty"`
}

// CollectorConfig is a tagged union of per-collector configuration.
// Exactly one variant is set; which one must agree with
// SourceConfig.CollectorType.
type CollectorConfig struct {
	REST *RESTConfig `json:"rest,omitempty"`
	Feed *FeedConfig `json:"feed,omitempty"`
}

// SourceStats accumulates per-source collection bookkeeping.
type SourceStats struct {
	TotalCollected int `json:"total_collected"`
	SuccessCount   int `json:"success_count"`
	FailedCount    int `json:"failed_count"`
	LastItemCount  int `json:"last_item_count"`
}

// SourceConfig describes one external feed: its transport, schedule and
// field mapping. The ID is always derived from Type and SourceID, never set
// independently.
type SourceConfig struct {
	ID              string          `json:"id" gorm:"primaryKey"`
	Type            SourceType      `json:"type" gorm:"index"`
	SourceID        string          `json:"source_id"`
	Name            string          `json:"name"`
	CollectorType   string          `json:"collector_type"`
	CollectorConfig CollectorConfig `json:"collector_config" gorm:"serializer:json"`
	IntervalMinutes int             `json:"interval_minutes"`
	// Priority orders the due set: lower values are collected sooner.
	Priority int  `json:"priority"`
	Enabled  bool `json:"enabled" gorm:"index"`

	LastCollectedAt *time.Time  `json:"last_collected_at,omitempty"`
	LastStatus      RunStatus   `json:"last_status,omitempty"`
	LastError       string      `json:"last_error,omitempty"`
	Stats           SourceStats `json:"stats" gorm:"embedded"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// SourceKey derives the composite storage key for a source.
func SourceKey(sourceType SourceType, sourceID string) string {
	return fmt.Sprintf("%s:%s", sourceType, sourceID)
}

// NewSourceConfig builds a SourceConfig with its derived ID.
func NewSourceConfig(sourceType SourceType, sourceID, name, collectorType string, cfg CollectorConfig) *SourceConfig {
	now := time.Now().UTC()
	return &SourceConfig{
		ID:              SourceKey(sourceType, sourceID),
		Type:            sourceType,
		SourceID:        sourceID,
		Name:            name,
		CollectorType:   collectorType,
		CollectorConfig: cfg,
		IntervalMinutes: 60,
		Priority:        100,
		Enabled:         true,
		CreatedAt:       now,
		UpdatedAt:       now,
	}
}

// Due reports whether the source should be collected at the given instant.
// Disabled sources are never due; a source that has never been collected is
// always due.
func (s *SourceConfig) Due(now time.Time) bool {
	if !s.Enabled {
		return false
	}
	if s.LastCollectedAt == nil {
		return true
	}
	return now.Sub(*s.LastCollectedAt) >= time.Duration(s.IntervalMinutes)*time.Minute
}
