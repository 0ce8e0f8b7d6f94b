package models

import (
	"fmt"
	"time"
)

// ProcessedStatus is the resolution state of a raw record. A record moves
// pending -> processing -> processed|failed and is never reprocessed once
// processed.
type ProcessedStatus string

const (
	StatusPending    ProcessedStatus = "pending"
	StatusProcessing ProcessedStatus = "processing"
	StatusProcessed  ProcessedStatus = "processed"
	StatusFailed     ProcessedStatus = "failed"
)

// Record type tags used in queue messages.
const (
	RecordTypeProjectInfo = "project_info"
	RecordTypeMarketInfo  = "market_info"
)

// ProjectInfo is a low-frequency raw record about a project, keyed by the
// source plus the source-native identifier.
type ProjectInfo struct {
	ID         string         `json:"id" gorm:"primaryKey"`
	Source     string         `json:"source" gorm:"index"`
	SourceID   string         `json:"source_id"`
	RawData    map[string]any `json:"raw_data" gorm:"serializer:json"`
	Attributes map[string]any `json:"attributes" gorm:"serializer:json"`

	ProcessedStatus ProcessedStatus `json:"processed_status" gorm:"index"`
	// DataHash is the content hash of the normalized attributes, used to
	// skip re-saving unchanged upstream data.
	DataHash    string     `json:"data_hash"`
	CollectedAt time.Time  `json:"collected_at"`
	ProcessedAt *time.Time `json:"processed_at,omitempty"`
	ProcessErr  string     `json:"process_error,omitempty"`

	// Resolution outputs.
	ProjectID string `json:"project_id,omitempty"`
	Reasoning string `json:"reasoning,omitempty"`
}

// ProjectInfoKey derives the deterministic id for a ProjectInfo record.
func ProjectInfoKey(source, sourceID string) string {
	return fmt.Sprintf("%s:%s", source, sourceID)
}

// MarketInfo is a high-frequency raw record (news item, market event). It
// has no stable native id, so its identity is a content hash: re-deriving
// the same title+link yields the same id, which makes bare existence the
// duplicate signal.
type MarketInfo struct {
	ID         string         `json:"id" gorm:"primaryKey"`
	Source     string         `json:"source" gorm:"index"`
	Title      string         `json:"title"`
	Link       string         `json:"link"`
	RawData    map[string]any `json:"raw_data" gorm:"serializer:json"`
	Attributes map[string]any `json:"attributes" gorm:"serializer:json"`

	ProcessedStatus ProcessedStatus `json:"processed_status" gorm:"index"`
	DataHash        string          `json:"data_hash"`
	CollectedAt     time.Time       `json:"collected_at"`
	ProcessedAt     *time.Time      `json:"processed_at,omitempty"`
	ProcessErr      string          `json:"process_error,omitempty"`
	// ExpiresAt makes stale market records eligible for automatic removal.
	ExpiresAt time.Time `json:"expires_at" gorm:"index"`

	// Resolution outputs.
	RelatedProjects []string `json:"related_projects,omitempty" gorm:"serializer:json"`
	Sentiment       string   `json:"sentiment,omitempty"`
	EventType       string   `json:"event_type,omitempty"`
	Importance      int      `json:"importance,omitempty"`
	Reasoning       string   `json:"reasoning,omitempty"`
}

// MarketInfoKey derives the deterministic id for a MarketInfo record from
// its content hash.
func MarketInfoKey(hash string) string {
	return fmt.Sprintf("market:%s", hash)
}

// CollectedItem is one normalized item produced by a collector run.
type CollectedItem struct {
	// NativeID is the source-native identifier, when the source has one
	// (project sources). Empty for market/news items.
	NativeID string `json:"native_id,omitempty"`
	// Data holds the normalized display attributes after field mapping.
	Data map[string]any `json:"data"`
	// Raw is the item payload before mapping.
	Raw map[string]any `json:"raw"`
}

// CollectStats summarizes one collection run.
type CollectStats struct {
	TotalFetched int `json:"total_fetched"`
	SavedCount   int `json:"saved_count"`
	SkippedCount int `json:"skipped_count"`
}

// CollectorResult is the transient outcome of one Collect call. It is never
// persisted.
type CollectorResult struct {
	Success bool            `json:"success"`
	Items   []CollectedItem `json:"items"`
	Error   string          `json:"error,omitempty"`
	Stats   CollectStats    `json:"stats"`
}
