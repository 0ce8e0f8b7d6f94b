package models

import "time"

// ProjectCategory is the fixed category enum for tracked projects.
type ProjectCategory string

const (
	CategoryDeFi           ProjectCategory = "defi"
	CategoryLayer1         ProjectCategory = "layer1"
	CategoryLayer2         ProjectCategory = "layer2"
	CategoryExchange       ProjectCategory = "exchange"
	CategoryInfrastructure ProjectCategory = "infrastructure"
	CategoryNFT            ProjectCategory = "nft"
	CategoryGaming         ProjectCategory = "gaming"
	CategoryOther          ProjectCategory = "other"
)

// ValidCategories guards category input from the resolution stage.
var ValidCategories = map[ProjectCategory]bool{
	CategoryDeFi:           true,
	CategoryLayer1:         true,
	CategoryLayer2:         true,
	CategoryExchange:       true,
	CategoryInfrastructure: true,
	CategoryNFT:            true,
	CategoryGaming:         true,
	CategoryOther:          true,
}

// ProjectStatus is derived from health score and flag severities, never set
// directly.
type ProjectStatus string

const (
	StatusNormal  ProjectStatus = "normal"
	StatusWatch   ProjectStatus = "watch"
	StatusWarning ProjectStatus = "warning"
	StatusDanger  ProjectStatus = "danger"
)

// Sentiment of recent news coverage.
type Sentiment string

const (
	SentimentPositive Sentiment = "positive"
	SentimentNeutral  Sentiment = "neutral"
	SentimentNegative Sentiment = "negative"
)

// Flag severity / importance levels shared by risk and opportunity flags.
const (
	SeverityLow      = "low"
	SeverityMedium   = "medium"
	SeverityHigh     = "high"
	SeverityCritical = "critical"
)

// MaxRecentEvents bounds the per-project event history.
const MaxRecentEvents = 20

// ProjectEvent is one entry in a project's bounded event history, newest
// first.
type ProjectEvent struct {
	ID          string    `json:"id"`
	EventType   string    `json:"event_type"`
	Title       string    `json:"title"`
	Description string    `json:"description,omitempty"`
	Timestamp   time.Time `json:"timestamp"`
}

// Flag marks a risk or opportunity on a project. Flags are deduplicated by
// Type+Description equality.
type Flag struct {
	Type        string    `json:"type"`
	Description string    `json:"description"`
	Severity    string    `json:"severity"`
	CreatedAt   time.Time `json:"created_at"`
}

// SocialLinks holds a project's social handles.
type SocialLinks struct {
	Twitter  string `json:"twitter,omitempty"`
	Telegram string `json:"telegram,omitempty"`
	Discord  string `json:"discord,omitempty"`
	GitHub   string `json:"github,omitempty"`
}

// Project is a long-lived entity that raw records are resolved against. Its
// id is a human-meaningful slug chosen by the resolution stage.
type Project struct {
	ID          string          `json:"id" gorm:"primaryKey"`
	Name        string          `json:"name"`
	Category    ProjectCategory `json:"category" gorm:"index"`
	Description string          `json:"description,omitempty"`
	LogoURL     string          `json:"logo_url,omitempty"`
	Website     string          `json:"website,omitempty"`
	Social      SocialLinks     `json:"social" gorm:"embedded;embeddedPrefix:social_"`

	HealthScore   int           `json:"health_score"`
	Status        ProjectStatus `json:"status"`
	NewsSentiment Sentiment     `json:"news_sentiment"`

	RecentEvents     []ProjectEvent `json:"recent_events" gorm:"serializer:json"`
	RiskFlags        []Flag         `json:"risk_flags" gorm:"serializer:json"`
	OpportunityFlags []Flag         `json:"opportunity_flags" gorm:"serializer:json"`

	// Attributes is the category-specific attribute bag (tvl, chain, token
	// symbol and the like).
	Attributes map[string]any `json:"attributes" gorm:"serializer:json"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// HealthScoreBreakdown is the informational weighted decomposition of a
// health score. Callers that assemble one use project.ComputeHealthScore.
type HealthScoreBreakdown struct {
	BaseMetrics      int `json:"base_metrics"`
	SentimentScore   int `json:"sentiment_score"`
	FundSafety       int `json:"fund_safety"`
	DevelopmentTrend int `json:"development_trend"`
	Total            int `json:"total"`
}
