// Package store defines the persistence interfaces consumed by the rest of
// the system and provides two implementations: a gorm-backed store
// (sqlite or postgres) and an in-memory store used by tests and local runs.
// All writes are last-write-wins; no optimistic locking is surfaced.
package store

import (
	"context"
	"errors"

	"github.com/aleck31/crypto-dashboard/internal/models"
)

// ErrNotFound is returned when a record does not exist.
var ErrNotFound = errors.New("record not found")

// SourceStore is the durable catalog of source configurations.
type SourceStore interface {
	GetSource(ctx context.Context, id string) (*models.SourceConfig, error)
	PutSource(ctx context.Context, cfg *models.SourceConfig) error
	DeleteSource(ctx context.Context, id string) error
	QuerySourcesByType(ctx context.Context, t models.SourceType) ([]*models.SourceConfig, error)
	QueryEnabledSources(ctx context.Context) ([]*models.SourceConfig, error)
	ListSources(ctx context.Context) ([]*models.SourceConfig, error)
	CountSources(ctx context.Context) (int64, error)
}

// RawInfoStore persists unresolved raw records of both families.
type RawInfoStore interface {
	GetProjectInfo(ctx context.Context, id string) (*models.ProjectInfo, error)
	PutProjectInfo(ctx context.Context, rec *models.ProjectInfo) error
	QueryProjectInfoBySource(ctx context.Context, source string) ([]*models.ProjectInfo, error)
	QueryProjectInfoByStatus(ctx context.Context, status models.ProcessedStatus) ([]*models.ProjectInfo, error)
	ScanProjectInfo(ctx context.Context, limit int) ([]*models.ProjectInfo, error)

	GetMarketInfo(ctx context.Context, id string) (*models.MarketInfo, error)
	PutMarketInfo(ctx context.Context, rec *models.MarketInfo) error
	QueryMarketInfoBySource(ctx context.Context, source string) ([]*models.MarketInfo, error)
	QueryMarketInfoByStatus(ctx context.Context, status models.ProcessedStatus) ([]*models.MarketInfo, error)
	ScanMarketInfo(ctx context.Context, limit int) ([]*models.MarketInfo, error)

	// PruneExpiredMarketInfo removes market records past their expiry and
	// reports how many were removed.
	PruneExpiredMarketInfo(ctx context.Context) (int64, error)
}

// ProjectStore persists the long-lived project entities.
type ProjectStore interface {
	GetProject(ctx context.Context, id string) (*models.Project, error)
	PutProject(ctx context.Context, p *models.Project) error
	// UpdateProject merges partial fields into an existing project. It
	// returns ErrNotFound when the project does not exist; it never
	// fabricates one.
	UpdateProject(ctx context.Context, id string, fields map[string]any) (*models.Project, error)
	QueryProjectsByCategory(ctx context.Context, cat models.ProjectCategory) ([]*models.Project, error)
	ListProjects(ctx context.Context) ([]*models.Project, error)
}

// Store bundles the three storage interfaces behind one backend.
type Store interface {
	SourceStore
	RawInfoStore
	ProjectStore
}
