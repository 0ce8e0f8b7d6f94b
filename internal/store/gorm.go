package store

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"time"

	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/aleck31/crypto-dashboard/internal/models"
)

// GormStore persists everything through gorm. SQLite backs local
// deployments, Postgres production ones.
type GormStore struct {
	db *gorm.DB
}

var _ Store = (*GormStore)(nil)

// OpenSQLite opens (and migrates) a sqlite-backed store at the given path.
func OpenSQLite(path string) (*GormStore, error) {
	db, err := gorm.Open(sqlite.Open(path), &gorm.Config{Logger: gormLogger()})
	if err != nil {
		return nil, fmt.Errorf("failed to open sqlite database at %s: %w", path, err)
	}
	return newGormStore(db)
}

// OpenPostgres opens (and migrates) a postgres-backed store.
func OpenPostgres(dsn string) (*GormStore, error) {
	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{Logger: gormLogger()})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to postgres: %w", err)
	}
	return newGormStore(db)
}

func gormLogger() logger.Interface {
	return logger.New(
		log.New(os.Stdout, "\r\n", log.LstdFlags),
		logger.Config{
			SlowThreshold: time.Second,
			LogLevel:      logger.Warn,
		},
	)
}

func newGormStore(db *gorm.DB) (*GormStore, error) {
	if err := db.AutoMigrate(
		&models.SourceConfig{},
		&models.ProjectInfo{},
		&models.MarketInfo{},
		&models.Project{},
	); err != nil {
		return nil, fmt.Errorf("failed to auto-migrate schema: %w", err)
	}
	return &GormStore{db: db}, nil
}

// --- SourceStore ---

func (s *GormStore) GetSource(ctx context.Context, id string) (*models.SourceConfig, error) {
	var cfg models.SourceConfig
	if err := s.db.WithContext(ctx).First(&cfg, "id = ?", id).Error; err != nil {
		return nil, translate(err)
	}
	return &cfg, nil
}

func (s *GormStore) PutSource(ctx context.Context, cfg *models.SourceConfig) error {
	return s.db.WithContext(ctx).Save(cfg).Error
}

func (s *GormStore) DeleteSource(ctx context.Context, id string) error {
	res := s.db.WithContext(ctx).Delete(&models.SourceConfig{}, "id = ?", id)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *GormStore) QuerySourcesByType(ctx context.Context, t models.SourceType) ([]*models.SourceConfig, error) {
	var out []*models.SourceConfig
	err := s.db.WithContext(ctx).Where("type = ?", t).Order("priority asc, id asc").Find(&out).Error
	return out, err
}

func (s *GormStore) QueryEnabledSources(ctx context.Context) ([]*models.SourceConfig, error) {
	var out []*models.SourceConfig
	err := s.db.WithContext(ctx).Where("enabled = ?", true).Order("priority asc, id asc").Find(&out).Error
	return out, err
}

func (s *GormStore) ListSources(ctx context.Context) ([]*models.SourceConfig, error) {
	var out []*models.SourceConfig
	err := s.db.WithContext(ctx).Order("priority asc, id asc").Find(&out).Error
	return out, err
}

func (s *GormStore) CountSources(ctx context.Context) (int64, error) {
	var n int64
	err := s.db.WithContext(ctx).Model(&models.SourceConfig{}).Count(&n).Error
	return n, err
}

// --- RawInfoStore ---

func (s *GormStore) GetProjectInfo(ctx context.Context, id string) (*models.ProjectInfo, error) {
	var rec models.ProjectInfo
	if err := s.db.WithContext(ctx).First(&rec, "id = ?", id).Error; err != nil {
		return nil, translate(err)
	}
	return &rec, nil
}

func (s *GormStore) PutProjectInfo(ctx context.Context, rec *models.ProjectInfo) error {
	return s.db.WithContext(ctx).Save(rec).Error
}

func (s *GormStore) QueryProjectInfoBySource(ctx context.Context, source string) ([]*models.ProjectInfo, error) {
	var out []*models.ProjectInfo
	err := s.db.WithContext(ctx).Where("source = ?", source).Order("collected_at desc").Find(&out).Error
	return out, err
}

func (s *GormStore) QueryProjectInfoByStatus(ctx context.Context, status models.ProcessedStatus) ([]*models.ProjectInfo, error) {
	var out []*models.ProjectInfo
	err := s.db.WithContext(ctx).Where("processed_status = ?", status).Order("collected_at desc").Find(&out).Error
	return out, err
}

func (s *GormStore) ScanProjectInfo(ctx context.Context, limit int) ([]*models.ProjectInfo, error) {
	var out []*models.ProjectInfo
	q := s.db.WithContext(ctx).Order("collected_at desc")
	if limit > 0 {
		q = q.Limit(limit)
	}
	err := q.Find(&out).Error
	return out, err
}

func (s *GormStore) GetMarketInfo(ctx context.Context, id string) (*models.MarketInfo, error) {
	var rec models.MarketInfo
	if err := s.db.WithContext(ctx).First(&rec, "id = ?", id).Error; err != nil {
		return nil, translate(err)
	}
	return &rec, nil
}

func (s *GormStore) PutMarketInfo(ctx context.Context, rec *models.MarketInfo) error {
	return s.db.WithContext(ctx).Save(rec).Error
}

func (s *GormStore) QueryMarketInfoBySource(ctx context.Context, source string) ([]*models.MarketInfo, error) {
	var out []*models.MarketInfo
	err := s.db.WithContext(ctx).Where("source = ?", source).Order("collected_at desc").Find(&out).Error
	return out, err
}

func (s *GormStore) QueryMarketInfoByStatus(ctx context.Context, status models.ProcessedStatus) ([]*models.MarketInfo, error) {
	var out []*models.MarketInfo
	err := s.db.WithContext(ctx).Where("processed_status = ?", status).Order("collected_at desc").Find(&out).Error
	return out, err
}

func (s *GormStore) ScanMarketInfo(ctx context.Context, limit int) ([]*models.MarketInfo, error) {
	var out []*models.MarketInfo
	q := s.db.WithContext(ctx).Order("collected_at desc")
	if limit > 0 {
		q = q.Limit(limit)
	}
	err := q.Find(&out).Error
	return out, err
}

func (s *GormStore) PruneExpiredMarketInfo(ctx context.Context) (int64, error) {
	res := s.db.WithContext(ctx).Where("expires_at <> ? AND expires_at < ?", time.Time{}, time.Now().UTC()).
		Delete(&models.MarketInfo{})
	return res.RowsAffected, res.Error
}

// --- ProjectStore ---

func (s *GormStore) GetProject(ctx context.Context, id string) (*models.Project, error) {
	var p models.Project
	if err := s.db.WithContext(ctx).First(&p, "id = ?", id).Error; err != nil {
		return nil, translate(err)
	}
	return &p, nil
}

func (s *GormStore) PutProject(ctx context.Context, p *models.Project) error {
	return s.db.WithContext(ctx).Save(p).Error
}

func (s *GormStore) UpdateProject(ctx context.Context, id string, fields map[string]any) (*models.Project, error) {
	// Read-modify-write: last write wins, same as every other mutation path.
	p, err := s.GetProject(ctx, id)
	if err != nil {
		return nil, err
	}
	p.ApplyFields(fields)
	if err := s.PutProject(ctx, p); err != nil {
		return nil, err
	}
	return p, nil
}

func (s *GormStore) QueryProjectsByCategory(ctx context.Context, cat models.ProjectCategory) ([]*models.Project, error) {
	var out []*models.Project
	err := s.db.WithContext(ctx).Where("category = ?", cat).Order("id asc").Find(&out).Error
	return out, err
}

func (s *GormStore) ListProjects(ctx context.Context) ([]*models.Project, error) {
	var out []*models.Project
	err := s.db.WithContext(ctx).Order("id asc").Find(&out).Error
	return out, err
}

func translate(err error) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return ErrNotFound
	}
	return err
}
