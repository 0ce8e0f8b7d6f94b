package store

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/aleck31/crypto-dashboard/internal/models"
)

// MemoryStore keeps everything in process memory guarded by a single
// RWMutex. It backs tests and local runs without a database.
type MemoryStore struct {
	mu       sync.RWMutex
	sources  map[string]models.SourceConfig
	projects map[string]models.Project
	projInfo map[string]models.ProjectInfo
	mktInfo  map[string]models.MarketInfo
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		sources:  make(map[string]models.SourceConfig),
		projects: make(map[string]models.Project),
		projInfo: make(map[string]models.ProjectInfo),
		mktInfo:  make(map[string]models.MarketInfo),
	}
}

var _ Store = (*MemoryStore)(nil)

// --- SourceStore ---

func (s *MemoryStore) GetSource(_ context.Context, id string) (*models.SourceConfig, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	cfg, ok := s.sources[id]
	if !ok {
		return nil, ErrNotFound
	}
	return &cfg, nil
}

func (s *MemoryStore) PutSource(_ context.Context, cfg *models.SourceConfig) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sources[cfg.ID] = *cfg
	return nil
}

func (s *MemoryStore) DeleteSource(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.sources[id]; !ok {
		return ErrNotFound
	}
	delete(s.sources, id)
	return nil
}

func (s *MemoryStore) QuerySourcesByType(_ context.Context, t models.SourceType) ([]*models.SourceConfig, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []*models.SourceConfig
	for _, cfg := range s.sources {
		if cfg.Type == t {
			c := cfg
			out = append(out, &c)
		}
	}
	sortSources(out)
	return out, nil
}

func (s *MemoryStore) QueryEnabledSources(_ context.Context) ([]*models.SourceConfig, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []*models.SourceConfig
	for _, cfg := range s.sources {
		if cfg.Enabled {
			c := cfg
			out = append(out, &c)
		}
	}
	sortSources(out)
	return out, nil
}

func (s *MemoryStore) ListSources(_ context.Context) ([]*models.SourceConfig, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*models.SourceConfig, 0, len(s.sources))
	for _, cfg := range s.sources {
		c := cfg
		out = append(out, &c)
	}
	sortSources(out)
	return out, nil
}

func (s *MemoryStore) CountSources(_ context.Context) (int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return int64(len(s.sources)), nil
}

func sortSources(list []*models.SourceConfig) {
	sort.Slice(list, func(i, j int) bool {
		if list[i].Priority != list[j].Priority {
			return list[i].Priority < list[j].Priority
		}
		return list[i].ID < list[j].ID
	})
}

// --- RawInfoStore ---

func (s *MemoryStore) GetProjectInfo(_ context.Context, id string) (*models.ProjectInfo, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	rec, ok := s.projInfo[id]
	if !ok {
		return nil, ErrNotFound
	}
	return &rec, nil
}

func (s *MemoryStore) PutProjectInfo(_ context.Context, rec *models.ProjectInfo) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.projInfo[rec.ID] = *rec
	return nil
}

func (s *MemoryStore) QueryProjectInfoBySource(_ context.Context, source string) ([]*models.ProjectInfo, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []*models.ProjectInfo
	for _, rec := range s.projInfo {
		if rec.Source == source {
			r := rec
			out = append(out, &r)
		}
	}
	sortProjectInfo(out)
	return out, nil
}

func (s *MemoryStore) QueryProjectInfoByStatus(_ context.Context, status models.ProcessedStatus) ([]*models.ProjectInfo, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []*models.ProjectInfo
	for _, rec := range s.projInfo {
		if rec.ProcessedStatus == status {
			r := rec
			out = append(out, &r)
		}
	}
	sortProjectInfo(out)
	return out, nil
}

func (s *MemoryStore) ScanProjectInfo(_ context.Context, limit int) ([]*models.ProjectInfo, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []*models.ProjectInfo
	for _, rec := range s.projInfo {
		r := rec
		out = append(out, &r)
	}
	sortProjectInfo(out)
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func sortProjectInfo(list []*models.ProjectInfo) {
	sort.Slice(list, func(i, j int) bool {
		if !list[i].CollectedAt.Equal(list[j].CollectedAt) {
			return list[i].CollectedAt.After(list[j].CollectedAt)
		}
		return list[i].ID < list[j].ID
	})
}

func (s *MemoryStore) GetMarketInfo(_ context.Context, id string) (*models.MarketInfo, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	rec, ok := s.mktInfo[id]
	if !ok {
		return nil, ErrNotFound
	}
	return &rec, nil
}

func (s *MemoryStore) PutMarketInfo(_ context.Context, rec *models.MarketInfo) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.mktInfo[rec.ID] = *rec
	return nil
}

func (s *MemoryStore) QueryMarketInfoBySource(_ context.Context, source string) ([]*models.MarketInfo, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []*models.MarketInfo
	for _, rec := range s.mktInfo {
		if rec.Source == source {
			r := rec
			out = append(out, &r)
		}
	}
	sortMarketInfo(out)
	return out, nil
}

func (s *MemoryStore) QueryMarketInfoByStatus(_ context.Context, status models.ProcessedStatus) ([]*models.MarketInfo, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []*models.MarketInfo
	for _, rec := range s.mktInfo {
		if rec.ProcessedStatus == status {
			r := rec
			out = append(out, &r)
		}
	}
	sortMarketInfo(out)
	return out, nil
}

func (s *MemoryStore) ScanMarketInfo(_ context.Context, limit int) ([]*models.MarketInfo, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []*models.MarketInfo
	for _, rec := range s.mktInfo {
		r := rec
		out = append(out, &r)
	}
	sortMarketInfo(out)
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (s *MemoryStore) PruneExpiredMarketInfo(_ context.Context) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := time.Now().UTC()
	var removed int64
	for id, rec := range s.mktInfo {
		if !rec.ExpiresAt.IsZero() && rec.ExpiresAt.Before(now) {
			delete(s.mktInfo, id)
			removed++
		}
	}
	return removed, nil
}

func sortMarketInfo(list []*models.MarketInfo) {
	sort.Slice(list, func(i, j int) bool {
		if !list[i].CollectedAt.Equal(list[j].CollectedAt) {
			return list[i].CollectedAt.After(list[j].CollectedAt)
		}
		return list[i].ID < list[j].ID
	})
}

// --- ProjectStore ---

func (s *MemoryStore) GetProject(_ context.Context, id string) (*models.Project, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	p, ok := s.projects[id]
	if !ok {
		return nil, ErrNotFound
	}
	return &p, nil
}

func (s *MemoryStore) PutProject(_ context.Context, p *models.Project) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.projects[p.ID] = *p
	return nil
}

func (s *MemoryStore) UpdateProject(_ context.Context, id string, fields map[string]any) (*models.Project, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.projects[id]
	if !ok {
		return nil, ErrNotFound
	}
	p.ApplyFields(fields)
	s.projects[id] = p
	return &p, nil
}

func (s *MemoryStore) QueryProjectsByCategory(_ context.Context, cat models.ProjectCategory) ([]*models.Project, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []*models.Project
	for _, p := range s.projects {
		if p.Category == cat {
			c := p
			out = append(out, &c)
		}
	}
	sortProjects(out)
	return out, nil
}

func (s *MemoryStore) ListProjects(_ context.Context) ([]*models.Project, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*models.Project, 0, len(s.projects))
	for _, p := range s.projects {
		c := p
		out = append(out, &c)
	}
	sortProjects(out)
	return out, nil
}

func sortProjects(list []*models.Project) {
	sort.Slice(list, func(i, j int) bool { return list[i].ID < list[j].ID })
}
