package project

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"

	"github.com/aleck31/crypto-dashboard/internal/models"
	"github.com/aleck31/crypto-dashboard/internal/store"
)

// Engine applies ProjectOperations to the entity store. Operations run in
// emission order; a missing target degrades to a warning no-op, never a
// fabricated entity.
type Engine struct {
	projects store.ProjectStore
	now      func() time.Time
}

// NewEngine creates a mutation engine over the given project store.
func NewEngine(projects store.ProjectStore) *Engine {
	return &Engine{projects: projects, now: func() time.Time { return time.Now().UTC() }}
}

// Apply executes the operations in order and returns how many were applied
// (warning no-ops count as applied; storage errors abort).
func (e *Engine) Apply(ctx context.Context, ops []models.ProjectOperation) (int, error) {
	for i, op := range ops {
		if err := e.applyOne(ctx, op); err != nil {
			return i, fmt.Errorf("operation %d (%s on %s) failed: %w", i, op.Type, op.ProjectID, err)
		}
	}
	return len(ops), nil
}

func (e *Engine) applyOne(ctx context.Context, op models.ProjectOperation) error {
	switch op.Type {
	case models.OpCreate:
		return e.create(ctx, op)
	case models.OpUpdate:
		return e.update(ctx, op)
	case models.OpAddEvent:
		return e.addEvent(ctx, op)
	case models.OpAddRiskFlag:
		return e.addFlag(ctx, op, true)
	case models.OpAddOpportunityFlag:
		return e.addFlag(ctx, op, false)
	default:
		log.Printf("Engine: unknown operation type %q for project %s, skipping", op.Type, op.ProjectID)
		return nil
	}
}

// create inserts a new project with defaults. If the id is already taken it
// degrades to a field-level update of the descriptive fields only; creation
// is best-effort idempotent.
func (e *Engine) create(ctx context.Context, op models.ProjectOperation) error {
	existing, err := e.projects.GetProject(ctx, op.ProjectID)
	if err == nil {
		log.Printf("Engine: project %s already exists, degrading create to descriptive update", op.ProjectID)
		fields := make(map[string]any)
		for _, key := range []string{"description", "logo_url", "website", "twitter", "telegram", "discord", "github"} {
			if v, ok := op.Fields[key]; ok {
				fields[key] = v
			}
		}
		existing.ApplyFields(fields)
		existing.Status = DeriveStatus(existing.HealthScore, existing.RiskFlags, existing.OpportunityFlags)
		return e.projects.PutProject(ctx, existing)
	}
	if err != store.ErrNotFound {
		return fmt.Errorf("failed to check for existing project %s: %w", op.ProjectID, err)
	}

	now := e.now()
	p := &models.Project{
		ID:            op.ProjectID,
		Category:      models.CategoryOther,
		HealthScore:   DefaultHealthScore,
		Status:        models.StatusNormal,
		NewsSentiment: models.SentimentNeutral,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	p.ApplyFields(op.Fields)
	p.Status = DeriveStatus(p.HealthScore, p.RiskFlags, p.OpportunityFlags)
	return e.projects.PutProject(ctx, p)
}

// update merges the supplied fields into an existing project. A missing
// target is a warning, not an error.
func (e *Engine) update(ctx context.Context, op models.ProjectOperation) error {
	p, err := e.projects.GetProject(ctx, op.ProjectID)
	if err == store.ErrNotFound {
		log.Printf("Engine: update targets unknown project %s, skipping", op.ProjectID)
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to load project %s: %w", op.ProjectID, err)
	}

	p.ApplyFields(op.Fields)
	p.Status = DeriveStatus(p.HealthScore, p.RiskFlags, p.OpportunityFlags)
	return e.projects.PutProject(ctx, p)
}

// addEvent prepends a new event and truncates history to the newest
// MaxRecentEvents entries.
func (e *Engine) addEvent(ctx context.Context, op models.ProjectOperation) error {
	p, err := e.projects.GetProject(ctx, op.ProjectID)
	if err == store.ErrNotFound {
		log.Printf("Engine: add_event targets unknown project %s, skipping", op.ProjectID)
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to load project %s: %w", op.ProjectID, err)
	}
	if op.Event == nil {
		log.Printf("Engine: add_event for %s has no event payload, skipping", op.ProjectID)
		return nil
	}

	event := *op.Event
	event.ID = uuid.New().String()
	if event.Timestamp.IsZero() {
		event.Timestamp = e.now()
	}

	p.RecentEvents = append([]models.ProjectEvent{event}, p.RecentEvents...)
	if len(p.RecentEvents) > models.MaxRecentEvents {
		p.RecentEvents = p.RecentEvents[:models.MaxRecentEvents]
	}
	p.UpdatedAt = e.now()
	return e.projects.PutProject(ctx, p)
}

// addFlag prepends a risk or opportunity flag unless an identical
// {type, description} flag already exists.
func (e *Engine) addFlag(ctx context.Context, op models.ProjectOperation, risk bool) error {
	p, err := e.projects.GetProject(ctx, op.ProjectID)
	if err == store.ErrNotFound {
		log.Printf("Engine: %s targets unknown project %s, skipping", op.Type, op.ProjectID)
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to load project %s: %w", op.ProjectID, err)
	}
	if op.Flag == nil {
		log.Printf("Engine: %s for %s has no flag payload, skipping", op.Type, op.ProjectID)
		return nil
	}

	flag := *op.Flag
	if flag.CreatedAt.IsZero() {
		flag.CreatedAt = e.now()
	}

	target := &p.RiskFlags
	if !risk {
		target = &p.OpportunityFlags
	}
	for _, existing := range *target {
		if existing.Type == flag.Type && existing.Description == flag.Description {
			// Same content, regardless of when: suppress the duplicate.
			return nil
		}
	}

	*target = append([]models.Flag{flag}, *target...)
	p.Status = DeriveStatus(p.HealthScore, p.RiskFlags, p.OpportunityFlags)
	p.UpdatedAt = e.now()
	return e.projects.PutProject(ctx, p)
}
