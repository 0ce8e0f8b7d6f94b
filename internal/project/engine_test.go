package project

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aleck31/crypto-dashboard/internal/models"
	"github.com/aleck31/crypto-dashboard/internal/store"
)

func newTestEngine() (*Engine, store.ProjectStore) {
	st := store.NewMemoryStore()
	e := NewEngine(st)
	e.now = func() time.Time { return time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC) }
	return e, st
}

func TestCreateProject(t *testing.T) {
	e, st := newTestEngine()
	ctx := context.Background()

	applied, err := e.Apply(ctx, []models.ProjectOperation{{
		Type:      models.OpCreate,
		ProjectID: "uniswap",
		Fields: map[string]any{
			"name":     "Uniswap",
			"category": "defi",
			"website":  "https://uniswap.org",
		},
	}})
	require.NoError(t, err)
	assert.Equal(t, 1, applied)

	p, err := st.GetProject(ctx, "uniswap")
	require.NoError(t, err)
	assert.Equal(t, "Uniswap", p.Name)
	assert.Equal(t, models.CategoryDeFi, p.Category)
	assert.Equal(t, DefaultHealthScore, p.HealthScore)
	assert.Equal(t, models.StatusNormal, p.Status)
	assert.Equal(t, models.SentimentNeutral, p.NewsSentiment)
}

func TestCreateOnExistingDegradesToDescriptiveUpdate(t *testing.T) {
	e, st := newTestEngine()
	ctx := context.Background()

	require.NoError(t, st.PutProject(ctx, &models.Project{
		ID:          "uniswap",
		Name:        "Uniswap",
		Category:    models.CategoryDeFi,
		HealthScore: 85,
	}))

	_, err := e.Apply(ctx, []models.ProjectOperation{{
		Type:      models.OpCreate,
		ProjectID: "uniswap",
		Fields: map[string]any{
			"name":         "Uniswap V4",   // non-descriptive, must not apply
			"health_score": 10,             // non-descriptive, must not apply
			"description":  "Leading DEX",  // descriptive, applies
			"website":      "https://v4.uniswap.org",
		},
	}})
	require.NoError(t, err)

	p, err := st.GetProject(ctx, "uniswap")
	require.NoError(t, err)
	assert.Equal(t, "Uniswap", p.Name)
	assert.Equal(t, 85, p.HealthScore)
	assert.Equal(t, "Leading DEX", p.Description)
	assert.Equal(t, "https://v4.uniswap.org", p.Website)
}

func TestUpdateUnknownProjectIsNoOp(t *testing.T) {
	e, st := newTestEngine()
	ctx := context.Background()

	applied, err := e.Apply(ctx, []models.ProjectOperation{{
		Type:      models.OpUpdate,
		ProjectID: "ghost",
		Fields:    map[string]any{"name": "Ghost"},
	}})
	require.NoError(t, err)
	assert.Equal(t, 1, applied)

	_, err = st.GetProject(ctx, "ghost")
	assert.Equal(t, store.ErrNotFound, err)
}

func TestUpdateRederivesStatus(t *testing.T) {
	e, st := newTestEngine()
	ctx := context.Background()

	require.NoError(t, st.PutProject(ctx, &models.Project{
		ID: "aave", Name: "Aave", HealthScore: 70, Status: models.StatusNormal,
	}))

	_, err := e.Apply(ctx, []models.ProjectOperation{{
		Type:      models.OpUpdate,
		ProjectID: "aave",
		Fields:    map[string]any{"health_score": 25},
	}})
	require.NoError(t, err)

	p, err := st.GetProject(ctx, "aave")
	require.NoError(t, err)
	assert.Equal(t, 25, p.HealthScore)
	assert.Equal(t, models.StatusDanger, p.Status)
}

func TestAddEventPrependsAndTruncates(t *testing.T) {
	e, st := newTestEngine()
	ctx := context.Background()

	require.NoError(t, st.PutProject(ctx, &models.Project{ID: "sol", Name: "Solana", HealthScore: 70}))

	for i := 0; i < models.MaxRecentEvents+5; i++ {
		_, err := e.Apply(ctx, []models.ProjectOperation{{
			Type:      models.OpAddEvent,
			ProjectID: "sol",
			Event:     &models.ProjectEvent{EventType: "product", Title: fmt.Sprintf("event %d", i)},
		}})
		require.NoError(t, err)
	}

	p, err := st.GetProject(ctx, "sol")
	require.NoError(t, err)
	require.Len(t, p.RecentEvents, models.MaxRecentEvents)
	// Newest first.
	assert.Equal(t, fmt.Sprintf("event %d", models.MaxRecentEvents+4), p.RecentEvents[0].Title)
	assert.NotEmpty(t, p.RecentEvents[0].ID)
}

func TestAddFlagSuppressesDuplicates(t *testing.T) {
	e, st := newTestEngine()
	ctx := context.Background()

	require.NoError(t, st.PutProject(ctx, &models.Project{ID: "ftx", Name: "FTX", HealthScore: 70}))

	flag := &models.Flag{Type: "security_breach", Description: "Hot wallet drained", Severity: models.SeverityCritical}
	for i := 0; i < 3; i++ {
		_, err := e.Apply(ctx, []models.ProjectOperation{{
			Type:      models.OpAddRiskFlag,
			ProjectID: "ftx",
			Flag:      flag,
		}})
		require.NoError(t, err)
	}

	p, err := st.GetProject(ctx, "ftx")
	require.NoError(t, err)
	assert.Len(t, p.RiskFlags, 1)
	assert.Equal(t, models.StatusDanger, p.Status)

	// Different description is a different flag.
	_, err = e.Apply(ctx, []models.ProjectOperation{{
		Type:      models.OpAddRiskFlag,
		ProjectID: "ftx",
		Flag:      &models.Flag{Type: "security_breach", Description: "Cold wallet drained", Severity: models.SeverityHigh},
	}})
	require.NoError(t, err)

	p, err = st.GetProject(ctx, "ftx")
	require.NoError(t, err)
	assert.Len(t, p.RiskFlags, 2)
}

func TestOpportunityFlagYieldsWatch(t *testing.T) {
	e, st := newTestEngine()
	ctx := context.Background()

	require.NoError(t, st.PutProject(ctx, &models.Project{ID: "arb", Name: "Arbitrum", HealthScore: 70, Status: models.StatusNormal}))

	_, err := e.Apply(ctx, []models.ProjectOperation{{
		Type:      models.OpAddOpportunityFlag,
		ProjectID: "arb",
		Flag:      &models.Flag{Type: "growth", Description: "TVL doubled", Severity: models.SeverityHigh},
	}})
	require.NoError(t, err)

	p, err := st.GetProject(ctx, "arb")
	require.NoError(t, err)
	assert.Equal(t, models.StatusWatch, p.Status)
}

func TestApplyStopsOnStorageError(t *testing.T) {
	e, _ := newTestEngine()
	ctx := context.Background()

	// Unknown targets are no-ops, so a mixed batch applies fully.
	applied, err := e.Apply(ctx, []models.ProjectOperation{
		{Type: models.OpCreate, ProjectID: "one", Fields: map[string]any{"name": "One"}},
		{Type: models.OpAddEvent, ProjectID: "missing", Event: &models.ProjectEvent{EventType: "x", Title: "y"}},
		{Type: models.OpUpdate, ProjectID: "one", Fields: map[string]any{"health_score": 90}},
	})
	require.NoError(t, err)
	assert.Equal(t, 3, applied)
}
