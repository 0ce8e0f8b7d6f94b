package resolution

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aleck31/crypto-dashboard/internal/llm"
	"github.com/aleck31/crypto-dashboard/internal/models"
	"github.com/aleck31/crypto-dashboard/internal/project"
	"github.com/aleck31/crypto-dashboard/internal/queue"
	"github.com/aleck31/crypto-dashboard/internal/store"
)

// --- Mock LLM Client ---

type MockLLMClient struct {
	CreateToolMessageFunc func(ctx context.Context, req llm.Request) (*llm.Response, error)
	Calls                 int
}

func (m *MockLLMClient) CreateToolMessage(ctx context.Context, req llm.Request) (*llm.Response, error) {
	m.Calls++
	if m.CreateToolMessageFunc != nil {
		return m.CreateToolMessageFunc(ctx, req)
	}
	return nil, errors.New("CreateToolMessageFunc not implemented")
}

// scriptedClient plays back one response per round, repeating the last one
// when the script runs out.
func scriptedClient(responses ...*llm.Response) *MockLLMClient {
	m := &MockLLMClient{}
	m.CreateToolMessageFunc = func(_ context.Context, _ llm.Request) (*llm.Response, error) {
		idx := m.Calls - 1
		if idx >= len(responses) {
			idx = len(responses) - 1
		}
		return responses[idx], nil
	}
	return m
}

func toolCallResponse(calls ...llm.ToolCall) *llm.Response {
	blocks := make([]llm.ContentBlock, 0, len(calls))
	for _, c := range calls {
		blocks = append(blocks, llm.ContentBlock{Type: llm.BlockToolUse, ID: c.ID, Name: c.Name, Input: c.Input})
	}
	return &llm.Response{Content: blocks, ToolCalls: calls, StopReason: "tool_use"}
}

func newTestResolver(client llm.Client) (*Resolver, *store.MemoryStore) {
	st := store.NewMemoryStore()
	r := NewResolver(client, st, st, project.NewEngine(st))
	r.now = func() time.Time { return time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC) }
	return r, st
}

func pendingMarketInfo(t *testing.T, st store.RawInfoStore, id, title string) {
	t.Helper()
	require.NoError(t, st.PutMarketInfo(context.Background(), &models.MarketInfo{
		ID:              id,
		Source:          "coindesk",
		Title:           title,
		Link:            "https://example.com/story",
		ProcessedStatus: models.StatusPending,
		CollectedAt:     time.Now().UTC(),
	}))
}

func TestResolveMarketInfoHackStory(t *testing.T) {
	client := scriptedClient(toolCallResponse(
		llm.ToolCall{ID: "t1", Name: ToolAddRiskFlag, Input: map[string]any{
			"project_id":  "lendhub",
			"flag_type":   "security_breach",
			"description": "Protocol exploited for $80M",
			"severity":    "critical",
		}},
		llm.ToolCall{ID: "t2", Name: ToolReportAnalysis, Input: map[string]any{
			"sentiment":  "negative",
			"event_type": "security",
			"identified_projects": []any{
				map[string]any{"project_id": "lendhub", "confidence": 0.95},
				map[string]any{"project_id": "maybe-related", "confidence": 0.4},
			},
			"key_insights": []any{"Exploit drained the main pool"},
			"reasoning":    "Headline names LendHub explicitly",
		}},
	))
	r, st := newTestResolver(client)
	ctx := context.Background()

	require.NoError(t, st.PutProject(ctx, &models.Project{
		ID: "lendhub", Name: "LendHub", Category: models.CategoryDeFi,
		HealthScore: 70, Status: models.StatusNormal,
	}))
	pendingMarketInfo(t, st, "market:hack1", "LendHub exploited for $80M")

	err := r.HandleMessage(ctx, queue.Message{RecordType: models.RecordTypeMarketInfo, RecordID: "market:hack1", Deliveries: 1})
	require.NoError(t, err)
	assert.Equal(t, 1, client.Calls)

	rec, err := st.GetMarketInfo(ctx, "market:hack1")
	require.NoError(t, err)
	assert.Equal(t, models.StatusProcessed, rec.ProcessedStatus)
	require.NotNil(t, rec.ProcessedAt)
	assert.Equal(t, "negative", rec.Sentiment)
	assert.Equal(t, "security", rec.EventType)
	// Low-confidence matches are filtered out.
	assert.Equal(t, []string{"lendhub"}, rec.RelatedProjects)
	// 50 base + 30 security + 15 negative + 5 (one identified, capped bonus)
	// + 5 (one flag op), clamped to 100.
	assert.Equal(t, 100, rec.Importance)
	assert.Equal(t, "Headline names LendHub explicitly", rec.Reasoning)

	p, err := st.GetProject(ctx, "lendhub")
	require.NoError(t, err)
	require.Len(t, p.RiskFlags, 1)
	assert.Equal(t, "critical", p.RiskFlags[0].Severity)
	assert.Equal(t, models.StatusDanger, p.Status)
}

func TestResolveProjectInfoCreatesProject(t *testing.T) {
	client := scriptedClient(
		toolCallResponse(llm.ToolCall{ID: "t1", Name: ToolCreateProject, Input: map[string]any{
			"project_id":  "uniswap",
			"name":        "Uniswap",
			"category":    "defi",
			"description": "Decentralized exchange",
		}}),
		toolCallResponse(llm.ToolCall{ID: "t2", Name: ToolReportAnalysis, Input: map[string]any{
			"sentiment": "neutral",
			"reasoning": "New protocol listing with TVL data",
		}}),
	)
	r, st := newTestResolver(client)
	ctx := context.Background()

	require.NoError(t, st.PutProjectInfo(ctx, &models.ProjectInfo{
		ID:              "defillama:uniswap",
		Source:          "defillama",
		SourceID:        "uniswap",
		Attributes:      map[string]any{"name": "Uniswap", "tvl": 4.2e9},
		ProcessedStatus: models.StatusPending,
		CollectedAt:     time.Now().UTC(),
	}))

	err := r.HandleMessage(ctx, queue.Message{RecordType: models.RecordTypeProjectInfo, RecordID: "defillama:uniswap", Deliveries: 1})
	require.NoError(t, err)
	assert.Equal(t, 2, client.Calls)

	rec, err := st.GetProjectInfo(ctx, "defillama:uniswap")
	require.NoError(t, err)
	assert.Equal(t, models.StatusProcessed, rec.ProcessedStatus)
	assert.Equal(t, "uniswap", rec.ProjectID)
	assert.Equal(t, "New protocol listing with TVL data", rec.Reasoning)

	p, err := st.GetProject(ctx, "uniswap")
	require.NoError(t, err)
	assert.Equal(t, "Uniswap", p.Name)
	assert.Equal(t, models.CategoryDeFi, p.Category)
}

func TestLoopStopsAfterMaxRounds(t *testing.T) {
	// The model keeps mutating and never reports: the loop soft-finishes
	// after maxRounds with everything accumulated.
	client := scriptedClient(toolCallResponse(llm.ToolCall{
		ID: "t1", Name: ToolUpdateProject,
		Input: map[string]any{"project_id": "uniswap", "description": "still going"},
	}))
	r, st := newTestResolver(client)
	ctx := context.Background()

	require.NoError(t, st.PutProject(ctx, &models.Project{ID: "uniswap", Name: "Uniswap", HealthScore: 70}))
	pendingMarketInfo(t, st, "market:loop", "Uniswap news")

	err := r.HandleMessage(ctx, queue.Message{RecordType: models.RecordTypeMarketInfo, RecordID: "market:loop", Deliveries: 1})
	require.NoError(t, err)
	assert.Equal(t, maxRounds, client.Calls)

	rec, err := st.GetMarketInfo(ctx, "market:loop")
	require.NoError(t, err)
	assert.Equal(t, models.StatusProcessed, rec.ProcessedStatus)
	// No report and no flag ops, so the base score stands.
	assert.Equal(t, 50, rec.Importance)
}

func TestLoopStopsOnNoToolCalls(t *testing.T) {
	client := scriptedClient(&llm.Response{
		Content:    []llm.ContentBlock{{Type: llm.BlockText, Text: "Nothing actionable here."}},
		Text:       "Nothing actionable here.",
		StopReason: "end_turn",
	})
	r, st := newTestResolver(client)
	ctx := context.Background()
	pendingMarketInfo(t, st, "market:quiet", "Quiet day in crypto")

	err := r.HandleMessage(ctx, queue.Message{RecordType: models.RecordTypeMarketInfo, RecordID: "market:quiet", Deliveries: 1})
	require.NoError(t, err)
	assert.Equal(t, 1, client.Calls)

	rec, err := st.GetMarketInfo(ctx, "market:quiet")
	require.NoError(t, err)
	assert.Equal(t, models.StatusProcessed, rec.ProcessedStatus)
	assert.Empty(t, rec.RelatedProjects)
	assert.Equal(t, 50, rec.Importance)
}

func TestProcessedRecordIsSkipped(t *testing.T) {
	client := &MockLLMClient{}
	r, st := newTestResolver(client)
	ctx := context.Background()

	done := time.Now().UTC()
	require.NoError(t, st.PutMarketInfo(ctx, &models.MarketInfo{
		ID:              "market:done",
		Title:           "Already handled",
		ProcessedStatus: models.StatusProcessed,
		ProcessedAt:     &done,
	}))

	err := r.HandleMessage(ctx, queue.Message{RecordType: models.RecordTypeMarketInfo, RecordID: "market:done", Deliveries: 2})
	require.NoError(t, err)
	assert.Zero(t, client.Calls)
}

func TestLLMFailureMarksRecordFailed(t *testing.T) {
	client := &MockLLMClient{
		CreateToolMessageFunc: func(_ context.Context, _ llm.Request) (*llm.Response, error) {
			return nil, errors.New("api unavailable")
		},
	}
	r, st := newTestResolver(client)
	ctx := context.Background()
	pendingMarketInfo(t, st, "market:err", "Some story")

	err := r.HandleMessage(ctx, queue.Message{RecordType: models.RecordTypeMarketInfo, RecordID: "market:err", Deliveries: 1})
	require.Error(t, err)

	rec, err := st.GetMarketInfo(ctx, "market:err")
	require.NoError(t, err)
	assert.Equal(t, models.StatusFailed, rec.ProcessedStatus)
	assert.Contains(t, rec.ProcessErr, "api unavailable")
	assert.Nil(t, rec.ProcessedAt)
}

func TestMissingRecordIsDropped(t *testing.T) {
	client := &MockLLMClient{}
	r, _ := newTestResolver(client)

	err := r.HandleMessage(context.Background(), queue.Message{RecordType: models.RecordTypeMarketInfo, RecordID: "market:gone", Deliveries: 1})
	assert.NoError(t, err)
	assert.Zero(t, client.Calls)
}

func TestUnknownRecordTypeIsDropped(t *testing.T) {
	client := &MockLLMClient{}
	r, _ := newTestResolver(client)

	err := r.HandleMessage(context.Background(), queue.Message{RecordType: "bogus", RecordID: "x", Deliveries: 1})
	assert.NoError(t, err)
	assert.Zero(t, client.Calls)
}

func TestMalformedToolInputFailsRecord(t *testing.T) {
	client := scriptedClient(toolCallResponse(llm.ToolCall{
		ID: "t1", Name: ToolAddRiskFlag,
		Input: map[string]any{"project_id": "uniswap"}, // no flag_type/severity
	}))
	r, st := newTestResolver(client)
	ctx := context.Background()
	pendingMarketInfo(t, st, "market:bad", "Some story")

	err := r.HandleMessage(ctx, queue.Message{RecordType: models.RecordTypeMarketInfo, RecordID: "market:bad", Deliveries: 1})
	require.Error(t, err)

	rec, err := st.GetMarketInfo(ctx, "market:bad")
	require.NoError(t, err)
	assert.Equal(t, models.StatusFailed, rec.ProcessedStatus)
}

func TestComputeImportance(t *testing.T) {
	tests := []struct {
		name   string
		report *models.AnalysisReport
		ops    []models.ProjectOperation
		want   int
	}{
		{"no report, no ops", nil, nil, 50},
		{"regulatory negative", &models.AnalysisReport{EventType: "regulatory", Sentiment: "negative"}, nil, 90},
		{"funding positive", &models.AnalysisReport{EventType: "funding", Sentiment: "positive"}, nil, 75},
		{"legal matches funding weight", &models.AnalysisReport{EventType: "legal"}, nil, 70},
		{
			"identified project bonus caps at 15",
			&models.AnalysisReport{IdentifiedProjects: []models.IdentifiedProject{
				{ProjectID: "a"}, {ProjectID: "b"}, {ProjectID: "c"}, {ProjectID: "d"},
			}},
			nil,
			65,
		},
		{
			"flag ops add five each",
			nil,
			[]models.ProjectOperation{
				{Type: models.OpAddRiskFlag},
				{Type: models.OpAddOpportunityFlag},
				{Type: models.OpUpdate}, // not a flag op
			},
			60,
		},
		{
			"clamped at 100",
			&models.AnalysisReport{EventType: "security", Sentiment: "negative", IdentifiedProjects: []models.IdentifiedProject{{ProjectID: "a"}, {ProjectID: "b"}, {ProjectID: "c"}}},
			[]models.ProjectOperation{{Type: models.OpAddRiskFlag}},
			100,
		},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, computeImportance(tc.report, tc.ops))
		})
	}
}

func TestToolConversion(t *testing.T) {
	t.Run("create requires name", func(t *testing.T) {
		_, err := operationFromCall(llm.ToolCall{Name: ToolCreateProject, Input: map[string]any{"project_id": "x"}})
		assert.Error(t, err)
	})

	t.Run("missing project_id", func(t *testing.T) {
		_, err := operationFromCall(llm.ToolCall{Name: ToolUpdateProject, Input: map[string]any{"name": "X"}})
		assert.Error(t, err)
	})

	t.Run("update carries fields without project_id", func(t *testing.T) {
		op, err := operationFromCall(llm.ToolCall{Name: ToolUpdateProject, Input: map[string]any{
			"project_id": "uniswap", "health_score": 90.0,
		}})
		require.NoError(t, err)
		assert.Equal(t, models.OpUpdate, op.Type)
		assert.Equal(t, map[string]any{"health_score": 90.0}, op.Fields)
	})

	t.Run("opportunity importance maps to severity", func(t *testing.T) {
		op, err := operationFromCall(llm.ToolCall{Name: ToolAddOpportunityFlag, Input: map[string]any{
			"project_id": "arb", "flag_type": "growth", "importance": "high", "description": "TVL up",
		}})
		require.NoError(t, err)
		assert.Equal(t, models.OpAddOpportunityFlag, op.Type)
		require.NotNil(t, op.Flag)
		assert.Equal(t, "high", op.Flag.Severity)
	})

	t.Run("unknown tool", func(t *testing.T) {
		_, err := operationFromCall(llm.ToolCall{Name: "destroy_everything", Input: map[string]any{"project_id": "x"}})
		assert.Error(t, err)
	})
}
