// Package resolution runs raw records through a bounded tool-use LLM loop
// and applies the resulting project operations. Records are resolved
// at-least-once: the processed-status guard makes redelivered messages
// no-ops.
package resolution

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/aleck31/crypto-dashboard/internal/llm"
	"github.com/aleck31/crypto-dashboard/internal/models"
	"github.com/aleck31/crypto-dashboard/internal/project"
	"github.com/aleck31/crypto-dashboard/internal/queue"
	"github.com/aleck31/crypto-dashboard/internal/store"
)

const (
	// maxRounds bounds the tool-use conversation per record.
	maxRounds = 5
	// relatedConfidenceFloor filters identified projects kept on a market
	// record.
	relatedConfidenceFloor = 0.7
)

const systemPrompt = `You are a crypto project analyst. You receive one raw record (project data or a news item) plus the list of currently known projects.

Decide which projects the record concerns, then issue tool calls to keep the project catalog current: create_project for genuinely new projects, update_project for changed fields, add_event for noteworthy timeline events, add_risk_flag / add_opportunity_flag where warranted. Prefer updating an existing project over creating a near-duplicate.

When you have issued all mutations, call report_analysis exactly once with your overall read of the record. Do not write prose replies; communicate through tool calls only.`

// Resolver resolves a single raw record end to end.
type Resolver struct {
	client   llm.Client
	raw      store.RawInfoStore
	projects store.ProjectStore
	engine   *project.Engine
	now      func() time.Time
}

// NewResolver wires a resolver over the given LLM client and stores.
func NewResolver(client llm.Client, raw store.RawInfoStore, projects store.ProjectStore, engine *project.Engine) *Resolver {
	return &Resolver{
		client:   client,
		raw:      raw,
		projects: projects,
		engine:   engine,
		now:      func() time.Time { return time.Now().UTC() },
	}
}

// HandleMessage is the queue handler. A non-nil return means the message
// should be redelivered (or dead-lettered once attempts are exhausted).
func (r *Resolver) HandleMessage(ctx context.Context, msg queue.Message) error {
	log.Printf("Resolver: handling %s %s (delivery %d)", msg.RecordType, msg.RecordID, msg.Deliveries)
	if !queue.ValidRecordType(msg.RecordType) {
		// Unroutable messages would never succeed; drop without error so
		// they are acked instead of cycling to the dead-letter stream.
		log.Printf("Resolver: unknown record type %q for %s, dropping", msg.RecordType, msg.RecordID)
		return nil
	}
	if msg.RecordType == models.RecordTypeProjectInfo {
		return r.resolveProjectInfo(ctx, msg.RecordID)
	}
	return r.resolveMarketInfo(ctx, msg.RecordID)
}

func (r *Resolver) resolveProjectInfo(ctx context.Context, id string) error {
	rec, err := r.raw.GetProjectInfo(ctx, id)
	if err == store.ErrNotFound {
		log.Printf("Resolver: project info %s no longer exists, dropping", id)
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to load project info %s: %w", id, err)
	}
	if rec.ProcessedStatus == models.StatusProcessed {
		log.Printf("Resolver: project info %s already processed, skipping", id)
		return nil
	}

	rec.ProcessedStatus = models.StatusProcessing
	if err := r.raw.PutProjectInfo(ctx, rec); err != nil {
		return fmt.Errorf("failed to mark project info %s processing: %w", id, err)
	}

	out, err := r.runLoop(ctx, projectInfoPrompt(rec))
	if err == nil {
		_, err = r.engine.Apply(ctx, out.ops)
	}
	if err != nil {
		rec.ProcessedStatus = models.StatusFailed
		rec.ProcessErr = err.Error()
		if putErr := r.raw.PutProjectInfo(ctx, rec); putErr != nil {
			log.Printf("Resolver: failed to record failure on %s: %v", id, putErr)
		}
		return fmt.Errorf("resolution of %s failed: %w", id, err)
	}

	now := r.now()
	rec.ProcessedStatus = models.StatusProcessed
	rec.ProcessedAt = &now
	rec.ProcessErr = ""
	rec.ProjectID = touchedProject(out)
	if out.report != nil {
		rec.Reasoning = out.report.Reasoning
	}
	if err := r.raw.PutProjectInfo(ctx, rec); err != nil {
		return fmt.Errorf("failed to mark project info %s processed: %w", id, err)
	}
	log.Printf("Resolver: project info %s processed, %d operations in %d rounds", id, len(out.ops), out.rounds)
	return nil
}

func (r *Resolver) resolveMarketInfo(ctx context.Context, id string) error {
	rec, err := r.raw.GetMarketInfo(ctx, id)
	if err == store.ErrNotFound {
		log.Printf("Resolver: market info %s no longer exists, dropping", id)
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to load market info %s: %w", id, err)
	}
	if rec.ProcessedStatus == models.StatusProcessed {
		log.Printf("Resolver: market info %s already processed, skipping", id)
		return nil
	}

	rec.ProcessedStatus = models.StatusProcessing
	if err := r.raw.PutMarketInfo(ctx, rec); err != nil {
		return fmt.Errorf("failed to mark market info %s processing: %w", id, err)
	}

	out, err := r.runLoop(ctx, marketInfoPrompt(rec))
	if err == nil {
		_, err = r.engine.Apply(ctx, out.ops)
	}
	if err != nil {
		rec.ProcessedStatus = models.StatusFailed
		rec.ProcessErr = err.Error()
		if putErr := r.raw.PutMarketInfo(ctx, rec); putErr != nil {
			log.Printf("Resolver: failed to record failure on %s: %v", id, putErr)
		}
		return fmt.Errorf("resolution of %s failed: %w", id, err)
	}

	now := r.now()
	rec.ProcessedStatus = models.StatusProcessed
	rec.ProcessedAt = &now
	rec.ProcessErr = ""
	if out.report != nil {
		rec.Sentiment = out.report.Sentiment
		rec.EventType = out.report.EventType
		rec.Reasoning = out.report.Reasoning
		rec.RelatedProjects = relatedProjects(out.report)
	}
	rec.Importance = computeImportance(out.report, out.ops)
	if err := r.raw.PutMarketInfo(ctx, rec); err != nil {
		return fmt.Errorf("failed to mark market info %s processed: %w", id, err)
	}
	log.Printf("Resolver: market info %s processed, %d operations in %d rounds, importance %d", id, len(out.ops), out.rounds, rec.Importance)
	return nil
}

// loopResult accumulates the loop's outputs across rounds.
type loopResult struct {
	ops    []models.ProjectOperation
	report *models.AnalysisReport
	rounds int
}

// runLoop drives the tool-use conversation. It terminates on a
// report_analysis call, on a round with no tool calls, or after maxRounds
// rounds; exhaustion is a soft finish that keeps whatever was accumulated.
func (r *Resolver) runLoop(ctx context.Context, recordPrompt string) (*loopResult, error) {
	snapshot, err := r.projectSnapshot(ctx)
	if err != nil {
		return nil, err
	}

	messages := []llm.Message{llm.TextMessage("user", recordPrompt+"\n\nKnown projects:\n"+snapshot)}
	out := &loopResult{}

	for round := 1; round <= maxRounds; round++ {
		out.rounds = round
		resp, err := r.client.CreateToolMessage(ctx, llm.Request{
			System:   systemPrompt,
			Messages: messages,
			Tools:    ToolSchemas(),
		})
		if err != nil {
			return nil, fmt.Errorf("llm round %d failed: %w", round, err)
		}
		if len(resp.ToolCalls) == 0 {
			return out, nil
		}

		messages = append(messages, llm.Message{Role: "assistant", Content: resp.Content})

		var results []llm.ToolResult
		done := false
		for _, call := range resp.ToolCalls {
			if call.Name == ToolReportAnalysis {
				out.report = analysisFromCall(call)
				results = append(results, llm.ToolResult{ToolUseID: call.ID, Content: "analysis recorded"})
				done = true
				continue
			}
			op, err := operationFromCall(call)
			if err != nil {
				return nil, err
			}
			out.ops = append(out.ops, *op)
			results = append(results, llm.ToolResult{ToolUseID: call.ID, Content: "ok"})
		}
		messages = append(messages, llm.ToolResultMessage(results))

		if done {
			return out, nil
		}
	}

	log.Printf("Resolver: loop exhausted %d rounds without report_analysis, finishing with %d operations", maxRounds, len(out.ops))
	return out, nil
}

// projectSnapshot renders the known-project list included in the first turn.
func (r *Resolver) projectSnapshot(ctx context.Context) (string, error) {
	projects, err := r.projects.ListProjects(ctx)
	if err != nil {
		return "", fmt.Errorf("failed to list projects: %w", err)
	}
	if len(projects) == 0 {
		return "(none yet)", nil
	}
	var b strings.Builder
	for _, p := range projects {
		fmt.Fprintf(&b, "- %s | %s | %s\n", p.ID, p.Name, p.Category)
	}
	return b.String(), nil
}

func projectInfoPrompt(rec *models.ProjectInfo) string {
	attrs, _ := json.Marshal(rec.Attributes)
	return fmt.Sprintf("Project data record from source %q (native id %q), collected %s.\nAttributes: %s",
		rec.Source, rec.SourceID, rec.CollectedAt.Format(time.RFC3339), attrs)
}

func marketInfoPrompt(rec *models.MarketInfo) string {
	attrs, _ := json.Marshal(rec.Attributes)
	return fmt.Sprintf("News/market record from source %q, collected %s.\nTitle: %s\nLink: %s\nAttributes: %s",
		rec.Source, rec.CollectedAt.Format(time.RFC3339), rec.Title, rec.Link, attrs)
}

// touchedProject picks the project id recorded on a resolved ProjectInfo:
// the first mutated project, falling back to the report's strongest match.
func touchedProject(out *loopResult) string {
	for _, op := range out.ops {
		if op.ProjectID != "" {
			return op.ProjectID
		}
	}
	if out.report != nil {
		best := ""
		conf := 0.0
		for _, ip := range out.report.IdentifiedProjects {
			if ip.Confidence > conf {
				best, conf = ip.ProjectID, ip.Confidence
			}
		}
		return best
	}
	return ""
}

func relatedProjects(report *models.AnalysisReport) []string {
	var related []string
	for _, ip := range report.IdentifiedProjects {
		if ip.Confidence > relatedConfidenceFloor {
			related = append(related, ip.ProjectID)
		}
	}
	return related
}

// computeImportance scores a market record from the analysis outputs.
func computeImportance(report *models.AnalysisReport, ops []models.ProjectOperation) int {
	score := 50
	if report != nil {
		switch report.EventType {
		case "security":
			score += 30
		case "regulatory":
			score += 25
		case "funding", "legal":
			score += 20
		}
		switch report.Sentiment {
		case "negative":
			score += 15
		case "positive":
			score += 5
		}
		bonus := 5 * len(report.IdentifiedProjects)
		if bonus > 15 {
			bonus = 15
		}
		score += bonus
	}
	for _, op := range ops {
		if op.Type == models.OpAddRiskFlag || op.Type == models.OpAddOpportunityFlag {
			score += 5
		}
	}
	if score < 0 {
		score = 0
	}
	if score > 100 {
		score = 100
	}
	return score
}
