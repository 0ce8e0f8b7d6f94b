package resolution

import (
	"fmt"

	"github.com/aleck31/crypto-dashboard/internal/llm"
	"github.com/aleck31/crypto-dashboard/internal/models"
)

// Tool names form the fixed vocabulary of the resolution loop.
const (
	ToolCreateProject      = "create_project"
	ToolUpdateProject      = "update_project"
	ToolAddEvent           = "add_event"
	ToolAddRiskFlag        = "add_risk_flag"
	ToolAddOpportunityFlag = "add_opportunity_flag"
	ToolReportAnalysis     = "report_analysis"
)

func stringProp(desc string) map[string]any {
	return map[string]any{"type": "string", "description": desc}
}

// ToolSchemas returns the six tool definitions handed to the model every
// round.
func ToolSchemas() []llm.ToolDefinition {
	return []llm.ToolDefinition{
		{
			Name:        ToolCreateProject,
			Description: "Register a new project that is not in the known project list. Use a short lowercase slug as project_id.",
			InputSchema: map[string]any{
				"type": "object",
				"properties": map[string]any{
					"project_id":  stringProp("Short lowercase slug identifying the project, e.g. 'uniswap'"),
					"name":        stringProp("Display name of the project"),
					"category":    stringProp("One of: defi, layer1, layer2, exchange, infrastructure, nft, gaming, other"),
					"description": stringProp("One-sentence description"),
					"logo_url":    stringProp("Logo image URL, if known"),
					"website":     stringProp("Official website URL, if known"),
					"twitter":     stringProp("Twitter handle, if known"),
				},
				"required": []any{"project_id", "name", "category"},
			},
		},
		{
			Name:        ToolUpdateProject,
			Description: "Update fields of an existing project. Only include fields that changed.",
			InputSchema: map[string]any{
				"type": "object",
				"properties": map[string]any{
					"project_id":     stringProp("Slug of the existing project"),
					"name":           stringProp("New display name"),
					"description":    stringProp("New description"),
					"website":        stringProp("New website URL"),
					"health_score":   map[string]any{"type": "integer", "description": "New health score, 0-100"},
					"news_sentiment": stringProp("One of: positive, neutral, negative"),
				},
				"required": []any{"project_id"},
			},
		},
		{
			Name:        ToolAddEvent,
			Description: "Record a noteworthy event on a project's timeline.",
			InputSchema: map[string]any{
				"type": "object",
				"properties": map[string]any{
					"project_id":  stringProp("Slug of the project"),
					"event_type":  stringProp("Kind of event, e.g. security, funding, regulatory, partnership, product"),
					"title":       stringProp("Short event headline"),
					"description": stringProp("Event details"),
				},
				"required": []any{"project_id", "event_type", "title"},
			},
		},
		{
			Name:        ToolAddRiskFlag,
			Description: "Flag a risk on a project.",
			InputSchema: map[string]any{
				"type": "object",
				"properties": map[string]any{
					"project_id":  stringProp("Slug of the project"),
					"flag_type":   stringProp("Risk kind, e.g. security_breach, regulatory_action, liquidity"),
					"description": stringProp("What the risk is"),
					"severity":    stringProp("One of: low, medium, high, critical"),
				},
				"required": []any{"project_id", "flag_type", "severity"},
			},
		},
		{
			Name:        ToolAddOpportunityFlag,
			Description: "Flag an opportunity on a project.",
			InputSchema: map[string]any{
				"type": "object",
				"properties": map[string]any{
					"project_id":  stringProp("Slug of the project"),
					"flag_type":   stringProp("Opportunity kind, e.g. growth, partnership, listing"),
					"description": stringProp("What the opportunity is"),
					"importance":  stringProp("One of: low, medium, high"),
				},
				"required": []any{"project_id", "flag_type", "importance"},
			},
		},
		{
			Name:        ToolReportAnalysis,
			Description: "Submit the final analysis once all project mutations have been issued. This ends the session.",
			InputSchema: map[string]any{
				"type": "object",
				"properties": map[string]any{
					"sentiment":  stringProp("Overall sentiment: positive, neutral or negative"),
					"event_type": stringProp("Dominant event type, e.g. security, regulatory, funding, legal, market, product"),
					"identified_projects": map[string]any{
						"type":        "array",
						"description": "Projects this record is about, with confidence 0-1",
						"items": map[string]any{
							"type": "object",
							"properties": map[string]any{
								"project_id": stringProp("Project slug"),
								"confidence": map[string]any{"type": "number", "description": "Confidence 0-1"},
							},
							"required": []any{"project_id", "confidence"},
						},
					},
					"key_insights": map[string]any{
						"type":        "array",
						"description": "Short bullet insights",
						"items":       map[string]any{"type": "string"},
					},
					"reasoning": stringProp("Why the mutations above were issued"),
				},
				"required": []any{"sentiment", "reasoning"},
			},
		},
	}
}

// operationFromCall converts a non-terminal tool call into a typed
// operation. Malformed input is an error: the record will be marked failed
// and left for redelivery.
func operationFromCall(call llm.ToolCall) (*models.ProjectOperation, error) {
	projectID := inputString(call.Input, "project_id")
	if projectID == "" {
		return nil, fmt.Errorf("tool %s: missing project_id", call.Name)
	}

	switch call.Name {
	case ToolCreateProject:
		fields := fieldsExcept(call.Input, "project_id")
		if inputString(call.Input, "name") == "" {
			return nil, fmt.Errorf("tool %s: missing name", call.Name)
		}
		return &models.ProjectOperation{Type: models.OpCreate, ProjectID: projectID, Fields: fields}, nil

	case ToolUpdateProject:
		return &models.ProjectOperation{
			Type:      models.OpUpdate,
			ProjectID: projectID,
			Fields:    fieldsExcept(call.Input, "project_id"),
		}, nil

	case ToolAddEvent:
		title := inputString(call.Input, "title")
		if title == "" {
			return nil, fmt.Errorf("tool %s: missing title", call.Name)
		}
		return &models.ProjectOperation{
			Type:      models.OpAddEvent,
			ProjectID: projectID,
			Event: &models.ProjectEvent{
				EventType:   inputString(call.Input, "event_type"),
				Title:       title,
				Description: inputString(call.Input, "description"),
			},
		}, nil

	case ToolAddRiskFlag:
		return flagOperation(call, models.OpAddRiskFlag, "severity")

	case ToolAddOpportunityFlag:
		return flagOperation(call, models.OpAddOpportunityFlag, "importance")

	default:
		return nil, fmt.Errorf("unknown tool %q", call.Name)
	}
}

func flagOperation(call llm.ToolCall, opType models.OperationType, levelKey string) (*models.ProjectOperation, error) {
	flagType := inputString(call.Input, "flag_type")
	level := inputString(call.Input, levelKey)
	if flagType == "" || level == "" {
		return nil, fmt.Errorf("tool %s: missing flag_type or %s", call.Name, levelKey)
	}
	return &models.ProjectOperation{
		Type:      opType,
		ProjectID: inputString(call.Input, "project_id"),
		Flag: &models.Flag{
			Type:        flagType,
			Description: inputString(call.Input, "description"),
			Severity:    level,
		},
	}, nil
}

// analysisFromCall decodes a report_analysis call. Missing fields degrade
// to zero values; the report is advisory, not schema-guaranteed.
func analysisFromCall(call llm.ToolCall) *models.AnalysisReport {
	report := &models.AnalysisReport{
		Sentiment: inputString(call.Input, "sentiment"),
		EventType: inputString(call.Input, "event_type"),
		Reasoning: inputString(call.Input, "reasoning"),
	}
	if raw, ok := call.Input["key_insights"].([]any); ok {
		for _, v := range raw {
			if s, ok := v.(string); ok {
				report.KeyInsights = append(report.KeyInsights, s)
			}
		}
	}
	if raw, ok := call.Input["identified_projects"].([]any); ok {
		for _, v := range raw {
			entry, ok := v.(map[string]any)
			if !ok {
				continue
			}
			ip := models.IdentifiedProject{ProjectID: inputString(entry, "project_id")}
			if f, ok := entry["confidence"].(float64); ok {
				ip.Confidence = f
			}
			if ip.ProjectID != "" {
				report.IdentifiedProjects = append(report.IdentifiedProjects, ip)
			}
		}
	}
	return report
}

func inputString(input map[string]any, key string) string {
	if s, ok := input[key].(string); ok {
		return s
	}
	return ""
}

func fieldsExcept(input map[string]any, exclude string) map[string]any {
	fields := make(map[string]any, len(input))
	for k, v := range input {
		if k != exclude {
			fields[k] = v
		}
	}
	return fields
}
