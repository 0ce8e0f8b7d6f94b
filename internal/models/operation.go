package models

// OperationType tags a ProjectOperation.
type OperationType string

const (
	OpCreate             OperationType = "create"
	OpUpdate             OperationType = "update"
	OpAddEvent           OperationType = "add_event"
	OpAddRiskFlag        OperationType = "add_risk_flag"
	OpAddOpportunityFlag OperationType = "add_opportunity_flag"
)

// ProjectOperation is a single typed mutation instruction emitted by the
// resolution loop and consumed once, in emission order, by the mutation
// engine. Exactly one of Fields/Event/Flag is set depending on Type.
type ProjectOperation struct {
	Type      OperationType  `json:"type"`
	ProjectID string         `json:"project_id"`
	Fields    map[string]any `json:"fields,omitempty"`
	Event     *ProjectEvent  `json:"event,omitempty"`
	Flag      *Flag          `json:"flag,omitempty"`
}

// IdentifiedProject is one project the analysis report tied to a raw record.
type IdentifiedProject struct {
	ProjectID  string  `json:"project_id"`
	Confidence float64 `json:"confidence"`
}

// AnalysisReport is the terminal output of a resolution loop.
type AnalysisReport struct {
	Sentiment          string              `json:"sentiment"`
	EventType          string              `json:"event_type"`
	IdentifiedProjects []IdentifiedProject `json:"identified_projects"`
	KeyInsights        []string            `json:"key_insights"`
	Reasoning          string              `json:"reasoning"`
}
