// Package project implements the entity mutation engine: applying typed
// operations to project records and deriving health status deterministically.
package project

import (
	"math"

	"github.com/aleck31/crypto-dashboard/internal/models"
)

// Default values for newly created projects.
const (
	DefaultHealthScore = 70
)

// DeriveStatus maps a health score and the current flag sets onto exactly
// one status, with ordered precedence: critical risk, then high risk or a
// very low score, then medium risk or a low score, then notable upside,
// else normal. Adding a critical risk to any input always yields danger.
func DeriveStatus(score int, riskFlags, opportunityFlags []models.Flag) models.ProjectStatus {
	if hasSeverity(riskFlags, models.SeverityCritical) {
		return models.StatusDanger
	}
	if hasSeverity(riskFlags, models.SeverityHigh) || score < 30 {
		return models.StatusDanger
	}
	if hasSeverity(riskFlags, models.SeverityMedium) || score < 50 {
		return models.StatusWarning
	}
	if hasSeverity(opportunityFlags, models.SeverityHigh) || score >= 80 {
		return models.StatusWatch
	}
	return models.StatusNormal
}

func hasSeverity(flags []models.Flag, severity string) bool {
	for _, f := range flags {
		if f.Severity == severity {
			return true
		}
	}
	return false
}

// ComputeHealthScore assembles the informational weighted breakdown:
// 0.3*baseMetrics + 0.3*sentimentScore + 0.2*fundSafety +
// 0.2*developmentTrend, rounded and clamped to [0,100].
func ComputeHealthScore(baseMetrics, sentimentScore, fundSafety, developmentTrend int) models.HealthScoreBreakdown {
	total := 0.3*float64(baseMetrics) +
		0.3*float64(sentimentScore) +
		0.2*float64(fundSafety) +
		0.2*float64(developmentTrend)

	rounded := int(math.Round(total))
	if rounded < 0 {
		rounded = 0
	}
	if rounded > 100 {
		rounded = 100
	}
	return models.HealthScoreBreakdown{
		BaseMetrics:      baseMetrics,
		SentimentScore:   sentimentScore,
		FundSafety:       fundSafety,
		DevelopmentTrend: developmentTrend,
		Total:            rounded,
	}
}
