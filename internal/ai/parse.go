package ai

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/finsight-ai/finsight/pkg/models"
)

const (
	maxSectionBytes   = 4000
	maxReasoningBytes = 8000
)

// reportWire matches the JSON object the system prompt asks for.
type reportWire struct {
	RevenueAnalysis       string   `json:"revenue_analysis"`
	ProfitabilityAnalysis string   `json:"profitability_analysis"`
	CashFlowAnalysis      string   `json:"cash_flow_analysis"`
	RiskAssessment        string   `json:"risk_assessment"`
	Recommendation        string   `json:"recommendation"`
	ConfidenceScore       int      `json:"confidence_score"`
	CitedSources          []string `json:"cited_sources"`
	Reasoning             string   `json:"reasoning"`
}

// parseReport validates a raw model completion against the report schema.
// Models wrap JSON in code fences or prose often enough that the object is
// cut out of the surrounding text first. Confidence is clamped to [0, 100];
// an unknown recommendation is ErrInvalidResponse, not coerced.
func parseReport(raw string) (models.AnalysisReport, error) {
	payload := extractJSONObject(raw)
	if payload == "" {
		return models.AnalysisReport{}, fmt.Errorf("%w: no JSON object in completion", ErrInvalidResponse)
	}

	var wire reportWire
	if err := json.Unmarshal([]byte(payload), &wire); err != nil {
		return models.AnalysisReport{}, fmt.Errorf("%w: %v", ErrInvalidResponse, err)
	}

	wire.Recommendation = strings.ToUpper(strings.TrimSpace(wire.Recommendation))
	if !models.ValidRecommendation(wire.Recommendation) {
		return models.AnalysisReport{}, fmt.Errorf("%w: recommendation %q", ErrInvalidResponse, wire.Recommendation)
	}

	if wire.ConfidenceScore < 0 {
		wire.ConfidenceScore = 0
	}
	if wire.ConfidenceScore > 100 {
		wire.ConfidenceScore = 100
	}
	if wire.CitedSources == nil {
		wire.CitedSources = []string{}
	}

	return models.AnalysisReport{
		RevenueAnalysis:       truncateString(wire.RevenueAnalysis, maxSectionBytes),
		ProfitabilityAnalysis: truncateString(wire.ProfitabilityAnalysis, maxSectionBytes),
		CashFlowAnalysis:      truncateString(wire.CashFlowAnalysis, maxSectionBytes),
		RiskAssessment:        truncateString(wire.RiskAssessment, maxSectionBytes),
		Recommendation:        wire.Recommendation,
		ConfidenceScore:       wire.ConfidenceScore,
		CitedSources:          wire.CitedSources,
		Reasoning:             truncateString(wire.Reasoning, maxReasoningBytes),
	}, nil
}

// extractJSONObject returns the substring from the first '{' to the last
// '}', or "" when no object is present.
func extractJSONObject(s string) string {
	start := strings.Index(s, "{")
	end := strings.LastIndex(s, "}")
	if start < 0 || end <= start {
		return ""
	}
	return s[start : end+1]
}
