package models

import (
	"time"

	"github.com/google/uuid"
)

// Valid values for AnalysisReport.Recommendation.
const (
	RecommendationBuy  = "BUY"
	RecommendationHold = "HOLD"
	RecommendationSell = "SELL"
)

// AnalysisReport holds the structured output of a completed document
// analysis. Exactly one report exists per completed job.
//
// ConfidenceScore is the analyst model's self-reported confidence in
// [0, 100]. Recommendations backed by less than 70 are considered weak by
// convention; the pipeline records them as-is and leaves the judgement to
// the caller.
type AnalysisReport struct {
	ID                    uuid.UUID `db:"id"                     json:"id"`
	JobID                 uuid.UUID `db:"job_id"                 json:"job_id"`
	Provider              string    `db:"provider"               json:"provider"`
	Model                 string    `db:"model"                  json:"model"`
	RevenueAnalysis       string    `db:"revenue_analysis"       json:"revenue_analysis"`
	ProfitabilityAnalysis string    `db:"profitability_analysis" json:"profitability_analysis"`
	CashFlowAnalysis      string    `db:"cash_flow_analysis"     json:"cash_flow_analysis"`
	RiskAssessment        string    `db:"risk_assessment"        json:"risk_assessment"`
	Recommendation        string    `db:"recommendation"         json:"recommendation"`
	ConfidenceScore       int       `db:"confidence_score"       json:"confidence_score"`
	CitedSources          []string  `db:"cited_sources"          json:"cited_sources"`
	Reasoning             string    `db:"reasoning"              json:"reasoning"`
	CreatedAt             time.Time `db:"created_at"             json:"created_at"`
}

// ValidRecommendation reports whether r is one of BUY, HOLD, SELL.
func ValidRecommendation(r string) bool {
	return r == RecommendationBuy || r == RecommendationHold || r == RecommendationSell
}
