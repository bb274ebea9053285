package mock

import (
	"context"

	"github.com/finsight-ai/finsight/internal/ai"
	"github.com/finsight-ai/finsight/pkg/models"
)

// MockAnalyzer satisfies models.Analyzer for testing.
type MockAnalyzer struct {
	Name_       string
	AnalyzeFunc func(ctx context.Context, req models.AnalysisRequest) (models.AnalysisReport, error)
}

func (m *MockAnalyzer) Name() string { return m.Name_ }

func (m *MockAnalyzer) Analyze(ctx context.Context, req models.AnalysisRequest) (models.AnalysisReport, error) {
	if m.AnalyzeFunc != nil {
		return m.AnalyzeFunc(ctx, req)
	}
	return models.AnalysisReport{}, nil
}

// SampleReport returns a schema-valid report for test fixtures.
func SampleReport() models.AnalysisReport {
	return models.AnalysisReport{
		Provider:              "mock",
		Model:                 "mock-v1",
		RevenueAnalysis:       "Revenue grew 12% year over year, driven by subscription renewals",
		ProfitabilityAnalysis: "Operating margin expanded from 18% to 21%",
		CashFlowAnalysis:      "Operating cash flow covers capex 3x with no drawdown on the revolver",
		RiskAssessment:        "Customer concentration: top 3 accounts are 40% of revenue",
		Recommendation:        models.RecommendationBuy,
		ConfidenceScore:       85,
		CitedSources:          []string{"Income statement, p.4", "Liquidity discussion, p.12"},
		Reasoning:             "Consistent growth with improving margins and clean cash conversion",
	}
}

// NewMockAnalyzer returns a MockAnalyzer that yields SampleReport.
func NewMockAnalyzer() *MockAnalyzer {
	return &MockAnalyzer{
		Name_: "mock",
		AnalyzeFunc: func(_ context.Context, _ models.AnalysisRequest) (models.AnalysisReport, error) {
			return SampleReport(), nil
		},
	}
}

// NewFailingAnalyzer returns a MockAnalyzer that always returns the given error.
func NewFailingAnalyzer(err error) *MockAnalyzer {
	return &MockAnalyzer{
		Name_: "mock-failing",
		AnalyzeFunc: func(_ context.Context, _ models.AnalysisRequest) (models.AnalysisReport, error) {
			return models.AnalysisReport{}, err
		},
	}
}

// NewTimeoutAnalyzer returns a MockAnalyzer that blocks until context is cancelled.
func NewTimeoutAnalyzer() *MockAnalyzer {
	return &MockAnalyzer{
		Name_: "mock-timeout",
		AnalyzeFunc: func(ctx context.Context, _ models.AnalysisRequest) (models.AnalysisReport, error) {
			<-ctx.Done()
			return models.AnalysisReport{}, ai.ErrInferenceTimeout
		},
	}
}

// Compile-time check that MockAnalyzer implements Analyzer.
var _ models.Analyzer = (*MockAnalyzer)(nil)
