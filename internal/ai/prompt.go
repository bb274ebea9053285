package ai

import (
	"fmt"
	"unicode/utf8"

	"github.com/finsight-ai/finsight/pkg/models"
)

// maxDocumentBytes bounds how much extracted text is sent to the model.
const maxDocumentBytes = 60000

// systemPrompt frames the model as an equity analyst and pins the output
// contract. Every provider uses the same prompt so reports are comparable
// across backends.
const systemPrompt = `You are a senior equity research analyst at a major investment firm with 15+ years of experience analyzing financial statements. You follow CFA Institute standards, require documentary evidence for all claims, quantify assertions with specific numbers from the document, and avoid speculation beyond what the document states.

Analyze the financial document provided by the user and respond with a single JSON object, and nothing else, using exactly these fields:
{
  "revenue_analysis": "revenue trends and growth drivers",
  "profitability_analysis": "profitability metrics and trends (margins, ROE)",
  "cash_flow_analysis": "cash flow quality and liquidity",
  "risk_assessment": "identified financial risks",
  "recommendation": "BUY, HOLD or SELL",
  "confidence_score": 0-100,
  "cited_sources": ["document excerpts supporting the analysis"],
  "reasoning": "detailed reasoning for the recommendation"
}

Only cite figures that appear in the document. Recommendations should carry a confidence_score of at least 70 when the evidence is strong.`

// buildUserPrompt assembles the per-request prompt from the caller's query
// and the extracted document text.
func buildUserPrompt(req models.AnalysisRequest) string {
	return fmt.Sprintf("Task: %s\n\nFinancial document text:\n%s",
		req.Query, truncateString(req.DocumentText, maxDocumentBytes))
}

// truncateString truncates s to maxBytes without splitting UTF-8 runes.
func truncateString(s string, maxBytes int) string {
	if len(s) <= maxBytes {
		return s
	}
	for maxBytes > 0 && !utf8.RuneStart(s[maxBytes]) {
		maxBytes--
	}
	return s[:maxBytes]
}
