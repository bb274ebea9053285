package ai

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/finsight-ai/finsight/internal/config"
	"github.com/finsight-ai/finsight/pkg/models"
)

// OpenAIAnalyzer implements models.Analyzer against the OpenAI chat
// completions API.
type OpenAIAnalyzer struct {
	cfg    config.OpenAIConfig
	client *http.Client
}

func NewOpenAIAnalyzer(cfg config.OpenAIConfig) *OpenAIAnalyzer {
	return &OpenAIAnalyzer{
		cfg:    cfg,
		client: &http.Client{Timeout: 10 * time.Minute},
	}
}

func (a *OpenAIAnalyzer) Name() string { return "openai" }

type openAIRequest struct {
	Model          string          `json:"model"`
	Messages       []openAIMessage `json:"messages"`
	Temperature    float64         `json:"temperature"`
	ResponseFormat *responseFormat `json:"response_format,omitempty"`
}

type openAIMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type responseFormat struct {
	Type string `json:"type"`
}

type openAIResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
}

func (a *OpenAIAnalyzer) Analyze(ctx context.Context, req models.AnalysisRequest) (models.AnalysisReport, error) {
	body, err := json.Marshal(openAIRequest{
		Model: a.cfg.Model,
		Messages: []openAIMessage{
			{Role: "system", Content: systemPrompt},
			{Role: "user", Content: buildUserPrompt(req)},
		},
		Temperature:    0.2,
		ResponseFormat: &responseFormat{Type: "json_object"},
	})
	if err != nil {
		return models.AnalysisReport{}, fmt.Errorf("encoding request: %w", err)
	}

	u := a.cfg.BaseURL + "/v1/chat/completions"
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, u, bytes.NewReader(body))
	if err != nil {
		return models.AnalysisReport{}, fmt.Errorf("building request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+a.cfg.APIKey)

	resp, err := a.client.Do(httpReq)
	if err != nil {
		return models.AnalysisReport{}, classifyTransportError(err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return models.AnalysisReport{}, fmt.Errorf("%w: status %d", ErrProviderUnavailable, resp.StatusCode)
	}

	var completion openAIResponse
	if err := json.NewDecoder(resp.Body).Decode(&completion); err != nil {
		return models.AnalysisReport{}, fmt.Errorf("%w: %v", ErrInvalidResponse, err)
	}
	if len(completion.Choices) == 0 {
		return models.AnalysisReport{}, fmt.Errorf("%w: empty choices", ErrInvalidResponse)
	}

	report, err := parseReport(completion.Choices[0].Message.Content)
	if err != nil {
		return models.AnalysisReport{}, err
	}
	report.Provider = a.Name()
	report.Model = a.cfg.Model
	return report, nil
}

var _ models.Analyzer = (*OpenAIAnalyzer)(nil)
