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

const anthropicVersion = "2023-06-01"

// AnthropicAnalyzer implements models.Analyzer against the Anthropic
// messages API.
type AnthropicAnalyzer struct {
	cfg    config.AnthropicConfig
	client *http.Client
}

func NewAnthropicAnalyzer(cfg config.AnthropicConfig) *AnthropicAnalyzer {
	return &AnthropicAnalyzer{
		cfg:    cfg,
		client: &http.Client{Timeout: 10 * time.Minute},
	}
}

func (a *AnthropicAnalyzer) Name() string { return "anthropic" }

type anthropicRequest struct {
	Model     string             `json:"model"`
	MaxTokens int                `json:"max_tokens"`
	System    string             `json:"system"`
	Messages  []anthropicMessage `json:"messages"`
}

type anthropicMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type anthropicResponse struct {
	Content []struct {
		Type string `json:"type"`
		Text string `json:"text"`
	} `json:"content"`
}

func (a *AnthropicAnalyzer) Analyze(ctx context.Context, req models.AnalysisRequest) (models.AnalysisReport, error) {
	body, err := json.Marshal(anthropicRequest{
		Model:     a.cfg.Model,
		MaxTokens: 4096,
		System:    systemPrompt,
		Messages: []anthropicMessage{
			{Role: "user", Content: buildUserPrompt(req)},
		},
	})
	if err != nil {
		return models.AnalysisReport{}, fmt.Errorf("encoding request: %w", err)
	}

	u := a.cfg.BaseURL + "/v1/messages"
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, u, bytes.NewReader(body))
	if err != nil {
		return models.AnalysisReport{}, fmt.Errorf("building request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("x-api-key", a.cfg.APIKey)
	httpReq.Header.Set("anthropic-version", anthropicVersion)

	resp, err := a.client.Do(httpReq)
	if err != nil {
		return models.AnalysisReport{}, classifyTransportError(err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return models.AnalysisReport{}, fmt.Errorf("%w: status %d", ErrProviderUnavailable, resp.StatusCode)
	}

	var completion anthropicResponse
	if err := json.NewDecoder(resp.Body).Decode(&completion); err != nil {
		return models.AnalysisReport{}, fmt.Errorf("%w: %v", ErrInvalidResponse, err)
	}
	if len(completion.Content) == 0 {
		return models.AnalysisReport{}, fmt.Errorf("%w: empty content", ErrInvalidResponse)
	}

	report, err := parseReport(completion.Content[0].Text)
	if err != nil {
		return models.AnalysisReport{}, err
	}
	report.Provider = a.Name()
	report.Model = a.cfg.Model
	return report, nil
}

var _ models.Analyzer = (*AnthropicAnalyzer)(nil)
