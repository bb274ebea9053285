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

// OllamaAnalyzer implements models.Analyzer against a local Ollama server.
type OllamaAnalyzer struct {
	cfg    config.OllamaConfig
	client *http.Client
}

func NewOllamaAnalyzer(cfg config.OllamaConfig) *OllamaAnalyzer {
	return &OllamaAnalyzer{
		cfg:    cfg,
		client: &http.Client{Timeout: 10 * time.Minute},
	}
}

func (a *OllamaAnalyzer) Name() string { return "ollama" }

type ollamaRequest struct {
	Model    string          `json:"model"`
	Messages []ollamaMessage `json:"messages"`
	Stream   bool            `json:"stream"`
	Format   string          `json:"format,omitempty"`
	Options  ollamaOptions   `json:"options"`
}

type ollamaMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type ollamaOptions struct {
	Temperature float64 `json:"temperature"`
}

type ollamaResponse struct {
	Message struct {
		Content string `json:"content"`
	} `json:"message"`
}

func (a *OllamaAnalyzer) Analyze(ctx context.Context, req models.AnalysisRequest) (models.AnalysisReport, error) {
	body, err := json.Marshal(ollamaRequest{
		Model: a.cfg.Model,
		Messages: []ollamaMessage{
			{Role: "system", Content: systemPrompt},
			{Role: "user", Content: buildUserPrompt(req)},
		},
		Stream:  false,
		Format:  "json",
		Options: ollamaOptions{Temperature: 0.2},
	})
	if err != nil {
		return models.AnalysisReport{}, fmt.Errorf("encoding request: %w", err)
	}

	u := a.cfg.BaseURL + "/api/chat"
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, u, bytes.NewReader(body))
	if err != nil {
		return models.AnalysisReport{}, fmt.Errorf("building request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := a.client.Do(httpReq)
	if err != nil {
		return models.AnalysisReport{}, classifyTransportError(err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return models.AnalysisReport{}, fmt.Errorf("%w: status %d", ErrProviderUnavailable, resp.StatusCode)
	}

	var completion ollamaResponse
	if err := json.NewDecoder(resp.Body).Decode(&completion); err != nil {
		return models.AnalysisReport{}, fmt.Errorf("%w: %v", ErrInvalidResponse, err)
	}

	report, err := parseReport(completion.Message.Content)
	if err != nil {
		return models.AnalysisReport{}, err
	}
	report.Provider = a.Name()
	report.Model = a.cfg.Model
	return report, nil
}

var _ models.Analyzer = (*OllamaAnalyzer)(nil)
