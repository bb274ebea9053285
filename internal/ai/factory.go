// Package ai contains the language-model analysis collaborator: one
// analyzer implementation per provider behind a shared prompt and report
// parser.
package ai

import (
	"fmt"

	"github.com/finsight-ai/finsight/internal/config"
	"github.com/finsight-ai/finsight/pkg/models"
)

// NewAnalyzer constructs the appropriate analyzer based on config.
// Called once at process startup.
func NewAnalyzer(cfg config.AIConfig) (models.Analyzer, error) {
	switch cfg.Provider {
	case "ollama":
		return NewOllamaAnalyzer(cfg.Ollama), nil
	case "openai":
		return NewOpenAIAnalyzer(cfg.OpenAI), nil
	case "anthropic":
		return NewAnthropicAnalyzer(cfg.Anthropic), nil
	default:
		return nil, fmt.Errorf("unknown AI provider: %q", cfg.Provider)
	}
}
