// Package models contains shared data models used across the FinSight codebase.
package models

import "context"

// Analyzer is the core interface every language-model integration must
// implement. Never call specific providers directly — always inject this
// interface.
type Analyzer interface {
	// Analyze produces a structured financial report from extracted
	// document text and the user's query.
	Analyze(ctx context.Context, req AnalysisRequest) (AnalysisReport, error)
	// Name returns the provider identifier (e.g., "ollama", "openai").
	Name() string
}

// AnalysisRequest is the input to an analysis operation.
type AnalysisRequest struct {
	DocumentText string // Plain text extracted from the uploaded PDF
	Query        string // The caller's analysis instruction
}
