package nl2sql

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/duckllm/duckllm/internal/llm"
	"github.com/duckllm/duckllm/internal/observability"
	"github.com/duckllm/duckllm/internal/query"
)

type AnalysisRequest struct {
	Question string
	Schema   string
	Result   query.Result
	// Prior is the serialized conversation so far; empty for a one-off analysis.
	Prior string
}

// Analyzer holds no conversation state. Callers own the Conversation and pass
// its String() as Prior.
type Analyzer struct {
	Client      llm.Client
	Model       string
	Temperature float64
	Logger      *slog.Logger
}

func NewAnalyzer(client llm.Client, model string, temperature float64) *Analyzer {
	return &Analyzer{Client: client, Model: model, Temperature: temperature}
}

func (a *Analyzer) Analyze(ctx context.Context, req AnalysisRequest) (string, error) {
	if strings.TrimSpace(req.Question) == "" {
		return "", fmt.Errorf("question is required")
	}
	prompt := BuildAnalysisPrompt(req.Schema, req.Result.Text(), req.Question, req.Prior)

	resp, err := complete(ctx, a.Client, observability.ModelKindAnalysis, llm.Request{
		Model:       a.Model,
		Temperature: a.Temperature,
		Messages: []llm.Message{
			{Role: llm.RoleSystem, Content: AnalysisSystemPrompt},
			{Role: llm.RoleUser, Content: prompt},
		},
	})
	if err != nil {
		return "", fmt.Errorf("analyze results: %w", err)
	}
	logger(a.Logger).DebugContext(ctx, "analysis received", slog.Int("prior_bytes", len(req.Prior)))
	return strings.TrimSpace(resp.Text), nil
}
