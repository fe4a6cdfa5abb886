// Package nl2sql turns questions about a DuckDB schema into SQL and explains
// query results, using a chat model.
package nl2sql

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"time"

	"github.com/duckllm/duckllm/internal/llm"
	"github.com/duckllm/duckllm/internal/observability"
)

// Translation is the outcome of one query prompt. Prompt and Raw are kept
// even when extraction fails so callers can show what the model said.
type Translation struct {
	Answer
	Prompt string
	Raw    string
	Model  string
}

type Translator struct {
	Client      llm.Client
	Model       string
	Temperature float64
	Logger      *slog.Logger
}

func NewTranslator(client llm.Client, model string, temperature float64) *Translator {
	return &Translator{Client: client, Model: model, Temperature: temperature}
}

func (t *Translator) Translate(ctx context.Context, schema, question string) (Translation, error) {
	if strings.TrimSpace(question) == "" {
		return Translation{}, fmt.Errorf("question is required")
	}
	prompt := BuildQueryPrompt(schema, question)
	translation := Translation{Prompt: prompt, Model: t.Model}

	resp, err := complete(ctx, t.Client, observability.ModelKindQuery, llm.Request{
		Model:       t.Model,
		Temperature: t.Temperature,
		Messages: []llm.Message{
			{Role: llm.RoleSystem, Content: QuerySystemPrompt},
			{Role: llm.RoleUser, Content: prompt},
		},
	})
	if err != nil {
		return translation, fmt.Errorf("generate sql: %w", err)
	}
	translation.Raw = resp.Text
	if resp.Model != "" {
		translation.Model = resp.Model
	}

	answer, err := ParseAnswer(resp.Text)
	if err != nil {
		if errors.Is(err, ErrNoAnswer) {
			observability.IncrementExtractionFailure()
		}
		logger(t.Logger).WarnContext(ctx, "model response without answer block", slog.Int("response_bytes", len(resp.Text)))
		return translation, err
	}
	translation.Answer = answer
	logger(t.Logger).DebugContext(ctx, "sql generated", slog.String("model", translation.Model), slog.String("sql", answer.SQL))
	return translation, nil
}

func complete(ctx context.Context, client llm.Client, kind string, req llm.Request) (llm.Response, error) {
	if client == nil {
		return llm.Response{}, fmt.Errorf("model client is required")
	}
	start := time.Now()
	resp, err := client.Complete(ctx, req)
	observability.ObserveModelRequest(kind, err, time.Since(start))
	return resp, err
}

func logger(l *slog.Logger) *slog.Logger {
	if l != nil {
		return l
	}
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}
