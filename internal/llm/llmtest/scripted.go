// Package llmtest provides an llm.Client that replays canned responses.
package llmtest

import (
	"context"
	"fmt"

	"github.com/duckllm/duckllm/internal/llm"
)

// ScriptedClient returns Responses in order and records every request it saw.
// Once the script is exhausted it fails.
type ScriptedClient struct {
	Responses []string
	Err       error
	Requests  []llm.Request
}

func NewScriptedClient(responses ...string) *ScriptedClient {
	return &ScriptedClient{Responses: responses}
}

func (s *ScriptedClient) Complete(_ context.Context, req llm.Request) (llm.Response, error) {
	s.Requests = append(s.Requests, req)
	if s.Err != nil {
		return llm.Response{}, s.Err
	}
	index := len(s.Requests) - 1
	if index >= len(s.Responses) {
		return llm.Response{}, fmt.Errorf("scripted client exhausted after %d responses", len(s.Responses))
	}
	return llm.Response{Text: s.Responses[index], Model: req.Model}, nil
}

// LastPrompt is the content of the final message of the most recent request.
func (s *ScriptedClient) LastPrompt() string {
	if len(s.Requests) == 0 {
		return ""
	}
	messages := s.Requests[len(s.Requests)-1].Messages
	if len(messages) == 0 {
		return ""
	}
	return messages[len(messages)-1].Content
}
