package llm

import "context"

type Role string

const (
	RoleSystem    Role = "system"
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

type Message struct {
	Role    Role   `json:"role"`
	Content string `json:"content"`
}

type Request struct {
	Model       string
	Messages    []Message
	Temperature float64
}

type Response struct {
	Text  string
	Model string
}

// Client is a single-shot chat completion. Implementations block until the
// model answers or ctx is done.
type Client interface {
	Complete(ctx context.Context, req Request) (Response, error)
}
