package llm

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"intentc/internal/domain"
	"intentc/internal/schema"
)

// ErrNoCalls is returned when the model answered without any tool call.
var ErrNoCalls = errors.New("model returned no tool calls")

const systemPrompt = "You turn one user request into tool calls. Call every tool the request needs, in the order the user asked, and nothing else. Use only the listed tools."

// Request is one fallback round: an utterance and the tools it may use.
type Request struct {
	Model     string
	Utterance string
	Tools     []schema.Definition
}

// Provider proposes tool calls for an utterance. Proposed calls are raw model
// output and must be validated before use.
type Provider interface {
	Name() string
	Propose(ctx context.Context, req Request) ([]domain.ToolCall, error)
}

type Config struct {
	Provider         string
	Model            string
	OpenAIBaseURL    string
	OpenAIAPIKey     string
	AnthropicBaseURL string
	AnthropicAPIKey  string
	Timeout          time.Duration
}

// NewProvider returns nil, nil when no provider is configured.
func NewProvider(cfg Config) (Provider, error) {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	client := &http.Client{Timeout: timeout}

	switch cfg.Provider {
	case "", "none":
		return nil, nil
	case "openai":
		return NewOpenAIProvider(client, cfg.OpenAIBaseURL, cfg.OpenAIAPIKey), nil
	case "claude":
		return NewClaudeProvider(client, cfg.AnthropicBaseURL, cfg.AnthropicAPIKey), nil
	default:
		return nil, fmt.Errorf("unsupported fallback provider: %s", cfg.Provider)
	}
}

func decodeArguments(name string, raw []byte) (domain.ToolCall, error) {
	args := domain.Arguments{}
	if len(raw) > 0 {
		if err := json.Unmarshal(raw, &args); err != nil {
			return domain.ToolCall{}, fmt.Errorf("decode %s arguments: %w", name, err)
		}
	}
	return domain.ToolCall{Tool: domain.ToolName(name), Arguments: args}, nil
}

func normalizeSchema(raw json.RawMessage) json.RawMessage {
	if len(raw) == 0 {
		return json.RawMessage(`{"type":"object","properties":{},"required":[]}`)
	}
	return raw
}
