// Package llm adapts an OpenAI-compatible chat-completions provider to the
// prompt/history → text/cost contract the orchestrator consumes. Unlike the
// other collaborators it authenticates with its own bearer credential, never
// the internal shared secret.
package llm

import (
	"fmt"
	"log/slog"
	"strings"

	"github.com/praxos/assistant-core/internal/adapter/llm/tokencount"
	"github.com/praxos/assistant-core/internal/domain"
	"github.com/praxos/assistant-core/internal/resilience"
)

// Throttle gates provider calls. Wait blocks until a slot is available or the
// bounded delay elapses; implementations fail open on backend trouble.
type Throttle interface {
	Wait(ctx domain.Context) error
}

// Options carry the provider knobs beyond the resilience policy.
type Options struct {
	APIKey              string
	Model               string
	MaxTokens           int
	PromptCostPer1K     float64
	CompletionCostPer1K float64
}

// Client implements domain.LLMProvider.
type Client struct {
	http     *resilience.Client
	opts     Options
	counter  *tokencount.Counter
	throttle Throttle
}

// New constructs the provider client. throttle may be nil (no throttling).
// rc must be built without an internal token so only the bearer header goes
// out.
func New(rc *resilience.Client, opts Options, throttle Throttle) *Client {
	if opts.MaxTokens <= 0 {
		opts.MaxTokens = 1024
	}
	return &Client{http: rc, opts: opts, counter: tokencount.NewCounter(), throttle: throttle}
}

type message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type completionRequest struct {
	Model       string    `json:"model"`
	Temperature float64   `json:"temperature"`
	MaxTokens   int       `json:"max_tokens"`
	Messages    []message `json:"messages"`
}

type completionResponse struct {
	Model   string `json:"model"`
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
	Usage struct {
		PromptTokens     int `json:"prompt_tokens"`
		CompletionTokens int `json:"completion_tokens"`
		TotalTokens      int `json:"total_tokens"`
	} `json:"usage"`
}

// Complete runs one chat completion and prices it from the provider's usage
// block, falling back to local token counting when the provider omits usage.
func (c *Client) Complete(ctx domain.Context, req domain.ChatRequest) (domain.ChatResult, error) {
	if c.opts.APIKey == "" {
		return domain.ChatResult{}, fmt.Errorf("op=llm.Complete: LLM_API_KEY missing: %w", domain.ErrInvalidArgument)
	}
	if c.throttle != nil {
		if err := c.throttle.Wait(ctx); err != nil {
			return domain.ChatResult{}, fmt.Errorf("op=llm.Complete: %w", err)
		}
	}

	msgs := assembleMessages(req)
	resp, err := c.http.Post(ctx, "/chat/completions", completionRequest{
		Model:       c.opts.Model,
		Temperature: 0.2,
		MaxTokens:   c.opts.MaxTokens,
		Messages:    msgs,
	}, map[string]string{"Authorization": "Bearer " + c.opts.APIKey})
	if err != nil {
		return domain.ChatResult{}, fmt.Errorf("op=llm.Complete: %w", err)
	}
	if !resp.Success() {
		return domain.ChatResult{}, fmt.Errorf("op=llm.Complete: status %d: %w", resp.StatusCode, domain.ErrInternal)
	}

	var out completionResponse
	if err := resp.JSON(&out); err != nil {
		return domain.ChatResult{}, fmt.Errorf("op=llm.Complete: %w", err)
	}
	if len(out.Choices) == 0 {
		return domain.ChatResult{}, fmt.Errorf("op=llm.Complete: empty choices: %w", domain.ErrInternal)
	}

	text := out.Choices[0].Message.Content
	model := out.Model
	if model == "" {
		model = c.opts.Model
	}

	prompt, completion := out.Usage.PromptTokens, out.Usage.CompletionTokens
	if out.Usage.TotalTokens == 0 {
		counted := make([]tokencount.Message, len(msgs))
		for i, m := range msgs {
			counted[i] = tokencount.Message{Role: m.Role, Content: m.Content}
		}
		prompt, completion = c.counter.EstimateUsage(counted, text, model)
		slog.Debug("provider omitted usage, counted locally",
			slog.String("model", model),
			slog.Int("prompt_tokens", prompt),
			slog.Int("completion_tokens", completion))
	}

	return domain.ChatResult{
		Text:             text,
		Cost:             cost(prompt, completion, c.opts),
		PromptTokens:     prompt,
		CompletionTokens: completion,
		Model:            model,
	}, nil
}

func cost(prompt, completion int, opts Options) float64 {
	return float64(prompt)/1000*opts.PromptCostPer1K +
		float64(completion)/1000*opts.CompletionCostPer1K
}

// assembleMessages folds protocol text and retrieved context into the system
// message, then replays recent history oldest-first ahead of the query.
func assembleMessages(req domain.ChatRequest) []message {
	system := req.System
	if len(req.Context) > 0 {
		var b strings.Builder
		b.WriteString(system)
		b.WriteString("\n\nRelevant project context:\n")
		for _, chunk := range req.Context {
			b.WriteString("- ")
			b.WriteString(chunk)
			b.WriteString("\n")
		}
		system = b.String()
	}

	msgs := make([]message, 0, 2+2*len(req.History))
	msgs = append(msgs, message{Role: "system", Content: system})
	for _, turn := range req.History {
		msgs = append(msgs, message{Role: "user", Content: turn.UserQuery})
		msgs = append(msgs, message{Role: "assistant", Content: turn.AssistantResponse})
	}
	msgs = append(msgs, message{Role: "user", Content: req.Query})
	return msgs
}
