// Package tokencount estimates token usage for chat completions when the
// provider response carries no usage block. It wraps tiktoken-go with a
// per-model encoding cache; unknown models fall back to cl100k_base, which
// is close enough for cost accounting.
package tokencount

import (
	"log/slog"
	"strings"
	"sync"

	tiktoken "github.com/pkoukk/tiktoken-go"
)

// Message mirrors one chat-completions message for counting purposes.
type Message struct {
	Role    string
	Content string
}

// Counter is a thread-safe token counter with cached encodings.
type Counter struct {
	mu        sync.RWMutex
	encodings map[string]*tiktoken.Tiktoken
}

func NewCounter() *Counter {
	return &Counter{encodings: make(map[string]*tiktoken.Tiktoken)}
}

func (c *Counter) encodingFor(model string) (*tiktoken.Tiktoken, error) {
	name := normalizeModelName(model)

	c.mu.RLock()
	enc, ok := c.encodings[name]
	c.mu.RUnlock()
	if ok {
		return enc, nil
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if enc, ok := c.encodings[name]; ok {
		return enc, nil
	}

	enc, err := tiktoken.EncodingForModel(name)
	if err != nil {
		slog.Debug("falling back to cl100k_base encoding",
			slog.String("model", model), slog.Any("error", err))
		enc, err = tiktoken.GetEncoding("cl100k_base")
		if err != nil {
			return nil, err
		}
	}
	c.encodings[name] = enc
	return enc, nil
}

// normalizeModelName maps provider-prefixed model ids onto names tiktoken
// knows. Most modern model families tokenize close enough to gpt-4.
func normalizeModelName(model string) string {
	model = strings.ToLower(model)
	if i := strings.LastIndex(model, "/"); i >= 0 {
		model = model[i+1:]
	}
	switch {
	case strings.Contains(model, "gpt-3.5"):
		return "gpt-3.5-turbo"
	case strings.Contains(model, "gpt"):
		return "gpt-4"
	default:
		return "gpt-4"
	}
}

// CountTokens counts tokens in a plain text for the given model.
func (c *Counter) CountTokens(text, model string) (int, error) {
	enc, err := c.encodingFor(model)
	if err != nil {
		return 0, err
	}
	return len(enc.Encode(text, nil, nil)), nil
}

// CountMessageTokens counts tokens for a message list the way the
// OpenAI-compatible APIs bill them: 3 tokens of framing per message, 1 for
// the role, plus 3 for the primed reply.
func (c *Counter) CountMessageTokens(messages []Message, model string) (int, error) {
	enc, err := c.encodingFor(model)
	if err != nil {
		return 0, err
	}
	total := 0
	for _, m := range messages {
		total += 3
		total += len(enc.Encode(m.Role, nil, nil))
		total += len(enc.Encode(m.Content, nil, nil))
		total++
	}
	total += 3
	return total, nil
}

// EstimateUsage returns (promptTokens, completionTokens), degrading to a
// rough 4-chars-per-token estimate when encoding fails.
func (c *Counter) EstimateUsage(messages []Message, completion, model string) (int, int) {
	prompt, err := c.CountMessageTokens(messages, model)
	if err != nil {
		slog.Warn("token count failed, using length estimate",
			slog.String("model", model), slog.Any("error", err))
		for _, m := range messages {
			prompt += len(m.Content) / 4
		}
	}
	done, err := c.CountTokens(completion, model)
	if err != nil {
		done = len(completion) / 4
	}
	return prompt, done
}
