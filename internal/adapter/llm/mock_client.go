package llm

import (
	"context"
	"encoding/base64"
	"fmt"
	"iter"
	"strings"
	"sync/atomic"
	"time"

	"github.com/xiaot623/gogo/workdesk/internal/domain"
)

// MockProvider is a deterministic provider for demos and tests.
type MockProvider struct {
	// ChunkDelay is slept between streamed chunks.
	ChunkDelay time.Duration

	calls atomic.Int64
}

// Ensure MockProvider implements Provider interface.
var _ Provider = (*MockProvider)(nil)

// NewMockProvider creates a new mock provider.
func NewMockProvider() *MockProvider {
	return &MockProvider{}
}

// NewConversation returns a scripted conversation.
func (m *MockProvider) NewConversation(ctx context.Context, cfg ConversationConfig) (Conversation, error) {
	return &mockConversation{provider: m, tools: len(cfg.Tools) > 0}, nil
}

// Generate returns canned output keyed on the prompt shape.
func (m *MockProvider) Generate(ctx context.Context, prompt string, temperature float32) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	switch {
	case strings.Contains(prompt, "separated by pipes"):
		return "Tell me more | Show an example | What are the risks?", nil
	case strings.Contains(prompt, "JSON"):
		return `Here is the forecast:
{"title": "[MOCK] Steady growth ahead", "description": "Workload is expected to stay manageable.",
 "confidence": 82, "timeframe": "Next quarter", "impact": "medium",
 "recommendations": ["Review priorities weekly", "Delegate routine tasks", "Block focus time"]}`, nil
	}
	return fmt.Sprintf("[MOCK] %s", truncate(prompt, 100)), nil
}

type mockConversation struct {
	provider *MockProvider
	tools    bool
}

// SendStream streams a scripted reply in small chunks.
func (c *mockConversation) SendStream(ctx context.Context, parts ...Part) iter.Seq2[Event, error] {
	return func(yield func(Event, error) bool) {
		reply, calls := c.script(parts)
		for _, chunk := range splitIntoChunks(reply, 10) {
			if c.provider.ChunkDelay > 0 {
				select {
				case <-ctx.Done():
				case <-time.After(c.provider.ChunkDelay):
				}
			}
			if err := ctx.Err(); err != nil {
				yield(Event{}, err)
				return
			}
			if !yield(Event{Text: chunk}, nil) {
				return
			}
		}
		if len(calls) > 0 {
			yield(Event{ToolCalls: calls}, nil)
		}
	}
}

func (c *mockConversation) script(parts []Part) (string, []domain.ToolInvocation) {
	var text, prefix string
	for _, p := range parts {
		switch {
		case p.ToolResult != nil:
			return fmt.Sprintf("[MOCK] %s", p.ToolResult.Result), nil
		case p.Blob != nil:
			size := base64.StdEncoding.DecodedLen(len(p.Blob.Data))
			prefix = fmt.Sprintf("[MOCK] Received a %s attachment (~%d bytes). ", p.Blob.MIMEType, size)
		default:
			text = p.Text
		}
	}

	if c.tools && strings.Contains(strings.ToLower(text), "remind") {
		id := fmt.Sprintf("mock-call-%d", c.provider.calls.Add(1))
		return "Setting that up. ", []domain.ToolInvocation{{
			CallID: id,
			Name:   "setReminder",
			Args:   map[string]any{"task": truncate(text, 60), "time": "tomorrow 9am"},
		}}
	}

	if text == "" {
		return prefix + "[MOCK] This is a mock response.", nil
	}
	return prefix + fmt.Sprintf("[MOCK] Received your message: %q. This is a mock response.", truncate(text, 100)), nil
}

// splitIntoChunks splits a string into chunks of approximately the given size.
func splitIntoChunks(s string, chunkSize int) []string {
	if len(s) == 0 {
		return nil
	}
	runes := []rune(s)
	var chunks []string
	for i := 0; i < len(runes); i += chunkSize {
		end := i + chunkSize
		if end > len(runes) {
			end = len(runes)
		}
		chunks = append(chunks, string(runes[i:end]))
	}
	return chunks
}

// truncate truncates a string to the given length.
func truncate(s string, maxLen int) string {
	runes := []rune(s)
	if len(runes) <= maxLen {
		return s
	}
	return string(runes[:maxLen]) + "..."
}
