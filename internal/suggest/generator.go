// Package suggest produces short follow-up replies for the chat view.
package suggest

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/xiaot623/gogo/workdesk/internal/domain"
	"github.com/xiaot623/gogo/workdesk/internal/metrics"
)

const (
	// MaxSuggestions caps the size of a suggestion set.
	MaxSuggestions = 3
	// ContextEntries is how many trailing transcript entries feed the prompt.
	ContextEntries = 3
)

// Fallback is returned whenever generation fails or yields nothing usable.
var Fallback = []string{"Tell me more", "Thank you", "Next steps?"}

// TextGenerator is the one-shot completion call the generator needs.
type TextGenerator interface {
	Generate(ctx context.Context, prompt string, temperature float32) (string, error)
}

// Generator asks the model for follow-up replies.
type Generator struct {
	llm         TextGenerator
	temperature float32
	timeout     time.Duration
	metrics     *metrics.Metrics
	logger      zerolog.Logger
}

// NewGenerator creates a generator. A zero timeout leaves the caller's
// deadline in charge.
func NewGenerator(llm TextGenerator, temperature float32, timeout time.Duration, m *metrics.Metrics, logger zerolog.Logger) *Generator {
	return &Generator{
		llm:         llm,
		temperature: temperature,
		timeout:     timeout,
		metrics:     m,
		logger:      logger,
	}
}

// Suggest returns up to three replies for the conversation so far. The
// second result reports whether the fallback set was used.
func (g *Generator) Suggest(ctx context.Context, history []domain.Entry) ([]string, bool) {
	if g.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, g.timeout)
		defer cancel()
	}

	text, err := g.llm.Generate(ctx, BuildPrompt(history), g.temperature)
	if err != nil {
		g.logger.Warn().Err(err).Msg("suggestion request failed")
		return g.fallback()
	}

	out := Parse(text)
	if len(out) == 0 {
		g.logger.Debug().Str("reply", text).Msg("suggestion reply had no usable phrases")
		return g.fallback()
	}
	g.metrics.RecordSuggestions(metrics.StatusDone)
	return out, false
}

func (g *Generator) fallback() ([]string, bool) {
	g.metrics.RecordSuggestions(metrics.StatusFallback)
	return append([]string(nil), Fallback...), true
}

// BuildPrompt renders the last entries of history into the request.
func BuildPrompt(history []domain.Entry) string {
	if len(history) > ContextEntries {
		history = history[len(history)-ContextEntries:]
	}
	lines := make([]string, 0, len(history))
	for _, e := range history {
		lines = append(lines, fmt.Sprintf("%s: %s", e.Speaker, e.Text))
	}
	return "Based on the conversation below, suggest 3 short, professional follow-up responses " +
		"(max 5-6 words each) that the user might want to send next. " +
		"Return ONLY the phrases separated by pipes (|). Do not number them.\n\n" +
		"Conversation:\n" + strings.Join(lines, "\n")
}

// Parse splits a pipe separated reply, dropping blanks and anything past
// the third phrase.
func Parse(text string) []string {
	var out []string
	for _, s := range strings.Split(text, "|") {
		if s = strings.TrimSpace(s); s == "" {
			continue
		}
		out = append(out, s)
		if len(out) == MaxSuggestions {
			break
		}
	}
	return out
}
