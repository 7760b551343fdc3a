package llm

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xiaot623/gogo/workdesk/internal/domain"
)

func joinText(events []Event) string {
	var b strings.Builder
	for _, ev := range events {
		b.WriteString(ev.Text)
	}
	return b.String()
}

func TestMockStreamsEcho(t *testing.T) {
	conv, err := NewMockProvider().NewConversation(context.Background(), ConversationConfig{})
	require.NoError(t, err)

	events, err := collect(t, conv.SendStream(context.Background(), TextPart("Summarize Q3 results")))
	require.NoError(t, err)
	assert.Greater(t, len(events), 1)
	assert.Equal(t, `[MOCK] Received your message: "Summarize Q3 results". This is a mock response.`, joinText(events))
}

func TestMockEmitsReminderCallOnlyWithTools(t *testing.T) {
	ctx := context.Background()
	p := NewMockProvider()

	withTools, _ := p.NewConversation(ctx, ConversationConfig{Tools: []domain.ToolDeclaration{{Name: "setReminder"}}})
	events, err := collect(t, withTools.SendStream(ctx, TextPart("Remind me to call Bob at 2pm")))
	require.NoError(t, err)
	last := events[len(events)-1]
	require.Len(t, last.ToolCalls, 1)
	assert.Equal(t, "setReminder", last.ToolCalls[0].Name)
	assert.NotEmpty(t, last.ToolCalls[0].CallID)

	followUp, err := collect(t, withTools.SendStream(ctx, ToolResultPart(domain.ToolResult{CallID: "x", Result: "Success."})))
	require.NoError(t, err)
	assert.Equal(t, "[MOCK] Success.", joinText(followUp))

	without, _ := p.NewConversation(ctx, ConversationConfig{})
	events, err = collect(t, without.SendStream(ctx, TextPart("Remind me to call Bob at 2pm")))
	require.NoError(t, err)
	for _, ev := range events {
		assert.Empty(t, ev.ToolCalls)
	}
}

func TestMockHonoursCancellation(t *testing.T) {
	p := &MockProvider{ChunkDelay: 50 * time.Millisecond}
	conv, _ := p.NewConversation(context.Background(), ConversationConfig{})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := collect(t, conv.SendStream(ctx, TextPart("hello")))
	assert.ErrorIs(t, err, context.Canceled)
}

func TestMockGenerate(t *testing.T) {
	out, err := NewMockProvider().Generate(context.Background(), "Return ONLY the phrases separated by pipes (|).", 0.5)
	require.NoError(t, err)
	assert.Len(t, strings.Split(out, "|"), 3)
}
