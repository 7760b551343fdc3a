package llm

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/genai"

	"github.com/xiaot623/gogo/workdesk/internal/domain"
)

func TestGeminiMissingKey(t *testing.T) {
	p := NewGeminiProvider("", "gemini-2.5-flash", time.Second)

	conv, err := p.NewConversation(context.Background(), ConversationConfig{SystemPrompt: "x"})
	require.NoError(t, err)

	_, err = collect(t, conv.SendStream(context.Background(), TextPart("hi")))
	assert.True(t, domain.IsConfigurationError(err), "got %v", err)

	_, err = p.Generate(context.Background(), "hi", 0.5)
	assert.True(t, domain.IsConfigurationError(err), "got %v", err)
}

func TestGenerateConfig(t *testing.T) {
	cfg := generateConfig(ConversationConfig{
		SystemPrompt: "be brief",
		Temperature:  0.7,
		Tools: []domain.ToolDeclaration{{
			Name:        "setReminder",
			Description: "Set a reminder",
			Parameters: []domain.ToolParameter{
				{Name: "task", Description: "The task", Required: true},
				{Name: "note", Description: "Optional note"},
			},
		}},
	})

	require.NotNil(t, cfg.Temperature)
	assert.InDelta(t, 0.7, *cfg.Temperature, 0.0001)
	require.NotNil(t, cfg.SystemInstruction)
	assert.Equal(t, "be brief", cfg.SystemInstruction.Parts[0].Text)
	require.Len(t, cfg.Tools, 1)
	decl := cfg.Tools[0].FunctionDeclarations[0]
	assert.Equal(t, "setReminder", decl.Name)
	assert.Equal(t, genai.TypeObject, decl.Parameters.Type)
	assert.Equal(t, []string{"task"}, decl.Parameters.Required)
	assert.Equal(t, genai.TypeString, decl.Parameters.Properties["note"].Type)

	assert.Empty(t, generateConfig(ConversationConfig{}).Tools)
}

func TestToGenaiParts(t *testing.T) {
	parts, err := toGenaiParts([]Part{
		BlobPart("application/pdf", "JVBERi0="),
		TextPart("Please analyze this document."),
		ToolResultPart(domain.ToolResult{CallID: "c1", Name: "setReminder", Result: "ok"}),
	})
	require.NoError(t, err)
	require.Len(t, parts, 3)
	assert.Equal(t, []byte("%PDF-"), parts[0].InlineData.Data)
	assert.Equal(t, "application/pdf", parts[0].InlineData.MIMEType)
	assert.Equal(t, "Please analyze this document.", parts[1].Text)
	assert.Equal(t, "c1", parts[2].FunctionResponse.ID)
	assert.Equal(t, map[string]any{"result": "ok"}, parts[2].FunctionResponse.Response)

	_, err = toGenaiParts([]Part{BlobPart("image/png", "%%%")})
	assert.Error(t, err)
}

func TestFromGenaiResponse(t *testing.T) {
	resp := &genai.GenerateContentResponse{
		Candidates: []*genai.Candidate{{
			Content: &genai.Content{Parts: []*genai.Part{
				{Text: "thinking", Thought: true},
				{Text: "Sure. "},
				{FunctionCall: &genai.FunctionCall{ID: "f1", Name: "scheduleMeeting", Args: map[string]any{"topic": "Q3"}}},
			}},
		}},
	}
	ev := fromGenaiResponse(resp)
	assert.Equal(t, "Sure. ", ev.Text)
	require.Len(t, ev.ToolCalls, 1)
	assert.Equal(t, "f1", ev.ToolCalls[0].CallID)
	assert.Equal(t, "Q3", ev.ToolCalls[0].StringArg("topic"))

	assert.Equal(t, Event{}, fromGenaiResponse(&genai.GenerateContentResponse{}))
}
