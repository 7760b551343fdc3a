// Package llm provides an abstraction over generative-language APIs.
package llm

import (
	"context"
	"iter"

	"github.com/xiaot623/gogo/workdesk/internal/domain"
)

// Provider opens conversations and runs one-shot generations.
type Provider interface {
	// NewConversation returns a stateful conversation bound to cfg. It does not
	// contact the remote API; failures surface on the first SendStream.
	NewConversation(ctx context.Context, cfg ConversationConfig) (Conversation, error)

	// Generate runs a single non-streaming prompt.
	Generate(ctx context.Context, prompt string, temperature float32) (string, error)
}

// Conversation is a remote chat that keeps its own history.
type Conversation interface {
	// SendStream sends parts as the next user turn and yields response events
	// in order. The sequence ends after the first error.
	SendStream(ctx context.Context, parts ...Part) iter.Seq2[Event, error]
}

// ConversationConfig is fixed for the lifetime of a conversation.
type ConversationConfig struct {
	SystemPrompt string
	Temperature  float32
	Tools        []domain.ToolDeclaration
}

// Event is one increment of a streamed response.
type Event struct {
	Text      string
	ToolCalls []domain.ToolInvocation
}

// Part is one piece of an outgoing turn. Exactly one field is set.
type Part struct {
	Text       string
	Blob       *Blob
	ToolResult *domain.ToolResult
}

// Blob is inline binary content. Data is base64 encoded.
type Blob struct {
	MIMEType string
	Data     string
}

// TextPart wraps plain text.
func TextPart(text string) Part {
	return Part{Text: text}
}

// BlobPart wraps an inline attachment.
func BlobPart(mimeType, data string) Part {
	return Part{Blob: &Blob{MIMEType: mimeType, Data: data}}
}

// ToolResultPart wraps a tool result for the follow-up turn.
func ToolResultPart(result domain.ToolResult) Part {
	return Part{ToolResult: &result}
}
