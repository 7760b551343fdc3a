package domain

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Event represents a trace event for replay.
type Event struct {
	EventID        string          `json:"event_id"`
	ConversationID string          `json:"conversation_id"`
	Ts             int64           `json:"ts"` // Unix milliseconds
	Type           EventType       `json:"type"`
	Payload        json.RawMessage `json:"payload,omitempty"`
}

// SessionOpenedPayload is the payload for session_opened event.
type SessionOpenedPayload struct {
	WorkspaceID  string    `json:"workspace_id"`
	PersonaID    PersonaID `json:"persona_id"`
	Role         UserRole  `json:"role"`
	ToolsEnabled bool      `json:"tools_enabled"`
}

// TurnStartedPayload is the payload for turn_started event.
type TurnStartedPayload struct {
	EntryID        string `json:"entry_id"`
	Content        string `json:"content"`
	AttachmentName string `json:"attachment_name,omitempty"`
}

// ToolInvokedPayload is the payload for tool_invoked event.
type ToolInvokedPayload struct {
	CallID string         `json:"call_id"`
	Name   string         `json:"name"`
	Args   map[string]any `json:"args,omitempty"`
}

// ToolResultPayload is the payload for tool_result event.
type ToolResultPayload struct {
	CallID string         `json:"call_id"`
	Name   string         `json:"name"`
	Status ToolCallStatus `json:"status"`
	Result string         `json:"result"`
}

// TurnDonePayload is the payload for turn_done event.
type TurnDonePayload struct {
	EntryID    string `json:"entry_id"`
	FinalText  string `json:"final_text"`
	ToolCalls  int    `json:"tool_calls"`
	DurationMs int64  `json:"duration_ms"`
}

// TurnFailedPayload is the payload for turn_failed and turn_cancelled events.
type TurnFailedPayload struct {
	EntryID string `json:"entry_id"`
	Code    string `json:"code"`
	Message string `json:"message"`
}

// SuggestionsReadyPayload is the payload for suggestions_ready event.
type SuggestionsReadyPayload struct {
	Suggestions []string `json:"suggestions"`
	Fallback    bool     `json:"fallback"`
}

// NewEvent builds an event with a fresh id and the current timestamp.
func NewEvent(conversationID string, eventType EventType, payload interface{}) (*Event, error) {
	payloadBytes, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal payload: %w", err)
	}
	return &Event{
		EventID:        "evt_" + uuid.New().String(),
		ConversationID: conversationID,
		Ts:             time.Now().UnixMilli(),
		Type:           eventType,
		Payload:        payloadBytes,
	}, nil
}
