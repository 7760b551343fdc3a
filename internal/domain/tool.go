package domain

import (
	"encoding/json"
	"time"
)

// ToolInvocation is a function call emitted by the model mid-stream.
type ToolInvocation struct {
	CallID string         `json:"call_id"`
	Name   string         `json:"name"`
	Args   map[string]any `json:"args,omitempty"`
}

// StringArg returns the named argument as a string, or "" when absent.
func (t ToolInvocation) StringArg(name string) string {
	v, ok := t.Args[name]
	if !ok || v == nil {
		return ""
	}
	if s, ok := v.(string); ok {
		return s
	}
	b, err := json.Marshal(v)
	if err != nil {
		return ""
	}
	return string(b)
}

// ToolResult is the answer to a ToolInvocation, keyed by the same call id.
type ToolResult struct {
	CallID string `json:"call_id"`
	Name   string `json:"name"`
	Result string `json:"result"`
}

// ToolParameter is one free-text argument of a declared tool.
type ToolParameter struct {
	Name        string `json:"name"`
	Description string `json:"description"`
	Required    bool   `json:"required"`
}

// ToolDeclaration describes a tool the model may call.
type ToolDeclaration struct {
	Name        string          `json:"name"`
	Description string          `json:"description"`
	Parameters  []ToolParameter `json:"parameters"`
}

// ToolCall represents a tool execution record.
type ToolCall struct {
	ToolCallID     string          `json:"tool_call_id"`
	ConversationID string          `json:"conversation_id"`
	ToolName       string          `json:"tool_name"`
	Status         ToolCallStatus  `json:"status"`
	Args           json.RawMessage `json:"args"`
	Result         string          `json:"result,omitempty"`
	CreatedAt      time.Time       `json:"created_at"`
	CompletedAt    *time.Time      `json:"completed_at,omitempty"`
}
