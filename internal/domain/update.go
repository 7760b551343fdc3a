package domain

// UpdateType names a push notification about a workspace.
type UpdateType string

const (
	UpdateEntry       UpdateType = "entry"
	UpdateDelta       UpdateType = "delta"
	UpdateTool        UpdateType = "tool"
	UpdateDone        UpdateType = "done"
	UpdateError       UpdateType = "error"
	UpdateCancelled   UpdateType = "cancelled"
	UpdateReset       UpdateType = "reset"
	UpdateSuggestions UpdateType = "suggestions"
)

// Update is streamed to SSE clients and pushed over websockets. Fields are
// filled according to Type.
type Update struct {
	Type           UpdateType `json:"type"`
	Ts             int64      `json:"ts"`
	WorkspaceID    string     `json:"workspace_id"`
	ConversationID string     `json:"conversation_id,omitempty"`

	// entry, delta, done: the transcript entry involved.
	Entry *Entry `json:"entry,omitempty"`

	// tool
	Tool *ToolUpdate `json:"tool,omitempty"`

	// suggestions
	Suggestions []string `json:"suggestions,omitempty"`

	// error
	Code    string `json:"code,omitempty"`
	Message string `json:"message,omitempty"`
}

// ToolUpdate describes one tool invocation as it progresses.
type ToolUpdate struct {
	CallID string         `json:"call_id"`
	Name   string         `json:"name"`
	Args   map[string]any `json:"args,omitempty"`
	Status ToolCallStatus `json:"status"`
	Result string         `json:"result,omitempty"`
}
