package domain

import "time"

// Attachment is a single file sent alongside a user message.
// Data holds the base64-encoded payload.
type Attachment struct {
	Filename string `json:"filename"`
	MIMEType string `json:"mime_type"`
	Data     string `json:"data,omitempty"`
}

// Entry is one line of a chat transcript.
type Entry struct {
	ID         string      `json:"id"`
	Speaker    Speaker     `json:"speaker"`
	Text       string      `json:"text"`
	CreatedAt  time.Time   `json:"created_at"`
	Attachment *Attachment `json:"attachment,omitempty"`
}

// Conversation is the persisted record of one conversation context.
type Conversation struct {
	ConversationID string    `json:"conversation_id"`
	WorkspaceID    string    `json:"workspace_id"`
	UserName       string    `json:"user_name"`
	UserRole       UserRole  `json:"user_role"`
	PersonaID      PersonaID `json:"persona_id"`
	CreatedAt      time.Time `json:"created_at"`
}

// Message is a finalized transcript entry as stored.
type Message struct {
	MessageID      string    `json:"message_id"`
	ConversationID string    `json:"conversation_id"`
	Speaker        Speaker   `json:"speaker"`
	Content        string    `json:"content"`
	AttachmentName string    `json:"attachment_name,omitempty"`
	AttachmentType string    `json:"attachment_type,omitempty"`
	CreatedAt      time.Time `json:"created_at"`
}
