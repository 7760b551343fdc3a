// Package repository defines the storage interface and its SQLite implementation.
package repository

import (
	"context"

	"github.com/xiaot623/gogo/workdesk/internal/domain"
)

// Store defines the interface for data persistence.
type Store interface {
	// Conversation operations
	CreateConversation(ctx context.Context, conv *domain.Conversation) error
	GetConversation(ctx context.Context, conversationID string) (*domain.Conversation, error)

	// Message operations
	CreateMessage(ctx context.Context, message *domain.Message) error
	GetMessages(ctx context.Context, conversationID string, limit int) ([]domain.Message, error)

	// Event operations
	CreateEvent(ctx context.Context, event *domain.Event) error
	GetEvents(ctx context.Context, conversationID string, afterTs int64, types []string, limit int) ([]domain.Event, error)

	// ToolCall operations
	CreateToolCall(ctx context.Context, toolCall *domain.ToolCall) error
	GetToolCall(ctx context.Context, toolCallID string) (*domain.ToolCall, error)
	ListToolCalls(ctx context.Context, conversationID string) ([]domain.ToolCall, error)
	UpdateToolCallResult(ctx context.Context, toolCallID string, status domain.ToolCallStatus, result string) (bool, error)

	// Key-value records
	GetRecord(ctx context.Context, key string) ([]byte, bool, error)
	PutRecord(ctx context.Context, key string, value []byte) error

	// Lifecycle
	Close() error
}

// Ensure SQLiteStore implements Store interface.
var _ Store = (*SQLiteStore)(nil)
