package service

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"

	"github.com/xiaot623/gogo/workdesk/internal/domain"
)

// recordEvent records an event to the store. Failures are logged only.
func (s *Service) recordEvent(ctx context.Context, conversationID string, eventType domain.EventType, payload interface{}) {
	event, err := domain.NewEvent(conversationID, eventType, payload)
	if err == nil {
		err = s.store.CreateEvent(ctx, event)
	}
	if err != nil {
		s.logger.Error().Err(err).
			Str("conversation_id", conversationID).
			Str("event", string(eventType)).
			Msg("failed to record event")
	}
}

// saveMessage persists a finalized transcript entry. Storage failure
// shouldn't block the turn.
func (s *Service) saveMessage(ctx context.Context, conversationID string, e domain.Entry) {
	msg := &domain.Message{
		MessageID:      e.ID,
		ConversationID: conversationID,
		Speaker:        e.Speaker,
		Content:        e.Text,
		CreatedAt:      e.CreatedAt,
	}
	if e.Attachment != nil {
		msg.AttachmentName = e.Attachment.Filename
		msg.AttachmentType = e.Attachment.MIMEType
	}
	if err := s.store.CreateMessage(ctx, msg); err != nil {
		s.logger.Error().Err(err).Str("conversation_id", conversationID).Str("message_id", e.ID).Msg("failed to save message")
	}
}

func (s *Service) startToolCall(ctx context.Context, conversationID string, inv domain.ToolInvocation) string {
	id := "tc_" + uuid.New().String()
	args, err := json.Marshal(inv.Args)
	if err != nil {
		args = []byte("{}")
	}
	if err := s.store.CreateToolCall(ctx, &domain.ToolCall{
		ToolCallID:     id,
		ConversationID: conversationID,
		ToolName:       inv.Name,
		Status:         domain.ToolCallStatusRunning,
		Args:           args,
		CreatedAt:      time.Now(),
	}); err != nil {
		s.logger.Error().Err(err).Str("tool", inv.Name).Msg("failed to save tool call")
	}
	return id
}

func (s *Service) finishToolCall(ctx context.Context, toolCallID string, status domain.ToolCallStatus, result string) {
	if toolCallID == "" {
		return
	}
	if _, err := s.store.UpdateToolCallResult(ctx, toolCallID, status, result); err != nil {
		s.logger.Error().Err(err).Str("tool_call_id", toolCallID).Msg("failed to update tool call")
	}
}

// History returns the persisted transcript of a conversation.
func (s *Service) History(ctx context.Context, conversationID string, limit int) ([]domain.Message, error) {
	conv, err := s.store.GetConversation(ctx, conversationID)
	if err != nil {
		return nil, err
	}
	if conv == nil {
		return nil, domain.ErrRecordNotFound
	}
	return s.store.GetMessages(ctx, conversationID, limit)
}

// Events returns the recorded events of a conversation.
func (s *Service) Events(ctx context.Context, conversationID string, afterTs int64, types []string, limit int) ([]domain.Event, error) {
	return s.store.GetEvents(ctx, conversationID, afterTs, types, limit)
}

// ToolCalls returns the tool calls executed in a conversation.
func (s *Service) ToolCalls(ctx context.Context, conversationID string) ([]domain.ToolCall, error) {
	return s.store.ListToolCalls(ctx, conversationID)
}
