package repository

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/xiaot623/gogo/workdesk/internal/domain"
)

func newTestStore(t *testing.T) *SQLiteStore {
	t.Helper()
	store, err := NewSQLiteStore(":memory:")
	if err != nil {
		t.Fatalf("failed to create store: %v", err)
	}
	return store
}

func createConversation(t *testing.T, store *SQLiteStore, id string) {
	t.Helper()
	conv := &domain.Conversation{
		ConversationID: id,
		WorkspaceID:    "ws1",
		UserName:       "Ana",
		UserRole:       domain.RoleManager,
		PersonaID:      domain.PersonaGeneral,
		CreatedAt:      time.Now(),
	}
	if err := store.CreateConversation(context.Background(), conv); err != nil {
		t.Fatalf("CreateConversation failed: %v", err)
	}
}

func TestSQLiteStoreConversationAndMessages(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)
	defer store.Close()

	createConversation(t, store, "c1")

	got, err := store.GetConversation(ctx, "c1")
	if err != nil {
		t.Fatalf("GetConversation failed: %v", err)
	}
	if got == nil || got.UserRole != domain.RoleManager || got.PersonaID != domain.PersonaGeneral {
		t.Fatalf("unexpected conversation: %+v", got)
	}
	missing, err := store.GetConversation(ctx, "nope")
	if err != nil || missing != nil {
		t.Fatalf("expected nil conversation, got %+v, %v", missing, err)
	}

	now := time.Now()
	msgs := []*domain.Message{
		{MessageID: "m1", ConversationID: "c1", Speaker: domain.SpeakerUser, Content: "", AttachmentName: "q3.pdf", AttachmentType: "application/pdf", CreatedAt: now},
		{MessageID: "m2", ConversationID: "c1", Speaker: domain.SpeakerAssistant, Content: "Revenue is up", CreatedAt: now.Add(time.Millisecond)},
	}
	for _, m := range msgs {
		if err := store.CreateMessage(ctx, m); err != nil {
			t.Fatalf("CreateMessage failed: %v", err)
		}
	}

	messages, err := store.GetMessages(ctx, "c1", 10)
	if err != nil {
		t.Fatalf("GetMessages failed: %v", err)
	}
	if len(messages) != 2 {
		t.Fatalf("expected 2 messages, got %d", len(messages))
	}
	if messages[0].AttachmentName != "q3.pdf" || messages[1].Content != "Revenue is up" {
		t.Fatalf("unexpected messages: %+v", messages)
	}
}

func TestSQLiteStoreMessageRequiresConversation(t *testing.T) {
	store := newTestStore(t)
	defer store.Close()

	err := store.CreateMessage(context.Background(), &domain.Message{MessageID: "m1", ConversationID: "ghost", Speaker: domain.SpeakerUser, CreatedAt: time.Now()})
	if err == nil {
		t.Fatalf("expected foreign key error")
	}
}

func TestSQLiteStoreEvents(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)
	defer store.Close()

	for i, typ := range []domain.EventType{domain.EventTypeSessionOpened, domain.EventTypeTurnStarted, domain.EventTypeTurnDone} {
		event := &domain.Event{
			EventID:        "e" + string(rune('1'+i)),
			ConversationID: "c1",
			Ts:             int64(100 + i),
			Type:           typ,
			Payload:        json.RawMessage(`{"ok":true}`),
		}
		if err := store.CreateEvent(ctx, event); err != nil {
			t.Fatalf("CreateEvent failed: %v", err)
		}
	}

	events, err := store.GetEvents(ctx, "c1", 100, nil, 0)
	if err != nil {
		t.Fatalf("GetEvents failed: %v", err)
	}
	if len(events) != 2 {
		t.Fatalf("expected 2 events after ts filter, got %d", len(events))
	}

	events, err = store.GetEvents(ctx, "c1", 0, []string{string(domain.EventTypeTurnDone)}, 10)
	if err != nil {
		t.Fatalf("GetEvents failed: %v", err)
	}
	if len(events) != 1 || events[0].Type != domain.EventTypeTurnDone || string(events[0].Payload) != `{"ok":true}` {
		t.Fatalf("unexpected events: %+v", events)
	}
}

func TestSQLiteStoreToolCalls(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)
	defer store.Close()

	tc := &domain.ToolCall{
		ToolCallID:     "tc1",
		ConversationID: "c1",
		ToolName:       "setReminder",
		Status:         domain.ToolCallStatusRunning,
		Args:           json.RawMessage(`{"task":"x"}`),
		CreatedAt:      time.Now(),
	}
	if err := store.CreateToolCall(ctx, tc); err != nil {
		t.Fatalf("CreateToolCall failed: %v", err)
	}

	updated, err := store.UpdateToolCallResult(ctx, "tc1", domain.ToolCallStatusSucceeded, "Success.")
	if err != nil || !updated {
		t.Fatalf("UpdateToolCallResult failed: %v (updated=%v)", err, updated)
	}
	updated, err = store.UpdateToolCallResult(ctx, "tc1", domain.ToolCallStatusFailed, "late")
	if err != nil || updated {
		t.Fatalf("expected second completion to be ignored: %v (updated=%v)", err, updated)
	}

	got, err := store.GetToolCall(ctx, "tc1")
	if err != nil {
		t.Fatalf("GetToolCall failed: %v", err)
	}
	if got.Status != domain.ToolCallStatusSucceeded || got.Result != "Success." || got.CompletedAt == nil {
		t.Fatalf("unexpected tool call: %+v", got)
	}

	calls, err := store.ListToolCalls(ctx, "c1")
	if err != nil || len(calls) != 1 {
		t.Fatalf("ListToolCalls: %v (%d)", err, len(calls))
	}
}

func TestSQLiteStoreRecords(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)
	defer store.Close()

	_, ok, err := store.GetRecord(ctx, "reminders:Ana")
	if err != nil || ok {
		t.Fatalf("expected missing record: ok=%v err=%v", ok, err)
	}

	if err := store.PutRecord(ctx, "reminders:Ana", []byte(`[1]`)); err != nil {
		t.Fatalf("PutRecord failed: %v", err)
	}
	if err := store.PutRecord(ctx, "reminders:Ana", []byte(`[1,2]`)); err != nil {
		t.Fatalf("PutRecord overwrite failed: %v", err)
	}

	value, ok, err := store.GetRecord(ctx, "reminders:Ana")
	if err != nil || !ok || string(value) != `[1,2]` {
		t.Fatalf("unexpected record: %q ok=%v err=%v", value, ok, err)
	}
}
