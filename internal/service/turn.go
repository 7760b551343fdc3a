package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/xiaot623/gogo/workdesk/internal/attachment"
	"github.com/xiaot623/gogo/workdesk/internal/domain"
	"github.com/xiaot623/gogo/workdesk/internal/metrics"
	"github.com/xiaot623/gogo/workdesk/internal/stream"
)

// InterruptionNotice is appended when a turn fails.
const InterruptionNotice = "**System Notification:** Connection interruption detected. Please retry your request."

// Turn statuses reported in TurnOutcome.
const (
	TurnDone      = "done"
	TurnFailed    = "failed"
	TurnCancelled = "cancelled"
)

// TurnOutcome summarizes a finished turn.
type TurnOutcome struct {
	ConversationID string              `json:"conversation_id"`
	Status         string              `json:"status"`
	Entry          domain.Entry        `json:"entry"`
	Notice         *domain.Entry       `json:"notice,omitempty"`
	ToolResults    []domain.ToolResult `json:"tool_results,omitempty"`
}

// SendMessage runs one turn in the caller's goroutine. onUpdate, when set,
// receives every update of the turn in order; the same updates go to the
// publisher. A failed or cancelled turn is reported through the outcome,
// not the error, which is reserved for requests that never started a turn.
func (s *Service) SendMessage(ctx context.Context, id, text string, onUpdate func(domain.Update)) (*TurnOutcome, error) {
	ws, err := s.workspace(id)
	if err != nil {
		return nil, err
	}

	ws.mu.Lock()
	if ws.view != domain.ViewChat || ws.session == nil {
		ws.mu.Unlock()
		return nil, domain.ErrNotInChat
	}
	if ws.streaming {
		ws.mu.Unlock()
		return nil, domain.ErrTurnInProgress
	}
	att := ws.attachment
	if strings.TrimSpace(text) == "" && att == nil {
		ws.mu.Unlock()
		return nil, domain.NewValidationError("text", "message is empty")
	}

	var (
		turnCtx context.Context
		cancel  context.CancelFunc
	)
	if s.turnTimeout > 0 {
		turnCtx, cancel = context.WithTimeout(ctx, s.turnTimeout)
	} else {
		turnCtx, cancel = context.WithCancel(ctx)
	}
	ws.streaming = true
	ws.cancel = cancel
	ws.attachment = nil
	ws.suggestions = nil
	ws.epoch++
	epoch := ws.epoch
	sc := ws.session
	log := ws.log
	ws.mu.Unlock()

	defer func() {
		ws.mu.Lock()
		ws.streaming = false
		ws.cancel = nil
		ws.mu.Unlock()
		cancel()
	}()

	// Persistence outlives a cancelled request.
	storeCtx := context.WithoutCancel(ctx)
	started := time.Now()
	finish := s.metrics.TurnStarted(string(sc.Persona.ID))
	emit := func(u domain.Update) {
		u.Ts = time.Now().UnixMilli()
		u.WorkspaceID = ws.ID
		u.ConversationID = sc.ID
		if onUpdate != nil {
			onUpdate(u)
		}
		s.publish(u)
	}

	userEntry, err := log.Append(domain.SpeakerUser, text, attachment.Describe(att))
	if err != nil {
		finish(metrics.StatusFailed)
		return nil, err
	}
	emit(domain.Update{Type: domain.UpdateEntry, Entry: &userEntry})
	s.saveMessage(storeCtx, sc.ID, userEntry)

	reply, err := log.Begin()
	if err != nil {
		finish(metrics.StatusFailed)
		return nil, err
	}
	emit(domain.Update{Type: domain.UpdateEntry, Entry: &reply})

	payload := domain.TurnStartedPayload{EntryID: reply.ID, Content: text}
	if att != nil {
		payload.AttachmentName = att.Filename
	}
	s.recordEvent(storeCtx, sc.ID, domain.EventTypeTurnStarted, payload)

	logger := s.logger.With().Str("workspace_id", ws.ID).Str("conversation_id", sc.ID).Logger()
	var toolCallID string
	hooks := stream.Hooks{
		OnText: func(accumulated string) {
			if err := log.Update(reply.ID, accumulated); err != nil {
				logger.Warn().Err(err).Msg("failed to update open entry")
				return
			}
			entry := reply
			entry.Text = accumulated
			emit(domain.Update{Type: domain.UpdateDelta, Entry: &entry})
		},
		OnToolInvoked: func(inv domain.ToolInvocation) {
			toolCallID = s.startToolCall(storeCtx, sc.ID, inv)
			s.recordEvent(storeCtx, sc.ID, domain.EventTypeToolInvoked, domain.ToolInvokedPayload{
				CallID: inv.CallID,
				Name:   inv.Name,
				Args:   inv.Args,
			})
			emit(domain.Update{Type: domain.UpdateTool, Tool: &domain.ToolUpdate{
				CallID: inv.CallID,
				Name:   inv.Name,
				Args:   inv.Args,
				Status: domain.ToolCallStatusRunning,
			}})
		},
		OnToolResult: func(inv domain.ToolInvocation, res domain.ToolResult, status domain.ToolCallStatus) {
			s.finishToolCall(storeCtx, toolCallID, status, res.Result)
			toolCallID = ""
			s.recordEvent(storeCtx, sc.ID, domain.EventTypeToolResult, domain.ToolResultPayload{
				CallID: inv.CallID,
				Name:   inv.Name,
				Status: status,
				Result: res.Result,
			})
			emit(domain.Update{Type: domain.UpdateTool, Tool: &domain.ToolUpdate{
				CallID: inv.CallID,
				Name:   inv.Name,
				Status: status,
				Result: res.Result,
			}})
		},
	}

	result, runErr := s.reducer.RunTurn(turnCtx, sc, stream.Message{Text: text, Attachment: att}, hooks)

	final, err := log.Seal(reply.ID)
	if err != nil {
		logger.Warn().Err(err).Msg("failed to seal open entry")
		final = reply
		final.Text = result.Text
	}
	if final.Text != "" {
		s.saveMessage(storeCtx, sc.ID, final)
	}

	outcome := &TurnOutcome{
		ConversationID: sc.ID,
		Entry:          final,
		ToolResults:    result.ToolResults,
	}

	switch {
	case runErr == nil:
		outcome.Status = TurnDone
		s.recordEvent(storeCtx, sc.ID, domain.EventTypeTurnDone, domain.TurnDonePayload{
			EntryID:    final.ID,
			FinalText:  final.Text,
			ToolCalls:  len(result.ToolResults),
			DurationMs: time.Since(started).Milliseconds(),
		})
		finish(metrics.StatusDone)
		emit(domain.Update{Type: domain.UpdateDone, Entry: &final})

		history := log.Last(3)
		s.goSafe("suggestions", func() { s.refreshSuggestions(ws, sc.ID, epoch, history) })

	case errors.Is(turnCtx.Err(), context.Canceled):
		outcome.Status = TurnCancelled
		logger.Info().Msg("turn cancelled")
		s.recordEvent(storeCtx, sc.ID, domain.EventTypeTurnCancelled, domain.TurnFailedPayload{
			EntryID: final.ID,
			Code:    "cancelled",
			Message: "cancelled by user",
		})
		finish(metrics.StatusCancelled)
		emit(domain.Update{Type: domain.UpdateCancelled, Entry: &final})

	default:
		outcome.Status = TurnFailed
		code := errorCode(runErr)
		logger.Error().Err(runErr).Str("code", code).Msg("turn failed")

		notice, err := log.Append(domain.SpeakerAssistant, InterruptionNotice, nil)
		if err != nil {
			logger.Warn().Err(err).Msg("failed to append interruption notice")
		} else {
			outcome.Notice = &notice
			s.saveMessage(storeCtx, sc.ID, notice)
			emit(domain.Update{Type: domain.UpdateEntry, Entry: &notice})
		}
		s.recordEvent(storeCtx, sc.ID, domain.EventTypeTurnFailed, domain.TurnFailedPayload{
			EntryID: final.ID,
			Code:    code,
			Message: runErr.Error(),
		})
		finish(metrics.StatusFailed)
		emit(domain.Update{Type: domain.UpdateError, Entry: &final, Code: code, Message: InterruptionNotice})
	}

	return outcome, nil
}

// CancelTurn stops the turn in flight, if any.
func (s *Service) CancelTurn(ctx context.Context, id string) error {
	ws, err := s.workspace(id)
	if err != nil {
		return err
	}
	ws.cancelTurn()
	return nil
}

// refreshSuggestions runs detached from the turn. Its result is applied
// only if nothing was sent or reset since epoch.
func (s *Service) refreshSuggestions(ws *Workspace, conversationID string, epoch uint64, history []domain.Entry) {
	if s.suggester == nil {
		return
	}
	suggestions, fallback := s.suggester.Suggest(context.Background(), history)

	ws.mu.Lock()
	if ws.epoch != epoch {
		ws.mu.Unlock()
		s.logger.Debug().Str("workspace_id", ws.ID).Msg("discarding stale suggestions")
		return
	}
	ws.suggestions = suggestions
	ws.mu.Unlock()

	ctx := context.Background()
	s.recordEvent(ctx, conversationID, domain.EventTypeSuggestionsReady, domain.SuggestionsReadyPayload{
		Suggestions: suggestions,
		Fallback:    fallback,
	})
	s.publish(domain.Update{
		Type:           domain.UpdateSuggestions,
		Ts:             time.Now().UnixMilli(),
		WorkspaceID:    ws.ID,
		ConversationID: conversationID,
		Suggestions:    suggestions,
	})
}

// errorCode classifies a turn failure for clients and events.
func errorCode(err error) string {
	switch {
	case domain.IsConfigurationError(err):
		return "configuration_error"
	case errors.Is(err, domain.ErrToolLoop):
		return "tool_loop"
	case errors.Is(err, context.DeadlineExceeded):
		return "timeout"
	default:
		return "stream_interrupted"
	}
}
