package v1

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/xiaot623/gogo/workdesk/internal/domain"
)

// SendMessageRequest is the user input of one turn. A pending attachment
// is sent along automatically.
type SendMessageRequest struct {
	Text string `json:"text"`
}

// SendMessage runs a turn and streams its updates as server-sent events.
// Requests rejected before the turn starts get a plain JSON error.
// POST /v1/workspaces/:id/messages
func (h *Handler) SendMessage(c echo.Context) error {
	var req SendMessageRequest
	if err := c.Bind(&req); err != nil {
		return badRequest(c, "invalid request body")
	}

	sse := &sseWriter{c: c}
	outcome, err := h.service.SendMessage(c.Request().Context(), c.Param("id"), req.Text, sse.write)
	if err != nil {
		if !sse.started {
			return h.respondError(c, err)
		}
		h.logger.Error().Err(err).Msg("turn ended without outcome")
		return nil
	}

	h.logger.Debug().
		Str("conversation_id", outcome.ConversationID).
		Str("status", outcome.Status).
		Int("tool_results", len(outcome.ToolResults)).
		Msg("turn streamed")
	return nil
}

// sseWriter writes updates as `event: <type>` frames. Headers are sent
// with the first update.
type sseWriter struct {
	c       echo.Context
	started bool
	failed  bool
}

func (w *sseWriter) write(u domain.Update) {
	if w.failed {
		return
	}
	res := w.c.Response()
	if !w.started {
		res.Header().Set(echo.HeaderContentType, "text/event-stream")
		res.Header().Set("Cache-Control", "no-cache")
		res.Header().Set("Connection", "keep-alive")
		res.WriteHeader(http.StatusOK)
		w.started = true
	}

	data, err := json.Marshal(u)
	if err != nil {
		w.failed = true
		return
	}
	if _, err := fmt.Fprintf(res, "event: %s\ndata: %s\n\n", u.Type, data); err != nil {
		// Client went away; the request context cancels the turn.
		w.failed = true
		return
	}
	res.Flush()
}

// CancelTurn stops the turn in flight.
// POST /v1/workspaces/:id/cancel
func (h *Handler) CancelTurn(c echo.Context) error {
	if err := h.service.CancelTurn(c.Request().Context(), c.Param("id")); err != nil {
		return h.respondError(c, err)
	}
	return c.JSON(http.StatusAccepted, map[string]bool{"ok": true})
}

// GetConversationMessages retrieves the persisted transcript.
// GET /v1/conversations/:conversation_id/messages
func (h *Handler) GetConversationMessages(c echo.Context) error {
	limit := 50
	if l := c.QueryParam("limit"); l != "" {
		if val, err := strconv.Atoi(l); err == nil {
			limit = val
		}
	}

	messages, err := h.service.History(c.Request().Context(), c.Param("conversation_id"), limit)
	if err != nil {
		return h.respondError(c, err)
	}
	return c.JSON(http.StatusOK, map[string]interface{}{
		"messages": messages,
		"has_more": len(messages) == limit,
	})
}

// GetConversationEvents retrieves recorded events.
// GET /v1/conversations/:conversation_id/events?after_ts=&types=a,b&limit=
func (h *Handler) GetConversationEvents(c echo.Context) error {
	limit := 100
	if l := c.QueryParam("limit"); l != "" {
		if val, err := strconv.Atoi(l); err == nil {
			limit = val
		}
	}
	afterTs := int64(0)
	if t := c.QueryParam("after_ts"); t != "" {
		if val, err := strconv.ParseInt(t, 10, 64); err == nil {
			afterTs = val
		}
	}
	var types []string
	if t := c.QueryParam("types"); t != "" {
		types = strings.Split(t, ",")
	}

	events, err := h.service.Events(c.Request().Context(), c.Param("conversation_id"), afterTs, types, limit)
	if err != nil {
		return h.respondError(c, err)
	}
	return c.JSON(http.StatusOK, map[string]interface{}{
		"events": events,
	})
}

// GetConversationToolCalls lists the tool calls of a conversation.
// GET /v1/conversations/:conversation_id/tool_calls
func (h *Handler) GetConversationToolCalls(c echo.Context) error {
	calls, err := h.service.ToolCalls(c.Request().Context(), c.Param("conversation_id"))
	if err != nil {
		return h.respondError(c, err)
	}
	return c.JSON(http.StatusOK, map[string]interface{}{
		"tool_calls": calls,
	})
}
