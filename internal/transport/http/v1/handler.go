// Package v1 provides the public HTTP handlers for workdesk.
package v1

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"

	"github.com/xiaot623/gogo/workdesk/internal/domain"
	"github.com/xiaot623/gogo/workdesk/internal/records"
	"github.com/xiaot623/gogo/workdesk/internal/service"
)

// Handler handles HTTP requests.
type Handler struct {
	service     *service.Service
	reminders   *records.ReminderBook
	meetings    *records.MeetingBook
	predictions *records.PredictionBook
	logger      zerolog.Logger
}

// NewHandler creates a new handler.
func NewHandler(svc *service.Service, reminders *records.ReminderBook, meetings *records.MeetingBook, predictions *records.PredictionBook, logger zerolog.Logger) *Handler {
	return &Handler{
		service:     svc,
		reminders:   reminders,
		meetings:    meetings,
		predictions: predictions,
		logger:      logger,
	}
}

// RegisterRoutes registers the v1 routes with the echo server.
func (h *Handler) RegisterRoutes(e *echo.Echo) {
	e.POST("/v1/login", h.Login)

	// Workspace API
	w := e.Group("/v1/workspaces/:id")
	w.GET("", h.GetWorkspace)
	w.POST("/logout", h.Logout)
	w.POST("/view", h.Navigate)
	w.GET("/personas", h.ListPersonas)
	w.POST("/persona", h.SelectPersona)
	w.POST("/clear", h.ClearChat)
	w.POST("/attachment", h.Attach)
	w.DELETE("/attachment", h.ClearAttachment)
	w.POST("/messages", h.SendMessage)
	w.POST("/cancel", h.CancelTurn)
	w.GET("/suggestions", h.GetSuggestions)

	// Records API
	w.GET("/reminders", h.ListReminders)
	w.POST("/reminders", h.CreateReminder)
	w.PUT("/reminders/:rid", h.UpdateReminder)
	w.POST("/reminders/:rid/toggle", h.ToggleReminder)
	w.DELETE("/reminders/:rid", h.DeleteReminder)
	w.GET("/meetings", h.ListMeetings)
	w.POST("/meetings", h.CreateMeeting)
	w.PUT("/meetings/:mid", h.UpdateMeeting)
	w.POST("/meetings/:mid/cancel", h.CancelMeeting)
	w.DELETE("/meetings/:mid", h.DeleteMeeting)
	w.GET("/predictions", h.ListPredictions)
	w.POST("/predictions", h.GeneratePrediction)
	w.DELETE("/predictions/:pid", h.DeletePrediction)

	// Conversation history API
	e.GET("/v1/conversations/:conversation_id/messages", h.GetConversationMessages)
	e.GET("/v1/conversations/:conversation_id/events", h.GetConversationEvents)
	e.GET("/v1/conversations/:conversation_id/tool_calls", h.GetConversationToolCalls)
}

// statusFor maps domain errors to HTTP status codes.
func statusFor(err error) int {
	switch {
	case domain.IsValidationError(err):
		return http.StatusBadRequest
	case errors.Is(err, domain.ErrPersonaNotFound):
		return http.StatusBadRequest
	case errors.Is(err, domain.ErrPersonaForbidden):
		return http.StatusForbidden
	case errors.Is(err, domain.ErrWorkspaceNotFound), errors.Is(err, domain.ErrRecordNotFound):
		return http.StatusNotFound
	case errors.Is(err, domain.ErrTurnInProgress), errors.Is(err, domain.ErrNotInChat):
		return http.StatusConflict
	case domain.IsConfigurationError(err):
		return http.StatusBadGateway
	}
	return http.StatusInternalServerError
}

// respondError writes err as a JSON body. Only user-facing messages are
// returned; anything else is logged and replaced by a generic message.
func (h *Handler) respondError(c echo.Context, err error) error {
	status := statusFor(err)

	var ve *domain.ValidationError
	switch {
	case errors.As(err, &ve):
		return c.JSON(status, map[string]string{"error": ve.Message, "field": ve.Field})
	case status == http.StatusBadGateway:
		h.logger.Error().Err(err).Str("path", c.Path()).Msg("upstream unavailable")
		return c.JSON(status, map[string]string{"error": "The assistant service is not configured."})
	case status == http.StatusInternalServerError:
		h.logger.Error().Err(err).Str("path", c.Path()).Msg("request failed")
		return c.JSON(status, map[string]string{"error": "internal error"})
	}
	return c.JSON(status, map[string]string{"error": err.Error()})
}

func badRequest(c echo.Context, message string) error {
	return c.JSON(http.StatusBadRequest, map[string]string{"error": message})
}
