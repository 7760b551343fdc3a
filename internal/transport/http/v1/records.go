package v1

import (
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/xiaot623/gogo/workdesk/internal/domain"
	"github.com/xiaot623/gogo/workdesk/internal/records"
)

// caller resolves the identity the records of this request belong to.
func (h *Handler) caller(c echo.Context) (domain.User, error) {
	return h.service.Caller(c.Request().Context(), c.Param("id"))
}

// ReminderResponse is a reminder with its computed overdue flag.
type ReminderResponse struct {
	domain.Reminder
	Overdue bool `json:"overdue"`
}

func reminderResponse(r domain.Reminder, now time.Time) ReminderResponse {
	return ReminderResponse{Reminder: r, Overdue: r.Overdue(now)}
}

// ListReminders lists reminders.
// GET /v1/workspaces/:id/reminders?priority=&status=&q=&overdue=true
func (h *Handler) ListReminders(c echo.Context) error {
	user, err := h.caller(c)
	if err != nil {
		return h.respondError(c, err)
	}
	ctx := c.Request().Context()

	var items []domain.Reminder
	if c.QueryParam("overdue") == "true" {
		items, err = h.reminders.Overdue(ctx, user.Name)
	} else {
		items, err = h.reminders.List(ctx, user.Name, records.ReminderFilter{
			Priority: c.QueryParam("priority"),
			Status:   c.QueryParam("status"),
			Query:    c.QueryParam("q"),
		})
	}
	if err != nil {
		return h.respondError(c, err)
	}

	now := time.Now()
	out := make([]ReminderResponse, len(items))
	for i, r := range items {
		out[i] = reminderResponse(r, now)
	}
	return c.JSON(http.StatusOK, map[string]interface{}{
		"reminders": out,
	})
}

// CreateReminder adds a reminder.
// POST /v1/workspaces/:id/reminders
func (h *Handler) CreateReminder(c echo.Context) error {
	var in records.ReminderInput
	if err := c.Bind(&in); err != nil {
		return badRequest(c, "invalid request body")
	}
	user, err := h.caller(c)
	if err != nil {
		return h.respondError(c, err)
	}

	r, err := h.reminders.Create(c.Request().Context(), user.Name, in)
	if err != nil {
		return h.respondError(c, err)
	}
	return c.JSON(http.StatusCreated, reminderResponse(r, time.Now()))
}

// UpdateReminder edits a reminder.
// PUT /v1/workspaces/:id/reminders/:rid
func (h *Handler) UpdateReminder(c echo.Context) error {
	var in records.ReminderInput
	if err := c.Bind(&in); err != nil {
		return badRequest(c, "invalid request body")
	}
	user, err := h.caller(c)
	if err != nil {
		return h.respondError(c, err)
	}

	r, err := h.reminders.Update(c.Request().Context(), user.Name, c.Param("rid"), in)
	if err != nil {
		return h.respondError(c, err)
	}
	return c.JSON(http.StatusOK, reminderResponse(r, time.Now()))
}

// ToggleReminder flips the completed flag.
// POST /v1/workspaces/:id/reminders/:rid/toggle
func (h *Handler) ToggleReminder(c echo.Context) error {
	user, err := h.caller(c)
	if err != nil {
		return h.respondError(c, err)
	}

	r, err := h.reminders.Toggle(c.Request().Context(), user.Name, c.Param("rid"))
	if err != nil {
		return h.respondError(c, err)
	}
	return c.JSON(http.StatusOK, reminderResponse(r, time.Now()))
}

// DeleteReminder removes a reminder.
// DELETE /v1/workspaces/:id/reminders/:rid
func (h *Handler) DeleteReminder(c echo.Context) error {
	user, err := h.caller(c)
	if err != nil {
		return h.respondError(c, err)
	}
	if err := h.reminders.Delete(c.Request().Context(), user.Name, c.Param("rid")); err != nil {
		return h.respondError(c, err)
	}
	return c.NoContent(http.StatusNoContent)
}

// ListMeetings lists meetings.
// GET /v1/workspaces/:id/meetings?status=&q=&upcoming=true
func (h *Handler) ListMeetings(c echo.Context) error {
	user, err := h.caller(c)
	if err != nil {
		return h.respondError(c, err)
	}
	ctx := c.Request().Context()

	var items []domain.Meeting
	if c.QueryParam("upcoming") == "true" {
		items, err = h.meetings.Upcoming(ctx, user.Name)
	} else {
		items, err = h.meetings.List(ctx, user.Name, records.MeetingFilter{
			Status: c.QueryParam("status"),
			Query:  c.QueryParam("q"),
		})
	}
	if err != nil {
		return h.respondError(c, err)
	}
	return c.JSON(http.StatusOK, map[string]interface{}{
		"meetings": items,
	})
}

// CreateMeeting schedules a meeting.
// POST /v1/workspaces/:id/meetings
func (h *Handler) CreateMeeting(c echo.Context) error {
	var in records.MeetingInput
	if err := c.Bind(&in); err != nil {
		return badRequest(c, "invalid request body")
	}
	user, err := h.caller(c)
	if err != nil {
		return h.respondError(c, err)
	}

	m, err := h.meetings.Create(c.Request().Context(), user.Name, in)
	if err != nil {
		return h.respondError(c, err)
	}
	return c.JSON(http.StatusCreated, m)
}

// UpdateMeeting edits a meeting.
// PUT /v1/workspaces/:id/meetings/:mid
func (h *Handler) UpdateMeeting(c echo.Context) error {
	var in records.MeetingInput
	if err := c.Bind(&in); err != nil {
		return badRequest(c, "invalid request body")
	}
	user, err := h.caller(c)
	if err != nil {
		return h.respondError(c, err)
	}

	m, err := h.meetings.Update(c.Request().Context(), user.Name, c.Param("mid"), in)
	if err != nil {
		return h.respondError(c, err)
	}
	return c.JSON(http.StatusOK, m)
}

// CancelMeeting marks a meeting cancelled.
// POST /v1/workspaces/:id/meetings/:mid/cancel
func (h *Handler) CancelMeeting(c echo.Context) error {
	user, err := h.caller(c)
	if err != nil {
		return h.respondError(c, err)
	}

	m, err := h.meetings.Cancel(c.Request().Context(), user.Name, c.Param("mid"))
	if err != nil {
		return h.respondError(c, err)
	}
	return c.JSON(http.StatusOK, m)
}

// DeleteMeeting removes a meeting.
// DELETE /v1/workspaces/:id/meetings/:mid
func (h *Handler) DeleteMeeting(c echo.Context) error {
	user, err := h.caller(c)
	if err != nil {
		return h.respondError(c, err)
	}
	if err := h.meetings.Delete(c.Request().Context(), user.Name, c.Param("mid")); err != nil {
		return h.respondError(c, err)
	}
	return c.NoContent(http.StatusNoContent)
}

// ListPredictions lists stored predictions, newest first.
// GET /v1/workspaces/:id/predictions?category=
func (h *Handler) ListPredictions(c echo.Context) error {
	user, err := h.caller(c)
	if err != nil {
		return h.respondError(c, err)
	}

	items, err := h.predictions.List(c.Request().Context(), user.Name, c.QueryParam("category"))
	if err != nil {
		return h.respondError(c, err)
	}
	return c.JSON(http.StatusOK, map[string]interface{}{
		"predictions": items,
		"categories":  records.Categories,
	})
}

// PredictionRequest asks for a new forecast.
type PredictionRequest struct {
	Category string `json:"category"`
	Query    string `json:"query"`
}

// GeneratePrediction asks the model for a forecast. Model failures are
// reported as 502.
// POST /v1/workspaces/:id/predictions
func (h *Handler) GeneratePrediction(c echo.Context) error {
	var req PredictionRequest
	if err := c.Bind(&req); err != nil {
		return badRequest(c, "invalid request body")
	}
	user, err := h.caller(c)
	if err != nil {
		return h.respondError(c, err)
	}

	p, err := h.predictions.Generate(c.Request().Context(), user, req.Category, req.Query)
	if err != nil {
		if domain.IsValidationError(err) {
			return h.respondError(c, err)
		}
		h.logger.Error().Err(err).Str("category", req.Category).Msg("prediction failed")
		return c.JSON(http.StatusBadGateway, map[string]string{
			"error": "Unable to generate a prediction right now. Please try again.",
		})
	}
	return c.JSON(http.StatusCreated, p)
}

// DeletePrediction removes a prediction.
// DELETE /v1/workspaces/:id/predictions/:pid
func (h *Handler) DeletePrediction(c echo.Context) error {
	user, err := h.caller(c)
	if err != nil {
		return h.respondError(c, err)
	}
	if err := h.predictions.Delete(c.Request().Context(), user.Name, c.Param("pid")); err != nil {
		return h.respondError(c, err)
	}
	return c.NoContent(http.StatusNoContent)
}
