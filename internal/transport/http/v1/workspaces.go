package v1

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/xiaot623/gogo/workdesk/internal/attachment"
	"github.com/xiaot623/gogo/workdesk/internal/domain"
)

// LoginRequest is the request to open a workspace.
type LoginRequest struct {
	Name string          `json:"name"`
	Role domain.UserRole `json:"role"`
}

// Login creates a workspace for a trusted identity.
// POST /v1/login
func (h *Handler) Login(c echo.Context) error {
	var req LoginRequest
	if err := c.Bind(&req); err != nil {
		return badRequest(c, "invalid request body")
	}

	state, err := h.service.Login(c.Request().Context(), req.Name, req.Role)
	if err != nil {
		return h.respondError(c, err)
	}
	return c.JSON(http.StatusOK, state)
}

// Logout drops a workspace.
// POST /v1/workspaces/:id/logout
func (h *Handler) Logout(c echo.Context) error {
	if err := h.service.Logout(c.Request().Context(), c.Param("id")); err != nil {
		return h.respondError(c, err)
	}
	return c.JSON(http.StatusOK, map[string]bool{"ok": true})
}

// GetWorkspace returns the workspace state.
// GET /v1/workspaces/:id
func (h *Handler) GetWorkspace(c echo.Context) error {
	state, err := h.service.Snapshot(c.Request().Context(), c.Param("id"))
	if err != nil {
		return h.respondError(c, err)
	}
	return c.JSON(http.StatusOK, state)
}

// NavigateRequest is the request to switch views.
type NavigateRequest struct {
	View domain.View `json:"view"`
}

// Navigate switches the visible view.
// POST /v1/workspaces/:id/view
func (h *Handler) Navigate(c echo.Context) error {
	var req NavigateRequest
	if err := c.Bind(&req); err != nil {
		return badRequest(c, "invalid request body")
	}

	state, err := h.service.Navigate(c.Request().Context(), c.Param("id"), req.View)
	if err != nil {
		return h.respondError(c, err)
	}
	return c.JSON(http.StatusOK, state)
}

// ListPersonas lists the personas the caller may pick.
// GET /v1/workspaces/:id/personas
func (h *Handler) ListPersonas(c echo.Context) error {
	personas, err := h.service.Personas(c.Request().Context(), c.Param("id"))
	if err != nil {
		return h.respondError(c, err)
	}
	return c.JSON(http.StatusOK, map[string]interface{}{
		"personas": personas,
	})
}

// SelectPersonaRequest is the request to switch persona.
type SelectPersonaRequest struct {
	PersonaID domain.PersonaID `json:"persona_id"`
}

// SelectPersona switches persona and resets the transcript.
// POST /v1/workspaces/:id/persona
func (h *Handler) SelectPersona(c echo.Context) error {
	var req SelectPersonaRequest
	if err := c.Bind(&req); err != nil {
		return badRequest(c, "invalid request body")
	}
	if req.PersonaID == "" {
		return badRequest(c, "persona_id is required")
	}

	state, err := h.service.SelectPersona(c.Request().Context(), c.Param("id"), req.PersonaID)
	if err != nil {
		return h.respondError(c, err)
	}
	return c.JSON(http.StatusOK, state)
}

// ClearChat resets the transcript.
// POST /v1/workspaces/:id/clear
func (h *Handler) ClearChat(c echo.Context) error {
	state, err := h.service.ClearChat(c.Request().Context(), c.Param("id"))
	if err != nil {
		return h.respondError(c, err)
	}
	return c.JSON(http.StatusOK, state)
}

// Attach stores an uploaded file as the pending attachment.
// POST /v1/workspaces/:id/attachment (multipart field "file")
func (h *Handler) Attach(c echo.Context) error {
	fh, err := c.FormFile("file")
	if err != nil {
		return badRequest(c, "file is required")
	}
	f, err := fh.Open()
	if err != nil {
		return badRequest(c, "file is unreadable")
	}
	defer f.Close()

	att, err := h.service.AttachFile(c.Request().Context(), c.Param("id"), fh.Filename, fh.Header.Get("Content-Type"), f)
	if err != nil {
		var ve *domain.ValidationError
		if errors.As(err, &ve) && ve.Field == attachment.FieldType {
			return c.JSON(http.StatusUnsupportedMediaType, map[string]string{"error": ve.Message})
		}
		return h.respondError(c, err)
	}
	return c.JSON(http.StatusOK, att)
}

// ClearAttachment drops the pending attachment.
// DELETE /v1/workspaces/:id/attachment
func (h *Handler) ClearAttachment(c echo.Context) error {
	if err := h.service.ClearAttachment(c.Request().Context(), c.Param("id")); err != nil {
		return h.respondError(c, err)
	}
	return c.NoContent(http.StatusNoContent)
}

// GetSuggestions returns the current suggestion set.
// GET /v1/workspaces/:id/suggestions
func (h *Handler) GetSuggestions(c echo.Context) error {
	suggestions, err := h.service.Suggestions(c.Request().Context(), c.Param("id"))
	if err != nil {
		return h.respondError(c, err)
	}
	return c.JSON(http.StatusOK, map[string]interface{}{
		"suggestions": suggestions,
	})
}
