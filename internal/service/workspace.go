package service

import (
	"context"
	"io"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/xiaot623/gogo/workdesk/internal/attachment"
	"github.com/xiaot623/gogo/workdesk/internal/domain"
	"github.com/xiaot623/gogo/workdesk/internal/persona"
	"github.com/xiaot623/gogo/workdesk/internal/session"
	"github.com/xiaot623/gogo/workdesk/internal/transcript"
)

// Workspace is the application state of one login.
type Workspace struct {
	ID        string
	CreatedAt time.Time

	mu          sync.Mutex
	user        domain.User
	view        domain.View
	persona     domain.Persona
	session     *session.Context
	log         *transcript.Log
	streaming   bool
	cancel      context.CancelFunc
	suggestions []string
	attachment  *domain.Attachment
	// epoch changes whenever a message is sent or the transcript is
	// reset. Late suggestions carrying an older epoch are dropped.
	epoch uint64
}

func (ws *Workspace) cancelTurn() {
	ws.mu.Lock()
	defer ws.mu.Unlock()
	if ws.cancel != nil {
		ws.cancel()
	}
}

// State is a point-in-time snapshot of a workspace.
type State struct {
	WorkspaceID       string             `json:"workspace_id"`
	User              domain.User        `json:"user"`
	View              domain.View        `json:"view"`
	Persona           domain.Persona     `json:"persona"`
	ConversationID    string             `json:"conversation_id,omitempty"`
	Transcript        []domain.Entry     `json:"transcript"`
	Streaming         bool               `json:"streaming"`
	Suggestions       []string           `json:"suggestions"`
	PendingAttachment *domain.Attachment `json:"pending_attachment,omitempty"`
}

// snapshot must be called with ws.mu held.
func (ws *Workspace) snapshot() State {
	st := State{
		WorkspaceID:       ws.ID,
		User:              ws.user,
		View:              ws.view,
		Persona:           ws.persona,
		Transcript:        ws.log.Entries(),
		Streaming:         ws.streaming,
		Suggestions:       append([]string{}, ws.suggestions...),
		PendingAttachment: attachment.Describe(ws.attachment),
	}
	if ws.session != nil {
		st.ConversationID = ws.session.ID
	}
	return st
}

// Login creates a workspace for a trusted name and role. The dashboard is
// shown first; no conversation exists until the chat view is entered.
func (s *Service) Login(ctx context.Context, name string, role domain.UserRole) (State, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return State{}, domain.NewValidationError("name", "name is required")
	}
	if !role.Valid() {
		return State{}, domain.NewValidationError("role", "unknown role")
	}

	ws := &Workspace{
		ID:        "ws_" + uuid.New().String(),
		CreatedAt: time.Now(),
		user:      domain.User{Name: name, Role: role},
		view:      domain.ViewDashboard,
		persona:   persona.Default(),
		log:       transcript.NewLog(),
	}
	s.workspaces.Add(ws.ID, ws)

	s.logger.Info().Str("workspace_id", ws.ID).Str("user", name).Str("role", string(role)).Msg("user logged in")

	ws.mu.Lock()
	defer ws.mu.Unlock()
	return ws.snapshot(), nil
}

// Logout drops the workspace, cancelling any turn in flight.
func (s *Service) Logout(ctx context.Context, id string) error {
	if !s.workspaces.Remove(id) {
		return domain.ErrWorkspaceNotFound
	}
	return nil
}

func (s *Service) workspace(id string) (*Workspace, error) {
	ws, ok := s.workspaces.Get(id)
	if !ok {
		return nil, domain.ErrWorkspaceNotFound
	}
	return ws, nil
}

// Snapshot returns the current state of workspace id.
func (s *Service) Snapshot(ctx context.Context, id string) (State, error) {
	ws, err := s.workspace(id)
	if err != nil {
		return State{}, err
	}
	ws.mu.Lock()
	defer ws.mu.Unlock()
	return ws.snapshot(), nil
}

// Caller returns the identity bound to workspace id.
func (s *Service) Caller(ctx context.Context, id string) (domain.User, error) {
	ws, err := s.workspace(id)
	if err != nil {
		return domain.User{}, err
	}
	ws.mu.Lock()
	defer ws.mu.Unlock()
	return ws.user, nil
}

// Navigate switches the visible view. Entering the chat view always opens
// a General conversation and resets the transcript to its greeting.
func (s *Service) Navigate(ctx context.Context, id string, view domain.View) (State, error) {
	if !view.Valid() {
		return State{}, domain.NewValidationError("view", "unknown view")
	}
	ws, err := s.workspace(id)
	if err != nil {
		return State{}, err
	}

	ws.mu.Lock()
	defer ws.mu.Unlock()
	if ws.streaming {
		return State{}, domain.ErrTurnInProgress
	}

	if view == domain.ViewChat {
		if err := s.resetChat(ctx, ws, persona.Default()); err != nil {
			return State{}, err
		}
	}
	ws.view = view
	return ws.snapshot(), nil
}

// Personas lists the personas the workspace's role may pick.
func (s *Service) Personas(ctx context.Context, id string) ([]domain.Persona, error) {
	user, err := s.Caller(ctx, id)
	if err != nil {
		return nil, err
	}
	return persona.VisibleTo(user.Role), nil
}

// SelectPersona opens a new conversation with personaID and resets the
// transcript to its greeting.
func (s *Service) SelectPersona(ctx context.Context, id string, personaID domain.PersonaID) (State, error) {
	p, err := persona.Lookup(personaID)
	if err != nil {
		return State{}, err
	}
	ws, err := s.chatWorkspace(id)
	if err != nil {
		return State{}, err
	}

	ws.mu.Lock()
	defer ws.mu.Unlock()
	if ws.streaming {
		return State{}, domain.ErrTurnInProgress
	}
	if err := s.resetChat(ctx, ws, p); err != nil {
		return State{}, err
	}
	return ws.snapshot(), nil
}

// ClearChat starts over with the current persona.
func (s *Service) ClearChat(ctx context.Context, id string) (State, error) {
	ws, err := s.chatWorkspace(id)
	if err != nil {
		return State{}, err
	}

	ws.mu.Lock()
	defer ws.mu.Unlock()
	if ws.streaming {
		return State{}, domain.ErrTurnInProgress
	}
	if err := s.resetChat(ctx, ws, ws.persona); err != nil {
		return State{}, err
	}
	return ws.snapshot(), nil
}

// Suggestions returns the current suggestion set.
func (s *Service) Suggestions(ctx context.Context, id string) ([]string, error) {
	ws, err := s.workspace(id)
	if err != nil {
		return nil, err
	}
	ws.mu.Lock()
	defer ws.mu.Unlock()
	return append([]string{}, ws.suggestions...), nil
}

// AttachFile reads r into the pending attachment, replacing any earlier
// one. Only PDFs and images are accepted.
func (s *Service) AttachFile(ctx context.Context, id, filename, declaredType string, r io.Reader) (*domain.Attachment, error) {
	ws, err := s.chatWorkspace(id)
	if err != nil {
		return nil, err
	}

	att, err := attachment.Read(filename, declaredType, r, s.maxAttachmentBytes)
	if err != nil {
		return nil, err
	}

	ws.mu.Lock()
	defer ws.mu.Unlock()
	ws.attachment = att
	return attachment.Describe(att), nil
}

// ClearAttachment drops the pending attachment.
func (s *Service) ClearAttachment(ctx context.Context, id string) error {
	ws, err := s.workspace(id)
	if err != nil {
		return err
	}
	ws.mu.Lock()
	defer ws.mu.Unlock()
	ws.attachment = nil
	return nil
}

func (s *Service) chatWorkspace(id string) (*Workspace, error) {
	ws, err := s.workspace(id)
	if err != nil {
		return nil, err
	}
	ws.mu.Lock()
	defer ws.mu.Unlock()
	if ws.view != domain.ViewChat || ws.session == nil {
		return nil, domain.ErrNotInChat
	}
	return ws, nil
}

// resetChat replaces the conversation and transcript. ws.mu must be held.
func (s *Service) resetChat(ctx context.Context, ws *Workspace, p domain.Persona) error {
	sc, err := s.sessions.Open(ctx, ws.ID, p, ws.user)
	if err != nil {
		return err
	}

	ws.session = sc
	ws.persona = p
	ws.suggestions = nil
	ws.epoch++
	greeting := ws.log.Reset(persona.Greeting(p, ws.user.Name))

	s.saveMessage(ctx, sc.ID, greeting)
	s.publish(domain.Update{
		Type:           domain.UpdateReset,
		Ts:             time.Now().UnixMilli(),
		WorkspaceID:    ws.ID,
		ConversationID: sc.ID,
		Entry:          &greeting,
	})
	return nil
}
