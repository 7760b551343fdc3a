// Package session opens conversation contexts bound to one persona.
package session

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/xiaot623/gogo/workdesk/internal/adapter/llm"
	"github.com/xiaot623/gogo/workdesk/internal/domain"
	"github.com/xiaot623/gogo/workdesk/internal/metrics"
	"github.com/xiaot623/gogo/workdesk/internal/persona"
)

// Context is one conversation with the model. It is replaced, never
// mutated, when the persona changes or the transcript is reset.
type Context struct {
	ID           string
	WorkspaceID  string
	Persona      domain.Persona
	Caller       domain.User
	Conversation llm.Conversation
	CreatedAt    time.Time
}

// PersonaAuthorizer decides whether a role may use a persona.
type PersonaAuthorizer interface {
	AuthorizePersona(ctx context.Context, p domain.Persona, role domain.UserRole) error
}

// Recorder persists opened conversations.
type Recorder interface {
	CreateConversation(ctx context.Context, conv *domain.Conversation) error
	CreateEvent(ctx context.Context, event *domain.Event) error
}

// Declarer lists the tools offered to tool-enabled personas.
type Declarer interface {
	Declarations() []domain.ToolDeclaration
}

// Manager opens conversation contexts.
type Manager struct {
	provider    llm.Provider
	tools       Declarer
	authorizer  PersonaAuthorizer
	recorder    Recorder
	metrics     *metrics.Metrics
	logger      zerolog.Logger
	temperature float32
}

// Options configures a Manager. Authorizer, Recorder and Metrics are optional.
type Options struct {
	Provider    llm.Provider
	Tools       Declarer
	Authorizer  PersonaAuthorizer
	Recorder    Recorder
	Metrics     *metrics.Metrics
	Logger      zerolog.Logger
	Temperature float32
}

// NewManager creates a session manager.
func NewManager(opts Options) *Manager {
	return &Manager{
		provider:    opts.Provider,
		tools:       opts.Tools,
		authorizer:  opts.Authorizer,
		recorder:    opts.Recorder,
		metrics:     opts.Metrics,
		logger:      opts.Logger,
		temperature: opts.Temperature,
	}
}

// Open creates a fresh context for p on behalf of caller. Restricted
// personas are re-checked here regardless of what the caller was shown.
func (m *Manager) Open(ctx context.Context, workspaceID string, p domain.Persona, caller domain.User) (*Context, error) {
	if m.authorizer != nil {
		if err := m.authorizer.AuthorizePersona(ctx, p, caller.Role); err != nil {
			return nil, err
		}
	} else if !p.AllowedFor(caller.Role) {
		return nil, domain.ErrPersonaForbidden
	}

	cfg := llm.ConversationConfig{
		SystemPrompt: persona.SystemPrompt(p, caller.Role),
		Temperature:  m.temperature,
	}
	if p.ToolsEnabled && m.tools != nil {
		cfg.Tools = m.tools.Declarations()
	}

	conv, err := m.provider.NewConversation(ctx, cfg)
	if err != nil {
		return nil, err
	}

	sc := &Context{
		ID:           "conv_" + uuid.New().String(),
		WorkspaceID:  workspaceID,
		Persona:      p,
		Caller:       caller,
		Conversation: conv,
		CreatedAt:    time.Now(),
	}
	m.record(ctx, sc, len(cfg.Tools) > 0)
	m.metrics.RecordSessionOpened(string(p.ID))

	m.logger.Debug().
		Str("conversation_id", sc.ID).
		Str("workspace_id", workspaceID).
		Str("persona", string(p.ID)).
		Bool("tools", len(cfg.Tools) > 0).
		Msg("conversation opened")

	return sc, nil
}

func (m *Manager) record(ctx context.Context, sc *Context, tools bool) {
	if m.recorder == nil {
		return
	}
	// Storage failures are logged and never block the chat.
	if err := m.recorder.CreateConversation(ctx, &domain.Conversation{
		ConversationID: sc.ID,
		WorkspaceID:    sc.WorkspaceID,
		UserName:       sc.Caller.Name,
		UserRole:       sc.Caller.Role,
		PersonaID:      sc.Persona.ID,
		CreatedAt:      sc.CreatedAt,
	}); err != nil {
		m.logger.Error().Err(err).Str("conversation_id", sc.ID).Msg("failed to save conversation")
		return
	}

	event, err := domain.NewEvent(sc.ID, domain.EventTypeSessionOpened, domain.SessionOpenedPayload{
		WorkspaceID:  sc.WorkspaceID,
		PersonaID:    sc.Persona.ID,
		Role:         sc.Caller.Role,
		ToolsEnabled: tools,
	})
	if err == nil {
		err = m.recorder.CreateEvent(ctx, event)
	}
	if err != nil {
		m.logger.Error().Err(err).Str("conversation_id", sc.ID).Msg("failed to record session_opened event")
	}
}
