package session

import (
	"context"
	"errors"
	"iter"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xiaot623/gogo/workdesk/internal/adapter/llm"
	"github.com/xiaot623/gogo/workdesk/internal/domain"
	"github.com/xiaot623/gogo/workdesk/internal/metrics"
	"github.com/xiaot623/gogo/workdesk/internal/persona"
	"github.com/xiaot623/gogo/workdesk/internal/policy"
	storetest "github.com/xiaot623/gogo/workdesk/internal/testutil"
	"github.com/xiaot623/gogo/workdesk/internal/tools"
)

type recordingProvider struct {
	configs []llm.ConversationConfig
}

func (p *recordingProvider) NewConversation(ctx context.Context, cfg llm.ConversationConfig) (llm.Conversation, error) {
	p.configs = append(p.configs, cfg)
	return nopConversation{}, nil
}

func (p *recordingProvider) Generate(ctx context.Context, prompt string, temperature float32) (string, error) {
	return "", nil
}

type nopConversation struct{}

func (nopConversation) SendStream(ctx context.Context, parts ...llm.Part) iter.Seq2[llm.Event, error] {
	return func(yield func(llm.Event, error) bool) {}
}

func newManager(t *testing.T, provider llm.Provider, rec Recorder, m *metrics.Metrics) *Manager {
	t.Helper()
	engine, err := policy.NewDefaultEngine(context.Background())
	require.NoError(t, err)
	return NewManager(Options{
		Provider:    provider,
		Tools:       tools.NewBuiltinRegistry(nil),
		Authorizer:  engine,
		Recorder:    rec,
		Metrics:     m,
		Logger:      zerolog.Nop(),
		Temperature: 0.7,
	})
}

func TestOpenBuildsPromptAndTools(t *testing.T) {
	provider := &recordingProvider{}
	mgr := newManager(t, provider, nil, nil)
	caller := domain.User{Name: "Ana", Role: domain.RoleEmployee}

	sc, err := mgr.Open(context.Background(), "ws1", persona.Default(), caller)
	require.NoError(t, err)
	assert.NotEmpty(t, sc.ID)
	assert.Equal(t, "ws1", sc.WorkspaceID)
	assert.Equal(t, caller, sc.Caller)

	require.Len(t, provider.configs, 1)
	cfg := provider.configs[0]
	assert.Equal(t, persona.SystemPrompt(persona.Default(), domain.RoleEmployee), cfg.SystemPrompt)
	assert.InDelta(t, 0.7, cfg.Temperature, 0.0001)
	require.Len(t, cfg.Tools, 2)

	wellness, _ := persona.Lookup(domain.PersonaWellness)
	_, err = mgr.Open(context.Background(), "ws1", wellness, caller)
	require.NoError(t, err)
	assert.Empty(t, provider.configs[1].Tools)
}

func TestOpenReturnsFreshContexts(t *testing.T) {
	mgr := newManager(t, &recordingProvider{}, nil, nil)
	caller := domain.User{Name: "Ana", Role: domain.RoleEmployee}

	a, err := mgr.Open(context.Background(), "ws1", persona.Default(), caller)
	require.NoError(t, err)
	b, err := mgr.Open(context.Background(), "ws1", persona.Default(), caller)
	require.NoError(t, err)
	assert.NotEqual(t, a.ID, b.ID)
}

func TestOpenRejectsRestrictedPersona(t *testing.T) {
	provider := &recordingProvider{}
	mgr := newManager(t, provider, nil, nil)

	hr, _ := persona.Lookup(domain.PersonaHRAssistant)
	_, err := mgr.Open(context.Background(), "ws1", hr, domain.User{Name: "Bo", Role: domain.RoleEmployee})
	assert.True(t, errors.Is(err, domain.ErrPersonaForbidden))
	assert.Empty(t, provider.configs)

	_, err = mgr.Open(context.Background(), "ws1", hr, domain.User{Name: "Cy", Role: domain.RoleHRAdmin})
	assert.NoError(t, err)
}

func TestOpenWithoutAuthorizerFallsBackToAllowList(t *testing.T) {
	mgr := NewManager(Options{Provider: &recordingProvider{}, Logger: zerolog.Nop()})
	strategist, _ := persona.Lookup(domain.PersonaStrategist)

	_, err := mgr.Open(context.Background(), "ws1", strategist, domain.User{Name: "Bo", Role: domain.RoleEmployee})
	assert.ErrorIs(t, err, domain.ErrPersonaForbidden)
}

func TestOpenRecordsConversationAndEvent(t *testing.T) {
	store := storetest.NewTestSQLiteStore(t)
	m := metrics.New(prometheus.NewRegistry())
	mgr := newManager(t, &recordingProvider{}, store, m)
	ctx := context.Background()

	sc, err := mgr.Open(ctx, "ws9", persona.Default(), domain.User{Name: "Ana", Role: domain.RoleManager})
	require.NoError(t, err)

	conv, err := store.GetConversation(ctx, sc.ID)
	require.NoError(t, err)
	require.NotNil(t, conv)
	assert.Equal(t, "ws9", conv.WorkspaceID)
	assert.Equal(t, domain.PersonaGeneral, conv.PersonaID)

	events, err := store.GetEvents(ctx, sc.ID, 0, nil, 0)
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, domain.EventTypeSessionOpened, events[0].Type)
	assert.JSONEq(t, `{"workspace_id":"ws9","persona_id":"general","role":"Manager","tools_enabled":true}`, string(events[0].Payload))

	assert.Equal(t, 1.0, testutil.ToFloat64(m.SessionsOpenedTotal.WithLabelValues("general")))
}
