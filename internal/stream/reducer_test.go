package stream

import (
	"context"
	"errors"
	"iter"
	"sync"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xiaot623/gogo/workdesk/internal/adapter/llm"
	"github.com/xiaot623/gogo/workdesk/internal/domain"
	"github.com/xiaot623/gogo/workdesk/internal/persona"
	"github.com/xiaot623/gogo/workdesk/internal/policy"
	"github.com/xiaot623/gogo/workdesk/internal/session"
	"github.com/xiaot623/gogo/workdesk/internal/tools"
)

type step struct {
	ev  llm.Event
	err error
}

// scriptedConversation replays one script per SendStream call. When the
// scripts run out the last one repeats.
type scriptedConversation struct {
	mu      sync.Mutex
	scripts [][]step
	sent    [][]llm.Part
}

func (c *scriptedConversation) SendStream(ctx context.Context, parts ...llm.Part) iter.Seq2[llm.Event, error] {
	c.mu.Lock()
	idx := len(c.sent)
	c.sent = append(c.sent, parts)
	if idx >= len(c.scripts) {
		idx = len(c.scripts) - 1
	}
	script := c.scripts[idx]
	c.mu.Unlock()

	return func(yield func(llm.Event, error) bool) {
		for _, s := range script {
			if err := ctx.Err(); err != nil {
				yield(llm.Event{}, err)
				return
			}
			if !yield(s.ev, s.err) || s.err != nil {
				return
			}
		}
	}
}

func text(s string) step { return step{ev: llm.Event{Text: s}} }

func call(id, name string, args map[string]any) step {
	return step{ev: llm.Event{ToolCalls: []domain.ToolInvocation{{CallID: id, Name: name, Args: args}}}}
}

func newSession(conv llm.Conversation, p domain.Persona) *session.Context {
	return &session.Context{
		ID:           "conv_test",
		Persona:      p,
		Caller:       domain.User{Name: "Ana", Role: domain.RoleEmployee},
		Conversation: conv,
	}
}

type countingPlanner struct {
	reminders int
	users     []string
}

func (p *countingPlanner) AddReminderFromTool(ctx context.Context, user, task, when string) (domain.Reminder, error) {
	p.reminders++
	p.users = append(p.users, user)
	return domain.Reminder{Task: task}, nil
}

func (p *countingPlanner) AddMeetingFromTool(ctx context.Context, user, topic string, participants []string, when string) (domain.Meeting, error) {
	return domain.Meeting{Title: topic}, nil
}

func newReducer(t *testing.T, registry *tools.Registry) *Reducer {
	t.Helper()
	engine, err := policy.NewDefaultEngine(context.Background())
	require.NoError(t, err)
	return NewReducer(registry, engine, nil, zerolog.Nop())
}

func TestPlainTurnConcatenatesDeltas(t *testing.T) {
	conv := &scriptedConversation{scripts: [][]step{{text("Revenue "), text("is up "), text("12%.")}}}
	r := newReducer(t, tools.NewBuiltinRegistry(nil))

	var published []string
	res, err := r.RunTurn(context.Background(), newSession(conv, persona.Default()), Message{Text: "Summarize Q3 results"}, Hooks{
		OnText: func(s string) { published = append(published, s) },
	})
	require.NoError(t, err)
	assert.Equal(t, "Revenue is up 12%.", res.Text)
	assert.Equal(t, []string{"Revenue ", "Revenue is up ", "Revenue is up 12%."}, published)
	assert.Empty(t, res.ToolResults)

	require.Len(t, conv.sent, 1)
	assert.Equal(t, []llm.Part{llm.TextPart("Summarize Q3 results")}, conv.sent[0])
}

func TestStreamFailureKeepsPartialText(t *testing.T) {
	boom := errors.New("connection reset")
	conv := &scriptedConversation{scripts: [][]step{{text("Revenue "), text("is up"), {err: boom}}}}
	r := newReducer(t, tools.NewBuiltinRegistry(nil))

	res, err := r.RunTurn(context.Background(), newSession(conv, persona.Default()), Message{Text: "Summarize Q3 results"}, Hooks{})
	require.Error(t, err)
	var se *domain.StreamError
	assert.True(t, errors.As(err, &se))
	assert.ErrorIs(t, err, boom)
	assert.Equal(t, "Revenue is up", res.Text)
}

func TestSetReminderRoundTrip(t *testing.T) {
	conv := &scriptedConversation{scripts: [][]step{
		{call("c1", tools.SetReminder, map[string]any{"task": "Call Bob", "time": "2pm"})},
		{text("Done, "), text("reminder set.")},
	}}
	planner := &countingPlanner{}
	r := newReducer(t, tools.NewBuiltinRegistry(planner))

	var invoked []string
	var statuses []domain.ToolCallStatus
	res, err := r.RunTurn(context.Background(), newSession(conv, persona.Default()), Message{Text: "Remind me to call Bob at 2pm"}, Hooks{
		OnToolInvoked: func(inv domain.ToolInvocation) { invoked = append(invoked, inv.CallID) },
		OnToolResult: func(inv domain.ToolInvocation, res domain.ToolResult, status domain.ToolCallStatus) {
			statuses = append(statuses, status)
		},
	})
	require.NoError(t, err)

	assert.Equal(t, "Done, reminder set.", res.Text)
	require.Len(t, res.ToolResults, 1)
	assert.Equal(t, "c1", res.ToolResults[0].CallID)
	assert.Equal(t, `Success. I have set a reminder for "Call Bob" at 2pm.`, res.ToolResults[0].Result)
	assert.Equal(t, 1, planner.reminders)
	assert.Equal(t, []string{"Ana"}, planner.users)
	assert.Equal(t, []string{"c1"}, invoked)
	assert.Equal(t, []domain.ToolCallStatus{domain.ToolCallStatusSucceeded}, statuses)

	require.Len(t, conv.sent, 2)
	require.Len(t, conv.sent[1], 1)
	require.NotNil(t, conv.sent[1][0].ToolResult)
	assert.Equal(t, "c1", conv.sent[1][0].ToolResult.CallID)
}

func TestToolResultsPrecedeSameEventText(t *testing.T) {
	conv := &scriptedConversation{scripts: [][]step{
		{{ev: llm.Event{Text: "A", ToolCalls: []domain.ToolInvocation{{CallID: "c1", Name: "unknownTool"}}}}},
		{text("B")},
	}}
	r := newReducer(t, tools.NewBuiltinRegistry(nil))

	res, err := r.RunTurn(context.Background(), newSession(conv, persona.Default()), Message{Text: "go"}, Hooks{})
	require.NoError(t, err)
	assert.Equal(t, "BA", res.Text)
}

func TestEachInvocationGetsExactlyOneResult(t *testing.T) {
	conv := &scriptedConversation{scripts: [][]step{
		{{ev: llm.Event{ToolCalls: []domain.ToolInvocation{
			{CallID: "a", Name: tools.SetReminder, Args: map[string]any{"task": "x", "time": "1pm"}},
			{CallID: "b", Name: "launchRocket"},
		}}}},
		{text("ok")},
	}}
	planner := &countingPlanner{}
	r := newReducer(t, tools.NewBuiltinRegistry(planner))

	var statuses []domain.ToolCallStatus
	res, err := r.RunTurn(context.Background(), newSession(conv, persona.Default()), Message{Text: "go"}, Hooks{
		OnToolResult: func(_ domain.ToolInvocation, _ domain.ToolResult, s domain.ToolCallStatus) { statuses = append(statuses, s) },
	})
	require.NoError(t, err)

	require.Len(t, res.ToolResults, 2)
	assert.Equal(t, "a", res.ToolResults[0].CallID)
	assert.Equal(t, "b", res.ToolResults[1].CallID)
	assert.Equal(t, "Error: Function not implemented.", res.ToolResults[1].Result)
	assert.Equal(t, 1, planner.reminders)
	assert.Equal(t, []domain.ToolCallStatus{domain.ToolCallStatusSucceeded, domain.ToolCallStatusNotFound}, statuses)
	assert.Equal(t, "okok", res.Text)
}

func TestHandlerPanicBecomesResultText(t *testing.T) {
	registry := tools.NewRegistry()
	calls := 0
	registry.MustRegister(domain.ToolDeclaration{Name: "explode"}, func(ctx context.Context, inv domain.ToolInvocation) (string, error) {
		calls++
		panic("boom")
	})
	conv := &scriptedConversation{scripts: [][]step{{call("c1", "explode", nil)}, {text("recovered")}}}
	r := newReducer(t, registry)

	res, err := r.RunTurn(context.Background(), newSession(conv, persona.Default()), Message{Text: "go"}, Hooks{})
	require.NoError(t, err)
	assert.Equal(t, 1, calls)
	require.Len(t, res.ToolResults, 1)
	assert.Equal(t, "Error: panic: boom", res.ToolResults[0].Result)
	assert.Equal(t, "recovered", res.Text)
}

func TestHandlerErrorBecomesResultText(t *testing.T) {
	conv := &scriptedConversation{scripts: [][]step{{call("c1", tools.SetReminder, map[string]any{"task": "x"})}, {text("ok")}}}
	r := newReducer(t, tools.NewBuiltinRegistry(nil))

	res, err := r.RunTurn(context.Background(), newSession(conv, persona.Default()), Message{Text: "go"}, Hooks{})
	require.NoError(t, err)
	assert.Equal(t, `Error: missing required argument "time"`, res.ToolResults[0].Result)
}

func TestPolicyBlocksToolsForPersonaWithoutTools(t *testing.T) {
	planner := &countingPlanner{}
	wellness, err := persona.Lookup(domain.PersonaWellness)
	require.NoError(t, err)
	conv := &scriptedConversation{scripts: [][]step{
		{call("c1", tools.SetReminder, map[string]any{"task": "x", "time": "1pm"})},
		{text("sorry")},
	}}
	r := newReducer(t, tools.NewBuiltinRegistry(planner))

	var status domain.ToolCallStatus
	res, err := r.RunTurn(context.Background(), newSession(conv, wellness), Message{Text: "go"}, Hooks{
		OnToolResult: func(_ domain.ToolInvocation, _ domain.ToolResult, s domain.ToolCallStatus) { status = s },
	})
	require.NoError(t, err)
	assert.Equal(t, 0, planner.reminders)
	assert.Equal(t, BlockedToolResult, res.ToolResults[0].Result)
	assert.Equal(t, domain.ToolCallStatusBlocked, status)
}

func TestToolLoopIsBounded(t *testing.T) {
	conv := &scriptedConversation{scripts: [][]step{{call("c", "launchRocket", nil)}}}
	r := newReducer(t, tools.NewBuiltinRegistry(nil)).WithMaxDepth(3)

	res, err := r.RunTurn(context.Background(), newSession(conv, persona.Default()), Message{Text: "go"}, Hooks{})
	assert.ErrorIs(t, err, domain.ErrToolLoop)
	assert.Len(t, res.ToolResults, 3)
	assert.Len(t, conv.sent, 4)
}

func TestCancelledTurnStops(t *testing.T) {
	conv := &scriptedConversation{scripts: [][]step{{text("a"), text("b")}}}
	r := newReducer(t, tools.NewBuiltinRegistry(nil))

	ctx, cancel := context.WithCancel(context.Background())
	res, err := r.RunTurn(ctx, newSession(conv, persona.Default()), Message{Text: "go"}, Hooks{
		OnText: func(string) { cancel() },
	})
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, "a", res.Text)
}

func TestBuildParts(t *testing.T) {
	att := &domain.Attachment{Filename: "q3.pdf", MIMEType: "application/pdf", Data: "JVBERi0="}

	parts := BuildParts(Message{Attachment: att})
	require.Len(t, parts, 2)
	require.NotNil(t, parts[0].Blob)
	assert.Equal(t, "application/pdf", parts[0].Blob.MIMEType)
	assert.Equal(t, "JVBERi0=", parts[0].Blob.Data)
	assert.Equal(t, DefaultAttachmentPrompt, parts[1].Text)

	parts = BuildParts(Message{Text: "What changed?", Attachment: att})
	assert.Equal(t, "What changed?", parts[1].Text)

	parts = BuildParts(Message{Text: "hi"})
	assert.Equal(t, []llm.Part{llm.TextPart("hi")}, parts)
}
