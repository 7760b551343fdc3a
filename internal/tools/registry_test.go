package tools

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xiaot623/gogo/workdesk/internal/domain"
)

type fakePlanner struct {
	reminders []string
	meetings  [][]string
	users     []string
	err       error
}

func (f *fakePlanner) AddReminderFromTool(ctx context.Context, user, task, when string) (domain.Reminder, error) {
	if f.err != nil {
		return domain.Reminder{}, f.err
	}
	f.users = append(f.users, user)
	f.reminders = append(f.reminders, task+"@"+when)
	return domain.Reminder{Task: task}, nil
}

func (f *fakePlanner) AddMeetingFromTool(ctx context.Context, user, topic string, participants []string, when string) (domain.Meeting, error) {
	if f.err != nil {
		return domain.Meeting{}, f.err
	}
	f.users = append(f.users, user)
	f.meetings = append(f.meetings, participants)
	return domain.Meeting{Title: topic}, nil
}

func TestRegistryRegister(t *testing.T) {
	r := NewRegistry()
	h := func(ctx context.Context, inv domain.ToolInvocation) (string, error) { return "ok", nil }

	require.NoError(t, r.Register(domain.ToolDeclaration{Name: "a"}, h))
	assert.Error(t, r.Register(domain.ToolDeclaration{Name: "a"}, h))
	assert.Error(t, r.Register(domain.ToolDeclaration{}, h))
	assert.Error(t, r.Register(domain.ToolDeclaration{Name: "b"}, nil))
}

func TestLookupUnknownReturnsNotFound(t *testing.T) {
	r := NewRegistry()
	h, ok := r.Lookup("launchRocket")
	assert.False(t, ok)

	out, err := h(context.Background(), domain.ToolInvocation{Name: "launchRocket"})
	require.NoError(t, err)
	assert.Equal(t, "Error: Function not implemented.", out)
}

func TestBuiltinDeclarations(t *testing.T) {
	decls := NewBuiltinRegistry(nil).Declarations()
	require.Len(t, decls, 2)
	assert.Equal(t, SetReminder, decls[0].Name)
	assert.Equal(t, ScheduleMeeting, decls[1].Name)
	assert.Len(t, decls[1].Parameters, 3)
	for _, p := range decls[1].Parameters {
		assert.True(t, p.Required, p.Name)
	}
}

func TestSetReminder(t *testing.T) {
	planner := &fakePlanner{}
	r := NewBuiltinRegistry(planner)
	h, ok := r.Lookup(SetReminder)
	require.True(t, ok)

	ctx := WithUser(context.Background(), "Ana")
	out, err := h(ctx, domain.ToolInvocation{CallID: "c1", Name: SetReminder, Args: map[string]any{"task": "Call Bob", "time": "2pm"}})
	require.NoError(t, err)
	assert.Equal(t, `Success. I have set a reminder for "Call Bob" at 2pm.`, out)
	assert.Equal(t, []string{"Call Bob@2pm"}, planner.reminders)
	assert.Equal(t, []string{"Ana"}, planner.users)
}

func TestScheduleMeeting(t *testing.T) {
	planner := &fakePlanner{}
	h, _ := NewBuiltinRegistry(planner).Lookup(ScheduleMeeting)

	out, err := h(context.Background(), domain.ToolInvocation{Name: ScheduleMeeting, Args: map[string]any{
		"topic": "Q3 review", "participants": "Ana, Bob ,", "time": "Friday 10am",
	}})
	require.NoError(t, err)
	assert.Equal(t, `Success. Meeting scheduled regarding "Q3 review" with Ana, Bob , at Friday 10am.`, out)
	assert.Equal(t, [][]string{{"Ana", "Bob"}}, planner.meetings)
}

func TestBuiltinErrors(t *testing.T) {
	h, _ := NewBuiltinRegistry(&fakePlanner{}).Lookup(SetReminder)
	_, err := h(context.Background(), domain.ToolInvocation{Args: map[string]any{"task": "x"}})
	assert.ErrorContains(t, err, `"time"`)

	failing := &fakePlanner{err: errors.New("store down")}
	h, _ = NewBuiltinRegistry(failing).Lookup(SetReminder)
	_, err = h(context.Background(), domain.ToolInvocation{Args: map[string]any{"task": "x", "time": "now"}})
	assert.ErrorContains(t, err, "store down")
}

func TestUserFromEmptyContext(t *testing.T) {
	assert.Equal(t, "", UserFrom(context.Background()))
}
