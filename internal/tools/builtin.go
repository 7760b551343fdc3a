package tools

import (
	"context"
	"fmt"
	"strings"

	"github.com/xiaot623/gogo/workdesk/internal/domain"
)

// Tool names declared to the model.
const (
	SetReminder     = "setReminder"
	ScheduleMeeting = "scheduleMeeting"
)

// Planner persists the side effects of the built-in tools.
type Planner interface {
	AddReminderFromTool(ctx context.Context, user, task, when string) (domain.Reminder, error)
	AddMeetingFromTool(ctx context.Context, user, topic string, participants []string, when string) (domain.Meeting, error)
}

var setReminderDecl = domain.ToolDeclaration{
	Name:        SetReminder,
	Description: "Set a reminder for the user for a specific task and time.",
	Parameters: []domain.ToolParameter{
		{Name: "task", Description: "The task to be reminded about.", Required: true},
		{Name: "time", Description: `The time for the reminder (e.g. "2pm", "in 10 minutes").`, Required: true},
	},
}

var scheduleMeetingDecl = domain.ToolDeclaration{
	Name:        ScheduleMeeting,
	Description: "Schedule a meeting with colleagues.",
	Parameters: []domain.ToolParameter{
		{Name: "topic", Description: "The subject or topic of the meeting.", Required: true},
		{Name: "participants", Description: "Comma separated list of participants.", Required: true},
		{Name: "time", Description: "Date and time of the meeting.", Required: true},
	},
}

// NewBuiltinRegistry registers setReminder and scheduleMeeting. A nil planner
// acknowledges calls without recording anything.
func NewBuiltinRegistry(planner Planner) *Registry {
	r := NewRegistry()

	r.MustRegister(setReminderDecl, func(ctx context.Context, inv domain.ToolInvocation) (string, error) {
		task, when, err := requireArgs(inv, "task", "time")
		if err != nil {
			return "", err
		}
		if planner != nil {
			if _, err := planner.AddReminderFromTool(ctx, UserFrom(ctx), task, when); err != nil {
				return "", err
			}
		}
		return fmt.Sprintf("Success. I have set a reminder for %q at %s.", task, when), nil
	})

	r.MustRegister(scheduleMeetingDecl, func(ctx context.Context, inv domain.ToolInvocation) (string, error) {
		topic, when, err := requireArgs(inv, "topic", "time")
		if err != nil {
			return "", err
		}
		participants := inv.StringArg("participants")
		if planner != nil {
			if _, err := planner.AddMeetingFromTool(ctx, UserFrom(ctx), topic, SplitParticipants(participants), when); err != nil {
				return "", err
			}
		}
		return fmt.Sprintf("Success. Meeting scheduled regarding %q with %s at %s.", topic, participants, when), nil
	})

	return r
}

func requireArgs(inv domain.ToolInvocation, a, b string) (string, string, error) {
	first, second := strings.TrimSpace(inv.StringArg(a)), strings.TrimSpace(inv.StringArg(b))
	if first == "" {
		return "", "", fmt.Errorf("missing required argument %q", a)
	}
	if second == "" {
		return "", "", fmt.Errorf("missing required argument %q", b)
	}
	return first, second, nil
}

// SplitParticipants parses a comma separated participant list.
func SplitParticipants(s string) []string {
	var out []string
	for _, p := range strings.Split(s, ",") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
