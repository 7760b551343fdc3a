package records

import (
	"context"
	"slices"
	"strings"
	"time"

	"github.com/xiaot623/gogo/workdesk/internal/domain"
)

// ToolMeetingLength is the duration of meetings scheduled by the model.
const ToolMeetingLength = 30 * time.Minute

// MeetingInput is the editable part of a meeting.
type MeetingInput struct {
	Title        string          `json:"title"`
	Participants []string        `json:"participants"`
	StartTime    time.Time       `json:"start_time"`
	EndTime      time.Time       `json:"end_time"`
	Location     string          `json:"location"`
	Description  string          `json:"description"`
	Priority     domain.Priority `json:"priority"`
}

// MeetingFilter narrows List. Empty fields match everything.
type MeetingFilter struct {
	Status string
	Query  string
}

// MeetingBook stores meetings per user.
type MeetingBook struct {
	list list[domain.Meeting]
	now  func() time.Time
}

// NewMeetingBook creates a meeting book over store.
func NewMeetingBook(store Store) *MeetingBook {
	b := &MeetingBook{now: time.Now}
	b.list = list[domain.Meeting]{store: store, key: meetingsKey, seed: b.samples}
	return b
}

func (b *MeetingBook) samples() []domain.Meeting {
	start := b.now().Add(24 * time.Hour)
	return []domain.Meeting{{
		ID:           newID(),
		Title:        "Team Standup",
		Participants: []string{"John Doe", "Jane Smith"},
		StartTime:    start,
		EndTime:      start.Add(30 * time.Minute),
		Location:     "Conference Room A",
		Status:       domain.MeetingStatusScheduled,
		Priority:     domain.PriorityHigh,
	}}
}

// List returns the user's meetings matching f in stored order.
func (b *MeetingBook) List(ctx context.Context, user string, f MeetingFilter) ([]domain.Meeting, error) {
	items, err := b.list.read(ctx, user)
	if err != nil {
		return nil, err
	}
	query := strings.ToLower(strings.TrimSpace(f.Query))
	return slices.DeleteFunc(items, func(m domain.Meeting) bool {
		if f.Status != "" && f.Status != StatusAll && string(m.Status) != f.Status {
			return true
		}
		return query != "" && !matchesMeeting(m, query)
	}), nil
}

// Upcoming returns meetings that are not cancelled and start after now,
// soonest first.
func (b *MeetingBook) Upcoming(ctx context.Context, user string) ([]domain.Meeting, error) {
	items, err := b.list.read(ctx, user)
	if err != nil {
		return nil, err
	}
	now := b.now()
	items = slices.DeleteFunc(items, func(m domain.Meeting) bool {
		return m.Status == domain.MeetingStatusCancelled || !m.StartTime.After(now)
	})
	slices.SortStableFunc(items, func(a, b domain.Meeting) int { return a.StartTime.Compare(b.StartTime) })
	return items, nil
}

func matchesMeeting(m domain.Meeting, query string) bool {
	if containsFold(m.Title, query) || containsFold(m.Location, query) {
		return true
	}
	return slices.ContainsFunc(m.Participants, func(p string) bool { return containsFold(p, query) })
}

// Create adds a scheduled meeting. Title, start and end are required.
func (b *MeetingBook) Create(ctx context.Context, user string, in MeetingInput) (domain.Meeting, error) {
	if err := in.normalize(); err != nil {
		return domain.Meeting{}, err
	}
	m := domain.Meeting{
		ID:           newID(),
		Title:        in.Title,
		Participants: in.Participants,
		StartTime:    in.StartTime,
		EndTime:      in.EndTime,
		Location:     in.Location,
		Description:  in.Description,
		Priority:     in.Priority,
		Status:       domain.MeetingStatusScheduled,
	}
	err := b.list.update(ctx, user, func(items []domain.Meeting) ([]domain.Meeting, error) {
		return append(items, m), nil
	})
	return m, err
}

// Update edits meeting id. Editing a cancelled meeting reschedules it.
func (b *MeetingBook) Update(ctx context.Context, user, id string, in MeetingInput) (domain.Meeting, error) {
	if err := in.normalize(); err != nil {
		return domain.Meeting{}, err
	}
	return b.modify(ctx, user, id, func(m *domain.Meeting) {
		m.Title = in.Title
		m.Participants = in.Participants
		m.StartTime = in.StartTime
		m.EndTime = in.EndTime
		m.Location = in.Location
		m.Description = in.Description
		m.Priority = in.Priority
		if m.Status == domain.MeetingStatusCancelled {
			m.Status = domain.MeetingStatusRescheduled
		}
	})
}

// Cancel marks meeting id as cancelled.
func (b *MeetingBook) Cancel(ctx context.Context, user, id string) (domain.Meeting, error) {
	return b.modify(ctx, user, id, func(m *domain.Meeting) {
		m.Status = domain.MeetingStatusCancelled
	})
}

// Delete removes meeting id.
func (b *MeetingBook) Delete(ctx context.Context, user, id string) error {
	return b.list.update(ctx, user, func(items []domain.Meeting) ([]domain.Meeting, error) {
		n := len(items)
		items = slices.DeleteFunc(items, func(m domain.Meeting) bool { return m.ID == id })
		if len(items) == n {
			return nil, domain.ErrRecordNotFound
		}
		return items, nil
	})
}

func (b *MeetingBook) modify(ctx context.Context, user, id string, fn func(*domain.Meeting)) (domain.Meeting, error) {
	var updated domain.Meeting
	err := b.list.update(ctx, user, func(items []domain.Meeting) ([]domain.Meeting, error) {
		i := slices.IndexFunc(items, func(m domain.Meeting) bool { return m.ID == id })
		if i < 0 {
			return nil, domain.ErrRecordNotFound
		}
		fn(&items[i])
		updated = items[i]
		return items, nil
	})
	return updated, err
}

// AddMeetingFromTool records a meeting requested by the model. Meetings
// last thirty minutes; an unparsed time starts in one hour and is kept
// in the description.
func (b *MeetingBook) AddMeetingFromTool(ctx context.Context, user, topic string, participants []string, when string) (domain.Meeting, error) {
	now := b.now()
	in := MeetingInput{Title: topic, Participants: participants, Priority: domain.PriorityMedium}
	start, ok := ParseWhen(when, now)
	if !ok {
		start = now.Add(time.Hour)
		in.Description = "Requested time: " + when
	}
	in.StartTime = start
	in.EndTime = start.Add(ToolMeetingLength)
	return b.Create(ctx, user, in)
}

func (in *MeetingInput) normalize() error {
	in.Title = strings.TrimSpace(in.Title)
	if in.Title == "" {
		return domain.NewValidationError("title", "title is required")
	}
	if in.StartTime.IsZero() || in.EndTime.IsZero() {
		return domain.NewValidationError("time", "start and end time are required")
	}
	if in.EndTime.Before(in.StartTime) {
		return domain.NewValidationError("end_time", "end time must not be before start time")
	}
	if in.Priority == "" {
		in.Priority = domain.PriorityMedium
	}
	if !in.Priority.Valid() {
		return domain.NewValidationError("priority", "priority must be low, medium or high")
	}
	participants := make([]string, 0, len(in.Participants))
	for _, p := range in.Participants {
		if p = strings.TrimSpace(p); p != "" {
			participants = append(participants, p)
		}
	}
	in.Participants = participants
	in.Location = strings.TrimSpace(in.Location)
	in.Description = strings.TrimSpace(in.Description)
	return nil
}

// Planner executes the built-in tools against the reminder and meeting
// books.
type Planner struct {
	reminders *ReminderBook
	meetings  *MeetingBook
}

// NewPlanner combines the two books.
func NewPlanner(reminders *ReminderBook, meetings *MeetingBook) *Planner {
	return &Planner{reminders: reminders, meetings: meetings}
}

func (p *Planner) AddReminderFromTool(ctx context.Context, user, task, when string) (domain.Reminder, error) {
	return p.reminders.AddReminderFromTool(ctx, user, task, when)
}

func (p *Planner) AddMeetingFromTool(ctx context.Context, user, topic string, participants []string, when string) (domain.Meeting, error) {
	return p.meetings.AddMeetingFromTool(ctx, user, topic, participants, when)
}
