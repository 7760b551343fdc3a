package records

import (
	"context"
	"slices"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/xiaot623/gogo/workdesk/internal/domain"
)

// Reminder status filters.
const (
	StatusAll       = "all"
	StatusActive    = "active"
	StatusCompleted = "completed"
)

// ReminderInput is the editable part of a reminder.
type ReminderInput struct {
	Task     string          `json:"task"`
	DueDate  time.Time       `json:"due_date"`
	Priority domain.Priority `json:"priority"`
	Category string          `json:"category"`
	Notes    string          `json:"notes"`
}

// ReminderFilter narrows List. Empty fields match everything.
type ReminderFilter struct {
	Priority string
	Status   string
	Query    string
}

// ReminderBook stores task reminders per user.
type ReminderBook struct {
	list list[domain.Reminder]
	now  func() time.Time
}

// NewReminderBook creates a reminder book over store.
func NewReminderBook(store Store) *ReminderBook {
	b := &ReminderBook{now: time.Now}
	b.list = list[domain.Reminder]{store: store, key: remindersKey, seed: b.samples}
	return b
}

func (b *ReminderBook) samples() []domain.Reminder {
	now := b.now()
	return []domain.Reminder{
		{ID: newID(), Task: "Review quarterly report", DueDate: now.Add(24 * time.Hour), Priority: domain.PriorityHigh, Category: "Work"},
		{ID: newID(), Task: "Team meeting preparation", DueDate: now.Add(48 * time.Hour), Priority: domain.PriorityMedium, Category: "Work"},
	}
}

// List returns the user's reminders matching f, incomplete ones first and
// then by due date.
func (b *ReminderBook) List(ctx context.Context, user string, f ReminderFilter) ([]domain.Reminder, error) {
	items, err := b.list.read(ctx, user)
	if err != nil {
		return nil, err
	}

	query := strings.ToLower(strings.TrimSpace(f.Query))
	out := make([]domain.Reminder, 0, len(items))
	for _, r := range items {
		if f.Priority != "" && f.Priority != StatusAll && string(r.Priority) != f.Priority {
			continue
		}
		if f.Status == StatusActive && r.Completed || f.Status == StatusCompleted && !r.Completed {
			continue
		}
		if query != "" && !containsFold(r.Task, query) && !containsFold(r.Category, query) && !containsFold(r.Notes, query) {
			continue
		}
		out = append(out, r)
	}

	slices.SortStableFunc(out, func(a, b domain.Reminder) int {
		if a.Completed != b.Completed {
			if a.Completed {
				return 1
			}
			return -1
		}
		return a.DueDate.Compare(b.DueDate)
	})
	return out, nil
}

// Overdue returns the open reminders already past due.
func (b *ReminderBook) Overdue(ctx context.Context, user string) ([]domain.Reminder, error) {
	items, err := b.List(ctx, user, ReminderFilter{Status: StatusActive})
	if err != nil {
		return nil, err
	}
	now := b.now()
	return slices.DeleteFunc(items, func(r domain.Reminder) bool { return !r.Overdue(now) }), nil
}

// Create adds a reminder. Task and due date are required.
func (b *ReminderBook) Create(ctx context.Context, user string, in ReminderInput) (domain.Reminder, error) {
	if err := in.normalize(); err != nil {
		return domain.Reminder{}, err
	}
	r := domain.Reminder{
		ID:       newID(),
		Task:     in.Task,
		DueDate:  in.DueDate,
		Priority: in.Priority,
		Category: in.Category,
		Notes:    in.Notes,
	}
	err := b.list.update(ctx, user, func(items []domain.Reminder) ([]domain.Reminder, error) {
		return append(items, r), nil
	})
	return r, err
}

// Update replaces the editable fields of reminder id.
func (b *ReminderBook) Update(ctx context.Context, user, id string, in ReminderInput) (domain.Reminder, error) {
	if err := in.normalize(); err != nil {
		return domain.Reminder{}, err
	}
	var updated domain.Reminder
	err := b.list.update(ctx, user, func(items []domain.Reminder) ([]domain.Reminder, error) {
		i := slices.IndexFunc(items, func(r domain.Reminder) bool { return r.ID == id })
		if i < 0 {
			return nil, domain.ErrRecordNotFound
		}
		items[i].Task = in.Task
		items[i].DueDate = in.DueDate
		items[i].Priority = in.Priority
		items[i].Category = in.Category
		items[i].Notes = in.Notes
		updated = items[i]
		return items, nil
	})
	return updated, err
}

// Toggle flips the completed flag of reminder id.
func (b *ReminderBook) Toggle(ctx context.Context, user, id string) (domain.Reminder, error) {
	var updated domain.Reminder
	err := b.list.update(ctx, user, func(items []domain.Reminder) ([]domain.Reminder, error) {
		i := slices.IndexFunc(items, func(r domain.Reminder) bool { return r.ID == id })
		if i < 0 {
			return nil, domain.ErrRecordNotFound
		}
		items[i].Completed = !items[i].Completed
		updated = items[i]
		return items, nil
	})
	return updated, err
}

// Delete removes reminder id.
func (b *ReminderBook) Delete(ctx context.Context, user, id string) error {
	return b.list.update(ctx, user, func(items []domain.Reminder) ([]domain.Reminder, error) {
		n := len(items)
		items = slices.DeleteFunc(items, func(r domain.Reminder) bool { return r.ID == id })
		if len(items) == n {
			return nil, domain.ErrRecordNotFound
		}
		return items, nil
	})
}

// AddReminderFromTool records a reminder requested by the model. A time
// phrase that cannot be parsed is kept in the notes and the reminder is
// due in one hour.
func (b *ReminderBook) AddReminderFromTool(ctx context.Context, user, task, when string) (domain.Reminder, error) {
	now := b.now()
	in := ReminderInput{Task: task, Priority: domain.PriorityMedium, Category: "Assistant"}
	if due, ok := ParseWhen(when, now); ok {
		in.DueDate = due
	} else {
		in.DueDate = now.Add(time.Hour)
		in.Notes = "Requested time: " + when
	}
	return b.Create(ctx, user, in)
}

func (in *ReminderInput) normalize() error {
	in.Task = strings.TrimSpace(in.Task)
	if in.Task == "" {
		return domain.NewValidationError("task", "task is required")
	}
	if in.DueDate.IsZero() {
		return domain.NewValidationError("due_date", "due date is required")
	}
	if in.Priority == "" {
		in.Priority = domain.PriorityMedium
	}
	if !in.Priority.Valid() {
		return domain.NewValidationError("priority", "priority must be low, medium or high")
	}
	in.Category = strings.TrimSpace(in.Category)
	in.Notes = strings.TrimSpace(in.Notes)
	return nil
}

func newID() string {
	return uuid.New().String()
}
