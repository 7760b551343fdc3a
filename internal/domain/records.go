package domain

import "time"

// Reminder is a task reminder kept in the record store.
type Reminder struct {
	ID        string    `json:"id"`
	Task      string    `json:"task"`
	DueDate   time.Time `json:"due_date"`
	Priority  Priority  `json:"priority"`
	Completed bool      `json:"completed"`
	Category  string    `json:"category,omitempty"`
	Notes     string    `json:"notes,omitempty"`
}

// Overdue reports whether the reminder is open and past due at now.
func (r Reminder) Overdue(now time.Time) bool {
	return !r.Completed && r.DueDate.Before(now)
}

// Meeting is a calendar entry kept in the record store.
type Meeting struct {
	ID           string        `json:"id"`
	Title        string        `json:"title"`
	Participants []string      `json:"participants"`
	StartTime    time.Time     `json:"start_time"`
	EndTime      time.Time     `json:"end_time"`
	Location     string        `json:"location,omitempty"`
	Description  string        `json:"description,omitempty"`
	Status       MeetingStatus `json:"status"`
	Priority     Priority      `json:"priority"`
}

// Prediction is a generated forecast for one category.
type Prediction struct {
	ID              string    `json:"id"`
	Category        string    `json:"category"`
	Title           string    `json:"title"`
	Description     string    `json:"description"`
	Confidence      int       `json:"confidence"`
	Timeframe       string    `json:"timeframe"`
	Impact          Priority  `json:"impact"`
	Recommendations []string  `json:"recommendations"`
	CreatedAt       time.Time `json:"created_at"`
}
