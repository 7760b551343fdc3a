// Package domain defines the core domain models for workdesk.
package domain

// UserRole is the corporate role a caller claims at login.
type UserRole string

const (
	RoleEmployee  UserRole = "Employee"
	RoleManager   UserRole = "Manager"
	RoleHRAdmin   UserRole = "HR Admin"
	RoleExecutive UserRole = "Executive"
)

// Valid reports whether r is one of the known roles.
func (r UserRole) Valid() bool {
	switch r {
	case RoleEmployee, RoleManager, RoleHRAdmin, RoleExecutive:
		return true
	}
	return false
}

// Speaker identifies who produced a transcript entry.
type Speaker string

const (
	SpeakerUser      Speaker = "user"
	SpeakerAssistant Speaker = "assistant"
)

// View is the screen a workspace is currently showing.
type View string

const (
	ViewDashboard        View = "dashboard"
	ViewChat             View = "ai-chat"
	ViewDescheduler      View = "descheduler"
	ViewTaskReminder     View = "task-reminder"
	ViewFuturePrediction View = "future-prediction"
)

// Valid reports whether v is a known view.
func (v View) Valid() bool {
	switch v {
	case ViewDashboard, ViewChat, ViewDescheduler, ViewTaskReminder, ViewFuturePrediction:
		return true
	}
	return false
}

// EventType represents the type of a recorded event.
type EventType string

const (
	EventTypeSessionOpened    EventType = "session_opened"
	EventTypeTurnStarted      EventType = "turn_started"
	EventTypeToolInvoked      EventType = "tool_invoked"
	EventTypeToolResult       EventType = "tool_result"
	EventTypeTurnDone         EventType = "turn_done"
	EventTypeTurnFailed       EventType = "turn_failed"
	EventTypeTurnCancelled    EventType = "turn_cancelled"
	EventTypeSuggestionsReady EventType = "suggestions_ready"
)

// ToolCallStatus represents the status of a tool call.
type ToolCallStatus string

const (
	ToolCallStatusRunning   ToolCallStatus = "RUNNING"
	ToolCallStatusSucceeded ToolCallStatus = "SUCCEEDED"
	ToolCallStatusFailed    ToolCallStatus = "FAILED"
	ToolCallStatusBlocked   ToolCallStatus = "BLOCKED"
	ToolCallStatusNotFound  ToolCallStatus = "NOT_FOUND"
)

// Priority is shared by reminders and meetings.
type Priority string

const (
	PriorityLow    Priority = "low"
	PriorityMedium Priority = "medium"
	PriorityHigh   Priority = "high"
)

// Valid reports whether p is a known priority.
func (p Priority) Valid() bool {
	switch p {
	case PriorityLow, PriorityMedium, PriorityHigh:
		return true
	}
	return false
}

// MeetingStatus is the lifecycle state of a meeting.
type MeetingStatus string

const (
	MeetingStatusScheduled   MeetingStatus = "scheduled"
	MeetingStatusRescheduled MeetingStatus = "rescheduled"
	MeetingStatusCancelled   MeetingStatus = "cancelled"
)
