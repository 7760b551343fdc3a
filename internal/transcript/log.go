// Package transcript keeps the visible chat history of a workspace.
package transcript

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/xiaot623/gogo/workdesk/internal/domain"
)

var (
	// ErrEntryOpen is returned when a second entry would be opened or an
	// entry appended while a stream is still writing.
	ErrEntryOpen = errors.New("an entry is still open")
	// ErrNotOpen is returned when updating or sealing an entry that is not
	// the open one.
	ErrNotOpen = errors.New("entry is not open")
)

// Log is an append-only transcript with at most one open assistant entry.
// It is safe for concurrent use.
type Log struct {
	mu      sync.RWMutex
	entries []domain.Entry
	openID  string
	now     func() time.Time
}

// NewLog creates an empty transcript.
func NewLog() *Log {
	return &Log{now: time.Now}
}

// Reset discards everything and starts over with a single greeting.
func (l *Log) Reset(greeting string) domain.Entry {
	l.mu.Lock()
	defer l.mu.Unlock()
	e := l.newEntry(domain.SpeakerAssistant, greeting, nil)
	l.entries = []domain.Entry{e}
	l.openID = ""
	return e
}

// Clear removes every entry.
func (l *Log) Clear() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.entries = nil
	l.openID = ""
}

// Append adds a finished entry.
func (l *Log) Append(speaker domain.Speaker, text string, att *domain.Attachment) (domain.Entry, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.openID != "" {
		return domain.Entry{}, ErrEntryOpen
	}
	e := l.newEntry(speaker, text, att)
	l.entries = append(l.entries, e)
	return e, nil
}

// Begin opens an empty assistant entry for streaming.
func (l *Log) Begin() (domain.Entry, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.openID != "" {
		return domain.Entry{}, ErrEntryOpen
	}
	e := l.newEntry(domain.SpeakerAssistant, "", nil)
	l.entries = append(l.entries, e)
	l.openID = e.ID
	return e, nil
}

// Update replaces the text of the open entry.
func (l *Log) Update(id, text string) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if id == "" || id != l.openID {
		return fmt.Errorf("%w: %s", ErrNotOpen, id)
	}
	l.entries[len(l.entries)-1].Text = text
	return nil
}

// Seal closes the open entry and returns its final state.
func (l *Log) Seal(id string) (domain.Entry, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if id == "" || id != l.openID {
		return domain.Entry{}, fmt.Errorf("%w: %s", ErrNotOpen, id)
	}
	l.openID = ""
	return l.entries[len(l.entries)-1], nil
}

// OpenID returns the id of the open entry, or "".
func (l *Log) OpenID() string {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.openID
}

// Entries returns a snapshot of the transcript.
func (l *Log) Entries() []domain.Entry {
	l.mu.RLock()
	defer l.mu.RUnlock()
	out := make([]domain.Entry, len(l.entries))
	copy(out, l.entries)
	return out
}

// Last returns up to n trailing entries.
func (l *Log) Last(n int) []domain.Entry {
	l.mu.RLock()
	defer l.mu.RUnlock()
	if n <= 0 {
		return nil
	}
	start := len(l.entries) - n
	if start < 0 {
		start = 0
	}
	out := make([]domain.Entry, len(l.entries)-start)
	copy(out, l.entries[start:])
	return out
}

// Len returns the number of entries.
func (l *Log) Len() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return len(l.entries)
}

func (l *Log) newEntry(speaker domain.Speaker, text string, att *domain.Attachment) domain.Entry {
	e := domain.Entry{
		ID:        "msg_" + uuid.New().String(),
		Speaker:   speaker,
		Text:      text,
		CreatedAt: l.now(),
	}
	if att != nil {
		// Only the name and type are kept for display.
		e.Attachment = &domain.Attachment{Filename: att.Filename, MIMEType: att.MIMEType}
	}
	return e
}
