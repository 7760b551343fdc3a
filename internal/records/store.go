// Package records keeps the per-user reminders, meetings and predictions
// behind the dashboard utilities. Each user's list is one JSON array in the
// key-value record store.
package records

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync"
)

// Store is the key-value slice of the repository used here.
type Store interface {
	GetRecord(ctx context.Context, key string) ([]byte, bool, error)
	PutRecord(ctx context.Context, key string, value []byte) error
}

// Record keys, one per user and kind.
func remindersKey(user string) string   { return "reminders:" + user }
func meetingsKey(user string) string    { return "meetings:" + user }
func predictionsKey(user string) string { return "predictions:" + user }

// list is a read-modify-write wrapper over one JSON array kind.
type list[T any] struct {
	mu    sync.Mutex
	store Store
	key   func(user string) string
	seed  func() []T
}

// load returns the stored items, seeding and saving the sample set the
// first time a user is seen. Callers must hold l.mu.
func (l *list[T]) load(ctx context.Context, user string) ([]T, error) {
	key := l.key(user)
	raw, ok, err := l.store.GetRecord(ctx, key)
	if err != nil {
		return nil, fmt.Errorf("failed to load %s: %w", key, err)
	}
	if !ok {
		var items []T
		if l.seed != nil {
			items = l.seed()
		}
		if err := l.save(ctx, user, items); err != nil {
			return nil, err
		}
		return items, nil
	}

	var items []T
	if err := json.Unmarshal(raw, &items); err != nil {
		return nil, fmt.Errorf("failed to decode %s: %w", key, err)
	}
	return items, nil
}

func (l *list[T]) save(ctx context.Context, user string, items []T) error {
	if items == nil {
		items = []T{}
	}
	raw, err := json.Marshal(items)
	if err != nil {
		return fmt.Errorf("failed to encode %s: %w", l.key(user), err)
	}
	if err := l.store.PutRecord(ctx, l.key(user), raw); err != nil {
		return fmt.Errorf("failed to save %s: %w", l.key(user), err)
	}
	return nil
}

// read loads a snapshot under the lock.
func (l *list[T]) read(ctx context.Context, user string) ([]T, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.load(ctx, user)
}

// update loads, applies fn and saves when fn succeeds.
func (l *list[T]) update(ctx context.Context, user string, fn func([]T) ([]T, error)) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	items, err := l.load(ctx, user)
	if err != nil {
		return err
	}
	items, err = fn(items)
	if err != nil {
		return err
	}
	return l.save(ctx, user, items)
}

func containsFold(s, substr string) bool {
	return strings.Contains(strings.ToLower(s), substr)
}
