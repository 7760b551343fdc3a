// Package service is the workspace controller: it owns per-login state and
// drives sessions, turns and suggestions on behalf of the transports.
package service

import (
	"fmt"
	"sync"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/rs/zerolog"

	"github.com/xiaot623/gogo/workdesk/internal/domain"
	"github.com/xiaot623/gogo/workdesk/internal/metrics"
	"github.com/xiaot623/gogo/workdesk/internal/repository"
	"github.com/xiaot623/gogo/workdesk/internal/session"
	"github.com/xiaot623/gogo/workdesk/internal/stream"
	"github.com/xiaot623/gogo/workdesk/internal/suggest"
)

// DefaultMaxWorkspaces bounds the workspace table when Options leaves it zero.
const DefaultMaxWorkspaces = 1024

// Publisher pushes updates to every listener of a workspace.
type Publisher interface {
	Publish(workspaceID string, u domain.Update)
}

// Options configures a Service. Publisher and Metrics are optional.
type Options struct {
	Store     repository.Store
	Sessions  *session.Manager
	Reducer   *stream.Reducer
	Suggester *suggest.Generator
	Publisher Publisher
	Metrics   *metrics.Metrics
	Logger    zerolog.Logger

	MaxWorkspaces      int
	MaxAttachmentBytes int64
	TurnTimeout        time.Duration
}

type Service struct {
	store      repository.Store
	sessions   *session.Manager
	reducer    *stream.Reducer
	suggester  *suggest.Generator
	publisher  Publisher
	metrics    *metrics.Metrics
	logger     zerolog.Logger
	workspaces *lru.Cache[string, *Workspace]

	maxAttachmentBytes int64
	turnTimeout        time.Duration

	// background tracks detached suggestion requests.
	background sync.WaitGroup
}

func New(opts Options) (*Service, error) {
	size := opts.MaxWorkspaces
	if size <= 0 {
		size = DefaultMaxWorkspaces
	}

	s := &Service{
		store:              opts.Store,
		sessions:           opts.Sessions,
		reducer:            opts.Reducer,
		suggester:          opts.Suggester,
		publisher:          opts.Publisher,
		metrics:            opts.Metrics,
		logger:             opts.Logger,
		maxAttachmentBytes: opts.MaxAttachmentBytes,
		turnTimeout:        opts.TurnTimeout,
	}

	cache, err := lru.NewWithEvict[string, *Workspace](size, func(id string, ws *Workspace) {
		// Evicted or logged out: stop any turn still running for it.
		ws.cancelTurn()
		s.logger.Debug().Str("workspace_id", id).Msg("workspace dropped")
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create workspace table: %w", err)
	}
	s.workspaces = cache
	return s, nil
}

// Close waits for detached work to finish.
func (s *Service) Close() {
	s.background.Wait()
}

// goSafe runs fn on its own goroutine. A panic is logged, never propagated.
func (s *Service) goSafe(name string, fn func()) {
	s.background.Add(1)
	go func() {
		defer s.background.Done()
		defer func() {
			if r := recover(); r != nil {
				s.logger.Error().Str("task", name).Interface("panic", r).Msg("background task panicked")
			}
		}()
		fn()
	}()
}

func (s *Service) publish(u domain.Update) {
	if s.publisher == nil {
		return
	}
	s.publisher.Publish(u.WorkspaceID, u)
}
