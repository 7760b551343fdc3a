// Package stream turns a streamed model response, including tool
// round-trips, into one transcript entry.
package stream

import (
	"context"
	"fmt"
	"iter"
	"strings"

	"github.com/rs/zerolog"

	"github.com/xiaot623/gogo/workdesk/internal/adapter/llm"
	"github.com/xiaot623/gogo/workdesk/internal/domain"
	"github.com/xiaot623/gogo/workdesk/internal/metrics"
	"github.com/xiaot623/gogo/workdesk/internal/policy"
	"github.com/xiaot623/gogo/workdesk/internal/session"
	"github.com/xiaot623/gogo/workdesk/internal/tools"
)

const (
	// DefaultMaxDepth bounds nested tool round-trips within one turn.
	DefaultMaxDepth = 8

	// DefaultAttachmentPrompt is sent when an attachment arrives without text.
	DefaultAttachmentPrompt = "Please analyze this document."

	// BlockedToolResult answers invocations the policy refuses.
	BlockedToolResult = "Error: Tool not available for this assistant."
)

// Message is the user input of one turn.
type Message struct {
	Text       string
	Attachment *domain.Attachment
}

// Result is the outcome of a turn.
type Result struct {
	Text        string
	ToolResults []domain.ToolResult
}

// Hooks receive progress while a turn runs. Every field is optional.
type Hooks struct {
	// OnText receives the whole accumulated text after each delta.
	OnText func(text string)
	// OnToolInvoked fires before a handler runs.
	OnToolInvoked func(inv domain.ToolInvocation)
	// OnToolResult fires once per invocation with the result sent back.
	OnToolResult func(inv domain.ToolInvocation, res domain.ToolResult, status domain.ToolCallStatus)
}

// ToolAuthorizer decides whether an invocation may reach its handler.
type ToolAuthorizer interface {
	AuthorizeTool(ctx context.Context, p domain.Persona, inv domain.ToolInvocation) (string, error)
}

// Reducer runs turns. It holds no per-turn state and is safe for
// concurrent use.
type Reducer struct {
	registry   *tools.Registry
	authorizer ToolAuthorizer
	metrics    *metrics.Metrics
	logger     zerolog.Logger
	maxDepth   int
}

// NewReducer creates a reducer. authorizer and m may be nil.
func NewReducer(registry *tools.Registry, authorizer ToolAuthorizer, m *metrics.Metrics, logger zerolog.Logger) *Reducer {
	return &Reducer{
		registry:   registry,
		authorizer: authorizer,
		metrics:    m,
		logger:     logger,
		maxDepth:   DefaultMaxDepth,
	}
}

// WithMaxDepth overrides the tool nesting limit.
func (r *Reducer) WithMaxDepth(depth int) *Reducer {
	r.maxDepth = depth
	return r
}

type turn struct {
	sc      *session.Context
	hooks   Hooks
	text    strings.Builder
	results []domain.ToolResult
}

// RunTurn sends msg on sc and consumes the reply until it is exhausted.
// On error the returned Result still holds the text accumulated so far.
func (r *Reducer) RunTurn(ctx context.Context, sc *session.Context, msg Message, hooks Hooks) (Result, error) {
	ctx = tools.WithUser(ctx, sc.Caller.Name)
	t := &turn{sc: sc, hooks: hooks}

	err := r.consume(ctx, t, sc.Conversation.SendStream(ctx, BuildParts(msg)...), 0)
	return Result{Text: t.text.String(), ToolResults: t.results}, err
}

// BuildParts converts user input into request parts. An attachment goes
// first, followed by the text.
func BuildParts(msg Message) []llm.Part {
	if msg.Attachment == nil {
		return []llm.Part{llm.TextPart(msg.Text)}
	}
	text := msg.Text
	if text == "" {
		text = DefaultAttachmentPrompt
	}
	return []llm.Part{
		llm.BlobPart(msg.Attachment.MIMEType, msg.Attachment.Data),
		llm.TextPart(text),
	}
}

func (r *Reducer) consume(ctx context.Context, t *turn, events iter.Seq2[llm.Event, error], depth int) error {
	for ev, err := range events {
		if err != nil {
			return &domain.StreamError{Err: err}
		}

		for _, inv := range ev.ToolCalls {
			if depth >= r.maxDepth {
				return fmt.Errorf("%w after %d round-trips", domain.ErrToolLoop, depth)
			}
			res := r.dispatch(ctx, t, inv)
			t.results = append(t.results, res)

			followUp := t.sc.Conversation.SendStream(ctx, llm.ToolResultPart(res))
			if err := r.consume(ctx, t, followUp, depth+1); err != nil {
				return err
			}
		}

		if ev.Text != "" {
			t.text.WriteString(ev.Text)
			if t.hooks.OnText != nil {
				t.hooks.OnText(t.text.String())
			}
		}
	}
	if err := ctx.Err(); err != nil {
		return &domain.StreamError{Err: err}
	}
	return nil
}

// dispatch runs one invocation and always produces a result for it.
func (r *Reducer) dispatch(ctx context.Context, t *turn, inv domain.ToolInvocation) domain.ToolResult {
	if t.hooks.OnToolInvoked != nil {
		t.hooks.OnToolInvoked(inv)
	}

	res := domain.ToolResult{CallID: inv.CallID, Name: inv.Name}
	status := domain.ToolCallStatusSucceeded
	defer func() {
		r.metrics.RecordToolCall(inv.Name, string(status))
		if t.hooks.OnToolResult != nil {
			t.hooks.OnToolResult(inv, res, status)
		}
	}()

	if !r.allowed(ctx, t.sc.Persona, inv) {
		status = domain.ToolCallStatusBlocked
		res.Result = BlockedToolResult
		return res
	}

	handler, found := r.registry.Lookup(inv.Name)
	if !found {
		status = domain.ToolCallStatusNotFound
	}

	out, err := invoke(ctx, handler, inv)
	if err != nil {
		status = domain.ToolCallStatusFailed
		res.Result = "Error: " + err.Err.Error()
		r.logger.Warn().Err(err).Str("tool", inv.Name).Str("call_id", inv.CallID).Msg("tool handler failed")
		return res
	}
	res.Result = out
	return res
}

func (r *Reducer) allowed(ctx context.Context, p domain.Persona, inv domain.ToolInvocation) bool {
	if r.authorizer == nil {
		return true
	}
	decision, err := r.authorizer.AuthorizeTool(ctx, p, inv)
	if err != nil {
		r.logger.Error().Err(err).Str("tool", inv.Name).Msg("tool policy evaluation failed")
		return false
	}
	return decision == policy.DecisionAllow
}

// invoke calls the handler once, turning errors and panics into a
// ToolExecutionError.
func invoke(ctx context.Context, h tools.Handler, inv domain.ToolInvocation) (out string, toolErr *domain.ToolExecutionError) {
	defer func() {
		if p := recover(); p != nil {
			out = ""
			toolErr = &domain.ToolExecutionError{Tool: inv.Name, Err: fmt.Errorf("panic: %v", p)}
		}
	}()
	out, err := h(ctx, inv)
	if err != nil {
		return "", &domain.ToolExecutionError{Tool: inv.Name, Err: err}
	}
	return out, nil
}
