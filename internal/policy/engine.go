// Package policy evaluates persona access and tool dispatch rules with OPA.
package policy

import (
	"context"
	"fmt"

	"github.com/open-policy-agent/opa/rego"

	"github.com/xiaot623/gogo/workdesk/internal/domain"
)

// Decisions returned by the policy.
const (
	DecisionAllow = "allow"
	DecisionBlock = "block"
)

// Engine is the OPA policy engine.
type Engine struct {
	personaQuery rego.PreparedEvalQuery
	toolQuery    rego.PreparedEvalQuery
}

// NewEngine creates a new policy engine with the given policy content.
func NewEngine(ctx context.Context, policyContent string) (*Engine, error) {
	personaQuery, err := prepare(ctx, "data.workdesk.persona_decision", policyContent)
	if err != nil {
		return nil, err
	}
	toolQuery, err := prepare(ctx, "data.workdesk.tool_decision", policyContent)
	if err != nil {
		return nil, err
	}
	return &Engine{personaQuery: personaQuery, toolQuery: toolQuery}, nil
}

// NewDefaultEngine creates an engine running DefaultPolicy.
func NewDefaultEngine(ctx context.Context) (*Engine, error) {
	return NewEngine(ctx, DefaultPolicy)
}

func prepare(ctx context.Context, query, policyContent string) (rego.PreparedEvalQuery, error) {
	r := rego.New(
		rego.Query(query),
		rego.Module("workdesk.rego", policyContent),
	)
	prepared, err := r.PrepareForEval(ctx)
	if err != nil {
		return rego.PreparedEvalQuery{}, fmt.Errorf("failed to prepare rego: %w", err)
	}
	return prepared, nil
}

// AuthorizePersona checks that role may open a conversation with p.
// It returns domain.ErrPersonaForbidden when the policy blocks it.
func (e *Engine) AuthorizePersona(ctx context.Context, p domain.Persona, role domain.UserRole) error {
	decision, err := e.evaluate(ctx, e.personaQuery, map[string]interface{}{
		"persona": personaInput(p),
		"role":    string(role),
	}, DecisionBlock)
	if err != nil {
		return err
	}
	if decision != DecisionAllow {
		return fmt.Errorf("%w: %s for role %s", domain.ErrPersonaForbidden, p.ID, role)
	}
	return nil
}

// AuthorizeTool decides whether an invocation may reach its handler.
func (e *Engine) AuthorizeTool(ctx context.Context, p domain.Persona, inv domain.ToolInvocation) (string, error) {
	args := inv.Args
	if args == nil {
		args = map[string]any{}
	}
	return e.evaluate(ctx, e.toolQuery, map[string]interface{}{
		"persona":   personaInput(p),
		"tool_name": inv.Name,
		"args":      args,
	}, DecisionAllow)
}

func (e *Engine) evaluate(ctx context.Context, q rego.PreparedEvalQuery, input interface{}, fallback string) (string, error) {
	results, err := q.Eval(ctx, rego.EvalInput(input))
	if err != nil {
		return "", fmt.Errorf("failed to evaluate policy: %w", err)
	}
	if len(results) == 0 || len(results[0].Expressions) == 0 {
		return fallback, nil
	}
	if s, ok := results[0].Expressions[0].Value.(string); ok {
		return s, nil
	}
	return fallback, nil
}

func personaInput(p domain.Persona) map[string]interface{} {
	roles := make([]interface{}, 0, len(p.AllowedRoles))
	for _, r := range p.AllowedRoles {
		roles = append(roles, string(r))
	}
	return map[string]interface{}{
		"id":            string(p.ID),
		"allowed_roles": roles,
		"tools_enabled": p.ToolsEnabled,
	}
}

// DefaultPolicy is the default policy content.
const DefaultPolicy = `
package workdesk

default persona_decision = "block"

# Unrestricted personas
persona_decision = "allow" {
	count(input.persona.allowed_roles) == 0
}

persona_decision = "allow" {
	input.persona.allowed_roles[_] == input.role
}

default tool_decision = "allow"

# Tools are only dispatched for personas that declared them
tool_decision = "block" {
	not input.persona.tools_enabled
}
`
