package policy

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xiaot623/gogo/workdesk/internal/domain"
	"github.com/xiaot623/gogo/workdesk/internal/persona"
)

func newEngine(t *testing.T) *Engine {
	t.Helper()
	e, err := NewDefaultEngine(context.Background())
	require.NoError(t, err)
	return e
}

func TestAuthorizePersona(t *testing.T) {
	e := newEngine(t)
	ctx := context.Background()

	tests := []struct {
		name    string
		persona domain.PersonaID
		role    domain.UserRole
		allowed bool
	}{
		{"unrestricted persona", domain.PersonaWellness, domain.RoleEmployee, true},
		{"hr for hr admin", domain.PersonaHRAssistant, domain.RoleHRAdmin, true},
		{"hr for employee", domain.PersonaHRAssistant, domain.RoleEmployee, false},
		{"strategist for executive", domain.PersonaStrategist, domain.RoleExecutive, true},
		{"strategist for employee", domain.PersonaStrategist, domain.RoleEmployee, false},
		{"coding for hr admin", domain.PersonaCoding, domain.RoleHRAdmin, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p, err := persona.Lookup(tt.persona)
			require.NoError(t, err)

			err = e.AuthorizePersona(ctx, p, tt.role)
			if tt.allowed {
				assert.NoError(t, err)
			} else {
				assert.True(t, errors.Is(err, domain.ErrPersonaForbidden), "got %v", err)
			}
		})
	}
}

func TestAuthorizeTool(t *testing.T) {
	e := newEngine(t)
	ctx := context.Background()
	inv := domain.ToolInvocation{CallID: "c1", Name: "setReminder", Args: map[string]any{"task": "x", "time": "2pm"}}

	decision, err := e.AuthorizeTool(ctx, persona.Default(), inv)
	require.NoError(t, err)
	assert.Equal(t, DecisionAllow, decision)

	wellness, err := persona.Lookup(domain.PersonaWellness)
	require.NoError(t, err)
	decision, err = e.AuthorizeTool(ctx, wellness, inv)
	require.NoError(t, err)
	assert.Equal(t, DecisionBlock, decision)
}

func TestCustomPolicy(t *testing.T) {
	ctx := context.Background()
	e, err := NewEngine(ctx, `
package workdesk

default persona_decision = "allow"

default tool_decision = "allow"

tool_decision = "block" {
	input.tool_name == "scheduleMeeting"
}
`)
	require.NoError(t, err)

	hr, _ := persona.Lookup(domain.PersonaHRAssistant)
	assert.NoError(t, e.AuthorizePersona(ctx, hr, domain.RoleEmployee))

	decision, err := e.AuthorizeTool(ctx, persona.Default(), domain.ToolInvocation{Name: "scheduleMeeting"})
	require.NoError(t, err)
	assert.Equal(t, DecisionBlock, decision)
}

func TestInvalidPolicy(t *testing.T) {
	_, err := NewEngine(context.Background(), "package workdesk\n\nthis is not rego")
	assert.Error(t, err)
}
