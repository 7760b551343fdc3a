package persona

import (
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xiaot623/gogo/workdesk/internal/domain"
)

func ids(ps []domain.Persona) []domain.PersonaID {
	out := make([]domain.PersonaID, 0, len(ps))
	for _, p := range ps {
		out = append(out, p.ID)
	}
	return out
}

func TestVisibleTo(t *testing.T) {
	tests := []struct {
		role domain.UserRole
		want []domain.PersonaID
	}{
		{domain.RoleEmployee, []domain.PersonaID{"general", "email_drafter", "coding", "wellness"}},
		{domain.RoleManager, []domain.PersonaID{"general", "email_drafter", "strategist", "coding", "wellness"}},
		{domain.RoleHRAdmin, []domain.PersonaID{"general", "email_drafter", "hr_assistant", "wellness"}},
		{domain.RoleExecutive, []domain.PersonaID{"general", "email_drafter", "strategist", "coding", "wellness"}},
	}

	for _, tt := range tests {
		t.Run(string(tt.role), func(t *testing.T) {
			assert.Equal(t, tt.want, ids(VisibleTo(tt.role)))
		})
	}
}

func TestLookup(t *testing.T) {
	p, err := Lookup(domain.PersonaStrategist)
	require.NoError(t, err)
	assert.Equal(t, "Strategy Advisor", p.Title)
	assert.False(t, p.ToolsEnabled)

	_, err = Lookup("pirate")
	assert.True(t, errors.Is(err, domain.ErrPersonaNotFound))
}

func TestOnlyGeneralAndEmailDeclareTools(t *testing.T) {
	for _, p := range All() {
		want := p.ID == domain.PersonaGeneral || p.ID == domain.PersonaEmailDrafter
		assert.Equal(t, want, p.ToolsEnabled, p.ID)
	}
}

func TestGreeting(t *testing.T) {
	p, err := Lookup(domain.PersonaWellness)
	require.NoError(t, err)
	assert.Equal(t, "Hello Ana. I am your Wellness Coach. How can I assist you today?", Greeting(p, "Ana"))
	assert.Equal(t, "Hello Ana. I am your General Assistant. How can I assist you today?", Greeting(Default(), "Ana"))
}

func TestSystemPromptCarriesRole(t *testing.T) {
	prompt := SystemPrompt(Default(), domain.RoleHRAdmin)
	assert.True(t, strings.HasPrefix(prompt, "You are a helpful, professional"))
	assert.Contains(t, prompt, "\n\n[User Context]\n")
	assert.Contains(t, prompt, `the corporate role of "HR Admin".`)
}

func TestAllReturnsCopy(t *testing.T) {
	ps := All()
	ps[0].Title = "changed"
	assert.Equal(t, "General Assistant", Default().Title)
}
