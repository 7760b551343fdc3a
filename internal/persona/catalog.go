// Package persona holds the fixed catalog of assistant modes.
package persona

import (
	"fmt"

	"github.com/xiaot623/gogo/workdesk/internal/domain"
)

const roleContext = "\n\n[User Context]\nYou are conversing with a user who has the corporate role of %q. " +
	"Adjust your level of detail, tone, and strategic depth to match this role."

var catalog = []domain.Persona{
	{
		ID:           domain.PersonaGeneral,
		Title:        "General Assistant",
		Name:         "General Assistant",
		Description:  "Everyday tasks and queries",
		Icon:         "Briefcase",
		ToolsEnabled: true,
		Instruction: "You are a helpful, professional, and efficient corporate AI assistant. " +
			"You help with a wide range of business tasks. Keep your answers structured, using bullet points " +
			"and bold text for readability. You can analyze PDFs and data provided by the user.",
	},
	{
		ID:           domain.PersonaEmailDrafter,
		Title:        "Email Specialist",
		Name:         "Email Drafter",
		Description:  "Professional communication",
		Icon:         "Mail",
		ToolsEnabled: true,
		Instruction: "You are an expert corporate communications specialist. Your goal is to draft clear, " +
			"concise, and professional emails. You adjust tone based on the recipient (e.g., executive, peer, client). " +
			"Always prioritize brevity and clarity.",
	},
	{
		ID:           domain.PersonaStrategist,
		Title:        "Strategy Advisor",
		Name:         "Business Strategist",
		Description:  "Analysis and planning",
		Icon:         "TrendingUp",
		AllowedRoles: []domain.UserRole{domain.RoleManager, domain.RoleExecutive},
		Instruction: "You are a senior business strategist. You analyze problems using frameworks like SWOT, " +
			"PESTLE, or OKRs. Your advice is strategic, long-term oriented, and risk-aware. Focus on ROI and business impact.",
	},
	{
		ID:           domain.PersonaCoding,
		Title:        "Technical Architect",
		Name:         "Tech Architect",
		Description:  "Code and technical specs",
		Icon:         "Code2",
		AllowedRoles: []domain.UserRole{domain.RoleEmployee, domain.RoleManager, domain.RoleExecutive},
		Instruction: "You are a principal software architect. You provide high-quality, secure, and scalable " +
			"code solutions. You explain technical concepts clearly to business stakeholders when necessary.",
	},
	{
		ID:           domain.PersonaHRAssistant,
		Title:        "HR Specialist",
		Name:         "HR Specialist",
		Description:  "Policy & Personnel (Restricted)",
		Icon:         "Users",
		AllowedRoles: []domain.UserRole{domain.RoleHRAdmin},
		Instruction: "You are a Human Resources confidant and policy expert. You assist HR Administrators with " +
			"sensitive employee data, policy drafting, and conflict resolution. Maintain strict confidentiality, " +
			"professional empathy, and adherence to labor laws.",
	},
	{
		ID:          domain.PersonaWellness,
		Title:       "Wellness Coach",
		Name:        "Wellness Coach",
		Description: "Stress relief & Tips",
		Icon:        "Coffee",
		Instruction: "You are a corporate wellness coach. Your goal is to help reduce employee burnout and stress. " +
			"Provide calming advice, breathing exercises, productivity tips that emphasize work-life balance, " +
			"and empathetic listening. Keep a soothing and supportive tone.",
	},
}

// All returns a copy of the catalog in menu order.
func All() []domain.Persona {
	out := make([]domain.Persona, len(catalog))
	copy(out, catalog)
	return out
}

// Default returns the persona every chat session starts with.
func Default() domain.Persona {
	p, _ := Lookup(domain.PersonaGeneral)
	return p
}

// Lookup finds a persona by id.
func Lookup(id domain.PersonaID) (domain.Persona, error) {
	for _, p := range catalog {
		if p.ID == id {
			return p, nil
		}
	}
	return domain.Persona{}, fmt.Errorf("%w: %s", domain.ErrPersonaNotFound, id)
}

// VisibleTo filters the catalog down to the personas role may pick.
func VisibleTo(role domain.UserRole) []domain.Persona {
	var out []domain.Persona
	for _, p := range catalog {
		if p.AllowedFor(role) {
			out = append(out, p)
		}
	}
	return out
}

// SystemPrompt is the persona instruction followed by the caller's role.
func SystemPrompt(p domain.Persona, role domain.UserRole) string {
	return p.Instruction + fmt.Sprintf(roleContext, string(role))
}

// Greeting is the single entry a fresh transcript starts with.
func Greeting(p domain.Persona, userName string) string {
	return fmt.Sprintf("Hello %s. I am your %s. How can I assist you today?", userName, p.Title)
}
