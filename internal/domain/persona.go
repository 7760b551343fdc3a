package domain

// PersonaID names one of the fixed assistant operating modes.
type PersonaID string

const (
	PersonaGeneral      PersonaID = "general"
	PersonaEmailDrafter PersonaID = "email_drafter"
	PersonaStrategist   PersonaID = "strategist"
	PersonaCoding       PersonaID = "coding"
	PersonaHRAssistant  PersonaID = "hr_assistant"
	PersonaWellness     PersonaID = "wellness"
)

// Persona is an immutable assistant mode. Title is the name the assistant
// introduces itself with; Name and Description are for menus.
type Persona struct {
	ID           PersonaID  `json:"id"`
	Title        string     `json:"title"`
	Name         string     `json:"name"`
	Description  string     `json:"description"`
	Icon         string     `json:"icon"`
	Instruction  string     `json:"-"`
	AllowedRoles []UserRole `json:"allowed_roles,omitempty"`
	ToolsEnabled bool       `json:"tools_enabled"`
}

// AllowedFor reports whether a caller with role may use the persona.
// An empty allow-list means everyone.
func (p Persona) AllowedFor(role UserRole) bool {
	if len(p.AllowedRoles) == 0 {
		return true
	}
	for _, r := range p.AllowedRoles {
		if r == role {
			return true
		}
	}
	return false
}

// User is the trusted identity supplied at login.
type User struct {
	Name string   `json:"name"`
	Role UserRole `json:"role"`
}
