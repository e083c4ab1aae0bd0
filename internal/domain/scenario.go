package domain

// Scenario slugs known to this server. Generated scenarios all share the
// "generated" slug; the canned quick-start scenario has a fixed one.
const (
	ScenarioSlugGenerated = "generated"
	ScenarioSlugDefault   = "villa-sonnenhof"
)

// Victim describes the murder victim of a scenario.
type Victim struct {
	Name        string `json:"name"`
	Role        string `json:"role"`
	Description string `json:"description,omitempty"`
}

// Persona is the public view of one AI-driven suspect.
type Persona struct {
	Slug        string `json:"slug"`
	Name        string `json:"name"`
	Role        string `json:"role"`
	Description string `json:"description"`
	Emoji       string `json:"emoji,omitempty"`
}

// ScenarioSnapshot is the cached public scenario state persisted with a
// game. It carries no solution data; the solution stays behind the
// generation service until an accusation asks for it.
type ScenarioSnapshot struct {
	ScenarioName   string    `json:"scenario_name"`
	Setting        string    `json:"setting"`
	Victim         Victim    `json:"victim"`
	Location       string    `json:"location,omitempty"`
	TimeOfIncident string    `json:"time_of_incident,omitempty"`
	Timeline       string    `json:"timeline,omitempty"`
	Personas       []Persona `json:"personas"`
	IntroMessage   string    `json:"intro_message"`
}

// PersonaBySlug returns the persona with the given slug, or nil.
func (s *ScenarioSnapshot) PersonaBySlug(slug string) *Persona {
	for i := range s.Personas {
		if s.Personas[i].Slug == slug {
			return &s.Personas[i]
		}
	}
	return nil
}
