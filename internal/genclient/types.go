// Package genclient implements the client to the scenario generation service.
package genclient

import (
	"github.com/fweigel/mordspiel/internal/domain"
)

// Difficulty levels accepted by the generation service.
const (
	DifficultyEasy   = "einfach"
	DifficultyMedium = "mittel"
	DifficultyHard   = "schwer"
)

// ValidDifficulty reports whether the value is a known difficulty level.
func ValidDifficulty(d string) bool {
	switch d {
	case DifficultyEasy, DifficultyMedium, DifficultyHard:
		return true
	}
	return false
}

// Metrics reports generation timings and upstream retry count. A nonzero
// retry count is a warning signal, not a failure.
type Metrics struct {
	TotalSec  float64 `json:"total_sec"`
	Phase1Sec float64 `json:"phase1_sec"`
	Phase2Sec float64 `json:"phase2_sec"`
	Retries   int     `json:"retries"`
}

// ScenarioResult is the outcome of the first generation phase.
type ScenarioResult struct {
	ScenarioName string   `json:"scenario_name"`
	Metrics      Metrics  `json:"metrics"`
	Images       []string `json:"images,omitempty"`
}

// HistoryMessage is one prior turn sent as chat context.
type HistoryMessage struct {
	Role        string `json:"role"`
	PersonaSlug string `json:"persona_slug,omitempty"`
	Content     string `json:"content"`
}

// ChatReply is a persona's answer to one chat turn. AllAutoNotes carries
// the cumulative notes for every persona, not a delta.
type ChatReply struct {
	PersonaSlug  string              `json:"persona_slug"`
	PersonaName  string              `json:"persona_name"`
	Response     string              `json:"response"`
	RevealedClue string              `json:"revealed_clue,omitempty"`
	NewAutoNotes []string            `json:"new_auto_notes,omitempty"`
	AllAutoNotes map[string][]string `json:"all_auto_notes,omitempty"`
	AudioBase64  string              `json:"audio_base64,omitempty"`
	VoiceID      string              `json:"voice_id,omitempty"`
}

// Murderer identifies the culprit of a scenario.
type Murderer struct {
	Slug string `json:"slug"`
	Name string `json:"name"`
}

// Solution is the ground truth behind a scenario.
type Solution struct {
	Murderer      Murderer `json:"murderer"`
	Motive        string   `json:"motive"`
	Weapon        string   `json:"weapon"`
	CriticalClues []string `json:"critical_clues"`
}

// startGameResponse is the wire shape of /game/start and /game/quickstart.
type startGameResponse struct {
	GameID         string           `json:"game_id"`
	ScenarioName   string           `json:"scenario_name"`
	Setting        string           `json:"setting"`
	Victim         domain.Victim    `json:"victim"`
	Location       string           `json:"location"`
	TimeOfIncident string           `json:"time_of_incident"`
	Timeline       string           `json:"timeline"`
	Personas       []domain.Persona `json:"personas"`
	IntroMessage   string           `json:"intro_message"`
}

func (r *startGameResponse) snapshot() *domain.ScenarioSnapshot {
	return &domain.ScenarioSnapshot{
		ScenarioName:   r.ScenarioName,
		Setting:        r.Setting,
		Victim:         r.Victim,
		Location:       r.Location,
		TimeOfIncident: r.TimeOfIncident,
		Timeline:       r.Timeline,
		Personas:       r.Personas,
		IntroMessage:   r.IntroMessage,
	}
}
