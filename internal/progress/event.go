// Package progress relays generation-progress events to live subscribers.
package progress

import (
	"fmt"
	"time"
	"unicode/utf8"
)

// Stage names one phase of the scenario generation pipeline.
type Stage string

const (
	StageStarted            Stage = "started"
	StageGeneratingScenario Stage = "generating_scenario"
	StageScenarioComplete   Stage = "scenario_complete"
	StageGeneratingPersonas Stage = "generating_personas"
	StagePersonaComplete    Stage = "persona_complete"
	StageGeneratingImages   Stage = "generating_images"
	StageInitializingGame   Stage = "initializing_game"
	StageComplete           Stage = "complete"
	StageError              Stage = "error"
)

// Valid reports whether the stage is one of the known pipeline phases.
func (s Stage) Valid() bool {
	switch s {
	case StageStarted, StageGeneratingScenario, StageScenarioComplete,
		StageGeneratingPersonas, StagePersonaComplete, StageGeneratingImages,
		StageInitializingGame, StageComplete, StageError:
		return true
	}
	return false
}

// Terminal reports whether no further event follows this stage.
func (s Stage) Terminal() bool {
	return s == StageComplete || s == StageError
}

const maxMessageLen = 500

// Event is one transient progress update. Events are consumed once and
// never stored.
type Event struct {
	GameID        string    `json:"game_id"`
	Stage         Stage     `json:"stage"`
	Progress      int       `json:"progress"`
	Message       string    `json:"message"`
	PersonaName   string    `json:"persona_name,omitempty"`
	PersonaIndex  *int      `json:"persona_index,omitempty"`
	TotalPersonas *int      `json:"total_personas,omitempty"`
	Timestamp     time.Time `json:"timestamp"`
}

// Validate checks the event against the ingestion contract.
func (e *Event) Validate() error {
	if e.GameID == "" {
		return fmt.Errorf("game_id is required")
	}
	if !e.Stage.Valid() {
		return fmt.Errorf("unknown stage %q", e.Stage)
	}
	if e.Progress < 0 || e.Progress > 100 {
		return fmt.Errorf("progress must be between 0 and 100, got %d", e.Progress)
	}
	if e.Message == "" {
		return fmt.Errorf("message is required")
	}
	if utf8.RuneCountInString(e.Message) > maxMessageLen {
		return fmt.Errorf("message exceeds %d characters", maxMessageLen)
	}
	if e.PersonaIndex != nil && *e.PersonaIndex < 0 {
		return fmt.Errorf("persona_index must be >= 0")
	}
	if e.TotalPersonas != nil && *e.TotalPersonas < 1 {
		return fmt.Errorf("total_personas must be >= 1")
	}
	return nil
}

// Topic returns the broadcast topic for a game id.
func Topic(gameID string) string {
	return "game." + gameID
}

// EventName is the envelope name subscribers receive events under.
const EventName = "generation.progress"
