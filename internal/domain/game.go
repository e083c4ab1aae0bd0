// Package domain contains core domain types for the murder mystery server.
package domain

import (
	"time"
)

// GameStatus is the lifecycle state of a game session.
type GameStatus string

const (
	// StatusActive means the session accepts chat turns and accusations.
	StatusActive GameStatus = "active"
	// StatusSolved means the player accused the right persona. Terminal.
	StatusSolved GameStatus = "solved"
	// StatusFailed means the player accused the wrong persona. Terminal.
	StatusFailed GameStatus = "failed"
)

// IsTerminal reports whether the status permits no further transitions.
func (s GameStatus) IsTerminal() bool {
	return s == StatusSolved || s == StatusFailed
}

// Valid reports whether the status is one of the known values.
func (s GameStatus) Valid() bool {
	switch s {
	case StatusActive, StatusSolved, StatusFailed:
		return true
	}
	return false
}

// Game represents one play-through session.
type Game struct {
	ID             string              `json:"id"`
	UserID         string              `json:"user_id,omitempty"`
	ScenarioSlug   string              `json:"scenario_slug"`
	Status         GameStatus          `json:"status"`
	RevealedClues  []string            `json:"revealed_clues"`
	GameState      *ScenarioSnapshot   `json:"game_state,omitempty"`
	AutoNotes      map[string][]string `json:"auto_notes,omitempty"`
	AccusedPersona string              `json:"accused_persona,omitempty"`
	ExpiresAt      *time.Time          `json:"expires_at,omitempty"`
	CreatedAt      time.Time           `json:"created_at"`
	UpdatedAt      time.Time           `json:"updated_at"`
}

// Finish moves the game into a terminal state and records the accusation.
// Only active games can finish; calling Finish twice is a bug.
func (g *Game) Finish(status GameStatus, accusedSlug string) bool {
	if g.Status != StatusActive || !status.IsTerminal() {
		return false
	}
	g.Status = status
	g.AccusedPersona = accusedSlug
	return true
}

// AppendClue adds a clue preserving insertion order and suppressing
// duplicates. Returns true when the clue was new.
func (g *Game) AppendClue(clue string) bool {
	if clue == "" {
		return false
	}
	for _, c := range g.RevealedClues {
		if c == clue {
			return false
		}
	}
	g.RevealedClues = append(g.RevealedClues, clue)
	return true
}

// ReplaceAutoNotes swaps the whole notes map. The generation service sends
// cumulative notes on every turn, so the previous map is not merged.
func (g *Game) ReplaceAutoNotes(notes map[string][]string) {
	g.AutoNotes = notes
}

// Expired reports whether the game passed its expiry at the given instant.
// Games without an expiry never expire.
func (g *Game) Expired(now time.Time) bool {
	return g.ExpiresAt != nil && g.ExpiresAt.Before(now)
}
