package domain

import (
	"time"
)

// Chat roles as seen by the generation service.
const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// ChatMessage is one immutable turn in a game's conversation.
// An empty PersonaSlug means the player authored the message; otherwise the
// named persona did. RevealedClue is only ever set on persona messages.
type ChatMessage struct {
	ID           int64     `json:"id"`
	GameID       string    `json:"game_id"`
	PersonaSlug  string    `json:"persona_slug,omitempty"`
	Content      string    `json:"content"`
	RevealedClue string    `json:"revealed_clue,omitempty"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// FromPlayer reports whether the player authored this message.
func (m *ChatMessage) FromPlayer() bool {
	return m.PersonaSlug == ""
}

// Role maps the author to the chat role used for AI context.
func (m *ChatMessage) Role() string {
	if m.FromPlayer() {
		return RoleUser
	}
	return RoleAssistant
}
