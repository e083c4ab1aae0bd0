// Package store provides data persistence interfaces and implementations.
package store

import (
	"context"
	"time"

	"github.com/fweigel/mordspiel/internal/domain"
)

// Repository defines the interface for persisting games and their messages.
type Repository interface {
	// CreateGame inserts a new game row. Fails if the id already exists.
	CreateGame(ctx context.Context, game *domain.Game) error

	// GetGame retrieves a game by id. Returns (nil, nil) when missing.
	GetGame(ctx context.Context, gameID string) (*domain.Game, error)

	// UpdateGame persists mutable game fields (status, clues, notes,
	// state, accused persona). Immutable fields are left untouched.
	UpdateGame(ctx context.Context, game *domain.Game) error

	// DeleteGame removes a game and, through the cascade, its messages.
	// Deleting a missing game is not an error.
	DeleteGame(ctx context.Context, gameID string) error

	// InsertMessage appends an immutable chat message to a game.
	InsertMessage(ctx context.Context, msg *domain.ChatMessage) error

	// ListMessages returns every message of a game ordered by creation.
	ListMessages(ctx context.Context, gameID string) ([]*domain.ChatMessage, error)

	// ListConversation returns the persona-scoped history: all player
	// messages plus the named persona's own replies, ordered by creation.
	ListConversation(ctx context.Context, gameID, personaSlug string) ([]*domain.ChatMessage, error)

	// DeleteMessages removes every message belonging to a game.
	DeleteMessages(ctx context.Context, gameID string) error

	// ReapExpired deletes every game whose expiry is before now, messages
	// first, and reports how many games were removed.
	ReapExpired(ctx context.Context, now time.Time) (int64, error)

	// Ping verifies database connectivity.
	Ping(ctx context.Context) error

	// Close closes the database connection.
	Close() error
}
