package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/fweigel/mordspiel/internal/domain"
	"github.com/fweigel/mordspiel/internal/shared"
	_ "modernc.org/sqlite"
)

// SQLiteStore implements Repository using SQLite.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLite creates a new SQLite-backed repository.
func NewSQLite(dbPath string) (Repository, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, fmt.Errorf("create database directory: %w", err)
	}

	// Open database with WAL mode for better concurrency.
	dsn := dbPath + "?_journal=WAL&_sync=NORMAL&_busy_timeout=5000"
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(5 * time.Minute)

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("ping database: %w", err)
	}

	store := &SQLiteStore{db: db}
	if err := store.initSchema(); err != nil {
		return nil, fmt.Errorf("initialize schema: %w", err)
	}

	return store, nil
}

func (s *SQLiteStore) initSchema() error {
	query := `
	PRAGMA busy_timeout = 5000;
	PRAGMA foreign_keys = ON;
	CREATE TABLE IF NOT EXISTS games (
		id TEXT PRIMARY KEY,
		user_id TEXT,
		scenario_slug TEXT NOT NULL,
		status TEXT NOT NULL,
		revealed_clues TEXT NOT NULL DEFAULT '[]',
		game_state TEXT,
		auto_notes TEXT,
		accused_persona TEXT,
		expires_at INTEGER,
		created_at INTEGER NOT NULL,
		updated_at INTEGER NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_games_expires ON games(expires_at) WHERE expires_at IS NOT NULL;

	CREATE TABLE IF NOT EXISTS chat_messages (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		game_id TEXT NOT NULL REFERENCES games(id) ON DELETE CASCADE,
		persona_slug TEXT,
		content TEXT NOT NULL,
		revealed_clue TEXT,
		created_at INTEGER NOT NULL,
		updated_at INTEGER NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_chat_messages_game ON chat_messages(game_id, created_at);
	`
	if _, err := s.db.Exec(query); err != nil {
		return fmt.Errorf("create schema: %w", err)
	}
	return nil
}

// Ping verifies database connectivity.
func (s *SQLiteStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// Close closes the database connection.
func (s *SQLiteStore) Close() error {
	if err := s.db.Close(); err != nil {
		return fmt.Errorf("close database: %w", err)
	}
	return nil
}

// CreateGame inserts a new game row.
func (s *SQLiteStore) CreateGame(ctx context.Context, game *domain.Game) error {
	clues, state, notes, err := marshalGameBlobs(game)
	if err != nil {
		return err
	}

	var expiresAt interface{}
	if game.ExpiresAt != nil {
		expiresAt = game.ExpiresAt.Unix()
	}
	var userID interface{}
	if game.UserID != "" {
		userID = game.UserID
	}

	query := `
	INSERT INTO games (id, user_id, scenario_slug, status, revealed_clues, game_state, auto_notes, accused_persona, expires_at, created_at, updated_at)
	VALUES (?, ?, ?, ?, ?, ?, ?, NULL, ?, ?, ?)`

	_, err = s.db.ExecContext(ctx, query,
		game.ID, userID, game.ScenarioSlug, string(game.Status),
		clues, state, notes, expiresAt,
		game.CreatedAt.Unix(), game.UpdatedAt.Unix(),
	)
	if err != nil {
		return fmt.Errorf("insert game: %w", err)
	}
	return nil
}

// GetGame retrieves a game by id.
func (s *SQLiteStore) GetGame(ctx context.Context, gameID string) (*domain.Game, error) {
	query := `
		SELECT id, user_id, scenario_slug, status, revealed_clues,
		       game_state, auto_notes, accused_persona, expires_at,
		       created_at, updated_at
		FROM games WHERE id = ?`

	row := s.db.QueryRowContext(ctx, query, gameID)
	return scanGame(row)
}

// UpdateGame persists the mutable game fields.
func (s *SQLiteStore) UpdateGame(ctx context.Context, game *domain.Game) error {
	clues, state, notes, err := marshalGameBlobs(game)
	if err != nil {
		return err
	}

	var accused interface{}
	if game.AccusedPersona != "" {
		accused = game.AccusedPersona
	}

	query := `
		UPDATE games
		SET status = ?, revealed_clues = ?, game_state = ?, auto_notes = ?,
		    accused_persona = ?, updated_at = ?
		WHERE id = ?`

	result, err := s.db.ExecContext(ctx, query,
		string(game.Status), clues, state, notes, accused,
		time.Now().Unix(), game.ID,
	)
	if err != nil {
		return fmt.Errorf("update game: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("get rows affected: %w", err)
	}
	if rows == 0 {
		slog.Warn("UpdateGame affected 0 rows", "game_id", game.ID)
	}
	return nil
}

// DeleteGame removes a game and cascades to its messages. Retries on
// SQLITE_BUSY with exponential backoff.
func (s *SQLiteStore) DeleteGame(ctx context.Context, gameID string) error {
	maxRetries := 3
	baseDelay := 100 * time.Millisecond

	for i := 0; i < maxRetries; i++ {
		err := s.deleteGameOnce(ctx, gameID)
		if err == nil {
			return nil
		}

		if shared.IsSQLiteConflictError(err) && i < maxRetries-1 {
			delay := baseDelay * time.Duration(1<<i)
			slog.Debug("DeleteGame hit SQLITE_BUSY, retrying",
				"game_id", gameID,
				"attempt", i+1,
				"delay", delay)
			time.Sleep(delay)
			continue
		}

		return fmt.Errorf("delete game %s after %d attempts: %w", gameID, i+1, err)
	}
	return nil
}

func (s *SQLiteStore) deleteGameOnce(ctx context.Context, gameID string) error {
	// Messages first: the cascade only fires when foreign_keys is on for
	// the connection, so the delete is explicit instead of relying on it.
	if _, err := s.db.ExecContext(ctx, `DELETE FROM chat_messages WHERE game_id = ?`, gameID); err != nil {
		return fmt.Errorf("delete game messages: %w", err)
	}
	if _, err := s.db.ExecContext(ctx, `DELETE FROM games WHERE id = ?`, gameID); err != nil {
		return fmt.Errorf("delete game: %w", err)
	}
	return nil
}

// InsertMessage appends an immutable chat message.
func (s *SQLiteStore) InsertMessage(ctx context.Context, msg *domain.ChatMessage) error {
	var personaSlug interface{}
	if msg.PersonaSlug != "" {
		personaSlug = msg.PersonaSlug
	}
	var revealedClue interface{}
	if msg.RevealedClue != "" {
		revealedClue = msg.RevealedClue
	}

	if msg.CreatedAt.IsZero() {
		msg.CreatedAt = time.Now()
	}
	if msg.UpdatedAt.IsZero() {
		msg.UpdatedAt = msg.CreatedAt
	}

	query := `
	INSERT INTO chat_messages (game_id, persona_slug, content, revealed_clue, created_at, updated_at)
	VALUES (?, ?, ?, ?, ?, ?)`

	result, err := s.db.ExecContext(ctx, query,
		msg.GameID, personaSlug, msg.Content, revealedClue,
		msg.CreatedAt.UnixMicro(), msg.UpdatedAt.UnixMicro(),
	)
	if err != nil {
		return fmt.Errorf("insert chat message: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("chat message insert id: %w", err)
	}
	msg.ID = id
	return nil
}

// ListMessages returns every message of a game in creation order.
func (s *SQLiteStore) ListMessages(ctx context.Context, gameID string) ([]*domain.ChatMessage, error) {
	query := `
		SELECT id, game_id, persona_slug, content, revealed_clue, created_at, updated_at
		FROM chat_messages
		WHERE game_id = ?
		ORDER BY created_at, id`

	return s.queryMessages(ctx, query, gameID)
}

// ListConversation returns all player messages plus the named persona's own
// replies, in creation order. Other personas' replies are excluded so that
// suspects never see each other being interrogated.
func (s *SQLiteStore) ListConversation(ctx context.Context, gameID, personaSlug string) ([]*domain.ChatMessage, error) {
	query := `
		SELECT id, game_id, persona_slug, content, revealed_clue, created_at, updated_at
		FROM chat_messages
		WHERE game_id = ? AND (persona_slug IS NULL OR persona_slug = ?)
		ORDER BY created_at, id`

	return s.queryMessages(ctx, query, gameID, personaSlug)
}

func (s *SQLiteStore) queryMessages(ctx context.Context, query string, args ...interface{}) ([]*domain.ChatMessage, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query chat messages: %w", err)
	}
	defer func() {
		if closeErr := rows.Close(); closeErr != nil {
			slog.Warn("failed to close chat message rows", "error", closeErr)
		}
	}()

	var msgs []*domain.ChatMessage
	for rows.Next() {
		var msg domain.ChatMessage
		var personaSlug, revealedClue sql.NullString
		var createdAt, updatedAt int64

		if err := rows.Scan(
			&msg.ID, &msg.GameID, &personaSlug, &msg.Content,
			&revealedClue, &createdAt, &updatedAt,
		); err != nil {
			return nil, fmt.Errorf("scan chat message row: %w", err)
		}

		msg.PersonaSlug = personaSlug.String
		msg.RevealedClue = revealedClue.String
		msg.CreatedAt = time.UnixMicro(createdAt)
		msg.UpdatedAt = time.UnixMicro(updatedAt)
		msgs = append(msgs, &msg)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate chat messages: %w", err)
	}
	return msgs, nil
}

// DeleteMessages removes every message belonging to a game.
func (s *SQLiteStore) DeleteMessages(ctx context.Context, gameID string) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM chat_messages WHERE game_id = ?`, gameID); err != nil {
		return fmt.Errorf("delete chat messages: %w", err)
	}
	return nil
}

// ReapExpired deletes every game past its expiry. The game delete is
// conditioned on expires_at so overlapping sweeps cannot double-count.
func (s *SQLiteStore) ReapExpired(ctx context.Context, now time.Time) (int64, error) {
	threshold := now.Unix()

	rows, err := s.db.QueryContext(ctx,
		`SELECT id FROM games WHERE expires_at IS NOT NULL AND expires_at < ?`, threshold)
	if err != nil {
		return 0, fmt.Errorf("query expired games: %w", err)
	}
	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			_ = rows.Close()
			return 0, fmt.Errorf("scan expired game id: %w", err)
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		_ = rows.Close()
		return 0, fmt.Errorf("iterate expired games: %w", err)
	}
	if err := rows.Close(); err != nil {
		return 0, fmt.Errorf("close expired game rows: %w", err)
	}

	var deleted int64
	for _, id := range ids {
		if _, err := s.db.ExecContext(ctx, `DELETE FROM chat_messages WHERE game_id = ?`, id); err != nil {
			return deleted, fmt.Errorf("delete messages of expired game %s: %w", id, err)
		}
		result, err := s.db.ExecContext(ctx,
			`DELETE FROM games WHERE id = ? AND expires_at IS NOT NULL AND expires_at < ?`, id, threshold)
		if err != nil {
			return deleted, fmt.Errorf("delete expired game %s: %w", id, err)
		}
		n, err := result.RowsAffected()
		if err != nil {
			return deleted, fmt.Errorf("expired game rows affected: %w", err)
		}
		deleted += n
	}
	return deleted, nil
}

func marshalGameBlobs(game *domain.Game) (clues string, state, notes interface{}, err error) {
	cluesJSON, err := json.Marshal(game.RevealedClues)
	if err != nil {
		return "", nil, nil, fmt.Errorf("marshal revealed clues: %w", err)
	}
	if game.RevealedClues == nil {
		cluesJSON = []byte("[]")
	}

	if game.GameState != nil {
		stateJSON, err := json.Marshal(game.GameState)
		if err != nil {
			return "", nil, nil, fmt.Errorf("marshal game state: %w", err)
		}
		state = string(stateJSON)
	}

	if game.AutoNotes != nil {
		notesJSON, err := json.Marshal(game.AutoNotes)
		if err != nil {
			return "", nil, nil, fmt.Errorf("marshal auto notes: %w", err)
		}
		notes = string(notesJSON)
	}

	return string(cluesJSON), state, notes, nil
}

func scanGame(row *sql.Row) (*domain.Game, error) {
	var game domain.Game
	var userID, state, notes, accused sql.NullString
	var clues string
	var expiresAt sql.NullInt64
	var createdAt, updatedAt int64
	var status string

	err := row.Scan(
		&game.ID, &userID, &game.ScenarioSlug, &status, &clues,
		&state, &notes, &accused, &expiresAt,
		&createdAt, &updatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("scan game row: %w", err)
	}

	game.UserID = userID.String
	game.Status = domain.GameStatus(status)
	game.AccusedPersona = accused.String
	game.CreatedAt = time.Unix(createdAt, 0)
	game.UpdatedAt = time.Unix(updatedAt, 0)

	if expiresAt.Valid {
		ts := time.Unix(expiresAt.Int64, 0)
		game.ExpiresAt = &ts
	}

	if err := json.Unmarshal([]byte(clues), &game.RevealedClues); err != nil {
		return nil, fmt.Errorf("unmarshal revealed clues: %w", err)
	}
	if state.Valid {
		game.GameState = &domain.ScenarioSnapshot{}
		if err := json.Unmarshal([]byte(state.String), game.GameState); err != nil {
			return nil, fmt.Errorf("unmarshal game state: %w", err)
		}
	}
	if notes.Valid {
		if err := json.Unmarshal([]byte(notes.String), &game.AutoNotes); err != nil {
			return nil, fmt.Errorf("unmarshal auto notes: %w", err)
		}
	}

	return &game, nil
}
