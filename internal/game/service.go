// Package game implements the session orchestrator for the murder mystery.
package game

import (
	"context"
	"fmt"
	"log/slog"
	"regexp"
	"time"

	"github.com/fweigel/mordspiel/internal/apperr"
	"github.com/fweigel/mordspiel/internal/domain"
	"github.com/fweigel/mordspiel/internal/genclient"
	"github.com/fweigel/mordspiel/internal/store"
	"github.com/google/uuid"
	"github.com/patrickmn/go-cache"
)

// defaultMurdererSlug is the culprit of the built-in scenario. Legacy
// scenario payloads omit murderer.slug and we fall back to it.
// TODO: drop this fallback once all stored scenarios carry murderer.slug.
const defaultMurdererSlug = "robert"

// gameIDPattern constrains caller-proposed game ids.
var gameIDPattern = regexp.MustCompile(`^[A-Za-z0-9_-]{8,64}$`)

// Service coordinates game sessions across the store and the generation
// service. All operations are synchronous request/response.
type Service struct {
	repo       store.Repository
	gen        genclient.Client
	sessionTTL time.Duration
	solutions  *cache.Cache
}

// NewService creates the orchestrator. Solutions fetched for accusations
// are cached per game for the session lifetime to spare repeat upstream
// lookups.
func NewService(repo store.Repository, gen genclient.Client, sessionTTL time.Duration) *Service {
	return &Service{
		repo:       repo,
		gen:        gen,
		sessionTTL: sessionTTL,
		solutions:  cache.New(sessionTTL, 10*time.Minute),
	}
}

// CreateResult is the outcome of a successful session creation. Images
// holds the scenario artwork from the first generation phase; quickstart
// sessions carry neither images nor metrics.
type CreateResult struct {
	GameID    string                   `json:"game_id"`
	Status    domain.GameStatus        `json:"status"`
	ExpiresAt *time.Time               `json:"expires_at,omitempty"`
	Scenario  *domain.ScenarioSnapshot `json:"scenario"`
	Images    []string                 `json:"images,omitempty"`
	Metrics   *genclient.Metrics       `json:"metrics,omitempty"`
}

// CreateAndGenerate creates a session and drives the two generation
// phases. The game row exists before the first upstream call so progress
// events keyed by the id have somewhere to be attributed; on any failure
// the row is deleted again (compensating delete) so no contentless active
// session survives.
func (s *Service) CreateAndGenerate(ctx context.Context, userID, userInput, difficulty, proposedID string) (*CreateResult, error) {
	if difficulty == "" {
		difficulty = genclient.DifficultyMedium
	}
	if !genclient.ValidDifficulty(difficulty) {
		return nil, apperr.Validation("unknown difficulty %q", difficulty)
	}

	gameID, err := s.resolveGameID(ctx, proposedID)
	if err != nil {
		return nil, err
	}

	g, err := s.createGameRow(ctx, gameID, userID, domain.ScenarioSlugGenerated)
	if err != nil {
		return nil, err
	}

	start := time.Now()

	scenario, err := s.gen.GenerateScenario(ctx, gameID, userInput, difficulty)
	if err != nil {
		s.compensate(ctx, gameID, "generate_scenario", err, time.Since(start))
		return nil, apperr.Wrap(apperr.CodeUpstreamUnavailable, "scenario generation failed", err)
	}

	snapshot, err := s.gen.StartGame(ctx, gameID)
	if err != nil {
		s.compensate(ctx, gameID, "start_game", err, time.Since(start))
		return nil, apperr.Wrap(apperr.CodeUpstreamUnavailable, "game initialization failed", err)
	}

	g.GameState = snapshot
	if err := s.repo.UpdateGame(ctx, g); err != nil {
		s.compensate(ctx, gameID, "persist_snapshot", err, time.Since(start))
		return nil, apperr.Wrap(apperr.CodeInternal, "failed to persist game state", err)
	}

	if scenario.Metrics.Retries > 0 {
		slog.Warn("Scenario generation needed upstream retries",
			"game_id", gameID,
			"retries", scenario.Metrics.Retries,
			"total_sec", scenario.Metrics.TotalSec)
	}
	slog.Info("Game created",
		"game_id", gameID,
		"scenario", snapshot.ScenarioName,
		"personas", len(snapshot.Personas),
		"elapsed", time.Since(start))

	return &CreateResult{
		GameID:    gameID,
		Status:    g.Status,
		ExpiresAt: g.ExpiresAt,
		Scenario:  snapshot,
		Images:    scenario.Images,
		Metrics:   &scenario.Metrics,
	}, nil
}

// QuickStart creates a session against the built-in scenario. No
// multi-phase generation, no progress broadcast.
func (s *Service) QuickStart(ctx context.Context, userID string) (*CreateResult, error) {
	gameID := uuid.NewString()

	g, err := s.createGameRow(ctx, gameID, userID, domain.ScenarioSlugDefault)
	if err != nil {
		return nil, err
	}

	start := time.Now()
	snapshot, err := s.gen.QuickStartScenario(ctx, gameID)
	if err != nil {
		s.compensate(ctx, gameID, "quickstart", err, time.Since(start))
		return nil, apperr.Wrap(apperr.CodeUpstreamUnavailable, "quickstart failed", err)
	}

	g.GameState = snapshot
	if err := s.repo.UpdateGame(ctx, g); err != nil {
		s.compensate(ctx, gameID, "persist_snapshot", err, time.Since(start))
		return nil, apperr.Wrap(apperr.CodeInternal, "failed to persist game state", err)
	}

	slog.Info("Quickstart game created", "game_id", gameID, "elapsed", time.Since(start))

	return &CreateResult{
		GameID:    gameID,
		Status:    g.Status,
		ExpiresAt: g.ExpiresAt,
		Scenario:  snapshot,
	}, nil
}

// ChatResult is the outcome of one interrogation turn.
type ChatResult struct {
	Message       *domain.ChatMessage `json:"message"`
	PersonaName   string              `json:"persona_name"`
	RevealedClue  string              `json:"revealed_clue,omitempty"`
	RevealedClues []string            `json:"revealed_clues"`
	NewAutoNotes  []string            `json:"new_auto_notes,omitempty"`
	AutoNotes     map[string][]string `json:"auto_notes,omitempty"`
	AudioBase64   string              `json:"audio_base64,omitempty"`
	VoiceID       string              `json:"voice_id,omitempty"`
}

// Chat runs one interrogation turn against a persona.
func (s *Service) Chat(ctx context.Context, gameID, personaSlug, message string) (*ChatResult, error) {
	if personaSlug == "" {
		return nil, apperr.Validation("persona_slug is required")
	}
	if message == "" {
		return nil, apperr.Validation("message is required")
	}

	g, err := s.activeGame(ctx, gameID)
	if err != nil {
		return nil, err
	}

	playerMsg := &domain.ChatMessage{
		GameID:  gameID,
		Content: message,
	}
	if err := s.repo.InsertMessage(ctx, playerMsg); err != nil {
		return nil, apperr.Wrap(apperr.CodeInternal, "failed to record message", err)
	}

	conversation, err := s.repo.ListConversation(ctx, gameID, personaSlug)
	if err != nil {
		return nil, apperr.Wrap(apperr.CodeInternal, "failed to load conversation", err)
	}
	// The just-inserted player message closes the history; the upstream
	// call carries the current message separately.
	if n := len(conversation); n > 0 && conversation[n-1].ID == playerMsg.ID {
		conversation = conversation[:n-1]
	}
	history := BuildHistory(conversation)

	start := time.Now()
	reply, err := s.gen.Chat(ctx, gameID, personaSlug, message, history)
	if err != nil {
		slog.Error("Chat turn failed",
			"game_id", gameID,
			"persona_slug", personaSlug,
			"error", err,
			"elapsed", time.Since(start))
		return nil, apperr.Wrap(apperr.CodeUpstreamUnavailable, "the suspect is not answering right now", err)
	}

	// An empty slug would make the reply read as player-authored and leak
	// into every persona's history.
	replySlug := reply.PersonaSlug
	if replySlug == "" {
		replySlug = personaSlug
	}
	personaMsg := &domain.ChatMessage{
		GameID:       gameID,
		PersonaSlug:  replySlug,
		Content:      reply.Response,
		RevealedClue: reply.RevealedClue,
	}
	if err := s.repo.InsertMessage(ctx, personaMsg); err != nil {
		return nil, apperr.Wrap(apperr.CodeInternal, "failed to record reply", err)
	}

	changed := false
	if g.AppendClue(reply.RevealedClue) {
		changed = true
		slog.Info("Clue revealed",
			"game_id", gameID,
			"persona_slug", personaSlug,
			"clue_count", len(g.RevealedClues))
	}
	if reply.AllAutoNotes != nil {
		// Cumulative upstream; last write wins, no merging here.
		g.ReplaceAutoNotes(reply.AllAutoNotes)
		changed = true
	}
	if changed {
		if err := s.repo.UpdateGame(ctx, g); err != nil {
			return nil, apperr.Wrap(apperr.CodeInternal, "failed to update game", err)
		}
	}

	return &ChatResult{
		Message:       personaMsg,
		PersonaName:   reply.PersonaName,
		RevealedClue:  reply.RevealedClue,
		RevealedClues: g.RevealedClues,
		NewAutoNotes:  reply.NewAutoNotes,
		AutoNotes:     g.AutoNotes,
		AudioBase64:   reply.AudioBase64,
		VoiceID:       reply.VoiceID,
	}, nil
}

// AccuseResult is the outcome of a final accusation. The solution is
// revealed either way; a correct accusation also ends and deletes the
// session.
type AccuseResult struct {
	Correct       bool               `json:"correct"`
	Status        domain.GameStatus  `json:"status"`
	Murderer      genclient.Murderer `json:"murderer"`
	Motive        string             `json:"motive"`
	Weapon        string             `json:"weapon"`
	CriticalClues []string           `json:"critical_clues"`
}

// Accuse processes the player's final guess.
func (s *Service) Accuse(ctx context.Context, gameID, accusedSlug string) (*AccuseResult, error) {
	if accusedSlug == "" {
		return nil, apperr.Validation("persona_slug is required")
	}

	g, err := s.activeGame(ctx, gameID)
	if err != nil {
		return nil, err
	}

	solution, err := s.solution(ctx, gameID)
	if err != nil {
		return nil, apperr.Wrap(apperr.CodeUpstreamUnavailable, "solution lookup failed", err)
	}

	murdererSlug := solution.Murderer.Slug
	if murdererSlug == "" {
		murdererSlug = defaultMurdererSlug
	}
	correct := accusedSlug == murdererSlug

	status := domain.StatusFailed
	if correct {
		status = domain.StatusSolved
	}
	g.Finish(status, accusedSlug)
	if err := s.repo.UpdateGame(ctx, g); err != nil {
		return nil, apperr.Wrap(apperr.CodeInternal, "failed to update game", err)
	}

	slog.Info("Accusation processed",
		"game_id", gameID,
		"accused", accusedSlug,
		"correct", correct)

	if correct {
		// A solved game is gone for good: messages first, then the row.
		if err := s.repo.DeleteMessages(ctx, gameID); err != nil {
			return nil, apperr.Wrap(apperr.CodeInternal, "failed to clear solved game", err)
		}
		if err := s.repo.DeleteGame(ctx, gameID); err != nil {
			return nil, apperr.Wrap(apperr.CodeInternal, "failed to clear solved game", err)
		}
		s.solutions.Delete(gameID)
	}

	return &AccuseResult{
		Correct:       correct,
		Status:        status,
		Murderer:      solution.Murderer,
		Motive:        solution.Motive,
		Weapon:        solution.Weapon,
		CriticalClues: solution.CriticalClues,
	}, nil
}

// HistoryResult is the full-session replay view.
type HistoryResult struct {
	GameID        string            `json:"game_id"`
	Status        domain.GameStatus `json:"status"`
	Threads       []PersonaThread   `json:"threads"`
	RevealedClues []string          `json:"revealed_clues"`
}

// History assembles the grouped replay view of a session.
func (s *Service) History(ctx context.Context, gameID string) (*HistoryResult, error) {
	g, err := s.getGame(ctx, gameID)
	if err != nil {
		return nil, err
	}

	msgs, err := s.repo.ListMessages(ctx, gameID)
	if err != nil {
		return nil, apperr.Wrap(apperr.CodeInternal, "failed to load history", err)
	}

	return &HistoryResult{
		GameID:        g.ID,
		Status:        g.Status,
		Threads:       GroupByPersona(msgs),
		RevealedClues: g.RevealedClues,
	}, nil
}

// StateResult is the read-only session snapshot.
type StateResult struct {
	GameID         string                   `json:"game_id"`
	Status         domain.GameStatus        `json:"status"`
	ScenarioSlug   string                   `json:"scenario_slug"`
	Scenario       *domain.ScenarioSnapshot `json:"scenario,omitempty"`
	RevealedClues  []string                 `json:"revealed_clues"`
	AutoNotes      map[string][]string      `json:"auto_notes,omitempty"`
	AccusedPersona string                   `json:"accused_persona,omitempty"`
	ExpiresAt      *time.Time               `json:"expires_at,omitempty"`
}

// GetState returns the current session snapshot.
func (s *Service) GetState(ctx context.Context, gameID string) (*StateResult, error) {
	g, err := s.getGame(ctx, gameID)
	if err != nil {
		return nil, err
	}

	return &StateResult{
		GameID:         g.ID,
		Status:         g.Status,
		ScenarioSlug:   g.ScenarioSlug,
		Scenario:       g.GameState,
		RevealedClues:  g.RevealedClues,
		AutoNotes:      g.AutoNotes,
		AccusedPersona: g.AccusedPersona,
		ExpiresAt:      g.ExpiresAt,
	}, nil
}

func (s *Service) resolveGameID(ctx context.Context, proposedID string) (string, error) {
	if proposedID == "" {
		return uuid.NewString(), nil
	}
	if !gameIDPattern.MatchString(proposedID) {
		return "", apperr.Validation("game_id must match %s", gameIDPattern.String())
	}
	existing, err := s.repo.GetGame(ctx, proposedID)
	if err != nil {
		return "", apperr.Wrap(apperr.CodeInternal, "failed to check game id", err)
	}
	if existing != nil {
		return "", apperr.Validation("game_id %q is already in use", proposedID)
	}
	return proposedID, nil
}

func (s *Service) createGameRow(ctx context.Context, gameID, userID, scenarioSlug string) (*domain.Game, error) {
	now := time.Now()
	expiresAt := now.Add(s.sessionTTL)

	g := &domain.Game{
		ID:            gameID,
		UserID:        userID,
		ScenarioSlug:  scenarioSlug,
		Status:        domain.StatusActive,
		RevealedClues: []string{},
		ExpiresAt:     &expiresAt,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	if err := s.repo.CreateGame(ctx, g); err != nil {
		return nil, apperr.Wrap(apperr.CodeInternal, "failed to create game", err)
	}
	return g, nil
}

// compensate removes the just-created game row after a generation failure
// so no orphaned contentless session stays active. If the compensating
// delete itself fails, the reaper clears the row once it expires.
func (s *Service) compensate(ctx context.Context, gameID, phase string, cause error, elapsed time.Duration) {
	slog.Error("Generation failed, rolling back session",
		"game_id", gameID,
		"phase", phase,
		"error", cause,
		"elapsed", elapsed)

	if err := s.repo.DeleteGame(ctx, gameID); err != nil {
		slog.Warn("Compensating delete failed, reaper will collect the session",
			"game_id", gameID,
			"error", err)
	}
}

func (s *Service) getGame(ctx context.Context, gameID string) (*domain.Game, error) {
	if gameID == "" {
		return nil, apperr.Validation("game_id is required")
	}
	g, err := s.repo.GetGame(ctx, gameID)
	if err != nil {
		return nil, apperr.Wrap(apperr.CodeInternal, "failed to load game", err)
	}
	if g == nil {
		return nil, apperr.New(apperr.CodeNotFound, fmt.Sprintf("game %s not found", gameID))
	}
	return g, nil
}

func (s *Service) activeGame(ctx context.Context, gameID string) (*domain.Game, error) {
	g, err := s.getGame(ctx, gameID)
	if err != nil {
		return nil, err
	}
	if g.Status != domain.StatusActive {
		return nil, apperr.New(apperr.CodeInactiveSession,
			fmt.Sprintf("game %s is %s", gameID, g.Status))
	}
	return g, nil
}

func (s *Service) solution(ctx context.Context, gameID string) (*genclient.Solution, error) {
	if cached, ok := s.solutions.Get(gameID); ok {
		return cached.(*genclient.Solution), nil
	}
	solution, err := s.gen.GetSolution(ctx, gameID)
	if err != nil {
		return nil, err
	}
	s.solutions.SetDefault(gameID, solution)
	return solution, nil
}
