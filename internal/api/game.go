package api

import (
	"net/http"

	"github.com/fweigel/mordspiel/internal/game"
	"github.com/fweigel/mordspiel/internal/identity"
	"github.com/go-chi/chi/v5"
)

// GameHandler exposes the session orchestrator over HTTP.
type GameHandler struct {
	svc   *game.Service
	debug bool
}

// NewGameHandler creates the game endpoints handler.
func NewGameHandler(svc *game.Service, debug bool) *GameHandler {
	return &GameHandler{svc: svc, debug: debug}
}

// RegisterRoutes registers the game routes.
func (h *GameHandler) RegisterRoutes(r chi.Router) {
	r.Route("/api/games", func(r chi.Router) {
		r.Post("/", h.Create)
		r.Post("/quickstart", h.QuickStart)
		r.Route("/{gameID}", func(r chi.Router) {
			r.Get("/", h.GetState)
			r.Get("/history", h.History)
			r.Post("/chat", h.Chat)
			r.Post("/accuse", h.Accuse)
		})
	})
}

type createRequest struct {
	UserInput  string `json:"user_input"`
	Difficulty string `json:"difficulty"`
	GameID     string `json:"game_id"`
}

// Create starts a new session with a freshly generated scenario. Clients
// may propose the game id so they can subscribe to the progress feed
// before generation begins.
func (h *GameHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req createRequest
	if err := decodeJSON(r, &req); err != nil {
		writeAppError(w, r, err, h.debug)
		return
	}

	userID := identity.UserIDFromContext(r.Context())
	result, err := h.svc.CreateAndGenerate(r.Context(), userID, req.UserInput, req.Difficulty, req.GameID)
	if err != nil {
		writeAppError(w, r, err, h.debug)
		return
	}
	JSON(w, http.StatusCreated, result)
}

// QuickStart starts a session with the built-in scenario.
func (h *GameHandler) QuickStart(w http.ResponseWriter, r *http.Request) {
	userID := identity.UserIDFromContext(r.Context())
	result, err := h.svc.QuickStart(r.Context(), userID)
	if err != nil {
		writeAppError(w, r, err, h.debug)
		return
	}
	JSON(w, http.StatusCreated, result)
}

type chatRequest struct {
	PersonaSlug string `json:"persona_slug"`
	Message     string `json:"message"`
}

// Chat runs one interrogation turn.
func (h *GameHandler) Chat(w http.ResponseWriter, r *http.Request) {
	var req chatRequest
	if err := decodeJSON(r, &req); err != nil {
		writeAppError(w, r, err, h.debug)
		return
	}

	result, err := h.svc.Chat(r.Context(), chi.URLParam(r, "gameID"), req.PersonaSlug, req.Message)
	if err != nil {
		writeAppError(w, r, err, h.debug)
		return
	}
	JSON(w, http.StatusOK, result)
}

type accuseRequest struct {
	PersonaSlug string `json:"persona_slug"`
}

// Accuse processes the player's final guess.
func (h *GameHandler) Accuse(w http.ResponseWriter, r *http.Request) {
	var req accuseRequest
	if err := decodeJSON(r, &req); err != nil {
		writeAppError(w, r, err, h.debug)
		return
	}

	result, err := h.svc.Accuse(r.Context(), chi.URLParam(r, "gameID"), req.PersonaSlug)
	if err != nil {
		writeAppError(w, r, err, h.debug)
		return
	}
	JSON(w, http.StatusOK, result)
}

// GetState returns the read-only session snapshot.
func (h *GameHandler) GetState(w http.ResponseWriter, r *http.Request) {
	result, err := h.svc.GetState(r.Context(), chi.URLParam(r, "gameID"))
	if err != nil {
		writeAppError(w, r, err, h.debug)
		return
	}
	JSON(w, http.StatusOK, result)
}

// History returns the grouped replay view.
func (h *GameHandler) History(w http.ResponseWriter, r *http.Request) {
	result, err := h.svc.History(r.Context(), chi.URLParam(r, "gameID"))
	if err != nil {
		writeAppError(w, r, err, h.debug)
		return
	}
	JSON(w, http.StatusOK, result)
}
