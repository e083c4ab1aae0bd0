package genclient

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/fweigel/mordspiel/internal/domain"
)

// Client defines the synchronous RPC surface of the generation service.
// The service pushes generation progress out-of-band through the progress
// ingestion endpoint; nothing else crosses the boundary.
type Client interface {
	// GenerateScenario runs the first generation phase for a new game.
	GenerateScenario(ctx context.Context, gameID, userInput, difficulty string) (*ScenarioResult, error)

	// StartGame runs the second phase: persona and game initialization.
	StartGame(ctx context.Context, gameID string) (*domain.ScenarioSnapshot, error)

	// QuickStartScenario loads the canned scenario synchronously.
	QuickStartScenario(ctx context.Context, gameID string) (*domain.ScenarioSnapshot, error)

	// Chat runs one interrogation turn against a persona.
	Chat(ctx context.Context, gameID, personaSlug, message string, history []HistoryMessage) (*ChatReply, error)

	// GetSolution returns the ground truth for an accusation.
	GetSolution(ctx context.Context, gameID string) (*Solution, error)

	// Health checks whether the generation service is reachable.
	Health(ctx context.Context) error
}

// HTTPClient talks JSON over HTTP to the generation service.
type HTTPClient struct {
	baseURL         string
	httpClient      *http.Client
	generateTimeout time.Duration
	requestTimeout  time.Duration
	logger          *slog.Logger
}

// HTTPClientConfig holds configuration for the HTTP client.
type HTTPClientConfig struct {
	BaseURL         string
	GenerateTimeout time.Duration
	RequestTimeout  time.Duration
}

// NewHTTPClient creates a client to the generation service.
func NewHTTPClient(cfg HTTPClientConfig, logger *slog.Logger) *HTTPClient {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.GenerateTimeout <= 0 {
		cfg.GenerateTimeout = 120 * time.Second
	}
	if cfg.RequestTimeout <= 0 {
		cfg.RequestTimeout = 30 * time.Second
	}

	return &HTTPClient{
		baseURL:         strings.TrimRight(cfg.BaseURL, "/"),
		httpClient:      &http.Client{},
		generateTimeout: cfg.GenerateTimeout,
		requestTimeout:  cfg.RequestTimeout,
		logger:          logger,
	}
}

var _ Client = (*HTTPClient)(nil)

// GenerateScenario runs the long first generation phase. It uses the
// generate timeout since the upstream pipeline takes tens of seconds.
func (c *HTTPClient) GenerateScenario(ctx context.Context, gameID, userInput, difficulty string) (*ScenarioResult, error) {
	req := map[string]string{
		"game_id":    gameID,
		"user_input": userInput,
		"difficulty": difficulty,
	}
	var result ScenarioResult
	if err := c.post(ctx, "/scenario/generate", c.generateTimeout, req, &result); err != nil {
		return nil, fmt.Errorf("generate scenario: %w", err)
	}
	return &result, nil
}

// StartGame initializes personas and game state for a generated scenario.
func (c *HTTPClient) StartGame(ctx context.Context, gameID string) (*domain.ScenarioSnapshot, error) {
	var resp startGameResponse
	if err := c.post(ctx, "/game/start", c.generateTimeout, map[string]string{"game_id": gameID}, &resp); err != nil {
		return nil, fmt.Errorf("start game: %w", err)
	}
	return resp.snapshot(), nil
}

// QuickStartScenario loads the canned scenario. Synchronous and fast, so
// it runs under the regular request timeout.
func (c *HTTPClient) QuickStartScenario(ctx context.Context, gameID string) (*domain.ScenarioSnapshot, error) {
	var resp startGameResponse
	if err := c.post(ctx, "/game/quickstart", c.requestTimeout, map[string]string{"game_id": gameID}, &resp); err != nil {
		return nil, fmt.Errorf("quickstart scenario: %w", err)
	}
	return resp.snapshot(), nil
}

// Chat runs one interrogation turn.
func (c *HTTPClient) Chat(ctx context.Context, gameID, personaSlug, message string, history []HistoryMessage) (*ChatReply, error) {
	if history == nil {
		history = []HistoryMessage{}
	}
	req := map[string]interface{}{
		"game_id":      gameID,
		"persona_slug": personaSlug,
		"message":      message,
		"chat_history": history,
	}
	var reply ChatReply
	if err := c.post(ctx, "/chat", c.requestTimeout, req, &reply); err != nil {
		return nil, fmt.Errorf("chat with %s: %w", personaSlug, err)
	}
	return &reply, nil
}

// GetSolution returns the scenario's ground truth.
func (c *HTTPClient) GetSolution(ctx context.Context, gameID string) (*Solution, error) {
	var solution Solution
	if err := c.post(ctx, "/game/solution", c.requestTimeout, map[string]string{"game_id": gameID}, &solution); err != nil {
		return nil, fmt.Errorf("get solution: %w", err)
	}
	return &solution, nil
}

// Health checks the generation service.
func (c *HTTPClient) Health(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/health", nil)
	if err != nil {
		return fmt.Errorf("build health request: %w", err)
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("health check failed: %w", err)
	}
	defer drainAndClose(resp.Body)

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("health check returned status %d", resp.StatusCode)
	}
	return nil
}

func (c *HTTPClient) post(ctx context.Context, path string, timeout time.Duration, body, out interface{}) error {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	payload, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("call %s: %w", path, err)
	}
	defer drainAndClose(resp.Body)

	c.logger.Debug("generation service call",
		"path", path,
		"status", resp.StatusCode,
		"elapsed", time.Since(start))

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		detail := readErrorDetail(resp.Body)
		if detail != "" {
			return fmt.Errorf("%s returned status %d: %s", path, resp.StatusCode, detail)
		}
		return fmt.Errorf("%s returned status %d", path, resp.StatusCode)
	}

	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode %s response: %w", path, err)
	}
	return nil
}

// readErrorDetail pulls the {"detail": "..."} field FastAPI-style services
// attach to error responses. Bounded read; bodies are untrusted.
func readErrorDetail(r io.Reader) string {
	data, err := io.ReadAll(io.LimitReader(r, 4096))
	if err != nil {
		return ""
	}
	var body struct {
		Detail string `json:"detail"`
	}
	if err := json.Unmarshal(data, &body); err != nil {
		return ""
	}
	return body.Detail
}

func drainAndClose(body io.ReadCloser) {
	_, _ = io.Copy(io.Discard, io.LimitReader(body, 64*1024))
	if err := body.Close(); err != nil {
		slog.Debug("failed to close response body", "error", err)
	}
}
