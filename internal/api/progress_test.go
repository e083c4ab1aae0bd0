package api

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/fweigel/mordspiel/internal/progress"
)

func postProgress(t *testing.T, h *ProgressHandler, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, "/api/internal/progress", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rr := httptest.NewRecorder()
	h.Ingest(rr, req)
	return rr
}

func TestIngestPublishesToSubscribers(t *testing.T) {
	broker := progress.NewBroker()
	h := NewProgressHandler(broker)

	sub := broker.Subscribe(progress.Topic("g1"))
	defer sub.Close()

	rr := postProgress(t, h, `{
		"game_id": "g1",
		"stage": "generating_personas",
		"progress": 60,
		"message": "Erstelle Verdächtige...",
		"persona_name": "Clara",
		"persona_index": 1,
		"total_personas": 4
	}`)

	if rr.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d: %s", rr.Code, rr.Body.String())
	}

	select {
	case event := <-sub.C:
		if event.Stage != progress.StageGeneratingPersonas {
			t.Errorf("unexpected stage: %s", event.Stage)
		}
		if event.PersonaName != "Clara" || event.PersonaIndex == nil || *event.PersonaIndex != 1 {
			t.Errorf("persona fields lost: %+v", event)
		}
		if event.Timestamp.IsZero() {
			t.Error("expected server-side timestamp to be set")
		}
		if time.Since(event.Timestamp) > time.Minute {
			t.Errorf("timestamp not fresh: %v", event.Timestamp)
		}
	default:
		t.Fatal("event was not published")
	}
}

func TestIngestRejectsMalformedJSON(t *testing.T) {
	h := NewProgressHandler(progress.NewBroker())

	rr := postProgress(t, h, `{not json`)
	if rr.Code != http.StatusUnprocessableEntity {
		t.Errorf("expected status 422, got %d", rr.Code)
	}
}

func TestIngestRejectsInvalidEvents(t *testing.T) {
	broker := progress.NewBroker()
	h := NewProgressHandler(broker)

	sub := broker.Subscribe(progress.Topic("g1"))
	defer sub.Close()

	bodies := []string{
		`{"stage": "started", "progress": 0, "message": "hi"}`,
		`{"game_id": "g1", "stage": "warming_up", "progress": 0, "message": "hi"}`,
		`{"game_id": "g1", "stage": "started", "progress": 150, "message": "hi"}`,
		`{"game_id": "g1", "stage": "started", "progress": 0, "message": ""}`,
	}
	for _, body := range bodies {
		rr := postProgress(t, h, body)
		if rr.Code != http.StatusUnprocessableEntity {
			t.Errorf("body %s: expected status 422, got %d", body, rr.Code)
		}

		var resp map[string]string
		if err := json.NewDecoder(rr.Body).Decode(&resp); err != nil {
			t.Fatalf("Failed to decode response: %v", err)
		}
		if resp["error"] == "" {
			t.Error("expected an error message")
		}
	}

	select {
	case event := <-sub.C:
		t.Errorf("invalid event was published: %+v", event)
	default:
	}
}

func TestIngestWithoutSubscribersSucceeds(t *testing.T) {
	h := NewProgressHandler(progress.NewBroker())

	rr := postProgress(t, h, `{"game_id": "g1", "stage": "complete", "progress": 100, "message": "done"}`)
	if rr.Code != http.StatusOK {
		t.Errorf("publishing into the void must succeed, got %d", rr.Code)
	}
}
