package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/fweigel/mordspiel/internal/apperr"
)

func TestJSON(t *testing.T) {
	w := httptest.NewRecorder()
	data := map[string]string{"foo": "bar"}

	JSON(w, http.StatusOK, data)

	resp := w.Result()
	if resp.StatusCode != http.StatusOK {
		t.Errorf("Expected status 200, got %d", resp.StatusCode)
	}
	if ct := resp.Header.Get("Content-Type"); ct != "application/json" {
		t.Errorf("Expected application/json, got %q", ct)
	}

	var got map[string]string
	if err := json.NewDecoder(resp.Body).Decode(&got); err != nil {
		t.Fatalf("Failed to decode response: %v", err)
	}
	if got["foo"] != "bar" {
		t.Errorf("Expected foo=bar, got %v", got["foo"])
	}
}

func TestStatusFor(t *testing.T) {
	tests := []struct {
		code apperr.Code
		want int
	}{
		{apperr.CodeValidation, http.StatusBadRequest},
		{apperr.CodeNotFound, http.StatusNotFound},
		{apperr.CodeInactiveSession, http.StatusConflict},
		{apperr.CodeUpstreamUnavailable, http.StatusBadGateway},
		{apperr.CodeInternal, http.StatusInternalServerError},
		{apperr.Code("SOMETHING_NEW"), http.StatusInternalServerError},
	}

	for _, tt := range tests {
		if got := statusFor(tt.code); got != tt.want {
			t.Errorf("statusFor(%s) = %d, want %d", tt.code, got, tt.want)
		}
	}
}

func TestWriteAppErrorSanitizes(t *testing.T) {
	w := httptest.NewRecorder()
	r := httptest.NewRequest(http.MethodPost, "/api/games", nil)
	err := apperr.Wrap(apperr.CodeUpstreamUnavailable, "scenario generation failed",
		errors.New("dial tcp 10.0.0.5:8000: connection refused"))

	writeAppError(w, r, err, false)

	if w.Code != http.StatusBadGateway {
		t.Errorf("expected status 502, got %d", w.Code)
	}

	var body errorBody
	if err := json.NewDecoder(w.Body).Decode(&body); err != nil {
		t.Fatalf("Failed to decode response: %v", err)
	}
	if body.Error != "scenario generation failed" {
		t.Errorf("unexpected message: %q", body.Error)
	}
	if body.Code != apperr.CodeUpstreamUnavailable {
		t.Errorf("unexpected code: %q", body.Code)
	}
	if body.Detail != "" {
		t.Errorf("internal detail leaked without debug: %q", body.Detail)
	}
}

func TestWriteAppErrorDebugDetail(t *testing.T) {
	w := httptest.NewRecorder()
	r := httptest.NewRequest(http.MethodPost, "/api/games", nil)
	err := apperr.Wrap(apperr.CodeInternal, "failed to persist game state",
		errors.New("disk full"))

	writeAppError(w, r, err, true)

	var body errorBody
	if err := json.NewDecoder(w.Body).Decode(&body); err != nil {
		t.Fatalf("Failed to decode response: %v", err)
	}
	if body.Detail != "disk full" {
		t.Errorf("expected cause detail in debug mode, got %q", body.Detail)
	}
}

func TestWriteAppErrorUncodedError(t *testing.T) {
	w := httptest.NewRecorder()
	r := httptest.NewRequest(http.MethodGet, "/api/games/x", nil)

	writeAppError(w, r, errors.New("something unexpected"), false)

	if w.Code != http.StatusInternalServerError {
		t.Errorf("expected status 500, got %d", w.Code)
	}

	var body errorBody
	if err := json.NewDecoder(w.Body).Decode(&body); err != nil {
		t.Fatalf("Failed to decode response: %v", err)
	}
	if body.Error != "internal error" || body.Code != apperr.CodeInternal {
		t.Errorf("uncoded errors must map to a generic INTERNAL body, got %+v", body)
	}
}
