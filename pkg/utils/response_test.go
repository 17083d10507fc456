package utils

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestRespondErrorMessage(t *testing.T) {
	rr := httptest.NewRecorder()
	RespondErrorMessage(rr, http.StatusInternalServerError, "Failed to generate plan", errors.New("gateway down"))

	if rr.Code != http.StatusInternalServerError {
		t.Fatalf("unexpected status %d", rr.Code)
	}
	if ct := rr.Header().Get("Content-Type"); ct != "application/json" {
		t.Fatalf("unexpected content type %q", ct)
	}

	var body ErrorBody
	if err := json.Unmarshal(rr.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode err: %v", err)
	}
	if body.Error != "Failed to generate plan" || body.Message != "gateway down" {
		t.Fatalf("unexpected body %+v", body)
	}
}

func TestRespondErrorOmitsMessage(t *testing.T) {
	rr := httptest.NewRecorder()
	RespondError(rr, http.StatusNotFound, "Not Found")

	if got := rr.Body.String(); got != "{\"error\":\"Not Found\"}\n" {
		t.Fatalf("unexpected body %q", got)
	}
}
