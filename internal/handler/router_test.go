package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zhouzirui/date-night/backend/internal/logger"
	"github.com/zhouzirui/date-night/backend/internal/model/preference"
	"github.com/zhouzirui/date-night/backend/internal/model/session"
	"github.com/zhouzirui/date-night/backend/internal/service/pairing"
)

type echoPlanner struct{}

func (echoPlanner) GeneratePlan(context.Context, preference.Preferences, preference.Preferences) (string, error) {
	return "Title: Cozy Night", nil
}

func newTestRouter(t *testing.T) http.Handler {
	t.Helper()
	svc, err := pairing.NewService(session.NewMemoryStore(0), echoPlanner{}, logger.Nop(), pairing.Options{})
	require.NoError(t, err)
	return NewRouter(svc, logger.Nop(), 0)
}

func serve(r http.Handler, method, path string, body []byte) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, bytes.NewReader(body))
	resp := httptest.NewRecorder()
	r.ServeHTTP(resp, req)
	return resp
}

func TestRouterPreflightReturnsEmptyOK(t *testing.T) {
	r := newTestRouter(t)

	for _, path := range []string{"/submit-preferences", "/generate-plan", "/anything/else"} {
		resp := serve(r, http.MethodOptions, path, nil)
		assert.Equal(t, http.StatusOK, resp.Code, path)
		assert.Empty(t, resp.Body.String(), path)
		assert.Equal(t, "*", resp.Header().Get("Access-Control-Allow-Origin"))
		assert.Equal(t, "GET, POST, OPTIONS", resp.Header().Get("Access-Control-Allow-Methods"))
		assert.Equal(t, "Content-Type", resp.Header().Get("Access-Control-Allow-Headers"))
	}
}

func TestRouterUnknownRoutesReturnNotFound(t *testing.T) {
	r := newTestRouter(t)

	cases := []struct {
		method string
		path   string
	}{
		{http.MethodGet, "/nope"},
		{http.MethodGet, "/submit-preferences"},
		{http.MethodDelete, "/generate-plan"},
	}
	for _, tc := range cases {
		resp := serve(r, tc.method, tc.path, nil)
		assert.Equal(t, http.StatusNotFound, resp.Code, "%s %s", tc.method, tc.path)
		assert.Equal(t, "*", resp.Header().Get("Access-Control-Allow-Origin"))
		assert.JSONEq(t, `{"error":"Not Found"}`, resp.Body.String())
	}
}

func TestRouterFullExchange(t *testing.T) {
	r := newTestRouter(t)

	resp := serve(r, http.MethodPost, "/submit-preferences", []byte(`{"preferences":{"eat":["Cook Together"]}}`))
	require.Equal(t, http.StatusOK, resp.Code)
	assert.Equal(t, "*", resp.Header().Get("Access-Control-Allow-Origin"))

	var created struct {
		ID string `json:"id"`
	}
	require.NoError(t, json.Unmarshal(resp.Body.Bytes(), &created))
	require.NotEmpty(t, created.ID)

	payload, _ := json.Marshal(map[string]any{"id": created.ID, "partnerPreferences": map[string][]string{}})
	resp = serve(r, http.MethodPost, "/generate-plan", payload)
	require.Equal(t, http.StatusOK, resp.Code)
	assert.JSONEq(t, `{"plan":"Title: Cozy Night"}`, resp.Body.String())

	resp = serve(r, http.MethodGet, "/sessions/"+created.ID, nil)
	require.Equal(t, http.StatusOK, resp.Code)
	var view session.View
	require.NoError(t, json.Unmarshal(resp.Body.Bytes(), &view))
	assert.Equal(t, session.StatusCompleted, view.Status)
}

func TestRouterHealthz(t *testing.T) {
	resp := serve(newTestRouter(t), http.MethodGet, "/healthz", nil)
	assert.Equal(t, http.StatusOK, resp.Code)
}
