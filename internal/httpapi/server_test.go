package httpapi

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mirofish/graphmemd/internal/llmsettings"
	"github.com/mirofish/graphmemd/internal/registry"
)

func newTestServer(t *testing.T) *Server {
	t.Helper()
	dir := t.TempDir()
	store, err := llmsettings.NewStore(filepath.Join(dir, "llm.json"), filepath.Join(dir, "history.db"))
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	return NewServer(store, dir, registry.New(nil), nil)
}

func TestGetConfigReturnsPublicView(t *testing.T) {
	s := newTestServer(t)
	req := httptest.NewRequest(http.MethodGet, "/llm/config", nil)
	rec := httptest.NewRecorder()
	s.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	var env Envelope
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &env))
	assert.True(t, env.Success)
}

func TestPostConfigUpdatesBaseURL(t *testing.T) {
	s := newTestServer(t)
	body, _ := json.Marshal(map[string]any{"base_url": "https://example.com"})
	req := httptest.NewRequest(http.MethodPost, "/llm/config", bytes.NewReader(body))
	rec := httptest.NewRecorder()
	s.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "https://example.com/v1", s.settings.Public().BaseURL)
}

func TestPostConfigRejectsWrongMethod(t *testing.T) {
	s := newTestServer(t)
	req := httptest.NewRequest(http.MethodDelete, "/llm/config", nil)
	rec := httptest.NewRecorder()
	s.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestUsageLimitIsClamped(t *testing.T) {
	s := newTestServer(t)
	req := httptest.NewRequest(http.MethodGet, "/llm/usage?limit=999999999", nil)
	rec := httptest.NewRecorder()
	s.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestUsageInvalidLimitIsRejected(t *testing.T) {
	s := newTestServer(t)
	req := httptest.NewRequest(http.MethodGet, "/llm/usage?limit=notanumber", nil)
	rec := httptest.NewRecorder()
	s.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestStagesListsEveryStage(t *testing.T) {
	s := newTestServer(t)
	req := httptest.NewRequest(http.MethodGet, "/llm/stages", nil)
	rec := httptest.NewRecorder()
	s.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	var env Envelope
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &env))
	data, ok := env.Data.(map[string]any)
	require.True(t, ok)
	assert.NotEmpty(t, data)
}

func TestRoutingAppliesKnownPreset(t *testing.T) {
	s := newTestServer(t)
	body, _ := json.Marshal(map[string]any{"preset": "economy"})
	req := httptest.NewRequest(http.MethodPost, "/llm/routing", bytes.NewReader(body))
	rec := httptest.NewRecorder()
	s.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestRoutingRejectsUnknownPreset(t *testing.T) {
	s := newTestServer(t)
	body, _ := json.Marshal(map[string]any{"preset": "does-not-exist"})
	req := httptest.NewRequest(http.MethodPost, "/llm/routing", bytes.NewReader(body))
	rec := httptest.NewRecorder()
	s.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestSimulationStatsReturnsEmptyMapInitially(t *testing.T) {
	s := newTestServer(t)
	req := httptest.NewRequest(http.MethodGet, "/simulations/", nil)
	rec := httptest.NewRecorder()
	s.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
}
