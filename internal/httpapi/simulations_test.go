package httpapi

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mirofish/graphmemd/internal/extractor"
	"github.com/mirofish/graphmemd/internal/graphstore"
	"github.com/mirofish/graphmemd/internal/invalidator"
	"github.com/mirofish/graphmemd/internal/resolution"
	"github.com/mirofish/graphmemd/internal/updater"
)

type stubExtractor struct{}

func (stubExtractor) Extract(context.Context, string, extractor.Ontology) (extractor.Result, error) {
	return extractor.Result{}, nil
}

type stubResolver struct{}

func (stubResolver) ClearCache() {}
func (stubResolver) Resolve(context.Context, string, string, string, string, string, string) (resolution.ResolvedEntity, error) {
	return resolution.ResolvedEntity{}, nil
}
func (stubResolver) FindExisting(context.Context, string, string, string) (string, bool, error) {
	return "", false, nil
}

type stubInvalidator struct{}

func (stubInvalidator) DetectContradictions(context.Context, invalidator.Edge, []invalidator.Edge) []string {
	return nil
}

type stubStore struct{ graphstore.Store }

func newServerWithFactory(t *testing.T) *Server {
	t.Helper()
	s := newTestServer(t)
	s.SetUpdaterFactory(func(graphID, projectID string, ontology extractor.Ontology) *updater.Updater {
		cfg := updater.DefaultConfig()
		cfg.ProcessInterval = 5 * time.Millisecond
		cfg.QueueGetTimeout = 20 * time.Millisecond
		cfg.StopJoinTimeout = time.Second
		return updater.NewUpdater(graphID, projectID, stubStore{}, stubExtractor{}, stubResolver{}, stubInvalidator{}, ontology, cfg, slog.Default())
	})
	return s
}

func TestCreateSimulationStartsUpdater(t *testing.T) {
	s := newServerWithFactory(t)
	body, _ := json.Marshal(map[string]any{"simulation_id": "sim1", "graph_id": "g1", "project_id": "p1"})
	req := httptest.NewRequest(http.MethodPost, "/simulations", bytes.NewReader(body))
	rec := httptest.NewRecorder()
	s.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	_, ok := s.registry.Get("sim1")
	assert.True(t, ok)
}

func TestGetSimulationByIDReturnsStats(t *testing.T) {
	s := newServerWithFactory(t)
	createBody, _ := json.Marshal(map[string]any{"simulation_id": "sim1", "graph_id": "g1"})
	createReq := httptest.NewRequest(http.MethodPost, "/simulations", bytes.NewReader(createBody))
	s.ServeHTTP(httptest.NewRecorder(), createReq)

	req := httptest.NewRequest(http.MethodGet, "/simulations/sim1", nil)
	rec := httptest.NewRecorder()
	s.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestDeleteSimulationStopsIt(t *testing.T) {
	s := newServerWithFactory(t)
	createBody, _ := json.Marshal(map[string]any{"simulation_id": "sim1", "graph_id": "g1"})
	s.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodPost, "/simulations", bytes.NewReader(createBody)))

	req := httptest.NewRequest(http.MethodDelete, "/simulations/sim1", nil)
	rec := httptest.NewRecorder()
	s.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)

	_, ok := s.registry.Get("sim1")
	assert.False(t, ok)
}

func TestPostActivitiesAcceptsBatch(t *testing.T) {
	s := newServerWithFactory(t)
	createBody, _ := json.Marshal(map[string]any{"simulation_id": "sim1", "graph_id": "g1"})
	s.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodPost, "/simulations", bytes.NewReader(createBody)))

	activitiesBody, _ := json.Marshal(map[string]any{
		"platform": "twitter",
		"activities": []map[string]any{
			{"agent_id": 1, "agent_name": "alice", "action_type": "POST", "round": 1},
			{"event_type": "round_start"},
		},
	})
	req := httptest.NewRequest(http.MethodPost, "/simulations/sim1/activities", bytes.NewReader(activitiesBody))
	rec := httptest.NewRecorder()
	s.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	var env Envelope
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &env))
	assert.True(t, env.Success)
}

func TestPostActivitiesRejectsUnknownSimulation(t *testing.T) {
	s := newServerWithFactory(t)
	body, _ := json.Marshal(map[string]any{"platform": "twitter", "activity": map[string]any{"agent_name": "a"}})
	req := httptest.NewRequest(http.MethodPost, "/simulations/missing/activities", bytes.NewReader(body))
	rec := httptest.NewRecorder()
	s.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}
