package httpapi

import (
	"encoding/json"
	"net/http"
	"strings"

	apperrors "github.com/mirofish/graphmemd/internal/errors"
	"github.com/mirofish/graphmemd/internal/extractor"
	"github.com/mirofish/graphmemd/internal/updater"
)

// UpdaterFactory builds a ready-to-register Updater for one simulation
// (component C6), wired with the caller's store/extractor/resolver/
// invalidator/DLQ instances. ontology is the graph's ontology, or the
// zero value to fall back to extractor.DefaultOntology (spec.md §4.6).
type UpdaterFactory func(graphID, projectID string, ontology extractor.Ontology) *updater.Updater

// SetUpdaterFactory wires simulation creation (POST /simulations). Must
// be called before serving traffic if that endpoint is used.
func (s *Server) SetUpdaterFactory(f UpdaterFactory) {
	s.newUpdater = f
}

func (s *Server) handleSimulations(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, apperrors.ValidationErrorf("method %s not allowed on /simulations", r.Method))
		return
	}
	if s.newUpdater == nil {
		writeError(w, apperrors.InternalError("simulation creation is not configured"))
		return
	}

	var body struct {
		SimulationID string              `json:"simulation_id"`
		GraphID      string              `json:"graph_id"`
		ProjectID    string              `json:"project_id"`
		Ontology     *extractor.Ontology `json:"ontology"`
	}
	if err := decodeJSON(r, &body); err != nil {
		writeError(w, err)
		return
	}
	if body.SimulationID == "" || body.GraphID == "" {
		writeError(w, apperrors.ValidationErrorf("simulation_id and graph_id are required"))
		return
	}

	var ontology extractor.Ontology
	if body.Ontology != nil {
		ontology = *body.Ontology
	}

	u := s.newUpdater(body.GraphID, body.ProjectID, ontology)
	if err := s.registry.Create(r.Context(), body.SimulationID, u); err != nil {
		writeError(w, err)
		return
	}
	writeOK(w, u.GetStats())
}

// simulationIDFromPath extracts {id} from /simulations/{id}[/suffix].
func simulationIDFromPath(path, suffix string) (string, bool) {
	rest := strings.TrimPrefix(path, "/simulations/")
	if rest == path {
		return "", false
	}
	rest = strings.TrimSuffix(rest, suffix)
	rest = strings.Trim(rest, "/")
	if rest == "" {
		return "", false
	}
	return rest, true
}

func (s *Server) handleSimulationByID(w http.ResponseWriter, r *http.Request) {
	if strings.HasSuffix(r.URL.Path, "/activities") {
		s.handleActivities(w, r)
		return
	}

	simulationID, ok := simulationIDFromPath(r.URL.Path, "")
	if !ok {
		s.handleSimulationStats(w, r)
		return
	}

	switch r.Method {
	case http.MethodGet:
		u, found := s.registry.Get(simulationID)
		if !found {
			writeError(w, apperrors.ValidationErrorf("unknown simulation %q", simulationID))
			return
		}
		writeOK(w, u.GetStats())
	case http.MethodDelete:
		if err := s.registry.Stop(r.Context(), simulationID); err != nil {
			writeError(w, err)
			return
		}
		writeOK(w, map[string]string{"status": "stopped"})
	default:
		writeError(w, apperrors.ValidationErrorf("method %s not allowed on /simulations/{id}", r.Method))
	}
}

// handleActivities serves POST /simulations/{id}/activities, the
// ingestion entrypoint for a simulation's activity stream (spec.md §6
// "Activity record"). The body is either one loosely-typed record or a
// JSON array of them.
func (s *Server) handleActivities(w http.ResponseWriter, r *http.Request) {
	simulationID, ok := simulationIDFromPath(r.URL.Path, "/activities")
	if !ok {
		writeError(w, apperrors.ValidationErrorf("missing simulation id"))
		return
	}
	if r.Method != http.MethodPost {
		writeError(w, apperrors.ValidationErrorf("method %s not allowed on /simulations/{id}/activities", r.Method))
		return
	}
	u, found := s.registry.Get(simulationID)
	if !found {
		writeError(w, apperrors.ValidationErrorf("unknown simulation %q", simulationID))
		return
	}

	var body struct {
		Platform   string           `json:"platform"`
		Activity   *json.RawMessage `json:"activity"`
		Activities []json.RawMessage `json:"activities"`
	}
	if err := decodeJSON(r, &body); err != nil {
		writeError(w, err)
		return
	}
	if body.Platform == "" {
		writeError(w, apperrors.ValidationErrorf("platform is required"))
		return
	}

	records := body.Activities
	if body.Activity != nil {
		records = append(records, *body.Activity)
	}
	if len(records) == 0 {
		writeError(w, apperrors.ValidationErrorf("no activity records provided"))
		return
	}

	accepted := 0
	for _, raw := range records {
		var record map[string]any
		if err := json.Unmarshal(raw, &record); err != nil {
			writeError(w, apperrors.ValidationErrorf("invalid activity record: %v", err))
			return
		}
		if err := u.AddActivityFromDict(record, body.Platform); err != nil {
			writeError(w, err)
			return
		}
		accepted++
	}
	writeOK(w, map[string]int{"accepted": accepted})
}
