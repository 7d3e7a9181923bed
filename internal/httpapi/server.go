package httpapi

import (
	"log/slog"
	"net/http"
	"strconv"

	apperrors "github.com/mirofish/graphmemd/internal/errors"
	"github.com/mirofish/graphmemd/internal/llmsettings"
	"github.com/mirofish/graphmemd/internal/llmusage"
	"github.com/mirofish/graphmemd/internal/registry"
)

const (
	defaultUsageLimit = 5000
	maxUsageLimit     = 200000
)

// Server wires the LLM settings/usage/stage endpoints (spec.md §6) onto
// a net/http.ServeMux. Construct once at startup and mount at its
// ServeMux.
type Server struct {
	settings   *llmsettings.Store
	usageRoot  string
	registry   *registry.Registry
	newUpdater UpdaterFactory
	logger     *slog.Logger
	mux        *http.ServeMux
}

// NewServer builds the mux and registers every route.
func NewServer(settings *llmsettings.Store, usageRoot string, reg *registry.Registry, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	s := &Server{
		settings:  settings,
		usageRoot: usageRoot,
		registry:  reg,
		logger:    logger.With("component", "httpapi"),
		mux:       http.NewServeMux(),
	}
	s.routes()
	return s
}

// ServeHTTP lets Server itself be mounted as an http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.mux.ServeHTTP(w, r)
}

func (s *Server) routes() {
	s.mux.HandleFunc("/llm/config", s.handleConfig)
	s.mux.HandleFunc("/llm/models", s.handleModels)
	s.mux.HandleFunc("/llm/usage", s.handleUsage)
	s.mux.HandleFunc("/llm/stages", s.handleStages)
	s.mux.HandleFunc("/llm/presets", s.handlePresets)
	s.mux.HandleFunc("/llm/routing", s.handleRouting)
	s.mux.HandleFunc("/simulations", s.handleSimulations)
	s.mux.HandleFunc("/simulations/", s.handleSimulationByID)
}

func (s *Server) handleConfig(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		writeOK(w, s.settings.Public())
	case http.MethodPost:
		var body struct {
			BaseURL      *string           `json:"base_url"`
			APIKey       *string           `json:"api_key"`
			ClearAPIKey  bool              `json:"clear_api_key"`
			Models       []string          `json:"models"`
			ModelRouting map[string]string `json:"model_routing"`
		}
		if err := decodeJSON(r, &body); err != nil {
			writeError(w, err)
			return
		}
		snap, err := s.settings.Apply(llmsettings.Update{
			BaseURL:      body.BaseURL,
			APIKey:       body.APIKey,
			ClearAPIKey:  body.ClearAPIKey,
			Models:       body.Models,
			ModelRouting: body.ModelRouting,
		})
		if err != nil {
			writeError(w, err)
			return
		}
		writeOK(w, snap.Public())
	default:
		writeError(w, apperrors.ValidationErrorf("method %s not allowed on /llm/config", r.Method))
	}
}

func (s *Server) handleModels(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, apperrors.ValidationErrorf("method %s not allowed on /llm/models", r.Method))
		return
	}
	writeOK(w, s.settings.Public().Models)
}

func (s *Server) handleUsage(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, apperrors.ValidationErrorf("method %s not allowed on /llm/usage", r.Method))
		return
	}
	limit := defaultUsageLimit
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil {
			writeError(w, apperrors.ValidationErrorf("invalid limit %q", raw))
			return
		}
		limit = n
	}
	if limit < 1 {
		limit = 1
	}
	if limit > maxUsageLimit {
		limit = maxUsageLimit
	}
	writeOK(w, llmusage.Load(s.usageRoot, limit))
}

func (s *Server) handleStages(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, apperrors.ValidationErrorf("method %s not allowed on /llm/stages", r.Method))
		return
	}
	writeOK(w, llmsettings.StageDefinitions)
}

func (s *Server) handlePresets(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, apperrors.ValidationErrorf("method %s not allowed on /llm/presets", r.Method))
		return
	}
	writeOK(w, llmsettings.RoutingPresets)
}

func (s *Server) handleRouting(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, apperrors.ValidationErrorf("method %s not allowed on /llm/routing", r.Method))
		return
	}
	var body struct {
		Preset string `json:"preset"`
	}
	if err := decodeJSON(r, &body); err != nil {
		writeError(w, err)
		return
	}
	if body.Preset == "" {
		writeError(w, apperrors.ValidationErrorf("preset is required"))
		return
	}
	snap, err := s.settings.ApplyPreset(body.Preset)
	if err != nil {
		writeError(w, err)
		return
	}
	writeOK(w, snap.Public())
}

// handleSimulationStats serves GET /simulations/{id}/stats, exposing
// component C7's registry for operational visibility (spec.md §4.7).
func (s *Server) handleSimulationStats(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet || s.registry == nil {
		writeError(w, apperrors.ValidationErrorf("method %s not allowed", r.Method))
		return
	}
	writeOK(w, s.registry.AllStats())
}
