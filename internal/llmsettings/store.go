package llmsettings

import (
	"encoding/json"
	"os"
	"path/filepath"
	"sync/atomic"
	"time"

	bolt "go.etcd.io/bbolt"

	apperrors "github.com/mirofish/graphmemd/internal/errors"
	"github.com/mirofish/graphmemd/internal/llmrotation"
)

// Snapshot is the persisted, JSON-serializable shape of an LLM settings
// file (spec.md §6, llm_settings.py's LLMSettings dataclass).
type Snapshot struct {
	BaseURL      string            `json:"base_url"`
	APIKey       string            `json:"api_key"`
	Models       []string          `json:"models"`
	ModelRouting map[string]string `json:"model_routing"`
	UpdatedAt    string            `json:"updated_at,omitempty"`
	SourcePath   string            `json:"-"`
}

// PublicView is what GET /llm/config returns: the api_key is reduced to
// a presence flag and its last 4 characters (llm_settings.py's
// public_dict, never the raw secret).
type PublicView struct {
	BaseURL      string            `json:"base_url"`
	Models       []string          `json:"models"`
	ModelRouting map[string]string `json:"model_routing"`
	APIKeySet    bool              `json:"api_key_set"`
	APIKeyLast4  string            `json:"api_key_last4"`
	UpdatedAt    string            `json:"updated_at,omitempty"`
	SourcePath   string            `json:"source_path,omitempty"`
}

func (s Snapshot) Public() PublicView {
	last4 := ""
	if len(s.APIKey) >= 4 {
		last4 = s.APIKey[len(s.APIKey)-4:]
	} else if s.APIKey != "" {
		last4 = s.APIKey
	}
	return PublicView{
		BaseURL:      llmrotation.NormalizeBaseURL(s.BaseURL),
		Models:       s.Models,
		ModelRouting: s.ModelRouting,
		APIKeySet:    s.APIKey != "",
		APIKeyLast4:  last4,
		UpdatedAt:    s.UpdatedAt,
		SourcePath:   s.SourcePath,
	}
}

// toRotation converts to the snapshot internal/llmrotation.Client consumes.
func (s Snapshot) toRotation() llmrotation.Settings {
	return llmrotation.Settings{
		BaseURL:      s.BaseURL,
		APIKey:       s.APIKey,
		Models:       s.Models,
		ModelRouting: s.ModelRouting,
	}
}

const historyBucket = "settings_history"

// Store owns the on-disk settings file plus an optional bbolt history
// log. A Store implements llmrotation.SettingsSource: callers load a
// fresh atomic snapshot on every LLM call, so edits take effect
// immediately without restarting the process (spec.md §9 redesign note
// "Global mutable LLM settings -> per-call snapshot").
type Store struct {
	path    string
	history *bolt.DB // may be nil if history logging is disabled

	current atomic.Pointer[Snapshot]
}

// ResolvePath implements resolve_llm_settings_path(): an explicit env
// override wins, then an existing preferred path, then an existing
// legacy path, defaulting to the preferred path if neither exists yet.
func ResolvePath(explicit string) string {
	if explicit != "" {
		return explicit
	}
	if env := os.Getenv("LLM_CONFIG_FILE"); env != "" {
		return env
	}
	preferred := filepath.Join(".graphmemd-config", "llm.json")
	legacy := filepath.Join(".graphmemd", "uploads", "settings", "llm.json")
	if _, err := os.Stat(preferred); err == nil {
		return preferred
	}
	if _, err := os.Stat(legacy); err == nil {
		return legacy
	}
	return preferred
}

// NewStore loads (or initializes) the settings file at path and opens
// historyPath as a bbolt history log. historyPath == "" disables
// history logging.
func NewStore(path, historyPath string) (*Store, error) {
	st := &Store{path: path}

	snap, err := readSnapshot(path)
	if err != nil {
		return nil, err
	}
	st.current.Store(&snap)

	if historyPath != "" {
		if err := os.MkdirAll(filepath.Dir(historyPath), 0755); err != nil {
			return nil, apperrors.FileSystemError(err, "creating llm settings history directory")
		}
		db, err := bolt.Open(historyPath, 0600, &bolt.Options{Timeout: 2 * time.Second})
		if err != nil {
			return nil, apperrors.FileSystemError(err, "opening llm settings history store")
		}
		if err := db.Update(func(tx *bolt.Tx) error {
			_, err := tx.CreateBucketIfNotExists([]byte(historyBucket))
			return err
		}); err != nil {
			db.Close()
			return nil, apperrors.FileSystemError(err, "initializing llm settings history bucket")
		}
		st.history = db
	}

	return st, nil
}

func (s *Store) Close() error {
	if s.history != nil {
		return s.history.Close()
	}
	return nil
}

func readSnapshot(path string) (Snapshot, error) {
	snap := Snapshot{ModelRouting: map[string]string{}, SourcePath: path}
	b, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return snap, nil
		}
		return snap, apperrors.FileSystemError(err, "reading llm settings file")
	}
	if err := json.Unmarshal(b, &snap); err != nil {
		return Snapshot{ModelRouting: map[string]string{}, SourcePath: path}, nil
	}
	if snap.ModelRouting == nil {
		snap.ModelRouting = map[string]string{}
	}
	if len(snap.Models) > 10 {
		snap.Models = snap.Models[:10]
	}
	snap.SourcePath = path
	return snap, nil
}

// Load satisfies llmrotation.SettingsSource.
func (s *Store) Load() llmrotation.Settings {
	return s.current.Load().toRotation()
}

// Public returns the current settings with the API key redacted.
func (s *Store) Public() PublicView {
	return s.current.Load().Public()
}

// Update is a partial update: only non-nil fields are changed, mirroring
// save_llm_settings()'s merge semantics. A model_routing entry mapped to
// "" deletes that stage's override. clearAPIKey wipes the stored key
// even if apiKey is nil.
type Update struct {
	BaseURL       *string
	APIKey        *string
	ClearAPIKey   bool
	Models        []string
	ModelRouting  map[string]string
}

// Apply merges upd into the current snapshot, persists it atomically,
// records it in the history bucket, and swaps it in for subsequent
// Load() calls.
func (s *Store) Apply(upd Update) (Snapshot, error) {
	cur := *s.current.Load()

	next := cur
	if upd.BaseURL != nil {
		next.BaseURL = llmrotation.NormalizeBaseURL(*upd.BaseURL)
	}
	if upd.ClearAPIKey {
		next.APIKey = ""
	} else if upd.APIKey != nil {
		next.APIKey = *upd.APIKey
	}
	if upd.Models != nil {
		models := append([]string{}, upd.Models...)
		if len(models) > 10 {
			models = models[:10]
		}
		next.Models = models
	}
	if upd.ModelRouting != nil {
		routing := map[string]string{}
		for k, v := range cur.ModelRouting {
			routing[k] = v
		}
		for stage, model := range upd.ModelRouting {
			if model == "" {
				delete(routing, stage)
				continue
			}
			routing[stage] = model
		}
		next.ModelRouting = routing
	}
	next.UpdatedAt = time.Now().UTC().Format(time.RFC3339)
	next.SourcePath = s.path

	if err := atomicWriteJSON(s.path, next); err != nil {
		return Snapshot{}, err
	}
	s.recordHistory(next)
	s.current.Store(&next)
	return next, nil
}

// ApplyPreset merges a named routing preset's stage assignments on top
// of the current routing (llm_settings.py MODEL_ROUTING_PRESETS).
func (s *Store) ApplyPreset(name string) (Snapshot, error) {
	preset, ok := RoutingPresets[name]
	if !ok {
		return Snapshot{}, apperrors.ValidationErrorf("unknown routing preset %q", name)
	}
	return s.Apply(Update{ModelRouting: preset.Routing})
}

func atomicWriteJSON(path string, snap Snapshot) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return apperrors.FileSystemError(err, "creating llm settings directory")
	}
	b, err := json.MarshalIndent(snap, "", "  ")
	if err != nil {
		return apperrors.InternalErrorf("marshaling llm settings: %v", err)
	}
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, b, 0600); err != nil {
		return apperrors.FileSystemError(err, "writing llm settings tmp file")
	}
	if err := os.Rename(tmp, path); err != nil {
		return apperrors.FileSystemError(err, "renaming llm settings tmp file into place")
	}
	return nil
}

func (s *Store) recordHistory(snap Snapshot) {
	if s.history == nil {
		return
	}
	public := snap.Public()
	b, err := json.Marshal(public)
	if err != nil {
		return
	}
	_ = s.history.Update(func(tx *bolt.Tx) error {
		bkt := tx.Bucket([]byte(historyBucket))
		seq, _ := bkt.NextSequence()
		key := []byte(time.Now().UTC().Format(time.RFC3339Nano))
		_ = seq
		return bkt.Put(key, b)
	})
}

// History returns up to limit most recent public settings snapshots,
// most recent first.
func (s *Store) History(limit int) ([]PublicView, error) {
	if s.history == nil {
		return nil, nil
	}
	var out []PublicView
	err := s.history.View(func(tx *bolt.Tx) error {
		bkt := tx.Bucket([]byte(historyBucket))
		c := bkt.Cursor()
		for k, v := c.Last(); k != nil && (limit <= 0 || len(out) < limit); k, v = c.Prev() {
			var pv PublicView
			if err := json.Unmarshal(v, &pv); err == nil {
				out = append(out, pv)
			}
		}
		return nil
	})
	if err != nil {
		return nil, apperrors.FileSystemError(err, "reading llm settings history")
	}
	return out, nil
}
