package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Config holds all configuration for the graph memory updater service.
type Config struct {
	// Neo4j graph store connection.
	Neo4j Neo4jConfig `yaml:"neo4j"`

	// Bootstrap LLM credentials/model; the live, editable settings are
	// owned by internal/llmsettings and may override these at runtime.
	LLM LLMBootstrapConfig `yaml:"llm"`

	// HTTP surface (the non-core collaborator described in spec §6).
	HTTP HTTPConfig `yaml:"http"`

	// Updater tuning (batch size, retry policy, pacing).
	Updater UpdaterConfig `yaml:"updater"`
}

type Neo4jConfig struct {
	URI      string `yaml:"uri"`
	User     string `yaml:"user"`
	Password string `yaml:"password"`
	Database string `yaml:"database"`
}

type LLMBootstrapConfig struct {
	BaseURL      string `yaml:"base_url"`
	APIKey       string `yaml:"api_key"`
	Model        string `yaml:"model"`
	SettingsFile string `yaml:"settings_file"` // overrides resolveLLMSettingsPath search order
}

type HTTPConfig struct {
	ListenAddr string `yaml:"listen_addr"`
}

type UpdaterConfig struct {
	BatchSize       int           `yaml:"batch_size"`
	ProcessInterval time.Duration `yaml:"process_interval"`
	MaxRetries      int           `yaml:"max_retries"`
	RetryDelay      time.Duration `yaml:"retry_delay"`
	QueueGetTimeout time.Duration `yaml:"queue_get_timeout"`
	StopJoinTimeout time.Duration `yaml:"stop_join_timeout"`

	// Resolver tuning.
	MinNameLength        int     `yaml:"min_name_length"`
	FuzzyMatchThreshold  float64 `yaml:"fuzzy_match_threshold"`
	LLMDisambiguationMin float64 `yaml:"llm_disambiguation_min"` // lower bound of the mid-confidence band
	LLMDisambiguation    bool    `yaml:"llm_disambiguation_enabled"`

	// Relation duplicate guard.
	RelationSimilarityThreshold float64 `yaml:"relation_similarity_threshold"`
	DuplicateFactThreshold      float64 `yaml:"duplicate_fact_threshold"`
}

// Default returns default configuration matching the constants recovered
// from the original implementation (BATCH_SIZE=5, PROCESS_INTERVAL=0.5s,
// MAX_RETRIES=3, RETRY_DELAY=2s, FUZZY_MATCH_THRESHOLD=0.85, ...).
func Default() *Config {
	return &Config{
		Neo4j: Neo4jConfig{
			URI:      "bolt://localhost:7687",
			User:     "neo4j",
			Database: "neo4j",
		},
		LLM: LLMBootstrapConfig{
			BaseURL: "https://api.openai.com/v1",
			Model:   "gpt-4o-mini",
		},
		HTTP: HTTPConfig{
			ListenAddr: ":8088",
		},
		Updater: UpdaterConfig{
			BatchSize:                   5,
			ProcessInterval:             500 * time.Millisecond,
			MaxRetries:                  3,
			RetryDelay:                  2 * time.Second,
			QueueGetTimeout:             1 * time.Second,
			StopJoinTimeout:             10 * time.Second,
			MinNameLength:               2,
			FuzzyMatchThreshold:         0.85,
			LLMDisambiguationMin:        0.6,
			LLMDisambiguation:           true,
			RelationSimilarityThreshold: 0.8,
			DuplicateFactThreshold:      0.75,
		},
	}
}

// Load loads configuration from file, then layers environment variables
// on top, mirroring the teacher's viper+godotenv+env-override precedence.
func Load(path string) (*Config, error) {
	loadEnvFiles()

	v := viper.New()
	v.SetConfigType("yaml")

	cfg := Default()
	v.SetDefault("neo4j", cfg.Neo4j)
	v.SetDefault("llm", cfg.LLM)
	v.SetDefault("http", cfg.HTTP)
	v.SetDefault("updater", cfg.Updater)

	v.SetEnvPrefix("GRAPHMEMD")
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("config")
		v.AddConfigPath(".graphmemd")
		v.AddConfigPath(".")
		homeDir, _ := os.UserHomeDir()
		v.AddConfigPath(filepath.Join(homeDir, ".graphmemd"))
	}

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
	}

	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	applyEnvOverrides(cfg)

	return cfg, nil
}

func loadEnvFiles() {
	envFiles := []string{".env.local", ".env", ".env.example"}
	for _, file := range envFiles {
		if _, err := os.Stat(file); err == nil {
			if err := godotenv.Load(file); err == nil {
				continue
			}
		}
	}

	homeDir, _ := os.UserHomeDir()
	homeEnvFile := filepath.Join(homeDir, ".graphmemd", ".env")
	if _, err := os.Stat(homeEnvFile); err == nil {
		godotenv.Load(homeEnvFile)
	}
}

// applyEnvOverrides applies environment variable overrides.
// Precedence for secrets: env var (highest) > OS keychain > config file.
func applyEnvOverrides(cfg *Config) {
	if uri := os.Getenv("NEO4J_URI"); uri != "" {
		cfg.Neo4j.URI = uri
	}
	if user := os.Getenv("NEO4J_USER"); user != "" {
		cfg.Neo4j.User = user
	}
	if db := os.Getenv("NEO4J_DATABASE"); db != "" {
		cfg.Neo4j.Database = db
	}
	if pw := os.Getenv("NEO4J_PASSWORD"); pw != "" {
		cfg.Neo4j.Password = pw
	} else if cfg.Neo4j.Password == "" {
		km := NewKeyringManager()
		if km.IsAvailable() {
			if pw, err := km.GetNeo4jPassword(); err == nil && pw != "" {
				cfg.Neo4j.Password = pw
			}
		}
	}

	if key := os.Getenv("LLM_API_KEY"); key != "" {
		cfg.LLM.APIKey = key
	} else if cfg.LLM.APIKey == "" {
		km := NewKeyringManager()
		if km.IsAvailable() {
			if key, err := km.GetAPIKey(); err == nil && key != "" {
				cfg.LLM.APIKey = key
			}
		}
	}
	if baseURL := os.Getenv("LLM_BASE_URL"); baseURL != "" {
		cfg.LLM.BaseURL = baseURL
	}
	if model := os.Getenv("LLM_MODEL_NAME"); model != "" {
		cfg.LLM.Model = model
	}
	if settingsFile := os.Getenv("LLM_CONFIG_FILE"); settingsFile != "" {
		cfg.LLM.SettingsFile = settingsFile
	}

	if addr := os.Getenv("HTTP_LISTEN_ADDR"); addr != "" {
		cfg.HTTP.ListenAddr = addr
	}

	if batch := os.Getenv("UPDATER_BATCH_SIZE"); batch != "" {
		if n, err := strconv.Atoi(batch); err == nil {
			cfg.Updater.BatchSize = n
		}
	}
	if retries := os.Getenv("UPDATER_MAX_RETRIES"); retries != "" {
		if n, err := strconv.Atoi(retries); err == nil {
			cfg.Updater.MaxRetries = n
		}
	}
}

// expandPath expands ~ to home directory.
func expandPath(path string) string {
	if path == "" {
		return path
	}
	if path[0] == '~' {
		homeDir, _ := os.UserHomeDir()
		return filepath.Join(homeDir, path[1:])
	}
	return path
}

// Save saves configuration to file.
func (c *Config) Save(path string) error {
	v := viper.New()
	v.SetConfigType("yaml")

	v.Set("neo4j", c.Neo4j)
	v.Set("llm", c.LLM)
	v.Set("http", c.HTTP)
	v.Set("updater", c.Updater)

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	if err := v.WriteConfigAs(path); err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}

	return nil
}
