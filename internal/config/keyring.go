package config

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/zalando/go-keyring"
)

const (
	// KeyringService is the service name in the OS keychain
	KeyringService = "graphmemd"

	// KeyringAPIKeyItem is the key for the LLM API key
	KeyringAPIKeyItem = "llm-api-key"

	// KeyringNeo4jPasswordItem is the key for the Neo4j password
	KeyringNeo4jPasswordItem = "neo4j-password"
)

// KeyringManager handles secure credential storage in the OS keychain.
type KeyringManager struct {
	logger *slog.Logger
}

// NewKeyringManager creates a new keyring manager.
func NewKeyringManager() *KeyringManager {
	return &KeyringManager{
		logger: slog.Default().With("component", "keyring"),
	}
}

// SaveAPIKey stores the LLM API key securely in the OS keychain.
func (km *KeyringManager) SaveAPIKey(apiKey string) error {
	if apiKey == "" {
		return fmt.Errorf("api key cannot be empty")
	}

	if err := keyring.Set(KeyringService, KeyringAPIKeyItem, apiKey); err != nil {
		km.logger.Error("failed to save API key to keychain", "error", err)
		return fmt.Errorf("failed to save to OS keychain: %w", err)
	}

	km.logger.Info("api key saved to keychain", "service", KeyringService)
	return nil
}

// GetAPIKey retrieves the LLM API key from the OS keychain.
func (km *KeyringManager) GetAPIKey() (string, error) {
	apiKey, err := keyring.Get(KeyringService, KeyringAPIKeyItem)
	if err == keyring.ErrNotFound {
		return "", nil
	}
	if err != nil {
		km.logger.Error("failed to get API key from keychain", "error", err)
		return "", fmt.Errorf("failed to read from OS keychain: %w", err)
	}

	km.logger.Debug("api key retrieved from keychain")
	return apiKey, nil
}

// DeleteAPIKey removes the LLM API key from the OS keychain.
func (km *KeyringManager) DeleteAPIKey() error {
	err := keyring.Delete(KeyringService, KeyringAPIKeyItem)
	if err == keyring.ErrNotFound {
		return nil
	}
	if err != nil {
		km.logger.Error("failed to delete API key from keychain", "error", err)
		return fmt.Errorf("failed to delete from OS keychain: %w", err)
	}

	km.logger.Info("api key deleted from keychain")
	return nil
}

// GetNeo4jPassword retrieves the Neo4j password from the OS keychain.
func (km *KeyringManager) GetNeo4jPassword() (string, error) {
	pw, err := keyring.Get(KeyringService, KeyringNeo4jPasswordItem)
	if err == keyring.ErrNotFound {
		return "", nil
	}
	if err != nil {
		km.logger.Error("failed to get neo4j password from keychain", "error", err)
		return "", fmt.Errorf("failed to read from OS keychain: %w", err)
	}
	return pw, nil
}

// SaveNeo4jPassword stores the Neo4j password in the OS keychain.
func (km *KeyringManager) SaveNeo4jPassword(password string) error {
	if password == "" {
		return fmt.Errorf("password cannot be empty")
	}
	if err := keyring.Set(KeyringService, KeyringNeo4jPasswordItem, password); err != nil {
		return fmt.Errorf("failed to save to OS keychain: %w", err)
	}
	return nil
}

// IsAvailable checks if the OS keychain is reachable. Returns false on
// headless systems (CI/CD) where no keychain backend is present.
func (km *KeyringManager) IsAvailable() bool {
	_, err := keyring.Get(KeyringService, "test-availability")
	if err == keyring.ErrNotFound {
		return true
	}
	if err != nil {
		km.logger.Debug("keychain not available", "error", err)
		return false
	}
	return true
}

// KeySourceInfo describes where a secret is currently sourced from.
type KeySourceInfo struct {
	Source      string // "keychain", "config", "env", "env_file", "none"
	Secure      bool
	Recommended string
}

// GetAPIKeySource determines where the LLM API key is coming from.
func (km *KeyringManager) GetAPIKeySource(cfg *Config) KeySourceInfo {
	if os.Getenv("LLM_API_KEY") != "" {
		return KeySourceInfo{Source: "env", Secure: true, Recommended: "using environment variable"}
	}

	if keychainKey, _ := km.GetAPIKey(); keychainKey != "" {
		return KeySourceInfo{Source: "keychain", Secure: true, Recommended: "stored in OS keychain"}
	}

	if cfg.LLM.APIKey != "" {
		return KeySourceInfo{Source: "config", Secure: false, Recommended: "plaintext config storage; consider the keychain"}
	}

	if _, err := os.Stat(".env"); err == nil {
		return KeySourceInfo{Source: "env_file", Secure: false, Recommended: "using .env file"}
	}

	return KeySourceInfo{Source: "none", Secure: false, Recommended: "no LLM API key configured"}
}

// MaskAPIKey masks an API key for display: "sk-proj...abc123".
func MaskAPIKey(apiKey string) string {
	if apiKey == "" {
		return "(not set)"
	}
	if len(apiKey) < 12 {
		return "***"
	}
	return fmt.Sprintf("%s...%s", apiKey[:7], apiKey[len(apiKey)-4:])
}
