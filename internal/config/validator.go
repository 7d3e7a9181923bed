package config

import (
	"fmt"
	"net/url"
	"strings"

	"github.com/mirofish/graphmemd/internal/errors"
)

// ValidationContext specifies what configuration is required for a subcommand.
type ValidationContext string

const (
	// ValidationContextServe - serve requires Neo4j and an LLM API key.
	ValidationContextServe ValidationContext = "serve"
	// ValidationContextMigrate - migrate only needs to reach Neo4j.
	ValidationContextMigrate ValidationContext = "migrate"
	// ValidationContextAll - validate everything the service can use.
	ValidationContextAll ValidationContext = "all"
)

// ValidationResult holds validation results.
type ValidationResult struct {
	Valid    bool
	Errors   []string
	Warnings []string
}

// AddError adds an error to the validation result.
func (vr *ValidationResult) AddError(format string, args ...interface{}) {
	vr.Valid = false
	vr.Errors = append(vr.Errors, fmt.Sprintf(format, args...))
}

// AddWarning adds a warning to the validation result.
func (vr *ValidationResult) AddWarning(format string, args ...interface{}) {
	vr.Warnings = append(vr.Warnings, fmt.Sprintf(format, args...))
}

// HasErrors returns true if there are any errors.
func (vr *ValidationResult) HasErrors() bool {
	return !vr.Valid || len(vr.Errors) > 0
}

// Error returns a formatted error message.
func (vr *ValidationResult) Error() string {
	if !vr.HasErrors() {
		return ""
	}

	var sb strings.Builder
	sb.WriteString("Configuration validation failed:\n")
	for _, err := range vr.Errors {
		sb.WriteString(fmt.Sprintf("  - %s\n", err))
	}

	if len(vr.Warnings) > 0 {
		sb.WriteString("\nWarnings:\n")
		for _, warn := range vr.Warnings {
			sb.WriteString(fmt.Sprintf("  - %s\n", warn))
		}
	}

	return sb.String()
}

// Validate validates configuration for the given context.
func (c *Config) Validate(ctx ValidationContext) *ValidationResult {
	result := &ValidationResult{Valid: true}

	switch ctx {
	case ValidationContextServe:
		c.validateNeo4j(result, true)
		c.validateLLM(result, true)
		c.validateUpdater(result)
	case ValidationContextMigrate:
		c.validateNeo4j(result, true)
	case ValidationContextAll:
		c.validateNeo4j(result, true)
		c.validateLLM(result, true)
		c.validateUpdater(result)
	}

	return result
}

// ValidateOrFatal validates configuration and panics with a config error if invalid.
func (c *Config) ValidateOrFatal(ctx ValidationContext) {
	result := c.Validate(ctx)
	if result.HasErrors() {
		fmt.Println(result.Error())
		panic(errors.ConfigError(result.Error()))
	}

	if len(result.Warnings) > 0 {
		fmt.Println("Configuration warnings:")
		for _, warn := range result.Warnings {
			fmt.Printf("  - %s\n", warn)
		}
	}
}

func (c *Config) validateNeo4j(result *ValidationResult, required bool) {
	if c.Neo4j.URI == "" {
		if required {
			result.AddError("NEO4J_URI is required but not set")
		} else {
			result.AddWarning("NEO4J_URI is not set")
		}
	} else if _, err := url.Parse(c.Neo4j.URI); err != nil {
		result.AddError("NEO4J_URI is invalid: %v", err)
	}

	if c.Neo4j.User == "" {
		if required {
			result.AddError("NEO4J_USER is required but not set")
		} else {
			result.AddWarning("NEO4J_USER is not set")
		}
	}

	if c.Neo4j.Password == "" {
		if required {
			result.AddError("NEO4J_PASSWORD is required but not set. Set it via environment variable, OS keychain, or .env file.")
		} else {
			result.AddWarning("NEO4J_PASSWORD is not set")
		}
	} else {
		insecure := []string{"password", "neo4j", "changeme"}
		for _, p := range insecure {
			if c.Neo4j.Password == p {
				result.AddWarning("NEO4J_PASSWORD is set to a common default (%s); consider rotating it", p)
			}
		}
	}

	if c.Neo4j.Database == "" {
		result.AddWarning("NEO4J_DATABASE is not set, will use 'neo4j' as default")
	}
}

func (c *Config) validateLLM(result *ValidationResult, required bool) {
	if c.LLM.APIKey == "" {
		if required {
			result.AddError("LLM_API_KEY is required but not set. Set it via environment variable or OS keychain.")
		} else {
			result.AddWarning("LLM_API_KEY is not set. Entity extraction and resolution will fail.")
		}
	}

	if c.LLM.Model == "" {
		result.AddWarning("LLM model is not set, will use default")
	}

	if c.LLM.BaseURL != "" {
		if _, err := url.Parse(c.LLM.BaseURL); err != nil {
			result.AddError("LLM_BASE_URL is invalid: %v", err)
		}
	}
}

func (c *Config) validateUpdater(result *ValidationResult) {
	if c.Updater.BatchSize <= 0 {
		result.AddWarning("updater batch size is not positive, will use default (5)")
	}
	if c.Updater.FuzzyMatchThreshold <= 0 || c.Updater.FuzzyMatchThreshold > 1 {
		result.AddError("fuzzy_match_threshold must be in (0,1], got %.2f", c.Updater.FuzzyMatchThreshold)
	}
	if c.Updater.LLMDisambiguationMin < 0 || c.Updater.LLMDisambiguationMin >= c.Updater.FuzzyMatchThreshold {
		result.AddError("llm_disambiguation_min must be in [0, fuzzy_match_threshold), got %.2f", c.Updater.LLMDisambiguationMin)
	}
}

// RequireNeo4j checks if Neo4j configuration is valid and returns error if not.
func (c *Config) RequireNeo4j() error {
	result := &ValidationResult{Valid: true}
	c.validateNeo4j(result, true)

	if result.HasErrors() {
		return errors.ConfigError(result.Error())
	}

	return nil
}

// RequireLLM checks if LLM configuration is valid and returns error if not.
func (c *Config) RequireLLM() error {
	result := &ValidationResult{Valid: true}
	c.validateLLM(result, true)

	if result.HasErrors() {
		return errors.ConfigError(result.Error())
	}

	return nil
}
