package updater

import "time"

// Config tunes one Updater's batching/retry/pacing behavior (spec.md
// §4.6, constants recovered from the original implementation).
type Config struct {
	BatchSize       int
	ProcessInterval time.Duration
	MaxRetries      int
	RetryDelay      time.Duration
	QueueGetTimeout time.Duration
	StopJoinTimeout time.Duration

	RelationSimilarityThreshold float64
	DuplicateFactThreshold      float64

	// Platforms seeds the per-platform buffer map; additional platforms
	// are created lazily on first activity (spec.md §4.6 "extensible").
	Platforms []string
}

// DefaultConfig mirrors internal/config.Default().Updater's constants.
func DefaultConfig() Config {
	return Config{
		BatchSize:                   5,
		ProcessInterval:             500 * time.Millisecond,
		MaxRetries:                  3,
		RetryDelay:                  2 * time.Second,
		QueueGetTimeout:             1 * time.Second,
		StopJoinTimeout:             10 * time.Second,
		RelationSimilarityThreshold: 0.8,
		DuplicateFactThreshold:      0.75,
		Platforms:                   []string{"twitter", "reddit"},
	}
}
