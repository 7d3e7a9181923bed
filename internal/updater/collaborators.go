package updater

import (
	"context"

	"github.com/mirofish/graphmemd/internal/extractor"
	"github.com/mirofish/graphmemd/internal/invalidator"
	"github.com/mirofish/graphmemd/internal/resolution"
)

// ExtractorClient is the slice of internal/extractor.Extractor the
// updater needs (component C3).
type ExtractorClient interface {
	Extract(ctx context.Context, text string, ont extractor.Ontology) (extractor.Result, error)
}

// ResolverClient is the slice of internal/resolution.Resolver the
// updater needs (component C4).
type ResolverClient interface {
	ClearCache()
	Resolve(ctx context.Context, graphID, projectID, name, entityType, summary, episodeText string) (resolution.ResolvedEntity, error)
	FindExisting(ctx context.Context, graphID, name, entityType string) (string, bool, error)
}

// InvalidatorClient is the slice of internal/invalidator.Detector the
// updater needs (component C5).
type InvalidatorClient interface {
	DetectContradictions(ctx context.Context, newEdge invalidator.Edge, existingEdges []invalidator.Edge) []string
}

// DLQSink is the slice of internal/dlq.Queue the updater needs to
// record a batch that exhausted its retries instead of losing it.
type DLQSink interface {
	Enqueue(ctx context.Context, graphID, episodeID, platform string, payload map[string]any, batchErr error) error
}
