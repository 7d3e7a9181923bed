package updater

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/mirofish/graphmemd/internal/extractor"
	apperrors "github.com/mirofish/graphmemd/internal/errors"
	"github.com/mirofish/graphmemd/internal/graphstore"
	"github.com/mirofish/graphmemd/internal/invalidator"
	"github.com/mirofish/graphmemd/internal/resolution"
)

// Updater owns one graph's ingestion pipeline: an unbounded activity
// queue, per-platform batching, and the extract→resolve→invalidate→
// store write-through (spec.md §4.6, component C6).
//
// One Updater per graph_id; internal/registry is responsible for
// lifecycle (spec.md §9 "no process-wide singleton").
type Updater struct {
	graphID   string
	projectID string
	ontology  extractor.Ontology

	store       graphstore.Store
	extractor   ExtractorClient
	resolver    ResolverClient
	invalidator InvalidatorClient
	dlq         DLQSink

	cfg    Config
	logger *slog.Logger

	queueMu sync.Mutex
	queue   []Activity
	notify  chan struct{}

	buffers map[string][]Activity

	stateMu sync.Mutex
	state   State

	stopCh chan struct{}
	wg     sync.WaitGroup

	statsMu         sync.Mutex
	totalActivities int
	totalProcessed  int
	totalEntities   int
	totalRelations  int
	failedCount     int
	skippedCount    int
}

// NewUpdater constructs an Updater in the Created state. A zero-value
// ontology falls back to extractor.DefaultOntology (spec.md §4.6 "loads
// the graph's ontology, falling back to a built-in default if absent").
func NewUpdater(
	graphID, projectID string,
	store graphstore.Store,
	ext ExtractorClient,
	res ResolverClient,
	inv InvalidatorClient,
	ontology extractor.Ontology,
	cfg Config,
	logger *slog.Logger,
) *Updater {
	if len(ontology.EntityTypes) == 0 && len(ontology.EdgeTypes) == 0 {
		ontology = extractor.DefaultOntology
	}
	if logger == nil {
		logger = slog.Default()
	}
	u := &Updater{
		graphID:     graphID,
		projectID:   projectID,
		ontology:    ontology,
		store:       store,
		extractor:   ext,
		resolver:    res,
		invalidator: inv,
		cfg:         cfg,
		logger:      logger.With("graph_id", graphID),
		notify:      make(chan struct{}, 1),
		buffers:     make(map[string][]Activity),
		state:       StateCreated,
	}
	for _, p := range cfg.Platforms {
		u.buffers[p] = nil
	}
	return u
}

// SetDLQSink wires a durable ledger for batches that exhaust retries.
// Optional — without one, an exhausted batch is dropped after logging.
func (u *Updater) SetDLQSink(sink DLQSink) {
	u.dlq = sink
}

func (u *Updater) getState() State {
	u.stateMu.Lock()
	defer u.stateMu.Unlock()
	return u.state
}

func (u *Updater) setState(s State) {
	u.stateMu.Lock()
	u.state = s
	u.stateMu.Unlock()
}

// Start transitions Created→Running and spawns the worker goroutine.
// Starting twice is a no-op error (spec.md §4.6.4).
func (u *Updater) Start(ctx context.Context) error {
	if u.getState() != StateCreated {
		return apperrors.ValidationErrorf("updater for graph %s already started", u.graphID)
	}
	u.setState(StateRunning)
	u.stopCh = make(chan struct{})
	u.wg.Add(1)
	go u.loop(ctx)
	u.logger.Info("updater started")
	return nil
}

// Stop drains the queue and per-platform buffers before transitioning
// to Stopped (spec.md §4.6.4 "flush-on-stop"). Safe to call more than
// once; subsequent calls are no-ops.
func (u *Updater) Stop(ctx context.Context) error {
	state := u.getState()
	if state == StateStopped {
		return nil
	}
	if state == StateCreated {
		u.setState(StateStopped)
		return nil
	}
	u.setState(StateDraining)
	close(u.stopCh)

	done := make(chan struct{})
	go func() {
		u.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(u.cfg.StopJoinTimeout):
		u.logger.Warn("updater stop timed out waiting for worker to drain")
	case <-ctx.Done():
	}

	u.setState(StateStopped)
	u.logger.Info("updater stopped")
	return nil
}

// AddActivity enqueues one activity. Returns an error once the updater
// has stopped (spec.md §4.6 "add_activity"). A DO_NOTHING action is
// skipped and counted instead of enqueued, so total_activities excludes
// it (spec.md §4.6 P3).
func (u *Updater) AddActivity(a Activity) error {
	if u.getState() == StateStopped {
		return apperrors.ValidationErrorf("updater for graph %s is stopped", u.graphID)
	}
	if a.ActionType == doNothingActionType {
		u.statsMu.Lock()
		u.skippedCount++
		u.statsMu.Unlock()
		return nil
	}
	u.queueMu.Lock()
	u.queue = append(u.queue, a)
	u.queueMu.Unlock()
	select {
	case u.notify <- struct{}{}:
	default:
	}
	u.statsMu.Lock()
	u.totalActivities++
	u.statsMu.Unlock()
	return nil
}

// AddActivityFromDict parses a loosely-typed record and enqueues it.
// Meta-events (records carrying "event_type") are silently ignored
// (spec.md §6 "Activity record").
func (u *Updater) AddActivityFromDict(record map[string]any, platform string) error {
	a, ok := FromDict(record, platform)
	if !ok {
		return nil
	}
	return u.AddActivity(a)
}

// GetStats returns a point-in-time snapshot (spec.md §4.6 "get_stats").
func (u *Updater) GetStats() Stats {
	u.queueMu.Lock()
	queueDepth := len(u.queue)
	bufferSizes := make(map[string]int, len(u.buffers))
	for platform, buf := range u.buffers {
		bufferSizes[platform] = len(buf)
	}
	u.queueMu.Unlock()

	u.statsMu.Lock()
	defer u.statsMu.Unlock()
	state := u.getState()
	return Stats{
		GraphID:         u.graphID,
		State:           state.String(),
		Running:         state == StateRunning,
		TotalActivities: u.totalActivities,
		TotalProcessed:  u.totalProcessed,
		TotalEntities:   u.totalEntities,
		TotalRelations:  u.totalRelations,
		FailedCount:     u.failedCount,
		SkippedCount:    u.skippedCount,
		QueueDepth:      queueDepth,
		BufferSizes:     bufferSizes,
	}
}

func (u *Updater) tryDequeue() (Activity, bool) {
	u.queueMu.Lock()
	defer u.queueMu.Unlock()
	if len(u.queue) == 0 {
		return Activity{}, false
	}
	a := u.queue[0]
	u.queue = u.queue[1:]
	return a, true
}

func (u *Updater) dequeueWithTimeout(ctx context.Context) (Activity, bool) {
	if a, ok := u.tryDequeue(); ok {
		return a, true
	}
	select {
	case <-u.notify:
		return u.tryDequeue()
	case <-time.After(u.cfg.QueueGetTimeout):
		return Activity{}, false
	case <-ctx.Done():
		return Activity{}, false
	case <-u.stopCh:
		return u.tryDequeue()
	}
}

// loop is the single long-lived worker: dequeue with timeout, buffer
// per platform, flush a platform's buffer once it reaches BatchSize,
// and fully drain on stop (spec.md §4.6.1).
func (u *Updater) loop(ctx context.Context) {
	defer u.wg.Done()
	for {
		select {
		case <-u.stopCh:
			u.flushAll(ctx)
			return
		default:
		}

		a, ok := u.dequeueWithTimeout(ctx)
		if ctx.Err() != nil {
			u.flushAll(ctx)
			return
		}
		if !ok {
			if u.getState() == StateDraining {
				u.flushAll(ctx)
				return
			}
			continue
		}

		u.buffers[a.Platform] = append(u.buffers[a.Platform], a)
		if len(u.buffers[a.Platform]) >= u.cfg.BatchSize {
			batch := u.buffers[a.Platform]
			u.buffers[a.Platform] = nil
			u.processBatchWithRetry(ctx, a.Platform, batch)
			select {
			case <-time.After(u.cfg.ProcessInterval):
			case <-ctx.Done():
			case <-u.stopCh:
			}
		}
	}
}

func (u *Updater) flushAll(ctx context.Context) {
	for platform, batch := range u.buffers {
		if len(batch) == 0 {
			continue
		}
		u.buffers[platform] = nil
		u.processBatchWithRetry(ctx, platform, batch)
	}
	u.queueMu.Lock()
	remaining := u.queue
	u.queue = nil
	u.queueMu.Unlock()
	byPlatform := make(map[string][]Activity)
	for _, a := range remaining {
		byPlatform[a.Platform] = append(byPlatform[a.Platform], a)
	}
	for platform, batch := range byPlatform {
		u.processBatchWithRetry(ctx, platform, batch)
	}
}

// processBatchWithRetry implements the retry/backoff loop around
// processBatch (spec.md §4.6.1 "Failure semantics"). A batch that
// exhausts MaxRetries is dropped and counted as failed, never blocking
// the queue indefinitely.
func (u *Updater) processBatchWithRetry(ctx context.Context, platform string, batch []Activity) {
	episodeID := graphstore.NewEpisodeID()
	var lastErr error
	for attempt := 0; attempt <= u.cfg.MaxRetries; attempt++ {
		if attempt > 0 {
			select {
			case <-time.After(u.cfg.RetryDelay):
			case <-ctx.Done():
				return
			}
		}
		err := u.processBatch(ctx, episodeID, batch)
		if err == nil {
			u.statsMu.Lock()
			u.totalProcessed += len(batch)
			u.statsMu.Unlock()
			return
		}
		lastErr = err
		u.logger.Warn("batch processing attempt failed",
			"platform", platform, "episode_id", episodeID, "attempt", attempt, "error", lastErr)
	}
	u.statsMu.Lock()
	u.failedCount += len(batch)
	u.statsMu.Unlock()
	u.logger.Error("batch processing exhausted retries, dropping batch",
		"platform", platform, "episode_id", episodeID, "size", len(batch), "error", lastErr)

	if u.dlq != nil {
		payload := map[string]any{
			"lines": renderLines(batch),
		}
		if dlqErr := u.dlq.Enqueue(ctx, u.graphID, episodeID, platform, payload, lastErr); dlqErr != nil {
			u.logger.Error("failed to record exhausted batch in DLQ",
				"platform", platform, "episode_id", episodeID, "error", dlqErr)
		}
	}
}

func renderLines(batch []Activity) []string {
	lines := make([]string, 0, len(batch))
	for _, a := range batch {
		lines = append(lines, a.renderLine())
	}
	return lines
}

// processBatch extracts entities and relations from one episode,
// resolves entities, detects and applies contradictions, and writes
// everything through the store (spec.md §4.6.1-4.6.3). episodeID is
// generated once per batch by the caller so a retried attempt reuses
// the same episode identity.
func (u *Updater) processBatch(ctx context.Context, episodeID string, batch []Activity) error {
	episodeText := strings.Join(renderLines(batch), "\n")

	result, err := u.extractor.Extract(ctx, episodeText, u.ontology)
	if err != nil {
		return fmt.Errorf("extract: %w", err)
	}

	entityUUIDMap, newEntities, updates, err := u.processEntities(ctx, result.Entities, episodeText)
	if err != nil {
		return fmt.Errorf("process entities: %w", err)
	}
	if len(newEntities) > 0 {
		if err := u.store.UpsertEntities(ctx, newEntities); err != nil {
			return fmt.Errorf("upsert entities: %w", err)
		}
	}
	for _, upd := range updates {
		if err := u.store.UpdateEntitySummary(ctx, u.graphID, upd.UUID, upd.Summary, upd.AppendSourceTypes); err != nil {
			return fmt.Errorf("update entity summary: %w", err)
		}
	}

	newRelations, invalidated, duplicateEpisodeTargets, err := u.processRelations(ctx, result.Relations, entityUUIDMap, episodeID)
	if err != nil {
		return fmt.Errorf("process relations: %w", err)
	}
	for _, relUUID := range invalidated {
		if err := u.store.InvalidateEdge(ctx, u.graphID, relUUID, time.Now().UTC()); err != nil {
			return fmt.Errorf("invalidate edge: %w", err)
		}
	}
	if len(newRelations) > 0 {
		if err := u.store.UpsertRelations(ctx, newRelations); err != nil {
			return fmt.Errorf("upsert relations: %w", err)
		}
		u.statsMu.Lock()
		u.totalRelations += len(newRelations)
		u.statsMu.Unlock()
	}
	if len(duplicateEpisodeTargets) > 0 {
		if err := u.store.AddEpisodeToEdges(ctx, u.graphID, duplicateEpisodeTargets, episodeID); err != nil {
			return fmt.Errorf("add episode to edges: %w", err)
		}
	}

	return nil
}

// processEntities resolves every extracted entity against the graph
// and splits the result into new-entity upserts and summary updates
// (spec.md §4.6.2). entityUUIDMap is keyed by both the raw extracted
// name and its normalized form, since relation endpoints reference
// entities by raw name.
func (u *Updater) processEntities(ctx context.Context, entities []extractor.ExtractedEntity, episodeText string) (map[string]string, []graphstore.Entity, []graphstore.EntityUpdate, error) {
	entityUUIDMap := make(map[string]string, len(entities)*2)
	var newEntities []graphstore.Entity
	var updates []graphstore.EntityUpdate

	for _, e := range entities {
		resolved, err := u.resolver.Resolve(ctx, u.graphID, u.projectID, e.Name, e.Type, e.Summary, episodeText)
		if err != nil {
			return nil, nil, nil, err
		}
		entityUUIDMap[e.Name] = resolved.UUID
		entityUUIDMap[resolution.Normalize(e.Name)] = resolved.UUID

		if resolved.IsNew {
			newEntities = append(newEntities, graphstore.Entity{
				UUID:              resolved.UUID,
				ProjectID:         u.projectID,
				GraphID:           u.graphID,
				Name:              resolved.Name,
				EntityType:        resolved.EntityType,
				Summary:           e.Summary,
				Attributes:        e.Attributes,
				SourceEntityTypes: []string{e.Type},
				CreatedAt:         time.Now().UTC(),
			})
			u.statsMu.Lock()
			u.totalEntities++
			u.statsMu.Unlock()
		} else if resolved.ShouldUpdateSummary {
			summary := e.Summary
			updates = append(updates, graphstore.EntityUpdate{
				UUID:              resolved.UUID,
				Summary:           &summary,
				AppendSourceTypes: []string{e.Type},
			})
		}
	}
	return entityUUIDMap, newEntities, updates, nil
}

// processRelations resolves each extracted relation's endpoints,
// applies the duplicate-fact guard, runs contradiction detection, and
// returns the new relations to insert, the existing relation UUIDs to
// invalidate, and the existing relation UUIDs that should instead just
// gain this episode (spec.md §4.6.3).
func (u *Updater) processRelations(
	ctx context.Context,
	relations []extractor.ExtractedRelation,
	entityUUIDMap map[string]string,
	episodeID string,
) ([]graphstore.Relation, []string, []string, error) {
	var newRelations []graphstore.Relation
	var invalidated []string
	var duplicateTargets []string

	for _, r := range relations {
		sourceUUID, ok := u.lookupEntityUUID(ctx, entityUUIDMap, r.Source, r.SourceType)
		if !ok {
			u.statsMu.Lock()
			u.skippedCount++
			u.statsMu.Unlock()
			continue
		}
		targetUUID, ok := u.lookupEntityUUID(ctx, entityUUIDMap, r.Target, r.TargetType)
		if !ok {
			u.statsMu.Lock()
			u.skippedCount++
			u.statsMu.Unlock()
			continue
		}

		existing, err := u.store.GetEdgesBetweenEntities(ctx, u.graphID, sourceUUID, targetUUID, false)
		if err != nil {
			return nil, nil, nil, err
		}

		if dupUUID, isDup := u.findDuplicate(r, existing); isDup {
			duplicateTargets = append(duplicateTargets, dupUUID)
			u.statsMu.Lock()
			u.skippedCount++
			u.statsMu.Unlock()
			continue
		}

		newEdge := invalidator.Edge{
			SourceName:   r.Source,
			TargetName:   r.Target,
			RelationName: r.Relation,
			Fact:         r.Fact,
		}
		existingEdges := make([]invalidator.Edge, 0, len(existing))
		for _, rel := range existing {
			existingEdges = append(existingEdges, invalidator.Edge{
				UUID:         rel.UUID,
				SourceName:   r.Source,
				TargetName:   r.Target,
				RelationName: rel.Name,
				Fact:         rel.Fact,
			})
		}
		invalidated = append(invalidated, u.invalidator.DetectContradictions(ctx, newEdge, existingEdges)...)

		now := time.Now().UTC()
		newRelations = append(newRelations, graphstore.Relation{
			UUID:       graphstore.NewRelationUUID(),
			ProjectID:  u.projectID,
			GraphID:    u.graphID,
			SourceUUID: sourceUUID,
			TargetUUID: targetUUID,
			Name:       r.Relation,
			Fact:       r.Fact,
			FactType:   r.Relation,
			Attributes: r.Attributes,
			CreatedAt:  now,
			ValidAt:    now,
			Episodes:   []string{episodeID},
		})
	}
	return newRelations, invalidated, duplicateTargets, nil
}

// lookupEntityUUID checks the in-batch map first (entities just
// resolved in this same episode), then falls back to a deterministic
// lookup against already-stored entities (spec.md §4.6.3 "a relation
// may reference an entity resolved earlier in the same batch, or one
// already in the graph").
func (u *Updater) lookupEntityUUID(ctx context.Context, entityUUIDMap map[string]string, name, entityType string) (string, bool) {
	if uuid, ok := entityUUIDMap[name]; ok {
		return uuid, true
	}
	if uuid, ok := entityUUIDMap[resolution.Normalize(name)]; ok {
		return uuid, true
	}
	uuid, found, err := u.resolver.FindExisting(ctx, u.graphID, name, entityType)
	if err != nil || !found {
		return "", false
	}
	return uuid, true
}

// findDuplicate reports whether an extracted relation restates an
// already-active edge closely enough to skip re-creating it (spec.md
// I-property "do not duplicate near-identical facts").
func (u *Updater) findDuplicate(r extractor.ExtractedRelation, existing []graphstore.Relation) (string, bool) {
	for _, rel := range existing {
		if !rel.Active() {
			continue
		}
		if resolution.SeqRatio(resolution.Normalize(r.Relation), resolution.Normalize(rel.Name)) < u.cfg.RelationSimilarityThreshold {
			continue
		}
		if resolution.SeqRatio(resolution.Normalize(r.Fact), resolution.Normalize(rel.Fact)) >= u.cfg.DuplicateFactThreshold {
			return rel.UUID, true
		}
	}
	return "", false
}
