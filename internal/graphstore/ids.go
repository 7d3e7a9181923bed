package graphstore

import (
	"crypto/sha1"
	"encoding/hex"
	"strings"

	"github.com/google/uuid"
)

// DeterministicEntityUUID derives an entity's primary key from
// (project_id, entity_type, normalized_name) so that re-ingesting the same
// canonical name is idempotent (spec.md §3 Invariant I1). The hash is a
// plain SHA-1 over a delimited key, formatted as a UUID so it drops into
// the same column as a random one.
func DeterministicEntityUUID(projectID, entityType, normalizedName string) string {
	h := sha1.New()
	h.Write([]byte(projectID))
	h.Write([]byte{0})
	h.Write([]byte(strings.ToLower(entityType)))
	h.Write([]byte{0})
	h.Write([]byte(normalizedName))
	sum := h.Sum(nil)

	var u uuid.UUID
	copy(u[:], sum[:16])
	// RFC 4122 version/variant bits, so it still reads as a valid UUID.
	u[6] = (u[6] & 0x0f) | 0x50 // version 5-shaped
	u[8] = (u[8] & 0x3f) | 0x80
	return u.String()
}

// NewRelationUUID returns a fresh, random relation id: "rel_" + 16 hex
// chars, per spec.md §4.6.3 step 7. Relations are NOT derived from their
// endpoints since multiple facts may exist between the same pair.
func NewRelationUUID() string {
	return "rel_" + randomHex16()
}

// NewEpisodeID returns a fresh episode id: "ep_" + 16 hex chars, per
// spec.md §4.6.1 step 2.
func NewEpisodeID() string {
	return "ep_" + randomHex16()
}

// NewGraphID returns a fresh graph id for CreateGraph.
func NewGraphID() string {
	return "graph_" + randomHex16()
}

func randomHex16() string {
	id := uuid.New()
	return hex.EncodeToString(id[:8])
}
