package updater

// Stats is get_stats()'s snapshot shape (spec.md §4.6 "get_stats").
type Stats struct {
	GraphID         string         `json:"graph_id"`
	State           string         `json:"state"`
	Running         bool           `json:"running"`
	TotalActivities int            `json:"total_activities"`
	TotalProcessed  int            `json:"total_processed"`
	TotalEntities   int            `json:"total_entities"`
	TotalRelations  int            `json:"total_relations"`
	FailedCount     int            `json:"failed_count"`
	SkippedCount    int            `json:"skipped_count"`
	QueueDepth      int            `json:"queue_depth"`
	BufferSizes     map[string]int `json:"buffer_sizes"`
}
