// Package updater implements component C6 (spec.md §4.6): the per-graph
// worker that ingests activities, batches them per platform, drives the
// extractor/resolver/invalidator pipeline, and writes through the graph
// store.
//
// Grounded in the teacher's internal/ingestion.Processor worker-pool
// idiom (sync.WaitGroup + channel fan-in), generalized from a one-shot
// parallel file-parse into a long-lived single-worker queue consumer
// with a cooperative stop signal.
package updater

import "time"

// Activity is one agent action emitted by the simulation driver — the
// unit of ingestion (spec.md §6 "Activity record").
type Activity struct {
	Platform     string
	AgentID      int
	AgentName    string
	ActionType   string
	ActionArgs   map[string]any
	Round        int
	Timestamp    time.Time
}

const doNothingActionType = "DO_NOTHING"

// FromDict builds an Activity from a loosely-typed record, mirroring
// add_activity_from_dict. A record carrying an "event_type" key is a
// meta-event and must be ignored (ok=false) rather than built into an
// Activity (spec.md §6).
func FromDict(record map[string]any, platform string) (Activity, bool) {
	if _, isMeta := record["event_type"]; isMeta {
		return Activity{}, false
	}

	a := Activity{Platform: platform}
	if v, ok := record["agent_id"].(float64); ok {
		a.AgentID = int(v)
	}
	if v, ok := record["agent_name"].(string); ok {
		a.AgentName = v
	}
	if v, ok := record["action_type"].(string); ok {
		a.ActionType = v
	}
	if v, ok := record["action_args"].(map[string]any); ok {
		a.ActionArgs = v
	}
	if v, ok := record["round"].(float64); ok {
		a.Round = int(v)
	}
	if v, ok := record["timestamp"].(string); ok {
		if ts, err := time.Parse(time.RFC3339, v); err == nil {
			a.Timestamp = ts
		}
	}
	if a.Timestamp.IsZero() {
		a.Timestamp = time.Now().UTC()
	}
	return a, true
}

// renderLine renders one activity to a short natural-language episode
// line (spec.md §4.6.1 step 1).
func (a Activity) renderLine() string {
	text := ""
	if a.ActionArgs != nil {
		if t, ok := a.ActionArgs["text"].(string); ok {
			text = t
		}
	}
	if text == "" {
		return a.AgentName + " performed " + a.ActionType
	}
	return a.AgentName + " (" + a.ActionType + "): " + text
}
