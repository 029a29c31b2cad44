package scribe

import (
	"encoding/json"
	"fmt"
)

// NormalizeEntry upgrades a record read from the store to the current logical
// shape. Legacy rows carry a single summary_json value instead of the
// summaries_json list; it is wrapped as version 1 with generated_at taken
// from processed_at, since the original generation time is not recoverable.
// Idempotent: an already-current entry is returned unchanged.
func NormalizeEntry(e *HistoryEntry) error {
	if e == nil {
		return fmt.Errorf("%w: nil entry", ErrNormalization)
	}
	if e.SummariesJSON != "" {
		var versions []SummaryVersion
		if err := json.Unmarshal([]byte(e.SummariesJSON), &versions); err != nil {
			return fmt.Errorf("%w: summaries: %v", ErrNormalization, err)
		}
		return nil
	}
	if e.SummaryJSON == "" || e.SummaryJSON == "null" {
		e.SummaryJSON = ""
		e.SummariesJSON = "[]"
		return nil
	}
	var legacy SummaryResult
	if err := json.Unmarshal([]byte(e.SummaryJSON), &legacy); err != nil {
		return fmt.Errorf("%w: legacy summary: %v", ErrNormalization, err)
	}
	wrapped := []SummaryVersion{{Summary: legacy, GeneratedAt: e.ProcessedAt, Version: 1}}
	b, err := json.Marshal(wrapped)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrNormalization, err)
	}
	e.SummariesJSON = string(b)
	e.SummaryJSON = ""
	return nil
}
