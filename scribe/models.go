package scribe

import (
	"encoding/json"
	"strings"
	"time"
)

// TranscriptSegment is one speaker-labeled span of a transcript. Speaker is
// a short label like "S1", "S2", or "UU" when the speaker is unknown.
type TranscriptSegment struct {
	Speaker   string   `json:"speaker"`
	Text      string   `json:"text"`
	StartTime *float64 `json:"start_time,omitempty"`
	EndTime   *float64 `json:"end_time,omitempty"`
}

// Transcript is the result of one transcription run. Exactly one transcript
// is stored per history entry; reprocessing overwrites it.
type Transcript struct {
	Text     string              `json:"transcript_text"`
	Segments []TranscriptSegment `json:"segments"`
	Model    string              `json:"transcription_model"`
}

type ActionItem struct {
	Item    string `json:"item"`
	Owner   string `json:"owner,omitempty"`
	DueDate string `json:"due_date,omitempty"`
}

// MeetingNotes is the structured summary produced by the LLM.
type MeetingNotes struct {
	Summary      string       `json:"summary"`
	Participants []string     `json:"participants"`
	Conclusions  []string     `json:"conclusions"`
	Decisions    []string     `json:"decisions"`
	ActionItems  []ActionItem `json:"action_items"`
}

// SummaryResult is the payload returned by one summarization run.
type SummaryResult struct {
	Notes    MeetingNotes `json:"notes"`
	LLMModel string       `json:"llm_model"`
}

// SummaryVersion is one revision of the summary for an entry. Version numbers
// start at 1 and increase by one per append.
type SummaryVersion struct {
	Summary     SummaryResult `json:"summary"`
	GeneratedAt int64         `json:"generated_at"`
	Version     int           `json:"version"`
}

// EntryMetadata is a derived aggregate over transcript and summaries.
// LLMModel is empty until the first summary exists.
type EntryMetadata struct {
	TranscriptionModel string `json:"transcription_model"`
	LLMModel           string `json:"llm_model,omitempty"`
	SpeakerCount       int    `json:"speaker_count"`
	WordCount          int    `json:"word_count"`
}

// HistoryEntry is the cached record for one processed file, keyed by the
// SHA-256 fingerprint of its content. Transcript, summaries and metadata are
// stored as JSON text columns.
type HistoryEntry struct {
	Fingerprint string `gorm:"primaryKey;size:64"`
	FileName    string `gorm:"size:1024"`
	FileSize    int64
	Duration    float64
	// ProcessedAt is the first-processed time in milliseconds since epoch.
	// It is not refreshed when a summary version is appended.
	ProcessedAt    int64  `gorm:"index"`
	TranscriptJSON string `gorm:"column:transcript_json;type:text"`
	// Deprecated: single-summary column from schema v1. Emptied by migration;
	// kept so legacy rows stay readable until they are upgraded.
	SummaryJSON   string `gorm:"column:summary_json;type:text"`
	SummariesJSON string `gorm:"column:summaries_json;type:text"`
	MetadataJSON  string `gorm:"column:metadata_json;type:text"`
}

func (e *HistoryEntry) DecodeTranscript() (Transcript, error) {
	var t Transcript
	if e.TranscriptJSON == "" {
		return t, nil
	}
	err := json.Unmarshal([]byte(e.TranscriptJSON), &t)
	return t, err
}

func (e *HistoryEntry) SetTranscript(t Transcript) error {
	b, err := json.Marshal(t)
	if err != nil {
		return err
	}
	e.TranscriptJSON = string(b)
	return nil
}

func (e *HistoryEntry) DecodeSummaries() ([]SummaryVersion, error) {
	if e.SummariesJSON == "" {
		return nil, nil
	}
	var versions []SummaryVersion
	err := json.Unmarshal([]byte(e.SummariesJSON), &versions)
	return versions, err
}

func (e *HistoryEntry) SetSummaries(versions []SummaryVersion) error {
	if versions == nil {
		versions = []SummaryVersion{}
	}
	b, err := json.Marshal(versions)
	if err != nil {
		return err
	}
	e.SummariesJSON = string(b)
	return nil
}

func (e *HistoryEntry) DecodeMetadata() (EntryMetadata, error) {
	var m EntryMetadata
	if e.MetadataJSON == "" {
		return m, nil
	}
	err := json.Unmarshal([]byte(e.MetadataJSON), &m)
	return m, err
}

func (e *HistoryEntry) SetMetadata(m EntryMetadata) error {
	b, err := json.Marshal(m)
	if err != nil {
		return err
	}
	e.MetadataJSON = string(b)
	return nil
}

// ComputeMetadata derives the aggregate stats from a transcript and the
// current summary versions.
func ComputeMetadata(t Transcript, versions []SummaryVersion) EntryMetadata {
	speakers := make(map[string]struct{})
	for _, seg := range t.Segments {
		if seg.Speaker != "" {
			speakers[seg.Speaker] = struct{}{}
		}
	}
	m := EntryMetadata{
		TranscriptionModel: t.Model,
		SpeakerCount:       len(speakers),
		WordCount:          len(strings.Fields(t.Text)),
	}
	if len(versions) > 0 {
		m.LLMModel = versions[len(versions)-1].Summary.LLMModel
	}
	return m
}

func nowMillis() int64 {
	return time.Now().UnixMilli()
}
