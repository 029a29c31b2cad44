package scribe

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"google.golang.org/genai"
)

// Summarizer turns a transcript into structured meeting notes.
type Summarizer interface {
	Summarize(ctx context.Context, transcript string, languageHint string) (SummaryResult, error)
}

const notesPrompt = `You are an expert meeting analyst. Read the transcript below and produce structured meeting notes.

Respond with ONLY a JSON object, no markdown fences, in exactly this shape:
{
  "summary": "concise synopsis of the meeting",
  "participants": ["names or roles mentioned"],
  "conclusions": ["conclusions reached"],
  "decisions": ["decisions made"],
  "action_items": [{"item": "what to do", "owner": "who (optional)", "due_date": "when (optional)"}]
}

Leave lists empty when nothing applies. Do not invent participants or dates.%s

Transcript:
---
%s
---`

type geminiSummarizer struct {
	apiKeys    []string
	currentKey int
	model      string
	log        Logger
}

// NewGeminiSummarizer creates a Summarizer that rotates through the supplied
// Gemini API keys when one is rate limited.
func NewGeminiSummarizer(cfg GeminiConfig, log Logger) (Summarizer, error) {
	if len(cfg.APIKeys) == 0 {
		return nil, fmt.Errorf("gemini api_keys is required")
	}
	model := cfg.Model
	if model == "" {
		model = "gemini-2.5-flash"
	}
	return &geminiSummarizer{apiKeys: cfg.APIKeys, model: model, log: log}, nil
}

func (s *geminiSummarizer) Summarize(ctx context.Context, transcript string, languageHint string) (SummaryResult, error) {
	hint := ""
	if languageHint != "" {
		hint = fmt.Sprintf("\nThe meeting language is %s; write the notes in that language.", languageHint)
	}
	prompt := fmt.Sprintf(notesPrompt, hint, transcript)

	attempts := len(s.apiKeys)
	var lastErr error
	for range attempts {
		key := s.apiKeys[s.currentKey]

		client, err := genai.NewClient(ctx, &genai.ClientConfig{
			APIKey:  key,
			Backend: genai.BackendGeminiAPI,
		})
		if err != nil {
			lastErr = fmt.Errorf("create client: %w", err)
			s.rotateKey()
			continue
		}

		result, err := client.Models.GenerateContent(ctx, s.model, genai.Text(prompt), nil)
		if err != nil {
			errMsg := err.Error()
			if strings.Contains(errMsg, "429") || strings.Contains(errMsg, "quota") || strings.Contains(errMsg, "RESOURCE_EXHAUSTED") {
				s.log.Warn(ctx, "gemini key %d rate limited, rotating", s.currentKey+1)
				s.rotateKey()
				lastErr = err
				continue
			}
			return SummaryResult{}, fmt.Errorf("generate content: %w", err)
		}

		if result == nil || len(result.Candidates) == 0 || result.Candidates[0].Content == nil {
			return SummaryResult{}, fmt.Errorf("empty response from gemini")
		}
		var text string
		for _, part := range result.Candidates[0].Content.Parts {
			if part.Text != "" {
				text += part.Text
			}
		}
		notes, err := parseNotes(text)
		if err != nil {
			return SummaryResult{}, fmt.Errorf("parse notes: %w", err)
		}
		return SummaryResult{Notes: notes, LLMModel: s.model}, nil
	}
	return SummaryResult{}, fmt.Errorf("all gemini api keys exhausted: %w", lastErr)
}

func (s *geminiSummarizer) rotateKey() {
	s.currentKey = (s.currentKey + 1) % len(s.apiKeys)
}

// parseNotes extracts the notes JSON object from model output, tolerating
// markdown fences and surrounding prose.
func parseNotes(raw string) (MeetingNotes, error) {
	var notes MeetingNotes
	start := strings.Index(raw, "{")
	end := strings.LastIndex(raw, "}")
	if start < 0 || end <= start {
		return notes, fmt.Errorf("no JSON object in response")
	}
	if err := json.Unmarshal([]byte(raw[start:end+1]), &notes); err != nil {
		return notes, err
	}
	if strings.TrimSpace(notes.Summary) == "" {
		return notes, fmt.Errorf("response carries no summary")
	}
	return notes, nil
}
