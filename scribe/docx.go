package scribe

import (
	"fmt"

	"github.com/gomutex/godocx"
	"github.com/gomutex/godocx/docx"
)

const (
	docxFont     = "Calibri"
	docxFontSize = 11
)

// WriteMeetingDocx exports an entry's latest notes and transcript to a .docx
// file, section layout matching the in-app document: title, Summary,
// Participants, Conclusions, Decisions, Action Items, Transcript.
func WriteMeetingDocx(entry *HistoryEntry, outputPath string) error {
	if entry == nil {
		return fmt.Errorf("nil entry")
	}
	t, err := entry.DecodeTranscript()
	if err != nil {
		return fmt.Errorf("decode transcript: %w", err)
	}
	versions, err := entry.DecodeSummaries()
	if err != nil {
		return fmt.Errorf("decode summaries: %w", err)
	}

	doc, err := godocx.NewDocument()
	if err != nil {
		return err
	}

	title := entry.FileName
	if title == "" {
		title = "Meeting Notes"
	}
	addDocxHeading(doc, title, 16)

	if len(versions) > 0 {
		notes := versions[len(versions)-1].Summary.Notes
		addDocxHeading(doc, "Summary", 13)
		addDocxText(doc, notes.Summary)
		addDocxList(doc, "Participants", notes.Participants)
		addDocxList(doc, "Conclusions", notes.Conclusions)
		addDocxList(doc, "Decisions", notes.Decisions)

		addDocxHeading(doc, "Action Items", 13)
		if len(notes.ActionItems) == 0 {
			addDocxText(doc, "—")
		}
		for _, a := range notes.ActionItems {
			line := a.Item
			if a.Owner != "" {
				line += fmt.Sprintf(" (%s)", a.Owner)
			}
			if a.DueDate != "" {
				line += fmt.Sprintf(" [due: %s]", a.DueDate)
			}
			addDocxText(doc, "• "+line)
		}
	}

	addDocxHeading(doc, "Transcript", 13)
	if len(t.Segments) == 0 {
		addDocxText(doc, t.Text)
	}
	for _, seg := range t.Segments {
		addDocxText(doc, seg.Speaker+": "+seg.Text)
	}

	return doc.SaveTo(outputPath)
}

func addDocxList(doc *docx.RootDoc, heading string, items []string) {
	addDocxHeading(doc, heading, 13)
	if len(items) == 0 {
		addDocxText(doc, "—")
		return
	}
	for _, item := range items {
		addDocxText(doc, "• "+item)
	}
}

func addDocxHeading(doc *docx.RootDoc, text string, size uint64) {
	p := doc.AddParagraph("")
	p.AddText(text).Font(docxFont).Size(size).Color("000000").Bold(true)
}

func addDocxText(doc *docx.RootDoc, text string) {
	p := doc.AddParagraph("")
	p.AddText(text).Font(docxFont).Size(docxFontSize).Color("000000")
}
