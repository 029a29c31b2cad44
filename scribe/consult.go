package scribe

import (
	"context"
	"errors"
	"fmt"
)

// ConsultState is a state of the cache-consult workflow.
type ConsultState int

const (
	StateIdle ConsultState = iota
	StateLookingUp
	StateAwaitingDecision
	StateReadyToProcess
	StateLoadedFromCache
	StatePersisted
)

func (s ConsultState) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateLookingUp:
		return "looking-up"
	case StateAwaitingDecision:
		return "awaiting-decision"
	case StateReadyToProcess:
		return "ready-to-process"
	case StateLoadedFromCache:
		return "loaded-from-cache"
	case StatePersisted:
		return "persisted"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// Decision is the user's answer when a selected file matches a cached entry.
type Decision int

const (
	DecisionReuse Decision = iota
	DecisionReprocess
	DecisionCancel
)

// Consult drives the reuse-vs-reprocess decision at the point a file is
// selected: fingerprint it, look it up, and either proceed to processing or
// surface the cached entry for a decision. One Consult value tracks one file
// selection; Reset returns it to Idle.
type Consult struct {
	store *HistoryStore
	log   Logger

	state       ConsultState
	fingerprint string
	fileName    string
	entry       *HistoryEntry
}

func NewConsult(store *HistoryStore, log Logger) *Consult {
	return &Consult{store: store, log: log, state: StateIdle}
}

func (c *Consult) State() ConsultState { return c.state }
func (c *Consult) Fingerprint() string { return c.fingerprint }
func (c *Consult) FileName() string    { return c.fileName }

// Entry returns the cached entry surfaced for the decision, if any.
func (c *Consult) Entry() *HistoryEntry { return c.entry }

// SelectFile fingerprints the content and looks it up in the history. A
// store failure degrades to ReadyToProcess with a logged warning: history is
// a convenience, never a hard dependency of processing.
func (c *Consult) SelectFile(ctx context.Context, fileName string, content []byte) (ConsultState, error) {
	if c.state != StateIdle {
		return c.state, fmt.Errorf("select file: invalid in state %s", c.state)
	}
	c.fileName = fileName
	c.fingerprint = Fingerprint(content)
	c.state = StateLookingUp

	entry, err := c.store.Get(ctx, c.fingerprint)
	switch {
	case err == nil:
		c.entry = entry
		c.state = StateAwaitingDecision
	case errors.Is(err, ErrEntryNotFound):
		c.state = StateReadyToProcess
	default:
		c.log.Warn(ctx, "history lookup failed, proceeding without it: %v", err)
		c.state = StateReadyToProcess
	}
	return c.state, nil
}

// Decide resolves an AwaitingDecision consult. Reuse adopts the stored
// results, Reprocess treats the file exactly as fresh (the eventual write
// replaces the stored entry), Cancel discards the selection.
func (c *Consult) Decide(d Decision) (ConsultState, error) {
	if c.state != StateAwaitingDecision {
		return c.state, fmt.Errorf("decide: invalid in state %s", c.state)
	}
	switch d {
	case DecisionReuse:
		c.state = StateLoadedFromCache
	case DecisionReprocess:
		c.state = StateReadyToProcess
	case DecisionCancel:
		c.Reset()
	default:
		return c.state, fmt.Errorf("decide: unknown decision %d", int(d))
	}
	return c.state, nil
}

// MarkPersisted records that processing finished and the entry was written.
func (c *Consult) MarkPersisted() error {
	if c.state != StateReadyToProcess {
		return fmt.Errorf("mark persisted: invalid in state %s", c.state)
	}
	c.state = StatePersisted
	return nil
}

// Reset discards the selection entirely and returns to Idle.
func (c *Consult) Reset() {
	c.state = StateIdle
	c.fingerprint = ""
	c.fileName = ""
	c.entry = nil
}
