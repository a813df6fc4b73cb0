// File: api/schemas/schemas.go
package schemas

import (
	"time"

	"github.com/google/uuid"
)

// SessionStatus describes the lifecycle state of an engagement session.
type SessionStatus string

const (
	StatusIdle      SessionStatus = "idle"
	StatusRunning   SessionStatus = "running"
	StatusCompleted SessionStatus = "completed"
	StatusCrashed   SessionStatus = "crashed"
	StatusStopped   SessionStatus = "stopped"
)

// SessionState is the persisted record of a reply session. It is written
// back to the store after every item and on every status transition, so a
// process restart can resume exactly where the previous run stopped.
type SessionState struct {
	ID        string        `json:"id"`
	Status    SessionStatus `json:"status"`
	Target    int           `json:"target"`
	Processed int           `json:"processed"`
	Success   int           `json:"success"`
	Failed    int           `json:"failed"`
	StartedAt time.Time     `json:"started_at"`
	UpdatedAt time.Time     `json:"updated_at"`

	// ProcessedIDs holds the content IDs already handled this session so a
	// resumed run does not reply to the same post twice.
	ProcessedIDs []string `json:"processed_ids,omitempty"`
}

// NewSessionState creates a fresh session aimed at the given target.
func NewSessionState(target int) *SessionState {
	now := time.Now().UTC()
	return &SessionState{
		ID:        uuid.NewString(),
		Status:    StatusIdle,
		Target:    target,
		StartedAt: now,
		UpdatedAt: now,
	}
}

// RecordSuccess marks one item as successfully replied to.
// Processed always equals Success + Failed.
func (s *SessionState) RecordSuccess(itemID string) {
	s.Processed++
	s.Success++
	s.markProcessed(itemID)
	s.UpdatedAt = time.Now().UTC()
}

// RecordFailure marks one item as attempted and failed.
func (s *SessionState) RecordFailure(itemID string) {
	s.Processed++
	s.Failed++
	s.markProcessed(itemID)
	s.UpdatedAt = time.Now().UTC()
}

func (s *SessionState) markProcessed(itemID string) {
	if itemID == "" {
		return
	}
	for _, id := range s.ProcessedIDs {
		if id == itemID {
			return
		}
	}
	s.ProcessedIDs = append(s.ProcessedIDs, itemID)
}

// Consistent reports whether the counters satisfy the accounting
// invariant. A false return indicates state corruption and the record
// must not be resumed from.
func (s *SessionState) Consistent() bool {
	return s.Processed == s.Success+s.Failed &&
		s.Processed >= 0 && s.Success >= 0 && s.Failed >= 0
}

// Complete reports whether the session has reached its target.
func (s *SessionState) Complete() bool {
	return s.Target > 0 && s.Success >= s.Target
}

// SuccessRate returns the fraction of processed items that succeeded.
func (s *SessionState) SuccessRate() float64 {
	if s.Processed == 0 {
		return 0
	}
	return float64(s.Success) / float64(s.Processed)
}

// ContentItem is one discovered post eligible for engagement.
type ContentItem struct {
	// ID is the canonical platform identifier when the permalink exposes
	// one, otherwise a synthetic UUID valid only for this session.
	ID string `json:"id"`
	// Handle is the driver-scoped element handle for the post container.
	Handle string `json:"handle"`
	Text   string `json:"text"`
	// Synthetic is true when ID was generated locally.
	Synthetic bool `json:"synthetic,omitempty"`

	AuthorHandle   string `json:"author_handle,omitempty"`
	AuthorVerified bool   `json:"author_verified,omitempty"`
	Permalink      string `json:"permalink,omitempty"`
}

// ReplyDraft is generated text bound to the item it answers.
type ReplyDraft struct {
	ItemID     string `json:"item_id"`
	TemplateID int    `json:"template_id"`
	// Raw is the model output before sanitization, kept for the activity log.
	Raw  string `json:"raw,omitempty"`
	Text string `json:"text"`
}

// GenerationRequest carries everything the reply generator needs for one post.
type GenerationRequest struct {
	PostText     string `json:"post_text"`
	AuthorHandle string `json:"author_handle,omitempty"`
	Language     string `json:"language,omitempty"`
	Style        string `json:"style,omitempty"`
	Tone         string `json:"tone,omitempty"`
	// TemplateID forces a template when > 0; zero lets the router choose.
	TemplateID int `json:"template_id,omitempty"`
}

// EventKind classifies activity events.
type EventKind string

const (
	EventSessionStarted   EventKind = "session_started"
	EventSessionResumed   EventKind = "session_resumed"
	EventSessionCompleted EventKind = "session_completed"
	EventSessionCrashed   EventKind = "session_crashed"
	EventSessionStopped   EventKind = "session_stopped"
	EventItemSuccess      EventKind = "item_success"
	EventItemFailure      EventKind = "item_failure"
	EventRecovery         EventKind = "recovery"
)

// ActivityEvent is one entry in the session activity log.
type ActivityEvent struct {
	SessionID string    `json:"session_id"`
	ItemID    string    `json:"item_id,omitempty"`
	Kind      EventKind `json:"kind"`
	Detail    string    `json:"detail,omitempty"`
	At        time.Time `json:"at"`
}

// NewActivityEvent stamps an event with the current time.
func NewActivityEvent(sessionID, itemID string, kind EventKind, detail string) ActivityEvent {
	return ActivityEvent{
		SessionID: sessionID,
		ItemID:    itemID,
		Kind:      kind,
		Detail:    detail,
		At:        time.Now().UTC(),
	}
}
