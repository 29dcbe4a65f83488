package audit

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// EventType is the closed set of auditable actions.
type EventType string

const (
	// Authentication.
	EventUserLogin       EventType = "user.login"
	EventUserLoginFailed EventType = "user.login_failed"
	EventUserCreated     EventType = "user.created"

	// Assets.
	EventAssetCreated EventType = "asset.created"
	EventAssetUpdated EventType = "asset.updated"
	EventAssetDeleted EventType = "asset.deleted"

	// Tickets.
	EventTicketCreated  EventType = "ticket.created"
	EventTicketUpdated  EventType = "ticket.updated"
	EventTicketApproved EventType = "ticket.approved"
	EventTicketClosed   EventType = "ticket.closed"

	// Runs. These carry the traceability guarantee.
	EventRunCreated   EventType = "run.created"
	EventRunStarted   EventType = "run.started"
	EventRunCompleted EventType = "run.completed"
	EventRunFailed    EventType = "run.failed"
	EventRunTimeout   EventType = "run.timeout"

	// Artifacts. These carry the evidence chain.
	EventArtifactUploaded   EventType = "artifact.uploaded"
	EventArtifactDownloaded EventType = "artifact.downloaded"
	EventArtifactDeleted    EventType = "artifact.deleted"
	EventArtifactVerified   EventType = "artifact.verified"
)

// Event is one immutable audit record. Created once, never mutated,
// persisted strictly in the order generated. An absent actor means the
// event originated from the system itself.
type Event struct {
	Type      EventType `json:"event_type"`
	Timestamp time.Time `json:"timestamp"`

	ActorID       *uuid.UUID `json:"actor_id,omitempty"`
	ActorUsername string     `json:"actor_username,omitempty"`

	ResourceType string     `json:"resource_type,omitempty"`
	ResourceID   *uuid.UUID `json:"resource_id,omitempty"`

	Action  string         `json:"action"`
	Details map[string]any `json:"details,omitempty"`

	IPAddress string `json:"ip_address,omitempty"`
	UserAgent string `json:"user_agent,omitempty"`

	Success      bool   `json:"success"`
	ErrorMessage string `json:"error_message,omitempty"`
}

// LogLine renders the human-readable single-line summary:
// timestamp|event_type|actor|resource|SUCCESS/FAILED|action.
func (e Event) LogLine() string {
	actor := "system"
	if e.ActorID != nil {
		actor = fmt.Sprintf("%s(%s)", e.ActorUsername, e.ActorID)
	}

	resource := "none"
	if e.ResourceType != "" {
		id := ""
		if e.ResourceID != nil {
			id = e.ResourceID.String()
		}
		resource = e.ResourceType + ":" + id
	}

	result := "SUCCESS"
	if !e.Success {
		result = "FAILED"
	}

	return fmt.Sprintf("%s|%s|%s|%s|%s|%s",
		e.Timestamp.UTC().Format(time.RFC3339Nano),
		e.Type, actor, resource, result, e.Action,
	)
}
