package domain

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// RunKind distinguishes what a run is allowed to do.
// A proof run validates existing evidence; an action run performs a
// controlled change and requires an approved ticket.
type RunKind string

const (
	RunKindProof  RunKind = "proof"
	RunKindAction RunKind = "action"
)

type RunStatus string

const (
	RunStatusPending RunStatus = "pending"
	RunStatusRunning RunStatus = "running"
	RunStatusSuccess RunStatus = "success"
	RunStatusFailed  RunStatus = "failed"
	RunStatusTimeout RunStatus = "timeout"
)

// Terminal reports whether the run has finished.
func (s RunStatus) Terminal() bool {
	return s == RunStatusSuccess || s == RunStatusFailed || s == RunStatusTimeout
}

// ValidTransition checks if a run state transition is allowed.
// pending->running, running->{success,failed,timeout}. Terminal states
// never leave.
func (s RunStatus) ValidTransition(to RunStatus) bool {
	switch s {
	case RunStatusPending:
		return to == RunStatusRunning
	case RunStatusRunning:
		return to.Terminal()
	default:
		return false
	}
}

// TicketStatusFor maps a terminal run status to the owning ticket's
// resulting status.
func (s RunStatus) TicketStatusFor() TicketStatus {
	if s == RunStatusSuccess {
		return TicketStatusDone
	}
	return TicketStatusFailed
}

// Run is one execution attempt against a ticket. Created once in pending
// state, mutated only by the executor as it progresses, never deleted.
type Run struct {
	ID         uuid.UUID `json:"id"`
	Kind       RunKind   `json:"kind"`
	Status     RunStatus `json:"status"`
	TicketID   uuid.UUID `json:"ticket_id"`
	ExecutedBy uuid.UUID `json:"executed_by"`

	ScriptID         string `json:"script_id,omitempty"`
	ValidatorVersion string `json:"validator_version,omitempty"`
	RulesVersion     string `json:"rules_version,omitempty"`

	InputsManifest   map[string]any `json:"inputs_manifest,omitempty"`
	OutputsManifest  map[string]any `json:"outputs_manifest,omitempty"`
	ExecutionContext map[string]any `json:"execution_context,omitempty"`

	StdoutLog     string `json:"stdout_log,omitempty"`
	StderrLog     string `json:"stderr_log,omitempty"`
	ResultSummary string `json:"result_summary,omitempty"`
	ExitCode      *int   `json:"exit_code,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// RunResult carries everything the executor writes at a terminal
// transition.
type RunResult struct {
	Status           RunStatus
	ResultSummary    string
	StdoutLog        string
	StderrLog        string
	ExitCode         *int
	InputsManifest   map[string]any
	OutputsManifest  map[string]any
	ValidatorVersion string
}

type RunRepository interface {
	// CreateForTicket inserts the run and moves the owning ticket to the
	// given status in a single transaction: both changes land or neither
	// does. A ticket that can no longer make the transition fails the
	// whole write with ErrInvalidTransition.
	CreateForTicket(ctx context.Context, r *Run, ticketStatus TicketStatus) error
	GetByID(ctx context.Context, id uuid.UUID) (*Run, error)
	ListByTicket(ctx context.Context, ticketID uuid.UUID) ([]*Run, error)
	// ClaimPending is the one-shot pending->running gate. It returns false
	// when the run was already claimed, without error.
	ClaimPending(ctx context.Context, id uuid.UUID) (bool, error)
	// Finish applies the run's terminal result and the owning ticket's
	// resulting status in a single transaction.
	Finish(ctx context.Context, id uuid.UUID, res RunResult) error
}
