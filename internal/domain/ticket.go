package domain

import (
	"context"
	"time"

	"github.com/google/uuid"
)

type TicketStatus string

const (
	TicketStatusDraft     TicketStatus = "draft"
	TicketStatusSubmitted TicketStatus = "submitted"
	TicketStatusApproved  TicketStatus = "approved"
	TicketStatusRunning   TicketStatus = "running"
	TicketStatusDone      TicketStatus = "done"
	TicketStatusFailed    TicketStatus = "failed"
	TicketStatusClosed    TicketStatus = "closed"
)

// Terminal reports whether the ticket can no longer change state.
func (s TicketStatus) Terminal() bool {
	return s == TicketStatusClosed
}

// ValidTransition checks if a ticket state transition is allowed.
// Approval requires submitted; a run moves submitted/approved to running;
// a finished run moves running to done or failed; any non-terminal ticket
// may be closed administratively.
func (s TicketStatus) ValidTransition(to TicketStatus) bool {
	if to == TicketStatusClosed {
		return !s.Terminal()
	}
	switch s {
	case TicketStatusDraft:
		return to == TicketStatusSubmitted
	case TicketStatusSubmitted:
		return to == TicketStatusApproved || to == TicketStatusRunning
	case TicketStatusApproved:
		return to == TicketStatusRunning
	case TicketStatusRunning:
		return to == TicketStatusDone || to == TicketStatusFailed
	default:
		return false
	}
}

// Ticket is a work order. Status is mutated by the ticket service (field
// edits, approval, close) and by the run executor as a side effect of run
// progress. ApprovedBy is set iff the ticket has passed through approved.
type Ticket struct {
	ID          uuid.UUID    `json:"id"`
	Title       string       `json:"title"`
	Description string       `json:"description,omitempty"`
	Status      TicketStatus `json:"status"`
	AssetID     *uuid.UUID   `json:"asset_id,omitempty"`
	CreatedBy   uuid.UUID    `json:"created_by"`
	ApprovedBy  *uuid.UUID   `json:"approved_by,omitempty"`
	CreatedAt   time.Time    `json:"created_at"`
	UpdatedAt   time.Time    `json:"updated_at"`
}

type TicketRepository interface {
	Create(ctx context.Context, t *Ticket) error
	GetByID(ctx context.Context, id uuid.UUID) (*Ticket, error)
	List(ctx context.Context, limit, offset int) ([]*Ticket, error)
	ListByCreator(ctx context.Context, creatorID uuid.UUID) ([]*Ticket, error)
	Update(ctx context.Context, t *Ticket) error
	UpdateStatus(ctx context.Context, id uuid.UUID, status TicketStatus) error
	// Approve sets status and approver in one statement, guarded on the
	// current status being submitted.
	Approve(ctx context.Context, id, approverID uuid.UUID) error
}
