// Package ticket implements the change-request workflow around the
// ticket lifecycle: creation, approval, edits, and closure, each paired
// with its audit event.
package ticket

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/provenlabs/opsledger/internal/audit"
	"github.com/provenlabs/opsledger/internal/domain"
)

// Notifier receives out-of-band messages when tickets need attention.
type Notifier interface {
	Notify(ctx context.Context, message string) error
}

type Service struct {
	tickets  domain.TicketRepository
	assets   domain.AssetRepository
	auditor  *audit.Logger
	notifier Notifier // nil disables notifications
}

func NewService(tickets domain.TicketRepository, assets domain.AssetRepository, auditor *audit.Logger, notifier Notifier) *Service {
	return &Service{
		tickets:  tickets,
		assets:   assets,
		auditor:  auditor,
		notifier: notifier,
	}
}

// CreateInput describes a new change request.
type CreateInput struct {
	Title       string
	Description string
	AssetID     *uuid.UUID
}

// Create opens a ticket directly in submitted state: a ticket exists to
// be reviewed, so there is no separate draft step on this path.
func (s *Service) Create(ctx context.Context, actor *domain.User, in CreateInput) (*domain.Ticket, error) {
	if in.Title == "" {
		return nil, fmt.Errorf("ticket.Service.Create: title is required: %w", domain.ErrPreconditionFailed)
	}

	if in.AssetID != nil {
		if _, err := s.assets.GetByID(ctx, *in.AssetID); err != nil {
			return nil, fmt.Errorf("ticket.Service.Create: asset %s: %w", in.AssetID, err)
		}
	}

	now := time.Now().UTC()
	t := &domain.Ticket{
		ID:          uuid.New(),
		Title:       in.Title,
		Description: in.Description,
		Status:      domain.TicketStatusSubmitted,
		AssetID:     in.AssetID,
		CreatedBy:   actor.ID,
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	if err := s.tickets.Create(ctx, t); err != nil {
		return nil, fmt.Errorf("ticket.Service.Create: %w", err)
	}

	if err := s.log(ctx, actor, audit.EventTicketCreated, t.ID,
		fmt.Sprintf("Created ticket %q", t.Title),
		map[string]any{"status": string(t.Status)},
	); err != nil {
		return nil, fmt.Errorf("ticket.Service.Create: %w", err)
	}

	if s.notifier != nil {
		msg := fmt.Sprintf("Ticket %s submitted by %s: %s", t.ID, actor.Username, t.Title)
		if err := s.notifier.Notify(ctx, msg); err != nil {
			log.Warn().Err(err).Str("ticket_id", t.ID.String()).Msg("ticket: submit notification")
		}
	}

	return t, nil
}

// Approve moves a submitted ticket to approved and records the approver.
// Admin only.
func (s *Service) Approve(ctx context.Context, actor *domain.User, id uuid.UUID) (*domain.Ticket, error) {
	if !actor.IsAdmin {
		return nil, fmt.Errorf("ticket.Service.Approve: approval requires admin: %w", domain.ErrPermissionDenied)
	}

	if err := s.tickets.Approve(ctx, id, actor.ID); err != nil {
		return nil, fmt.Errorf("ticket.Service.Approve: %w", err)
	}

	t, err := s.tickets.GetByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("ticket.Service.Approve: reload: %w", err)
	}

	if err := s.log(ctx, actor, audit.EventTicketApproved, t.ID,
		fmt.Sprintf("Approved ticket %q", t.Title), nil,
	); err != nil {
		return nil, fmt.Errorf("ticket.Service.Approve: %w", err)
	}

	return t, nil
}

// UpdateInput carries the editable fields; nil means leave unchanged.
type UpdateInput struct {
	Title       *string
	Description *string
}

// Update edits a ticket's describing fields. Only the creator or an
// admin may edit, and never once the ticket has started running.
func (s *Service) Update(ctx context.Context, actor *domain.User, id uuid.UUID, in UpdateInput) (*domain.Ticket, error) {
	t, err := s.tickets.GetByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("ticket.Service.Update: %w", err)
	}

	if t.CreatedBy != actor.ID && !actor.IsAdmin {
		return nil, fmt.Errorf("ticket.Service.Update: not the creator: %w", domain.ErrPermissionDenied)
	}
	if t.Status != domain.TicketStatusDraft && t.Status != domain.TicketStatusSubmitted {
		return nil, fmt.Errorf("ticket.Service.Update: ticket is %q, editable only before approval: %w",
			t.Status, domain.ErrInvalidTransition)
	}

	changed := map[string]any{}
	if in.Title != nil && *in.Title != t.Title {
		if *in.Title == "" {
			return nil, fmt.Errorf("ticket.Service.Update: title is required: %w", domain.ErrPreconditionFailed)
		}
		t.Title = *in.Title
		changed["title"] = *in.Title
	}
	if in.Description != nil && *in.Description != t.Description {
		t.Description = *in.Description
		changed["description"] = true
	}
	if len(changed) == 0 {
		return t, nil
	}

	t.UpdatedAt = time.Now().UTC()
	if err := s.tickets.Update(ctx, t); err != nil {
		return nil, fmt.Errorf("ticket.Service.Update: %w", err)
	}

	if err := s.log(ctx, actor, audit.EventTicketUpdated, t.ID,
		fmt.Sprintf("Updated ticket %q", t.Title), changed,
	); err != nil {
		return nil, fmt.Errorf("ticket.Service.Update: %w", err)
	}

	return t, nil
}

// Close moves a ticket to closed from any non-terminal state. Creator or
// admin.
func (s *Service) Close(ctx context.Context, actor *domain.User, id uuid.UUID) (*domain.Ticket, error) {
	t, err := s.tickets.GetByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("ticket.Service.Close: %w", err)
	}

	if t.CreatedBy != actor.ID && !actor.IsAdmin {
		return nil, fmt.Errorf("ticket.Service.Close: not the creator: %w", domain.ErrPermissionDenied)
	}
	if !t.Status.ValidTransition(domain.TicketStatusClosed) {
		return nil, fmt.Errorf("ticket.Service.Close: ticket is already %q: %w", t.Status, domain.ErrInvalidTransition)
	}

	if err := s.tickets.UpdateStatus(ctx, id, domain.TicketStatusClosed); err != nil {
		return nil, fmt.Errorf("ticket.Service.Close: %w", err)
	}
	t.Status = domain.TicketStatusClosed

	if err := s.log(ctx, actor, audit.EventTicketClosed, t.ID,
		fmt.Sprintf("Closed ticket %q", t.Title), nil,
	); err != nil {
		return nil, fmt.Errorf("ticket.Service.Close: %w", err)
	}

	return t, nil
}

func (s *Service) Get(ctx context.Context, id uuid.UUID) (*domain.Ticket, error) {
	t, err := s.tickets.GetByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("ticket.Service.Get: %w", err)
	}
	return t, nil
}

func (s *Service) List(ctx context.Context, limit, offset int) ([]*domain.Ticket, error) {
	tickets, err := s.tickets.List(ctx, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("ticket.Service.List: %w", err)
	}
	return tickets, nil
}

func (s *Service) log(ctx context.Context, actor *domain.User, eventType audit.EventType, ticketID uuid.UUID, action string, details map[string]any) error {
	actorID := actor.ID
	return s.auditor.Log(ctx, audit.Event{
		Type:          eventType,
		ActorID:       &actorID,
		ActorUsername: actor.Username,
		ResourceType:  "ticket",
		ResourceID:    &ticketID,
		Action:        action,
		Details:       details,
		Success:       true,
	})
}
