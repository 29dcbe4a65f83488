package v1

import (
	"context"
	"errors"
	"net/http"

	"github.com/danielgtaylor/huma/v2"
	"github.com/google/uuid"

	"github.com/provenlabs/opsledger/internal/domain"
	"github.com/provenlabs/opsledger/internal/server/middleware"
	"github.com/provenlabs/opsledger/internal/ticket"
)

type CreateTicketInput struct {
	Body struct {
		Title       string     `json:"title" minLength:"1" maxLength:"500" doc:"Ticket title"`
		Description string     `json:"description,omitempty" doc:"What this change does and why"`
		AssetID     *uuid.UUID `json:"asset_id,omitempty" doc:"Optional target asset"`
	}
}

type CreateTicketOutput struct {
	Body *domain.Ticket
}

type ListTicketsInput struct {
	Limit  int `query:"limit" minimum:"1" maximum:"200" default:"50" doc:"Page size"`
	Offset int `query:"offset" minimum:"0" default:"0" doc:"Page offset"`
}

type ListTicketsOutput struct {
	Body []*domain.Ticket
}

type GetTicketInput struct {
	ID uuid.UUID `path:"id" doc:"Ticket ID"`
}

type GetTicketOutput struct {
	Body *domain.Ticket
}

type UpdateTicketInput struct {
	ID   uuid.UUID `path:"id" doc:"Ticket ID"`
	Body struct {
		Title       *string `json:"title,omitempty" maxLength:"500" doc:"Ticket title"`
		Description *string `json:"description,omitempty" doc:"Description"`
	}
}

type UpdateTicketOutput struct {
	Body *domain.Ticket
}

type TicketActionInput struct {
	ID uuid.UUID `path:"id" doc:"Ticket ID"`
}

type TicketActionOutput struct {
	Body *domain.Ticket
}

func RegisterTicketRoutes(api huma.API, tickets TicketService) {
	huma.Register(api, huma.Operation{
		OperationID: "create-ticket",
		Method:      http.MethodPost,
		Path:        "/tickets",
		Summary:     "Submit a new change ticket",
		Tags:        []string{"Tickets"},
	}, func(ctx context.Context, input *CreateTicketInput) (*CreateTicketOutput, error) {
		actor, ok := middleware.UserFromContext(ctx)
		if !ok {
			return nil, huma.Error403Forbidden("missing user context")
		}

		t, err := tickets.Create(ctx, actor, ticket.CreateInput{
			Title:       input.Body.Title,
			Description: input.Body.Description,
			AssetID:     input.Body.AssetID,
		})
		if err != nil {
			switch {
			case errors.Is(err, domain.ErrNotFound):
				return nil, huma.Error404NotFound("asset not found")
			case errors.Is(err, domain.ErrPreconditionFailed):
				return nil, huma.Error422UnprocessableEntity(err.Error())
			default:
				return nil, huma.Error500InternalServerError("failed to create ticket", err)
			}
		}

		return &CreateTicketOutput{Body: t}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "list-tickets",
		Method:      http.MethodGet,
		Path:        "/tickets",
		Summary:     "List tickets",
		Tags:        []string{"Tickets"},
	}, func(ctx context.Context, input *ListTicketsInput) (*ListTicketsOutput, error) {
		out, err := tickets.List(ctx, input.Limit, input.Offset)
		if err != nil {
			return nil, huma.Error500InternalServerError("failed to list tickets", err)
		}
		return &ListTicketsOutput{Body: out}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "get-ticket",
		Method:      http.MethodGet,
		Path:        "/tickets/{id}",
		Summary:     "Get a ticket by ID",
		Tags:        []string{"Tickets"},
	}, func(ctx context.Context, input *GetTicketInput) (*GetTicketOutput, error) {
		t, err := tickets.Get(ctx, input.ID)
		if err != nil {
			if errors.Is(err, domain.ErrNotFound) {
				return nil, huma.Error404NotFound("ticket not found")
			}
			return nil, huma.Error500InternalServerError("failed to load ticket", err)
		}
		return &GetTicketOutput{Body: t}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "update-ticket",
		Method:      http.MethodPatch,
		Path:        "/tickets/{id}",
		Summary:     "Edit a ticket before it runs",
		Tags:        []string{"Tickets"},
	}, func(ctx context.Context, input *UpdateTicketInput) (*UpdateTicketOutput, error) {
		actor, ok := middleware.UserFromContext(ctx)
		if !ok {
			return nil, huma.Error403Forbidden("missing user context")
		}

		t, err := tickets.Update(ctx, actor, input.ID, ticket.UpdateInput{
			Title:       input.Body.Title,
			Description: input.Body.Description,
		})
		if err != nil {
			return nil, mapTicketError(err, "failed to update ticket")
		}
		return &UpdateTicketOutput{Body: t}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "approve-ticket",
		Method:      http.MethodPost,
		Path:        "/tickets/{id}/approve",
		Summary:     "Approve a submitted ticket (admin only)",
		Tags:        []string{"Tickets"},
	}, func(ctx context.Context, input *TicketActionInput) (*TicketActionOutput, error) {
		actor, ok := middleware.UserFromContext(ctx)
		if !ok {
			return nil, huma.Error403Forbidden("missing user context")
		}

		t, err := tickets.Approve(ctx, actor, input.ID)
		if err != nil {
			return nil, mapTicketError(err, "failed to approve ticket")
		}
		return &TicketActionOutput{Body: t}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "close-ticket",
		Method:      http.MethodPost,
		Path:        "/tickets/{id}/close",
		Summary:     "Close a ticket",
		Tags:        []string{"Tickets"},
	}, func(ctx context.Context, input *TicketActionInput) (*TicketActionOutput, error) {
		actor, ok := middleware.UserFromContext(ctx)
		if !ok {
			return nil, huma.Error403Forbidden("missing user context")
		}

		t, err := tickets.Close(ctx, actor, input.ID)
		if err != nil {
			return nil, mapTicketError(err, "failed to close ticket")
		}
		return &TicketActionOutput{Body: t}, nil
	})
}

func mapTicketError(err error, fallback string) error {
	switch {
	case errors.Is(err, domain.ErrNotFound):
		return huma.Error404NotFound("ticket not found")
	case errors.Is(err, domain.ErrPermissionDenied):
		return huma.Error403Forbidden("not allowed")
	case errors.Is(err, domain.ErrInvalidTransition):
		return huma.Error409Conflict(err.Error())
	case errors.Is(err, domain.ErrPreconditionFailed):
		return huma.Error422UnprocessableEntity(err.Error())
	default:
		return huma.Error500InternalServerError(fallback, err)
	}
}
