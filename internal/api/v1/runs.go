package v1

import (
	"context"
	"errors"
	"net/http"

	"github.com/danielgtaylor/huma/v2"
	"github.com/google/uuid"

	"github.com/provenlabs/opsledger/internal/domain"
	"github.com/provenlabs/opsledger/internal/runner"
	"github.com/provenlabs/opsledger/internal/server/middleware"
)

type SubmitRunInput struct {
	Body struct {
		TicketID         uuid.UUID      `json:"ticket_id" doc:"Ticket the run executes against"`
		Kind             string         `json:"kind" enum:"proof,action" doc:"Run kind"`
		ScriptID         string         `json:"script_id,omitempty" maxLength:"128" doc:"Registered validator or script ID"`
		ExecutionContext map[string]any `json:"execution_context,omitempty" doc:"Free-form execution parameters"`
	}
}

type SubmitRunOutput struct {
	Status int
	Body   *domain.Run
}

type GetRunInput struct {
	ID uuid.UUID `path:"id" doc:"Run ID"`
}

type GetRunOutput struct {
	Body *domain.Run
}

type ListRunsInput struct {
	TicketID uuid.UUID `query:"ticket_id" required:"true" doc:"Ticket ID"`
}

type ListRunsOutput struct {
	Body []*domain.Run
}

func RegisterRunRoutes(api huma.API, store DataStore, executor RunSubmitter) {
	huma.Register(api, huma.Operation{
		OperationID:   "submit-run",
		Method:        http.MethodPost,
		Path:          "/runs",
		Summary:       "Submit a run for execution",
		Description:   "Creates the run in pending state and executes it in the background. Poll the run or subscribe to its event stream for progress.",
		Tags:          []string{"Runs"},
		DefaultStatus: http.StatusAccepted,
	}, func(ctx context.Context, input *SubmitRunInput) (*SubmitRunOutput, error) {
		actor, ok := middleware.UserFromContext(ctx)
		if !ok {
			return nil, huma.Error403Forbidden("missing user context")
		}

		run, err := executor.Submit(ctx, actor, runner.SubmitInput{
			TicketID:         input.Body.TicketID,
			Kind:             domain.RunKind(input.Body.Kind),
			ScriptID:         input.Body.ScriptID,
			ExecutionContext: input.Body.ExecutionContext,
		})
		if err != nil {
			switch {
			case errors.Is(err, domain.ErrNotFound):
				return nil, huma.Error404NotFound("ticket not found")
			case errors.Is(err, domain.ErrPermissionDenied):
				return nil, huma.Error403Forbidden("action runs require admin privileges")
			case errors.Is(err, domain.ErrPreconditionFailed), errors.Is(err, domain.ErrInvalidTransition):
				return nil, huma.Error409Conflict(err.Error())
			default:
				return nil, huma.Error500InternalServerError("failed to submit run", err)
			}
		}

		return &SubmitRunOutput{Status: http.StatusAccepted, Body: run}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "get-run",
		Method:      http.MethodGet,
		Path:        "/runs/{id}",
		Summary:     "Get a run with its logs and manifests",
		Tags:        []string{"Runs"},
	}, func(ctx context.Context, input *GetRunInput) (*GetRunOutput, error) {
		run, err := store.Runs().GetByID(ctx, input.ID)
		if err != nil {
			if errors.Is(err, domain.ErrNotFound) {
				return nil, huma.Error404NotFound("run not found")
			}
			return nil, huma.Error500InternalServerError("failed to load run", err)
		}
		return &GetRunOutput{Body: run}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "list-runs",
		Method:      http.MethodGet,
		Path:        "/runs",
		Summary:     "List runs for a ticket in creation order",
		Tags:        []string{"Runs"},
	}, func(ctx context.Context, input *ListRunsInput) (*ListRunsOutput, error) {
		runs, err := store.Runs().ListByTicket(ctx, input.TicketID)
		if err != nil {
			return nil, huma.Error500InternalServerError("failed to list runs", err)
		}
		return &ListRunsOutput{Body: runs}, nil
	})
}
