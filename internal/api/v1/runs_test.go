package v1_test

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"testing"

	"github.com/danielgtaylor/huma/v2/humatest"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	v1 "github.com/provenlabs/opsledger/internal/api/v1"
	"github.com/provenlabs/opsledger/internal/domain"
	"github.com/provenlabs/opsledger/internal/runner"
)

func TestSubmitRun(t *testing.T) {
	t.Parallel()

	actor := &domain.User{ID: uuid.New(), Username: "operator"}
	admin := &domain.User{ID: uuid.New(), Username: "root", IsAdmin: true}
	ticketID := uuid.New()

	t.Run("proof_run_accepted", func(t *testing.T) {
		t.Parallel()

		_, api := humatest.New(t)
		submitter := &mockRunSubmitter{
			submitFunc: func(_ context.Context, got *domain.User, in runner.SubmitInput) (*domain.Run, error) {
				assert.Equal(t, actor.ID, got.ID)
				assert.Equal(t, domain.RunKindProof, in.Kind)
				assert.Equal(t, "proof.file_hash", in.ScriptID)
				return &domain.Run{
					ID:       uuid.New(),
					Kind:     in.Kind,
					Status:   domain.RunStatusPending,
					TicketID: in.TicketID,
				}, nil
			},
		}
		v1.RegisterRunRoutes(api, &mockDataStore{}, submitter)

		resp := api.PostCtx(userCtx(actor), "/runs", map[string]any{
			"ticket_id": ticketID.String(),
			"kind":      "proof",
			"script_id": "proof.file_hash",
		})

		require.Equal(t, http.StatusAccepted, resp.Code)

		var body domain.Run
		require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
		assert.Equal(t, domain.RunStatusPending, body.Status)
		assert.Equal(t, ticketID, body.TicketID)
	})

	t.Run("action_run_not_approved", func(t *testing.T) {
		t.Parallel()

		_, api := humatest.New(t)
		submitter := &mockRunSubmitter{
			submitFunc: func(context.Context, *domain.User, runner.SubmitInput) (*domain.Run, error) {
				return nil, fmt.Errorf("ticket must be approved: %w", domain.ErrPreconditionFailed)
			},
		}
		v1.RegisterRunRoutes(api, &mockDataStore{}, submitter)

		resp := api.PostCtx(userCtx(admin), "/runs", map[string]any{
			"ticket_id": ticketID.String(),
			"kind":      "action",
			"script_id": "restart-service",
		})
		assert.Equal(t, http.StatusConflict, resp.Code)
	})

	t.Run("action_run_needs_admin", func(t *testing.T) {
		t.Parallel()

		_, api := humatest.New(t)
		submitter := &mockRunSubmitter{
			submitFunc: func(context.Context, *domain.User, runner.SubmitInput) (*domain.Run, error) {
				return nil, domain.ErrPermissionDenied
			},
		}
		v1.RegisterRunRoutes(api, &mockDataStore{}, submitter)

		resp := api.PostCtx(userCtx(actor), "/runs", map[string]any{
			"ticket_id": ticketID.String(),
			"kind":      "action",
		})
		assert.Equal(t, http.StatusForbidden, resp.Code)
	})

	t.Run("invalid_kind_rejected_by_schema", func(t *testing.T) {
		t.Parallel()

		_, api := humatest.New(t)
		v1.RegisterRunRoutes(api, &mockDataStore{}, &mockRunSubmitter{})

		resp := api.PostCtx(userCtx(actor), "/runs", map[string]any{
			"ticket_id": ticketID.String(),
			"kind":      "dry_run",
		})
		assert.Equal(t, http.StatusUnprocessableEntity, resp.Code)
	})
}

func TestGetRun(t *testing.T) {
	t.Parallel()

	actor := &domain.User{ID: uuid.New(), Username: "operator"}
	runID := uuid.New()

	_, api := humatest.New(t)
	exitCode := 0
	store := &mockDataStore{
		runs: &mockRunRepo{
			getByIDFunc: func(_ context.Context, id uuid.UUID) (*domain.Run, error) {
				if id != runID {
					return nil, domain.ErrNotFound
				}
				return &domain.Run{
					ID:       id,
					Kind:     domain.RunKindProof,
					Status:   domain.RunStatusSuccess,
					ExitCode: &exitCode,
					OutputsManifest: map[string]any{
						"validation_report": map[string]any{"overall_result": "passed"},
					},
				}, nil
			},
		},
	}
	v1.RegisterRunRoutes(api, store, &mockRunSubmitter{})

	resp := api.GetCtx(userCtx(actor), fmt.Sprintf("/runs/%s", runID))
	require.Equal(t, http.StatusOK, resp.Code)

	var body domain.Run
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	assert.Equal(t, domain.RunStatusSuccess, body.Status)
	require.NotNil(t, body.ExitCode)
	assert.Equal(t, 0, *body.ExitCode)

	resp = api.GetCtx(userCtx(actor), fmt.Sprintf("/runs/%s", uuid.New()))
	assert.Equal(t, http.StatusNotFound, resp.Code)
}

func TestListRuns(t *testing.T) {
	t.Parallel()

	actor := &domain.User{ID: uuid.New(), Username: "operator"}
	ticketID := uuid.New()

	_, api := humatest.New(t)
	store := &mockDataStore{
		runs: &mockRunRepo{
			listByTicketFunc: func(_ context.Context, id uuid.UUID) ([]*domain.Run, error) {
				assert.Equal(t, ticketID, id)
				return []*domain.Run{
					{ID: uuid.New(), Status: domain.RunStatusFailed},
					{ID: uuid.New(), Status: domain.RunStatusSuccess},
				}, nil
			},
		},
	}
	v1.RegisterRunRoutes(api, store, &mockRunSubmitter{})

	resp := api.GetCtx(userCtx(actor), fmt.Sprintf("/runs?ticket_id=%s", ticketID))
	require.Equal(t, http.StatusOK, resp.Code)

	var body []*domain.Run
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	require.Len(t, body, 2)
	assert.Equal(t, domain.RunStatusFailed, body[0].Status)
}
