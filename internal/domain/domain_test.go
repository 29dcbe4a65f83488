package domain_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/provenlabs/opsledger/internal/domain"
)

// ---------------------------------------------------------------------------
// 1. TicketStatus.ValidTransition — lifecycle matrix.
// ---------------------------------------------------------------------------

func TestTicketStatus_ValidTransition(t *testing.T) {
	t.Parallel()

	tests := []struct {
		from domain.TicketStatus
		to   domain.TicketStatus
		want bool
	}{
		// From draft.
		{domain.TicketStatusDraft, domain.TicketStatusSubmitted, true},
		{domain.TicketStatusDraft, domain.TicketStatusApproved, false},
		{domain.TicketStatusDraft, domain.TicketStatusRunning, false},

		// From submitted: approval, or a proof run starting directly.
		{domain.TicketStatusSubmitted, domain.TicketStatusApproved, true},
		{domain.TicketStatusSubmitted, domain.TicketStatusRunning, true},
		{domain.TicketStatusSubmitted, domain.TicketStatusDone, false},
		{domain.TicketStatusSubmitted, domain.TicketStatusDraft, false},

		// From approved.
		{domain.TicketStatusApproved, domain.TicketStatusRunning, true},
		{domain.TicketStatusApproved, domain.TicketStatusSubmitted, false},
		{domain.TicketStatusApproved, domain.TicketStatusDone, false},

		// From running.
		{domain.TicketStatusRunning, domain.TicketStatusDone, true},
		{domain.TicketStatusRunning, domain.TicketStatusFailed, true},
		{domain.TicketStatusRunning, domain.TicketStatusApproved, false},

		// From done/failed: only close remains.
		{domain.TicketStatusDone, domain.TicketStatusRunning, false},
		{domain.TicketStatusFailed, domain.TicketStatusRunning, false},

		// Administrative close from any non-terminal state.
		{domain.TicketStatusDraft, domain.TicketStatusClosed, true},
		{domain.TicketStatusSubmitted, domain.TicketStatusClosed, true},
		{domain.TicketStatusApproved, domain.TicketStatusClosed, true},
		{domain.TicketStatusRunning, domain.TicketStatusClosed, true},
		{domain.TicketStatusDone, domain.TicketStatusClosed, true},
		{domain.TicketStatusFailed, domain.TicketStatusClosed, true},
		{domain.TicketStatusClosed, domain.TicketStatusClosed, false},

		// Closed is terminal.
		{domain.TicketStatusClosed, domain.TicketStatusSubmitted, false},
		{domain.TicketStatusClosed, domain.TicketStatusRunning, false},
	}

	for _, tt := range tests {
		t.Run(string(tt.from)+"->"+string(tt.to), func(t *testing.T) {
			t.Parallel()

			assert.Equal(t, tt.want, tt.from.ValidTransition(tt.to))
		})
	}
}

// ---------------------------------------------------------------------------
// 2. RunStatus — transition matrix and terminal mapping.
// ---------------------------------------------------------------------------

func TestRunStatus_ValidTransition(t *testing.T) {
	t.Parallel()

	tests := []struct {
		from domain.RunStatus
		to   domain.RunStatus
		want bool
	}{
		{domain.RunStatusPending, domain.RunStatusRunning, true},
		{domain.RunStatusPending, domain.RunStatusSuccess, false},
		{domain.RunStatusPending, domain.RunStatusFailed, false},
		{domain.RunStatusPending, domain.RunStatusPending, false},

		{domain.RunStatusRunning, domain.RunStatusSuccess, true},
		{domain.RunStatusRunning, domain.RunStatusFailed, true},
		{domain.RunStatusRunning, domain.RunStatusTimeout, true},
		{domain.RunStatusRunning, domain.RunStatusPending, false},
		{domain.RunStatusRunning, domain.RunStatusRunning, false},

		{domain.RunStatusSuccess, domain.RunStatusRunning, false},
		{domain.RunStatusFailed, domain.RunStatusRunning, false},
		{domain.RunStatusTimeout, domain.RunStatusRunning, false},
	}

	for _, tt := range tests {
		t.Run(string(tt.from)+"->"+string(tt.to), func(t *testing.T) {
			t.Parallel()

			assert.Equal(t, tt.want, tt.from.ValidTransition(tt.to))
		})
	}
}

func TestRunStatus_Terminal(t *testing.T) {
	t.Parallel()

	assert.False(t, domain.RunStatusPending.Terminal())
	assert.False(t, domain.RunStatusRunning.Terminal())
	assert.True(t, domain.RunStatusSuccess.Terminal())
	assert.True(t, domain.RunStatusFailed.Terminal())
	assert.True(t, domain.RunStatusTimeout.Terminal())
}

func TestRunStatus_TicketStatusFor(t *testing.T) {
	t.Parallel()

	assert.Equal(t, domain.TicketStatusDone, domain.RunStatusSuccess.TicketStatusFor())
	assert.Equal(t, domain.TicketStatusFailed, domain.RunStatusFailed.TicketStatusFor())
	assert.Equal(t, domain.TicketStatusFailed, domain.RunStatusTimeout.TicketStatusFor())
}
