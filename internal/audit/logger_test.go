package audit_test

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/provenlabs/opsledger/internal/audit"
)

func newLogger(t *testing.T) (*audit.Logger, string) {
	t.Helper()

	dir := t.TempDir()
	l, err := audit.NewLogger(dir)
	require.NoError(t, err)
	return l, dir
}

func TestLogger_Log_WritesBothRepresentations(t *testing.T) {
	t.Parallel()

	l, dir := newLogger(t)
	actorID := uuid.New()
	resourceID := uuid.New()

	err := l.Log(context.Background(), audit.Event{
		Type:          audit.EventTicketCreated,
		ActorID:       &actorID,
		ActorUsername: "alice",
		ResourceType:  "ticket",
		ResourceID:    &resourceID,
		Action:        "Created ticket: replace core switch",
		Success:       true,
	})
	require.NoError(t, err)

	date := time.Now().UTC().Format("2006-01-02")

	jsonl, err := os.ReadFile(filepath.Join(dir, "audit_"+date+".jsonl"))
	require.NoError(t, err)
	assert.Contains(t, string(jsonl), `"event_type":"ticket.created"`)
	assert.True(t, strings.HasSuffix(string(jsonl), "\n"))

	readable, err := os.ReadFile(filepath.Join(dir, "audit_readable_"+date+".log"))
	require.NoError(t, err)
	assert.Contains(t, string(readable), "|ticket.created|alice("+actorID.String()+")|ticket:"+resourceID.String()+"|SUCCESS|")
}

func TestLogger_Query_ConjunctiveFilters(t *testing.T) {
	t.Parallel()

	l, _ := newLogger(t)
	ctx := context.Background()

	runA := uuid.New()
	runB := uuid.New()
	actor := uuid.New()

	// Interleave events for two runs.
	for i, ev := range []struct {
		typ audit.EventType
		run uuid.UUID
	}{
		{audit.EventRunStarted, runA},
		{audit.EventRunStarted, runB},
		{audit.EventRunCompleted, runA},
		{audit.EventRunFailed, runB},
	} {
		id := ev.run
		require.NoError(t, l.Log(ctx, audit.Event{
			Type:         ev.typ,
			Timestamp:    time.Now().UTC().Add(time.Duration(i) * time.Millisecond),
			ActorID:      &actor,
			ResourceType: "run",
			ResourceID:   &id,
			Action:       string(ev.typ),
			Success:      ev.typ != audit.EventRunFailed,
		}))
	}

	got, err := l.Query(ctx, audit.Filter{ResourceType: "run", ResourceID: &runA}, 50)
	require.NoError(t, err)
	require.Len(t, got, 2)

	// Creation order is preserved regardless of interleaving.
	assert.Equal(t, audit.EventRunStarted, got[0].Type)
	assert.Equal(t, audit.EventRunCompleted, got[1].Type)
}

func TestLogger_Query_Limit(t *testing.T) {
	t.Parallel()

	l, _ := newLogger(t)
	ctx := context.Background()

	for range 10 {
		require.NoError(t, l.Log(ctx, audit.Event{
			Type:    audit.EventUserLogin,
			Action:  "login",
			Success: true,
		}))
	}

	got, err := l.Query(ctx, audit.Filter{Type: audit.EventUserLogin}, 3)
	require.NoError(t, err)
	assert.Len(t, got, 3)
}

func TestLogger_Query_SkipsCorruptLines(t *testing.T) {
	t.Parallel()

	l, dir := newLogger(t)
	ctx := context.Background()

	require.NoError(t, l.Log(ctx, audit.Event{Type: audit.EventRunStarted, Action: "a", Success: true}))

	// Corrupt the partition with a torn line, then append another event.
	date := time.Now().UTC().Format("2006-01-02")
	path := filepath.Join(dir, "audit_"+date+".jsonl")
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_APPEND, 0o640)
	require.NoError(t, err)
	_, err = f.WriteString("{\"event_type\": \"run.\n")
	require.NoError(t, err)
	require.NoError(t, f.Close())

	require.NoError(t, l.Log(ctx, audit.Event{Type: audit.EventRunCompleted, Action: "b", Success: true}))

	got, err := l.Query(ctx, audit.Filter{}, 100)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, audit.EventRunStarted, got[0].Type)
	assert.Equal(t, audit.EventRunCompleted, got[1].Type)
}

func TestLogger_Query_TimeRange(t *testing.T) {
	t.Parallel()

	l, _ := newLogger(t)
	ctx := context.Background()

	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	for i := range 3 {
		require.NoError(t, l.Log(ctx, audit.Event{
			Type:      audit.EventTicketApproved,
			Timestamp: base.Add(time.Duration(i) * time.Hour),
			Action:    "approve",
			Success:   true,
		}))
	}

	got, err := l.Query(ctx, audit.Filter{
		Since: base.Add(30 * time.Minute),
		Until: base.Add(90 * time.Minute),
	}, 100)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, base.Add(time.Hour), got[0].Timestamp)
}

func TestEvent_LogLine_SystemActor(t *testing.T) {
	t.Parallel()

	line := audit.Event{
		Type:      audit.EventArtifactVerified,
		Timestamp: time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC),
		Action:    "Artifact verification: failed",
		Success:   false,
	}.LogLine()

	assert.Contains(t, line, "|artifact.verified|system|none|FAILED|Artifact verification: failed")
}
