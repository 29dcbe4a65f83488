// Package runner implements the run execution engine: it creates runs
// against a ticket's lifecycle, drives each one through
// pending -> running -> terminal on a background worker, and records an
// audit event for every transition.
package runner

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/provenlabs/opsledger/internal/audit"
	"github.com/provenlabs/opsledger/internal/domain"
	redisstore "github.com/provenlabs/opsledger/internal/store/redis"
	"github.com/provenlabs/opsledger/internal/validate"
)

// ArtifactSource is the slice of the artifact service the executor needs:
// evidence listing in creation order and stored-hash verification.
type ArtifactSource interface {
	ListByRun(ctx context.Context, runID uuid.UUID) ([]*domain.Artifact, error)
	Verify(ctx context.Context, artifactID uuid.UUID) (bool, error)
}

// Publisher abstracts the pub/sub publish operation for live run events.
type Publisher interface {
	Publish(ctx context.Context, channel string, payload []byte) error
}

// Notifier receives out-of-band alerts about failed runs.
type Notifier interface {
	Notify(ctx context.Context, message string) error
}

// Options tunes the executor's worker pool and per-run deadline.
type Options struct {
	Timeout time.Duration
	Workers int
	Queue   int
}

// Executor owns the run lifecycle end to end. Once a run is enqueued,
// exactly one worker drives it; no other writer touches its status.
type Executor struct {
	runs      domain.RunRepository
	tickets   domain.TicketRepository
	users     domain.UserRepository
	artifacts ArtifactSource
	registry  *validate.Registry
	scripts   ScriptRunner
	auditor   *audit.Logger
	pubsub    Publisher // nil disables live events
	notifier  Notifier  // nil disables alerts
	opts      Options

	jobs chan uuid.UUID
	wg   sync.WaitGroup
	once sync.Once
	done chan struct{}
}

func New(
	runs domain.RunRepository,
	tickets domain.TicketRepository,
	users domain.UserRepository,
	artifacts ArtifactSource,
	registry *validate.Registry,
	scripts ScriptRunner,
	auditor *audit.Logger,
	pubsub Publisher,
	notifier Notifier,
	opts Options,
) *Executor {
	if opts.Workers < 1 {
		opts.Workers = 1
	}
	if opts.Queue < 1 {
		opts.Queue = 16
	}
	if opts.Timeout <= 0 {
		opts.Timeout = 5 * time.Minute
	}

	return &Executor{
		runs:      runs,
		tickets:   tickets,
		users:     users,
		artifacts: artifacts,
		registry:  registry,
		scripts:   scripts,
		auditor:   auditor,
		pubsub:    pubsub,
		notifier:  notifier,
		opts:      opts,
		jobs:      make(chan uuid.UUID, opts.Queue),
		done:      make(chan struct{}),
	}
}

// Start launches the worker pool. Workers drain the queue until Shutdown.
func (e *Executor) Start(ctx context.Context) {
	for range e.opts.Workers {
		e.wg.Add(1)
		go func() {
			defer e.wg.Done()
			for {
				select {
				case <-e.done:
					return
				case runID, ok := <-e.jobs:
					if !ok {
						return
					}
					e.execute(ctx, runID)
				}
			}
		}()
	}
}

// Shutdown stops accepting work and waits for in-flight runs to finish.
func (e *Executor) Shutdown() {
	e.once.Do(func() { close(e.done) })
	e.wg.Wait()
}

// SubmitInput describes a run creation request.
type SubmitInput struct {
	TicketID         uuid.UUID
	Kind             domain.RunKind
	ScriptID         string
	ExecutionContext map[string]any
}

// Submit checks preconditions, creates the run in pending state, moves
// the ticket to running, and hands the run to the worker pool. It returns
// as soon as the run row and its creation audit event are durable;
// execution proceeds in the background.
//
// Preconditions are checked before any row exists: an action run needs an
// approved ticket and an admin actor. Violations leave no trace beyond
// the error.
func (e *Executor) Submit(ctx context.Context, actor *domain.User, in SubmitInput) (*domain.Run, error) {
	if in.Kind != domain.RunKindProof && in.Kind != domain.RunKindAction {
		return nil, fmt.Errorf("runner.Executor.Submit: unknown run kind %q: %w", in.Kind, domain.ErrPreconditionFailed)
	}

	ticket, err := e.tickets.GetByID(ctx, in.TicketID)
	if err != nil {
		return nil, fmt.Errorf("runner.Executor.Submit: get ticket: %w", err)
	}

	if in.Kind == domain.RunKindAction {
		if !actor.IsAdmin {
			return nil, fmt.Errorf("runner.Executor.Submit: action runs require admin: %w", domain.ErrPermissionDenied)
		}
		if ticket.Status != domain.TicketStatusApproved {
			return nil, fmt.Errorf("runner.Executor.Submit: ticket %s is %q, must be approved for action runs: %w",
				ticket.ID, ticket.Status, domain.ErrPreconditionFailed)
		}
	}

	if !ticket.Status.ValidTransition(domain.TicketStatusRunning) {
		return nil, fmt.Errorf("runner.Executor.Submit: ticket %s cannot start a run from %q: %w",
			ticket.ID, ticket.Status, domain.ErrInvalidTransition)
	}

	now := time.Now().UTC()
	run := &domain.Run{
		ID:               uuid.New(),
		Kind:             in.Kind,
		Status:           domain.RunStatusPending,
		TicketID:         in.TicketID,
		ExecutedBy:       actor.ID,
		ScriptID:         in.ScriptID,
		ExecutionContext: in.ExecutionContext,
		CreatedAt:        now,
		UpdatedAt:        now,
	}

	// The run row and the ticket's move to running are one write: a
	// pending run against a still-submitted ticket, or a running ticket
	// with no run, would both be half-applied states.
	if err := e.runs.CreateForTicket(ctx, run, domain.TicketStatusRunning); err != nil {
		return nil, fmt.Errorf("runner.Executor.Submit: create run: %w", err)
	}

	if err := e.auditor.Log(ctx, audit.Event{
		Type:          audit.EventRunCreated,
		ActorID:       &actor.ID,
		ActorUsername: actor.Username,
		ResourceType:  "run",
		ResourceID:    &run.ID,
		Action:        fmt.Sprintf("Created %s run for ticket %s", in.Kind, ticket.ID),
		Details: map[string]any{
			"run_kind":  string(in.Kind),
			"ticket_id": ticket.ID.String(),
			"script_id": in.ScriptID,
		},
		Success: true,
	}); err != nil {
		// The run is already durable and the ticket is running; bailing
		// out here would strand the ticket with nothing left to move it.
		log.Error().Err(err).Str("run_id", run.ID.String()).Msg("runner: audit append failed")
	}

	select {
	case e.jobs <- run.ID:
	case <-e.done:
		return nil, fmt.Errorf("runner.Executor.Submit: executor is shut down")
	case <-ctx.Done():
		return nil, fmt.Errorf("runner.Executor.Submit: %w", ctx.Err())
	}

	return run, nil
}

// execute drives one run to a terminal state. Failures here are never
// re-raised to the submitter; they land in the run's logs and the audit
// trail.
func (e *Executor) execute(ctx context.Context, runID uuid.UUID) {
	claimed, err := e.runs.ClaimPending(ctx, runID)
	if err != nil {
		log.Error().Err(err).Str("run_id", runID.String()).Msg("runner: claim failed")
		return
	}
	if !claimed {
		// Someone else already owns this run; a second execution would
		// duplicate artifacts and audit events.
		log.Debug().Str("run_id", runID.String()).Msg("runner: run already claimed")
		return
	}

	run, err := e.runs.GetByID(ctx, runID)
	if err != nil {
		log.Error().Err(err).Str("run_id", runID.String()).Msg("runner: load run")
		return
	}

	e.logTransition(ctx, run, domain.RunStatusRunning, nil)
	e.publishEvent(ctx, run.ID, domain.RunStatusRunning)

	runCtx, cancel := context.WithTimeout(ctx, e.opts.Timeout)
	defer cancel()

	var res domain.RunResult
	switch run.Kind {
	case domain.RunKindProof:
		res, err = e.executeProof(runCtx, run)
	case domain.RunKindAction:
		res, err = e.executeAction(runCtx, run)
	default:
		err = fmt.Errorf("unknown run kind %q", run.Kind)
	}

	// Only the per-run deadline counts as a timeout. Parent cancellation
	// (graceful shutdown) also surfaces through runCtx and must not be
	// reported as the run exceeding its budget.
	timedOut := err != nil && errors.Is(runCtx.Err(), context.DeadlineExceeded)

	switch {
	case timedOut:
		res = domain.RunResult{
			Status:        domain.RunStatusTimeout,
			ResultSummary: "Run execution timed out",
			StderrLog:     fmt.Sprintf("Execution exceeded timeout of %s", e.opts.Timeout),
		}
	case err != nil:
		res = domain.RunResult{
			Status:        domain.RunStatusFailed,
			ResultSummary: "Run failed: " + err.Error(),
			StderrLog:     err.Error(),
		}
	}

	// The terminal write survives both the expired run deadline and a
	// canceled parent; a run stuck in running has no other way out.
	finishCtx := context.WithoutCancel(ctx)
	if finishErr := e.runs.Finish(finishCtx, run.ID, res); finishErr != nil {
		log.Error().Err(finishErr).Str("run_id", run.ID.String()).Msg("runner: terminal write failed")
		return
	}

	e.logTransition(finishCtx, run, res.Status, res.ExitCode)
	e.publishEvent(finishCtx, run.ID, res.Status)

	if res.Status != domain.RunStatusSuccess && e.notifier != nil {
		msg := fmt.Sprintf("Run %s (%s) for ticket %s finished %s: %s",
			run.ID, run.Kind, run.TicketID, res.Status, res.ResultSummary)
		if notifyErr := e.notifier.Notify(finishCtx, msg); notifyErr != nil {
			log.Warn().Err(notifyErr).Msg("runner: failure notification")
		}
	}
}

// executeProof validates every artifact attached to the run against its
// recorded hash and assembles the validation report.
func (e *Executor) executeProof(ctx context.Context, run *domain.Run) (domain.RunResult, error) {
	artifacts, err := e.artifacts.ListByRun(ctx, run.ID)
	if err != nil {
		return domain.RunResult{}, fmt.Errorf("list artifacts: %w", err)
	}

	// A proof run without evidence cannot prove anything. This is policy,
	// not an error path.
	if len(artifacts) == 0 {
		return domain.RunResult{
			Status:        domain.RunStatusFailed,
			ResultSummary: "No artifacts found to validate",
			StderrLog:     "Proof run requires at least one artifact",
		}, nil
	}

	validatorName, validatorVersion := "default", "1.0.0"
	if run.ScriptID != "" {
		if spec, ok := e.registry.Get(run.ScriptID); ok {
			validatorName, validatorVersion = spec.Name, spec.Version
		}
	}

	inputs := make([]map[string]any, 0, len(artifacts))
	for _, a := range artifacts {
		inputs = append(inputs, map[string]any{
			"id":         a.ID.String(),
			"filename":   a.Filename,
			"sha256":     a.SHA256Hash,
			"size_bytes": a.SizeBytes,
		})
	}

	results := make([]map[string]any, 0, len(artifacts))
	stdout := make([]string, 0, len(artifacts)+1)
	allValid := true

	// Validated in retrieval (creation) order; the report preserves it
	// for reproducibility.
	for _, a := range artifacts {
		if ctx.Err() != nil {
			return domain.RunResult{}, ctx.Err()
		}

		verified, verifyErr := e.artifacts.Verify(ctx, a.ID)

		switch {
		case verifyErr != nil:
			results = append(results, map[string]any{
				"artifact_id": a.ID.String(),
				"filename":    a.Filename,
				"validation":  "error",
				"error":       verifyErr.Error(),
			})
			stdout = append(stdout, "- "+a.Filename+": error")
			allValid = false

		case verified:
			results = append(results, map[string]any{
				"artifact_id":   a.ID.String(),
				"filename":      a.Filename,
				"validation":    "passed",
				"hash_verified": true,
			})
			stdout = append(stdout, "- "+a.Filename+": passed")

		default:
			results = append(results, map[string]any{
				"artifact_id":   a.ID.String(),
				"filename":      a.Filename,
				"validation":    "failed",
				"hash_verified": false,
			})
			stdout = append(stdout, "- "+a.Filename+": failed")
			allValid = false
		}
	}

	overall := "passed"
	exitCode := 0
	if !allValid {
		overall = "failed"
		exitCode = 1
	}

	report := map[string]any{
		"timestamp":          time.Now().UTC().Format(time.RFC3339Nano),
		"run_id":             run.ID.String(),
		"ticket_id":          run.TicketID.String(),
		"validator":          validatorName,
		"validator_version":  validatorVersion,
		"total_artifacts":    len(artifacts),
		"validation_results": results,
		"overall_result":     overall,
	}

	status := domain.RunStatusSuccess
	if !allValid {
		status = domain.RunStatusFailed
	}

	return domain.RunResult{
		Status:           status,
		ResultSummary:    fmt.Sprintf("Validation %s: %d artifact(s) checked", overall, len(artifacts)),
		StdoutLog:        fmt.Sprintf("Validated %d artifacts\n%s", len(artifacts), strings.Join(stdout, "\n")),
		ExitCode:         &exitCode,
		InputsManifest:   map[string]any{"artifacts": inputs},
		OutputsManifest:  map[string]any{"validation_report": report},
		ValidatorVersion: validatorVersion,
	}, nil
}

// executeAction hands the run to the script backend and normalizes its
// result. The backend's ctx is the timeout signal.
func (e *Executor) executeAction(ctx context.Context, run *domain.Run) (domain.RunResult, error) {
	scriptRes, err := e.scripts.Run(ctx, run)
	if err != nil {
		return domain.RunResult{}, fmt.Errorf("script runner: %w", err)
	}

	if !scriptRes.Status.Terminal() {
		return domain.RunResult{}, fmt.Errorf("script runner returned non-terminal status %q", scriptRes.Status)
	}

	return domain.RunResult{
		Status:        scriptRes.Status,
		ResultSummary: scriptRes.Summary,
		StdoutLog:     scriptRes.Stdout,
		StderrLog:     scriptRes.Stderr,
		ExitCode:      scriptRes.ExitCode,
	}, nil
}

// logTransition emits exactly one audit event for a run status change.
// The success flag mirrors "reached success", including on the running
// transition, matching how the report consumers read the trail.
func (e *Executor) logTransition(ctx context.Context, run *domain.Run, status domain.RunStatus, exitCode *int) {
	eventType := audit.EventRunStarted
	switch status {
	case domain.RunStatusSuccess:
		eventType = audit.EventRunCompleted
	case domain.RunStatusFailed:
		eventType = audit.EventRunFailed
	case domain.RunStatusTimeout:
		eventType = audit.EventRunTimeout
	}

	username := ""
	if u, err := e.users.GetByID(ctx, run.ExecutedBy); err == nil {
		username = u.Username
	}

	details := map[string]any{
		"ticket_id": run.TicketID.String(),
		"success":   status == domain.RunStatusSuccess,
	}
	if exitCode != nil {
		details["exit_code"] = *exitCode
	}

	actorID := run.ExecutedBy
	if err := e.auditor.Log(ctx, audit.Event{
		Type:          eventType,
		ActorID:       &actorID,
		ActorUsername: username,
		ResourceType:  "run",
		ResourceID:    &run.ID,
		Action:        fmt.Sprintf("Run status updated to %s", status),
		Details:       details,
		Success:       status == domain.RunStatusSuccess,
	}); err != nil {
		log.Error().Err(err).Str("run_id", run.ID.String()).Msg("runner: audit append failed")
	}
}

func (e *Executor) publishEvent(ctx context.Context, runID uuid.UUID, status domain.RunStatus) {
	if e.pubsub == nil {
		return
	}

	payload, err := json.Marshal(map[string]any{
		"type":      "status_change",
		"run_id":    runID.String(),
		"status":    string(status),
		"timestamp": time.Now().UTC().Format(time.RFC3339Nano),
	})
	if err != nil {
		return
	}

	if err := e.pubsub.Publish(ctx, redisstore.RunChannel(runID), payload); err != nil {
		log.Debug().Err(err).Str("run_id", runID.String()).Msg("runner: publish run event")
	}
}
