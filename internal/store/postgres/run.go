package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/provenlabs/opsledger/internal/domain"
)

type RunRepo struct {
	pool *pgxpool.Pool
}

func NewRunRepo(pool *pgxpool.Pool) *RunRepo {
	return &RunRepo{pool: pool}
}

const runColumns = `id, kind, status, ticket_id, executed_by, script_id, validator_version, rules_version,
	inputs_manifest, outputs_manifest, execution_context,
	stdout_log, stderr_log, result_summary, exit_code, created_at, updated_at`

// CreateForTicket inserts the run row and moves the owning ticket in one
// transaction, mirroring Finish on the way in. The ticket row is locked
// and re-checked so a concurrent submit cannot slip a second run past the
// lifecycle guard.
func (r *RunRepo) CreateForTicket(ctx context.Context, run *domain.Run, ticketStatus domain.TicketStatus) error {
	inputs, outputs, execCtx, err := marshalManifests(run.InputsManifest, run.OutputsManifest, run.ExecutionContext)
	if err != nil {
		return fmt.Errorf("runRepo.CreateForTicket: %w", err)
	}

	tx, err := r.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return fmt.Errorf("runRepo.CreateForTicket: begin: %w", err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck // rollback after commit is a no-op

	var current domain.TicketStatus
	err = tx.QueryRow(ctx,
		`SELECT status FROM tickets WHERE id = $1 FOR UPDATE`,
		run.TicketID,
	).Scan(&current)
	if errors.Is(err, pgx.ErrNoRows) {
		return fmt.Errorf("runRepo.CreateForTicket: ticket %s: %w", run.TicketID, domain.ErrNotFound)
	}
	if err != nil {
		return fmt.Errorf("runRepo.CreateForTicket: lock ticket: %w", err)
	}
	if !current.ValidTransition(ticketStatus) {
		return fmt.Errorf("runRepo.CreateForTicket: ticket %s is %q, cannot move to %q: %w",
			run.TicketID, current, ticketStatus, domain.ErrInvalidTransition)
	}

	_, err = tx.Exec(ctx,
		`INSERT INTO runs (`+runColumns+`)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17)`,
		run.ID, run.Kind, run.Status, run.TicketID, run.ExecutedBy,
		run.ScriptID, run.ValidatorVersion, run.RulesVersion,
		inputs, outputs, execCtx,
		run.StdoutLog, run.StderrLog, run.ResultSummary, run.ExitCode,
		run.CreatedAt, run.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("runRepo.CreateForTicket: insert run: %w", err)
	}

	_, err = tx.Exec(ctx,
		`UPDATE tickets SET status = $2, updated_at = $3 WHERE id = $1`,
		run.TicketID, ticketStatus, time.Now().UTC(),
	)
	if err != nil {
		return fmt.Errorf("runRepo.CreateForTicket: update ticket: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("runRepo.CreateForTicket: commit: %w", err)
	}

	return nil
}

func (r *RunRepo) GetByID(ctx context.Context, id uuid.UUID) (*domain.Run, error) {
	row := r.pool.QueryRow(ctx, `SELECT `+runColumns+` FROM runs WHERE id = $1`, id)

	run, err := scanRun(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("runRepo.GetByID: %w", domain.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("runRepo.GetByID: %w", err)
	}

	return run, nil
}

func (r *RunRepo) ListByTicket(ctx context.Context, ticketID uuid.UUID) ([]*domain.Run, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT `+runColumns+` FROM runs WHERE ticket_id = $1 ORDER BY created_at LIMIT 1000`,
		ticketID,
	)
	if err != nil {
		return nil, fmt.Errorf("runRepo.ListByTicket: %w", err)
	}
	defer rows.Close()

	var runs []*domain.Run
	for rows.Next() {
		run, scanErr := scanRun(rows)
		if scanErr != nil {
			return nil, fmt.Errorf("runRepo.ListByTicket: %w", scanErr)
		}
		runs = append(runs, run)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("runRepo.ListByTicket: rows: %w", err)
	}

	return runs, nil
}

// ClaimPending flips pending to running for exactly one caller. A second
// concurrent claim affects zero rows and returns false without error.
func (r *RunRepo) ClaimPending(ctx context.Context, id uuid.UUID) (bool, error) {
	tag, err := r.pool.Exec(ctx,
		`UPDATE runs SET status = $2, updated_at = $3 WHERE id = $1 AND status = $4`,
		id, domain.RunStatusRunning, time.Now().UTC(), domain.RunStatusPending,
	)
	if err != nil {
		return false, fmt.Errorf("runRepo.ClaimPending: %w", err)
	}

	return tag.RowsAffected() == 1, nil
}

// Finish applies the terminal run result and the owning ticket's resulting
// status in one transaction: both changes land or neither does.
func (r *RunRepo) Finish(ctx context.Context, id uuid.UUID, res domain.RunResult) error {
	if !res.Status.Terminal() {
		return fmt.Errorf("runRepo.Finish: status %q is not terminal: %w", res.Status, domain.ErrInvalidTransition)
	}

	inputs, outputs, _, err := marshalManifests(res.InputsManifest, res.OutputsManifest, nil)
	if err != nil {
		return fmt.Errorf("runRepo.Finish: %w", err)
	}

	tx, err := r.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return fmt.Errorf("runRepo.Finish: begin: %w", err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck // rollback after commit is a no-op

	now := time.Now().UTC()

	var ticketID uuid.UUID
	err = tx.QueryRow(ctx,
		`UPDATE runs SET status = $2, result_summary = $3, stdout_log = $4, stderr_log = $5,
		        exit_code = $6, inputs_manifest = $7, outputs_manifest = $8,
		        validator_version = COALESCE(NULLIF($9, ''), validator_version), updated_at = $10
		 WHERE id = $1 AND status = $11
		 RETURNING ticket_id`,
		id, res.Status, res.ResultSummary, res.StdoutLog, res.StderrLog,
		res.ExitCode, inputs, outputs, res.ValidatorVersion, now,
		domain.RunStatusRunning,
	).Scan(&ticketID)
	if errors.Is(err, pgx.ErrNoRows) {
		return fmt.Errorf("runRepo.Finish: run %s not running: %w", id, domain.ErrInvalidTransition)
	}
	if err != nil {
		return fmt.Errorf("runRepo.Finish: update run: %w", err)
	}

	_, err = tx.Exec(ctx,
		`UPDATE tickets SET status = $2, updated_at = $3 WHERE id = $1`,
		ticketID, res.Status.TicketStatusFor(), now,
	)
	if err != nil {
		return fmt.Errorf("runRepo.Finish: update ticket: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("runRepo.Finish: commit: %w", err)
	}

	return nil
}

func marshalManifests(inputs, outputs, execCtx map[string]any) ([]byte, []byte, []byte, error) {
	marshal := func(m map[string]any) ([]byte, error) {
		if m == nil {
			return nil, nil
		}
		b, err := json.Marshal(m)
		if err != nil {
			return nil, fmt.Errorf("marshal manifest: %w", err)
		}
		return b, nil
	}

	in, err := marshal(inputs)
	if err != nil {
		return nil, nil, nil, err
	}
	out, err := marshal(outputs)
	if err != nil {
		return nil, nil, nil, err
	}
	ec, err := marshal(execCtx)
	if err != nil {
		return nil, nil, nil, err
	}

	return in, out, ec, nil
}

func scanRun(row pgx.Row) (*domain.Run, error) {
	var (
		run                      domain.Run
		inputs, outputs, execCtx []byte
	)

	if err := row.Scan(
		&run.ID, &run.Kind, &run.Status, &run.TicketID, &run.ExecutedBy,
		&run.ScriptID, &run.ValidatorVersion, &run.RulesVersion,
		&inputs, &outputs, &execCtx,
		&run.StdoutLog, &run.StderrLog, &run.ResultSummary, &run.ExitCode,
		&run.CreatedAt, &run.UpdatedAt,
	); err != nil {
		return nil, err
	}

	for _, pair := range []struct {
		raw []byte
		dst *map[string]any
	}{
		{inputs, &run.InputsManifest},
		{outputs, &run.OutputsManifest},
		{execCtx, &run.ExecutionContext},
	} {
		if len(pair.raw) == 0 {
			continue
		}
		if err := json.Unmarshal(pair.raw, pair.dst); err != nil {
			return nil, fmt.Errorf("unmarshal manifest: %w", err)
		}
	}

	return &run, nil
}
