package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/provenlabs/opsledger/internal/domain"
)

type TicketRepo struct {
	pool *pgxpool.Pool
}

func NewTicketRepo(pool *pgxpool.Pool) *TicketRepo {
	return &TicketRepo{pool: pool}
}

const ticketColumns = `id, title, description, status, asset_id, created_by, approved_by, created_at, updated_at`

func (r *TicketRepo) Create(ctx context.Context, t *domain.Ticket) error {
	_, err := r.pool.Exec(ctx,
		`INSERT INTO tickets (`+ticketColumns+`)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		t.ID, t.Title, t.Description, t.Status, t.AssetID,
		t.CreatedBy, t.ApprovedBy, t.CreatedAt, t.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("ticketRepo.Create: %w", err)
	}

	return nil
}

func (r *TicketRepo) GetByID(ctx context.Context, id uuid.UUID) (*domain.Ticket, error) {
	var t domain.Ticket

	err := r.pool.QueryRow(ctx,
		`SELECT `+ticketColumns+` FROM tickets WHERE id = $1`,
		id,
	).Scan(
		&t.ID, &t.Title, &t.Description, &t.Status, &t.AssetID,
		&t.CreatedBy, &t.ApprovedBy, &t.CreatedAt, &t.UpdatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("ticketRepo.GetByID: %w", domain.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("ticketRepo.GetByID: %w", err)
	}

	return &t, nil
}

func (r *TicketRepo) List(ctx context.Context, limit, offset int) ([]*domain.Ticket, error) {
	if limit <= 0 || limit > 1000 {
		limit = 100
	}

	rows, err := r.pool.Query(ctx,
		`SELECT `+ticketColumns+` FROM tickets
		 ORDER BY created_at DESC LIMIT $1 OFFSET $2`,
		limit, offset,
	)
	if err != nil {
		return nil, fmt.Errorf("ticketRepo.List: %w", err)
	}
	defer rows.Close()

	return scanTickets(rows, "ticketRepo.List")
}

func (r *TicketRepo) ListByCreator(ctx context.Context, creatorID uuid.UUID) ([]*domain.Ticket, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT `+ticketColumns+` FROM tickets
		 WHERE created_by = $1 ORDER BY created_at DESC LIMIT 1000`,
		creatorID,
	)
	if err != nil {
		return nil, fmt.Errorf("ticketRepo.ListByCreator: %w", err)
	}
	defer rows.Close()

	return scanTickets(rows, "ticketRepo.ListByCreator")
}

func (r *TicketRepo) Update(ctx context.Context, t *domain.Ticket) error {
	tag, err := r.pool.Exec(ctx,
		`UPDATE tickets SET title = $2, description = $3, status = $4, asset_id = $5, updated_at = $6
		 WHERE id = $1`,
		t.ID, t.Title, t.Description, t.Status, t.AssetID, t.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("ticketRepo.Update: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("ticketRepo.Update: %w", domain.ErrNotFound)
	}

	return nil
}

func (r *TicketRepo) UpdateStatus(ctx context.Context, id uuid.UUID, status domain.TicketStatus) error {
	tag, err := r.pool.Exec(ctx,
		`UPDATE tickets SET status = $2, updated_at = $3 WHERE id = $1`,
		id, status, time.Now().UTC(),
	)
	if err != nil {
		return fmt.Errorf("ticketRepo.UpdateStatus: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("ticketRepo.UpdateStatus: %w", domain.ErrNotFound)
	}

	return nil
}

// Approve is guarded on the current status so a concurrent approval or
// state change loses cleanly.
func (r *TicketRepo) Approve(ctx context.Context, id, approverID uuid.UUID) error {
	tag, err := r.pool.Exec(ctx,
		`UPDATE tickets SET status = $2, approved_by = $3, updated_at = $4
		 WHERE id = $1 AND status = $5`,
		id, domain.TicketStatusApproved, approverID, time.Now().UTC(), domain.TicketStatusSubmitted,
	)
	if err != nil {
		return fmt.Errorf("ticketRepo.Approve: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("ticketRepo.Approve: %w", domain.ErrInvalidTransition)
	}

	return nil
}

func scanTickets(rows pgx.Rows, caller string) ([]*domain.Ticket, error) {
	var tickets []*domain.Ticket
	for rows.Next() {
		var t domain.Ticket
		if err := rows.Scan(
			&t.ID, &t.Title, &t.Description, &t.Status, &t.AssetID,
			&t.CreatedBy, &t.ApprovedBy, &t.CreatedAt, &t.UpdatedAt,
		); err != nil {
			return nil, fmt.Errorf("%s: scan: %w", caller, err)
		}
		tickets = append(tickets, &t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%s: rows: %w", caller, err)
	}

	return tickets, nil
}
