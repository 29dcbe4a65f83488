package v1_test

import (
	"context"

	"github.com/google/uuid"

	"github.com/provenlabs/opsledger/internal/domain"
	"github.com/provenlabs/opsledger/internal/runner"
	"github.com/provenlabs/opsledger/internal/server/middleware"
	"github.com/provenlabs/opsledger/internal/ticket"
)

// ---------------------------------------------------------------------------
// Context helpers — inject the authenticated user for DoCtx
// ---------------------------------------------------------------------------

func userCtx(u *domain.User) context.Context {
	return middleware.WithUser(context.Background(), u)
}

// ---------------------------------------------------------------------------
// Mock DataStore
// ---------------------------------------------------------------------------

type mockDataStore struct {
	users     domain.UserRepository
	assets    domain.AssetRepository
	tickets   domain.TicketRepository
	runs      domain.RunRepository
	artifacts domain.ArtifactRepository
}

func (m *mockDataStore) Users() domain.UserRepository         { return m.users }
func (m *mockDataStore) Assets() domain.AssetRepository       { return m.assets }
func (m *mockDataStore) Tickets() domain.TicketRepository     { return m.tickets }
func (m *mockDataStore) Runs() domain.RunRepository           { return m.runs }
func (m *mockDataStore) Artifacts() domain.ArtifactRepository { return m.artifacts }

// ---------------------------------------------------------------------------
// Mock RunRepository
// ---------------------------------------------------------------------------

type mockRunRepo struct {
	createForTicketFunc func(ctx context.Context, r *domain.Run, ticketStatus domain.TicketStatus) error
	getByIDFunc         func(ctx context.Context, id uuid.UUID) (*domain.Run, error)
	listByTicketFunc    func(ctx context.Context, ticketID uuid.UUID) ([]*domain.Run, error)
	claimPendingFunc    func(ctx context.Context, id uuid.UUID) (bool, error)
	finishFunc          func(ctx context.Context, id uuid.UUID, res domain.RunResult) error
}

func (m *mockRunRepo) CreateForTicket(ctx context.Context, r *domain.Run, ticketStatus domain.TicketStatus) error {
	return m.createForTicketFunc(ctx, r, ticketStatus)
}

func (m *mockRunRepo) GetByID(ctx context.Context, id uuid.UUID) (*domain.Run, error) {
	return m.getByIDFunc(ctx, id)
}

func (m *mockRunRepo) ListByTicket(ctx context.Context, ticketID uuid.UUID) ([]*domain.Run, error) {
	return m.listByTicketFunc(ctx, ticketID)
}

func (m *mockRunRepo) ClaimPending(ctx context.Context, id uuid.UUID) (bool, error) {
	return m.claimPendingFunc(ctx, id)
}

func (m *mockRunRepo) Finish(ctx context.Context, id uuid.UUID, res domain.RunResult) error {
	return m.finishFunc(ctx, id, res)
}

// ---------------------------------------------------------------------------
// Mock RunSubmitter
// ---------------------------------------------------------------------------

type mockRunSubmitter struct {
	submitFunc func(ctx context.Context, actor *domain.User, in runner.SubmitInput) (*domain.Run, error)
}

func (m *mockRunSubmitter) Submit(ctx context.Context, actor *domain.User, in runner.SubmitInput) (*domain.Run, error) {
	return m.submitFunc(ctx, actor, in)
}

// ---------------------------------------------------------------------------
// Mock TicketService
// ---------------------------------------------------------------------------

type mockTicketService struct {
	createFunc  func(ctx context.Context, actor *domain.User, in ticket.CreateInput) (*domain.Ticket, error)
	approveFunc func(ctx context.Context, actor *domain.User, id uuid.UUID) (*domain.Ticket, error)
	updateFunc  func(ctx context.Context, actor *domain.User, id uuid.UUID, in ticket.UpdateInput) (*domain.Ticket, error)
	closeFunc   func(ctx context.Context, actor *domain.User, id uuid.UUID) (*domain.Ticket, error)
	getFunc     func(ctx context.Context, id uuid.UUID) (*domain.Ticket, error)
	listFunc    func(ctx context.Context, limit, offset int) ([]*domain.Ticket, error)
}

func (m *mockTicketService) Create(ctx context.Context, actor *domain.User, in ticket.CreateInput) (*domain.Ticket, error) {
	return m.createFunc(ctx, actor, in)
}

func (m *mockTicketService) Approve(ctx context.Context, actor *domain.User, id uuid.UUID) (*domain.Ticket, error) {
	return m.approveFunc(ctx, actor, id)
}

func (m *mockTicketService) Update(ctx context.Context, actor *domain.User, id uuid.UUID, in ticket.UpdateInput) (*domain.Ticket, error) {
	return m.updateFunc(ctx, actor, id, in)
}

func (m *mockTicketService) Close(ctx context.Context, actor *domain.User, id uuid.UUID) (*domain.Ticket, error) {
	return m.closeFunc(ctx, actor, id)
}

func (m *mockTicketService) Get(ctx context.Context, id uuid.UUID) (*domain.Ticket, error) {
	return m.getFunc(ctx, id)
}

func (m *mockTicketService) List(ctx context.Context, limit, offset int) ([]*domain.Ticket, error) {
	return m.listFunc(ctx, limit, offset)
}
