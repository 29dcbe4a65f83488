package v1

import (
	"context"
	"io"

	"github.com/google/uuid"

	"github.com/provenlabs/opsledger/internal/artifact"
	"github.com/provenlabs/opsledger/internal/auth"
	"github.com/provenlabs/opsledger/internal/domain"
	"github.com/provenlabs/opsledger/internal/runner"
	"github.com/provenlabs/opsledger/internal/ticket"
)

// DataStore abstracts the repository accessor pattern for handler testing.
// *postgres.Store satisfies this interface.
type DataStore interface {
	Users() domain.UserRepository
	Assets() domain.AssetRepository
	Tickets() domain.TicketRepository
	Runs() domain.RunRepository
	Artifacts() domain.ArtifactRepository
}

// AuthService abstracts authentication operations for handler testing.
// *auth.Service satisfies this interface.
type AuthService interface {
	Register(ctx context.Context, in auth.RegisterInput) (*domain.User, error)
	Login(ctx context.Context, username, password, ipAddress string) (*domain.User, string, error)
}

// TicketService abstracts the ticket workflow for handler testing.
// *ticket.Service satisfies this interface.
type TicketService interface {
	Create(ctx context.Context, actor *domain.User, in ticket.CreateInput) (*domain.Ticket, error)
	Approve(ctx context.Context, actor *domain.User, id uuid.UUID) (*domain.Ticket, error)
	Update(ctx context.Context, actor *domain.User, id uuid.UUID, in ticket.UpdateInput) (*domain.Ticket, error)
	Close(ctx context.Context, actor *domain.User, id uuid.UUID) (*domain.Ticket, error)
	Get(ctx context.Context, id uuid.UUID) (*domain.Ticket, error)
	List(ctx context.Context, limit, offset int) ([]*domain.Ticket, error)
}

// RunSubmitter abstracts run creation for handler testing.
// *runner.Executor satisfies this interface.
type RunSubmitter interface {
	Submit(ctx context.Context, actor *domain.User, in runner.SubmitInput) (*domain.Run, error)
}

// ArtifactService abstracts artifact operations for handler testing.
// *artifact.Service satisfies this interface.
type ArtifactService interface {
	Upload(ctx context.Context, actor *domain.User, r io.Reader, in artifact.UploadInput) (*domain.Artifact, error)
	Download(ctx context.Context, actor *domain.User, artifactID uuid.UUID) (*domain.Artifact, []byte, error)
	Verify(ctx context.Context, artifactID uuid.UUID) (bool, error)
	SoftDelete(ctx context.Context, actor *domain.User, artifactID uuid.UUID) error
	ListByRun(ctx context.Context, runID uuid.UUID) ([]*domain.Artifact, error)
	Get(ctx context.Context, artifactID uuid.UUID) (*domain.Artifact, error)
}
