package domain

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// Artifact is an immutable evidence file bound to exactly one run.
// Size and hash are computed from the actual byte stream at upload time,
// never trusted from the caller. Deletion is a soft flag; the stored bytes
// are retained for forensic replay.
type Artifact struct {
	ID          uuid.UUID `json:"id"`
	Filename    string    `json:"filename"`
	ContentType string    `json:"content_type,omitempty"`
	SizeBytes   int64     `json:"size_bytes"`
	SHA256Hash  string    `json:"sha256_hash"`
	StoragePath string    `json:"storage_path"`

	ArtifactType string `json:"artifact_type,omitempty"` // e.g. "config", "log", "screenshot"
	Description  string `json:"description,omitempty"`

	RunID      uuid.UUID `json:"run_id"`
	UploadedBy uuid.UUID `json:"uploaded_by"`
	IsDeleted  bool      `json:"is_deleted"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

type ArtifactRepository interface {
	Create(ctx context.Context, a *Artifact) error
	GetByID(ctx context.Context, id uuid.UUID) (*Artifact, error)
	// ListByRun returns non-deleted artifacts in creation order.
	ListByRun(ctx context.Context, runID uuid.UUID) ([]*Artifact, error)
	// ExistsByRunAndFilename guards the duplicate-filename policy.
	ExistsByRunAndFilename(ctx context.Context, runID uuid.UUID, filename string) (bool, error)
	SoftDelete(ctx context.Context, id uuid.UUID) error
}
