package artifact

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/provenlabs/opsledger/internal/audit"
	"github.com/provenlabs/opsledger/internal/domain"
)

// Service manages the evidence chain around a Store: upload with measured
// size and hash, integrity verification, soft deletion. Every operation
// that changes or exposes evidence emits an audit event before returning.
type Service struct {
	store     Store
	artifacts domain.ArtifactRepository
	runs      domain.RunRepository
	auditor   *audit.Logger
	maxBytes  int64
}

func NewService(store Store, artifacts domain.ArtifactRepository, runs domain.RunRepository, auditor *audit.Logger, maxBytes int64) *Service {
	return &Service{
		store:     store,
		artifacts: artifacts,
		runs:      runs,
		auditor:   auditor,
		maxBytes:  maxBytes,
	}
}

// UploadInput describes one incoming evidence file. Size and hash are
// never taken from here; they are measured from the stream.
type UploadInput struct {
	RunID        uuid.UUID
	Filename     string
	ContentType  string
	ArtifactType string
	Description  string
}

// Upload stores the stream under runs/<run_id>/<filename> and records the
// artifact. A second upload with the same filename for the same run is
// rejected rather than silently overwriting the first.
func (s *Service) Upload(ctx context.Context, actor *domain.User, r io.Reader, in UploadInput) (*domain.Artifact, error) {
	if _, err := s.runs.GetByID(ctx, in.RunID); err != nil {
		return nil, fmt.Errorf("artifact.Service.Upload: get run: %w", err)
	}

	exists, err := s.artifacts.ExistsByRunAndFilename(ctx, in.RunID, in.Filename)
	if err != nil {
		return nil, fmt.Errorf("artifact.Service.Upload: check filename: %w", err)
	}
	if exists {
		return nil, fmt.Errorf("artifact.Service.Upload: %q already uploaded for run %s: %w",
			in.Filename, in.RunID, domain.ErrConflict)
	}

	logicalPath := fmt.Sprintf("runs/%s/%s", in.RunID, in.Filename)

	// The ceiling is enforced from the counted stream, never from a
	// client-supplied length header.
	limited := io.LimitReader(r, s.maxBytes+1)

	storagePath, size, sha256Hex, err := s.store.Save(ctx, limited, logicalPath)
	if err != nil {
		return nil, fmt.Errorf("artifact.Service.Upload: %w", err)
	}

	if size > s.maxBytes {
		if _, delErr := s.store.Delete(ctx, storagePath); delErr != nil {
			log.Warn().Err(delErr).Str("path", storagePath).Msg("artifact: failed to remove oversized upload")
		}
		return nil, fmt.Errorf("artifact.Service.Upload: %d bytes exceeds limit of %d: %w",
			size, s.maxBytes, ErrTooLarge)
	}

	now := time.Now().UTC()
	a := &domain.Artifact{
		ID:           uuid.New(),
		Filename:     in.Filename,
		ContentType:  in.ContentType,
		SizeBytes:    size,
		SHA256Hash:   sha256Hex,
		StoragePath:  storagePath,
		ArtifactType: in.ArtifactType,
		Description:  in.Description,
		RunID:        in.RunID,
		UploadedBy:   actor.ID,
		CreatedAt:    now,
		UpdatedAt:    now,
	}

	if err := s.artifacts.Create(ctx, a); err != nil {
		return nil, fmt.Errorf("artifact.Service.Upload: create record: %w", err)
	}

	if err := s.auditor.Log(ctx, audit.Event{
		Type:          audit.EventArtifactUploaded,
		ActorID:       &actor.ID,
		ActorUsername: actor.Username,
		ResourceType:  "artifact",
		ResourceID:    &a.ID,
		Action:        "Uploaded artifact: " + in.Filename,
		Details: map[string]any{
			"run_id":        in.RunID.String(),
			"filename":      in.Filename,
			"size_bytes":    size,
			"sha256_hash":   sha256Hex,
			"artifact_type": in.ArtifactType,
		},
		Success: true,
	}); err != nil {
		return nil, fmt.Errorf("artifact.Service.Upload: %w", err)
	}

	return a, nil
}

// Download returns the artifact record and its bytes. Soft-deleted
// artifacts are not served even though their bytes are retained.
func (s *Service) Download(ctx context.Context, actor *domain.User, artifactID uuid.UUID) (*domain.Artifact, []byte, error) {
	a, err := s.artifacts.GetByID(ctx, artifactID)
	if err != nil {
		return nil, nil, fmt.Errorf("artifact.Service.Download: %w", err)
	}
	if a.IsDeleted {
		return nil, nil, fmt.Errorf("artifact.Service.Download: artifact %s is deleted: %w", artifactID, domain.ErrNotFound)
	}

	data, err := s.store.Read(ctx, a.StoragePath)
	if err != nil {
		return nil, nil, fmt.Errorf("artifact.Service.Download: %w", err)
	}

	if err := s.auditor.Log(ctx, audit.Event{
		Type:          audit.EventArtifactDownloaded,
		ActorID:       &actor.ID,
		ActorUsername: actor.Username,
		ResourceType:  "artifact",
		ResourceID:    &a.ID,
		Action:        "Downloaded artifact: " + a.Filename,
		Details: map[string]any{
			"run_id":   a.RunID.String(),
			"filename": a.Filename,
		},
		Success: true,
	}); err != nil {
		return nil, nil, fmt.Errorf("artifact.Service.Download: %w", err)
	}

	return a, data, nil
}

// Verify recomputes the digest of the stored bytes and compares it to the
// recorded hash. A mismatch is reported, never silently corrected.
func (s *Service) Verify(ctx context.Context, artifactID uuid.UUID) (bool, error) {
	a, err := s.artifacts.GetByID(ctx, artifactID)
	if err != nil {
		return false, fmt.Errorf("artifact.Service.Verify: %w", err)
	}

	data, err := s.store.Read(ctx, a.StoragePath)
	if err != nil {
		return false, fmt.Errorf("artifact.Service.Verify: %w", err)
	}

	sum := sha256.Sum256(data)
	computed := hex.EncodeToString(sum[:])
	verified := computed == a.SHA256Hash

	result := "passed"
	if !verified {
		result = "failed"
	}

	if err := s.auditor.Log(ctx, audit.Event{
		Type:         audit.EventArtifactVerified,
		ResourceType: "artifact",
		ResourceID:   &a.ID,
		Action:       "Artifact verification: " + result,
		Details: map[string]any{
			"expected_hash": a.SHA256Hash,
			"computed_hash": computed,
		},
		Success: verified,
	}); err != nil {
		return false, fmt.Errorf("artifact.Service.Verify: %w", err)
	}

	return verified, nil
}

// SoftDelete flips the deletion flag. The stored bytes stay where they
// are for forensic replay.
func (s *Service) SoftDelete(ctx context.Context, actor *domain.User, artifactID uuid.UUID) error {
	a, err := s.artifacts.GetByID(ctx, artifactID)
	if err != nil {
		return fmt.Errorf("artifact.Service.SoftDelete: %w", err)
	}

	if !actor.IsAdmin && actor.ID != a.UploadedBy {
		return fmt.Errorf("artifact.Service.SoftDelete: actor %s: %w", actor.ID, domain.ErrPermissionDenied)
	}

	if err := s.artifacts.SoftDelete(ctx, artifactID); err != nil {
		return fmt.Errorf("artifact.Service.SoftDelete: %w", err)
	}

	if err := s.auditor.Log(ctx, audit.Event{
		Type:          audit.EventArtifactDeleted,
		ActorID:       &actor.ID,
		ActorUsername: actor.Username,
		ResourceType:  "artifact",
		ResourceID:    &a.ID,
		Action:        "Soft-deleted artifact: " + a.Filename,
		Details: map[string]any{
			"run_id":       a.RunID.String(),
			"storage_path": a.StoragePath,
		},
		Success: true,
	}); err != nil {
		return fmt.Errorf("artifact.Service.SoftDelete: %w", err)
	}

	return nil
}

// ListByRun exposes the repository ordering guarantee to the executor:
// non-deleted artifacts in creation order.
func (s *Service) ListByRun(ctx context.Context, runID uuid.UUID) ([]*domain.Artifact, error) {
	artifacts, err := s.artifacts.ListByRun(ctx, runID)
	if err != nil {
		return nil, fmt.Errorf("artifact.Service.ListByRun: %w", err)
	}
	return artifacts, nil
}

// Get returns a single artifact record.
func (s *Service) Get(ctx context.Context, artifactID uuid.UUID) (*domain.Artifact, error) {
	a, err := s.artifacts.GetByID(ctx, artifactID)
	if err != nil {
		return nil, fmt.Errorf("artifact.Service.Get: %w", err)
	}
	return a, nil
}
