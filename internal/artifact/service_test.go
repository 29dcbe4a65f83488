package artifact_test

import (
	"context"
	"strings"
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/provenlabs/opsledger/internal/artifact"
	"github.com/provenlabs/opsledger/internal/audit"
	"github.com/provenlabs/opsledger/internal/domain"
)

type memArtifactRepo struct {
	mu    sync.Mutex
	rows  map[uuid.UUID]*domain.Artifact
	order []uuid.UUID
}

func newMemArtifactRepo() *memArtifactRepo {
	return &memArtifactRepo{rows: make(map[uuid.UUID]*domain.Artifact)}
}

func (m *memArtifactRepo) Create(_ context.Context, a *domain.Artifact) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *a
	m.rows[a.ID] = &cp
	m.order = append(m.order, a.ID)
	return nil
}

func (m *memArtifactRepo) GetByID(_ context.Context, id uuid.UUID) (*domain.Artifact, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	a, ok := m.rows[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	cp := *a
	return &cp, nil
}

func (m *memArtifactRepo) ListByRun(_ context.Context, runID uuid.UUID) ([]*domain.Artifact, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*domain.Artifact
	for _, id := range m.order {
		a := m.rows[id]
		if a.RunID == runID && !a.IsDeleted {
			cp := *a
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (m *memArtifactRepo) ExistsByRunAndFilename(_ context.Context, runID uuid.UUID, filename string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, a := range m.rows {
		if a.RunID == runID && a.Filename == filename && !a.IsDeleted {
			return true, nil
		}
	}
	return false, nil
}

func (m *memArtifactRepo) SoftDelete(_ context.Context, id uuid.UUID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	a, ok := m.rows[id]
	if !ok {
		return domain.ErrNotFound
	}
	a.IsDeleted = true
	return nil
}

// stubRunRepo satisfies domain.RunRepository for the single lookup the
// service makes: does the run exist.
type stubRunRepo struct {
	runs map[uuid.UUID]*domain.Run
}

func (s *stubRunRepo) CreateForTicket(context.Context, *domain.Run, domain.TicketStatus) error {
	return nil
}

func (s *stubRunRepo) GetByID(_ context.Context, id uuid.UUID) (*domain.Run, error) {
	r, ok := s.runs[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return r, nil
}

func (s *stubRunRepo) ListByTicket(context.Context, uuid.UUID) ([]*domain.Run, error) {
	return nil, nil
}

func (s *stubRunRepo) ClaimPending(context.Context, uuid.UUID) (bool, error) {
	return false, nil
}

func (s *stubRunRepo) Finish(context.Context, uuid.UUID, domain.RunResult) error {
	return nil
}

type serviceFixture struct {
	svc     *artifact.Service
	store   *artifact.MemoryStore
	repo    *memArtifactRepo
	auditor *audit.Logger
	actor   *domain.User
	runID   uuid.UUID
}

func newServiceFixture(t *testing.T, maxBytes int64) *serviceFixture {
	t.Helper()

	auditor, err := audit.NewLogger(t.TempDir())
	require.NoError(t, err)

	store := artifact.NewMemoryStore()
	repo := newMemArtifactRepo()
	runID := uuid.New()
	runs := &stubRunRepo{runs: map[uuid.UUID]*domain.Run{
		runID: {ID: runID, Status: domain.RunStatusRunning},
	}}

	return &serviceFixture{
		svc:     artifact.NewService(store, repo, runs, auditor, maxBytes),
		store:   store,
		repo:    repo,
		auditor: auditor,
		actor:   &domain.User{ID: uuid.New(), Username: "operator"},
		runID:   runID,
	}
}

func (f *serviceFixture) upload(t *testing.T, filename, content string) *domain.Artifact {
	t.Helper()

	a, err := f.svc.Upload(context.Background(), f.actor, strings.NewReader(content), artifact.UploadInput{
		RunID:    f.runID,
		Filename: filename,
	})
	require.NoError(t, err)
	return a
}

func TestServiceUploadMeasuresStream(t *testing.T) {
	t.Parallel()

	f := newServiceFixture(t, 1024)
	a := f.upload(t, "hello.txt", "hello")

	assert.Equal(t, int64(5), a.SizeBytes)
	assert.Equal(t, helloSHA256, a.SHA256Hash)
	assert.Equal(t, "runs/"+f.runID.String()+"/hello.txt", a.StoragePath)

	got, data, err := f.svc.Download(context.Background(), f.actor, a.ID)
	require.NoError(t, err)
	assert.Equal(t, a.ID, got.ID)
	assert.Equal(t, "hello", string(data))
}

func TestServiceUploadRejectsUnknownRun(t *testing.T) {
	t.Parallel()

	f := newServiceFixture(t, 1024)

	_, err := f.svc.Upload(context.Background(), f.actor, strings.NewReader("x"), artifact.UploadInput{
		RunID:    uuid.New(),
		Filename: "orphan.txt",
	})
	require.ErrorIs(t, err, domain.ErrNotFound)
}

func TestServiceUploadSizeCeiling(t *testing.T) {
	t.Parallel()

	f := newServiceFixture(t, 8)

	// Exactly at the ceiling is fine.
	f.upload(t, "fits.bin", "12345678")

	// One byte over is rejected and the partial object is removed from
	// storage; no record exists for it.
	_, err := f.svc.Upload(context.Background(), f.actor, strings.NewReader("123456789"), artifact.UploadInput{
		RunID:    f.runID,
		Filename: "big.bin",
	})
	require.ErrorIs(t, err, artifact.ErrTooLarge)

	exists, err := f.store.Exists(context.Background(), "runs/"+f.runID.String()+"/big.bin")
	require.NoError(t, err)
	assert.False(t, exists)

	listed, err := f.repo.ListByRun(context.Background(), f.runID)
	require.NoError(t, err)
	require.Len(t, listed, 1)
	assert.Equal(t, "fits.bin", listed[0].Filename)
}

func TestServiceUploadDuplicateFilename(t *testing.T) {
	t.Parallel()

	f := newServiceFixture(t, 1024)
	first := f.upload(t, "report.pdf", "original evidence")

	_, err := f.svc.Upload(context.Background(), f.actor, strings.NewReader("tampered"), artifact.UploadInput{
		RunID:    f.runID,
		Filename: "report.pdf",
	})
	require.ErrorIs(t, err, domain.ErrConflict)

	// The first upload is untouched.
	_, data, err := f.svc.Download(context.Background(), f.actor, first.ID)
	require.NoError(t, err)
	assert.Equal(t, "original evidence", string(data))
}

func TestServiceSoftDeleteHidesArtifact(t *testing.T) {
	t.Parallel()

	f := newServiceFixture(t, 1024)
	a := f.upload(t, "secret.log", "hello")

	require.NoError(t, f.svc.SoftDelete(context.Background(), f.actor, a.ID))

	listed, err := f.svc.ListByRun(context.Background(), f.runID)
	require.NoError(t, err)
	assert.Empty(t, listed)

	_, _, err = f.svc.Download(context.Background(), f.actor, a.ID)
	require.ErrorIs(t, err, domain.ErrNotFound)

	// Deletion is a flag: the bytes stay put for forensic replay.
	exists, err := f.store.Exists(context.Background(), a.StoragePath)
	require.NoError(t, err)
	assert.True(t, exists)
}

func TestServiceSoftDeleteRequiresOwnerOrAdmin(t *testing.T) {
	t.Parallel()

	f := newServiceFixture(t, 1024)
	a := f.upload(t, "held.txt", "hello")

	stranger := &domain.User{ID: uuid.New(), Username: "bystander"}
	err := f.svc.SoftDelete(context.Background(), stranger, a.ID)
	require.ErrorIs(t, err, domain.ErrPermissionDenied)

	admin := &domain.User{ID: uuid.New(), Username: "root", IsAdmin: true}
	require.NoError(t, f.svc.SoftDelete(context.Background(), admin, a.ID))
}

func TestServiceVerify(t *testing.T) {
	t.Parallel()

	f := newServiceFixture(t, 1024)
	a := f.upload(t, "data.bin", "hello")

	ok, err := f.svc.Verify(context.Background(), a.ID)
	require.NoError(t, err)
	assert.True(t, ok)

	// Corrupt the stored bytes behind the record's back.
	_, _, _, err = f.store.Save(context.Background(), strings.NewReader("hell0"), a.StoragePath)
	require.NoError(t, err)

	ok, err = f.svc.Verify(context.Background(), a.ID)
	require.NoError(t, err)
	assert.False(t, ok)

	// Both checks are on the audit trail, the mismatch with success=false.
	events, err := f.auditor.Query(context.Background(), audit.Filter{
		Type:       audit.EventArtifactVerified,
		ResourceID: &a.ID,
	}, 0)
	require.NoError(t, err)
	require.Len(t, events, 2)
	assert.True(t, events[0].Success)
	assert.False(t, events[1].Success)
	assert.Equal(t, a.SHA256Hash, events[1].Details["expected_hash"])
}
