package v1_test

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	v1 "github.com/provenlabs/opsledger/internal/api/v1"
	"github.com/provenlabs/opsledger/internal/artifact"
	"github.com/provenlabs/opsledger/internal/domain"
	"github.com/provenlabs/opsledger/internal/server/middleware"
)

type mockArtifactService struct {
	uploadFunc     func(ctx context.Context, actor *domain.User, r io.Reader, in artifact.UploadInput) (*domain.Artifact, error)
	downloadFunc   func(ctx context.Context, actor *domain.User, artifactID uuid.UUID) (*domain.Artifact, []byte, error)
	verifyFunc     func(ctx context.Context, artifactID uuid.UUID) (bool, error)
	softDeleteFunc func(ctx context.Context, actor *domain.User, artifactID uuid.UUID) error
	listByRunFunc  func(ctx context.Context, runID uuid.UUID) ([]*domain.Artifact, error)
	getFunc        func(ctx context.Context, artifactID uuid.UUID) (*domain.Artifact, error)
}

func (m *mockArtifactService) Upload(ctx context.Context, actor *domain.User, r io.Reader, in artifact.UploadInput) (*domain.Artifact, error) {
	return m.uploadFunc(ctx, actor, r, in)
}

func (m *mockArtifactService) Download(ctx context.Context, actor *domain.User, artifactID uuid.UUID) (*domain.Artifact, []byte, error) {
	return m.downloadFunc(ctx, actor, artifactID)
}

func (m *mockArtifactService) Verify(ctx context.Context, artifactID uuid.UUID) (bool, error) {
	return m.verifyFunc(ctx, artifactID)
}

func (m *mockArtifactService) SoftDelete(ctx context.Context, actor *domain.User, artifactID uuid.UUID) error {
	return m.softDeleteFunc(ctx, actor, artifactID)
}

func (m *mockArtifactService) ListByRun(ctx context.Context, runID uuid.UUID) ([]*domain.Artifact, error) {
	return m.listByRunFunc(ctx, runID)
}

func (m *mockArtifactService) Get(ctx context.Context, artifactID uuid.UUID) (*domain.Artifact, error) {
	return m.getFunc(ctx, artifactID)
}

func multipartBody(t *testing.T, filename, content string) (*bytes.Buffer, string) {
	t.Helper()

	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	part, err := w.CreateFormFile("file", filename)
	require.NoError(t, err)
	_, err = part.Write([]byte(content))
	require.NoError(t, err)
	require.NoError(t, w.WriteField("artifact_type", "log"))
	require.NoError(t, w.Close())

	return &buf, w.FormDataContentType()
}

func TestUploadArtifactHandler(t *testing.T) {
	t.Parallel()

	actor := &domain.User{ID: uuid.New(), Username: "operator"}
	runID := uuid.New()

	newRouter := func(svc v1.ArtifactService) chi.Router {
		r := chi.NewRouter()
		r.Post("/runs/{runID}/artifacts", v1.UploadArtifactHandler(svc))
		return r
	}

	t.Run("happy_path", func(t *testing.T) {
		t.Parallel()

		svc := &mockArtifactService{
			uploadFunc: func(_ context.Context, got *domain.User, r io.Reader, in artifact.UploadInput) (*domain.Artifact, error) {
				assert.Equal(t, actor.ID, got.ID)
				assert.Equal(t, runID, in.RunID)
				assert.Equal(t, "evidence.log", in.Filename)
				assert.Equal(t, "log", in.ArtifactType)

				data, err := io.ReadAll(r)
				require.NoError(t, err)
				assert.Equal(t, "hello", string(data))

				return &domain.Artifact{
					ID:         uuid.New(),
					RunID:      in.RunID,
					Filename:   in.Filename,
					SHA256Hash: "2cf24dba5fb0a30e26e83b2ac5b9e29e1b161e5c1fa7425e73043362938b9824",
					SizeBytes:  5,
					UploadedBy: got.ID,
				}, nil
			},
		}

		body, contentType := multipartBody(t, "evidence.log", "hello")
		req := httptest.NewRequest(http.MethodPost, "/runs/"+runID.String()+"/artifacts", body)
		req.Header.Set("Content-Type", contentType)
		req = req.WithContext(middleware.WithUser(req.Context(), actor))

		rec := httptest.NewRecorder()
		newRouter(svc).ServeHTTP(rec, req)

		require.Equal(t, http.StatusCreated, rec.Code)

		var got domain.Artifact
		require.NoError(t, json.NewDecoder(rec.Body).Decode(&got))
		assert.Equal(t, "evidence.log", got.Filename)
		assert.Equal(t, int64(5), got.SizeBytes)
	})

	t.Run("duplicate_filename", func(t *testing.T) {
		t.Parallel()

		svc := &mockArtifactService{
			uploadFunc: func(context.Context, *domain.User, io.Reader, artifact.UploadInput) (*domain.Artifact, error) {
				return nil, domain.ErrConflict
			},
		}

		body, contentType := multipartBody(t, "evidence.log", "hello")
		req := httptest.NewRequest(http.MethodPost, "/runs/"+runID.String()+"/artifacts", body)
		req.Header.Set("Content-Type", contentType)
		req = req.WithContext(middleware.WithUser(req.Context(), actor))

		rec := httptest.NewRecorder()
		newRouter(svc).ServeHTTP(rec, req)
		assert.Equal(t, http.StatusConflict, rec.Code)
	})

	t.Run("too_large", func(t *testing.T) {
		t.Parallel()

		svc := &mockArtifactService{
			uploadFunc: func(context.Context, *domain.User, io.Reader, artifact.UploadInput) (*domain.Artifact, error) {
				return nil, artifact.ErrTooLarge
			},
		}

		body, contentType := multipartBody(t, "big.bin", "hello")
		req := httptest.NewRequest(http.MethodPost, "/runs/"+runID.String()+"/artifacts", body)
		req.Header.Set("Content-Type", contentType)
		req = req.WithContext(middleware.WithUser(req.Context(), actor))

		rec := httptest.NewRecorder()
		newRouter(svc).ServeHTTP(rec, req)
		assert.Equal(t, http.StatusRequestEntityTooLarge, rec.Code)
	})

	t.Run("no_user", func(t *testing.T) {
		t.Parallel()

		body, contentType := multipartBody(t, "evidence.log", "hello")
		req := httptest.NewRequest(http.MethodPost, "/runs/"+runID.String()+"/artifacts", body)
		req.Header.Set("Content-Type", contentType)

		rec := httptest.NewRecorder()
		newRouter(&mockArtifactService{}).ServeHTTP(rec, req)
		assert.Equal(t, http.StatusForbidden, rec.Code)
	})
}

func TestDownloadArtifactHandler(t *testing.T) {
	t.Parallel()

	actor := &domain.User{ID: uuid.New(), Username: "operator"}
	artifactID := uuid.New()

	svc := &mockArtifactService{
		downloadFunc: func(_ context.Context, _ *domain.User, id uuid.UUID) (*domain.Artifact, []byte, error) {
			if id != artifactID {
				return nil, nil, domain.ErrNotFound
			}
			return &domain.Artifact{
				ID:          id,
				Filename:    "evidence.log",
				ContentType: "text/plain",
				SHA256Hash:  "2cf24dba5fb0a30e26e83b2ac5b9e29e1b161e5c1fa7425e73043362938b9824",
			}, []byte("hello"), nil
		},
	}

	r := chi.NewRouter()
	r.Get("/artifacts/{id}/download", v1.DownloadArtifactHandler(svc))

	req := httptest.NewRequest(http.MethodGet, "/artifacts/"+artifactID.String()+"/download", nil)
	req = req.WithContext(middleware.WithUser(req.Context(), actor))
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "hello", rec.Body.String())
	assert.Equal(t, "text/plain", rec.Header().Get("Content-Type"))
	assert.Contains(t, rec.Header().Get("Content-Disposition"), "evidence.log")
	assert.NotEmpty(t, rec.Header().Get("X-Checksum-Sha256"))

	// Deleted or unknown artifacts read as 404.
	req = httptest.NewRequest(http.MethodGet, "/artifacts/"+uuid.New().String()+"/download", nil)
	req = req.WithContext(middleware.WithUser(req.Context(), actor))
	rec = httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}
