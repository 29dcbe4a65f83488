package v1

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/danielgtaylor/huma/v2"
	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/provenlabs/opsledger/internal/artifact"
	"github.com/provenlabs/opsledger/internal/domain"
	"github.com/provenlabs/opsledger/internal/server/middleware"
)

type ListArtifactsInput struct {
	RunID uuid.UUID `query:"run_id" required:"true" doc:"Run ID"`
}

type ListArtifactsOutput struct {
	Body []*domain.Artifact
}

type GetArtifactInput struct {
	ID uuid.UUID `path:"id" doc:"Artifact ID"`
}

type GetArtifactOutput struct {
	Body *domain.Artifact
}

type VerifyArtifactInput struct {
	ID uuid.UUID `path:"id" doc:"Artifact ID"`
}

type VerifyArtifactOutput struct {
	Body struct {
		ArtifactID   uuid.UUID `json:"artifact_id"`
		HashVerified bool      `json:"hash_verified"`
	}
}

type DeleteArtifactInput struct {
	ID uuid.UUID `path:"id" doc:"Artifact ID"`
}

func RegisterArtifactRoutes(api huma.API, artifacts ArtifactService) {
	huma.Register(api, huma.Operation{
		OperationID: "list-artifacts",
		Method:      http.MethodGet,
		Path:        "/artifacts",
		Summary:     "List a run's artifacts in upload order",
		Tags:        []string{"Artifacts"},
	}, func(ctx context.Context, input *ListArtifactsInput) (*ListArtifactsOutput, error) {
		out, err := artifacts.ListByRun(ctx, input.RunID)
		if err != nil {
			return nil, huma.Error500InternalServerError("failed to list artifacts", err)
		}
		return &ListArtifactsOutput{Body: out}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "get-artifact",
		Method:      http.MethodGet,
		Path:        "/artifacts/{id}",
		Summary:     "Get artifact metadata",
		Tags:        []string{"Artifacts"},
	}, func(ctx context.Context, input *GetArtifactInput) (*GetArtifactOutput, error) {
		a, err := artifacts.Get(ctx, input.ID)
		if err != nil {
			if errors.Is(err, domain.ErrNotFound) {
				return nil, huma.Error404NotFound("artifact not found")
			}
			return nil, huma.Error500InternalServerError("failed to load artifact", err)
		}
		return &GetArtifactOutput{Body: a}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "verify-artifact",
		Method:      http.MethodPost,
		Path:        "/artifacts/{id}/verify",
		Summary:     "Re-hash the stored bytes and compare to the recorded digest",
		Tags:        []string{"Artifacts"},
	}, func(ctx context.Context, input *VerifyArtifactInput) (*VerifyArtifactOutput, error) {
		verified, err := artifacts.Verify(ctx, input.ID)
		if err != nil {
			if errors.Is(err, domain.ErrNotFound) {
				return nil, huma.Error404NotFound("artifact not found")
			}
			return nil, huma.Error500InternalServerError("failed to verify artifact", err)
		}

		out := &VerifyArtifactOutput{}
		out.Body.ArtifactID = input.ID
		out.Body.HashVerified = verified
		return out, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "delete-artifact",
		Method:      http.MethodDelete,
		Path:        "/artifacts/{id}",
		Summary:     "Soft-delete an artifact; the bytes and hash remain for audit",
		Tags:        []string{"Artifacts"},
	}, func(ctx context.Context, input *DeleteArtifactInput) (*struct{}, error) {
		actor, ok := middleware.UserFromContext(ctx)
		if !ok {
			return nil, huma.Error403Forbidden("missing user context")
		}

		if err := artifacts.SoftDelete(ctx, actor, input.ID); err != nil {
			switch {
			case errors.Is(err, domain.ErrNotFound):
				return nil, huma.Error404NotFound("artifact not found")
			case errors.Is(err, domain.ErrPermissionDenied):
				return nil, huma.Error403Forbidden("only the uploader or an admin may delete")
			default:
				return nil, huma.Error500InternalServerError("failed to delete artifact", err)
			}
		}
		return nil, nil
	})
}

// UploadArtifactHandler accepts a multipart upload for a run. Multipart
// streaming does not fit the typed operation model, so this stays a plain
// chi handler mounted next to the huma routes.
func UploadArtifactHandler(artifacts ArtifactService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		actor, ok := middleware.UserFromContext(r.Context())
		if !ok {
			httpError(w, http.StatusForbidden, "missing user context")
			return
		}

		runID, err := uuid.Parse(chi.URLParam(r, "runID"))
		if err != nil {
			httpError(w, http.StatusBadRequest, "invalid run id")
			return
		}

		file, header, err := r.FormFile("file")
		if err != nil {
			httpError(w, http.StatusBadRequest, "missing file field")
			return
		}
		defer file.Close()

		a, err := artifacts.Upload(r.Context(), actor, file, artifact.UploadInput{
			RunID:        runID,
			Filename:     header.Filename,
			ContentType:  header.Header.Get("Content-Type"),
			ArtifactType: r.FormValue("artifact_type"),
			Description:  r.FormValue("description"),
		})
		if err != nil {
			switch {
			case errors.Is(err, domain.ErrNotFound):
				httpError(w, http.StatusNotFound, "run not found")
			case errors.Is(err, domain.ErrConflict):
				httpError(w, http.StatusConflict, "an artifact with this filename already exists for the run")
			case errors.Is(err, artifact.ErrTooLarge):
				httpError(w, http.StatusRequestEntityTooLarge, "artifact exceeds the size limit")
			case errors.Is(err, artifact.ErrInvalidPath):
				httpError(w, http.StatusBadRequest, "invalid filename")
			default:
				httpError(w, http.StatusInternalServerError, "failed to store artifact")
			}
			return
		}

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusCreated)
		_ = json.NewEncoder(w).Encode(a)
	}
}

// DownloadArtifactHandler streams the stored bytes back with the original
// filename and content type.
func DownloadArtifactHandler(artifacts ArtifactService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		actor, ok := middleware.UserFromContext(r.Context())
		if !ok {
			httpError(w, http.StatusForbidden, "missing user context")
			return
		}

		artifactID, err := uuid.Parse(chi.URLParam(r, "id"))
		if err != nil {
			httpError(w, http.StatusBadRequest, "invalid artifact id")
			return
		}

		a, data, err := artifacts.Download(r.Context(), actor, artifactID)
		if err != nil {
			if errors.Is(err, domain.ErrNotFound) {
				httpError(w, http.StatusNotFound, "artifact not found")
			} else {
				httpError(w, http.StatusInternalServerError, "failed to read artifact")
			}
			return
		}

		contentType := a.ContentType
		if contentType == "" {
			contentType = "application/octet-stream"
		}
		w.Header().Set("Content-Type", contentType)
		w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", a.Filename))
		w.Header().Set("X-Checksum-Sha256", a.SHA256Hash)
		_, _ = w.Write(data)
	}
}

func httpError(w http.ResponseWriter, status int, detail string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]any{
		"title":  http.StatusText(status),
		"status": status,
		"detail": detail,
	})
}
