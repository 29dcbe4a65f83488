package v1

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/danielgtaylor/huma/v2"
	"github.com/google/uuid"

	"github.com/provenlabs/opsledger/internal/audit"
	"github.com/provenlabs/opsledger/internal/domain"
	"github.com/provenlabs/opsledger/internal/server/middleware"
)

type CreateAssetInput struct {
	Body struct {
		Name        string `json:"name" minLength:"1" maxLength:"255" doc:"Asset name"`
		AssetType   string `json:"asset_type,omitempty" maxLength:"64" doc:"Asset type, e.g. switch or server"`
		Location    string `json:"location,omitempty" maxLength:"255" doc:"Physical or logical location"`
		Description string `json:"description,omitempty" doc:"Free-form description"`
	}
}

type CreateAssetOutput struct {
	Body *domain.Asset
}

type ListAssetsOutput struct {
	Body []*domain.Asset
}

type GetAssetInput struct {
	ID uuid.UUID `path:"id" doc:"Asset ID"`
}

type GetAssetOutput struct {
	Body *domain.Asset
}

type UpdateAssetInput struct {
	ID   uuid.UUID `path:"id" doc:"Asset ID"`
	Body struct {
		Name        string `json:"name,omitempty" maxLength:"255" doc:"Asset name"`
		AssetType   string `json:"asset_type,omitempty" maxLength:"64" doc:"Asset type"`
		Location    string `json:"location,omitempty" maxLength:"255" doc:"Location"`
		Description string `json:"description,omitempty" doc:"Description"`
	}
}

type UpdateAssetOutput struct {
	Body *domain.Asset
}

type DeleteAssetInput struct {
	ID uuid.UUID `path:"id" doc:"Asset ID"`
}

func RegisterAssetRoutes(api huma.API, store DataStore, auditor *audit.Logger) {
	huma.Register(api, huma.Operation{
		OperationID: "create-asset",
		Method:      http.MethodPost,
		Path:        "/assets",
		Summary:     "Register a new managed asset",
		Tags:        []string{"Assets"},
	}, func(ctx context.Context, input *CreateAssetInput) (*CreateAssetOutput, error) {
		actor, ok := middleware.UserFromContext(ctx)
		if !ok {
			return nil, huma.Error403Forbidden("missing user context")
		}

		now := time.Now().UTC()
		a := &domain.Asset{
			ID:          uuid.New(),
			Name:        input.Body.Name,
			AssetType:   input.Body.AssetType,
			Location:    input.Body.Location,
			Description: input.Body.Description,
			CreatedAt:   now,
			UpdatedAt:   now,
		}

		if err := store.Assets().Create(ctx, a); err != nil {
			return nil, huma.Error500InternalServerError("failed to create asset", err)
		}

		logAssetEvent(ctx, auditor, audit.EventAssetCreated, actor, a.ID,
			fmt.Sprintf("Created asset %q", a.Name))

		return &CreateAssetOutput{Body: a}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "list-assets",
		Method:      http.MethodGet,
		Path:        "/assets",
		Summary:     "List all managed assets",
		Tags:        []string{"Assets"},
	}, func(ctx context.Context, _ *struct{}) (*ListAssetsOutput, error) {
		assets, err := store.Assets().List(ctx)
		if err != nil {
			return nil, huma.Error500InternalServerError("failed to list assets", err)
		}
		return &ListAssetsOutput{Body: assets}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "get-asset",
		Method:      http.MethodGet,
		Path:        "/assets/{id}",
		Summary:     "Get an asset by ID",
		Tags:        []string{"Assets"},
	}, func(ctx context.Context, input *GetAssetInput) (*GetAssetOutput, error) {
		a, err := store.Assets().GetByID(ctx, input.ID)
		if err != nil {
			if errors.Is(err, domain.ErrNotFound) {
				return nil, huma.Error404NotFound("asset not found")
			}
			return nil, huma.Error500InternalServerError("failed to load asset", err)
		}
		return &GetAssetOutput{Body: a}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "update-asset",
		Method:      http.MethodPatch,
		Path:        "/assets/{id}",
		Summary:     "Update an asset",
		Tags:        []string{"Assets"},
	}, func(ctx context.Context, input *UpdateAssetInput) (*UpdateAssetOutput, error) {
		actor, ok := middleware.UserFromContext(ctx)
		if !ok {
			return nil, huma.Error403Forbidden("missing user context")
		}

		a, err := store.Assets().GetByID(ctx, input.ID)
		if err != nil {
			if errors.Is(err, domain.ErrNotFound) {
				return nil, huma.Error404NotFound("asset not found")
			}
			return nil, huma.Error500InternalServerError("failed to load asset", err)
		}

		if input.Body.Name != "" {
			a.Name = input.Body.Name
		}
		if input.Body.AssetType != "" {
			a.AssetType = input.Body.AssetType
		}
		if input.Body.Location != "" {
			a.Location = input.Body.Location
		}
		if input.Body.Description != "" {
			a.Description = input.Body.Description
		}
		a.UpdatedAt = time.Now().UTC()

		if err := store.Assets().Update(ctx, a); err != nil {
			return nil, huma.Error500InternalServerError("failed to update asset", err)
		}

		logAssetEvent(ctx, auditor, audit.EventAssetUpdated, actor, a.ID,
			fmt.Sprintf("Updated asset %q", a.Name))

		return &UpdateAssetOutput{Body: a}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "delete-asset",
		Method:      http.MethodDelete,
		Path:        "/assets/{id}",
		Summary:     "Delete an asset",
		Tags:        []string{"Assets"},
	}, func(ctx context.Context, input *DeleteAssetInput) (*struct{}, error) {
		actor, ok := middleware.UserFromContext(ctx)
		if !ok || !actor.IsAdmin {
			return nil, huma.Error403Forbidden("admin privileges required")
		}

		if err := store.Assets().Delete(ctx, input.ID); err != nil {
			if errors.Is(err, domain.ErrNotFound) {
				return nil, huma.Error404NotFound("asset not found")
			}
			return nil, huma.Error500InternalServerError("failed to delete asset", err)
		}

		logAssetEvent(ctx, auditor, audit.EventAssetDeleted, actor, input.ID, "Deleted asset")

		return nil, nil
	})
}

func logAssetEvent(ctx context.Context, auditor *audit.Logger, eventType audit.EventType, actor *domain.User, assetID uuid.UUID, action string) {
	actorID := actor.ID
	_ = auditor.Log(ctx, audit.Event{
		Type:          eventType,
		ActorID:       &actorID,
		ActorUsername: actor.Username,
		ResourceType:  "asset",
		ResourceID:    &assetID,
		Action:        action,
		Success:       true,
	})
}
