package domain

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// Asset is a piece of managed infrastructure a ticket may reference
// (a switch, a router, a host). Tickets link to assets; runs never touch
// them directly in this service.
type Asset struct {
	ID          uuid.UUID `json:"id"`
	Name        string    `json:"name"`
	AssetType   string    `json:"asset_type,omitempty"` // e.g. "switch", "router", "server"
	Location    string    `json:"location,omitempty"`
	Description string    `json:"description,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

type AssetRepository interface {
	Create(ctx context.Context, a *Asset) error
	GetByID(ctx context.Context, id uuid.UUID) (*Asset, error)
	List(ctx context.Context) ([]*Asset, error)
	Update(ctx context.Context, a *Asset) error
	Delete(ctx context.Context, id uuid.UUID) error
}
