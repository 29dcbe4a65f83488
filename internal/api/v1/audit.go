package v1

import (
	"context"
	"net/http"
	"time"

	"github.com/danielgtaylor/huma/v2"
	"github.com/google/uuid"

	"github.com/provenlabs/opsledger/internal/audit"
	"github.com/provenlabs/opsledger/internal/server/middleware"
)

// AuditQuerier abstracts the audit log read path for handler testing.
// *audit.Logger satisfies this interface.
type AuditQuerier interface {
	Query(ctx context.Context, f audit.Filter, limit int) ([]audit.Event, error)
}

type QueryAuditInput struct {
	EventType    string     `query:"event_type" doc:"Filter by event type, e.g. run.completed"`
	ActorID      uuid.UUID  `query:"actor_id" doc:"Filter by acting user"`
	ResourceType string     `query:"resource_type" doc:"Filter by resource type, e.g. run or ticket"`
	ResourceID   uuid.UUID  `query:"resource_id" doc:"Filter by resource ID"`
	Since        time.Time  `query:"since" doc:"Earliest timestamp (RFC 3339)"`
	Until        time.Time  `query:"until" doc:"Latest timestamp (RFC 3339)"`
	Limit        int        `query:"limit" minimum:"1" maximum:"1000" default:"100" doc:"Maximum events returned"`
}

type QueryAuditOutput struct {
	Body []audit.Event
}

// RegisterAuditRoutes exposes the audit trail read path. Admin only: the
// trail contains actor IPs and failed-login patterns.
func RegisterAuditRoutes(api huma.API, auditor AuditQuerier) {
	huma.Register(api, huma.Operation{
		OperationID: "query-audit-log",
		Method:      http.MethodGet,
		Path:        "/audit",
		Summary:     "Query the audit trail (admin only)",
		Tags:        []string{"Audit"},
	}, func(ctx context.Context, input *QueryAuditInput) (*QueryAuditOutput, error) {
		actor, ok := middleware.UserFromContext(ctx)
		if !ok || !actor.IsAdmin {
			return nil, huma.Error403Forbidden("admin privileges required")
		}

		var actorID, resourceID *uuid.UUID
		if input.ActorID != uuid.Nil {
			actorID = &input.ActorID
		}
		if input.ResourceID != uuid.Nil {
			resourceID = &input.ResourceID
		}

		events, err := auditor.Query(ctx, audit.Filter{
			Type:         audit.EventType(input.EventType),
			ActorID:      actorID,
			ResourceType: input.ResourceType,
			ResourceID:   resourceID,
			Since:        input.Since,
			Until:        input.Until,
		}, input.Limit)
		if err != nil {
			return nil, huma.Error500InternalServerError("failed to query audit log", err)
		}

		return &QueryAuditOutput{Body: events}, nil
	})
}
