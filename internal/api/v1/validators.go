package v1

import (
	"context"
	"net/http"

	"github.com/danielgtaylor/huma/v2"

	"github.com/provenlabs/opsledger/internal/validate"
)

type ListValidatorsInput struct {
	Kind string `query:"kind" doc:"Optional kind filter: proof or action"`
}

type ListValidatorsOutput struct {
	Body []validate.Spec
}

func RegisterValidatorRoutes(api huma.API, registry *validate.Registry) {
	huma.Register(api, huma.Operation{
		OperationID: "list-validators",
		Method:      http.MethodGet,
		Path:        "/validators",
		Summary:     "List the whitelist of registered validators and scripts",
		Tags:        []string{"Validators"},
	}, func(_ context.Context, input *ListValidatorsInput) (*ListValidatorsOutput, error) {
		var specs []validate.Spec
		if input.Kind == "" {
			specs = registry.List()
		} else {
			specs = registry.ListByKind(validate.Kind(input.Kind))
		}
		return &ListValidatorsOutput{Body: specs}, nil
	})
}
