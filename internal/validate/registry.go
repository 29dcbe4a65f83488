// Package validate holds the whitelist of scripts and validators a run is
// allowed to execute, plus the built-in proof validators.
package validate

import (
	"context"
	"sort"
	"sync"
)

// Result is the outcome of one validation.
type Result struct {
	Valid    bool           `json:"valid"`
	Errors   []string       `json:"errors"`
	Warnings []string       `json:"warnings"`
	Report   map[string]any `json:"report"`
}

// Validator is the capability every proof validator implements.
type Validator interface {
	Validate(ctx context.Context, data []byte, metadata map[string]any) (Result, error)
}

// Kind distinguishes proof validators from executable action scripts.
type Kind string

const (
	KindProof  Kind = "proof"
	KindAction Kind = "action"
)

// Spec describes one registered script or validator.
type Spec struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
	Version     string `json:"version"`
	Kind        Kind   `json:"kind"`

	// Exactly one of Validator (proof) or ScriptPath (action) is set.
	Validator  Validator `json:"-"`
	ScriptPath string    `json:"script_path,omitempty"`

	RequiresApproval bool `json:"requires_approval"`
}

// Registry is the whitelist. Unknown ids are a normal, checkable
// condition: Get returns (zero, false), never an error.
type Registry struct {
	mu    sync.RWMutex
	specs map[string]Spec
}

// NewRegistry returns a registry pre-loaded with the built-in proof
// validators.
func NewRegistry() *Registry {
	r := &Registry{specs: make(map[string]Spec)}

	r.Register(Spec{
		ID:          "proof.file_hash",
		Name:        "File Hash Validator",
		Description: "Validates file integrity by checking SHA-256 hash",
		Version:     "1.0.0",
		Kind:        KindProof,
		Validator:   &FileHashValidator{},
	})

	r.Register(Spec{
		ID:          "proof.config_format",
		Name:        "Config Format Validator",
		Description: "Validates configuration file format and basic structure",
		Version:     "1.0.0",
		Kind:        KindProof,
		Validator:   &ConfigFormatValidator{},
	})

	return r
}

func (r *Registry) Register(spec Spec) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.specs[spec.ID] = spec
}

func (r *Registry) Get(id string) (Spec, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	spec, ok := r.specs[id]
	return spec, ok
}

// List returns all registered specs ordered by id.
func (r *Registry) List() []Spec {
	r.mu.RLock()
	defer r.mu.RUnlock()

	specs := make([]Spec, 0, len(r.specs))
	for _, spec := range r.specs {
		specs = append(specs, spec)
	}
	sort.Slice(specs, func(i, j int) bool { return specs[i].ID < specs[j].ID })

	return specs
}

// ListByKind returns registered specs of one kind, ordered by id.
func (r *Registry) ListByKind(kind Kind) []Spec {
	var out []Spec
	for _, spec := range r.List() {
		if spec.Kind == kind {
			out = append(out, spec)
		}
	}
	return out
}
