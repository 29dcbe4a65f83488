package runner

import (
	"context"

	"github.com/provenlabs/opsledger/internal/domain"
)

// ScriptResult is what an action-run backend must report: a terminal
// status, captured output, and an exit code.
type ScriptResult struct {
	Status   domain.RunStatus
	Stdout   string
	Stderr   string
	ExitCode *int
	Summary  string
}

// ScriptRunner executes the script behind an action run. Sandboxed
// execution is a separate collaborator; this package only owns the
// dispatch contract and the failure handling around it. Implementations
// must honor ctx cancellation as the timeout signal.
type ScriptRunner interface {
	Run(ctx context.Context, run *domain.Run) (ScriptResult, error)
}

// NotImplementedRunner is the placeholder backend shipped until a
// sandboxed executor is wired in. Every action run fails cleanly.
type NotImplementedRunner struct{}

func (NotImplementedRunner) Run(_ context.Context, _ *domain.Run) (ScriptResult, error) {
	return ScriptResult{
		Status:  domain.RunStatusFailed,
		Stderr:  "Action run execution is not yet implemented",
		Summary: "Action runs not yet implemented",
	}, nil
}
