// Package stage defines the contract pipeline stage executors implement.
package stage

import (
	"context"

	"clipdigest/internal/tasks"
)

// Handler is one pipeline stage. Execute mutates the task in memory; the
// orchestrator owns persistence, so a handler never writes to the store
// except where its output is inherently relational (summary records).
type Handler interface {
	// Name identifies the stage in logs and error context.
	Name() string
	// Prepare performs cheap validation before the stage is entered.
	Prepare(ctx context.Context, task *tasks.Task) error
	// Execute runs the stage to completion, honoring the cache protocol:
	// an artifact already in the blob store is reused unless the context
	// carries the force flag.
	Execute(ctx context.Context, task *tasks.Task) error
	// HealthCheck verifies the stage's external tools are usable.
	HealthCheck(ctx context.Context) error
}
