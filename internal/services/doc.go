// Package services defines shared utilities consumed by the pipeline stage
// executors and external integrations.
//
// Key responsibilities:
//   - Context helpers that stamp task IDs, stage names, correlation
//     identifiers, and the force-recompute flag for logging and dispatch.
//   - Structured error markers plus the Wrap helper that classify failures
//     into the pipeline error taxonomy, and Details which recovers the
//     human-readable message persisted on a failed task.
//
// Use these helpers when wiring new stage logic so operational behaviour
// (error handling, observability) stays uniform across the pipeline.
package services
