// Package services defines shared utilities consumed by the session pipeline
// stages.
//
// Key responsibilities:
//   - Context helpers that stamp run IDs, stage names, and recording indexes
//     for logging and tracing.
//   - Structured error markers plus the Fail and Wrap helpers that attach the
//     stage and offending input to every fatal pipeline error.
//
// Use these helpers when wiring new stage logic so operational behaviour
// (error reporting, observability) stays uniform across the pipeline.
package services
