// Package session drives one run of the pipeline: expand every archive into
// its own recording directory, mix each recording's tracks concurrently, then
// export the mixed recordings as a single file named after the session.
//
// The Orchestrator is a one-shot state machine. It moves from Initializing
// through Mixing and Concatenating to Done, or to Failed from any state, and
// every failure it returns is a services.Failure naming the stage and the
// offending input.
package session
