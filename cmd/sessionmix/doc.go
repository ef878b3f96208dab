// Package main hosts the sessionmix CLI entrypoint and command graph.
//
// The Cobra-based command tree resolves configuration (file, environment,
// flags) once, then hands fully resolved options to the internal packages:
// "run" drives a session through the pipeline, "doctor" reports tool and
// directory readiness, "clean" prunes the raw directory, and "config"
// scaffolds and validates configuration files.
package main
