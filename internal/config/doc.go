// Package config loads, normalizes, and validates sessionmix configuration.
//
// Values are resolved once, in a fixed order: repository defaults, then the
// TOML file, then SESSIONMIX_* environment variables, then command-line
// overrides. The resulting Config exposes plain fields; downstream code never
// needs to know which source supplied a value.
package config
