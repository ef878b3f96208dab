package preflight

import (
	"fmt"
	"strings"

	"sessionmix/internal/config"
	"sessionmix/internal/services"
)

// Result reports the outcome of a single preflight check.
type Result struct {
	Name   string `json:"name"`
	Passed bool   `json:"passed"`
	Detail string `json:"detail"`
}

// RunAll executes the directory checks for the given config. The log
// directory is only checked when file logging is configured.
func RunAll(cfg *config.Config) []Result {
	if cfg == nil {
		return nil
	}

	results := []Result{
		CheckDirectoryAccess("Raw directory", cfg.Paths.RawDir),
		CheckDirectoryAccess("Output directory", cfg.Paths.OutputDir),
	}
	if cfg.Paths.LogDir != "" {
		results = append(results, CheckDirectoryAccess("Log directory", cfg.Paths.LogDir))
	}
	return results
}

// Failures returns the results that did not pass.
func Failures(results []Result) []Result {
	var failed []Result
	for _, r := range results {
		if !r.Passed {
			failed = append(failed, r)
		}
	}
	return failed
}

// Err folds failed results into a single configuration error, or nil.
func Err(results []Result) error {
	failed := Failures(results)
	if len(failed) == 0 {
		return nil
	}
	parts := make([]string, 0, len(failed))
	for _, r := range failed {
		parts = append(parts, fmt.Sprintf("%s: %s", r.Name, r.Detail))
	}
	return services.Wrap(services.ErrConfiguration, "preflight", "check", strings.Join(parts, "; "), nil)
}
