package deps

import (
	"bytes"
	"context"
	"fmt"
	"os/exec"
	"strings"
	"time"

	"sessionmix/internal/config"
)

// Requirement defines an external binary the pipeline shells out to.
type Requirement struct {
	Name        string
	Command     string
	Description string
	Optional    bool
}

// Status reports the availability of a dependency.
type Status struct {
	Name        string `json:"name"`
	Command     string `json:"command"`
	Path        string `json:"path,omitempty"`
	Version     string `json:"version,omitempty"`
	Description string `json:"description"`
	Optional    bool   `json:"optional"`
	Available   bool   `json:"available"`
	Detail      string `json:"detail,omitempty"`
}

// Requirements lists the binaries needed for cfg. ffprobe is only required
// when output verification is on.
func Requirements(cfg *config.Config) []Requirement {
	return []Requirement{
		{Name: "FFmpeg", Command: cfg.FFmpeg.Binary, Description: "Mixes tracks and concatenates recordings"},
		{Name: "FFprobe", Command: cfg.FFmpeg.FFprobeBinary, Description: "Verifies the session file", Optional: !cfg.FFmpeg.VerifyOutput},
	}
}

var versionTimeout = 5 * time.Second

// CheckBinaries evaluates the provided requirements and reports availability.
func CheckBinaries(ctx context.Context, requirements []Requirement) []Status {
	results := make([]Status, 0, len(requirements))
	for _, req := range requirements {
		cmd := strings.TrimSpace(req.Command)
		status := Status{
			Name:        req.Name,
			Command:     cmd,
			Description: strings.TrimSpace(req.Description),
			Optional:    req.Optional,
		}
		if cmd == "" {
			status.Detail = "command not configured"
			results = append(results, status)
			continue
		}
		path, err := exec.LookPath(cmd)
		if err != nil {
			status.Detail = fmt.Sprintf("binary %q not found", cmd)
			results = append(results, status)
			continue
		}
		status.Path = path
		status.Available = true
		status.Version = probeVersion(ctx, path)
		results = append(results, status)
	}
	return results
}

// Missing returns the unavailable required dependencies.
func Missing(statuses []Status) []Status {
	var missing []Status
	for _, s := range statuses {
		if !s.Available && !s.Optional {
			missing = append(missing, s)
		}
	}
	return missing
}

// probeVersion returns the first line of `<binary> -version`, or "" when the
// binary does not answer.
func probeVersion(ctx context.Context, binary string) string {
	ctx, cancel := context.WithTimeout(ctx, versionTimeout)
	defer cancel()
	var out bytes.Buffer
	cmd := exec.CommandContext(ctx, binary, "-version")
	cmd.Stdout = &out
	if err := cmd.Run(); err != nil {
		return ""
	}
	line, _, _ := strings.Cut(out.String(), "\n")
	return strings.TrimSpace(line)
}
