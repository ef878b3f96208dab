package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"sessionmix/internal/deps"
	"sessionmix/internal/preflight"
)

type doctorReport struct {
	ConfigPath   string             `json:"config_path"`
	Dependencies []deps.Status      `json:"dependencies"`
	Directories  []preflight.Result `json:"directories"`
	Problems     int                `json:"problems"`
}

func newDoctorCommand(ctx *commandContext) *cobra.Command {
	var jsonOutput bool

	cmd := &cobra.Command{
		Use:   "doctor",
		Short: "Check external tools and directories",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			if err := cfg.EnsureDirectories(); err != nil {
				return fmt.Errorf("ensure directories: %w", err)
			}

			report := doctorReport{
				ConfigPath:   ctx.configPath,
				Dependencies: preflight.CheckSystemDeps(cmd.Context(), cfg),
				Directories:  preflight.RunAll(cfg),
			}
			report.Problems = len(deps.Missing(report.Dependencies)) + len(preflight.Failures(report.Directories))

			if jsonOutput {
				if err := writeJSON(cmd, report); err != nil {
					return err
				}
			} else {
				out := cmd.OutOrStdout()
				colorize := shouldColorize(out)
				lines := renderSectionHeader("Dependencies", colorize)
				for _, dep := range report.Dependencies {
					lines = append(lines, renderStatusLine(dep.Name, dependencyKind(dep), dependencyMessage(dep), colorize))
				}
				lines = append(lines, "")
				lines = append(lines, renderSectionHeader("Directories", colorize)...)
				for _, dir := range report.Directories {
					kind := statusOK
					if !dir.Passed {
						kind = statusError
					}
					lines = append(lines, renderStatusLine(dir.Name, kind, dir.Detail, colorize))
				}
				lines = append(lines, "", renderStatusLine("Config", statusInfo, configMessage(ctx.configPath), colorize))
				fmt.Fprintln(out, strings.Join(lines, "\n"))
			}

			if report.Problems > 0 {
				return fmt.Errorf("doctor found %d problem(s)", report.Problems)
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Print the report as JSON")
	return cmd
}

func dependencyKind(dep deps.Status) statusKind {
	switch {
	case dep.Available:
		return statusOK
	case dep.Optional:
		return statusWarn
	default:
		return statusError
	}
}

func dependencyMessage(dep deps.Status) string {
	if !dep.Available {
		return dep.Detail
	}
	if dep.Version != "" {
		return dep.Version
	}
	return dep.Path
}

func configMessage(path string) string {
	if path == "" {
		return "defaults"
	}
	return path
}
