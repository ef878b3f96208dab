package main

import (
	"fmt"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"sessionmix/internal/staging"
)

func newCleanCommand(ctx *commandContext) *cobra.Command {
	var olderThan time.Duration
	var dryRun bool
	var list bool

	cmd := &cobra.Command{
		Use:   "clean",
		Short: "Remove stale session directories from the raw directory",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()

			if list {
				sessions, err := staging.ListSessions(cfg.Paths.RawDir)
				if err != nil {
					return fmt.Errorf("list sessions: %w", err)
				}
				if len(sessions) == 0 {
					fmt.Fprintf(out, "No sessions in %s\n", cfg.Paths.RawDir)
					return nil
				}
				rows := make([][]string, 0, len(sessions))
				for _, s := range sessions {
					rows = append(rows, []string{s.Name, fmt.Sprint(s.Files), humanize.Bytes(uint64(s.Size)), humanize.Time(s.ModTime)})
				}
				fmt.Fprintln(out, renderTable(
					[]string{"Session", "Files", "Size", "Modified"},
					rows,
					[]columnAlignment{alignLeft, alignRight, alignRight, alignLeft},
				))
				return nil
			}

			logger, err := ctx.newLogger(cfg)
			if err != nil {
				return err
			}
			result := staging.CleanStale(cmd.Context(), cfg.Paths.RawDir, olderThan, dryRun, logger)
			verb := "Removed"
			if dryRun {
				verb = "Would remove"
			}
			for _, path := range result.Removed {
				fmt.Fprintf(out, "%s %s\n", verb, path)
			}
			for _, path := range result.Skipped {
				fmt.Fprintf(out, "Skipped %s (in use)\n", path)
			}
			if len(result.Removed) == 0 && len(result.Skipped) == 0 && len(result.Errors) == 0 {
				fmt.Fprintf(out, "Nothing older than %s in %s\n", olderThan, cfg.Paths.RawDir)
			}
			if len(result.Errors) > 0 {
				first := result.Errors[0]
				return fmt.Errorf("clean failed for %d path(s); first: %s: %w", len(result.Errors), first.Path, first.Error)
			}
			return nil
		},
	}

	cmd.Flags().DurationVar(&olderThan, "older-than", 7*24*time.Hour, "Only remove sessions last modified before this age")
	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "Report what would be removed without deleting")
	cmd.Flags().BoolVar(&list, "list", false, "List session directories instead of cleaning")
	return cmd
}
