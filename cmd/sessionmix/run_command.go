package main

import (
	"fmt"
	"io"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"sessionmix/internal/config"
	"sessionmix/internal/deps"
	"sessionmix/internal/preflight"
	"sessionmix/internal/services"
	"sessionmix/internal/session"
)

type runFlags struct {
	archives   []string
	name       string
	outputDir  string
	rawDir     string
	format     string
	jobs       int
	mixTimeout time.Duration
	cleanupRaw bool
	jsonOutput bool
}

func newRunCommand(ctx *commandContext) *cobra.Command {
	var flags runFlags

	cmd := &cobra.Command{
		Use:   "run -a ARCHIVE [-a ARCHIVE...] -n NAME",
		Short: "Extract, mix, and concatenate a recording session",
		Long: "Each archive holds one participant's tracks. Every archive is extracted into\n" +
			"its own directory, its tracks are mixed into one file, and the mixed files are\n" +
			"joined in archive order into <output>/<name>.<format>.",
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			overrides := config.Overrides{
				RawDir:             flags.rawDir,
				OutputDir:          flags.outputDir,
				Format:             flags.format,
				MaxConcurrentMixes: flags.jobs,
				MixTimeout:         flags.mixTimeout,
			}
			if cmd.Flags().Changed("cleanup-raw") {
				overrides.CleanupRaw = &flags.cleanupRaw
			}
			if err := cfg.Apply(overrides); err != nil {
				return err
			}
			if err := cfg.EnsureDirectories(); err != nil {
				return fmt.Errorf("ensure directories: %w", err)
			}

			archives, err := resolveArchives(flags.archives)
			if err != nil {
				return err
			}
			checks := append(preflight.RunAll(cfg), preflight.CheckArchives(archives)...)
			if err := preflight.Err(checks); err != nil {
				return err
			}
			if ctx.runner == nil {
				if missing := deps.Missing(preflight.CheckSystemDeps(cmd.Context(), cfg)); len(missing) > 0 {
					return services.Wrap(services.ErrExternalTool, "preflight", "check binaries",
						fmt.Sprintf("%s not available (%s)", missing[0].Name, missing[0].Detail), nil)
				}
			}

			logger, err := ctx.newLogger(cfg)
			if err != nil {
				return err
			}

			var opts []session.Option
			if ctx.runner != nil {
				opts = append(opts, session.WithCommandRunner(ctx.runner))
			}
			if ctx.inspector != nil {
				opts = append(opts, session.WithInspector(ctx.inspector))
			}
			orch, err := session.New(session.OptionsFromConfig(cfg, flags.name, archives), logger, opts...)
			if err != nil {
				return err
			}

			result, runErr := orch.Run(cmd.Context())
			if flags.jsonOutput {
				if err := writeJSON(cmd, newRunReport(result, runErr)); err != nil {
					return err
				}
				return runErr
			}
			if runErr != nil {
				return runErr
			}
			printRunSummary(cmd.OutOrStdout(), result)
			return nil
		},
	}

	cmd.Flags().StringArrayVarP(&flags.archives, "archive", "a", nil, "Participant archive (repeat in session order)")
	cmd.Flags().StringVarP(&flags.name, "name", "n", "", "Session name; also the output file name")
	cmd.Flags().StringVarP(&flags.outputDir, "output", "o", "", "Directory for the session file")
	cmd.Flags().StringVarP(&flags.rawDir, "raw_output", "r", "", "Directory archives are extracted into")
	cmd.Flags().StringVar(&flags.format, "format", "", "Track and output format (file extension)")
	cmd.Flags().IntVarP(&flags.jobs, "jobs", "j", 0, "Maximum concurrent mix processes (default: one per CPU)")
	cmd.Flags().DurationVar(&flags.mixTimeout, "mix-timeout", 0, "Abort any single mix running longer than this")
	cmd.Flags().BoolVar(&flags.cleanupRaw, "cleanup-raw", false, "Remove extracted files after a successful run")
	cmd.Flags().BoolVar(&flags.jsonOutput, "json", false, "Print the result as JSON")
	_ = cmd.MarkFlagRequired("archive")
	_ = cmd.MarkFlagRequired("name")

	return cmd
}

func resolveArchives(paths []string) ([]string, error) {
	resolved := make([]string, 0, len(paths))
	for _, p := range paths {
		expanded, err := config.ExpandPath(strings.TrimSpace(p))
		if err != nil {
			return nil, fmt.Errorf("resolve archive %q: %w", p, err)
		}
		resolved = append(resolved, expanded)
	}
	return resolved, nil
}

type runReport struct {
	session.Result
	Error       string `json:"error,omitempty"`
	FailedIndex *int   `json:"failed_index,omitempty"`
}

func newRunReport(result session.Result, err error) runReport {
	report := runReport{Result: result}
	if err != nil {
		report.Error = err.Error()
		if idx, ok := services.FailureIndex(err); ok {
			report.FailedIndex = &idx
		}
	}
	return report
}

func printRunSummary(out io.Writer, result session.Result) {
	rows := make([][]string, 0, len(result.Recordings))
	for _, rec := range result.Recordings {
		rows = append(rows, []string{
			strconv.Itoa(rec.Index),
			filepath.Base(rec.Archive),
			strconv.Itoa(rec.Tracks),
			rec.MixElapsed.Round(time.Millisecond).String(),
		})
	}
	fmt.Fprintln(out, renderTable(
		[]string{"#", "Archive", "Tracks", "Mix Time"},
		rows,
		[]columnAlignment{alignRight, alignLeft, alignRight, alignRight},
	))
	fmt.Fprintln(out, renderKeyValues([][2]string{
		{"Session", result.Session},
		{"Run ID", result.RunID},
		{"Export", result.Mode},
		{"Output", result.Output},
		{"Elapsed", result.Elapsed.Round(time.Millisecond).String()},
	}))
}
