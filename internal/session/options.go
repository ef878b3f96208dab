package session

import (
	"strings"
	"time"

	"sessionmix/internal/config"
	"sessionmix/internal/services"
	"sessionmix/internal/textutil"
)

// Options is the fully resolved input of a run.
type Options struct {
	Name               string
	Archives           []string
	RawDir             string
	OutputDir          string
	Format             string
	FFmpegBinary       string
	FFprobeBinary      string
	MaxConcurrentMixes int
	MixTimeout         time.Duration
	VerifyOutput       bool
	CleanupRaw         bool
}

// OptionsFromConfig resolves run options from loaded configuration.
func OptionsFromConfig(cfg *config.Config, name string, archives []string) Options {
	return Options{
		Name:               name,
		Archives:           append([]string(nil), archives...),
		RawDir:             cfg.Paths.RawDir,
		OutputDir:          cfg.Paths.OutputDir,
		Format:             cfg.Session.Format,
		FFmpegBinary:       cfg.FFmpeg.Binary,
		FFprobeBinary:      cfg.FFmpeg.FFprobeBinary,
		MaxConcurrentMixes: cfg.MixConcurrency(),
		MixTimeout:         cfg.MixTimeout(),
		VerifyOutput:       cfg.FFmpeg.VerifyOutput,
		CleanupRaw:         cfg.Session.CleanupRaw,
	}
}

func (o Options) normalized() (Options, error) {
	fail := func(msg string) (Options, error) {
		return o, services.Wrap(services.ErrConfiguration, "session", "validate options", msg, nil)
	}
	raw := strings.TrimSpace(o.Name)
	o.Name = textutil.SanitizeFileName(raw)
	if o.Name == "" {
		if raw == "" {
			return fail("session name is required")
		}
		return fail("session name " + raw + " is not a usable file name")
	}
	o.RawDir = strings.TrimSpace(o.RawDir)
	if o.RawDir == "" {
		return fail("raw directory is required")
	}
	o.OutputDir = strings.TrimSpace(o.OutputDir)
	if o.OutputDir == "" {
		return fail("output directory is required")
	}
	o.Format = strings.TrimPrefix(strings.ToLower(strings.TrimSpace(o.Format)), ".")
	if o.Format == "" {
		o.Format = "flac"
	}
	if o.MixTimeout < 0 {
		return fail("mix timeout must not be negative")
	}
	return o, nil
}
