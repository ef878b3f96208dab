package testsupport

import (
	"path/filepath"
	"testing"

	"sessionmix/internal/config"
)

// ConfigOption allows callers to customize the generated test configuration.
type ConfigOption func(*configBuilder)

type configBuilder struct {
	t       testing.TB
	baseDir string
	cfg     *config.Config
}

// NewConfig produces a config seeded with unique temp directories per test.
// It defaults common fields and applies any provided options.
func NewConfig(t testing.TB, opts ...ConfigOption) *config.Config {
	t.Helper()

	base := t.TempDir()
	cfgVal := config.Default()
	cfgVal.Paths.RawDir = filepath.Join(base, "raw")
	cfgVal.Paths.OutputDir = filepath.Join(base, "out")
	cfgVal.Paths.LogDir = filepath.Join(base, "logs")

	builder := &configBuilder{
		t:       t,
		baseDir: base,
		cfg:     &cfgVal,
	}

	for _, opt := range opts {
		opt(builder)
	}

	return builder.cfg
}

// WithFormat overrides the track format on the test config.
func WithFormat(format string) ConfigOption {
	return func(b *configBuilder) {
		b.cfg.Session.Format = format
	}
}

// WithMaxConcurrentMixes overrides the mix concurrency cap.
func WithMaxConcurrentMixes(n int) ConfigOption {
	return func(b *configBuilder) {
		b.cfg.Session.MaxConcurrentMixes = n
	}
}

// WithoutVerification disables ffprobe verification of the final output.
func WithoutVerification() ConfigOption {
	return func(b *configBuilder) {
		b.cfg.FFmpeg.VerifyOutput = false
	}
}
