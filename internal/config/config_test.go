package config_test

import (
	"errors"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"testing"
	"time"

	"github.com/pelletier/go-toml/v2"

	"sessionmix/internal/config"
	"sessionmix/internal/services"
)

func TestLoadDefaultConfigExpandsPaths(t *testing.T) {
	tempHome := t.TempDir()
	t.Setenv("HOME", tempHome)
	t.Chdir(t.TempDir())

	cfg, resolved, exists, err := config.Load("")
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if resolved == "" {
		t.Fatal("expected resolved path")
	}
	if exists {
		t.Fatal("expected config file to be absent in temp HOME")
	}

	wantRaw := filepath.Join(tempHome, ".local", "share", "sessionmix", "raw")
	if cfg.Paths.RawDir != wantRaw {
		t.Fatalf("unexpected raw dir: got %q want %q", cfg.Paths.RawDir, wantRaw)
	}
	if !filepath.IsAbs(cfg.Paths.OutputDir) {
		t.Fatalf("expected absolute output dir, got %q", cfg.Paths.OutputDir)
	}
	if cfg.Session.Format != "flac" {
		t.Fatalf("unexpected format: %q", cfg.Session.Format)
	}
	if !cfg.FFmpeg.VerifyOutput {
		t.Fatal("expected output verification enabled by default")
	}
	if cfg.MixConcurrency() != runtime.NumCPU() {
		t.Fatalf("expected one mix per CPU by default, got %d", cfg.MixConcurrency())
	}
	if cfg.MixTimeout() != 0 {
		t.Fatalf("expected no mix timeout by default, got %s", cfg.MixTimeout())
	}

	if err := cfg.EnsureDirectories(); err != nil {
		t.Fatalf("EnsureDirectories failed: %v", err)
	}
	for _, dir := range []string{cfg.Paths.RawDir, cfg.Paths.LogDir} {
		info, err := os.Stat(dir)
		if err != nil {
			t.Fatalf("expected directory %q to exist: %v", dir, err)
		}
		if !info.IsDir() {
			t.Fatalf("expected %q to be directory", dir)
		}
	}
}

func TestLoadCustomPath(t *testing.T) {
	tempDir := t.TempDir()
	configPath := filepath.Join(tempDir, "sessionmix.toml")

	type payload struct {
		Paths struct {
			RawDir    string `toml:"raw_dir"`
			OutputDir string `toml:"output_dir"`
		} `toml:"paths"`
		Session struct {
			Format             string `toml:"format"`
			MaxConcurrentMixes int    `toml:"max_concurrent_mixes"`
			MixTimeoutSeconds  int    `toml:"mix_timeout_seconds"`
		} `toml:"session"`
	}
	custom := payload{}
	custom.Paths.RawDir = filepath.Join(tempDir, "raw")
	custom.Paths.OutputDir = filepath.Join(tempDir, "out")
	custom.Session.Format = ".WAV"
	custom.Session.MaxConcurrentMixes = 3
	custom.Session.MixTimeoutSeconds = 90
	data, err := toml.Marshal(custom)
	if err != nil {
		t.Fatalf("marshal custom config: %v", err)
	}
	if err := os.WriteFile(configPath, data, 0o644); err != nil {
		t.Fatalf("write custom config: %v", err)
	}

	cfg, resolved, exists, err := config.Load(configPath)
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if !exists {
		t.Fatal("expected exists to be true")
	}
	if resolved != configPath {
		t.Fatalf("unexpected resolved path: got %q want %q", resolved, configPath)
	}
	if cfg.Paths.RawDir != custom.Paths.RawDir {
		t.Fatalf("expected raw dir from file, got %q", cfg.Paths.RawDir)
	}
	if cfg.Session.Format != "wav" {
		t.Fatalf("expected normalized format wav, got %q", cfg.Session.Format)
	}
	if cfg.MixConcurrency() != 3 {
		t.Fatalf("expected concurrency 3, got %d", cfg.MixConcurrency())
	}
	if cfg.MixTimeout() != 90*time.Second {
		t.Fatalf("expected 90s timeout, got %s", cfg.MixTimeout())
	}
}

func TestEnvOverridesConfigFile(t *testing.T) {
	tempDir := t.TempDir()
	configPath := filepath.Join(tempDir, "sessionmix.toml")
	content := "[paths]\nraw_dir = \"" + filepath.ToSlash(filepath.Join(tempDir, "file-raw")) + "\"\n\n[session]\nformat = \"flac\"\n"
	if err := os.WriteFile(configPath, []byte(content), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	envRaw := filepath.Join(tempDir, "env-raw")
	t.Setenv("SESSIONMIX_RAW_DIR", envRaw)
	t.Setenv("SESSIONMIX_FORMAT", "wav")
	t.Setenv("SESSIONMIX_VERIFY_OUTPUT", "false")
	t.Setenv("SESSIONMIX_MAX_CONCURRENT_MIXES", "2")

	cfg, _, _, err := config.Load(configPath)
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if cfg.Paths.RawDir != envRaw {
		t.Fatalf("expected env raw dir, got %q", cfg.Paths.RawDir)
	}
	if cfg.Session.Format != "wav" {
		t.Fatalf("expected env format, got %q", cfg.Session.Format)
	}
	if cfg.FFmpeg.VerifyOutput {
		t.Fatal("expected env to disable verification")
	}
	if cfg.Session.MaxConcurrentMixes != 2 {
		t.Fatalf("expected env concurrency, got %d", cfg.Session.MaxConcurrentMixes)
	}
}

func TestApplyOverridesTakePrecedence(t *testing.T) {
	tempDir := t.TempDir()
	cfg := config.Default()
	cfg.Paths.RawDir = filepath.Join(tempDir, "raw")

	cleanup := true
	err := cfg.Apply(config.Overrides{
		OutputDir:          filepath.Join(tempDir, "out"),
		Format:             "FLAC",
		MaxConcurrentMixes: 4,
		MixTimeout:         2 * time.Minute,
		CleanupRaw:         &cleanup,
	})
	if err != nil {
		t.Fatalf("Apply returned error: %v", err)
	}
	if cfg.Paths.OutputDir != filepath.Join(tempDir, "out") {
		t.Fatalf("unexpected output dir %q", cfg.Paths.OutputDir)
	}
	if cfg.Session.Format != "flac" {
		t.Fatalf("unexpected format %q", cfg.Session.Format)
	}
	if cfg.MixConcurrency() != 4 {
		t.Fatalf("unexpected concurrency %d", cfg.MixConcurrency())
	}
	if cfg.MixTimeout() != 2*time.Minute {
		t.Fatalf("unexpected timeout %s", cfg.MixTimeout())
	}
	if !cfg.Session.CleanupRaw {
		t.Fatal("expected cleanup override")
	}
}

func TestApplyMixTimeoutWholeSeconds(t *testing.T) {
	cfg := config.Default()
	if err := cfg.Apply(config.Overrides{MixTimeout: 1500 * time.Millisecond}); err != nil {
		t.Fatalf("Apply returned error: %v", err)
	}
	if cfg.MixTimeout() != 2*time.Second {
		t.Fatalf("expected 1.5s rounded up to 2s, got %s", cfg.MixTimeout())
	}

	for _, d := range []time.Duration{400 * time.Millisecond, -time.Second} {
		cfg := config.Default()
		err := cfg.Apply(config.Overrides{MixTimeout: d})
		if !errors.Is(err, services.ErrConfiguration) {
			t.Fatalf("timeout %s: expected ErrConfiguration, got %v", d, err)
		}
		if cfg.MixTimeout() != 0 {
			t.Fatalf("timeout %s: rejected override must not change config, got %s", d, cfg.MixTimeout())
		}
	}
}

func TestValidateRejectsBadValues(t *testing.T) {
	cases := []struct {
		name   string
		mutate func(*config.Config)
		want   string
	}{
		{"negative concurrency", func(c *config.Config) { c.Session.MaxConcurrentMixes = -1 }, "max_concurrent_mixes"},
		{"negative timeout", func(c *config.Config) { c.Session.MixTimeoutSeconds = -5 }, "mix_timeout_seconds"},
		{"format with path", func(c *config.Config) { c.Session.Format = "fl/ac" }, "session.format"},
		{"log format", func(c *config.Config) { c.Logging.Format = "xml" }, "logging.format"},
		{"log level", func(c *config.Config) { c.Logging.Level = "loud" }, "logging.level"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			cfg := config.Default()
			tc.mutate(&cfg)
			err := cfg.Validate()
			if err == nil {
				t.Fatal("expected validation error")
			}
			if !strings.Contains(err.Error(), tc.want) {
				t.Fatalf("expected %q in %v", tc.want, err)
			}
			if !errors.Is(err, services.ErrConfiguration) {
				t.Fatalf("expected ErrConfiguration, got %v", err)
			}
		})
	}
}

func TestUnknownKeysRejected(t *testing.T) {
	configPath := filepath.Join(t.TempDir(), "sessionmix.toml")
	if err := os.WriteFile(configPath, []byte("[directories]\noutput = \"x\"\n"), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	if _, _, _, err := config.Load(configPath); err == nil {
		t.Fatal("expected error for unknown section")
	}
}

func TestSampleConfigParses(t *testing.T) {
	tempHome := t.TempDir()
	t.Setenv("HOME", tempHome)
	path := filepath.Join(t.TempDir(), "config.toml")
	if err := config.CreateSample(path); err != nil {
		t.Fatalf("CreateSample: %v", err)
	}
	cfg, _, exists, err := config.Load(path)
	if err != nil {
		t.Fatalf("Load sample: %v", err)
	}
	if !exists {
		t.Fatal("expected sample to exist")
	}
	if cfg.Paths.OutputDir != filepath.Join(tempHome, "Music", "sessions") {
		t.Fatalf("unexpected output dir %q", cfg.Paths.OutputDir)
	}
}
