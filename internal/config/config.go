package config

import (
	_ "embed"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/pelletier/go-toml/v2"

	"sessionmix/internal/services"
)

//go:embed sample_config.toml
var sampleConfig string

// Paths contains directory configuration.
type Paths struct {
	RawDir    string `toml:"raw_dir" env:"SESSIONMIX_RAW_DIR"`
	OutputDir string `toml:"output_dir" env:"SESSIONMIX_OUTPUT_DIR"`
	LogDir    string `toml:"log_dir" env:"SESSIONMIX_LOG_DIR"`
}

// Session contains pipeline tuning knobs.
type Session struct {
	// Format is the track, mixed, and final file extension without the dot.
	Format string `toml:"format" env:"SESSIONMIX_FORMAT"`
	// MaxConcurrentMixes caps running ffmpeg mix processes. 0 means one per CPU.
	MaxConcurrentMixes int `toml:"max_concurrent_mixes" env:"SESSIONMIX_MAX_CONCURRENT_MIXES"`
	// MixTimeoutSeconds bounds each mix process. 0 disables the timeout.
	MixTimeoutSeconds int `toml:"mix_timeout_seconds" env:"SESSIONMIX_MIX_TIMEOUT_SECONDS"`
	// CleanupRaw removes the session's extracted files after a successful run.
	CleanupRaw bool `toml:"cleanup_raw" env:"SESSIONMIX_CLEANUP_RAW"`
}

// FFmpeg contains external tool settings.
type FFmpeg struct {
	Binary        string `toml:"binary" env:"SESSIONMIX_FFMPEG"`
	FFprobeBinary string `toml:"ffprobe_binary" env:"SESSIONMIX_FFPROBE"`
	VerifyOutput  bool   `toml:"verify_output" env:"SESSIONMIX_VERIFY_OUTPUT"`
}

// Logging contains configuration for log output.
type Logging struct {
	Format        string `toml:"format" env:"SESSIONMIX_LOG_FORMAT"`
	Level         string `toml:"level" env:"SESSIONMIX_LOG_LEVEL"`
	RetentionDays int    `toml:"retention_days" env:"SESSIONMIX_LOG_RETENTION_DAYS"`
}

// Config encapsulates all configuration values for sessionmix.
type Config struct {
	Paths   Paths   `toml:"paths"`
	Session Session `toml:"session"`
	FFmpeg  FFmpeg  `toml:"ffmpeg"`
	Logging Logging `toml:"logging"`
}

// Overrides carries values supplied on the command line. Zero values leave the
// loaded configuration untouched.
type Overrides struct {
	RawDir             string
	OutputDir          string
	Format             string
	MaxConcurrentMixes int
	MixTimeout         time.Duration
	CleanupRaw         *bool
	LogLevel           string
}

// DefaultConfigPath returns the absolute path to the default configuration file location.
func DefaultConfigPath() (string, error) {
	return expandPath("~/.config/sessionmix/config.toml")
}

// Load locates, parses, and validates a configuration file, then applies
// environment overrides. The returned config has all path fields expanded and
// normalized.
func Load(path string) (*Config, string, bool, error) {
	cfg := Default()

	resolvedPath, exists, err := resolveConfigPath(path)
	if err != nil {
		return nil, "", false, err
	}

	if exists {
		file, err := os.Open(resolvedPath)
		if err != nil {
			return nil, "", false, fmt.Errorf("open config: %w", err)
		}
		defer file.Close()

		decoder := toml.NewDecoder(file)
		decoder.DisallowUnknownFields()
		if err := decoder.Decode(&cfg); err != nil {
			return nil, "", false, fmt.Errorf("parse config %s: %w", resolvedPath, err)
		}
	}

	if err := env.Parse(&cfg); err != nil {
		return nil, "", false, fmt.Errorf("parse env: %w", err)
	}

	if err := cfg.normalize(); err != nil {
		return nil, "", false, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, "", false, err
	}

	return &cfg, resolvedPath, exists, nil
}

// Apply merges command-line overrides into the configuration, then
// re-normalizes and re-validates it.
func (c *Config) Apply(o Overrides) error {
	if o.MixTimeout != 0 && o.MixTimeout < time.Second {
		return fmt.Errorf("%w: mix timeout %s must be at least 1s", services.ErrConfiguration, o.MixTimeout)
	}
	if v := strings.TrimSpace(o.RawDir); v != "" {
		c.Paths.RawDir = v
	}
	if v := strings.TrimSpace(o.OutputDir); v != "" {
		c.Paths.OutputDir = v
	}
	if v := strings.TrimSpace(o.Format); v != "" {
		c.Session.Format = v
	}
	if o.MaxConcurrentMixes != 0 {
		c.Session.MaxConcurrentMixes = o.MaxConcurrentMixes
	}
	if o.MixTimeout != 0 {
		// Whole seconds, rounded up so the limit never shrinks.
		c.Session.MixTimeoutSeconds = int((o.MixTimeout + time.Second - 1) / time.Second)
	}
	if o.CleanupRaw != nil {
		c.Session.CleanupRaw = *o.CleanupRaw
	}
	if v := strings.TrimSpace(o.LogLevel); v != "" {
		c.Logging.Level = v
	}
	if err := c.normalize(); err != nil {
		return err
	}
	return c.Validate()
}

func resolveConfigPath(path string) (string, bool, error) {
	if path != "" {
		expanded, err := expandPath(path)
		if err != nil {
			return "", false, err
		}
		info, err := os.Stat(expanded)
		if err != nil {
			return "", false, fmt.Errorf("config file %s: %w", expanded, err)
		}
		if info.IsDir() {
			return "", false, fmt.Errorf("config file %s is a directory", expanded)
		}
		return expanded, true, nil
	}

	defaultPath, err := DefaultConfigPath()
	if err != nil {
		return "", false, err
	}

	projectPath, err := filepath.Abs("sessionmix.toml")
	if err != nil {
		return "", false, err
	}

	if info, err := os.Stat(defaultPath); err == nil && !info.IsDir() {
		return defaultPath, true, nil
	}
	if info, err := os.Stat(projectPath); err == nil && !info.IsDir() {
		return projectPath, true, nil
	}

	return defaultPath, false, nil
}

// EnsureDirectories creates the raw staging and log directories. The output
// directory is deliberately left alone; a missing destination is reported by
// the export stage.
func (c *Config) EnsureDirectories() error {
	for _, dir := range []string{c.Paths.RawDir, c.Paths.LogDir} {
		if strings.TrimSpace(dir) == "" {
			continue
		}
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create directory %q: %w", dir, err)
		}
	}
	return nil
}

// MixConcurrency returns the effective cap on concurrent mix processes.
func (c *Config) MixConcurrency() int {
	if c.Session.MaxConcurrentMixes > 0 {
		return c.Session.MaxConcurrentMixes
	}
	return runtime.NumCPU()
}

// MixTimeout returns the per-mix timeout, or 0 when disabled.
func (c *Config) MixTimeout() time.Duration {
	if c.Session.MixTimeoutSeconds <= 0 {
		return 0
	}
	return time.Duration(c.Session.MixTimeoutSeconds) * time.Second
}

func expandPath(pathValue string) (string, error) {
	if pathValue == "" {
		return pathValue, nil
	}
	if strings.HasPrefix(pathValue, "~") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("resolve home directory: %w", err)
		}
		if pathValue == "~" {
			pathValue = home
		} else if len(pathValue) > 1 && (pathValue[1] == '/' || pathValue[1] == '\\') {
			pathValue = filepath.Join(home, pathValue[2:])
		}
	}
	absolute, err := filepath.Abs(filepath.Clean(pathValue))
	if err != nil {
		return "", fmt.Errorf("resolve absolute path for %q: %w", pathValue, err)
	}
	return absolute, nil
}

// ExpandPath exposes the repository path expansion rules for other packages.
func ExpandPath(pathValue string) (string, error) {
	return expandPath(pathValue)
}

// CreateSample writes a sample configuration file to the specified location.
func CreateSample(path string) error {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create config directory: %w", err)
		}
	}
	if err := os.WriteFile(path, []byte(sampleConfig), 0o644); err != nil {
		return fmt.Errorf("write sample config: %w", err)
	}
	return nil
}
