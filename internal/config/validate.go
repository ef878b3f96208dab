package config

import (
	"errors"
	"fmt"
	"strings"

	"sessionmix/internal/services"
)

// Validate ensures the configuration is usable. Failures match
// services.ErrConfiguration.
func (c *Config) Validate() error {
	if err := c.validate(); err != nil {
		return fmt.Errorf("%w: %w", services.ErrConfiguration, err)
	}
	return nil
}

func (c *Config) validate() error {
	if strings.TrimSpace(c.Paths.RawDir) == "" {
		return errors.New("paths.raw_dir must be set")
	}
	if err := c.validateSession(); err != nil {
		return err
	}
	if err := c.validateLogging(); err != nil {
		return err
	}
	return nil
}

func (c *Config) validateSession() error {
	format := c.Session.Format
	if format == "" {
		return errors.New("session.format must be set")
	}
	for _, r := range format {
		if !(r >= 'a' && r <= 'z' || r >= '0' && r <= '9') {
			return fmt.Errorf("session.format %q must be a bare file extension such as flac", format)
		}
	}
	if c.Session.MaxConcurrentMixes < 0 {
		return errors.New("session.max_concurrent_mixes must be >= 0 (0 means one per CPU)")
	}
	if c.Session.MixTimeoutSeconds < 0 {
		return errors.New("session.mix_timeout_seconds must be >= 0 (0 disables the timeout)")
	}
	return nil
}

func (c *Config) validateLogging() error {
	switch c.Logging.Format {
	case "console", "json":
	default:
		return fmt.Errorf("logging.format: unsupported value %q (use console or json)", c.Logging.Format)
	}
	switch c.Logging.Level {
	case "debug", "info", "warn", "warning", "error":
	default:
		return fmt.Errorf("logging.level: unsupported value %q", c.Logging.Level)
	}
	if c.Logging.RetentionDays < 0 {
		return errors.New("logging.retention_days must be >= 0")
	}
	return nil
}
