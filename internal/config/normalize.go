package config

import (
	"fmt"
	"strings"
)

func (c *Config) normalize() error {
	if err := c.normalizePaths(); err != nil {
		return err
	}
	c.normalizeSession()
	c.normalizeFFmpeg()
	c.normalizeLogging()
	return nil
}

func (c *Config) normalizePaths() error {
	var err error
	if strings.TrimSpace(c.Paths.RawDir) == "" {
		c.Paths.RawDir = defaultRawDir
	}
	if c.Paths.RawDir, err = expandPath(strings.TrimSpace(c.Paths.RawDir)); err != nil {
		return fmt.Errorf("paths.raw_dir: %w", err)
	}
	if strings.TrimSpace(c.Paths.OutputDir) == "" {
		c.Paths.OutputDir = defaultOutputDir
	}
	if c.Paths.OutputDir, err = expandPath(strings.TrimSpace(c.Paths.OutputDir)); err != nil {
		return fmt.Errorf("paths.output_dir: %w", err)
	}
	if c.Paths.LogDir, err = expandPath(strings.TrimSpace(c.Paths.LogDir)); err != nil {
		return fmt.Errorf("paths.log_dir: %w", err)
	}
	return nil
}

func (c *Config) normalizeSession() {
	format := strings.ToLower(strings.TrimSpace(c.Session.Format))
	format = strings.TrimPrefix(format, ".")
	if format == "" {
		format = defaultFormat
	}
	c.Session.Format = format
}

func (c *Config) normalizeFFmpeg() {
	c.FFmpeg.Binary = strings.TrimSpace(c.FFmpeg.Binary)
	if c.FFmpeg.Binary == "" {
		c.FFmpeg.Binary = defaultFFmpegBinary
	}
	c.FFmpeg.FFprobeBinary = strings.TrimSpace(c.FFmpeg.FFprobeBinary)
	if c.FFmpeg.FFprobeBinary == "" {
		c.FFmpeg.FFprobeBinary = defaultFFprobeBinary
	}
}

func (c *Config) normalizeLogging() {
	c.Logging.Format = strings.ToLower(strings.TrimSpace(c.Logging.Format))
	if c.Logging.Format == "" {
		c.Logging.Format = defaultLogFormat
	}
	c.Logging.Level = strings.ToLower(strings.TrimSpace(c.Logging.Level))
	if c.Logging.Level == "" {
		c.Logging.Level = defaultLogLevel
	}
}
