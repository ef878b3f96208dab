package main

import (
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/spf13/cobra"

	"sessionmix/internal/config"
	"sessionmix/internal/ffmpeg"
	"sessionmix/internal/logging"
	"sessionmix/internal/media/ffprobe"
)

type commandContext struct {
	configFlag   *string
	logLevelFlag *string

	configOnce sync.Once
	config     *config.Config
	configPath string
	configErr  error

	// runner and inspector replace the external tools in tests.
	runner    ffmpeg.Runner
	inspector ffprobe.Inspector
}

func newCommandContext(configFlag, logLevelFlag *string) *commandContext {
	return &commandContext{
		configFlag:   configFlag,
		logLevelFlag: logLevelFlag,
	}
}

func (c *commandContext) ensureConfig() (*config.Config, error) {
	c.configOnce.Do(func() {
		var path string
		if c.configFlag != nil {
			path = strings.TrimSpace(*c.configFlag)
		}
		cfg, resolved, exists, err := config.Load(path)
		if err != nil {
			c.configErr = err
			return
		}
		if c.logLevelFlag != nil && strings.TrimSpace(*c.logLevelFlag) != "" {
			if err := cfg.Apply(config.Overrides{LogLevel: *c.logLevelFlag}); err != nil {
				c.configErr = err
				return
			}
		}
		c.config = cfg
		if exists {
			c.configPath = resolved
		}
	})
	return c.config, c.configErr
}

// newLogger builds the run logger and prunes expired log files.
func (c *commandContext) newLogger(cfg *config.Config) (*slog.Logger, error) {
	logger, err := logging.NewFromConfig(cfg)
	if err != nil {
		return nil, err
	}
	if cfg != nil && cfg.Paths.LogDir != "" {
		keep := logging.LogFilePath(cfg.Paths.LogDir, time.Now())
		logging.CleanupOldLogs(logger, cfg.Paths.LogDir, logging.LogFilePattern, keep, cfg.Logging.RetentionDays)
	}
	return logger, nil
}

func shouldSkipConfig(cmd *cobra.Command) bool {
	for c := cmd; c != nil; c = c.Parent() {
		if c.Annotations != nil && c.Annotations["skipConfigLoad"] == "true" {
			return true
		}
	}
	return false
}

func yesNo(value bool) string {
	if value {
		return "yes"
	}
	return "no"
}
