package config

const (
	defaultRawDir           = "~/.local/share/sessionmix/raw"
	defaultOutputDir        = "."
	defaultLogDir           = "~/.local/share/sessionmix/logs"
	defaultFormat           = "flac"
	defaultFFmpegBinary     = "ffmpeg"
	defaultFFprobeBinary    = "ffprobe"
	defaultLogFormat        = "console"
	defaultLogLevel         = "info"
	defaultLogRetentionDays = 30
)

// Default returns a Config populated with repository defaults.
func Default() Config {
	return Config{
		Paths: Paths{
			RawDir:    defaultRawDir,
			OutputDir: defaultOutputDir,
			LogDir:    defaultLogDir,
		},
		Session: Session{
			Format: defaultFormat,
		},
		FFmpeg: FFmpeg{
			Binary:        defaultFFmpegBinary,
			FFprobeBinary: defaultFFprobeBinary,
			VerifyOutput:  true,
		},
		Logging: Logging{
			Format:        defaultLogFormat,
			Level:         defaultLogLevel,
			RetentionDays: defaultLogRetentionDays,
		},
	}
}
