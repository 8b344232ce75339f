package config

const (
	defaultDataDir    = "~/.local/share/clipforge"
	defaultLogDir     = "~/.local/share/clipforge/logs"
	defaultStagingDir = "~/.local/share/clipforge/staging"
	defaultOutputDir  = "~/.local/share/clipforge/outputs"

	defaultQueuePollInterval  = 5
	defaultErrorRetryInterval = 10
	defaultWorkers            = 2
	defaultLeaseTTL           = 120
	defaultMaxAttempts        = 3
	defaultRetryBackoffBase   = 15
	defaultRetryBackoffMax    = 600
	defaultMinFreeGiB         = 5

	defaultDownloadTimeout   = 600
	defaultTranscribeTimeout = 1800
	defaultDecideTimeout     = 30
	defaultRenderTimeout     = 1200
	defaultPackageTimeout    = 60

	defaultYtDlpBinary    = "yt-dlp"
	defaultWhisperXBinary = "whisperx"
	defaultFFmpegBinary   = "ffmpeg"

	defaultProfileSlug         = "default"
	defaultLengthMinSeconds    = 20.0
	defaultLengthMaxSeconds    = 60.0
	defaultHookMaxDelaySeconds = 2.0
	defaultSilenceRatioMax     = 0.20
	defaultTitleTemplate       = "{title} #{creator}"

	defaultLogFormat = "console"
	defaultLogLevel  = "info"
)

// Default returns a Config populated with repository defaults.
func Default() Config {
	return Config{
		Paths: Paths{
			DataDir:    defaultDataDir,
			LogDir:     defaultLogDir,
			StagingDir: defaultStagingDir,
			OutputDir:  defaultOutputDir,
		},
		Workflow: Workflow{
			QueuePollInterval:  defaultQueuePollInterval,
			ErrorRetryInterval: defaultErrorRetryInterval,
			Workers:            defaultWorkers,
			BatchSize:          0, // derived from workers when unset
			LeaseTTL:           defaultLeaseTTL,
			MaxAttempts:        defaultMaxAttempts,
			RetryBackoffBase:   defaultRetryBackoffBase,
			RetryBackoffMax:    defaultRetryBackoffMax,
			MinFreeGiB:         defaultMinFreeGiB,
		},
		Stages: Stages{
			DownloadTimeout:   defaultDownloadTimeout,
			TranscribeTimeout: defaultTranscribeTimeout,
			DecideTimeout:     defaultDecideTimeout,
			RenderTimeout:     defaultRenderTimeout,
			PackageTimeout:    defaultPackageTimeout,
		},
		Tools: Tools{
			YtDlpBinary:    defaultYtDlpBinary,
			WhisperXBinary: defaultWhisperXBinary,
			FFmpegBinary:   defaultFFmpegBinary,
		},
		Profile: Profile{
			Slug:                defaultProfileSlug,
			Languages:           []string{"en"},
			LengthMinSeconds:    defaultLengthMinSeconds,
			LengthMaxSeconds:    defaultLengthMaxSeconds,
			HookMaxDelaySeconds: defaultHookMaxDelaySeconds,
			SilenceRatioMax:     defaultSilenceRatioMax,
			TitleTemplate:       defaultTitleTemplate,
			Hashtags:            []string{"#shorts", "#clips"},
		},
		Logging: Logging{
			Format: defaultLogFormat,
			Level:  defaultLogLevel,
		},
	}
}
