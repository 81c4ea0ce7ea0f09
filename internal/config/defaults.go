package config

const (
	defaultStagingDir = "~/.local/share/mediaprep/staging"
	defaultLibraryDir = "~/media"
	defaultLogDir     = "~/.local/share/mediaprep/logs"
	defaultDBPath     = "~/.local/share/mediaprep/queue.db"
	defaultLockPath   = "~/.local/share/mediaprep/mediaprep.lock"

	defaultMaxConcurrency = 3
	defaultMaxRetries     = 2
	defaultStepTimeout    = 600
	defaultRetryBaseDelay = 500
	defaultRetryMaxDelay  = 30000

	// Thresholds mirror typical publishing limits: images above 2 MiB or
	// 2560px on the long edge are re-encoded, videos above 100 MiB are
	// transcoded, audio above 25 MiB is transcoded.
	defaultImageSizeThreshold      = 2 << 20
	defaultImageDimensionThreshold = 2560
	defaultVideoSizeThreshold      = 100 << 20
	defaultAudioSizeThreshold      = 25 << 20

	defaultImageOutputFormat = "jpeg"
	defaultVideoOutputFormat = "mp4"
	defaultJPEGQuality       = 82

	defaultUploadBackend  = "local"
	defaultRequestTimeout = 10

	defaultQueuePollInterval  = 5
	defaultErrorRetryInterval = 10

	defaultLogFormat = "console"
	defaultLogLevel  = "info"
)

// Default returns a Config populated with repository defaults.
func Default() Config {
	return Config{
		Paths: Paths{
			StagingDir: defaultStagingDir,
			LibraryDir: defaultLibraryDir,
			LogDir:     defaultLogDir,
			DBPath:     defaultDBPath,
			LockPath:   defaultLockPath,
		},
		Processing: Processing{
			MaxConcurrency:          defaultMaxConcurrency,
			MaxRetries:              defaultMaxRetries,
			StepTimeout:             defaultStepTimeout,
			RetryBaseDelay:          defaultRetryBaseDelay,
			RetryMaxDelay:           defaultRetryMaxDelay,
			ImageSizeThreshold:      defaultImageSizeThreshold,
			ImageDimensionThreshold: defaultImageDimensionThreshold,
			VideoSizeThreshold:      defaultVideoSizeThreshold,
			AudioSizeThreshold:      defaultAudioSizeThreshold,
			ImageOutputFormat:       defaultImageOutputFormat,
			VideoOutputFormat:       defaultVideoOutputFormat,
			JPEGQuality:             defaultJPEGQuality,
			GIFToVideo:              true,
			DominantColor:           true,
			Blurhash:                true,
		},
		Upload: Upload{
			Backend: defaultUploadBackend,
		},
		Notifications: Notifications{
			RequestTimeout: defaultRequestTimeout,
		},
		Workflow: Workflow{
			QueuePollInterval:  defaultQueuePollInterval,
			ErrorRetryInterval: defaultErrorRetryInterval,
		},
		Logging: Logging{
			Format: defaultLogFormat,
			Level:  defaultLogLevel,
		},
	}
}
