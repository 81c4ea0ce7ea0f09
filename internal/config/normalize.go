package config

import (
	"fmt"
	"os"
	"strings"
)

func (c *Config) normalize() error {
	if err := c.normalizePaths(); err != nil {
		return err
	}
	c.normalizeProcessing()
	c.normalizeUpload()
	c.normalizeWorkflow()
	c.normalizeLogging()
	return nil
}

func (c *Config) normalizePaths() error {
	var err error
	if c.Paths.StagingDir, err = expandPath(c.Paths.StagingDir); err != nil {
		return fmt.Errorf("paths.staging_dir: %w", err)
	}
	if c.Paths.LibraryDir, err = expandPath(c.Paths.LibraryDir); err != nil {
		return fmt.Errorf("paths.library_dir: %w", err)
	}
	if c.Paths.LogDir, err = expandPath(c.Paths.LogDir); err != nil {
		return fmt.Errorf("paths.log_dir: %w", err)
	}
	if strings.TrimSpace(c.Paths.DBPath) == "" {
		c.Paths.DBPath = defaultDBPath
	}
	if c.Paths.DBPath, err = expandPath(c.Paths.DBPath); err != nil {
		return fmt.Errorf("paths.db_path: %w", err)
	}
	if strings.TrimSpace(c.Paths.LockPath) == "" {
		c.Paths.LockPath = defaultLockPath
	}
	if c.Paths.LockPath, err = expandPath(c.Paths.LockPath); err != nil {
		return fmt.Errorf("paths.lock_path: %w", err)
	}
	return nil
}

func (c *Config) normalizeProcessing() {
	if c.Processing.MaxConcurrency <= 0 {
		c.Processing.MaxConcurrency = defaultMaxConcurrency
	}
	if c.Processing.MaxRetries < 0 {
		c.Processing.MaxRetries = defaultMaxRetries
	}
	if c.Processing.StepTimeout <= 0 {
		c.Processing.StepTimeout = defaultStepTimeout
	}
	if c.Processing.RetryBaseDelay <= 0 {
		c.Processing.RetryBaseDelay = defaultRetryBaseDelay
	}
	if c.Processing.RetryMaxDelay < c.Processing.RetryBaseDelay {
		c.Processing.RetryMaxDelay = defaultRetryMaxDelay
	}
	if c.Processing.JPEGQuality <= 0 || c.Processing.JPEGQuality > 100 {
		c.Processing.JPEGQuality = defaultJPEGQuality
	}
	c.Processing.ImageOutputFormat = strings.ToLower(strings.TrimSpace(c.Processing.ImageOutputFormat))
	if c.Processing.ImageOutputFormat == "" {
		c.Processing.ImageOutputFormat = defaultImageOutputFormat
	}
	c.Processing.VideoOutputFormat = strings.ToLower(strings.TrimSpace(c.Processing.VideoOutputFormat))
	if c.Processing.VideoOutputFormat == "" {
		c.Processing.VideoOutputFormat = defaultVideoOutputFormat
	}
}

func (c *Config) normalizeUpload() {
	c.Upload.Backend = strings.ToLower(strings.TrimSpace(c.Upload.Backend))
	if c.Upload.Backend == "" {
		c.Upload.Backend = defaultUploadBackend
	}
	if c.Upload.S3.AccessKeyID == "" {
		if value, ok := os.LookupEnv("AWS_ACCESS_KEY_ID"); ok {
			c.Upload.S3.AccessKeyID = value
		}
	}
	if c.Upload.S3.SecretAccessKey == "" {
		if value, ok := os.LookupEnv("AWS_SECRET_ACCESS_KEY"); ok {
			c.Upload.S3.SecretAccessKey = value
		}
	}
	c.Upload.S3.KeyPrefix = strings.Trim(strings.TrimSpace(c.Upload.S3.KeyPrefix), "/")
}

func (c *Config) normalizeWorkflow() {
	if c.Workflow.QueuePollInterval <= 0 {
		c.Workflow.QueuePollInterval = defaultQueuePollInterval
	}
	if c.Workflow.ErrorRetryInterval <= 0 {
		c.Workflow.ErrorRetryInterval = defaultErrorRetryInterval
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
