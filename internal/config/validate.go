package config

import (
	"errors"
	"fmt"
	"strings"
)

var supportedImageOutputFormats = map[string]struct{}{
	"jpeg": {},
	"png":  {},
	"avif": {},
	"webp": {},
}

var supportedVideoOutputFormats = map[string]struct{}{
	"mp4":  {},
	"webm": {},
}

// Validate ensures the configuration is usable.
func (c *Config) Validate() error {
	if err := c.validatePaths(); err != nil {
		return err
	}
	if err := c.validateProcessing(); err != nil {
		return err
	}
	if err := c.validateUpload(); err != nil {
		return err
	}
	if err := c.validateWorkflow(); err != nil {
		return err
	}
	if err := c.validateLogging(); err != nil {
		return err
	}
	return nil
}

func (c *Config) validatePaths() error {
	if strings.TrimSpace(c.Paths.StagingDir) == "" {
		return errors.New("paths.staging_dir must be set")
	}
	if strings.TrimSpace(c.Paths.LogDir) == "" {
		return errors.New("paths.log_dir must be set")
	}
	return nil
}

func (c *Config) validateProcessing() error {
	if _, ok := supportedImageOutputFormats[c.Processing.ImageOutputFormat]; !ok {
		return fmt.Errorf("processing.image_output_format: unsupported value %q", c.Processing.ImageOutputFormat)
	}
	if _, ok := supportedVideoOutputFormats[c.Processing.VideoOutputFormat]; !ok {
		return fmt.Errorf("processing.video_output_format: unsupported value %q", c.Processing.VideoOutputFormat)
	}
	if err := ensurePositiveMap(map[string]int{
		"processing.max_concurrency":      c.Processing.MaxConcurrency,
		"processing.step_timeout_seconds": c.Processing.StepTimeout,
		"processing.retry_base_delay_ms":  c.Processing.RetryBaseDelay,
		"processing.retry_max_delay_ms":   c.Processing.RetryMaxDelay,
	}); err != nil {
		return err
	}
	if c.Processing.MaxRetries < 0 {
		return errors.New("processing.max_retries must not be negative")
	}
	return nil
}

func (c *Config) validateUpload() error {
	switch c.Upload.Backend {
	case "local":
		if strings.TrimSpace(c.Paths.LibraryDir) == "" {
			return errors.New("paths.library_dir must be set when upload.backend is local")
		}
	case "s3":
		if strings.TrimSpace(c.Upload.S3.Bucket) == "" {
			return errors.New("upload.s3.bucket must be set when upload.backend is s3")
		}
		if strings.TrimSpace(c.Upload.S3.Region) == "" {
			return errors.New("upload.s3.region must be set when upload.backend is s3")
		}
	default:
		return fmt.Errorf("upload.backend: unsupported value %q", c.Upload.Backend)
	}
	return nil
}

func (c *Config) validateWorkflow() error {
	return ensurePositiveMap(map[string]int{
		"workflow.queue_poll_interval":  c.Workflow.QueuePollInterval,
		"workflow.error_retry_interval": c.Workflow.ErrorRetryInterval,
		"notifications.request_timeout": c.Notifications.RequestTimeout,
	})
}

func (c *Config) validateLogging() error {
	switch c.Logging.Format {
	case "console", "json":
	default:
		return fmt.Errorf("logging.format: unsupported value %q", c.Logging.Format)
	}
	return nil
}

func ensurePositiveMap(values map[string]int) error {
	for name, value := range values {
		if value <= 0 {
			return fmt.Errorf("%s must be greater than zero", name)
		}
	}
	return nil
}
