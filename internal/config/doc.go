// Package config loads, normalizes, and validates mediaprep configuration data.
//
// It supplies repository defaults, expands user paths (including tilde
// shortcuts), reads TOML files, and honours environment fallbacks such as
// AWS_ACCESS_KEY_ID. The Config type centralizes every knob the pipeline and
// CLI need, so staging directories, retry budgets, codec thresholds, and sink
// credentials are discovered in one pass.
//
// Always obtain settings through this package so downstream code receives
// sanitized paths, canonical output formats, and clear validation errors.
package config
