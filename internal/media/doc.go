// Package media inspects uploads before planning: sizes and dimensions for
// images in-process, container metadata for video and audio via ffprobe.
package media
