// Package codec implements the step adapters that transform media files.
// Pure-Go paths handle JPEG/PNG work, HEIF decoding, and metadata extraction;
// AVIF, WebP, and all video and audio work shell out to ffmpeg. Adapters share
// a uniform signature and are looked up by step name through the Registry.
package codec
