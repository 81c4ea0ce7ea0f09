package sink

import (
	"context"
	"fmt"
	"log/slog"

	"mediaprep/internal/config"
	"mediaprep/internal/queue"
)

// Asset is one file handed to the sink: a named rendition produced by the
// pipeline, or the untouched source when no processing was required.
type Asset struct {
	Name string
	Path string
	Mime string
	Size int64
}

// RemoteRecord describes where the sink stored an item's assets. URL points
// at the primary rendition; Assets maps every asset name to its location.
type RemoteRecord struct {
	URL    string
	Assets map[string]string
}

// Sink is the destination for finished items. Implementations must be safe
// for concurrent use and wrap failures in the upload error class so retry
// policy can recognize them.
type Sink interface {
	Store(ctx context.Context, item *queue.Item, assets []Asset) (RemoteRecord, error)
}

// New selects the sink implementation from the configured upload backend.
func New(cfg *config.Config, logger *slog.Logger) (Sink, error) {
	switch cfg.Upload.Backend {
	case "", "local":
		return NewLocal(cfg.Paths.LibraryDir, logger), nil
	case "s3":
		return NewS3(cfg.Upload.S3, logger)
	default:
		return nil, fmt.Errorf("unknown upload backend %q", cfg.Upload.Backend)
	}
}
