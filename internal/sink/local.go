package sink

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"

	"mediaprep/internal/logging"
	"mediaprep/internal/queue"
	"mediaprep/internal/services"
)

// Local stores finished assets under a library directory, one subdirectory
// per item key. Files are written to a temporary name and renamed so a
// partially copied asset never looks complete.
type Local struct {
	libraryDir string
	logger     *slog.Logger
}

// NewLocal builds a local filesystem sink rooted at libraryDir.
func NewLocal(libraryDir string, logger *slog.Logger) *Local {
	if logger == nil {
		logger = logging.NewNop()
	}
	return &Local{
		libraryDir: libraryDir,
		logger:     logger.With(logging.String(logging.FieldComponent, "sink")),
	}
}

// Store implements Sink.
func (l *Local) Store(ctx context.Context, item *queue.Item, assets []Asset) (RemoteRecord, error) {
	if len(assets) == 0 {
		return RemoteRecord{}, services.Wrap(services.ErrUpload, "sink", "store", "no assets to store", nil)
	}

	destDir := filepath.Join(l.libraryDir, item.Key)
	if err := os.MkdirAll(destDir, 0o755); err != nil {
		return RemoteRecord{}, services.Wrap(services.ErrUpload, "sink", "store", destDir, err)
	}

	record := RemoteRecord{Assets: make(map[string]string, len(assets))}
	for _, asset := range assets {
		if err := ctx.Err(); err != nil {
			return RemoteRecord{}, services.Wrap(services.ErrCancelled, "sink", "store", "cancelled", nil)
		}

		dest := filepath.Join(destDir, filepath.Base(asset.Path))
		if err := copyFile(asset.Path, dest); err != nil {
			return RemoteRecord{}, services.Wrap(services.ErrUpload, "sink", "store", asset.Name, err)
		}
		record.Assets[asset.Name] = dest
		if record.URL == "" {
			record.URL = dest
		}

		l.logger.Debug("asset stored",
			logging.Int64(logging.FieldItemID, item.ID),
			logging.String("asset", asset.Name),
			logging.String("path", dest))
	}
	return record, nil
}

func copyFile(src, dest string) error {
	in, err := os.Open(src)
	if err != nil {
		return fmt.Errorf("open source: %w", err)
	}
	defer in.Close()

	tmp := filepath.Join(filepath.Dir(dest), ".tmp-"+filepath.Base(dest))
	out, err := os.Create(tmp)
	if err != nil {
		return fmt.Errorf("create destination: %w", err)
	}

	if _, err := io.Copy(out, in); err != nil {
		_ = out.Close()
		_ = os.Remove(tmp)
		return fmt.Errorf("copy asset: %w", err)
	}
	if err := out.Close(); err != nil {
		_ = os.Remove(tmp)
		return fmt.Errorf("close destination: %w", err)
	}
	if err := os.Rename(tmp, dest); err != nil {
		_ = os.Remove(tmp)
		return fmt.Errorf("finalize asset: %w", err)
	}
	return nil
}
