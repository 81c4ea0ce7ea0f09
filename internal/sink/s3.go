package sink

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"

	"mediaprep/internal/config"
	"mediaprep/internal/logging"
	"mediaprep/internal/queue"
	"mediaprep/internal/services"
)

// S3 uploads finished assets to an S3-compatible bucket, one key prefix per
// item.
type S3 struct {
	client    *s3.Client
	bucket    string
	region    string
	keyPrefix string
	logger    *slog.Logger
}

// NewS3 builds an S3 sink. Static credentials from config take precedence;
// otherwise the default AWS credential chain applies.
func NewS3(cfg config.S3, logger *slog.Logger) (*S3, error) {
	if cfg.Bucket == "" {
		return nil, fmt.Errorf("s3 sink requires a bucket")
	}
	if logger == nil {
		logger = logging.NewNop()
	}

	configOpts := []func(*awsconfig.LoadOptions) error{
		awsconfig.WithRegion(cfg.Region),
	}
	if cfg.AccessKeyID != "" && cfg.SecretAccessKey != "" {
		configOpts = append(configOpts, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKeyID, cfg.SecretAccessKey, ""),
		))
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(context.Background(), configOpts...)
	if err != nil {
		return nil, fmt.Errorf("load AWS config: %w", err)
	}

	var clientOpts []func(*s3.Options)
	if cfg.Endpoint != "" {
		clientOpts = append(clientOpts, func(o *s3.Options) {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
			o.UsePathStyle = true
		})
	}

	return &S3{
		client:    s3.NewFromConfig(awsCfg, clientOpts...),
		bucket:    cfg.Bucket,
		region:    cfg.Region,
		keyPrefix: strings.Trim(cfg.KeyPrefix, "/"),
		logger:    logger.With(logging.String(logging.FieldComponent, "sink")),
	}, nil
}

// Store implements Sink.
func (s *S3) Store(ctx context.Context, item *queue.Item, assets []Asset) (RemoteRecord, error) {
	if len(assets) == 0 {
		return RemoteRecord{}, services.Wrap(services.ErrUpload, "sink", "store", "no assets to store", nil)
	}

	record := RemoteRecord{Assets: make(map[string]string, len(assets))}
	for _, asset := range assets {
		key := s.objectKey(item.Key, asset)
		url, err := s.putObject(ctx, key, asset)
		if err != nil {
			return RemoteRecord{}, err
		}
		record.Assets[asset.Name] = url
		if record.URL == "" {
			record.URL = url
		}

		s.logger.Debug("asset uploaded",
			logging.Int64(logging.FieldItemID, item.ID),
			logging.String("asset", asset.Name),
			logging.String("key", key))
	}
	return record, nil
}

func (s *S3) objectKey(itemKey string, asset Asset) string {
	parts := []string{itemKey, filepath.Base(asset.Path)}
	if s.keyPrefix != "" {
		parts = append([]string{s.keyPrefix}, parts...)
	}
	return path.Join(parts...)
}

func (s *S3) putObject(ctx context.Context, key string, asset Asset) (string, error) {
	f, err := os.Open(asset.Path)
	if err != nil {
		return "", services.Wrap(services.ErrUpload, "sink", "upload", asset.Name, err)
	}
	defer f.Close()

	input := &s3.PutObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
		Body:   f,
	}
	if asset.Mime != "" {
		input.ContentType = aws.String(asset.Mime)
	}

	if _, err := s.client.PutObject(ctx, input); err != nil {
		if ctx.Err() != nil {
			return "", services.Wrap(services.ErrCancelled, "sink", "upload", asset.Name, nil)
		}
		return "", services.Wrap(services.ErrUpload, "sink", "upload", asset.Name, err)
	}

	return fmt.Sprintf("https://%s.s3.%s.amazonaws.com/%s", s.bucket, s.region, key), nil
}
