// Package archive copies successfully processed spreadsheets to object
// storage before the ingestion worker deletes them from pending/.
package archive

import (
	"context"
	"fmt"
	"log/slog"
	"path"
	"path/filepath"
	"strings"
	"time"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"

	"gemdesk/internal/config"
	"gemdesk/internal/logging"
)

const spreadsheetContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

// Archiver stores a processed spreadsheet.
type Archiver interface {
	Archive(ctx context.Context, pipeline, filePath string) error
}

// objectPutter is the subset of the MinIO client used here.
type objectPutter interface {
	BucketExists(ctx context.Context, bucket string) (bool, error)
	MakeBucket(ctx context.Context, bucket string, opts minio.MakeBucketOptions) error
	FPutObject(ctx context.Context, bucket, object, filePath string, opts minio.PutObjectOptions) (minio.UploadInfo, error)
}

// MinioArchiver uploads files to a MinIO or S3-compatible bucket.
type MinioArchiver struct {
	client objectPutter
	bucket string
	prefix string
	logger *slog.Logger
	now    func() time.Time
}

// New returns an archiver for cfg, or nil when archiving is disabled.
func New(cfg config.Archive, logger *slog.Logger) (*MinioArchiver, error) {
	if !cfg.Enabled {
		return nil, nil
	}
	client, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: cfg.UseSSL,
	})
	if err != nil {
		return nil, fmt.Errorf("create minio client: %w", err)
	}
	return newMinioArchiver(client, cfg.Bucket, cfg.Prefix, logger), nil
}

func newMinioArchiver(client objectPutter, bucket, prefix string, logger *slog.Logger) *MinioArchiver {
	if logger == nil {
		logger = logging.NewNop()
	}
	return &MinioArchiver{
		client: client,
		bucket: bucket,
		prefix: strings.Trim(prefix, "/"),
		logger: logging.NewComponentLogger(logger, "archive"),
		now:    time.Now,
	}
}

// BucketExists reports whether the configured bucket exists.
func (a *MinioArchiver) BucketExists(ctx context.Context) (bool, error) {
	exists, err := a.client.BucketExists(ctx, a.bucket)
	if err != nil {
		return false, fmt.Errorf("check bucket %s: %w", a.bucket, err)
	}
	return exists, nil
}

// EnsureBucket creates the bucket if it does not exist.
func (a *MinioArchiver) EnsureBucket(ctx context.Context) error {
	exists, err := a.BucketExists(ctx)
	if err != nil {
		return err
	}
	if exists {
		return nil
	}
	if err := a.client.MakeBucket(ctx, a.bucket, minio.MakeBucketOptions{}); err != nil {
		return fmt.Errorf("create bucket %s: %w", a.bucket, err)
	}
	a.logger.Info("archive bucket created", logging.String("bucket", a.bucket))
	return nil
}

// Archive uploads filePath as <prefix>/<pipeline>/<YYYY-MM-DD>/<name>.
func (a *MinioArchiver) Archive(ctx context.Context, pipeline, filePath string) error {
	object := a.ObjectName(pipeline, filepath.Base(filePath))
	info, err := a.client.FPutObject(ctx, a.bucket, object, filePath, minio.PutObjectOptions{
		ContentType: contentType(filePath),
	})
	if err != nil {
		return fmt.Errorf("upload %s: %w", object, err)
	}
	a.logger.Info("spreadsheet archived",
		logging.Pipeline(pipeline),
		logging.String("object", object),
		logging.Int64("size", info.Size),
	)
	return nil
}

// ObjectName builds the object key for a file archived now.
func (a *MinioArchiver) ObjectName(pipeline, name string) string {
	parts := []string{pipeline, a.now().UTC().Format("2006-01-02"), name}
	if a.prefix != "" {
		parts = append([]string{a.prefix}, parts...)
	}
	return path.Join(parts...)
}

func contentType(filePath string) string {
	if strings.EqualFold(filepath.Ext(filePath), ".xls") {
		return "application/vnd.ms-excel"
	}
	return spreadsheetContentType
}
