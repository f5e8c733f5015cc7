package adapter

import (
	"context"
	"errors"
	"fmt"
	"path"
	"strings"

	minio "github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"

	m "rads.dev/pkg/rads/internal/model"
)

// ObjectStoreConfig configures the S3 compatible report upload.
type ObjectStoreConfig struct {
	Endpoint  string `validate:"required"`
	AccessKey string
	SecretKey string
	Bucket    string `validate:"required"`
	Prefix    string
	UseSSL    bool
}

// ObjectStore uploads finished reports.
type ObjectStore interface {
	Upload(ctx context.Context, key, filePath, contentType string) error
}

// MinioObjectStore uploads to S3 compatible storage.
type MinioObjectStore struct {
	mc     *minio.Client
	bucket string
	prefix string
}

// NewMinioObjectStore creates a client. No request is made until Upload.
func NewMinioObjectStore(cfg ObjectStoreConfig) (*MinioObjectStore, error) {
	if cfg.Bucket == "" {
		return nil, errors.New("object store bucket is required")
	}

	mc, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: cfg.UseSSL,
	})
	if err != nil {
		return nil, fmt.Errorf("create object store client: %w", err)
	}

	return &MinioObjectStore{mc: mc, bucket: cfg.Bucket, prefix: cfg.Prefix}, nil
}

// Upload stores filePath under the configured prefix.
func (s *MinioObjectStore) Upload(ctx context.Context, key, filePath, contentType string) error {
	full := path.Join(s.prefix, key)

	_, err := s.mc.FPutObject(ctx, s.bucket, full, filePath, minio.PutObjectOptions{
		ContentType: contentType,
	})
	if err != nil {
		return fmt.Errorf("upload %s to %s: %w", filePath, s.bucket, err)
	}

	return nil
}

// ReportObjectKey names the uploaded report of a run: <root name>/<root version>/<run id>.<ext>.
func ReportObjectKey(runID string, root m.PackageID, format ReportFormat) string {
	name := strings.NewReplacer("/", "_", " ", "_").Replace(root.Name)
	version := strings.NewReplacer("/", "_", " ", "_").Replace(root.Version)

	return path.Join(name, version, runID+"."+string(format))
}

// ContentType returns the MIME type of a report format.
func ContentType(format ReportFormat) string {
	if format == FormatYAML {
		return "application/yaml"
	}

	return "application/json"
}
