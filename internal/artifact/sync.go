package artifact

import (
	"context"
	"fmt"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
	"github.com/rs/zerolog"
)

// MinIOConfig describes the object-storage location of the artifacts.
type MinIOConfig struct {
	Endpoint  string
	AccessKey string
	SecretKey string
	Secure    bool
	Bucket    string
	// Prefix is the object key prefix mirrored into LocalDir.
	Prefix   string
	LocalDir string
}

// MinIOSyncer mirrors a bucket prefix into a local directory.
type MinIOSyncer struct {
	client *minio.Client
	cfg    MinIOConfig
	logger zerolog.Logger
}

// NewMinIOSyncer creates a syncer. No request is made until Sync.
func NewMinIOSyncer(cfg MinIOConfig, logger zerolog.Logger) (*MinIOSyncer, error) {
	endpoint := strings.TrimPrefix(cfg.Endpoint, "http://")
	endpoint = strings.TrimPrefix(endpoint, "https://")

	client, err := minio.New(endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: cfg.Secure,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to initialize MinIO client: %w", err)
	}
	if cfg.LocalDir == "" {
		cfg.LocalDir = "artifacts"
	}
	return &MinIOSyncer{client: client, cfg: cfg, logger: logger}, nil
}

// Sync downloads every object under the prefix whose local copy is missing
// or differs in size.
func (s *MinIOSyncer) Sync(ctx context.Context) error {
	exists, err := s.client.BucketExists(ctx, s.cfg.Bucket)
	if err != nil {
		return fmt.Errorf("error checking bucket existence: %w", err)
	}
	if !exists {
		return fmt.Errorf("bucket %s does not exist", s.cfg.Bucket)
	}

	var fetched, skipped int
	objects := s.client.ListObjects(ctx, s.cfg.Bucket, minio.ListObjectsOptions{
		Prefix:    s.cfg.Prefix,
		Recursive: true,
	})
	for obj := range objects {
		if obj.Err != nil {
			return fmt.Errorf("listing %s/%s: %w", s.cfg.Bucket, s.cfg.Prefix, obj.Err)
		}
		if strings.HasSuffix(obj.Key, "/") {
			continue
		}

		dst, err := localPath(s.cfg.LocalDir, s.cfg.Prefix, obj.Key)
		if err != nil {
			return err
		}
		if info, err := os.Stat(dst); err == nil && info.Size() == obj.Size {
			skipped++
			continue
		}

		if err := s.client.FGetObject(ctx, s.cfg.Bucket, obj.Key, dst, minio.GetObjectOptions{}); err != nil {
			return fmt.Errorf("downloading %s: %w", obj.Key, err)
		}
		fetched++
		s.logger.Debug().Str("object", obj.Key).Str("path", dst).Msg("artifact downloaded")
	}

	s.logger.Info().
		Str("bucket", s.cfg.Bucket).
		Str("prefix", s.cfg.Prefix).
		Int("fetched", fetched).
		Int("unchanged", skipped).
		Msg("artifact mirror up to date")
	return nil
}

// localPath maps an object key under prefix to a path inside dir. Keys that
// would escape dir are rejected.
func localPath(dir, prefix, key string) (string, error) {
	rel := strings.TrimPrefix(key, prefix)
	rel = strings.TrimPrefix(path.Clean("/"+rel), "/")
	if rel == "" || rel == "." {
		return "", fmt.Errorf("object key %q has no name below prefix %q", key, prefix)
	}
	dst := filepath.Join(dir, filepath.FromSlash(rel))
	if !strings.HasPrefix(dst, filepath.Clean(dir)+string(filepath.Separator)) {
		return "", fmt.Errorf("object key %q escapes %s", key, dir)
	}
	return dst, nil
}
