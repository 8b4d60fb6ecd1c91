package archive

import (
	"context"
	"fmt"

	"attrack/internal/config"
)

// NewArchiverFromConfig creates an Archiver implementation based on the archive config type.
func NewArchiverFromConfig(ctx context.Context, cfg config.ArchiveConfig) (Archiver, error) {
	switch cfg.Type {
	case "memory":
		return NewMemoryArchiver(cfg.Name), nil
	case "s3":
		if cfg.S3Bucket == "" {
			return nil, fmt.Errorf("s3 archive requires s3_bucket to be set")
		}
		return NewS3Archiver(ctx, cfg)
	case "filesystem":
		if cfg.DirRoot == "" {
			return nil, fmt.Errorf("filesystem archive requires dir_root to be set")
		}
		return NewFilesystemArchiver(cfg.Name, cfg.DirRoot)
	default:
		return nil, fmt.Errorf("unknown archive type: %s", cfg.Type)
	}
}
