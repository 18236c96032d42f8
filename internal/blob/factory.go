package blob

import (
	"context"
	"fmt"
	"os"

	fsstore "tablecore/internal/infra/blob/fs"
	memstore "tablecore/internal/infra/blob/memory"
	s3store "tablecore/internal/infra/blob/s3"
)

// NewFilesystem returns a filesystem-backed artifact store rooted at path.
func NewFilesystem(root string) (Store, error) {
	return fsstore.New(root)
}

// NewMemory returns an in-memory artifact store for tests.
func NewMemory() Store {
	return memstore.New()
}

// NewS3 returns an S3-backed artifact store from explicit configuration.
func NewS3(ctx context.Context, cfg s3store.Config) (Store, error) {
	return s3store.New(ctx, cfg)
}

// Open selects a Store implementation using environment variables.
//
//	TABLECORE_BLOB_DRIVER: fs|s3|memory (default fs)
//	TABLECORE_BLOB_FS_ROOT: directory root when driver=fs (default ./artifacts)
//	(S3 specific variables documented in the s3 package)
func Open(ctx context.Context) (Store, error) {
	driver := os.Getenv("TABLECORE_BLOB_DRIVER")
	if driver == "" {
		driver = string(DriverFilesystem)
	}
	switch Driver(driver) {
	case DriverFilesystem:
		return NewFilesystem(os.Getenv("TABLECORE_BLOB_FS_ROOT"))
	case DriverS3:
		return s3store.OpenFromEnv(ctx)
	case DriverMemory:
		return NewMemory(), nil
	default:
		return nil, fmt.Errorf("unknown blob driver %s", driver)
	}
}
