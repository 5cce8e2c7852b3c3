package blob

import (
	"context"
	"fmt"
	"os"
)

// Config selects a blob backend.
type Config struct {
	Driver Driver
	FSRoot string
	S3     S3Config
}

// ConfigFromEnv reads the blob configuration:
//
//	MODELCORE_BLOB_DRIVER: fs|s3|memory (default fs)
//	MODELCORE_BLOB_FS_ROOT: directory root when driver=fs (default ./blobdata)
//	(S3 specific variables documented in the infra s3 package)
func ConfigFromEnv() (Config, error) {
	cfg := Config{
		Driver: Driver(os.Getenv("MODELCORE_BLOB_DRIVER")),
		FSRoot: os.Getenv("MODELCORE_BLOB_FS_ROOT"),
	}
	if cfg.Driver == "" {
		cfg.Driver = DriverFilesystem
	}
	if cfg.Driver == DriverS3 {
		s3cfg, err := S3ConfigFromEnv()
		if err != nil {
			return Config{}, err
		}
		cfg.S3 = s3cfg
	}
	return cfg, nil
}

// Open constructs the backend cfg names.
func Open(ctx context.Context, cfg Config) (Store, error) {
	switch cfg.Driver {
	case DriverFilesystem, "":
		return NewFilesystem(cfg.FSRoot)
	case DriverS3:
		return NewS3(ctx, cfg.S3)
	case DriverMemory:
		return NewMemory(), nil
	default:
		return nil, fmt.Errorf("unknown blob driver %s", cfg.Driver)
	}
}

// OpenFromEnv is ConfigFromEnv followed by Open.
func OpenFromEnv(ctx context.Context) (Store, error) {
	cfg, err := ConfigFromEnv()
	if err != nil {
		return nil, err
	}
	return Open(ctx, cfg)
}
