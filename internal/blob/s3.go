package blob

import (
	"context"

	infraS3 "modelcore/internal/infra/blob/s3"
)

// S3Config re-exports the infra S3 configuration type.
type S3Config = infraS3.Config

// NewS3 constructs an S3-backed Store from cfg.
func NewS3(ctx context.Context, cfg S3Config) (Store, error) {
	return infraS3.New(ctx, cfg)
}

// S3ConfigFromEnv reads the MODELCORE_BLOB_S3_* variables.
func S3ConfigFromEnv() (S3Config, error) { return infraS3.ConfigFromEnv() }

// NewFakeS3 returns an S3 Store served from memory, for cross-package tests.
func NewFakeS3() Store {
	st, _ := infraS3.NewFake()
	return st
}
