package app

import (
	"context"
	"errors"
	"fmt"

	"github.com/yungbote/arcblog-backend/internal/platform/gcp"
	"github.com/yungbote/arcblog-backend/internal/platform/logger"
)

var newBucketService = gcp.NewBucketService

// StorageBootstrapCode names why the object store could not be opened.
type StorageBootstrapCode string

const (
	StorageBootstrapInvalidMode         StorageBootstrapCode = "invalid_mode"
	StorageBootstrapMissingEmulatorHost StorageBootstrapCode = "missing_emulator_host"
	StorageBootstrapInvalidURL          StorageBootstrapCode = "invalid_url"
	StorageBootstrapConnectFailed       StorageBootstrapCode = "connect_failed"
)

var storageBootstrapCodes = map[gcp.ObjectStorageConfigErrorCode]StorageBootstrapCode{
	gcp.ObjectStorageConfigErrorInvalidMode:         StorageBootstrapInvalidMode,
	gcp.ObjectStorageConfigErrorMissingEmulatorHost: StorageBootstrapMissingEmulatorHost,
	gcp.ObjectStorageConfigErrorInvalidURL:          StorageBootstrapInvalidURL,
}

type StorageBootstrapError struct {
	Code StorageBootstrapCode
	Mode gcp.ObjectStorageMode
	Err  error
}

func (e *StorageBootstrapError) Error() string {
	return fmt.Sprintf("open object storage (%s, mode %q): %v", e.Code, e.Mode, e.Err)
}

func (e *StorageBootstrapError) Unwrap() error { return e.Err }

func newStorageBootstrapError(mode gcp.ObjectStorageMode, err error) *StorageBootstrapError {
	code := StorageBootstrapConnectFailed
	var cfgErr *gcp.ObjectStorageConfigError
	if errors.As(err, &cfgErr) {
		if mapped, ok := storageBootstrapCodes[cfgErr.Code]; ok {
			code = mapped
		}
	}
	return &StorageBootstrapError{Code: code, Mode: mode, Err: err}
}

// storageBootstrapCode reports the code of err, or connect_failed when err
// did not come from resolveBucketService.
func storageBootstrapCode(err error) StorageBootstrapCode {
	var be *StorageBootstrapError
	if errors.As(err, &be) {
		return be.Code
	}
	return StorageBootstrapConnectFailed
}

// resolveBucketService opens the store behind post images and blog logos.
func resolveBucketService(ctx context.Context, log *logger.Logger, cfg StorageConfig) (gcp.BucketService, error) {
	oc := cfg.objectStorage()
	bucket, err := newBucketService(ctx, log, oc, cfg.Buckets)
	if err != nil {
		be := newStorageBootstrapError(oc.Mode, err)
		log.Error("Object storage unavailable", "mode", oc.Mode, "emulator_host", oc.EmulatorHost, "code", be.Code, "error", err)
		return nil, be
	}
	log.Info("Object storage ready", "mode", oc.Mode, "post_image_bucket", cfg.Buckets.PostImage.Name, "logo_bucket", cfg.Buckets.Logo.Name)
	return bucket, nil
}
