/*
Package storage talks to S3-compatible object storage for message attachments.

Objects are keyed "<roomID>/<objectID><ext>", so everything a room uploaded can be
removed with one prefix delete when the room goes away.
*/
package storage

import (
	"context"
	"io"
	"time"
)

// ServiceConfig holds the configuration required to connect to the storage service.
type ServiceConfig struct {
	S3BucketName      string
	S3Endpoint        string
	S3AccessKeyID     string
	S3SecretAccessKey string
}

// StorageService defines the public interface for the file storage service.
type StorageService interface {
	// PresignUpload generates a pre-signed URL for uploading a file.
	PresignUpload(
		ctx context.Context,
		key string,
		mimeType string,
		fileSize int64,
		duration time.Duration,
	) (string, error)

	// PresignDownload generates a pre-signed URL for downloading a file.
	PresignDownload(ctx context.Context, key string, duration time.Duration) (string, error)

	// Upload streams body to key through the server.
	Upload(ctx context.Context, key string, mimeType string, body io.Reader) error

	// DeletePrefix removes every object whose key starts with prefix and reports how many were removed.
	DeletePrefix(ctx context.Context, prefix string) (int, error)
}

// NewStorageService is the factory function for StorageService.
// It initializes and returns a concrete implementation based on the provided configuration.
func NewStorageService(ctx context.Context, cfg ServiceConfig) (StorageService, error) {
	// Currently, only S3 compatible implementations are supported.
	return newS3Client(ctx, cfg)
}
