// internal/storage/provider.go
package storage

import (
	"bytes"
	"context"
	"errors"
	"io"
	"time"
)

// ProviderName identifies a storage backend kind.
type ProviderName string

const (
	ProviderAWSS3     ProviderName = "AWSS3"
	ProviderAzureBlob ProviderName = "AzureBlobStorage"
	ProviderGCS       ProviderName = "GoogleCloudStorage"
)

const (
	// signedURLTTL applies to S3 and GCS download and upload URLs.
	signedURLTTL = 15 * time.Minute

	azureDownloadSASTTL = 7 * 24 * time.Hour
	azureUploadSASTTL   = 60 * time.Minute

	defaultContentType = "application/octet-stream"
)

var ErrWriteStreamUnsupported = errors.New("createWriteStream not implemented for S3.")

// SignedUpload is a pre-authorized direct upload target. Headers must be sent
// with the PUT request when present.
type SignedUpload struct {
	URL     string            `json:"url"`
	Headers map[string]string `json:"headers,omitempty"`
}

// Metadata is the subset of object attributes every backend reports.
type Metadata struct {
	Size *int64 `json:"size,omitempty"`
}

// RawFile gives ranged access to a single object. NewRangeReader reads to
// the end for a negative length and returns an empty body for a zero length.
type RawFile interface {
	Key() string
	Size() int64
	NewRangeReader(ctx context.Context, offset, length int64) (io.ReadCloser, error)
}

func emptyBody() io.ReadCloser { return io.NopCloser(bytes.NewReader(nil)) }

// Provider is the capability set every object storage backend implements.
// Keys are relative to the configured base path. Backend errors propagate
// unchanged.
type Provider interface {
	Name() ProviderName
	UploadFile(ctx context.Context, srcPath, destKey string) error
	UploadData(ctx context.Context, data []byte, destKey, contentType string) error
	GetData(ctx context.Context, key string) ([]byte, error)
	DownloadDocument(ctx context.Context, srcKey, destPath string) error
	DownloadSignedURL(ctx context.Context, key, fileName string) (string, error)
	UploadSignedURL(ctx context.Context, key, contentType string) (*SignedUpload, error)
	DeleteFile(ctx context.Context, key string) error
	DocumentExists(ctx context.Context, key string) (bool, error)
	CopyFile(ctx context.Context, srcKey, destKey string) error
	FileMetadata(ctx context.Context, key string) (*Metadata, error)
	ReadStream(ctx context.Context, key string) (io.ReadCloser, error)
	WriteStream(ctx context.Context, key, contentType string) (io.WriteCloser, error)
	RawFile(ctx context.Context, key string) (RawFile, error)
}
