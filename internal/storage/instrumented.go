// internal/storage/instrumented.go
package storage

import (
	"context"
	"io"
	"time"

	"loan-origination/internal/common/metrics"
	"loan-origination/internal/common/observability"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

// Instrumented records a span, a Prometheus counter and a duration for every
// call. Errors pass through untouched.
type Instrumented struct {
	next Provider
	obs  *observability.Observability
}

func NewInstrumented(next Provider, obs *observability.Observability) *Instrumented {
	return &Instrumented{next: next, obs: obs}
}

func (i *Instrumented) observe(ctx context.Context, op, key string, fn func(ctx context.Context) error) error {
	provider := string(i.next.Name())
	ctx, span := i.obs.StartSpan(ctx, "storage."+op,
		attribute.String("storage.provider", provider),
		attribute.String("storage.key", key),
	)
	defer span.End()

	start := time.Now()
	err := fn(ctx)
	elapsed := time.Since(start)

	outcome := "success"
	if err != nil {
		outcome = "error"
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	metrics.StorageOperationsTotal.WithLabelValues(provider, op, outcome).Inc()
	metrics.StorageOperationDuration.WithLabelValues(provider, op).Observe(elapsed.Seconds())
	i.obs.RecordOperation(ctx, "storage", op, outcome, elapsed)
	return err
}

func (i *Instrumented) Name() ProviderName { return i.next.Name() }

func (i *Instrumented) UploadFile(ctx context.Context, srcPath, destKey string) error {
	return i.observe(ctx, "upload_file", destKey, func(ctx context.Context) error {
		return i.next.UploadFile(ctx, srcPath, destKey)
	})
}

func (i *Instrumented) UploadData(ctx context.Context, data []byte, destKey, contentType string) error {
	return i.observe(ctx, "upload_data", destKey, func(ctx context.Context) error {
		return i.next.UploadData(ctx, data, destKey, contentType)
	})
}

func (i *Instrumented) GetData(ctx context.Context, key string) (data []byte, err error) {
	err = i.observe(ctx, "get_data", key, func(ctx context.Context) error {
		data, err = i.next.GetData(ctx, key)
		return err
	})
	return data, err
}

func (i *Instrumented) DownloadDocument(ctx context.Context, srcKey, destPath string) error {
	return i.observe(ctx, "download_document", srcKey, func(ctx context.Context) error {
		return i.next.DownloadDocument(ctx, srcKey, destPath)
	})
}

func (i *Instrumented) DownloadSignedURL(ctx context.Context, key, fileName string) (u string, err error) {
	err = i.observe(ctx, "download_signed_url", key, func(ctx context.Context) error {
		u, err = i.next.DownloadSignedURL(ctx, key, fileName)
		return err
	})
	return u, err
}

func (i *Instrumented) UploadSignedURL(ctx context.Context, key, contentType string) (up *SignedUpload, err error) {
	err = i.observe(ctx, "upload_signed_url", key, func(ctx context.Context) error {
		up, err = i.next.UploadSignedURL(ctx, key, contentType)
		return err
	})
	return up, err
}

func (i *Instrumented) DeleteFile(ctx context.Context, key string) error {
	return i.observe(ctx, "delete_file", key, func(ctx context.Context) error {
		return i.next.DeleteFile(ctx, key)
	})
}

func (i *Instrumented) DocumentExists(ctx context.Context, key string) (exists bool, err error) {
	err = i.observe(ctx, "document_exists", key, func(ctx context.Context) error {
		exists, err = i.next.DocumentExists(ctx, key)
		return err
	})
	return exists, err
}

func (i *Instrumented) CopyFile(ctx context.Context, srcKey, destKey string) error {
	return i.observe(ctx, "copy_file", destKey, func(ctx context.Context) error {
		return i.next.CopyFile(ctx, srcKey, destKey)
	})
}

func (i *Instrumented) FileMetadata(ctx context.Context, key string) (md *Metadata, err error) {
	err = i.observe(ctx, "file_metadata", key, func(ctx context.Context) error {
		md, err = i.next.FileMetadata(ctx, key)
		return err
	})
	return md, err
}

func (i *Instrumented) ReadStream(ctx context.Context, key string) (rc io.ReadCloser, err error) {
	err = i.observe(ctx, "read_stream", key, func(ctx context.Context) error {
		rc, err = i.next.ReadStream(ctx, key)
		return err
	})
	return rc, err
}

func (i *Instrumented) WriteStream(ctx context.Context, key, contentType string) (wc io.WriteCloser, err error) {
	err = i.observe(ctx, "write_stream", key, func(ctx context.Context) error {
		wc, err = i.next.WriteStream(ctx, key, contentType)
		return err
	})
	return wc, err
}

func (i *Instrumented) RawFile(ctx context.Context, key string) (f RawFile, err error) {
	err = i.observe(ctx, "raw_file", key, func(ctx context.Context) error {
		f, err = i.next.RawFile(ctx, key)
		return err
	})
	return f, err
}
