// internal/storage/gcs.go
package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"time"

	"cloud.google.com/go/storage"
	"google.golang.org/api/option"
)

type GCSProvider struct {
	client   *storage.Client
	bucket   *storage.BucketHandle
	basePath string
	now      func() time.Time
}

// NewGCSProvider authenticates with the service account JSON held in
// GOOGLE_CLOUD_APPLICATION_CREDENTIALS. Variables are checked in order:
// GOOGLE_CLOUD_APPLICATION_CREDENTIALS, BUCKET_NAME.
func NewGCSProvider(ctx context.Context, e Env) (*GCSProvider, error) {
	if err := requireVars(
		requirement{"GOOGLE_CLOUD_APPLICATION_CREDENTIALS", e.GCPCredentialsJSON},
		requirement{"BUCKET_NAME", e.BucketName},
	); err != nil {
		return nil, err
	}

	var creds map[string]interface{}
	if err := json.Unmarshal([]byte(e.GCPCredentialsJSON), &creds); err != nil || len(creds) == 0 {
		return nil, fmt.Errorf("GOOGLE_CLOUD_APPLICATION_CREDENTIALS must be a non-empty JSON object")
	}

	client, err := storage.NewClient(ctx, option.WithCredentialsJSON([]byte(e.GCPCredentialsJSON)))
	if err != nil {
		return nil, fmt.Errorf("create gcs client: %w", err)
	}

	return &GCSProvider{
		client:   client,
		bucket:   client.Bucket(e.BucketName),
		basePath: e.BasePath,
		now:      time.Now,
	}, nil
}

func (p *GCSProvider) Name() ProviderName { return ProviderGCS }

func (p *GCSProvider) object(key string) *storage.ObjectHandle {
	return p.bucket.Object(FullPath(p.basePath, key))
}

func (p *GCSProvider) UploadFile(ctx context.Context, srcPath, destKey string) error {
	f, err := os.Open(srcPath)
	if err != nil {
		return err
	}
	defer f.Close()

	w := p.object(destKey).NewWriter(ctx)
	if _, err := io.Copy(w, f); err != nil {
		w.Close()
		return err
	}
	return w.Close()
}

func (p *GCSProvider) UploadData(ctx context.Context, data []byte, destKey, contentType string) error {
	w := p.object(destKey).NewWriter(ctx)
	w.ContentType = contentTypeOrDefault(contentType)
	if _, err := w.Write(data); err != nil {
		w.Close()
		return err
	}
	return w.Close()
}

func (p *GCSProvider) GetData(ctx context.Context, key string) ([]byte, error) {
	r, err := p.object(key).NewReader(ctx)
	if err != nil {
		return nil, err
	}
	defer r.Close()
	return io.ReadAll(r)
}

func (p *GCSProvider) DownloadDocument(ctx context.Context, srcKey, destPath string) error {
	r, err := p.object(srcKey).NewReader(ctx)
	if err != nil {
		return err
	}
	defer r.Close()
	return writeToFile(r, destPath)
}

func (p *GCSProvider) DownloadSignedURL(_ context.Context, key, fileName string) (string, error) {
	opts := &storage.SignedURLOptions{
		Scheme:  storage.SigningSchemeV4,
		Method:  http.MethodGet,
		Expires: p.now().Add(signedURLTTL),
	}
	if fileName != "" {
		opts.QueryParameters = url.Values{"response-content-disposition": {attachmentDisposition(fileName)}}
	}
	return p.bucket.SignedURL(FullPath(p.basePath, key), opts)
}

func (p *GCSProvider) UploadSignedURL(_ context.Context, key, contentType string) (*SignedUpload, error) {
	contentType = contentTypeOrDefault(contentType)
	signed, err := p.bucket.SignedURL(FullPath(p.basePath, key), &storage.SignedURLOptions{
		Scheme:      storage.SigningSchemeV4,
		Method:      http.MethodPut,
		Expires:     p.now().Add(signedURLTTL),
		ContentType: contentType,
	})
	if err != nil {
		return nil, err
	}
	return &SignedUpload{URL: signed, Headers: map[string]string{"Content-Type": contentType}}, nil
}

func (p *GCSProvider) DeleteFile(ctx context.Context, key string) error {
	return p.object(key).Delete(ctx)
}

func (p *GCSProvider) DocumentExists(ctx context.Context, key string) (bool, error) {
	_, err := p.object(key).Attrs(ctx)
	if err == nil {
		return true, nil
	}
	if errors.Is(err, storage.ErrObjectNotExist) {
		return false, nil
	}
	return false, err
}

func (p *GCSProvider) CopyFile(ctx context.Context, srcKey, destKey string) error {
	_, err := p.object(destKey).CopierFrom(p.object(srcKey)).Run(ctx)
	return err
}

func (p *GCSProvider) FileMetadata(ctx context.Context, key string) (*Metadata, error) {
	attrs, err := p.object(key).Attrs(ctx)
	if err != nil {
		return nil, err
	}
	size := attrs.Size
	return &Metadata{Size: &size}, nil
}

func (p *GCSProvider) ReadStream(ctx context.Context, key string) (io.ReadCloser, error) {
	return p.object(key).NewReader(ctx)
}

func (p *GCSProvider) WriteStream(ctx context.Context, key, contentType string) (io.WriteCloser, error) {
	w := p.object(key).NewWriter(ctx)
	w.ContentType = contentTypeOrDefault(contentType)
	return w, nil
}

func (p *GCSProvider) RawFile(ctx context.Context, key string) (RawFile, error) {
	attrs, err := p.object(key).Attrs(ctx)
	if err != nil {
		return nil, err
	}
	return &gcsRawFile{object: p.object(key), key: key, size: attrs.Size}, nil
}

// Close releases the underlying client.
func (p *GCSProvider) Close() error {
	return p.client.Close()
}

type gcsRawFile struct {
	object *storage.ObjectHandle
	key    string
	size   int64
}

func (f *gcsRawFile) Key() string { return f.key }
func (f *gcsRawFile) Size() int64 { return f.size }

func (f *gcsRawFile) NewRangeReader(ctx context.Context, offset, length int64) (io.ReadCloser, error) {
	if length == 0 {
		return emptyBody(), nil
	}
	return f.object.NewRangeReader(ctx, offset, length)
}
