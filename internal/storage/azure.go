// internal/storage/azure.go
package storage

import (
	"context"
	"fmt"
	"io"
	"math/rand"
	"os"
	"time"

	"github.com/Azure/azure-sdk-for-go/sdk/azcore/to"
	"github.com/Azure/azure-sdk-for-go/sdk/azidentity"
	"github.com/Azure/azure-sdk-for-go/sdk/storage/azblob/blob"
	"github.com/Azure/azure-sdk-for-go/sdk/storage/azblob/bloberror"
	"github.com/Azure/azure-sdk-for-go/sdk/storage/azblob/blockblob"
	"github.com/Azure/azure-sdk-for-go/sdk/storage/azblob/container"
	"github.com/Azure/azure-sdk-for-go/sdk/storage/azblob/sas"
	"github.com/Azure/azure-sdk-for-go/sdk/storage/azblob/service"
)

type AzureBlobProvider struct {
	service       *service.Client
	container     *container.Client
	containerName string
	basePath      string
	now           func() time.Time
}

// NewAzureBlobProvider authenticates with a service principal. Variables are
// checked in order: AZURE_STORAGE_ACCOUNT_NAME, AZURE_CLIENT_ID,
// AZURE_TENANT_ID, AZURE_CLIENT_SECRET, BUCKET_NAME (the container).
func NewAzureBlobProvider(_ context.Context, e Env) (*AzureBlobProvider, error) {
	if err := requireVars(
		requirement{"AZURE_STORAGE_ACCOUNT_NAME", e.AzureAccountName},
		requirement{"AZURE_CLIENT_ID", e.AzureClientID},
		requirement{"AZURE_TENANT_ID", e.AzureTenantID},
		requirement{"AZURE_CLIENT_SECRET", e.AzureClientSecret},
		requirement{"BUCKET_NAME", e.BucketName},
	); err != nil {
		return nil, err
	}

	cred, err := azidentity.NewClientSecretCredential(e.AzureTenantID, e.AzureClientID, e.AzureClientSecret, nil)
	if err != nil {
		return nil, fmt.Errorf("create azure credential: %w", err)
	}

	endpoint := fmt.Sprintf("https://%s.blob.core.windows.net", e.AzureAccountName)
	svc, err := service.NewClient(endpoint, cred, nil)
	if err != nil {
		return nil, fmt.Errorf("create azure blob client: %w", err)
	}

	return &AzureBlobProvider{
		service:       svc,
		container:     svc.NewContainerClient(e.BucketName),
		containerName: e.BucketName,
		basePath:      e.BasePath,
		now:           time.Now,
	}, nil
}

func (p *AzureBlobProvider) Name() ProviderName { return ProviderAzureBlob }

func (p *AzureBlobProvider) path(key string) string { return FullPath(p.basePath, key) }

func (p *AzureBlobProvider) blob(key string) *blockblob.Client {
	return p.container.NewBlockBlobClient(p.path(key))
}

func (p *AzureBlobProvider) UploadFile(ctx context.Context, srcPath, destKey string) error {
	f, err := os.Open(srcPath)
	if err != nil {
		return err
	}
	defer f.Close()

	_, err = p.blob(destKey).UploadFile(ctx, f, nil)
	return err
}

func (p *AzureBlobProvider) UploadData(ctx context.Context, data []byte, destKey, contentType string) error {
	_, err := p.blob(destKey).UploadBuffer(ctx, data, &blockblob.UploadBufferOptions{
		HTTPHeaders: &blob.HTTPHeaders{BlobContentType: to.Ptr(contentTypeOrDefault(contentType))},
	})
	return err
}

func (p *AzureBlobProvider) GetData(ctx context.Context, key string) ([]byte, error) {
	body, err := p.ReadStream(ctx, key)
	if err != nil {
		return nil, err
	}
	defer body.Close()
	return io.ReadAll(body)
}

func (p *AzureBlobProvider) DownloadDocument(ctx context.Context, srcKey, destPath string) error {
	body, err := p.ReadStream(ctx, srcKey)
	if err != nil {
		return err
	}
	defer body.Close()
	return writeToFile(body, destPath)
}

// DownloadSignedURL issues a read-only user-delegation SAS valid for seven
// days. Without a fileName a random file-NNNN name is used for the disposition.
func (p *AzureBlobProvider) DownloadSignedURL(ctx context.Context, key, fileName string) (string, error) {
	if fileName == "" {
		fileName = randomFileName()
	}
	perms := sas.BlobPermissions{Read: true}
	return p.signedURL(ctx, key, azureDownloadSASTTL, perms.String(), func(v *sas.BlobSignatureValues) {
		v.ContentDisposition = attachmentDisposition(fileName)
	})
}

// UploadSignedURL issues a create/write SAS valid for sixty minutes. The
// caller must send x-ms-blob-type on the PUT.
func (p *AzureBlobProvider) UploadSignedURL(ctx context.Context, key, contentType string) (*SignedUpload, error) {
	perms := sas.BlobPermissions{Create: true, Write: true}
	url, err := p.signedURL(ctx, key, azureUploadSASTTL, perms.String(), func(v *sas.BlobSignatureValues) {
		v.ContentType = contentTypeOrDefault(contentType)
	})
	if err != nil {
		return nil, err
	}
	return &SignedUpload{URL: url, Headers: map[string]string{"x-ms-blob-type": "BlockBlob"}}, nil
}

func (p *AzureBlobProvider) signedURL(ctx context.Context, key string, ttl time.Duration, perms string, tweak func(*sas.BlobSignatureValues)) (string, error) {
	start := p.now().UTC().Add(-time.Minute)
	expiry := p.now().UTC().Add(ttl)

	udc, err := p.service.GetUserDelegationCredential(ctx, service.KeyInfo{
		Start:  to.Ptr(start.Format(sas.TimeFormat)),
		Expiry: to.Ptr(expiry.Format(sas.TimeFormat)),
	}, nil)
	if err != nil {
		return "", err
	}

	values := sas.BlobSignatureValues{
		Protocol:      sas.ProtocolHTTPS,
		StartTime:     start,
		ExpiryTime:    expiry,
		Permissions:   perms,
		ContainerName: p.containerName,
		BlobName:      p.path(key),
	}
	tweak(&values)

	params, err := values.SignWithUserDelegation(udc)
	if err != nil {
		return "", err
	}
	return p.blob(key).URL() + "?" + params.Encode(), nil
}

func randomFileName() string {
	return fmt.Sprintf("file-%d", 1000+rand.Intn(9000))
}

func (p *AzureBlobProvider) DeleteFile(ctx context.Context, key string) error {
	_, err := p.blob(key).Delete(ctx, nil)
	return err
}

func (p *AzureBlobProvider) DocumentExists(ctx context.Context, key string) (bool, error) {
	_, err := p.blob(key).GetProperties(ctx, nil)
	if err == nil {
		return true, nil
	}
	if bloberror.HasCode(err, bloberror.BlobNotFound, bloberror.ContainerNotFound) {
		return false, nil
	}
	return false, err
}

func (p *AzureBlobProvider) CopyFile(ctx context.Context, srcKey, destKey string) error {
	_, err := p.blob(destKey).StartCopyFromURL(ctx, p.blob(srcKey).URL(), nil)
	return err
}

func (p *AzureBlobProvider) FileMetadata(ctx context.Context, key string) (*Metadata, error) {
	props, err := p.blob(key).GetProperties(ctx, nil)
	if err != nil {
		return nil, err
	}
	return &Metadata{Size: props.ContentLength}, nil
}

func (p *AzureBlobProvider) ReadStream(ctx context.Context, key string) (io.ReadCloser, error) {
	resp, err := p.blob(key).DownloadStream(ctx, nil)
	if err != nil {
		return nil, err
	}
	return resp.Body, nil
}

// WriteStream pipes written bytes into a streaming block upload. Close
// returns the upload result.
func (p *AzureBlobProvider) WriteStream(ctx context.Context, key, contentType string) (io.WriteCloser, error) {
	pr, pw := io.Pipe()
	w := &pipeUploadWriter{pw: pw, done: make(chan error, 1)}
	target := p.blob(key)

	go func() {
		_, err := target.UploadStream(ctx, pr, &blockblob.UploadStreamOptions{
			HTTPHeaders: &blob.HTTPHeaders{BlobContentType: to.Ptr(contentTypeOrDefault(contentType))},
		})
		pr.CloseWithError(err)
		w.done <- err
	}()
	return w, nil
}

func (p *AzureBlobProvider) RawFile(ctx context.Context, key string) (RawFile, error) {
	props, err := p.blob(key).GetProperties(ctx, nil)
	if err != nil {
		return nil, err
	}
	return &azureRawFile{client: p.blob(key), key: key, size: derefInt64(props.ContentLength)}, nil
}

type azureRawFile struct {
	client *blockblob.Client
	key    string
	size   int64
}

func (f *azureRawFile) Key() string { return f.key }
func (f *azureRawFile) Size() int64 { return f.size }

func (f *azureRawFile) NewRangeReader(ctx context.Context, offset, length int64) (io.ReadCloser, error) {
	if length == 0 {
		return emptyBody(), nil
	}
	// the SDK reads to the end of the blob for a zero count
	count := length
	if count < 0 {
		count = 0
	}
	resp, err := f.client.DownloadStream(ctx, &blob.DownloadStreamOptions{
		Range: blob.HTTPRange{Offset: offset, Count: count},
	})
	if err != nil {
		return nil, err
	}
	return resp.Body, nil
}

type pipeUploadWriter struct {
	pw   *io.PipeWriter
	done chan error
}

func (w *pipeUploadWriter) Write(b []byte) (int, error) { return w.pw.Write(b) }

func (w *pipeUploadWriter) Close() error {
	if err := w.pw.Close(); err != nil {
		return err
	}
	return <-w.done
}

func derefInt64(v *int64) int64 {
	if v == nil {
		return 0
	}
	return *v
}
