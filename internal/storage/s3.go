// internal/storage/s3.go
package storage

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/url"
	"os"

	"github.com/aws/aws-sdk-go-v2/aws"
	v4 "github.com/aws/aws-sdk-go-v2/aws/signer/v4"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/aws/smithy-go"
)

// s3API is the part of *s3.Client the backend uses.
type s3API interface {
	PutObject(ctx context.Context, in *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
	GetObject(ctx context.Context, in *s3.GetObjectInput, optFns ...func(*s3.Options)) (*s3.GetObjectOutput, error)
	HeadObject(ctx context.Context, in *s3.HeadObjectInput, optFns ...func(*s3.Options)) (*s3.HeadObjectOutput, error)
	DeleteObject(ctx context.Context, in *s3.DeleteObjectInput, optFns ...func(*s3.Options)) (*s3.DeleteObjectOutput, error)
	CopyObject(ctx context.Context, in *s3.CopyObjectInput, optFns ...func(*s3.Options)) (*s3.CopyObjectOutput, error)
}

type s3Presigner interface {
	PresignGetObject(ctx context.Context, in *s3.GetObjectInput, optFns ...func(*s3.PresignOptions)) (*v4.PresignedHTTPRequest, error)
	PresignPutObject(ctx context.Context, in *s3.PutObjectInput, optFns ...func(*s3.PresignOptions)) (*v4.PresignedHTTPRequest, error)
}

type S3Provider struct {
	client   s3API
	presign  s3Presigner
	bucket   string
	basePath string
}

// NewS3Provider builds an S3 backend from static credentials. Variables are
// checked in order: BUCKET_NAME, AWS_REGION, AWS_ACCESS_KEY_ID, AWS_SECRET_ACCESS_KEY.
func NewS3Provider(ctx context.Context, e Env) (*S3Provider, error) {
	if err := requireVars(
		requirement{"BUCKET_NAME", e.BucketName},
		requirement{"AWS_REGION", e.AWSRegion},
		requirement{"AWS_ACCESS_KEY_ID", e.AWSAccessKeyID},
		requirement{"AWS_SECRET_ACCESS_KEY", e.AWSSecretAccessKey},
	); err != nil {
		return nil, err
	}

	cfg, err := awsconfig.LoadDefaultConfig(ctx,
		awsconfig.WithRegion(e.AWSRegion),
		awsconfig.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(e.AWSAccessKeyID, e.AWSSecretAccessKey, "")),
	)
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}

	client := s3.NewFromConfig(cfg)
	return newS3Provider(client, s3.NewPresignClient(client), e.BucketName, e.BasePath), nil
}

func newS3Provider(client s3API, presign s3Presigner, bucket, basePath string) *S3Provider {
	return &S3Provider{client: client, presign: presign, bucket: bucket, basePath: basePath}
}

func (p *S3Provider) Name() ProviderName { return ProviderAWSS3 }

func (p *S3Provider) path(key string) string { return FullPath(p.basePath, key) }

func (p *S3Provider) UploadFile(ctx context.Context, srcPath, destKey string) error {
	f, err := os.Open(srcPath)
	if err != nil {
		return err
	}
	defer f.Close()

	_, err = p.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket: aws.String(p.bucket),
		Key:    aws.String(p.path(destKey)),
		Body:   f,
	})
	return err
}

func (p *S3Provider) UploadData(ctx context.Context, data []byte, destKey, contentType string) error {
	in := &s3.PutObjectInput{
		Bucket: aws.String(p.bucket),
		Key:    aws.String(p.path(destKey)),
		Body:   bytes.NewReader(data),
	}
	if contentType != "" {
		in.ContentType = aws.String(contentType)
	}
	_, err := p.client.PutObject(ctx, in)
	return err
}

func (p *S3Provider) GetData(ctx context.Context, key string) ([]byte, error) {
	body, err := p.ReadStream(ctx, key)
	if err != nil {
		return nil, err
	}
	defer body.Close()
	return io.ReadAll(body)
}

func (p *S3Provider) DownloadDocument(ctx context.Context, srcKey, destPath string) error {
	body, err := p.ReadStream(ctx, srcKey)
	if err != nil {
		return err
	}
	defer body.Close()
	return writeToFile(body, destPath)
}

func (p *S3Provider) DownloadSignedURL(ctx context.Context, key, fileName string) (string, error) {
	in := &s3.GetObjectInput{
		Bucket: aws.String(p.bucket),
		Key:    aws.String(p.path(key)),
	}
	if fileName != "" {
		in.ResponseContentDisposition = aws.String(attachmentDisposition(fileName))
	}

	req, err := p.presign.PresignGetObject(ctx, in, s3.WithPresignExpires(signedURLTTL))
	if err != nil {
		return "", err
	}
	return req.URL, nil
}

func (p *S3Provider) UploadSignedURL(ctx context.Context, key, contentType string) (*SignedUpload, error) {
	in := &s3.PutObjectInput{
		Bucket: aws.String(p.bucket),
		Key:    aws.String(p.path(key)),
	}
	if contentType != "" {
		in.ContentType = aws.String(contentType)
	}

	req, err := p.presign.PresignPutObject(ctx, in, s3.WithPresignExpires(signedURLTTL))
	if err != nil {
		return nil, err
	}

	upload := &SignedUpload{URL: req.URL}
	if contentType != "" {
		upload.Headers = map[string]string{"Content-Type": contentType}
	}
	return upload, nil
}

func (p *S3Provider) DeleteFile(ctx context.Context, key string) error {
	_, err := p.client.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(p.bucket),
		Key:    aws.String(p.path(key)),
	})
	return err
}

// DocumentExists reports false only for a not-found response. Any other
// failure is returned.
func (p *S3Provider) DocumentExists(ctx context.Context, key string) (bool, error) {
	_, err := p.head(ctx, key)
	if err == nil {
		return true, nil
	}
	if isS3NotFound(err) {
		return false, nil
	}
	return false, err
}

func isS3NotFound(err error) bool {
	var notFound *types.NotFound
	if errors.As(err, &notFound) {
		return true
	}
	var noSuchKey *types.NoSuchKey
	if errors.As(err, &noSuchKey) {
		return true
	}
	var apiErr smithy.APIError
	return errors.As(err, &apiErr) && (apiErr.ErrorCode() == "NotFound" || apiErr.ErrorCode() == "NoSuchKey")
}

// CopyFile copies within the bucket. Both keys are resolved against the base path.
func (p *S3Provider) CopyFile(ctx context.Context, srcKey, destKey string) error {
	source := url.PathEscape(p.bucket + "/" + p.path(srcKey))
	_, err := p.client.CopyObject(ctx, &s3.CopyObjectInput{
		Bucket:     aws.String(p.bucket),
		Key:        aws.String(p.path(destKey)),
		CopySource: aws.String(source),
	})
	return err
}

func (p *S3Provider) FileMetadata(ctx context.Context, key string) (*Metadata, error) {
	out, err := p.head(ctx, key)
	if err != nil {
		return nil, err
	}
	return &Metadata{Size: out.ContentLength}, nil
}

func (p *S3Provider) ReadStream(ctx context.Context, key string) (io.ReadCloser, error) {
	out, err := p.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(p.bucket),
		Key:    aws.String(p.path(key)),
	})
	if err != nil {
		return nil, err
	}
	return out.Body, nil
}

func (p *S3Provider) WriteStream(context.Context, string, string) (io.WriteCloser, error) {
	return nil, ErrWriteStreamUnsupported
}

func (p *S3Provider) RawFile(ctx context.Context, key string) (RawFile, error) {
	out, err := p.head(ctx, key)
	if err != nil {
		return nil, err
	}
	return &s3RawFile{provider: p, key: key, size: aws.ToInt64(out.ContentLength)}, nil
}

func (p *S3Provider) head(ctx context.Context, key string) (*s3.HeadObjectOutput, error) {
	return p.client.HeadObject(ctx, &s3.HeadObjectInput{
		Bucket: aws.String(p.bucket),
		Key:    aws.String(p.path(key)),
	})
}

type s3RawFile struct {
	provider *S3Provider
	key      string
	size     int64
}

func (f *s3RawFile) Key() string { return f.key }
func (f *s3RawFile) Size() int64 { return f.size }

func (f *s3RawFile) NewRangeReader(ctx context.Context, offset, length int64) (io.ReadCloser, error) {
	if length == 0 {
		return emptyBody(), nil
	}
	out, err := f.provider.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(f.provider.bucket),
		Key:    aws.String(f.provider.path(f.key)),
		Range:  aws.String(byteRange(offset, length)),
	})
	if err != nil {
		return nil, err
	}
	return out.Body, nil
}

func byteRange(offset, length int64) string {
	if length < 0 {
		return fmt.Sprintf("bytes=%d-", offset)
	}
	return fmt.Sprintf("bytes=%d-%d", offset, offset+length-1)
}
