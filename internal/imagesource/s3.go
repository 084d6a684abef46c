package imagesource

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/gabriel-vasile/mimetype"
	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
)

// S3Config holds the connection settings for an S3 compatible store
type S3Config struct {
	Endpoint  string
	AccessKey string
	SecretKey string
	UseSSL    bool
	Region    string
}

// S3 resolves s3://bucket/key references through MinIO/S3
type S3 struct {
	client *minio.Client
}

// NewS3 creates a MinIO client from the config
func NewS3(cfg S3Config) (*S3, error) {
	if cfg.Endpoint == "" {
		return nil, fmt.Errorf("s3 endpoint is required")
	}
	client, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: cfg.UseSSL,
		Region: cfg.Region,
	})
	if err != nil {
		return nil, fmt.Errorf("init minio: %w", err)
	}
	return &S3{client: client}, nil
}

// Resolve downloads the object named by ref.URL
func (s *S3) Resolve(ctx context.Context, ref Ref) (*Image, error) {
	bucket, key, err := parseS3URL(ref.URL)
	if err != nil {
		return nil, &FetchError{URL: ref.URL, Err: err}
	}

	obj, err := s.client.GetObject(ctx, bucket, key, minio.GetObjectOptions{})
	if err != nil {
		return nil, s3FetchError(ref.URL, err)
	}
	defer obj.Close()

	info, err := obj.Stat()
	if err != nil {
		return nil, s3FetchError(ref.URL, err)
	}
	if info.Size > maxImageSize {
		return nil, &FetchError{URL: ref.URL, Err: fmt.Errorf("image larger than %d bytes", maxImageSize)}
	}

	data, err := io.ReadAll(obj)
	if err != nil {
		return nil, s3FetchError(ref.URL, err)
	}
	if len(data) == 0 {
		return nil, &FetchError{URL: ref.URL, Err: fmt.Errorf("empty object")}
	}

	mimeType := normalizeMime(ref.MimeType)
	if mimeType == "" {
		mimeType = normalizeMime(info.ContentType)
	}
	if mimeType == "" || mimeType == "application/octet-stream" {
		mimeType = normalizeMime(mimetype.Detect(data).String())
	}
	return &Image{Data: data, MimeType: mimeType}, nil
}

func s3FetchError(url string, err error) *FetchError {
	return &FetchError{URL: url, Status: minio.ToErrorResponse(err).StatusCode, Err: err}
}

// parseS3URL splits s3://bucket/key/with/slashes
func parseS3URL(raw string) (string, string, error) {
	rest, ok := strings.CutPrefix(raw, "s3://")
	if !ok {
		return "", "", fmt.Errorf("not an s3 url: %q", raw)
	}
	bucket, key, _ := strings.Cut(rest, "/")
	if bucket == "" || key == "" {
		return "", "", fmt.Errorf("s3 url needs a bucket and a key: %q", raw)
	}
	return bucket, key, nil
}
