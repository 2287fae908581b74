package preview

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
)

const minioPrefix = "previews/"

// Minio keeps previews in an S3-compatible bucket, so several web
// instances can serve the same session.
type Minio struct {
	client *minio.Client
	bucket string
}

func NewMinio(ctx context.Context, cfg Config) (*Minio, error) {
	if cfg.Endpoint == "" || cfg.Bucket == "" {
		return nil, errors.New("preview: minio endpoint and bucket are required")
	}
	cli, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: cfg.UseSSL,
		Region: cfg.Region,
	})
	if err != nil {
		return nil, fmt.Errorf("preview: minio client: %w", err)
	}

	exists, err := cli.BucketExists(ctx, cfg.Bucket)
	if err != nil {
		return nil, fmt.Errorf("preview: bucket check: %w", err)
	}
	if !exists {
		if err := cli.MakeBucket(ctx, cfg.Bucket, minio.MakeBucketOptions{Region: cfg.Region}); err != nil {
			return nil, fmt.Errorf("preview: make bucket: %w", err)
		}
	}
	return &Minio{client: cli, bucket: cfg.Bucket}, nil
}

func key(ref Ref) string { return minioPrefix + string(ref) }

func (s *Minio) Put(ctx context.Context, contentType string, r io.Reader, size int64) (Object, error) {
	ref := newRef()
	info, err := s.client.PutObject(ctx, s.bucket, key(ref), r, size, minio.PutObjectOptions{
		ContentType: contentType,
	})
	if err != nil {
		return Object{}, fmt.Errorf("preview: put: %w", err)
	}
	return Object{Ref: ref, ContentType: contentType, Size: info.Size}, nil
}

func (s *Minio) Open(ctx context.Context, ref Ref) (io.ReadCloser, Object, error) {
	if !ref.Valid() {
		return nil, Object{}, ErrNotFound
	}
	obj, err := s.client.GetObject(ctx, s.bucket, key(ref), minio.GetObjectOptions{})
	if err != nil {
		return nil, Object{}, mapMinioErr(err)
	}
	st, err := obj.Stat()
	if err != nil {
		_ = obj.Close()
		return nil, Object{}, mapMinioErr(err)
	}
	return obj, Object{Ref: ref, ContentType: st.ContentType, Size: st.Size}, nil
}

func (s *Minio) Revoke(ctx context.Context, ref Ref) error {
	if !ref.Valid() {
		return nil
	}
	if err := s.client.RemoveObject(ctx, s.bucket, key(ref), minio.RemoveObjectOptions{}); err != nil {
		return fmt.Errorf("preview: remove: %w", err)
	}
	return nil
}

func (s *Minio) Check(ctx context.Context) error {
	ok, err := s.client.BucketExists(ctx, s.bucket)
	if err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("bucket %q missing", s.bucket)
	}
	return nil
}

func mapMinioErr(err error) error {
	resp := minio.ToErrorResponse(err)
	if resp.StatusCode == http.StatusNotFound || resp.Code == "NoSuchKey" {
		return ErrNotFound
	}
	return fmt.Errorf("preview: get: %w", err)
}
