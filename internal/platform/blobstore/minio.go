package blobstore

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"time"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
)

// MinIOConfig holds the connection settings for an S3-compatible endpoint.
type MinIOConfig struct {
	Endpoint  string
	AccessKey string
	SecretKey string
	Bucket    string
	UseSSL    bool
	Region    string
}

// MinIOStore keeps blobs as objects in one bucket.
type MinIOStore struct {
	client *minio.Client
	bucket string
}

// NewMinIOClient builds a client with static credentials.
func NewMinIOClient(cfg MinIOConfig) (*minio.Client, error) {
	client, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: cfg.UseSSL,
		Region: cfg.Region,
	})
	if err != nil {
		return nil, fmt.Errorf("create minio client: %w", err)
	}
	return client, nil
}

func NewMinIOStore(client *minio.Client, bucket string) *MinIOStore {
	return &MinIOStore{client: client, bucket: bucket}
}

// EnsureBucket creates the bucket if it does not exist yet.
func (s *MinIOStore) EnsureBucket(ctx context.Context, region string) error {
	exists, err := s.client.BucketExists(ctx, s.bucket)
	if err != nil {
		return fmt.Errorf("check bucket %s: %w", s.bucket, err)
	}
	if exists {
		return nil
	}
	if err := s.client.MakeBucket(ctx, s.bucket, minio.MakeBucketOptions{Region: region}); err != nil {
		return fmt.Errorf("create bucket %s: %w", s.bucket, err)
	}
	return nil
}

func (s *MinIOStore) Put(ctx context.Context, key string, content []byte, contentType string) (*Object, error) {
	if err := checkPut(key, content); err != nil {
		return nil, err
	}
	info, err := s.client.PutObject(ctx, s.bucket, key, bytes.NewReader(content), int64(len(content)), minio.PutObjectOptions{
		ContentType: contentType,
	})
	if err != nil {
		return nil, fmt.Errorf("put object %s/%s: %w", s.bucket, key, err)
	}
	modified := info.LastModified
	if modified.IsZero() {
		modified = time.Now()
	}
	return &Object{
		Key:         key,
		Size:        info.Size,
		ContentType: contentType,
		Location:    s.location(key),
		ModifiedAt:  modified.UTC(),
	}, nil
}

func (s *MinIOStore) Get(ctx context.Context, key string) ([]byte, *Object, error) {
	if err := ValidateKey(key); err != nil {
		return nil, nil, err
	}
	obj, err := s.client.GetObject(ctx, s.bucket, key, minio.GetObjectOptions{})
	if err != nil {
		return nil, nil, s.mapErr(key, err)
	}
	defer obj.Close()

	stat, err := obj.Stat()
	if err != nil {
		return nil, nil, s.mapErr(key, err)
	}
	data, err := io.ReadAll(obj)
	if err != nil {
		return nil, nil, fmt.Errorf("read object %s/%s: %w", s.bucket, key, err)
	}
	return data, &Object{
		Key:         key,
		Size:        stat.Size,
		ContentType: stat.ContentType,
		Location:    s.location(key),
		ModifiedAt:  stat.LastModified.UTC(),
	}, nil
}

func (s *MinIOStore) List(ctx context.Context, prefix string) ([]*Object, error) {
	out := []*Object{}
	for info := range s.client.ListObjects(ctx, s.bucket, minio.ListObjectsOptions{Prefix: prefix}) {
		if info.Err != nil {
			return nil, fmt.Errorf("list objects in %s: %w", s.bucket, info.Err)
		}
		out = append(out, &Object{
			Key:         info.Key,
			Size:        info.Size,
			ContentType: info.ContentType,
			Location:    s.location(info.Key),
			ModifiedAt:  info.LastModified.UTC(),
		})
	}
	sortByKey(out)
	return out, nil
}

func (s *MinIOStore) location(key string) string {
	return "s3://" + s.bucket + "/" + key
}

func (s *MinIOStore) mapErr(key string, err error) error {
	if minio.ToErrorResponse(err).Code == "NoSuchKey" {
		return ErrBlobNotFound
	}
	return fmt.Errorf("get object %s/%s: %w", s.bucket, key, err)
}
