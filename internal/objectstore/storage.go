// Package objectstore keeps session documents in an S3-compatible bucket.
package objectstore

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"path"
	"strings"

	miniogo "github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
)

type StorageConfig struct {
	Endpoint  string
	AccessKey string
	SecretKey string
	UseSSL    bool
	Bucket    string
	// Prefix is prepended to every object key.
	Prefix string
}

type Storage struct {
	client *miniogo.Client
	bucket string
	prefix string
}

func NewStorage(cfg StorageConfig) (*Storage, error) {
	if strings.TrimSpace(cfg.Bucket) == "" {
		return nil, fmt.Errorf("minio bucket is required")
	}
	client, err := miniogo.New(cfg.Endpoint, &miniogo.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: cfg.UseSSL,
	})
	if err != nil {
		return nil, fmt.Errorf("create minio client: %w", err)
	}

	return &Storage{
		client: client,
		bucket: cfg.Bucket,
		prefix: strings.Trim(cfg.Prefix, "/"),
	}, nil
}

func (s *Storage) EnsureBucket(ctx context.Context) error {
	exists, err := s.client.BucketExists(ctx, s.bucket)
	if err != nil {
		return fmt.Errorf("check bucket %s: %w", s.bucket, err)
	}
	if !exists {
		if err := s.client.MakeBucket(ctx, s.bucket, miniogo.MakeBucketOptions{}); err != nil {
			return fmt.Errorf("create bucket %s: %w", s.bucket, err)
		}
	}
	return nil
}

func (s *Storage) key(elem ...string) string {
	if s.prefix != "" {
		elem = append([]string{s.prefix}, elem...)
	}
	return path.Join(elem...)
}

func (s *Storage) DocumentKey(name string) string {
	return s.key("documents", name)
}

func (s *Storage) PutDocument(ctx context.Context, name string, data []byte) error {
	_, err := s.client.PutObject(ctx, s.bucket, s.DocumentKey(name), bytes.NewReader(data), int64(len(data)), miniogo.PutObjectOptions{
		ContentType: "application/json",
	})
	if err != nil {
		return fmt.Errorf("upload document %s: %w", name, err)
	}
	return nil
}

func (s *Storage) GetDocument(ctx context.Context, name string) ([]byte, error) {
	obj, err := s.client.GetObject(ctx, s.bucket, s.DocumentKey(name), miniogo.GetObjectOptions{})
	if err != nil {
		return nil, fmt.Errorf("get document %s: %w", name, err)
	}
	defer obj.Close()

	data, err := io.ReadAll(obj)
	if err != nil {
		return nil, fmt.Errorf("read document %s: %w", name, err)
	}
	return data, nil
}
