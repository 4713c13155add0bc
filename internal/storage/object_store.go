package storage

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"

	"github.com/binaa-yemen/raster-pipeline/internal/config"
)

// ObjectStore wraps an S3-compatible client pointed at a MinIO deployment.
// It is the sole place artifacts (COGs, PNG previews, sidecars, manifests)
// are moved to and from durable storage.
type ObjectStore struct {
	client    *s3.Client
	bucket    string
	publicURL string
}

// NewObjectStore builds an ObjectStore from Storage settings.
func NewObjectStore(cfg config.Storage) (*ObjectStore, error) {
	if cfg.AccessKey == "" || cfg.SecretKey == "" || cfg.Bucket == "" {
		return nil, fmt.Errorf("missing MinIO configuration environment variables")
	}

	scheme := "http"
	if cfg.UseSSL {
		scheme = "https"
	}
	endpoint := fmt.Sprintf("%s://%s", scheme, cfg.Endpoint)

	client := s3.New(s3.Options{
		Region:       "us-east-1",
		BaseEndpoint: aws.String(endpoint),
		Credentials:  credentials.NewStaticCredentialsProvider(cfg.AccessKey, cfg.SecretKey, ""),
		UsePathStyle: true,
	})

	return &ObjectStore{
		client:    client,
		bucket:    cfg.Bucket,
		publicURL: cfg.PublicURL,
	}, nil
}

// EnsureBucket creates the configured bucket if it does not already exist.
func (s *ObjectStore) EnsureBucket(ctx context.Context) error {
	_, err := s.client.HeadBucket(ctx, &s3.HeadBucketInput{Bucket: aws.String(s.bucket)})
	if err == nil {
		return nil
	}
	_, err = s.client.CreateBucket(ctx, &s3.CreateBucketInput{Bucket: aws.String(s.bucket)})
	if err != nil {
		var owned *types.BucketAlreadyOwnedByYou
		var exists *types.BucketAlreadyExists
		if errors.As(err, &owned) || errors.As(err, &exists) {
			return nil
		}
		return fmt.Errorf("storage: create bucket %s: %w", s.bucket, err)
	}
	return nil
}

// Put uploads the local file at localPath under key layers/{layerID}/{name}
// and returns the object's public URL.
func (s *ObjectStore) Put(ctx context.Context, localPath, layerID, name, contentType string) (string, error) {
	f, err := os.Open(localPath)
	if err != nil {
		return "", fmt.Errorf("storage: open %s: %w", localPath, err)
	}
	defer f.Close()

	key := objectKey(layerID, name)
	_, err = s.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(s.bucket),
		Key:         aws.String(key),
		Body:        f,
		ContentType: aws.String(contentType),
	})
	if err != nil {
		return "", fmt.Errorf("storage: put object %s: %w", key, err)
	}
	return s.PublicURL(key), nil
}

// PublicURL returns the externally reachable URL for an object key.
func (s *ObjectStore) PublicURL(key string) string {
	if s.publicURL != "" {
		return fmt.Sprintf("%s/%s/%s", s.publicURL, s.bucket, key)
	}
	return fmt.Sprintf("/%s/%s", s.bucket, key)
}

// DeleteLayer removes everything under layers/{layerID}/.
func (s *ObjectStore) DeleteLayer(ctx context.Context, layerID string) error {
	prefix := fmt.Sprintf("layers/%s/", layerID)
	out, err := s.client.ListObjectsV2(ctx, &s3.ListObjectsV2Input{
		Bucket: aws.String(s.bucket),
		Prefix: aws.String(prefix),
	})
	if err != nil {
		return fmt.Errorf("storage: list objects under %s: %w", prefix, err)
	}
	for _, obj := range out.Contents {
		if _, err := s.client.DeleteObject(ctx, &s3.DeleteObjectInput{
			Bucket: aws.String(s.bucket),
			Key:    obj.Key,
		}); err != nil {
			return fmt.Errorf("storage: delete object %s: %w", *obj.Key, err)
		}
	}
	return nil
}

// PresignGet returns a time-limited URL to fetch an object directly.
func (s *ObjectStore) PresignGet(ctx context.Context, layerID, name string, expiry time.Duration) (string, error) {
	presignClient := s3.NewPresignClient(s.client)
	req, err := presignClient.PresignGetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(objectKey(layerID, name)),
	}, s3.WithPresignExpires(expiry))
	if err != nil {
		return "", fmt.Errorf("storage: presign get: %w", err)
	}
	return req.URL, nil
}

func objectKey(layerID, name string) string {
	return fmt.Sprintf("layers/%s/%s", layerID, name)
}
