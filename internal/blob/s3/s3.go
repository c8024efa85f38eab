// Package s3 provides an S3-compatible blob backend with metrics.
package s3

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	awss3 "github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"go.uber.org/zap"

	"github.com/draftdesk/draftdesk/internal/blob"
	"github.com/draftdesk/draftdesk/internal/logging"
	"github.com/draftdesk/draftdesk/internal/metrics"
)

// Config holds S3 connection settings.
type Config struct {
	Endpoint  string
	Bucket    string
	AccessKey string
	SecretKey string
	Region    string
	UseSSL    bool
}

// Backend implements blob.Backend using S3/MinIO.
type Backend struct {
	client *awss3.Client
	bucket string
}

// New creates a new S3 backend and verifies the bucket, creating it when
// missing.
func New(ctx context.Context, cfg Config) (*Backend, error) {
	resolver := aws.EndpointResolverWithOptionsFunc(
		func(service, region string, options ...interface{}) (aws.Endpoint, error) {
			return aws.Endpoint{
				URL:               cfg.Endpoint,
				HostnameImmutable: true,
			}, nil
		},
	)

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx,
		awsconfig.WithRegion(cfg.Region),
		awsconfig.WithEndpointResolverWithOptions(resolver),
		awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKey, cfg.SecretKey, ""),
		),
	)
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}

	client := awss3.NewFromConfig(awsCfg, func(o *awss3.Options) {
		o.UsePathStyle = true
	})

	b := &Backend{client: client, bucket: cfg.Bucket}
	if err := b.ensureBucket(ctx); err != nil {
		logging.Error("bucket check failed", zap.Error(err))
	}
	return b, nil
}

func (b *Backend) ensureBucket(ctx context.Context) error {
	_, err := b.client.HeadBucket(ctx, &awss3.HeadBucketInput{
		Bucket: aws.String(b.bucket),
	})
	if err != nil {
		_, createErr := b.client.CreateBucket(ctx, &awss3.CreateBucketInput{
			Bucket: aws.String(b.bucket),
		})
		if createErr != nil {
			return fmt.Errorf("bucket %s does not exist and cannot create: %w", b.bucket, createErr)
		}
		logging.Info("created S3 bucket", zap.String("bucket", b.bucket))
	}
	return nil
}

// Put uploads content to S3. S3 object creation is atomic per key, so a
// concurrent Open never observes partial content.
func (b *Backend) Put(ctx context.Context, key string, body io.Reader, size int64) error {
	start := time.Now()
	defer func() { metrics.RecordStorageOperation("s3", "put", time.Since(start)) }()

	_, err := b.client.PutObject(ctx, &awss3.PutObjectInput{
		Bucket:        aws.String(b.bucket),
		Key:           aws.String(key),
		Body:          body,
		ContentLength: aws.Int64(size),
	})
	if err != nil {
		return fmt.Errorf("put object %s: %w", key, err)
	}

	logging.Debug("S3 put object", zap.String("key", key), zap.Int64("size", size))
	return nil
}

// Open retrieves an object from S3.
func (b *Backend) Open(ctx context.Context, key string) (io.ReadCloser, int64, error) {
	start := time.Now()
	defer func() { metrics.RecordStorageOperation("s3", "open", time.Since(start)) }()

	result, err := b.client.GetObject(ctx, &awss3.GetObjectInput{
		Bucket: aws.String(b.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		var noKey *types.NoSuchKey
		if errors.As(err, &noKey) {
			return nil, 0, blob.ErrNotExist
		}
		return nil, 0, fmt.Errorf("get object %s: %w", key, err)
	}

	totalSize := int64(0)
	if result.ContentLength != nil {
		totalSize = *result.ContentLength
	}
	return result.Body, totalSize, nil
}

// Delete removes an object from S3. Missing keys are ignored (S3 delete is
// idempotent).
func (b *Backend) Delete(ctx context.Context, key string) error {
	start := time.Now()
	defer func() { metrics.RecordStorageOperation("s3", "delete", time.Since(start)) }()

	_, err := b.client.DeleteObject(ctx, &awss3.DeleteObjectInput{
		Bucket: aws.String(b.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return fmt.Errorf("delete object %s: %w", key, err)
	}

	logging.Debug("S3 delete object", zap.String("key", key))
	return nil
}

// Exists checks whether an object exists in S3.
func (b *Backend) Exists(ctx context.Context, key string) (bool, error) {
	_, err := b.client.HeadObject(ctx, &awss3.HeadObjectInput{
		Bucket: aws.String(b.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		var notFound *types.NotFound
		if errors.As(err, &notFound) {
			return false, nil
		}
		var noKey *types.NoSuchKey
		if errors.As(err, &noKey) {
			return false, nil
		}
		return false, fmt.Errorf("head object %s: %w", key, err)
	}
	return true, nil
}

// Type returns "s3".
func (b *Backend) Type() string { return "s3" }

// Close is a no-op for S3 backends.
func (b *Backend) Close() error { return nil }
