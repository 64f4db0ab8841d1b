package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"math"
	"os"
	"sort"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	s3types "github.com/aws/aws-sdk-go-v2/service/s3/types"

	n2errors "github.com/n2edm/n2read/internal/errors"
)

// S3Config holds configuration for S3 storage.
type S3Config struct {
	Bucket string
	Region string

	// Prefix is prepended to every key, e.g. "edm/archive".
	Prefix string

	// Endpoint is an optional custom endpoint (MinIO, LocalStack).
	Endpoint string

	// UsePathStyle enables path-style addressing, required for MinIO.
	UsePathStyle bool

	// PartSize is the multipart threshold and part size in bytes.
	PartSize int64

	MaxRetries int
}

// DefaultS3Config returns the default S3 configuration.
func DefaultS3Config() S3Config {
	return S3Config{
		Region:     "us-east-1",
		PartSize:   16 * 1024 * 1024,
		MaxRetries: 3,
	}
}

// S3Storage implements ObjectStorage on an S3 bucket.
type S3Storage struct {
	client *s3.Client
	config S3Config
}

// NewS3Storage loads the default AWS credential chain and creates a client.
func NewS3Storage(ctx context.Context, cfg S3Config) (*S3Storage, error) {
	if cfg.Bucket == "" {
		return nil, fmt.Errorf("s3 storage: bucket is required")
	}

	var opts []func(*config.LoadOptions) error
	if cfg.Region != "" {
		opts = append(opts, config.WithRegion(cfg.Region))
	}
	awsCfg, err := config.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
		}
		o.UsePathStyle = cfg.UsePathStyle
	})
	return NewS3StorageWithClient(client, cfg), nil
}

// NewS3StorageWithClient wraps a pre-configured client.
func NewS3StorageWithClient(client *s3.Client, cfg S3Config) *S3Storage {
	if cfg.PartSize <= 0 {
		cfg.PartSize = DefaultS3Config().PartSize
	}
	if cfg.MaxRetries < 0 {
		cfg.MaxRetries = 0
	}
	return &S3Storage{client: client, config: cfg}
}

func (s *S3Storage) key(key string) string {
	return joinKey(s.config.Prefix, key)
}

// Upload uploads a file, using a multipart upload above PartSize.
func (s *S3Storage) Upload(ctx context.Context, localPath, key string) error {
	file, err := os.Open(localPath)
	if err != nil {
		return n2errors.NewStorageError(n2errors.CodeUploadFailed, "upload "+key, err)
	}
	defer file.Close()

	stat, err := file.Stat()
	if err != nil {
		return n2errors.NewStorageError(n2errors.CodeUploadFailed, "upload "+key, err)
	}

	err = s.retryWithBackoff(ctx, func() error {
		if stat.Size() > s.config.PartSize {
			return s.multipartUpload(ctx, file, stat.Size(), s.key(key))
		}
		_, err := s.client.PutObject(ctx, &s3.PutObjectInput{
			Bucket:        aws.String(s.config.Bucket),
			Key:           aws.String(s.key(key)),
			Body:          io.NewSectionReader(file, 0, stat.Size()),
			ContentLength: aws.Int64(stat.Size()),
		})
		return err
	})
	if err != nil {
		return n2errors.NewStorageError(n2errors.CodeUploadFailed, "upload "+key, err)
	}
	return nil
}

func (s *S3Storage) multipartUpload(ctx context.Context, file *os.File, size int64, key string) error {
	partSize := s.config.PartSize

	created, err := s.client.CreateMultipartUpload(ctx, &s3.CreateMultipartUploadInput{
		Bucket: aws.String(s.config.Bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return err
	}
	uploadID := created.UploadId
	abort := func() {
		_, _ = s.client.AbortMultipartUpload(ctx, &s3.AbortMultipartUploadInput{
			Bucket:   aws.String(s.config.Bucket),
			Key:      aws.String(key),
			UploadId: uploadID,
		})
	}

	numParts := int(math.Ceil(float64(size) / float64(partSize)))
	parts := make([]s3types.CompletedPart, 0, numParts)
	for n := 1; n <= numParts; n++ {
		offset := int64(n-1) * partSize
		length := min(partSize, size-offset)

		resp, err := s.client.UploadPart(ctx, &s3.UploadPartInput{
			Bucket:        aws.String(s.config.Bucket),
			Key:           aws.String(key),
			UploadId:      uploadID,
			PartNumber:    aws.Int32(int32(n)),
			Body:          io.NewSectionReader(file, offset, length),
			ContentLength: aws.Int64(length),
		})
		if err != nil {
			abort()
			return err
		}
		parts = append(parts, s3types.CompletedPart{ETag: resp.ETag, PartNumber: aws.Int32(int32(n))})
	}

	_, err = s.client.CompleteMultipartUpload(ctx, &s3.CompleteMultipartUploadInput{
		Bucket:          aws.String(s.config.Bucket),
		Key:             aws.String(key),
		UploadId:        uploadID,
		MultipartUpload: &s3types.CompletedMultipartUpload{Parts: parts},
	})
	if err != nil {
		abort()
	}
	return err
}

// Download fetches key into localPath through a temporary file.
func (s *S3Storage) Download(ctx context.Context, key, localPath string) error {
	err := s.retryWithBackoff(ctx, func() error {
		resp, err := s.client.GetObject(ctx, &s3.GetObjectInput{
			Bucket: aws.String(s.config.Bucket),
			Key:    aws.String(s.key(key)),
		})
		if err != nil {
			return err
		}
		defer resp.Body.Close()
		return writeFile(localPath, resp.Body)
	})
	if err != nil {
		var noSuchKey *s3types.NoSuchKey
		if errors.As(err, &noSuchKey) {
			return n2errors.NewStorageError(n2errors.CodeObjectNotFound, key, err)
		}
		return n2errors.NewStorageError(n2errors.CodeDownloadFailed, "download "+key, err)
	}
	return nil
}

// Delete removes key.
func (s *S3Storage) Delete(ctx context.Context, key string) error {
	err := s.retryWithBackoff(ctx, func() error {
		_, err := s.client.DeleteObject(ctx, &s3.DeleteObjectInput{
			Bucket: aws.String(s.config.Bucket),
			Key:    aws.String(s.key(key)),
		})
		return err
	})
	if err != nil {
		return fmt.Errorf("delete %s: %w", key, err)
	}
	return nil
}

// Exists reports whether key is stored.
func (s *S3Storage) Exists(ctx context.Context, key string) (bool, error) {
	var exists bool
	err := s.retryWithBackoff(ctx, func() error {
		_, err := s.client.HeadObject(ctx, &s3.HeadObjectInput{
			Bucket: aws.String(s.config.Bucket),
			Key:    aws.String(s.key(key)),
		})
		if err != nil {
			var notFound *s3types.NotFound
			if errors.As(err, &notFound) {
				exists = false
				return nil
			}
			return err
		}
		exists = true
		return nil
	})
	return exists, err
}

// ListObjects lists the keys under prefix, with the store prefix removed.
func (s *S3Storage) ListObjects(ctx context.Context, prefix string) ([]ObjectInfo, error) {
	full := s.key(prefix)
	strip := ""
	if p := strings.Trim(s.config.Prefix, "/"); p != "" {
		strip = p + "/"
	}

	var objects []ObjectInfo
	paginator := s3.NewListObjectsV2Paginator(s.client, &s3.ListObjectsV2Input{
		Bucket: aws.String(s.config.Bucket),
		Prefix: aws.String(full),
	})
	for paginator.HasMorePages() {
		page, err := paginator.NextPage(ctx)
		if err != nil {
			return nil, fmt.Errorf("failed to list objects: %w", err)
		}
		for _, obj := range page.Contents {
			objects = append(objects, ObjectInfo{
				Key:  strings.TrimPrefix(aws.ToString(obj.Key), strip),
				Size: aws.ToInt64(obj.Size),
			})
		}
	}
	sort.Slice(objects, func(i, j int) bool { return objects[i].Key < objects[j].Key })
	return objects, nil
}

// retryWithBackoff retries operation with exponential backoff starting at
// 100ms. Missing objects are not retried.
func (s *S3Storage) retryWithBackoff(ctx context.Context, operation func() error) error {
	var lastErr error
	for attempt := 0; attempt <= s.config.MaxRetries; attempt++ {
		if err := ctx.Err(); err != nil {
			return err
		}

		lastErr = operation()
		if lastErr == nil {
			return nil
		}
		var noSuchKey *s3types.NoSuchKey
		if errors.As(lastErr, &noSuchKey) {
			return lastErr
		}

		if attempt < s.config.MaxRetries {
			backoff := time.Duration(1<<attempt) * 100 * time.Millisecond
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(backoff):
			}
		}
	}
	return lastErr
}
