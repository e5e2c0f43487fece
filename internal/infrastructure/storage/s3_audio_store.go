// Package storage uploads synthesized narration audio and hands back URLs clients can fetch.
package storage

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/storyvoice/backend/internal/domain/voice"
	"github.com/storyvoice/backend/internal/infrastructure/config"
	"go.uber.org/zap"
)

var _ voice.AudioStore = (*S3AudioStore)(nil)

// S3AudioStore stores audio in any S3-compatible bucket (AWS S3, MinIO, RustFS).
// URLs are built from PublicURL when it is set and presigned otherwise.
type S3AudioStore struct {
	client        *s3.Client
	presignClient *s3.PresignClient
	bucket        string
	publicURL     string
	presignTTL    time.Duration
	logger        *zap.Logger
}

// S3Option is a functional option for S3AudioStore
type S3Option func(*S3AudioStore)

// WithLogger sets a custom logger
func WithLogger(logger *zap.Logger) S3Option {
	return func(s *S3AudioStore) {
		s.logger = logger
	}
}

// NewS3AudioStore creates a store from configuration
func NewS3AudioStore(ctx context.Context, cfg *config.StorageConfig, opts ...S3Option) (*S3AudioStore, error) {
	if cfg == nil {
		return nil, errors.New("storage configuration is required")
	}
	if cfg.Bucket == "" {
		return nil, errors.New("storage bucket is required")
	}
	if cfg.AccessKey == "" || cfg.SecretKey == "" {
		return nil, errors.New("storage access key and secret key are required")
	}

	endpoint := cfg.Endpoint
	if endpoint != "" && !strings.HasPrefix(endpoint, "http://") && !strings.HasPrefix(endpoint, "https://") {
		endpoint = "https://" + endpoint
	}
	if endpoint != "" {
		if _, err := url.Parse(endpoint); err != nil {
			return nil, fmt.Errorf("invalid storage endpoint: %w", err)
		}
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx,
		awsconfig.WithRegion(cfg.Region),
		awsconfig.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(cfg.AccessKey, cfg.SecretKey, "")),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create AWS config: %w", err)
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		o.UsePathStyle = cfg.UsePathStyle
		if endpoint != "" {
			o.BaseEndpoint = aws.String(endpoint)
		}
	})

	store := &S3AudioStore{
		client:        client,
		presignClient: s3.NewPresignClient(client),
		bucket:        cfg.Bucket,
		publicURL:     strings.TrimRight(cfg.PublicURL, "/"),
		presignTTL:    cfg.PresignTTL,
		logger:        zap.NewNop(),
	}
	for _, opt := range opts {
		opt(store)
	}
	if store.presignTTL <= 0 {
		store.presignTTL = time.Hour
	}
	return store, nil
}

// EnsureBucket creates the bucket when it does not exist
func (s *S3AudioStore) EnsureBucket(ctx context.Context) error {
	_, err := s.client.HeadBucket(ctx, &s3.HeadBucketInput{Bucket: aws.String(s.bucket)})
	if err == nil {
		return nil
	}

	var notFound *types.NotFound
	var noSuchBucket *types.NoSuchBucket
	if !errors.As(err, &notFound) && !errors.As(err, &noSuchBucket) {
		return fmt.Errorf("failed to check bucket existence: %w", err)
	}

	s.logger.Info("Creating audio bucket", zap.String("bucket", s.bucket))
	_, err = s.client.CreateBucket(ctx, &s3.CreateBucketInput{Bucket: aws.String(s.bucket)})
	if err != nil {
		var alreadyOwned *types.BucketAlreadyOwnedByYou
		if errors.As(err, &alreadyOwned) {
			return nil
		}
		return fmt.Errorf("failed to create bucket: %w", err)
	}
	return nil
}

// PutAudio implements voice.AudioStore
func (s *S3AudioStore) PutAudio(ctx context.Context, key string, audio *voice.Audio) (string, error) {
	if key == "" {
		return "", errors.New("storage key is required")
	}
	if audio == nil || len(audio.Data) == 0 {
		return "", errors.New("audio is empty")
	}

	_, err := s.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:        aws.String(s.bucket),
		Key:           aws.String(key),
		Body:          bytes.NewReader(audio.Data),
		ContentType:   aws.String(audio.ContentType),
		ContentLength: aws.Int64(int64(len(audio.Data))),
	})
	if err != nil {
		return "", fmt.Errorf("failed to upload %s: %w", key, err)
	}
	s.logger.Debug("Audio uploaded", zap.String("key", key), zap.Int("bytes", len(audio.Data)))

	return s.URL(ctx, key)
}

// URL returns the public URL for key, or a presigned GET URL when no public base is configured
func (s *S3AudioStore) URL(ctx context.Context, key string) (string, error) {
	if s.publicURL != "" {
		return s.publicURL + "/" + key, nil
	}
	req, err := s.presignClient.PresignGetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	}, s3.WithPresignExpires(s.presignTTL))
	if err != nil {
		return "", fmt.Errorf("failed to presign %s: %w", key, err)
	}
	return req.URL, nil
}

// Bucket returns the bucket name
func (s *S3AudioStore) Bucket() string {
	return s.bucket
}
