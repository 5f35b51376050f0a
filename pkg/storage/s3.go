package storage

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"

	"github.com/noah-isme/channel-account-api/internal/models"
	"github.com/noah-isme/channel-account-api/pkg/config"
)

type s3API interface {
	PutObject(ctx context.Context, in *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
	DeleteObject(ctx context.Context, in *s3.DeleteObjectInput, optFns ...func(*s3.Options)) (*s3.DeleteObjectOutput, error)
}

// S3Storage stores images in an S3-compatible bucket (AWS, MinIO, R2).
type S3Storage struct {
	client        s3API
	bucket        string
	prefix        string
	publicBaseURL string
	now           func() time.Time
}

// NewS3Storage loads AWS configuration and builds a bucket client. Static
// credentials are used when provided, otherwise the default chain applies.
func NewS3Storage(ctx context.Context, cfg config.MediaConfig) (*S3Storage, error) {
	opts := []func(*awsconfig.LoadOptions) error{awsconfig.WithRegion(cfg.S3.Region)}
	if cfg.S3.AccessKey != "" {
		opts = append(opts, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.S3.AccessKey, cfg.S3.SecretKey, ""),
		))
	}
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.S3.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.S3.Endpoint)
			o.UsePathStyle = true
		}
	})

	base := cfg.PublicBaseURL
	if base == "" {
		base = defaultPublicURL(cfg.S3)
	}
	return newS3Storage(client, cfg.S3.Bucket, cfg.S3.Prefix, base), nil
}

func newS3Storage(client s3API, bucket, prefix, publicBaseURL string) *S3Storage {
	return &S3Storage{
		client:        client,
		bucket:        bucket,
		prefix:        prefix,
		publicBaseURL: strings.TrimRight(publicBaseURL, "/"),
		now:           time.Now,
	}
}

// Upload puts the image into the bucket under a fresh key.
func (s *S3Storage) Upload(ctx context.Context, file models.MediaFile) (models.ImageRef, error) {
	if file.Content == nil {
		return models.ImageRef{}, fmt.Errorf("upload %s: empty content", file.Filename)
	}
	key := objectKey(s.prefix, file.Filename, file.ContentType, s.now().UTC())
	in := &s3.PutObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
		Body:   file.Content,
	}
	if file.ContentType != "" {
		in.ContentType = aws.String(file.ContentType)
	}
	if file.Size > 0 {
		in.ContentLength = aws.Int64(file.Size)
	}
	if _, err := s.client.PutObject(ctx, in); err != nil {
		return models.ImageRef{}, fmt.Errorf("s3 put %s: %w", key, err)
	}
	return models.ImageRef{URL: s.publicBaseURL + "/" + key, PublicID: key}, nil
}

// Remove deletes the object. S3 treats deletes of missing keys as success;
// NoSuchKey from stricter implementations is tolerated too.
func (s *S3Storage) Remove(ctx context.Context, publicID string) error {
	key, ok := cleanKey(publicID)
	if !ok {
		return nil
	}
	_, err := s.client.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		var missing *types.NoSuchKey
		if errors.As(err, &missing) {
			return nil
		}
		return fmt.Errorf("s3 delete %s: %w", key, err)
	}
	return nil
}

func defaultPublicURL(cfg config.S3Config) string {
	if cfg.Endpoint != "" {
		return strings.TrimRight(cfg.Endpoint, "/") + "/" + cfg.Bucket
	}
	return fmt.Sprintf("https://%s.s3.%s.amazonaws.com", cfg.Bucket, cfg.Region)
}
