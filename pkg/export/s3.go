package export

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"os"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"go.opentelemetry.io/otel/attribute"

	"github.com/platinummonkey/somcheck/pkg/observability"
)

// ContentType of an exported sqlite database.
const ContentType = "application/vnd.sqlite3"

// S3API is the subset of the S3 client used for exports.
type S3API interface {
	HeadBucket(ctx context.Context, in *s3.HeadBucketInput, opts ...func(*s3.Options)) (*s3.HeadBucketOutput, error)
	PutObject(ctx context.Context, in *s3.PutObjectInput, opts ...func(*s3.Options)) (*s3.PutObjectOutput, error)
}

// S3Target uploads to one object in a bucket.
type S3Target struct {
	client S3API
	bucket string
	key    string
}

// NewS3Target builds an S3 client from cfg. Static credentials are used
// when both keys are set, the default chain otherwise.
func NewS3Target(ctx context.Context, cfg Config, bucket, key string) (*S3Target, error) {
	opts := []func(*config.LoadOptions) error{}
	if cfg.S3Region != "" {
		opts = append(opts, config.WithRegion(cfg.S3Region))
	}
	if cfg.S3AccessKey != "" && cfg.S3SecretKey != "" {
		opts = append(opts, config.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.S3AccessKey, cfg.S3SecretKey, ""),
		))
	}
	awsConfig, err := config.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}

	client := s3.NewFromConfig(awsConfig, func(o *s3.Options) {
		if cfg.S3Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.S3Endpoint)
		}
		o.UsePathStyle = cfg.S3UsePathStyle
	})
	return NewS3TargetWithClient(client, bucket, key), nil
}

// NewS3TargetWithClient uses an existing client.
func NewS3TargetWithClient(client S3API, bucket, key string) *S3Target {
	return &S3Target{client: client, bucket: bucket, key: key}
}

func (t *S3Target) String() string { return "s3://" + t.bucket + "/" + t.key }

// Validate checks that the bucket is reachable.
func (t *S3Target) Validate(ctx context.Context) error {
	if _, err := t.client.HeadBucket(ctx, &s3.HeadBucketInput{Bucket: aws.String(t.bucket)}); err != nil {
		return fmt.Errorf("%w: bucket %q: %v", ErrInvalidPath, t.bucket, err)
	}
	return nil
}

// Upload puts src with its SHA-256 in the object metadata.
func (t *S3Target) Upload(ctx context.Context, src string) (err error) {
	ctx, span := observability.StartSpan(ctx, "export.s3_upload",
		attribute.String("s3.bucket", t.bucket),
		attribute.String("s3.key", t.key),
	)
	defer func() { observability.EndSpan(span, err) }()

	data, err := os.ReadFile(src)
	if err != nil {
		return fmt.Errorf("failed to read database: %w", err)
	}
	if len(data) == 0 {
		return errors.New("database file is empty")
	}
	span.SetAttributes(attribute.Int("content.size", len(data)))

	sum := sha256.Sum256(data)
	_, err = t.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(t.bucket),
		Key:         aws.String(t.key),
		Body:        bytes.NewReader(data),
		ContentType: aws.String(ContentType),
		Metadata: map[string]string{
			"checksum-sha256": hex.EncodeToString(sum[:]),
		},
	})
	if err != nil {
		return fmt.Errorf("failed to upload object: %w", err)
	}
	return nil
}
