package delivery

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"path"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
)

// PutObjectAPI is the slice of the S3 client the sink uses.
type PutObjectAPI interface {
	PutObject(ctx context.Context, in *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
}

// S3 uploads files to a bucket under an optional key prefix.
type S3 struct {
	client PutObjectAPI
	bucket string
	prefix string
	logger *slog.Logger
}

// NewS3 builds a sink from the default AWS credential chain.
func NewS3(ctx context.Context, bucket, prefix string, logger *slog.Logger) (*S3, error) {
	if bucket == "" {
		return nil, fmt.Errorf("delivery: S3 bucket name is required")
	}
	cfg, err := config.LoadDefaultConfig(ctx)
	if err != nil {
		return nil, fmt.Errorf("delivery: loading AWS config: %w", err)
	}
	return NewS3WithClient(s3.NewFromConfig(cfg), bucket, prefix, logger), nil
}

// NewS3WithClient builds a sink around an existing client.
func NewS3WithClient(client PutObjectAPI, bucket, prefix string, logger *slog.Logger) *S3 {
	if logger == nil {
		logger = slog.Default()
	}
	return &S3{client: client, bucket: bucket, prefix: prefix, logger: logger}
}

// Put uploads data and returns its s3:// location.
func (s *S3) Put(ctx context.Context, name, contentType string, data []byte) (string, error) {
	if err := checkName(name); err != nil {
		return "", err
	}
	key := path.Join(s.prefix, name)

	_, err := s.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:        aws.String(s.bucket),
		Key:           aws.String(key),
		Body:          bytes.NewReader(data),
		ContentType:   aws.String(contentType),
		ContentLength: aws.Int64(int64(len(data))),
	})
	if err != nil {
		return "", fmt.Errorf("delivery: uploading %s: %w", key, err)
	}

	location := fmt.Sprintf("s3://%s/%s", s.bucket, key)
	s.logger.Info("export archived", slog.String("location", location), slog.Int("bytes", len(data)))
	return location, nil
}
