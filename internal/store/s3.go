package store

import (
	"bytes"
	"context"
	"path"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/salesops-cli/internal/config"
)

// S3API is the subset of the S3 client used by S3Sink.
type S3API interface {
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
}

// S3Sink writes documents to s3://<bucket>/<prefix>/<folder>/<name>.
type S3Sink struct {
	client S3API
	bucket string
	prefix string
}

// NewS3Sink loads the default AWS configuration and returns a sink for cfg.
func NewS3Sink(ctx context.Context, cfg config.S3Config) (*S3Sink, error) {
	if cfg.Bucket == "" {
		return nil, eris.New("s3 sink: bucket is required")
	}
	var opts []func(*awsconfig.LoadOptions) error
	if cfg.Region != "" {
		opts = append(opts, awsconfig.WithRegion(cfg.Region))
	}
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, eris.Wrap(err, "s3 sink: load aws config")
	}

	zap.L().Debug("s3 sink: initialized",
		zap.String("bucket", cfg.Bucket),
		zap.String("prefix", cfg.Prefix),
		zap.String("region", awsCfg.Region),
	)
	return NewS3SinkWithClient(s3.NewFromConfig(awsCfg), cfg.Bucket, cfg.Prefix), nil
}

// NewS3SinkWithClient returns a sink using an existing client.
func NewS3SinkWithClient(client S3API, bucket, prefix string) *S3Sink {
	return &S3Sink{client: client, bucket: bucket, prefix: prefix}
}

// Key returns the object key for a document.
func (s *S3Sink) Key(folder, name string) string {
	return path.Join(s.prefix, folder, name)
}

// WriteDocument puts the object, replacing any previous version.
func (s *S3Sink) WriteDocument(ctx context.Context, folder, name string, body []byte) error {
	key := s.Key(folder, name)
	_, err := s.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(s.bucket),
		Key:         aws.String(key),
		Body:        bytes.NewReader(body),
		ContentType: aws.String("application/json"),
	})
	return eris.Wrapf(err, "s3 sink: put %s", key)
}

// Location implements Sink.
func (s *S3Sink) Location() string {
	return "s3://" + path.Join(s.bucket, s.prefix)
}
