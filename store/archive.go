package store

import (
	"context"
	"os"
	"path/filepath"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/feature/s3/manager"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/pkg/errors"

	"github.com/ke4ahr/pacsatd/internal/nlog"
)

// Archiver uploads an expired trash artifact somewhere durable before
// PurgeTrash unlinks it. A nil Archiver on Store means trash is purged
// with no cold-archive step, matching the default behavior.
type Archiver interface {
	Archive(ctx context.Context, key string, path string) error
}

// S3Archiver uploads to one bucket/prefix using the default AWS
// credential chain (environment, shared config, or instance role).
type S3Archiver struct {
	bucket   string
	prefix   string
	uploader *manager.Uploader
}

// NewS3Archiver loads the default AWS config (environment, shared config
// file, or EC2/ECS role) and constructs an uploader for bucket/prefix.
func NewS3Archiver(ctx context.Context, bucket, prefix string) (*S3Archiver, error) {
	cfg, err := awsconfig.LoadDefaultConfig(ctx)
	if err != nil {
		return nil, errors.Wrap(err, "store: load AWS config")
	}
	client := s3.NewFromConfig(cfg)
	return &S3Archiver{
		bucket:   bucket,
		prefix:   prefix,
		uploader: manager.NewUploader(client),
	}, nil
}

// Archive uploads the file at path under <prefix>/<key>.
func (a *S3Archiver) Archive(ctx context.Context, key, path string) error {
	f, err := os.Open(path)
	if err != nil {
		return errors.Wrap(err, string(ErrIoFailure))
	}
	defer f.Close()

	objKey := key
	if a.prefix != "" {
		objKey = filepath.Join(a.prefix, key)
	}
	_, err = a.uploader.Upload(ctx, &s3.PutObjectInput{
		Bucket: aws.String(a.bucket),
		Key:    aws.String(objKey),
		Body:   f,
	})
	if err != nil {
		return errors.Wrap(err, "store: s3 archive upload")
	}
	nlog.Infof("store: archived %q to s3://%s/%s", filepath.Base(path), a.bucket, objKey)
	return nil
}
