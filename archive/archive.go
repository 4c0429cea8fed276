package archive

import (
	"context"
	"errors"
	"fmt"
	"mime"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/smithy-go"
)

// Options configures the S3 uploader.
type Options struct {
	Bucket          string
	Region          string
	Prefix          string
	AccessKeyID     string
	SecretAccessKey string
}

// Uploader copies completed downloads to an S3 bucket.
type Uploader struct {
	client *s3.Client
	bucket string
	prefix string
}

// New builds an uploader from the given options. Returns nil when no
// bucket is configured, which disables archiving.
func New(ctx context.Context, opts Options) (*Uploader, error) {
	if opts.Bucket == "" {
		return nil, nil
	}

	loadOpts := []func(*awsconfig.LoadOptions) error{}
	if opts.Region != "" {
		loadOpts = append(loadOpts, awsconfig.WithRegion(opts.Region))
	}
	if opts.AccessKeyID != "" {
		loadOpts = append(loadOpts, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(opts.AccessKeyID, opts.SecretAccessKey, "")))
	}

	cfg, err := awsconfig.LoadDefaultConfig(ctx, loadOpts...)
	if err != nil {
		return nil, fmt.Errorf("load AWS config: %w", err)
	}

	return &Uploader{
		client: s3.NewFromConfig(cfg),
		bucket: opts.Bucket,
		prefix: opts.Prefix,
	}, nil
}

// Upload copies the file at localPath into the bucket under the
// configured prefix.
func (u *Uploader) Upload(ctx context.Context, localPath string) error {
	file, err := os.Open(localPath)
	if err != nil {
		return fmt.Errorf("open %s: %w", localPath, err)
	}
	defer file.Close()

	key := u.objectKey(filepath.Base(localPath))
	input := &s3.PutObjectInput{
		Bucket: aws.String(u.bucket),
		Key:    aws.String(key),
		Body:   file,
	}
	if ct := mime.TypeByExtension(filepath.Ext(localPath)); ct != "" {
		input.ContentType = aws.String(ct)
	}

	if _, err := u.client.PutObject(ctx, input); err != nil {
		var apiErr smithy.APIError
		if errors.As(err, &apiErr) {
			return fmt.Errorf("upload %s to s3://%s/%s: %s: %s",
				filepath.Base(localPath), u.bucket, key, apiErr.ErrorCode(), apiErr.ErrorMessage())
		}
		return fmt.Errorf("upload %s to s3://%s/%s: %w", filepath.Base(localPath), u.bucket, key, err)
	}
	return nil
}

func (u *Uploader) objectKey(name string) string {
	if u.prefix == "" {
		return name
	}
	return path.Join(strings.TrimSuffix(u.prefix, "/"), name)
}
