// Package storage uploads capsule images to an S3 bucket.
package storage

import (
	"bytes"
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/feature/s3/manager"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/google/uuid"
)

const MaxFileSize = 5 * 1024 * 1024

// AllowedTypes maps accepted image content types to object extensions.
var AllowedTypes = map[string]string{
	"image/jpeg": "jpg",
	"image/png":  "png",
	"image/gif":  "gif",
	"image/webp": "webp",
}

type S3Store struct {
	Bucket        string
	PublicBaseURL string

	uploader *manager.Uploader
}

type Options struct {
	Bucket        string
	Region        string
	AccessKeyID   string
	SecretKey     string
	PublicBaseURL string
}

func NewS3Store(ctx context.Context, opts Options) (*S3Store, error) {
	loadOpts := []func(*awsconfig.LoadOptions) error{
		awsconfig.WithRegion(opts.Region),
	}
	if opts.AccessKeyID != "" {
		loadOpts = append(loadOpts, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(opts.AccessKeyID, opts.SecretKey, ""),
		))
	}

	cfg, err := awsconfig.LoadDefaultConfig(ctx, loadOpts...)
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}

	client := s3.NewFromConfig(cfg)
	base := opts.PublicBaseURL
	if base == "" {
		base = fmt.Sprintf("https://%s.s3.%s.amazonaws.com", opts.Bucket, opts.Region)
	}
	return &S3Store{
		Bucket:        opts.Bucket,
		PublicBaseURL: base,
		uploader:      manager.NewUploader(client),
	}, nil
}

// Put stores one validated image and returns its public URL. Object keys
// are random so uploads never collide.
func (s *S3Store) Put(ctx context.Context, data []byte, contentType string) (string, error) {
	ext, ok := AllowedTypes[contentType]
	if !ok {
		return "", fmt.Errorf("unsupported content type %q", contentType)
	}
	if len(data) > MaxFileSize {
		return "", fmt.Errorf("file too large: %d bytes", len(data))
	}

	key := fmt.Sprintf("capsule-images/%s.%s", uuid.NewString(), ext)
	_, err := s.uploader.Upload(ctx, &s3.PutObjectInput{
		Bucket:       aws.String(s.Bucket),
		Key:          aws.String(key),
		Body:         bytes.NewReader(data),
		ContentType:  aws.String(contentType),
		CacheControl: aws.String("max-age=3600"),
	})
	if err != nil {
		return "", fmt.Errorf("s3 upload: %w", err)
	}
	return s.PublicBaseURL + "/" + key, nil
}
