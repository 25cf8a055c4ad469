// Package storage keeps uploaded cup photos in S3-compatible object storage.
package storage

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"path"
	"strconv"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/google/uuid"

	"github.com/syecodesoftware-del/mystic-brew-fortune/internal/config"
)

type putObjectAPI interface {
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
}

type Uploader struct {
	bucket        string
	publicBaseURL string
	prefix        string
	client        putObjectAPI
	now           func() time.Time
}

// NewUploader builds an uploader from the S3_* settings. Call it only when
// cfg.S3Enabled() is true.
func NewUploader(cfg config.Config) (*Uploader, error) {
	if cfg.S3Bucket == "" {
		return nil, errors.New("s3 bucket is required")
	}
	if cfg.S3Region == "" {
		return nil, errors.New("s3 region is required")
	}
	if cfg.S3AccessKey == "" || cfg.S3SecretKey == "" {
		return nil, errors.New("s3 credentials are required")
	}
	if cfg.S3PublicBaseURL == "" {
		return nil, errors.New("s3 public base url is required")
	}

	options := s3.Options{
		Region:       cfg.S3Region,
		Credentials:  credentials.NewStaticCredentialsProvider(cfg.S3AccessKey, cfg.S3SecretKey, ""),
		UsePathStyle: cfg.S3UsePathStyle,
	}
	if cfg.S3Endpoint != "" {
		options.BaseEndpoint = aws.String(cfg.S3Endpoint)
	}

	return newUploader(s3.New(options), cfg.S3Bucket, cfg.S3PublicBaseURL, cfg.S3Prefix), nil
}

func newUploader(client putObjectAPI, bucket, publicBaseURL, prefix string) *Uploader {
	if prefix == "" {
		prefix = "cups"
	}
	return &Uploader{
		bucket:        bucket,
		publicBaseURL: strings.TrimRight(publicBaseURL, "/"),
		prefix:        strings.Trim(prefix, "/"),
		client:        client,
		now:           time.Now,
	}
}

// Upload stores one photo for userID and returns its public URL.
func (u *Uploader) Upload(ctx context.Context, userID int64, data []byte, contentType string) (string, error) {
	if len(data) == 0 {
		return "", errors.New("no data to upload")
	}
	if contentType == "" {
		contentType = "image/jpeg"
	}

	key := u.generateKey(userID, contentType)
	_, err := u.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(u.bucket),
		Key:         aws.String(key),
		Body:        bytes.NewReader(data),
		ContentType: aws.String(contentType),
		ACL:         types.ObjectCannedACLPublicRead,
	})
	if err != nil {
		return "", fmt.Errorf("upload to s3: %w", err)
	}
	return u.publicBaseURL + "/" + key, nil
}

func (u *Uploader) generateKey(userID int64, contentType string) string {
	now := u.now().UTC()
	return path.Join(u.prefix, strconv.FormatInt(userID, 10), now.Format("2006/01/02"), uuid.NewString()+extensionFromContentType(contentType))
}

func extensionFromContentType(contentType string) string {
	switch strings.ToLower(contentType) {
	case "image/png":
		return ".png"
	case "image/jpeg", "image/jpg":
		return ".jpg"
	case "image/webp":
		return ".webp"
	default:
		return ".bin"
	}
}
