// Package storage uploads message attachments to S3-compatible object storage.
package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"path"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
)

type S3Config struct {
	Region     string
	Bucket     string
	AccessKey  string
	SecretKey  string
	Endpoint   string
	PublicBase string
	PresignTTL time.Duration
}

// Enabled reports whether enough is configured to build a client.
func (c S3Config) Enabled() bool {
	return c.Region != "" && c.Bucket != ""
}

type objectPutter interface {
	PutObject(ctx context.Context, in *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
}

type Client struct {
	cfg     S3Config
	s3      objectPutter
	presign *s3.PresignClient
}

func NewClient(ctx context.Context, cfg S3Config) (*Client, error) {
	if !cfg.Enabled() {
		return nil, errors.New("s3 region and bucket are required")
	}

	opts := []func(*config.LoadOptions) error{config.WithRegion(cfg.Region)}
	if cfg.AccessKey != "" && cfg.SecretKey != "" {
		opts = append(opts, config.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(cfg.AccessKey, cfg.SecretKey, "")))
	}
	awsCfg, err := config.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, err
	}

	s3Client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
			o.UsePathStyle = true
		}
	})
	return &Client{cfg: cfg, s3: s3Client, presign: s3.NewPresignClient(s3Client)}, nil
}

// Object is a stored attachment.
type Object struct {
	Key  string
	URL  string
	Size int64
}

// ProgressFunc receives upload progress in percent, never decreasing.
type ProgressFunc func(percent int)

// ObjectKey builds the key for an attachment: attachments/<conversation>/<id>/<name>.
func ObjectKey(conversationID, attachmentID, fileName string) string {
	name := path.Base(strings.ReplaceAll(fileName, "\\", "/"))
	if name == "." || name == "/" || name == "" {
		name = "file"
	}
	return path.Join("attachments", conversationID, attachmentID, name)
}

// Upload stores body under key and reports progress while the SDK reads it.
func (c *Client) Upload(ctx context.Context, key, contentType string, body io.ReadSeeker, size int64, progress ProgressFunc) (Object, error) {
	if c == nil {
		return Object{}, errors.New("s3 client not initialized")
	}
	if key == "" {
		return Object{}, errors.New("object key is required")
	}
	if contentType == "" {
		contentType = "application/octet-stream"
	}

	reader := newProgressReader(body, size, progress)
	input := &s3.PutObjectInput{
		Bucket:      aws.String(c.cfg.Bucket),
		Key:         aws.String(key),
		Body:        reader,
		ContentType: aws.String(contentType),
	}
	if size > 0 {
		input.ContentLength = aws.Int64(size)
	}
	if _, err := c.s3.PutObject(ctx, input); err != nil {
		return Object{}, fmt.Errorf("put object %s: %w", key, err)
	}
	reader.finish()

	url, err := c.FileURL(ctx, key)
	if err != nil {
		return Object{}, err
	}
	return Object{Key: key, URL: url, Size: size}, nil
}

// FileURL returns the public URL of key, or a presigned GET URL when no
// public base is configured.
func (c *Client) FileURL(ctx context.Context, key string) (string, error) {
	if c.cfg.PublicBase != "" {
		return strings.TrimRight(c.cfg.PublicBase, "/") + "/" + key, nil
	}
	if c.presign == nil {
		return fmt.Sprintf("s3://%s/%s", c.cfg.Bucket, key), nil
	}
	req, err := c.presign.PresignGetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(c.cfg.Bucket),
		Key:    aws.String(key),
	}, func(po *s3.PresignOptions) {
		if c.cfg.PresignTTL > 0 {
			po.Expires = c.cfg.PresignTTL
		}
	})
	if err != nil {
		return "", fmt.Errorf("presign %s: %w", key, err)
	}
	return req.URL, nil
}

// File is a local file handed to an uploader.
type File struct {
	Name        string
	ContentType string
	Size        int64
	Body        io.ReadSeeker
}
