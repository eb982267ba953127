// Package storage provides the S3-compatible object-store sink for feed
// artifacts and padded cover images.
package storage

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"os"

	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"

	"github.com/Saul-Punybz/newswire/internal/config"
)

// Client wraps an S3-compatible object storage client. The private bucket
// receives padded images, the public bucket the published feed artifacts.
type Client struct {
	s3            *s3.Client
	privateBucket string
	pubBucket     string
	noUpload      bool
}

// NewClient creates a new S3-compatible storage client. With no endpoint
// configured the client is disabled and every upload becomes a logged no-op.
func NewClient(ctx context.Context, cfg config.S3Config, noUpload bool) (*Client, error) {
	if cfg.Endpoint == "" {
		slog.Warn("storage: S3 endpoint not configured, uploads disabled")
		return &Client{privateBucket: cfg.PrivateBucket, pubBucket: cfg.PubBucket, noUpload: noUpload}, nil
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx,
		awsconfig.WithRegion(cfg.Region),
		awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKey, cfg.SecretKey, ""),
		),
	)
	if err != nil {
		return nil, fmt.Errorf("storage: load aws config: %w", err)
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		o.BaseEndpoint = &cfg.Endpoint
		o.UsePathStyle = true
	})

	return &Client{
		s3:            client,
		privateBucket: cfg.PrivateBucket,
		pubBucket:     cfg.PubBucket,
		noUpload:      noUpload,
	}, nil
}

// Configured returns true if the S3 client has a valid connection configured
// and uploads are enabled.
func (c *Client) Configured() bool {
	return c.s3 != nil && !c.noUpload
}

func (c *Client) put(ctx context.Context, bucket, key string, body []byte, contentType string) error {
	if !c.Configured() {
		slog.Debug("storage: upload skipped", "key", key)
		return nil
	}
	_, err := c.s3.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      &bucket,
		Key:         &key,
		Body:        bytes.NewReader(body),
		ContentType: &contentType,
	})
	if err != nil {
		return fmt.Errorf("storage: upload %s: %w", key, err)
	}
	slog.Debug("storage: uploaded", "key", key, "size", len(body))
	return nil
}

// UploadBytes uploads one object to the private bucket. Keys are
// content-addressed by callers, so repeated uploads are idempotent.
func (c *Client) UploadBytes(ctx context.Context, key string, body []byte, contentType string) error {
	return c.put(ctx, c.privateBucket, key, body, contentType)
}

// PublishFile uploads a local file to the public bucket under key.
func (c *Client) PublishFile(ctx context.Context, path, key string) error {
	body, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("storage: read %s: %w", path, err)
	}
	return c.put(ctx, c.pubBucket, key, body, "application/json")
}
