package objectstore

import (
	"context"
	"fmt"
	"log/slog"
	"net/url"
	"time"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
)

// Config holds the S3-compatible object storage configuration. The service
// targets Wasabi but anything speaking plain S3 works.
type Config struct {
	Endpoint      string
	Region        string
	AccessKey     string
	SecretKey     string
	Bucket        string
	UseSSL        bool
	PresignExpiry time.Duration
}

// Client wraps a minio client bound to a single bucket.
type Client struct {
	config *Config
	mc     *minio.Client
	logger *slog.Logger
}

func NewClient(config *Config, logger *slog.Logger) (*Client, error) {
	mc, err := minio.New(config.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(config.AccessKey, config.SecretKey, ""),
		Secure: config.UseSSL,
		Region: config.Region,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create object storage client: %w", err)
	}

	logger.Info("Object storage client initialized",
		slog.String("endpoint", config.Endpoint),
		slog.String("bucket", config.Bucket),
		slog.String("region", config.Region),
	)

	return &Client{
		config: config,
		mc:     mc,
		logger: logger,
	}, nil
}

// Upload stores a local file under objectName in the configured bucket.
// Credential, permission, and missing-bucket rejections are distinguished in
// the logs for diagnostics but all surface as a single upload error.
func (c *Client) Upload(ctx context.Context, localPath, objectName, contentType string) error {
	info, err := c.mc.FPutObject(ctx, c.config.Bucket, objectName, localPath, minio.PutObjectOptions{
		ContentType: contentType,
	})
	if err != nil {
		resp := minio.ToErrorResponse(err)
		switch resp.Code {
		case "NoSuchBucket":
			c.logger.Error("Upload rejected - bucket does not exist",
				slog.String("bucket", c.config.Bucket),
			)
		case "AccessDenied":
			c.logger.Error("Upload rejected - access denied, check credentials and bucket permissions",
				slog.String("bucket", c.config.Bucket),
			)
		case "InvalidAccessKeyId", "SignatureDoesNotMatch":
			c.logger.Error("Upload rejected - invalid credentials",
				slog.String("code", resp.Code),
			)
		default:
			c.logger.Error("Upload failed",
				slog.String("object", objectName),
				slog.Any("error", err),
			)
		}
		return fmt.Errorf("failed to upload %s: %w", objectName, err)
	}

	c.logger.Info("Object uploaded",
		slog.String("object", objectName),
		slog.Int64("size", info.Size),
	)

	return nil
}

// PresignedURL returns a time-bounded GET URL for objectName. The URL is
// generated fresh on every call so callers never hold one past its expiry
// window.
func (c *Client) PresignedURL(ctx context.Context, objectName string) (string, error) {
	signed, err := c.mc.PresignedGetObject(ctx, c.config.Bucket, objectName, c.config.PresignExpiry, url.Values{})
	if err != nil {
		return "", fmt.Errorf("failed to presign %s: %w", objectName, err)
	}
	return signed.String(), nil
}

// HealthCheck verifies the bucket is reachable.
func (c *Client) HealthCheck(ctx context.Context) error {
	exists, err := c.mc.BucketExists(ctx, c.config.Bucket)
	if err != nil {
		return fmt.Errorf("object storage health check failed: %w", err)
	}
	if !exists {
		return fmt.Errorf("bucket %s does not exist", c.config.Bucket)
	}
	return nil
}
