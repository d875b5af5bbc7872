package s3x

import (
	"context"
	"net/http"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
)

// Config carries the object-store connection settings.
type Config struct {
	Region    string
	AccessKey string
	SecretKey string
	// Endpoint overrides the AWS endpoint for S3-compatible backends
	// (MinIO etc.). Empty means the default AWS endpoint.
	Endpoint string
	Bucket   string
	// PublicURL is the base under which uploaded objects are reachable,
	// e.g. "https://cdn.example.com".
	PublicURL string
}

// Client wraps an explicitly constructed S3 client plus its presign client.
// It is built once at startup and injected into the components that need it;
// there is no lazily-initialized global.
type Client struct {
	s3        *s3.Client
	presign   *s3.PresignClient
	bucket    string
	publicURL string
}

// NewClient builds the S3 client from static credentials and an optional
// custom endpoint.
func NewClient(ctx context.Context, cfg Config) (*Client, error) {
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx,
		awsconfig.WithRegion(cfg.Region),
		awsconfig.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(
			cfg.AccessKey,
			cfg.SecretKey,
			"",
		)))
	if err != nil {
		return nil, err
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
			o.UsePathStyle = true
		}
	})

	return &Client{
		s3:        client,
		presign:   s3.NewPresignClient(client),
		bucket:    cfg.Bucket,
		publicURL: cfg.PublicURL,
	}, nil
}

// PresignPut mints a time-bounded write credential scoped to exactly one key,
// content type and byte size. The object store enforces these constraints at
// upload time; the application never sees the file bytes.
func (c *Client) PresignPut(ctx context.Context, key, contentType string, size int64, expires time.Duration) (string, http.Header, error) {
	req, err := c.presign.PresignPutObject(ctx, &s3.PutObjectInput{
		Bucket:        aws.String(c.bucket),
		Key:           aws.String(key),
		ContentType:   aws.String(contentType),
		ContentLength: aws.Int64(size),
	}, s3.WithPresignExpires(expires))
	if err != nil {
		return "", nil, err
	}
	return req.URL, req.SignedHeader, nil
}

// FileURL returns the public URL under which the given key will be reachable
// once uploaded.
func (c *Client) FileURL(key string) string {
	return KeyToURL(c.publicURL, key)
}
