package s3

import (
	"context"
	"fmt"
	"io"
	"net/url"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	awss3 "github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"

	"sdbooth/internal/ports"
)

// API is the part of *awss3.Client the adapter calls.
type API interface {
	PutObject(ctx context.Context, in *awss3.PutObjectInput, optFns ...func(*awss3.Options)) (*awss3.PutObjectOutput, error)
	GetObject(ctx context.Context, in *awss3.GetObjectInput, optFns ...func(*awss3.Options)) (*awss3.GetObjectOutput, error)
	DeleteObject(ctx context.Context, in *awss3.DeleteObjectInput, optFns ...func(*awss3.Options)) (*awss3.DeleteObjectOutput, error)
	HeadBucket(ctx context.Context, in *awss3.HeadBucketInput, optFns ...func(*awss3.Options)) (*awss3.HeadBucketOutput, error)
}

type Options struct {
	Bucket string
	Region string
	// Endpoint overrides the AWS endpoint (MinIO, localstack). Path style is used then.
	Endpoint string
	// PublicBaseURL replaces the virtual-hosted bucket URL in returned links.
	PublicBaseURL string
	AccessKey     string
	SecretKey     string
}

// Client implements ports.StorageProvider on an S3 bucket.
type Client struct {
	api           API
	bucket        string
	region        string
	publicBaseURL string
}

// New builds an S3 client from the default AWS credential chain, or from
// static keys when both are set.
func New(ctx context.Context, opts Options) (*Client, error) {
	if opts.Bucket == "" {
		return nil, fmt.Errorf("s3 bucket is required")
	}

	loadOpts := []func(*awsconfig.LoadOptions) error{awsconfig.WithRegion(opts.Region)}
	if opts.AccessKey != "" && opts.SecretKey != "" {
		loadOpts = append(loadOpts, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(opts.AccessKey, opts.SecretKey, ""),
		))
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, loadOpts...)
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}

	api := awss3.NewFromConfig(awsCfg, func(o *awss3.Options) {
		if opts.Endpoint != "" {
			o.BaseEndpoint = aws.String(opts.Endpoint)
			o.UsePathStyle = true
		}
	})

	base := opts.PublicBaseURL
	if base == "" && opts.Endpoint != "" {
		base = strings.TrimRight(opts.Endpoint, "/") + "/" + opts.Bucket
	}
	return NewWithAPI(api, opts.Bucket, opts.Region, base), nil
}

func NewWithAPI(api API, bucket, region, publicBaseURL string) *Client {
	return &Client{
		api:           api,
		bucket:        bucket,
		region:        region,
		publicBaseURL: strings.TrimRight(publicBaseURL, "/"),
	}
}

func (c *Client) Provider() string { return "s3" }

func (c *Client) PutObject(ctx context.Context, in ports.PutObjectInput) (ports.PutObjectOutput, error) {
	if in.ObjectKey == "" {
		return ports.PutObjectOutput{}, fmt.Errorf("object_key is required")
	}

	put := &awss3.PutObjectInput{
		Bucket: aws.String(c.bucket),
		Key:    aws.String(in.ObjectKey),
		Body:   in.Reader,
	}
	if in.ContentType != "" {
		put.ContentType = aws.String(in.ContentType)
	}
	if in.ContentDisposition != "" {
		put.ContentDisposition = aws.String(in.ContentDisposition)
	}
	if in.Size > 0 {
		put.ContentLength = aws.Int64(in.Size)
	}
	if in.Public {
		put.ACL = types.ObjectCannedACLPublicRead
	}

	if _, err := c.api.PutObject(ctx, put); err != nil {
		return ports.PutObjectOutput{}, fmt.Errorf("s3 put %s: %w", in.ObjectKey, err)
	}

	return ports.PutObjectOutput{
		ObjectKey: in.ObjectKey,
		Size:      in.Size,
		URL:       c.PublicURL(in.ObjectKey),
	}, nil
}

func (c *Client) GetObject(ctx context.Context, objectKey string) (rc io.ReadCloser, contentType string, size int64, err error) {
	out, err := c.api.GetObject(ctx, &awss3.GetObjectInput{
		Bucket: aws.String(c.bucket),
		Key:    aws.String(objectKey),
	})
	if err != nil {
		return nil, "", 0, fmt.Errorf("s3 get %s: %w", objectKey, err)
	}
	return out.Body, aws.ToString(out.ContentType), aws.ToInt64(out.ContentLength), nil
}

func (c *Client) DeleteObject(ctx context.Context, objectKey string) error {
	_, err := c.api.DeleteObject(ctx, &awss3.DeleteObjectInput{
		Bucket: aws.String(c.bucket),
		Key:    aws.String(objectKey),
	})
	if err != nil {
		return fmt.Errorf("s3 delete %s: %w", objectKey, err)
	}
	return nil
}

// PublicURL returns https://{bucket}.s3.{region}.amazonaws.com/{key} unless a
// public base URL is configured.
func (c *Client) PublicURL(objectKey string) string {
	key := strings.TrimLeft((&url.URL{Path: objectKey}).EscapedPath(), "/")
	if c.publicBaseURL != "" {
		return c.publicBaseURL + "/" + key
	}
	return fmt.Sprintf("https://%s.s3.%s.amazonaws.com/%s", c.bucket, c.region, key)
}

func (c *Client) Ping(ctx context.Context) error {
	_, err := c.api.HeadBucket(ctx, &awss3.HeadBucketInput{Bucket: aws.String(c.bucket)})
	return err
}
