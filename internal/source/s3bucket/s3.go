// Package s3bucket reads photos from an S3 (or S3-compatible) prefix.
package s3bucket

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/url"
	"path"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/smithy-go"

	"github.com/saturnino-fabrica-de-software/facefind/internal/imageio"
	"github.com/saturnino-fabrica-de-software/facefind/internal/source"
)

const DefaultMaxFiles = 500

const (
	errCodeNoSuchBucket = "NoSuchBucket"
	errCodeNoSuchKey    = "NoSuchKey"
	errCodeAccessDenied = "AccessDenied"
)

// API is the subset of the S3 client used here.
type API interface {
	ListObjectsV2(ctx context.Context, params *s3.ListObjectsV2Input, optFns ...func(*s3.Options)) (*s3.ListObjectsV2Output, error)
	GetObject(ctx context.Context, params *s3.GetObjectInput, optFns ...func(*s3.Options)) (*s3.GetObjectOutput, error)
}

type Config struct {
	Region string
	// Endpoint selects an S3-compatible service such as MinIO; path-style
	// addressing is used when set.
	Endpoint string
	MaxFiles int
}

type Client struct {
	api      API
	maxFiles int
}

// New uses the AWS default credential chain.
func New(ctx context.Context, cfg Config) (*Client, error) {
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx,
		awsconfig.WithRegion(cfg.Region),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}

	api := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
			o.UsePathStyle = true
		}
	})
	return NewWithAPI(api, cfg.MaxFiles), nil
}

func NewWithAPI(api API, maxFiles int) *Client {
	if maxFiles <= 0 {
		maxFiles = DefaultMaxFiles
	}
	return &Client{api: api, maxFiles: maxFiles}
}

// Prefix returns a source for an s3://bucket/prefix link.
func (c *Client) Prefix(link string) (*Prefix, error) {
	bucket, prefix, err := ParseLink(link)
	if err != nil {
		return nil, err
	}
	return &Prefix{client: c, bucket: bucket, prefix: prefix}, nil
}

// ParseLink splits s3://bucket/some/prefix into bucket and prefix. A
// non-empty prefix always ends in "/".
func ParseLink(link string) (bucket, prefix string, err error) {
	u, err := url.Parse(strings.TrimSpace(link))
	if err != nil || u.Scheme != "s3" || u.Host == "" {
		return "", "", fmt.Errorf("%w: expected s3://bucket/prefix, got %q", source.ErrInvalidLink, link)
	}

	prefix = strings.TrimPrefix(u.Path, "/")
	if prefix != "" && !strings.HasSuffix(prefix, "/") {
		prefix += "/"
	}
	return u.Host, prefix, nil
}

// Prefix implements source.Source for every object below one key prefix.
type Prefix struct {
	client *Client
	bucket string
	prefix string
}

func (p *Prefix) List(ctx context.Context) ([]source.RemoteFile, error) {
	paginator := s3.NewListObjectsV2Paginator(p.client.api, &s3.ListObjectsV2Input{
		Bucket: aws.String(p.bucket),
		Prefix: aws.String(p.prefix),
	})

	var files []source.RemoteFile
	for paginator.HasMorePages() {
		page, err := paginator.NextPage(ctx)
		if err != nil {
			return nil, fmt.Errorf("list s3://%s/%s: %w", p.bucket, p.prefix, classify(err))
		}
		for _, obj := range page.Contents {
			key := aws.ToString(obj.Key)
			if strings.HasSuffix(key, "/") || !imageio.IsCandidate(key) {
				continue
			}
			files = append(files, source.RemoteFile{
				ID:   key,
				Name: path.Base(key),
				Size: aws.ToInt64(obj.Size),
			})
			if len(files) >= p.client.maxFiles {
				return files, nil
			}
		}
	}
	return files, nil
}

func (p *Prefix) Open(ctx context.Context, f source.RemoteFile) (io.ReadCloser, error) {
	out, err := p.client.api.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(p.bucket),
		Key:    aws.String(f.ID),
	})
	if err != nil {
		return nil, fmt.Errorf("get s3://%s/%s: %w", p.bucket, f.ID, classify(err))
	}
	return out.Body, nil
}

func classify(err error) error {
	var apiErr smithy.APIError
	if !errors.As(err, &apiErr) {
		return err
	}
	switch apiErr.ErrorCode() {
	case errCodeNoSuchBucket, errCodeNoSuchKey:
		return fmt.Errorf("%w: %v", source.ErrFolderNotFound, err)
	case errCodeAccessDenied:
		return fmt.Errorf("%w: %v", source.ErrAccessDenied, err)
	}
	return err
}

var _ source.Source = (*Prefix)(nil)
