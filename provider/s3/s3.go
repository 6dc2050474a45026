// Package s3 is a durable backend storing one object per key. It suits
// multi-host consoles that already have an object store but no Redis.
package s3

import (
	"bytes"
	"context"
	"errors"
	"io"
	"strconv"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/feature/s3/manager"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/aws/smithy-go"

	pr "github.com/unkn0wn-root/anthillstore/provider"
)

const expiresAtMetaKey = "expires_at"

var ErrNoBucket = errors.New("s3 provider: bucket is required")

// API is the subset of *s3.Client the provider needs.
type API interface {
	manager.UploadAPIClient
	GetObject(ctx context.Context, in *s3.GetObjectInput, optFns ...func(*s3.Options)) (*s3.GetObjectOutput, error)
}

type Provider struct {
	bucket   string
	prefix   string
	client   API
	uploader *manager.Uploader
}

var _ pr.Provider = (*Provider)(nil)

type Config struct {
	Bucket    string
	KeyPrefix string // prepended to every object key, e.g. "console/"
	Region    string
	Endpoint  string // non-empty => path-style requests against this endpoint
	AccessKey string
	SecretKey string
}

// Dial builds an S3 client from cfg. Empty credentials fall back to the default chain.
func Dial(ctx context.Context, cfg Config) (*Provider, error) {
	opts := []func(*awsconfig.LoadOptions) error{awsconfig.WithRegion(cfg.Region)}
	if cfg.AccessKey != "" {
		opts = append(opts, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKey, cfg.SecretKey, "")))
	}
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, err
	}
	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.Endpoint != "" {
			o.UsePathStyle = true
			o.BaseEndpoint = aws.String(cfg.Endpoint)
		}
	})
	return New(client, cfg.Bucket, cfg.KeyPrefix)
}

func New(client API, bucket, keyPrefix string) (*Provider, error) {
	if bucket == "" {
		return nil, ErrNoBucket
	}
	return &Provider{
		bucket:   bucket,
		prefix:   keyPrefix,
		client:   client,
		uploader: manager.NewUploader(client),
	}, nil
}

func (p *Provider) Get(ctx context.Context, key string) ([]byte, bool, error) {
	out, err := p.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(p.bucket),
		Key:    aws.String(p.prefix + key),
	})
	if err != nil {
		if isNotFound(err) {
			return nil, false, nil
		}
		return nil, false, err
	}
	defer out.Body.Close()

	if exp := parseExpiresAt(out.Metadata); !exp.IsZero() && !time.Now().Before(exp) {
		return nil, false, nil
	}
	body, err := io.ReadAll(out.Body)
	if err != nil {
		return nil, false, err
	}
	return body, true, nil
}

func (p *Provider) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	meta := map[string]string{}
	if ttl > 0 {
		meta[expiresAtMetaKey] = strconv.FormatInt(time.Now().Add(ttl).UnixMilli(), 10)
	}
	_, err := p.uploader.Upload(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(p.bucket),
		Key:         aws.String(p.prefix + key),
		Body:        bytes.NewReader(value),
		ContentType: aws.String("application/octet-stream"),
		Metadata:    meta,
	})
	return err
}

func (p *Provider) Close(context.Context) error { return nil }

func parseExpiresAt(meta map[string]string) time.Time {
	v, ok := meta[expiresAtMetaKey]
	if !ok {
		return time.Time{}
	}
	ms, err := strconv.ParseInt(v, 10, 64)
	if err != nil {
		return time.Time{}
	}
	return time.UnixMilli(ms)
}

func isNotFound(err error) bool {
	var nsk *types.NoSuchKey
	if errors.As(err, &nsk) {
		return true
	}
	var apiErr smithy.APIError
	if errors.As(err, &apiErr) {
		switch apiErr.ErrorCode() {
		case "NotFound", "NoSuchKey":
			return true
		}
	}
	return false
}
