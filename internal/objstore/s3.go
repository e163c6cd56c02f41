package objstore

import (
	"context"
	"fmt"
	"net/url"

	"github.com/aws/aws-sdk-go-v2/aws"
	awshttp "github.com/aws/aws-sdk-go-v2/aws/transport/http"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/credentials/stscreds"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/sts"

	"github.com/DanikLP1/s3-chunk-storage/internal/config"
)

// S3 is a Client backed by the AWS SDK. Close drops pooled connections.
type S3 struct {
	*s3.Client
	httpClient *awshttp.BuildableClient
}

func NewS3(ctx context.Context, cfg config.Storage) (*S3, error) {
	httpClient := awshttp.NewBuildableClient()

	opts := []func(*awsconfig.LoadOptions) error{
		awsconfig.WithHTTPClient(httpClient),
	}
	if cfg.Region != "" {
		opts = append(opts, awsconfig.WithRegion(cfg.Region))
	}
	if cfg.AccessKey != "" {
		opts = append(opts, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKey, cfg.SecretKey, ""),
		))
	}
	if cfg.ConfigURI != "" {
		path, err := sharedConfigPath(cfg.ConfigURI)
		if err != nil {
			return nil, err
		}
		opts = append(opts, awsconfig.WithSharedConfigFiles([]string{path}))
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("load AWS config: %w", err)
	}

	if cfg.AssumeRole {
		provider := stscreds.NewAssumeRoleProvider(sts.NewFromConfig(awsCfg), cfg.Role)
		awsCfg.Credentials = aws.NewCredentialsCache(provider)
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.OverrideEndpoint {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
		}
		o.UsePathStyle = cfg.UsePathStyle
	})
	return &S3{Client: client, httpClient: httpClient}, nil
}

func (c *S3) Close() error {
	if t := c.httpClient.GetTransport(); t != nil {
		t.CloseIdleConnections()
	}
	return nil
}

// sharedConfigPath accepts a plain path or a file:// URI.
func sharedConfigPath(uri string) (string, error) {
	u, err := url.Parse(uri)
	if err != nil {
		return "", fmt.Errorf("parse config uri: %w", err)
	}
	switch u.Scheme {
	case "":
		return uri, nil
	case "file":
		if u.Host != "" && u.Host != "localhost" {
			return "", fmt.Errorf("config uri %q: remote file hosts are not supported", uri)
		}
		return u.Path, nil
	default:
		return "", fmt.Errorf("config uri %q: unsupported scheme %q", uri, u.Scheme)
	}
}
