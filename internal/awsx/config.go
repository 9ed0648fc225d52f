// Package awsx loads the AWS SDK configuration shared by every AWS client
// in the service (DynamoDB, SNS, Secrets Manager).
package awsx

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
)

// Config holds AWS connection parameters.
type Config struct {
	// Region is the AWS region (e.g. "ap-south-1").
	Region string

	// Endpoint, when set, points every client at LocalStack and switches to
	// static test credentials.
	Endpoint string

	// Timeout is the HTTP client timeout for SDK requests.
	Timeout time.Duration
}

// Load resolves an aws.Config from the default credential chain, or from
// static LocalStack credentials when cfg.Endpoint is set.
func Load(ctx context.Context, cfg Config) (aws.Config, error) {
	opts := []func(*awsconfig.LoadOptions) error{
		awsconfig.WithRegion(cfg.Region),
	}

	if cfg.Endpoint != "" {
		opts = append(opts,
			awsconfig.WithCredentialsProvider(
				credentials.NewStaticCredentialsProvider("test", "test", ""),
			),
		)
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return aws.Config{}, fmt.Errorf("load AWS config: %w", err)
	}

	if cfg.Timeout > 0 {
		awsCfg.HTTPClient = &http.Client{Timeout: cfg.Timeout}
	}

	return awsCfg, nil
}

// BaseEndpoint returns a pointer for a service client's BaseEndpoint option,
// or nil to keep the default resolver.
func BaseEndpoint(endpoint string) *string {
	if endpoint == "" {
		return nil
	}
	return aws.String(endpoint)
}
