package provider

import (
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/cloudwatch"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/smithy-go/logging"

	"github.com/franksops/s3xfer/errs"
)

// DefaultRegion is used when neither the flags nor the shared config name one.
const DefaultRegion = "us-east-1"

// SessionOptions selects credentials and region for a Session.
type SessionOptions struct {
	// Profile is a named profile from the shared AWS config files.
	Profile string
	Region  string

	// Anonymous sends unsigned requests, for public buckets.
	Anonymous bool

	// Logger receives SDK request logs when non-nil.
	Logger logging.Logger
}

// Session resolves AWS configuration once per process and hands out clients.
// Stores built from one Session share credentials but not connections state.
type Session struct {
	cfg aws.Config
}

// NewSession loads the shared AWS configuration.
func NewSession(ctx context.Context, opts SessionOptions) (*Session, error) {
	var loadOpts []func(*config.LoadOptions) error
	if opts.Profile != "" {
		loadOpts = append(loadOpts, config.WithSharedConfigProfile(opts.Profile))
	}
	if opts.Region != "" {
		loadOpts = append(loadOpts, config.WithRegion(opts.Region))
	}
	if opts.Anonymous {
		loadOpts = append(loadOpts, config.WithCredentialsProvider(aws.AnonymousCredentials{}))
	}
	if opts.Logger != nil {
		loadOpts = append(loadOpts,
			config.WithLogger(opts.Logger),
			config.WithClientLogMode(aws.LogRetries|aws.LogRequest),
		)
	}

	cfg, err := config.LoadDefaultConfig(ctx, loadOpts...)
	if err != nil {
		return nil, errs.Remote("session", "", "", fmt.Errorf("unable to load AWS config: %w", err))
	}
	if cfg.Region == "" {
		cfg.Region = DefaultRegion
	}

	return &Session{cfg: cfg}, nil
}

// Region returns the resolved region.
func (s *Session) Region() string {
	return s.cfg.Region
}

// NewS3Store builds a store with its own S3 client.
func (s *Session) NewS3Store() *S3Store {
	return NewS3Store(s3.NewFromConfig(s.cfg))
}

// NewMetricsSource builds a CloudWatch-backed bucket metrics source for the
// session's region.
func (s *Session) NewMetricsSource() *MetricsSource {
	return NewMetricsSource(cloudwatch.NewFromConfig(s.cfg))
}
