package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/franksops/s3xfer/config"
	"github.com/franksops/s3xfer/engine"
	"github.com/franksops/s3xfer/errs"
	"github.com/franksops/s3xfer/logging"
	"github.com/franksops/s3xfer/provider"
)

type options struct {
	region     string
	metric     string
	profile    string
	configPath string
	debug      bool
}

type bucketLister interface {
	Buckets(ctx context.Context) ([]string, error)
}

type statsSource interface {
	BucketStats(ctx context.Context, bucket string, end time.Time, statistic string) (provider.BucketMetrics, error)
}

func newCommand() *cobra.Command {
	var opts options

	cmd := &cobra.Command{
		Use:           "bucketstats",
		Short:         "Report size and object count of every S3 bucket from CloudWatch",
		Version:       "1.0.0",
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := applyConfig(&opts, cmd.Flags()); err != nil {
				return err
			}
			if !provider.ValidStatistic(opts.metric) {
				return errs.Configf("unknown metric statistic %q", opts.metric)
			}
			logger := logging.New(os.Stderr, false, opts.debug)
			sess, err := provider.NewSession(cmd.Context(), provider.SessionOptions{
				Profile: opts.profile,
				Region:  opts.region,
				Logger:  logging.SDK(logger),
			})
			if err != nil {
				return err
			}
			return report(cmd.Context(), sess.NewS3Store(), sess.NewMetricsSource(), opts.metric, time.Now(), os.Stdout)
		},
	}

	f := cmd.Flags()
	f.StringVar(&opts.region, "region", provider.DefaultRegion, "AWS region")
	f.StringVar(&opts.metric, "metric", "Maximum", "CloudWatch statistic (Average, Sum, Minimum, Maximum, SampleCount)")
	f.StringVar(&opts.profile, "profile", "", "AWS profile")
	f.StringVar(&opts.configPath, "config", "", "configuration file (default ~/"+config.DefaultFileName+")")
	f.BoolVar(&opts.debug, "debug", false, "log AWS SDK requests")

	return cmd
}

// applyConfig fills the options not given on the command line from the
// configuration file.
func applyConfig(opts *options, set *pflag.FlagSet) error {
	cfg, err := config.Load(opts.configPath)
	if err != nil {
		return err
	}
	if !set.Changed("metric") && cfg.Metric != "" {
		opts.metric = cfg.Metric
	}
	if !set.Changed("profile") {
		opts.profile = cfg.Profile
	}
	if !set.Changed("region") && cfg.Region != "" {
		opts.region = cfg.Region
	}
	return nil
}

// report prints one row per bucket with yesterday's metrics, then a total row.
func report(ctx context.Context, buckets bucketLister, source statsSource, metric string, now time.Time, out io.Writer) error {
	names, err := buckets.Buckets(ctx)
	if err != nil {
		return err
	}

	end := provider.Midnight(now)
	fmt.Fprintln(out, "name\tbytes\tobjects")

	var totalBytes, totalObjects int64
	for _, name := range names {
		m, err := source.BucketStats(ctx, name, end, metric)
		if err != nil {
			return err
		}
		totalBytes += m.SizeBytes
		totalObjects += m.Objects
		fmt.Fprintf(out, "%s\t%s\t%d\n", name, engine.HumanSize(m.SizeBytes), m.Objects)
	}
	fmt.Fprintf(out, "TOTAL\t%s\t%d\n", engine.HumanSize(totalBytes), totalObjects)
	return nil
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := newCommand().ExecuteContext(ctx); err != nil {
		log.Error(err)
		stop()
		os.Exit(255)
	}
}
