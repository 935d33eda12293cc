package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/franksops/s3xfer/config"
	"github.com/franksops/s3xfer/errs"
	"github.com/franksops/s3xfer/logging"
	"github.com/franksops/s3xfer/provider"
)

const version = "1.2.0"

// exitFailure is what os.Exit(-1) becomes on POSIX systems.
const exitFailure = 255

// errReported marks a failure whose diagnostic has already been printed.
var errReported = errors.New("transfer failed")

// flagValues receives the command line before it is merged into the config.
type flagValues struct {
	configPath  string
	profile     string
	region      string
	workers     int
	bucket      string
	basedir     string
	journal     string
	metricsFile string
}

func newCommand() *cobra.Command {
	var (
		cfg   = config.NewDefault()
		flags flagValues
	)

	cmd := &cobra.Command{
		Use:   "s3cp [source paths...]",
		Short: "Upload files to, download objects from, or remove objects from AWS S3",
		Long: `s3cp uploads local directory trees or order-file listed files to S3,
downloads objects, removes objects or copies objects between buckets.
Transfers run on a pool of workers, each holding its own S3 connection.`,
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			merged, err := mergeConfig(cfg, flags, cmd.Flags())
			if err != nil {
				return err
			}
			merged.Sources = args

			logger := logging.New(os.Stderr, merged.Verbose || merged.Debug, merged.Debug)
			if err := merged.Validate(); err != nil {
				logger.Error(err.Error())
				return errReported
			}

			sess, err := provider.NewSession(cmd.Context(), provider.SessionOptions{
				Profile: merged.Profile,
				Region:  merged.Region,
				Logger:  logging.SDK(logger),
			})
			if err != nil {
				return err
			}

			a := newApp(merged, os.Stdout, logger, func() provider.ObjectStore { return sess.NewS3Store() })
			return a.run(cmd.Context())
		},
	}

	cmd.SetFlagErrorFunc(func(_ *cobra.Command, err error) error {
		return &errs.ConfigurationError{Msg: err.Error()}
	})

	f := cmd.Flags()
	f.StringVar(&cfg.Order, "order", "", "order file (tab-separated source/destination)")
	f.StringVarP(&flags.bucket, "bucket", "b", "", "S3 bucket (optionally with a key prefix)")
	f.IntVarP(&flags.workers, "workers", "w", cfg.Workers, "number of workers")
	f.BoolVar(&cfg.Download, "download", false, "download objects instead of uploading")
	f.BoolVar(&cfg.Delete, "delete", false, "remove the objects listed in the order file")
	f.BoolVar(&cfg.Cloud, "cloud", false, "server-side copy of the pairs listed in the order file")
	f.StringVar(&flags.basedir, "basedir", "", "local base directory for downloads")
	f.StringVar(&cfg.EndsWith, "endswith", "", "only upload files whose name ends with this suffix")
	f.StringVar(&cfg.Tags.Version, "version-tag", "", "S3 tag for project version")
	f.StringVar(&cfg.Tags.Stage, "stage-tag", "", "S3 tag for project stage (dev, prod or val)")
	f.StringVar(&cfg.Tags.Developer, "developer-tag", "", "S3 tag for project developer")
	f.StringVar(&cfg.Tags.Project, "project-tag", "", "S3 tag for project name")
	f.StringVar(&cfg.Tags.Description, "description-tag", "", "S3 tag for project description")
	f.StringVar(&flags.profile, "profile", "", "AWS profile")
	f.StringVar(&flags.region, "region", "", "AWS region")
	f.BoolVar(&cfg.DryRun, "dryrun", false, "list what would be transferred without transferring")
	f.BoolVar(&cfg.Verbose, "verbose", false, "chatty output")
	f.BoolVar(&cfg.Debug, "debug", false, "very chatty output, including AWS SDK requests")
	f.BoolVar(&cfg.KeepGoing, "keep-going", false, "run every job and report failures at the end")
	f.StringVar(&flags.journal, "journal", "", "record job state in this file")
	f.BoolVar(&cfg.Resume, "resume", false, "skip jobs the journal records as completed")
	f.BoolVar(&cfg.Progress, "progress", false, "show a progress view when attached to a terminal")
	f.StringVar(&flags.metricsFile, "metrics-file", "", "write Prometheus metrics to this file when done")
	f.StringVar(&flags.configPath, "config", "", "configuration file (default ~/"+config.DefaultFileName+")")

	return cmd
}

// mergeConfig layers the config file under the flags that were set
// explicitly. The per-invocation options in flagCfg are always taken.
func mergeConfig(flagCfg *config.Config, flags flagValues, set *pflag.FlagSet) (*config.Config, error) {
	cfg, err := config.Load(flags.configPath)
	if err != nil {
		return nil, err
	}

	cfg.Order = flagCfg.Order
	cfg.Download = flagCfg.Download
	cfg.Delete = flagCfg.Delete
	cfg.Cloud = flagCfg.Cloud
	cfg.EndsWith = flagCfg.EndsWith
	cfg.Tags = flagCfg.Tags
	cfg.DryRun = flagCfg.DryRun
	cfg.Verbose = flagCfg.Verbose
	cfg.Debug = flagCfg.Debug
	cfg.KeepGoing = flagCfg.KeepGoing
	cfg.Resume = flagCfg.Resume
	cfg.Progress = flagCfg.Progress

	if set.Changed("profile") {
		cfg.Profile = flags.profile
	}
	if set.Changed("region") {
		cfg.Region = flags.region
	}
	if set.Changed("workers") {
		cfg.Workers = flags.workers
	}
	if set.Changed("bucket") {
		cfg.Bucket = flags.bucket
	}
	if set.Changed("basedir") {
		cfg.Basedir = flags.basedir
	}
	if set.Changed("journal") {
		cfg.Journal = flags.journal
	}
	if set.Changed("metrics-file") {
		cfg.MetricsFile = flags.metricsFile
	}
	return cfg, nil
}

// diagnostic is the two-line failure report printed for a failed job.
func diagnostic(err error) string {
	return fmt.Sprintf("An error of type %s occurred. Arguments:\n%v", errs.TypeName(err), err)
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	err := newCommand().ExecuteContext(ctx)
	switch {
	case err == nil:
		return
	case errors.Is(err, errReported):
	case errs.IsConfiguration(err):
		log.Error(err.Error())
	case errors.Is(err, context.Canceled):
		log.Warn("interrupted")
	default:
		fmt.Println(diagnostic(err))
	}
	stop()
	os.Exit(exitFailure)
}
