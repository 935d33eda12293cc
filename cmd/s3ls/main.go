package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"

	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/franksops/s3xfer/engine"
	"github.com/franksops/s3xfer/errs"
	"github.com/franksops/s3xfer/logging"
	"github.com/franksops/s3xfer/provider"
)

const defaultPath = "janelia-flylight-imagery"

type options struct {
	path      string
	full      bool
	recursive bool
	group     bool
	detail    bool
	profile   string
	region    string
	anon      bool
	debug     bool
}

// lister is the part of the object store s3ls needs.
type lister interface {
	List(ctx context.Context, path string, recursive bool) ([]provider.Entry, error)
}

func newCommand() *cobra.Command {
	var opts options

	cmd := &cobra.Command{
		Use:           "s3ls",
		Short:         "List paths (buckets with an optional key prefix) on AWS S3",
		Version:       "1.0.0",
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			logger := logging.New(os.Stderr, false, opts.debug)
			sess, err := provider.NewSession(cmd.Context(), provider.SessionOptions{
				Profile: opts.profile,
				Region:  opts.region,
				// a named profile always signs
				Anonymous: opts.anon && opts.profile == "",
				Logger:    logging.SDK(logger),
			})
			if err != nil {
				return err
			}
			return list(cmd.Context(), sess.NewS3Store(), opts, os.Stdout)
		},
	}

	f := cmd.Flags()
	f.StringVar(&opts.path, "path", defaultPath, "bucket/key to list")
	f.BoolVar(&opts.full, "full", false, "list with full key")
	f.BoolVar(&opts.recursive, "recursive", false, "list recursively")
	f.BoolVar(&opts.group, "group", false, "group keys by their first path segment (implies --recursive)")
	f.BoolVar(&opts.detail, "detail", false, "list with type and size")
	f.StringVar(&opts.profile, "profile", "", "AWS profile")
	f.BoolVar(&opts.anon, "anon", true, "send unsigned requests when no profile is given")
	f.StringVar(&opts.region, "region", "", "AWS region")
	f.BoolVar(&opts.debug, "debug", false, "log AWS SDK requests")

	return cmd
}

// list prints the listing of opts.path followed by its totals.
func list(ctx context.Context, store lister, opts options, out io.Writer) error {
	if opts.group {
		opts.recursive = true
	}

	entries, err := store.List(ctx, opts.path, opts.recursive)
	if err != nil {
		return err
	}

	if opts.group {
		for _, g := range engine.GroupBySegment(entries, opts.path) {
			fmt.Fprintf(out, "%s: %d keys, %s\n", g.Name, g.Count, engine.HumanSize(g.Bytes))
		}
	} else {
		for _, e := range entries {
			key := engine.RelativeKey(e, opts.path, opts.full)
			if opts.detail {
				fmt.Fprintln(out, strings.Join([]string{key, string(e.Type), strconv.FormatInt(e.Size, 10)}, "\t"))
				continue
			}
			fmt.Fprintln(out, key)
		}
	}

	totals := engine.Totals(entries)
	fmt.Fprintf(out, "Total keys: %d\n", totals.Keys)
	fmt.Fprintf(out, "Total size: %s\n", engine.HumanSize(totals.Bytes))
	return nil
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := newCommand().ExecuteContext(ctx); err != nil {
		switch {
		case errors.Is(err, errs.ErrNotFound):
			log.Errorf("path does not exist: %v", err)
		case errors.Is(err, errs.ErrAccessDenied):
			log.Errorf("access denied, check your credentials: %v", err)
		default:
			log.Error(err)
		}
		stop()
		os.Exit(255)
	}
}
