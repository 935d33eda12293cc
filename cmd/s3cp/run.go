package main

import (
	"context"
	"fmt"
	"io"
	"os"

	log "github.com/sirupsen/logrus"

	"github.com/franksops/s3xfer/config"
	"github.com/franksops/s3xfer/engine"
	"github.com/franksops/s3xfer/metrics"
	"github.com/franksops/s3xfer/provider"
	"github.com/franksops/s3xfer/store"
	"github.com/franksops/s3xfer/ui"
)

// app carries everything one s3cp invocation needs.
type app struct {
	cfg      *config.Config
	out      io.Writer
	log      *log.Logger
	local    *provider.LocalProvider
	newStore func() provider.ObjectStore

	tracker   *engine.JobTracker
	collector *metrics.Collector
	stats     engine.RunStats
}

func newApp(cfg *config.Config, out io.Writer, logger *log.Logger, newStore func() provider.ObjectStore) *app {
	return &app{
		cfg:      cfg,
		out:      out,
		log:      logger,
		local:    provider.NewLocalProvider(""),
		newStore: newStore,
	}
}

// round is one batch of jobs dispatched together.
type round struct {
	title string
	jobs  []engine.TransferJob
	size  int64
}

func (a *app) printf(format string, args ...any) {
	fmt.Fprintf(a.out, format, args...)
}

func (a *app) run(ctx context.Context) error {
	if a.cfg.Journal != "" && !a.cfg.DryRun {
		journal, err := store.NewBoltStore(a.cfg.Journal)
		if err != nil {
			return err
		}
		defer journal.Close()
		if !a.cfg.Resume {
			if err := journal.Reset(); err != nil {
				return err
			}
		}
		a.tracker = engine.NewJobTracker(journal, a.cfg.Resume)
	}

	if a.cfg.MetricsFile != "" && !a.cfg.DryRun {
		collector, err := metrics.NewCollector()
		if err != nil {
			return err
		}
		a.collector = collector
	}

	runErr := a.transfer(ctx)

	if a.collector != nil {
		if err := a.collector.WriteTextfile(a.cfg.MetricsFile); err != nil {
			a.log.WithError(err).Warn("could not write metrics")
		}
	}
	if runErr != nil {
		return runErr
	}

	a.stats.Print(a.out)
	return nil
}

// transfer plans and runs every round in turn. Upload sources are planned
// and dispatched one at a time.
func (a *app) transfer(ctx context.Context) error {
	switch {
	case a.cfg.Download:
		r, err := a.planDownload(ctx)
		if err != nil {
			return err
		}
		return a.dispatch(ctx, r)

	case a.cfg.Delete:
		r, err := a.planRemove()
		if err != nil {
			return err
		}
		return a.dispatch(ctx, r)

	case len(a.cfg.Sources) > 0:
		for _, src := range a.cfg.Sources {
			if len(a.cfg.Sources) > 1 {
				a.printf("Source %s\n", src)
			}
			r, err := a.planUpload(ctx, src)
			if err != nil {
				return err
			}
			if err := a.dispatch(ctx, r); err != nil {
				return err
			}
		}
		return nil
	}

	r, err := a.planOrder(ctx)
	if err != nil {
		return err
	}
	return a.dispatch(ctx, r)
}

func (a *app) planDownload(ctx context.Context) (*round, error) {
	var entries []provider.Entry
	if a.cfg.Order != "" {
		lines, err := engine.ReadOrderFile(a.cfg.Order, 1)
		if err != nil {
			return nil, err
		}
		for _, key := range engine.Sources(lines) {
			entries = append(entries, provider.Entry{Key: key, Type: provider.TypeFile})
		}
	} else {
		lister := a.newStore()
		for _, src := range a.cfg.Sources {
			found, err := lister.List(ctx, src, true)
			if err != nil {
				return nil, err
			}
			entries = append(entries, found...)
		}
	}

	jobs := engine.BuildDownloadJobs(entries, a.cfg.Basedir)
	r := &round{title: "get", jobs: jobs, size: engine.TotalSize(jobs)}
	a.printf("Files selected: %d\n", len(jobs))
	if a.cfg.Order == "" {
		a.printf("Size: %s\n", engine.HumanSize(r.size))
	}
	return r, nil
}

func (a *app) planRemove() (*round, error) {
	lines, err := engine.ReadOrderFile(a.cfg.Order, 1)
	if err != nil {
		return nil, err
	}
	jobs := engine.BuildRemoveJobs(engine.Sources(lines))
	a.printf("Files selected: %d\n", len(jobs))
	return &round{title: "remove", jobs: jobs}, nil
}

func (a *app) planUpload(ctx context.Context, src string) (*round, error) {
	walked, err := engine.NewWalker(a.local).Walk(ctx, src, a.cfg.EndsWith)
	if err != nil {
		return nil, err
	}
	if a.cfg.DryRun {
		for _, f := range walked.Files {
			a.printf("%s\n", f.Path)
		}
	}
	a.printf("Files selected: %d/%d\n", len(walked.Files), walked.Considered)
	a.printf("Size: %s\n", engine.HumanSize(walked.Bytes))

	tags := engine.RepeatTags(a.cfg.Tags.Map(), len(walked.Files))
	jobs, err := engine.BuildUploadJobs(walked.Files, src, engine.UploadRoot(a.cfg.Bucket, src), tags)
	if err != nil {
		return nil, err
	}
	return &round{title: "put " + src, jobs: jobs, size: walked.Bytes}, nil
}

func (a *app) planOrder(ctx context.Context) (*round, error) {
	lines, err := engine.ReadOrderFile(a.cfg.Order, 2)
	if err != nil {
		return nil, err
	}

	if a.cfg.Cloud {
		jobs, err := engine.BuildPairJobs(engine.OpCopy, lines, nil)
		if err != nil {
			return nil, err
		}
		a.printf("Files selected: %d\n", len(jobs))
		return &round{title: "copy", jobs: jobs}, nil
	}

	tags := engine.RepeatTags(a.cfg.Tags.Map(), len(lines))
	jobs, err := engine.BuildPairJobs(engine.OpUpload, lines, tags)
	if err != nil {
		return nil, err
	}
	size, err := engine.StatSources(ctx, a.local, jobs)
	if err != nil {
		return nil, err
	}
	a.printf("Files selected: %d\n", len(jobs))
	a.printf("Size: %s\n", engine.HumanSize(size))
	return &round{title: "put", jobs: jobs, size: size}, nil
}

// dispatch runs one round on the worker pool and folds it into the totals.
func (a *app) dispatch(ctx context.Context, r *round) error {
	if a.cfg.DryRun {
		a.stats.Files += len(r.jobs)
		a.stats.Bytes += r.size
		return nil
	}
	if len(r.jobs) == 0 {
		return nil
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	policy := engine.RetryPolicy{
		MaxAttempts: a.cfg.ContentType.Attempts,
		Delay:       a.cfg.ContentType.Delay,
	}
	factory := func(ctx context.Context, worker int) (engine.Handler, error) {
		return engine.NewTransfer(a.newStore(), a.local, policy, a.log.WithField("worker", worker)), nil
	}

	opts := []engine.Option{engine.WithWorkers(a.cfg.Workers)}
	if a.cfg.KeepGoing {
		opts = append(opts, engine.WithFailurePolicy(engine.ContinueOnError))
	}
	if a.tracker != nil {
		opts = append(opts, engine.WithTracker(a.tracker))
	}
	if a.collector != nil {
		opts = append(opts, engine.WithObserver(a.collector.Observe))
	}

	var display *ui.Display
	if a.cfg.Progress && ui.Enabled(os.Stdout) {
		state := ui.NewUIState(r.title, len(r.jobs), r.size, a.cfg.Workers)
		opts = append(opts, engine.WithObserver(state.Observe))
		display = ui.Start(state, os.Stdout, cancel)
	} else {
		opts = append(opts, engine.WithObserver(a.logResult))
	}

	result := engine.NewWorkerPool(factory, opts...).Run(ctx, r.jobs)
	if display != nil {
		display.Stop()
	}
	if a.collector != nil {
		a.collector.ObserveRound(result)
	}
	if result.JournalErr != nil {
		a.log.WithError(result.JournalErr).Warn("journal could not be updated")
	}

	a.stats.Add(result.Stats())
	if n := result.Count(engine.StatusResumed); n > 0 {
		a.log.Infof("%d job(s) already completed in the journal", n)
	}
	return a.report(result)
}

func (a *app) logResult(res engine.JobResult) {
	entry := a.log.WithFields(log.Fields{
		"op":     res.Job.Op,
		"worker": res.Worker,
		"status": res.Status,
	})
	switch res.Status {
	case engine.StatusDone:
		entry.WithFields(log.Fields{
			"bytes":    res.Bytes,
			"elapsed":  res.Elapsed,
			"checksum": engine.FormatChecksum(res.Checksum),
		}).Info(res.Job.Subject())
	case engine.StatusFailed:
		entry.WithError(res.Err).Debug(res.Job.Subject())
	default:
		entry.Debug(res.Job.Subject())
	}
}

// report prints the diagnostic of every failed job. Under the default
// policy there is at most one.
func (a *app) report(result *engine.RoundResult) error {
	failures := result.Failures()
	if len(failures) == 0 {
		if ctxErr := firstSkip(result); ctxErr != nil {
			return ctxErr
		}
		return nil
	}

	for _, f := range failures {
		a.printf("%s\n", diagnostic(f.Err))
		a.printf("Could not %s %s\n", f.Job.Op.Verb(), f.Job.Subject())
	}
	if a.cfg.KeepGoing {
		a.printf("%d of %d transfers failed\n", len(failures), len(result.Results))
		if a.tracker != nil {
			if recorded, err := a.tracker.Failed(); err == nil {
				a.log.Infof("journal %s records %d failed job(s)", a.cfg.Journal, len(recorded))
			}
		}
	}
	return errReported
}

// firstSkip returns the cancellation that stopped a round with no failures,
// e.g. an interrupt.
func firstSkip(result *engine.RoundResult) error {
	for _, res := range result.Results {
		if res.Status == engine.StatusSkipped {
			return res.Err
		}
	}
	return nil
}
