package checker

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel/attribute"
	"golang.org/x/sync/errgroup"

	"github.com/platinummonkey/somcheck/pkg/async"
	"github.com/platinummonkey/somcheck/pkg/instances"
	"github.com/platinummonkey/somcheck/pkg/observability"
	"github.com/platinummonkey/somcheck/pkg/progress"
	"github.com/platinummonkey/somcheck/pkg/schema"
	"github.com/platinummonkey/somcheck/pkg/storage"
	"github.com/platinummonkey/somcheck/pkg/validation"
)

// Exporter copies the issue database somewhere after a run.
type Exporter interface {
	Validate(ctx context.Context) error
	Export(ctx context.Context, src string) error
}

// Config tunes the scheduler.
type Config struct {
	// MaxImports bounds concurrent file imports.
	MaxImports int
	// Project tags every stored row when a Request names none.
	Project string
}

// DefaultConfig returns the default settings.
func DefaultConfig() Config {
	return Config{MaxImports: 3}
}

// Request selects the files of one run.
type Request struct {
	Files   []string `json:"files"`
	Project string   `json:"project,omitempty"`
}

// Scheduler runs check runs one at a time: files are imported in parallel
// and checked one by one on a serialized queue.
type Scheduler struct {
	validator *validation.Validator
	reader    instances.Reader
	store     storage.IssueWriter
	cfg       Config
	logger    logrus.FieldLogger
	metrics   *observability.Metrics
	sinks     []progress.Sink
	exporter  Exporter
	exportSrc string

	aborted atomic.Bool

	mu       sync.Mutex
	snapshot *schema.Snapshot
	state    State
	active   *run
	last     *Report
	progress *progress.Aggregator
}

// Option configures a Scheduler.
type Option func(*Scheduler)

// WithLogger sets the logger.
func WithLogger(logger logrus.FieldLogger) Option {
	return func(s *Scheduler) { s.logger = logger }
}

// WithMetrics records run metrics.
func WithMetrics(m *observability.Metrics) Option {
	return func(s *Scheduler) { s.metrics = m }
}

// WithSinks adds progress sinks to every run.
func WithSinks(sinks ...progress.Sink) Option {
	return func(s *Scheduler) { s.sinks = append(s.sinks, sinks...) }
}

// WithExporter exports the database file src after every completed run.
func WithExporter(e Exporter, src string) Option {
	return func(s *Scheduler) {
		s.exporter = e
		s.exportSrc = src
	}
}

// NewScheduler creates an idle scheduler.
func NewScheduler(snap *schema.Snapshot, v *validation.Validator, reader instances.Reader, store storage.IssueWriter, cfg Config, opts ...Option) (*Scheduler, error) {
	switch {
	case snap == nil:
		return nil, errors.New("schema snapshot is required")
	case v == nil:
		return nil, errors.New("validator is required")
	case reader == nil:
		return nil, errors.New("model reader is required")
	case store == nil:
		return nil, errors.New("issue store is required")
	}
	if cfg.MaxImports < 1 {
		cfg.MaxImports = DefaultConfig().MaxImports
	}
	s := &Scheduler{
		validator: v,
		reader:    reader,
		store:     store,
		cfg:       cfg,
		logger:    logrus.StandardLogger(),
		snapshot:  snap,
		state:     StateIdle,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

type run struct {
	report   *Report // guarded by Scheduler.mu
	files    []string
	project  string
	snapshot *schema.Snapshot
	agg      *progress.Aggregator
	logger   logrus.FieldLogger
	done     chan struct{}
}

// Run executes a run and returns its report. It fails only when the run
// cannot start; per-file failures are listed in the report.
func (s *Scheduler) Run(ctx context.Context, req Request) (*Report, error) {
	r, err := s.begin(ctx, req)
	if err != nil {
		return nil, err
	}
	return s.execute(ctx, r), nil
}

// Start begins a run in the background and returns its id. The run outlives
// ctx's cancellation; use Abort to stop it.
func (s *Scheduler) Start(ctx context.Context, req Request) (string, error) {
	r, err := s.begin(ctx, req)
	if err != nil {
		return "", err
	}
	async.SafeGo(context.WithoutCancel(ctx), s.logger, 0, "check run", func(ctx context.Context) error {
		report := s.execute(ctx, r)
		if n := len(report.Failures); n > 0 {
			return fmt.Errorf("check run %s finished with %d failure(s)", report.ID, n)
		}
		return nil
	})
	return r.report.ID, nil
}

func (s *Scheduler) begin(ctx context.Context, req Request) (*run, error) {
	if len(req.Files) == 0 {
		return nil, errors.New("no files to check")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state.Busy() {
		return nil, ErrRunInProgress
	}
	if s.exporter != nil {
		if err := s.exporter.Validate(ctx); err != nil {
			return nil, RunFailure{Phase: PhaseExport, Err: err.Error()}
		}
	}

	project := req.Project
	if project == "" {
		project = s.cfg.Project
	}
	report := &Report{
		ID:      uuid.New().String(),
		Project: project,
		State:   StateImporting,
		Started: time.Now(),
		Files:   make([]FileResult, len(req.Files)),
	}
	for i, f := range req.Files {
		report.Files[i] = FileResult{File: f, Status: FilePending}
	}

	logger := s.logger.WithFields(logrus.Fields{"run_id": report.ID, "project": project})
	r := &run{
		report:   report,
		files:    append([]string(nil), req.Files...),
		project:  project,
		snapshot: s.snapshot,
		agg:      progress.NewAggregator(logger, s.sinks...),
		logger:   logger,
		done:     make(chan struct{}),
	}
	r.agg.Start(context.WithoutCancel(ctx))

	s.aborted.Store(false)
	s.state = StateImporting
	s.active = r
	s.progress = r.agg
	s.metrics.RunStarted()
	return r, nil
}

func (s *Scheduler) execute(ctx context.Context, r *run) *Report {
	defer close(r.done)
	ctx, span := observability.StartSpan(ctx, "checker.run",
		attribute.String("run.id", r.report.ID),
		attribute.String("run.project", r.project),
		attribute.Int("run.files", len(r.files)))
	defer span.End()
	r.logger = observability.WithTraceContext(ctx, r.logger)

	// a cancelled caller is an abort; committed files stay
	stop := context.AfterFunc(ctx, func() { s.Abort() })
	defer stop()

	r.logger.WithField("files", len(r.files)).Info("check run started")
	r.agg.Begin(progress.PhaseImporting, len(r.files), "importing files")
	r.agg.Begin(progress.PhaseChecking, len(r.files), "waiting for imports")

	// the queue never drops a submitted file; skipped checks observe the abort flag
	queue := async.NewWorkerPool(context.WithoutCancel(ctx), 1, "checks",
		async.WithLogger(r.logger),
		async.WithQueueSize(len(r.files)))

	var g errgroup.Group
	g.SetLimit(s.cfg.MaxImports)
	for i, path := range r.files {
		g.Go(func() error {
			f, ok := s.importFile(ctx, r, i, path)
			if !ok {
				r.agg.Report(progress.Update{Phase: progress.PhaseChecking, File: path, Done: true})
				return nil
			}
			if err := queue.Submit(func(qctx context.Context) error {
				return s.checkFile(qctx, r, i, f)
			}); err != nil {
				s.fail(r, i, PhaseCheck, err)
			}
			return nil
		})
	}
	_ = g.Wait()

	s.mu.Lock()
	if !s.aborted.Load() {
		s.state = StateChecking
		r.report.State = StateChecking
	}
	s.mu.Unlock()
	r.agg.Report(progress.Update{Phase: progress.PhaseImporting, Status: "imports finished"})

	if err := queue.Shutdown(0); err != nil {
		r.logger.WithError(err).Warn("check queue did not drain")
	}

	final := StateIdle
	if s.aborted.Load() || ctx.Err() != nil {
		final = StateAborted
	} else if s.exporter != nil {
		s.export(ctx, r)
	}

	return s.finish(r, final)
}

func (s *Scheduler) finish(r *run, final State) *Report {
	phase, status := progress.PhaseDone, "check run finished"
	if final == StateAborted {
		phase, status = progress.PhaseAborted, "check run aborted"
	}
	r.agg.Finish(phase, status)
	r.agg.Close()

	s.mu.Lock()
	r.report.State = final
	r.report.Finished = time.Now()
	r.report.Duration = r.report.Finished.Sub(r.report.Started)
	report := r.report.clone()
	s.last = report
	s.active = nil
	s.state = final
	s.mu.Unlock()

	s.metrics.RunFinished(final.String(), report.Duration)
	r.logger.WithFields(logrus.Fields{
		"state":    final.String(),
		"issues":   report.IssueCount(),
		"failures": len(report.Failures),
		"duration": report.Duration.String(),
	}).Info("check run finished")
	return report
}

func (s *Scheduler) export(ctx context.Context, r *run) {
	start := time.Now()
	ctx, span := observability.StartSpan(ctx, "checker.export")
	err := s.exporter.Export(ctx, s.exportSrc)
	observability.EndSpan(span, err)
	if err != nil {
		s.fail(r, -1, PhaseExport, err)
		s.metrics.ObserveFile(PhaseExport, "failed", time.Since(start))
		return
	}
	s.metrics.ObserveFile(PhaseExport, "ok", time.Since(start))
}

// fail records a RunFailure; i is the file index or -1.
func (s *Scheduler) fail(r *run, i int, phase string, err error) {
	file := ""
	if i >= 0 {
		file = r.files[i]
	}
	s.mu.Lock()
	r.report.Failures = append(r.report.Failures, RunFailure{File: file, Phase: phase, Err: err.Error()})
	if i >= 0 {
		r.report.Files[i].Status = FileFailed
	}
	s.mu.Unlock()

	r.logger.WithError(err).WithFields(logrus.Fields{"file": file, "phase": phase}).Error("check task failed")
	p := progress.PhaseChecking
	if phase == PhaseImport {
		p = progress.PhaseImporting
	}
	r.agg.Report(progress.Update{Phase: p, File: file, Done: file != "", Status: RunFailure{File: file, Phase: phase, Err: err.Error()}.Error()})
}

func (s *Scheduler) setFile(r *run, i int, fn func(*FileResult)) {
	s.mu.Lock()
	fn(&r.report.Files[i])
	s.mu.Unlock()
}

// Abort asks the active run to stop at the next file or instance boundary.
// It reports whether a run was active.
func (s *Scheduler) Abort() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.state.Busy() {
		return false
	}
	if !s.aborted.Swap(true) {
		s.logger.Info("abort requested")
	}
	return true
}

// Wait blocks until the active run, if any, has finished.
func (s *Scheduler) Wait(ctx context.Context) error {
	s.mu.Lock()
	r := s.active
	s.mu.Unlock()
	if r == nil {
		return nil
	}
	select {
	case <-r.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// State returns the scheduler state.
func (s *Scheduler) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Current returns a copy of the active run's report, or the last finished
// one. ok is false before the first run.
func (s *Scheduler) Current() (*Report, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.active != nil {
		r := s.active.report.clone()
		r.State = s.state
		return r, true
	}
	if s.last != nil {
		return s.last.clone(), true
	}
	return nil, false
}

// Progress returns the overall progress and the per-phase snapshots of the
// active or last run.
func (s *Scheduler) Progress() (progress.Snapshot, map[progress.Phase]progress.Snapshot) {
	s.mu.Lock()
	agg := s.progress
	s.mu.Unlock()
	if agg == nil {
		return progress.Snapshot{Phase: progress.PhaseIdle}, nil
	}
	phases := map[progress.Phase]progress.Snapshot{}
	for _, p := range []progress.Phase{progress.PhaseImporting, progress.PhaseChecking} {
		if snap, ok := agg.Phase(p); ok {
			phases[p] = snap
		}
	}
	return agg.Current(), phases
}

// SetSchema replaces the snapshot used by later runs.
func (s *Scheduler) SetSchema(snap *schema.Snapshot) error {
	if snap == nil {
		return errors.New("schema snapshot is required")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state.Busy() {
		return ErrRunInProgress
	}
	s.snapshot = snap
	return nil
}

// Schema returns the snapshot used by the next run.
func (s *Scheduler) Schema() *schema.Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snapshot
}

// Close aborts an active run and waits for it.
func (s *Scheduler) Close(ctx context.Context) error {
	s.Abort()
	return s.Wait(ctx)
}
