package progress

import (
	"context"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
)

// Phase is a stage of a check run.
type Phase string

const (
	PhaseIdle      Phase = "idle"
	PhaseImporting Phase = "importing"
	PhaseChecking  Phase = "checking"
	PhaseDone      Phase = "done"
	PhaseAborted   Phase = "aborted"
)

// Update is what a task reports. Percent is the task's own progress; Done
// marks the task as finished regardless of Percent.
type Update struct {
	Phase   Phase
	File    string
	Status  string
	Percent int
	Done    bool

	// Total starts Phase with this many tasks and resets its counters.
	Total int
}

// Snapshot is the aggregated progress of the current phase.
type Snapshot struct {
	Phase     Phase     `json:"phase"`
	Percent   int       `json:"percent"`
	Status    string    `json:"status"`
	File      string    `json:"file,omitempty"`
	Completed int       `json:"completed"`
	Total     int       `json:"total"`
	Time      time.Time `json:"time"`
}

// Sink receives every snapshot the aggregator produces.
type Sink interface {
	Publish(ctx context.Context, s Snapshot) error
}

// Aggregator folds task updates from a channel into phase snapshots. Phases
// are tracked independently so import and check tasks may overlap. The
// consuming goroutine is the only writer of the progress state.
type Aggregator struct {
	updates chan Update
	sinks   []Sink
	logger  logrus.FieldLogger
	now     func() time.Time

	// owned by the consuming goroutine
	phases map[Phase]*phaseState

	mu      sync.RWMutex
	current Snapshot
	byPhase map[Phase]Snapshot

	wg   sync.WaitGroup
	once sync.Once
}

// NewAggregator creates an aggregator with a buffered update channel.
func NewAggregator(logger logrus.FieldLogger, sinks ...Sink) *Aggregator {
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	return &Aggregator{
		updates: make(chan Update, 64),
		sinks:   sinks,
		logger:  logger,
		now:     time.Now,
		phases:  make(map[Phase]*phaseState),
		byPhase: make(map[Phase]Snapshot),
		current: Snapshot{Phase: PhaseIdle},
	}
}

// Start consumes updates until Close. Sinks get ctx.
func (a *Aggregator) Start(ctx context.Context) {
	a.wg.Add(1)
	go func() {
		defer a.wg.Done()
		for u := range a.updates {
			a.apply(ctx, u)
		}
	}()
}

// Report queues an update. It must not be called after Close.
func (a *Aggregator) Report(u Update) {
	a.updates <- u
}

// Begin starts a phase with total tasks.
func (a *Aggregator) Begin(phase Phase, total int, status string) {
	if total <= 0 {
		total = 1
	}
	a.Report(Update{Phase: phase, Total: total, Status: status})
}

// Finish reports a terminal phase.
func (a *Aggregator) Finish(phase Phase, status string) {
	a.Report(Update{Phase: phase, Total: 1, Done: true, Status: status})
}

// Close stops accepting updates and waits for the queue to drain.
func (a *Aggregator) Close() {
	a.once.Do(func() { close(a.updates) })
	a.wg.Wait()
}

// Current returns the latest snapshot.
func (a *Aggregator) Current() Snapshot {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.current
}

// Phase returns the latest snapshot of phase p.
func (a *Aggregator) Phase(p Phase) (Snapshot, bool) {
	a.mu.RLock()
	defer a.mu.RUnlock()
	s, ok := a.byPhase[p]
	return s, ok
}

type phaseState struct {
	total   int
	percent map[string]int
	done    map[string]bool
}

func (a *Aggregator) phase(p Phase) *phaseState {
	ps, ok := a.phases[p]
	if !ok {
		ps = &phaseState{percent: make(map[string]int), done: make(map[string]bool)}
		a.phases[p] = ps
	}
	return ps
}

func (a *Aggregator) apply(ctx context.Context, u Update) {
	ps := a.phase(u.Phase)
	if u.Total > 0 {
		ps.total = u.Total
		clear(ps.percent)
		clear(ps.done)
	}
	if u.File != "" {
		p := min(max(u.Percent, 0), 100)
		if u.Done {
			p = 100
			ps.done[u.File] = true
		}
		if p > ps.percent[u.File] {
			ps.percent[u.File] = p
		}
	}

	sum := 0
	for _, p := range ps.percent {
		sum += p
	}
	percent := 0
	if ps.total > 0 {
		percent = min(sum/ps.total, 100)
	}
	if u.Total > 0 && u.Done {
		percent = 100
	}

	a.mu.Lock()
	status := u.Status
	if status == "" {
		status = a.current.Status
	}
	a.current = Snapshot{
		Phase:     u.Phase,
		Percent:   percent,
		Status:    status,
		File:      u.File,
		Completed: len(ps.done),
		Total:     ps.total,
		Time:      a.now(),
	}
	a.byPhase[u.Phase] = a.current
	snap := a.current
	a.mu.Unlock()

	for _, s := range a.sinks {
		if err := s.Publish(ctx, snap); err != nil {
			a.logger.WithError(err).Warn("progress sink failed")
		}
	}
}
