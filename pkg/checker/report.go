package checker

import (
	"errors"
	"fmt"
	"time"

	"github.com/platinummonkey/somcheck/pkg/storage"
)

// ErrRunInProgress is returned when a run is requested while one is active.
var ErrRunInProgress = errors.New("a check run is already in progress")

// errAborted stops a file's check before its results are written.
var errAborted = errors.New("run aborted")

// State of the scheduler.
type State int

const (
	StateIdle State = iota
	StateImporting
	StateChecking
	StateAborted
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateImporting:
		return "importing"
	case StateChecking:
		return "checking"
	case StateAborted:
		return "aborted"
	}
	return fmt.Sprintf("state(%d)", int(s))
}

// Busy reports whether a run is active.
func (s State) Busy() bool { return s == StateImporting || s == StateChecking }

// MarshalText renders the state name in JSON.
func (s State) MarshalText() ([]byte, error) { return []byte(s.String()), nil }

// UnmarshalText parses a state name.
func (s *State) UnmarshalText(text []byte) error {
	for st := StateIdle; st <= StateAborted; st++ {
		if st.String() == string(text) {
			*s = st
			return nil
		}
	}
	return fmt.Errorf("unknown state %q", text)
}

// Phase names where a RunFailure happened.
const (
	PhaseImport = "import"
	PhaseCheck  = "check"
	PhaseStore  = "store"
	PhaseExport = "export"
)

// RunFailure is a per-file failure. It ends that file's task only.
type RunFailure struct {
	File  string `json:"file,omitempty"`
	Phase string `json:"phase"`
	Err   string `json:"error"`
}

func (f RunFailure) Error() string {
	if f.File == "" {
		return fmt.Sprintf("%s: %s", f.Phase, f.Err)
	}
	return fmt.Sprintf("%s %s: %s", f.Phase, f.File, f.Err)
}

// FileStatus is the outcome of one file.
type FileStatus string

const (
	FilePending FileStatus = "pending"
	FileChecked FileStatus = "checked"
	FileFailed  FileStatus = "failed"
	FileAborted FileStatus = "aborted"
)

// FileResult is what a run did with one file.
type FileResult struct {
	File      string             `json:"file"`
	Status    FileStatus         `json:"status"`
	Instances int                `json:"instances"`
	Skipped   int                `json:"skipped_instances"`
	Issues    int                `json:"issues"`
	Stored    storage.WriteStats `json:"stored"`
}

// Report describes one run.
type Report struct {
	ID       string        `json:"id"`
	Project  string        `json:"project"`
	State    State         `json:"state"`
	Started  time.Time     `json:"started"`
	Finished time.Time     `json:"finished,omitempty"`
	Files    []FileResult  `json:"files"`
	Failures []RunFailure  `json:"failures,omitempty"`
	Duration time.Duration `json:"duration_ns,omitempty"`
}

// Aborted reports whether the run ended through Abort.
func (r *Report) Aborted() bool { return r.State == StateAborted }

// IssueCount sums the issues of all checked files.
func (r *Report) IssueCount() int {
	n := 0
	for _, f := range r.Files {
		n += f.Issues
	}
	return n
}

func (r *Report) clone() *Report {
	c := *r
	c.Files = append([]FileResult(nil), r.Files...)
	c.Failures = append([]RunFailure(nil), r.Failures...)
	return &c
}
