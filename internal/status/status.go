// Package status resolves per-file branch statuses in the background and
// keeps them in a cache read by the view.
package status

import (
	"context"
	"path/filepath"
	"strings"
)

// FileID identifies a file for the lifetime of a session. It is a cleaned
// absolute path.
type FileID string

// NewFileID cleans path and makes it absolute when possible.
func NewFileID(path string) FileID {
	if abs, err := filepath.Abs(path); err == nil {
		path = abs
	}
	return FileID(filepath.Clean(path))
}

func (f FileID) String() string { return string(f) }

// Owner identifies the session a request was scheduled for.
type Owner string

// Request is queued once per admitted file and dropped after processing.
type Request struct {
	Owner Owner
	File  FileID
}

// Status is the resolved branch of a file. The zero value is Empty: resolved,
// but not on any branch. A cache miss is "not resolved yet", which is
// different.
type Status struct {
	branch string
}

// Empty is a resolved status without a branch.
var Empty = Status{}

// NewStatus returns Empty for a blank name.
func NewStatus(branch string) Status {
	return Status{branch: strings.TrimSpace(branch)}
}

// Branch returns the branch name and whether there is one.
func (s Status) Branch() (string, bool) {
	return s.branch, s.branch != ""
}

func (s Status) IsEmpty() bool { return s.branch == "" }

func (s Status) String() string {
	if s.branch == "" {
		return "(none)"
	}
	return s.branch
}

// Oracle answers which branch a file is on. Calls may block for a long time
// and are only ever made from the engine's worker.
type Oracle interface {
	Resolve(ctx context.Context, owner Owner, file FileID) (Status, error)
}

// OracleFunc adapts a function to Oracle.
type OracleFunc func(ctx context.Context, owner Owner, file FileID) (Status, error)

func (f OracleFunc) Resolve(ctx context.Context, owner Owner, file FileID) (Status, error) {
	return f(ctx, owner, file)
}

// Sink receives "cached data changed, redraw" notifications. Implementations
// must not block the caller for long.
type Sink interface {
	Refresh()
}

// SinkFunc adapts a function to Sink.
type SinkFunc func()

func (f SinkFunc) Refresh() { f() }

// Executor runs a drain task in the background.
type Executor func(task func())

// GoExecutor runs each task on a new goroutine.
func GoExecutor(task func()) { go task() }
