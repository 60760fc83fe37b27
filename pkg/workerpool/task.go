package workerpool

import (
	"github.com/smartindex/core/pkg/extractor"
)

// Priority orders task dispatch: the high queue is always drained before
// the normal queue (spec §4.5).
type Priority int

const (
	PriorityNormal Priority = iota
	PriorityHigh
)

// Task is one file to extract.
type Task struct {
	FilePath string
	Content  []byte
}

// Result is a completed (or failed) extraction.
type Result struct {
	FilePath string
	Extract  *extractor.PerFileResult
	Err      error
}

// Future is an always-respond handle to a submitted task's eventual
// Result: exactly one value is ever sent, whether the task succeeds,
// errors, or times out (spec §4.5). Callers that never read it leak
// nothing beyond the one buffered slot.
type Future struct {
	ch chan Result
}

func newFuture() *Future {
	return &Future{ch: make(chan Result, 1)}
}

func (f *Future) respond(r Result) {
	f.ch <- r
}

// Wait blocks until the result is available.
func (f *Future) Wait() Result {
	return <-f.ch
}

// Done returns the channel the result arrives on, for use in a select
// alongside other cases (e.g. a caller-side deadline or cancellation).
func (f *Future) Done() <-chan Result {
	return f.ch
}
