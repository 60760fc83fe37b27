package workerpool

import (
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/smartindex/core/pkg/idxerrors"
	"github.com/smartindex/core/pkg/parser"
	"github.com/smartindex/core/pkg/parser/queries"
)

func newDiscardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestPool(t *testing.T, cfg Config) *Pool {
	t.Helper()
	pm := parser.NewParserManager(nil)
	qm := queries.NewQueryManager(pm, nil)
	p := New(cfg, pm, qm, nil)
	t.Cleanup(p.Stop)
	return p
}

func writeTempFile(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "sample.ts")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestSubmitAndExtract(t *testing.T) {
	p := newTestPool(t, Config{NumWorkers: 2})
	path := writeTempFile(t, `function greet(name: string) { return name; }`)

	future := p.Submit(Task{FilePath: path}, PriorityNormal)
	res := future.Wait()

	require.NoError(t, res.Err)
	require.NotNil(t, res.Extract)
	assert.NotEmpty(t, res.Extract.Symbols)
}

func TestSubmitWithInlineContent(t *testing.T) {
	p := newTestPool(t, Config{NumWorkers: 1})
	future := p.Submit(Task{FilePath: "inline.ts", Content: []byte(`const x = 1;`)}, PriorityNormal)
	res := future.Wait()
	require.NoError(t, res.Err)
	require.NotNil(t, res.Extract)
}

func TestHighPriorityDrainedFirst(t *testing.T) {
	// Build a pool with no running workers so both queues can be filled
	// before anything dequeues, making the drain order deterministic.
	p := &Pool{
		cfg:         Config{TaskTimeout: DefaultTaskTimeout},
		logger:      newDiscardLogger(),
		highQueue:   make(chan *queuedTask, 4),
		normalQueue: make(chan *queuedTask, 4),
		ctx:         make(chan struct{}),
	}

	normalFuture := newFuture()
	highFuture := newFuture()
	p.normalQueue <- &queuedTask{task: Task{FilePath: "normal"}, priority: PriorityNormal, future: normalFuture}
	p.highQueue <- &queuedTask{task: Task{FilePath: "high"}, priority: PriorityHigh, future: highFuture}

	qt, ok := p.dequeue()
	require.True(t, ok)
	assert.Equal(t, "high", qt.task.FilePath)

	qt, ok = p.dequeue()
	require.True(t, ok)
	assert.Equal(t, "normal", qt.task.FilePath)
}

func TestReadErrorRespondsWithError(t *testing.T) {
	p := newTestPool(t, Config{NumWorkers: 1})
	future := p.Submit(Task{FilePath: "/nonexistent/does-not-exist.ts"}, PriorityNormal)
	res := future.Wait()
	assert.Error(t, res.Err)
}

func TestValidateReconcilesCounter(t *testing.T) {
	p := newTestPool(t, Config{NumWorkers: 2})
	future := p.Submit(Task{FilePath: "v.ts", Content: []byte(`const x = 1;`)}, PriorityNormal)
	future.Wait()

	// Give the worker loop a moment to decrement inFlight after responding.
	time.Sleep(10 * time.Millisecond)

	expected, actual, ok := p.Validate()
	assert.True(t, ok, "expected=%d actual=%d", expected, actual)
	assert.Equal(t, int64(0), actual)
}

func TestForceReset(t *testing.T) {
	p := newTestPool(t, Config{NumWorkers: 1})
	p.ForceReset(5)
	_, actual, _ := p.Validate()
	assert.Equal(t, int64(5), actual)
	p.ForceReset(0)
}

func TestTaskTimeoutReplacesWorker(t *testing.T) {
	p := newTestPool(t, Config{NumWorkers: 1, TaskTimeout: time.Nanosecond})
	future := p.Submit(Task{FilePath: "slow.ts", Content: []byte(`const x = 1;`)}, PriorityNormal)
	res := future.Wait()

	require.Error(t, res.Err)
	assert.ErrorIs(t, res.Err, idxerrors.WorkerTimeout.Sentinel())

	// The replacement worker spawned after the timeout picks up and answers
	// the next task; under the same 1ns limit that task times out as well
	// (with no replacement worker, Wait would never return).
	follow := p.Submit(Task{FilePath: "after.ts", Content: []byte(`const y = 2;`)}, PriorityNormal)
	followRes := follow.Wait()
	assert.ErrorIs(t, followRes.Err, idxerrors.WorkerTimeout.Sentinel())
}

func TestSubmitAfterStopRespondsWithError(t *testing.T) {
	p := newTestPool(t, Config{NumWorkers: 1})
	p.Stop()
	future := p.Submit(Task{FilePath: "late.ts"}, PriorityNormal)
	res := future.Wait()
	assert.Error(t, res.Err)
}
