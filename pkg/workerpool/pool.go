// Package workerpool generalizes the teacher's channel-based file-processing
// pool (gnana997-uispec/pkg/indexer/worker_pool.go) into the full contract
// spec §4.5 describes for the symbol index: priority-ordered dispatch,
// always-respond futures, a per-task timeout that abandons the stuck
// goroutine and replaces the owning worker, and a debug
// counter-reconciliation hook.
package workerpool

import (
	"fmt"
	"log/slog"
	"os"
	"runtime"
	"sync"
	"sync/atomic"
	"time"

	"github.com/smartindex/core/pkg/extractor"
	"github.com/smartindex/core/pkg/idxerrors"
	"github.com/smartindex/core/pkg/interner"
	"github.com/smartindex/core/pkg/parser"
	"github.com/smartindex/core/pkg/parser/queries"
	"github.com/smartindex/core/pkg/util"
)

// DefaultTaskTimeout is the per-task deadline after which the owning
// worker is considered stuck and replaced (spec §4.5).
const DefaultTaskTimeout = 60 * time.Second

// Config configures a Pool.
type Config struct {
	// NumWorkers overrides the worker count. Zero selects
	// max(1, runtime.NumCPU()-1), the spec's default (one core reserved
	// for the editor/LSP process this indexer runs alongside).
	NumWorkers int
	// TaskTimeout overrides DefaultTaskTimeout.
	TaskTimeout time.Duration
	// QueueCapacity sizes the buffered high/normal job channels.
	QueueCapacity int
	// FileCache, if set, backs file reads with mmap'd pages (SPEC_FULL.md
	// §9's "file content access" note) instead of a fresh os.ReadFile per
	// task. Nil falls back to os.ReadFile, matching prior behavior.
	FileCache util.FileCache
}

// Pool is a fixed-size worker pool with two priority lanes. Safe for
// concurrent Submit calls from multiple goroutines.
type Pool struct {
	cfg    Config
	logger *slog.Logger

	parserManager *parser.ParserManager
	queryManager  *queries.QueryManager

	highQueue   chan *queuedTask
	normalQueue chan *queuedTask

	counter    atomic.Int64 // queued + inFlight
	inFlight   atomic.Int64
	processed  atomic.Int64
	failed     atomic.Int64
	timedOut   atomic.Int64

	fileCache util.FileCache

	mu           sync.Mutex
	nextWorkerID int
	liveWorkers  int

	ctx    chan struct{} // closed on Stop
	closed atomic.Bool
	wg     sync.WaitGroup
}

type queuedTask struct {
	task     Task
	priority Priority
	future   *Future
}

// New constructs and starts a Pool.
func New(cfg Config, pm *parser.ParserManager, qm *queries.QueryManager, logger *slog.Logger) *Pool {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.NumWorkers <= 0 {
		cfg.NumWorkers = max(1, runtime.NumCPU()-1)
	}
	if cfg.TaskTimeout <= 0 {
		cfg.TaskTimeout = DefaultTaskTimeout
	}
	if cfg.QueueCapacity <= 0 {
		cfg.QueueCapacity = cfg.NumWorkers * 4
	}

	p := &Pool{
		cfg:           cfg,
		logger:        logger,
		parserManager: pm,
		queryManager:  qm,
		fileCache:     cfg.FileCache,
		highQueue:     make(chan *queuedTask, cfg.QueueCapacity),
		normalQueue:   make(chan *queuedTask, cfg.QueueCapacity),
		ctx:           make(chan struct{}),
	}

	for i := 0; i < cfg.NumWorkers; i++ {
		p.spawnWorker()
	}
	return p
}

// Submit enqueues a task at the given priority and returns its future
// immediately. Submit never blocks on extraction completing.
func (p *Pool) Submit(task Task, priority Priority) *Future {
	future := newFuture()
	if p.closed.Load() {
		future.respond(Result{FilePath: task.FilePath, Err: idxerrors.New(idxerrors.WorkerCrash, "submit", task.FilePath, fmt.Errorf("pool stopped"))})
		return future
	}

	p.counter.Add(1)
	qt := &queuedTask{task: task, priority: priority, future: future}

	queue := p.normalQueue
	if priority == PriorityHigh {
		queue = p.highQueue
	}
	select {
	case queue <- qt:
	case <-p.ctx:
		p.counter.Add(-1)
		future.respond(Result{FilePath: task.FilePath, Err: idxerrors.New(idxerrors.WorkerCrash, "submit", task.FilePath, fmt.Errorf("pool stopped"))})
	}
	return future
}

// spawnWorker starts one worker supervisor goroutine and registers it.
func (p *Pool) spawnWorker() {
	p.mu.Lock()
	id := p.nextWorkerID
	p.nextWorkerID++
	p.liveWorkers++
	p.mu.Unlock()

	p.wg.Add(1)
	go p.superviseWorker(id)
}

// superviseWorker owns one worker's lifetime. On a task timeout it
// abandons the goroutine currently running the stuck extraction (Go has
// no goroutine-kill primitive; the abandoned goroutine is left to exit on
// its own next blocking point) and returns after spawning its own
// replacement, satisfying spec §4.5's "offending worker is replaced".
func (p *Pool) superviseWorker(id int) {
	defer p.wg.Done()
	defer func() {
		p.mu.Lock()
		p.liveWorkers--
		p.mu.Unlock()
	}()

	in := interner.New()
	ex := extractor.NewExtractor(p.parserManager, p.queryManager, in, p.logger)

	for {
		qt, ok := p.dequeue()
		if !ok {
			return
		}

		p.inFlight.Add(1)
		timedOut := p.runWithTimeout(id, ex, qt)
		p.inFlight.Add(-1)
		p.counter.Add(-1)

		if timedOut {
			p.timedOut.Add(1)
			p.logger.Warn("worker task timed out, replacing worker", "worker_id", id, "file", qt.task.FilePath, "timeout", p.cfg.TaskTimeout)
			p.spawnWorker()
			return
		}
	}
}

// dequeue pulls from the high-priority queue first, falling back to
// normal priority, and observes pool shutdown.
func (p *Pool) dequeue() (*queuedTask, bool) {
	select {
	case qt := <-p.highQueue:
		return qt, true
	case <-p.ctx:
		return nil, false
	default:
	}

	select {
	case qt := <-p.highQueue:
		return qt, true
	case qt := <-p.normalQueue:
		return qt, true
	case <-p.ctx:
		return nil, false
	}
}

// runWithTimeout runs one extraction to completion or until the pool's
// task timeout elapses, whichever comes first. Returns true if the
// timeout fired.
func (p *Pool) runWithTimeout(workerID int, ex *extractor.Extractor, qt *queuedTask) (timedOut bool) {
	done := make(chan Result, 1)
	go func() {
		content := qt.task.Content
		var err error
		if content == nil {
			if p.fileCache != nil {
				var mf *util.MappedFile
				mf, err = p.fileCache.Get(qt.task.FilePath)
				if err == nil {
					content = []byte(mf.Data)
				}
			} else {
				content, err = os.ReadFile(qt.task.FilePath)
			}
		}
		if err != nil {
			done <- Result{FilePath: qt.task.FilePath, Err: idxerrors.New(idxerrors.IOFailure, "readFile", qt.task.FilePath, err)}
			return
		}
		extracted, err := ex.ExtractFile(qt.task.FilePath, content)
		if err != nil {
			done <- Result{FilePath: qt.task.FilePath, Err: idxerrors.New(idxerrors.ParseFailure, "extractFile", qt.task.FilePath, err)}
			return
		}
		done <- Result{FilePath: qt.task.FilePath, Extract: extracted}
	}()

	select {
	case res := <-done:
		if res.Err != nil {
			p.failed.Add(1)
		} else {
			p.processed.Add(1)
		}
		qt.future.respond(res)
		return false
	case <-time.After(p.cfg.TaskTimeout):
		p.failed.Add(1)
		qt.future.respond(Result{
			FilePath: qt.task.FilePath,
			Err:      idxerrors.New(idxerrors.WorkerTimeout, "extractFile", qt.task.FilePath, fmt.Errorf("exceeded %s", p.cfg.TaskTimeout)),
		})
		return true
	}
}

// Stop stops accepting new work and waits for in-flight tasks to either
// finish or hit their timeout. Idempotent.
func (p *Pool) Stop() {
	if !p.closed.CompareAndSwap(false, true) {
		return
	}
	close(p.ctx)
	p.wg.Wait()
}

// Stats summarizes pool activity for logging/diagnostics.
type Stats struct {
	LiveWorkers int
	Queued      int64
	InFlight    int64
	Processed   int64
	Failed      int64
	TimedOut    int64
	Counter     int64
}

func (p *Pool) Stats() Stats {
	p.mu.Lock()
	live := p.liveWorkers
	p.mu.Unlock()
	return Stats{
		LiveWorkers: live,
		Queued:      int64(len(p.highQueue) + len(p.normalQueue)),
		InFlight:    p.inFlight.Load(),
		Processed:   p.processed.Load(),
		Failed:      p.failed.Load(),
		TimedOut:    p.timedOut.Load(),
		Counter:     p.counter.Load(),
	}
}

// Validate recomputes the active-task counter from queued+inFlight and
// reports whether it matched the tracked atomic counter (spec §4.5 debug
// hook). It is intended for tests and post-bulk-run sanity checks, not
// the hot path.
func (p *Pool) Validate() (expected int64, actual int64, ok bool) {
	expected = int64(len(p.highQueue)+len(p.normalQueue)) + p.inFlight.Load()
	actual = p.counter.Load()
	return expected, actual, expected == actual
}

// ForceReset overwrites the active-task counter, for recovering from a
// reconciliation mismatch after a bulk-indexing run where callers know no
// tasks are outstanding.
func (p *Pool) ForceReset(value int64) {
	p.counter.Store(value)
}
