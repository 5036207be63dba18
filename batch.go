// Copyright 2018 Saferwall. All rights reserved.
// Use of this source code is governed by Apache v2 license
// license that can be found in the LICENSE file.

package assetpatch

import (
	"context"
	"os"
	"runtime"
	"sync"
	"sync/atomic"

	"golang.org/x/sync/semaphore"

	"github.com/saferwall/assetpatch/internal/log"
	"github.com/saferwall/assetpatch/internal/rwrecur"
)

// PatchCallback is invoked per file on completion, with the file's source
// and destination paths.
type PatchCallback func(src, dst string)

// Patcher is the batch driver: it schedules one patch task per file in
// the Context's file-rename map across a bounded worker pool, tracks
// per-file results, and supports cooperative cancellation. A Patcher is
// reusable: SetContext and PatchAsync may be called again once a previous
// batch has drained.
type Patcher struct {
	logger     *log.Helper
	baseLogger log.Logger
	opts       *Options

	// Workers bounds how many file patches run at once; zero selects
	// the host's CPU count.
	Workers int

	ctx *Context
	db  *Database

	cancelled atomic.Bool
	patching  atomic.Bool

	mu      sync.Mutex
	status  PatchResult
	errored map[string]PatchResult
	patched map[string]string

	task chan struct{}
}

// NewPatcher returns a Patcher with no context set.
func NewPatcher(opts *Options) *Patcher {
	if opts == nil {
		opts = &Options{}
	}
	logger := opts.Logger
	if logger == nil {
		logger = log.NewFilter(log.NewStdLogger(os.Stdout),
			log.FilterLevel(log.LevelError))
	}
	return &Patcher{
		logger:     log.NewHelper(logger),
		baseLogger: logger,
		opts:       opts,
		status:     ResultNotStarted,
		errored:    map[string]PatchResult{},
		patched:    map[string]string{},
	}
}

// SetContext installs the Context the next PatchAsync call will run
// against. It returns ErrAlreadyPatching while a batch is in flight.
func (p *Patcher) SetContext(ctx *Context) error {
	if p.IsPatching() {
		return ErrAlreadyPatching
	}
	p.ctx = ctx
	return nil
}

// PatchAsync snapshots the Context's file-rename map as the working set
// and dispatches one patch task per file. It reports the working-set size
// through numFiles, counts completed tasks (regardless of outcome) into
// numPatched atomically, fires onSuccess/onError per file (either may be
// nil), and returns the task handle: a channel closed when the batch has
// fully drained, finalizer included.
func (p *Patcher) PatchAsync(numFiles *int, numPatched *int64, onSuccess, onError PatchCallback) (<-chan struct{}, error) {
	if p.IsPatching() {
		return nil, ErrAlreadyPatching
	}
	p.patching.Store(true)
	p.cancelled.Store(false)

	p.mu.Lock()
	p.status = ResultInProgress
	p.errored = map[string]PatchResult{}
	p.patched = map[string]string{}
	p.mu.Unlock()

	// Snapshot: later Context mutations do not affect a running batch.
	type job struct{ src, dst string }
	var jobs []job
	if p.ctx != nil {
		for src, dst := range p.ctx.FileRenames {
			jobs = append(jobs, job{src, dst})
		}
	}
	if numFiles != nil {
		*numFiles = len(jobs)
	}

	// One shared database, built once before any worker starts; workers
	// only ever read it.
	buildTok := rwrecur.NewToken()
	p.db = NewDatabase(p.baseLogger)
	if p.ctx != nil {
		p.ctx.InstallInto(p.db, buildTok)
	}

	task := make(chan struct{})
	p.task = task

	workers := p.Workers
	if workers <= 0 {
		workers = runtime.NumCPU()
	}
	sem := semaphore.NewWeighted(int64(workers))

	go func() {
		var wg sync.WaitGroup
		for _, j := range jobs {
			// Acquiring before launch keeps dispatch sequential: at most
			// `workers` files are open at once, bounding filesystem
			// pressure.
			if err := sem.Acquire(context.Background(), 1); err != nil {
				break
			}
			wg.Add(1)
			go func(j job) {
				defer sem.Release(1)
				defer wg.Done()
				p.runOne(j.src, j.dst, numPatched, onSuccess, onError)
			}(j)
		}

		// Finalizer: runs after every worker, even under cancellation.
		wg.Wait()
		p.mu.Lock()
		for src := range p.errored {
			delete(p.patched, src)
		}
		if p.status == ResultInProgress {
			p.status = ResultSuccess
		}
		p.mu.Unlock()
		p.patching.Store(false)
		close(task)
	}()

	return task, nil
}

// runOne executes a single file task: swap in the shared redirect
// database as this worker's current context, patch, record the result.
func (p *Patcher) runOne(src, dst string, numPatched *int64, onSuccess, onError PatchCallback) {
	if numPatched != nil {
		defer atomic.AddInt64(numPatched, 1)
	}
	if p.cancelled.Load() {
		return
	}

	tok := rwrecur.NewToken()
	previous := SetCurrent(tok, p.db)
	defer SetCurrent(tok, previous)

	result := doPatch(src, dst, p.ctx, p.db, tok, p.opts)

	p.mu.Lock()
	if result == ResultSuccess {
		p.patched[src] = dst
	} else {
		p.errored[src] = result
		if p.status != ResultCancelled {
			p.status = result
		}
		p.logger.Errorf("patching %s failed: %s", src, result.String())
	}
	p.mu.Unlock()

	if result == ResultSuccess {
		if onSuccess != nil {
			onSuccess(src, dst)
		}
	} else if onError != nil {
		onError(src, dst)
	}
}

// CancelPatching requests cooperative cancellation: tasks not yet begun
// are skipped; tasks already running complete and still report their
// results. Callers must still wait on the task handle.
func (p *Patcher) CancelPatching() {
	if !p.IsPatching() {
		return
	}
	p.cancelled.Store(true)
	p.mu.Lock()
	p.status = ResultCancelled
	p.mu.Unlock()
}

// IsPatching reports whether a batch is still in flight.
func (p *Patcher) IsPatching() bool { return p.patching.Load() }

// GetPatchResult returns the overall batch status: NotStarted,
// InProgress, Cancelled, Success, or the last per-file error observed.
func (p *Patcher) GetPatchResult() PatchResult {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.status
}

// GetPatchedFiles returns the successfully patched src->dst map. The map
// is only meaningful once IsPatching reports false; while a batch is in
// flight an empty map is returned rather than a racy partial snapshot.
func (p *Patcher) GetPatchedFiles() map[string]string {
	if p.IsPatching() {
		return map[string]string{}
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make(map[string]string, len(p.patched))
	for k, v := range p.patched {
		out[k] = v
	}
	return out
}

// GetErrorFiles returns the per-file error map. Like GetPatchedFiles it
// is empty while a batch is in flight.
func (p *Patcher) GetErrorFiles() map[string]PatchResult {
	if p.IsPatching() {
		return map[string]PatchResult{}
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make(map[string]PatchResult, len(p.errored))
	for k, v := range p.errored {
		out[k] = v
	}
	return out
}

// HasErrors reports whether any file has failed so far.
func (p *Patcher) HasErrors() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.errored) > 0
}

// GetPatchingTask returns the current (or most recent) batch's task
// handle, nil before the first PatchAsync call.
func (p *Patcher) GetPatchingTask() <-chan struct{} { return p.task }
