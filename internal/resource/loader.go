package resource

import (
	"context"
	"errors"
	"sync"

	"golang.org/x/sync/semaphore"
)

const resultBufferSize = 16

// ErrLoaderClosed is returned by Start after Close.
var ErrLoaderClosed = errors.New("loader closed")

// ResolveFunc turns a descriptor into a playable resource. It runs off the
// coordination context and must honor ctx cancellation.
type ResolveFunc func(ctx context.Context) (Resource, error)

// Result is a finished load, tagged with the key it was started under.
type Result struct {
	ID         string
	Generation uint64
	Resource   Resource
}

// Loader runs resolutions concurrently, bounded by a semaphore. Only the
// latest generation started for an id is ever delivered.
//
// Generations are unique across the loader, so bookkeeping for an id can
// be dropped once its load is claimed or cancelled.
type Loader struct {
	sem *semaphore.Weighted

	mu      sync.Mutex
	next    uint64
	latest  map[string]uint64
	cancels map[string]context.CancelFunc
	closed  bool

	results chan Result
	wg      sync.WaitGroup
	ctx     context.Context
	cancel  context.CancelFunc
}

// NewLoader creates a loader running at most maxConcurrent resolutions.
func NewLoader(maxConcurrent int) *Loader {
	if maxConcurrent < 1 {
		maxConcurrent = 1
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Loader{
		sem:     semaphore.NewWeighted(int64(maxConcurrent)),
		latest:  make(map[string]uint64),
		cancels: make(map[string]context.CancelFunc),
		results: make(chan Result, resultBufferSize),
		ctx:     ctx,
		cancel:  cancel,
	}
}

// Results delivers finished loads. Failed resolutions arrive as Failed resources.
func (l *Loader) Results() <-chan Result {
	return l.results
}

// Start begins resolving id, superseding any in-flight load for it.
// Returns the generation the result will carry.
func (l *Loader) Start(id string, fn ResolveFunc) (uint64, error) {
	l.mu.Lock()
	if l.closed {
		l.mu.Unlock()
		return 0, ErrLoaderClosed
	}
	if cancel, ok := l.cancels[id]; ok {
		cancel()
	}
	l.next++
	gen := l.next
	l.latest[id] = gen
	ctx, cancel := context.WithCancel(l.ctx)
	l.cancels[id] = cancel
	l.wg.Add(1)
	l.mu.Unlock()

	go l.run(ctx, cancel, id, gen, fn)
	return gen, nil
}

func (l *Loader) run(ctx context.Context, cancel context.CancelFunc, id string, gen uint64, fn ResolveFunc) {
	defer l.wg.Done()
	defer l.finish(id, gen)
	defer cancel()

	if err := l.sem.Acquire(ctx, 1); err != nil {
		return
	}
	res, err := fn(ctx)
	l.sem.Release(1)
	if err != nil {
		res = Failed(err)
	}
	if ctx.Err() != nil || !l.IsCurrent(id, gen) {
		return
	}

	select {
	case l.results <- Result{ID: id, Generation: gen, Resource: res}:
	case <-l.ctx.Done():
	}
}

// finish releases the cancel func of a worker unless a later Start owns id.
func (l *Loader) finish(id string, gen uint64) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if cur, ok := l.latest[id]; !ok || cur == gen {
		delete(l.cancels, id)
	}
}

// Cancel aborts the in-flight load for id; a result already queued becomes stale.
func (l *Loader) Cancel(id string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if cancel, ok := l.cancels[id]; ok {
		cancel()
		delete(l.cancels, id)
	}
	delete(l.latest, id)
}

// IsCurrent reports whether gen is still the latest generation for id.
func (l *Loader) IsCurrent(id string, gen uint64) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return gen != 0 && l.latest[id] == gen
}

// Claim is IsCurrent for the receiver applying a result: when gen is
// current it also forgets id, so a result is applied at most once.
func (l *Loader) Claim(id string, gen uint64) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	if gen == 0 || l.latest[id] != gen {
		return false
	}
	delete(l.latest, id)
	return true
}

// Close cancels every load and waits for the workers to exit.
func (l *Loader) Close() {
	l.mu.Lock()
	if l.closed {
		l.mu.Unlock()
		return
	}
	l.closed = true
	l.mu.Unlock()

	l.cancel()
	l.wg.Wait()
}
