package playback

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/llehouerou/lineup/internal/engine"
	"github.com/llehouerou/lineup/internal/errmsg"
	"github.com/llehouerou/lineup/internal/lifecycle"
	"github.com/llehouerou/lineup/internal/log"
	"github.com/llehouerou/lineup/internal/metrics"
	"github.com/llehouerou/lineup/internal/playlist"
	"github.com/llehouerou/lineup/internal/reconcile"
	"github.com/llehouerou/lineup/internal/resource"
)

const (
	defaultHistorySize       = 50
	defaultMaxConcurrentLoad = 4
	maxSampleBatch           = 64
)

type command struct {
	fn   func()
	done chan struct{}
}

type pendingLoad struct {
	generation  uint64
	placeholder resource.Resource
}

// view is the read side of the service, published by the run loop.
type view struct {
	descriptors []playlist.Descriptor
	window      []playlist.ID
	current     *playlist.Descriptor
	metrics     metrics.DeltaSnapshot
	repeat      reconcile.RepeatMode
}

type serviceImpl struct {
	engine     engine.Interface
	adapter    engine.ItemAdapter
	reconciler *reconcile.Reconciler
	lifecycle  *lifecycle.Coordinator
	aggregator *metrics.Aggregator
	exporter   *metrics.Exporter
	loader     *resource.Loader
	resolver   Resolver
	history    *playlist.History
	log        zerolog.Logger
	window     int

	// Owned by the run loop.
	descriptors []playlist.Descriptor
	current     *engine.Item
	repeat      reconcile.RepeatMode
	pending     map[playlist.ID]pendingLoad
	closeErr    error

	mu   sync.RWMutex
	view view

	subsMu sync.RWMutex
	subs   []*Subscription
	closed bool

	cmds      chan command
	done      chan struct{}
	stopped   chan struct{}
	closeOnce sync.Once
}

// New starts a playback service over e. The service owns e and closes it
// on Close.
func New(e engine.Interface, opts Options) Service {
	if opts.WindowLength < 1 {
		opts.WindowLength = DefaultWindowLength
	}
	if opts.HistorySize < 1 {
		opts.HistorySize = defaultHistorySize
	}
	if opts.MaxConcurrentLoads < 1 {
		opts.MaxConcurrentLoads = defaultMaxConcurrentLoad
	}
	if opts.Adapter == nil {
		opts.Adapter = engine.Adapter{}
	}
	logger := log.WithComponent("playback")
	if opts.Logger != nil {
		logger = *opts.Logger
	}

	s := &serviceImpl{
		engine:     e,
		adapter:    opts.Adapter,
		reconciler: reconcile.New(opts.Adapter),
		lifecycle:  lifecycle.New(logger),
		aggregator: metrics.NewAggregator(),
		exporter:   opts.Exporter,
		loader:     resource.NewLoader(opts.MaxConcurrentLoads),
		resolver:   opts.Resolver,
		history:    playlist.NewHistory(opts.HistorySize),
		log:        logger,
		window:     opts.WindowLength,
		repeat:     opts.RepeatMode,
		pending:    make(map[playlist.ID]pendingLoad),
		cmds:       make(chan command),
		done:       make(chan struct{}),
		stopped:    make(chan struct{}),
	}
	s.view.repeat = opts.RepeatMode
	s.history.Push(nil)

	go s.run()
	return s
}

// Verify serviceImpl implements Service at compile time.
var _ Service = (*serviceImpl)(nil)

// run is the coordination context. Everything that touches the engine
// queue, the lifecycle coordinator or the aggregator happens here.
func (s *serviceImpl) run() {
	defer close(s.stopped)

	currentCh := s.engine.CurrentChanged()
	samplesCh := s.engine.Samples()
	propsCh := s.engine.PropertiesChanged()
	results := s.loader.Results()

	for {
		select {
		case c := <-s.cmds:
			c.fn()
			close(c.done)
		case it, ok := <-currentCh:
			if !ok {
				currentCh = nil
				continue
			}
			s.handleCurrentChanged(it)
		case smp, ok := <-samplesCh:
			if !ok {
				samplesCh = nil
				continue
			}
			s.handleSamples(smp)
		case p, ok := <-propsCh:
			if !ok {
				propsCh = nil
				continue
			}
			s.lifecycle.UpdateProperties(p)
		case r := <-results:
			s.handleLoaded(r)
		case <-s.done:
			s.teardown()
			return
		}
	}
}

// do runs fn on the coordination context and waits for it.
func (s *serviceImpl) do(fn func()) error {
	c := command{fn: fn, done: make(chan struct{})}
	select {
	case s.cmds <- c:
	case <-s.done:
		return ErrClosed
	}
	<-c.done
	return nil
}

func (s *serviceImpl) teardown() {
	s.loader.Close()
	s.lifecycle.Close()
	s.current = nil
	s.pending = nil
	s.closeErr = s.engine.Close()
}

// Commands

func (s *serviceImpl) SetDescriptors(ds []playlist.Descriptor) error {
	if err := playlist.Validate(ds); err != nil {
		return fmt.Errorf("set descriptors: %w", err)
	}
	next := append([]playlist.Descriptor(nil), ds...)
	return s.do(func() {
		s.history.Push(next)
		s.apply(next)
	})
}

func (s *serviceImpl) Reload(id playlist.ID) error {
	if s.resolver == nil {
		return ErrNoResolver
	}
	var err error
	if doErr := s.do(func() {
		i := playlist.IndexOf(s.descriptors, id)
		if i < 0 {
			err = fmt.Errorf("reload %s: %w", id, ErrUnknownID)
			return
		}
		next := append([]playlist.Descriptor(nil), s.descriptors...)
		next[i] = engine.Reload(next[i])
		s.apply(next)
	}); doErr != nil {
		return doErr
	}
	return err
}

// JumpTo restarts the window at id with fresh items.
func (s *serviceImpl) JumpTo(id playlist.ID) error {
	var err error
	if doErr := s.do(func() {
		if playlist.IndexOf(s.descriptors, id) < 0 {
			err = fmt.Errorf("jump to %s: %w", id, ErrUnknownID)
			return
		}
		items := s.reconciler.Jump(s.descriptors, id, s.repeat, s.window)
		s.engine.SetQueue(items)
		s.observeCurrent(s.engine.Current())
		s.publishQueue(items)
	}); doErr != nil {
		return doErr
	}
	return err
}

func (s *serviceImpl) Register(id playlist.ID, b playlist.Binding) error {
	return s.do(func() {
		s.lifecycle.Register(id, b)
	})
}

func (s *serviceImpl) Play() error {
	var err error
	if doErr := s.do(func() {
		err = s.engine.Play()
		if err != nil {
			s.publishError(errmsg.OpPlaybackStart, s.currentID(), err)
		}
	}); doErr != nil {
		return doErr
	}
	return err
}

func (s *serviceImpl) Pause() error {
	return s.do(s.engine.Pause)
}

func (s *serviceImpl) Seek(position time.Duration) error {
	if position < 0 {
		position = 0
	}
	return s.do(func() {
		s.engine.Seek(position)
	})
}

func (s *serviceImpl) Undo() bool {
	return s.restore(s.history.Undo)
}

func (s *serviceImpl) Redo() bool {
	return s.restore(s.history.Redo)
}

func (s *serviceImpl) restore(step func() ([]playlist.Descriptor, bool)) bool {
	var ok bool
	_ = s.do(func() {
		var ds []playlist.Descriptor
		if ds, ok = step(); ok {
			s.apply(ds)
		}
	})
	return ok
}

func (s *serviceImpl) SetRepeatMode(mode reconcile.RepeatMode) error {
	return s.do(func() {
		s.setRepeat(mode)
	})
}

func (s *serviceImpl) CycleRepeatMode() (reconcile.RepeatMode, error) {
	var mode reconcile.RepeatMode
	err := s.do(func() {
		mode = s.repeat.Next()
		s.setRepeat(mode)
	})
	return mode, err
}

func (s *serviceImpl) setRepeat(mode reconcile.RepeatMode) {
	if mode == s.repeat {
		return
	}
	s.repeat = mode
	s.mu.Lock()
	s.view.repeat = mode
	s.mu.Unlock()
	s.apply(s.descriptors)
	s.broadcast(func(sub *Subscription) { sub.sendMode(ModeChange{RepeatMode: mode}) })
}

// Queries

func (s *serviceImpl) Descriptors() []playlist.Descriptor {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]playlist.Descriptor(nil), s.view.descriptors...)
}

func (s *serviceImpl) CurrentDescriptor() (playlist.Descriptor, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.view.current == nil {
		return playlist.Descriptor{}, false
	}
	return *s.view.current, true
}

func (s *serviceImpl) Metrics() metrics.DeltaSnapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.view.metrics
}

func (s *serviceImpl) Queue() []playlist.ID {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]playlist.ID(nil), s.view.window...)
}

func (s *serviceImpl) RepeatMode() reconcile.RepeatMode {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.view.repeat
}

func (s *serviceImpl) State() engine.State {
	return s.engine.State()
}

func (s *serviceImpl) Subscribe() *Subscription {
	sub := newSubscription()
	s.subsMu.Lock()
	defer s.subsMu.Unlock()
	if s.closed {
		sub.close()
		return sub
	}
	s.subs = append(s.subs, sub)
	return sub
}

func (s *serviceImpl) Close() error {
	var err error
	s.closeOnce.Do(func() {
		close(s.done)
		<-s.stopped
		err = s.closeErr

		s.subsMu.Lock()
		for _, sub := range s.subs {
			sub.close()
		}
		s.subs = nil
		s.closed = true
		s.subsMu.Unlock()
	})
	return err
}

// Coordination

// apply makes next the descriptor list and hands the reconciled window to
// the engine.
func (s *serviceImpl) apply(next []playlist.Descriptor) {
	prev := s.descriptors
	s.cancelSuperseded(next)
	s.descriptors = next
	s.resolveLoading(next)

	items := s.reconciler.Reconcile(prev, next, s.engine.Current(), s.repeat, s.window)
	s.engine.SetQueue(items)
	s.lifecycle.Prune(next)

	head := s.engine.Current()
	if head != nil && head == s.current {
		s.mu.Lock()
		s.view.current = descriptorOf(head)
		s.mu.Unlock()
		s.lifecycle.UpdateDescriptor(head.Descriptor())
	}
	s.observeCurrent(head)

	s.log.Debug().
		Int("descriptors", len(next)).
		Int("window", len(items)).
		Str("repeat", s.repeat.String()).
		Msg("queue reconciled")
	s.publishQueue(items)
}

// refill tops the engine window up after the engine advanced on its own.
func (s *serviceImpl) refill() {
	items := s.reconciler.Reconcile(s.descriptors, s.descriptors, s.current, s.repeat, s.window)
	s.engine.SetQueue(items)
	s.publishQueue(items)
}

func (s *serviceImpl) handleCurrentChanged(it *engine.Item) {
	if it != s.engine.Current() {
		// Superseded by a later SetQueue or advance.
		return
	}
	prev := s.current
	if it == prev {
		return
	}
	if it == nil && prev != nil && s.repeat == reconcile.RepeatOne {
		s.replay(prev)
		return
	}
	s.observeCurrent(it)
	if it == nil {
		s.publishQueue(nil)
		return
	}
	s.refill()
}

// replay queues a fresh item for the descriptor that just finished.
func (s *serviceImpl) replay(prev *engine.Item) {
	i := playlist.IndexOf(s.descriptors, prev.ID())
	if i < 0 {
		s.observeCurrent(nil)
		return
	}
	items := []*engine.Item{s.adapter.Build(s.descriptors[i])}
	s.engine.SetQueue(items)
	s.observeCurrent(s.engine.Current())
	s.publishQueue(items)
	if err := s.engine.Play(); err != nil {
		s.publishError(errmsg.OpPlaybackStart, prev.ID(), err)
	}
}

// observeCurrent moves bindings and metrics to it when it is a new item.
// The view is published first so bindings querying the service from
// Enable see it as current.
func (s *serviceImpl) observeCurrent(it *engine.Item) {
	if it == s.current {
		return
	}
	prev := s.current
	s.current = it
	s.aggregator.Reset()
	if s.exporter != nil {
		s.exporter.ItemChanged()
	}

	s.mu.Lock()
	s.view.current = descriptorOf(it)
	s.view.metrics = s.aggregator.Snapshot()
	s.mu.Unlock()

	s.lifecycle.SetCurrent(it)

	s.log.Debug().
		Str("previous", itemLabel(prev)).
		Str("current", itemLabel(it)).
		Msg("current item changed")

	change := CurrentChange{Previous: descriptorOf(prev), Current: descriptorOf(it)}
	s.broadcast(func(sub *Subscription) { sub.sendCurrent(change) })
}

func (s *serviceImpl) handleSamples(first metrics.Sample) {
	batch := []metrics.Sample{first}
drain:
	for len(batch) < maxSampleBatch {
		select {
		case smp, ok := <-s.engine.Samples():
			if !ok {
				break drain
			}
			batch = append(batch, smp)
		default:
			break drain
		}
	}

	snap := s.aggregator.Add(batch...)
	if s.exporter != nil {
		s.exporter.Observe(snap, len(batch))
	}
	s.mu.Lock()
	s.view.metrics = snap
	s.mu.Unlock()
	s.broadcast(func(sub *Subscription) { sub.sendMetrics(MetricsChange{Snapshot: snap}) })
}

func (s *serviceImpl) handleLoaded(r resource.Result) {
	id := playlist.ID(r.ID)
	p, ok := s.pending[id]
	if !ok || p.generation != r.Generation || !s.loader.Claim(r.ID, r.Generation) {
		s.log.Debug().Str("descriptor", r.ID).Uint64("generation", r.Generation).Msg("stale load dropped")
		return
	}
	delete(s.pending, id)

	i := playlist.IndexOf(s.descriptors, id)
	if i < 0 || !s.descriptors[i].Resource.Equal(p.placeholder) {
		return
	}
	if r.Resource.Kind() == resource.KindFailed {
		s.log.Warn().Err(r.Resource.Err()).Str("descriptor", r.ID).Msg("resource load failed")
		s.publishError(errmsg.OpResourceLoad, id, r.Resource.Err())
	}
	next := append([]playlist.Descriptor(nil), s.descriptors...)
	next[i] = next[i].WithResource(r.Resource)
	s.apply(next)
}

// cancelSuperseded cancels loads whose placeholder is no longer in next.
func (s *serviceImpl) cancelSuperseded(next []playlist.Descriptor) {
	for id, p := range s.pending {
		j := playlist.IndexOf(next, id)
		if j >= 0 && next[j].Resource.Equal(p.placeholder) {
			continue
		}
		s.loader.Cancel(string(id))
		delete(s.pending, id)
	}
}

// resolveLoading starts a load for every Loading descriptor not already
// being resolved.
func (s *serviceImpl) resolveLoading(next []playlist.Descriptor) {
	if s.resolver == nil {
		return
	}
	for _, d := range next {
		if d.Resource.Kind() != resource.KindLoading {
			continue
		}
		if _, ok := s.pending[d.ID]; ok {
			continue
		}
		gen, err := s.loader.Start(string(d.ID), func(ctx context.Context) (resource.Resource, error) {
			return s.resolver(ctx, d)
		})
		if err != nil {
			s.log.Warn().Err(err).Str("descriptor", string(d.ID)).Msg("load not started")
			continue
		}
		s.pending[d.ID] = pendingLoad{generation: gen, placeholder: d.Resource}
	}
}

func (s *serviceImpl) publishQueue(items []*engine.Item) {
	window := make([]playlist.ID, len(items))
	for i, it := range items {
		window[i] = it.ID()
	}
	descriptors := append([]playlist.Descriptor(nil), s.descriptors...)

	s.mu.Lock()
	s.view.descriptors = descriptors
	s.view.window = window
	s.mu.Unlock()

	change := QueueChange{Descriptors: descriptors, Window: window}
	s.broadcast(func(sub *Subscription) { sub.sendQueue(change) })
}

func (s *serviceImpl) publishError(op errmsg.Op, id playlist.ID, err error) {
	e := ErrorEvent{Operation: op, ID: id, Err: err}
	s.broadcast(func(sub *Subscription) { sub.sendError(e) })
}

func (s *serviceImpl) broadcast(send func(*Subscription)) {
	s.subsMu.RLock()
	defer s.subsMu.RUnlock()
	for _, sub := range s.subs {
		send(sub)
	}
}

func (s *serviceImpl) currentID() playlist.ID {
	if s.current == nil {
		return ""
	}
	return s.current.ID()
}

func descriptorOf(it *engine.Item) *playlist.Descriptor {
	if it == nil {
		return nil
	}
	d := it.Descriptor()
	return &d
}

func itemLabel(it *engine.Item) string {
	if it == nil {
		return "none"
	}
	return it.String()
}
